/*
	Copyright 2023 Google Inc.
	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at
		https://www.apache.org/licenses/LICENSE-2.0
	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package metadata

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// VersionKey is the reserved key holding a block's version.  It is always
// the first key of an encoded block.
const VersionKey = "Metadata version"

// Marshal encodes m as a YAML document.
func Marshal(m *Metadata) ([]byte, error) {
	node, err := m.node()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a YAML document produced by Marshal.
func Unmarshal(data []byte) (*Metadata, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, fmt.Errorf("metadata document is empty")
	}
	return fromNode(doc.Content[0])
}

// Save writes m to the file at path.
func Save(path string, m *Metadata) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata to '%s': %w", path, err)
	}
	return nil
}

// Load reads a metadata document from the file at path.
func Load(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	md, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("'%s': %w", path, err)
	}
	return md, nil
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func (m *Metadata) node() (*yaml.Node, error) {
	ret := &yaml.Node{
		Kind:    yaml.MappingNode,
		Content: []*yaml.Node{strNode(VersionKey), strNode(m.version.String())},
	}
	for _, key := range m.keys {
		vn, err := valueNode(m.values[key])
		if err != nil {
			return nil, fmt.Errorf("key '%s': %w", key, err)
		}
		ret.Content = append(ret.Content, strNode(key), vn)
	}
	return ret, nil
}

func valueNode(v any) (*yaml.Node, error) {
	switch v := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case *Metadata:
		return v.node()
	case string:
		return strNode(v), nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v)}, nil
	case int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(v)}, nil
	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(v, 'g', -1, 64)}, nil
	case []string:
		elems := make([]any, len(v))
		for i, s := range v {
			elems[i] = s
		}
		return seqNode(elems)
	case []int:
		elems := make([]any, len(v))
		for i, n := range v {
			elems[i] = n
		}
		return seqNode(elems)
	case []*Metadata:
		elems := make([]any, len(v))
		for i, md := range v {
			elems[i] = md
		}
		return seqNode(elems)
	case []any:
		return seqNode(v)
	}
	return nil, fmt.Errorf("unsupported metadata value type %T", v)
}

func seqNode(elems []any) (*yaml.Node, error) {
	ret := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for idx, elem := range elems {
		en, err := valueNode(elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", idx, err)
		}
		// Sequences of blocks read better in block style.
		if en.Kind != yaml.ScalarNode {
			ret.Style = 0
		}
		ret.Content = append(ret.Content, en)
	}
	return ret, nil
}

func fromNode(n *yaml.Node) (*Metadata, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a metadata block", n.Line)
	}
	if len(n.Content) < 2 || n.Content[0].Value != VersionKey {
		return nil, fmt.Errorf("line %d: metadata block does not start with '%s'", n.Line, VersionKey)
	}
	version, err := ParseVersion(n.Content[1].Value)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", n.Line, err)
	}
	ret := New(version)
	for i := 2; i+1 < len(n.Content); i += 2 {
		kn, vn := n.Content[i], n.Content[i+1]
		if kn.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: metadata keys must be scalars", kn.Line)
		}
		if ret.Has(kn.Value) {
			return nil, fmt.Errorf("line %d: duplicate metadata key '%s'", kn.Line, kn.Value)
		}
		v, err := fromValueNode(vn)
		if err != nil {
			return nil, fmt.Errorf("key '%s': %w", kn.Value, err)
		}
		ret.set(kn.Value, v)
	}
	return ret, nil
}

func fromValueNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return fromValueNode(n.Alias)
	case yaml.MappingNode:
		return fromNode(n)
	case yaml.SequenceNode:
		ret := make([]any, 0, len(n.Content))
		for _, en := range n.Content {
			v, err := fromValueNode(en)
			if err != nil {
				return nil, err
			}
			ret = append(ret, v)
		}
		return ret, nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return nil, nil
		case "!!bool":
			var b bool
			err := n.Decode(&b)
			return b, err
		case "!!int":
			var i int
			err := n.Decode(&i)
			return i, err
		case "!!float":
			var f float64
			err := n.Decode(&f)
			return f, err
		default:
			return n.Value, nil
		}
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}
