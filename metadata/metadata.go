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

// Package metadata provides a versioned, ordered key/value document used to
// persist coloring descriptions and registries.
//
// A Metadata block holds a Version and an ordered set of keyed values.
// Values may be strings, bools, ints, float64s, nested *Metadata blocks, or
// sequences of those.  Values are read and written through typed Keys:
//
//	var nameKey = metadata.NewKey[string]("Coloring name")
//
//	md := metadata.New(metadata.Current(metadata.ColoringSchema))
//	metadata.Put(md, nameKey, "Slope")
//	name, err := metadata.Get(md, nameKey)
//
// Blocks are encoded as YAML mappings whose first key is the block's
// version; see Marshal and Unmarshal.
package metadata

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound is returned by Get when a block lacks a key.
	ErrKeyNotFound = errors.New("metadata key not found")
	// ErrWrongType is returned by Get when a key's value cannot be converted
	// to the key's type.
	ErrWrongType = errors.New("metadata value has the wrong type")
)

// Metadata is an ordered, versioned key/value block.  It is not safe for
// concurrent mutation.
type Metadata struct {
	version Version
	keys    []string
	values  map[string]any
}

// New returns an empty block with the specified version.
func New(version Version) *Metadata {
	return &Metadata{
		version: version,
		values:  map[string]any{},
	}
}

// Version returns the block's version.
func (m *Metadata) Version() Version {
	return m.version
}

// Keys returns the block's keys in insertion order.
func (m *Metadata) Keys() []string {
	ret := make([]string, len(m.keys))
	copy(ret, m.keys)
	return ret
}

// Has returns true if the block holds the specified key.
func (m *Metadata) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Len returns the number of keys in the block.
func (m *Metadata) Len() int {
	return len(m.keys)
}

// set stores a raw value, preserving the position of an existing key.
func (m *Metadata) set(key string, value any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Key is a typed metadata key.
type Key[T any] struct {
	name string
}

// NewKey returns a Key with the provided name.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the key's name as it appears in documents.
func (k Key[T]) Name() string {
	return k.name
}

// Put stores value under key in m, replacing any existing value.
func Put[T any](m *Metadata, key Key[T], value T) {
	m.set(key.name, value)
}

// Get returns the value stored under key in m.  Values decoded from a
// document are converted to the key's type where that is lossless: decoded
// sequences become typed slices, and integral values may be read as ints
// or float64s.
func Get[T any](m *Metadata, key Key[T]) (T, error) {
	var zero T
	raw, ok := m.values[key.name]
	if !ok {
		return zero, fmt.Errorf("%w: '%s'", ErrKeyNotFound, key.name)
	}
	if v, ok := raw.(T); ok {
		return v, nil
	}
	var err error
	switch dst := any(&zero).(type) {
	case *int:
		*dst, err = asInt(raw)
	case *float64:
		*dst, err = asFloat(raw)
	case *[]string:
		*dst, err = asSlice(raw, func(e any) (string, error) {
			s, ok := e.(string)
			if !ok {
				return "", fmt.Errorf("%T is not a string", e)
			}
			return s, nil
		})
	case *[]int:
		*dst, err = asSlice(raw, asInt)
	case *[]*Metadata:
		*dst, err = asSlice(raw, func(e any) (*Metadata, error) {
			md, ok := e.(*Metadata)
			if !ok {
				return nil, fmt.Errorf("%T is not a metadata block", e)
			}
			return md, nil
		})
	case *[]any:
		*dst, err = asSlice(raw, func(e any) (any, error) { return e, nil })
	default:
		err = fmt.Errorf("%T cannot be read as %T", raw, zero)
	}
	if err != nil {
		return zero, fmt.Errorf("%w: '%s': %s", ErrWrongType, key.name, err)
	}
	return zero, nil
}

// GetOr returns the value stored under key in m, or def if m lacks key.
func GetOr[T any](m *Metadata, key Key[T], def T) (T, error) {
	if !m.Has(key.name) {
		return def, nil
	}
	return Get(m, key)
}

func asInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	}
	return 0, fmt.Errorf("%v (%T) is not an integer", raw, raw)
}

func asFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, fmt.Errorf("%v (%T) is not a number", raw, raw)
}

func asSlice[T any](raw any, conv func(any) (T, error)) ([]T, error) {
	var elems []any
	switch v := raw.(type) {
	case []any:
		elems = v
	case []string:
		for _, s := range v {
			elems = append(elems, s)
		}
	case []int:
		for _, i := range v {
			elems = append(elems, i)
		}
	case []*Metadata:
		for _, md := range v {
			elems = append(elems, md)
		}
	default:
		return nil, fmt.Errorf("%T is not a sequence", raw)
	}
	ret := make([]T, len(elems))
	for idx, elem := range elems {
		v, err := conv(elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", idx, err)
		}
		ret[idx] = v
	}
	return ret, nil
}
