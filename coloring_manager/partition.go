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

package coloringmanager

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/ilhamster/platecoloring/coloring"
	"github.com/ilhamster/platecoloring/metadata"
)

// Keys of a partitioned registry's document.
var (
	BuiltInKey = metadata.NewKey[[]*metadata.Metadata]("Built-in coloring data")
	CustomKey  = metadata.NewKey[[]*metadata.Metadata]("Custom coloring data")
)

// CustomFileName returns the name of the dedicated custom-coloring file for
// the current custom schema version.
func CustomFileName() string {
	v := metadata.Current(metadata.CustomSchema)
	return fmt.Sprintf("custom-coloring-%d.%d.smd", v.Major, v.Minor)
}

// Partitioned holds built-in colorings, shipped with a shape model, and
// custom colorings, imported by the user, together with a merged view of
// both.  No key is used by both partitions: a coloring may not be added,
// or restored, under a key the other partition already holds.
//
// Membership tests compare coloring identity, so ColoringData
// implementations used with a Partitioned must be comparable.
//
// Partitioned is not safe for concurrent use.
type Partitioned struct {
	builtIn, custom, all *Manager
}

// NewPartitioned returns a new, empty Partitioned.
func NewPartitioned() *Partitioned {
	return &Partitioned{
		builtIn: New(),
		custom:  New(),
		all:     New(),
	}
}

// merged returns the merged view of the provided partitions: every
// built-in coloring, then every custom coloring.  It returns ErrDuplicate if
// the partitions share a key.
func merged(builtIn, custom *Manager) (*Manager, error) {
	all := builtIn.Copy()
	for _, d := range custom.All() {
		if err := all.Add(d); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// commit installs the provided partitions and their merged view.  If they
// share a key, the receiver is unchanged.
func (p *Partitioned) commit(builtIn, custom *Manager) error {
	all, err := merged(builtIn, custom)
	if err != nil {
		return err
	}
	p.builtIn, p.custom, p.all = builtIn, custom, all
	return nil
}

// BuiltIn returns a copy of the built-in partition.
func (p *Partitioned) BuiltIn() *Manager {
	return p.builtIn.Copy()
}

// Custom returns a copy of the custom partition.
func (p *Partitioned) Custom() *Manager {
	return p.custom.Copy()
}

// All returns a copy of the merged view.
func (p *Partitioned) All() *Manager {
	return p.all.Copy()
}

// Get returns the coloring the merged view holds under the provided name
// and resolution.
func (p *Partitioned) Get(name string, numberElements int) (coloring.ColoringData, error) {
	return p.all.Get(name, numberElements)
}

// AddBuiltIn adds a built-in coloring.  It returns ErrDuplicate if any
// coloring, built-in or custom, already has d's key.
func (p *Partitioned) AddBuiltIn(d coloring.ColoringData) error {
	builtIn := p.builtIn.Copy()
	if err := builtIn.Add(d); err != nil {
		return err
	}
	return p.commit(builtIn, p.custom)
}

// AddCustom adds a custom coloring.  It returns ErrDuplicate if any
// coloring, built-in or custom, already has d's key.
func (p *Partitioned) AddCustom(d coloring.ColoringData) error {
	custom := p.custom.Copy()
	if err := custom.Add(d); err != nil {
		return err
	}
	return p.commit(p.builtIn, custom)
}

// RemoveCustom removes a custom coloring.
func (p *Partitioned) RemoveCustom(name string, numberElements int) error {
	custom := p.custom.Copy()
	if err := custom.Remove(name, numberElements); err != nil {
		return err
	}
	return p.commit(p.builtIn, custom)
}

// ReplaceCustom replaces the custom coloring registered under oldName at
// d's resolution with d.  It returns ErrDuplicate if d would take the key
// of another coloring, built-in or custom.
func (p *Partitioned) ReplaceCustom(oldName string, d coloring.ColoringData) error {
	custom := p.custom.Copy()
	if err := custom.Replace(oldName, d); err != nil {
		return err
	}
	return p.commit(p.builtIn, custom)
}

// ClearCustom removes every custom coloring.
func (p *Partitioned) ClearCustom() {
	p.custom = New()
	p.all = p.builtIn.Copy()
}

func holds(m *Manager, d coloring.ColoringData) bool {
	k := KeyOf(d)
	got, ok := m.entries[k]
	return ok && got == d
}

// IsBuiltIn returns true if d itself is a built-in coloring.
func (p *Partitioned) IsBuiltIn(d coloring.ColoringData) bool {
	return holds(p.builtIn, d)
}

// IsCustom returns true if d itself is a custom coloring.  Custom colorings
// may be edited and deleted; built-in ones may not.
func (p *Partitioned) IsCustom(d coloring.ColoringData) bool {
	return holds(p.custom, d)
}

// Store returns a metadata document describing both partitions.
func (p *Partitioned) Store() (*metadata.Metadata, error) {
	builtIn, err := p.builtIn.blocks()
	if err != nil {
		return nil, err
	}
	custom, err := p.custom.blocks()
	if err != nil {
		return nil, err
	}
	md := metadata.New(metadata.Current(metadata.PartitionSchema))
	metadata.Put(md, BuiltInKey, builtIn)
	metadata.Put(md, CustomKey, custom)
	return md, nil
}

// Retrieve replaces both partitions with those described by a document
// written by Store.  It returns ErrDuplicate if the partitions share a key.
// If Retrieve fails, the receiver is unchanged.
func (p *Partitioned) Retrieve(md *metadata.Metadata, resolver coloring.Resolver, bootstrap coloring.Bootstrap) error {
	if err := metadata.Check(metadata.PartitionSchema, md.Version()); err != nil {
		return err
	}
	builtInBlocks, err := metadata.GetOr(md, BuiltInKey, nil)
	if err != nil {
		return err
	}
	customBlocks, err := metadata.GetOr(md, CustomKey, nil)
	if err != nil {
		return err
	}
	builtIn, err := restore(builtInBlocks, resolver, bootstrap)
	if err != nil {
		return fmt.Errorf("built-in colorings: %w", err)
	}
	custom, err := restore(customBlocks, resolver, bootstrap)
	if err != nil {
		return fmt.Errorf("custom colorings: %w", err)
	}
	return p.commit(builtIn, custom)
}

// SaveCustom writes the custom partition to the dedicated custom-coloring
// file in dir.
func (p *Partitioned) SaveCustom(dir string) error {
	blocks, err := p.custom.blocks()
	if err != nil {
		return err
	}
	md := metadata.New(metadata.Current(metadata.CustomSchema))
	metadata.Put(md, CustomKey, blocks)
	return metadata.Save(filepath.Join(dir, CustomFileName()), md)
}

// LoadCustom replaces the custom partition with the contents of the
// dedicated custom-coloring file in dir.  A missing file leaves the custom
// partition empty.  It returns ErrDuplicate if a custom coloring has the key
// of a built-in one.  If LoadCustom fails, the receiver is unchanged.
func (p *Partitioned) LoadCustom(dir string, resolver coloring.Resolver, bootstrap coloring.Bootstrap) error {
	md, err := metadata.Load(filepath.Join(dir, CustomFileName()))
	if errors.Is(err, fs.ErrNotExist) {
		p.ClearCustom()
		return nil
	}
	if err != nil {
		return err
	}
	if err := metadata.Check(metadata.CustomSchema, md.Version()); err != nil {
		return err
	}
	blocks, err := metadata.GetOr(md, CustomKey, nil)
	if err != nil {
		return err
	}
	custom, err := restore(blocks, resolver, bootstrap)
	if err != nil {
		return fmt.Errorf("custom colorings: %w", err)
	}
	if err := p.commit(p.builtIn, custom); err != nil {
		return fmt.Errorf("custom colorings: %w", err)
	}
	return nil
}
