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

// Package coloringmanager provides registries of colorings keyed by name and
// resolution, and their persistence as metadata documents.
package coloringmanager

import (
	"fmt"
	"slices"

	"github.com/ilhamster/platecoloring/coloring"
	"github.com/ilhamster/platecoloring/metadata"
)

var (
	// ErrDuplicate is returned when adding a coloring whose key is already
	// registered.
	ErrDuplicate = fmt.Errorf("%w: duplicate coloring", coloring.ErrInvalidConfiguration)
	// ErrNotFound is returned when a requested key is not registered.
	ErrNotFound = fmt.Errorf("%w: coloring not found", coloring.ErrInvalidConfiguration)
)

// ColoringsKey holds a registry's coloring blocks, in order.
var ColoringsKey = metadata.NewKey[[]*metadata.Metadata]("Coloring data")

// Key identifies a registered coloring.
type Key struct {
	Name string
	// NumberElements is the resolution of the shape model the coloring
	// applies to.
	NumberElements int
}

func (k Key) String() string {
	return fmt.Sprintf("'%s' at resolution %d", k.Name, k.NumberElements)
}

// KeyOf returns the provided coloring's key.
func KeyOf(d coloring.ColoringData) Key {
	desc := d.Description()
	return Key{Name: desc.Name, NumberElements: desc.NumberElements}
}

// Persistable is implemented by colorings that can be written to metadata.
type Persistable interface {
	Metadata() (*metadata.Metadata, error)
}

// Manager is a registry of colorings keyed by name and resolution.  Names
// are kept in the order they were first registered; resolutions are kept in
// increasing order.  A name or resolution is listed exactly while some
// coloring uses it.
//
// Manager is not safe for concurrent use.
type Manager struct {
	entries     map[Key]coloring.ColoringData
	names       []string
	resolutions []int
}

// New returns a new, empty Manager.
func New() *Manager {
	return &Manager{
		entries: map[Key]coloring.ColoringData{},
	}
}

// Len returns the number of registered colorings.
func (m *Manager) Len() int {
	return len(m.entries)
}

// Has returns true if a coloring is registered under the provided name and
// resolution.
func (m *Manager) Has(name string, numberElements int) bool {
	_, ok := m.entries[Key{name, numberElements}]
	return ok
}

// Names returns the registered coloring names, in registration order.
func (m *Manager) Names() []string {
	return slices.Clone(m.names)
}

// Resolutions returns the registered resolutions, in increasing order.
func (m *Manager) Resolutions() []int {
	return slices.Clone(m.resolutions)
}

// Add registers d.  It returns ErrDuplicate if d's key is already
// registered, leaving the receiver unchanged.
func (m *Manager) Add(d coloring.ColoringData) error {
	k := KeyOf(d)
	if _, ok := m.entries[k]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, k)
	}
	m.entries[k] = d
	if !slices.Contains(m.names, k.Name) {
		m.names = append(m.names, k.Name)
	}
	m.addResolution(k.NumberElements)
	return nil
}

func (m *Manager) addResolution(n int) {
	if idx, found := slices.BinarySearch(m.resolutions, n); !found {
		m.resolutions = slices.Insert(m.resolutions, idx, n)
	}
}

// Get returns the coloring registered under the provided name and
// resolution, or ErrNotFound.
func (m *Manager) Get(name string, numberElements int) (coloring.ColoringData, error) {
	k := Key{name, numberElements}
	d, ok := m.entries[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, k)
	}
	return d, nil
}

// GetAt returns every coloring registered at the provided resolution, in
// name order.
func (m *Manager) GetAt(numberElements int) []coloring.ColoringData {
	var ret []coloring.ColoringData
	for _, name := range m.names {
		if d, ok := m.entries[Key{name, numberElements}]; ok {
			ret = append(ret, d)
		}
	}
	return ret
}

// All returns every registered coloring, ordered by name and then by
// resolution.
func (m *Manager) All() []coloring.ColoringData {
	ret := make([]coloring.ColoringData, 0, len(m.entries))
	for _, name := range m.names {
		for _, n := range m.resolutions {
			if d, ok := m.entries[Key{name, n}]; ok {
				ret = append(ret, d)
			}
		}
	}
	return ret
}

// Replace replaces the coloring registered under oldName at d's resolution
// with d.  If d's name is new, it takes oldName's place in the name order.
// Replace returns ErrNotFound if nothing is registered under oldName at d's
// resolution, and ErrDuplicate if d would displace a different coloring.
func (m *Manager) Replace(oldName string, d coloring.ColoringData) error {
	newKey := KeyOf(d)
	oldKey := Key{oldName, newKey.NumberElements}
	if _, ok := m.entries[oldKey]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, oldKey)
	}
	if _, ok := m.entries[newKey]; ok && newKey != oldKey {
		return fmt.Errorf("%w: %s", ErrDuplicate, newKey)
	}
	pos := slices.Index(m.names, oldName)
	delete(m.entries, oldKey)
	if !m.nameUsed(oldName) {
		m.names = slices.Delete(m.names, pos, pos+1)
	}
	m.entries[newKey] = d
	if !slices.Contains(m.names, newKey.Name) {
		m.names = slices.Insert(m.names, pos, newKey.Name)
	}
	m.addResolution(newKey.NumberElements)
	return nil
}

// Remove unregisters the coloring registered under the provided name and
// resolution, or returns ErrNotFound.
func (m *Manager) Remove(name string, numberElements int) error {
	k := Key{name, numberElements}
	if _, ok := m.entries[k]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, k)
	}
	delete(m.entries, k)
	if !m.nameUsed(name) {
		m.names = slices.DeleteFunc(m.names, func(n string) bool { return n == name })
	}
	if !m.resolutionUsed(numberElements) {
		m.resolutions = slices.DeleteFunc(m.resolutions, func(n int) bool { return n == numberElements })
	}
	return nil
}

func (m *Manager) nameUsed(name string) bool {
	for k := range m.entries {
		if k.Name == name {
			return true
		}
	}
	return false
}

func (m *Manager) resolutionUsed(n int) bool {
	for k := range m.entries {
		if k.NumberElements == n {
			return true
		}
	}
	return false
}

// Clear unregisters every coloring.
func (m *Manager) Clear() {
	clear(m.entries)
	m.names = nil
	m.resolutions = nil
}

// Copy returns a new Manager registering the same colorings as the
// receiver.  The colorings themselves are shared, so clearing a coloring
// through one Manager clears it for both.
func (m *Manager) Copy() *Manager {
	ret := New()
	for k, d := range m.entries {
		ret.entries[k] = d
	}
	ret.names = slices.Clone(m.names)
	ret.resolutions = slices.Clone(m.resolutions)
	return ret
}

// blocks returns the metadata blocks of every registered coloring, in All
// order.
func (m *Manager) blocks() ([]*metadata.Metadata, error) {
	var ret []*metadata.Metadata
	for _, d := range m.All() {
		p, ok := d.(Persistable)
		if !ok {
			return nil, fmt.Errorf("%w: coloring %s cannot be persisted", coloring.ErrInvalidConfiguration, KeyOf(d))
		}
		md, err := p.Metadata()
		if err != nil {
			return nil, err
		}
		ret = append(ret, md)
	}
	return ret, nil
}

// Store returns a metadata document describing every registered coloring.
// No coloring's data is loaded.
func (m *Manager) Store() (*metadata.Metadata, error) {
	blocks, err := m.blocks()
	if err != nil {
		return nil, err
	}
	md := metadata.New(metadata.Current(metadata.ManagerSchema))
	metadata.Put(md, ColoringsKey, blocks)
	return md, nil
}

// restore returns a new Manager holding the colorings described by blocks.
func restore(blocks []*metadata.Metadata, resolver coloring.Resolver, bootstrap coloring.Bootstrap) (*Manager, error) {
	ret := New()
	for idx, block := range blocks {
		d, err := coloring.Restore(block, resolver, bootstrap)
		if err != nil {
			return nil, fmt.Errorf("coloring block %d: %w", idx, err)
		}
		if err := ret.Add(d); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// Retrieve replaces the receiver's colorings with those described by a
// document written by Store.  Colorings are restored unloaded.  If Retrieve
// fails, the receiver is unchanged.
func (m *Manager) Retrieve(md *metadata.Metadata, resolver coloring.Resolver, bootstrap coloring.Bootstrap) error {
	if err := metadata.Check(metadata.ManagerSchema, md.Version()); err != nil {
		return err
	}
	blocks, err := metadata.GetOr(md, ColoringsKey, nil)
	if err != nil {
		return err
	}
	restored, err := restore(blocks, resolver, bootstrap)
	if err != nil {
		return err
	}
	*m = *restored
	return nil
}
