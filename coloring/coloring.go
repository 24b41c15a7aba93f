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

// Package coloring provides plate colorings: named per-facet scalar or
// vector attributes of a shape model, such as slope or gravitational
// acceleration, whose data is loaded lazily and cached.
//
// A Coloring pairs a Description, which fixes the coloring's identity, with
// a Source that provides its data on demand.  The first call to Data or
// DefaultRange loads the data, checks it against the Description, computes
// its default range, and caches both; Clear discards them again.
package coloring

import (
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/ilhamster/platecoloring/tuple"
)

// ErrInvalidConfiguration is returned when a coloring's description and its
// data disagree, when data has no valid range, or when a registry's
// invariants would be broken.  It signals corrupt metadata or a programming
// error, and is never worth retrying.
var ErrInvalidConfiguration = errors.New("invalid coloring configuration")

// Description describes a coloring.  A coloring is identified by its Name
// and NumberElements together.
type Description struct {
	Name string
	// Units may be empty.
	Units string
	// NumberElements is the number of records in the coloring's data: one
	// per plate of the shape model it colors.
	NumberElements int
	// FieldNames names each field of a record; its length is the coloring's
	// field count.
	FieldNames []string
	// HasNulls indicates that the lowest value in the data is a sentinel
	// standing for missing data.
	HasNulls bool
}

// NumberFields returns the number of fields in each of the described
// coloring's records.
func (d Description) NumberFields() int {
	return len(d.FieldNames)
}

// Validate returns ErrInvalidConfiguration if the receiver is unusable.
func (d Description) Validate() error {
	switch {
	case d.Name == "":
		return fmt.Errorf("%w: coloring has no name", ErrInvalidConfiguration)
	case d.NumberElements < 0:
		return fmt.Errorf("%w: coloring '%s' has %d elements", ErrInvalidConfiguration, d.Name, d.NumberElements)
	case len(d.FieldNames) == 0:
		return fmt.Errorf("%w: coloring '%s' has no fields", ErrInvalidConfiguration, d.Name)
	}
	return nil
}

// Equal returns true if the receiver and other describe the same coloring.
func (d Description) Equal(other Description) bool {
	return d.Name == other.Name &&
		d.Units == other.Units &&
		d.NumberElements == other.NumberElements &&
		slices.Equal(d.FieldNames, other.FieldNames) &&
		d.HasNulls == other.HasNulls
}

func (d Description) String() string {
	return fmt.Sprintf("'%s' (%d elements)", d.Name, d.NumberElements)
}

// ColoringData is a read-only view of one coloring.
type ColoringData interface {
	// Description returns the coloring's description.
	Description() Description
	// Data returns the coloring's data, loading it if necessary.
	Data() (tuple.Indexable, error)
	// DefaultRange returns the range of the coloring's valid values,
	// loading its data if necessary.
	DefaultRange() (Range, error)
	// Clear discards any loaded data.  A subsequent Data or DefaultRange
	// reloads it.
	Clear()
}

// Equal returns true if a and b have equal descriptions.  Their data is not
// compared.
func Equal(a, b ColoringData) bool {
	return a.Description().Equal(b.Description())
}

// Source provides a coloring's data.  Provide may be called again after the
// coloring is cleared, and should then return equivalent data.  Data that
// implements tuple.Releaser is released if it fails validation; once
// published it may be held by callers, so clearing only drops the
// coloring's reference to it.
type Source interface {
	Provide() (tuple.Indexable, error)
}

// loaded is a coloring's cached state.  Data and range are published
// together.
type loaded struct {
	data tuple.Indexable
	rng  Range
}

// Coloring is a ColoringData whose data comes from a Source.
//
// Concurrent loads of the same Coloring are collapsed so that its Source is
// consulted once per load.  Clearing a Coloring while another goroutine is
// reading its data is the caller's responsibility to avoid.
type Coloring struct {
	desc   Description
	source Source

	cache atomic.Pointer[loaded]
	loads singleflight.Group
}

var _ ColoringData = &Coloring{}

// New returns a new, unloaded Coloring with the provided description and
// source.
func New(desc Description, source Source) (*Coloring, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("%w: coloring %s has no source", ErrInvalidConfiguration, desc)
	}
	desc.FieldNames = slices.Clone(desc.FieldNames)
	return &Coloring{
		desc:   desc,
		source: source,
	}, nil
}

// Description is part of the ColoringData interface.
func (c *Coloring) Description() Description {
	ret := c.desc
	ret.FieldNames = slices.Clone(c.desc.FieldNames)
	return ret
}

// Source returns the receiver's source.
func (c *Coloring) Source() Source {
	return c.source
}

// Loaded returns true if the receiver's data is currently loaded.
func (c *Coloring) Loaded() bool {
	return c.cache.Load() != nil
}

// Data is part of the ColoringData interface.
func (c *Coloring) Data() (tuple.Indexable, error) {
	l, err := c.load()
	if err != nil {
		return nil, err
	}
	return l.data, nil
}

// DefaultRange is part of the ColoringData interface.
func (c *Coloring) DefaultRange() (Range, error) {
	l, err := c.load()
	if err != nil {
		return Range{}, err
	}
	return l.rng, nil
}

// Clear is part of the ColoringData interface.  It drops the cached data
// and range; data already returned by Data remains valid for its holders.
// Clearing an unloaded Coloring has no effect.
func (c *Coloring) Clear() {
	c.cache.Store(nil)
}

func release(data tuple.Indexable) {
	if r, ok := data.(tuple.Releaser); ok {
		r.Release()
	}
}

func (c *Coloring) load() (*loaded, error) {
	if l := c.cache.Load(); l != nil {
		return l, nil
	}
	v, err, _ := c.loads.Do("", func() (any, error) {
		// A load that completed while this one waited to start has
		// already published its result.
		if l := c.cache.Load(); l != nil {
			return l, nil
		}
		data, err := c.source.Provide()
		if err != nil {
			if fb, ok := c.source.(fileBacked); ok {
				return nil, &LoadError{Name: c.desc.Name, FileID: fb.FileID(), Err: err}
			}
			return nil, fmt.Errorf("failed to provide data for coloring %s: %w", c.desc, err)
		}
		if err := c.check(data); err != nil {
			release(data)
			return nil, err
		}
		rng, err := ComputeRange(data, c.desc.HasNulls)
		if err != nil {
			release(data)
			return nil, fmt.Errorf("coloring %s: %w", c.desc, err)
		}
		l := &loaded{data: data, rng: rng}
		c.cache.Store(l)
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*loaded), nil
}

// check verifies that data has the shape the receiver's description
// declares.
func (c *Coloring) check(data tuple.Indexable) error {
	if data.Size() != c.desc.NumberElements {
		return fmt.Errorf("%w: coloring %s loaded %d records", ErrInvalidConfiguration, c.desc, data.Size())
	}
	if data.NumberFields() != c.desc.NumberFields() {
		return fmt.Errorf("%w: coloring %s has %d field names but loaded %d fields", ErrInvalidConfiguration, c.desc, c.desc.NumberFields(), data.NumberFields())
	}
	return nil
}

// LoadError reports that a file-backed coloring could not be loaded.
type LoadError struct {
	Name   string
	FileID string
	Err    error
}

func (le *LoadError) Error() string {
	return fmt.Sprintf("failed to load coloring '%s' from '%s': %s", le.Name, le.FileID, le.Err)
}

func (le *LoadError) Unwrap() error {
	return le.Err
}
