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

// Package tuple defines the format-neutral numeric currency of plate
// coloring data: a Tuple is one fixed-width record of float64 fields (one
// plate's values), and an Indexable is an ordered collection of Tuples that
// all share the same width.
//
// Two Indexable implementations are provided:
//
//   - Table, backed by plain memory owned by the Table;
//   - Strided, a view over an externally owned (and possibly
//     non-resizable) numeric buffer, with an explicit Release.
package tuple

import (
	"fmt"
	"math"
)

// Tuple is a read-only view of one record of numeric fields.
type Tuple interface {
	// Size returns the number of fields in the record.
	Size() int
	// Get returns the value of the field at index i.
	Get(i int) float64
}

// Indexable is a read-only, ordered collection of Tuples.  Every Tuple
// returned by Get has Size() == NumberFields().
type Indexable interface {
	// Size returns the number of records.
	Size() int
	// NumberFields returns the number of fields in every record.
	NumberFields() int
	// Get returns the record at index i.
	Get(i int) Tuple
}

// Releaser is implemented by Indexables that hold a resource (for instance
// a buffer owned by a native reader) that should be released once the data
// is no longer needed.  Release must be safe to call more than once.
type Releaser interface {
	Release()
}

// Row is a Tuple backed by a slice.
type Row []float64

// Size is part of the Tuple interface.
func (r Row) Size() int {
	return len(r)
}

// Get is part of the Tuple interface.
func (r Row) Get(i int) float64 {
	return r[i]
}

// Values returns a fresh slice holding the provided Tuple's fields.
func Values(t Tuple) []float64 {
	ret := make([]float64, t.Size())
	for i := range ret {
		ret[i] = t.Get(i)
	}
	return ret
}

// Rows returns the provided Indexable's contents as a slice of rows.  It is
// chiefly useful for comparing Indexables in tests.
func Rows(idx Indexable) [][]float64 {
	ret := make([][]float64, idx.Size())
	for i := range ret {
		ret[i] = Values(idx.Get(i))
	}
	return ret
}

// Equal returns true if the two Indexables have the same shape and
// bit-identical values.  NaNs compare equal to NaNs with the same bits.
func Equal(a, b Indexable) bool {
	if a.Size() != b.Size() || a.NumberFields() != b.NumberFields() {
		return false
	}
	for i := 0; i < a.Size(); i++ {
		at, bt := a.Get(i), b.Get(i)
		for f := 0; f < a.NumberFields(); f++ {
			if math.Float64bits(at.Get(f)) != math.Float64bits(bt.Get(f)) {
				return false
			}
		}
	}
	return true
}

// Table is an in-memory Indexable storing its values row-major.
type Table struct {
	numberFields int
	values       []float64
}

// NewTable returns a Table with the provided field count over the provided
// row-major values.  The Table takes ownership of values.
func NewTable(numberFields int, values []float64) (*Table, error) {
	if numberFields < 1 {
		return nil, fmt.Errorf("a table needs at least one field, got %d", numberFields)
	}
	if len(values)%numberFields != 0 {
		return nil, fmt.Errorf("%d values cannot be split into records of %d fields", len(values), numberFields)
	}
	return &Table{
		numberFields: numberFields,
		values:       values,
	}, nil
}

// FromRows returns a Table holding a copy of the provided rows, which must
// all have the same, nonzero, length.
func FromRows(rows ...[]float64) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("cannot infer the field count of an empty set of rows")
	}
	nf := len(rows[0])
	values := make([]float64, 0, nf*len(rows))
	for idx, row := range rows {
		if len(row) != nf {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", idx, len(row), nf)
		}
		values = append(values, row...)
	}
	return NewTable(nf, values)
}

// Copy returns a Table holding a copy of the provided Indexable's values.
func Copy(idx Indexable) *Table {
	nf := idx.NumberFields()
	values := make([]float64, 0, nf*idx.Size())
	for i := 0; i < idx.Size(); i++ {
		t := idx.Get(i)
		for f := 0; f < nf; f++ {
			values = append(values, t.Get(f))
		}
	}
	return &Table{
		numberFields: nf,
		values:       values,
	}
}

// Size is part of the Indexable interface.
func (t *Table) Size() int {
	return len(t.values) / t.numberFields
}

// NumberFields is part of the Indexable interface.
func (t *Table) NumberFields() int {
	return t.numberFields
}

// Get is part of the Indexable interface.
func (t *Table) Get(i int) Tuple {
	start := i * t.numberFields
	return Row(t.values[start : start+t.numberFields : start+t.numberFields])
}
