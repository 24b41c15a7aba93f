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

package coloringio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ilhamster/platecoloring/tuple"
)

// Column conventions of legacy coloring files.  FITS columns are 1-based,
// CSV columns 0-based.
var (
	FITSScalarColumns      = []int{4}
	FITSVectorColumns      = []int{4, 6, 8}
	FITSScalarErrorColumns = []int{5}
	FITSVectorErrorColumns = []int{5, 7, 9}
	CSVScalarColumns       = []int{0}
	CSVVectorColumns       = []int{0, 1, 2}
)

// IsErrorColoring returns true if the named coloring holds uncertainties
// rather than values, which legacy files store in the columns following the
// values.
func IsErrorColoring(name string) bool {
	return strings.Contains(strings.ToLower(name), "error")
}

// Legacy loads coloring files whose format was never recorded, by probing
// FITS, VTK and CSV in turn.
//
// Probing proceeds in tiers.  For ordinary colorings the vector tier (FITS
// columns 4,6,8, then VTK, then CSV columns 0,1,2) is tried before the
// scalar tier (FITS column 4, then VTK, then CSV column 0).  Colorings whose
// names contain "error" are only looked for in FITS files: first the
// scalar-error column 5, then the vector-error columns 5,7,9.
//
// Within a tier, a file in the wrong format moves on to the next format, and
// a file in the right format that lacks the columns abandons the tier.  Any
// other failure, such as a missing file, ends the search immediately.  If
// every tier fails, Load returns a *LegacyError listing every attempt.
type Legacy struct {
	// Name is the coloring's name, which selects the column conventions.
	Name string
	// FITSColumns, if non-empty, replaces the name-derived conventions with a
	// single tier reading these FITS columns (and the same number of leading
	// CSV columns).
	FITSColumns []int
	// NumberFields, if positive, is the coloring's declared field count.
	// FITS and CSV attempts reading a different number of columns are
	// skipped.
	NumberFields int
}

var _ IO = Legacy{}

// attempt is a single format probe within a tier.
type attempt struct {
	format string
	io     IO
	// The number of columns the attempt reads, or 0 if it reads whatever
	// the file holds.
	columns int
}

func fitsAttempt(cols []int) attempt {
	return attempt{format: fmt.Sprintf("fits %v", cols), io: FITS{Columns: cols}, columns: len(cols)}
}

func csvAttempt(cols []int) attempt {
	return attempt{format: fmt.Sprintf("csv %v", cols), io: CSV{Columns: cols}, columns: len(cols)}
}

var vtkAttempt = attempt{format: "vtk", io: VTK{}}

func leadingColumns(n int) []int {
	ret := make([]int, n)
	for i := range ret {
		ret[i] = i
	}
	return ret
}

// tiers returns the receiver's probing plan.
func (l Legacy) tiers() [][]attempt {
	var tiers [][]attempt
	switch {
	case len(l.FITSColumns) > 0 && IsErrorColoring(l.Name):
		tiers = [][]attempt{{fitsAttempt(l.FITSColumns)}}
	case len(l.FITSColumns) > 0:
		tiers = [][]attempt{{fitsAttempt(l.FITSColumns), vtkAttempt, csvAttempt(leadingColumns(len(l.FITSColumns)))}}
	case IsErrorColoring(l.Name):
		tiers = [][]attempt{
			{fitsAttempt(FITSScalarErrorColumns)},
			{fitsAttempt(FITSVectorErrorColumns)},
		}
	default:
		tiers = [][]attempt{
			{fitsAttempt(FITSVectorColumns), vtkAttempt, csvAttempt(CSVVectorColumns)},
			{fitsAttempt(FITSScalarColumns), vtkAttempt, csvAttempt(CSVScalarColumns)},
		}
	}
	if l.NumberFields <= 0 {
		return tiers
	}
	var ret [][]attempt
	for _, tier := range tiers {
		var kept []attempt
		for _, a := range tier {
			if a.columns == 0 || a.columns == l.NumberFields {
				kept = append(kept, a)
			}
		}
		if len(kept) > 0 {
			ret = append(ret, kept)
		}
	}
	return ret
}

// LegacyError reports that no format could load a legacy coloring file.
type LegacyError struct {
	File string
	// Attempts holds one error per format tried, in order.
	Attempts []error
}

func (le *LegacyError) Error() string {
	parts := make([]string, len(le.Attempts))
	for i, err := range le.Attempts {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("no format could load '%s': [%s]", le.File, strings.Join(parts, "; "))
}

// Unwrap returns the per-attempt errors.
func (le *LegacyError) Unwrap() []error {
	return le.Attempts
}

// Load is part of the IO interface.
func (l Legacy) Load(file string) (tuple.Indexable, error) {
	le := &LegacyError{File: file}
tiers:
	for _, tier := range l.tiers() {
		for _, a := range tier {
			data, err := a.io.Load(file)
			if err == nil {
				return data, nil
			}
			le.Attempts = append(le.Attempts, fmt.Errorf("%s: %w", a.format, err))
			switch {
			case errors.Is(err, ErrIncorrectFileFormat):
				continue
			case errors.Is(err, ErrFieldNotFound):
				continue tiers
			default:
				return nil, err
			}
		}
	}
	if len(le.Attempts) == 0 {
		return nil, fmt.Errorf("no legacy format reads %d fields for '%s'", l.NumberFields, l.Name)
	}
	return nil, le
}

// Save is part of the IO interface.  Legacy files are read-only.
func (l Legacy) Save(data tuple.Indexable, file string) error {
	return fmt.Errorf("%w: saving legacy coloring files", ErrUnsupported)
}

// ColumnIdentifiers returns the receiver's column identifiers as persisted
// in coloring metadata: the explicit FITS columns if set, otherwise the
// coloring name from which the columns are derived.
func (l Legacy) ColumnIdentifiers() []any {
	if len(l.FITSColumns) > 0 {
		ret := make([]any, len(l.FITSColumns))
		for i, c := range l.FITSColumns {
			ret[i] = c
		}
		return ret
	}
	return []any{l.Name}
}

// LegacyFromIdentifiers rebuilds a Legacy from persisted column identifiers:
// either a single name, or a list of FITS column numbers.
func LegacyFromIdentifiers(name string, numberFields int, ids []any) (Legacy, error) {
	l := Legacy{Name: name, NumberFields: numberFields}
	if len(ids) == 1 {
		if idName, ok := ids[0].(string); ok {
			l.Name = idName
			return l, nil
		}
	}
	for idx, id := range ids {
		c, ok := id.(int)
		if !ok || c < 1 {
			return Legacy{}, fmt.Errorf("column identifier %d (%v) is neither a name nor a column number", idx, id)
		}
		l.FITSColumns = append(l.FITSColumns, c)
	}
	if len(l.FITSColumns) == 0 {
		return Legacy{}, fmt.Errorf("no column identifiers")
	}
	return l, nil
}
