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

// Package coloringio provides strategies for loading and saving plate
// coloring data from and to files:
//
//   - VTK reads and writes the first cell-data array of a legacy VTK data
//     file, the container format used for shape models themselves;
//   - FITS reads numbered columns from a FITS binary table;
//   - CSV reads numbered columns from delimited text;
//   - Legacy probes all three, following the column conventions of older
//     coloring files.
//
// Strategies distinguish a file in the wrong container format
// (ErrIncorrectFileFormat) from a file in the right container that lacks the
// requested columns (ErrFieldNotFound).  Legacy uses that distinction to
// decide which format to try next.  Any other error, such as a missing or
// unreadable file, is returned unchanged.
package coloringio

import (
	"errors"
	"fmt"

	"github.com/ilhamster/platecoloring/tuple"
)

var (
	// ErrIncorrectFileFormat is returned when a file exists but is not in
	// the format a strategy expects.
	ErrIncorrectFileFormat = errors.New("incorrect file format")
	// ErrFieldNotFound is returned when a file is in the expected format but
	// lacks the requested table, array or columns.
	ErrFieldNotFound = errors.New("field not found")
	// ErrUnsupported is returned by strategies that cannot perform an
	// operation, such as saving to a read-only format.
	ErrUnsupported = errors.New("operation not supported")
)

// IO is a strategy for loading and saving coloring data.
type IO interface {
	// Load reads the coloring data in the file at the provided path.
	Load(file string) (tuple.Indexable, error)
	// Save writes the provided data to the file at the provided path.
	Save(data tuple.Indexable, file string) error
}

func incorrectFormat(file, format string, args ...any) error {
	return fmt.Errorf("%w: '%s': %s", ErrIncorrectFileFormat, file, fmt.Sprintf(format, args...))
}

func fieldNotFound(file, format string, args ...any) error {
	return fmt.Errorf("%w: '%s': %s", ErrFieldNotFound, file, fmt.Sprintf(format, args...))
}
