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
	"bytes"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/ilhamster/platecoloring/tuple"
)

// fitsMagic begins the first header card of every FITS file.
var fitsMagic = []byte("SIMPLE  =")

// DefaultFITSHDU is the HDU index holding coloring tables.
const DefaultFITSHDU = 1

// FITS loads coloring data from numbered columns of a FITS binary table.
// Saving is not supported.
type FITS struct {
	// HDU is the index of the table's header-data unit; zero selects
	// DefaultFITSHDU, since the primary HDU cannot hold a table.
	HDU int
	// Columns are the 1-based numbers of the columns to read, one per
	// field.
	Columns []int
}

var _ IO = FITS{}

func (f FITS) String() string {
	return fmt.Sprintf("fits columns %v", f.Columns)
}

// Load is part of the IO interface.
func (f FITS) Load(file string) (tuple.Indexable, error) {
	if len(f.Columns) == 0 {
		return nil, fmt.Errorf("no FITS columns requested for '%s'", file)
	}
	fp, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	magic := make([]byte, len(fitsMagic))
	if _, err := io.ReadFull(fp, magic); err != nil || !bytes.Equal(magic, fitsMagic) {
		return nil, incorrectFormat(file, "missing FITS primary header")
	}
	if _, err := fp.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	ff, err := fitsio.Open(fp)
	if err != nil {
		return nil, incorrectFormat(file, "%s", err)
	}
	defer ff.Close()
	hduIdx := f.HDU
	if hduIdx == 0 {
		hduIdx = DefaultFITSHDU
	}
	hdus := ff.HDUs()
	if hduIdx < 0 || hduIdx >= len(hdus) {
		return nil, fieldNotFound(file, "no HDU %d (file has %d)", hduIdx, len(hdus))
	}
	tbl, ok := hdus[hduIdx].(*fitsio.Table)
	if !ok {
		return nil, fieldNotFound(file, "HDU %d is not a table", hduIdx)
	}
	cols := tbl.Cols()
	// Rows.Scan fills every column, so destinations are allocated for all of
	// them even though only the requested ones are kept.
	dests := make([]any, len(cols))
	for idx, col := range cols {
		typ, err := fitsColumnType(col.Format)
		if err != nil {
			return nil, incorrectFormat(file, "column %d (%s): %s", idx+1, col.Name, err)
		}
		dests[idx] = reflect.New(typ).Interface()
	}
	for _, c := range f.Columns {
		if c < 1 || c > len(cols) {
			return nil, fieldNotFound(file, "no column %d in HDU %d (table has %d)", c, hduIdx, len(cols))
		}
		if _, ok := numericValue(dests[c-1]); !ok {
			return nil, fieldNotFound(file, "column %d (%s) is not a scalar numeric column", c, cols[c-1].Name)
		}
	}
	nrows := tbl.NumRows()
	rows, err := tbl.Read(0, nrows)
	if err != nil {
		return nil, fmt.Errorf("failed to read FITS table in '%s': %w", file, err)
	}
	defer rows.Close()
	values := make([]float64, 0, int(nrows)*len(f.Columns))
	for rows.Next() {
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("failed to scan FITS row in '%s': %w", file, err)
		}
		for _, c := range f.Columns {
			v, _ := numericValue(dests[c-1])
			values = append(values, v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read FITS rows in '%s': %w", file, err)
	}
	return tuple.NewTable(len(f.Columns), values)
}

// Save is part of the IO interface.  FITS tables are read-only.
func (f FITS) Save(data tuple.Indexable, file string) error {
	return fmt.Errorf("%w: saving FITS tables", ErrUnsupported)
}

// fitsColumnType returns the Go type fitsio scans a binary-table column of
// the provided TFORM into.
func fitsColumnType(format string) (reflect.Type, error) {
	format = strings.TrimSpace(format)
	digits := strings.IndexFunc(format, func(r rune) bool { return r < '0' || r > '9' })
	if digits < 0 {
		return nil, fmt.Errorf("malformed TFORM '%s'", format)
	}
	repeat := 1
	if digits > 0 {
		var err error
		if repeat, err = strconv.Atoi(format[:digits]); err != nil {
			return nil, fmt.Errorf("malformed TFORM '%s'", format)
		}
	}
	var elem reflect.Type
	switch format[digits] {
	case 'A':
		return reflect.TypeOf(""), nil
	case 'L':
		elem = reflect.TypeOf(false)
	case 'B':
		elem = reflect.TypeOf(uint8(0))
	case 'I':
		elem = reflect.TypeOf(int16(0))
	case 'J':
		elem = reflect.TypeOf(int32(0))
	case 'K':
		elem = reflect.TypeOf(int64(0))
	case 'E':
		elem = reflect.TypeOf(float32(0))
	case 'D':
		elem = reflect.TypeOf(float64(0))
	case 'C':
		elem = reflect.TypeOf(complex64(0))
	case 'M':
		elem = reflect.TypeOf(complex128(0))
	default:
		return nil, fmt.Errorf("unsupported TFORM '%s'", format)
	}
	if repeat == 1 {
		return elem, nil
	}
	return reflect.ArrayOf(repeat, elem), nil
}

// numericValue returns the float64 value of a scanned scalar numeric
// destination, or false if the destination is not a scalar number.
func numericValue(dest any) (float64, bool) {
	v := reflect.ValueOf(dest).Elem()
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	}
	return 0, false
}
