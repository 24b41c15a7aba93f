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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ilhamster/platecoloring/tuple"
)

const (
	vtkMagic = "# vtk DataFile Version"
	// DefaultVTKArrayName names the array written by VTK.Save when no name
	// is configured.
	DefaultVTKArrayName = "coloring"
)

// VTK loads and saves coloring data as the first cell-data array of a
// legacy-format VTK data file.  Load always returns array 0 of the CELL_DATA
// section, whatever its width; callers must check its field count.
//
// Both ASCII and BINARY files are read.  Arrays of type float are returned
// as float32-backed views without widening the buffer.
type VTK struct {
	// ArrayName names the array written by Save.
	ArrayName string
}

var _ IO = VTK{}

// Load is part of the IO interface.
func (v VTK) Load(file string) (tuple.Indexable, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	vr := &vtkReader{
		file: file,
		size: info.Size(),
		r:    bufio.NewReader(f),
	}
	return vr.readFirstCellArray()
}

// Save is part of the IO interface.  It writes an ASCII polydata file with no
// geometry and a single field array in its CELL_DATA section.
func (v VTK) Save(data tuple.Indexable, file string) error {
	name := v.ArrayName
	if name == "" {
		name = DefaultVTKArrayName
	}
	name = strings.Join(strings.Fields(name), "_")
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%s 3.0\n%s\nASCII\nDATASET POLYDATA\nPOINTS 0 float\n", vtkMagic, name)
	fmt.Fprintf(w, "CELL_DATA %d\nFIELD FieldData 1\n", data.Size())
	fmt.Fprintf(w, "%s %d %d double\n", name, data.NumberFields(), data.Size())
	for i := 0; i < data.Size(); i++ {
		t := data.Get(i)
		for fi := 0; fi < t.Size(); fi++ {
			if fi > 0 {
				w.WriteByte(' ')
			}
			w.WriteString(strconv.FormatFloat(t.Get(fi), 'g', -1, 64))
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// vtkType describes one legacy VTK scalar type.
type vtkType struct {
	name string
	size int
}

var vtkTypes = map[string]vtkType{
	"bit":            {"bit", 0},
	"unsigned_char":  {"unsigned_char", 1},
	"char":           {"char", 1},
	"unsigned_short": {"unsigned_short", 2},
	"short":          {"short", 2},
	"unsigned_int":   {"unsigned_int", 4},
	"int":            {"int", 4},
	"unsigned_long":  {"unsigned_long", 8},
	"long":           {"long", 8},
	"float":          {"float", 4},
	"double":         {"double", 8},
	"vtkidtype":      {"vtkIdType", 4},
	"vtktypeint32":   {"vtktypeint32", 4},
	"vtktypeint64":   {"vtktypeint64", 8},
}

type attributeSection int

const (
	noSection attributeSection = iota
	pointSection
	cellSection
)

type vtkReader struct {
	file string
	// The file's size in bytes, which bounds every count it declares.
	size   int64
	r      *bufio.Reader
	binary bool
	// Files from version 5.1 on list cells as OFFSETS and CONNECTIVITY
	// arrays.
	offsetCells bool
	// The enclosing attribute section and its tuple count.
	section attributeSection
	tuples  int
}

func (vr *vtkReader) readFirstCellArray() (tuple.Indexable, error) {
	magic, err := vr.r.ReadString('\n')
	if err != nil || !strings.HasPrefix(magic, vtkMagic) {
		return nil, incorrectFormat(vr.file, "missing VTK header")
	}
	if version, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(magic, vtkMagic)), 64); err == nil && version >= 5.1 {
		vr.offsetCells = true
	}
	if _, err := vr.r.ReadString('\n'); err != nil {
		return nil, incorrectFormat(vr.file, "missing VTK title")
	}
	encoding, err := vr.r.ReadString('\n')
	if err != nil {
		return nil, incorrectFormat(vr.file, "missing VTK encoding")
	}
	switch strings.ToUpper(strings.TrimSpace(encoding)) {
	case "ASCII":
	case "BINARY":
		vr.binary = true
	default:
		return nil, incorrectFormat(vr.file, "unknown VTK encoding '%s'", strings.TrimSpace(encoding))
	}
	for {
		fields, err := vr.keywordLine()
		if err == io.EOF {
			return nil, fieldNotFound(vr.file, "no cell data array")
		}
		if err != nil {
			return nil, err
		}
		data, err := vr.handle(fields)
		if err != nil || data != nil {
			return data, err
		}
	}
}

// handle consumes the section introduced by the provided keyword line.  It
// returns non-nil data only for the first cell-data array.
func (vr *vtkReader) handle(fields []string) (tuple.Indexable, error) {
	keyword := strings.ToUpper(fields[0])
	argInt := func(idx int) (int, error) {
		if idx >= len(fields) {
			return 0, incorrectFormat(vr.file, "%s is missing argument %d", keyword, idx)
		}
		n, err := strconv.Atoi(fields[idx])
		if err != nil || n < 0 {
			return 0, incorrectFormat(vr.file, "%s has a bad count '%s'", keyword, fields[idx])
		}
		return n, nil
	}
	argType := func(idx int) (vtkType, error) {
		if idx >= len(fields) {
			return vtkType{}, incorrectFormat(vr.file, "%s is missing its data type", keyword)
		}
		vt, ok := vtkTypes[strings.ToLower(fields[idx])]
		if !ok || vt.size == 0 {
			return vtkType{}, incorrectFormat(vr.file, "%s has unsupported data type '%s'", keyword, fields[idx])
		}
		return vt, nil
	}
	switch keyword {
	case "DATASET", "DIMENSIONS", "SPACING", "ORIGIN", "ASPECT_RATIO":
		return nil, nil
	case "METADATA":
		return nil, vr.skipMetadata()
	case "POINTS":
		n, err := argInt(1)
		if err != nil {
			return nil, err
		}
		vt, err := argType(2)
		if err != nil {
			return nil, err
		}
		return nil, vr.skipMany(vt, n, 3)
	case "X_COORDINATES", "Y_COORDINATES", "Z_COORDINATES":
		n, err := argInt(1)
		if err != nil {
			return nil, err
		}
		vt, err := argType(2)
		if err != nil {
			return nil, err
		}
		return nil, vr.skipMany(vt, n, 1)
	case "VERTICES", "LINES", "POLYGONS", "TRIANGLE_STRIPS", "CELLS":
		first, err := argInt(1)
		if err != nil {
			return nil, err
		}
		second, err := argInt(2)
		if err != nil {
			return nil, err
		}
		return nil, vr.skipCells(first, second)
	case "CELL_TYPES":
		n, err := argInt(1)
		if err != nil {
			return nil, err
		}
		return nil, vr.skipMany(vtkTypes["int"], n, 1)
	case "POINT_DATA":
		n, err := argInt(1)
		if err != nil {
			return nil, err
		}
		vr.section, vr.tuples = pointSection, n
		return nil, nil
	case "CELL_DATA":
		n, err := argInt(1)
		if err != nil {
			return nil, err
		}
		vr.section, vr.tuples = cellSection, n
		return nil, nil
	}
	// Everything else is an attribute array, which requires an enclosing
	// attribute section.
	if vr.section == noSection && keyword != "FIELD" {
		return nil, incorrectFormat(vr.file, "unexpected VTK keyword '%s'", fields[0])
	}
	tuples := vr.tuples
	var components int
	var vt vtkType
	var err error
	switch keyword {
	case "SCALARS":
		if vt, err = argType(2); err != nil {
			return nil, err
		}
		components = 1
		if len(fields) > 3 {
			if components, err = argInt(3); err != nil {
				return nil, err
			}
		}
		if err := vr.skipLookupTableLine(); err != nil {
			return nil, err
		}
	case "VECTORS", "NORMALS":
		if vt, err = argType(2); err != nil {
			return nil, err
		}
		components = 3
	case "TENSORS":
		if vt, err = argType(2); err != nil {
			return nil, err
		}
		components = 9
	case "TEXTURE_COORDINATES":
		if components, err = argInt(2); err != nil {
			return nil, err
		}
		if vt, err = argType(3); err != nil {
			return nil, err
		}
	case "COLOR_SCALARS":
		if components, err = argInt(2); err != nil {
			return nil, err
		}
		vt = vtkTypes["float"]
		if vr.binary {
			vt = vtkTypes["unsigned_char"]
		}
	case "LOOKUP_TABLE":
		// A lookup table is not an attribute of the cells.
		size, err := argInt(2)
		if err != nil {
			return nil, err
		}
		vt = vtkTypes["float"]
		if vr.binary {
			vt = vtkTypes["unsigned_char"]
		}
		return nil, vr.skipMany(vt, size, 4)
	case "FIELD":
		arrays, err := argInt(2)
		if err != nil {
			return nil, err
		}
		return vr.fieldArrays(arrays)
	default:
		return nil, incorrectFormat(vr.file, "unexpected VTK keyword '%s'", fields[0])
	}
	if vr.section == cellSection {
		return vr.readArray(vt, tuples, components)
	}
	return nil, vr.skipMany(vt, tuples, components)
}

// fieldArrays handles the arrays of a FIELD section, returning the first
// one if the section belongs to cell data.
func (vr *vtkReader) fieldArrays(arrays int) (tuple.Indexable, error) {
	for i := 0; i < arrays; i++ {
		fields, err := vr.keywordLine()
		if err != nil {
			return nil, vr.truncated(err)
		}
		// VTK writers may interleave METADATA blocks between arrays.
		if strings.ToUpper(fields[0]) == "METADATA" {
			if err := vr.skipMetadata(); err != nil {
				return nil, err
			}
			i--
			continue
		}
		if len(fields) != 4 {
			return nil, incorrectFormat(vr.file, "malformed field array header '%s'", strings.Join(fields, " "))
		}
		components, err := strconv.Atoi(fields[1])
		if err != nil || components < 1 {
			return nil, incorrectFormat(vr.file, "bad component count '%s'", fields[1])
		}
		tuples, err := strconv.Atoi(fields[2])
		if err != nil || tuples < 0 {
			return nil, incorrectFormat(vr.file, "bad tuple count '%s'", fields[2])
		}
		vt, ok := vtkTypes[strings.ToLower(fields[3])]
		if !ok || vt.size == 0 {
			return nil, incorrectFormat(vr.file, "unsupported data type '%s'", fields[3])
		}
		if vr.section == cellSection {
			if tuples != vr.tuples {
				return nil, incorrectFormat(vr.file, "field array '%s' has %d tuples in a section of %d", fields[0], tuples, vr.tuples)
			}
			return vr.readArray(vt, tuples, components)
		}
		if err := vr.skipMany(vt, tuples, components); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (vr *vtkReader) readArray(vt vtkType, tuples, components int) (tuple.Indexable, error) {
	n, err := vr.count(vt, tuples, components)
	if err != nil {
		return nil, err
	}
	if vt.name == "float" {
		buf := make([]float32, n)
		if vr.binary {
			if err := binary.Read(vr.r, binary.BigEndian, buf); err != nil {
				return nil, vr.truncated(err)
			}
		} else {
			for i := range buf {
				v, err := vr.asciiValue()
				if err != nil {
					return nil, err
				}
				buf[i] = float32(v)
			}
		}
		return tuple.NewStrided(buf, tuples, components, 0, 0, nil)
	}
	values, err := vr.values(vt, n)
	if err != nil {
		return nil, err
	}
	return tuple.NewTable(components, values)
}

// values reads n values of the provided type, widened to float64.
func (vr *vtkReader) values(vt vtkType, n int) ([]float64, error) {
	ret := make([]float64, n)
	if !vr.binary {
		for i := range ret {
			v, err := vr.asciiValue()
			if err != nil {
				return nil, err
			}
			ret[i] = v
		}
		return ret, nil
	}
	var err error
	read := func(dst any) {
		err = binary.Read(vr.r, binary.BigEndian, dst)
	}
	switch vt.name {
	case "unsigned_char":
		buf := make([]uint8, n)
		read(buf)
		widen(ret, buf)
	case "char":
		buf := make([]int8, n)
		read(buf)
		widen(ret, buf)
	case "unsigned_short":
		buf := make([]uint16, n)
		read(buf)
		widen(ret, buf)
	case "short":
		buf := make([]int16, n)
		read(buf)
		widen(ret, buf)
	case "unsigned_int":
		buf := make([]uint32, n)
		read(buf)
		widen(ret, buf)
	case "int", "vtkIdType", "vtktypeint32":
		buf := make([]int32, n)
		read(buf)
		widen(ret, buf)
	case "unsigned_long":
		buf := make([]uint64, n)
		read(buf)
		widen(ret, buf)
	case "long", "vtktypeint64":
		buf := make([]int64, n)
		read(buf)
		widen(ret, buf)
	case "double":
		read(ret)
	default:
		return nil, incorrectFormat(vr.file, "unsupported data type '%s'", vt.name)
	}
	if err != nil {
		return nil, vr.truncated(err)
	}
	return ret, nil
}

func widen[T tuple.Number](dst []float64, src []T) {
	for i, v := range src {
		dst[i] = float64(v)
	}
}

// count returns the number of values in a records of b values each,
// rejecting counts the file is too small to hold: binary values take their
// full size and ASCII values at least one byte.
func (vr *vtkReader) count(vt vtkType, a, b int) (int, error) {
	if a < 0 || b < 0 {
		return 0, incorrectFormat(vr.file, "negative count")
	}
	width := 1
	if vr.binary {
		width = vt.size
	}
	limit := vr.size / int64(width)
	if a != 0 && int64(b) > limit/int64(a) {
		return 0, incorrectFormat(vr.file, "%d records of %d values do not fit in %d bytes", a, b, vr.size)
	}
	return a * b, nil
}

// skipMany consumes a records of b values of the provided type.
func (vr *vtkReader) skipMany(vt vtkType, a, b int) error {
	n, err := vr.count(vt, a, b)
	if err != nil {
		return err
	}
	return vr.skip(vt, n)
}

// skip consumes n values of the provided type.
func (vr *vtkReader) skip(vt vtkType, n int) error {
	if vr.binary {
		if _, err := io.CopyN(io.Discard, vr.r, int64(n*vt.size)); err != nil {
			return vr.truncated(err)
		}
		return nil
	}
	for i := 0; i < n; i++ {
		if _, err := vr.asciiToken(); err != nil {
			return err
		}
	}
	return nil
}

// skipCells consumes a cell list.  Classic files give the cell count and
// the total list size, and store size ints.  From version 5.1 the header
// gives the offset count and the connectivity size, and OFFSETS and
// CONNECTIVITY arrays follow, each introduced by its own keyword line.
func (vr *vtkReader) skipCells(first, second int) error {
	if !vr.offsetCells {
		return vr.skipMany(vtkTypes["int"], second, 1)
	}
	for _, part := range []struct {
		keyword string
		count   int
	}{{"OFFSETS", first}, {"CONNECTIVITY", second}} {
		fields, err := vr.keywordLine()
		if err != nil {
			return vr.truncated(err)
		}
		if len(fields) != 2 || strings.ToUpper(fields[0]) != part.keyword {
			return incorrectFormat(vr.file, "expected %s, got '%s'", part.keyword, strings.Join(fields, " "))
		}
		vt, ok := vtkTypes[strings.ToLower(fields[1])]
		if !ok || vt.size == 0 {
			return incorrectFormat(vr.file, "unsupported data type '%s'", fields[1])
		}
		if err := vr.skipMany(vt, part.count, 1); err != nil {
			return err
		}
	}
	return nil
}

// skipLookupTableLine consumes the LOOKUP_TABLE line following a SCALARS
// line.  The line is mandatory in binary files, where peeking past it could
// consume data; ASCII files written by lenient tools sometimes omit it.
func (vr *vtkReader) skipLookupTableLine() error {
	if !vr.binary && !vr.nextLineHasPrefix("LOOKUP_TABLE") {
		return nil
	}
	fields, err := vr.keywordLine()
	if err != nil {
		return vr.truncated(err)
	}
	if strings.ToUpper(fields[0]) != "LOOKUP_TABLE" {
		return incorrectFormat(vr.file, "SCALARS is not followed by LOOKUP_TABLE")
	}
	return nil
}

// skipMetadata consumes a METADATA block, which ends at a blank line.
func (vr *vtkReader) skipMetadata() error {
	for {
		line, err := vr.r.ReadString('\n')
		if strings.TrimSpace(line) == "" {
			return nil
		}
		if err != nil {
			return vr.truncated(err)
		}
	}
}

// nextLineHasPrefix skips whitespace and reports whether the upcoming text
// begins with the provided keyword.
func (vr *vtkReader) nextLineHasPrefix(keyword string) bool {
	if err := vr.skipSpace(); err != nil {
		return false
	}
	b, err := vr.r.Peek(len(keyword))
	return err == nil && strings.EqualFold(string(b), keyword)
}

// keywordLine returns the whitespace-separated fields of the next non-blank
// line.
func (vr *vtkReader) keywordLine() ([]string, error) {
	for {
		line, err := vr.r.ReadString('\n')
		if fields := strings.Fields(line); len(fields) > 0 {
			return fields, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (vr *vtkReader) skipSpace() error {
	for {
		b, err := vr.r.ReadByte()
		if err != nil {
			return err
		}
		if !isSpace(b) {
			return vr.r.UnreadByte()
		}
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}

func (vr *vtkReader) asciiToken() (string, error) {
	if err := vr.skipSpace(); err != nil {
		return "", vr.truncated(err)
	}
	var sb strings.Builder
	for {
		b, err := vr.r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if isSpace(b) {
			break
		}
		sb.WriteByte(b)
	}
	return sb.String(), nil
}

func (vr *vtkReader) asciiValue() (float64, error) {
	tok, err := vr.asciiToken()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, incorrectFormat(vr.file, "bad value '%s'", tok)
	}
	return v, nil
}

// truncated converts an early EOF into a descriptive error; other errors
// pass through unchanged.
func (vr *vtkReader) truncated(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("'%s' is truncated: %w", vr.file, io.ErrUnexpectedEOF)
	}
	return err
}
