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
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ilhamster/platecoloring/tuple"
)

// CSV loads coloring data from numbered columns of a delimited text file.
// The delimiter (comma, tab, or runs of spaces) is detected from the first
// data line.  Blank lines and lines beginning with '#' are ignored.  Saving
// is not supported.
type CSV struct {
	// Columns are the 0-based indices of the columns to read, one per
	// field.
	Columns []int
}

var _ IO = CSV{}

func (c CSV) String() string {
	return fmt.Sprintf("csv columns %v", c.Columns)
}

// Load is part of the IO interface.
func (c CSV) Load(file string) (tuple.Indexable, error) {
	if len(c.Columns) == 0 {
		return nil, fmt.Errorf("no CSV columns requested for '%s'", file)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	records, err := csvRecords(data)
	if err != nil {
		return nil, incorrectFormat(file, "%s", err)
	}
	if len(records) == 0 {
		return nil, incorrectFormat(file, "no data lines")
	}
	// A non-numeric first line is a format mismatch, not a missing column.
	first := records[0]
	for idx, field := range first.fields {
		if _, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err != nil {
			return nil, incorrectFormat(file, "line %d column %d: bad value '%s'", first.line, idx, field)
		}
	}
	width := len(first.fields)
	for _, col := range c.Columns {
		if col < 0 || col >= width {
			return nil, fieldNotFound(file, "no column %d (lines have %d)", col, width)
		}
	}
	values := make([]float64, 0, len(records)*len(c.Columns))
	for _, rec := range records {
		if len(rec.fields) != width {
			return nil, incorrectFormat(file, "line %d has %d columns, expected %d", rec.line, len(rec.fields), width)
		}
		for _, col := range c.Columns {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec.fields[col]), 64)
			if err != nil {
				return nil, incorrectFormat(file, "line %d column %d: bad value '%s'", rec.line, col, rec.fields[col])
			}
			values = append(values, v)
		}
	}
	return tuple.NewTable(len(c.Columns), values)
}

// Save is part of the IO interface.  Delimited text is read-only.
func (c CSV) Save(data tuple.Indexable, file string) error {
	return fmt.Errorf("%w: saving delimited text", ErrUnsupported)
}

type csvRecord struct {
	line   int
	fields []string
}

func isCSVSkipped(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || strings.HasPrefix(trimmed, "#")
}

// csvRecords splits data into records, detecting the delimiter from the first
// data line.
func csvRecords(data []byte) ([]csvRecord, error) {
	var first string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if line := sc.Text(); !isCSVSkipped(line) {
			first = line
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	var delim rune
	switch {
	case first == "":
		return nil, nil
	case strings.ContainsRune(first, ','):
		delim = ','
	case strings.ContainsRune(first, '\t'):
		delim = '\t'
	default:
		return whitespaceRecords(data)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.Comment = '#'
	r.TrimLeadingSpace = true
	// Widths are checked by the caller so that errors name the file.
	r.FieldsPerRecord = -1
	var ret []csvRecord
	for {
		fields, err := r.Read()
		if err == io.EOF {
			return ret, nil
		}
		if err != nil {
			return nil, err
		}
		line, _ := r.FieldPos(0)
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}
		ret = append(ret, csvRecord{line: line, fields: fields})
	}
}

func whitespaceRecords(data []byte) ([]csvRecord, error) {
	var ret []csvRecord
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; sc.Scan(); line++ {
		text := sc.Text()
		if isCSVSkipped(text) {
			continue
		}
		ret = append(ret, csvRecord{line: line, fields: strings.Fields(text)})
	}
	return ret, sc.Err()
}
