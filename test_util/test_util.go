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

// Package testutil provides types and methods facilitating testing of
// colorings and their registries.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ilhamster/platecoloring/tuple"
)

// CountingSource is a coloring source double that counts how often its data
// is provided and released.  Each Provide returns a fresh releasable view of
// a private copy of the source's values.
type CountingSource struct {
	numberFields int
	values       []float64
	err          error
	gate         <-chan struct{}

	provides atomic.Int64
	releases atomic.Int64
}

// NewCountingSource returns a CountingSource providing the provided rows,
// which must all have the same length.
func NewCountingSource(rows ...[]float64) *CountingSource {
	cs := &CountingSource{numberFields: 1}
	if len(rows) > 0 {
		cs.numberFields = len(rows[0])
	}
	for _, row := range rows {
		cs.values = append(cs.values, row...)
	}
	return cs
}

// WithError makes the receiver's Provide fail with the provided error.  It
// supports chaining.
func (cs *CountingSource) WithError(err error) *CountingSource {
	cs.err = err
	return cs
}

// WithGate makes the receiver's Provide block until the provided channel is
// closed.  It supports chaining.
func (cs *CountingSource) WithGate(gate <-chan struct{}) *CountingSource {
	cs.gate = gate
	return cs
}

// Provide returns a fresh view of the receiver's values.
func (cs *CountingSource) Provide() (tuple.Indexable, error) {
	if cs.gate != nil {
		<-cs.gate
	}
	cs.provides.Add(1)
	if cs.err != nil {
		return nil, cs.err
	}
	buf := append([]float64(nil), cs.values...)
	return tuple.NewStrided(buf, len(buf)/cs.numberFields, cs.numberFields, 0, 0, func() {
		cs.releases.Add(1)
	})
}

// Provides returns the number of times the receiver's data was provided.
func (cs *CountingSource) Provides() int {
	return int(cs.provides.Load())
}

// Releases returns the number of provided views that have been released.
func (cs *CountingSource) Releases() int {
	return int(cs.releases.Load())
}

// Table returns a Table of the provided rows, failing the test if they are
// ragged.
func Table(t *testing.T, rows ...[]float64) *tuple.Table {
	t.Helper()
	tab, err := tuple.FromRows(rows...)
	if err != nil {
		t.Fatalf("failed to build table: %s", err)
	}
	return tab
}

// WriteFile writes content to the named file under dir, creating any
// missing parent directories, and returns its path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for '%s': %s", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write '%s': %s", path, err)
	}
	return path
}

// CSVRows renders the provided rows as comma-separated text.
func CSVRows(rows ...[]float64) string {
	var sb strings.Builder
	for _, row := range rows {
		for idx, v := range row {
			if idx > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "%g", v)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// CompareData compares the contents of got with the provided rows, raising
// an error on the provided testing.T if they differ.
func CompareData(t *testing.T, want [][]float64, got tuple.Indexable) {
	t.Helper()
	if diff := cmp.Diff(want, tuple.Rows(got)); diff != "" {
		t.Errorf("Got data %v, diff (-want +got) %s", tuple.Rows(got), diff)
	}
}
