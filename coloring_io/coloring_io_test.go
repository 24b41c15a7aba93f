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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/astrogo/fitsio"
	"github.com/google/go-cmp/cmp"

	"github.com/ilhamster/platecoloring/tuple"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write '%s': %s", path, err)
	}
	return path
}

func TestVTKRoundTrip(t *testing.T) {
	for _, test := range []struct {
		description string
		rows        [][]float64
	}{{
		description: "scalar",
		rows:        [][]float64{{1.5}, {-2}, {3.25e-7}},
	}, {
		description: "vector",
		rows:        [][]float64{{1, 2, 3}, {4, 5, 6}},
	}, {
		description: "empty",
		rows:        [][]float64{},
	}} {
		t.Run(test.description, func(t *testing.T) {
			nf := 1
			if len(test.rows) > 0 {
				nf = len(test.rows[0])
			}
			var values []float64
			for _, row := range test.rows {
				values = append(values, row...)
			}
			data, err := tuple.NewTable(nf, values)
			if err != nil {
				t.Fatalf("NewTable() yielded unexpected error %s", err)
			}
			path := filepath.Join(t.TempDir(), "out.vtk")
			if err := (VTK{ArrayName: "Slope (deg)"}).Save(data, path); err != nil {
				t.Fatalf("Save() yielded unexpected error %s", err)
			}
			got, err := VTK{}.Load(path)
			if err != nil {
				t.Fatalf("Load() yielded unexpected error %s", err)
			}
			if got.NumberFields() != nf {
				t.Errorf("Load() yielded %d fields, wanted %d", got.NumberFields(), nf)
			}
			if diff := cmp.Diff(test.rows, tuple.Rows(got)); diff != "" {
				t.Errorf("Load() diff (-want +got) %s", diff)
			}
		})
	}
}

func binaryVTK(t *testing.T, header string, data any, trailer string) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString(header)
	if err := binary.Write(&buf, binary.BigEndian, data); err != nil {
		t.Fatalf("failed to encode binary data: %s", err)
	}
	buf.WriteString(trailer)
	return buf.Bytes()
}

func TestVTKLoad(t *testing.T) {
	for _, test := range []struct {
		description string
		content     func(t *testing.T) []byte
		wantRows    [][]float64
		wantErr     error
	}{{
		description: "ascii scalars after geometry and point data",
		content: func(t *testing.T) []byte {
			return []byte(`# vtk DataFile Version 3.0
shape
ASCII
DATASET POLYDATA
POINTS 3 float
0 0 0 1 0 0
0 1 0
POLYGONS 1 4
3 0 1 2
POINT_DATA 3
SCALARS height float 1
LOOKUP_TABLE default
9 9 9
CELL_DATA 1
SCALARS slope float 1
LOOKUP_TABLE default
12.5
`)
		},
		wantRows: [][]float64{{12.5}},
	}, {
		description: "ascii vectors without lookup table",
		content: func(t *testing.T) []byte {
			return []byte(`# vtk DataFile Version 2.0
gravity
ASCII
DATASET POLYDATA
POINTS 0 float
CELL_DATA 2
VECTORS g double
1 2 3
4 5 6
`)
		},
		wantRows: [][]float64{{1, 2, 3}, {4, 5, 6}},
	}, {
		description: "version 5.1 offsets and connectivity",
		content: func(t *testing.T) []byte {
			return []byte(`# vtk DataFile Version 5.1
vtk output
ASCII
DATASET POLYDATA
POINTS 3 float
0 0 0 1 0 0 0 1 0
METADATA
INFORMATION 0

POLYGONS 2 3
OFFSETS vtktypeint64
0 3
CONNECTIVITY vtktypeint64
0 1 2
CELL_DATA 1
FIELD FieldData 2
area 1 1 int
7
normal 3 1 float
0 0 1
`)
		},
		wantRows: [][]float64{{7}},
	}, {
		description: "binary geometry without cell data",
		content: func(t *testing.T) []byte {
			return binaryVTK(t, "# vtk DataFile Version 3.0\nbin\nBINARY\nDATASET POLYDATA\nPOINTS 1 float\n",
				[]float32{0, 0, 0},
				"")
		},
		wantErr: ErrFieldNotFound,
	}, {
		description: "not a vtk file",
		content: func(t *testing.T) []byte {
			return []byte("1,2,3\n4,5,6\n")
		},
		wantErr: ErrIncorrectFileFormat,
	}, {
		description: "no cell data",
		content: func(t *testing.T) []byte {
			return []byte("# vtk DataFile Version 3.0\nempty\nASCII\nDATASET POLYDATA\nPOINTS 0 float\n")
		},
		wantErr: ErrFieldNotFound,
	}, {
		description: "unknown encoding",
		content: func(t *testing.T) []byte {
			return []byte("# vtk DataFile Version 3.0\nodd\nEBCDIC\n")
		},
		wantErr: ErrIncorrectFileFormat,
	}, {
		description: "field array tuple count disagrees with cell data",
		content: func(t *testing.T) []byte {
			return []byte("# vtk DataFile Version 3.0\nbad\nASCII\nCELL_DATA 4\nFIELD f 1\na 3 4611686018427387904 double\n")
		},
		wantErr: ErrIncorrectFileFormat,
	}, {
		description: "overflowing array size",
		content: func(t *testing.T) []byte {
			return []byte("# vtk DataFile Version 3.0\nbad\nASCII\nCELL_DATA 4611686018427387904\nSCALARS s double 3\nLOOKUP_TABLE default\n1 2 3\n")
		},
		wantErr: ErrIncorrectFileFormat,
	}, {
		description: "overflowing point count",
		content: func(t *testing.T) []byte {
			return []byte("# vtk DataFile Version 3.0\nbad\nASCII\nPOINTS 4611686018427387904 float\n0 0 0\n")
		},
		wantErr: ErrIncorrectFileFormat,
	}, {
		description: "binary array larger than the file",
		content: func(t *testing.T) []byte {
			return binaryVTK(t, "# vtk DataFile Version 3.0\nbin\nBINARY\nCELL_DATA 1000000\nSCALARS s float 1\nLOOKUP_TABLE default\n",
				[]float32{1, 2},
				"\n")
		},
		wantErr: ErrIncorrectFileFormat,
	}, {
		description: "truncated array",
		content: func(t *testing.T) []byte {
			return []byte("# vtk DataFile Version 3.0\nshort\nASCII\nCELL_DATA 3\nSCALARS s double\n1 2\n")
		},
		wantErr: io.ErrUnexpectedEOF,
	}} {
		t.Run(test.description, func(t *testing.T) {
			path := writeFile(t, "in.vtk", test.content(t))
			got, err := VTK{}.Load(path)
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Fatalf("Load() yielded error %v, wanted %v", err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() yielded unexpected error %s", err)
			}
			if diff := cmp.Diff(test.wantRows, tuple.Rows(got)); diff != "" {
				t.Errorf("Load() diff (-want +got) %s", diff)
			}
		})
	}
}

func TestVTKBinaryFloatIsStrided(t *testing.T) {
	content := binaryVTK(t,
		"# vtk DataFile Version 3.0\nbin\nBINARY\nDATASET POLYDATA\nPOINTS 0 float\nCELL_DATA 2\nSCALARS s float 2\nLOOKUP_TABLE default\n",
		[]float32{1.5, -2, 3, 4},
		"\n")
	got, err := VTK{}.Load(writeFile(t, "bin.vtk", content))
	if err != nil {
		t.Fatalf("Load() yielded unexpected error %s", err)
	}
	strided, ok := got.(*tuple.Strided[float32])
	if !ok {
		t.Fatalf("Load() yielded %T, wanted *tuple.Strided[float32]", got)
	}
	if diff := cmp.Diff([][]float64{{1.5, -2}, {3, 4}}, tuple.Rows(strided)); diff != "" {
		t.Errorf("Load() diff (-want +got) %s", diff)
	}
}

func TestVTKBinaryIntegers(t *testing.T) {
	content := binaryVTK(t,
		"# vtk DataFile Version 3.0\nbin\nBINARY\nCELL_DATA 3\nFIELD FieldData 1\nlabels 1 3 int\n",
		[]int32{-1, 0, 70000},
		"\n")
	got, err := VTK{}.Load(writeFile(t, "bin.vtk", content))
	if err != nil {
		t.Fatalf("Load() yielded unexpected error %s", err)
	}
	if diff := cmp.Diff([][]float64{{-1}, {0}, {70000}}, tuple.Rows(got)); diff != "" {
		t.Errorf("Load() diff (-want +got) %s", diff)
	}
}

func TestCSVLoad(t *testing.T) {
	for _, test := range []struct {
		description string
		content     string
		columns     []int
		wantRows    [][]float64
		wantErr     error
	}{{
		description: "comma separated with comments",
		content:     "# slope, elevation\n1, 10\n\n2, 20\n3,30\n",
		columns:     []int{1},
		wantRows:    [][]float64{{10}, {20}, {30}},
	}, {
		description: "tab separated",
		content:     "1\t2\t3\n4\t5\t6\n",
		columns:     []int{2, 0},
		wantRows:    [][]float64{{3, 1}, {6, 4}},
	}, {
		description: "whitespace separated",
		content:     "  1.0   2.0  3.0\n4e1 5 -6\n",
		columns:     []int{0, 1, 2},
		wantRows:    [][]float64{{1, 2, 3}, {40, 5, -6}},
	}, {
		description: "missing column",
		content:     "1,2\n3,4\n",
		columns:     []int{0, 1, 2},
		wantErr:     ErrFieldNotFound,
	}, {
		description: "ragged lines",
		content:     "1,2\n3\n",
		columns:     []int{0},
		wantErr:     ErrIncorrectFileFormat,
	}, {
		description: "non-numeric",
		content:     "# vtk DataFile Version 3.0\ntitle\nASCII\n",
		columns:     []int{0},
		wantErr:     ErrIncorrectFileFormat,
	}, {
		description: "narrow non-numeric text",
		content:     "title line\n1 2\n",
		columns:     []int{0, 1, 2},
		wantErr:     ErrIncorrectFileFormat,
	}, {
		description: "no data lines",
		content:     "# only a comment\n\n",
		columns:     []int{0},
		wantErr:     ErrIncorrectFileFormat,
	}} {
		t.Run(test.description, func(t *testing.T) {
			path := writeFile(t, "in.csv", []byte(test.content))
			got, err := CSV{Columns: test.columns}.Load(path)
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Fatalf("Load() yielded error %v, wanted %v", err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() yielded unexpected error %s", err)
			}
			if diff := cmp.Diff(test.wantRows, tuple.Rows(got)); diff != "" {
				t.Errorf("Load() diff (-want +got) %s", diff)
			}
		})
	}
}

// writeFITS writes a FITS file whose first extension is a binary table of
// ncols double columns and nrows rows.  Row r, column c (1-based) holds
// c + 10*r.
func writeFITS(t *testing.T, ncols, nrows int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.fits")
	w, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create '%s': %s", path, err)
	}
	defer w.Close()
	f, err := fitsio.Create(w)
	if err != nil {
		t.Fatalf("fitsio.Create() yielded unexpected error %s", err)
	}
	defer f.Close()
	phdu, err := fitsio.NewPrimaryHDU(nil)
	if err != nil {
		t.Fatalf("fitsio.NewPrimaryHDU() yielded unexpected error %s", err)
	}
	if err := f.Write(phdu); err != nil {
		t.Fatalf("failed to write primary HDU: %s", err)
	}
	cols := make([]fitsio.Column, ncols)
	for c := range cols {
		cols[c] = fitsio.Column{Name: fmt.Sprintf("c%d", c+1), Format: "D"}
	}
	tbl, err := fitsio.NewTable("coloring", cols, fitsio.BINARY_TBL)
	if err != nil {
		t.Fatalf("fitsio.NewTable() yielded unexpected error %s", err)
	}
	defer tbl.Close()
	for r := 0; r < nrows; r++ {
		row := make([]any, ncols)
		for c := range row {
			v := float64(c + 1 + 10*r)
			row[c] = &v
		}
		if err := tbl.Write(row...); err != nil {
			t.Fatalf("failed to write row %d: %s", r, err)
		}
	}
	if err := f.Write(tbl); err != nil {
		t.Fatalf("failed to write table: %s", err)
	}
	return path
}

func TestFITSLoad(t *testing.T) {
	path := writeFITS(t, 9, 2)
	for _, test := range []struct {
		description string
		fits        FITS
		wantRows    [][]float64
		wantErr     error
	}{{
		description: "scalar column",
		fits:        FITS{Columns: []int{4}},
		wantRows:    [][]float64{{4}, {14}},
	}, {
		description: "vector columns in requested order",
		fits:        FITS{HDU: DefaultFITSHDU, Columns: []int{8, 4, 6}},
		wantRows:    [][]float64{{8, 4, 6}, {18, 14, 16}},
	}, {
		description: "missing column",
		fits:        FITS{Columns: []int{4, 10}},
		wantErr:     ErrFieldNotFound,
	}, {
		description: "missing HDU",
		fits:        FITS{HDU: 2, Columns: []int{1}},
		wantErr:     ErrFieldNotFound,
	}, {
		description: "negative HDU",
		fits:        FITS{HDU: -1, Columns: []int{1}},
		wantErr:     ErrFieldNotFound,
	}} {
		t.Run(test.description, func(t *testing.T) {
			got, err := test.fits.Load(path)
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Fatalf("Load() yielded error %v, wanted %v", err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() yielded unexpected error %s", err)
			}
			if diff := cmp.Diff(test.wantRows, tuple.Rows(got)); diff != "" {
				t.Errorf("Load() diff (-want +got) %s", diff)
			}
		})
	}
}

func TestLegacyLoadFITS(t *testing.T) {
	wide, narrow := writeFITS(t, 9, 2), writeFITS(t, 5, 2)
	for _, test := range []struct {
		description string
		legacy      Legacy
		path        string
		wantRows    [][]float64
	}{{
		description: "vector columns",
		legacy:      Legacy{Name: "Gravity"},
		path:        wide,
		wantRows:    [][]float64{{4, 6, 8}, {14, 16, 18}},
	}, {
		description: "too few columns for a vector falls back to scalar",
		legacy:      Legacy{Name: "Slope"},
		path:        narrow,
		wantRows:    [][]float64{{4}, {14}},
	}, {
		description: "error coloring",
		legacy:      Legacy{Name: "Slope Error"},
		path:        wide,
		wantRows:    [][]float64{{5}, {15}},
	}, {
		description: "vector error coloring",
		legacy:      Legacy{Name: "Gravity error", NumberFields: 3},
		path:        wide,
		wantRows:    [][]float64{{5, 7, 9}, {15, 17, 19}},
	}, {
		description: "explicit columns",
		legacy:      Legacy{Name: "Slope", FITSColumns: []int{2, 3}},
		path:        narrow,
		wantRows:    [][]float64{{2, 3}, {12, 13}},
	}} {
		t.Run(test.description, func(t *testing.T) {
			got, err := test.legacy.Load(test.path)
			if err != nil {
				t.Fatalf("Load() yielded unexpected error %s", err)
			}
			if diff := cmp.Diff(test.wantRows, tuple.Rows(got)); diff != "" {
				t.Errorf("Load() diff (-want +got) %s", diff)
			}
		})
	}
}

func TestFITSRejectsOtherFormats(t *testing.T) {
	path := writeFile(t, "in.csv", []byte("1,2,3\n"))
	if _, err := (FITS{Columns: []int{1}}).Load(path); !errors.Is(err, ErrIncorrectFileFormat) {
		t.Errorf("Load() yielded error %v, wanted %v", err, ErrIncorrectFileFormat)
	}
}

func TestMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	for _, test := range []struct {
		description string
		io          IO
	}{
		{"vtk", VTK{}},
		{"fits", FITS{Columns: []int{4}}},
		{"csv", CSV{Columns: []int{0}}},
		{"legacy", Legacy{Name: "Slope"}},
	} {
		t.Run(test.description, func(t *testing.T) {
			_, err := test.io.Load(missing)
			if !errors.Is(err, fs.ErrNotExist) {
				t.Errorf("Load() yielded error %v, wanted %v", err, fs.ErrNotExist)
			}
			var le *LegacyError
			if errors.As(err, &le) {
				t.Errorf("Load() yielded an aggregate error for a missing file")
			}
		})
	}
}

func TestReadOnlySaves(t *testing.T) {
	data, err := tuple.FromRows([]float64{1})
	if err != nil {
		t.Fatalf("FromRows() yielded unexpected error %s", err)
	}
	path := filepath.Join(t.TempDir(), "out")
	for _, test := range []struct {
		description string
		io          IO
	}{
		{"fits", FITS{Columns: []int{4}}},
		{"csv", CSV{Columns: []int{0}}},
		{"legacy", Legacy{Name: "Slope"}},
	} {
		t.Run(test.description, func(t *testing.T) {
			if err := test.io.Save(data, path); !errors.Is(err, ErrUnsupported) {
				t.Errorf("Save() yielded error %v, wanted %v", err, ErrUnsupported)
			}
		})
	}
}

func TestLegacyLoad(t *testing.T) {
	vtkFile := `# vtk DataFile Version 3.0
legacy
ASCII
CELL_DATA 2
SCALARS s double
LOOKUP_TABLE default
5 6
`
	for _, test := range []struct {
		description string
		legacy      Legacy
		content     string
		wantRows    [][]float64
		// Substrings the aggregate error must contain; empty if Load should
		// succeed.
		wantAttempts []string
	}{{
		description: "vector csv",
		legacy:      Legacy{Name: "Gravitational Acceleration"},
		content:     "1,2,3\n4,5,6\n",
		wantRows:    [][]float64{{1, 2, 3}, {4, 5, 6}},
	}, {
		description: "scalar csv falls back to the scalar tier",
		legacy:      Legacy{Name: "Slope"},
		content:     "1\n2\n",
		wantRows:    [][]float64{{1}, {2}},
	}, {
		description: "declared scalar skips the vector columns",
		legacy:      Legacy{Name: "Elevation", NumberFields: 1},
		content:     "1,2,3\n4,5,6\n",
		wantRows:    [][]float64{{1}, {4}},
	}, {
		description: "vtk",
		legacy:      Legacy{Name: "Slope"},
		content:     vtkFile,
		wantRows:    [][]float64{{5}, {6}},
	}, {
		description: "explicit columns",
		legacy:      Legacy{Name: "Custom", FITSColumns: []int{3, 4}},
		content:     "1 2 3\n4 5 6\n",
		wantRows:    [][]float64{{1, 2}, {4, 5}},
	}, {
		description:  "unreadable",
		legacy:       Legacy{Name: "Slope"},
		content:      "hello world\n",
		wantAttempts: []string{"fits", "vtk", "csv"},
	}, {
		description:  "error colorings are only read from fits",
		legacy:       Legacy{Name: "Slope Error"},
		content:      "1,2,3\n",
		wantAttempts: []string{"fits [5]", "fits [5 7 9]"},
	}} {
		t.Run(test.description, func(t *testing.T) {
			path := writeFile(t, "legacy.dat", []byte(test.content))
			got, err := test.legacy.Load(path)
			if len(test.wantAttempts) > 0 {
				var le *LegacyError
				if !errors.As(err, &le) {
					t.Fatalf("Load() yielded error %v, wanted a *LegacyError", err)
				}
				if !errors.Is(err, ErrIncorrectFileFormat) {
					t.Errorf("Load() error %v does not wrap %v", err, ErrIncorrectFileFormat)
				}
				for _, want := range test.wantAttempts {
					if !strings.Contains(err.Error(), want) {
						t.Errorf("Load() error '%s' does not mention '%s'", err, want)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() yielded unexpected error %s", err)
			}
			if diff := cmp.Diff(test.wantRows, tuple.Rows(got)); diff != "" {
				t.Errorf("Load() diff (-want +got) %s", diff)
			}
		})
	}
}

func TestLegacyErrorNamesFITSOnly(t *testing.T) {
	path := writeFile(t, "legacy.csv", []byte("1,2,3\n"))
	_, err := Legacy{Name: "Slope Error"}.Load(path)
	var le *LegacyError
	if !errors.As(err, &le) {
		t.Fatalf("Load() yielded error %v, wanted a *LegacyError", err)
	}
	if len(le.Attempts) != 2 {
		t.Errorf("Load() made %d attempts, wanted 2", len(le.Attempts))
	}
	for _, attempt := range le.Attempts {
		if !strings.HasPrefix(attempt.Error(), "fits") {
			t.Errorf("unexpected attempt '%s'", attempt)
		}
	}
}

func TestColumnIdentifiers(t *testing.T) {
	for _, test := range []struct {
		description string
		legacy      Legacy
		wantIDs     []any
	}{{
		description: "derived from name",
		legacy:      Legacy{Name: "Slope", NumberFields: 1},
		wantIDs:     []any{"Slope"},
	}, {
		description: "explicit columns",
		legacy:      Legacy{Name: "Slope", NumberFields: 2, FITSColumns: []int{4, 6}},
		wantIDs:     []any{4, 6},
	}} {
		t.Run(test.description, func(t *testing.T) {
			ids := test.legacy.ColumnIdentifiers()
			if diff := cmp.Diff(test.wantIDs, ids); diff != "" {
				t.Fatalf("ColumnIdentifiers() diff (-want +got) %s", diff)
			}
			got, err := LegacyFromIdentifiers(test.legacy.Name, test.legacy.NumberFields, ids)
			if err != nil {
				t.Fatalf("LegacyFromIdentifiers() yielded unexpected error %s", err)
			}
			if diff := cmp.Diff(test.legacy, got); diff != "" {
				t.Errorf("LegacyFromIdentifiers() diff (-want +got) %s", diff)
			}
		})
	}
	for _, bad := range [][]any{{}, {"a", "b"}, {0}, {1.5}} {
		if _, err := LegacyFromIdentifiers("x", 1, bad); err == nil {
			t.Errorf("LegacyFromIdentifiers(%v) yielded no error", bad)
		}
	}
}
