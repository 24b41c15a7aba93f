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

package service

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ilhamster/platecoloring/coloring"
	coloringio "github.com/ilhamster/platecoloring/coloring_io"
	coloringmanager "github.com/ilhamster/platecoloring/coloring_manager"
	"github.com/ilhamster/platecoloring/config"
	"github.com/ilhamster/platecoloring/metadata"
	testutil "github.com/ilhamster/platecoloring/test_util"
)

type fixture struct {
	cfg     *config.Config
	catalog string
}

var slopeRows = [][]float64{{1}, {2}, {3}}

// newFixture writes a data root holding CSV colorings at resolution 3 and a
// catalog registering them as built-in.
func newFixture(t *testing.T, names ...string) fixture {
	t.Helper()
	root := t.TempDir()
	resolver := coloring.DirResolver{Root: root}
	m := coloringmanager.New()
	for _, name := range names {
		fileID := "3/" + name + ".csv"
		testutil.WriteFile(t, root, fileID, testutil.CSVRows(slopeRows...))
		c, err := coloring.New(coloring.Description{
			Name:           name,
			Units:          "deg",
			NumberElements: 3,
			FieldNames:     []string{name},
		}, coloring.File{ID: fileID, IO: coloringio.CSV{Columns: []int{0}}, Resolver: resolver})
		if err != nil {
			t.Fatalf("coloring.New() yielded unexpected error %s", err)
		}
		if err := m.Add(c); err != nil {
			t.Fatalf("Add() yielded unexpected error %s", err)
		}
	}
	md, err := m.Store()
	if err != nil {
		t.Fatalf("Store() yielded unexpected error %s", err)
	}
	catalog := filepath.Join(root, "catalog.smd")
	if err := metadata.Save(catalog, md); err != nil {
		t.Fatalf("metadata.Save() yielded unexpected error %s", err)
	}
	cfg := config.Defaults()
	cfg.DataRoot = root
	cfg.CustomDir = t.TempDir()
	return fixture{cfg: &cfg, catalog: catalog}
}

func (f fixture) open(t *testing.T) *Service {
	t.Helper()
	s, err := New(f.cfg, nil)
	if err != nil {
		t.Fatalf("New() yielded unexpected error %s", err)
	}
	if err := s.Open(f.catalog); err != nil {
		t.Fatalf("Open() yielded unexpected error %s", err)
	}
	return s
}

func loaded(t *testing.T, s *Service, name string) bool {
	t.Helper()
	d, err := s.Get(name, 3)
	if err != nil {
		t.Fatalf("Get() yielded unexpected error %s", err)
	}
	return d.(*coloring.Coloring).Loaded()
}

func TestOpenAndQuery(t *testing.T) {
	s := newFixture(t, "Slope", "Elevation").open(t)
	if diff := cmp.Diff([]string{"Slope", "Elevation"}, s.Registry().Names()); diff != "" {
		t.Errorf("Registry().Names() diff (-want +got) %s", diff)
	}
	if loaded(t, s, "Slope") {
		t.Errorf("Open() loaded coloring data")
	}
	rng, err := s.Range("Slope", 3)
	if err != nil {
		t.Fatalf("Range() yielded unexpected error %s", err)
	}
	if diff := cmp.Diff(coloring.Range{Min: 1, Max: 3}, rng); diff != "" {
		t.Errorf("Range() diff (-want +got) %s", diff)
	}
	data, err := s.Data("Slope", 3)
	if err != nil {
		t.Fatalf("Data() yielded unexpected error %s", err)
	}
	testutil.CompareData(t, slopeRows, data)
	if _, err := s.Data("Slope", 4); !errors.Is(err, coloringmanager.ErrNotFound) {
		t.Errorf("Data() at an unknown resolution yielded error %v, wanted %v", err, coloringmanager.ErrNotFound)
	}
}

func TestOpenFailureLeavesRegistryUnchanged(t *testing.T) {
	f := newFixture(t, "Slope")
	s := f.open(t)
	if err := s.Open(filepath.Join(f.cfg.DataRoot, "absent.smd")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open() of a missing catalog yielded error %v, wanted %v", err, fs.ErrNotExist)
	}
	if !s.Registry().Has("Slope", 3) {
		t.Errorf("failed Open() changed the registry")
	}
}

func TestPreload(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e"}
	s := newFixture(t, names...).open(t)
	if err := s.Preload(context.Background(), 3); err != nil {
		t.Fatalf("Preload() yielded unexpected error %s", err)
	}
	for _, name := range names {
		if !loaded(t, s, name) {
			t.Errorf("Preload() did not load %s", name)
		}
	}
}

func TestPreloadBoundedByResidentCapacity(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	f.cfg.ResidentCapacity = 1
	f.cfg.PreloadParallelism = 1
	s := f.open(t)
	if err := s.Preload(context.Background(), 3); err != nil {
		t.Fatalf("Preload() yielded unexpected error %s", err)
	}
	count := 0
	for _, name := range []string{"a", "b", "c"} {
		if loaded(t, s, name) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("%d colorings remain loaded, wanted 1", count)
	}
}

func scalarVTK(values string) string {
	return "# vtk DataFile Version 3.0\nscalars\nASCII\nDATASET POLYDATA\nPOINTS 0 float\n" +
		"CELL_DATA 2\nSCALARS s float 1\nLOOKUP_TABLE default\n" + values + "\n"
}

func TestDataOutlivesEviction(t *testing.T) {
	f := newFixture(t)
	f.cfg.ResidentCapacity = 1
	s := f.open(t)
	testutil.WriteFile(t, f.cfg.DataRoot, "2/a.vtk", scalarVTK("1.5 2.5"))
	testutil.WriteFile(t, f.cfg.DataRoot, "2/b.vtk", scalarVTK("3.5 4.5"))
	for _, name := range []string{"a", "b"} {
		desc := coloring.Description{Name: name, NumberElements: 2, FieldNames: []string{name}}
		if _, err := s.Import(desc, "2/"+name+".vtk"); err != nil {
			t.Fatalf("Import() yielded unexpected error %s", err)
		}
	}
	a, err := s.Data("a", 2)
	if err != nil {
		t.Fatalf("Data() yielded unexpected error %s", err)
	}
	if _, err := s.Data("b", 2); err != nil {
		t.Fatalf("Data() yielded unexpected error %s", err)
	}
	want := [][]float64{{1.5}, {2.5}}
	testutil.CompareData(t, want, a)

	// Exports run alongside evicting loads still write complete data.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				s.Data("b", 2)
				s.Data("a", 2)
			}
		}()
	}
	if err := s.Export("a", 2, "out/a.vtk"); err != nil {
		t.Errorf("Export() yielded unexpected error %s", err)
	}
	wg.Wait()
	got, err := coloringio.VTK{}.Load(filepath.Join(f.cfg.DataRoot, "out", "a.vtk"))
	if err != nil {
		t.Fatalf("Load() yielded unexpected error %s", err)
	}
	testutil.CompareData(t, want, got)
}

func TestPreloadFailures(t *testing.T) {
	f := newFixture(t, "a", "b")
	s := f.open(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Preload(ctx, 3); !errors.Is(err, context.Canceled) {
		t.Errorf("Preload() with a cancelled context yielded error %v, wanted %v", err, context.Canceled)
	}
	if err := os.Remove(filepath.Join(f.cfg.DataRoot, "3", "b.csv")); err != nil {
		t.Fatalf("failed to remove coloring file: %s", err)
	}
	err := s.Preload(context.Background(), 3)
	var le *coloring.LoadError
	if !errors.As(err, &le) || le.FileID != "3/b.csv" {
		t.Errorf("Preload() with a missing file yielded error %v, wanted a load error for 3/b.csv", err)
	}
}

func TestImportAndRemove(t *testing.T) {
	f := newFixture(t, "Slope")
	s := f.open(t)
	testutil.WriteFile(t, f.cfg.DataRoot, "3/albedo.csv", testutil.CSVRows([]float64{0.1}, []float64{0.2}, []float64{0.3}))
	albedo := coloring.Description{Name: "Albedo", NumberElements: 3, FieldNames: []string{"Albedo"}}
	c, err := s.Import(albedo, "3/albedo.csv")
	if err != nil {
		t.Fatalf("Import() yielded unexpected error %s", err)
	}
	if !s.IsCustom(c) || !c.Loaded() {
		t.Errorf("Import() did not register a loaded custom coloring")
	}
	if _, err := os.Stat(filepath.Join(f.cfg.CustomDir, coloringmanager.CustomFileName())); err != nil {
		t.Errorf("Import() did not save the custom file: %s", err)
	}

	for _, test := range []struct {
		description string
		desc        coloring.Description
		fileID      string
		wantErr     error
	}{{
		description: "built-in key",
		desc:        coloring.Description{Name: "Slope", NumberElements: 3, FieldNames: []string{"Slope"}},
		fileID:      "3/albedo.csv",
		wantErr:     coloringmanager.ErrDuplicate,
	}, {
		description: "wrong number of records",
		desc:        coloring.Description{Name: "Albedo", NumberElements: 4, FieldNames: []string{"Albedo"}},
		fileID:      "3/albedo.csv",
		wantErr:     coloring.ErrInvalidConfiguration,
	}, {
		description: "missing file",
		desc:        coloring.Description{Name: "Gravity", NumberElements: 3, FieldNames: []string{"Gravity"}},
		fileID:      "3/gravity.csv",
		wantErr:     fs.ErrNotExist,
	}} {
		t.Run(test.description, func(t *testing.T) {
			if _, err := s.Import(test.desc, test.fileID); !errors.Is(err, test.wantErr) {
				t.Errorf("Import() yielded error %v, wanted %v", err, test.wantErr)
			}
		})
	}
	if s.Registry().Len() != 2 {
		t.Errorf("failed imports changed the registry")
	}
	if _, err := s.Import(albedo, "../albedo.csv"); err == nil {
		t.Errorf("Import() of an escaping file ID yielded no error")
	}

	// A fresh service sees the saved custom coloring.
	reopened := f.open(t)
	d, err := reopened.Get("Albedo", 3)
	if err != nil {
		t.Fatalf("Get() yielded unexpected error %s", err)
	}
	if !reopened.IsCustom(d) {
		t.Errorf("reopened Albedo is not custom")
	}

	if err := reopened.RemoveCustom("Slope", 3); !errors.Is(err, coloring.ErrInvalidConfiguration) {
		t.Errorf("RemoveCustom() of a built-in coloring yielded error %v, wanted %v", err, coloring.ErrInvalidConfiguration)
	}
	if err := reopened.RemoveCustom("Albedo", 3); err != nil {
		t.Fatalf("RemoveCustom() yielded unexpected error %s", err)
	}
	if f.open(t).Registry().Has("Albedo", 3) {
		t.Errorf("RemoveCustom() did not save the custom file")
	}
}

func TestExport(t *testing.T) {
	f := newFixture(t, "Slope")
	s := f.open(t)
	if err := s.Export("Slope", 3, "out/slope.vtk"); err != nil {
		t.Fatalf("Export() yielded unexpected error %s", err)
	}
	got, err := coloringio.VTK{}.Load(filepath.Join(f.cfg.DataRoot, "out", "slope.vtk"))
	if err != nil {
		t.Fatalf("Load() yielded unexpected error %s", err)
	}
	testutil.CompareData(t, slopeRows, got)
	if err := s.Export("Slope", 3, "/tmp/slope.vtk"); err == nil {
		t.Errorf("Export() to an absolute file ID yielded no error")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.ResidentCapacity = 0
	if _, err := New(&cfg, nil); err == nil {
		t.Errorf("New() with zero capacity yielded no error")
	}
}
