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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "platecoloring.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %s", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	for _, test := range []struct {
		description string
		content     string
		env         map[string]string
		want        Config
		wantErr     bool
	}{{
		description: "empty file yields defaults",
		content:     "",
		want:        Defaults(),
	}, {
		description: "file overrides defaults",
		content: `data_root: /data/shapes
resident_capacity: 2
log_level: debug
`,
		want: Config{
			DataRoot:           "/data/shapes",
			CustomDir:          ".",
			ResidentCapacity:   2,
			PreloadParallelism: 4,
			LogLevel:           "debug",
		},
	}, {
		description: "environment overrides file",
		content:     "preload_parallelism: 2\n",
		env:         map[string]string{"PLATECOLORING_PRELOAD_PARALLELISM": "8"},
		want: Config{
			DataRoot:           ".",
			CustomDir:          ".",
			ResidentCapacity:   16,
			PreloadParallelism: 8,
			LogLevel:           "info",
		},
	}, {
		description: "zero capacity",
		content:     "resident_capacity: 0\n",
		wantErr:     true,
	}, {
		description: "negative parallelism",
		content:     "preload_parallelism: -1\n",
		wantErr:     true,
	}, {
		description: "malformed file",
		content:     "data_root: [unterminated\n",
		wantErr:     true,
	}} {
		t.Run(test.description, func(t *testing.T) {
			for k, v := range test.env {
				t.Setenv(k, v)
			}
			got, err := Load(nil, writeConfig(t, test.content))
			if (err != nil) != test.wantErr {
				t.Fatalf("Load() yielded error %v, wanted error: %t", err, test.wantErr)
			}
			if err != nil {
				return
			}
			if diff := cmp.Diff(test.want, *got); diff != "" {
				t.Errorf("Load() diff (-want +got) %s", diff)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(nil, filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Errorf("Load() of an explicit missing file yielded no error")
	}
	// Without an explicit path, no file at all means defaults.
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() yielded unexpected error %s", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir() yielded unexpected error %s", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())
	got, err := Load(nil, "")
	if err != nil {
		t.Fatalf("Load() yielded unexpected error %s", err)
	}
	if diff := cmp.Diff(Defaults(), *got); diff != "" {
		t.Errorf("Load() diff (-want +got) %s", diff)
	}
}

func TestLoadPrefersBoundValues(t *testing.T) {
	v := viper.New()
	v.Set(ResidentCapacity, 3)
	got, err := Load(v, writeConfig(t, "resident_capacity: 5\n"))
	if err != nil {
		t.Fatalf("Load() yielded unexpected error %s", err)
	}
	if got.ResidentCapacity != 3 {
		t.Errorf("Load() yielded resident capacity %d, wanted 3", got.ResidentCapacity)
	}
}
