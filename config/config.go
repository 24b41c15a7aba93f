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

// Package config loads plate coloring settings from a YAML file, the
// environment, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Setting names, as used in the configuration file and with viper.BindPFlag.
const (
	DataRoot           = "data_root"
	CustomDir          = "custom_dir"
	ResidentCapacity   = "resident_capacity"
	PreloadParallelism = "preload_parallelism"
	LogLevel           = "log_level"
)

// EnvPrefix prefixes environment variables overriding settings, as in
// PLATECOLORING_DATA_ROOT.
const EnvPrefix = "PLATECOLORING"

// Config holds plate coloring settings.
type Config struct {
	// DataRoot is the directory coloring file IDs are resolved against.
	DataRoot string `mapstructure:"data_root"`
	// CustomDir holds the custom-coloring file.
	CustomDir string `mapstructure:"custom_dir"`
	// ResidentCapacity bounds how many colorings keep their data loaded.
	ResidentCapacity   int    `mapstructure:"resident_capacity"`
	PreloadParallelism int    `mapstructure:"preload_parallelism"`
	LogLevel           string `mapstructure:"log_level"`
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		DataRoot:           ".",
		CustomDir:          ".",
		ResidentCapacity:   16,
		PreloadParallelism: 4,
		LogLevel:           "info",
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault(DataRoot, d.DataRoot)
	v.SetDefault(CustomDir, d.CustomDir)
	v.SetDefault(ResidentCapacity, d.ResidentCapacity)
	v.SetDefault(PreloadParallelism, d.PreloadParallelism)
	v.SetDefault(LogLevel, d.LogLevel)
}

// Load reads the configuration into v, which may already have flags bound
// to it, and returns the result.  If path is empty, platecoloring.yaml is
// looked for in the working directory and then in
// $HOME/.config/platecoloring; a missing file is not an error.  If v is nil,
// a fresh viper instance is used.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("platecoloring")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "platecoloring"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that settings are usable.
func (c *Config) Validate() error {
	if c.ResidentCapacity < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", ResidentCapacity, c.ResidentCapacity)
	}
	if c.PreloadParallelism < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", PreloadParallelism, c.PreloadParallelism)
	}
	if c.DataRoot == "" {
		return fmt.Errorf("%s must not be empty", DataRoot)
	}
	if c.CustomDir == "" {
		return fmt.Errorf("%s must not be empty", CustomDir)
	}
	return nil
}
