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

// Package service ties plate coloring registries to a data root, a bounded
// set of resident colorings, and the custom-coloring file.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ilhamster/platecoloring/coloring"
	coloringio "github.com/ilhamster/platecoloring/coloring_io"
	coloringmanager "github.com/ilhamster/platecoloring/coloring_manager"
	"github.com/ilhamster/platecoloring/config"
	datacache "github.com/ilhamster/platecoloring/data_cache"
	"github.com/ilhamster/platecoloring/metadata"
	"github.com/ilhamster/platecoloring/tuple"
)

// Service serves colorings from a data root.  Service is safe for concurrent
// use.
type Service struct {
	cfg      config.Config
	log      *zap.Logger
	resolver coloring.DirResolver
	resident *datacache.Resident

	mu       sync.RWMutex
	registry *coloringmanager.Partitioned
}

// New returns a new Service with an empty registry.  If log is nil, nothing
// is logged.
func New(cfg *config.Config, log *zap.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	resident, err := datacache.New(cfg.ResidentCapacity, datacache.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:      *cfg,
		log:      log,
		resolver: coloring.DirResolver{Root: cfg.DataRoot},
		resident: resident,
		registry: coloringmanager.NewPartitioned(),
	}, nil
}

// Resolver returns the resolver mapping file IDs under the data root.
func (s *Service) Resolver() coloring.DirResolver {
	return s.resolver
}

// Open replaces the registry.  Built-in colorings are read from the
// registry document at catalogPath, if it is not empty, and custom colorings
// from the custom-coloring file in the configured custom directory.  If
// Open fails, the registry is unchanged.
func (s *Service) Open(catalogPath string) error {
	registry := coloringmanager.NewPartitioned()
	if catalogPath != "" {
		md, err := metadata.Load(catalogPath)
		if err != nil {
			return fmt.Errorf("failed to read catalog '%s': %w", catalogPath, err)
		}
		builtIn := coloringmanager.New()
		if err := builtIn.Retrieve(md, s.resolver, coloring.ByExtension); err != nil {
			return fmt.Errorf("failed to restore catalog '%s': %w", catalogPath, err)
		}
		for _, d := range builtIn.All() {
			if err := registry.AddBuiltIn(d); err != nil {
				return err
			}
		}
	}
	if err := registry.LoadCustom(s.cfg.CustomDir, s.resolver, coloring.ByExtension); err != nil {
		return fmt.Errorf("failed to read custom colorings: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resident.Purge()
	s.registry = registry
	s.log.Info("opened coloring registry",
		zap.String("catalog", catalogPath),
		zap.Int("built_in", registry.BuiltIn().Len()),
		zap.Int("custom", registry.Custom().Len()))
	return nil
}

// Registry returns a snapshot of the merged registry.
func (s *Service) Registry() *coloringmanager.Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.All()
}

// IsCustom returns true if d is a custom coloring.
func (s *Service) IsCustom(d coloring.ColoringData) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.IsCustom(d)
}

// Get returns the coloring registered under the provided name and
// resolution.
func (s *Service) Get(name string, numberElements int) (coloring.ColoringData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Get(name, numberElements)
}

// Data returns the data of the coloring registered under the provided name
// and resolution, loading it if necessary.
func (s *Service) Data(name string, numberElements int) (tuple.Indexable, error) {
	d, err := s.Get(name, numberElements)
	if err != nil {
		return nil, err
	}
	return s.resident.Data(d)
}

// Range returns the default range of the coloring registered under the
// provided name and resolution, loading it if necessary.
func (s *Service) Range(name string, numberElements int) (coloring.Range, error) {
	d, err := s.Get(name, numberElements)
	if err != nil {
		return coloring.Range{}, err
	}
	return s.resident.DefaultRange(d)
}

// Preload loads every coloring registered at the provided resolution, at
// most the configured parallelism at a time.  It stops at the first error or
// when ctx is cancelled.  If more colorings are preloaded than may be
// resident, the least recently loaded are cleared again.
func (s *Service) Preload(ctx context.Context, numberElements int) error {
	s.mu.RLock()
	colorings := s.registry.All().GetAt(numberElements)
	s.mu.RUnlock()
	if len(colorings) > s.cfg.ResidentCapacity {
		s.log.Warn("preloading more colorings than may be resident",
			zap.Int("colorings", len(colorings)),
			zap.Int("resident_capacity", s.cfg.ResidentCapacity))
	}
	errg, ctx := errgroup.WithContext(ctx)
	errg.SetLimit(s.cfg.PreloadParallelism)
	for _, d := range colorings {
		d := d
		errg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := s.resident.Data(d); err != nil {
				return err
			}
			s.log.Debug("preloaded coloring", zap.Stringer("coloring", d.Description()))
			return nil
		})
	}
	return errg.Wait()
}

// Import registers a custom coloring reading fileID, a file under the data
// root whose strategy is inferred from its extension, and saves the custom
// partition.  The file is loaded before registration, so a coloring that
// cannot be read is never registered.
func (s *Service) Import(desc coloring.Description, fileID string) (*coloring.Coloring, error) {
	if err := coloring.CheckFileID(fileID); err != nil {
		return nil, err
	}
	strategy, err := coloring.ByExtension(desc, fileID)
	if err != nil {
		return nil, err
	}
	c, err := coloring.New(desc, coloring.File{ID: fileID, IO: strategy, Resolver: s.resolver})
	if err != nil {
		return nil, err
	}
	if _, err := s.resident.Data(c); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.registry.AddCustom(c); err != nil {
		s.resident.Evict(c)
		return nil, err
	}
	if err := s.registry.SaveCustom(s.cfg.CustomDir); err != nil {
		s.registry.RemoveCustom(desc.Name, desc.NumberElements)
		s.resident.Evict(c)
		return nil, fmt.Errorf("failed to save custom colorings: %w", err)
	}
	s.log.Info("imported custom coloring",
		zap.Stringer("coloring", desc),
		zap.String("file_id", fileID))
	return c, nil
}

// RemoveCustom unregisters a custom coloring and saves the custom partition.
func (s *Service) RemoveCustom(name string, numberElements int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.registry.Get(name, numberElements)
	if err != nil {
		return err
	}
	if !s.registry.IsCustom(d) {
		return fmt.Errorf("%w: %s is built in", coloring.ErrInvalidConfiguration, coloringmanager.KeyOf(d))
	}
	if err := s.registry.RemoveCustom(name, numberElements); err != nil {
		return err
	}
	s.resident.Evict(d)
	if err := s.registry.SaveCustom(s.cfg.CustomDir); err != nil {
		return fmt.Errorf("failed to save custom colorings: %w", err)
	}
	return nil
}

// Export writes the data of the coloring registered under the provided name
// and resolution to fileID, under the data root, as a VTK file.
func (s *Service) Export(name string, numberElements int, fileID string) error {
	d, err := s.Get(name, numberElements)
	if err != nil {
		return err
	}
	data, err := s.resident.Data(d)
	if err != nil {
		return err
	}
	path, err := s.resolver.Resolve(fileID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out := coloringio.VTK{ArrayName: d.Description().Name}
	if err := out.Save(data, path); err != nil {
		return fmt.Errorf("failed to export %s: %w", coloringmanager.KeyOf(d), err)
	}
	s.log.Debug("exported coloring",
		zap.Stringer("coloring", d.Description()),
		zap.String("file_id", fileID))
	return nil
}
