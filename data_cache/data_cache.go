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

// Package datacache bounds how many colorings keep their data loaded at
// once.
package datacache

import (
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/simplelru"
	"go.uber.org/zap"

	"github.com/ilhamster/platecoloring/coloring"
	"github.com/ilhamster/platecoloring/tuple"
)

// Resident tracks the most recently used colorings.  When more than its
// capacity have been used, the least recently used coloring is cleared, so
// that it reloads when next used.  Data already returned for an evicted
// coloring stays valid for its holders.
//
// Resident is safe for concurrent use.
type Resident struct {
	mu sync.Mutex
	// An LRU cache keyed and valued by coloring.
	lru *simplelru.LRU
	log *zap.Logger
}

// Option configures a Resident.
type Option func(*Resident)

// WithLogger logs evictions to the provided logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Resident) {
		r.log = log
	}
}

// New returns a new Resident holding at most capacity loaded colorings.
func New(capacity int, opts ...Option) (*Resident, error) {
	r := &Resident{
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	lru, err := simplelru.NewLRU(capacity, r.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create resident set of capacity %d: %w", capacity, err)
	}
	r.lru = lru
	return r, nil
}

func (r *Resident) onEvict(key, value any) {
	d, ok := value.(coloring.ColoringData)
	if !ok {
		return
	}
	desc := d.Description()
	r.log.Debug("clearing coloring",
		zap.String("name", desc.Name),
		zap.Int("number_elements", desc.NumberElements))
	d.Clear()
}

// touch marks d as most recently used, evicting if necessary.
func (r *Resident) touch(d coloring.ColoringData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lru.Add(d, d)
}

// Data returns d's data, loading it if necessary, and marks d as most
// recently used.
func (r *Resident) Data(d coloring.ColoringData) (tuple.Indexable, error) {
	data, err := d.Data()
	if err != nil {
		return nil, err
	}
	r.touch(d)
	return data, nil
}

// DefaultRange returns d's default range, loading its data if necessary,
// and marks d as most recently used.
func (r *Resident) DefaultRange(d coloring.ColoringData) (coloring.Range, error) {
	rng, err := d.DefaultRange()
	if err != nil {
		return coloring.Range{}, err
	}
	r.touch(d)
	return rng, nil
}

// Contains returns true if d is currently tracked.
func (r *Resident) Contains(d coloring.ColoringData) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Contains(d)
}

// Evict clears d and stops tracking it.
func (r *Resident) Evict(d coloring.ColoringData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.lru.Remove(d) {
		d.Clear()
	}
}

// Purge clears every tracked coloring.
func (r *Resident) Purge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lru.Purge()
}

// Len returns the number of tracked colorings.
func (r *Resident) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}
