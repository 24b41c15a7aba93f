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

package coloring

import (
	"fmt"

	coloringio "github.com/ilhamster/platecoloring/coloring_io"
	"github.com/ilhamster/platecoloring/tuple"
)

// borrowed hides the Release method of data the coloring does not own.
type borrowed struct {
	tuple.Indexable
}

// Constant is a Source providing precomputed data.  The data is never
// released by the colorings it backs.
type Constant struct {
	Data tuple.Indexable
}

// Provide is part of the Source interface.
func (c Constant) Provide() (tuple.Indexable, error) {
	if c.Data == nil {
		return nil, fmt.Errorf("no constant data")
	}
	return borrowed{c.Data}, nil
}

// Copy is a Source providing a copy of another coloring's data, loading it
// if necessary.  The copy is independent of From: clearing either coloring
// does not affect the other.
type Copy struct {
	From ColoringData
}

// Provide is part of the Source interface.
func (c Copy) Provide() (tuple.Indexable, error) {
	data, err := c.From.Data()
	if err != nil {
		return nil, err
	}
	return tuple.Copy(data), nil
}

// fileBacked is implemented by Sources that load from a file.
type fileBacked interface {
	FileID() string
}

// File is a Source loading data from a file with an IO strategy.
type File struct {
	// ID is the file's portable identifier, resolved to a path by Resolver
	// on every load.
	ID       string
	IO       coloringio.IO
	Resolver Resolver
}

// FileID returns the receiver's file identifier.
func (f File) FileID() string {
	return f.ID
}

// Provide is part of the Source interface.
func (f File) Provide() (tuple.Indexable, error) {
	path, err := f.Resolver.Resolve(f.ID)
	if err != nil {
		return nil, err
	}
	return f.IO.Load(path)
}

// Legacy returns the receiver's legacy strategy, or false if it is not
// loaded through one.
func (f File) Legacy() (coloringio.Legacy, bool) {
	l, ok := f.IO.(coloringio.Legacy)
	return l, ok
}

// LegacyFile returns a File source loading fileID through the legacy
// strategy.  The strategy's column identifiers are persisted with the
// coloring's metadata.
func LegacyFile(fileID string, legacy coloringio.Legacy, resolver Resolver) File {
	return File{
		ID:       fileID,
		IO:       legacy,
		Resolver: resolver,
	}
}
