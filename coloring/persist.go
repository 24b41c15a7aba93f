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
	"path"
	"strings"

	coloringio "github.com/ilhamster/platecoloring/coloring_io"
	"github.com/ilhamster/platecoloring/metadata"
)

// Keys of a coloring's metadata block.
var (
	NameKey              = metadata.NewKey[string]("Coloring name")
	UnitsKey             = metadata.NewKey[string]("Coloring units")
	NumberElementsKey    = metadata.NewKey[int]("Number of elements")
	FieldNamesKey        = metadata.NewKey[[]string]("Element names")
	HasNullsKey          = metadata.NewKey[bool]("Coloring has nulls")
	FileIDKey            = metadata.NewKey[string]("File name")
	ColumnIdentifiersKey = metadata.NewKey[[]any]("Column identifiers")
)

// FileID returns the receiver's file identifier, or false if its data does
// not come from a file.
func (c *Coloring) FileID() (string, bool) {
	fb, ok := c.source.(fileBacked)
	if !ok {
		return "", false
	}
	return fb.FileID(), true
}

// Metadata returns a metadata block from which Restore can rebuild the
// receiver.  Only file-backed colorings can be persisted.  The receiver's
// data is not loaded.
func (c *Coloring) Metadata() (*metadata.Metadata, error) {
	f, ok := c.source.(File)
	if !ok {
		return nil, fmt.Errorf("%w: coloring %s is not file-backed and cannot be persisted", ErrInvalidConfiguration, c.desc)
	}
	md := metadata.New(metadata.Current(metadata.ColoringSchema))
	metadata.Put(md, NameKey, c.desc.Name)
	metadata.Put(md, UnitsKey, c.desc.Units)
	metadata.Put(md, NumberElementsKey, c.desc.NumberElements)
	metadata.Put(md, FieldNamesKey, c.Description().FieldNames)
	metadata.Put(md, HasNullsKey, c.desc.HasNulls)
	metadata.Put(md, FileIDKey, f.ID)
	if l, ok := f.Legacy(); ok {
		metadata.Put(md, ColumnIdentifiersKey, l.ColumnIdentifiers())
	}
	return md, nil
}

// Save writes the receiver's data back to its file, loading it first if
// necessary.
func (c *Coloring) Save() error {
	f, ok := c.source.(File)
	if !ok {
		return fmt.Errorf("%w: coloring %s is not file-backed and cannot be saved", ErrInvalidConfiguration, c.desc)
	}
	data, err := c.Data()
	if err != nil {
		return err
	}
	file, err := f.Resolver.Resolve(f.ID)
	if err != nil {
		return err
	}
	if err := f.IO.Save(data, file); err != nil {
		return fmt.Errorf("failed to save coloring %s to '%s': %w", c.desc, f.ID, err)
	}
	return nil
}

// Bootstrap chooses the IO strategy for a coloring restored from metadata,
// which does not record the strategy that wrote it.
type Bootstrap func(desc Description, fileID string) (coloringio.IO, error)

// ByExtension is a Bootstrap inferring the strategy from the file
// identifier's extension.  Delimited text and FITS tables are read from
// their leading columns, one per field.
func ByExtension(desc Description, fileID string) (coloringio.IO, error) {
	nf := desc.NumberFields()
	switch ext := strings.ToLower(path.Ext(fileID)); ext {
	case ".vtk":
		return coloringio.VTK{ArrayName: desc.Name}, nil
	case ".csv", ".txt", ".tab":
		cols := make([]int, nf)
		for i := range cols {
			cols[i] = i
		}
		return coloringio.CSV{Columns: cols}, nil
	case ".fits", ".fit", ".fts":
		cols := make([]int, nf)
		for i := range cols {
			cols[i] = i + 1
		}
		return coloringio.FITS{HDU: coloringio.DefaultFITSHDU, Columns: cols}, nil
	default:
		return nil, fmt.Errorf("no coloring format is associated with '%s'", fileID)
	}
}

// Restore rebuilds an unloaded coloring from a block written by Metadata.
// Blocks carrying column identifiers are loaded through the legacy
// strategy; otherwise bootstrap chooses the strategy.
func Restore(md *metadata.Metadata, resolver Resolver, bootstrap Bootstrap) (*Coloring, error) {
	if err := metadata.Check(metadata.ColoringSchema, md.Version()); err != nil {
		return nil, err
	}
	var desc Description
	var err error
	if desc.Name, err = metadata.Get(md, NameKey); err != nil {
		return nil, err
	}
	if desc.Units, err = metadata.GetOr(md, UnitsKey, ""); err != nil {
		return nil, err
	}
	if desc.NumberElements, err = metadata.Get(md, NumberElementsKey); err != nil {
		return nil, err
	}
	if desc.FieldNames, err = metadata.Get(md, FieldNamesKey); err != nil {
		return nil, err
	}
	if desc.HasNulls, err = metadata.GetOr(md, HasNullsKey, false); err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	fileID, err := metadata.Get(md, FileIDKey)
	if err != nil {
		return nil, err
	}
	if err := CheckFileID(fileID); err != nil {
		return nil, fmt.Errorf("%w: coloring %s: %s", ErrInvalidConfiguration, desc, err)
	}
	var source File
	if md.Has(ColumnIdentifiersKey.Name()) {
		ids, err := metadata.Get(md, ColumnIdentifiersKey)
		if err != nil {
			return nil, err
		}
		legacy, err := coloringio.LegacyFromIdentifiers(desc.Name, desc.NumberFields(), ids)
		if err != nil {
			return nil, fmt.Errorf("%w: coloring %s: %s", ErrInvalidConfiguration, desc, err)
		}
		source = LegacyFile(fileID, legacy, resolver)
	} else {
		if bootstrap == nil {
			return nil, fmt.Errorf("%w: no strategy for coloring %s", ErrInvalidConfiguration, desc)
		}
		io, err := bootstrap(desc, fileID)
		if err != nil {
			return nil, err
		}
		source = File{ID: fileID, IO: io, Resolver: resolver}
	}
	return New(desc, source)
}
