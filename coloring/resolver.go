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
	"path/filepath"
	"strings"
)

// Resolver maps portable file identifiers to local paths.  A Resolver for
// remote data might download the file before returning its path.
type Resolver interface {
	Resolve(fileID string) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(fileID string) (string, error)

// Resolve is part of the Resolver interface.
func (rf ResolverFunc) Resolve(fileID string) (string, error) {
	return rf(fileID)
}

// CheckFileID returns an error unless fileID is a relative, slash-separated
// path that stays within its root.
func CheckFileID(fileID string) error {
	switch {
	case fileID == "":
		return fmt.Errorf("empty file ID")
	case strings.Contains(fileID, `\`):
		return fmt.Errorf("file ID '%s' is not slash-separated", fileID)
	case path.IsAbs(fileID) || filepath.IsAbs(fileID) || filepath.VolumeName(fileID) != "":
		return fmt.Errorf("file ID '%s' is absolute", fileID)
	}
	clean := path.Clean(fileID)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("file ID '%s' does not name a file within its root", fileID)
	}
	return nil
}

// DirResolver resolves file identifiers relative to a root directory.
type DirResolver struct {
	Root string
}

// Resolve is part of the Resolver interface.
func (dr DirResolver) Resolve(fileID string) (string, error) {
	if err := CheckFileID(fileID); err != nil {
		return "", err
	}
	return filepath.Join(dr.Root, filepath.FromSlash(path.Clean(fileID))), nil
}

// FileID returns the portable identifier of the file at the provided path,
// which must lie within the receiver's root.
func (dr DirResolver) FileID(file string) (string, error) {
	root, err := filepath.Abs(dr.Root)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("'%s' is not within '%s': %w", file, dr.Root, err)
	}
	id := filepath.ToSlash(rel)
	if err := CheckFileID(id); err != nil {
		return "", fmt.Errorf("'%s' is not within '%s': %w", file, dr.Root, err)
	}
	return id, nil
}
