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

package metadata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrIncompatibleVersion is returned when a document's version cannot be
// read by this version of the software.
var ErrIncompatibleVersion = errors.New("incompatible metadata version")

// Version is a major.minor metadata format version.
type Version struct {
	Major, Minor int
}

// String returns the version as "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// ParseVersion parses a "major.minor" string.
func ParseVersion(s string) (Version, error) {
	majorStr, minorStr, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return Version{}, fmt.Errorf("version '%s' is not of the form major.minor", s)
	}
	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return Version{}, fmt.Errorf("version '%s' has a bad major number: %w", s, err)
	}
	minor, err := strconv.Atoi(minorStr)
	if err != nil {
		return Version{}, fmt.Errorf("version '%s' has a bad minor number: %w", s, err)
	}
	if major < 0 || minor < 0 {
		return Version{}, fmt.Errorf("version '%s' has a negative component", s)
	}
	return Version{Major: major, Minor: minor}, nil
}

// Schema names one kind of metadata block.  Every schema's current version
// lives in one table, so that compatibility is decided in one place.
type Schema string

// Known schemas.
const (
	// ColoringSchema is a single coloring's block.
	ColoringSchema Schema = "coloring"
	// ManagerSchema is a registry of colorings.
	ManagerSchema Schema = "coloring-manager"
	// PartitionSchema holds both the built-in and custom registries.
	PartitionSchema Schema = "coloring-partition"
	// CustomSchema is the dedicated custom-coloring file.
	CustomSchema Schema = "custom-coloring"
)

var schemas = map[Schema]Version{
	ColoringSchema:  {Major: 1, Minor: 0},
	ManagerSchema:   {Major: 1, Minor: 0},
	PartitionSchema: {Major: 1, Minor: 0},
	CustomSchema:    {Major: 1, Minor: 0},
}

// Current returns the version written for the specified schema.  It panics
// on an unknown schema, which is a programming error.
func Current(s Schema) Version {
	v, ok := schemas[s]
	if !ok {
		panic(fmt.Sprintf("unknown metadata schema '%s'", s))
	}
	return v
}

// Check returns nil if a block of the specified schema written at version v
// can be read: the major versions must match and v may not be newer than
// the current version.
func Check(s Schema, v Version) error {
	cur := Current(s)
	if v.Major != cur.Major || v.Minor > cur.Minor {
		return fmt.Errorf("%w: %s block has version %s, this build reads %d.x up to %s", ErrIncompatibleVersion, s, v, cur.Major, cur)
	}
	return nil
}
