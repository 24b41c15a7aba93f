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
	"math"

	"github.com/ilhamster/platecoloring/tuple"
)

// Range is a closed interval of coloring values.
type Range struct {
	Min, Max float64
}

func (r Range) String() string {
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

// validValue returns true if v is finite and representable as a float32;
// coloring files frequently originate as single-precision data.
func validValue(v float64) bool {
	return !math.IsNaN(v) && v >= -math.MaxFloat32 && v <= math.MaxFloat32
}

// ComputeRange returns the range of the valid values across every field of
// every record in data.  Values are valid if they are finite and within
// float32 bounds.  If hasNulls is true, the lowest valid value is taken to be
// a null sentinel, and the minimum is the next-lowest distinct value if
// there is one.
//
// ComputeRange returns ErrInvalidConfiguration if data holds no valid
// value.
func ComputeRange(data tuple.Indexable, hasNulls bool) (Range, error) {
	lowest, nextLowest, maximum := math.MaxFloat64, math.MaxFloat64, -math.MaxFloat64
	found, foundNext := false, false
	for i := 0; i < data.Size(); i++ {
		t := data.Get(i)
		for f := 0; f < t.Size(); f++ {
			v := t.Get(f)
			if !validValue(v) {
				continue
			}
			switch {
			case !found:
				lowest, found = v, true
			case v < lowest:
				nextLowest, foundNext = lowest, true
				lowest = v
			case v > lowest && v < nextLowest:
				nextLowest, foundNext = v, true
			}
			if v > maximum {
				maximum = v
			}
		}
	}
	if !found {
		return Range{}, fmt.Errorf("%w: no valid values among %d records", ErrInvalidConfiguration, data.Size())
	}
	lo := lowest
	if hasNulls && foundNext {
		lo = nextLowest
	}
	if maximum < lo {
		return Range{}, fmt.Errorf("%w: empty range [%g, %g]", ErrInvalidConfiguration, lo, maximum)
	}
	return Range{Min: lo, Max: maximum}, nil
}
