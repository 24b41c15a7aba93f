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

package tuple

import (
	"fmt"
	"sync"
)

// Number is the set of element types a Strided buffer may hold.
type Number interface {
	~float32 | ~float64 | ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Strided is an Indexable view over an externally owned buffer.  Record i,
// field f lives at buf[offset + i*stride + f].  Values are widened to
// float64 on access; the buffer is never copied.
//
// Once Release has been called the view is empty and the buffer is handed
// back to its owner through the release callback, if one was provided.
type Strided[T Number] struct {
	mu           sync.RWMutex
	buf          []T
	size         int
	numberFields int
	offset       int
	stride       int
	release      func()
}

// NewStrided returns a Strided view of size records of numberFields fields
// over buf.  A zero stride means records are packed (stride ==
// numberFields).  release, which may be nil, is invoked once by Release.
func NewStrided[T Number](buf []T, size, numberFields, offset, stride int, release func()) (*Strided[T], error) {
	if numberFields < 1 {
		return nil, fmt.Errorf("a strided view needs at least one field, got %d", numberFields)
	}
	if stride == 0 {
		stride = numberFields
	}
	if stride < numberFields {
		return nil, fmt.Errorf("stride %d is narrower than the %d fields of a record", stride, numberFields)
	}
	if size < 0 || offset < 0 {
		return nil, fmt.Errorf("invalid strided view (size %d, offset %d)", size, offset)
	}
	if size > 0 && offset+(size-1)*stride+numberFields > len(buf) {
		return nil, fmt.Errorf("buffer of %d elements is too short for %d records of stride %d at offset %d", len(buf), size, stride, offset)
	}
	return &Strided[T]{
		buf:          buf,
		size:         size,
		numberFields: numberFields,
		offset:       offset,
		stride:       stride,
		release:      release,
	}, nil
}

// Size is part of the Indexable interface.
func (s *Strided[T]) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// NumberFields is part of the Indexable interface.
func (s *Strided[T]) NumberFields() int {
	return s.numberFields
}

// Get is part of the Indexable interface.  It panics if i is out of range,
// including after Release.
func (s *Strided[T]) Get(i int) Tuple {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= s.size {
		panic(fmt.Sprintf("record %d out of range [0, %d)", i, s.size))
	}
	start := s.offset + i*s.stride
	return stridedTuple[T](s.buf[start : start+s.numberFields : start+s.numberFields])
}

// Release drops the receiver's reference to its buffer and notifies the
// buffer's owner.  Subsequent calls do nothing.
func (s *Strided[T]) Release() {
	s.mu.Lock()
	release := s.release
	s.buf, s.size, s.release = nil, 0, nil
	s.mu.Unlock()
	if release != nil {
		release()
	}
}

type stridedTuple[T Number] []T

func (st stridedTuple[T]) Size() int {
	return len(st)
}

func (st stridedTuple[T]) Get(i int) float64 {
	return float64(st[i])
}
