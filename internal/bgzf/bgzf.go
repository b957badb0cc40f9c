// Copyright 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bgzf provides support for BGZF virtual addresses and the chunks
// built from them.
package bgzf

import (
	"fmt"
	"sort"
	"strconv"

	hts "github.com/biogo/hts/bgzf"
)

// LastAddress is the maximum valid BGZF address.
const LastAddress = Address(0xffffffffffffffff)

// Address stores a BGZF "virtual address".  The lower 16 bits store the data
// offset inside the uncompressed stream and upper 48 bits store the block
// offset inside the compressed archive set.
type Address uint64

// BlockOffset returns the offset to the start of the compressed block.
func (v Address) BlockOffset() uint64 {
	return uint64(v >> 16)
}

// DataOffset returns the offset to the data in the uncompressed block.
func (v Address) DataOffset() uint16 {
	return uint16(v & 0xffff)
}

// String returns a representation of v that can be parsed with ParseAddress.
func (v Address) String() string {
	return strconv.FormatUint(uint64(v), 16)
}

// ParseAddress attempts to parse input into an Address.
func ParseAddress(input string) (Address, error) {
	v, err := strconv.ParseUint(input, 16, 64)
	return Address(v), err
}

// NewAddress returns a new Address with the provided offsets.
func NewAddress(blockOffset uint64, dataOffset uint16) Address {
	return Address(blockOffset<<16 | uint64(dataOffset))
}

// FromOffset converts a decoder offset into an Address.
func FromOffset(o hts.Offset) Address {
	return NewAddress(uint64(o.File), o.Block)
}

// Chunk specifies a region from Start to End inside a BGZF file.  End is the
// address immediately after the last byte of the region.
type Chunk struct {
	Start, End Address
}

// FromChunk converts a decoder chunk into a Chunk.
func FromChunk(c hts.Chunk) Chunk {
	return Chunk{FromOffset(c.Begin), FromOffset(c.End)}
}

// String returns a human readable description of the receiver.
func (v *Chunk) String() string {
	return fmt.Sprintf("[%s-%s]", v.Start, v.End)
}

// Contains reports whether other lies entirely inside v.
func (v *Chunk) Contains(other Chunk) bool {
	return v.Start <= other.Start && other.End <= v.End
}

// Merge joins intersecting or touching chunks in input.  A chunk is folded
// into its predecessor when it starts at or before the predecessor's end.
// The input is ordered by start address first; chunks recorded in stream
// order are already sorted so their relative order is unchanged.
func Merge(input []*Chunk) []*Chunk {
	if len(input) == 0 {
		return nil
	}
	sort.SliceStable(input, func(i, j int) bool {
		return input[i].Start < input[j].Start
	})

	var (
		merged = []*Chunk{{input[0].Start, input[0].End}}
		output = merged[0]
	)
	for i := 1; i < len(input); i++ {
		if input[i].Start <= output.End {
			if output.End < input[i].End {
				output.End = input[i].End
			}
		} else {
			merged = append(merged, &Chunk{input[i].Start, input[i].End})
			output = merged[len(merged)-1]
		}
	}
	return merged
}
