// Copyright 2018 Google Inc.
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

// Package index builds and queries the binning index of a coordinate-sorted
// alignment file, as described in section 5 of the SAM specification.
package index

import (
	"github.com/googlegenomics/bamtarget/internal/bgzf"
	"github.com/googlegenomics/bamtarget/internal/fault"
)

const (
	// The maximum read length as constrained by the size of the level zero bin
	// in the SAM specification, section 5.1.1.
	maximumReadLength = 1 << 29

	// The size of each tiling window from the linear index, as specified in the
	// SAM specification section 5.1.3.
	linearWindowShift = 14
	linearWindowSize  = 1 << linearWindowShift
)

// File is the in-memory form of a binning index.
type File struct {
	// References holds one entry per header reference, in header order.
	References []*Reference
	// Mapped and Unmapped count records by their unmapped flag.
	Mapped, Unmapped uint64
	// Unplaced counts records without an alignment position.
	Unplaced uint64
	// UnplacedChunks covers the records counted by Unplaced.
	UnplacedChunks []*bgzf.Chunk
}

// Reference is the index of a single reference sequence.
type Reference struct {
	// Bins maps bin IDs to the chunks holding records assigned to the bin.
	Bins map[uint32][]*bgzf.Chunk
	// Intervals is the linear index: for each 16kbp window, the lowest
	// address of any record overlapping the window.
	Intervals []bgzf.Address
	// Metadata is nil if no records are placed on the reference.
	Metadata *Metadata
}

// Metadata summarizes the records placed on a reference.
type Metadata struct {
	// Start and End are the addresses of the first and past the last record.
	Start, End bgzf.Address
	// Mapped and Unmapped count placed records by their unmapped flag.
	Mapped, Unmapped uint64
}

// Validate checks that f declares exactly references references.
func (f *File) Validate(references int) error {
	if got := len(f.References); got != references {
		return fault.Errorf(fault.ReferenceCountMismatch, "index has %d references, header declares %d", got, references)
	}
	return nil
}

// Query returns merged chunks covering every record that overlaps the
// 1-based closed range [start, end] on the given reference.  A negative
// referenceID selects the unplaced records.
func (f *File) Query(referenceID int32, start, end int64) []*bgzf.Chunk {
	if referenceID < 0 {
		return bgzf.Merge(copyChunks(f.UnplacedChunks))
	}
	if int(referenceID) >= len(f.References) || start < 1 || end < start {
		return nil
	}
	ref := f.References[referenceID]

	var firstReadOffset bgzf.Address
	if index := int((start - 1) >> linearWindowShift); index < len(ref.Intervals) {
		firstReadOffset = ref.Intervals[index]
	}

	var candidates []*bgzf.Chunk
	for _, id := range binsForRange(uint32(start-1), uint32(end)) {
		for _, chunk := range ref.Bins[uint32(id)] {
			if chunk.End < firstReadOffset {
				continue
			}
			candidates = append(candidates, &bgzf.Chunk{Start: chunk.Start, End: chunk.End})
		}
	}
	return bgzf.Merge(candidates)
}

func copyChunks(chunks []*bgzf.Chunk) []*bgzf.Chunk {
	copied := make([]*bgzf.Chunk, len(chunks))
	for i, chunk := range chunks {
		copied[i] = &bgzf.Chunk{Start: chunk.Start, End: chunk.End}
	}
	return copied
}

// binFor returns the smallest bin that contains the 1-based closed range
// [start, end].  This is derived from the C examples in the SAM
// specification, section 5.3.
func binFor(start, end int64) uint32 {
	beg, last := uint32(start-1), uint32(end-1)
	switch {
	case beg>>14 == last>>14:
		return ((1<<15)-1)/7 + beg>>14
	case beg>>17 == last>>17:
		return ((1<<12)-1)/7 + beg>>17
	case beg>>20 == last>>20:
		return ((1<<9)-1)/7 + beg>>20
	case beg>>23 == last>>23:
		return ((1<<6)-1)/7 + beg>>23
	case beg>>26 == last>>26:
		return ((1<<3)-1)/7 + beg>>26
	}
	return 0
}

// binsForRange returns every bin overlapping the 0-based half-open range
// [start, end).  This function is derived from the C examples in the BAM
// index specification.
func binsForRange(start, end uint32) []uint16 {
	if end == 0 || end > maximumReadLength {
		end = maximumReadLength
	}
	if end <= start {
		return nil
	}
	if start > maximumReadLength {
		return nil
	}

	end--

	bins := []uint16{0}
	for k := uint16(1 + (start >> 26)); k <= uint16(1+(end>>26)); k++ {
		bins = append(bins, k)
	}
	for k := uint16(9 + (start >> 23)); k <= uint16(9+(end>>23)); k++ {
		bins = append(bins, k)
	}
	for k := uint16(73 + (start >> 20)); k <= uint16(73+(end>>20)); k++ {
		bins = append(bins, k)
	}
	for k := uint16(585 + (start >> 17)); k <= uint16(585+(end>>17)); k++ {
		bins = append(bins, k)
	}
	for k := uint16(4681 + (start >> 14)); k <= uint16(4681+(end>>14)); k++ {
		bins = append(bins, k)
	}
	return bins
}
