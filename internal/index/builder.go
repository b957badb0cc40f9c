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

package index

import (
	"fmt"
	"io"

	"github.com/biogo/hts/sam"

	"github.com/googlegenomics/bamtarget/internal/alignment"
	"github.com/googlegenomics/bamtarget/internal/bgzf"
	"github.com/googlegenomics/bamtarget/internal/fault"
)

// unset marks linear index windows that no record has touched yet.
const unset = bgzf.LastAddress

// Builder accumulates records from a coordinate-sorted stream.  A Builder
// is used for a single stream and must be created with NewBuilder.
type Builder struct {
	references []*Reference
	file       File
}

// NewBuilder returns a Builder for a file with header h.  The header must
// declare coordinate sort order; the records themselves are not checked.
func NewBuilder(h *sam.Header) (*Builder, error) {
	if !alignment.IsCoordinateSorted(h) {
		return nil, fault.Errorf(fault.NotCoordinateSorted, "declared sort order is %q", h.SortOrder)
	}

	b := &Builder{references: make([]*Reference, len(h.Refs()))}
	for i := range b.references {
		b.references[i] = &Reference{Bins: make(map[uint32][]*bgzf.Chunk)}
	}
	return b, nil
}

// Add records the alignment described by s.
func (b *Builder) Add(s alignment.Summary) error {
	chunk := &bgzf.Chunk{Start: s.Chunk.Start, End: s.Chunk.End}

	if !s.HasPosition() {
		b.file.UnplacedChunks = append(b.file.UnplacedChunks, chunk)
		b.file.Unplaced++
		if !s.Mapped {
			b.file.Unmapped++
		}
		return nil
	}

	if int(s.ReferenceID) >= len(b.references) {
		return fault.Errorf(fault.MalformedRecord, "reference %d outside header (%d references)", s.ReferenceID, len(b.references))
	}
	if s.End < s.Start || s.End > maximumReadLength {
		return fault.Errorf(fault.MalformedRecord, "alignment [%d, %d] cannot be binned", s.Start, s.End)
	}
	ref := b.references[s.ReferenceID]

	bin := binFor(s.Start, s.End)
	ref.Bins[bin] = append(ref.Bins[bin], chunk)

	first, last := int((s.Start-1)>>linearWindowShift), int((s.End-1)>>linearWindowShift)
	for len(ref.Intervals) <= last {
		ref.Intervals = append(ref.Intervals, unset)
	}
	for i := first; i <= last; i++ {
		if chunk.Start < ref.Intervals[i] {
			ref.Intervals[i] = chunk.Start
		}
	}

	if ref.Metadata == nil {
		ref.Metadata = &Metadata{Start: chunk.Start}
	}
	ref.Metadata.End = chunk.End
	if s.Mapped {
		ref.Metadata.Mapped++
		b.file.Mapped++
	} else {
		ref.Metadata.Unmapped++
		b.file.Unmapped++
	}
	return nil
}

// Build merges the chunks of every bin, fills the gaps in the linear index
// and returns the finished index.
func (b *Builder) Build() *File {
	for _, ref := range b.references {
		for id, chunks := range ref.Bins {
			ref.Bins[id] = bgzf.Merge(chunks)
		}

		var previous bgzf.Address
		for i, offset := range ref.Intervals {
			if offset == unset {
				ref.Intervals[i] = previous
			} else {
				previous = offset
			}
		}
	}

	file := b.file
	file.References = b.references
	file.UnplacedChunks = bgzf.Merge(b.file.UnplacedChunks)
	return &file
}

// Build reads every record from r and returns the index of the stream.
func Build(r *alignment.Reader) (*File, error) {
	b, err := NewBuilder(r.Header())
	if err != nil {
		return nil, err
	}
	for n := 1; ; n++ {
		_, summary, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := b.Add(summary); err != nil {
			return nil, fmt.Errorf("indexing record %d: %w", n, err)
		}
	}
	return b.Build(), nil
}
