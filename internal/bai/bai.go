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

// Package bai provides support for reading and writing BAM index files.
package bai

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/googlegenomics/bamtarget/internal/bgzf"
	"github.com/googlegenomics/bamtarget/internal/binary"
	"github.com/googlegenomics/bamtarget/internal/fault"
	"github.com/googlegenomics/bamtarget/internal/index"
)

const (
	magic = "BAI\x01"

	// This ID is used as a virtual bin ID for per-reference metadata.
	metadataID = 37450

	// Limits that prevent arbitrarily long allocations due to malformed data.
	maximumBins      = 37450
	maximumChunks    = 1 << 20
	maximumIntervals = 1 << 15
)

type binHeader struct {
	ID     uint32
	Chunks int32
}

// WriteIndex writes f to w in the BAI format.
func WriteIndex(w io.Writer, f *index.File) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(magic); err != nil {
		return fmt.Errorf("writing magic: %v", err)
	}
	if err := binary.Write(bw, int32(len(f.References))); err != nil {
		return fmt.Errorf("writing reference count: %v", err)
	}
	for i, ref := range f.References {
		if err := writeReference(bw, ref); err != nil {
			return fmt.Errorf("writing reference %d: %v", i, err)
		}
	}
	if err := binary.Write(bw, f.Unplaced); err != nil {
		return fmt.Errorf("writing unplaced count: %v", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing index: %v", err)
	}
	return nil
}

func writeReference(w io.Writer, ref *index.Reference) error {
	ids := make([]uint32, 0, len(ref.Bins))
	for id := range ref.Bins {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	bins := int32(len(ids))
	if ref.Metadata != nil {
		bins++
	}
	if err := binary.Write(w, bins); err != nil {
		return fmt.Errorf("writing bin count: %v", err)
	}
	for _, id := range ids {
		chunks := ref.Bins[id]
		if err := binary.Write(w, binHeader{id, int32(len(chunks))}); err != nil {
			return fmt.Errorf("writing bin %d header: %v", id, err)
		}
		for _, chunk := range chunks {
			if err := binary.Write(w, chunk); err != nil {
				return fmt.Errorf("writing bin %d chunk: %v", id, err)
			}
		}
	}
	if m := ref.Metadata; m != nil {
		metadata := []interface{}{
			binHeader{metadataID, 2},
			bgzf.Chunk{Start: m.Start, End: m.End},
			[]uint64{m.Mapped, m.Unmapped},
		}
		for _, v := range metadata {
			if err := binary.Write(w, v); err != nil {
				return fmt.Errorf("writing metadata: %v", err)
			}
		}
	}

	if err := binary.Write(w, int32(len(ref.Intervals))); err != nil {
		return fmt.Errorf("writing interval count: %v", err)
	}
	if err := binary.Write(w, ref.Intervals); err != nil {
		return fmt.Errorf("writing offsets: %v", err)
	}
	return nil
}

// WriteFile writes f to a new index file at path.
func WriteFile(path string, f *index.File) error {
	out, err := os.Create(path)
	if err != nil {
		return fault.New(fault.IOFailure, "creating "+path, err)
	}
	if err := WriteIndex(out, f); err != nil {
		out.Close()
		return fault.New(fault.IOFailure, "writing "+path, err)
	}
	if err := out.Close(); err != nil {
		return fault.New(fault.IOFailure, "closing "+path, err)
	}
	return nil
}

// ReadIndex reads a BAI file from r.  The chunks of unplaced records are not
// stored in the format, so UnplacedChunks is always empty, and unplaced
// records are all counted as unmapped.
func ReadIndex(r io.Reader) (*index.File, error) {
	r = bufio.NewReader(r)
	if err := binary.ExpectBytes(r, []byte(magic)); err != nil {
		return nil, fmt.Errorf("reading magic: %v", err)
	}

	var references int32
	if err := binary.Read(r, &references); err != nil {
		return nil, fmt.Errorf("reading reference count: %v", err)
	}
	if references < 0 {
		return nil, fmt.Errorf("invalid reference count (%d references)", references)
	}

	f := &index.File{}
	for i := int32(0); i < references; i++ {
		ref, err := readReference(r)
		if err != nil {
			return nil, fmt.Errorf("reading reference %d: %v", i, err)
		}
		f.References = append(f.References, ref)
		if ref.Metadata != nil {
			f.Mapped += ref.Metadata.Mapped
			f.Unmapped += ref.Metadata.Unmapped
		}
	}

	// The unplaced count is optional.
	if err := binary.Read(r, &f.Unplaced); err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading unplaced count: %v", err)
	}
	f.Unmapped += f.Unplaced
	return f, nil
}

func readReference(r io.Reader) (*index.Reference, error) {
	var bins int32
	if err := binary.Read(r, &bins); err != nil {
		return nil, fmt.Errorf("reading bin count: %v", err)
	}
	if bins < 0 || bins > maximumBins {
		return nil, fmt.Errorf("invalid bin count (%d bins)", bins)
	}

	ref := &index.Reference{Bins: make(map[uint32][]*bgzf.Chunk)}
	for j := int32(0); j < bins; j++ {
		var bin binHeader
		if err := binary.Read(r, &bin); err != nil {
			return nil, fmt.Errorf("reading bin header: %v", err)
		}
		if bin.Chunks < 0 || bin.Chunks > maximumChunks {
			return nil, fmt.Errorf("invalid chunk count (%d chunks)", bin.Chunks)
		}
		chunks := make([]*bgzf.Chunk, bin.Chunks)
		for k := range chunks {
			chunks[k] = &bgzf.Chunk{}
			if err := binary.Read(r, chunks[k]); err != nil {
				return nil, fmt.Errorf("reading chunk: %v", err)
			}
		}
		if bin.ID == metadataID {
			if len(chunks) != 2 {
				return nil, fmt.Errorf("invalid metadata (%d chunks)", len(chunks))
			}
			ref.Metadata = &index.Metadata{
				Start:    chunks[0].Start,
				End:      chunks[0].End,
				Mapped:   uint64(chunks[1].Start),
				Unmapped: uint64(chunks[1].End),
			}
			continue
		}
		ref.Bins[bin.ID] = chunks
	}

	var intervals int32
	if err := binary.Read(r, &intervals); err != nil {
		return nil, fmt.Errorf("reading interval count: %v", err)
	}
	if intervals < 0 || intervals > maximumIntervals {
		return nil, fmt.Errorf("invalid interval count (%d intervals)", intervals)
	}
	if intervals > 0 {
		ref.Intervals = make([]bgzf.Address, intervals)
		if err := binary.Read(r, ref.Intervals); err != nil {
			return nil, fmt.Errorf("reading offsets: %v", err)
		}
	}
	return ref, nil
}

// ReadFile reads the index file at path.
func ReadFile(path string) (*index.File, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fault.New(fault.IOFailure, "opening "+path, err)
	}
	defer in.Close()

	f, err := ReadIndex(in)
	if err != nil {
		return nil, fault.New(fault.IOFailure, "reading "+path, err)
	}
	return f, nil
}
