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

// Package alignment reads and writes BAM files and reduces each alignment
// record to the coordinates needed for classification and indexing.
package alignment

import (
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"

	"github.com/googlegenomics/bamtarget/internal/bgzf"
	"github.com/googlegenomics/bamtarget/internal/fault"
)

const (
	// The maximum alignment end as constrained by the size of the level zero
	// bin in the SAM specification, section 5.1.1.
	maximumPosition = 1 << 29

	// BGZF work is kept on the calling goroutine.
	concurrency = 1
)

// Summary holds the coordinates of a single alignment record together with
// the exact span the record occupies in its BGZF stream.
type Summary struct {
	// ReferenceID is the header index of the record's reference, or -1.
	ReferenceID int32
	// Start and End are the 1-based, inclusive alignment bounds.  Both are
	// zero when the record has no resolvable alignment position.
	Start, End int64
	// Mapped is false when the record carries the unmapped flag.
	Mapped bool
	// Chunk spans the record's bytes from the end of the previous record.
	Chunk bgzf.Chunk
}

// HasPosition reports whether the record is placed on a reference.
func (s Summary) HasPosition() bool {
	return s.ReferenceID >= 0 && s.Start > 0
}

// Summarize computes the Summary of rec.  references is the number of
// references declared by the header rec was read with.
func Summarize(rec *sam.Record, references int, chunk bgzf.Chunk) (Summary, error) {
	summary := Summary{
		ReferenceID: int32(rec.Ref.ID()),
		Mapped:      rec.Flags&sam.Unmapped == 0,
		Chunk:       chunk,
	}
	if int(summary.ReferenceID) >= references {
		return Summary{}, fault.Errorf(fault.MalformedRecord, "record %q: reference %d outside header (%d references)", rec.Name, summary.ReferenceID, references)
	}
	if summary.ReferenceID < 0 || rec.Pos < 0 {
		summary.ReferenceID = -1
		return summary, nil
	}

	start, end := int64(rec.Pos)+1, int64(rec.End())
	if start > maximumPosition || end > maximumPosition {
		return Summary{}, fault.Errorf(fault.MalformedRecord, "record %q: alignment [%d, %d] exceeds maximum position %d", rec.Name, start, end, maximumPosition)
	}
	// Records that consume no reference bases (e.g. placed unmapped reads)
	// occupy their start position only.
	if end < start {
		end = start
	}
	summary.Start, summary.End = start, end
	return summary, nil
}

// IsCoordinateSorted reports whether the header declares coordinate order.
func IsCoordinateSorted(h *sam.Header) bool {
	return h.SortOrder == sam.Coordinate
}

// ReferenceIDs maps each reference name in h to its index.
func ReferenceIDs(h *sam.Header) map[string]int32 {
	ids := make(map[string]int32)
	for _, ref := range h.Refs() {
		ids[ref.Name()] = int32(ref.ID())
	}
	return ids
}

// Reader is a single-pass source of alignment records.
type Reader struct {
	r          *bam.Reader
	references int
	records    int64
}

// NewReader reads the BAM header from r and returns a Reader positioned at
// the first record.
func NewReader(r io.Reader) (*Reader, error) {
	br, err := bam.NewReader(r, concurrency)
	if err != nil {
		return nil, fault.New(fault.IOFailure, "reading BAM header", err)
	}
	return &Reader{r: br, references: len(br.Header().Refs())}, nil
}

// Header returns the header of the underlying file.
func (r *Reader) Header() *sam.Header {
	return r.r.Header()
}

// Next returns the next record and its Summary.  It returns io.EOF when no
// records remain.
func (r *Reader) Next() (*sam.Record, Summary, error) {
	rec, err := r.r.Read()
	if err == io.EOF {
		return nil, Summary{}, io.EOF
	}
	if err != nil {
		return nil, Summary{}, fault.New(fault.MalformedRecord, fmt.Sprintf("decoding record %d", r.records+1), err)
	}
	r.records++

	summary, err := Summarize(rec, r.references, bgzf.FromChunk(r.r.LastChunk()))
	if err != nil {
		return nil, Summary{}, err
	}
	return rec, summary, nil
}

// Close releases the decompressor.  It does not close the underlying reader.
func (r *Reader) Close() error {
	return r.r.Close()
}

// Writer writes alignment records to a BAM file on disk.
type Writer struct {
	path    string
	file    *os.File
	w       *bam.Writer
	records int64
}

// Create creates the BAM file at path and writes h to it.
func Create(path string, h *sam.Header) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fault.New(fault.IOFailure, "creating "+path, err)
	}
	w, err := bam.NewWriter(f, h, concurrency)
	if err != nil {
		f.Close()
		return nil, fault.New(fault.IOFailure, "writing header to "+path, err)
	}
	return &Writer{path: path, file: f, w: w}, nil
}

// Write appends rec to the file.
func (w *Writer) Write(rec *sam.Record) error {
	if err := w.w.Write(rec); err != nil {
		return fault.New(fault.IOFailure, fmt.Sprintf("writing record %q to %s", rec.Name, w.path), err)
	}
	w.records++
	return nil
}

// Close flushes pending data, writes the BGZF end-of-file marker and closes
// the file.
func (w *Writer) Close() error {
	if err := w.w.Close(); err != nil {
		w.file.Close()
		return fault.New(fault.IOFailure, "finishing "+w.path, err)
	}
	if err := w.file.Close(); err != nil {
		return fault.New(fault.IOFailure, "closing "+w.path, err)
	}
	return nil
}

// Path returns the path of the file being written.
func (w *Writer) Path() string {
	return w.path
}

// Records returns the number of records written so far.
func (w *Writer) Records() int64 {
	return w.records
}
