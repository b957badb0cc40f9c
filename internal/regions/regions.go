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

// Package regions loads target intervals from BED data into a deduplicated
// set keyed by alignment header reference IDs.
package regions

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/googlegenomics/bamtarget/internal/fault"
	"github.com/googlegenomics/bamtarget/internal/genomics"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Record is a single interval as it appears in BED data: a reference name
// and a 0-based, half-open [Start, End) range.
type Record struct {
	Name       string
	Start, End int64
}

// ReadBED parses the first three columns of every interval line in r.  Blank
// lines, comments and track or browser lines are skipped.  Gzip compressed
// input is detected and decompressed transparently.
func ReadBED(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(len(gzipMagic)); err == nil && bytes.Equal(magic, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fault.New(fault.IOFailure, "initializing gzip reader", err)
		}
		defer gz.Close()
		r = gz
	} else {
		r = br
	}

	var records []Record
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "track") || strings.HasPrefix(text, "browser") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) < 3 {
			return nil, fault.Errorf(fault.MalformedRegion, "line %d: wrong number of columns: got %d, want at least 3", line, len(fields))
		}
		start, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fault.New(fault.MalformedRegion, fmt.Sprintf("line %d: parsing start", line), err)
		}
		end, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, fault.New(fault.MalformedRegion, fmt.Sprintf("line %d: parsing end", line), err)
		}
		records = append(records, Record{fields[0], start, end})
	}
	if err := scanner.Err(); err != nil {
		return nil, fault.New(fault.IOFailure, "reading intervals", err)
	}
	return records, nil
}

// Set is an immutable set of target regions.
type Set struct {
	regions     map[genomics.Region]struct{}
	byReference map[int32][]genomics.Region
}

// Load converts records to 1-based closed regions and collects them into a
// Set.  Records naming a reference that is not in ids can never match an
// alignment and are dropped.
func Load(records []Record, ids map[string]int32) (*Set, error) {
	set := &Set{
		regions:     make(map[genomics.Region]struct{}),
		byReference: make(map[int32][]genomics.Region),
	}
	for i, record := range records {
		id, ok := ids[record.Name]
		if !ok {
			continue
		}
		if record.Start < 0 || record.End < 1 || record.End < record.Start || record.End > math.MaxUint32 {
			return nil, fault.Errorf(fault.MalformedRegion, "interval %d (%s:%d-%d): no valid 1-based coordinates", i+1, record.Name, record.Start, record.End)
		}

		region := genomics.Region{
			ReferenceID: id,
			Start:       uint32(record.Start + 1),
			End:         uint32(record.End),
		}
		if _, ok := set.regions[region]; ok {
			continue
		}
		set.regions[region] = struct{}{}
		set.byReference[id] = append(set.byReference[id], region)
	}
	return set, nil
}

// Len returns the number of distinct regions in the set.
func (set *Set) Len() int {
	return len(set.regions)
}

// Contains reports whether region is a member of the set.
func (set *Set) Contains(region genomics.Region) bool {
	_, ok := set.regions[region]
	return ok
}

// OnReference returns the regions on the given reference.  The returned
// slice must not be modified.
func (set *Set) OnReference(id int32) []genomics.Region {
	return set.byReference[id]
}

// Regions returns every region in the set ordered by reference, start and
// end.
func (set *Set) Regions() []genomics.Region {
	regions := make([]genomics.Region, 0, len(set.regions))
	for region := range set.regions {
		regions = append(regions, region)
	}
	sort.Slice(regions, func(i, j int) bool {
		a, b := regions[i], regions[j]
		if a.ReferenceID != b.ReferenceID {
			return a.ReferenceID < b.ReferenceID
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End < b.End
	})
	return regions
}
