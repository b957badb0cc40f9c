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

// Package classify labels alignments by how closely their ends agree with
// a set of target regions.
package classify

import (
	"fmt"

	"github.com/googlegenomics/bamtarget/internal/alignment"
	"github.com/googlegenomics/bamtarget/internal/genomics"
	"github.com/googlegenomics/bamtarget/internal/regions"
)

// Label is the outcome of classifying one alignment.
type Label int

const (
	// OffTarget alignments match neither a region start nor a region end.
	OffTarget Label = iota
	// OnTarget alignments match a region start and a region end.
	OnTarget
	// StartOnly alignments match a region start but no region end.
	StartOnly
	// EndOnly alignments match a region end but no region start.
	EndOnly
)

// Labels lists every label in output order.
var Labels = []Label{OnTarget, OffTarget, StartOnly, EndOnly}

// String returns the name used for the label in output file names.
func (l Label) String() string {
	switch l {
	case OnTarget:
		return "on-target"
	case OffTarget:
		return "off-target"
	case StartOnly:
		return "start-no-end"
	case EndOnly:
		return "end-no-start"
	}
	return fmt.Sprintf("Label(%d)", int(l))
}

// Boundary selects which alignment coordinate is compared with which region
// boundary.
type Boundary int

const (
	// Start compares the alignment start with the region start.
	Start Boundary = iota
	// End compares the alignment end with the region end.
	End
)

// Matches reports whether read lies on the region's reference and the
// selected read coordinate is within tolerance bases of the matching region
// boundary.  Reads without a resolvable position never match.
func Matches(region genomics.Region, read alignment.Summary, tolerance uint32, boundary Boundary) bool {
	if !read.HasPosition() || read.ReferenceID != region.ReferenceID {
		return false
	}

	var got, want int64
	switch boundary {
	case Start:
		got, want = read.Start, int64(region.Start)
	case End:
		got, want = read.End, int64(region.End)
	default:
		return false
	}

	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff <= int64(tolerance)
}

// Classify labels read against every region in set.  The start and end
// tests are evaluated independently over the whole set, so a read whose
// start matches one region and whose end matches another is OnTarget.
func Classify(read alignment.Summary, set *regions.Set, tolerance uint32) Label {
	var startOK, endOK bool
	for _, region := range set.OnReference(read.ReferenceID) {
		startOK = startOK || Matches(region, read, tolerance, Start)
		endOK = endOK || Matches(region, read, tolerance, End)
		if startOK && endOK {
			break
		}
	}

	switch {
	case startOK && endOK:
		return OnTarget
	case startOK:
		return StartOnly
	case endOK:
		return EndOnly
	}
	return OffTarget
}
