// Package genomics contains definitions related to Genomic data.
package genomics

import "fmt"

// Region defines a region of genomic interest.  Regions are comparable and
// are used directly as set keys.
type Region struct {
	// ReferenceID is the index of the reference in the alignment header.
	ReferenceID int32
	// Start and End specify the closed range [Start, End] in 1-based
	// coordinates.
	Start, End uint32
}

func (region Region) String() string {
	return fmt.Sprintf("[region:%d, start:%d, end:%d]", region.ReferenceID, region.Start, region.End)
}

// Contains reports whether the 1-based position lies inside region.
func (region Region) Contains(referenceID int32, position uint32) bool {
	return referenceID == region.ReferenceID && region.Start <= position && position <= region.End
}
