// Package testutil builds small BAM fixtures for tests.
package testutil

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/require"
)

// Reference describes a header reference.
type Reference struct {
	Name   string
	Length int
}

// Header returns a header declaring refs.  When sorted is true the header
// declares coordinate sort order, otherwise it declares none.
func Header(t testing.TB, sorted bool, refs ...Reference) *sam.Header {
	t.Helper()

	var references []*sam.Reference
	for _, r := range refs {
		ref, err := sam.NewReference(r.Name, "", "", r.Length, nil, nil)
		require.NoError(t, err, "creating reference %q", r.Name)
		references = append(references, ref)
	}
	h, err := sam.NewHeader(nil, references)
	require.NoError(t, err, "creating header")
	h.Version = "1.6"
	if sorted {
		h.SortOrder = sam.Coordinate
	} else {
		h.SortOrder = sam.UnknownOrder
	}
	return h
}

// Mapped returns a mapped record aligned to the 1-based closed range
// [start, end] of the reference with index ref.
func Mapped(t testing.TB, h *sam.Header, name string, ref, start, end int) *sam.Record {
	t.Helper()

	length := end - start + 1
	cigar := []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, length)}
	seq := bytes.Repeat([]byte{'A'}, length)
	rec, err := sam.NewRecord(name, h.Refs()[ref], nil, start-1, -1, 0, 60, cigar, seq, nil, nil)
	require.NoError(t, err, "creating record %q", name)
	return rec
}

// PlacedUnmapped returns an unmapped record placed at the 1-based position
// start of the reference with index ref.
func PlacedUnmapped(t testing.TB, h *sam.Header, name string, ref, start int) *sam.Record {
	t.Helper()

	rec, err := sam.NewRecord(name, h.Refs()[ref], nil, start-1, -1, 0, 0, nil, []byte("ACGT"), nil, nil)
	require.NoError(t, err, "creating record %q", name)
	rec.Flags |= sam.Unmapped
	return rec
}

// Unmapped returns an unmapped record without a position.
func Unmapped(t testing.TB, name string) *sam.Record {
	t.Helper()

	rec, err := sam.NewRecord(name, nil, nil, -1, -1, 0, 0, nil, []byte("ACGT"), nil, nil)
	require.NoError(t, err, "creating record %q", name)
	rec.Flags |= sam.Unmapped
	return rec
}

// EncodeBAM returns the BAM encoding of h followed by recs.
func EncodeBAM(t testing.TB, h *sam.Header, recs ...*sam.Record) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := bam.NewWriter(&buf, h, 1)
	require.NoError(t, err, "creating BAM writer")
	for _, rec := range recs {
		require.NoError(t, w.Write(rec), "writing record %q", rec.Name)
	}
	require.NoError(t, w.Close(), "closing BAM writer")
	return buf.Bytes()
}

// WriteBAM writes the BAM encoding of h followed by recs to path.
func WriteBAM(t testing.TB, path string, h *sam.Header, recs ...*sam.Record) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, EncodeBAM(t, h, recs...), 0644), "writing %s", path)
}

// ReadNames returns the names of all records in the BAM file at path, in
// file order.
func ReadNames(t testing.TB, path string) []string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err, "opening %s", path)
	defer f.Close()

	r, err := bam.NewReader(f, 1)
	require.NoError(t, err, "reading header of %s", path)
	defer r.Close()

	var names []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err, "reading %s", path)
		names = append(names, rec.Name)
	}
	return names
}
