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

package bai

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/bamtarget/internal/alignment"
	"github.com/googlegenomics/bamtarget/internal/bgzf"
	"github.com/googlegenomics/bamtarget/internal/binary"
	"github.com/googlegenomics/bamtarget/internal/fault"
	"github.com/googlegenomics/bamtarget/internal/index"
	"github.com/googlegenomics/bamtarget/internal/testutil"
)

func sample() *index.File {
	return &index.File{
		References: []*index.Reference{
			{
				Bins: map[uint32][]*bgzf.Chunk{
					4681: {{Start: 0x100, End: 0x200}},
					585:  {{Start: 0x200, End: 0x300}, {Start: 0x400, End: 0x500}},
				},
				Intervals: []bgzf.Address{0x100, 0x200},
				Metadata:  &index.Metadata{Start: 0x100, End: 0x500, Mapped: 3, Unmapped: 1},
			},
			{Bins: map[uint32][]*bgzf.Chunk{}},
		},
		Mapped:   3,
		Unmapped: 3,
		Unplaced: 2,
	}
}

func TestWriteIndex_Layout(t *testing.T) {
	var want bytes.Buffer
	want.WriteString("BAI\x01")
	for _, v := range []interface{}{
		int32(2),

		// First reference: bins in ascending order, then metadata.
		int32(3),
		uint32(585), int32(2), uint64(0x200), uint64(0x300), uint64(0x400), uint64(0x500),
		uint32(4681), int32(1), uint64(0x100), uint64(0x200),
		uint32(37450), int32(2), uint64(0x100), uint64(0x500), uint64(3), uint64(1),
		int32(2), uint64(0x100), uint64(0x200),

		// Second reference is empty.
		int32(0),
		int32(0),

		uint64(2),
	} {
		require.NoError(t, binary.Write(&want, v))
	}

	var got bytes.Buffer
	require.NoError(t, WriteIndex(&got, sample()))
	assert.Equal(t, want.Bytes(), got.Bytes())
}

func TestReadIndex(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteIndex(&buf, sample()))

	got, err := ReadIndex(&buf)
	require.NoError(t, err)
	assert.Equal(t, sample(), got)
}

func TestReadIndex_WithoutUnplacedCount(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteIndex(&buf, sample()))
	data := buf.Bytes()[:buf.Len()-8]

	got, err := ReadIndex(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.Unplaced)
	assert.Equal(t, uint64(1), got.Unmapped)
	assert.Len(t, got.References, 2)
}

func TestReadIndex_Errors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteIndex(&buf, sample()))
	valid := buf.Bytes()

	testCases := []struct {
		name string
		data []byte
	}{
		{"zero-length", nil},
		{"wrong magic", []byte{'B', 'A', 'I', 2, 0, 0, 0, 0}},
		{"truncated before reference count", []byte{'B', 'A', 'I', 1}},
		{"negative reference count", []byte{'B', 'A', 'I', 1, 0xff, 0xff, 0xff, 0xff}},
		{"missing reference", []byte{'B', 'A', 'I', 1, 1, 0, 0, 0}},
		{"negative bin count", []byte{'B', 'A', 'I', 1, 1, 0, 0, 0, 0xff, 0xff, 0xff, 0xff}},
		{"negative interval count", []byte{'B', 'A', 'I', 1, 1, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff, 0xff, 0xff}},
		{"truncated chunk", valid[:30]},
		{"truncated offsets", valid[:len(valid)-8-4-4-4]},
		{"metadata with one chunk", []byte{
			'B', 'A', 'I', 1,
			1, 0, 0, 0,
			1, 0, 0, 0,
			0x4a, 0x92, 0, 0,
			1, 0, 0, 0,
			0, 0, 0, 0, 0, 0, 0, 0,
			0, 0, 0, 0, 0, 0, 0, 0,
			0, 0, 0, 0,
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadIndex(bytes.NewReader(tc.data)); err == nil {
				t.Fatalf("ReadIndex(): expected error, not success")
			} else {
				t.Logf("error: %v", err)
			}
		})
	}
}

func TestWriteFile(t *testing.T) {
	refs := []testutil.Reference{{Name: "chr1", Length: 100000}, {Name: "chr2", Length: 100000}}
	h := testutil.Header(t, true, refs...)
	data := testutil.EncodeBAM(t, h,
		testutil.Mapped(t, h, "a", 0, 100, 200),
		testutil.Mapped(t, h, "b", 0, 20000, 20100),
		testutil.PlacedUnmapped(t, h, "c", 0, 20100),
		testutil.Unmapped(t, "d"),
	)
	r, err := alignment.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()
	want, err := index.Build(r)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sample.bam.bai")
	require.NoError(t, WriteFile(path, want))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, got.Validate(len(refs)))
	want.UnplacedChunks = nil
	assert.Equal(t, want, got)

	metadata := got.References[0].Metadata
	require.NotNil(t, metadata)
	assert.Equal(t, uint64(2), metadata.Mapped)
	assert.Equal(t, uint64(1), metadata.Unmapped)
	assert.Equal(t, uint64(1), got.Unplaced)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.bai"))
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.IOFailure), "got %v, want IOFailure", err)
}

func TestWriteFile_BadPath(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "missing", "out.bai"), sample())
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.IOFailure), "got %v, want IOFailure", err)
}
