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

package regions

import (
	"bytes"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/bamtarget/internal/fault"
	"github.com/googlegenomics/bamtarget/internal/genomics"
)

const sampleBED = `track name=targets
# comment
chr1	99	200	amplicon1
chr1	99	200	duplicate
chr2	0	50

chrUn	10	20
`

func TestReadBED(t *testing.T) {
	records, err := ReadBED(strings.NewReader(sampleBED))
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{"chr1", 99, 200},
		{"chr1", 99, 200},
		{"chr2", 0, 50},
		{"chrUn", 10, 20},
	}, records)
}

func TestReadBED_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(sampleBED))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	records, err := ReadBED(&buf)
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestReadBED_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"too few columns", "chr1\t100\n"},
		{"non-numeric start", "chr1\tabc\t200\n"},
		{"non-numeric end", "chr1\t100\t2x0\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadBED(strings.NewReader(tc.input))
			require.Error(t, err)
			assert.True(t, fault.Is(err, fault.MalformedRegion), "got %v, want MalformedRegion", err)
		})
	}
}

func TestLoad(t *testing.T) {
	records, err := ReadBED(strings.NewReader(sampleBED))
	require.NoError(t, err)

	set, err := Load(records, map[string]int32{"chr1": 0, "chr2": 1})
	require.NoError(t, err)

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []genomics.Region{
		{ReferenceID: 0, Start: 100, End: 200},
		{ReferenceID: 1, Start: 1, End: 50},
	}, set.Regions())
	assert.True(t, set.Contains(genomics.Region{ReferenceID: 0, Start: 100, End: 200}))
	assert.Len(t, set.OnReference(0), 1)
	assert.Empty(t, set.OnReference(2))
}

func TestLoad_UnknownReferenceDropped(t *testing.T) {
	set, err := Load([]Record{{"chrX", 99, 200}}, map[string]int32{"chr1": 0})
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestLoad_Malformed(t *testing.T) {
	testCases := []struct {
		name   string
		record Record
	}{
		{"negative start", Record{"chr1", -1, 10}},
		{"zero end", Record{"chr1", 0, 0}},
		{"inverted", Record{"chr1", 50, 10}},
		{"end too large", Record{"chr1", 0, 1 << 33}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load([]Record{tc.record}, map[string]int32{"chr1": 0})
			require.Error(t, err)
			assert.True(t, fault.Is(err, fault.MalformedRegion), "got %v, want MalformedRegion", err)
		})
	}
}

func TestLoad_MalformedOnUnknownReferenceIgnored(t *testing.T) {
	set, err := Load([]Record{{"chrX", 50, 10}}, map[string]int32{"chr1": 0})
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}
