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

package binary

import (
	"bytes"
	"testing"
)

func TestExpectBytes(t *testing.T) {
	testCases := []struct {
		want  []byte
		input []byte
		match bool
	}{
		{[]byte("BAI\x01"), []byte("BAI\x01"), true},
		{[]byte("BAI\x01"), []byte("BAI\x01EXTRA"), true},
		{[]byte("BAI\x01"), []byte("BAI\x02"), false},
		{[]byte("BAI\x01"), []byte("BAI"), false},
		{[]byte("BAI\x01"), []byte(""), false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.input), func(t *testing.T) {
			err := ExpectBytes(bytes.NewReader(tc.input), tc.want)
			if err != nil && tc.match {
				t.Fatalf("ExpectBytes returned unexpected error: %v", err)
			} else if err == nil && !tc.match {
				t.Fatalf("ExpectBytes accepted mismatched input %q", tc.input)
			}
		})
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, struct {
		A int32
		B uint64
	}{1, 0x0102}); err != nil {
		t.Fatalf("Write() returned unexpected error: %v", err)
	}
	want := []byte{1, 0, 0, 0, 2, 1, 0, 0, 0, 0, 0, 0}
	if got := buf.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Write(): got %x, want %x", got, want)
	}

	var a int32
	if err := Read(&buf, &a); err != nil {
		t.Fatalf("Read() returned unexpected error: %v", err)
	}
	if got, want := a, int32(1); got != want {
		t.Errorf("Read(): got %d, want %d", got, want)
	}
}
