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

package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestIs(t *testing.T) {
	base := New(MalformedRegion, "line 3", errors.New("bad start"))
	wrapped := fmt.Errorf("loading regions: %w", base)

	if !Is(wrapped, MalformedRegion) {
		t.Errorf("Is(%v, MalformedRegion) = false, want true", wrapped)
	}
	if Is(wrapped, IOFailure) {
		t.Errorf("Is(%v, IOFailure) = true, want false", wrapped)
	}
	if Is(errors.New("plain"), IOFailure) {
		t.Errorf("Is(plain, IOFailure) = true, want false")
	}
}

func TestError_Message(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want string
	}{
		{"with cause", New(IOFailure, "opening x.bam", errors.New("no such file")), "IOFailure: opening x.bam: no such file"},
		{"without cause", Errorf(ReferenceCountMismatch, "got %d references, want %d", 1, 2), "ReferenceCountMismatch: got 1 references, want 2"},
		{"unknown kind", New(Kind(42), "x", nil), "Kind(42): x"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Errorf("Error(): got %q, want %q", got, tc.want)
			}
		})
	}
}
