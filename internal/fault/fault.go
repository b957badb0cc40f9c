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

// Package fault defines the fatal error kinds reported by the partitioning
// and indexing pipeline.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies a class of fatal error.
type Kind int

const (
	// IOFailure is reported when a file cannot be opened, read, written or
	// closed.
	IOFailure Kind = iota + 1
	// NotCoordinateSorted is reported when an alignment file that is about to
	// be indexed does not declare coordinate sort order.
	NotCoordinateSorted
	// MalformedRegion is reported for interval records without usable
	// coordinates.
	MalformedRegion
	// MalformedRecord is reported for alignment records whose coordinates are
	// present but cannot be interpreted.
	MalformedRecord
	// ReferenceCountMismatch is reported when a built index disagrees with the
	// header about the number of references.
	ReferenceCountMismatch
)

var names = map[Kind]string{
	IOFailure:              "IOFailure",
	NotCoordinateSorted:    "NotCoordinateSorted",
	MalformedRegion:        "MalformedRegion",
	MalformedRecord:        "MalformedRecord",
	ReferenceCountMismatch: "ReferenceCountMismatch",
}

func (k Kind) String() string {
	if name, ok := names[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a fatal error of a known kind.
type Error struct {
	Kind    Kind
	Context string
	Cause   error
}

func (err *Error) Error() string {
	if err.Cause == nil {
		return fmt.Sprintf("%s: %s", err.Kind, err.Context)
	}
	return fmt.Sprintf("%s: %s: %v", err.Kind, err.Context, err.Cause)
}

func (err *Error) Unwrap() error {
	return err.Cause
}

// New returns an error of the given kind.  The cause may be nil.
func New(kind Kind, context string, cause error) error {
	return &Error{kind, context, cause}
}

// Errorf returns an error of the given kind without a separate cause.
func Errorf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Context: fmt.Sprintf(format, args...)}
}

// Is reports whether err, or any error it wraps, has the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
