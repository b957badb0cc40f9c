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

// Package partition routes classified alignments to per-label outputs.
package partition

import (
	"fmt"

	"github.com/biogo/hts/sam"

	"github.com/googlegenomics/bamtarget/internal/classify"
)

// Sink receives the records of one label in order.
type Sink interface {
	Write(*sam.Record) error
	Close() error
}

// Sinks holds the output for every label.  A nil field disables that label:
// its records are counted and dropped.
type Sinks struct {
	OnTarget, OffTarget, StartOnly, EndOnly Sink
}

// For returns the sink for label, or nil if it is disabled.
func (s *Sinks) For(label classify.Label) Sink {
	switch label {
	case classify.OnTarget:
		return s.OnTarget
	case classify.OffTarget:
		return s.OffTarget
	case classify.StartOnly:
		return s.StartOnly
	case classify.EndOnly:
		return s.EndOnly
	}
	return nil
}

// Set installs sink as the output for label.
func (s *Sinks) Set(label classify.Label, sink Sink) {
	switch label {
	case classify.OnTarget:
		s.OnTarget = sink
	case classify.OffTarget:
		s.OffTarget = sink
	case classify.StartOnly:
		s.StartOnly = sink
	case classify.EndOnly:
		s.EndOnly = sink
	}
}

// Partitioner writes each record to the sink of its label.  Must be created
// with New.
type Partitioner struct {
	sinks  Sinks
	counts map[classify.Label]int64
}

// New returns a Partitioner writing to sinks.
func New(sinks Sinks) *Partitioner {
	return &Partitioner{sinks, make(map[classify.Label]int64)}
}

// Route writes rec to the sink for label.  Records for disabled labels are
// dropped but still counted.
func (p *Partitioner) Route(label classify.Label, rec *sam.Record) error {
	p.counts[label]++
	sink := p.sinks.For(label)
	if sink == nil {
		return nil
	}
	if err := sink.Write(rec); err != nil {
		return fmt.Errorf("writing %s record: %w", label, err)
	}
	return nil
}

// Count returns the number of records routed with label.
func (p *Partitioner) Count(label classify.Label) int64 {
	return p.counts[label]
}

// Total returns the number of records routed.
func (p *Partitioner) Total() int64 {
	var total int64
	for _, n := range p.counts {
		total += n
	}
	return total
}

// Close closes every enabled sink in label order and returns the first
// error encountered.
func (p *Partitioner) Close() error {
	var first error
	for _, label := range classify.Labels {
		sink := p.sinks.For(label)
		if sink == nil {
			continue
		}
		if err := sink.Close(); err != nil && first == nil {
			first = fmt.Errorf("closing %s output: %w", label, err)
		}
	}
	return first
}
