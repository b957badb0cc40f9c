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

// Package pipeline partitions an alignment file by target regions and
// indexes every partition that was written.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/googlegenomics/bamtarget/internal/alignment"
	"github.com/googlegenomics/bamtarget/internal/bai"
	"github.com/googlegenomics/bamtarget/internal/classify"
	"github.com/googlegenomics/bamtarget/internal/fault"
	"github.com/googlegenomics/bamtarget/internal/index"
	"github.com/googlegenomics/bamtarget/internal/partition"
	"github.com/googlegenomics/bamtarget/internal/regions"
	"github.com/googlegenomics/bamtarget/internal/storage"
)

const (
	bamSuffix   = ".bam"
	indexSuffix = ".bai"
)

// Opener opens the input files of a run.
type Opener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Config describes a single run.
type Config struct {
	// Input is the alignment file to partition.
	Input string
	// BED is the interval list holding the target regions.
	BED string
	// Outputs holds explicit output paths.  Labels without an entry are
	// written next to the input, see DefaultOutputPath.
	Outputs map[classify.Label]string
	// OnTargetOnly disables every output except the on-target one.
	OnTargetOnly bool
	// Tolerance is the largest distance, in bases, at which a read boundary
	// still matches a region boundary.
	Tolerance uint32
}

// Enabled returns the labels that are written, in output order.
func (c *Config) Enabled() []classify.Label {
	if c.OnTargetOnly {
		return []classify.Label{classify.OnTarget}
	}
	return classify.Labels
}

// OutputPath returns the path the records with label are written to.
func (c *Config) OutputPath(label classify.Label) string {
	if p, ok := c.Outputs[label]; ok && p != "" {
		return p
	}
	return DefaultOutputPath(c.Input, label)
}

// DefaultOutputPath returns "<input without .bam>.<label>.bam".  Remote
// inputs are mapped to the working directory using their base name.
func DefaultOutputPath(input string, label classify.Label) string {
	if storage.IsRemote(input) {
		input = path.Base(input)
	}
	return strings.TrimSuffix(input, bamSuffix) + "." + label.String() + bamSuffix
}

// Output describes one written alignment file and its index.
type Output struct {
	Label    string `json:"label"`
	Path     string `json:"path"`
	Index    string `json:"index"`
	Records  int64  `json:"records"`
	Mapped   uint64 `json:"mapped"`
	Unmapped uint64 `json:"unmapped"`
	Unplaced uint64 `json:"unplaced"`
}

// Report summarizes a completed run.
type Report struct {
	RunID     string           `json:"run_id"`
	Input     string           `json:"input"`
	BED       string           `json:"bed"`
	Tolerance uint32           `json:"tolerance"`
	Regions   int              `json:"regions"`
	Records   int64            `json:"records"`
	Labels    map[string]int64 `json:"labels"`
	Outputs   []Output         `json:"outputs"`
}

// WriteFile writes r to path as indented JSON.
func (r *Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %v", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fault.New(fault.IOFailure, "writing report "+path, err)
	}
	return nil
}

// Run partitions cfg.Input into the enabled outputs and then writes an
// index next to each output.  Any error aborts the run; files written so far
// are left in place.
func Run(ctx context.Context, cfg Config, opener Opener) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		Input:     cfg.Input,
		BED:       cfg.BED,
		Tolerance: cfg.Tolerance,
		Labels:    make(map[string]int64),
	}

	writers, err := split(ctx, cfg, opener, report)
	if err != nil {
		return nil, err
	}

	for _, label := range cfg.Enabled() {
		w := writers[label]
		file, err := indexFile(w.Path())
		if err != nil {
			return nil, err
		}
		report.Outputs = append(report.Outputs, Output{
			Label:    label.String(),
			Path:     w.Path(),
			Index:    w.Path() + indexSuffix,
			Records:  w.Records(),
			Mapped:   file.Mapped,
			Unmapped: file.Unmapped,
			Unplaced: file.Unplaced,
		})
	}
	return report, nil
}

// split classifies every record of the input and writes it to the output of
// its label.  All outputs are closed on return.
func split(ctx context.Context, cfg Config, opener Opener, report *Report) (map[classify.Label]*alignment.Writer, error) {
	in, err := opener.Open(ctx, cfg.Input)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	r, err := alignment.NewReader(in)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", cfg.Input, err)
	}
	defer r.Close()
	h := r.Header()
	log.Printf("Opened %s (%d references)", cfg.Input, len(h.Refs()))

	set, err := loadRegions(ctx, cfg.BED, opener, alignment.ReferenceIDs(h))
	if err != nil {
		return nil, err
	}
	report.Regions = set.Len()
	log.Printf("Loaded %d target regions from %s", set.Len(), cfg.BED)

	var sinks partition.Sinks
	writers := make(map[classify.Label]*alignment.Writer)
	for _, label := range cfg.Enabled() {
		w, err := alignment.Create(cfg.OutputPath(label), h)
		if err != nil {
			partition.New(sinks).Close()
			return nil, err
		}
		writers[label] = w
		sinks.Set(label, w)
	}
	p := partition.New(sinks)

	for {
		rec, summary, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("reading %s: %w", cfg.Input, err)
		}
		if err := p.Route(classify.Classify(summary, set, cfg.Tolerance), rec); err != nil {
			p.Close()
			return nil, err
		}
	}
	if err := p.Close(); err != nil {
		return nil, err
	}

	report.Records = p.Total()
	for _, label := range classify.Labels {
		report.Labels[label.String()] = p.Count(label)
	}
	for _, label := range cfg.Enabled() {
		w := writers[label]
		log.Printf("Wrote %d %s records to %s", w.Records(), label, w.Path())
	}
	return writers, nil
}

func loadRegions(ctx context.Context, name string, opener Opener, ids map[string]int32) (*regions.Set, error) {
	in, err := opener.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	records, err := regions.ReadBED(in)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	set, err := regions.Load(records, ids)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	return set, nil
}

// indexFile builds the index of the alignment file at name and writes it to
// name + ".bai".
func indexFile(name string) (*index.File, error) {
	in, err := os.Open(name)
	if err != nil {
		return nil, fault.New(fault.IOFailure, "opening "+name, err)
	}
	defer in.Close()

	r, err := alignment.NewReader(in)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	defer r.Close()

	file, err := index.Build(r)
	if err != nil {
		return nil, fmt.Errorf("indexing %s: %w", name, err)
	}
	if err := file.Validate(len(r.Header().Refs())); err != nil {
		return nil, fmt.Errorf("indexing %s: %w", name, err)
	}
	if err := bai.WriteFile(name+indexSuffix, file); err != nil {
		return nil, err
	}
	log.Printf("Wrote index %s%s (%d mapped, %d unmapped, %d unplaced)", name, indexSuffix, file.Mapped, file.Unmapped, file.Unplaced)
	return file, nil
}
