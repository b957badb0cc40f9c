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

// This binary splits a BAM file by how well each read's boundaries match a
// set of target regions, and indexes every file it writes.
package main

import (
	"context"
	"flag"
	"log"
	"math"

	"github.com/pkg/profile"

	"github.com/googlegenomics/bamtarget/internal/classify"
	"github.com/googlegenomics/bamtarget/internal/pipeline"
	"github.com/googlegenomics/bamtarget/internal/storage"
)

var (
	input = flag.String("input", "", "input BAM file (local path or gs://bucket/object)")
	bed   = flag.String("bed", "", "BED file listing the target regions, optionally gzipped")

	onTarget   = flag.String("on_target", "", "output for reads matching a region at both ends (default <input>.on-target.bam)")
	offTarget  = flag.String("off_target", "", "output for reads matching no region boundary (default <input>.off-target.bam)")
	startNoEnd = flag.String("start_no_end", "", "output for reads matching only a region start (default <input>.start-no-end.bam)")
	endNoStart = flag.String("end_no_start", "", "output for reads matching only a region end (default <input>.end-no-start.bam)")

	onTargetOnly = flag.Bool("on_target_only", false, "only write the on-target output")
	tolerance    = flag.Uint("tolerance", 0, "maximum distance in bases between matching read and region boundaries")

	summary = flag.String("summary", "", "if set, write a JSON run report to this path")
	mode    = flag.String("profile", "", "write a cpu or mem profile to the working directory")

	gcsAnonymous = flag.Bool("gcs_anonymous", false, "read gs:// inputs without credentials")
	gcsToken     = flag.String("gcs_token", "", "OAuth2 bearer token for gs:// inputs")
)

func main() {
	flag.Parse()

	if *input == "" || *bed == "" {
		log.Fatalf("You must specify both -input and -bed.")
	}
	if uint64(*tolerance) > math.MaxUint32 {
		log.Fatalf("Tolerance %d is too large.", *tolerance)
	}

	switch *mode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	default:
		log.Fatalf("Unknown profile mode %q (want cpu or mem).", *mode)
	}

	cfg := pipeline.Config{
		Input: *input,
		BED:   *bed,
		Outputs: map[classify.Label]string{
			classify.OnTarget:  *onTarget,
			classify.OffTarget: *offTarget,
			classify.StartOnly: *startNoEnd,
			classify.EndOnly:   *endNoStart,
		},
		OnTargetOnly: *onTargetOnly,
		Tolerance:    uint32(*tolerance),
	}
	if err := run(cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(cfg pipeline.Config) error {
	opener := storage.NewOpener(storage.Options{
		Anonymous: *gcsAnonymous,
		Token:     *gcsToken,
	})
	defer opener.Close()

	report, err := pipeline.Run(context.Background(), cfg, opener)
	if err != nil {
		return err
	}
	log.Printf("Partitioned %d records from %s (run %s)", report.Records, cfg.Input, report.RunID)

	if *summary != "" {
		if err := report.WriteFile(*summary); err != nil {
			return err
		}
	}
	return nil
}
