// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package pipeline runs the resumable, cache-aware stage sequence of horus.
//
// Every unit goes through four stages in order:
//
//	vectors  acquire and normalize the unit's feature vectors
//	graph    embed the vectors in 3D and build the neighbor graph
//	labels   fetch text labels for the leading features (skippable)
//	export   write the unit's layer document
//
// Before a stage runs the pipeline consults the CacheStore. A Completed stage
// is skipped and its artifact is loaded only if a later stage needs it.
// Otherwise the stage is marked InProgress, run, and its artifact is published
// with Put, which marks it Completed in the same transaction. A failing stage
// is marked Failed and ends the unit; stages that completed before it stay
// cached, so the next run without Force resumes at the failed stage.
//
// Failures never cross the unit boundary. RunUnit reports them in its
// UnitResult, classified with core.Classify, and Run moves on to the next
// unit. Panics inside a stage are recovered and reported as stage failures.
//
// # Label progress
//
// The labels stage appends each resolved feature to a storage.LabelJournal
// as soon as it is known. A labels stage that is interrupted or fails keeps
// those entries, and the rerun fetches only features missing from the journal.
// The labels artifact itself is published only once the whole batch is done.
//
// # Usage
//
//	p, err := pipeline.New(model, cache, journal, src, exporter,
//	    pipeline.WithLabels(batch, cfg.Labels.TopK),
//	    pipeline.WithLogger(logger),
//	)
//	summary := p.Run(ctx, units, pipeline.RunOptions{})
//	os.Exit(summary.ExitCode())
package pipeline
