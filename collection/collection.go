// Copyright 2016 Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package collection provides a concurrent fan-out over many databases,
// grounded on the teacher's shards.shardedSearcher.streamSearch: a bounded
// worker pool, golang.org/x/sync/errgroup for cancellation-aware error
// propagation, and prometheus gauges for in-flight work. It is the one
// place this module introduces concurrency (spec §5 permits parallel
// traversal across databases as long as result de-duplication and gather's
// tie-break determinism survive a final serial reduction).
package collection

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/sourcegraph/sketchsearch"
)

var (
	metricVisitsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sketchsearch_collection_visits_running",
		Help: "The number of concurrent per-database visits in flight.",
	})
	metricVisitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "sketchsearch_collection_visit_duration_seconds",
		Help: "How long a single database visit took.",
	})
)

// Match is one scored sketch recovered from a single database during a
// concurrent visit.
type Match struct {
	Score    float64
	Sketch   sketchsearch.Sketch
	Filename string
}

// VisitFunc visits one database with the given strategy/query/threshold,
// exactly like the single-threaded traversal sketchsearch.SearchDatabases
// performs internally, but exposed so ParallelVisit can drive it
// concurrently over many databases. Returned matches need not be
// deduplicated or sorted; ParallelVisit does both once all visits land.
type VisitFunc func(ctx context.Context, db sketchsearch.Database) ([]Match, error)

// ParallelVisit fans VisitFunc out across databases using an
// errgroup.Group capped at GOMAXPROCS concurrent visits
// (teacher idiom from shards.go's feeder/worker split, expressed through
// errgroup's own SetLimit instead of a hand-rolled channel pool). Each
// visit's matches are stored under a mutex in that database's slot; a final
// serial reduction then concatenates them in database order, deduplicates
// by md5 (the first database wins) and sorts by descending score, ties
// keeping database order — satisfying spec §5's requirement that
// concurrent traversal still produce deterministic, race-free results.
// The first visit error cancels the group's context and is returned;
// results from visits that already completed are discarded.
func ParallelVisit(ctx context.Context, databases []sketchsearch.Database, visit VisitFunc) ([]Match, error) {
	workers := runtime.GOMAXPROCS(0)
	if workers > len(databases) {
		workers = len(databases)
	}
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var (
		mu    sync.Mutex
		perDB = make([][]Match, len(databases))
	)

	for i, db := range databases {
		i, db := i, db
		g.Go(func() error {
			metricVisitsRunning.Inc()
			start := time.Now()
			got, err := visit(gctx, db)
			metricVisitDuration.Observe(time.Since(start).Seconds())
			metricVisitsRunning.Dec()
			if err != nil {
				return err
			}
			mu.Lock()
			perDB[i] = got
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Final serial reduction: concatenate in database order, dedup by
	// content digest, then order by descending score. This is the "final
	// serial reduction" spec §5 requires to keep concurrent traversal
	// deterministic.
	var matches []Match
	for _, got := range perDB {
		matches = append(matches, got...)
	}
	seen := make(map[string]bool, len(matches))
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		md5 := m.Sketch.MD5Sum()
		if seen[md5] {
			continue
		}
		seen[md5] = true
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}

// BestMatch picks the single highest-scoring Match, breaking ties by
// ascending md5sum — the same tie-break gather.findBestAcrossDatabases
// uses, required here too since a concurrent scan must remain deterministic
// (spec §5, §8 property 4).
func BestMatch(matches []Match) (Match, bool) {
	if len(matches) == 0 {
		return Match{}, false
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Score > best.Score || (m.Score == best.Score && m.Sketch.MD5Sum() < best.Sketch.MD5Sum()) {
			best = m
		}
	}
	return best, true
}
