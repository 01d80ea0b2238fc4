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

package sketchsearch

import "sync"

// Strategy is a pluggable scoring callback used by both flat and tree
// traversal (spec §4.B). Score reports whether candidate should be
// considered a match at all, and if so its score. ShouldPrune tells a Tree
// whether it may stop exploring a branch once it has seen the given score
// (used by the stateful find-best variants; stateless strategies never
// prune on score alone, since every threshold decision there is a direct
// comparison made by the caller).
type Strategy interface {
	// Score computes the candidate's score against query. ok is false if
	// the candidate should be rejected outright (e.g. incompatible sketch).
	Score(query, candidate Sketch) (score float64, ok bool)
	// ShouldPrune reports whether a branch scoring exactly at score may be
	// pruned without visiting its children.
	ShouldPrune(score float64) bool
}

// similarityStrategy scores candidates by downsampled Jaccard similarity.
// Used by SearchDatabases when containment is off.
type similarityStrategy struct{}

func (similarityStrategy) Score(query, candidate Sketch) (float64, bool) {
	s, err := query.Similarity(candidate, true)
	if err != nil {
		return 0, false
	}
	return s, true
}

func (similarityStrategy) ShouldPrune(float64) bool { return false }

// containmentStrategy scores candidates by downsampled containment. Used by
// SearchDatabases when containment is on.
type containmentStrategy struct{}

func (containmentStrategy) Score(query, candidate Sketch) (float64, bool) {
	s, err := query.ContainedBy(candidate, true)
	if err != nil {
		return 0, false
	}
	return s, true
}

func (containmentStrategy) ShouldPrune(float64) bool { return false }

// findBestStrategy is stateful: it remembers the best score seen during a
// single tree traversal and prunes any candidate scoring strictly below
// that maximum. It must be re-instantiated per database, never reused
// across databases (spec §4.B).
type findBestStrategy struct {
	mu   sync.Mutex
	best float64
}

// newFindBestStrategy returns a fresh FindBest strategy, scoped to exactly
// one database traversal.
func newFindBestStrategy() *findBestStrategy {
	return &findBestStrategy{}
}

func (f *findBestStrategy) Score(query, candidate Sketch) (float64, bool) {
	s, err := query.Similarity(candidate, true)
	if err != nil {
		return 0, false
	}
	f.mu.Lock()
	if s > f.best {
		f.best = s
	}
	f.mu.Unlock()
	return s, true
}

func (f *findBestStrategy) ShouldPrune(score float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return score < f.best
}

// findBestIgnoreMaxHashStrategy is FindBest scored via
// SimilarityIgnoreMaxHash instead of Similarity; used by Gather, where the
// query's max_hash bound has been lifted for the duration of the
// traversal.
type findBestIgnoreMaxHashStrategy struct {
	mu   sync.Mutex
	best float64
}

func newFindBestIgnoreMaxHashStrategy() *findBestIgnoreMaxHashStrategy {
	return &findBestIgnoreMaxHashStrategy{}
}

func (f *findBestIgnoreMaxHashStrategy) Score(query, candidate Sketch) (float64, bool) {
	s := query.SimilarityIgnoreMaxHash(candidate)
	f.mu.Lock()
	if s > f.best {
		f.best = s
	}
	f.mu.Unlock()
	return s, true
}

func (f *findBestIgnoreMaxHashStrategy) ShouldPrune(score float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return score < f.best
}
