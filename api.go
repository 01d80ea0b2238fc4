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

// Package sketchsearch implements the sketch-search and iterative
// decomposition core of a genomic similarity system built on MinHash
// sketches: searching one or more databases of reference sketches for
// matches against a query, and greedily decomposing a query into the
// smallest ordered set of references that explains it (gather).
package sketchsearch

import (
	"context"
	"fmt"
)

// Hash is the output of a keyed hash over a k-mer.
type Hash = uint64

// maxHashF is MAX_HASH, the fixed system-wide constant from which every
// sketch's max_hash bound is derived (max_hash = MAX_HASH / scaled). It does
// not fit in a uint64 (2^64), so it is carried as a float64 purely for the
// division; the result is always converted back to uint64 by truncation.
// Never materialize this as a uint64 expression (1<<64 overflows).
const maxHashF = 18446744073709551616.0

// NewMaxHash computes MAX_HASH / scaled, the bound on retained hashes at the
// given resolution: a hash h is retained only if h < the bound. scaled must
// be positive.
func NewMaxHash(scaled uint64) uint64 {
	if scaled == 0 {
		return 0
	}
	return uint64(maxHashF / float64(scaled))
}

// Moltype is the alphabet a sketch's k-mers were drawn from. It participates
// only in equality checks between sketches (per spec), never interpreted.
type Moltype int

const (
	DNA Moltype = iota
	Protein
	Dayhoff
	HP
)

func (m Moltype) String() string {
	switch m {
	case DNA:
		return "DNA"
	case Protein:
		return "protein"
	case Dayhoff:
		return "dayhoff"
	case HP:
		return "hp"
	default:
		return "unknown"
	}
}

// Sketch is the MinHash signature contract the search and gather engines
// rely on. Implementers must ensure Downsample composes:
// s.Downsample(r1).Downsample(r2) == s.Downsample(max(r1,r2)), and that
// MD5Sum is deterministic over logically equal sketches independent of
// insertion order.
type Sketch interface {
	Name() string
	Filename() string
	KSize() int
	Moltype() Moltype
	TrackAbundance() bool

	// Scaled is the resolution R; 0 means unbounded (MaxHash unset).
	Scaled() uint64
	// MaxHashBound reports the sketch's max_hash and whether it is set.
	MaxHashBound() (uint64, bool)

	// Similarity is the Jaccard index of the hash sets. If downsample is
	// false and the resolutions differ, it returns ErrResolutionMismatch.
	Similarity(other Sketch, downsample bool) (float64, error)
	// ContainedBy is |self ∩ other| / |self| after resolution reconciliation.
	ContainedBy(other Sketch, downsample bool) (float64, error)
	// SimilarityIgnoreMaxHash computes Jaccard over the raw hash sets,
	// disregarding any max_hash bound on either side.
	SimilarityIgnoreMaxHash(other Sketch) float64

	// Downsample returns a new sketch at resolution scaled (scaled must be
	// >= the receiver's current scaled, i.e. coarser or equal).
	Downsample(scaled uint64) (Sketch, error)
	// CopyAndClear returns a new sketch with the same metadata and bound,
	// but an empty hash set.
	CopyAndClear() Sketch
	// AddMany bulk-inserts hashes (and, if TrackAbundance, increments counts).
	AddMany(hashes []Hash)

	// GetHashes enumerates the contained hashes, in no particular order.
	GetHashes() []Hash
	// GetMins enumerates hashes with optional abundance counts. When
	// withAbundance is false, or the sketch does not track abundance,
	// every hash maps to 1.
	GetMins(withAbundance bool) map[Hash]uint64

	// MD5Sum is the canonical content digest used as dedup/identity key.
	MD5Sum() string
}

// Leaf is a single match returned by a Tree traversal.
type Leaf interface {
	Data() Sketch
}

// Tree is a hierarchical sketch index (an SBT or equivalent). Only the
// callback contract it honors during traversal is specified here; the tree
// itself is an external collaborator.
type Tree interface {
	// Find traverses the tree, using scoring as the pruning predicate, and
	// returns only leaves it believes score >= threshold against query.
	Find(ctx context.Context, scoring Strategy, query Sketch, threshold float64) ([]Leaf, error)
}

// Source is either a flat collection of sketches or an indexed Tree.
// Exactly one of Tree or Flat should be set.
type Source struct {
	Tree Tree
	Flat []Sketch
}

// IsIndexed reports whether this source is a traversable tree rather than a
// flat list.
func (s Source) IsIndexed() bool {
	return s.Tree != nil
}

// Database is one named, possibly-indexed collection of reference sketches.
type Database struct {
	Source   Source
	Filename string
}

// SearchResult is a single match from SearchDatabases.
type SearchResult struct {
	Similarity float64
	Match      Sketch
	MD5        string
	Filename   string
	Name       string
}

// GatherResult is a single step of a Gather decomposition. All fractions
// are in [0, 1]; IntersectBP is denominated in base pairs.
type GatherResult struct {
	IntersectBP     float64
	FOrigQuery      float64
	FMatch          float64
	FUniqueToQuery  float64
	FUniqueWeighted float64
	AverageAbund    float64
	Filename        string
	Name            string
	MD5             string
	Leaf            Sketch
}

// Notifier is the external sink for user-visible progress messages and
// fatal conditions (spec §6's "notify"/"error" collaborators). Errorf both
// emits the message and returns a value the caller can propagate, since Go
// signals fatal conditions by returning an error rather than calling
// os.Exit the way the reference implementation does.
type Notifier interface {
	Notify(format string, args ...any)
	Errorf(format string, args ...any) error
}

// nopNotifier discards Notify calls and formats Errorf without side effects.
// Used when callers pass a nil Notifier.
type nopNotifier struct{}

func (nopNotifier) Notify(string, ...any) {}
func (nopNotifier) Errorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

func notifierOrDefault(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

// Sentinel error values for the fatal conditions spec §7 names. Use
// errors.Is to test for them through any %w-wrapping.
var (
	// ErrResolutionMismatch is returned when two sketches differ in
	// resolution and the caller did not request downsampling.
	ErrResolutionMismatch = fmt.Errorf("sketch resolutions differ and downsampling was not requested")
	// ErrMoltypeMismatch is returned when two sketches have incompatible
	// k-size or moltype.
	ErrMoltypeMismatch = fmt.Errorf("sketch k-size or moltype mismatch")
	// ErrFinerDownsample is returned when a downsample to a finer
	// resolution is requested (R' < R is forbidden).
	ErrFinerDownsample = fmt.Errorf("cannot downsample to a finer resolution")
	// ErrMissingScaled is returned during gather when the best-matching
	// sketch has no max_hash/scaled set.
	ErrMissingScaled = fmt.Errorf("database not prepared with scaled resolution")
)
