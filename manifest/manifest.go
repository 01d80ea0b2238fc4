// Package manifest loads the lightweight CSV manifest sourmash-style
// signature collections carry alongside their data files: one row per
// sketch naming its md5, display name, source filename, and resolution
// metadata, without the hashes themselves. This is the in-memory reader
// half of the feature `original_source/src/sourmash/cli/sig/manifest.py`
// only describes generating; the writer, and the signature file format
// itself, remain out of scope (spec.md's Non-goals exclude "signature file
// parsing and serialization" and "manifest CSV writers").
package manifest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/sourcegraph/sketchsearch"
)

// Entry is one manifest row: enough to decide whether a database is worth
// loading in full (matching ksize/moltype/scaled) before paying the cost of
// reading its signature file.
type Entry struct {
	MD5           string
	Name          string
	Filename      string
	Scaled        uint64
	KSize         int
	Moltype       sketchsearch.Moltype
	WithAbundance bool
}

var header = []string{"md5", "name", "filename", "scaled", "ksize", "moltype", "with_abundance"}

// Load parses a manifest CSV from r. The first record is expected to be
// the header named in `header`; column order beyond that is fixed.
func Load(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	entries := make([]Entry, 0, len(records)-1)
	for i, rec := range records[1:] {
		e, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("manifest: row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseRow(rec []string) (Entry, error) {
	scaled, err := strconv.ParseUint(rec[3], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("scaled: %w", err)
	}
	ksize, err := strconv.Atoi(rec[4])
	if err != nil {
		return Entry{}, fmt.Errorf("ksize: %w", err)
	}
	moltype, err := parseMoltype(rec[5])
	if err != nil {
		return Entry{}, err
	}
	withAbund, err := strconv.ParseBool(rec[6])
	if err != nil {
		return Entry{}, fmt.Errorf("with_abundance: %w", err)
	}
	return Entry{
		MD5:           rec[0],
		Name:          rec[1],
		Filename:      rec[2],
		Scaled:        scaled,
		KSize:         ksize,
		Moltype:       moltype,
		WithAbundance: withAbund,
	}, nil
}

func parseMoltype(s string) (sketchsearch.Moltype, error) {
	switch s {
	case "DNA", "dna":
		return sketchsearch.DNA, nil
	case "protein":
		return sketchsearch.Protein, nil
	case "dayhoff":
		return sketchsearch.Dayhoff, nil
	case "hp":
		return sketchsearch.HP, nil
	default:
		return 0, fmt.Errorf("unknown moltype %q", s)
	}
}

// EmptySketch returns a *sketchsearch.MinHash carrying this entry's
// metadata and resolution but no hashes, for callers that want to group or
// pre-filter databases by manifest metadata before loading full signature
// content (which remains out of this module's scope).
func (e Entry) EmptySketch() *sketchsearch.MinHash {
	return sketchsearch.NewMinHash(e.Name, e.KSize, e.Moltype, e.Scaled, e.WithAbundance)
}
