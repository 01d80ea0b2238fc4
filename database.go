package sketchsearch

import (
	"context"
	"fmt"
)

// candidate pairs a matched sketch with the filename of the database it
// came from.
type candidate struct {
	sketch   Sketch
	filename string
}

// visit implements the database iteration abstraction (spec §4.C): a
// uniform traversal over one Database, whether it is a flat collection or
// an indexed Tree. If the source is indexed, the tree is trusted to have
// pruned to scoring's threshold already; visit asserts that invariant on
// every result it gets back. If flat, every sketch is (re-)scored against
// threshold directly.
func visit(ctx context.Context, db Database, scoring Strategy, query Sketch, threshold float64) ([]candidate, error) {
	if db.Source.IsIndexed() {
		leaves, err := db.Source.Tree.Find(ctx, scoring, query, threshold)
		if err != nil {
			return nil, fmt.Errorf("sketchsearch: tree traversal of %s: %w", db.Filename, err)
		}
		out := make([]candidate, 0, len(leaves))
		for _, leaf := range leaves {
			s := leaf.Data()
			score, ok := scoring.Score(query, s)
			if !ok || score < threshold {
				// The tree violated its pruning contract; spec says the
				// core asserts this invariant rather than silently
				// tolerating it.
				return nil, fmt.Errorf("sketchsearch: tree %s returned a leaf below threshold (score=%v, threshold=%v)", db.Filename, score, threshold)
			}
			out = append(out, candidate{sketch: s, filename: db.Filename})
		}
		return out, nil
	}

	out := make([]candidate, 0, len(db.Source.Flat))
	for _, s := range db.Source.Flat {
		score, ok := scoring.Score(query, s)
		if !ok || score < threshold {
			continue
		}
		out = append(out, candidate{sketch: s, filename: db.Filename})
	}
	return out, nil
}
