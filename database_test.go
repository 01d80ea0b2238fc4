package sketchsearch

import (
	"context"
	"testing"
)

// fakeLeaf and fakeTree let tests exercise the indexed path of visit()
// without a real tree implementation (the Tree/SBT data structure itself
// is an external collaborator, per spec).
type fakeLeaf struct{ s Sketch }

func (f fakeLeaf) Data() Sketch { return f.s }

type fakeTree struct {
	leaves    []Sketch
	returnAll bool // if true, ignore threshold (used to test the pruning-invariant assertion)
}

func (f *fakeTree) Find(ctx context.Context, scoring Strategy, query Sketch, threshold float64) ([]Leaf, error) {
	var out []Leaf
	for _, s := range f.leaves {
		score, ok := scoring.Score(query, s)
		if !ok {
			continue
		}
		if !f.returnAll && (score < threshold || scoring.ShouldPrune(score)) {
			continue
		}
		out = append(out, fakeLeaf{s})
	}
	return out, nil
}

func TestVisitFlatFiltersByThreshold(t *testing.T) {
	db := Database{
		Filename: "flat.db",
		Source: Source{Flat: []Sketch{
			sketch(1000, 1, 2, 3, 4),
			sketch(1000, 1, 2),
		}},
	}
	q := sketch(1000, 1, 2, 3, 4)
	cands, err := visit(context.Background(), db, similarityStrategy{}, q, 0.6)
	if err != nil {
		t.Fatalf("visit: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}
	if cands[0].filename != "flat.db" {
		t.Errorf("filename not propagated: %q", cands[0].filename)
	}
}

func TestVisitIndexedHonorsPrunedResults(t *testing.T) {
	tree := &fakeTree{leaves: []Sketch{sketch(1000, 1, 2, 3, 4)}}
	db := Database{Filename: "tree.db", Source: Source{Tree: tree}}
	q := sketch(1000, 1, 2, 3, 4)
	cands, err := visit(context.Background(), db, similarityStrategy{}, q, 0.5)
	if err != nil {
		t.Fatalf("visit: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}
}

func TestVisitIndexedAssertsPruningInvariant(t *testing.T) {
	// returnAll: true makes the fake tree hand back a leaf that scores
	// below threshold, violating the contract visit() asserts.
	tree := &fakeTree{leaves: []Sketch{sketch(1000, 1)}, returnAll: true}
	db := Database{Filename: "tree.db", Source: Source{Tree: tree}}
	q := sketch(1000, 1, 2, 3, 4)
	_, err := visit(context.Background(), db, similarityStrategy{}, q, 0.9)
	if err == nil {
		t.Fatalf("expected an error when the tree violates its pruning contract")
	}
}
