package collection

import (
	"context"
	"errors"
	"testing"

	"github.com/sourcegraph/sketchsearch"
)

func sketch(scaled uint64, hashes ...uint64) *sketchsearch.MinHash {
	m := sketchsearch.NewMinHash("t", 21, sketchsearch.DNA, scaled, false)
	m.AddMany(hashes)
	return m
}

func TestParallelVisitDedupsAndSorts(t *testing.T) {
	dbs := []sketchsearch.Database{
		{Filename: "a.db"},
		{Filename: "b.db"},
		{Filename: "c.db"},
	}
	shared := sketch(1000, 1, 2, 3)

	visit := func(ctx context.Context, db sketchsearch.Database) ([]Match, error) {
		switch db.Filename {
		case "a.db":
			return []Match{{Score: 0.5, Sketch: shared, Filename: db.Filename}}, nil
		case "b.db":
			// Same content (and therefore same md5) as a.db's match;
			// ParallelVisit must dedup these into one.
			return []Match{{Score: 0.5, Sketch: shared, Filename: db.Filename}}, nil
		default:
			return []Match{{Score: 0.9, Sketch: sketch(1000, 9, 9, 9, 1), Filename: db.Filename}}, nil
		}
	}

	matches, err := ParallelVisit(context.Background(), dbs, visit)
	if err != nil {
		t.Fatalf("ParallelVisit: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2 (one deduped): %+v", len(matches), matches)
	}
	if matches[0].Score < matches[1].Score {
		t.Errorf("matches not sorted descending by score: %+v", matches)
	}
}

func TestParallelVisitPropagatesError(t *testing.T) {
	dbs := []sketchsearch.Database{{Filename: "a.db"}}
	wantErr := errors.New("boom")
	visit := func(ctx context.Context, db sketchsearch.Database) ([]Match, error) {
		return nil, wantErr
	}
	_, err := ParallelVisit(context.Background(), dbs, visit)
	if !errors.Is(err, wantErr) {
		t.Errorf("got %v, want %v", err, wantErr)
	}
}

func TestBestMatchTieBreaksByAscendingMD5(t *testing.T) {
	a := sketch(1000, 1, 2, 3)
	b := sketch(1000, 4, 5, 6)
	matches := []Match{
		{Score: 0.7, Sketch: a},
		{Score: 0.7, Sketch: b},
	}
	best, ok := BestMatch(matches)
	if !ok {
		t.Fatalf("expected a result")
	}
	wantMD5 := a.MD5Sum()
	if b.MD5Sum() < a.MD5Sum() {
		wantMD5 = b.MD5Sum()
	}
	if best.Sketch.MD5Sum() != wantMD5 {
		t.Errorf("got md5 %s, want %s (ascending tie-break)", best.Sketch.MD5Sum(), wantMD5)
	}
}

func TestBestMatchEmpty(t *testing.T) {
	if _, ok := BestMatch(nil); ok {
		t.Errorf("expected ok=false for an empty match list")
	}
}
