package sketchsearch

import "testing"

func TestSimilarityStrategy(t *testing.T) {
	s := similarityStrategy{}
	q := sketch(1000, 1, 2, 3)
	c := sketch(1000, 2, 3, 4)
	score, ok := s.Score(q, c)
	if !ok {
		t.Fatalf("expected ok")
	}
	if want := 2.0 / 4.0; score != want {
		t.Errorf("got %v, want %v", score, want)
	}
	if s.ShouldPrune(0) {
		t.Errorf("similarityStrategy should never prune")
	}
}

func TestContainmentStrategy(t *testing.T) {
	s := containmentStrategy{}
	q := sketch(1000, 1, 2, 3, 4)
	c := sketch(1000, 3, 4, 5, 6, 7)
	score, ok := s.Score(q, c)
	if !ok {
		t.Fatalf("expected ok")
	}
	if want := 2.0 / 4.0; score != want {
		t.Errorf("got %v, want %v", score, want)
	}
}

func TestFindBestStrategyPrunesBelowMax(t *testing.T) {
	s := newFindBestStrategy()
	q := sketch(1000, 1, 2, 3, 4, 5, 6, 7, 8)

	low := sketch(1000, 1, 2)
	scoreLow, _ := s.Score(q, low)
	if s.ShouldPrune(scoreLow) {
		t.Fatalf("first candidate should set the bar, not be pruned retroactively")
	}

	high := sketch(1000, 1, 2, 3, 4, 5, 6)
	scoreHigh, _ := s.Score(q, high)
	if scoreHigh <= scoreLow {
		t.Fatalf("test setup: expected high to score above low")
	}

	if !s.ShouldPrune(scoreLow) {
		t.Errorf("a branch scoring at the old low-water mark should now be pruned")
	}
	if s.ShouldPrune(scoreHigh) {
		t.Errorf("the current best should not prune itself")
	}
}

func TestFindBestIgnoreMaxHashStrategyUsesRawSimilarity(t *testing.T) {
	s := newFindBestIgnoreMaxHashStrategy()
	maxHash1000 := NewMaxHash(1000)

	q := NewMinHash("q", 21, DNA, 0, false)
	q.AddMany([]uint64{1, 2, maxHash1000 + 50})

	c := NewMinHash("c", 21, DNA, 0, false)
	c.AddMany([]uint64{1, 2, maxHash1000 + 50})

	score, ok := s.Score(q, c)
	if !ok {
		t.Fatalf("expected ok")
	}
	if score != 1 {
		t.Errorf("got %v, want 1 (identical raw hash sets)", score)
	}
}
