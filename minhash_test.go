package sketchsearch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sketch(scaled uint64, hashes ...uint64) *MinHash {
	m := NewMinHash("t", 21, DNA, scaled, false)
	m.AddMany(hashes)
	return m
}

func TestMinHashSimilarity(t *testing.T) {
	cases := []struct {
		name    string
		a, b    *MinHash
		want    float64
	}{
		{"disjoint", sketch(1000, 1, 2, 3), sketch(1000, 4, 5, 6), 0},
		{"identical", sketch(1000, 1, 2, 3), sketch(1000, 1, 2, 3), 1},
		{"half overlap", sketch(1000, 1, 2, 3, 4), sketch(1000, 3, 4, 5, 6), 2.0 / 6.0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.a.Similarity(c.b, true)
			if err != nil {
				t.Fatalf("Similarity: %v", err)
			}
			if got != c.want {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestMinHashContainedBy(t *testing.T) {
	a := sketch(1000, 1, 2, 3, 4)
	b := sketch(1000, 3, 4, 5, 6, 7)
	got, err := a.ContainedBy(b, true)
	if err != nil {
		t.Fatalf("ContainedBy: %v", err)
	}
	if want := 2.0 / 4.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestMinHashResolutionMismatchWithoutDownsample(t *testing.T) {
	a := sketch(1000, 1, 2, 3)
	b := sketch(2000, 1, 2, 3)
	_, err := a.Similarity(b, false)
	require.ErrorIs(t, err, ErrResolutionMismatch)
}

func TestMinHashDownsampleReconciles(t *testing.T) {
	// scaled=1000 -> max_hash = MAX_HASH/1000; scaled=2000 -> half that.
	a := NewMinHash("a", 21, DNA, 1000, false)
	maxHash2000 := NewMaxHash(2000)
	a.AddMany([]uint64{1, 2, maxHash2000 - 1, maxHash2000 + 1, maxHash2000 + 2})
	b := sketch(2000, 1, 2, maxHash2000-1)

	got, err := a.Similarity(b, true)
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	// a downsampled to 2000 keeps {1, 2, maxHash2000-1}; b is already that
	// set exactly, so Jaccard is 1.
	if got != 1 {
		t.Errorf("got %v, want 1", got)
	}
}

func TestMinHashDownsampleToFinerRejected(t *testing.T) {
	a := sketch(2000, 1, 2, 3)
	_, err := a.Downsample(1000)
	require.ErrorIs(t, err, ErrFinerDownsample)
}

func TestMinHashSimilarityIgnoreMaxHash(t *testing.T) {
	maxHash1000 := NewMaxHash(1000)
	a := NewMinHash("a", 21, DNA, 0, false)
	a.AddMany([]uint64{1, 2, maxHash1000 + 100})
	b := NewMinHash("b", 21, DNA, 0, false)
	b.AddMany([]uint64{1, 2, maxHash1000 + 100})

	// Ordinary Similarity at scaled=1000 on a bounded copy would drop the
	// high hash; SimilarityIgnoreMaxHash must not.
	bounded := sketch(1000, 1, 2)
	if got, err := a.Similarity(bounded, true); err != nil || got != 1 {
		t.Fatalf("sanity check failed: got %v err %v", got, err)
	}
	if got := a.SimilarityIgnoreMaxHash(b); got != 1 {
		t.Errorf("SimilarityIgnoreMaxHash got %v, want 1", got)
	}
}

func TestMinHashMD5SumOrderIndependent(t *testing.T) {
	a := sketch(1000, 3, 1, 2)
	b := sketch(1000, 1, 2, 3)
	if a.MD5Sum() != b.MD5Sum() {
		t.Errorf("MD5Sum should be independent of insertion order: %s != %s", a.MD5Sum(), b.MD5Sum())
	}
}

func TestMinHashMoltypeMismatch(t *testing.T) {
	a := NewMinHash("a", 21, DNA, 1000, false)
	b := NewMinHash("b", 21, Protein, 1000, false)
	_, err := a.Similarity(b, true)
	require.ErrorIs(t, err, ErrMoltypeMismatch)
}
