package sketchsearch

import "testing"

func TestFormatBP(t *testing.T) {
	cases := []struct {
		n    float64
		want string
	}{
		{499, "499 bp "},
		{500, "0.5 kbp"},
		{500000, "500.0 kbp"},
		{500001, "0.5 Mbp"},
		{499e9, "499.0 Gbp"},
		{500e9, "???"},
	}
	for _, c := range cases {
		if got := FormatBP(c.n); got != c.want {
			t.Errorf("FormatBP(%v) = %q, want %q", c.n, got, c.want)
		}
	}
}

func TestBasePairsString(t *testing.T) {
	if got, want := BasePairs(500001).String(), "0.5 Mbp"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
