package sketchsearch

import "fmt"

// BasePairs is a quantity of base pairs, for teacher-style fmt.Stringer
// ergonomics around FormatBP.
type BasePairs float64

func (b BasePairs) String() string {
	return FormatBP(float64(b))
}

// FormatBP pretty-prints a base-pair magnitude with the appropriate unit
// suffix (spec §4.F).
func FormatBP(n float64) string {
	switch {
	case n < 500:
		return fmt.Sprintf("%.0f bp ", n)
	case n <= 500e3:
		return fmt.Sprintf("%.1f kbp", n/1e3)
	case n < 500e6:
		return fmt.Sprintf("%.1f Mbp", n/1e6)
	case n < 500e9:
		return fmt.Sprintf("%.1f Gbp", n/1e9)
	default:
		return "???"
	}
}
