package score

import "fmt"

// Tier is a performance classification of a composite score.
type Tier int

// Tiers in ascending order.
const (
	TierEntry Tier = iota
	TierProduction
	TierHighPerformance
)

// Thresholds that map a composite score to a tier.
const (
	ThresholdProduction      = 50.0
	ThresholdHighPerformance = 200.0
)

// Classify maps a composite score to its tier. NaN classifies as
// TierEntry.
func Classify(composite float64) Tier {
	switch {
	case composite >= ThresholdHighPerformance:
		return TierHighPerformance
	case composite >= ThresholdProduction:
		return TierProduction
	default:
		return TierEntry
	}
}

func (t Tier) String() string {
	switch t {
	case TierEntry:
		return "Entry/Dev"
	case TierProduction:
		return "Production-Ready"
	case TierHighPerformance:
		return "High-Performance"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// MarshalText encodes the tier as its display name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a display name produced by MarshalText.
func (t *Tier) UnmarshalText(text []byte) error {
	for _, c := range []Tier{TierEntry, TierProduction, TierHighPerformance} {
		if c.String() == string(text) {
			*t = c

			return nil
		}
	}

	return fmt.Errorf("unknown tier %q", text)
}
