package recurrence

import "bankcal/internal/core"

// Band classifies an amount's magnitude for matching purposes.
type Band string

const (
	BandSmall  Band = "small"
	BandMedium Band = "medium"
	BandLarge  Band = "large"
)

// Thresholds in cents.
const (
	smallBandMax    = 50_00
	largeBandMin    = 500_00
	smallAbsRadius  = 50 // 0.5 units
	mediumRelRadius = 0.01
	largeRelRadius  = 0.005
)

// ClassifyBand returns the band for a signed amount. Sign is ignored.
func ClassifyBand(amount core.Money) Band {
	return bandOf(float64(amount.Abs()))
}

func bandOf(magnitude float64) Band {
	switch {
	case magnitude <= smallBandMax:
		return BandSmall
	case magnitude < largeBandMin:
		return BandMedium
	default:
		return BandLarge
	}
}

// ToleranceRadius returns how far (in cents) an amount may sit from
// magnitude and still count as the same recurring charge. Small amounts use
// an absolute radius, larger ones a relative one.
func ToleranceRadius(magnitude float64) float64 {
	switch bandOf(magnitude) {
	case BandSmall:
		return smallAbsRadius
	case BandMedium:
		return magnitude * mediumRelRadius
	default:
		return magnitude * largeRelRadius
	}
}
