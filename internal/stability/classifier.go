// Package stability maps a sinphase value to a stability tier.
package stability

import (
	"math"

	"github.com/roach88/govtag/internal/model"
)

// Band is a half-open interval [Lower, next band's Lower) mapped to a tier.
type Band struct {
	Lower float64
	Tier  model.Tier
}

// bands are scanned in ascending order of Lower. Values below the first
// band (negative metrics) and NaN fall through to alpha so the mapping is total.
var bands = []Band{
	{Lower: 0.0, Tier: model.TierAlpha},
	{Lower: 0.2, Tier: model.TierBeta},
	{Lower: 0.4, Tier: model.TierRC},
	{Lower: 0.6, Tier: model.TierStable},
	{Lower: 0.8, Tier: model.TierRelease},
}

// Bands returns a copy of the band table in ascending order.
func Bands() []Band {
	out := make([]Band, len(bands))
	copy(out, bands)
	return out
}

// Classify returns the tier whose band contains metric.
//
//	[0,0.2) alpha  [0.2,0.4) beta  [0.4,0.6) rc  [0.6,0.8) stable  [0.8,∞) release
func Classify(metric float64) model.Tier {
	tier := model.TierAlpha
	if math.IsNaN(metric) {
		return tier
	}
	for _, b := range bands {
		if metric < b.Lower {
			break
		}
		tier = b.Tier
	}
	return tier
}
