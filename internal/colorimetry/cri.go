package colorimetry

import (
	"math"

	"github.com/qdlab/nanolume/internal/model"
	"github.com/qdlab/nanolume/internal/spectrum"
)

// BandPower is the spectrum energy split into three coarse bands.
type BandPower struct {
	Red   float64 `json:"red"`
	Green float64 `json:"green"`
	Blue  float64 `json:"blue"`
}

// Total is the energy over all bands.
func (p BandPower) Total() float64 {
	return p.Red + p.Green + p.Blue
}

// SplitBands sums intensities into red (λ > red edge), green
// (green edge < λ ≤ red edge) and blue (everything else).
func SplitBands(s spectrum.Spectrum, c model.CRIConstants) BandPower {
	var p BandPower
	for _, sample := range s {
		switch {
		case sample.WavelengthNM > c.RedEdgeNM:
			p.Red += sample.Intensity
		case sample.WavelengthNM > c.GreenEdgeNM:
			p.Green += sample.Intensity
		default:
			p.Blue += sample.Intensity
		}
	}
	return p
}

// EstimateCRI scores how evenly a spectrum covers red, green and blue.
//
// This is a balance heuristic, not the CIE 13.3 colour rendering index:
//
//	balance = min(red, green, 1.5·blue) / (total/3.5)
//	cri     = min(round(60 + 40·balance), 98)
//
// A spectrum with no energy scores 0.
func EstimateCRI(s spectrum.Spectrum, c model.CRIConstants) int {
	p := SplitBands(s, c)
	total := p.Total()
	if total == 0 {
		return 0
	}

	balance := min(p.Red, p.Green, p.Blue*c.BlueWeight) / (total / c.BandDivisor)
	score := int(math.Round(c.Base + balance*c.Span))

	return min(score, c.Max)
}
