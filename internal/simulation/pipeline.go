// Package simulation runs the radius → spectrum → colour pipeline and wraps
// it in a caching, metered engine for the API and CLI.
package simulation

import (
	"math"

	"github.com/qdlab/nanolume/internal/colorimetry"
	"github.com/qdlab/nanolume/internal/emission"
	"github.com/qdlab/nanolume/internal/model"
	"github.com/qdlab/nanolume/internal/spectrum"
)

// Result is the full optical prediction for one set of inputs.
type Result struct {
	Spectrum         spectrum.Spectrum  `json:"spectrum" yaml:"spectrum"`
	PeakWavelengthNM float64            `json:"peakWavelength" yaml:"peak_wavelength_nm"`
	EnergyEV         float64            `json:"energy" yaml:"energy_ev"`
	Color            colorimetry.Result `json:"color" yaml:"color"`
	CRI              int                `json:"cri" yaml:"cri"`
}

// Clone returns a deep copy.
func (r Result) Clone() Result {
	r.Spectrum = r.Spectrum.Clone()
	return r
}

// Run evaluates the pipeline. It never fails; inputs are expected to have
// been validated and defaulted by the caller.
//
// The colour is computed from the host emission alone while the CRI sees
// the host mixed with the leaked excitation light. The returned spectrum is
// the mixed one.
func Run(c model.Constants, b *spectrum.Builder, in Inputs) Result {
	params := emission.Compute(c, in.RadiusNM, in.ReactionTimeMin, in.CoreShell)

	host := b.Composite(params.PeakWavelengthNM, in.FWHMNM, in.ZrConcentration)
	excitation := b.Excitation()

	factor := IntensityFactor(c, in.ZrConcentration)
	mixed := spectrum.Mix(host, factor, excitation, c.Excitation.Bleed)

	return Result{
		Spectrum:         mixed,
		PeakWavelengthNM: params.PeakWavelengthNM,
		EnergyEV:         params.EnergyEV,
		Color:            colorimetry.SpectrumToColor(host),
		CRI:              colorimetry.EstimateCRI(mixed, c.CRI),
	}
}

// RunDefault evaluates the pipeline with the default constant set.
func RunDefault(in Inputs) Result {
	b := spectrum.Default()
	c := b.Constants()
	return Run(c, b, in.WithDefaults(c))
}

// IntensityFactor is the host quenching factor max(0.2, 1 − 2·zr).
func IntensityFactor(c model.Constants, zrConc float64) float64 {
	return math.Max(c.Excitation.MinIntensityFactor, 1-c.Excitation.QuenchSlope*zrConc)
}
