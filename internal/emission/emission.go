// Package emission predicts the band-edge emission of AgGaS₂ nanocrystals
// from particle radius, reaction time and shell state.
package emission

import (
	"math"

	"github.com/qdlab/nanolume/internal/model"
)

// Params is the predicted emission line.
type Params struct {
	EnergyEV         float64 `json:"energy_ev" yaml:"energy_ev"`
	PeakWavelengthNM float64 `json:"peak_wavelength_nm" yaml:"peak_wavelength_nm"`
}

// Compute evaluates the empirical band-gap fit:
//
//	E = 2.73 + 0.8/r² − 0.3/r − (0.65 + 0.1/r)
//	E += (t − 30)·0.17/60   for t > 30 min
//	E −= 0.09               for core-shell particles
//	λ = clamp(1240/E, 400, 700)
//
// Energy is rounded to 3 decimals and wavelength to 1 decimal. The radius
// must be positive; Compute does not check it.
func Compute(c model.Constants, radiusNM, reactionTimeMin float64, coreShell bool) Params {
	e := c.Emission

	energy := e.BulkGapEV +
		e.ConfinementEVNM2/(radiusNM*radiusNM) -
		e.CoulombEVNM/radiusNM -
		(e.StokesShiftEV + e.SurfaceStokesEVNM/radiusNM)

	if reactionTimeMin > e.BlueShiftOnsetMin {
		energy += (reactionTimeMin - e.BlueShiftOnsetMin) * e.BlueShiftEVPerMin
	}

	if coreShell {
		energy -= e.ShellShiftEV
	}

	wavelength := clamp(e.PhotonEVNM/energy, e.MinWavelengthNM, e.MaxWavelengthNM)

	return Params{
		EnergyEV:         round(energy, 1000),
		PeakWavelengthNM: round(wavelength, 10),
	}
}

// ComputeDefault is Compute with model.Default().
func ComputeDefault(radiusNM, reactionTimeMin float64, coreShell bool) Params {
	return Compute(model.Default(), radiusNM, reactionTimeMin, coreShell)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v, scale float64) float64 {
	return math.Round(v*scale) / scale
}
