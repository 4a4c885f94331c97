// Package model holds the empirical constants of the AgGaS₂ optical model.
//
// Every number the pipeline uses lives in Constants so alternative
// calibrations can be loaded from configuration and compared side by side.
// A Constants value is never mutated after construction; copy it to derive
// a variant.
package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/qdlab/nanolume/internal/errors"
)

// Constants groups every empirical constant of the model.
type Constants struct {
	Emission   EmissionConstants   `json:"emission" yaml:"emission" mapstructure:"emission"`
	Spectrum   SpectrumConstants   `json:"spectrum" yaml:"spectrum" mapstructure:"spectrum"`
	Dopant     DopantConstants     `json:"dopant" yaml:"dopant" mapstructure:"dopant"`
	Excitation ExcitationConstants `json:"excitation" yaml:"excitation" mapstructure:"excitation"`
	CRI        CRIConstants        `json:"cri" yaml:"cri" mapstructure:"cri"`
}

// EmissionConstants parameterise the band-gap curve fit:
//
//	E = BulkGap + Confinement/r² − Coulomb/r − (StokesShift + SurfaceStokes/r)
type EmissionConstants struct {
	BulkGapEV         float64 `json:"bulk_gap_ev" yaml:"bulk_gap_ev" mapstructure:"bulk_gap_ev"`
	ConfinementEVNM2  float64 `json:"confinement_ev_nm2" yaml:"confinement_ev_nm2" mapstructure:"confinement_ev_nm2"`
	CoulombEVNM       float64 `json:"coulomb_ev_nm" yaml:"coulomb_ev_nm" mapstructure:"coulomb_ev_nm"`
	StokesShiftEV     float64 `json:"stokes_shift_ev" yaml:"stokes_shift_ev" mapstructure:"stokes_shift_ev"`
	SurfaceStokesEVNM float64 `json:"surface_stokes_ev_nm" yaml:"surface_stokes_ev_nm" mapstructure:"surface_stokes_ev_nm"`
	BlueShiftOnsetMin float64 `json:"blue_shift_onset_min" yaml:"blue_shift_onset_min" mapstructure:"blue_shift_onset_min"`
	BlueShiftEVPerMin float64 `json:"blue_shift_ev_per_min" yaml:"blue_shift_ev_per_min" mapstructure:"blue_shift_ev_per_min"`
	ShellShiftEV      float64 `json:"shell_shift_ev" yaml:"shell_shift_ev" mapstructure:"shell_shift_ev"`
	PhotonEVNM        float64 `json:"photon_ev_nm" yaml:"photon_ev_nm" mapstructure:"photon_ev_nm"`
	MinWavelengthNM   float64 `json:"min_wavelength_nm" yaml:"min_wavelength_nm" mapstructure:"min_wavelength_nm"`
	MaxWavelengthNM   float64 `json:"max_wavelength_nm" yaml:"max_wavelength_nm" mapstructure:"max_wavelength_nm"`
}

// SpectrumConstants describe the sampling grid shared by every spectrum.
type SpectrumConstants struct {
	StartNM       float64 `json:"start_nm" yaml:"start_nm" mapstructure:"start_nm"`
	EndNM         float64 `json:"end_nm" yaml:"end_nm" mapstructure:"end_nm"`
	StepNM        float64 `json:"step_nm" yaml:"step_nm" mapstructure:"step_nm"`
	FWHMToSigma   float64 `json:"fwhm_to_sigma" yaml:"fwhm_to_sigma" mapstructure:"fwhm_to_sigma"`
	DefaultFWHMNM float64 `json:"default_fwhm_nm" yaml:"default_fwhm_nm" mapstructure:"default_fwhm_nm"`
}

// DopantConstants describe the Zr-related defect band.
type DopantConstants struct {
	PeakNM         float64 `json:"peak_nm" yaml:"peak_nm" mapstructure:"peak_nm"`
	FWHMNM         float64 `json:"fwhm_nm" yaml:"fwhm_nm" mapstructure:"fwhm_nm"`
	Gain           float64 `json:"gain" yaml:"gain" mapstructure:"gain"`
	SaturationMmol float64 `json:"saturation_mmol" yaml:"saturation_mmol" mapstructure:"saturation_mmol"`
}

// ExcitationConstants describe the blue pump LED and how it mixes with emission.
type ExcitationConstants struct {
	PeakNM             float64 `json:"peak_nm" yaml:"peak_nm" mapstructure:"peak_nm"`
	FWHMNM             float64 `json:"fwhm_nm" yaml:"fwhm_nm" mapstructure:"fwhm_nm"`
	Bleed              float64 `json:"bleed" yaml:"bleed" mapstructure:"bleed"`
	QuenchSlope        float64 `json:"quench_slope" yaml:"quench_slope" mapstructure:"quench_slope"`
	MinIntensityFactor float64 `json:"min_intensity_factor" yaml:"min_intensity_factor" mapstructure:"min_intensity_factor"`
}

// CRIConstants parameterise the three-band colour-rendering heuristic.
type CRIConstants struct {
	RedEdgeNM   float64 `json:"red_edge_nm" yaml:"red_edge_nm" mapstructure:"red_edge_nm"`
	GreenEdgeNM float64 `json:"green_edge_nm" yaml:"green_edge_nm" mapstructure:"green_edge_nm"`
	BlueWeight  float64 `json:"blue_weight" yaml:"blue_weight" mapstructure:"blue_weight"`
	BandDivisor float64 `json:"band_divisor" yaml:"band_divisor" mapstructure:"band_divisor"`
	Base        float64 `json:"base" yaml:"base" mapstructure:"base"`
	Span        float64 `json:"span" yaml:"span" mapstructure:"span"`
	Max         int     `json:"max" yaml:"max" mapstructure:"max"`
}

// Default returns the calibrated constant set.
func Default() Constants {
	return Constants{
		Emission: EmissionConstants{
			BulkGapEV:         2.73,
			ConfinementEVNM2:  0.8,
			CoulombEVNM:       0.3,
			StokesShiftEV:     0.65,
			SurfaceStokesEVNM: 0.1,
			BlueShiftOnsetMin: 30,
			BlueShiftEVPerMin: 0.17 / 60,
			ShellShiftEV:      0.09,
			PhotonEVNM:        1240,
			MinWavelengthNM:   400,
			MaxWavelengthNM:   700,
		},
		Spectrum: SpectrumConstants{
			StartNM:       380,
			EndNM:         780,
			StepNM:        5,
			FWHMToSigma:   2.355,
			DefaultFWHMNM: 80,
		},
		Dopant: DopantConstants{
			PeakNM:         470,
			FWHMNM:         25,
			Gain:           1.5,
			SaturationMmol: 0.3,
		},
		Excitation: ExcitationConstants{
			PeakNM:             455,
			FWHMNM:             20,
			Bleed:              0.4,
			QuenchSlope:        2,
			MinIntensityFactor: 0.2,
		},
		CRI: CRIConstants{
			RedEdgeNM:   600,
			GreenEdgeNM: 510,
			BlueWeight:  1.5,
			BandDivisor: 3.5,
			Base:        60,
			Span:        40,
			Max:         98,
		},
	}
}

// The spectral grid is fixed: every spectrum has 81 samples from 380 to
// 780 nm in 5 nm steps.
const (
	GridStartNM = 380.0
	GridEndNM   = 780.0
	GridStepNM  = 5.0
)

// MinFWHMNM is the narrowest line width a Gaussian is evaluated with. Narrower
// widths underflow 2σ² to zero.
const MinFWHMNM = 1.0

// GridLen is the number of samples on the spectral grid.
func (s SpectrumConstants) GridLen() int {
	return int(math.Floor((s.EndNM-s.StartNM)/s.StepNM+1e-9)) + 1
}

// Validate reports every constant that would make the pipeline ill-defined.
func (c Constants) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	e := c.Emission
	check(e.PhotonEVNM > 0, "emission.photon_ev_nm must be positive, got %v", e.PhotonEVNM)
	check(e.MinWavelengthNM > 0 && e.MinWavelengthNM < e.MaxWavelengthNM,
		"emission wavelength clamp [%v, %v] is empty", e.MinWavelengthNM, e.MaxWavelengthNM)
	check(e.BlueShiftEVPerMin >= 0, "emission.blue_shift_ev_per_min must not be negative")

	s := c.Spectrum
	check(s.StartNM == GridStartNM && s.EndNM == GridEndNM && s.StepNM == GridStepNM,
		"spectrum grid must be [%v, %v] step %v, got [%v, %v] step %v",
		GridStartNM, GridEndNM, GridStepNM, s.StartNM, s.EndNM, s.StepNM)
	check(s.FWHMToSigma > 0, "spectrum.fwhm_to_sigma must be positive")
	check(s.DefaultFWHMNM >= MinFWHMNM, "spectrum.default_fwhm_nm must be at least %v, got %v", MinFWHMNM, s.DefaultFWHMNM)

	d := c.Dopant
	check(d.FWHMNM >= MinFWHMNM, "dopant.fwhm_nm must be at least %v, got %v", MinFWHMNM, d.FWHMNM)
	check(d.SaturationMmol > 0, "dopant.saturation_mmol must be positive")
	check(d.Gain >= 0, "dopant.gain must not be negative")

	x := c.Excitation
	check(x.FWHMNM >= MinFWHMNM, "excitation.fwhm_nm must be at least %v, got %v", MinFWHMNM, x.FWHMNM)
	check(x.Bleed >= 0, "excitation.bleed must not be negative")
	check(x.MinIntensityFactor >= 0 && x.MinIntensityFactor <= 1,
		"excitation.min_intensity_factor must be within [0, 1]")

	r := c.CRI
	check(r.GreenEdgeNM < r.RedEdgeNM, "cri band edges out of order: green %v >= red %v", r.GreenEdgeNM, r.RedEdgeNM)
	check(r.BandDivisor > 0, "cri.band_divisor must be positive")
	check(r.Max > 0, "cri.max must be positive")

	if len(problems) == 0 {
		return nil
	}

	return errors.Newf("invalid model constants: %s", strings.Join(problems, "; ")).
		Component("model").
		Category(errors.CategoryModel).
		Context("problems", len(problems)).
		Build()
}
