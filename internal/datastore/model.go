package datastore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/qdlab/nanolume/internal/colorimetry"
	"github.com/qdlab/nanolume/internal/simulation"
	"github.com/qdlab/nanolume/internal/spectrum"
)

// SimulationRun is a saved simulation: the inputs, the scalar outputs and
// the mixed spectrum serialised as JSON.
type SimulationRun struct {
	ID   string `gorm:"primaryKey;size:36" json:"id"`
	Name string `gorm:"size:128;index" json:"name"`

	RadiusNM        float64 `gorm:"column:radius_nm" json:"radius"`
	ReactionTimeMin float64 `gorm:"column:reaction_time_min" json:"time"`
	FWHMNM          float64 `gorm:"column:fwhm_nm" json:"fwhm"`
	ZrConcentration float64 `gorm:"column:zr_concentration" json:"zr"`
	CoreShell       bool    `gorm:"column:core_shell" json:"coreShell"`

	PeakWavelengthNM float64 `gorm:"column:peak_wavelength_nm" json:"peakWavelength"`
	EnergyEV         float64 `gorm:"column:energy_ev" json:"energy"`
	DisplayColor     string  `gorm:"size:24" json:"displayColor"`
	Hex              string  `gorm:"size:7" json:"hex"`
	ChromaX          float64 `json:"x"`
	ChromaY          float64 `json:"y"`
	CRI              int     `gorm:"column:cri" json:"cri"`
	SpectrumJSON     string  `gorm:"type:text" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// Preset is a named set of inputs.
type Preset struct {
	Name string `gorm:"primaryKey;size:64" json:"name"`

	RadiusNM        float64 `gorm:"column:radius_nm" json:"radius"`
	ReactionTimeMin float64 `gorm:"column:reaction_time_min" json:"time"`
	FWHMNM          float64 `gorm:"column:fwhm_nm" json:"fwhm"`
	ZrConcentration float64 `gorm:"column:zr_concentration" json:"zr"`
	CoreShell       bool    `gorm:"column:core_shell" json:"coreShell"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSimulationRun builds a run with a fresh UUID from a computed result.
func NewSimulationRun(name string, in simulation.Inputs, res simulation.Result) (*SimulationRun, error) {
	data, err := json.Marshal(res.Spectrum)
	if err != nil {
		return nil, fmt.Errorf("encoding spectrum: %w", err)
	}

	return &SimulationRun{
		ID:               uuid.NewString(),
		Name:             name,
		RadiusNM:         in.RadiusNM,
		ReactionTimeMin:  in.ReactionTimeMin,
		FWHMNM:           in.FWHMNM,
		ZrConcentration:  in.ZrConcentration,
		CoreShell:        in.CoreShell,
		PeakWavelengthNM: res.PeakWavelengthNM,
		EnergyEV:         res.EnergyEV,
		DisplayColor:     res.Color.DisplayColor,
		Hex:              res.Color.Hex,
		ChromaX:          res.Color.X,
		ChromaY:          res.Color.Y,
		CRI:              res.CRI,
		SpectrumJSON:     string(data),
	}, nil
}

// Inputs returns the simulation inputs the run was computed from.
func (r *SimulationRun) Inputs() simulation.Inputs {
	return simulation.Inputs{
		RadiusNM:        r.RadiusNM,
		ReactionTimeMin: r.ReactionTimeMin,
		FWHMNM:          r.FWHMNM,
		ZrConcentration: r.ZrConcentration,
		CoreShell:       r.CoreShell,
	}
}

// Result rebuilds the stored simulation result.
func (r *SimulationRun) Result() (simulation.Result, error) {
	var s spectrum.Spectrum
	if r.SpectrumJSON != "" {
		if err := json.Unmarshal([]byte(r.SpectrumJSON), &s); err != nil {
			return simulation.Result{}, fmt.Errorf("decoding spectrum of run %s: %w", r.ID, err)
		}
	}

	return simulation.Result{
		Spectrum:         s,
		PeakWavelengthNM: r.PeakWavelengthNM,
		EnergyEV:         r.EnergyEV,
		Color: colorimetry.Result{
			DisplayColor: r.DisplayColor,
			Hex:          r.Hex,
			X:            r.ChromaX,
			Y:            r.ChromaY,
		},
		CRI: r.CRI,
	}, nil
}

// NewPreset builds a preset from inputs.
func NewPreset(name string, in simulation.Inputs) *Preset {
	return &Preset{
		Name:            name,
		RadiusNM:        in.RadiusNM,
		ReactionTimeMin: in.ReactionTimeMin,
		FWHMNM:          in.FWHMNM,
		ZrConcentration: in.ZrConcentration,
		CoreShell:       in.CoreShell,
	}
}

// Inputs returns the preset's simulation inputs.
func (p *Preset) Inputs() simulation.Inputs {
	return simulation.Inputs{
		RadiusNM:        p.RadiusNM,
		ReactionTimeMin: p.ReactionTimeMin,
		FWHMNM:          p.FWHMNM,
		ZrConcentration: p.ZrConcentration,
		CoreShell:       p.CoreShell,
	}
}
