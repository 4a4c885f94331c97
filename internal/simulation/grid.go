package simulation

import (
	"fmt"
	"math"

	"github.com/qdlab/nanolume/internal/errors"
)

// MaxSweepPoints bounds the number of inputs a single sweep may expand to.
const MaxSweepPoints = 10_000

// Range is an inclusive arithmetic progression From, From+Step, …, ≤ To.
// A zero Step yields the single value From.
type Range struct {
	From float64 `json:"from" yaml:"from"`
	To   float64 `json:"to" yaml:"to"`
	Step float64 `json:"step" yaml:"step"`
}

// Fixed is a Range holding exactly v.
func Fixed(v float64) Range {
	return Range{From: v, To: v}
}

// Values expands the range. Values are rounded to 9 decimals so that
// 2 + 3·0.5 prints as 3.5 rather than 3.4999999999.
func (r Range) Values() ([]float64, error) {
	switch {
	case math.IsNaN(r.From) || math.IsNaN(r.To) || math.IsNaN(r.Step):
		return nil, errors.ValidationError("range contains NaN")
	case r.Step < 0:
		return nil, errors.ValidationError(fmt.Sprintf("range step %g must not be negative", r.Step))
	case r.Step == 0:
		return []float64{r.From}, nil
	case r.To < r.From:
		return nil, errors.ValidationError(fmt.Sprintf("range end %g is below start %g", r.To, r.From))
	}

	n := int(math.Floor((r.To-r.From)/r.Step+1e-9)) + 1
	if n > MaxSweepPoints {
		return nil, errors.ValidationError(fmt.Sprintf("range expands to %d points, limit is %d", n, MaxSweepPoints))
	}

	out := make([]float64, n)
	for i := range n {
		out[i] = math.Round((r.From+float64(i)*r.Step)*1e9) / 1e9
	}
	return out, nil
}

// SweepRequest describes a radius × reaction-time grid at fixed line width,
// dopant concentration and shell state.
type SweepRequest struct {
	Radius          Range   `json:"radius" yaml:"radius"`
	ReactionTime    Range   `json:"time" yaml:"time"`
	FWHMNM          float64 `json:"fwhm,omitempty" yaml:"fwhm,omitempty"`
	ZrConcentration float64 `json:"zr" yaml:"zr"`
	CoreShell       bool    `json:"coreShell" yaml:"core_shell"`
}

// Expand returns the grid in radius-major order.
func (req SweepRequest) Expand() ([]Inputs, error) {
	radii, err := req.Radius.Values()
	if err != nil {
		return nil, err
	}
	times, err := req.ReactionTime.Values()
	if err != nil {
		return nil, err
	}
	if total := len(radii) * len(times); total > MaxSweepPoints {
		return nil, errors.ValidationError(fmt.Sprintf("sweep expands to %d points, limit is %d", total, MaxSweepPoints))
	}

	inputs := make([]Inputs, 0, len(radii)*len(times))
	for _, r := range radii {
		for _, t := range times {
			inputs = append(inputs, Inputs{
				RadiusNM:        r,
				ReactionTimeMin: t,
				FWHMNM:          req.FWHMNM,
				ZrConcentration: req.ZrConcentration,
				CoreShell:       req.CoreShell,
			})
		}
	}
	return inputs, nil
}
