package simulation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qdlab/nanolume/internal/errors"
	"github.com/qdlab/nanolume/internal/model"
)

// Accepted input ranges. The pipeline itself accepts anything with a
// positive radius; these bounds guard the API and CLI.
const (
	MinRadiusNM        = 2.0
	MaxRadiusNM        = 6.0
	MinReactionTimeMin = 30.0
	MaxReactionTimeMin = 90.0
	MinFWHMNM          = model.MinFWHMNM
	MaxFWHMNM          = 200.0
	MinZrConcentration = 0.0
	MaxZrConcentration = 0.3
)

// Inputs are the user-controlled synthesis parameters.
type Inputs struct {
	RadiusNM        float64 `json:"radius" yaml:"radius" mapstructure:"radius"`
	ReactionTimeMin float64 `json:"time" yaml:"time" mapstructure:"time"`
	FWHMNM          float64 `json:"fwhm,omitempty" yaml:"fwhm,omitempty" mapstructure:"fwhm"`
	ZrConcentration float64 `json:"zr" yaml:"zr" mapstructure:"zr"`
	CoreShell       bool    `json:"coreShell" yaml:"core_shell" mapstructure:"core_shell"`
}

// WithDefaults fills a zero FWHM from the constant set.
func (in Inputs) WithDefaults(c model.Constants) Inputs {
	if in.FWHMNM == 0 {
		in.FWHMNM = c.Spectrum.DefaultFWHMNM
	}
	return in
}

// Validate reports every out-of-range field in a single validation error.
// A zero FWHM is accepted because WithDefaults replaces it.
func (in Inputs) Validate() error {
	var problems []string

	if !inRange(in.RadiusNM, MinRadiusNM, MaxRadiusNM) {
		problems = append(problems, fmt.Sprintf("radius %g nm outside [%g, %g]", in.RadiusNM, MinRadiusNM, MaxRadiusNM))
	}
	if !inRange(in.ReactionTimeMin, MinReactionTimeMin, MaxReactionTimeMin) {
		problems = append(problems, fmt.Sprintf("reaction time %g min outside [%g, %g]", in.ReactionTimeMin, MinReactionTimeMin, MaxReactionTimeMin))
	}
	if in.FWHMNM != 0 && !inRange(in.FWHMNM, MinFWHMNM, MaxFWHMNM) {
		problems = append(problems, fmt.Sprintf("fwhm %g nm outside [%g, %g] (0 selects the default)", in.FWHMNM, MinFWHMNM, MaxFWHMNM))
	}
	if !inRange(in.ZrConcentration, MinZrConcentration, MaxZrConcentration) {
		problems = append(problems, fmt.Sprintf("zr concentration %g mmol outside [%g, %g]", in.ZrConcentration, MinZrConcentration, MaxZrConcentration))
	}

	if len(problems) == 0 {
		return nil
	}

	return errors.Newf("invalid simulation inputs: %s", strings.Join(problems, "; ")).
		Component("simulation").
		Category(errors.CategoryValidation).
		InputContext(in.RadiusNM, in.ReactionTimeMin, in.ZrConcentration, in.CoreShell).
		Context("problem_count", len(problems)).
		Build()
}

// Key identifies the exact input tuple. Floats are formatted with full
// precision so distinct inputs never share a key.
func (in Inputs) Key() string {
	var sb strings.Builder
	sb.Grow(64)
	sb.WriteString(strconv.FormatFloat(in.RadiusNM, 'g', -1, 64))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatFloat(in.ReactionTimeMin, 'g', -1, 64))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatFloat(in.FWHMNM, 'g', -1, 64))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatFloat(in.ZrConcentration, 'g', -1, 64))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatBool(in.CoreShell))
	return sb.String()
}

// inRange is false for NaN.
func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}
