// Package spectrum builds sampled spectra on the fixed visible-range grid.
package spectrum

import (
	"math"
	"slices"
	"sync"

	"github.com/qdlab/nanolume/internal/model"
)

// Sample is one point of a spectrum.
type Sample struct {
	WavelengthNM float64 `json:"wavelength" yaml:"wavelength"`
	Intensity    float64 `json:"intensity" yaml:"intensity"`
}

// Spectrum is an ascending, evenly spaced sequence of samples. Intensities
// are relative and unitless.
type Spectrum []Sample

// Clone returns a deep copy.
func (s Spectrum) Clone() Spectrum {
	return slices.Clone(s)
}

// Peak returns the sample with the highest intensity. The first maximum
// wins on ties; an empty spectrum yields the zero Sample.
func (s Spectrum) Peak() Sample {
	var best Sample
	for i, sample := range s {
		if i == 0 || sample.Intensity > best.Intensity {
			best = sample
		}
	}
	return best
}

// Total is the plain sum of intensities.
func (s Spectrum) Total() float64 {
	var sum float64
	for _, sample := range s {
		sum += sample.Intensity
	}
	return sum
}

// Builder produces spectra on the grid described by a model.Constants.
// It is safe for concurrent use.
type Builder struct {
	consts     model.Constants
	grid       []float64
	excitation func() Spectrum
}

// NewBuilder returns a Builder for the given constant set.
func NewBuilder(c model.Constants) *Builder {
	b := &Builder{consts: c}

	n := c.Spectrum.GridLen()
	b.grid = make([]float64, n)
	for i := range n {
		b.grid[i] = c.Spectrum.StartNM + float64(i)*c.Spectrum.StepNM
	}

	b.excitation = sync.OnceValue(func() Spectrum {
		return b.Gaussian(c.Excitation.PeakNM, c.Excitation.FWHMNM)
	})

	return b
}

var defaultBuilder = sync.OnceValue(func() *Builder {
	return NewBuilder(model.Default())
})

// Default returns the shared Builder for model.Default().
func Default() *Builder {
	return defaultBuilder()
}

// Constants returns the constant set the builder was created with.
func (b *Builder) Constants() model.Constants {
	return b.consts
}

// Wavelengths returns a copy of the sampling grid in nm.
func (b *Builder) Wavelengths() []float64 {
	return slices.Clone(b.grid)
}

// Gaussian samples exp(−(λ−center)²/(2σ²)) with σ = fwhm/2.355. The curve is
// peak-normalized, not area-normalized: the value is exactly 1 when center
// falls on a grid point.
func (b *Builder) Gaussian(centerNM, fwhmNM float64) Spectrum {
	sigma := fwhmNM / b.consts.Spectrum.FWHMToSigma
	twoSigmaSq := 2 * sigma * sigma

	out := make(Spectrum, len(b.grid))
	for i, wl := range b.grid {
		d := wl - centerNM
		out[i] = Sample{WavelengthNM: wl, Intensity: math.Exp(-d * d / twoSigmaSq)}
	}
	return out
}

// Excitation returns the pump-source spectrum. It is computed once per
// Builder; each call hands out a fresh copy.
func (b *Builder) Excitation() Spectrum {
	return b.excitation().Clone()
}
