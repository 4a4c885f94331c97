package colorimetry

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qdlab/nanolume/internal/model"
	"github.com/qdlab/nanolume/internal/spectrum"
)

func flatSpectrum(level float64) spectrum.Spectrum {
	wl := spectrum.Default().Wavelengths()
	s := make(spectrum.Spectrum, len(wl))
	for i, w := range wl {
		s[i] = spectrum.Sample{WavelengthNM: w, Intensity: level}
	}
	return s
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name   string
		nm     float64
		want   Weights
		wantOK bool
	}{
		{"first entry", 380, Weights{0.001368, 0.000039, 0.006450}, true},
		{"photopic peak", 560, Weights{0.594500, 0.995000, 0.003900}, true},
		{"last entry", 730, Weights{0.001440, 0.000520, 0}, true},
		{"below table", 370, Weights{}, false},
		{"above table", 740, Weights{}, false},
		{"off lattice", 555, Weights{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Lookup(tt.nm)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTableCoversRange(t *testing.T) {
	wl := TableWavelengths()
	require.Len(t, wl, 36)
	assert.InDelta(t, 380, wl[0], 0)
	assert.InDelta(t, 730, wl[35], 0)
	for _, w := range wl {
		_, ok := Lookup(w)
		assert.True(t, ok, "wavelength %v", w)
	}
}

func TestNearestTableWavelength(t *testing.T) {
	assert.InDelta(t, 390, nearestTableWavelength(385), 0)
	assert.InDelta(t, 380, nearestTableWavelength(380), 0)
	assert.InDelta(t, 730, nearestTableWavelength(725), 0)
	assert.InDelta(t, 740, nearestTableWavelength(735), 0)
	assert.InDelta(t, 610, nearestTableWavelength(610.5), 0)
}

func TestIntegrateIgnoresSamplesOutsideTable(t *testing.T) {
	s := spectrum.Spectrum{
		{WavelengthNM: 735, Intensity: 10},
		{WavelengthNM: 780, Intensity: 10},
	}
	assert.Equal(t, Tristimulus{}, Integrate(s))
	assert.Equal(t, Black, SpectrumToColor(s))
}

func TestDarkSpectrumIsBlack(t *testing.T) {
	got := SpectrumToColor(flatSpectrum(0))
	assert.Equal(t, "rgb(0,0,0)", got.DisplayColor)
	assert.Equal(t, "#000000", got.Hex)
	assert.Zero(t, got.X)
	assert.Zero(t, got.Y)

	assert.Equal(t, Black, SpectrumToColor(nil))
}

func TestNarrowGreenLine(t *testing.T) {
	got := SpectrumToColor(spectrum.Default().Gaussian(555, 1))

	assert.Greater(t, got.Y, got.X)
	assert.Equal(t, "rgb(150,255,0)", got.DisplayColor)
	assert.Equal(t, "#96ff00", got.Hex)
	assert.InDelta(t, 0.3731, got.X, 1e-9)
	assert.InDelta(t, 0.6245, got.Y, 1e-9)
}

func TestKnownColors(t *testing.T) {
	b := spectrum.Default()

	red := SpectrumToColor(b.Gaussian(610, 40))
	assert.Equal(t, "rgb(255,46,0)", red.DisplayColor)
	assert.InDelta(t, 0.6444, red.X, 1e-9)
	assert.InDelta(t, 0.3552, red.Y, 1e-9)

	blue := SpectrumToColor(b.Gaussian(470, 25))
	assert.Equal(t, "rgb(0,78,255)", blue.DisplayColor)
	assert.InDelta(t, 0.1202, blue.X, 1e-9)
	assert.InDelta(t, 0.0784, blue.Y, 1e-9)
}

func TestColorIsScaleInvariantAboveUnity(t *testing.T) {
	b := spectrum.Default()
	g := b.Gaussian(600, 50)
	scaled := spectrum.Mix(g, 3, g, 0)

	assert.Equal(t, SpectrumToColor(g), SpectrumToColor(scaled))
}

func TestGammaEncode(t *testing.T) {
	assert.InDelta(t, 0, GammaEncode(0), 0)
	assert.InDelta(t, 12.92*0.002, GammaEncode(0.002), 1e-15)
	assert.InDelta(t, 1, GammaEncode(1), 1e-12)
	assert.InDelta(t, 0.7353569, GammaEncode(0.5), 1e-6)
}

func TestEstimateCRIFlatSpectrum(t *testing.T) {
	c := model.Default().CRI

	p := SplitBands(flatSpectrum(1), c)
	assert.InDelta(t, 36, p.Red, 0)
	assert.InDelta(t, 18, p.Green, 0)
	assert.InDelta(t, 27, p.Blue, 0)

	assert.Equal(t, 91, EstimateCRI(flatSpectrum(1), c))
	assert.Equal(t, 91, EstimateCRI(flatSpectrum(0.01), c))
}

func TestEstimateCRIDarkSpectrum(t *testing.T) {
	c := model.Default().CRI
	assert.Equal(t, 0, EstimateCRI(flatSpectrum(0), c))
	assert.Equal(t, 0, EstimateCRI(nil, c))
}

func TestEstimateCRISingleBand(t *testing.T) {
	c := model.Default().CRI
	b := spectrum.Default()

	// One missing band drives the balance to zero.
	assert.Equal(t, 60, EstimateCRI(b.Gaussian(610, 40), c))
	assert.Equal(t, 60, EstimateCRI(b.Gaussian(455, 20), c))
}

func TestEstimateCRIBounds(t *testing.T) {
	c := model.Default().CRI
	rng := rand.New(rand.NewPCG(7, 11))

	wl := spectrum.Default().Wavelengths()
	for range 500 {
		s := make(spectrum.Spectrum, len(wl))
		for i, w := range wl {
			s[i] = spectrum.Sample{WavelengthNM: w, Intensity: rng.Float64() * 3}
		}
		cri := EstimateCRI(s, c)
		assert.GreaterOrEqual(t, cri, 60)
		assert.LessOrEqual(t, cri, 98)
	}
}

func TestEstimateCRICapped(t *testing.T) {
	c := model.Default().CRI
	// Equal red and green with enough blue: balance 3.5/3 pushes past the cap.
	s := spectrum.Spectrum{
		{WavelengthNM: 450, Intensity: 1},
		{WavelengthNM: 550, Intensity: 1.5},
		{WavelengthNM: 650, Intensity: 1.5},
	}
	assert.Equal(t, 98, EstimateCRI(s, c))
}
