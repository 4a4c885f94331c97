package colorimetry

import (
	"fmt"
	"math"

	"github.com/qdlab/nanolume/internal/spectrum"
)

// Tristimulus holds CIE XYZ values.
type Tristimulus struct {
	X float64 `json:"X"`
	Y float64 `json:"Y"`
	Z float64 `json:"Z"`
}

// Sum is X+Y+Z.
func (t Tristimulus) Sum() float64 {
	return t.X + t.Y + t.Z
}

// Result is the perceived colour of a spectrum.
type Result struct {
	DisplayColor string  `json:"displayColor" yaml:"display_color"` // "rgb(R,G,B)"
	Hex          string  `json:"hex" yaml:"hex"`
	X            float64 `json:"x" yaml:"x"` // chromaticity x
	Y            float64 `json:"y" yaml:"y"` // chromaticity y
}

// Black is the colour of a spectrum with no visible energy.
var Black = Result{DisplayColor: "rgb(0,0,0)", Hex: "#000000"}

// xyzToLinearSRGB is the XYZ → linear sRGB (D65) matrix.
var xyzToLinearSRGB = [3][3]float64{
	{3.2404542, -1.5371385, -0.4985314},
	{-0.9692660, 1.8760108, 0.0415560},
	{0.0556434, -0.2040259, 1.0572252},
}

// Integrate accumulates the spectrum against the observer table. Each sample
// contributes at its wavelength rounded to the nearest 10 nm; samples that
// land outside the table contribute nothing.
func Integrate(s spectrum.Spectrum) Tristimulus {
	var t Tristimulus
	for _, sample := range s {
		w, ok := Lookup(nearestTableWavelength(sample.WavelengthNM))
		if !ok {
			continue
		}
		t.X += sample.Intensity * w.X
		t.Y += sample.Intensity * w.Y
		t.Z += sample.Intensity * w.Z
	}
	return t
}

// SpectrumToColor converts a spectrum to an sRGB display colour and CIE
// chromaticity. A spectrum without visible energy maps to Black.
func SpectrumToColor(s spectrum.Spectrum) Result {
	return FromTristimulus(Integrate(s))
}

// FromTristimulus tone-maps XYZ into sRGB: the linear triple is divided by
// max(r, g, b, 1), clamped at zero and gamma encoded.
func FromTristimulus(t Tristimulus) Result {
	sum := t.Sum()
	if sum == 0 {
		return Black
	}

	m := xyzToLinearSRGB
	r := m[0][0]*t.X + m[0][1]*t.Y + m[0][2]*t.Z
	g := m[1][0]*t.X + m[1][1]*t.Y + m[1][2]*t.Z
	b := m[2][0]*t.X + m[2][1]*t.Y + m[2][2]*t.Z

	scale := max(r, g, b, 1)
	r, g, b = r/scale, g/scale, b/scale

	R, G, B := to8Bit(r), to8Bit(g), to8Bit(b)

	return Result{
		DisplayColor: fmt.Sprintf("rgb(%d,%d,%d)", R, G, B),
		Hex:          fmt.Sprintf("#%02x%02x%02x", R, G, B),
		X:            round4(t.X / sum),
		Y:            round4(t.Y / sum),
	}
}

// GammaEncode applies the sRGB transfer function to a linear component in [0, 1].
func GammaEncode(v float64) float64 {
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}

func to8Bit(linear float64) int {
	return int(math.Round(GammaEncode(math.Max(0, linear)) * 255))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
