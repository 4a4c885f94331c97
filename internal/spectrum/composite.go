package spectrum

import "math"

// NormalizedDopant maps a Zr concentration in mmol to the dopant fraction
// n = min(conc/saturation, 1).
func (b *Builder) NormalizedDopant(zrConc float64) float64 {
	return math.Min(zrConc/b.consts.Dopant.SaturationMmol, 1)
}

// Composite blends the host emission band with the fixed dopant band:
//
//	I(λ) = (1−n)·G(base, fwhm) + gain·n·G(470, 25)
//
// The result is not renormalized, so at full doping the dopant peak reaches
// the gain factor (1.5 by default).
func (b *Builder) Composite(baseNM, fwhmNM, zrConc float64) Spectrum {
	n := b.NormalizedDopant(zrConc)
	host := b.Gaussian(baseNM, fwhmNM)
	dopant := b.Gaussian(b.consts.Dopant.PeakNM, b.consts.Dopant.FWHMNM)

	return Mix(host, 1-n, dopant, b.consts.Dopant.Gain*n)
}

// Mix returns a·wa + c·wc sample by sample. Both spectra must share the grid;
// the wavelengths of a are kept.
func Mix(a Spectrum, wa float64, c Spectrum, wc float64) Spectrum {
	out := make(Spectrum, len(a))
	for i := range a {
		out[i] = Sample{
			WavelengthNM: a[i].WavelengthNM,
			Intensity:    a[i].Intensity*wa + c[i].Intensity*wc,
		}
	}
	return out
}
