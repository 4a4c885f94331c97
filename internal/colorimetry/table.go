// Package colorimetry converts sampled spectra into display colours,
// chromaticity coordinates and a coarse colour-rendering estimate.
package colorimetry

import "math"

// Weights are the colour-matching function values x̄, ȳ, z̄ at one wavelength.
type Weights struct {
	X, Y, Z float64
}

const (
	tableStartNM = 380
	tableEndNM   = 730
	tableStepNM  = 10
)

// cie1931 holds the CIE 1931 2° standard observer from 380 to 730 nm in
// 10 nm steps. Index i is wavelength 380 + 10·i.
var cie1931 = [...]Weights{
	{0.001368, 0.000039, 0.006450}, // 380
	{0.004243, 0.000120, 0.020050}, // 390
	{0.014310, 0.000396, 0.067850}, // 400
	{0.043510, 0.001210, 0.207400}, // 410
	{0.134380, 0.004000, 0.645600}, // 420
	{0.283900, 0.011600, 1.385600}, // 430
	{0.348280, 0.023000, 1.747060}, // 440
	{0.336200, 0.038000, 1.772110}, // 450
	{0.290800, 0.060000, 1.669200}, // 460
	{0.195360, 0.090980, 1.287640}, // 470
	{0.095640, 0.139020, 0.812950}, // 480
	{0.032010, 0.208020, 0.465180}, // 490
	{0.004900, 0.323000, 0.272000}, // 500
	{0.009300, 0.503000, 0.158200}, // 510
	{0.063270, 0.710000, 0.078250}, // 520
	{0.165500, 0.862000, 0.042160}, // 530
	{0.290400, 0.954000, 0.020300}, // 540
	{0.433450, 0.994950, 0.008750}, // 550
	{0.594500, 0.995000, 0.003900}, // 560
	{0.762100, 0.952000, 0.002100}, // 570
	{0.916300, 0.870000, 0.001650}, // 580
	{1.026300, 0.757000, 0.001100}, // 590
	{1.062200, 0.631000, 0.000800}, // 600
	{1.002600, 0.503000, 0.000340}, // 610
	{0.854450, 0.381000, 0.000190}, // 620
	{0.642400, 0.265000, 0.000050}, // 630
	{0.447900, 0.175000, 0.000020}, // 640
	{0.283500, 0.107000, 0.000000}, // 650
	{0.164900, 0.061000, 0.000000}, // 660
	{0.087400, 0.032000, 0.000000}, // 670
	{0.046770, 0.017000, 0.000000}, // 680
	{0.022700, 0.008210, 0.000000}, // 690
	{0.011359, 0.004102, 0.000000}, // 700
	{0.005790, 0.002091, 0.000000}, // 710
	{0.002899, 0.001047, 0.000000}, // 720
	{0.001440, 0.000520, 0.000000}, // 730
}

// Lookup returns the observer weights for a wavelength on the 10 nm table
// lattice. Wavelengths outside 380–730 nm or off the lattice report false.
func Lookup(wavelengthNM float64) (Weights, bool) {
	if wavelengthNM < tableStartNM || wavelengthNM > tableEndNM {
		return Weights{}, false
	}
	offset := (wavelengthNM - tableStartNM) / tableStepNM
	idx := int(offset)
	if float64(idx) != offset || idx >= len(cie1931) {
		return Weights{}, false
	}
	return cie1931[idx], true
}

// nearestTableWavelength rounds to the nearest multiple of 10 nm, halves
// rounding up (385 → 390).
func nearestTableWavelength(wavelengthNM float64) float64 {
	return math.Floor(wavelengthNM/tableStepNM+0.5) * tableStepNM
}

// TableWavelengths lists the wavelengths covered by the observer table.
func TableWavelengths() []float64 {
	out := make([]float64, len(cie1931))
	for i := range out {
		out[i] = tableStartNM + float64(i)*tableStepNM
	}
	return out
}
