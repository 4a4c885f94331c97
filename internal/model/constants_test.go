package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qdlab/nanolume/internal/errors"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefaultGrid(t *testing.T) {
	s := Default().Spectrum
	assert.Equal(t, 81, s.GridLen())
}

func TestValidateCollectsProblems(t *testing.T) {
	c := Default()
	c.Spectrum.StepNM = 0
	c.Emission.MinWavelengthNM = 800
	c.CRI.GreenEdgeNM = 650

	err := c.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModel))
	assert.Contains(t, err.Error(), "spectrum grid")
	assert.Contains(t, err.Error(), "wavelength clamp")
	assert.Contains(t, err.Error(), "cri band edges")
}

func TestDefaultReturnsIndependentCopies(t *testing.T) {
	a := Default()
	a.Emission.BulkGapEV = 3

	assert.InDelta(t, 2.73, Default().Emission.BulkGapEV, 1e-12)
}

func TestValidateRejectsOtherGrids(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*SpectrumConstants)
	}{
		{"coarser step", func(s *SpectrumConstants) { s.StepNM = 10 }},
		{"later start", func(s *SpectrumConstants) { s.StartNM = 400 }},
		{"earlier end", func(s *SpectrumConstants) { s.EndNM = 700 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c.Spectrum)

			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryModel))
			assert.Contains(t, err.Error(), "spectrum grid must be [380, 780] step 5")
		})
	}
}

func TestValidateRejectsDegenerateWidths(t *testing.T) {
	c := Default()
	c.Spectrum.DefaultFWHMNM = 1e-200
	c.Dopant.FWHMNM = 0.5
	c.Excitation.FWHMNM = 0

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spectrum.default_fwhm_nm must be at least 1")
	assert.Contains(t, err.Error(), "dopant.fwhm_nm must be at least 1")
	assert.Contains(t, err.Error(), "excitation.fwhm_nm must be at least 1")
}
