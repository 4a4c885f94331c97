package api

import (
	"fmt"
	"math"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qdlab/nanolume/internal/errors"
	"github.com/qdlab/nanolume/internal/simulation"
	"github.com/qdlab/nanolume/internal/spectrum"
)

// SpectrumResponse wraps a bare spectrum with its peak.
type SpectrumResponse struct {
	Peak     spectrum.Sample   `json:"peak"`
	Spectrum spectrum.Spectrum `json:"spectrum"`
}

func (c *Controller) initSpectrumRoutes() {
	c.Group.GET("/spectrum/excitation", c.GetExcitation)
	c.Group.GET("/spectrum/gaussian", c.GetGaussian)
}

// GetExcitation returns the leaked excitation spectrum on the model grid.
func (c *Controller) GetExcitation(ctx echo.Context) error {
	s := c.Engine.Builder().Excitation()
	return ctx.JSON(http.StatusOK, SpectrumResponse{Peak: s.Peak(), Spectrum: s})
}

// GetGaussian returns a unit-peak Gaussian for query parameters center and
// fwhm (nm). A missing fwhm uses the model default.
func (c *Controller) GetGaussian(ctx echo.Context) error {
	var center, fwhm float64
	err := echo.QueryParamsBinder(ctx).
		MustFloat64("center", &center).
		Float64("fwhm", &fwhm).
		BindError()
	if err != nil {
		return c.HandleError(ctx, err, "invalid query parameters", http.StatusBadRequest)
	}

	if fwhm == 0 {
		fwhm = c.Engine.Constants().Spectrum.DefaultFWHMNM
	}
	if err := validateGaussian(center, fwhm); err != nil {
		return c.HandleServiceError(ctx, err, "invalid gaussian parameters")
	}

	s := c.Engine.Builder().Gaussian(center, fwhm)
	return ctx.JSON(http.StatusOK, SpectrumResponse{Peak: s.Peak(), Spectrum: s})
}

func validateGaussian(center, fwhm float64) error {
	switch {
	case math.IsNaN(center) || math.IsInf(center, 0):
		return errors.ValidationError("center must be finite")
	case math.IsNaN(fwhm) || fwhm < simulation.MinFWHMNM || fwhm > simulation.MaxFWHMNM:
		return errors.ValidationError(fmt.Sprintf("fwhm must be in [%g, %g] nm", simulation.MinFWHMNM, simulation.MaxFWHMNM))
	}
	return nil
}
