package api

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/qdlab/nanolume/internal/errors"
	"github.com/qdlab/nanolume/internal/simulation"
)

// maxSweepWorkers caps the parallelism a client may request.
const maxSweepWorkers = 64

// SweepPoint pairs one expanded input with its result.
type SweepPoint struct {
	Inputs simulation.Inputs `json:"inputs"`
	Result simulation.Result `json:"result"`
}

// SweepResponse is the reply of POST /sweep.
type SweepResponse struct {
	Count  int          `json:"count"`
	Points []SweepPoint `json:"points"`
}

// sweepBody is SweepRequest plus transport options.
type sweepBody struct {
	simulation.SweepRequest
	Workers  int  `json:"workers,omitempty"`
	Spectrum bool `json:"includeSpectrum,omitempty"`
}

func (c *Controller) initSimulationRoutes() {
	c.Group.POST("/simulate", c.PostSimulate)
	c.Group.GET("/simulate", c.GetSimulate)
	c.Group.GET("/simulate/spectrum.csv", c.GetSpectrumCSV)
	c.Group.POST("/sweep", c.PostSweep)
}

// PostSimulate runs the pipeline for a JSON body of inputs.
func (c *Controller) PostSimulate(ctx echo.Context) error {
	var in simulation.Inputs
	if err := ctx.Bind(&in); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	result, err := c.Engine.Simulate(ctx.Request().Context(), in)
	if err != nil {
		return c.HandleServiceError(ctx, err, "simulation failed")
	}
	return ctx.JSON(http.StatusOK, result)
}

// GetSimulate runs the pipeline for query parameters
// radius, time, fwhm, zr and coreShell.
func (c *Controller) GetSimulate(ctx echo.Context) error {
	in, err := inputsFromQuery(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid query parameters", http.StatusBadRequest)
	}

	result, err := c.Engine.Simulate(ctx.Request().Context(), in)
	if err != nil {
		return c.HandleServiceError(ctx, err, "simulation failed")
	}
	return ctx.JSON(http.StatusOK, result)
}

// GetSpectrumCSV returns the simulated spectrum as wavelength_nm,intensity rows.
func (c *Controller) GetSpectrumCSV(ctx echo.Context) error {
	in, err := inputsFromQuery(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid query parameters", http.StatusBadRequest)
	}

	result, err := c.Engine.Simulate(ctx.Request().Context(), in)
	if err != nil {
		return c.HandleServiceError(ctx, err, "simulation failed")
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="spectrum.csv"`)
	res.WriteHeader(http.StatusOK)

	w := csv.NewWriter(res)
	_ = w.Write([]string{"wavelength_nm", "intensity"})
	for _, s := range result.Spectrum {
		_ = w.Write([]string{
			strconv.FormatFloat(s.WavelengthNM, 'f', -1, 64),
			strconv.FormatFloat(s.Intensity, 'g', -1, 64),
		})
	}
	w.Flush()
	return w.Error()
}

// PostSweep expands a radius × time grid and simulates every point.
// Spectra are dropped unless includeSpectrum is set.
func (c *Controller) PostSweep(ctx echo.Context) error {
	var body sweepBody
	if err := ctx.Bind(&body); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	inputs, err := body.Expand()
	if err != nil {
		return c.HandleServiceError(ctx, err, "invalid sweep")
	}

	workers := min(body.Workers, maxSweepWorkers)
	if workers <= 0 {
		workers = c.Settings.Simulation.SweepWorkers
	}

	results, err := c.Engine.Sweep(ctx.Request().Context(), inputs, workers)
	if err != nil {
		return c.HandleServiceError(ctx, err, "sweep failed")
	}

	consts := c.Engine.Constants()
	points := make([]SweepPoint, len(results))
	for i, r := range results {
		if !body.Spectrum {
			r.Spectrum = nil
		}
		points[i] = SweepPoint{Inputs: inputs[i].WithDefaults(consts), Result: r}
	}

	return ctx.JSON(http.StatusOK, SweepResponse{Count: len(points), Points: points})
}

// inputsFromQuery binds the simulation query parameters. Missing values stay
// zero and are rejected by validation.
func inputsFromQuery(ctx echo.Context) (simulation.Inputs, error) {
	var in simulation.Inputs
	err := echo.QueryParamsBinder(ctx).
		Float64("radius", &in.RadiusNM).
		Float64("time", &in.ReactionTimeMin).
		Float64("fwhm", &in.FWHMNM).
		Float64("zr", &in.ZrConcentration).
		Bool("coreShell", &in.CoreShell).
		BindError()
	if err != nil {
		return in, errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return in, nil
}
