package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/qdlab/nanolume/internal/datastore"
	"github.com/qdlab/nanolume/internal/errors"
	"github.com/qdlab/nanolume/internal/logger"
	"github.com/qdlab/nanolume/internal/simulation"
	"github.com/qdlab/nanolume/internal/spectrum"
)

// defaultRunsLimit is the page size when limit is omitted.
const defaultRunsLimit = 50

// maxNameLength matches the width of the name columns.
const maxNameLength = 64

// NamedInputs is the body of POST /runs and POST /presets.
type NamedInputs struct {
	Name   string            `json:"name"`
	Inputs simulation.Inputs `json:"inputs"`
}

// RunDetail is a saved run including its spectrum.
type RunDetail struct {
	datastore.SimulationRun
	Spectrum spectrum.Spectrum `json:"spectrum"`
}

// RunList is one page of saved runs, newest first.
type RunList struct {
	Runs   []datastore.SimulationRun `json:"runs"`
	Total  int64                     `json:"total"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
}

func (c *Controller) initRunRoutes() {
	c.Group.GET("/runs", c.ListRuns)
	c.Group.POST("/runs", c.CreateRun)
	c.Group.GET("/runs/:id", c.GetRun)
	c.Group.DELETE("/runs/:id", c.DeleteRun)
}

// ListRuns returns saved runs paged by limit and offset.
func (c *Controller) ListRuns(ctx echo.Context) error {
	if c.DS == nil {
		return c.storeDisabled(ctx)
	}

	limit, offset := defaultRunsLimit, 0
	err := echo.QueryParamsBinder(ctx).
		Int("limit", &limit).
		Int("offset", &offset).
		BindError()
	if err != nil {
		return c.HandleError(ctx, err, "invalid query parameters", http.StatusBadRequest)
	}
	limit = max(1, min(limit, datastore.MaxListLimit))
	offset = max(0, offset)

	runs, total, err := c.DS.ListRuns(ctx.Request().Context(), limit, offset)
	if err != nil {
		return c.HandleServiceError(ctx, err, "failed to list runs")
	}
	if runs == nil {
		runs = []datastore.SimulationRun{}
	}

	return ctx.JSON(http.StatusOK, RunList{Runs: runs, Total: total, Limit: limit, Offset: offset})
}

// CreateRun simulates the given inputs, saves the run and publishes it in
// the background.
func (c *Controller) CreateRun(ctx echo.Context) error {
	if c.DS == nil {
		return c.storeDisabled(ctx)
	}

	var body NamedInputs
	if err := ctx.Bind(&body); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}
	name, err := normalizeName(body.Name)
	if err != nil {
		return c.HandleServiceError(ctx, err, "invalid run name")
	}

	reqCtx := ctx.Request().Context()
	in := body.Inputs.WithDefaults(c.Engine.Constants())
	result, err := c.Engine.Simulate(reqCtx, in)
	if err != nil {
		return c.HandleServiceError(ctx, err, "simulation failed")
	}

	run, err := datastore.NewSimulationRun(name, in, result)
	if err != nil {
		return c.HandleError(ctx, err, "failed to encode run", http.StatusInternalServerError)
	}
	if err := c.DS.SaveRun(reqCtx, run); err != nil {
		return c.HandleServiceError(ctx, err, "failed to save run")
	}

	c.publishAsync(run)

	return ctx.JSON(http.StatusCreated, RunDetail{SimulationRun: *run, Spectrum: result.Spectrum})
}

// GetRun returns one saved run with its spectrum.
func (c *Controller) GetRun(ctx echo.Context) error {
	if c.DS == nil {
		return c.storeDisabled(ctx)
	}

	run, err := c.DS.GetRun(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.HandleServiceError(ctx, err, "failed to get run")
	}

	result, err := run.Result()
	if err != nil {
		return c.HandleError(ctx, err, "stored spectrum is corrupt", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, RunDetail{SimulationRun: run, Spectrum: result.Spectrum})
}

// DeleteRun removes a saved run.
func (c *Controller) DeleteRun(ctx echo.Context) error {
	if c.DS == nil {
		return c.storeDisabled(ctx)
	}

	if err := c.DS.DeleteRun(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return c.HandleServiceError(ctx, err, "failed to delete run")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// publishAsync hands the run to the publisher without blocking the request.
// Failures are logged and counted by the publisher.
func (c *Controller) publishAsync(run *datastore.SimulationRun) {
	if c.Publisher == nil {
		return
	}

	c.wg.Go(func() {
		pubCtx, cancel := context.WithTimeout(c.ctx, publishTimeout)
		defer cancel()

		if err := c.Publisher.PublishRun(pubCtx, run); err != nil {
			c.log.Debug("run not published",
				logger.String("run_id", run.ID),
				logger.Error(err))
		}
	})
}

// normalizeName trims the name and enforces the column width.
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", errors.ValidationError("name is required")
	case len(name) > maxNameLength:
		return "", errors.ValidationError("name must be at most 64 bytes")
	}
	return name, nil
}
