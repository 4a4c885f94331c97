package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/qdlab/nanolume/internal/errors"
	"github.com/qdlab/nanolume/internal/lattice"
	"github.com/qdlab/nanolume/internal/logger"
	"github.com/qdlab/nanolume/internal/observability/metrics"
)

// defaultLatticeSeed keeps unseeded requests reproducible.
const defaultLatticeSeed = 1

func (c *Controller) initLatticeRoutes() {
	c.Group.GET("/lattice", c.GetLattice)
}

// GetLattice generates an AgGaS2 structure. Query parameters: mode
// (unit|cluster), dopant (Ga→Zr probability) or zr (mmol, mapped onto the
// probability), seed and format (json|xyz).
func (c *Controller) GetLattice(ctx echo.Context) error {
	var (
		mode    = string(lattice.ModeUnit)
		format  = "json"
		dopant  float64
		zr      float64
		seed    uint64 = defaultLatticeSeed
		hasZr   = ctx.QueryParam("zr") != ""
		hasFrac = ctx.QueryParam("dopant") != ""
	)

	err := echo.QueryParamsBinder(ctx).
		String("mode", &mode).
		String("format", &format).
		Float64("dopant", &dopant).
		Float64("zr", &zr).
		Uint64("seed", &seed).
		BindError()
	if err != nil {
		return c.HandleError(ctx, err, "invalid query parameters", http.StatusBadRequest)
	}
	if hasZr && hasFrac {
		return c.HandleServiceError(ctx, errors.ValidationError("dopant and zr are mutually exclusive"), "invalid query parameters")
	}
	if hasZr {
		dopant = lattice.DopantFractionFromConcentration(zr)
	}
	if format != "json" && format != "xyz" {
		return c.HandleServiceError(ctx, errors.ValidationError("format must be json or xyz"), "invalid query parameters")
	}

	consts := c.Settings.Lattice
	start := time.Now()
	s, err := lattice.Generate(lattice.Options{
		Mode:           lattice.Mode(mode),
		DopantFraction: dopant,
		Seed:           seed,
		Constants:      &consts,
	})
	if c.metrics != nil {
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
		}
		c.metrics.Simulation.RecordOperation(metrics.OpLattice, status)
		c.metrics.Simulation.RecordDuration(metrics.OpLattice, time.Since(start).Seconds())
	}
	if err != nil {
		return c.HandleServiceError(ctx, err, "lattice generation failed")
	}

	c.log.Debug("lattice generated",
		logger.String("mode", mode),
		logger.Float64("dopant", dopant),
		logger.Int("atoms", len(s.Atoms)),
		logger.Int("bonds", len(s.Bonds)))

	if format == "xyz" {
		res := ctx.Response()
		res.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
		res.WriteHeader(http.StatusOK)
		return s.WriteXYZ(res)
	}
	return ctx.JSON(http.StatusOK, s)
}
