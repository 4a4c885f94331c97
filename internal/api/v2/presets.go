package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qdlab/nanolume/internal/datastore"
)

func (c *Controller) initPresetRoutes() {
	c.Group.GET("/presets", c.ListPresets)
	c.Group.POST("/presets", c.SavePreset)
	c.Group.GET("/presets/:name", c.GetPreset)
	c.Group.DELETE("/presets/:name", c.DeletePreset)
}

// ListPresets returns every preset ordered by name.
func (c *Controller) ListPresets(ctx echo.Context) error {
	if c.DS == nil {
		return c.storeDisabled(ctx)
	}

	presets, err := c.DS.ListPresets(ctx.Request().Context())
	if err != nil {
		return c.HandleServiceError(ctx, err, "failed to list presets")
	}
	if presets == nil {
		presets = []datastore.Preset{}
	}
	return ctx.JSON(http.StatusOK, presets)
}

// SavePreset creates or replaces a named preset. Inputs are defaulted and
// validated before they are stored.
func (c *Controller) SavePreset(ctx echo.Context) error {
	if c.DS == nil {
		return c.storeDisabled(ctx)
	}

	var body NamedInputs
	if err := ctx.Bind(&body); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}
	name, err := normalizeName(body.Name)
	if err != nil {
		return c.HandleServiceError(ctx, err, "invalid preset name")
	}

	in := body.Inputs.WithDefaults(c.Engine.Constants())
	if err := in.Validate(); err != nil {
		return c.HandleServiceError(ctx, err, "invalid preset inputs")
	}

	reqCtx := ctx.Request().Context()
	if err := c.DS.SavePreset(reqCtx, datastore.NewPreset(name, in)); err != nil {
		return c.HandleServiceError(ctx, err, "failed to save preset")
	}

	saved, err := c.DS.GetPreset(reqCtx, name)
	if err != nil {
		return c.HandleServiceError(ctx, err, "failed to reload preset")
	}
	return ctx.JSON(http.StatusOK, saved)
}

// GetPreset returns one preset.
func (c *Controller) GetPreset(ctx echo.Context) error {
	if c.DS == nil {
		return c.storeDisabled(ctx)
	}

	preset, err := c.DS.GetPreset(ctx.Request().Context(), ctx.Param("name"))
	if err != nil {
		return c.HandleServiceError(ctx, err, "failed to get preset")
	}
	return ctx.JSON(http.StatusOK, preset)
}

// DeletePreset removes a preset.
func (c *Controller) DeletePreset(ctx echo.Context) error {
	if c.DS == nil {
		return c.storeDisabled(ctx)
	}

	if err := c.DS.DeletePreset(ctx.Request().Context(), ctx.Param("name")); err != nil {
		return c.HandleServiceError(ctx, err, "failed to delete preset")
	}
	return ctx.NoContent(http.StatusNoContent)
}
