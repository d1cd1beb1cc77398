package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
	"github.com/tphakala/transformer-inspect/internal/inventory"
)

func (c *Controller) initTransformerRoutes() {
	g := c.Group.Group("/transformers")
	g.GET("", c.ListTransformers)
	g.POST("", c.CreateTransformer)
	g.GET("/search", c.SearchTransformers)
	g.GET("/regions", c.ListRegions)
	g.GET("/types", c.ListTransformerTypes)
	g.GET("/:id", c.GetTransformer)
	g.PUT("/:id", c.UpdateTransformer)
	g.DELETE("/:id", c.DeleteTransformer)
}

// ListTransformers handles GET /api/v2/transformers
func (c *Controller) ListTransformers(ctx echo.Context) error {
	list, err := c.inventory.ListTransformers(ctx.Request().Context())
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to list transformers")
	}
	return ctx.JSON(http.StatusOK, list)
}

// CreateTransformer handles POST /api/v2/transformers
func (c *Controller) CreateTransformer(ctx echo.Context) error {
	var in inventory.TransformerInput
	if err := ctx.Bind(&in); err != nil {
		return c.badRequest(ctx, err, "Invalid transformer body")
	}
	view, err := c.inventory.CreateTransformer(ctx.Request().Context(), in)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to create transformer")
	}
	return ctx.JSON(http.StatusCreated, view)
}

// GetTransformer handles GET /api/v2/transformers/:id
func (c *Controller) GetTransformer(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid transformer id")
	}
	view, err := c.inventory.GetTransformer(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Transformer not available")
	}
	return ctx.JSON(http.StatusOK, view)
}

// UpdateTransformer handles PUT /api/v2/transformers/:id
func (c *Controller) UpdateTransformer(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid transformer id")
	}
	var in inventory.TransformerInput
	if err := ctx.Bind(&in); err != nil {
		return c.badRequest(ctx, err, "Invalid transformer body")
	}
	view, err := c.inventory.UpdateTransformer(ctx.Request().Context(), id, in)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to update transformer")
	}
	return ctx.JSON(http.StatusOK, view)
}

// DeleteTransformer handles DELETE /api/v2/transformers/:id
func (c *Controller) DeleteTransformer(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid transformer id")
	}
	if err := c.inventory.DeleteTransformer(ctx.Request().Context(), id); err != nil {
		return c.HandleServiceError(ctx, err, "Failed to delete transformer")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// SearchTransformers handles GET /api/v2/transformers/search?location=
func (c *Controller) SearchTransformers(ctx echo.Context) error {
	list, err := c.inventory.SearchTransformers(ctx.Request().Context(), ctx.QueryParam("location"))
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to search transformers")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (c *Controller) ListRegions(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, entities.Regions)
}

func (c *Controller) ListTransformerTypes(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, entities.TransformerTypes)
}
