package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
	"github.com/tphakala/transformer-inspect/internal/inventory"
)

// StatusOption is one inspection status with its label.
type StatusOption struct {
	Value       entities.InspectionStatus `json:"value"`
	DisplayName string                    `json:"displayName"`
}

func (c *Controller) initInspectionRoutes() {
	g := c.Group.Group("/inspections")
	g.GET("", c.ListInspections)
	g.POST("", c.CreateInspection)
	g.GET("/search", c.SearchInspections)
	g.GET("/statuses", c.ListInspectionStatuses)
	g.GET("/transformer/:id", c.GetInspectionsByTransformer)
	g.GET("/status/:status", c.GetInspectionsByStatus)
	g.GET("/:id", c.GetInspection)
	g.PUT("/:id", c.UpdateInspection)
	g.DELETE("/:id", c.DeleteInspection)
}

// ListInspections handles GET /api/v2/inspections
func (c *Controller) ListInspections(ctx echo.Context) error {
	list, err := c.inventory.ListInspections(ctx.Request().Context())
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to list inspections")
	}
	return ctx.JSON(http.StatusOK, list)
}

// CreateInspection handles POST /api/v2/inspections
func (c *Controller) CreateInspection(ctx echo.Context) error {
	var in inventory.InspectionInput
	if err := ctx.Bind(&in); err != nil {
		return c.badRequest(ctx, err, "Invalid inspection body")
	}
	view, err := c.inventory.CreateInspection(ctx.Request().Context(), in)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to create inspection")
	}
	return ctx.JSON(http.StatusCreated, view)
}

// GetInspection handles GET /api/v2/inspections/:id
func (c *Controller) GetInspection(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid inspection id")
	}
	view, err := c.inventory.GetInspection(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Inspection not available")
	}
	return ctx.JSON(http.StatusOK, view)
}

// UpdateInspection handles PUT /api/v2/inspections/:id
func (c *Controller) UpdateInspection(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid inspection id")
	}
	var in inventory.InspectionInput
	if err := ctx.Bind(&in); err != nil {
		return c.badRequest(ctx, err, "Invalid inspection body")
	}
	view, err := c.inventory.UpdateInspection(ctx.Request().Context(), id, in)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to update inspection")
	}
	return ctx.JSON(http.StatusOK, view)
}

// DeleteInspection handles DELETE /api/v2/inspections/:id
func (c *Controller) DeleteInspection(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid inspection id")
	}
	if err := c.inventory.DeleteInspection(ctx.Request().Context(), id); err != nil {
		return c.HandleServiceError(ctx, err, "Failed to delete inspection")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// GetInspectionsByTransformer handles GET /api/v2/inspections/transformer/:id
func (c *Controller) GetInspectionsByTransformer(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid transformer id")
	}
	list, err := c.inventory.InspectionsByTransformer(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to list inspections")
	}
	return ctx.JSON(http.StatusOK, list)
}

// GetInspectionsByStatus handles GET /api/v2/inspections/status/:status
func (c *Controller) GetInspectionsByStatus(ctx echo.Context) error {
	list, err := c.inventory.InspectionsByStatus(ctx.Request().Context(), ctx.Param("status"))
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to list inspections")
	}
	return ctx.JSON(http.StatusOK, list)
}

// SearchInspections handles GET /api/v2/inspections/search?query=
func (c *Controller) SearchInspections(ctx echo.Context) error {
	list, err := c.inventory.SearchInspections(ctx.Request().Context(), ctx.QueryParam("query"))
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to search inspections")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (c *Controller) ListInspectionStatuses(ctx echo.Context) error {
	out := make([]StatusOption, 0, len(entities.InspectionStatuses))
	for _, s := range entities.InspectionStatuses {
		out = append(out, StatusOption{Value: s, DisplayName: inventory.StatusDisplayName(s)})
	}
	return ctx.JSON(http.StatusOK, out)
}
