package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/transformer-inspect/internal/annotation"
	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
)

func (c *Controller) initAnnotationRoutes() {
	g := c.Group.Group("/annotations")
	g.POST("", c.CreateAnnotation)
	g.POST("/batch/:imageId", c.CreateAnnotationBatch)
	g.GET("/image/:imageId", c.GetAnnotationsByImage)
	g.GET("/image/:imageId/type/:type", c.GetAnnotationsByImageAndType)
	g.GET("/transformer/:id", c.GetAnnotationsByTransformer)
	g.GET("/inspection/:id", c.GetAnnotationsByInspection)
	g.GET("/type/:type", c.GetAnnotationsByType)
	g.GET("/user-modifications", c.GetUserModifications)
	g.GET("/high-confidence", c.GetHighConfidence)
	g.GET("/class/:className", c.GetAnnotationsByClass)
	g.GET("/user/:userId", c.GetAnnotationsByUser)
	g.GET("/range", c.GetAnnotationsByDateRange)
	g.GET("/all", c.GetAllAnnotations)
	g.GET("/types", c.ListAnnotationTypes)
	g.GET("/stats", c.GetAnnotationStats)
	g.GET("/:id", c.GetAnnotation)
	g.PUT("/:id", c.EditAnnotation)
	g.DELETE("/:id", c.DeleteAnnotation)
	g.POST("/:id/confirm", c.ConfirmAnnotation)
}

// CreateAnnotation handles POST /api/v2/annotations
func (c *Controller) CreateAnnotation(ctx echo.Context) error {
	var in annotation.Input
	if err := ctx.Bind(&in); err != nil {
		return c.badRequest(ctx, err, "Invalid annotation body")
	}
	a, err := c.annotations.Create(ctx.Request().Context(), in)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to create annotation")
	}
	return ctx.JSON(http.StatusCreated, a)
}

// CreateAnnotationBatch handles POST /api/v2/annotations/batch/:imageId
// with a JSON array of annotations. Invalid entries are skipped.
func (c *Controller) CreateAnnotationBatch(ctx echo.Context) error {
	imageID, err := parseID(ctx, "imageId")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid image id")
	}
	var inputs []annotation.Input
	if err := ctx.Echo().JSONSerializer.Deserialize(ctx, &inputs); err != nil {
		return c.badRequest(ctx, err, "Invalid annotation batch body")
	}
	for i := range inputs {
		inputs[i].ImageID = imageID
	}
	created, err := c.annotations.CreateBatch(ctx.Request().Context(), imageID, inputs)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to create annotations")
	}
	return ctx.JSON(http.StatusCreated, created)
}

// GetAnnotation handles GET /api/v2/annotations/:id
func (c *Controller) GetAnnotation(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid annotation id")
	}
	a, err := c.annotations.Get(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Annotation not available")
	}
	return ctx.JSON(http.StatusOK, a)
}

// EditAnnotation handles PUT /api/v2/annotations/:id
func (c *Controller) EditAnnotation(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid annotation id")
	}
	var in annotation.Input
	if err := ctx.Bind(&in); err != nil {
		return c.badRequest(ctx, err, "Invalid annotation body")
	}
	a, err := c.annotations.Edit(ctx.Request().Context(), id, in)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to edit annotation")
	}
	return ctx.JSON(http.StatusOK, a)
}

// ConfirmAnnotation handles POST /api/v2/annotations/:id/confirm?userId=
func (c *Controller) ConfirmAnnotation(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid annotation id")
	}
	a, err := c.annotations.Confirm(ctx.Request().Context(), id, ctx.QueryParam("userId"))
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to confirm annotation")
	}
	return ctx.JSON(http.StatusOK, a)
}

// DeleteAnnotation handles DELETE /api/v2/annotations/:id?userId=
// The row is kept as USER_DELETED.
func (c *Controller) DeleteAnnotation(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid annotation id")
	}
	if err := c.annotations.Delete(ctx.Request().Context(), id, ctx.QueryParam("userId")); err != nil {
		return c.HandleServiceError(ctx, err, "Failed to delete annotation")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// GetAnnotationsByImage handles GET /api/v2/annotations/image/:imageId?includeInactive=
func (c *Controller) GetAnnotationsByImage(ctx echo.Context) error {
	imageID, err := parseID(ctx, "imageId")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid image id")
	}
	includeInactive, err := queryBool(ctx, "includeInactive")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid includeInactive")
	}
	query := c.annotations.ActiveByImage
	if includeInactive {
		query = c.annotations.AllByImage
	}
	return c.annotationList(ctx, "Failed to list annotations", func() ([]entities.Annotation, error) {
		return query(ctx.Request().Context(), imageID)
	})
}

func (c *Controller) GetAnnotationsByImageAndType(ctx echo.Context) error {
	imageID, err := parseID(ctx, "imageId")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid image id")
	}
	typ, err := annotationType(ctx.Param("type"))
	if err != nil {
		return c.badRequest(ctx, err, "Invalid annotation type")
	}
	return c.annotationList(ctx, "Failed to list annotations", func() ([]entities.Annotation, error) {
		return c.annotations.ByImageAndType(ctx.Request().Context(), imageID, typ)
	})
}

func (c *Controller) GetAnnotationsByTransformer(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid transformer id")
	}
	return c.annotationList(ctx, "Failed to list annotations", func() ([]entities.Annotation, error) {
		return c.annotations.ByTransformer(ctx.Request().Context(), id)
	})
}

func (c *Controller) GetAnnotationsByInspection(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid inspection id")
	}
	return c.annotationList(ctx, "Failed to list annotations", func() ([]entities.Annotation, error) {
		return c.annotations.ByInspection(ctx.Request().Context(), id)
	})
}

func (c *Controller) GetAnnotationsByType(ctx echo.Context) error {
	typ, err := annotationType(ctx.Param("type"))
	if err != nil {
		return c.badRequest(ctx, err, "Invalid annotation type")
	}
	return c.annotationList(ctx, "Failed to list annotations", func() ([]entities.Annotation, error) {
		return c.annotations.ByType(ctx.Request().Context(), typ)
	})
}

// GetUserModifications handles GET /api/v2/annotations/user-modifications?includeInactive=
func (c *Controller) GetUserModifications(ctx echo.Context) error {
	includeInactive, err := queryBool(ctx, "includeInactive")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid includeInactive")
	}
	return c.annotationList(ctx, "Failed to list user modifications", func() ([]entities.Annotation, error) {
		return c.annotations.UserModifications(ctx.Request().Context(), includeInactive)
	})
}

// GetHighConfidence handles GET /api/v2/annotations/high-confidence?minConfidence=
func (c *Controller) GetHighConfidence(ctx echo.Context) error {
	minConfidence, err := queryFloat(ctx, "minConfidence", annotation.DefaultMinConfidence)
	if err != nil {
		return c.badRequest(ctx, err, "Invalid minConfidence")
	}
	return c.annotationList(ctx, "Failed to list annotations", func() ([]entities.Annotation, error) {
		return c.annotations.HighConfidence(ctx.Request().Context(), minConfidence)
	})
}

func (c *Controller) GetAnnotationsByClass(ctx echo.Context) error {
	return c.annotationList(ctx, "Failed to list annotations", func() ([]entities.Annotation, error) {
		return c.annotations.ByClassName(ctx.Request().Context(), ctx.Param("className"))
	})
}

func (c *Controller) GetAnnotationsByUser(ctx echo.Context) error {
	return c.annotationList(ctx, "Failed to list annotations", func() ([]entities.Annotation, error) {
		return c.annotations.ByUser(ctx.Request().Context(), ctx.Param("userId"))
	})
}

// GetAnnotationsByDateRange handles GET /api/v2/annotations/range?start=&end= (RFC3339)
func (c *Controller) GetAnnotationsByDateRange(ctx echo.Context) error {
	start, err := queryTime(ctx, "start")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid start")
	}
	end, err := queryTime(ctx, "end")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid end")
	}
	return c.annotationList(ctx, "Failed to list annotations", func() ([]entities.Annotation, error) {
		return c.annotations.ByDateRange(ctx.Request().Context(), start, end)
	})
}

func (c *Controller) GetAllAnnotations(ctx echo.Context) error {
	return c.annotationList(ctx, "Failed to list annotations", func() ([]entities.Annotation, error) {
		return c.annotations.All(ctx.Request().Context())
	})
}

func (c *Controller) ListAnnotationTypes(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, entities.AnnotationTypes)
}

// GetAnnotationStats handles GET /api/v2/annotations/stats
func (c *Controller) GetAnnotationStats(ctx echo.Context) error {
	counts, err := c.annotations.CountByType(ctx.Request().Context())
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to count annotations")
	}
	return ctx.JSON(http.StatusOK, counts)
}

func (c *Controller) annotationList(ctx echo.Context, message string, query func() ([]entities.Annotation, error)) error {
	list, err := query()
	if err != nil {
		return c.HandleServiceError(ctx, err, message)
	}
	return ctx.JSON(http.StatusOK, list)
}

func annotationType(raw string) (entities.AnnotationType, error) {
	typ, ok := entities.ParseAnnotationType(raw)
	if !ok {
		return "", fmt.Errorf("unknown annotation type %q", raw)
	}
	return typ, nil
}
