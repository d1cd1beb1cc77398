package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/transformer-inspect/internal/annotation"
	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
	"github.com/tphakala/transformer-inspect/internal/inventory"
	"github.com/tphakala/transformer-inspect/internal/logger"
)

// DetectResponse reports what a detection run produced.
type DetectResponse struct {
	ImageID     uint                  `json:"imageId"`
	Candidates  int                   `json:"candidates"`
	Annotations []entities.Annotation `json:"annotations"`
}

func (c *Controller) initImageRoutes(limited echo.MiddlewareFunc) {
	g := c.Group.Group("/images")
	g.POST("/upload", c.UploadImage, limited)
	g.GET("", c.ListImages)
	g.GET("/transformer/:id", c.GetImagesByTransformer)
	g.GET("/inspection/:id", c.GetImagesByInspection)
	g.GET("/condition/:condition", c.GetImagesByCondition)
	g.GET("/type/:type", c.GetImagesByType)
	g.GET("/download/:fileName", c.DownloadImage)
	g.GET("/:id", c.GetImage)
	g.DELETE("/:id", c.DeleteImage)
	g.POST("/:id/detect", c.DetectImage, limited)
}

// UploadImage handles POST /api/v2/images/upload (multipart)
func (c *Controller) UploadImage(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return c.badRequest(ctx, err, "Multipart field \"file\" is required")
	}
	transformerID, err := optionalID(ctx.FormValue("transformerId"), "transformerId")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid transformer id")
	}
	inspectionID, err := optionalID(ctx.FormValue("inspectionId"), "inspectionId")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid inspection id")
	}

	f, err := fh.Open()
	if err != nil {
		return c.badRequest(ctx, err, "Unreadable upload")
	}
	defer func() { _ = f.Close() }()

	view, err := c.inventory.UploadImage(ctx.Request().Context(), inventory.UploadRequest{
		TransformerID: transformerID,
		InspectionID:  inspectionID,
		FileName:      fh.Filename,
		ContentType:   fh.Header.Get(echo.HeaderContentType),
		Size:          fh.Size,
		Body:          f,
		EnvCondition:  ctx.FormValue("envCondition"),
		ImageType:     ctx.FormValue("imageType"),
	})
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to upload image")
	}
	return ctx.JSON(http.StatusCreated, view)
}

// ListImages handles GET /api/v2/images with optional filters
func (c *Controller) ListImages(ctx echo.Context) error {
	transformerID, err := optionalID(ctx.QueryParam("transformerId"), "transformerId")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid transformer id")
	}
	inspectionID, err := optionalID(ctx.QueryParam("inspectionId"), "inspectionId")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid inspection id")
	}
	list, err := c.inventory.ListImages(ctx.Request().Context(), inventory.ImageQuery{
		TransformerID: transformerID,
		InspectionID:  inspectionID,
		EnvCondition:  ctx.QueryParam("envCondition"),
		ImageType:     ctx.QueryParam("imageType"),
	})
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to list images")
	}
	return ctx.JSON(http.StatusOK, list)
}

// GetImage handles GET /api/v2/images/:id
func (c *Controller) GetImage(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid image id")
	}
	view, err := c.inventory.GetImage(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Image not available")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (c *Controller) GetImagesByTransformer(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid transformer id")
	}
	list, err := c.inventory.ImagesByTransformer(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to list images")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (c *Controller) GetImagesByInspection(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid inspection id")
	}
	list, err := c.inventory.ImagesByInspection(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to list images")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (c *Controller) GetImagesByCondition(ctx echo.Context) error {
	list, err := c.inventory.ImagesByCondition(ctx.Request().Context(), ctx.Param("condition"))
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to list images")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (c *Controller) GetImagesByType(ctx echo.Context) error {
	list, err := c.inventory.ImagesByType(ctx.Request().Context(), ctx.Param("type"))
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to list images")
	}
	return ctx.JSON(http.StatusOK, list)
}

// DownloadImage handles GET /api/v2/images/download/:fileName
func (c *Controller) DownloadImage(ctx echo.Context) error {
	blob, err := c.inventory.OpenImageByFileName(ctx.Request().Context(), ctx.Param("fileName"))
	if err != nil {
		return c.HandleServiceError(ctx, err, "Image file not available")
	}
	defer func() { _ = blob.File.Close() }()

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, blob.ContentType)
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", blob.Image.FilePath))
	http.ServeContent(res, ctx.Request(), blob.Image.FilePath, blob.Image.UploadDate, blob.File)
	return nil
}

// DeleteImage handles DELETE /api/v2/images/:id
func (c *Controller) DeleteImage(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid image id")
	}
	if err := c.inventory.DeleteImage(ctx.Request().Context(), id); err != nil {
		return c.HandleServiceError(ctx, err, "Failed to delete image")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// DetectImage handles POST /api/v2/images/:id/detect?confidenceThreshold=&userId=
// It sends the stored image to the detection service and batch-creates the results.
func (c *Controller) DetectImage(ctx echo.Context) error {
	if c.detector == nil {
		return c.HandleError(ctx, nil, "Detection service is not configured", http.StatusServiceUnavailable)
	}
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, err, "Invalid image id")
	}
	threshold, err := queryFloat(ctx, "confidenceThreshold", 0)
	if err != nil {
		return c.badRequest(ctx, err, "Invalid confidence threshold")
	}

	reqCtx := ctx.Request().Context()
	blob, err := c.inventory.OpenImage(reqCtx, id)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Image not available")
	}
	candidates, err := c.detector.Detect(reqCtx, blob.Image.FileName, blob.File, threshold)
	_ = blob.File.Close()
	if err != nil {
		return c.HandleServiceError(ctx, err, "Detection failed")
	}

	userID := ctx.QueryParam("userId")
	inputs := make([]annotation.Input, 0, len(candidates))
	for _, cand := range candidates {
		inputs = append(inputs, cand.Input(id, userID))
	}
	created, err := c.annotations.CreateBatch(reqCtx, id, inputs)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to store detections")
	}

	c.log.WithContext(reqCtx).Info("detections stored",
		logger.Uint64("image_id", uint64(id)),
		logger.Int("candidates", len(candidates)),
		logger.Int("created", len(created)))
	return ctx.JSON(http.StatusCreated, DetectResponse{ImageID: id, Candidates: len(candidates), Annotations: created})
}
