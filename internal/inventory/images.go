package inventory

import (
	"context"
	"io"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
	"github.com/tphakala/transformer-inspect/internal/datastore/repository"
	"github.com/tphakala/transformer-inspect/internal/errors"
	"github.com/tphakala/transformer-inspect/internal/logger"
	"github.com/tphakala/transformer-inspect/internal/storage"
)

// UploadRequest is one image upload. Size is the declared size; the body is
// still checked against the limit while it is stored.
type UploadRequest struct {
	TransformerID *uint
	InspectionID  *uint
	FileName      string
	ContentType   string
	Size          int64
	Body          io.Reader
	EnvCondition  string
	ImageType     string
}

// ImageView is an image with its transformer number.
type ImageView struct {
	entities.Image
	TransformerNo string `json:"transformerNo"`
}

// ImageQuery filters an image listing. Empty strings and nil ids are ignored.
type ImageQuery struct {
	TransformerID *uint
	InspectionID  *uint
	EnvCondition  string
	ImageType     string
}

// Blob is an opened image file. Callers close File.
type Blob struct {
	Image       entities.Image
	File        *os.File
	ContentType string
}

// UploadImage validates the request, stores the blob and inserts the row.
// If the insert fails the stored blob is removed again.
func (s *Service) UploadImage(ctx context.Context, req UploadRequest) (*ImageView, error) {
	img, err := s.validateUpload(ctx, req)
	if err != nil {
		return nil, err
	}

	limited := &io.LimitedReader{R: req.Body, N: s.maxFileSize + 1}
	stored, err := s.store.Save(ctx, limited, req.FileName)
	if err != nil {
		return nil, wrap(err, "store_image")
	}
	if stored.Size > s.maxFileSize || stored.Size == 0 {
		s.removeBlobs([]string{stored.Name})
		if stored.Size == 0 {
			return nil, invalid("file", "is empty")
		}
		return nil, invalid("file", "exceeds the maximum size of %d bytes", s.maxFileSize)
	}

	img.FilePath = stored.Name
	img.FileSize = stored.Size
	if err := s.repos.Images.Create(ctx, img); err != nil {
		s.removeBlobs([]string{stored.Name})
		return nil, wrap(err, "create_image")
	}

	s.changed()
	s.log.Info("image uploaded",
		logger.Uint64("image_id", uint64(img.ID)),
		logger.Uint64("transformer_id", uint64(img.TransformerID)),
		logger.String("file_path", img.FilePath),
		logger.Int64("size", img.FileSize))
	return s.imageView(ctx, img)
}

func (s *Service) validateUpload(ctx context.Context, req UploadRequest) (*entities.Image, error) {
	if req.Body == nil || req.Size <= 0 {
		return nil, invalid("file", "is empty")
	}
	if req.Size > s.maxFileSize {
		return nil, invalid("file", "exceeds the maximum size of %d bytes", s.maxFileSize)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(req.FileName), "."))
	if ext == "" {
		return nil, invalid("file", "invalid file name %q", req.FileName)
	}
	if !slices.Contains(s.allowedExtensions, ext) {
		return nil, invalid("file", "file type %q not allowed, allowed types: %s",
			ext, strings.Join(s.allowedExtensions, ", "))
	}
	env, ok := entities.ParseEnvCondition(req.EnvCondition)
	if !ok {
		return nil, invalid("envCondition", "unknown environmental condition %q", req.EnvCondition)
	}
	typ, ok := entities.ParseImageType(req.ImageType)
	if !ok {
		return nil, invalid("imageType", "unknown image type %q", req.ImageType)
	}

	transformerID, err := s.resolveImageOwner(ctx, req.TransformerID, req.InspectionID)
	if err != nil {
		return nil, err
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = contentTypeFor(req.FileName)
	}
	return &entities.Image{
		TransformerID: transformerID,
		InspectionID:  req.InspectionID,
		FileName:      filepath.Base(req.FileName),
		FileType:      contentType,
		EnvCondition:  env,
		ImageType:     typ,
	}, nil
}

// resolveImageOwner returns the transformer an upload belongs to. With only an
// inspection the transformer is taken from it; with both they must agree.
func (s *Service) resolveImageOwner(ctx context.Context, transformerID, inspectionID *uint) (uint, error) {
	if inspectionID != nil {
		insp, err := s.repos.Inspections.GetByID(ctx, *inspectionID)
		if errors.Is(err, repository.ErrNotFound) {
			return 0, missingReference("inspection", *inspectionID)
		}
		if err != nil {
			return 0, wrap(err, "get_inspection")
		}
		if transformerID != nil && *transformerID != insp.TransformerID {
			return 0, invalid("inspectionId", "inspection %d does not belong to transformer %d",
				*inspectionID, *transformerID)
		}
		return insp.TransformerID, nil
	}

	if transformerID == nil {
		return 0, invalid("transformerId", "transformerId or inspectionId is required")
	}
	ok, err := s.repos.Transformers.Exists(ctx, *transformerID)
	if err != nil {
		return 0, wrap(err, "exists_transformer")
	}
	if !ok {
		return 0, missingReference("transformer", *transformerID)
	}
	return *transformerID, nil
}

// GetImage returns one image.
func (s *Service) GetImage(ctx context.Context, id uint) (*ImageView, error) {
	img, err := s.repos.Images.GetByID(ctx, id)
	if err != nil {
		return nil, wrap(err, "get_image")
	}
	return s.imageView(ctx, img)
}

// ListImages returns images matching q, newest upload first.
func (s *Service) ListImages(ctx context.Context, q ImageQuery) ([]ImageView, error) {
	f := repository.ImageFilter{TransformerID: q.TransformerID, InspectionID: q.InspectionID}
	if q.EnvCondition != "" {
		env, ok := entities.ParseEnvCondition(q.EnvCondition)
		if !ok {
			return nil, invalid("envCondition", "unknown environmental condition %q", q.EnvCondition)
		}
		f.EnvCondition = &env
	}
	if q.ImageType != "" {
		typ, ok := entities.ParseImageType(q.ImageType)
		if !ok {
			return nil, invalid("imageType", "unknown image type %q", q.ImageType)
		}
		f.ImageType = &typ
	}

	imgs, err := s.repos.Images.Search(ctx, f)
	if err != nil {
		return nil, wrap(err, "list_images")
	}
	return s.imageViews(ctx, imgs)
}

// ImagesByTransformer lists a transformer's images, including those of its inspections.
func (s *Service) ImagesByTransformer(ctx context.Context, transformerID uint) ([]ImageView, error) {
	return s.ListImages(ctx, ImageQuery{TransformerID: &transformerID})
}

// ImagesByInspection lists the images attached to an inspection.
func (s *Service) ImagesByInspection(ctx context.Context, inspectionID uint) ([]ImageView, error) {
	return s.ListImages(ctx, ImageQuery{InspectionID: &inspectionID})
}

// ImagesByCondition lists images captured in the given weather.
func (s *Service) ImagesByCondition(ctx context.Context, condition string) ([]ImageView, error) {
	if _, ok := entities.ParseEnvCondition(condition); !ok {
		return nil, invalid("envCondition", "unknown environmental condition %q", condition)
	}
	return s.ListImages(ctx, ImageQuery{EnvCondition: condition})
}

// ImagesByType lists baseline or maintenance images.
func (s *Service) ImagesByType(ctx context.Context, imageType string) ([]ImageView, error) {
	if _, ok := entities.ParseImageType(imageType); !ok {
		return nil, invalid("imageType", "unknown image type %q", imageType)
	}
	return s.ListImages(ctx, ImageQuery{ImageType: imageType})
}

// OpenImage opens the blob of the image with the given id.
func (s *Service) OpenImage(ctx context.Context, id uint) (*Blob, error) {
	img, err := s.repos.Images.GetByID(ctx, id)
	if err != nil {
		return nil, wrap(err, "get_image")
	}
	return s.openBlob(img)
}

// OpenImageByFileName opens a blob by its stored name. Names without a row are not served.
func (s *Service) OpenImageByFileName(ctx context.Context, fileName string) (*Blob, error) {
	img, err := s.repos.Images.GetByFilePath(ctx, fileName)
	if err != nil {
		return nil, wrap(err, "get_image_by_path")
	}
	return s.openBlob(img)
}

func (s *Service) openBlob(img *entities.Image) (*Blob, error) {
	f, err := s.store.Open(img.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, wrap(repository.ErrImageNotFound, "open_image")
		}
		return nil, wrap(err, "open_image")
	}
	ct := img.FileType
	if ct == "" || ct == "application/octet-stream" {
		ct = contentTypeFor(img.FilePath)
	}
	return &Blob{Image: *img, File: f, ContentType: ct}, nil
}

// DeleteImage removes the row and its annotations, then the blob.
// A blob that cannot be removed is logged and does not fail the call.
func (s *Service) DeleteImage(ctx context.Context, id uint) error {
	img, err := s.repos.Images.Delete(ctx, id)
	if err != nil {
		return wrap(err, "delete_image")
	}
	s.changed()
	s.log.Info("image deleted", logger.Uint64("image_id", uint64(id)))
	s.removeBlobs([]string{img.FilePath})
	return nil
}

func (s *Service) imageView(ctx context.Context, img *entities.Image) (*ImageView, error) {
	views, err := s.imageViews(ctx, []entities.Image{*img})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *Service) imageViews(ctx context.Context, imgs []entities.Image) ([]ImageView, error) {
	parents := make([]uint, 0, len(imgs))
	for i := range imgs {
		parents = append(parents, imgs[i].TransformerID)
	}
	numbers, err := s.repos.Transformers.NumbersByID(ctx, parents)
	if err != nil {
		return nil, wrap(err, "get_transformer_numbers")
	}
	out := make([]ImageView, len(imgs))
	for i := range imgs {
		out[i] = ImageView{Image: imgs[i], TransformerNo: numbers[imgs[i].TransformerID]}
	}
	return out, nil
}

// contentTypeFor guesses a MIME type from the file extension.
func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
