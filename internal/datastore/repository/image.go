package repository

import (
	"context"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
)

// ImageFilter narrows an image listing. Nil fields are ignored.
type ImageFilter struct {
	TransformerID *uint
	InspectionID  *uint
	EnvCondition  *entities.EnvCondition
	ImageType     *entities.ImageType
}

// ImageRepository handles image metadata persistence. Blobs live in the storage package.
type ImageRepository interface {
	Create(ctx context.Context, img *entities.Image) error
	GetByID(ctx context.Context, id uint) (*entities.Image, error)
	GetByFilePath(ctx context.Context, filePath string) (*entities.Image, error)
	Exists(ctx context.Context, id uint) (bool, error)
	// Delete removes the image and its annotations and returns the removed row.
	Delete(ctx context.Context, id uint) (*entities.Image, error)
	// Search returns images matching every set filter field, newest upload first.
	Search(ctx context.Context, f ImageFilter) ([]entities.Image, error)
	Count(ctx context.Context) (int64, error)
	// ReassignInspection moves every image of an inspection to transformerID
	// and returns the number of rows changed.
	ReassignInspection(ctx context.Context, inspectionID, transformerID uint) (int64, error)
}
