package repository

import (
	"context"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
)

// TransformerRepository handles transformer persistence.
type TransformerRepository interface {
	Create(ctx context.Context, t *entities.Transformer) error
	// Update writes every column of an existing row. Callers load the row first.
	Update(ctx context.Context, t *entities.Transformer) error
	GetByID(ctx context.Context, id uint) (*entities.Transformer, error)
	// GetByNumber finds a transformer by number, ignoring case.
	GetByNumber(ctx context.Context, transformerNo string) (*entities.Transformer, error)
	// ExistsByNumber checks the folded number, skipping excludeID when non-zero.
	ExistsByNumber(ctx context.Context, transformerNo string, excludeID uint) (bool, error)
	Exists(ctx context.Context, id uint) (bool, error)
	List(ctx context.Context) ([]entities.Transformer, error)
	// SearchByLocation matches a case-insensitive substring of the location.
	SearchByLocation(ctx context.Context, location string) ([]entities.Transformer, error)
	// ChildCounts returns inspection and image counts keyed by transformer id.
	ChildCounts(ctx context.Context, ids []uint) (map[uint]ChildCounts, error)
	// NumbersByID maps the given ids to transformer numbers. Unknown ids are absent.
	NumbersByID(ctx context.Context, ids []uint) (map[uint]string, error)
	Count(ctx context.Context) (int64, error)
	// DeleteCascade removes the transformer with its inspections, images and
	// annotations in one transaction and returns the stored blob names of the removed images.
	DeleteCascade(ctx context.Context, id uint) ([]string, error)
}
