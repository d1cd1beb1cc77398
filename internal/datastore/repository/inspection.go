package repository

import (
	"context"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
)

// InspectionRepository handles inspection persistence.
type InspectionRepository interface {
	Create(ctx context.Context, i *entities.Inspection) error
	Update(ctx context.Context, i *entities.Inspection) error
	GetByID(ctx context.Context, id uint) (*entities.Inspection, error)
	// GetByNumber finds an inspection by number, ignoring case.
	GetByNumber(ctx context.Context, inspectionNo string) (*entities.Inspection, error)
	ExistsByNumber(ctx context.Context, inspectionNo string, excludeID uint) (bool, error)
	Exists(ctx context.Context, id uint) (bool, error)
	List(ctx context.Context) ([]entities.Inspection, error)
	// ListByTransformer returns the transformer's inspections, newest inspected first.
	ListByTransformer(ctx context.Context, transformerID uint) ([]entities.Inspection, error)
	ListByStatus(ctx context.Context, status entities.InspectionStatus) ([]entities.Inspection, error)
	SearchByBranch(ctx context.Context, branch string) ([]entities.Inspection, error)
	SearchByInspector(ctx context.Context, inspector string) ([]entities.Inspection, error)
	// ImageCounts returns image counts keyed by inspection id.
	ImageCounts(ctx context.Context, ids []uint) (map[uint]int64, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[entities.InspectionStatus]int64, error)
	// DeleteCascade removes the inspection with its images and their annotations
	// and returns the stored blob names of the removed images.
	DeleteCascade(ctx context.Context, id uint) ([]string, error)
}
