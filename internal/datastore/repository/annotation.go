package repository

import (
	"context"
	"time"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
)

// AnnotationOrder selects the sort order of an annotation query.
type AnnotationOrder int

const (
	// OrderID sorts by ascending id, which is creation order.
	OrderID AnnotationOrder = iota
	OrderUpdatedDesc
	OrderCreatedDesc
	OrderConfidenceDesc
)

// AnnotationFilter narrows an annotation query. Zero values are ignored,
// except IncludeInactive which must be set to see deleted rows.
type AnnotationFilter struct {
	ImageID         *uint
	TransformerID   *uint
	InspectionID    *uint
	Types           []entities.AnnotationType
	IncludeInactive bool
	MinConfidence   *float64
	ClassName       string
	UserID          string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Order           AnnotationOrder
}

// AnnotationRepository handles annotation persistence.
type AnnotationRepository interface {
	Create(ctx context.Context, a *entities.Annotation) error
	// CreateBatch inserts all rows or none.
	CreateBatch(ctx context.Context, as []*entities.Annotation) error
	// Save writes every column of an existing annotation.
	Save(ctx context.Context, a *entities.Annotation) error
	GetByID(ctx context.Context, id uint) (*entities.Annotation, error)
	Search(ctx context.Context, f AnnotationFilter) ([]entities.Annotation, error)
	// CountByType counts active rows per annotation type.
	CountByType(ctx context.Context) (map[entities.AnnotationType]int64, error)
	// Count counts rows; activeOnly skips deleted ones.
	Count(ctx context.Context, activeOnly bool) (int64, error)
}
