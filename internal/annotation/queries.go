package annotation

import (
	"context"
	"math"
	"time"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
	"github.com/tphakala/transformer-inspect/internal/datastore/repository"
)

// DefaultMinConfidence is the HighConfidence threshold used when callers give none.
const DefaultMinConfidence = 0.8

// Get returns one annotation, active or not.
func (m *Manager) Get(ctx context.Context, id uint) (*entities.Annotation, error) {
	a, err := m.repos.Annotations.GetByID(ctx, id)
	if err != nil {
		return nil, wrap(err, "get_annotation")
	}
	return a, nil
}

// ActiveByImage returns the current annotations of an image.
func (m *Manager) ActiveByImage(ctx context.Context, imageID uint) ([]entities.Annotation, error) {
	return m.search(ctx, "active_by_image", repository.AnnotationFilter{ImageID: &imageID})
}

// AllByImage includes soft-deleted annotations.
func (m *Manager) AllByImage(ctx context.Context, imageID uint) ([]entities.Annotation, error) {
	return m.search(ctx, "all_by_image", repository.AnnotationFilter{ImageID: &imageID, IncludeInactive: true})
}

func (m *Manager) ByImageAndType(ctx context.Context, imageID uint, typ entities.AnnotationType) ([]entities.Annotation, error) {
	return m.search(ctx, "by_image_and_type", repository.AnnotationFilter{
		ImageID: &imageID,
		Types:   []entities.AnnotationType{typ},
	})
}

// ByTransformer returns active annotations on any image of the transformer.
func (m *Manager) ByTransformer(ctx context.Context, transformerID uint) ([]entities.Annotation, error) {
	return m.search(ctx, "by_transformer", repository.AnnotationFilter{TransformerID: &transformerID})
}

// ByInspection returns active annotations on the inspection's images.
func (m *Manager) ByInspection(ctx context.Context, inspectionID uint) ([]entities.Annotation, error) {
	return m.search(ctx, "by_inspection", repository.AnnotationFilter{InspectionID: &inspectionID})
}

func (m *Manager) ByType(ctx context.Context, typ entities.AnnotationType) ([]entities.Annotation, error) {
	return m.search(ctx, "by_type", repository.AnnotationFilter{Types: []entities.AnnotationType{typ}})
}

// UserModifications returns annotations added, edited or deleted by users,
// most recently updated first.
func (m *Manager) UserModifications(ctx context.Context, includeInactive bool) ([]entities.Annotation, error) {
	return m.search(ctx, "user_modifications", repository.AnnotationFilter{
		Types:           entities.UserModifiedTypes,
		IncludeInactive: includeInactive,
		Order:           repository.OrderUpdatedDesc,
	})
}

// HighConfidence returns annotations at or above minConfidence, most confident first.
func (m *Manager) HighConfidence(ctx context.Context, minConfidence float64) ([]entities.Annotation, error) {
	if math.IsNaN(minConfidence) || minConfidence < 0 || minConfidence > 1 {
		return nil, invalid("minConfidence %v outside [0, 1]", minConfidence)
	}
	return m.search(ctx, "high_confidence", repository.AnnotationFilter{
		MinConfidence: &minConfidence,
		Order:         repository.OrderConfidenceDesc,
	})
}

// ByClassName matches the class name exactly.
func (m *Manager) ByClassName(ctx context.Context, className string) ([]entities.Annotation, error) {
	if className == "" {
		return nil, invalid("className is required")
	}
	return m.search(ctx, "by_class_name", repository.AnnotationFilter{ClassName: className})
}

// ByDateRange returns annotations created in [start, end], newest first.
func (m *Manager) ByDateRange(ctx context.Context, start, end time.Time) ([]entities.Annotation, error) {
	if end.Before(start) {
		return nil, invalid("end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	start, end = start.UTC(), end.UTC()
	return m.search(ctx, "by_date_range", repository.AnnotationFilter{
		CreatedFrom: &start,
		CreatedTo:   &end,
		Order:       repository.OrderCreatedDesc,
	})
}

// ByUser returns the user's annotations, most recently updated first.
func (m *Manager) ByUser(ctx context.Context, userID string) ([]entities.Annotation, error) {
	if userID == "" {
		return nil, invalid("userId is required")
	}
	return m.search(ctx, "by_user", repository.AnnotationFilter{UserID: userID, Order: repository.OrderUpdatedDesc})
}

// All returns every active annotation, most recently updated first.
func (m *Manager) All(ctx context.Context) ([]entities.Annotation, error) {
	return m.search(ctx, "all", repository.AnnotationFilter{Order: repository.OrderUpdatedDesc})
}

// CountByType counts active annotations per type. Every type is present.
func (m *Manager) CountByType(ctx context.Context) (map[entities.AnnotationType]int64, error) {
	counts, err := m.repos.Annotations.CountByType(ctx)
	if err != nil {
		return nil, wrap(err, "count_by_type")
	}
	return counts, nil
}

func (m *Manager) search(ctx context.Context, operation string, f repository.AnnotationFilter) ([]entities.Annotation, error) {
	out, err := m.repos.Annotations.Search(ctx, f)
	if err != nil {
		return nil, wrap(err, operation)
	}
	if out == nil {
		out = []entities.Annotation{}
	}
	return out, nil
}
