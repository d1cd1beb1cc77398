package inventory

import (
	"context"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
)

// Summary is the dashboard overview of the store.
type Summary struct {
	Transformers        int64                               `json:"transformers"`
	Inspections         int64                               `json:"inspections"`
	Images              int64                               `json:"images"`
	InspectionsByStatus map[entities.InspectionStatus]int64 `json:"inspectionsByStatus"`
	ActiveAnnotations   int64                               `json:"activeAnnotations"`
	AnnotationsByType   map[entities.AnnotationType]int64   `json:"annotationsByType"`
}

// Summary counts every aggregate.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	var (
		out Summary
		err error
	)
	if out.Transformers, err = s.repos.Transformers.Count(ctx); err != nil {
		return nil, wrap(err, "summary")
	}
	if out.Inspections, err = s.repos.Inspections.Count(ctx); err != nil {
		return nil, wrap(err, "summary")
	}
	if out.Images, err = s.repos.Images.Count(ctx); err != nil {
		return nil, wrap(err, "summary")
	}
	if out.InspectionsByStatus, err = s.repos.Inspections.CountByStatus(ctx); err != nil {
		return nil, wrap(err, "summary")
	}
	if out.ActiveAnnotations, err = s.repos.Annotations.Count(ctx, true); err != nil {
		return nil, wrap(err, "summary")
	}
	if out.AnnotationsByType, err = s.repos.Annotations.CountByType(ctx); err != nil {
		return nil, wrap(err, "summary")
	}
	return &out, nil
}
