package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
	"github.com/tphakala/transformer-inspect/internal/datastore/repository"
	"github.com/tphakala/transformer-inspect/internal/errors"
	"github.com/tphakala/transformer-inspect/internal/logger"
)

// InspectionInput carries the client-supplied inspection fields.
// A nil InspectedDate means now.
type InspectionInput struct {
	InspectionNo    string     `json:"inspectionNo"`
	TransformerID   uint       `json:"transformerId"`
	Branch          string     `json:"branch"`
	InspectedDate   *time.Time `json:"inspectedDate,omitempty"`
	MaintenanceDate *time.Time `json:"maintenanceDate,omitempty"`
	Status          string     `json:"status"`
	InspectedBy     string     `json:"inspectedBy"`
	Notes           string     `json:"notes"`
}

// InspectionView is an inspection with its transformer number and image count.
type InspectionView struct {
	entities.Inspection
	TransformerNo     string `json:"transformerNo"`
	StatusDisplayName string `json:"statusDisplayName"`
	ImageCount        int64  `json:"imageCount"`
}

var statusDisplayNames = map[entities.InspectionStatus]string{
	entities.InspectionInProgress: "In Progress",
	entities.InspectionCompleted:  "Completed",
	entities.InspectionMissing:    "Missing",
	entities.InspectionCancelled:  "Cancelled",
}

// StatusDisplayName returns the human readable label of a status.
func StatusDisplayName(s entities.InspectionStatus) string {
	if name, ok := statusDisplayNames[s]; ok {
		return name
	}
	return string(s)
}

func (in *InspectionInput) validate() error {
	if strings.TrimSpace(in.InspectionNo) == "" {
		return invalid("inspectionNo", "is required")
	}
	if in.TransformerID == 0 {
		return invalid("transformerId", "is required")
	}
	return nil
}

// CreateInspection inserts an inspection. An unrecognized status becomes IN_PROGRESS.
func (s *Service) CreateInspection(ctx context.Context, in InspectionInput) (*InspectionView, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	status, ok := entities.ParseInspectionStatus(in.Status)
	if !ok {
		status = entities.InspectionInProgress
	}
	insp := entities.Inspection{
		InspectionNo:    strings.TrimSpace(in.InspectionNo),
		TransformerID:   in.TransformerID,
		Branch:          strings.TrimSpace(in.Branch),
		MaintenanceDate: in.MaintenanceDate,
		Status:          status,
		InspectedBy:     strings.TrimSpace(in.InspectedBy),
		Notes:           in.Notes,
	}
	if in.InspectedDate != nil {
		insp.InspectedDate = *in.InspectedDate
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		ok, err := tx.Transformers.Exists(ctx, in.TransformerID)
		if err != nil {
			return err
		}
		if !ok {
			return missingReference("transformer", in.TransformerID)
		}
		taken, err := tx.Inspections.ExistsByNumber(ctx, insp.InspectionNo, 0)
		if err != nil {
			return err
		}
		if taken {
			return duplicate("inspection", insp.InspectionNo)
		}
		return tx.Inspections.Create(ctx, &insp)
	})
	if err != nil {
		return nil, wrap(err, "create_inspection")
	}

	s.changed()
	s.log.Info("inspection created",
		logger.Uint64("inspection_id", uint64(insp.ID)),
		logger.Uint64("transformer_id", uint64(insp.TransformerID)),
		logger.String("status", string(insp.Status)))
	return s.inspectionView(ctx, &insp)
}

// UpdateInspection replaces the inspection fields. An unrecognized status keeps the current one.
func (s *Service) UpdateInspection(ctx context.Context, id uint, in InspectionInput) (*InspectionView, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var insp *entities.Inspection
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		insp, err = tx.Inspections.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if in.TransformerID != insp.TransformerID {
			ok, err := tx.Transformers.Exists(ctx, in.TransformerID)
			if err != nil {
				return err
			}
			if !ok {
				return missingReference("transformer", in.TransformerID)
			}
			insp.TransformerID = in.TransformerID
			// Images follow their inspection so both always name the same transformer.
			moved, err := tx.Images.ReassignInspection(ctx, insp.ID, in.TransformerID)
			if err != nil {
				return err
			}
			s.log.Debug("inspection images reassigned",
				logger.Uint64("inspection_id", uint64(insp.ID)),
				logger.Uint64("transformer_id", uint64(in.TransformerID)),
				logger.Int64("images", moved))
		}

		no := strings.TrimSpace(in.InspectionNo)
		taken, err := tx.Inspections.ExistsByNumber(ctx, no, id)
		if err != nil {
			return err
		}
		if taken {
			return duplicate("inspection", no)
		}
		insp.InspectionNo = no

		insp.Branch = strings.TrimSpace(in.Branch)
		if in.InspectedDate != nil {
			insp.InspectedDate = *in.InspectedDate
		}
		insp.MaintenanceDate = in.MaintenanceDate
		insp.InspectedBy = strings.TrimSpace(in.InspectedBy)
		insp.Notes = in.Notes
		if status, ok := entities.ParseInspectionStatus(in.Status); ok {
			insp.Status = status
		}
		return tx.Inspections.Update(ctx, insp)
	})
	if err != nil {
		return nil, wrap(err, "update_inspection")
	}

	s.changed()
	return s.inspectionView(ctx, insp)
}

// GetInspection returns one inspection with its image count.
func (s *Service) GetInspection(ctx context.Context, id uint) (*InspectionView, error) {
	insp, err := s.repos.Inspections.GetByID(ctx, id)
	if err != nil {
		return nil, wrap(err, "get_inspection")
	}
	return s.inspectionView(ctx, insp)
}

// ListInspections returns every inspection in id order.
func (s *Service) ListInspections(ctx context.Context) ([]InspectionView, error) {
	list, err := s.repos.Inspections.List(ctx)
	if err != nil {
		return nil, wrap(err, "list_inspections")
	}
	return s.inspectionViews(ctx, list)
}

// InspectionsByTransformer lists a transformer's inspections, newest first.
func (s *Service) InspectionsByTransformer(ctx context.Context, transformerID uint) ([]InspectionView, error) {
	ok, err := s.repos.Transformers.Exists(ctx, transformerID)
	if err != nil {
		return nil, wrap(err, "list_inspections_by_transformer")
	}
	if !ok {
		return nil, wrap(repository.ErrTransformerNotFound, "list_inspections_by_transformer")
	}
	list, err := s.repos.Inspections.ListByTransformer(ctx, transformerID)
	if err != nil {
		return nil, wrap(err, "list_inspections_by_transformer")
	}
	return s.inspectionViews(ctx, list)
}

// InspectionsByStatus lists inspections in the given state. The status must parse.
func (s *Service) InspectionsByStatus(ctx context.Context, status string) ([]InspectionView, error) {
	st, ok := entities.ParseInspectionStatus(status)
	if !ok {
		return nil, invalid("status", "unknown inspection status %q", status)
	}
	list, err := s.repos.Inspections.ListByStatus(ctx, st)
	if err != nil {
		return nil, wrap(err, "list_inspections_by_status")
	}
	return s.inspectionViews(ctx, list)
}

// SearchInspections tries an exact inspection number first, then a branch
// substring, then an inspector substring, and returns the first non-empty result.
func (s *Service) SearchInspections(ctx context.Context, query string) ([]InspectionView, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []InspectionView{}, nil
	}

	insp, err := s.repos.Inspections.GetByNumber(ctx, query)
	switch {
	case err == nil:
		return s.inspectionViews(ctx, []entities.Inspection{*insp})
	case !errors.Is(err, repository.ErrNotFound):
		return nil, wrap(err, "search_inspections")
	}

	list, err := s.repos.Inspections.SearchByBranch(ctx, query)
	if err != nil {
		return nil, wrap(err, "search_inspections")
	}
	if len(list) == 0 {
		list, err = s.repos.Inspections.SearchByInspector(ctx, query)
		if err != nil {
			return nil, wrap(err, "search_inspections")
		}
	}
	return s.inspectionViews(ctx, list)
}

// DeleteInspection removes the inspection with its images, then their blobs.
func (s *Service) DeleteInspection(ctx context.Context, id uint) error {
	paths, err := s.repos.Inspections.DeleteCascade(ctx, id)
	if err != nil {
		return wrap(err, "delete_inspection")
	}
	s.changed()
	s.log.Info("inspection deleted",
		logger.Uint64("inspection_id", uint64(id)),
		logger.Int("images_removed", len(paths)))
	s.removeBlobs(paths)
	return nil
}

func (s *Service) inspectionView(ctx context.Context, insp *entities.Inspection) (*InspectionView, error) {
	views, err := s.inspectionViews(ctx, []entities.Inspection{*insp})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *Service) inspectionViews(ctx context.Context, list []entities.Inspection) ([]InspectionView, error) {
	ids := make([]uint, len(list))
	parents := make([]uint, 0, len(list))
	for i := range list {
		ids[i] = list[i].ID
		parents = append(parents, list[i].TransformerID)
	}
	counts, err := s.repos.Inspections.ImageCounts(ctx, ids)
	if err != nil {
		return nil, wrap(err, "count_inspection_images")
	}
	numbers, err := s.repos.Transformers.NumbersByID(ctx, parents)
	if err != nil {
		return nil, wrap(err, "get_transformer_numbers")
	}

	out := make([]InspectionView, len(list))
	for i := range list {
		out[i] = InspectionView{
			Inspection:        list[i],
			TransformerNo:     numbers[list[i].TransformerID],
			StatusDisplayName: StatusDisplayName(list[i].Status),
			ImageCount:        counts[list[i].ID],
		}
	}
	return out, nil
}
