package inventory

import (
	"context"
	"strings"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
	"github.com/tphakala/transformer-inspect/internal/datastore/repository"
	"github.com/tphakala/transformer-inspect/internal/logger"
)

// TransformerInput carries the client-supplied transformer fields.
type TransformerInput struct {
	TransformerNo   string `json:"transformerNo"`
	Location        string `json:"location"`
	Region          string `json:"region"`
	PoleNo          string `json:"poleNo"`
	TransformerType string `json:"transformerType"`
}

// TransformerView is a transformer with the sizes of its subtrees.
type TransformerView struct {
	entities.Transformer
	repository.ChildCounts
}

func (in *TransformerInput) apply(t *entities.Transformer) error {
	no := strings.TrimSpace(in.TransformerNo)
	if no == "" {
		return invalid("transformerNo", "is required")
	}
	location := strings.TrimSpace(in.Location)
	if location == "" {
		return invalid("location", "is required")
	}
	pole := strings.TrimSpace(in.PoleNo)
	if pole == "" {
		return invalid("poleNo", "is required")
	}
	region, ok := entities.ParseRegion(in.Region)
	if !ok {
		return invalid("region", "unknown region %q", in.Region)
	}
	typ, ok := entities.ParseTransformerType(in.TransformerType)
	if !ok {
		return invalid("transformerType", "unknown transformer type %q", in.TransformerType)
	}

	t.TransformerNo = no
	t.Location = location
	t.PoleNo = pole
	t.Region = region
	t.TransformerType = typ
	return nil
}

// CreateTransformer validates in and inserts a transformer with a new business key.
func (s *Service) CreateTransformer(ctx context.Context, in TransformerInput) (*TransformerView, error) {
	var t entities.Transformer
	if err := in.apply(&t); err != nil {
		return nil, err
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		taken, err := tx.Transformers.ExistsByNumber(ctx, t.TransformerNo, 0)
		if err != nil {
			return err
		}
		if taken {
			return duplicate("transformer", t.TransformerNo)
		}
		return tx.Transformers.Create(ctx, &t)
	})
	if err != nil {
		return nil, wrap(err, "create_transformer")
	}

	s.changed()
	s.log.Info("transformer created",
		logger.Uint64("transformer_id", uint64(t.ID)),
		logger.String("transformer_no", t.TransformerNo))
	return &TransformerView{Transformer: t}, nil
}

// UpdateTransformer replaces every client-settable field of an existing transformer.
func (s *Service) UpdateTransformer(ctx context.Context, id uint, in TransformerInput) (*TransformerView, error) {
	var t *entities.Transformer
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		t, err = tx.Transformers.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := in.apply(t); err != nil {
			return err
		}
		taken, err := tx.Transformers.ExistsByNumber(ctx, t.TransformerNo, id)
		if err != nil {
			return err
		}
		if taken {
			return duplicate("transformer", t.TransformerNo)
		}
		return tx.Transformers.Update(ctx, t)
	})
	if err != nil {
		return nil, wrap(err, "update_transformer")
	}

	s.changed()
	return s.transformerView(ctx, t)
}

// GetTransformer returns one transformer with its counts.
func (s *Service) GetTransformer(ctx context.Context, id uint) (*TransformerView, error) {
	t, err := s.repos.Transformers.GetByID(ctx, id)
	if err != nil {
		return nil, wrap(err, "get_transformer")
	}
	return s.transformerView(ctx, t)
}

// ListTransformers returns every transformer in id order.
func (s *Service) ListTransformers(ctx context.Context) ([]TransformerView, error) {
	ts, err := s.repos.Transformers.List(ctx)
	if err != nil {
		return nil, wrap(err, "list_transformers")
	}
	return s.transformerViews(ctx, ts)
}

// SearchTransformers matches a case-insensitive substring of the location.
func (s *Service) SearchTransformers(ctx context.Context, location string) ([]TransformerView, error) {
	ts, err := s.repos.Transformers.SearchByLocation(ctx, location)
	if err != nil {
		return nil, wrap(err, "search_transformers")
	}
	return s.transformerViews(ctx, ts)
}

// DeleteTransformer removes the transformer subtree, then its blobs.
func (s *Service) DeleteTransformer(ctx context.Context, id uint) error {
	paths, err := s.repos.Transformers.DeleteCascade(ctx, id)
	if err != nil {
		return wrap(err, "delete_transformer")
	}
	s.changed()
	s.log.Info("transformer deleted",
		logger.Uint64("transformer_id", uint64(id)),
		logger.Int("images_removed", len(paths)))
	s.removeBlobs(paths)
	return nil
}

func (s *Service) transformerView(ctx context.Context, t *entities.Transformer) (*TransformerView, error) {
	counts, err := s.repos.Transformers.ChildCounts(ctx, []uint{t.ID})
	if err != nil {
		return nil, wrap(err, "count_transformer_children")
	}
	return &TransformerView{Transformer: *t, ChildCounts: counts[t.ID]}, nil
}

func (s *Service) transformerViews(ctx context.Context, ts []entities.Transformer) ([]TransformerView, error) {
	ids := make([]uint, len(ts))
	for i := range ts {
		ids[i] = ts[i].ID
	}
	counts, err := s.repos.Transformers.ChildCounts(ctx, ids)
	if err != nil {
		return nil, wrap(err, "count_transformer_children")
	}
	out := make([]TransformerView, len(ts))
	for i := range ts {
		out[i] = TransformerView{Transformer: ts[i], ChildCounts: counts[ts[i].ID]}
	}
	return out, nil
}

// removeBlobs deletes stored files after their rows are gone. Failures are logged only.
func (s *Service) removeBlobs(paths []string) {
	for _, p := range paths {
		if err := s.store.Delete(p); err != nil {
			s.log.Warn("failed to delete image blob",
				logger.String("file_path", p),
				logger.Error(err))
		}
	}
}
