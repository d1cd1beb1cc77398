package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
)

// transformerRepository implements TransformerRepository.
type transformerRepository struct {
	db *gorm.DB
}

// NewTransformerRepository creates a new TransformerRepository.
func NewTransformerRepository(db *gorm.DB) TransformerRepository {
	return &transformerRepository{db: db}
}

func (r *transformerRepository) Create(ctx context.Context, t *entities.Transformer) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(t).Error, ErrTransformerNotFound, "create_transformer")
}

func (r *transformerRepository) Update(ctx context.Context, t *entities.Transformer) error {
	err := r.db.WithContext(ctx).Model(t).Select("*").Omit("id", "created_at", clause.Associations).Updates(t).Error
	return translate(err, ErrTransformerNotFound, "update_transformer")
}

func (r *transformerRepository) GetByID(ctx context.Context, id uint) (*entities.Transformer, error) {
	var t entities.Transformer
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, translate(err, ErrTransformerNotFound, "get_transformer")
	}
	return &t, nil
}

func (r *transformerRepository) GetByNumber(ctx context.Context, transformerNo string) (*entities.Transformer, error) {
	var t entities.Transformer
	err := r.db.WithContext(ctx).
		Where("transformer_no_key = ?", entities.FoldKey(transformerNo)).
		First(&t).Error
	if err != nil {
		return nil, translate(err, ErrTransformerNotFound, "get_transformer_by_number")
	}
	return &t, nil
}

func (r *transformerRepository) ExistsByNumber(ctx context.Context, transformerNo string, excludeID uint) (bool, error) {
	q := r.db.WithContext(ctx).Table(tableTransformers).
		Where("transformer_no_key = ?", entities.FoldKey(transformerNo))
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, translate(err, ErrTransformerNotFound, "exists_transformer_number")
	}
	return n > 0, nil
}

func (r *transformerRepository) Exists(ctx context.Context, id uint) (bool, error) {
	ok, err := exists(r.db.WithContext(ctx), tableTransformers, id)
	return ok, translate(err, ErrTransformerNotFound, "exists_transformer")
}

func (r *transformerRepository) List(ctx context.Context) ([]entities.Transformer, error) {
	var out []entities.Transformer
	err := r.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, translate(err, ErrTransformerNotFound, "list_transformers")
}

func (r *transformerRepository) SearchByLocation(ctx context.Context, location string) ([]entities.Transformer, error) {
	var out []entities.Transformer
	err := whereContains(r.db.WithContext(ctx), "location", location).Order("id").Find(&out).Error
	return out, translate(err, ErrTransformerNotFound, "search_transformers")
}

func (r *transformerRepository) ChildCounts(ctx context.Context, ids []uint) (map[uint]ChildCounts, error) {
	result := make(map[uint]ChildCounts, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var inspections, images []countRow
	db := r.db.WithContext(ctx)
	if err := db.Table(tableInspections).
		Select("transformer_id AS parent_id, COUNT(*) AS n").
		Where("transformer_id IN ?", ids).
		Group("transformer_id").
		Scan(&inspections).Error; err != nil {
		return nil, translate(err, ErrTransformerNotFound, "count_inspections")
	}
	if err := db.Table(tableImages).
		Select("transformer_id AS parent_id, COUNT(*) AS n").
		Where("transformer_id IN ?", ids).
		Group("transformer_id").
		Scan(&images).Error; err != nil {
		return nil, translate(err, ErrTransformerNotFound, "count_images")
	}

	for _, id := range ids {
		result[id] = ChildCounts{}
	}
	for _, row := range inspections {
		c := result[row.ParentID]
		c.Inspections = row.N
		result[row.ParentID] = c
	}
	for _, row := range images {
		c := result[row.ParentID]
		c.Images = row.N
		result[row.ParentID] = c
	}
	return result, nil
}

func (r *transformerRepository) NumbersByID(ctx context.Context, ids []uint) (map[uint]string, error) {
	out := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		ID            uint
		TransformerNo string
	}
	if err := r.db.WithContext(ctx).Table(tableTransformers).
		Select("id, transformer_no").
		Where("id IN ?", ids).
		Scan(&rows).Error; err != nil {
		return nil, translate(err, ErrTransformerNotFound, "get_transformer_numbers")
	}
	for _, row := range rows {
		out[row.ID] = row.TransformerNo
	}
	return out, nil
}

func (r *transformerRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Table(tableTransformers).Count(&n).Error
	return n, translate(err, ErrTransformerNotFound, "count_transformers")
}

func (r *transformerRepository) DeleteCascade(ctx context.Context, id uint) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, tableTransformers, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrTransformerNotFound
		}

		var inspectionIDs []uint
		if err := tx.Table(tableInspections).Where("transformer_id = ?", id).
			Pluck("id", &inspectionIDs).Error; err != nil {
			return err
		}

		var imgs []entities.Image
		q := tx.Select("id", "file_path").Where("transformer_id = ?", id)
		if len(inspectionIDs) > 0 {
			q = q.Or("inspection_id IN ?", inspectionIDs)
		}
		if err := q.Find(&imgs).Error; err != nil {
			return err
		}

		if err := deleteImages(tx, imgs); err != nil {
			return err
		}
		paths = imagePaths(imgs)

		if err := tx.Where("transformer_id = ?", id).Delete(&entities.Inspection{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entities.Transformer{}, id).Error
	})
	if err != nil {
		return nil, translate(err, ErrTransformerNotFound, "delete_transformer")
	}
	return paths, nil
}
