package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
)

type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository creates a new ImageRepository.
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) Create(ctx context.Context, img *entities.Image) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(img).Error, ErrImageNotFound, "create_image")
}

func (r *imageRepository) GetByID(ctx context.Context, id uint) (*entities.Image, error) {
	var img entities.Image
	if err := r.db.WithContext(ctx).First(&img, id).Error; err != nil {
		return nil, translate(err, ErrImageNotFound, "get_image")
	}
	return &img, nil
}

func (r *imageRepository) GetByFilePath(ctx context.Context, filePath string) (*entities.Image, error) {
	var img entities.Image
	if err := r.db.WithContext(ctx).Where("file_path = ?", filePath).First(&img).Error; err != nil {
		return nil, translate(err, ErrImageNotFound, "get_image_by_path")
	}
	return &img, nil
}

func (r *imageRepository) Exists(ctx context.Context, id uint) (bool, error) {
	ok, err := exists(r.db.WithContext(ctx), tableImages, id)
	return ok, translate(err, ErrImageNotFound, "exists_image")
}

func (r *imageRepository) Delete(ctx context.Context, id uint) (*entities.Image, error) {
	var img entities.Image
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&img, id).Error; err != nil {
			return err
		}
		return deleteImages(tx, []entities.Image{img})
	})
	if err != nil {
		return nil, translate(err, ErrImageNotFound, "delete_image")
	}
	return &img, nil
}

func (r *imageRepository) Search(ctx context.Context, f ImageFilter) ([]entities.Image, error) {
	q := r.db.WithContext(ctx)
	if f.TransformerID != nil {
		q = q.Where("transformer_id = ?", *f.TransformerID)
	}
	if f.InspectionID != nil {
		q = q.Where("inspection_id = ?", *f.InspectionID)
	}
	if f.EnvCondition != nil {
		q = q.Where("env_condition = ?", *f.EnvCondition)
	}
	if f.ImageType != nil {
		q = q.Where("image_type = ?", *f.ImageType)
	}

	var out []entities.Image
	if err := q.Order("upload_date DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, translate(err, ErrImageNotFound, "search_images")
	}
	return out, nil
}

func (r *imageRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Table(tableImages).Count(&n).Error
	return n, translate(err, ErrImageNotFound, "count_images")
}

func (r *imageRepository) ReassignInspection(ctx context.Context, inspectionID, transformerID uint) (int64, error) {
	res := r.db.WithContext(ctx).Table(tableImages).
		Where("inspection_id = ?", inspectionID).
		Update("transformer_id", transformerID)
	if res.Error != nil {
		return 0, translate(res.Error, ErrImageNotFound, "reassign_images")
	}
	return res.RowsAffected, nil
}
