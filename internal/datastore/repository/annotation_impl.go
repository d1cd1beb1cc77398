package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
)

// batchSize bounds the rows per INSERT statement.
const batchSize = 100

type annotationRepository struct {
	db *gorm.DB
}

// NewAnnotationRepository creates a new AnnotationRepository.
func NewAnnotationRepository(db *gorm.DB) AnnotationRepository {
	return &annotationRepository{db: db}
}

// Create inserts a. IsActive is written explicitly so a false value is not replaced by the column default.
func (r *annotationRepository) Create(ctx context.Context, a *entities.Annotation) error {
	err := r.db.WithContext(ctx).Select("*").Omit("id", clause.Associations).Create(a).Error
	return translate(err, ErrAnnotationNotFound, "create_annotation")
}

func (r *annotationRepository) CreateBatch(ctx context.Context, as []*entities.Annotation) error {
	if len(as) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Select("*").Omit("id", clause.Associations).CreateInBatches(as, batchSize).Error
	})
	return translate(err, ErrAnnotationNotFound, "create_annotations")
}

func (r *annotationRepository) Save(ctx context.Context, a *entities.Annotation) error {
	err := r.db.WithContext(ctx).Model(a).Select("*").Omit("id", "created_at", clause.Associations).Updates(a).Error
	return translate(err, ErrAnnotationNotFound, "save_annotation")
}

func (r *annotationRepository) GetByID(ctx context.Context, id uint) (*entities.Annotation, error) {
	var a entities.Annotation
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, translate(err, ErrAnnotationNotFound, "get_annotation")
	}
	return &a, nil
}

func (r *annotationRepository) Search(ctx context.Context, f AnnotationFilter) ([]entities.Annotation, error) {
	db := r.db.WithContext(ctx)
	q := db.Model(&entities.Annotation{})

	if f.ImageID != nil {
		q = q.Where("image_id = ?", *f.ImageID)
	}
	if f.TransformerID != nil {
		q = q.Where("image_id IN (?)", db.Table(tableImages).Select("id").Where("transformer_id = ?", *f.TransformerID))
	}
	if f.InspectionID != nil {
		q = q.Where("image_id IN (?)", db.Table(tableImages).Select("id").Where("inspection_id = ?", *f.InspectionID))
	}
	if len(f.Types) > 0 {
		q = q.Where("annotation_type IN ?", f.Types)
	}
	if !f.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}
	if f.MinConfidence != nil {
		q = q.Where("confidence_score >= ?", *f.MinConfidence)
	}
	if f.ClassName != "" {
		q = q.Where("class_name = ?", f.ClassName)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		q = q.Where("created_at <= ?", *f.CreatedTo)
	}

	switch f.Order {
	case OrderUpdatedDesc:
		q = q.Order("updated_at DESC").Order("id DESC")
	case OrderCreatedDesc:
		q = q.Order("created_at DESC").Order("id DESC")
	case OrderConfidenceDesc:
		q = q.Order("confidence_score DESC").Order("id")
	default:
		q = q.Order("id")
	}

	var out []entities.Annotation
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err, ErrAnnotationNotFound, "search_annotations")
	}
	return out, nil
}

func (r *annotationRepository) CountByType(ctx context.Context) (map[entities.AnnotationType]int64, error) {
	var rows []struct {
		AnnotationType entities.AnnotationType
		N              int64
	}
	if err := r.db.WithContext(ctx).Table(tableAnnotations).
		Select("annotation_type, COUNT(*) AS n").
		Where("is_active = ?", true).
		Group("annotation_type").
		Scan(&rows).Error; err != nil {
		return nil, translate(err, ErrAnnotationNotFound, "count_annotations_by_type")
	}
	out := make(map[entities.AnnotationType]int64, len(entities.AnnotationTypes))
	for _, t := range entities.AnnotationTypes {
		out[t] = 0
	}
	for _, row := range rows {
		out[row.AnnotationType] = row.N
	}
	return out, nil
}

func (r *annotationRepository) Count(ctx context.Context, activeOnly bool) (int64, error) {
	q := r.db.WithContext(ctx).Table(tableAnnotations)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var n int64
	err := q.Count(&n).Error
	return n, translate(err, ErrAnnotationNotFound, "count_annotations")
}
