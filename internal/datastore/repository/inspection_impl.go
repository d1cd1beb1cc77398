package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
)

type inspectionRepository struct {
	db *gorm.DB
}

// NewInspectionRepository creates a new InspectionRepository.
func NewInspectionRepository(db *gorm.DB) InspectionRepository {
	return &inspectionRepository{db: db}
}

func (r *inspectionRepository) Create(ctx context.Context, i *entities.Inspection) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(i).Error, ErrInspectionNotFound, "create_inspection")
}

func (r *inspectionRepository) Update(ctx context.Context, i *entities.Inspection) error {
	err := r.db.WithContext(ctx).Model(i).Select("*").Omit("id", "created_at", clause.Associations).Updates(i).Error
	return translate(err, ErrInspectionNotFound, "update_inspection")
}

func (r *inspectionRepository) GetByID(ctx context.Context, id uint) (*entities.Inspection, error) {
	var i entities.Inspection
	if err := r.db.WithContext(ctx).First(&i, id).Error; err != nil {
		return nil, translate(err, ErrInspectionNotFound, "get_inspection")
	}
	return &i, nil
}

func (r *inspectionRepository) GetByNumber(ctx context.Context, inspectionNo string) (*entities.Inspection, error) {
	var i entities.Inspection
	err := r.db.WithContext(ctx).
		Where("inspection_no_key = ?", entities.FoldKey(inspectionNo)).
		First(&i).Error
	if err != nil {
		return nil, translate(err, ErrInspectionNotFound, "get_inspection_by_number")
	}
	return &i, nil
}

func (r *inspectionRepository) ExistsByNumber(ctx context.Context, inspectionNo string, excludeID uint) (bool, error) {
	q := r.db.WithContext(ctx).Table(tableInspections).
		Where("inspection_no_key = ?", entities.FoldKey(inspectionNo))
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, translate(err, ErrInspectionNotFound, "exists_inspection_number")
	}
	return n > 0, nil
}

func (r *inspectionRepository) Exists(ctx context.Context, id uint) (bool, error) {
	ok, err := exists(r.db.WithContext(ctx), tableInspections, id)
	return ok, translate(err, ErrInspectionNotFound, "exists_inspection")
}

func (r *inspectionRepository) List(ctx context.Context) ([]entities.Inspection, error) {
	return r.find(r.db.WithContext(ctx).Order("id"), "list_inspections")
}

func (r *inspectionRepository) ListByTransformer(ctx context.Context, transformerID uint) ([]entities.Inspection, error) {
	q := r.db.WithContext(ctx).Where("transformer_id = ?", transformerID).
		Order("inspected_date DESC").Order("id DESC")
	return r.find(q, "list_inspections_by_transformer")
}

func (r *inspectionRepository) ListByStatus(ctx context.Context, status entities.InspectionStatus) ([]entities.Inspection, error) {
	return r.find(r.db.WithContext(ctx).Where("status = ?", status).Order("id"), "list_inspections_by_status")
}

func (r *inspectionRepository) SearchByBranch(ctx context.Context, branch string) ([]entities.Inspection, error) {
	return r.find(whereContains(r.db.WithContext(ctx), "branch", branch).Order("id"), "search_inspections_branch")
}

func (r *inspectionRepository) SearchByInspector(ctx context.Context, inspector string) ([]entities.Inspection, error) {
	return r.find(whereContains(r.db.WithContext(ctx), "inspected_by", inspector).Order("id"), "search_inspections_inspector")
}

func (r *inspectionRepository) find(q *gorm.DB, operation string) ([]entities.Inspection, error) {
	var out []entities.Inspection
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err, ErrInspectionNotFound, operation)
	}
	return out, nil
}

func (r *inspectionRepository) ImageCounts(ctx context.Context, ids []uint) (map[uint]int64, error) {
	result := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []countRow
	if err := r.db.WithContext(ctx).Table(tableImages).
		Select("inspection_id AS parent_id, COUNT(*) AS n").
		Where("inspection_id IN ?", ids).
		Group("inspection_id").
		Scan(&rows).Error; err != nil {
		return nil, translate(err, ErrInspectionNotFound, "count_inspection_images")
	}
	for _, id := range ids {
		result[id] = 0
	}
	for _, row := range rows {
		result[row.ParentID] = row.N
	}
	return result, nil
}

func (r *inspectionRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Table(tableInspections).Count(&n).Error
	return n, translate(err, ErrInspectionNotFound, "count_inspections")
}

func (r *inspectionRepository) CountByStatus(ctx context.Context) (map[entities.InspectionStatus]int64, error) {
	var rows []struct {
		Status entities.InspectionStatus
		N      int64
	}
	if err := r.db.WithContext(ctx).Table(tableInspections).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, translate(err, ErrInspectionNotFound, "count_inspections_by_status")
	}
	out := make(map[entities.InspectionStatus]int64, len(entities.InspectionStatuses))
	for _, s := range entities.InspectionStatuses {
		out[s] = 0
	}
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

func (r *inspectionRepository) DeleteCascade(ctx context.Context, id uint) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, tableInspections, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInspectionNotFound
		}

		var imgs []entities.Image
		if err := tx.Select("id", "file_path").Where("inspection_id = ?", id).Find(&imgs).Error; err != nil {
			return err
		}
		if err := deleteImages(tx, imgs); err != nil {
			return err
		}
		paths = imagePaths(imgs)

		return tx.Delete(&entities.Inspection{}, id).Error
	})
	if err != nil {
		return nil, translate(err, ErrInspectionNotFound, "delete_inspection")
	}
	return paths, nil
}
