package repository

import (
	"strings"

	"gorm.io/gorm"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
)

// likeEscape is the LIKE escape character; '!' needs no quoting in SQLite or MySQL.
const likeEscape = "!"

// containsPattern builds a case-insensitive substring pattern with wildcards escaped.
func containsPattern(s string) string {
	r := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	return "%" + strings.ToLower(r.Replace(strings.TrimSpace(s))) + "%"
}

// whereContains adds "LOWER(column) LIKE pattern" to the query.
func whereContains(db *gorm.DB, column, s string) *gorm.DB {
	return db.Where("LOWER("+column+") LIKE ? ESCAPE '"+likeEscape+"'", containsPattern(s))
}

// exists reports whether a row with id exists in table.
func exists(db *gorm.DB, table string, id uint) (bool, error) {
	var n int64
	if err := db.Table(table).Where("id = ?", id).Limit(1).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// ChildCounts are the number of rows owned by one parent.
type ChildCounts struct {
	Inspections int64 `json:"inspectionCount"`
	Images      int64 `json:"imageCount"`
}

type countRow struct {
	ParentID uint
	N        int64
}

// deleteImages removes the given images and their annotations.
func deleteImages(tx *gorm.DB, imgs []entities.Image) error {
	if len(imgs) == 0 {
		return nil
	}
	ids := make([]uint, len(imgs))
	for i := range imgs {
		ids[i] = imgs[i].ID
	}
	if err := tx.Where("image_id IN ?", ids).Delete(&entities.Annotation{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&entities.Image{}).Error
}

func imagePaths(imgs []entities.Image) []string {
	paths := make([]string, 0, len(imgs))
	for i := range imgs {
		paths = append(paths, imgs[i].FilePath)
	}
	return paths
}
