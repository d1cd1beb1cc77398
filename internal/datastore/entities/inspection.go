package entities

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Inspection is one inspection visit to a transformer.
type Inspection struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	InspectionNo    string           `gorm:"type:varchar(100);not null" json:"inspectionNo"`
	InspectionNoKey string           `gorm:"type:varchar(100);not null;uniqueIndex" json:"-"`
	TransformerID   uint             `gorm:"not null;index" json:"transformerId"`
	Branch          string           `gorm:"type:varchar(255)" json:"branch"`
	InspectedDate   time.Time        `gorm:"not null;index" json:"inspectedDate"`
	MaintenanceDate *time.Time       `json:"maintenanceDate,omitempty"`
	Status          InspectionStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	InspectedBy     string           `gorm:"type:varchar(255)" json:"inspectedBy"`
	Notes           string           `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`

	// Relationship
	Transformer *Transformer `gorm:"foreignKey:TransformerID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for GORM.
func (Inspection) TableName() string {
	return "inspections"
}

// BeforeSave maintains the folded key and fills the defaults for date and status.
func (i *Inspection) BeforeSave(tx *gorm.DB) error {
	i.InspectionNo = strings.TrimSpace(i.InspectionNo)
	i.InspectionNoKey = FoldKey(i.InspectionNo)
	if i.Status == "" {
		i.Status = InspectionInProgress
	}
	if i.InspectedDate.IsZero() {
		i.InspectedDate = tx.NowFunc()
	}
	return nil
}
