package entities

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Transformer is a field transformer asset.
type Transformer struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	TransformerNo    string          `gorm:"type:varchar(100);not null" json:"transformerNo"`
	TransformerNoKey string          `gorm:"type:varchar(100);not null;uniqueIndex" json:"-"`
	Location         string          `gorm:"type:varchar(255);not null;index" json:"location"`
	Region           Region          `gorm:"type:varchar(32);not null;index" json:"region"`
	PoleNo           string          `gorm:"type:varchar(100);not null" json:"poleNo"`
	TransformerType  TransformerType `gorm:"type:varchar(32);not null" json:"transformerType"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for GORM.
func (Transformer) TableName() string {
	return "transformers"
}

// BeforeSave keeps the folded uniqueness key in step with TransformerNo.
func (t *Transformer) BeforeSave(_ *gorm.DB) error {
	t.TransformerNo = strings.TrimSpace(t.TransformerNo)
	t.TransformerNoKey = FoldKey(t.TransformerNo)
	return nil
}
