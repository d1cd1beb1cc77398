package entities

import "time"

// Image is the metadata row for a stored thermal image blob.
// FilePath is the collision-free name issued by the blob store; FileName is
// the client's original name and is informational only.
type Image struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	TransformerID uint         `gorm:"not null;index" json:"transformerId"`
	InspectionID  *uint        `gorm:"index" json:"inspectionId,omitempty"`
	FileName      string       `gorm:"type:varchar(255);not null" json:"fileName"`
	FilePath      string       `gorm:"type:varchar(255);not null;uniqueIndex" json:"filePath"`
	FileType      string       `gorm:"type:varchar(100)" json:"fileType"`
	FileSize      int64        `json:"fileSize"`
	EnvCondition  EnvCondition `gorm:"type:varchar(16);not null;index" json:"envCondition"`
	ImageType     ImageType    `gorm:"type:varchar(16);not null;index" json:"imageType"`
	UploadDate    time.Time    `gorm:"autoCreateTime;index" json:"uploadDate"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"createdAt"`

	// Relationships
	Transformer *Transformer `gorm:"foreignKey:TransformerID;constraint:OnDelete:CASCADE" json:"-"`
	Inspection  *Inspection  `gorm:"foreignKey:InspectionID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for GORM.
func (Image) TableName() string {
	return "images"
}
