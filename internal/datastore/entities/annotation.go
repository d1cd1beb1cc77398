package entities

import "time"

// Annotation is a labeled bounding box on an image.
// Rows are never physically removed by the lifecycle; deletion clears IsActive.
type Annotation struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	ImageID         uint           `gorm:"not null;index" json:"imageId"`
	ClassID         int            `gorm:"not null" json:"classId"`
	ClassName       string         `gorm:"type:varchar(100);not null;index" json:"className"`
	ConfidenceScore float64        `gorm:"not null;index" json:"confidenceScore"`
	BBoxX1          float64        `gorm:"column:bbox_x1;not null" json:"bboxX1"`
	BBoxY1          float64        `gorm:"column:bbox_y1;not null" json:"bboxY1"`
	BBoxX2          float64        `gorm:"column:bbox_x2;not null" json:"bboxX2"`
	BBoxY2          float64        `gorm:"column:bbox_y2;not null" json:"bboxY2"`
	CenterX         float64        `gorm:"not null" json:"centerX"`
	CenterY         float64        `gorm:"not null" json:"centerY"`
	AnnotationType  AnnotationType `gorm:"type:varchar(32);not null;index" json:"annotationType"`
	UserID          string         `gorm:"type:varchar(100);index" json:"userId,omitempty"`
	Comments        string         `gorm:"type:text" json:"comments,omitempty"`
	IsActive        bool           `gorm:"not null;default:true;index" json:"isActive"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime;index" json:"updatedAt"`

	// Relationship
	Image *Image `gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for GORM.
func (Annotation) TableName() string {
	return "annotations"
}

// Width of the bounding box.
func (a *Annotation) Width() float64 { return a.BBoxX2 - a.BBoxX1 }

// Height of the bounding box.
func (a *Annotation) Height() float64 { return a.BBoxY2 - a.BBoxY1 }

// SetBox replaces the bounding box and recomputes the center.
// Callers validate the box first.
func (a *Annotation) SetBox(b BoundingBox) {
	a.BBoxX1, a.BBoxY1, a.BBoxX2, a.BBoxY2 = b.X1, b.Y1, b.X2, b.Y2
	a.CenterX, a.CenterY = b.Center()
}

// Box returns the stored bounding box.
func (a *Annotation) Box() BoundingBox {
	return BoundingBox{X1: a.BBoxX1, Y1: a.BBoxY1, X2: a.BBoxX2, Y2: a.BBoxY2}
}

// BoundingBox is an axis-aligned box in image pixel coordinates.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Valid reports whether the box has positive width and height.
func (b BoundingBox) Valid() bool {
	return b.X2 > b.X1 && b.Y2 > b.Y1
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (x, y float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// All returns every entity model in dependency order for migrations.
func All() []any {
	return []any{&Transformer{}, &Inspection{}, &Image{}, &Annotation{}}
}
