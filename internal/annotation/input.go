package annotation

import (
	"math"
	"strings"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
)

// Input carries client-supplied annotation fields. Pointers distinguish
// missing values from zero.
type Input struct {
	ImageID         uint     `json:"imageId"`
	ClassID         *int     `json:"classId"`
	ClassName       string   `json:"className"`
	ConfidenceScore *float64 `json:"confidenceScore"`
	BBoxX1          *float64 `json:"bboxX1"`
	BBoxY1          *float64 `json:"bboxY1"`
	BBoxX2          *float64 `json:"bboxX2"`
	BBoxY2          *float64 `json:"bboxY2"`
	// AnnotationType may be AUTO_DETECTED or USER_ADDED on create. Empty means USER_ADDED.
	AnnotationType string `json:"annotationType,omitempty"`
	UserID         string `json:"userId,omitempty"`
	Comments       string `json:"comments,omitempty"`
}

// Candidate is one detection proposed for an image.
type Candidate struct {
	ClassID    int                  `json:"classId"`
	ClassName  string               `json:"className"`
	Confidence float64              `json:"confidence"`
	Box        entities.BoundingBox `json:"bbox"`
}

// Input converts the candidate for batch creation.
func (c Candidate) Input(imageID uint, userID string) Input {
	classID, conf := c.ClassID, c.Confidence
	x1, y1, x2, y2 := c.Box.X1, c.Box.Y1, c.Box.X2, c.Box.Y2
	return Input{
		ImageID:         imageID,
		ClassID:         &classID,
		ClassName:       c.ClassName,
		ConfidenceScore: &conf,
		BBoxX1:          &x1,
		BBoxY1:          &y1,
		BBoxX2:          &x2,
		BBoxY2:          &y2,
		AnnotationType:  string(entities.AnnotationAutoDetected),
		UserID:          userID,
	}
}

// fields holds validated input.
type fields struct {
	classID    int
	className  string
	confidence float64
	box        entities.BoundingBox
}

func (in *Input) validate() (fields, error) {
	if in.ClassID == nil {
		return fields{}, invalid("classId is required")
	}
	name := strings.TrimSpace(in.ClassName)
	if name == "" {
		return fields{}, invalid("className is required")
	}
	if in.ConfidenceScore == nil {
		return fields{}, invalid("confidenceScore is required")
	}
	if c := *in.ConfidenceScore; math.IsNaN(c) || c < 0 || c > 1 {
		return fields{}, invalid("confidenceScore %v outside [0, 1]", c)
	}
	if in.BBoxX1 == nil || in.BBoxY1 == nil || in.BBoxX2 == nil || in.BBoxY2 == nil {
		return fields{}, invalid("bounding box requires x1, y1, x2 and y2")
	}
	box := entities.BoundingBox{X1: *in.BBoxX1, Y1: *in.BBoxY1, X2: *in.BBoxX2, Y2: *in.BBoxY2}
	if !box.Valid() {
		return fields{}, invalid("invalid bounding box (%v,%v)-(%v,%v)", box.X1, box.Y1, box.X2, box.Y2)
	}
	return fields{classID: *in.ClassID, className: name, confidence: *in.ConfidenceScore, box: box}, nil
}

// initialType resolves the creation type.
func (in *Input) initialType() (entities.AnnotationType, error) {
	if strings.TrimSpace(in.AnnotationType) == "" {
		return entities.AnnotationUserAdded, nil
	}
	t, ok := entities.ParseAnnotationType(in.AnnotationType)
	if !ok || (t != entities.AnnotationUserAdded && t != entities.AnnotationAutoDetected) {
		return "", invalid("annotationType %q is not a creation type", in.AnnotationType)
	}
	return t, nil
}
