package annotation

import (
	"context"
	"time"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
)

// EventKind names a lifecycle transition.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventEdited    EventKind = "edited"
	EventConfirmed EventKind = "confirmed"
	EventDeleted   EventKind = "deleted"
)

// Event describes one committed transition.
type Event struct {
	Kind         EventKind               `json:"kind"`
	AnnotationID uint                    `json:"annotationId"`
	ImageID      uint                    `json:"imageId"`
	Type         entities.AnnotationType `json:"annotationType"`
	UserID       string                  `json:"userId,omitempty"`
	Timestamp    time.Time               `json:"timestamp"`
}

// EventPublisher receives events after commit. Errors are logged and never
// change the outcome of the transition.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Recorder receives lifecycle metrics. AnnotationMetrics implements it.
type Recorder interface {
	RecordTransition(kind string)
	RecordBatch(accepted, dropped int)
}
