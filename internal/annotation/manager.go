// Package annotation mediates every annotation state transition and serves
// the read-only annotation queries.
package annotation

import (
	"context"
	"time"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
	"github.com/tphakala/transformer-inspect/internal/datastore/repository"
	"github.com/tphakala/transformer-inspect/internal/logger"
)

// Manager applies lifecycle transitions. Each transition reads, changes and
// saves the annotation in one transaction.
type Manager struct {
	repos     *repository.Repositories
	log       logger.Logger
	publisher EventPublisher
	recorder  Recorder
	now       func() time.Time
	onChange  func()
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l logger.Logger) Option { return func(m *Manager) { m.log = l } }

// WithPublisher sets the event publisher used after commit.
func WithPublisher(p EventPublisher) Option { return func(m *Manager) { m.publisher = p } }

func WithRecorder(r Recorder) Option { return func(m *Manager) { m.recorder = r } }

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithChangeHook registers fn to run after every committed transition.
func WithChangeHook(fn func()) Option { return func(m *Manager) { m.onChange = fn } }

// NewManager creates a lifecycle manager.
func NewManager(repos *repository.Repositories, opts ...Option) *Manager {
	m := &Manager{repos: repos, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	m.log = m.log.Module("annotation")
	return m
}

// Create adds an annotation to an existing image. The type defaults to USER_ADDED.
func (m *Manager) Create(ctx context.Context, in Input) (*entities.Annotation, error) {
	f, err := in.validate()
	if err != nil {
		return nil, err
	}
	typ, err := in.initialType()
	if err != nil {
		return nil, err
	}

	a := &entities.Annotation{
		ImageID:         in.ImageID,
		ClassID:         f.classID,
		ClassName:       f.className,
		ConfidenceScore: f.confidence,
		AnnotationType:  typ,
		UserID:          in.UserID,
		Comments:        in.Comments,
		IsActive:        true,
	}
	a.SetBox(f.box)

	err = m.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := requireImage(ctx, tx, in.ImageID); err != nil {
			return err
		}
		return tx.Annotations.Create(ctx, a)
	})
	if err != nil {
		return nil, wrap(err, "create_annotation")
	}

	m.committed(ctx, EventCreated, a)
	return a, nil
}

// Edit replaces class, confidence, box, comment and user, and marks the annotation USER_EDITED.
func (m *Manager) Edit(ctx context.Context, id uint, in Input) (*entities.Annotation, error) {
	f, err := in.validate()
	if err != nil {
		return nil, err
	}
	a, err := m.transition(ctx, id, "edit_annotation", func(a *entities.Annotation) {
		a.ClassID = f.classID
		a.ClassName = f.className
		a.ConfidenceScore = f.confidence
		a.SetBox(f.box)
		a.Comments = in.Comments
		a.UserID = in.UserID
		a.AnnotationType = entities.AnnotationUserEdited
	})
	if err != nil {
		return nil, err
	}
	m.committed(ctx, EventEdited, a)
	return a, nil
}

// Confirm marks the annotation as human-verified. Only the type and user change.
func (m *Manager) Confirm(ctx context.Context, id uint, userID string) (*entities.Annotation, error) {
	a, err := m.transition(ctx, id, "confirm_annotation", func(a *entities.Annotation) {
		a.AnnotationType = entities.AnnotationUserConfirmed
		a.UserID = userID
	})
	if err != nil {
		return nil, err
	}
	m.committed(ctx, EventConfirmed, a)
	return a, nil
}

// Delete soft-deletes the annotation. The row stays for audit with type USER_DELETED.
func (m *Manager) Delete(ctx context.Context, id uint, userID string) error {
	a, err := m.transition(ctx, id, "delete_annotation", func(a *entities.Annotation) {
		a.AnnotationType = entities.AnnotationUserDeleted
		a.IsActive = false
		a.UserID = userID
	})
	if err != nil {
		return err
	}
	m.committed(ctx, EventDeleted, a)
	return nil
}

// transition loads a live annotation, applies change and saves it in one transaction.
func (m *Manager) transition(ctx context.Context, id uint, operation string, change func(*entities.Annotation)) (*entities.Annotation, error) {
	var a *entities.Annotation
	err := m.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		a, err = tx.Annotations.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a.AnnotationType == entities.AnnotationUserDeleted || !a.IsActive {
			return errDeleted(id)
		}
		change(a)
		return tx.Annotations.Save(ctx, a)
	})
	if err != nil {
		return nil, wrap(err, operation)
	}
	return a, nil
}

// CreateBatch creates AUTO_DETECTED annotations for an image. Invalid
// candidates are dropped; the valid ones are written in one transaction.
func (m *Manager) CreateBatch(ctx context.Context, imageID uint, inputs []Input) ([]entities.Annotation, error) {
	rows := make([]*entities.Annotation, 0, len(inputs))
	dropped := 0
	for i := range inputs {
		f, err := inputs[i].validate()
		if err != nil {
			dropped++
			m.log.Debug("dropping invalid candidate",
				logger.Uint64("image_id", uint64(imageID)),
				logger.Int("index", i),
				logger.Error(err))
			continue
		}
		a := &entities.Annotation{
			ImageID:         imageID,
			ClassID:         f.classID,
			ClassName:       f.className,
			ConfidenceScore: f.confidence,
			AnnotationType:  entities.AnnotationAutoDetected,
			UserID:          inputs[i].UserID,
			Comments:        inputs[i].Comments,
			IsActive:        true,
		}
		a.SetBox(f.box)
		rows = append(rows, a)
	}

	err := m.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := requireImage(ctx, tx, imageID); err != nil {
			return err
		}
		return tx.Annotations.CreateBatch(ctx, rows)
	})
	if err != nil {
		return nil, wrap(err, "create_annotation_batch")
	}

	if m.recorder != nil {
		m.recorder.RecordBatch(len(rows), dropped)
	}
	m.log.Info("annotation batch created",
		logger.Uint64("image_id", uint64(imageID)),
		logger.Int("accepted", len(rows)),
		logger.Int("dropped", dropped))

	out := make([]entities.Annotation, len(rows))
	for i, a := range rows {
		out[i] = *a
		m.committed(ctx, EventCreated, a)
	}
	return out, nil
}

func requireImage(ctx context.Context, tx *repository.Repositories, imageID uint) error {
	ok, err := tx.Images.Exists(ctx, imageID)
	if err != nil {
		return err
	}
	if !ok {
		return missingImage(imageID)
	}
	return nil
}

// committed runs the post-commit side effects of a transition.
func (m *Manager) committed(ctx context.Context, kind EventKind, a *entities.Annotation) {
	if m.recorder != nil {
		m.recorder.RecordTransition(string(kind))
	}
	if m.onChange != nil {
		m.onChange()
	}
	m.log.Debug("annotation "+string(kind),
		logger.Uint64("annotation_id", uint64(a.ID)),
		logger.Uint64("image_id", uint64(a.ImageID)),
		logger.String("type", string(a.AnnotationType)))

	if m.publisher == nil {
		return
	}
	ev := Event{
		Kind:         kind,
		AnnotationID: a.ID,
		ImageID:      a.ImageID,
		Type:         a.AnnotationType,
		UserID:       a.UserID,
		Timestamp:    m.now(),
	}
	if err := m.publisher.Publish(ctx, ev); err != nil {
		m.log.Warn("failed to publish annotation event",
			logger.String("kind", string(kind)),
			logger.Uint64("annotation_id", uint64(a.ID)),
			logger.Error(err))
	}
}
