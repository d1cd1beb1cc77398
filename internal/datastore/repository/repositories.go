package repository

import (
	"context"

	"gorm.io/gorm"
)

// Transaction outcomes passed to a TxRecorder.
const (
	TxCommitted  = "committed"
	TxRolledBack = "rollback"
)

// TxRecorder receives the outcome of every top-level Transaction.
// DatastoreMetrics implements it.
type TxRecorder interface {
	RecordTransaction(status string)
}

// Repositories groups the per-aggregate repositories over one connection or transaction.
type Repositories struct {
	db       *gorm.DB
	recorder TxRecorder

	Transformers TransformerRepository
	Inspections  InspectionRepository
	Images       ImageRepository
	Annotations  AnnotationRepository
}

// New builds the repository set over db.
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		db:           db,
		Transformers: NewTransformerRepository(db),
		Inspections:  NewInspectionRepository(db),
		Images:       NewImageRepository(db),
		Annotations:  NewAnnotationRepository(db),
	}
}

// WithTxRecorder returns a copy of r that reports transaction outcomes to rec.
// Repositories handed to fn inside a transaction do not report, so nested
// savepoints are not counted.
func (r *Repositories) WithTxRecorder(rec TxRecorder) *Repositories {
	c := *r
	c.recorder = rec
	return &c
}

// Transaction runs fn with repositories bound to one transaction.
// The transaction commits when fn returns nil and rolls back otherwise;
// errors from fn are returned unchanged.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	var fnErr error
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(New(tx))
		return fnErr
	})
	if r.recorder != nil {
		status := TxCommitted
		if err != nil {
			status = TxRolledBack
		}
		r.recorder.RecordTransaction(status)
	}
	if fnErr != nil {
		return fnErr
	}
	return translate(err, ErrNotFound, "transaction")
}
