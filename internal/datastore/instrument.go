package datastore

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/transformer-inspect/internal/observability/metrics"
)

// OperationRecorder receives one observation per executed statement.
type OperationRecorder interface {
	RecordDbOperation(operation, table, status string)
	RecordDbOperationDuration(operation, table string, seconds float64)
	RecordDbOperationError(operation, table, errorType string)
}

const startedAtKey = "datastore:started_at"

// Instrument registers GORM callbacks that time every statement and report it to rec.
func Instrument(db *gorm.DB, rec OperationRecorder) error {
	cb := db.Callback()
	hooks := []struct {
		op     string
		before func(name string, fn func(*gorm.DB)) error
		after  func(name string, fn func(*gorm.DB)) error
	}{
		{metrics.OpCreate, cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{metrics.OpQuery, cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{metrics.OpUpdate, cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{metrics.OpDelete, cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{metrics.OpRow, cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{metrics.OpRaw, cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		op := h.op
		if err := h.before("metrics:before_"+op, func(tx *gorm.DB) {
			tx.InstanceSet(startedAtKey, time.Now())
		}); err != nil {
			return err
		}
		if err := h.after("metrics:after_"+op, func(tx *gorm.DB) {
			observe(tx, rec, op)
		}); err != nil {
			return err
		}
	}
	return nil
}

func observe(tx *gorm.DB, rec OperationRecorder, op string) {
	table := tx.Statement.Table
	if table == "" {
		table = "unknown"
	}
	if v, ok := tx.InstanceGet(startedAtKey); ok {
		if started, ok := v.(time.Time); ok {
			rec.RecordDbOperationDuration(op, table, time.Since(started).Seconds())
		}
	}

	err := tx.Error
	switch {
	case err == nil, errors.Is(err, gorm.ErrRecordNotFound):
		rec.RecordDbOperation(op, table, metrics.StatusSuccess)
	default:
		rec.RecordDbOperation(op, table, metrics.StatusError)
		rec.RecordDbOperationError(op, table, errorType(err))
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return "duplicate_key"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return "foreign_key"
	default:
		return "other"
	}
}
