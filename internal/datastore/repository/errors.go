package repository

import (
	"strings"

	"gorm.io/gorm"

	"github.com/tphakala/transformer-inspect/internal/errors"
)

// Sentinel errors for repository operations.
var (
	// ErrNotFound indicates the addressed row does not exist.
	ErrNotFound = errors.NewStd("not found")

	// ErrReferenceNotFound indicates a required parent row does not exist.
	ErrReferenceNotFound = errors.NewStd("referenced entity not found")

	// ErrDuplicateKey indicates a unique constraint violation.
	ErrDuplicateKey = errors.NewStd("duplicate key")

	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.NewStd("invalid input")
)

// notFoundError names the missing entity while matching ErrNotFound.
type notFoundError struct{ entity string }

func (e *notFoundError) Error() string        { return e.entity + " not found" }
func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }

// Entity-specific not-found sentinels.
var (
	ErrTransformerNotFound error = &notFoundError{"transformer"}
	ErrInspectionNotFound  error = &notFoundError{"inspection"}
	ErrImageNotFound       error = &notFoundError{"image"}
	ErrAnnotationNotFound  error = &notFoundError{"annotation"}
)

// translate maps a GORM error onto the repository taxonomy.
func translate(err, notFound error, operation string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrReferenceNotFound),
		errors.Is(err, ErrDuplicateKey), errors.Is(err, ErrInvalidInput):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case isDuplicateKey(err):
		return ErrDuplicateKey
	case isForeignKeyViolation(err):
		return ErrReferenceNotFound
	default:
		return errors.New(err).
			Component(errors.ComponentDatastore).
			Category(errors.CategoryDatabase).
			Context("operation", operation).
			Build()
	}
}

// isDuplicateKey also checks driver messages in case translation is disabled.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "FOREIGN KEY constraint failed") || strings.Contains(msg, "a foreign key constraint fails")
}
