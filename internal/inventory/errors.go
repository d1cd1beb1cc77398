package inventory

import (
	"fmt"

	"github.com/tphakala/transformer-inspect/internal/datastore/repository"
	"github.com/tphakala/transformer-inspect/internal/errors"
	"github.com/tphakala/transformer-inspect/internal/storage"
)

// wrap attaches component and category to err. Errors that already carry
// metadata from a lower layer are returned as they are.
func wrap(err error, operation string) error {
	if err == nil {
		return nil
	}
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return err
	}
	return errors.New(err).
		Component(errors.ComponentInventory).
		Category(categoryOf(err)).
		Context("operation", operation).
		Build()
}

func categoryOf(err error) errors.ErrorCategory {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrReferenceNotFound):
		return errors.CategoryNotFound
	case errors.Is(err, repository.ErrDuplicateKey):
		return errors.CategoryConflict
	case errors.Is(err, repository.ErrInvalidInput):
		return errors.CategoryValidation
	case errors.Is(err, storage.ErrStorageFault):
		return errors.CategoryFileIO
	default:
		return errors.CategoryGeneric
	}
}

// invalid builds an InvalidInput error for the named field.
func invalid(field, format string, args ...any) error {
	err := fmt.Errorf("%w: %s: %s", repository.ErrInvalidInput, field, fmt.Sprintf(format, args...))
	return errors.New(err).
		Component(errors.ComponentInventory).
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}

// missingReference builds a ReferenceNotFound error for a parent that does not exist.
func missingReference(entity string, id uint) error {
	err := fmt.Errorf("%w: %s %d", repository.ErrReferenceNotFound, entity, id)
	return errors.New(err).
		Component(errors.ComponentInventory).
		Category(errors.CategoryNotFound).
		Context("entity", entity).
		Build()
}

func duplicate(entity, key string) error {
	err := fmt.Errorf("%w: %s %q already exists", repository.ErrDuplicateKey, entity, key)
	return errors.New(err).
		Component(errors.ComponentInventory).
		Category(errors.CategoryConflict).
		Context("entity", entity).
		Build()
}
