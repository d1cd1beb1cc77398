package annotation

import (
	"fmt"

	"github.com/tphakala/transformer-inspect/internal/datastore/repository"
	"github.com/tphakala/transformer-inspect/internal/errors"
)

func wrap(err error, operation string) error {
	if err == nil {
		return nil
	}
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return err
	}
	category := errors.CategoryGeneric
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrReferenceNotFound):
		category = errors.CategoryNotFound
	case errors.Is(err, repository.ErrInvalidInput):
		category = errors.CategoryValidation
	case errors.Is(err, repository.ErrDuplicateKey):
		category = errors.CategoryConflict
	}
	return errors.New(err).
		Component(errors.ComponentAnnotation).
		Category(category).
		Context("operation", operation).
		Build()
}

func invalid(format string, args ...any) error {
	err := fmt.Errorf("%w: %s", repository.ErrInvalidInput, fmt.Sprintf(format, args...))
	return errors.New(err).
		Component(errors.ComponentAnnotation).
		Category(errors.CategoryValidation).
		Build()
}

// errDeleted rejects transitions out of USER_DELETED.
func errDeleted(id uint) error {
	err := fmt.Errorf("%w: annotation %d is deleted", repository.ErrInvalidInput, id)
	return errors.New(err).
		Component(errors.ComponentAnnotation).
		Category(errors.CategoryState).
		Context("annotation_id", id).
		Build()
}

func missingImage(id uint) error {
	err := fmt.Errorf("%w: image %d", repository.ErrReferenceNotFound, id)
	return errors.New(err).
		Component(errors.ComponentAnnotation).
		Category(errors.CategoryNotFound).
		Context("image_id", id).
		Build()
}
