// Package storage keeps image blobs on the local filesystem under a sandboxed root.
package storage

import (
	"github.com/tphakala/transformer-inspect/internal/errors"
)

// Sentinel errors for the storage package.
var (
	// ErrNotFound indicates the named blob does not exist.
	ErrNotFound = errors.NewStd("blob not found")

	// ErrInvalidName indicates a blob name that is empty, absolute or escapes the root.
	ErrInvalidName = errors.NewStd("invalid blob name")

	// ErrStorageFault indicates the store could not complete an I/O operation.
	ErrStorageFault = errors.NewStd("storage fault")
)
