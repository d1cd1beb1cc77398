package storage

import (
	"context"
	"io"
	"os"
)

// Stored describes a blob written by Save.
type Stored struct {
	// Name is the collision-free name the blob is addressed by.
	Name string
	Size int64
}

// Store persists image blobs. Names are issued by Save and never derived from
// client input beyond the file extension.
type Store interface {
	// Save copies r into a new blob named after suggestedName's extension.
	Save(ctx context.Context, r io.Reader, suggestedName string) (Stored, error)
	// Delete removes the blob. A missing blob returns ErrNotFound.
	Delete(name string) error
	// Resolve returns the absolute path of an existing blob.
	Resolve(name string) (string, error)
	// Open opens an existing blob for reading.
	Open(name string) (*os.File, error)
}
