package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tphakala/transformer-inspect/internal/errors"
	"github.com/tphakala/transformer-inspect/internal/logger"
)

// BlobRecorder receives blob operation outcomes. DatastoreMetrics implements it.
type BlobRecorder interface {
	RecordBlobOperation(operation, status string)
}

// LocalStore is a Store backed by a directory opened with os.Root, so every
// operation is confined to that directory at the OS level, symlinks included.
type LocalStore struct {
	baseDir  string
	root     *os.Root
	log      logger.Logger
	recorder BlobRecorder
}

// Option configures a LocalStore.
type Option func(*LocalStore)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *LocalStore) { s.log = l }
}

// WithRecorder sets the blob metrics recorder.
func WithRecorder(r BlobRecorder) Option {
	return func(s *LocalStore) { s.recorder = r }
}

// NewLocalStore creates baseDir if needed and opens it as the store root.
func NewLocalStore(baseDir string, opts ...Option) (*LocalStore, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory: %w", err)
	}

	// Owner writes, others may read for serving
	if err := os.MkdirAll(absPath, 0o750); err != nil {
		return nil, errors.New(err).
			Component(errors.ComponentStorage).
			Category(errors.CategoryFileIO).
			Context("operation", "create_upload_dir").
			Context("path", absPath).
			Build()
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload directory sandbox: %w", err)
	}

	s := &LocalStore{baseDir: absPath, root: root}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	s.log = s.log.Module("storage")
	return s, nil
}

// BaseDir returns the absolute upload directory.
func (s *LocalStore) BaseDir() string {
	return s.baseDir
}

// Close releases the sandbox root.
func (s *LocalStore) Close() error {
	return s.root.Close()
}

// Save streams r into a temp file inside the root and renames it to its final name.
func (s *LocalStore) Save(ctx context.Context, r io.Reader, suggestedName string) (Stored, error) {
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}

	name := uuid.New().String() + strings.ToLower(filepath.Ext(suggestedName))
	tmp := ".tmp-" + name

	f, err := s.root.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return Stored{}, s.fault(err, "save", name)
	}

	n, copyErr := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		if rmErr := s.root.Remove(tmp); rmErr != nil {
			s.log.Warn("failed to remove temp blob", logger.String("name", tmp), logger.Error(rmErr))
		}
		if copyErr != nil && ctx.Err() != nil {
			return Stored{}, ctx.Err()
		}
		return Stored{}, s.fault(errors.Join(copyErr, closeErr), "save", name)
	}

	if err := s.root.Rename(tmp, name); err != nil {
		_ = s.root.Remove(tmp)
		return Stored{}, s.fault(err, "save", name)
	}

	s.record("save", "success")
	s.log.Debug("blob stored", logger.String("name", name), logger.Int64("size", n))
	return Stored{Name: name, Size: n}, nil
}

// Delete removes a blob.
func (s *LocalStore) Delete(name string) error {
	clean, err := validateName(name)
	if err != nil {
		return err
	}
	if err := s.root.Remove(clean); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.record("delete", "not_found")
			return fmt.Errorf("%w: %s", ErrNotFound, clean)
		}
		return s.fault(err, "delete", clean)
	}
	s.record("delete", "success")
	return nil
}

// Resolve returns the absolute path of an existing regular blob.
func (s *LocalStore) Resolve(name string) (string, error) {
	clean, err := validateName(name)
	if err != nil {
		return "", err
	}
	info, err := s.root.Stat(clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, clean)
		}
		return "", s.fault(err, "stat", clean)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", ErrInvalidName, clean)
	}
	return filepath.Join(s.baseDir, clean), nil
}

// Open opens a blob for reading through the sandbox.
func (s *LocalStore) Open(name string) (*os.File, error) {
	clean, err := validateName(name)
	if err != nil {
		return nil, err
	}
	f, err := s.root.Open(clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, clean)
		}
		return nil, s.fault(err, "open", clean)
	}
	return f, nil
}

// validateName accepts only a single path element inside the root.
func validateName(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) ||
		name == "." || name == ".." || strings.HasPrefix(name, ".tmp-") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}

func (s *LocalStore) fault(err error, operation, name string) error {
	s.record(operation, "error")
	return errors.New(fmt.Errorf("%w: %w", ErrStorageFault, err)).
		Component(errors.ComponentStorage).
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		Context("name", name).
		Build()
}

func (s *LocalStore) record(operation, status string) {
	if s.recorder != nil {
		s.recorder.RecordBlobOperation(operation, status)
	}
}

// ctxReader stops a copy once the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
