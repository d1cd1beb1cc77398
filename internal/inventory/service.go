// Package inventory implements the transformer, inspection and image services:
// validation, case-insensitive business keys, cascading deletes and blob bookkeeping.
package inventory

import (
	"slices"
	"strings"

	"github.com/tphakala/transformer-inspect/internal/datastore/repository"
	"github.com/tphakala/transformer-inspect/internal/logger"
	"github.com/tphakala/transformer-inspect/internal/storage"
)

// Upload defaults.
const (
	DefaultMaxFileSize int64 = 10 << 20
)

// DefaultAllowedExtensions are the image extensions accepted for upload, without the dot.
var DefaultAllowedExtensions = []string{"jpg", "jpeg", "png", "tiff", "gif", "bmp", "webp"}

// Service owns the inventory aggregates.
type Service struct {
	repos *repository.Repositories
	store storage.Store
	log   logger.Logger

	maxFileSize       int64
	allowedExtensions []string
	onChange          func()
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithUploadLimits overrides the size limit and extension allow-list.
// Non-positive sizes and empty lists keep the defaults.
func WithUploadLimits(maxFileSize int64, extensions []string) Option {
	return func(s *Service) {
		if maxFileSize > 0 {
			s.maxFileSize = maxFileSize
		}
		if len(extensions) > 0 {
			s.allowedExtensions = make([]string, 0, len(extensions))
			for _, ext := range extensions {
				s.allowedExtensions = append(s.allowedExtensions, strings.ToLower(strings.TrimPrefix(ext, ".")))
			}
		}
	}
}

// WithChangeHook registers fn to run after every committed write.
func WithChangeHook(fn func()) Option {
	return func(s *Service) { s.onChange = fn }
}

// New creates the inventory service.
func New(repos *repository.Repositories, store storage.Store, opts ...Option) *Service {
	s := &Service{
		repos:             repos,
		store:             store,
		maxFileSize:       DefaultMaxFileSize,
		allowedExtensions: slices.Clone(DefaultAllowedExtensions),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	s.log = s.log.Module("inventory")
	return s
}

func (s *Service) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
