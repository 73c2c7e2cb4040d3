package profile

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	sharedErrors "github.com/khanhnv2901/tlsprofiler/internal/shared/errors"
	"go.uber.org/zap"
)

// Store loads the profile document once and serves profiles from it for the
// rest of its lifetime. Callers own the Store and pass it to every audit.
//
// The first load is serialized so concurrent callers trigger exactly one
// fetch. A successful load is never refreshed; a failed load is not cached
// and the next caller tries again.
type Store struct {
	source Source
	logger *zap.Logger

	mu  sync.Mutex
	doc atomic.Pointer[Document]
}

// NewStore creates a Store backed by source.
func NewStore(source Source, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{source: source, logger: logger}
}

// NewStoreFromDocument creates a Store that is already populated.
func NewStoreFromDocument(doc *Document) *Store {
	s := &Store{logger: zap.NewNop()}
	s.doc.Store(doc)
	return s
}

// Load returns the named profile. It fails with ErrProfileSourceUnavailable
// when the document cannot be obtained and with a *NotFoundError (matching
// ErrProfileNotFound) when the name is absent.
func (s *Store) Load(ctx context.Context, name string) (Profile, error) {
	doc, err := s.document(ctx)
	if err != nil {
		return Profile{}, err
	}
	return doc.Lookup(name)
}

// Names lists the available profile names.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	doc, err := s.document(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Names(), nil
}

// Version returns the version string of the loaded document.
func (s *Store) Version(ctx context.Context) (string, error) {
	doc, err := s.document(ctx)
	if err != nil {
		return "", err
	}
	return doc.Version, nil
}

func (s *Store) document(ctx context.Context) (*Document, error) {
	if doc := s.doc.Load(); doc != nil {
		return doc, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// another caller may have finished the load while we waited
	if doc := s.doc.Load(); doc != nil {
		return doc, nil
	}
	if s.source == nil {
		return nil, fmt.Errorf("%w: no profile source configured", sharedErrors.ErrProfileSourceUnavailable)
	}

	data, err := s.source.Fetch(ctx)
	if err != nil {
		s.logger.Error("profile document fetch failed", zap.Stringer("source", s.source), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", sharedErrors.ErrProfileSourceUnavailable, err)
	}

	doc, err := ParseDocument(data)
	if err != nil {
		s.logger.Error("profile document rejected", zap.Stringer("source", s.source), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", sharedErrors.ErrProfileSourceUnavailable, err)
	}

	s.doc.Store(doc)
	s.logger.Info(fmt.Sprintf("Loaded version %s of the Mozilla TLS configuration recommendations.", doc.Version),
		zap.Stringer("source", s.source),
		zap.Int("profiles", len(doc.Profiles)),
	)
	return doc, nil
}
