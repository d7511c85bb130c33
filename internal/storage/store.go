package storage

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tazhate/dombot/internal/apperr"
	"github.com/tazhate/dombot/internal/domain"
)

type Options struct {
	// WriteThrough saves on every successful Update. When false, updates
	// only mark the store dirty and Flush persists them.
	WriteThrough bool
	Logger       zerolog.Logger
}

// Store owns the single in-memory copy of the document. All mutations are
// serialized through one mutex, so concurrent handlers cannot lose each
// other's writes.
type Store struct {
	mu           sync.RWMutex
	backend      Backend
	doc          *domain.Document
	dirty        bool
	closed       bool
	writeThrough bool
	log          zerolog.Logger
}

// Open loads the persisted document, creating and saving a fresh one when
// none exists. Unreadable or invalid state is a fatal error.
func Open(ctx context.Context, backend Backend, supremeOwner string, opts Options) (*Store, error) {
	doc, found, err := backend.Load(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindFatal, "persisted store is unreadable")
	}

	s := &Store{
		backend:      backend,
		writeThrough: opts.WriteThrough,
		log:          opts.Logger,
	}

	if !found {
		doc = domain.NewDocument(supremeOwner)
		if err := backend.Save(ctx, doc); err != nil {
			return nil, apperr.Wrap(err, apperr.KindFatal, "initialize store")
		}
		s.log.Info().Str("supreme_owner", supremeOwner).Msg("Initialized new store")
	} else if err := doc.Validate(); err != nil {
		return nil, apperr.Wrap(err, apperr.KindFatal, "persisted store is corrupt")
	}

	if supremeOwner != "" && doc.AddOwner(supremeOwner) {
		if err := backend.Save(ctx, doc); err != nil {
			return nil, apperr.Wrap(err, apperr.KindFatal, "seed supreme owner")
		}
	}
	if doc.Shop == nil {
		doc.Shop = domain.DefaultShop()
	}

	s.doc = doc
	return s, nil
}

// View runs fn against the current document under a read lock. fn must not
// retain or modify doc.
func (s *Store) View(fn func(doc *domain.Document)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.doc)
}

// Update runs fn on a private copy of the document. If fn fails the copy is
// dropped and nothing changes; otherwise it replaces the current document.
func (s *Store) Update(ctx context.Context, fn func(doc *domain.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return apperr.Wrap(ErrClosed, apperr.KindStorageFailure, "store is closed")
	}

	next := s.doc.Clone()
	if err := fn(next); err != nil {
		return err
	}

	if s.writeThrough {
		if err := s.backend.Save(ctx, next); err != nil {
			s.log.Error().Err(err).Msg("Failed to save state, change discarded")
			return apperr.Wrap(err, apperr.KindStorageFailure, "save state")
		}
	} else {
		s.dirty = true
	}
	s.doc = next
	return nil
}

// Flush persists pending changes in write-behind mode. It is a no-op when
// nothing changed.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

func (s *Store) flushLocked(ctx context.Context) error {
	if !s.dirty || s.closed {
		return nil
	}
	if err := s.backend.Save(ctx, s.doc); err != nil {
		return apperr.Wrap(err, apperr.KindStorageFailure, "flush state")
	}
	s.dirty = false
	return nil
}

func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() *domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Close flushes pending changes and releases the backend.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	flushErr := s.flushLocked(ctx)
	s.closed = true
	if err := s.backend.Close(); err != nil {
		return err
	}
	return flushErr
}
