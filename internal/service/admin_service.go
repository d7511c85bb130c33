package service

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/tazhate/dombot/internal/apperr"
	"github.com/tazhate/dombot/internal/domain"
	"github.com/tazhate/dombot/internal/storage"
)

// AdminService manages the persisted owner and bot-admin sets.
type AdminService struct {
	store  *storage.Store
	secret string
}

func NewAdminService(s *storage.Store, secret string) *AdminService {
	return &AdminService{store: s, secret: secret}
}

func (s *AdminService) SecretConfigured() bool {
	return s.secret != ""
}

// CheckSecret compares candidate with the configured secret in constant time.
func (s *AdminService) CheckSecret(candidate string) bool {
	if s.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(candidate)), []byte(s.secret)) == 1
}

// Authenticate adds actorID to the owners when candidate matches the secret.
// added is false when the actor already was an owner.
func (s *AdminService) Authenticate(ctx context.Context, actorID, candidate string) (added bool, err error) {
	if !s.SecretConfigured() {
		return false, ErrSecretNotConfigured
	}
	if !s.CheckSecret(candidate) {
		return false, ErrWrongSecret
	}
	err = s.store.Update(ctx, func(doc *domain.Document) error {
		added = doc.AddOwner(actorID)
		return nil
	})
	return added, err
}

// GrantOwner adds an owner without a secret. Used by the operator CLI.
func (s *AdminService) GrantOwner(ctx context.Context, actorID string) (bool, error) {
	if actorID == "" {
		return false, apperr.InvalidArgument("actor id is required")
	}
	var added bool
	err := s.store.Update(ctx, func(doc *domain.Document) error {
		added = doc.AddOwner(actorID)
		return nil
	})
	return added, err
}

func (s *AdminService) AddAdmin(ctx context.Context, actorID string) (bool, error) {
	var added bool
	err := s.store.Update(ctx, func(doc *domain.Document) error {
		added = doc.AddAdmin(actorID)
		return nil
	})
	return added, err
}

func (s *AdminService) RemoveAdmin(ctx context.Context, actorID string) (bool, error) {
	var removed bool
	err := s.store.Update(ctx, func(doc *domain.Document) error {
		removed = doc.RemoveAdmin(actorID)
		return nil
	})
	return removed, err
}

func (s *AdminService) Admins() []string {
	var ids []string
	s.store.View(func(doc *domain.Document) {
		ids = append([]string{}, doc.Admins...)
	})
	return ids
}

func (s *AdminService) Owners() []string {
	var ids []string
	s.store.View(func(doc *domain.Document) {
		ids = append([]string{}, doc.Owners...)
	})
	return ids
}
