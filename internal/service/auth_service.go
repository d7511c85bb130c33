package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tazhate/dombot/internal/apperr"
	"github.com/tazhate/dombot/internal/domain"
	"github.com/tazhate/dombot/internal/storage"
)

// GroupInspector is the slice of the chat transport the authorization
// checks need.
type GroupInspector interface {
	SelfID() string
	GroupInfo(ctx context.Context, groupID string) (*domain.GroupInfo, error)
}

// AuthService resolves an actor's effective role for one command. Owner and
// bot-admin come from the store; group-admin comes from a live lookup and is
// only consulted inside groups.
type AuthService struct {
	store  *storage.Store
	groups GroupInspector
	log    zerolog.Logger
}

func NewAuthService(s *storage.Store, groups GroupInspector, log zerolog.Logger) *AuthService {
	return &AuthService{store: s, groups: groups, log: log}
}

func (s *AuthService) IsOwner(actorID string) bool {
	var ok bool
	s.store.View(func(doc *domain.Document) {
		ok = doc.IsOwner(actorID)
	})
	return ok
}

// StoredRole is the role granted by the store alone.
func (s *AuthService) StoredRole(actorID string) domain.Role {
	role := domain.RoleMember
	s.store.View(func(doc *domain.Document) {
		switch {
		case doc.IsOwner(actorID):
			role = domain.RoleOwner
		case doc.IsAdmin(actorID):
			role = domain.RoleAdmin
		}
	})
	return role
}

// Resolve returns the effective role. A group admin or superadmin counts as
// admin inside that group. A failed group lookup degrades to the stored role.
func (s *AuthService) Resolve(ctx context.Context, chatID, actorID string, isGroup bool) domain.Role {
	role := s.StoredRole(actorID)
	if role != domain.RoleMember || !isGroup {
		return role
	}
	gr, err := s.GroupRole(ctx, chatID, actorID)
	if err != nil {
		s.log.Warn().Err(err).Str("chat_id", chatID).Str("actor_id", actorID).Msg("Group role lookup failed, treating as member")
		return role
	}
	if gr.IsAdmin() {
		return domain.RoleAdmin
	}
	return role
}

// GroupRole returns actorID's native role in groupID. Non-participants are
// members.
func (s *AuthService) GroupRole(ctx context.Context, groupID, actorID string) (domain.GroupRole, error) {
	info, err := s.groups.GroupInfo(ctx, groupID)
	if err != nil {
		return domain.GroupRoleMember, apperr.Transport(err, "Couldn't read the group's member list.")
	}
	if r, ok := info.RoleOf(actorID); ok {
		return r, nil
	}
	return domain.GroupRoleMember, nil
}

// BotIsGroupAdmin checks whether the bot's own account administers groupID.
func (s *AuthService) BotIsGroupAdmin(ctx context.Context, groupID string) (bool, error) {
	gr, err := s.GroupRole(ctx, groupID, s.groups.SelfID())
	if err != nil {
		return false, err
	}
	return gr.IsAdmin(), nil
}
