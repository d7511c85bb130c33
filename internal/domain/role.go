package domain

// Role is an actor's effective authority for one command.
type Role int

const (
	RoleMember Role = iota
	RoleAdmin
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleAdmin:
		return "admin"
	default:
		return "member"
	}
}

func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// GroupRole is the platform-native role inside one group. It is never
// persisted.
type GroupRole string

const (
	GroupRoleMember     GroupRole = "member"
	GroupRoleAdmin      GroupRole = "admin"
	GroupRoleSuperAdmin GroupRole = "superadmin"
)

func (r GroupRole) IsAdmin() bool {
	return r == GroupRoleAdmin || r == GroupRoleSuperAdmin
}
