package config

import "strings"

// Role is the closed set of operator roles. Access checks go through
// capability membership rather than comparing raw strings.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Capability names an action a role may perform.
type Capability string

const (
	CapManageUsers      Capability = "manage-users"
	CapManagePipeline   Capability = "manage-pipeline"
	CapManageFields     Capability = "manage-fields"
	CapViewAuditLog     Capability = "view-audit-log"
	CapManageBackups    Capability = "manage-backups"
	CapManageIntegrable Capability = "manage-integrations"
)

var roleCapabilities = map[Role]map[Capability]struct{}{
	RoleAdmin: {
		CapManageUsers:      {},
		CapManagePipeline:   {},
		CapManageFields:     {},
		CapViewAuditLog:     {},
		CapManageBackups:    {},
		CapManageIntegrable: {},
	},
	RoleMember: {},
}

// ParseRole maps a stored role value onto the closed enum. Unknown values
// collapse to member so a typo never grants access.
func ParseRole(value string) Role {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(RoleAdmin):
		return RoleAdmin
	default:
		return RoleMember
	}
}

// Can reports whether the role holds the given capability.
func (r Role) Can(c Capability) bool {
	caps, ok := roleCapabilities[r]
	if !ok {
		return false
	}
	_, ok = caps[c]
	return ok
}

// IsAdmin reports whether the role is the administrator role.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}
