package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
	assert.Equal(t, RoleAdmin, ParseRole("  Admin "))
	assert.Equal(t, RoleMember, ParseRole("member"))

	// Anything unrecognized collapses to member.
	assert.Equal(t, RoleMember, ParseRole("superuser"))
	assert.Equal(t, RoleMember, ParseRole(""))
}

func TestRoleCapabilities(t *testing.T) {
	all := []Capability{
		CapManageUsers,
		CapManagePipeline,
		CapManageFields,
		CapViewAuditLog,
		CapManageBackups,
		CapManageIntegrable,
	}
	for _, c := range all {
		assert.True(t, RoleAdmin.Can(c), "admin should hold %s", c)
		assert.False(t, RoleMember.Can(c), "member should not hold %s", c)
	}
	assert.True(t, RoleAdmin.IsAdmin())
	assert.False(t, RoleMember.IsAdmin())

	// A role outside the closed set holds nothing.
	assert.False(t, Role("root").Can(CapManageUsers))
}

func TestRoleValuesNeverFailValidation(t *testing.T) {
	for _, role := range []string{"admin", "Admin", "member", "superuser", ""} {
		cfg := Data{Name: "Tester", Role: role}
		assert.NoError(t, validate.Struct(cfg), "role %q must load, not abort", role)
	}
}

func TestUserRoleNormalizes(t *testing.T) {
	admin := &Store{Config: Data{Role: " Admin "}}
	assert.Equal(t, RoleAdmin, admin.UserRole())

	typo := &Store{Config: Data{Role: "adminn"}}
	assert.Equal(t, RoleMember, typo.UserRole())
}
