package enums

import (
	"fmt"
	"strings"
)

// MembershipRole is the closed set of roles a user can hold inside a condominium.
// "master" is never stored on a membership row; it is derived from account
// ownership by the tenancy resolver.
type MembershipRole string

const (
	RoleMaster   MembershipRole = "master"
	RoleSindico  MembershipRole = "sindico"
	RoleMorador  MembershipRole = "morador"
	RolePortaria MembershipRole = "portaria"
)

var validMembershipRoles = []MembershipRole{
	RoleMaster,
	RoleSindico,
	RoleMorador,
	RolePortaria,
}

// IsValid reports whether the value matches the canonical membership role enum.
func (m MembershipRole) IsValid() bool {
	for _, candidate := range validMembershipRoles {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsResident reports whether the role is the self-service resident role.
func (m MembershipRole) IsResident() bool {
	return m == RoleMorador
}

// ParseMembershipRole converts the raw string to MembershipRole. Stored role
// values are lower-cased before matching.
func ParseMembershipRole(value string) (MembershipRole, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validMembershipRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid membership role %q", value)
}
