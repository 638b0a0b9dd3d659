package tenancy

import (
	"github.com/google/uuid"

	"github.com/lucasvieira/condoplex-backend/pkg/enums"
)

// AuthContext is the resolved authorization state for one request. It is
// computed fresh per call from live account and membership rows and passed
// explicitly into every use case; nothing is cached between requests.
type AuthContext struct {
	UserID    uuid.UUID
	AccountID *uuid.UUID
	IsMaster  bool
	CondoID   *uuid.UUID
	Role      *enums.MembershipRole
}

// RoleName returns the effective role as a string, empty when unresolved.
func (a AuthContext) RoleName() string {
	if a.Role == nil {
		return ""
	}
	return string(*a.Role)
}

// IsResident reports whether the caller acts as a regular resident in the
// resolved condominium.
func (a AuthContext) IsResident() bool {
	return a.Role != nil && a.Role.IsResident()
}

// CanOperateDeliveries reports whether the caller may perform intake, pickup,
// cancellation and edits. Residents only read their own deliveries.
func (a AuthContext) CanOperateDeliveries() bool {
	if a.Role == nil {
		return false
	}
	switch *a.Role {
	case enums.RoleMaster, enums.RoleSindico, enums.RolePortaria:
		return true
	default:
		return false
	}
}

// CanListDeliveries reports whether the caller may list deliveries at all.
// Residents are allowed but their queries are forced to their own rows.
func (a AuthContext) CanListDeliveries() bool {
	return a.Role != nil
}

// CanManageMemberships reports whether the caller may link or unlink users.
func (a AuthContext) CanManageMemberships() bool {
	if a.Role == nil {
		return false
	}
	switch *a.Role {
	case enums.RoleMaster, enums.RoleSindico:
		return true
	default:
		return false
	}
}
