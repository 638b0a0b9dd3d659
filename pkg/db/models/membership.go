package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasvieira/condoplex-backend/pkg/enums"
)

// Membership links a user with a condominium and captures their role.
// The (user_id, condo_id) pair is unique; reactivation flips Active on the
// existing row instead of inserting a duplicate.
type Membership struct {
	ID        uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID            `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_memberships_user_condo"`
	CondoID   uuid.UUID            `gorm:"column:condo_id;type:uuid;not null;uniqueIndex:ux_memberships_user_condo"`
	Role      enums.MembershipRole `gorm:"column:role;type:membership_role;not null"`
	Active    bool                 `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
