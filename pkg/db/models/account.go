package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasvieira/condoplex-backend/pkg/enums"
)

// Account is the billing entity that owns condominiums. The owner of an
// active account is "master" over every condominium under it.
type Account struct {
	ID          uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID uuid.UUID           `gorm:"column:owner_user_id;type:uuid;not null"`
	Status      enums.AccountStatus `gorm:"column:status;type:account_status;not null;default:'pending'"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
