package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasvieira/condoplex-backend/pkg/enums"
)

// Delivery is a tracked parcel moving through received -> delivered | cancelled.
// Rows are never deleted; every transition stamps its own audit columns.
type Delivery struct {
	ID      uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CondoID uuid.UUID            `gorm:"column:condo_id;type:uuid;not null;index"`
	Status  enums.DeliveryStatus `gorm:"column:status;type:delivery_status;not null;default:'received'"`

	// Intake.
	ReceivedByUserID uuid.UUID         `gorm:"column:received_by_user_id;type:uuid;not null"`
	Unit             string            `gorm:"column:unit;not null"`
	Block            string            `gorm:"column:block;not null"`
	Marketplace      string            `gorm:"column:marketplace;not null"`
	TrackingCode     *string           `gorm:"column:tracking_code"`
	ResidentUserID   *uuid.UUID        `gorm:"column:resident_user_id;type:uuid"`
	PhotoURL         *string           `gorm:"column:photo_url"`
	Urgent           bool              `gorm:"column:urgent;not null;default:false"`
	PackageType      enums.PackageType `gorm:"column:package_type;type:package_type;not null;default:'other'"`
	Observations     *string           `gorm:"column:observations"`
	ReceivedAt       time.Time         `gorm:"column:received_at;not null"`

	// Pickup.
	DeliveredByUserID *uuid.UUID `gorm:"column:delivered_by_user_id;type:uuid"`
	RecipientName     *string    `gorm:"column:recipient_name"`
	RecipientDocument *string    `gorm:"column:recipient_document"`
	DeliveredAt       *time.Time `gorm:"column:delivered_at"`

	// Cancellation.
	CancelledByUserID *uuid.UUID `gorm:"column:cancelled_by_user_id;type:uuid"`
	CancelReason      *string    `gorm:"column:cancel_reason"`
	CancelledAt       *time.Time `gorm:"column:cancelled_at"`

	// Last in-window edit.
	UpdatedByUserID *uuid.UUID `gorm:"column:updated_by_user_id;type:uuid"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
