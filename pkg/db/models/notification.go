package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasvieira/condoplex-backend/pkg/enums"
)

// Notification is the transactional outbox row for asynchronous dispatch.
// Rows are written in the same transaction as the mutation that triggers
// them and only ever move pending -> sent | error.
type Notification struct {
	ID          uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CondoID     uuid.UUID                 `gorm:"column:condo_id;type:uuid;not null;index"`
	UserID      uuid.UUID                 `gorm:"column:user_id;type:uuid;not null"`
	DeliveryID  *uuid.UUID                `gorm:"column:delivery_id;type:uuid"`
	Channel     enums.NotificationChannel `gorm:"column:channel;type:notification_channel;not null"`
	Status      enums.NotificationStatus  `gorm:"column:status;type:notification_status;not null;default:'pending'"`
	Title       string                    `gorm:"column:title;not null"`
	Body        string                    `gorm:"column:body;not null"`
	Destination *string                   `gorm:"column:destination"`
	Attempts    int                       `gorm:"column:attempts;not null;default:0"`
	ErrorLog    *string                   `gorm:"column:error_log"`
	CreatedAt   time.Time                 `gorm:"column:created_at;autoCreateTime"`
	SentAt      *time.Time                `gorm:"column:sent_at"`
}
