package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasvieira/condoplex-backend/pkg/db/models"
	"github.com/lucasvieira/condoplex-backend/pkg/enums"
)

// SentRow records the destination a notification was delivered to, resolved
// at dispatch time.
type SentRow struct {
	ID          uuid.UUID
	Destination string
}

// Repository defines persistence operations for the notification outbox.
// Status updates are guarded on status=pending so rows never move backward.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InsertTx(ctx context.Context, tx *gorm.DB, notification *models.Notification) error
	FetchPending(ctx context.Context, channel enums.NotificationChannel, limit int) ([]models.Notification, error)
	MarkSent(ctx context.Context, rows []SentRow, at time.Time) error
	MarkError(ctx context.Context, id uuid.UUID, destination *string, errorLog string) error
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// DispatchResult summarizes one drain cycle.
type DispatchResult struct {
	Channel  enums.NotificationChannel `json:"channel"`
	Selected int                       `json:"selected"`
	Sent     int                       `json:"sent"`
	Errored  int                       `json:"errored"`
}

// Dispatcher drains pending outbox rows for one channel. Dispatch is
// at-least-once; callers must tolerate duplicate sends.
type Dispatcher interface {
	Dispatch(ctx context.Context, channel enums.NotificationChannel, limit int) (*DispatchResult, error)
}
