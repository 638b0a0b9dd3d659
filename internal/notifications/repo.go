package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasvieira/condoplex-backend/pkg/db/models"
	"github.com/lucasvieira/condoplex-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a notifications repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// InsertTx writes the outbox row inside the caller's transaction so a
// delivery never changes state silently relative to its notification.
func (r *repository) InsertTx(ctx context.Context, tx *gorm.DB, notification *models.Notification) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	notification.Status = enums.NotificationStatusPending
	notification.Attempts = 0
	return db.WithContext(ctx).Create(notification).Error
}

func (r *repository) FetchPending(ctx context.Context, channel enums.NotificationChannel, limit int) ([]models.Notification, error) {
	var rows []models.Notification
	err := r.db.WithContext(ctx).
		Where("channel = ? AND status = ?", channel, enums.NotificationStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkSent finalizes an accepted transport batch. Each row keeps the
// destination it was actually sent to; the pending guard makes a concurrent
// duplicate cycle harmless.
func (r *repository) MarkSent(ctx context.Context, rows []SentRow, at time.Time) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			err := tx.Model(&models.Notification{}).
				Where("id = ? AND status = ?", row.ID, enums.NotificationStatusPending).
				Updates(map[string]any{
					"status":      enums.NotificationStatusSent,
					"destination": row.Destination,
					"sent_at":     at,
					"attempts":    gorm.Expr("attempts + 1"),
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repository) MarkError(ctx context.Context, id uuid.UUID, destination *string, errorLog string) error {
	updates := map[string]any{
		"status":    enums.NotificationStatusError,
		"error_log": errorLog,
		"attempts":  gorm.Expr("attempts + 1"),
	}
	if destination != nil {
		updates["destination"] = *destination
	}
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND status = ?", id, enums.NotificationStatusPending).
		Updates(updates).Error
}

func (r *repository) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
