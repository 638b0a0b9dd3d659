package deliveries

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasvieira/condoplex-backend/pkg/db/models"
	"github.com/lucasvieira/condoplex-backend/pkg/enums"
	"github.com/lucasvieira/condoplex-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a deliveries repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error) {
	if err := r.db.WithContext(ctx).Create(delivery).Error; err != nil {
		return nil, err
	}
	return delivery, nil
}

func (r *repository) Find(ctx context.Context, id, condoID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Where("id = ? AND condo_id = ?", id, condoID).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

// MarkDelivered performs the received -> delivered transition as one guarded
// UPDATE. Zero affected rows means another operator won the race.
func (r *repository) MarkDelivered(ctx context.Context, id, condoID, operatorID uuid.UUID, recipientName string, recipientDocument *string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ? AND condo_id = ? AND status = ?", id, condoID, enums.DeliveryStatusReceived).
		Updates(map[string]any{
			"status":               enums.DeliveryStatusDelivered,
			"delivered_by_user_id": operatorID,
			"recipient_name":       recipientName,
			"recipient_document":   recipientDocument,
			"delivered_at":         at,
		})
	return res.RowsAffected, res.Error
}

// MarkCancelled performs the received -> cancelled transition with the same
// zero-row race signal.
func (r *repository) MarkCancelled(ctx context.Context, id, condoID, operatorID uuid.UUID, reason string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ? AND condo_id = ? AND status = ?", id, condoID, enums.DeliveryStatusReceived).
		Updates(map[string]any{
			"status":               enums.DeliveryStatusCancelled,
			"cancelled_by_user_id": operatorID,
			"cancel_reason":        reason,
			"cancelled_at":         at,
		})
	return res.RowsAffected, res.Error
}

// UpdateEditable applies an in-window correction, guarded on status=received
// so terminal rows stay immutable.
func (r *repository) UpdateEditable(ctx context.Context, id, condoID, operatorID uuid.UUID, updates map[string]any) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	updates["updated_by_user_id"] = operatorID
	res := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ? AND condo_id = ? AND status = ?", id, condoID, enums.DeliveryStatusReceived).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) ListPage(ctx context.Context, condoID uuid.UUID, filters ListFilters, params pagination.Params) ([]DeliveryRow, error) {
	qb := r.listQuery(ctx, condoID, filters).
		Select(strings.Join([]string{
			"d.id",
			"d.condo_id",
			"d.status",
			"d.unit",
			"d.block",
			"d.marketplace",
			"d.tracking_code",
			"d.resident_user_id",
			"resident.name AS resident_name",
			"d.photo_url",
			"d.urgent",
			"d.package_type",
			"d.observations",
			"d.received_at",
			"receiver.name AS received_by_name",
			"d.delivered_at",
			"deliverer.name AS delivered_by_name",
			"d.recipient_name",
			"d.recipient_document",
			"d.cancelled_at",
			"d.cancel_reason",
		}, ", ")).
		Joins("LEFT JOIN users receiver ON receiver.id = d.received_by_user_id").
		Joins("LEFT JOIN users deliverer ON deliverer.id = d.delivered_by_user_id").
		Joins("LEFT JOIN users resident ON resident.id = d.resident_user_id").
		Order("d.received_at DESC").
		Order("d.id DESC").
		Limit(params.Limit).
		Offset(params.Offset())

	var rows []DeliveryRow
	if err := qb.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Count(ctx context.Context, condoID uuid.UUID, filters ListFilters) (int64, error) {
	var total int64
	err := r.listQuery(ctx, condoID, filters).Count(&total).Error
	return total, err
}

func (r *repository) listQuery(ctx context.Context, condoID uuid.UUID, filters ListFilters) *gorm.DB {
	qb := r.db.WithContext(ctx).
		Table("deliveries d").
		Where("d.condo_id = ?", condoID)

	if filters.Status != nil {
		qb = qb.Where("d.status = ?", *filters.Status)
	}
	if filters.ResidentUserID != nil {
		qb = qb.Where("d.resident_user_id = ?", *filters.ResidentUserID)
	}
	if filters.Unit != nil {
		qb = qb.Where("d.unit = ?", *filters.Unit)
	}
	if filters.Block != nil {
		qb = qb.Where("d.block = ?", *filters.Block)
	}
	if filters.Urgent != nil {
		qb = qb.Where("d.urgent = ?", *filters.Urgent)
	}
	return qb
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
