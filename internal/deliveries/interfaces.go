package deliveries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasvieira/condoplex-backend/pkg/db/models"
	"github.com/lucasvieira/condoplex-backend/pkg/pagination"
)

// Repository defines persistence operations for delivery rows. The Mark*
// methods run a single conditional UPDATE guarded on status=received and
// return the number of affected rows; zero means the transition lost a race.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error)
	Find(ctx context.Context, id, condoID uuid.UUID) (*models.Delivery, error)
	MarkDelivered(ctx context.Context, id, condoID, operatorID uuid.UUID, recipientName string, recipientDocument *string, at time.Time) (int64, error)
	MarkCancelled(ctx context.Context, id, condoID, operatorID uuid.UUID, reason string, at time.Time) (int64, error)
	UpdateEditable(ctx context.Context, id, condoID, operatorID uuid.UUID, updates map[string]any) (int64, error)
	ListPage(ctx context.Context, condoID uuid.UUID, filters ListFilters, params pagination.Params) ([]DeliveryRow, error)
	Count(ctx context.Context, condoID uuid.UUID, filters ListFilters) (int64, error)
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// Service is the delivery lifecycle engine: intake, pickup, cancellation,
// correction and listing.
type Service interface {
	Intake(ctx context.Context, input IntakeInput) (*models.Delivery, error)
	ManualPickup(ctx context.Context, input ManualPickupInput) error
	QrPickup(ctx context.Context, input QrPickupInput) error
	Cancel(ctx context.Context, input CancelInput) error
	Edit(ctx context.Context, input EditInput) error
	MintQRCode(ctx context.Context, input MintQRCodeInput) (*QRCodeOutput, error)
	List(ctx context.Context, input ListInput) (*DeliveryList, error)
}
