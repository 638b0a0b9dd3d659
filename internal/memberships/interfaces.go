package memberships

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasvieira/condoplex-backend/internal/tenancy"
	"github.com/lucasvieira/condoplex-backend/pkg/db/models"
	"github.com/lucasvieira/condoplex-backend/pkg/enums"
)

// Repository defines persistence operations for membership rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUserAndCondo(ctx context.Context, userID, condoID uuid.UUID) (*models.Membership, error)
	Create(ctx context.Context, membership *models.Membership) (*models.Membership, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListByCondo(ctx context.Context, condoID uuid.UUID) ([]models.Membership, error)
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// Service manages who belongs to a condominium and with which role.
type Service interface {
	Link(ctx context.Context, input LinkInput) (*models.Membership, error)
	Unlink(ctx context.Context, input UnlinkInput) error
	ListByCondo(ctx context.Context, condoID uuid.UUID) ([]models.Membership, error)
}

// LinkInput attaches a user to a condominium with a role. Linking an
// existing inactive pair reactivates it in place.
type LinkInput struct {
	Actor   *tenancy.AuthContext
	CondoID uuid.UUID
	UserID  uuid.UUID
	Role    enums.MembershipRole
}

// UnlinkInput deactivates an existing membership without deleting the row.
type UnlinkInput struct {
	Actor   *tenancy.AuthContext
	CondoID uuid.UUID
	UserID  uuid.UUID
}
