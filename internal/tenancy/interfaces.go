package tenancy

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasvieira/condoplex-backend/pkg/db/models"
)

// Repository defines the read-only lookups the resolver needs. They always
// run outside any write transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveAccountByOwner(ctx context.Context, ownerUserID uuid.UUID) (*models.Account, error)
	FindCondominium(ctx context.Context, condoID uuid.UUID) (*models.Condominium, error)
	FindActiveMembership(ctx context.Context, userID, condoID uuid.UUID) (*models.Membership, error)
}
