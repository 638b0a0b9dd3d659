package tenancy

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasvieira/condoplex-backend/pkg/db/models"
	"github.com/lucasvieira/condoplex-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a tenancy repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindActiveAccountByOwner(ctx context.Context, ownerUserID uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ? AND status = ?", ownerUserID, enums.AccountStatusActive).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindCondominium(ctx context.Context, condoID uuid.UUID) (*models.Condominium, error) {
	var condo models.Condominium
	err := r.db.WithContext(ctx).
		Where("id = ?", condoID).
		First(&condo).Error
	if err != nil {
		return nil, err
	}
	return &condo, nil
}

func (r *repository) FindActiveMembership(ctx context.Context, userID, condoID uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND condo_id = ? AND active = ?", userID, condoID, true).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}
