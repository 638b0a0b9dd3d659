package memberships

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasvieira/condoplex-backend/pkg/db"
	"github.com/lucasvieira/condoplex-backend/pkg/db/models"
	"github.com/lucasvieira/condoplex-backend/pkg/enums"
	pkgerrors "github.com/lucasvieira/condoplex-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds a memberships service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("memberships repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Link(ctx context.Context, input LinkInput) (*models.Membership, error) {
	if input.Actor == nil || !input.Actor.CanManageMemberships() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot manage memberships")
	}
	if input.CondoID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "condo id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid membership role")
	}
	if input.Role == enums.RoleMaster {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "master is derived from account ownership, not stored")
	}

	user, err := s.repo.FindUser(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user is inactive")
	}

	var result *models.Membership
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindByUserAndCondo(ctx, input.UserID, input.CondoID)
		switch {
		case err == nil:
			// Reactivation flips the existing row instead of inserting a
			// duplicate; (user_id, condo_id) is unique.
			updates := map[string]any{"role": input.Role, "active": true}
			if err := repo.Update(ctx, existing.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reactivate membership")
			}
			existing.Role = input.Role
			existing.Active = true
			result = existing
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			created, err := repo.Create(ctx, &models.Membership{
				UserID:  input.UserID,
				CondoID: input.CondoID,
				Role:    input.Role,
				Active:  true,
			})
			if err != nil {
				if db.IsUniqueViolation(err, uniqueUserCondoConstraint) {
					return pkgerrors.New(pkgerrors.CodeStateConflict, "membership already exists")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create membership")
			}
			result = created
			return nil
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Unlink(ctx context.Context, input UnlinkInput) error {
	if input.Actor == nil || !input.Actor.CanManageMemberships() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "role cannot manage memberships")
	}
	if input.CondoID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "condo id required")
	}
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	membership, err := s.repo.FindByUserAndCondo(ctx, input.UserID, input.CondoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	if !membership.Active {
		return nil
	}

	if err := s.repo.Update(ctx, membership.ID, map[string]any{"active": false}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate membership")
	}
	return nil
}

func (s *service) ListByCondo(ctx context.Context, condoID uuid.UUID) ([]models.Membership, error) {
	if condoID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "condo id required")
	}
	rows, err := s.repo.ListByCondo(ctx, condoID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list memberships")
	}
	return rows, nil
}
