package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasvieira/condoplex-backend/pkg/enums"
	pkgerrors "github.com/lucasvieira/condoplex-backend/pkg/errors"
)

// Resolver computes the caller's effective authorization state. Resolution is
// fail-closed: a store failure or a missing link denies, never permits.
type Resolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, condoID *uuid.UUID) (*AuthContext, error)
}

type resolver struct {
	repo Repository
}

// NewResolver builds a tenancy resolver with the required dependencies.
func NewResolver(repo Repository) (Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("tenancy repository required")
	}
	return &resolver{repo: repo}, nil
}

func (r *resolver) Resolve(ctx context.Context, userID uuid.UUID, condoID *uuid.UUID) (*AuthContext, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	authCtx := &AuthContext{UserID: userID}

	account, err := r.repo.FindActiveAccountByOwner(ctx, userID)
	switch {
	case err == nil:
		authCtx.IsMaster = true
		authCtx.AccountID = &account.ID
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Not a master; membership decides below.
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "master lookup")
	}

	if condoID == nil {
		if authCtx.IsMaster {
			role := enums.RoleMaster
			authCtx.Role = &role
		}
		return authCtx, nil
	}

	condo, err := r.repo.FindCondominium(ctx, *condoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "condominium not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "condominium lookup")
	}
	if !condo.Active {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "condominium is inactive")
	}
	authCtx.CondoID = &condo.ID

	if authCtx.IsMaster && condo.AccountID == *authCtx.AccountID {
		role := enums.RoleMaster
		authCtx.Role = &role
		return authCtx, nil
	}

	membership, err := r.repo.FindActiveMembership(ctx, userID, *condoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no access to this condominium")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "membership lookup")
	}

	role, err := enums.ParseMembershipRole(string(membership.Role))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stored membership role not recognized")
	}
	authCtx.Role = &role
	return authCtx, nil
}
