package tenancy

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucasvieira/condoplex-backend/pkg/db/models"
	"github.com/lucasvieira/condoplex-backend/pkg/enums"
)

func setupTenancyTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	accounts := `
CREATE TABLE IF NOT EXISTS accounts (
  id TEXT PRIMARY KEY,
  owner_user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME,
  updated_at DATETIME
);`
	condominiums := `
CREATE TABLE IF NOT EXISTS condominiums (
  id TEXT PRIMARY KEY,
  account_id TEXT NOT NULL,
  name TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	memberships := `
CREATE TABLE IF NOT EXISTS memberships (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  condo_id TEXT NOT NULL,
  role TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (user_id, condo_id)
);`
	require.NoError(t, db.Exec(accounts).Error)
	require.NoError(t, db.Exec(condominiums).Error)
	require.NoError(t, db.Exec(memberships).Error)
	return db
}

func TestFindActiveAccountByOwner(t *testing.T) {
	db := setupTenancyTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	owner := uuid.New()
	active := &models.Account{ID: uuid.New(), OwnerUserID: owner, Status: enums.AccountStatusActive}
	require.NoError(t, db.Create(active).Error)

	suspendedOwner := uuid.New()
	suspended := &models.Account{ID: uuid.New(), OwnerUserID: suspendedOwner, Status: enums.AccountStatusSuspended}
	require.NoError(t, db.Create(suspended).Error)

	found, err := repo.FindActiveAccountByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, active.ID, found.ID)

	_, err = repo.FindActiveAccountByOwner(ctx, suspendedOwner)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "suspended account must not grant master")

	_, err = repo.FindActiveAccountByOwner(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFindCondominium(t *testing.T) {
	db := setupTenancyTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	condo := &models.Condominium{ID: uuid.New(), AccountID: uuid.New(), Name: "Residencial Aurora", Active: true}
	require.NoError(t, db.Create(condo).Error)

	found, err := repo.FindCondominium(ctx, condo.ID)
	require.NoError(t, err)
	assert.Equal(t, condo.AccountID, found.AccountID)

	_, err = repo.FindCondominium(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFindActiveMembership(t *testing.T) {
	db := setupTenancyTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	condoID := uuid.New()
	require.NoError(t, db.Create(&models.Membership{
		ID:      uuid.New(),
		UserID:  userID,
		CondoID: condoID,
		Role:    enums.RolePortaria,
		Active:  true,
	}).Error)

	inactiveUser := uuid.New()
	require.NoError(t, db.Create(&models.Membership{
		ID:      uuid.New(),
		UserID:  inactiveUser,
		CondoID: condoID,
		Role:    enums.RoleMorador,
		Active:  false,
	}).Error)

	found, err := repo.FindActiveMembership(ctx, userID, condoID)
	require.NoError(t, err)
	assert.Equal(t, enums.RolePortaria, found.Role)

	_, err = repo.FindActiveMembership(ctx, inactiveUser, condoID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "inactive membership must resolve to no access")
}
