package memberships

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

func setupMembershipsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	users := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  phone TEXT,
  push_token TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
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
	require.NoError(t, db.Exec(users).Error)
	require.NoError(t, db.Exec(memberships).Error)
	return db
}

func TestCreateAndFindByUserAndCondo(t *testing.T) {
	db := setupMembershipsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	condoID := uuid.New()
	created, err := repo.Create(ctx, &models.Membership{
		ID:      uuid.New(),
		UserID:  userID,
		CondoID: condoID,
		Role:    enums.RoleMorador,
		Active:  true,
	})
	require.NoError(t, err)

	found, err := repo.FindByUserAndCondo(ctx, userID, condoID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.FindByUserAndCondo(ctx, userID, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUniquePairIsEnforced(t *testing.T) {
	db := setupMembershipsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	condoID := uuid.New()
	_, err := repo.Create(ctx, &models.Membership{ID: uuid.New(), UserID: userID, CondoID: condoID, Role: enums.RoleMorador, Active: true})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &models.Membership{ID: uuid.New(), UserID: userID, CondoID: condoID, Role: enums.RolePortaria, Active: true})
	assert.Error(t, err, "duplicate (user_id, condo_id) must fail")
}

func TestUpdateFlipsActiveAndRole(t *testing.T) {
	db := setupMembershipsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &models.Membership{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		CondoID: uuid.New(),
		Role:    enums.RoleMorador,
		Active:  false,
	})
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, created.ID, map[string]any{"role": enums.RolePortaria, "active": true}))

	found, err := repo.FindByUserAndCondo(ctx, created.UserID, created.CondoID)
	require.NoError(t, err)
	assert.Equal(t, enums.RolePortaria, found.Role)
	assert.True(t, found.Active)
}

func TestListByCondoReturnsOnlyActive(t *testing.T) {
	db := setupMembershipsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	condoID := uuid.New()
	_, err := repo.Create(ctx, &models.Membership{ID: uuid.New(), UserID: uuid.New(), CondoID: condoID, Role: enums.RoleMorador, Active: true})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.Membership{ID: uuid.New(), UserID: uuid.New(), CondoID: condoID, Role: enums.RolePortaria, Active: false})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.Membership{ID: uuid.New(), UserID: uuid.New(), CondoID: uuid.New(), Role: enums.RoleMorador, Active: true})
	require.NoError(t, err)

	rows, err := repo.ListByCondo(ctx, condoID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, condoID, rows[0].CondoID)
	assert.True(t, rows[0].Active)
}

func TestFindUser(t *testing.T) {
	db := setupMembershipsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Email: "morador@example.com", Name: "Morador", IsActive: true}
	require.NoError(t, db.Create(user).Error)

	found, err := repo.FindUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, found.Email)

	_, err = repo.FindUser(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
