package notifications

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucasvieira/condoplex-backend/pkg/db/models"
	"github.com/lucasvieira/condoplex-backend/pkg/enums"
)

func setupNotificationsTestDB(t *testing.T) *gorm.DB {
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
	notifications := `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  condo_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  delivery_id TEXT,
  channel TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  title TEXT NOT NULL,
  body TEXT NOT NULL,
  destination TEXT,
  attempts INTEGER NOT NULL DEFAULT 0,
  error_log TEXT,
  created_at DATETIME,
  sent_at DATETIME
);`
	require.NoError(t, db.Exec(users).Error)
	require.NoError(t, db.Exec(notifications).Error)
	return db
}

func insertPending(t *testing.T, repo Repository, channel enums.NotificationChannel, createdAt time.Time) *models.Notification {
	t.Helper()
	row := &models.Notification{
		ID:        uuid.New(),
		CondoID:   uuid.New(),
		UserID:    uuid.New(),
		Channel:   channel,
		Title:     "Encomenda recebida",
		Body:      "Uma encomenda chegou na portaria.",
		CreatedAt: createdAt,
	}
	require.NoError(t, repo.InsertTx(context.Background(), nil, row))
	return row
}

func TestInsertTxForcesPendingState(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	row := &models.Notification{
		CondoID:  uuid.New(),
		UserID:   uuid.New(),
		Channel:  enums.NotificationChannelPush,
		Status:   enums.NotificationStatusSent,
		Title:    "Encomenda recebida",
		Body:     "Uma encomenda chegou na portaria.",
		Attempts: 7,
	}
	require.NoError(t, repo.InsertTx(ctx, nil, row))

	assert.NotEqual(t, uuid.Nil, row.ID)
	assert.Equal(t, enums.NotificationStatusPending, row.Status)
	assert.Equal(t, 0, row.Attempts)

	var stored models.Notification
	require.NoError(t, db.WithContext(ctx).First(&stored, "id = ?", row.ID).Error)
	assert.Equal(t, enums.NotificationStatusPending, stored.Status)
}

func TestInsertTxUsesCallerTransaction(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	row := &models.Notification{
		CondoID: uuid.New(),
		UserID:  uuid.New(),
		Channel: enums.NotificationChannelPush,
		Title:   "Encomenda recebida",
		Body:    "Uma encomenda chegou na portaria.",
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.InsertTx(ctx, tx, row); err != nil {
			return err
		}
		return fmt.Errorf("force rollback")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(0), count, "a rolled back transaction must leave no outbox row")
}

func TestFetchPendingFiltersChannelAndOrder(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	second := insertPending(t, repo, enums.NotificationChannelPush, base.Add(2*time.Minute))
	first := insertPending(t, repo, enums.NotificationChannelPush, base)
	insertPending(t, repo, enums.NotificationChannelEmail, base.Add(time.Minute))

	sent := insertPending(t, repo, enums.NotificationChannelPush, base.Add(3*time.Minute))
	require.NoError(t, repo.MarkSent(ctx, []SentRow{{ID: sent.ID, Destination: "ExponentPushToken[x]"}}, time.Now().UTC()))

	rows, err := repo.FetchPending(ctx, enums.NotificationChannelPush, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID, "oldest pending row comes first")
	assert.Equal(t, second.ID, rows[1].ID)

	limited, err := repo.FetchPending(ctx, enums.NotificationChannelPush, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, first.ID, limited[0].ID)
}

func TestMarkSentRecordsDestinationAndAttempts(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	row := insertPending(t, repo, enums.NotificationChannelPush, time.Now().UTC())
	at := time.Now().UTC()
	require.NoError(t, repo.MarkSent(ctx, []SentRow{{ID: row.ID, Destination: "ExponentPushToken[abc]"}}, at))

	var stored models.Notification
	require.NoError(t, db.First(&stored, "id = ?", row.ID).Error)
	assert.Equal(t, enums.NotificationStatusSent, stored.Status)
	require.NotNil(t, stored.Destination)
	assert.Equal(t, "ExponentPushToken[abc]", *stored.Destination)
	assert.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.SentAt)
}

func TestMarkSentNeverMovesRowsBackward(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	row := insertPending(t, repo, enums.NotificationChannelPush, time.Now().UTC())
	require.NoError(t, repo.MarkError(ctx, row.ID, nil, "malformed push token"))

	require.NoError(t, repo.MarkSent(ctx, []SentRow{{ID: row.ID, Destination: "ExponentPushToken[abc]"}}, time.Now().UTC()))

	var stored models.Notification
	require.NoError(t, db.First(&stored, "id = ?", row.ID).Error)
	assert.Equal(t, enums.NotificationStatusError, stored.Status, "an errored row must stay errored")
	assert.Equal(t, 1, stored.Attempts)
}

func TestMarkSentIsIdempotent(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	row := insertPending(t, repo, enums.NotificationChannelPush, time.Now().UTC())
	rows := []SentRow{{ID: row.ID, Destination: "ExponentPushToken[abc]"}}
	require.NoError(t, repo.MarkSent(ctx, rows, time.Now().UTC()))
	require.NoError(t, repo.MarkSent(ctx, rows, time.Now().UTC()))

	var stored models.Notification
	require.NoError(t, db.First(&stored, "id = ?", row.ID).Error)
	assert.Equal(t, enums.NotificationStatusSent, stored.Status)
	assert.Equal(t, 1, stored.Attempts, "a duplicate cycle must not bump attempts again")
}

func TestMarkErrorStoresLogAndOptionalDestination(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	noDest := insertPending(t, repo, enums.NotificationChannelPush, time.Now().UTC())
	require.NoError(t, repo.MarkError(ctx, noDest.ID, nil, "recipient has no push token"))

	var stored models.Notification
	require.NoError(t, db.First(&stored, "id = ?", noDest.ID).Error)
	assert.Equal(t, enums.NotificationStatusError, stored.Status)
	assert.Nil(t, stored.Destination)
	require.NotNil(t, stored.ErrorLog)
	assert.Equal(t, "recipient has no push token", *stored.ErrorLog)
	assert.Equal(t, 1, stored.Attempts)

	withDest := insertPending(t, repo, enums.NotificationChannelEmail, time.Now().UTC())
	dest := "down@example.com"
	require.NoError(t, repo.MarkError(ctx, withDest.ID, &dest, "sendgrid 500"))

	require.NoError(t, db.First(&stored, "id = ?", withDest.ID).Error)
	require.NotNil(t, stored.Destination)
	assert.Equal(t, dest, *stored.Destination)
}

func TestNotificationsFindUser(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	token := "ExponentPushToken[abc]"
	user := &models.User{ID: uuid.New(), Email: "resident@example.com", Name: "Resident", PushToken: &token, IsActive: true}
	require.NoError(t, db.Create(user).Error)

	found, err := repo.FindUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, found.PushToken)
	assert.Equal(t, token, *found.PushToken)

	_, err = repo.FindUser(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
