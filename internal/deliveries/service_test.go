package deliveries

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lucasvieira/condoplex-backend/internal/tenancy"
	"github.com/lucasvieira/condoplex-backend/pkg/auth"
	"github.com/lucasvieira/condoplex-backend/pkg/config"
	"github.com/lucasvieira/condoplex-backend/pkg/db/models"
	"github.com/lucasvieira/condoplex-backend/pkg/enums"
	pkgerrors "github.com/lucasvieira/condoplex-backend/pkg/errors"
	"github.com/lucasvieira/condoplex-backend/pkg/logger"
	"github.com/lucasvieira/condoplex-backend/pkg/pagination"
)

type stubDeliveriesRepo struct {
	users         map[uuid.UUID]*models.User
	deliveries    map[uuid.UUID]*models.Delivery
	created       *models.Delivery
	deliveredRows int64
	cancelledRows int64
	editedRows    int64
	findCalls     int
	markCalls     int
	listPage      func(ctx context.Context, condoID uuid.UUID, filters ListFilters, params pagination.Params) ([]DeliveryRow, error)
	count         func(ctx context.Context, condoID uuid.UUID, filters ListFilters) (int64, error)
	lastFilters   *ListFilters
}

func (s *stubDeliveriesRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubDeliveriesRepo) Create(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error) {
	s.created = delivery
	if s.deliveries == nil {
		s.deliveries = map[uuid.UUID]*models.Delivery{}
	}
	s.deliveries[delivery.ID] = delivery
	return delivery, nil
}

func (s *stubDeliveriesRepo) Find(ctx context.Context, id, condoID uuid.UUID) (*models.Delivery, error) {
	s.findCalls++
	delivery, ok := s.deliveries[id]
	if !ok || delivery.CondoID != condoID {
		return nil, gorm.ErrRecordNotFound
	}
	return delivery, nil
}

func (s *stubDeliveriesRepo) MarkDelivered(ctx context.Context, id, condoID, operatorID uuid.UUID, recipientName string, recipientDocument *string, at time.Time) (int64, error) {
	s.markCalls++
	return s.deliveredRows, nil
}

func (s *stubDeliveriesRepo) MarkCancelled(ctx context.Context, id, condoID, operatorID uuid.UUID, reason string, at time.Time) (int64, error) {
	s.markCalls++
	return s.cancelledRows, nil
}

func (s *stubDeliveriesRepo) UpdateEditable(ctx context.Context, id, condoID, operatorID uuid.UUID, updates map[string]any) (int64, error) {
	s.markCalls++
	return s.editedRows, nil
}

func (s *stubDeliveriesRepo) ListPage(ctx context.Context, condoID uuid.UUID, filters ListFilters, params pagination.Params) ([]DeliveryRow, error) {
	s.lastFilters = &filters
	if s.listPage != nil {
		return s.listPage(ctx, condoID, filters, params)
	}
	return nil, nil
}

func (s *stubDeliveriesRepo) Count(ctx context.Context, condoID uuid.UUID, filters ListFilters) (int64, error) {
	if s.count != nil {
		return s.count(ctx, condoID, filters)
	}
	return 0, nil
}

func (s *stubDeliveriesRepo) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type stubOutbox struct {
	inserted []*models.Notification
	fail     error
}

func (s *stubOutbox) InsertTx(ctx context.Context, tx *gorm.DB, notification *models.Notification) error {
	if s.fail != nil {
		return s.fail
	}
	s.inserted = append(s.inserted, notification)
	return nil
}

type stubPhotoStore struct {
	fail     bool
	uploaded string
}

func (s *stubPhotoStore) ObjectName(condoID, deliveryID, filename string) string {
	return "deliveries/" + condoID + "/" + deliveryID + "/" + filename
}

func (s *stubPhotoStore) Upload(ctx context.Context, object, contentType string, body io.Reader) (string, error) {
	if s.fail {
		return "", errors.New("bucket unavailable")
	}
	s.uploaded = object
	return "https://storage.example.com/" + object, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "deliveries-test", Output: io.Discard})
}

func testJWT() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "condoplex-test", ExpirationMinutes: 30, QRCodeTTLMinutes: 15}
}

func operatorActor(condoID uuid.UUID, role enums.MembershipRole) *tenancy.AuthContext {
	return &tenancy.AuthContext{UserID: uuid.New(), CondoID: &condoID, Role: &role}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func newTestService(t *testing.T, repo *stubDeliveriesRepo, outbox *stubOutbox, photos PhotoStore) Service {
	t.Helper()
	svc, err := NewService(repo, stubTx{}, outbox, photos, testJWT(), testLogger())
	require.NoError(t, err)
	return svc
}

func TestIntakeCreatesReceivedDeliveryWithPushNotification(t *testing.T) {
	condoID := uuid.New()
	residentID := uuid.New()
	token := "ExponentPushToken[abc]"
	repo := &stubDeliveriesRepo{
		users: map[uuid.UUID]*models.User{
			residentID: {ID: residentID, Email: "u1@example.com", PushToken: &token, IsActive: true},
		},
	}
	outbox := &stubOutbox{}
	svc := newTestService(t, repo, outbox, nil)

	delivery, err := svc.Intake(context.Background(), IntakeInput{
		Actor:          operatorActor(condoID, enums.RolePortaria),
		CondoID:        condoID,
		Unit:           "101",
		Block:          "A",
		Marketplace:    "Amazon",
		ResidentUserID: &residentID,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryStatusReceived, delivery.Status)
	assert.Equal(t, enums.PackageTypeOther, delivery.PackageType)

	require.Len(t, outbox.inserted, 1)
	n := outbox.inserted[0]
	assert.Equal(t, enums.NotificationChannelPush, n.Channel)
	assert.Equal(t, enums.NotificationStatusPending, n.Status)
	assert.Equal(t, residentID, n.UserID)
	require.NotNil(t, n.DeliveryID)
	assert.Equal(t, delivery.ID, *n.DeliveryID)
}

func TestIntakeWithoutPushTokenSkipsNotification(t *testing.T) {
	condoID := uuid.New()
	residentID := uuid.New()
	repo := &stubDeliveriesRepo{
		users: map[uuid.UUID]*models.User{
			residentID: {ID: residentID, Email: "u1@example.com", IsActive: true},
		},
	}
	outbox := &stubOutbox{}
	svc := newTestService(t, repo, outbox, nil)

	_, err := svc.Intake(context.Background(), IntakeInput{
		Actor:          operatorActor(condoID, enums.RolePortaria),
		CondoID:        condoID,
		Unit:           "101",
		Block:          "A",
		Marketplace:    "Shopee",
		ResidentUserID: &residentID,
	})
	require.NoError(t, err)
	assert.Empty(t, outbox.inserted)
}

func TestIntakePhotoUploadFailureDoesNotBlock(t *testing.T) {
	condoID := uuid.New()
	repo := &stubDeliveriesRepo{}
	photos := &stubPhotoStore{fail: true}
	svc := newTestService(t, repo, &stubOutbox{}, photos)

	delivery, err := svc.Intake(context.Background(), IntakeInput{
		Actor:       operatorActor(condoID, enums.RolePortaria),
		CondoID:     condoID,
		Unit:        "202",
		Block:       "B",
		Marketplace: "Mercado Livre",
		Photo:       []byte("jpeg-bytes"),
	})
	require.NoError(t, err)
	assert.Nil(t, delivery.PhotoURL, "failed upload must leave url null")
	require.NotNil(t, repo.created)
}

func TestIntakePhotoUploadSuccessStoresURL(t *testing.T) {
	condoID := uuid.New()
	repo := &stubDeliveriesRepo{}
	photos := &stubPhotoStore{}
	svc := newTestService(t, repo, &stubOutbox{}, photos)

	delivery, err := svc.Intake(context.Background(), IntakeInput{
		Actor:         operatorActor(condoID, enums.RolePortaria),
		CondoID:       condoID,
		Unit:          "202",
		Block:         "B",
		Marketplace:   "Shein",
		Photo:         []byte("jpeg-bytes"),
		PhotoFilename: "box.png",
	})
	require.NoError(t, err)
	require.NotNil(t, delivery.PhotoURL)
	assert.Contains(t, *delivery.PhotoURL, photos.uploaded)
}

func TestIntakeForbiddenForResidents(t *testing.T) {
	condoID := uuid.New()
	svc := newTestService(t, &stubDeliveriesRepo{}, &stubOutbox{}, nil)

	_, err := svc.Intake(context.Background(), IntakeInput{
		Actor:       operatorActor(condoID, enums.RoleMorador),
		CondoID:     condoID,
		Unit:        "101",
		Block:       "A",
		Marketplace: "Amazon",
	})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestIntakeValidatesRequiredFields(t *testing.T) {
	condoID := uuid.New()
	svc := newTestService(t, &stubDeliveriesRepo{}, &stubOutbox{}, nil)

	_, err := svc.Intake(context.Background(), IntakeInput{
		Actor:       operatorActor(condoID, enums.RolePortaria),
		CondoID:     condoID,
		Unit:        "  ",
		Block:       "A",
		Marketplace: "Amazon",
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestManualPickupTransitionsAndNotifies(t *testing.T) {
	condoID := uuid.New()
	deliveryID := uuid.New()
	residentID := uuid.New()
	token := "ExponentPushToken[abc]"
	repo := &stubDeliveriesRepo{
		deliveredRows: 1,
		deliveries: map[uuid.UUID]*models.Delivery{
			deliveryID: {ID: deliveryID, CondoID: condoID, Status: enums.DeliveryStatusDelivered, ResidentUserID: &residentID},
		},
		users: map[uuid.UUID]*models.User{
			residentID: {ID: residentID, Email: "u1@example.com", PushToken: &token, IsActive: true},
		},
	}
	outbox := &stubOutbox{}
	svc := newTestService(t, repo, outbox, nil)

	err := svc.ManualPickup(context.Background(), ManualPickupInput{
		Actor:             operatorActor(condoID, enums.RolePortaria),
		DeliveryID:        deliveryID,
		RecipientName:     "Maria Silva",
		RecipientDocument: "123.456.789-00",
	})
	require.NoError(t, err)
	require.Len(t, outbox.inserted, 1)
	assert.Equal(t, enums.NotificationChannelPush, outbox.inserted[0].Channel)
}

func TestManualPickupLostRaceIsConflict(t *testing.T) {
	condoID := uuid.New()
	repo := &stubDeliveriesRepo{deliveredRows: 0}
	svc := newTestService(t, repo, &stubOutbox{}, nil)

	err := svc.ManualPickup(context.Background(), ManualPickupInput{
		Actor:             operatorActor(condoID, enums.RolePortaria),
		DeliveryID:        uuid.New(),
		RecipientName:     "Maria Silva",
		RecipientDocument: "123.456.789-00",
	})
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestQrPickupHappyPath(t *testing.T) {
	condoID := uuid.New()
	deliveryID := uuid.New()
	repo := &stubDeliveriesRepo{
		deliveredRows: 1,
		deliveries: map[uuid.UUID]*models.Delivery{
			deliveryID: {ID: deliveryID, CondoID: condoID, Status: enums.DeliveryStatusDelivered},
		},
	}
	svc := newTestService(t, repo, &stubOutbox{}, nil)

	token, err := auth.MintQRPickupToken(testJWT(), time.Now(), deliveryID, condoID)
	require.NoError(t, err)

	err = svc.QrPickup(context.Background(), QrPickupInput{
		Actor: operatorActor(condoID, enums.RolePortaria),
		Token: token,
	})
	require.NoError(t, err)
}

func TestQrPickupRejectsForeignCondoToken(t *testing.T) {
	condoID := uuid.New()
	svc := newTestService(t, &stubDeliveriesRepo{deliveredRows: 1}, &stubOutbox{}, nil)

	token, err := auth.MintQRPickupToken(testJWT(), time.Now(), uuid.New(), uuid.New())
	require.NoError(t, err)

	err = svc.QrPickup(context.Background(), QrPickupInput{
		Actor: operatorActor(condoID, enums.RolePortaria),
		Token: token,
	})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestQrPickupRejectsExpiredToken(t *testing.T) {
	condoID := uuid.New()
	svc := newTestService(t, &stubDeliveriesRepo{deliveredRows: 1}, &stubOutbox{}, nil)

	token, err := auth.MintQRPickupToken(testJWT(), time.Now().Add(-time.Hour), uuid.New(), condoID)
	require.NoError(t, err)

	err = svc.QrPickup(context.Background(), QrPickupInput{
		Actor: operatorActor(condoID, enums.RolePortaria),
		Token: token,
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestCancelEmptyReasonFailsBeforeStore(t *testing.T) {
	condoID := uuid.New()
	repo := &stubDeliveriesRepo{}
	svc := newTestService(t, repo, &stubOutbox{}, nil)

	err := svc.Cancel(context.Background(), CancelInput{
		Actor:      operatorActor(condoID, enums.RolePortaria),
		DeliveryID: uuid.New(),
		Reason:     "   ",
	})
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.Zero(t, repo.markCalls, "validation must fail before any store access")
}

func TestCancelLostRaceIsConflict(t *testing.T) {
	condoID := uuid.New()
	repo := &stubDeliveriesRepo{cancelledRows: 0}
	svc := newTestService(t, repo, &stubOutbox{}, nil)

	err := svc.Cancel(context.Background(), CancelInput{
		Actor:      operatorActor(condoID, enums.RolePortaria),
		DeliveryID: uuid.New(),
		Reason:     "registro duplicado",
	})
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCancelFallsBackToEmailWithoutPushToken(t *testing.T) {
	condoID := uuid.New()
	deliveryID := uuid.New()
	residentID := uuid.New()
	repo := &stubDeliveriesRepo{
		cancelledRows: 1,
		deliveries: map[uuid.UUID]*models.Delivery{
			deliveryID: {ID: deliveryID, CondoID: condoID, Status: enums.DeliveryStatusCancelled, ResidentUserID: &residentID},
		},
		users: map[uuid.UUID]*models.User{
			residentID: {ID: residentID, Email: "u1@example.com", IsActive: true},
		},
	}
	outbox := &stubOutbox{}
	svc := newTestService(t, repo, outbox, nil)

	err := svc.Cancel(context.Background(), CancelInput{
		Actor:      operatorActor(condoID, enums.RolePortaria),
		DeliveryID: deliveryID,
		Reason:     "registro duplicado",
	})
	require.NoError(t, err)
	require.Len(t, outbox.inserted, 1)
	assert.Equal(t, enums.NotificationChannelEmail, outbox.inserted[0].Channel)
}

func TestEditLostWindowIsConflict(t *testing.T) {
	condoID := uuid.New()
	repo := &stubDeliveriesRepo{editedRows: 0}
	svc := newTestService(t, repo, &stubOutbox{}, nil)

	urgent := true
	err := svc.Edit(context.Background(), EditInput{
		Actor:      operatorActor(condoID, enums.RolePortaria),
		DeliveryID: uuid.New(),
		Urgent:     &urgent,
	})
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestEditRequiresAtLeastOneField(t *testing.T) {
	condoID := uuid.New()
	svc := newTestService(t, &stubDeliveriesRepo{}, &stubOutbox{}, nil)

	err := svc.Edit(context.Background(), EditInput{
		Actor:      operatorActor(condoID, enums.RolePortaria),
		DeliveryID: uuid.New(),
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestEditSucceedsWhileReceived(t *testing.T) {
	condoID := uuid.New()
	repo := &stubDeliveriesRepo{editedRows: 1}
	svc := newTestService(t, repo, &stubOutbox{}, nil)

	marketplace := "AliExpress"
	err := svc.Edit(context.Background(), EditInput{
		Actor:       operatorActor(condoID, enums.RolePortaria),
		DeliveryID:  uuid.New(),
		Marketplace: &marketplace,
	})
	require.NoError(t, err)
}

func TestMintQRCodeForOwnDelivery(t *testing.T) {
	condoID := uuid.New()
	deliveryID := uuid.New()
	actor := operatorActor(condoID, enums.RoleMorador)
	repo := &stubDeliveriesRepo{
		deliveries: map[uuid.UUID]*models.Delivery{
			deliveryID: {ID: deliveryID, CondoID: condoID, Status: enums.DeliveryStatusReceived, ResidentUserID: &actor.UserID},
		},
	}
	svc := newTestService(t, repo, &stubOutbox{}, nil)

	out, err := svc.MintQRCode(context.Background(), MintQRCodeInput{Actor: actor, DeliveryID: deliveryID})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Token)
	assert.True(t, out.ExpiresAt.After(time.Now()))

	claims, err := auth.ParseQRPickupToken(testJWT(), out.Token)
	require.NoError(t, err)
	assert.Equal(t, deliveryID, claims.DeliveryID)
}

func TestMintQRCodeDeniesForeignResident(t *testing.T) {
	condoID := uuid.New()
	deliveryID := uuid.New()
	otherResident := uuid.New()
	repo := &stubDeliveriesRepo{
		deliveries: map[uuid.UUID]*models.Delivery{
			deliveryID: {ID: deliveryID, CondoID: condoID, Status: enums.DeliveryStatusReceived, ResidentUserID: &otherResident},
		},
	}
	svc := newTestService(t, repo, &stubOutbox{}, nil)

	_, err := svc.MintQRCode(context.Background(), MintQRCodeInput{
		Actor:      operatorActor(condoID, enums.RoleMorador),
		DeliveryID: deliveryID,
	})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestMintQRCodeConflictsOnTerminalDelivery(t *testing.T) {
	condoID := uuid.New()
	deliveryID := uuid.New()
	repo := &stubDeliveriesRepo{
		deliveries: map[uuid.UUID]*models.Delivery{
			deliveryID: {ID: deliveryID, CondoID: condoID, Status: enums.DeliveryStatusDelivered},
		},
	}
	svc := newTestService(t, repo, &stubOutbox{}, nil)

	_, err := svc.MintQRCode(context.Background(), MintQRCodeInput{
		Actor:      operatorActor(condoID, enums.RolePortaria),
		DeliveryID: deliveryID,
	})
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestListForcesResidentScope(t *testing.T) {
	condoID := uuid.New()
	actor := operatorActor(condoID, enums.RoleMorador)
	otherResident := uuid.New()
	repo := &stubDeliveriesRepo{}
	svc := newTestService(t, repo, &stubOutbox{}, nil)

	_, err := svc.List(context.Background(), ListInput{
		Actor:   actor,
		CondoID: condoID,
		Filters: ListFilters{ResidentUserID: &otherResident},
		Page:    pagination.Params{Page: 1, Limit: 10},
	})
	require.NoError(t, err)
	require.NotNil(t, repo.lastFilters)
	require.NotNil(t, repo.lastFilters.ResidentUserID)
	assert.Equal(t, actor.UserID, *repo.lastFilters.ResidentUserID, "caller-supplied resident filter must be replaced")
}

func TestListReturnsPageAndTotal(t *testing.T) {
	condoID := uuid.New()
	repo := &stubDeliveriesRepo{
		listPage: func(ctx context.Context, condoID uuid.UUID, filters ListFilters, params pagination.Params) ([]DeliveryRow, error) {
			return []DeliveryRow{{ID: uuid.New(), CondoID: condoID}}, nil
		},
		count: func(ctx context.Context, condoID uuid.UUID, filters ListFilters) (int64, error) {
			return 42, nil
		},
	}
	svc := newTestService(t, repo, &stubOutbox{}, nil)

	list, err := svc.List(context.Background(), ListInput{
		Actor:   operatorActor(condoID, enums.RoleSindico),
		CondoID: condoID,
		Page:    pagination.Params{Page: 2, Limit: 10},
	})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
	assert.Equal(t, int64(42), list.Meta.Total)
	assert.Equal(t, 2, list.Meta.Page)
}

func TestListDeniesWithoutRole(t *testing.T) {
	condoID := uuid.New()
	svc := newTestService(t, &stubDeliveriesRepo{}, &stubOutbox{}, nil)

	_, err := svc.List(context.Background(), ListInput{
		Actor:   &tenancy.AuthContext{UserID: uuid.New(), CondoID: &condoID},
		CondoID: condoID,
	})
	requireCode(t, err, pkgerrors.CodeForbidden)
}
