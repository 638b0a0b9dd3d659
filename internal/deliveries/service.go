package deliveries

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
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

// qrRecipientName is stamped on QR pickups instead of a typed-in name.
const qrRecipientName = "QR holder (authorized)"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxWriter interface {
	InsertTx(ctx context.Context, tx *gorm.DB, notification *models.Notification) error
}

// PhotoStore uploads intake photos. Upload failures never block intake.
type PhotoStore interface {
	ObjectName(condoID, deliveryID, filename string) string
	Upload(ctx context.Context, object, contentType string, body io.Reader) (string, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxWriter
	photos PhotoStore
	jwtCfg config.JWTConfig
	logg   *logger.Logger
}

// NewService builds a deliveries service with the required dependencies.
// The photo store is optional; without it intake simply skips uploads.
func NewService(repo Repository, tx txRunner, outbox outboxWriter, photos PhotoStore, jwtCfg config.JWTConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("deliveries repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox writer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outbox,
		photos: photos,
		jwtCfg: jwtCfg,
		logg:   logg,
	}, nil
}

func requireOperator(actor *tenancy.AuthContext) error {
	if actor == nil || actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actor.CondoID == nil {
		return pkgerrors.New(pkgerrors.CodeForbidden, "condominium context missing")
	}
	if !actor.CanOperateDeliveries() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "role cannot operate deliveries")
	}
	return nil
}

func (s *service) Intake(ctx context.Context, input IntakeInput) (*models.Delivery, error) {
	if err := requireOperator(input.Actor); err != nil {
		return nil, err
	}
	if input.CondoID == uuid.Nil || *input.Actor.CondoID != input.CondoID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "condominium mismatch")
	}
	if strings.TrimSpace(input.Unit) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit required")
	}
	if strings.TrimSpace(input.Block) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "block required")
	}
	if strings.TrimSpace(input.Marketplace) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "marketplace required")
	}

	packageType := input.PackageType
	if packageType == "" {
		packageType = enums.PackageTypeOther
	}
	if !packageType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid package type")
	}

	var resident *models.User
	if input.ResidentUserID != nil {
		found, err := s.repo.FindUser(ctx, *input.ResidentUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "resident not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load resident")
		}
		resident = found
	}

	delivery := &models.Delivery{
		ID:               uuid.New(),
		CondoID:          input.CondoID,
		Status:           enums.DeliveryStatusReceived,
		ReceivedByUserID: input.Actor.UserID,
		Unit:             strings.TrimSpace(input.Unit),
		Block:            strings.TrimSpace(input.Block),
		Marketplace:      strings.TrimSpace(input.Marketplace),
		TrackingCode:     input.TrackingCode,
		ResidentUserID:   input.ResidentUserID,
		Urgent:           input.Urgent,
		PackageType:      packageType,
		Observations:     input.Observations,
		ReceivedAt:       time.Now().UTC(),
	}

	delivery.PhotoURL = s.uploadPhoto(ctx, delivery, input.Photo, input.PhotoFilename)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Create(ctx, delivery); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery")
		}

		if resident != nil && hasPushDestination(resident) {
			notification := &models.Notification{
				CondoID:    delivery.CondoID,
				UserID:     resident.ID,
				DeliveryID: &delivery.ID,
				Channel:    enums.NotificationChannelPush,
				Status:     enums.NotificationStatusPending,
				Title:      "Encomenda recebida",
				Body:       fmt.Sprintf("Uma encomenda de %s chegou na portaria para a unidade %s-%s.", delivery.Marketplace, delivery.Block, delivery.Unit),
			}
			if err := s.outbox.InsertTx(ctx, tx, notification); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert intake notification")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// uploadPhoto is best-effort: any failure logs a warning and returns nil so
// the delivery is still created with url=null.
func (s *service) uploadPhoto(ctx context.Context, delivery *models.Delivery, photo []byte, filename string) *string {
	if s.photos == nil || len(photo) == 0 {
		return nil
	}
	if filename == "" {
		filename = "photo.jpg"
	}
	object := s.photos.ObjectName(delivery.CondoID.String(), delivery.ID.String(), filename)
	url, err := s.photos.Upload(ctx, object, contentTypeFor(filename), bytes.NewReader(photo))
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "delivery_id", delivery.ID.String()), "photo upload failed, continuing without photo")
		return nil
	}
	return &url
}

func contentTypeFor(filename string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(filename), ".png"):
		return "image/png"
	case strings.HasSuffix(strings.ToLower(filename), ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func hasPushDestination(user *models.User) bool {
	return user != nil && user.PushToken != nil && strings.TrimSpace(*user.PushToken) != ""
}

func (s *service) ManualPickup(ctx context.Context, input ManualPickupInput) error {
	if err := requireOperator(input.Actor); err != nil {
		return err
	}
	if input.DeliveryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	recipientName := strings.TrimSpace(input.RecipientName)
	if recipientName == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient name required")
	}
	recipientDocument := strings.TrimSpace(input.RecipientDocument)
	if recipientDocument == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient document required")
	}

	return s.deliver(ctx, input.Actor, input.DeliveryID, recipientName, &recipientDocument)
}

func (s *service) QrPickup(ctx context.Context, input QrPickupInput) error {
	if err := requireOperator(input.Actor); err != nil {
		return err
	}
	if strings.TrimSpace(input.Token) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "qr token required")
	}

	claims, err := auth.ParseQRPickupToken(s.jwtCfg, input.Token)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid qr token")
	}
	if claims.CondoID != *input.Actor.CondoID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "qr token belongs to another condominium")
	}

	return s.deliver(ctx, input.Actor, claims.DeliveryID, qrRecipientName, nil)
}

// deliver runs the received -> delivered transition as one conditional UPDATE
// and queues the resident notification in the same transaction. Zero affected
// rows means the delivery is no longer available and nothing is mutated.
func (s *service) deliver(ctx context.Context, actor *tenancy.AuthContext, deliveryID uuid.UUID, recipientName string, recipientDocument *string) error {
	condoID := *actor.CondoID
	now := time.Now().UTC()

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		rows, err := repo.MarkDelivered(ctx, deliveryID, condoID, actor.UserID, recipientName, recipientDocument, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark delivered")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery no longer available")
		}

		return s.queueLifecycleNotification(ctx, tx, repo, deliveryID, condoID,
			"Encomenda retirada",
			fmt.Sprintf("Sua encomenda foi retirada por %s.", recipientName))
	})
}

func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if err := requireOperator(input.Actor); err != nil {
		return err
	}
	if input.DeliveryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}

	condoID := *input.Actor.CondoID
	now := time.Now().UTC()

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		rows, err := repo.MarkCancelled(ctx, input.DeliveryID, condoID, input.Actor.UserID, reason, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cancelled")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery no longer available")
		}

		return s.queueLifecycleNotification(ctx, tx, repo, input.DeliveryID, condoID,
			"Encomenda cancelada",
			fmt.Sprintf("O registro da sua encomenda foi cancelado: %s.", reason))
	})
}

// queueLifecycleNotification reads the freshly transitioned row and, when a
// resident with a reachable destination is attached, inserts the outbox row
// in the same transaction. Push wins over email when both are on file.
func (s *service) queueLifecycleNotification(ctx context.Context, tx *gorm.DB, repo Repository, deliveryID, condoID uuid.UUID, title, body string) error {
	delivery, err := repo.Find(ctx, deliveryID, condoID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload delivery")
	}
	if delivery.ResidentUserID == nil {
		return nil
	}

	resident, err := repo.FindUser(ctx, *delivery.ResidentUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load resident")
	}

	channel := enums.NotificationChannelPush
	if !hasPushDestination(resident) {
		if strings.TrimSpace(resident.Email) == "" {
			return nil
		}
		channel = enums.NotificationChannelEmail
	}

	notification := &models.Notification{
		CondoID:    condoID,
		UserID:     resident.ID,
		DeliveryID: &delivery.ID,
		Channel:    channel,
		Status:     enums.NotificationStatusPending,
		Title:      title,
		Body:       body,
	}
	if err := s.outbox.InsertTx(ctx, tx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert lifecycle notification")
	}
	return nil
}

func (s *service) Edit(ctx context.Context, input EditInput) error {
	if err := requireOperator(input.Actor); err != nil {
		return err
	}
	if input.DeliveryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}

	updates := map[string]any{}
	if input.Marketplace != nil {
		trimmed := strings.TrimSpace(*input.Marketplace)
		if trimmed == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "marketplace cannot be empty")
		}
		updates["marketplace"] = trimmed
	}
	if input.Observations != nil {
		updates["observations"] = *input.Observations
	}
	if input.TrackingCode != nil {
		updates["tracking_code"] = *input.TrackingCode
	}
	if input.Urgent != nil {
		updates["urgent"] = *input.Urgent
	}
	if input.PackageType != nil {
		if !input.PackageType.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid package type")
		}
		updates["package_type"] = *input.PackageType
	}
	if len(updates) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	rows, err := s.repo.UpdateEditable(ctx, input.DeliveryID, *input.Actor.CondoID, input.Actor.UserID, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery no longer available")
	}
	return nil
}

func (s *service) MintQRCode(ctx context.Context, input MintQRCodeInput) (*QRCodeOutput, error) {
	if input.Actor == nil || input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Actor.CondoID == nil || input.Actor.Role == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "condominium context missing")
	}
	if input.DeliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}

	condoID := *input.Actor.CondoID
	delivery, err := s.repo.Find(ctx, input.DeliveryID, condoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	if delivery.Status != enums.DeliveryStatusReceived {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "delivery no longer available")
	}

	// Residents may only mint codes for their own packages.
	if input.Actor.IsResident() {
		if delivery.ResidentUserID == nil || *delivery.ResidentUserID != input.Actor.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery belongs to another resident")
		}
	} else if !input.Actor.CanOperateDeliveries() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot mint pickup codes")
	}

	now := time.Now().UTC()
	token, err := auth.MintQRPickupToken(s.jwtCfg, now, delivery.ID, condoID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint qr token")
	}
	return &QRCodeOutput{
		Token:     token,
		ExpiresAt: now.Add(s.jwtCfg.QRCodeTTL()),
	}, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*DeliveryList, error) {
	actor := input.Actor
	if actor == nil || actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actor.CondoID == nil || !actor.CanListDeliveries() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no access to this condominium")
	}
	if input.CondoID == uuid.Nil || *actor.CondoID != input.CondoID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "condominium mismatch")
	}

	filters := input.Filters
	if actor.IsResident() {
		// Self-service isolation happens inside the query: any caller-supplied
		// resident filter is replaced by the caller's own id.
		self := actor.UserID
		filters.ResidentUserID = &self
	}

	params := input.Page.Normalize()

	var (
		items []DeliveryRow
		total int64
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		rows, err := s.repo.ListPage(groupCtx, input.CondoID, filters, params)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list deliveries")
		}
		items = rows
		return nil
	})
	group.Go(func() error {
		count, err := s.repo.Count(groupCtx, input.CondoID, filters)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count deliveries")
		}
		total = count
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if items == nil {
		items = []DeliveryRow{}
	}
	return &DeliveryList{
		Items: items,
		Meta:  pagination.MetaFor(params, total),
	}, nil
}
