package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasvieira/condoplex-backend/pkg/db/models"
	"github.com/lucasvieira/condoplex-backend/pkg/enums"
	pkgerrors "github.com/lucasvieira/condoplex-backend/pkg/errors"
	"github.com/lucasvieira/condoplex-backend/pkg/logger"
	"github.com/lucasvieira/condoplex-backend/pkg/mail"
	"github.com/lucasvieira/condoplex-backend/pkg/metrics"
	"github.com/lucasvieira/condoplex-backend/pkg/push"
)

const defaultDispatchLimit = 50

// PushSender is the Expo gateway surface the dispatcher needs.
type PushSender interface {
	Send(ctx context.Context, messages []push.Message) ([]push.Ticket, error)
}

// EmailSender is the per-item email transport surface.
type EmailSender interface {
	Send(ctx context.Context, email mail.Email) error
}

type dispatcher struct {
	repo    Repository
	pushes  PushSender
	emails  EmailSender
	metrics *metrics.DispatchMetrics
	logg    *logger.Logger
}

// NewDispatcher builds the outbox drain job with the required dependencies.
func NewDispatcher(repo Repository, pushes PushSender, emails EmailSender, m *metrics.DispatchMetrics, logg *logger.Logger) (Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if pushes == nil {
		return nil, fmt.Errorf("push sender required")
	}
	if emails == nil {
		return nil, fmt.Errorf("email sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &dispatcher{
		repo:    repo,
		pushes:  pushes,
		emails:  emails,
		metrics: m,
		logg:    logg,
	}, nil
}

// Dispatch drains up to limit pending rows for one channel. Destinations are
// resolved here, not at creation time, so a token or email changed since the
// row was written is honored. Rows with a structurally invalid destination
// are marked error without a provider call.
func (d *dispatcher) Dispatch(ctx context.Context, channel enums.NotificationChannel, limit int) (*DispatchResult, error) {
	if !channel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification channel")
	}
	if limit <= 0 {
		limit = defaultDispatchLimit
	}

	started := time.Now()
	defer func() {
		d.metrics.ObserveCycle(string(channel), time.Since(started))
	}()

	rows, err := d.repo.FetchPending(ctx, channel, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch pending notifications")
	}

	result := &DispatchResult{Channel: channel, Selected: len(rows)}
	if len(rows) == 0 {
		return result, nil
	}

	switch channel {
	case enums.NotificationChannelPush:
		err = d.dispatchPush(ctx, rows, result)
	case enums.NotificationChannelEmail:
		err = d.dispatchEmail(ctx, rows, result)
	}
	if err != nil {
		return nil, err
	}

	d.metrics.AddSent(string(channel), result.Sent)
	d.metrics.AddErrored(string(channel), result.Errored)
	return result, nil
}

type resolvedRow struct {
	id          uuid.UUID
	destination string
	title       string
	body        string
	deliveryID  *uuid.UUID
}

// resolveDestination returns the row's current destination or an empty string
// with the reason it is unusable.
func (d *dispatcher) resolveDestination(ctx context.Context, userID uuid.UUID, channel enums.NotificationChannel) (string, string, error) {
	user, err := d.repo.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "recipient user no longer exists", nil
		}
		return "", "", err
	}

	switch channel {
	case enums.NotificationChannelPush:
		if user.PushToken == nil || strings.TrimSpace(*user.PushToken) == "" {
			return "", "recipient has no push token", nil
		}
		token := strings.TrimSpace(*user.PushToken)
		if !push.IsValidToken(token) {
			return "", fmt.Sprintf("malformed push token %q", token), nil
		}
		return token, "", nil
	default:
		email := strings.TrimSpace(user.Email)
		if email == "" || !strings.Contains(email, "@") {
			return "", fmt.Sprintf("malformed email address %q", email), nil
		}
		return email, "", nil
	}
}

func (d *dispatcher) dispatchPush(ctx context.Context, rows []models.Notification, result *DispatchResult) error {
	var resolved []resolvedRow
	for _, row := range rows {
		destination, reason, err := d.resolveDestination(ctx, row.UserID, enums.NotificationChannelPush)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve push destination")
		}
		if reason != "" {
			if err := d.repo.MarkError(ctx, row.ID, nil, reason); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification error")
			}
			result.Errored++
			continue
		}
		resolved = append(resolved, resolvedRow{
			id:          row.ID,
			destination: destination,
			title:       row.Title,
			body:        row.Body,
			deliveryID:  row.DeliveryID,
		})
	}
	if len(resolved) == 0 {
		return nil
	}

	messages := make([]push.Message, len(resolved))
	for i, row := range resolved {
		data := map[string]any{"notification_id": row.id.String()}
		if row.deliveryID != nil {
			data["delivery_id"] = row.deliveryID.String()
		}
		messages[i] = push.Message{
			To:    row.destination,
			Title: row.title,
			Body:  row.body,
			Data:  data,
		}
	}

	// A transport failure leaves the whole batch pending; the rows are simply
	// re-selected next cycle. Dispatch is at-least-once.
	tickets, err := d.pushes.Send(ctx, messages)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send push batch")
	}

	var sent []SentRow
	for i, ticket := range tickets {
		if ticket.OK {
			sent = append(sent, SentRow{ID: resolved[i].id, Destination: resolved[i].destination})
			continue
		}
		destination := resolved[i].destination
		if err := d.repo.MarkError(ctx, resolved[i].id, &destination, ticket.Message); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification error")
		}
		result.Errored++
	}

	if err := d.repo.MarkSent(ctx, sent, time.Now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications sent")
	}
	result.Sent += len(sent)
	return nil
}

func (d *dispatcher) dispatchEmail(ctx context.Context, rows []models.Notification, result *DispatchResult) error {
	for _, row := range rows {
		destination, reason, err := d.resolveDestination(ctx, row.UserID, enums.NotificationChannelEmail)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve email destination")
		}
		if reason != "" {
			if err := d.repo.MarkError(ctx, row.ID, nil, reason); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification error")
			}
			result.Errored++
			continue
		}

		// Email is sent per item: one failed row is isolated without
		// blocking its siblings.
		sendErr := d.emails.Send(ctx, mail.Email{
			To:      destination,
			Subject: row.Title,
			Body:    row.Body,
		})
		if sendErr != nil {
			d.logg.Warn(d.logg.WithField(ctx, "notification_id", row.ID.String()), "email send failed")
			if err := d.repo.MarkError(ctx, row.ID, &destination, sendErr.Error()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification error")
			}
			result.Errored++
			continue
		}

		if err := d.repo.MarkSent(ctx, []SentRow{{ID: row.ID, Destination: destination}}, time.Now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification sent")
		}
		result.Sent++
	}
	return nil
}
