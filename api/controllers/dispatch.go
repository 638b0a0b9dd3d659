package controllers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lucasvieira/condoplex-backend/api/responses"
	"github.com/lucasvieira/condoplex-backend/api/validators"
	"github.com/lucasvieira/condoplex-backend/internal/notifications"
	"github.com/lucasvieira/condoplex-backend/pkg/config"
	"github.com/lucasvieira/condoplex-backend/pkg/enums"
	pkgerrors "github.com/lucasvieira/condoplex-backend/pkg/errors"
	"github.com/lucasvieira/condoplex-backend/pkg/logger"
	"github.com/lucasvieira/condoplex-backend/pkg/redis"
)

const dispatchTokenHeader = "X-Dispatch-Token"

// DispatchTrigger drains one notification channel on demand. The endpoint is
// meant for schedulers, not end users, and is guarded by a shared token. The
// redis lease keeps overlapping triggers from draining the same queue twice.
func DispatchTrigger(dispatcher notifications.Dispatcher, leaser *redis.Client, cfg config.DispatchConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.TriggerToken == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "dispatch trigger disabled"))
			return
		}
		provided := strings.TrimSpace(r.Header.Get(dispatchTokenHeader))
		if subtle.ConstantTimeCompare([]byte(provided), []byte(cfg.TriggerToken)) != 1 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid dispatch token"))
			return
		}

		channel, err := enums.ParseNotificationChannel(strings.TrimSpace(chi.URLParam(r, "channel")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid channel"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", cfg.BatchLimit, 1, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if leaser != nil {
			lease, held, err := leaser.AcquireLease(r.Context(), "dispatch:"+string(channel), cfg.LockTTL)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire dispatch lease"))
				return
			}
			if !held {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "dispatch already running for this channel"))
				return
			}
			defer func() {
				if err := lease.Release(r.Context()); err != nil && logg != nil {
					logg.Warn(logg.WithField(r.Context(), "channel", string(channel)), "failed to release dispatch lease")
				}
			}()
		}

		result, err := dispatcher.Dispatch(r.Context(), channel, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
