package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lucasvieira/condoplex-backend/api/responses"
	"github.com/lucasvieira/condoplex-backend/api/validators"
	"github.com/lucasvieira/condoplex-backend/internal/memberships"
	"github.com/lucasvieira/condoplex-backend/pkg/enums"
	pkgerrors "github.com/lucasvieira/condoplex-backend/pkg/errors"
	"github.com/lucasvieira/condoplex-backend/pkg/logger"
)

type linkMembershipRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Role   string `json:"role" validate:"required"`
}

// MembershipLink attaches a user to the condominium with a role.
func MembershipLink(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireAuth(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req linkMembershipRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}
		role, err := enums.ParseMembershipRole(req.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
			return
		}

		condoID := uuid.Nil
		if actor.CondoID != nil {
			condoID = *actor.CondoID
		}

		membership, err := svc.Link(r.Context(), memberships.LinkInput{
			Actor:   actor,
			CondoID: condoID,
			UserID:  userID,
			Role:    role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, membership)
	}
}

// MembershipUnlink deactivates a membership without deleting the row.
func MembershipUnlink(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireAuth(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "userId"))
		userID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		condoID := uuid.Nil
		if actor.CondoID != nil {
			condoID = *actor.CondoID
		}

		err = svc.Unlink(r.Context(), memberships.UnlinkInput{
			Actor:   actor,
			CondoID: condoID,
			UserID:  userID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "unlinked"})
	}
}

// MembershipList returns the active memberships of the condominium.
func MembershipList(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireAuth(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !actor.CanManageMemberships() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot manage memberships"))
			return
		}

		condoID := uuid.Nil
		if actor.CondoID != nil {
			condoID = *actor.CondoID
		}

		rows, err := svc.ListByCondo(r.Context(), condoID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
