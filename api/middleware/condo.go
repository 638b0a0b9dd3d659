package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lucasvieira/condoplex-backend/api/responses"
	"github.com/lucasvieira/condoplex-backend/internal/tenancy"
	pkgerrors "github.com/lucasvieira/condoplex-backend/pkg/errors"
	"github.com/lucasvieira/condoplex-backend/pkg/logger"
)

// CondoContext resolves the caller's effective role inside the condominium
// named by the route and seeds the request context with the result. The role
// is computed fresh on every request from live account and membership rows;
// nothing survives across requests.
func CondoContext(resolver tenancy.Resolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFromContext(r.Context())
			if userID == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
				return
			}

			condoID, err := uuid.Parse(chi.URLParam(r, "condoId"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid condominium id"))
				return
			}

			authCtx, err := resolver.Resolve(r.Context(), userID, &condoID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithAuth(r.Context(), authCtx)
			if logg != nil {
				ctx = logg.WithCondoID(ctx, condoID.String())
				if role := authCtx.RoleName(); role != "" {
					ctx = logg.WithActorRole(ctx, role)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
