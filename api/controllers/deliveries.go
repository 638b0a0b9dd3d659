package controllers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lucasvieira/condoplex-backend/api/middleware"
	"github.com/lucasvieira/condoplex-backend/api/responses"
	"github.com/lucasvieira/condoplex-backend/api/validators"
	"github.com/lucasvieira/condoplex-backend/internal/deliveries"
	"github.com/lucasvieira/condoplex-backend/internal/tenancy"
	"github.com/lucasvieira/condoplex-backend/pkg/enums"
	pkgerrors "github.com/lucasvieira/condoplex-backend/pkg/errors"
	"github.com/lucasvieira/condoplex-backend/pkg/logger"
	"github.com/lucasvieira/condoplex-backend/pkg/pagination"
)

// maxIntakePhotoBytes caps the photo part of an intake request.
const maxIntakePhotoBytes = 10 << 20

type manualPickupRequest struct {
	RecipientName     string `json:"recipient_name" validate:"required"`
	RecipientDocument string `json:"recipient_document"`
}

type qrPickupRequest struct {
	Token string `json:"token" validate:"required"`
}

type cancelDeliveryRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type editDeliveryRequest struct {
	Marketplace  *string `json:"marketplace"`
	Observations *string `json:"observations"`
	TrackingCode *string `json:"tracking_code"`
	Urgent       *bool   `json:"urgent"`
	PackageType  *string `json:"package_type"`
}

func requireAuth(r *http.Request) (*tenancy.AuthContext, error) {
	actor := middleware.AuthFromContext(r.Context())
	if actor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authorization context missing")
	}
	return actor, nil
}

func parseDeliveryID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "deliveryId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery id")
	}
	return id, nil
}

// DeliveryIntake registers a package. The request is multipart so the front
// desk can attach a photo; every other field travels as a form value.
func DeliveryIntake(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireAuth(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := parseIntakeForm(r, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.Intake(r.Context(), *input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, delivery)
	}
}

func parseIntakeForm(r *http.Request, actor *tenancy.AuthContext) (*deliveries.IntakeInput, error) {
	if err := r.ParseMultipartForm(maxIntakePhotoBytes); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}

	condoID := uuid.Nil
	if actor.CondoID != nil {
		condoID = *actor.CondoID
	}

	input := &deliveries.IntakeInput{
		Actor:       actor,
		CondoID:     condoID,
		Unit:        strings.TrimSpace(r.FormValue("unit")),
		Block:       strings.TrimSpace(r.FormValue("block")),
		Marketplace: strings.TrimSpace(r.FormValue("marketplace")),
	}

	if raw := strings.TrimSpace(r.FormValue("tracking_code")); raw != "" {
		input.TrackingCode = &raw
	}
	if raw := strings.TrimSpace(r.FormValue("observations")); raw != "" {
		input.Observations = &raw
	}
	if raw := strings.TrimSpace(r.FormValue("resident_user_id")); raw != "" {
		residentID, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid resident user id")
		}
		input.ResidentUserID = &residentID
	}
	if raw := strings.TrimSpace(r.FormValue("urgent")); raw != "" {
		urgent, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid urgent flag")
		}
		input.Urgent = urgent
	}
	if raw := strings.TrimSpace(r.FormValue("package_type")); raw != "" {
		packageType, err := enums.ParsePackageType(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid package type")
		}
		input.PackageType = packageType
	}

	file, header, err := r.FormFile("photo")
	switch {
	case err == nil:
		defer file.Close()
		photo, readErr := readPhoto(file)
		if readErr != nil {
			return nil, readErr
		}
		input.Photo = photo
		input.PhotoFilename = header.Filename
	case err == http.ErrMissingFile:
		// Photo is optional.
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid photo upload")
	}

	return input, nil
}

func readPhoto(file multipart.File) ([]byte, error) {
	photo, err := io.ReadAll(io.LimitReader(file, maxIntakePhotoBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading photo upload")
	}
	if len(photo) > maxIntakePhotoBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "photo exceeds the size limit")
	}
	return photo, nil
}

// DeliveryManualPickup hands a package over against a typed-in recipient.
func DeliveryManualPickup(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireAuth(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deliveryID, err := parseDeliveryID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req manualPickupRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.ManualPickup(r.Context(), deliveries.ManualPickupInput{
			Actor:             actor,
			DeliveryID:        deliveryID,
			RecipientName:     req.RecipientName,
			RecipientDocument: req.RecipientDocument,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "delivered"})
	}
}

// DeliveryQrPickup hands a package over against a scanned QR token.
func DeliveryQrPickup(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireAuth(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req qrPickupRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.QrPickup(r.Context(), deliveries.QrPickupInput{
			Actor: actor,
			Token: req.Token,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "delivered"})
	}
}

// DeliveryCancel voids a received delivery with a mandatory reason.
func DeliveryCancel(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireAuth(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deliveryID, err := parseDeliveryID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelDeliveryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.Cancel(r.Context(), deliveries.CancelInput{
			Actor:      actor,
			DeliveryID: deliveryID,
			Reason:     req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

// DeliveryEdit corrects intake fields while the delivery is still received.
func DeliveryEdit(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireAuth(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deliveryID, err := parseDeliveryID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req editDeliveryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := deliveries.EditInput{
			Actor:        actor,
			DeliveryID:   deliveryID,
			Marketplace:  req.Marketplace,
			Observations: req.Observations,
			TrackingCode: req.TrackingCode,
			Urgent:       req.Urgent,
		}
		if req.PackageType != nil {
			packageType, err := enums.ParsePackageType(*req.PackageType)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid package type"))
				return
			}
			input.PackageType = &packageType
		}

		if err := svc.Edit(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

// DeliveryMintQRCode issues a short-lived pickup token for a received delivery.
func DeliveryMintQRCode(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireAuth(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deliveryID, err := parseDeliveryID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		output, err := svc.MintQRCode(r.Context(), deliveries.MintQRCodeInput{
			Actor:      actor,
			DeliveryID: deliveryID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, output)
	}
}

// DeliveryList returns one condominium's delivery page. Resident callers are
// scoped to their own rows inside the service regardless of filters.
func DeliveryList(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireAuth(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		condoID := uuid.Nil
		if actor.CondoID != nil {
			condoID = *actor.CondoID
		}

		page, err := validators.ParseQueryInt(r, "page", 1, 1, 1<<30)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters, err := buildListFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), deliveries.ListInput{
			Actor:   actor,
			CondoID: condoID,
			Filters: *filters,
			Page:    pagination.Params{Page: page, Limit: limit},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func buildListFilters(r *http.Request) (*deliveries.ListFilters, error) {
	filters := &deliveries.ListFilters{}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseDeliveryStatus(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filters.Status = &status
	}

	residentID, err := validators.ParseQueryUUID(r, "resident_user_id")
	if err != nil {
		return nil, err
	}
	filters.ResidentUserID = residentID

	urgent, err := validators.ParseQueryBool(r, "urgent")
	if err != nil {
		return nil, err
	}
	filters.Urgent = urgent

	filters.Unit = validators.ParseQueryString(r, "unit")
	filters.Block = validators.ParseQueryString(r, "block")

	return filters, nil
}
