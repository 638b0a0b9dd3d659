package deliveries

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasvieira/condoplex-backend/internal/tenancy"
	"github.com/lucasvieira/condoplex-backend/pkg/enums"
	"github.com/lucasvieira/condoplex-backend/pkg/pagination"
)

// IntakeInput registers a package at the front desk.
type IntakeInput struct {
	Actor          *tenancy.AuthContext
	CondoID        uuid.UUID
	Unit           string
	Block          string
	Marketplace    string
	TrackingCode   *string
	ResidentUserID *uuid.UUID
	Photo          []byte
	PhotoFilename  string
	Urgent         bool
	PackageType    enums.PackageType
	Observations   *string
}

// ManualPickupInput hands a package over against a named recipient.
type ManualPickupInput struct {
	Actor             *tenancy.AuthContext
	DeliveryID        uuid.UUID
	RecipientName     string
	RecipientDocument string
}

// QrPickupInput hands a package over against a scanned QR token.
type QrPickupInput struct {
	Actor *tenancy.AuthContext
	Token string
}

// CancelInput voids a received delivery with a mandatory reason.
type CancelInput struct {
	Actor      *tenancy.AuthContext
	DeliveryID uuid.UUID
	Reason     string
}

// EditInput corrects intake fields while the delivery is still received.
// Nil fields are left untouched.
type EditInput struct {
	Actor        *tenancy.AuthContext
	DeliveryID   uuid.UUID
	Marketplace  *string
	Observations *string
	TrackingCode *string
	Urgent       *bool
	PackageType  *enums.PackageType
}

// MintQRCodeInput issues a short-lived pickup token for a received delivery.
type MintQRCodeInput struct {
	Actor      *tenancy.AuthContext
	DeliveryID uuid.UUID
}

// QRCodeOutput carries the signed pickup token and its expiry.
type QRCodeOutput struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ListFilters narrows a delivery listing. The resident filter is overridden
// for resident callers.
type ListFilters struct {
	Status         *enums.DeliveryStatus
	ResidentUserID *uuid.UUID
	Unit           *string
	Block          *string
	Urgent         *bool
}

// ListInput queries one condominium's deliveries.
type ListInput struct {
	Actor   *tenancy.AuthContext
	CondoID uuid.UUID
	Filters ListFilters
	Page    pagination.Params
}

// DeliveryRow is the denormalized listing shape with operator names joined in.
type DeliveryRow struct {
	ID                uuid.UUID            `json:"id"`
	CondoID           uuid.UUID            `json:"condo_id"`
	Status            enums.DeliveryStatus `json:"status"`
	Unit              string               `json:"unit"`
	Block             string               `json:"block"`
	Marketplace       string               `json:"marketplace"`
	TrackingCode      *string              `json:"tracking_code"`
	ResidentUserID    *uuid.UUID           `json:"resident_user_id"`
	ResidentName      *string              `json:"resident_name"`
	PhotoURL          *string              `json:"photo_url"`
	Urgent            bool                 `json:"urgent"`
	PackageType       enums.PackageType    `json:"package_type"`
	Observations      *string              `json:"observations"`
	ReceivedAt        time.Time            `json:"received_at"`
	ReceivedByName    *string              `json:"received_by_name"`
	DeliveredAt       *time.Time           `json:"delivered_at"`
	DeliveredByName   *string              `json:"delivered_by_name"`
	RecipientName     *string              `json:"recipient_name"`
	RecipientDocument *string              `json:"recipient_document"`
	CancelledAt       *time.Time           `json:"cancelled_at"`
	CancelReason      *string              `json:"cancel_reason"`
}

// DeliveryList is one page of rows plus the paging metadata.
type DeliveryList struct {
	Items []DeliveryRow   `json:"items"`
	Meta  pagination.Meta `json:"meta"`
}
