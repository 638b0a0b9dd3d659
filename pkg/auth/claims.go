package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID    uuid.UUID
	AccountID *uuid.UUID
	JTI       string
}

// AccessTokenClaims represents the typed JWT issued to clients. The token
// carries identity only; the effective role inside a condominium is resolved
// per request from live account and membership state.
type AccessTokenClaims struct {
	UserID    uuid.UUID  `json:"user_id"`
	AccountID *uuid.UUID `json:"account_id,omitempty"`
	jwt.RegisteredClaims
}

// QRPickupClaims is the short-lived token embedded in a pickup QR code.
type QRPickupClaims struct {
	DeliveryID uuid.UUID `json:"delivery_id"`
	CondoID    uuid.UUID `json:"condo_id"`
	jwt.RegisteredClaims
}
