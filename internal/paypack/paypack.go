package paypack

import (
	"context"
)

// CashinRequest contains the data needed to initiate a cash-in.
type CashinRequest struct {
	Amount      int64
	PhoneNumber string
}

// CashinResult holds the result of a cash-in initiation.
type CashinResult struct {
	Ref      string
	Status   string // provider-side status at initiation, usually "pending"
	Provider string // mobile-money network that will collect
}

// Gateway is the interface the order lifecycle uses to reach Paypack.
type Gateway interface {
	// Cashin initiates a mobile-money collection against the customer's
	// phone and returns the provider-assigned transaction reference.
	Cashin(ctx context.Context, req CashinRequest) (*CashinResult, error)
}
