package billing

import (
	"context"
	"errors"
)

// ErrDisabled is returned for purchases when no billing key is configured.
var ErrDisabled = errors.New("billing is not configured")

// Disabled stands in for the client when no API key is configured: every
// user is free and nothing can be bought.
type Disabled struct{}

func (Disabled) CustomerInfo(_ context.Context, appUserID string) (*CustomerInfo, error) {
	return &CustomerInfo{AppUserID: appUserID, ActiveEntitlements: map[string]Entitlement{}}, nil
}

func (Disabled) Offerings(context.Context, string) (*Offerings, error) {
	return &Offerings{}, nil
}

func (Disabled) PostReceipt(context.Context, ReceiptRequest) (*CustomerInfo, error) {
	return nil, ErrDisabled
}
