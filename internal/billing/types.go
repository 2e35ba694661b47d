package billing

import (
	"time"
)

// CustomerInfo is the subscriber state the app cares about.
type CustomerInfo struct {
	AppUserID          string
	ActiveEntitlements map[string]Entitlement
}

// HasEntitlement reports whether id is currently active.
func (c *CustomerInfo) HasEntitlement(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.ActiveEntitlements[id]
	return ok
}

// Entitlement is an active entitlement. ExpiresAt is nil for lifetime access.
type Entitlement struct {
	ProductID string
	ExpiresAt *time.Time
}

type subscriberResponse struct {
	Subscriber subscriber `json:"subscriber"`
}

type subscriber struct {
	OriginalAppUserID string                    `json:"original_app_user_id"`
	Entitlements      map[string]rawEntitlement `json:"entitlements"`
}

type rawEntitlement struct {
	ExpiresDate       *time.Time `json:"expires_date"`
	ProductIdentifier string     `json:"product_identifier"`
	PurchaseDate      *time.Time `json:"purchase_date"`
}

// toCustomerInfo keeps entitlements that never expire or expire after now.
func (s subscriber) toCustomerInfo(now time.Time) *CustomerInfo {
	info := &CustomerInfo{
		AppUserID:          s.OriginalAppUserID,
		ActiveEntitlements: map[string]Entitlement{},
	}
	for id, e := range s.Entitlements {
		if e.ExpiresDate != nil && !e.ExpiresDate.After(now) {
			continue
		}
		info.ActiveEntitlements[id] = Entitlement{ProductID: e.ProductIdentifier, ExpiresAt: e.ExpiresDate}
	}
	return info
}

// Offerings lists what can be bought.
type Offerings struct {
	CurrentOfferingID string     `json:"current_offering_id"`
	Offerings         []Offering `json:"offerings"`
}

// Offering is a named set of packages.
type Offering struct {
	Identifier  string    `json:"identifier"`
	Description string    `json:"description"`
	Packages    []Package `json:"packages"`
}

// Package is one purchasable product.
type Package struct {
	Identifier                string `json:"identifier"`
	PlatformProductIdentifier string `json:"platform_product_identifier"`
}

// ByID returns the offering with identifier id.
func (o *Offerings) ByID(id string) (*Offering, bool) {
	if o == nil {
		return nil, false
	}
	for i := range o.Offerings {
		if o.Offerings[i].Identifier == id {
			return &o.Offerings[i], true
		}
	}
	return nil, false
}

// Current returns the current offering if there is one.
func (o *Offerings) Current() (*Offering, bool) {
	if o == nil || o.CurrentOfferingID == "" {
		return nil, false
	}
	return o.ByID(o.CurrentOfferingID)
}

// ForLanguage picks "<language>_default" when it has packages and falls
// back to the current offering.
func (o *Offerings) ForLanguage(language string) (*Offering, bool) {
	if off, ok := o.ByID(language + "_default"); ok && len(off.Packages) > 0 {
		return off, true
	}
	return o.Current()
}

// FindPackage looks a package up by identifier.
func (o *Offering) FindPackage(id string) (*Package, bool) {
	for i := range o.Packages {
		if o.Packages[i].Identifier == id {
			return &o.Packages[i], true
		}
	}
	return nil, false
}
