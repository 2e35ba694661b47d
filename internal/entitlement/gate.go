package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/forcetech/cookvision/internal/billing"
	"github.com/forcetech/cookvision/internal/telemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// UsageKey is the storage key of the daily usage record.
const UsageKey = "daily_scan_usage"

// Store is the key-value persistence the gate needs. Update must apply fn
// atomically.
type Store interface {
	Get(ctx context.Context, profile, key string) ([]byte, error)
	Update(ctx context.Context, profile, key string, fn func(current []byte) ([]byte, error)) error
}

// Billing is the subset of the billing client the gate uses.
type Billing interface {
	CustomerInfo(ctx context.Context, appUserID string) (*billing.CustomerInfo, error)
	Offerings(ctx context.Context, appUserID string) (*billing.Offerings, error)
	PostReceipt(ctx context.Context, receipt billing.ReceiptRequest) (*billing.CustomerInfo, error)
}

// ScanUsage counts scans made on one UTC day.
type ScanUsage struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// PurchaseResult is the outcome of a purchase attempt.
type PurchaseResult string

const (
	PurchaseSuccess       PurchaseResult = "success"
	PurchaseNoEntitlement PurchaseResult = "no_entitlement"
	PurchaseCancelled     PurchaseResult = "cancelled"
	PurchaseFailed        PurchaseResult = "failed"
)

// Gate answers quota and subscription questions for profiles.
type Gate struct {
	store   Store
	billing Billing
	now     func() time.Time
	pro     singleflight.Group
	// AppUserID maps a profile to its billing user id.
	AppUserID func(profile string) string
	// Sink receives failed and incomplete purchases.
	Sink telemetry.Sink
}

// NewGate creates a gate. A nil billing client treats everyone as free.
func NewGate(store Store, b Billing) *Gate {
	if b == nil {
		b = billing.Disabled{}
	}
	return &Gate{
		store:     store,
		billing:   b,
		now:       time.Now,
		AppUserID: func(profile string) string { return profile },
		Sink:      telemetry.Nop{},
	}
}

func (g *Gate) today() string {
	return g.now().UTC().Format("2006-01-02")
}

// DailyUsage returns today's usage. A record from another day counts as
// zero. Storage errors also count as zero so a broken store never blocks
// scanning.
func (g *Gate) DailyUsage(ctx context.Context, profile string) ScanUsage {
	today := g.today()
	fresh := ScanUsage{Date: today, Count: 0}

	b, err := g.store.Get(ctx, profile, UsageKey)
	if err != nil {
		log.Warn().Err(err).Str("profile", profile).Bool("failOpen", true).Msg("failed to read scan usage")
		return fresh
	}
	if b == nil {
		return fresh
	}
	var usage ScanUsage
	if err := json.Unmarshal(b, &usage); err != nil {
		log.Warn().Err(err).Str("profile", profile).Bool("failOpen", true).Msg("corrupt scan usage")
		return fresh
	}
	if usage.Date != today {
		return fresh
	}
	return usage
}

// CanScan reports whether another scan is allowed today.
func (g *Gate) CanScan(ctx context.Context, profile string, isPro bool) bool {
	if isPro {
		return true
	}
	return g.DailyUsage(ctx, profile).Count < FreeDailyScans
}

// RecordScan adds one scan to today's count. Failures are logged only.
func (g *Gate) RecordScan(ctx context.Context, profile string) {
	today := g.today()
	err := g.store.Update(ctx, profile, UsageKey, func(current []byte) ([]byte, error) {
		usage := ScanUsage{Date: today}
		if current != nil {
			var stored ScanUsage
			if err := json.Unmarshal(current, &stored); err == nil && stored.Date == today {
				usage = stored
			}
		}
		usage.Count++
		return json.Marshal(usage)
	})
	if err != nil {
		log.Error().Err(err).Str("profile", profile).Msg("failed to record scan")
	}
}

// RemainingScans is unlimited for pro and FreeDailyScans minus today's
// count, never below zero, for free users.
func (g *Gate) RemainingScans(ctx context.Context, profile string, isPro bool) Remaining {
	if isPro {
		return Remaining{Unlimited: true}
	}
	return Remaining{Count: max(0, FreeDailyScans-g.DailyUsage(ctx, profile).Count)}
}

// CheckProStatus asks billing whether the profile has the pro entitlement.
// Concurrent calls for one profile share a single request; the next call
// after it settles asks again. Errors count as not pro.
func (g *Gate) CheckProStatus(ctx context.Context, profile string) bool {
	ch := g.pro.DoChan(profile, func() (any, error) {
		info, err := g.billing.CustomerInfo(context.WithoutCancel(ctx), g.AppUserID(profile))
		if err != nil {
			return false, err
		}
		return info.HasEntitlement(ProEntitlementID), nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			log.Warn().Err(res.Err).Str("profile", profile).Msg("failed to check pro status")
			return false
		}
		return res.Val.(bool)
	case <-ctx.Done():
		return false
	}
}

// Offerings returns the offering to show for language, or nil.
func (g *Gate) Offerings(ctx context.Context, profile, language string) *billing.Offering {
	offerings, err := g.billing.Offerings(ctx, g.AppUserID(profile))
	if err != nil {
		log.Warn().Err(err).Str("profile", profile).Msg("failed to fetch offerings")
		return nil
	}
	off, ok := offerings.ForLanguage(language)
	if !ok {
		return nil
	}
	return off
}

// Purchase registers a store purchase of pkg with token and reports whether
// it unlocked pro.
func (g *Gate) Purchase(ctx context.Context, profile string, pkg billing.Package, token string) PurchaseResult {
	info, err := g.billing.PostReceipt(ctx, billing.ReceiptRequest{
		AppUserID:  g.AppUserID(profile),
		FetchToken: token,
		ProductID:  pkg.PlatformProductIdentifier,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return PurchaseCancelled
		}
		g.Sink.RecordError(ctx, "purchase failed", err, attribute.String("package", pkg.Identifier))
		log.Error().Err(err).Str("profile", profile).Str("package", pkg.Identifier).Msg("purchase failed")
		return PurchaseFailed
	}
	if info.HasEntitlement(ProEntitlementID) {
		return PurchaseSuccess
	}
	g.Sink.Log(ctx, telemetry.LevelWarn, "purchase completed but entitlement not active",
		attribute.String("package", pkg.Identifier),
		attribute.String("product", pkg.PlatformProductIdentifier),
	)
	log.Warn().Str("profile", profile).Str("package", pkg.Identifier).Msg("purchase completed but entitlement not active")
	return PurchaseNoEntitlement
}

// Restore re-validates earlier purchases. Without a token it only refreshes
// the subscriber state.
func (g *Gate) Restore(ctx context.Context, profile, token string) bool {
	var (
		info *billing.CustomerInfo
		err  error
	)
	if token == "" {
		info, err = g.billing.CustomerInfo(ctx, g.AppUserID(profile))
	} else {
		info, err = g.billing.PostReceipt(ctx, billing.ReceiptRequest{
			AppUserID:  g.AppUserID(profile),
			FetchToken: token,
			IsRestore:  true,
		})
	}
	if err != nil {
		log.Error().Err(err).Str("profile", profile).Msg("restore failed")
		return false
	}
	return info.HasEntitlement(ProEntitlementID)
}

// String formats remaining scans for display.
func (r Remaining) String() string {
	if r.Unlimited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", r.Count)
}
