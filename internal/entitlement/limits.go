// Package entitlement decides what the free and pro tiers may do.
package entitlement

const (
	FreeDailyScans     = 3
	FreeMaxFavorites   = 5
	ProMaxFavorites    = 25
	FreeMaxRecentScans = 5
	ProMaxRecentScans  = 50

	// ProEntitlementID is the billing entitlement that unlocks the pro tier.
	ProEntitlementID = "pro"
)

// MaxFavorites is how many favorite recipes a tier may keep.
func MaxFavorites(isPro bool) int {
	if isPro {
		return ProMaxFavorites
	}
	return FreeMaxFavorites
}

// MaxRecentScans is how many recent scans a tier keeps.
func MaxRecentScans(isPro bool) int {
	if isPro {
		return ProMaxRecentScans
	}
	return FreeMaxRecentScans
}

// Remaining is the number of scans left today.
type Remaining struct {
	Unlimited bool
	Count     int
}
