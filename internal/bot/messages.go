package bot

// =============================================================================
// General messages
// =============================================================================

const (
	MsgOk            = `Ok!`
	MsgUnexpectedErr = `Unexpected error: %s`
	MsgVersionInfo   = "Version: %s\nBuilt: %s"
	MsgCancelled     = "Cancelled."
	MsgNothingToStop = "Nothing to cancel."
)

// =============================================================================
// Onboarding and help
// =============================================================================

const (
	MsgWelcome = `
		👋 *Welcome to CookVision!*

		Send me a photo of your open fridge and I will list what I see and suggest recipes you can cook right now.

		Free plan: %d scans per day, %d favorite recipes.
		Pick the language for recipes with /language.
	`
	MsgStartPrompt = "Send a photo of your fridge to get recipe ideas 📸"
	MsgHelp        = `
		*Commands*
		/recent - recent scans
		/favorites - saved recipes
		/language - recipe language
		/usage - scans left today
		/pro - CookVision Pro
		/restore - restore purchases
		/cancel - stop the current scan
	`
)

// =============================================================================
// Scan messages
// =============================================================================

const (
	MsgAnalyzing          = "🔍 Looking into your fridge..."
	MsgPhotoReadFailed    = "I could not read that photo. Please try another one."
	MsgPhotoDownloadFail  = "Downloading the photo failed. Please send it again."
	MsgNotFridge          = "🤔 That does not look like the inside of a fridge. Try a photo of your open fridge with the shelves visible."
	MsgAnalysisFailed     = "Something went wrong while analyzing the photo. Please try again."
	MsgScanLimitReached   = "You have used all %d free scans for today. Come back tomorrow or upgrade with /pro."
	MsgRemainingScans     = "Scans left today: %s"
	MsgProductsHeader     = "*Found %s:*"
	MsgNoProducts         = "No products recognized."
	MsgCompleteHeader     = "✅ *Ready to cook*"
	MsgNeedMoreHeader     = "🛒 *Need a few more things*"
	MsgNoRecipes          = "No recipe ideas this time."
	MsgRecipeNotAvailable = "That recipe is no longer available."
	MsgMoreRecipesFailed  = "Could not come up with more recipes right now."
	MsgMoreRecipesNone    = "No more ideas for these products."
	MsgMoreRecipesHeader  = "💡 *More ideas*"
)

// =============================================================================
// Recipe details
// =============================================================================

const (
	MsgIngredients  = "*Ingredients*"
	MsgMissing      = "*Missing:* %s"
	MsgInstructions = "*Instructions*"
	MsgSubstitution = "*Swap:* %s → %s"
	MsgAlternatives = "*Simpler options*"
	MsgPrepTime     = "⏱ %s"
	MsgDifficulty   = "📊 %s"
)

// =============================================================================
// Recent scans and favorites
// =============================================================================

const (
	MsgNoRecentScans        = "No recent scans yet. Send a photo to start."
	MsgRecentScansHeader    = "*Recent scans*"
	MsgScanNotFound         = "That scan is no longer saved."
	MsgScanDeleted          = "🗑 Scan deleted."
	MsgNoFavorites          = "No favorite recipes yet. Tap ☆ under a recipe to save it."
	MsgFavoritesHeader      = "*Favorite recipes* (%d/%d)"
	MsgFavoriteSaved        = "Saved to favorites"
	MsgFavoriteRemoved      = "Removed from favorites"
	MsgFavoritesFull        = "Favorites are full (%d). Remove one or upgrade with /pro."
	MsgFavoritesFullCallout = "Favorites are full"
)

// =============================================================================
// Language
// =============================================================================

const (
	MsgChooseLanguage  = "Choose the language for products and recipes (current: %s)"
	MsgLanguageChanged = "Recipes will now be in %s."
	MsgUnknownLanguage = "Unknown language."
)

// =============================================================================
// Subscription
// =============================================================================

const (
	MsgUsageFree = `
		Plan: Free
		Scans used today: %d/%d
		Favorites: %d/%d
	`
	MsgUsagePro = `
		Plan: *Pro* ⭐
		Scans: unlimited
		Favorites: %d/%d
	`
	MsgProActive  = "⭐ You already have CookVision Pro. Thank you!"
	MsgProOffer   = "*CookVision Pro*\nUnlimited scans, %d favorites, %d recent scans.\n"
	MsgProPackage = "• %s"
	MsgProNoOffer = "Upgrades are not available right now."
	MsgProHowTo   = "\nUpgrade in the CookVision app, then use /restore here."
	MsgRestoreOk  = "⭐ Pro restored. Enjoy unlimited scans!"
	MsgRestoreNo  = "No active Pro subscription found."
)

// =============================================================================
// Admin
// =============================================================================

const (
	MsgDebugLogsEmpty  = "No warnings or errors recorded."
	MsgDebugLogsHeader = "*Last %d log entries*\n"
	MsgDebugLogsClear  = "Log buffer cleared."
)

// =============================================================================
// Buttons
// =============================================================================

const (
	BtnFavorite      = "☆ Save"
	BtnUnfavorite    = "★ Saved"
	BtnMoreRecipes   = "💡 More ideas"
	BtnDeleteScan    = "🗑 Delete"
	BtnShowScan      = "%s · %s"
)
