package config

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-resty/resty/v2"
)

const (
	TelegramAPIURL = "https://api.telegram.org"
	GeminiAPIURL   = "https://generativelanguage.googleapis.com/v1beta"
)

var envOrder = []string{
	"BOT_TOKEN",
	"GEMINI_API_KEY",
	"PEXELS_API_KEY",
	"REVENUECAT_API_KEY",
	"ADMIN_TELEGRAM_ID",
	"COOKVISION_STORE_KEY",
}

// Validator checks credentials against the live APIs.
type Validator struct {
	client      *resty.Client
	telegramURL string
	geminiURL   string
}

func NewValidator(telegramURL, geminiURL string) *Validator {
	if telegramURL == "" {
		telegramURL = TelegramAPIURL
	}
	if geminiURL == "" {
		geminiURL = GeminiAPIURL
	}
	return &Validator{
		client:      resty.New().SetTimeout(10 * time.Second),
		telegramURL: telegramURL,
		geminiURL:   geminiURL,
	}
}

// TelegramToken validates a bot token by calling getMe.
func (v *Validator) TelegramToken(ctx context.Context, token string) error {
	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description,omitempty"`
	}

	_, err := v.client.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&result).
		Get(fmt.Sprintf("%s/bot%s/getMe", v.telegramURL, token))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.New("connection timed out - check your internet")
		}
		return errors.New("connection failed - check your internet")
	}

	if !result.OK {
		if result.Description != "" {
			return errors.New(result.Description)
		}
		return errors.New("token rejected by Telegram")
	}
	return nil
}

// GeminiKey validates an API key with the lightweight models list endpoint.
func (v *Validator) GeminiKey(ctx context.Context, key string) error {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	resp, err := v.client.R().
		SetContext(ctx).
		SetQueryParam("key", key).
		SetError(&apiErr).
		Get(v.geminiURL + "/models")
	if err != nil {
		return errors.New("connection failed - check your internet")
	}

	switch code := resp.StatusCode(); {
	case code == 400 || code == 401 || code == 403:
		if apiErr.Error.Message != "" {
			return errors.New(apiErr.Error.Message)
		}
		return fmt.Errorf("API key rejected (HTTP %d)", code)
	case code != 200:
		return fmt.Errorf("unexpected response (HTTP %d)", code)
	}
	return nil
}

// RunSetupWizard collects the secrets for mode interactively and writes them
// to dir/config.env. Returns true if the caller should continue starting.
func RunSetupWizard(dir string, mode Mode) bool {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	fmt.Println()
	fmt.Println(titleStyle.Render("🥕 CookVision - First-time Setup"))
	fmt.Println()

	validator := NewValidator("", "")
	withTimeout := func(check func(context.Context, string) error) func(string) error {
		return func(s string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return check(ctx, s)
		}
	}

	var botToken, geminiKey, pexelsKey, billingKey, adminID string

	var groups []*huh.Group
	if mode == ModeBot {
		groups = append(groups, huh.NewGroup(
			huh.NewInput().
				Title("Telegram Bot Token").
				Description("Message @BotFather on Telegram → /newbot → copy token").
				Value(&botToken).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("token is required")
					}
					return withTimeout(validator.TelegramToken)(s)
				}),
		))
	}
	groups = append(groups,
		huh.NewGroup(
			huh.NewInput().
				Title("Gemini API Key").
				Description("Get yours at https://aistudio.google.com/apikey").
				Value(&geminiKey).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("API key is required")
					}
					return withTimeout(validator.GeminiKey)(s)
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Pexels API Key (optional)").
				Description("Used for recipe photos. Leave empty to use placeholders").
				Value(&pexelsKey),
			huh.NewInput().
				Title("RevenueCat API Key (optional)").
				Description("Leave empty to run everyone on the free tier").
				Value(&billingKey),
		),
	)
	if mode == ModeBot {
		groups = append(groups, huh.NewGroup(
			huh.NewInput().
				Title("Your Telegram User ID (optional)").
				Description("Enables admin commands. Message @userinfobot to get your ID").
				Value(&adminID).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					if _, err := strconv.ParseInt(s, 10, 64); err != nil {
						return errors.New("must be a number")
					}
					return nil
				}),
		))
	}

	err := huh.NewForm(groups...).WithTheme(huh.ThemeBase16()).Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("\nSetup cancelled.")
			return false
		}
		fmt.Printf("\nError: %v\n", err)
		return false
	}

	values := map[string]string{
		"BOT_TOKEN":            botToken,
		"GEMINI_API_KEY":       geminiKey,
		"PEXELS_API_KEY":       pexelsKey,
		"REVENUECAT_API_KEY":   billingKey,
		"ADMIN_TELEGRAM_ID":    adminID,
		"COOKVISION_STORE_KEY": os.Getenv("COOKVISION_STORE_KEY"),
	}
	if values["COOKVISION_STORE_KEY"] == "" {
		values["COOKVISION_STORE_KEY"] = generateStoreKey()
	}

	configPath, err := WriteEnvFile(dir, envOrder, values)
	if err != nil {
		fmt.Printf("\nError saving configuration: %v\n", err)
		WaitOnWindows()
		return false
	}

	for k, v := range values {
		if v != "" {
			os.Setenv(k, v)
		}
	}

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	pathStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Configuration saved"))
	fmt.Println(pathStyle.Render("  " + configPath))
	fmt.Println()

	return true
}

func generateStoreKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("cookvision-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}
