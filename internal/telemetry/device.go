package telemetry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultLookupURL answers with the caller's approximate location.
const DefaultLookupURL = "https://ipapi.co/json/"

const lookupTimeout = 3 * time.Second

// Device describes where telemetry comes from.
type Device struct {
	InstallID string
	OS        string
	Arch      string
	Country   string
	Timezone  string
}

// Attributes converts the device into resource attributes, skipping blanks.
func (d Device) Attributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	add := func(key, value string) {
		if value != "" {
			attrs = append(attrs, attribute.String(key, value))
		}
	}
	add("device.install_id", d.InstallID)
	add("os.type", d.OS)
	add("host.arch", d.Arch)
	add("geo.country_code", d.Country)
	add("geo.timezone", d.Timezone)
	return attrs
}

type lookupResponse struct {
	CountryCode string `json:"country_code"`
	Timezone    string `json:"timezone"`
}

// LookupDevice collects local device facts and asks lookupURL for the
// country and timezone. The remote part is best-effort and bounded to 3s;
// on failure only the local facts are returned.
func LookupDevice(ctx context.Context, lookupURL, installID string) Device {
	d := Device{InstallID: installID, OS: runtime.GOOS, Arch: runtime.GOARCH}
	if lookupURL == "" {
		return d
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	var body lookupResponse
	res, err := resty.New().
		SetTimeout(lookupTimeout).
		R().
		SetContext(ctx).
		SetResult(&body).
		Get(lookupURL)
	if err != nil {
		log.Debug().Err(err).Msg("device lookup failed")
		return d
	}
	if res.IsError() {
		log.Debug().Int("status", res.StatusCode()).Msg("device lookup failed")
		return d
	}
	d.Country = strings.ToUpper(body.CountryCode)
	d.Timezone = body.Timezone
	return d
}

// InstallID returns the id stored in dir/install_id, creating it on first use.
func InstallID(dir string) (string, error) {
	path := filepath.Join(dir, "install_id")
	b, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", err
	}
	return id, nil
}
