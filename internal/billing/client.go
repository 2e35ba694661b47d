// Package billing talks to the RevenueCat REST API.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	ApiBaseUrl = "https://api.revenuecat.com/v1"
)

// ErrNotFound is returned for unknown subscribers or packages.
var ErrNotFound = errors.New("not found")

type ClientOpts struct {
	BaseURL  string
	APIKey   string
	Platform string
}

// Client is a RevenueCat REST client.
type Client struct {
	httpClient *resty.Client
	platform   string
	now        func() time.Time
}

func NewClient(opts ClientOpts) *Client {
	baseURL := ApiBaseUrl
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	platform := opts.Platform
	if platform == "" {
		platform = "stripe"
	}
	c := &Client{platform: platform, now: time.Now}
	c.httpClient = resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(opts.APIKey).
		SetHeaders(map[string]string{
			"Accept":     "application/json",
			"X-Platform": platform,
		})
	return c
}

func (c *Client) req(ctx context.Context, result any) *resty.Request {
	request := c.httpClient.
		NewRequest().
		SetContext(ctx)

	if result != nil {
		request.SetResult(result)
	}

	return request
}

// CustomerInfo fetches the subscriber and its entitlements.
func (c *Client) CustomerInfo(ctx context.Context, appUserID string) (*CustomerInfo, error) {
	result := &subscriberResponse{}
	_, err := handleError(c.req(ctx, result).
		SetPathParam("appUserId", appUserID).
		Get("/subscribers/{appUserId}"))
	if err != nil {
		return nil, err
	}
	return result.Subscriber.toCustomerInfo(c.now()), nil
}

// Offerings fetches the offerings configured for the subscriber.
func (c *Client) Offerings(ctx context.Context, appUserID string) (*Offerings, error) {
	result := &Offerings{}
	_, err := handleError(c.req(ctx, result).
		SetPathParam("appUserId", appUserID).
		Get("/subscribers/{appUserId}/offerings"))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReceiptRequest registers a store purchase token with RevenueCat.
type ReceiptRequest struct {
	AppUserID  string `json:"app_user_id"`
	FetchToken string `json:"fetch_token"`
	ProductID  string `json:"product_id,omitempty"`
	IsRestore  bool   `json:"is_restore,omitempty"`
}

// PostReceipt sends a purchase or restore receipt and returns the updated
// customer info.
func (c *Client) PostReceipt(ctx context.Context, receipt ReceiptRequest) (*CustomerInfo, error) {
	result := &subscriberResponse{}
	_, err := handleError(c.req(ctx, result).
		SetBody(receipt).
		Post("/receipts"))
	if err != nil {
		return nil, err
	}
	return result.Subscriber.toCustomerInfo(c.now()), nil
}

// handleError turns failing responses (>399 status code) into errors.
// Without this, failing responses would have nil error.
func handleError(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, err
	}
	if res.IsError() {
		reqErr := &RequestError{
			Method: res.Request.Method,
			URL:    res.Request.URL,
			Status: res.StatusCode(),
		}
		if res.StatusCode() == 404 {
			return res, fmt.Errorf("%w: %w", ErrNotFound, reqErr)
		}
		return res, reqErr
	}
	return res, nil
}

// RequestError describes a non-successful API response.
type RequestError struct {
	Method string
	URL    string
	Status int
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed: %s %s (status: %d)", e.Method, e.URL, e.Status)
}
