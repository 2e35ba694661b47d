// Package enrich attaches stock photos to recipes.
package enrich

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const (
	PexelsBaseUrl = "https://api.pexels.com/v1"
)

type PexelsOpts struct {
	BaseURL string
	APIKey  string
}

// PexelsClient searches Pexels for food photos.
type PexelsClient struct {
	httpClient *resty.Client
}

func NewPexelsClient(opts PexelsOpts) *PexelsClient {
	baseURL := PexelsBaseUrl
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	return &PexelsClient{
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Authorization", opts.APIKey),
	}
}

type searchResponse struct {
	Photos []struct {
		Src struct {
			Medium string `json:"medium"`
		} `json:"src"`
	} `json:"photos"`
}

// SearchPhoto returns the medium-size URL of the best landscape photo for
// query, or "" when nothing matched.
func (c *PexelsClient) SearchPhoto(ctx context.Context, query string) (string, error) {
	result := &searchResponse{}
	res, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(result).
		SetQueryParams(map[string]string{
			"query":       query + " food",
			"per_page":    "3",
			"orientation": "landscape",
		}).
		Get("/search")
	if err != nil {
		return "", err
	}
	if res.IsError() {
		return "", fmt.Errorf("pexels search failed (status: %d)", res.StatusCode())
	}
	if len(result.Photos) == 0 {
		return "", nil
	}
	return result.Photos[0].Src.Medium, nil
}
