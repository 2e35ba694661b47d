package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageDownloader_DownloadFromTelegramFileID(t *testing.T) {
	var requested string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("123"))
	}))
	defer ts.Close()

	getURL := func(fileID string) (string, error) {
		return ts.URL + "/photos/" + fileID + ".jpg", nil
	}

	data, err := NewImageDownloader().DownloadFromTelegramFileID(context.Background(), getURL, "foo")
	require.NoError(t, err)
	assert.Equal(t, []byte("123"), data)
	assert.Equal(t, "/photos/foo.jpg", requested)
}

func TestImageDownloader_URLResolutionError(t *testing.T) {
	getURL := func(string) (string, error) {
		return "", errors.New("file is too big")
	}

	_, err := NewImageDownloader().DownloadFromTelegramFileID(context.Background(), getURL, "foo")
	assert.ErrorContains(t, err, "failed to get file URL")
}

func TestImageDownloader_DownloadFromURL(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        []byte
		maxSize     int64
		wantErr     string
	}{
		{name: "png", status: http.StatusOK, contentType: "image/png", body: []byte{0x89, 0x50, 0x4E, 0x47}},
		{name: "octet stream", status: http.StatusOK, contentType: "application/octet-stream", body: []byte{1, 2}},
		{name: "not found", status: http.StatusNotFound, contentType: "text/plain", wantErr: "status 404"},
		{name: "html", status: http.StatusOK, contentType: "text/html", body: []byte("<html></html>"), wantErr: "invalid content type"},
		{name: "too large", status: http.StatusOK, contentType: "image/jpeg", body: make([]byte, 100), maxSize: 50, wantErr: "too large"},
		{name: "exactly at limit", status: http.StatusOK, contentType: "image/jpeg", body: make([]byte, 50), maxSize: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				w.Write(tt.body)
			}))
			defer ts.Close()

			downloader := NewImageDownloader()
			if tt.maxSize > 0 {
				downloader = downloader.WithMaxSize(tt.maxSize)
			}
			data, err := downloader.DownloadFromURL(context.Background(), ts.URL)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.body, data)
		})
	}
}

func TestImageDownloader_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should have been canceled")
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewImageDownloader().DownloadFromURL(ctx, ts.URL)
	assert.Error(t, err)
}
