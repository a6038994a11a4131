package transport

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Beacon is the durable unload-delivery primitive: a synchronous hand-off
// that makes a best-effort delivery attempt while the page is being torn
// down. SendBeacon reports whether the hand-off was accepted, not whether
// delivery succeeded.
type Beacon interface {
	SendBeacon(payload []byte) bool
}

// HTTPBeacon posts the payload with a short-timeout keepalive-style
// client. Failures are logged only and never queued: the page is closing,
// so there is nothing left to retry from.
type HTTPBeacon struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPBeacon creates a beacon for the given endpoint and site token.
func NewHTTPBeacon(endpoint, token string, logger *slog.Logger) *HTTPBeacon {
	return &HTTPBeacon{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: 2 * time.Second},
		logger:   logger,
	}
}

// SendBeacon attempts delivery synchronously.
func (b *HTTPBeacon) SendBeacon(payload []byte) bool {
	u, err := url.Parse(b.endpoint)
	if err != nil {
		b.logger.Debug("beacon endpoint invalid", slog.Any("error", err))
		return false
	}
	q := u.Query()
	q.Set("token", b.token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		b.logger.Debug("beacon request build failed", slog.Any("error", err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Debug("beacon delivery failed", slog.Any("error", err))
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b.logger.Debug("beacon delivery rejected", slog.String("status", fmt.Sprint(resp.StatusCode)))
		return false
	}
	return true
}
