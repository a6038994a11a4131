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

// Sender delivers a serialized event payload. Implementations never block
// the caller on the network and never surface delivery errors upward.
type Sender interface {
	Send(eventType string, payload []byte, eventData map[string]any, retries int)
}

// HTTPSender posts payloads to the ingestion endpoint. A non-2xx response
// or network error enqueues the event for retry; the caller has already
// moved on either way.
type HTTPSender struct {
	endpoint string
	token    string
	client   *http.Client
	queue    *Queue
	logger   *slog.Logger

	// async controls whether sends run on their own goroutine. Tests flip
	// it off to make delivery deterministic.
	async bool
}

// NewHTTPSender creates a sender for the given endpoint and site token.
func NewHTTPSender(endpoint, token string, timeout time.Duration, queue *Queue, logger *slog.Logger) *HTTPSender {
	return &HTTPSender{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
		queue:    queue,
		logger:   logger,
		async:    true,
	}
}

// SetSynchronous makes Send deliver inline; intended for tests.
func (s *HTTPSender) SetSynchronous() {
	s.async = false
}

// Send delivers the payload, enqueuing a retry entry on any failure. The
// retries count is zero for first attempts and carries the accumulated
// count when the sweeper resubmits.
func (s *HTTPSender) Send(eventType string, payload []byte, eventData map[string]any, retries int) {
	deliver := func() {
		if err := s.post(payload); err != nil {
			s.logger.Debug("event delivery failed, queuing for retry",
				slog.String("event_type", eventType),
				slog.Any("error", err))
			s.queue.Push(Entry{EventType: eventType, EventData: eventData, Retries: retries})
			return
		}
		s.logger.Debug("event delivered", slog.String("event_type", eventType))
	}

	if s.async {
		go deliver()
		return
	}
	deliver()
}

func (s *HTTPSender) post(payload []byte) error {
	endpoint, err := s.buildURL()
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (s *HTTPSender) buildURL() (string, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("token", s.token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
