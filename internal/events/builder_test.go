package events_test

import (
	"encoding/json"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankitopixel/internal/browser"
	"rankitopixel/internal/config"
	"rankitopixel/internal/events"
	"rankitopixel/internal/logging"
	"rankitopixel/internal/session"
)

type capturingSender struct {
	sent []sentEvent
}

type sentEvent struct {
	eventType string
	payload   events.Payload
	retries   int
}

func (c *capturingSender) Send(eventType string, payload []byte, _ map[string]any, retries int) {
	var p events.Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		panic(err)
	}
	c.sent = append(c.sent, sentEvent{eventType: eventType, payload: p, retries: retries})
}

type capturingBeacon struct {
	payloads [][]byte
	accept   bool
}

func (c *capturingBeacon) SendBeacon(payload []byte) bool {
	c.payloads = append(c.payloads, payload)
	return c.accept
}

func testConfig() *config.Config {
	return &config.Config{
		Token:           "tok-1",
		SiteName:        "plumber-sp",
		MinDwellSeconds: 1,
	}
}

func testEnv(rawURL string, storage browser.Storage, now *time.Time) *browser.Environment {
	u, _ := url.Parse(rawURL)
	return &browser.Environment{
		PageURL:   u,
		Title:     "Landing",
		Referrer:  "https://google.com/",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile Safari",
		Viewport:  browser.Viewport{Width: 390, Height: 844},
		DocHeight: 3000,
		ScrollY:   656,
		Storage:   storage,
		Now:       func() time.Time { return *now },
	}
}

func newTestBuilder(t *testing.T, cfg *config.Config) (*events.Builder, *capturingSender, *capturingBeacon, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	storage := browser.NewMemoryStorage()
	env := testEnv("https://plumber-sp.com/?utm_source=google", storage, &now)
	logger := logging.NewTestLogger()
	store := session.NewStore(storage, env.Clock, 30*time.Minute, logger)
	sender := &capturingSender{}
	beacon := &capturingBeacon{accept: true}
	builder := events.NewBuilder(cfg, env, store, sender, beacon, logger)
	return builder, sender, beacon, &now
}

func TestSendBuildsFullPayload(t *testing.T) {
	builder, sender, _, now := newTestBuilder(t, testConfig())

	*now = now.Add(42 * time.Second)
	builder.Send(events.TypeButtonClick, map[string]any{
		"cta_text":     "Call now",
		"element_tag":  "a",
		"element_meta": "primary",
	})

	require.Len(t, sender.sent, 1)
	p := sender.sent[0].payload
	assert.Equal(t, "plumber-sp", p.SiteName)
	assert.Equal(t, "https://plumber-sp.com/?utm_source=google", p.PageURL)
	assert.Equal(t, events.TypeButtonClick, p.EventType)
	assert.Equal(t, 1, p.SequenceNumber)
	assert.Equal(t, "Call now", p.CTAText)
	assert.Equal(t, "google", p.UTMSource)
	assert.Equal(t, "Mobile", p.Metadata["device"])
	assert.EqualValues(t, 42, p.Metadata["time_on_current_page"])
	assert.InDelta(t, 50.0, p.Metadata["viewport_scroll"].(float64), 0.001)
	assert.Equal(t, "a", p.Metadata["element_tag"])
}

func TestSendWithoutTokenIsDropped(t *testing.T) {
	cfg := testConfig()
	cfg.Token = ""
	builder, sender, _, _ := newTestBuilder(t, cfg)

	builder.Send(events.TypePageView, nil)
	assert.Empty(t, sender.sent)
}

func TestSequenceIncreasesAcrossSignalTypes(t *testing.T) {
	builder, sender, _, _ := newTestBuilder(t, testConfig())

	builder.Send(events.TypePageView, nil)
	builder.Send(events.TypeScrollDepth, map[string]any{"depth_percentage": 25})
	builder.Send(events.TypeWhatsAppClick, map[string]any{"cta_text": "Chat"})

	require.Len(t, sender.sent, 3)
	for i, s := range sender.sent {
		assert.Equal(t, i+1, s.payload.SequenceNumber)
	}
	assert.Equal(t, sender.sent[0].payload.SessionID, sender.sent[2].payload.SessionID)
}

func TestConcurrentSendsNeverDuplicateSequenceNumbers(t *testing.T) {
	builder, sender, _, _ := newTestBuilder(t, testConfig())

	// Sends race in from the host thread and from internal timers (scroll
	// debounce, cart polls, retry sweeps). Every emission must still get
	// its own sequence number.
	const workers = 8
	const sendsPerWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < sendsPerWorker; i++ {
				builder.Send(events.TypeButtonClick, nil)
			}
		}()
	}
	wg.Wait()

	require.Len(t, sender.sent, workers*sendsPerWorker)
	seen := make(map[int]bool, len(sender.sent))
	for _, s := range sender.sent {
		assert.False(t, seen[s.payload.SequenceNumber],
			"sequence number %d emitted twice", s.payload.SequenceNumber)
		seen[s.payload.SequenceNumber] = true
	}
	assert.True(t, seen[1])
	assert.True(t, seen[workers*sendsPerWorker])
}

func TestEventDataOverridesStandardKeys(t *testing.T) {
	builder, sender, _, _ := newTestBuilder(t, testConfig())

	builder.Send(events.TypeScrollDepth, map[string]any{"viewport_scroll": 75.0})
	require.Len(t, sender.sent, 1)
	assert.InDelta(t, 75.0, sender.sent[0].payload.Metadata["viewport_scroll"].(float64), 0.001)
}

func TestSendExitUsesBeacon(t *testing.T) {
	builder, sender, beacon, _ := newTestBuilder(t, testConfig())

	builder.SendExit(95*time.Second, "https://plumber-sp.com/contact")

	assert.Empty(t, sender.sent, "exit must not take the standard transport path")
	require.Len(t, beacon.payloads, 1)

	var p events.Payload
	require.NoError(t, json.Unmarshal(beacon.payloads[0], &p))
	assert.Equal(t, events.TypePageExit, p.EventType)
	assert.Equal(t, 95, p.TimeSpentSeconds)
	assert.Equal(t, "https://plumber-sp.com/contact", p.ExitURL)
	assert.Empty(t, p.UTMSource, "abbreviated exit payload carries no attribution")
	assert.Equal(t, "Mobile", p.Metadata["device"])
}

func TestSendExitDwellFloor(t *testing.T) {
	builder, sender, beacon, _ := newTestBuilder(t, testConfig())

	builder.SendExit(900*time.Millisecond, "")
	assert.Empty(t, beacon.payloads)
	assert.Empty(t, sender.sent)
}

func TestResendCarriesRetryCount(t *testing.T) {
	builder, sender, _, _ := newTestBuilder(t, testConfig())

	builder.Resend("form_submit", map[string]any{"form_id": "contact"}, 2)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, 2, sender.sent[0].retries)
	assert.Equal(t, "form_submit", sender.sent[0].eventType)
}

func TestObserverSeesEveryPayload(t *testing.T) {
	builder, _, _, _ := newTestBuilder(t, testConfig())

	var seen []events.Payload
	builder.Observe(func(p events.Payload) { seen = append(seen, p) })

	builder.Send(events.TypePageView, nil)
	builder.SendExit(5*time.Second, "")
	assert.Len(t, seen, 2)
}
