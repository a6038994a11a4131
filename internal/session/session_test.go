package session_test

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankitopixel/internal/browser"
	"rankitopixel/internal/logging"
	"rankitopixel/internal/session"
)

const sessionTimeout = 30 * time.Minute

func newTestStore(storage browser.Storage, now *time.Time) *session.Store {
	return session.NewStore(storage, func() time.Time { return *now }, sessionTimeout, logging.NewTestLogger())
}

func TestGetSessionIDCreatesSession(t *testing.T) {
	storage := browser.NewMemoryStorage()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(storage, &now)

	id, seq := store.GetSessionID()
	assert.True(t, strings.HasPrefix(id, "sess_"), "id %q should carry the sess_ prefix", id)
	assert.Equal(t, 1, seq)

	raw, ok := storage.Get(session.SessionKey)
	require.True(t, ok)
	var record session.Record
	require.NoError(t, json.Unmarshal([]byte(raw), &record))
	assert.Equal(t, id, record.SessionID)
	assert.Equal(t, now.UnixMilli(), record.LastActivity)
}

func TestSequenceMonotonicity(t *testing.T) {
	storage := browser.NewMemoryStorage()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(storage, &now)

	id1, seq1 := store.GetSessionID()
	now = now.Add(time.Second)
	id2, seq2 := store.GetSessionID()
	now = now.Add(time.Second)
	id3, seq3 := store.GetSessionID()

	assert.Equal(t, id1, id2)
	assert.Equal(t, id2, id3)
	assert.Equal(t, []int{1, 2, 3}, []int{seq1, seq2, seq3})
}

func TestSessionExpiry(t *testing.T) {
	storage := browser.NewMemoryStorage()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(storage, &now)

	id1, _ := store.GetSessionID()
	_, seq := store.GetSessionID()
	require.Equal(t, 2, seq)

	// Just inside the timeout the session survives.
	now = now.Add(sessionTimeout)
	id2, seq2 := store.GetSessionID()
	assert.Equal(t, id1, id2)
	assert.Equal(t, 3, seq2)

	// Past the timeout a fresh session starts at sequence 1.
	now = now.Add(sessionTimeout + time.Millisecond)
	id3, seq3 := store.GetSessionID()
	assert.NotEqual(t, id1, id3)
	assert.Equal(t, 1, seq3)
}

func TestCorruptSessionRecordStartsFresh(t *testing.T) {
	storage := browser.NewMemoryStorage()
	storage.Set(session.SessionKey, "{not json")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(storage, &now)

	id, seq := store.GetSessionID()
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, seq)
}

func envWithURL(t *testing.T, rawURL string, cookies map[string]string, storage browser.Storage) *browser.Environment {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return &browser.Environment{PageURL: u, Cookies: cookies, Storage: storage}
}

func TestAttributionCapture(t *testing.T) {
	storage := browser.NewMemoryStorage()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(storage, &now)

	env := envWithURL(t,
		"https://example.com/landing?gclid=g123&utm_source=google&utm_campaign=spring",
		map[string]string{"_fbp": "fb.1.99", "_fbc": "fb.1.click"},
		storage)

	attr := store.GetAdsTrackingData(env)
	assert.Equal(t, "g123", attr.GCLID)
	assert.Equal(t, "google", attr.UTMSource)
	assert.Equal(t, "spring", attr.UTMCampaign)
	assert.Equal(t, "fb.1.99", attr.FBP)
	assert.Equal(t, "fb.1.click", attr.FBC)

	_, persisted := storage.Get(session.AdsTrackingKey)
	assert.True(t, persisted)
}

func TestFirstTouchAttributionImmutable(t *testing.T) {
	storage := browser.NewMemoryStorage()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(storage, &now)

	first := envWithURL(t, "https://example.com/?utm_source=google", nil, storage)
	attr := store.GetAdsTrackingData(first)
	require.Equal(t, "google", attr.UTMSource)

	// A later page load with different parameters must not overwrite.
	second := envWithURL(t, "https://example.com/?utm_source=bing", nil, storage)
	attr = store.GetAdsTrackingData(second)
	assert.Equal(t, "google", attr.UTMSource)
}

func TestAttributionNotPersistedWhenEmpty(t *testing.T) {
	storage := browser.NewMemoryStorage()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(storage, &now)

	env := envWithURL(t, "https://example.com/plain", nil, storage)
	attr := store.GetAdsTrackingData(env)
	assert.False(t, attr.HasData())

	_, persisted := storage.Get(session.AdsTrackingKey)
	assert.False(t, persisted, "all-null attribution must not be stored")

	// A later load with parameters can still capture first-touch.
	withParams := envWithURL(t, "https://example.com/?fbclid=f1", nil, storage)
	attr = store.GetAdsTrackingData(withParams)
	assert.Equal(t, "f1", attr.FBCLID)
	_, persisted = storage.Get(session.AdsTrackingKey)
	assert.True(t, persisted)
}
