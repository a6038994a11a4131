// Package session derives and persists the per-tab-group session identity:
// a session id, a monotonic sequence counter and first-touch ads
// attribution, all kept in the environment's session storage.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rankitopixel/internal/browser"
)

// Storage keys.
const (
	SessionKey     = "rankito_session"
	AdsTrackingKey = "rankito_ads_tracking"

	idPrefix       = "sess"
	idRandomLength = 9
)

// Record is the persisted session state.
type Record struct {
	SessionID    string `json:"session_id"`
	LastActivity int64  `json:"last_activity"` // unix milliseconds
	Sequence     int    `json:"sequence"`
}

// Store reads and mutates the session record. Every read is a
// read-with-side-effect: it bumps activity and the sequence counter so
// sequence numbers reflect true emission order across all signal types.
type Store struct {
	storage browser.Storage
	now     func() time.Time
	timeout time.Duration
	logger  *slog.Logger
}

// NewStore creates a session store over the given storage.
func NewStore(storage browser.Storage, now func() time.Time, timeout time.Duration, logger *slog.Logger) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{storage: storage, now: now, timeout: timeout, logger: logger}
}

// GetSessionID returns the current session id and the next sequence number.
// A stored session older than the timeout is discarded and replaced with a
// fresh one (sequence resets to 1). Never fails: any storage or parse error
// falls back to creating a new session.
func (s *Store) GetSessionID() (string, int) {
	now := s.now()

	if raw, ok := s.storage.Get(SessionKey); ok {
		var record Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			s.logger.Debug("corrupt session record, starting fresh", slog.Any("error", err))
		} else if record.SessionID != "" && now.UnixMilli()-record.LastActivity <= s.timeout.Milliseconds() {
			record.LastActivity = now.UnixMilli()
			record.Sequence++
			s.persist(record)
			return record.SessionID, record.Sequence
		}
	}

	record := Record{
		SessionID:    newSessionID(now),
		LastActivity: now.UnixMilli(),
		Sequence:     1,
	}
	s.persist(record)
	return record.SessionID, record.Sequence
}

func (s *Store) persist(record Record) {
	data, err := json.Marshal(record)
	if err != nil {
		s.logger.Debug("failed to marshal session record", slog.Any("error", err))
		return
	}
	s.storage.Set(SessionKey, string(data))
}

// newSessionID builds a sess_<timestamp>_<random9chars> identifier.
func newSessionID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(random) > idRandomLength {
		random = random[:idRandomLength]
	}
	return fmt.Sprintf("%s_%d_%s", idPrefix, now.UnixMilli(), random)
}
