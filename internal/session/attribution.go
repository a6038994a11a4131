package session

import (
	"encoding/json"
	"log/slog"

	"rankitopixel/internal/browser"
)

// Attribution holds the first-touch acquisition parameters captured for a
// session: ad click ids, Meta cookie identifiers and UTM tags.
type Attribution struct {
	GCLID       string `json:"gclid,omitempty"`
	FBCLID      string `json:"fbclid,omitempty"`
	FBC         string `json:"fbc,omitempty"`
	FBP         string `json:"fbp,omitempty"`
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	UTMContent  string `json:"utm_content,omitempty"`
	UTMTerm     string `json:"utm_term,omitempty"`
}

// HasData reports whether any attribution field was captured.
func (a Attribution) HasData() bool {
	return a != Attribution{}
}

// GetAdsTrackingData returns the session's attribution record. On the first
// call of a session it derives the record from the page URL and the Meta
// cookies and persists it if any field is non-empty; every later call
// returns the stored record unchanged (first-touch semantics), regardless
// of what the current URL carries.
func (s *Store) GetAdsTrackingData(env *browser.Environment) Attribution {
	if raw, ok := s.storage.Get(AdsTrackingKey); ok {
		var stored Attribution
		if err := json.Unmarshal([]byte(raw), &stored); err == nil {
			return stored
		}
		s.logger.Debug("corrupt attribution record, re-capturing")
	}

	captured := captureAttribution(env)
	if captured.HasData() {
		if data, err := json.Marshal(captured); err == nil {
			s.storage.Set(AdsTrackingKey, string(data))
		} else {
			s.logger.Debug("failed to marshal attribution record", slog.Any("error", err))
		}
	}
	return captured
}

func captureAttribution(env *browser.Environment) Attribution {
	return Attribution{
		GCLID:       env.Query("gclid"),
		FBCLID:      env.Query("fbclid"),
		FBC:         env.Cookie("_fbc"),
		FBP:         env.Cookie("_fbp"),
		UTMSource:   env.Query("utm_source"),
		UTMMedium:   env.Query("utm_medium"),
		UTMCampaign: env.Query("utm_campaign"),
		UTMContent:  env.Query("utm_content"),
		UTMTerm:     env.Query("utm_term"),
	}
}
