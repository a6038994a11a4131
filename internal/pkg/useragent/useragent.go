// Package useragent classifies User-Agent strings into coarse device classes.
package useragent

import (
	"embed"
	"fmt"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

// Device classes reported in event payloads.
const (
	DeviceDesktop = "Desktop"
	DeviceTablet  = "Tablet"
	DeviceMobile  = "Mobile"
)

// UserAgent holds the classification result for one UA string.
type UserAgent struct {
	UserAgent string
	Device    string
	Mobile    bool
	Tablet    bool
	Desktop   bool
}

//go:embed database/devices.yml
var databaseFiles embed.FS

// PatternEntry is one regex entry in the device database.
type PatternEntry struct {
	Regex string `yaml:"regex"`
}

type deviceDatabase struct {
	Tablet []PatternEntry `yaml:"tablet"`
	Mobile []PatternEntry `yaml:"mobile"`
}

// Compiled regex cache
type regexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

func newRegexCache() *regexCache {
	return &regexCache{
		compiled: make(map[string]*pcre.Regexp),
	}
}

func (rc *regexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	// Double-check pattern
	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

// Global parser instance
var (
	parser *deviceClassParser
	once   sync.Once
)

type deviceClassParser struct {
	tablets []PatternEntry
	mobiles []PatternEntry
	cache   *regexCache
}

func getParser() *deviceClassParser {
	once.Do(func() {
		parser = &deviceClassParser{
			cache: newRegexCache(),
		}

		if data, err := databaseFiles.ReadFile("database/devices.yml"); err == nil {
			var db deviceDatabase
			if err := yaml.Unmarshal(data, &db); err != nil {
				fmt.Printf("Error parsing devices.yml: %v\n", err)
				return
			}
			parser.tablets = db.Tablet
			parser.mobiles = db.Mobile
		}
	})
	return parser
}

func (p *deviceClassParser) matchAny(entries []PatternEntry, ua string) bool {
	for _, entry := range entries {
		if regex, err := p.cache.get(entry.Regex); err == nil {
			if regex.MatchString(ua) {
				return true
			}
		}
	}
	return false
}

// Parse classifies a User-Agent string. Tablet patterns are checked before
// mobile patterns; anything matching neither is Desktop.
func Parse(ua string) UserAgent {
	result := UserAgent{UserAgent: ua}
	p := getParser()

	switch {
	case p.matchAny(p.tablets, ua):
		result.Tablet = true
		result.Device = DeviceTablet
	case p.matchAny(p.mobiles, ua):
		result.Mobile = true
		result.Device = DeviceMobile
	default:
		result.Desktop = true
		result.Device = DeviceDesktop
	}
	return result
}

// DeviceClass returns just the device class string for a UA.
func DeviceClass(ua string) string {
	return Parse(ua).Device
}
