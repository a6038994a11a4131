// main.go - replays a captured signal log through the tracking engine
//
// The input is JSON lines, one signal per line. A page_load signal tears
// down the previous engine and starts a fresh one; every other signal is
// forwarded to the current engine. With -storage, session state persists
// across page loads and across runs, so multi-page visits replay with
// realistic session continuity.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"rankitopixel/internal/browser"
	"rankitopixel/internal/config"
	"rankitopixel/internal/logging"
	"rankitopixel/internal/pixel"
)

type signal struct {
	Signal string `json:"signal"`

	// page_load
	URL            string            `json:"url"`
	Title          string            `json:"title"`
	Referrer       string            `json:"referrer"`
	UserAgent      string            `json:"user_agent"`
	Cookies        map[string]string `json:"cookies"`
	Globals        map[string]any    `json:"globals"`
	ViewportWidth  int               `json:"viewport_width"`
	ViewportHeight int               `json:"viewport_height"`
	DocHeight      float64           `json:"doc_height"`
	HTML           string            `json:"html"`

	// scroll
	ScrollY float64 `json:"scroll_y"`

	// click
	Tag   string            `json:"tag"`
	Text  string            `json:"text"`
	Attrs map[string]string `json:"attrs"`

	// form_submit
	Action string `json:"action"`
	Fields []struct {
		Name  string `json:"name"`
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"fields"`

	// before_unload
	NextURL string `json:"next_url"`

	// optional wall-clock offset from replay start, milliseconds
	AtMs int64 `json:"at_ms"`
}

func main() {
	inputPath := flag.String("input", "-", "signal log to replay, '-' for stdin")
	storagePath := flag.String("storage", "", "sqlite file for persistent session storage")
	scope := flag.String("scope", "replay", "storage scope for this visitor")
	flag.Parse()

	cfg := config.GetConfig()
	logger := logging.NewLogger(cfg)

	input := os.Stdin
	if *inputPath != "-" {
		f, err := os.Open(*inputPath)
		if err != nil {
			log.Fatalf("Failed to open input: %v", err)
		}
		defer f.Close()
		input = f
	}

	var storage browser.Storage = browser.NewMemoryStorage()
	if *storagePath != "" {
		s, err := browser.NewSQLiteStorage(*storagePath, *scope, logger)
		if err != nil {
			log.Fatalf("Failed to open storage: %v", err)
		}
		storage = s
	}

	start := time.Now()
	var engine *pixel.Engine
	var clockOffset time.Duration

	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var sig signal
		if err := json.Unmarshal(line, &sig); err != nil {
			log.Printf("line %d: skipping malformed signal: %v", lineNo, err)
			continue
		}
		if sig.AtMs > 0 {
			clockOffset = time.Duration(sig.AtMs) * time.Millisecond
		}

		if sig.Signal == "page_load" {
			if engine != nil {
				engine.Stop()
			}
			engine = newEngine(cfg, logger, storage, &sig, start, &clockOffset)
			engine.Start()
			continue
		}

		if engine == nil {
			log.Printf("line %d: signal %q before any page_load, skipping", lineNo, sig.Signal)
			continue
		}
		dispatch(engine, &sig)
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}

	if engine != nil {
		engine.Stop()
	}
}

func newEngine(cfg *config.Config, logger *slog.Logger, storage browser.Storage, sig *signal, start time.Time, offset *time.Duration) *pixel.Engine {
	env := buildEnvironment(sig, storage, start, offset)
	return pixel.NewEngine(cfg, env, logger)
}

func dispatch(engine *pixel.Engine, sig *signal) {
	switch sig.Signal {
	case "scroll":
		engine.OnScroll(sig.ScrollY)
	case "click":
		engine.OnClick(&browser.Element{Tag: sig.Tag, Text: sig.Text, Attrs: sig.Attrs})
	case "form_submit":
		form := &browser.Form{
			Element: browser.Element{Tag: "form", Attrs: sig.Attrs},
			Action:  sig.Action,
		}
		for _, f := range sig.Fields {
			form.Fields = append(form.Fields, browser.FormField{Name: f.Name, Type: f.Type, Value: f.Value})
		}
		engine.OnFormSubmit(form)
	case "visibility_hidden":
		engine.OnVisibilityHidden()
	case "before_unload":
		engine.OnBeforeUnload(sig.NextURL)
	case "page_hide":
		engine.OnPageHide()
	default:
		log.Printf("unknown signal %q, skipping", sig.Signal)
	}
}

func buildEnvironment(sig *signal, storage browser.Storage, start time.Time, offset *time.Duration) *browser.Environment {
	u, err := url.Parse(sig.URL)
	if err != nil {
		log.Printf("bad page URL %q: %v", sig.URL, err)
		u = &url.URL{}
	}
	return &browser.Environment{
		PageURL:   u,
		Referrer:  sig.Referrer,
		Title:     sig.Title,
		UserAgent: sig.UserAgent,
		Cookies:   sig.Cookies,
		Globals:   sig.Globals,
		Viewport:  browser.Viewport{Width: sig.ViewportWidth, Height: sig.ViewportHeight},
		DocHeight: sig.DocHeight,
		Document:  browser.MustDocument(sig.HTML),
		Storage:   storage,
		Now: func() time.Time {
			return start.Add(*offset)
		},
	}
}
