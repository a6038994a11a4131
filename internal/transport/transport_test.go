package transport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankitopixel/internal/logging"
)

func TestHTTPSenderSuccess(t *testing.T) {
	var gotToken atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken.Store(r.URL.Query().Get("token"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	queue := NewQueue(10)
	sender := NewHTTPSender(server.URL, "site-token", time.Second, queue, logging.NewTestLogger())
	sender.SetSynchronous()

	sender.Send("page_view", []byte(`{"event_type":"page_view"}`), nil, 0)
	assert.Equal(t, 0, queue.Len())
	assert.Equal(t, "site-token", gotToken.Load())
}

func TestHTTPSenderQueuesOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	queue := NewQueue(10)
	sender := NewHTTPSender(server.URL, "site-token", time.Second, queue, logging.NewTestLogger())
	sender.SetSynchronous()

	sender.Send("button_click", []byte(`{}`), map[string]any{"cta_text": "Buy"}, 0)
	require.Equal(t, 1, queue.Len())

	entry, ok := queue.Pop()
	require.True(t, ok)
	assert.Equal(t, "button_click", entry.EventType)
	assert.Equal(t, 0, entry.Retries)
	assert.Equal(t, "Buy", entry.EventData["cta_text"])
}

func TestHTTPSenderQueuesOnNetworkError(t *testing.T) {
	queue := NewQueue(10)
	sender := NewHTTPSender("http://127.0.0.1:1", "site-token", 100*time.Millisecond, queue, logging.NewTestLogger())
	sender.SetSynchronous()

	sender.Send("page_view", []byte(`{}`), nil, 0)
	assert.Equal(t, 1, queue.Len())
}

func TestQueueBounded(t *testing.T) {
	queue := NewQueue(2)
	var dropped []Entry
	queue.OnDrop(func(e Entry) { dropped = append(dropped, e) })

	queue.Push(Entry{EventType: "a"})
	queue.Push(Entry{EventType: "b"})
	queue.Push(Entry{EventType: "c"})

	assert.Equal(t, 2, queue.Len())
	require.Len(t, dropped, 1)
	assert.Equal(t, "c", dropped[0].EventType)
}

func TestQueueFIFO(t *testing.T) {
	queue := NewQueue(10)
	queue.Push(Entry{EventType: "first"})
	queue.Push(Entry{EventType: "second"})

	entry, ok := queue.Pop()
	require.True(t, ok)
	assert.Equal(t, "first", entry.EventType)
}

func TestSweeperRetryExhaustion(t *testing.T) {
	queue := NewQueue(10)
	var dropped []Entry
	queue.OnDrop(func(e Entry) { dropped = append(dropped, e) })

	var attempts int
	resubmit := func(eventType string, data map[string]any, retries int) {
		attempts++
		// Every resubmit fails and lands back on the queue with its count.
		queue.Push(Entry{EventType: eventType, EventData: data, Retries: retries})
	}

	sweeper := NewSweeper(queue, time.Hour, 3, resubmit, logging.NewTestLogger())
	queue.Push(Entry{EventType: "form_submit"})

	// Three failing sweeps exhaust the retry budget.
	sweeper.Sweep()
	sweeper.Sweep()
	sweeper.Sweep()
	assert.Equal(t, 3, attempts)
	assert.Empty(t, dropped)
	require.Equal(t, 1, queue.Len())

	// Fourth sweep drops the entry instead of retrying.
	sweeper.Sweep()
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 0, queue.Len())
	require.Len(t, dropped, 1)
	assert.Equal(t, "form_submit", dropped[0].EventType)
	assert.Equal(t, 3, dropped[0].Retries)

	// Nothing left: further sweeps are no-ops.
	sweeper.Sweep()
	assert.Equal(t, 3, attempts)
}

func TestSweeperOneEntryPerTick(t *testing.T) {
	queue := NewQueue(10)
	var resubmitted []string
	resubmit := func(eventType string, _ map[string]any, _ int) {
		resubmitted = append(resubmitted, eventType)
	}
	sweeper := NewSweeper(queue, time.Hour, 3, resubmit, logging.NewTestLogger())

	queue.Push(Entry{EventType: "a"})
	queue.Push(Entry{EventType: "b"})

	sweeper.Sweep()
	assert.Equal(t, []string{"a"}, resubmitted)
	assert.Equal(t, 1, queue.Len())
}

func TestSweeperStartStop(t *testing.T) {
	queue := NewQueue(10)
	var attempts atomic.Int32
	resubmit := func(string, map[string]any, int) { attempts.Add(1) }

	sweeper := NewSweeper(queue, 10*time.Millisecond, 3, resubmit, logging.NewTestLogger())
	queue.Push(Entry{EventType: "a"})

	sweeper.Start()
	assert.Eventually(t, func() bool { return attempts.Load() == 1 }, time.Second, 5*time.Millisecond)
	sweeper.Stop()

	// Stopping twice is safe.
	sweeper.Stop()
}

func TestHTTPBeacon(t *testing.T) {
	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	beacon := NewHTTPBeacon(server.URL, "site-token", logging.NewTestLogger())
	assert.True(t, beacon.SendBeacon([]byte(`{"event_type":"page_exit"}`)))
	assert.Equal(t, int32(1), received.Load())

	// Failure is reported but produces no retry state anywhere.
	down := NewHTTPBeacon("http://127.0.0.1:1", "site-token", logging.NewTestLogger())
	assert.False(t, down.SendBeacon([]byte(`{}`)))
}

func TestConversionClient(t *testing.T) {
	queue := NewQueue(10)
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		body = buf
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL, "tracking-token", time.Second, queue, logging.NewTestLogger())
	sender.SetSynchronous()
	client := NewConversionClient(sender, logging.NewTestLogger())

	client.Send(ConversionPayload{
		SiteName:  "plumber-sp",
		PageURL:   "https://plumber-sp.com/",
		EventType: "whatsapp_click",
		CTAText:   "Chame agora",
	})

	assert.Contains(t, string(body), `"site_name":"plumber-sp"`)
	assert.Contains(t, string(body), `"event_type":"whatsapp_click"`)
}
