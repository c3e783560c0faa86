// Package telemetry sends best-effort error and usage beacons.
//
// Beacons never block and never fail the caller: events are queued on a
// buffered channel and posted by a drain goroutine. Anything that cannot be
// queued, rate limited, encoded or delivered is counted as dropped.
package telemetry

// Goroutine safety:
// The drain goroutine is the sole reader of b.ch and the sole user of
// b.client. Counters are atomics. Close is idempotent.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/abelbrown/consonant/internal/logging"
)

const (
	// queueSize is the capacity of the async send channel.
	queueSize = 256

	// DefaultClientID identifies the card collection to the beacon service.
	DefaultClientID = "chimera"
)

// Event is one beacon payload.
type Event struct {
	Time       time.Time `json:"t"`
	Message    string    `json:"m"`
	ClientID   string    `json:"c"`
	SampleRate float64   `json:"s"`
	Tags       string    `json:"tags,omitempty"`
	ErrorType  string    `json:"errorType,omitempty"`
	SessionID  string    `json:"sessionId"`
}

// Options configures a Beacon.
type Options struct {
	// Endpoint receives events as JSON POSTs. Empty sends nothing.
	Endpoint string
	ClientID string
	// SampleRate is the percentage of events sent, 0-100.
	SampleRate float64
	Limiter    *rate.Limiter
	Client     *http.Client
	// Roll returns a value in [0,100) compared against SampleRate.
	Roll func() float64
}

// Beacon is an asynchronous event sender. A nil *Beacon is valid and
// discards everything.
type Beacon struct {
	opts      Options
	sessionID string
	ch        chan Event
	dropped   atomic.Uint64
	sent      atomic.Uint64
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Beacon and starts its drain goroutine. Call Close to stop it.
func New(opts Options) *Beacon {
	if opts.ClientID == "" {
		opts.ClientID = DefaultClientID
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Every(time.Second), 5)
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 5 * time.Second}
	}
	if opts.Roll == nil {
		opts.Roll = func() float64 { return rand.Float64() * 100 }
	}

	b := &Beacon{
		opts:      opts,
		sessionID: uuid.NewString(),
		ch:        make(chan Event, queueSize),
		done:      make(chan struct{}),
	}
	go b.drain()
	return b
}

// FormatMessage renders "<message> | referer: <referer> | <err>".
func FormatMessage(message, referer string, err error) string {
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	return fmt.Sprintf("%s | referer: %s | %s", message, referer, errText)
}

// Log queues an error beacon for message. Sampling applies.
func (b *Beacon) Log(message, referer string, err error, tags string) {
	if b == nil {
		return
	}
	b.Emit(Event{Message: FormatMessage(message, referer, err), Tags: tags, ErrorType: "i"})
}

// Emit queues e. It never blocks: when the beacon is closed or the queue is
// full the event is dropped.
func (b *Beacon) Emit(e Event) {
	if b == nil {
		return
	}
	defer func() {
		if recover() != nil {
			b.dropped.Add(1)
		}
	}()

	if b.closed.Load() {
		b.dropped.Add(1)
		return
	}
	if b.opts.Roll() >= b.opts.SampleRate {
		return
	}

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.ClientID = b.opts.ClientID
	e.SampleRate = b.opts.SampleRate
	e.SessionID = b.sessionID

	select {
	case b.ch <- e:
	default:
		b.dropped.Add(1)
	}
}

func (b *Beacon) drain() {
	defer close(b.done)
	for e := range b.ch {
		if err := b.send(e); err != nil {
			b.dropped.Add(1)
			logging.Debug("telemetry: beacon dropped", "error", err)
			continue
		}
		b.sent.Add(1)
	}
}

func (b *Beacon) send(e Event) error {
	if b.opts.Endpoint == "" {
		return nil
	}
	if !b.opts.Limiter.Allow() {
		return fmt.Errorf("rate limited")
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.opts.Client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.opts.Endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.opts.Client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP error: %s", resp.Status)
	}
	return nil
}

// SessionID returns the random id shared by every event of this beacon.
func (b *Beacon) SessionID() string {
	if b == nil {
		return ""
	}
	return b.sessionID
}

// Dropped returns the number of events that were not delivered.
func (b *Beacon) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}

// Sent returns the number of events delivered.
func (b *Beacon) Sent() uint64 {
	if b == nil {
		return 0
	}
	return b.sent.Load()
}

// Close flushes queued events and stops the drain goroutine. Emit calls
// racing with Close are dropped, not panicked.
func (b *Beacon) Close() {
	if b == nil {
		return
	}
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		close(b.ch)
		<-b.done
		b.opts.Client.CloseIdleConnections()

		if d := b.dropped.Load(); d > 0 {
			logging.Warn("telemetry: events dropped", "count", d, "session", b.sessionID)
		}
	})
}
