// Package notify relays sales notifications to an outbound webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/headline-goat/intent-goat/internal/logger"
)

var (
	ErrNoWebhook = errors.New("webhook not configured")
	ErrUpstream  = errors.New("webhook upstream failed")
	ErrThrottled = errors.New("webhook relay throttled")
)

const defaultQueueSize = 64

// Options tunes a Relay. Zero values pick the defaults.
type Options struct {
	Timeout   time.Duration
	PerSecond float64
	Burst     int
	QueueSize int
}

// Relay posts JSON payloads to the sales webhook. Send delivers
// synchronously for the HTTP surface; Enqueue hands the payload to a
// background goroutine and never blocks.
type Relay struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan any
	done   chan struct{}
}

func NewRelay(url string, opts Options, log *logger.Logger) *Relay {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.PerSecond <= 0 {
		opts.PerSecond = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if log == nil {
		log = logger.Nop()
	}

	r := &Relay{
		url:     url,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.PerSecond), opts.Burst),
		log:     log.With("component", "notify"),
		queue:   make(chan any, opts.QueueSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Configured reports whether a webhook URL is set.
func (r *Relay) Configured() bool { return r.url != "" }

// Send posts payload now. It fails with ErrThrottled when the relay is
// over its rate and ErrUpstream when the webhook answers with a non-2xx.
func (r *Relay) Send(ctx context.Context, payload any) error {
	if r.url == "" {
		return ErrNoWebhook
	}
	if !r.limiter.Allow() {
		return ErrThrottled
	}
	return r.post(ctx, payload)
}

// Enqueue schedules payload for best-effort delivery and reports whether
// it was accepted.
func (r *Relay) Enqueue(payload any) bool {
	if r.url == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	select {
	case r.queue <- payload:
		return true
	default:
		r.log.Warn("dropping notification, relay queue full")
		return false
	}
}

// Close stops the background sender after draining its queue.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	<-r.done
}

func (r *Relay) run() {
	defer close(r.done)
	defer r.http.CloseIdleConnections()
	for payload := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.http.Timeout)
		err := r.limiter.Wait(ctx)
		if err == nil {
			err = r.post(ctx, payload)
		}
		cancel()
		if err != nil {
			r.log.Warn("failed to relay notification", "error", err)
		}
	}
}

func (r *Relay) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	return nil
}
