// Package ingest forwards engine events to a remote ingestion endpoint
// without ever blocking the caller.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/headline-goat/intent-goat/internal/events"
	"github.com/headline-goat/intent-goat/internal/logger"
)

const (
	DefaultQueueSize = 256
	requestTimeout   = 5 * time.Second
)

// Client posts events to an ingestion endpoint from a single background
// goroutine. When its queue is full new events are dropped; delivery
// failures are logged and otherwise ignored.
type Client struct {
	url  string
	http *http.Client
	log  *logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan events.Event
	done   chan struct{}

	sent    atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

func New(url string, queueSize int, log *logger.Logger) *Client {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Client{
		url:   url,
		http:  &http.Client{Timeout: requestTimeout},
		log:   log.With("component", "ingest"),
		queue: make(chan events.Event, queueSize),
		done:  make(chan struct{}),
	}
	go c.run()
	return c
}

// Forward queues e for delivery and reports whether it was accepted.
func (c *Client) Forward(e events.Event) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.dropped.Add(1)
		return false
	}
	select {
	case c.queue <- e:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Close stops accepting events and waits for the queue to drain.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.queue)
	c.mu.Unlock()
	<-c.done
}

// Stats reports delivery counters.
func (c *Client) Stats() (sent, dropped, failed int64) {
	return c.sent.Load(), c.dropped.Load(), c.failed.Load()
}

func (c *Client) run() {
	defer close(c.done)
	defer c.http.CloseIdleConnections()
	for e := range c.queue {
		if err := c.post(e); err != nil {
			c.failed.Add(1)
			c.log.Warn("failed to forward event", "event_id", e.EventID, "type", e.Type, "error", err)
			continue
		}
		c.sent.Add(1)
	}
}

func (c *Client) post(e events.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post event: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ingestion returned %d", resp.StatusCode)
	}
	return nil
}
