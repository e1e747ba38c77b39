package logger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Publisher receives aggregated error-log batches, typically a job queue
// or message producer.
type Publisher interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// CollectorConfig tunes error-log aggregation.
type CollectorConfig struct {
	FlushInterval  time.Duration // e.g. 30s
	CountThreshold int           // max unique entries before an early flush
	Topic          string
	Publisher      Publisher
}

// Entry is one deduplicated error log with occurrence bookkeeping.
type Entry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// Collector deduplicates repeated error logs and flushes them in batches,
// so a failing store does not flood the alert channel with one message per
// retry.
type Collector struct {
	cfg     CollectorConfig
	entries map[string]*Entry
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Collector{
		cfg:     cfg,
		entries: make(map[string]*Entry),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

// Add records one occurrence of a log line.
func (c *Collector) Add(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := entryKey(level, message, caller)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
		c.mu.Unlock()
		return
	}
	c.entries[key] = &Entry{
		Level:     level,
		Message:   message,
		Fields:    fields,
		Caller:    caller,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
	overflow := len(c.entries) >= c.cfg.CountThreshold
	c.mu.Unlock()

	if overflow {
		c.Flush(context.Background())
	}
}

// Flush publishes and clears the current batch.
func (c *Collector) Flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.entries) == 0 {
		c.mu.Unlock()
		return
	}
	batch := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		batch = append(batch, e)
	}
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()

	if c.cfg.Publisher != nil {
		_ = c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch)
	}
}

// Close flushes remaining entries and stops the background loop.
func (c *Collector) Close() {
	c.cancel()
	<-c.done
	c.Flush(context.Background())
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Flush(ctx)
		}
	}
}

func entryKey(level, message, caller string) string {
	b, _ := json.Marshal([]string{level, message, caller})
	return fmt.Sprintf("%x", sha256.Sum256(b))[:16]
}
