package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TagSentry/internal/domain/models"
	domrepo "TagSentry/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, s *models.Sighting) error
}

// SightingPipeline sits between the gateway stream and the processor.
// It validates, throttles per address (BLE advertisers repeat frames many
// times a second), and buffers when downstream is unavailable.
type SightingPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.Sighting
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-address last accepted time
	// optional frame transform hook
	transform func(*models.Sighting) *models.Sighting
}

type PipelineOption func(*SightingPipeline)

// WithMaxRPS sets the max accepted sightings per second per address.
func WithMaxRPS(n int) PipelineOption {
	return func(p *SightingPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *SightingPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a transformation hook to normalize frames.
func WithTransform(fn func(*models.Sighting) *models.Sighting) PipelineOption {
	return func(p *SightingPipeline) { p.transform = fn }
}

// NewSightingPipeline creates a new pipeline.
func NewSightingPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *SightingPipeline {
	p := &SightingPipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   4,    // default throttle per address
		bufSize:  1000, // default buffer
		bufCh:    make(chan *models.Sighting, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.Sighting, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered sightings.
func (p *SightingPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case s := <-p.bufCh:
				if s == nil {
					continue
				}
				if err := p.proc.Process(ctx, s); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- s:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *SightingPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards a sighting downstream,
// buffering on errors.
func (p *SightingPipeline) Process(ctx context.Context, s *models.Sighting) error {
	start := time.Now()
	if err := validateSighting(s); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		s = p.transform(s)
		if err := validateSighting(s); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.allow(s.Address, start) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, s); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- s:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateSighting(s *models.Sighting) error {
	if s == nil {
		return fmt.Errorf("sighting nil")
	}
	if s.Address == "" {
		return fmt.Errorf("address empty")
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	if s.RSSI > 20 || s.RSSI < -127 {
		return fmt.Errorf("rssi out of range: %d", s.RSSI)
	}
	return nil
}

func (p *SightingPipeline) allow(address string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	last := p.lastSeen[address]
	if last.IsZero() {
		p.lastSeen[address] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[address] = now
	return true
}
