package usecase

import (
	"context"

	"TagSentry/internal/domain/models"
	drepo "TagSentry/internal/domain/repository"
	mid "TagSentry/internal/middleware"
)

// SightingCollector pulls sightings from the gateway stream and feeds
// them through the pipeline into the processor.
type SightingCollector struct {
	stream  drepo.SightingStream
	proc    *SightingProcessor
	metrics drepo.Metrics
	pipe    *mid.SightingPipeline
}

// NewSightingCollector creates a new SightingCollector instance.
func NewSightingCollector(stream drepo.SightingStream, proc *SightingProcessor, metrics drepo.Metrics, pipe *mid.SightingPipeline) *SightingCollector {
	return &SightingCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the gateway stream is connected.
func (c *SightingCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *SightingCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	sCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, sCh, errCh)
	return nil
}

func (c *SightingCollector) consume(ctx context.Context, sCh <-chan *models.Sighting, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case s := <-sCh:
			if s == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, s)
			} else {
				_ = c.proc.Process(ctx, s)
			}
		}
	}
}

func (c *SightingCollector) Stop() error { return c.stream.Close() }

// Processor returns the underlying SightingProcessor for lifecycle management.
func (c *SightingCollector) Processor() *SightingProcessor { return c.proc }

// Shutdown stops the pipeline and closes the stream.
func (c *SightingCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
