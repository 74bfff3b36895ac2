package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dannyJ848/SOMA-sub037/pkg/kafka"
)

// Publisher is the write side of the analytics stream.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers events and publishes them in batches, either when
// batchSize events are waiting or every flushInterval. Failed batches are
// re-queued up to three batches' worth; beyond that the oldest are dropped.
type Collector struct {
	publisher     Publisher
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	buffer  []kafka.Event
	dropped int64

	kick chan struct{}
	done chan struct{}
	stop context.CancelFunc
}

func NewCollector(publisher Publisher, batchSize int, flushInterval time.Duration) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		buffer:        make([]kafka.Event, 0, batchSize),
		logger:        slog.Default().With("component", "analytics-collector"),
		kick:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop. Cancelling ctx or calling Close triggers
// a final flush with a short deadline.
func (c *Collector) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.stop = cancel
	c.mu.Unlock()
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Flush(ctx)
			case <-c.kick:
				c.Flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.Flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

func (c *Collector) Track(event Event) {
	c.mu.Lock()
	c.buffer = append(c.buffer, kafka.Event{Key: string(event.Type), Value: event})
	full := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if full {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
}

// Flush publishes everything buffered so far.
func (c *Collector) Flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("analytics flush failed", "batch_size", len(batch), "error", err)
		c.requeue(batch)
		return
	}
	c.logger.Debug("analytics batch flushed", "events", len(batch))
}

func (c *Collector) requeue(batch []kafka.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer = append(batch, c.buffer...)
	if limit := c.batchSize * 3; len(c.buffer) > limit {
		drop := len(c.buffer) - limit
		c.buffer = c.buffer[drop:]
		c.dropped += int64(drop)
		c.logger.Warn("analytics buffer overflow, events dropped", "dropped", drop)
	}
}

// Close stops the flush loop started by Start and waits for its final
// flush. It returns immediately if Start was never called.
func (c *Collector) Close() {
	c.mu.Lock()
	stop := c.stop
	c.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	<-c.done
}

func (c *Collector) BufferLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

func (c *Collector) Dropped() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
