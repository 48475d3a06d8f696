package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"instantsaver/internal/logging"
)

// StatsProvider reports point-in-time counts that are cheaper to sample
// than to track on every change.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the sampled values.
type Stats struct {
	LiveProcesses int
}

// Collector samples a StatsProvider and the Go runtime on an interval.
type Collector struct {
	provider StatsProvider
	interval time.Duration

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a collector. provider may be nil, in which case
// only runtime gauges are updated.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start samples once immediately, then every interval until Stop.
func (c *Collector) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(ctx)
}

// Stop ends sampling and waits for the loop to exit. It is safe to call
// more than once, and before Start.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel == nil {
			close(c.done)
			return
		}
		c.cancel()
		<-c.done
	})
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.collect()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Collector) collect() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	HeapInUseBytes.Set(float64(mem.HeapInuse))
	GoroutinesCount.Set(float64(runtime.NumGoroutine()))

	if c.provider == nil {
		return
	}
	stats := c.provider.GetStats()
	TranscoderProcessesLive.Set(float64(stats.LiveProcesses))
	logging.Debug("Sampled live_processes=%d heap_inuse=%d", stats.LiveProcesses, mem.HeapInuse)
}
