package metrics

import (
	"time"

	"github.com/cuemby/caephub/pkg/engine"
)

// Collector periodically polls the engine's store and refreshes the gauges
// that can't be updated incrementally from inside a tool call (per-status
// task counts, agent counts, leadership).
type Collector struct {
	engine *engine.Engine
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over e.
func NewCollector(e *engine.Engine) *Collector {
	return &Collector{
		engine: e,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15-second tick, collecting once
// immediately.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectAgentMetrics()
	c.collectTaskMetrics()
	c.collectBlobMetrics()
	c.collectRaftMetrics()
}

func (c *Collector) collectAgentMetrics() {
	agents, err := c.engine.Store().ListAgents()
	if err != nil {
		return
	}
	AgentsTotal.Set(float64(len(agents)))
}

func (c *Collector) collectTaskMetrics() {
	tasks, err := c.engine.Store().ListTasks()
	if err != nil {
		return
	}

	counts := make(map[string]int)
	for _, task := range tasks {
		counts[string(task.Status)]++
	}
	for status, count := range counts {
		TasksTotal.WithLabelValues(status).Set(float64(count))
	}
}

func (c *Collector) collectBlobMetrics() {
	// The store has no ListBlobs (blobs are looked up by hash only, never
	// enumerated), so blob count is tracked incrementally by the blob write
	// path (messages.Store.SendBlobMessage, once per newly stored hash)
	// instead of recomputed here; it counts blobs stored since process start.
}

func (c *Collector) collectRaftMetrics() {
	if c.engine.IsLeader() {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}
}
