// Package metrics keeps a sliding window of operation timings and error
// counts, and aggregates them into a coarse health verdict. Everything is
// in memory; the window is a fixed-size ring so a long-running gateway
// reports recent behavior, not its whole lifetime
package metrics

import (
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/ring"
)

const (
	defaultWindow = 1000

	heapLimitBytes   = 500 << 20
	errorRateLimit   = 0.10
	avgLatencyLimit  = 5 * time.Second
)

// Sample is one completed operation
type Sample struct {
	Op       string        `json:"op"`
	Duration time.Duration `json:"duration"`
	// Error is the wire error name, empty on success
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

// OpStats summarizes one operation's recent window
type OpStats struct {
	Count  int64         `json:"count"`
	Errors int64         `json:"errors"`
	Avg    time.Duration `json:"avg"`
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
}

// Check is one health probe result
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Health statuses
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Report is the aggregated health verdict
type Report struct {
	Status string  `json:"status"`
	Checks []Check `json:"checks"`
}

// Collector accumulates samples and lifetime error counters
type Collector struct {
	window *ring.Ring[Sample]

	mu        sync.RWMutex
	errCounts map[string]int64

	now      func() time.Time
	memStats func(*runtime.MemStats)
}

// New builds a Collector with the given window size; non-positive means
// the default
func New(windowSize int) *Collector {
	if windowSize <= 0 {
		windowSize = defaultWindow
	}
	return &Collector{
		window:    ring.New[Sample](windowSize),
		errCounts: make(map[string]int64),
		now:       time.Now,
		memStats:  runtime.ReadMemStats,
	}
}

// Record stores one completed operation
func (c *Collector) Record(op string, d time.Duration, err error) {
	s := Sample{Op: op, Duration: d, At: c.now()}
	if err != nil {
		s.Error = perr.CodeName(perr.CodeOf(err))
		c.mu.Lock()
		c.errCounts[s.Error]++
		c.mu.Unlock()
	}
	c.window.Push(s)
}

// Stats summarizes the current window per operation
func (c *Collector) Stats() map[string]OpStats {
	byOp := map[string][]Sample{}
	for _, s := range c.window.Snapshot() {
		byOp[s.Op] = append(byOp[s.Op], s)
	}
	out := make(map[string]OpStats, len(byOp))
	for op, samples := range byOp {
		out[op] = summarize(samples)
	}
	return out
}

func summarize(samples []Sample) OpStats {
	st := OpStats{Count: int64(len(samples))}
	durs := make([]time.Duration, 0, len(samples))
	var total time.Duration
	for _, s := range samples {
		if s.Error != "" {
			st.Errors++
		}
		durs = append(durs, s.Duration)
		total += s.Duration
	}
	sort.Slice(durs, func(i, j int) bool { return durs[i] < durs[j] })
	st.Min = durs[0]
	st.Max = durs[len(durs)-1]
	st.Avg = total / time.Duration(len(durs))
	st.P95 = percentile(durs, 0.95)
	st.P99 = percentile(durs, 0.99)
	return st
}

// percentile takes the nearest-rank value from sorted durations
func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(q*float64(len(sorted))+0.999999) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

// ErrorCounts returns lifetime error totals by wire error name
func (c *Collector) ErrorCounts() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int64, len(c.errCounts))
	for k, v := range c.errCounts {
		out[k] = v
	}
	return out
}

// WindowLen reports how many samples the window currently holds
func (c *Collector) WindowLen() int { return c.window.Len() }

// Flush drains the sample window, returning what it held
func (c *Collector) Flush() []Sample { return c.window.Drain() }

// Health runs the aggregate checks over the current window. All checks
// passing is healthy, at least half is degraded, less than half is
// unhealthy. An empty window passes the latency and error checks
func (c *Collector) Health() Report {
	var mem runtime.MemStats
	c.memStats(&mem)

	samples := c.window.Snapshot()
	var errs int
	var total time.Duration
	for _, s := range samples {
		if s.Error != "" {
			errs++
		}
		total += s.Duration
	}
	errRate := 0.0
	var avg time.Duration
	if len(samples) > 0 {
		errRate = float64(errs) / float64(len(samples))
		avg = total / time.Duration(len(samples))
	}

	checks := []Check{
		{
			Name:   "heap",
			OK:     mem.HeapAlloc < heapLimitBytes,
			Detail: byteCount(mem.HeapAlloc),
		},
		{
			Name:   "error_rate",
			OK:     errRate < errorRateLimit,
			Detail: ratioDetail(errs, len(samples)),
		},
		{
			Name:   "latency",
			OK:     avg < avgLatencyLimit,
			Detail: avg.String(),
		},
	}

	passed := 0
	for _, ch := range checks {
		if ch.OK {
			passed++
		}
	}
	status := StatusUnhealthy
	switch {
	case passed == len(checks):
		status = StatusHealthy
	case passed*2 >= len(checks):
		status = StatusDegraded
	}
	return Report{Status: status, Checks: checks}
}

func byteCount(b uint64) string {
	return strconv.FormatUint(b>>20, 10) + "MB"
}

func ratioDetail(errs, total int) string {
	return strconv.Itoa(errs) + "/" + strconv.Itoa(total)
}
