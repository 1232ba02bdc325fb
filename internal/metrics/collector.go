// Package metrics provides a lightweight Prometheus-compatible collector for
// the relay pipeline, served in text exposition format without pulling in
// prometheus/client_golang.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks the distribution of observed values in cumulative
// buckets.
type Histogram struct {
	name    string
	help    string
	mu      sync.Mutex
	count   int64
	sum     float64
	buckets []histBucket
}

type histBucket struct {
	le    float64
	count int64
}

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i := range h.buckets {
		if v <= h.buckets[i].le {
			h.buckets[i].count++
		}
	}
}

// Count returns how many values were observed.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Collector aggregates the pipeline's counters, gauges, and histograms.
type Collector struct {
	mu         sync.Mutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	startTime  time.Time
}

func NewCollector() *Collector {
	return &Collector{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		startTime:  time.Now(),
	}
}

// Default is the process-wide collector the dispatch pipeline records into.
var Default = NewCollector()

// Pipeline metrics.
var (
	UpdatesReceived    = Default.Counter("zathura_updates_received_total", "Inbound updates received")
	UpdatesIgnored     = Default.Counter("zathura_updates_ignored_total", "Updates classified as ignorable")
	RepliesSent        = Default.Counter("zathura_replies_sent_total", "Final replies handed to the sender")
	TextGenerations    = Default.Counter("zathura_text_generations_total", "Text generation calls attempted")
	ImageGenerations   = Default.Counter("zathura_image_generations_total", "Image generation calls attempted")
	GenerationFailures = Default.Counter("zathura_generation_failures_total", "Generation calls that returned a failure")
	HandlerPanics      = Default.Counter("zathura_handler_panics_total", "Panics recovered at the dispatch boundary")
	InFlight           = Default.Gauge("zathura_updates_in_flight", "Updates currently being handled")

	UpdateLatency = Default.Histogram("zathura_update_latency_seconds", "Time from receipt to final reply in seconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 15, 30})
)

// Counter returns or creates a counter with the given name.
func (c *Collector) Counter(name, help string) *Counter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctr, ok := c.counters[name]; ok {
		return ctr
	}
	ctr := &Counter{name: name, help: help}
	c.counters[name] = ctr
	return ctr
}

// Gauge returns or creates a gauge with the given name.
func (c *Collector) Gauge(name, help string) *Gauge {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.gauges[name]; ok {
		return g
	}
	g := &Gauge{name: name, help: help}
	c.gauges[name] = g
	return g
}

// Histogram returns or creates a histogram with the given name and bucket
// upper bounds.
func (c *Collector) Histogram(name, help string, buckets []float64) *Histogram {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.histograms[name]; ok {
		return h
	}
	sort.Float64s(buckets)
	hb := make([]histBucket, len(buckets))
	for i, b := range buckets {
		hb[i] = histBucket{le: b}
	}
	h := &Histogram{name: name, help: help, buckets: hb}
	c.histograms[name] = h
	return h
}

// Handler renders the collector in Prometheus text exposition format.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder
		fmt.Fprintf(&sb, "# HELP zathura_uptime_seconds Time since start in seconds\n")
		fmt.Fprintf(&sb, "# TYPE zathura_uptime_seconds gauge\n")
		fmt.Fprintf(&sb, "zathura_uptime_seconds %d\n", int64(time.Since(c.startTime).Seconds()))

		c.mu.Lock()
		counterNames := sortedKeys(c.counters)
		gaugeNames := sortedKeys(c.gauges)
		histogramNames := sortedKeys(c.histograms)
		counters := make([]*Counter, 0, len(counterNames))
		for _, n := range counterNames {
			counters = append(counters, c.counters[n])
		}
		gauges := make([]*Gauge, 0, len(gaugeNames))
		for _, n := range gaugeNames {
			gauges = append(gauges, c.gauges[n])
		}
		histograms := make([]*Histogram, 0, len(histogramNames))
		for _, n := range histogramNames {
			histograms = append(histograms, c.histograms[n])
		}
		c.mu.Unlock()

		for _, ctr := range counters {
			fmt.Fprintf(&sb, "# HELP %s %s\n", ctr.name, ctr.help)
			fmt.Fprintf(&sb, "# TYPE %s counter\n", ctr.name)
			fmt.Fprintf(&sb, "%s %d\n", ctr.name, ctr.Value())
		}
		for _, g := range gauges {
			fmt.Fprintf(&sb, "# HELP %s %s\n", g.name, g.help)
			fmt.Fprintf(&sb, "# TYPE %s gauge\n", g.name)
			fmt.Fprintf(&sb, "%s %d\n", g.name, g.Value())
		}
		for _, h := range histograms {
			h.mu.Lock()
			fmt.Fprintf(&sb, "# HELP %s %s\n", h.name, h.help)
			fmt.Fprintf(&sb, "# TYPE %s histogram\n", h.name)
			for _, b := range h.buckets {
				le := fmt.Sprintf("%g", b.le)
				if math.IsInf(b.le, 1) {
					le = "+Inf"
				}
				fmt.Fprintf(&sb, "%s_bucket{le=%q} %d\n", h.name, le, b.count)
			}
			fmt.Fprintf(&sb, "%s_count %d\n", h.name, h.count)
			fmt.Fprintf(&sb, "%s_sum %f\n", h.name, h.sum)
			h.mu.Unlock()
		}

		w.Write([]byte(sb.String()))
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
