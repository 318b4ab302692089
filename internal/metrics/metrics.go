// Package metrics collects scan telemetry and exports it in the
// Prometheus text exposition format, either over HTTP or as a textfile
// for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hardscan/hardscan/internal/errors"
)

// Counter is a monotonically increasing value
type Counter struct {
	mu    sync.RWMutex
	value float64
}

// Inc increments the counter by 1
func (c *Counter) Inc() {
	c.Add(1)
}

// Add adds delta to the counter
func (c *Counter) Add(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += delta
}

// Value returns the current counter value
func (c *Counter) Value() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Gauge is a value that can move in both directions
type Gauge struct {
	mu    sync.RWMutex
	value float64
}

// Set replaces the gauge value
func (g *Gauge) Set(value float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = value
}

// Inc increments the gauge by 1
func (g *Gauge) Inc() {
	g.Add(1)
}

// Dec decrements the gauge by 1
func (g *Gauge) Dec() {
	g.Add(-1)
}

// Add adds delta to the gauge
func (g *Gauge) Add(delta float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value += delta
}

// Value returns the current gauge value
func (g *Gauge) Value() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Histogram tracks the running sum and count of observations.
// Individual samples are not retained, so a long-lived daemon
// never grows memory with scan count.
type Histogram struct {
	mu    sync.RWMutex
	sum   float64
	count uint64
}

// Observe records a single observation
func (h *Histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += value
	h.count++
}

// Sum returns the sum of all observations
func (h *Histogram) Sum() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sum
}

// Count returns the number of observations
func (h *Histogram) Count() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Registry holds all metrics of a process
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	names      map[string]string
	labels     map[string]map[string]string
}

// NewRegistry creates an empty metrics registry
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		names:      make(map[string]string),
		labels:     make(map[string]map[string]string),
	}
}

// Counter gets or creates a counter for the name and label set
func (r *Registry) Counter(name string, labels map[string]string) *Counter {
	key := makeKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.counters[key]; ok {
		return c
	}

	c := &Counter{}
	r.counters[key] = c
	r.names[key] = name
	r.labels[key] = labels
	return c
}

// Gauge gets or creates a gauge for the name and label set
func (r *Registry) Gauge(name string, labels map[string]string) *Gauge {
	key := makeKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.gauges[key]; ok {
		return g
	}

	g := &Gauge{}
	r.gauges[key] = g
	r.names[key] = name
	r.labels[key] = labels
	return g
}

// Histogram gets or creates a histogram for the name and label set
func (r *Registry) Histogram(name string, labels map[string]string) *Histogram {
	key := makeKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.histograms[key]; ok {
		return h
	}

	h := &Histogram{}
	r.histograms[key] = h
	r.names[key] = name
	r.labels[key] = labels
	return h
}

// makeKey builds a stable key for a metric and its labels. Label keys
// are sorted so insertion order never produces a second series.
func makeKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := name
	for _, k := range keys {
		key += "|" + k + "=" + labels[k]
	}
	return key
}

// ExportPrometheus renders every metric in Prometheus text format with
// millisecond timestamps, suitable for direct scraping.
func (r *Registry) ExportPrometheus() string {
	return r.render(time.Now().UnixMilli())
}

// WriteTextfile renders the registry into path for node_exporter's
// textfile collector. Samples carry no timestamps because the collector
// rejects files that contain them.
func (r *Registry) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "creating textfile directory")
	}
	if err := os.WriteFile(path, []byte(r.render(0)), 0644); err != nil {
		return errors.Wrap(err, "writing metrics textfile %s", path)
	}
	return nil
}

// render emits one # TYPE header per metric family and orders families
// and series alphabetically, so repeated exports of the same state are
// byte-identical. A ts of 0 omits timestamps.
func (r *Registry) render(ts int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder

	names, families := r.group(keysOf(r.counters))
	for _, name := range names {
		fmt.Fprintf(&b, "# TYPE %s counter\n", name)
		for _, key := range families[name] {
			writeSample(&b, name, r.labelString(key), r.counters[key].Value(), ts)
		}
	}

	names, families = r.group(keysOf(r.gauges))
	for _, name := range names {
		fmt.Fprintf(&b, "# TYPE %s gauge\n", name)
		for _, key := range families[name] {
			writeSample(&b, name, r.labelString(key), r.gauges[key].Value(), ts)
		}
	}

	names, families = r.group(keysOf(r.histograms))
	for _, name := range names {
		fmt.Fprintf(&b, "# TYPE %s histogram\n", name)
		for _, key := range families[name] {
			h := r.histograms[key]
			ls := r.labelString(key)
			writeSample(&b, name+"_sum", ls, h.Sum(), ts)
			writeSample(&b, name+"_count", ls, float64(h.Count()), ts)
		}
	}

	return b.String()
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// group sorts keys into families keyed by metric name
func (r *Registry) group(keys []string) ([]string, map[string][]string) {
	families := make(map[string][]string)
	for _, key := range keys {
		name := r.names[key]
		families[name] = append(families[name], key)
	}

	names := make([]string, 0, len(families))
	for name := range families {
		sort.Strings(families[name])
		names = append(names, name)
	}
	sort.Strings(names)
	return names, families
}

// labelString formats the label set of a series as {k="v",...}
func (r *Registry) labelString(key string) string {
	labels := r.labels[key]
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func writeSample(b *strings.Builder, name, labels string, value float64, ts int64) {
	if ts > 0 {
		fmt.Fprintf(b, "%s%s %s %d\n", name, labels, formatValue(value), ts)
	} else {
		fmt.Fprintf(b, "%s%s %s\n", name, labels, formatValue(value))
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Global registry shared by the CLI and the daemon
var defaultRegistry = NewRegistry()

// GetRegistry returns the process-wide registry
func GetRegistry() *Registry {
	return defaultRegistry
}
