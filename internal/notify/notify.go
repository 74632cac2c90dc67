// Package notify aggregates surface-read counters reported by hooked realms
// and delivers debounced snapshots to a sink.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// Report is one delivered snapshot. Counts is cumulative for the page and
// Delta holds what changed since the previous delivery.
type Report struct {
	Host   string         `json:"host" yaml:"host"`
	URL    string         `json:"url" yaml:"url"`
	Counts map[string]int `json:"counts" yaml:"counts"`
	Delta  map[string]int `json:"delta" yaml:"delta"`
	At     time.Time      `json:"at" yaml:"at"`
}

// Sink receives reports.
type Sink interface {
	Deliver(ctx context.Context, r Report) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r Report) error

func (f SinkFunc) Deliver(ctx context.Context, r Report) error { return f(ctx, r) }

// Aggregator collects counters for one top-level page. Notify and Merge
// never block on delivery.
type Aggregator struct {
	sink     Sink
	debounce time.Duration

	mu        sync.Mutex
	host, url string
	local     map[string]int
	realms    map[string]map[string]int
	delivered map[string]int
	timer     *time.Timer
	dirty     bool
	closed    bool

	deliverMu sync.Mutex
}

// NewAggregator returns an aggregator that delivers to sink at most once per
// debounce window.
func NewAggregator(sink Sink, debounce time.Duration) *Aggregator {
	return &Aggregator{
		sink:      sink,
		debounce:  debounce,
		local:     make(map[string]int),
		realms:    make(map[string]map[string]int),
		delivered: make(map[string]int),
	}
}

// Reset delivers what is pending for the previous page and starts counting
// for a new one.
func (a *Aggregator) Reset(ctx context.Context, host, url string) {
	a.Flush(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.host, a.url = host, url
	a.local = make(map[string]int)
	a.realms = make(map[string]map[string]int)
	a.delivered = make(map[string]int)
}

// Notify increments one surface counter.
func (a *Aggregator) Notify(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.local[key]++
	a.scheduleLocked()
}

// Merge replaces the cumulative snapshot of one reporting realm.
func (a *Aggregator) Merge(reporter string, counts map[string]int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.realms[reporter] = maps.Clone(counts)
	a.scheduleLocked()
}

// Snapshot returns the current totals.
func (a *Aggregator) Snapshot() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalLocked()
}

func (a *Aggregator) scheduleLocked() {
	a.dirty = true
	if a.timer != nil {
		return
	}
	a.timer = time.AfterFunc(a.debounce, func() {
		a.Flush(context.Background())
	})
}

func (a *Aggregator) totalLocked() map[string]int {
	total := maps.Clone(a.local)
	for _, counts := range a.realms {
		for k, v := range counts {
			total[k] += v
		}
	}
	return total
}

// Flush delivers pending counters now.
func (a *Aggregator) Flush(ctx context.Context) {
	a.deliverMu.Lock()
	defer a.deliverMu.Unlock()

	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if !a.dirty || a.sink == nil {
		a.mu.Unlock()
		return
	}
	a.dirty = false

	total := a.totalLocked()
	delta := make(map[string]int)
	for k, v := range total {
		if d := v - a.delivered[k]; d > 0 {
			delta[k] = d
		}
	}
	a.delivered = maps.Clone(total)
	r := Report{Host: a.host, URL: a.url, Counts: total, Delta: delta, At: time.Now()}
	a.mu.Unlock()

	if len(delta) == 0 {
		return
	}
	if err := a.sink.Deliver(ctx, r); err != nil {
		slog.WarnContext(ctx, "delivering notification report", "host", r.Host, "error", err)
	}
}

// Close flushes and stops accepting counters.
func (a *Aggregator) Close(ctx context.Context) {
	a.Flush(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

// Binding is the message a realm sends through the runtime binding.
type Binding struct {
	ID     string         `json:"id"`
	Counts map[string]int `json:"counts"`
}

// ParseBinding decodes a realm report.
func ParseBinding(payload string) (Binding, error) {
	var b Binding
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return Binding{}, fmt.Errorf("decoding binding payload: %w", err)
	}
	if b.ID == "" {
		return Binding{}, errors.New("binding payload has no reporter id")
	}
	return b, nil
}

// LogSink writes reports to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Deliver(ctx context.Context, r Report) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"host", r.Host, "url", r.URL}
	for _, k := range slices.Sorted(maps.Keys(r.Delta)) {
		attrs = append(attrs, k, r.Delta[k])
	}
	logger.InfoContext(ctx, "fingerprint surfaces read", attrs...)
	return nil
}

// MultiSink delivers to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, r Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
