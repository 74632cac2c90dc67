// Package hook assembles the in-page interception script for one window
// context and resolves the values it fabricates.
package hook

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stupside/mirage/internal/fingerprint"
	"github.com/stupside/mirage/internal/seed"
)

const (
	DefaultBinding  = "__mirage_notify"
	DefaultDebounce = 500 * time.Millisecond
)

var ErrNoStorage = errors.New("hook: window storage is required")

// Options configures a Handler.
type Options struct {
	Config   *fingerprint.Config
	Storage  *WindowStorage
	Browser  uint64
	Global   uint64
	Binding  string
	Debounce time.Duration
	// Frame marks a child frame context adopting its top's storage.
	Frame bool
	Now   func() time.Time
}

// Handler is the per-context state: the seed set, the memoized fabricated
// values and the script built from them.
type Handler struct {
	id    string
	opts  Options
	seeds seed.Info

	mu   sync.Mutex
	memo map[string]any
}

// NewHandler derives the seed set of a context.
func NewHandler(opts Options) (*Handler, error) {
	if opts.Storage == nil {
		return nil, ErrNoStorage
	}
	if opts.Config == nil {
		opts.Config = &fingerprint.Config{}
	}
	if opts.Binding == "" {
		opts.Binding = DefaultBinding
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Handler{
		id:    uuid.NewString(),
		opts:  opts,
		seeds: seed.Derive(opts.Storage.Seed, opts.Storage.Host, opts.Browser, opts.Global),
		memo:  make(map[string]any),
	}, nil
}

func (h *Handler) ID() string                  { return h.id }
func (h *Handler) Config() *fingerprint.Config { return h.opts.Config }
func (h *Handler) Storage() *WindowStorage     { return h.opts.Storage }
func (h *Handler) Frame() bool                 { return h.opts.Frame }
func (h *Handler) Seeds() seed.Info            { return h.seeds }

// Seed returns the seed a mode reads, or false when the mode is not seeded.
func (h *Handler) Seed(mode interface{ Scope() (seed.Scope, bool) }) (uint64, bool) {
	scope, ok := mode.Scope()
	if !ok {
		return 0, false
	}
	s, err := h.seeds.Lookup(scope)
	if err != nil {
		return 0, false
	}
	return s, true
}

// Value memoizes fn under key for the lifetime of the handler. Concurrent
// first calls may both run fn; the first stored result wins.
func Value[T any](h *Handler, key string, fn func() T) T {
	h.mu.Lock()
	if v, ok := h.memo[key]; ok {
		h.mu.Unlock()
		return v.(T)
	}
	h.mu.Unlock()

	v := fn()

	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.memo[key]; ok {
		return prev.(T)
	}
	h.memo[key] = v
	return v
}

// Active returns the tasks whose guard passes, in registry order.
func (h *Handler) Active() []Task {
	var out []Task
	for _, t := range Tasks() {
		if t.Condition(h.opts.Config) {
			out = append(out, t)
		}
	}
	return out
}

// Payload is the JSON object handed to the in-page boot function.
type Payload struct {
	ID       string         `json:"id"`
	Marker   string         `json:"marker"`
	Token    string         `json:"token"`
	Binding  string         `json:"binding"`
	Debounce int64          `json:"debounce"`
	Hooked   []string       `json:"hooked,omitempty"`
	Params   map[string]any `json:"params"`
}

// Payload resolves the parameters of every active task. A task whose
// parameters fail to resolve is left out; the others still run.
func (h *Handler) Payload() *Payload {
	p := &Payload{
		ID:       h.id,
		Marker:   fmt.Sprintf("%x", seed.Mix(h.seeds.Browser, "marker")),
		Token:    fmt.Sprintf("%x", seed.Mix(h.seeds.Browser, "source")),
		Binding:  h.opts.Binding,
		Debounce: h.opts.Debounce.Milliseconds(),
		Hooked:   h.opts.Storage.Hooked(),
		Params:   make(map[string]any),
	}
	for _, t := range h.Active() {
		params, err := t.Params(h)
		if err != nil {
			slog.Warn("skipping hook task", "task", t.Name, "host", h.opts.Storage.Host, "error", err)
			continue
		}
		if params == nil {
			continue
		}
		p.Params[t.Name] = params
	}
	return p
}

const scriptTemplate = `(function () {
function boot(win, payload, parent) {
__RAND__
__PRELUDE__
__TASKS__
return h;
}
try {
  boot(globalThis, __PAYLOAD__, null);
} catch (e) {}
})();
//# sourceURL=__TOKEN__
`

// Script returns the injection script, or an empty string when no surface
// is hooked.
func (h *Handler) Script() (string, error) {
	p := h.Payload()

	var body strings.Builder
	surfaces := 0
	for _, t := range h.Active() {
		if _, ok := p.Params[t.Name]; !ok {
			continue
		}
		if !t.structural {
			surfaces++
		}
		fmt.Fprintf(&body, "run(%q, function (h, p) {\n%s\n});\n", t.Name, t.Body)
	}
	if surfaces == 0 {
		return "", nil
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding hook payload: %w", err)
	}

	r := strings.NewReplacer(
		"__RAND__", randJS,
		"__PRELUDE__", preludeJS,
		"__TASKS__", body.String(),
		"__PAYLOAD__", string(raw),
		"__TOKEN__", p.Token,
	)
	return r.Replace(scriptTemplate), nil
}
