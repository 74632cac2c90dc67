// Package engine drives Chrome over the DevTools protocol: it installs the
// interception script before every navigation, coordinates out-of-process
// frames and collects the notification reports.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/target"

	"github.com/stupside/mirage/internal/app"
	"github.com/stupside/mirage/internal/hook"
	"github.com/stupside/mirage/internal/notify"
	"github.com/stupside/mirage/internal/store"
)

var (
	ErrAlreadyHooked = errors.New("engine: target already hooked")
	ErrWhitelisted   = errors.New("engine: host is whitelisted")
	ErrDisabled      = errors.New("engine: disabled")
	ErrUnknownParent = errors.New("engine: unknown parent target")
)

// SeedSource provides the persisted browser and global seeds.
type SeedSource interface {
	EnsureSeed(ctx context.Context, name string) (uint64, error)
}

// Engine owns the configuration, the seeds and the per-target bookkeeping.
// It is safe for concurrent use.
type Engine struct {
	cfg     *app.Config
	browser uint64
	global  uint64
	sink    notify.Sink

	mu       sync.Mutex
	handlers map[target.ID]*hook.Handler
	storages map[target.ID]*hook.WindowStorage
	roots    map[target.ID]target.ID
}

// New resolves the browser and global seeds, preferring explicit values
// from the configuration over stored ones.
func New(ctx context.Context, cfg *app.Config, seeds SeedSource, sink notify.Sink) (*Engine, error) {
	e := &Engine{
		cfg:      cfg,
		browser:  cfg.Engine.BrowserSeed,
		global:   cfg.Engine.GlobalSeed,
		sink:     sink,
		handlers: make(map[target.ID]*hook.Handler),
		storages: make(map[target.ID]*hook.WindowStorage),
		roots:    make(map[target.ID]target.ID),
	}

	if seeds != nil {
		var err error
		if e.browser == 0 {
			if e.browser, err = seeds.EnsureSeed(ctx, store.SeedBrowser); err != nil {
				return nil, fmt.Errorf("loading browser seed: %w", err)
			}
		}
		if e.global == 0 {
			if e.global, err = seeds.EnsureSeed(ctx, store.SeedGlobal); err != nil {
				return nil, fmt.Errorf("loading global seed: %w", err)
			}
		}
	}

	slog.DebugContext(ctx, "engine ready", "whitelist", len(cfg.Engine.Whitelist), "cdp_overrides", cfg.Engine.CDPOverrides)
	return e, nil
}

func (e *Engine) Config() *app.Config { return e.cfg }

// Prepare builds the handler and the injection script for a target. An
// empty parent marks a top-level navigation, which always starts a new
// window storage. A child frame adopts the storage of its top-level target
// and is hooked at most once.
func (e *Engine) Prepare(id target.ID, rawURL string, parent target.ID) (*hook.Handler, string, error) {
	if !e.cfg.Engine.Enabled {
		return nil, "", ErrDisabled
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var storage *hook.WindowStorage
	if parent == "" {
		s, err := hook.NewWindowStorage(rawURL)
		if err != nil {
			return nil, "", err
		}
		if Whitelisted(e.cfg.Engine.Whitelist, s.Host) {
			delete(e.handlers, id)
			delete(e.storages, id)
			return nil, "", ErrWhitelisted
		}
		storage = s
	} else {
		if _, ok := e.handlers[id]; ok {
			return nil, "", ErrAlreadyHooked
		}
		root := parent
		if r, ok := e.roots[parent]; ok {
			root = r
		}
		s, ok := e.storages[root]
		if !ok {
			return nil, "", fmt.Errorf("%w: %s", ErrUnknownParent, parent)
		}
		storage = s
		e.roots[id] = root
	}
	storage.MarkHooked(string(id))

	h, err := hook.NewHandler(hook.Options{
		Config:   &e.cfg.Fingerprint,
		Storage:  storage,
		Browser:  e.browser,
		Global:   e.global,
		Binding:  e.cfg.Engine.Binding,
		Debounce: e.cfg.Engine.NotifyDebounce,
		Frame:    parent != "",
	})
	if err != nil {
		return nil, "", err
	}

	script, err := h.Script()
	if err != nil {
		return nil, "", fmt.Errorf("building script for %s: %w", storage.Host, err)
	}

	e.handlers[id] = h
	if parent == "" {
		e.storages[id] = storage
	}
	return h, script, nil
}

// Handler returns the current handler of a target.
func (e *Engine) Handler(id target.ID) (*hook.Handler, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.handlers[id]
	return h, ok
}

// Forget drops a target and every frame adopted from it.
func (e *Engine) Forget(id target.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers, id)
	delete(e.storages, id)
	delete(e.roots, id)
	for child, root := range e.roots {
		if root == id {
			delete(e.handlers, child)
			delete(e.roots, child)
		}
	}
}
