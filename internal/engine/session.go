package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/stupside/mirage/internal/hook"
	"github.com/stupside/mirage/internal/notify"
)

// Session owns one Chrome instance and its top-level tab.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	engine      *Engine
	agg         *notify.Aggregator
	top         target.ID
	snapshotDir string

	mu       sync.Mutex
	scriptID page.ScriptIdentifier
	prepared string
	children map[target.ID]context.CancelFunc
}

// NewSession launches Chrome and attaches the engine to its first tab.
func (e *Engine) NewSession(ctx context.Context) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOpts(e.cfg.Browser, e.cfg.Fingerprint)...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:         taskCtx,
		cancel:      taskCancel,
		allocCancel: allocCancel,
		engine:      e,
		agg:         notify.NewAggregator(e.sink, e.cfg.Engine.NotifyDebounce),
		snapshotDir: filepath.Join(filepath.Dir(e.cfg.Store.Path), "snapshots"),
		children:    make(map[target.ID]context.CancelFunc),
	}

	chromedp.ListenTarget(taskCtx, s.listen)

	if err := chromedp.Run(taskCtx, s.attach()); err != nil {
		s.Close()
		return nil, fmt.Errorf("attaching to browser: %w", err)
	}
	return s, nil
}

// Aggregator exposes the session's report aggregator.
func (s *Session) Aggregator() *notify.Aggregator { return s.agg }

// attach enables the domains the engine listens on for the top target.
func (s *Session) attach() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		s.top = chromedp.FromContext(ctx).Target.TargetID

		steps := []chromedp.Action{
			runtime.Enable(),
			page.Enable(),
			runtime.AddBinding(s.engine.cfg.Engine.Binding),
			target.SetAutoAttach(true, false).WithFlatten(true),
		}
		if s.engine.cfg.Engine.TrackNavigations {
			steps = append(steps, fetch.Enable().WithPatterns([]*fetch.RequestPattern{{
				URLPattern:   "*",
				ResourceType: network.ResourceTypeDocument,
				RequestStage: fetch.RequestStageRequest,
			}}))
		}
		for _, a := range steps {
			if err := a.Do(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Navigate installs a fresh script for rawURL and loads it, bounded by the
// browser timeout.
func (s *Session) Navigate(rawURL string) error {
	// Don't derive a timeout context from the task context: canceling it
	// would tear the target down.
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(s.ctx,
			chromedp.ActionFunc(func(ctx context.Context) error {
				if err := s.install(ctx, rawURL); err != nil {
					return err
				}
				s.mu.Lock()
				s.prepared = rawURL
				s.mu.Unlock()
				return nil
			}),
			chromedp.Navigate(rawURL),
		)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("navigating to %s: %w", rawURL, err)
		}
	case <-time.After(s.engine.cfg.Browser.Timeout):
		return fmt.Errorf("navigating to %s: timed out after %s", rawURL, s.engine.cfg.Browser.Timeout)
	case <-s.ctx.Done():
		return s.ctx.Err()
	}

	h, _ := s.Top()
	snapshot(s.ctx, s.snapshotDir, h, rawURL)
	return nil
}

// install replaces the new-document script of the top target with one
// built for rawURL, then applies the protocol-level overrides.
func (s *Session) install(ctx context.Context, rawURL string) error {
	h, script, err := s.engine.Prepare(s.top, rawURL, "")
	switch {
	case errors.Is(err, ErrWhitelisted), errors.Is(err, ErrDisabled):
		slog.DebugContext(ctx, "navigation left untouched", "url", rawURL, "reason", err)
		return s.uninstall(ctx)
	case err != nil:
		return err
	}

	if err := s.uninstall(ctx); err != nil {
		return err
	}
	if script != "" {
		id, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
		if err != nil {
			return fmt.Errorf("registering script: %w", err)
		}
		s.mu.Lock()
		s.scriptID = id
		s.mu.Unlock()
	}

	if s.engine.cfg.Engine.CDPOverrides {
		if err := overrides(h).Do(ctx); err != nil {
			return fmt.Errorf("applying overrides: %w", err)
		}
	}

	s.agg.Reset(ctx, h.Storage().Host, rawURL)
	slog.DebugContext(ctx, "script installed",
		"url", rawURL,
		"handler", h.ID(),
		"tasks", len(h.Active()),
	)
	return nil
}

func (s *Session) uninstall(ctx context.Context) error {
	s.mu.Lock()
	id := s.scriptID
	s.scriptID = ""
	s.mu.Unlock()
	if id == "" {
		return nil
	}
	return page.RemoveScriptToEvaluateOnNewDocument(id).Do(ctx)
}

// listen dispatches target events. It must not block: protocol calls are
// moved to their own goroutine.
func (s *Session) listen(ev any) {
	switch e := ev.(type) {
	case *runtime.EventBindingCalled:
		if e.Name != s.engine.cfg.Engine.Binding {
			return
		}
		b, err := notify.ParseBinding(e.Payload)
		if err != nil {
			slog.Debug("dropping malformed report", "error", err)
			return
		}
		s.agg.Merge(b.ID, b.Counts)

	case *fetch.EventRequestPaused:
		go s.renew(e)

	case *target.EventAttachedToTarget:
		if e.TargetInfo == nil || e.TargetInfo.Type != "iframe" {
			return
		}
		go s.adopt(e.TargetInfo)

	case *target.EventDetachedFromTarget:
		if e.TargetID != "" {
			s.release(e.TargetID)
		}
	}
}

// renew re-registers the script with a fresh page seed before a top-level
// document request continues.
func (s *Session) renew(e *fetch.EventRequestPaused) {
	ctx := cdp.WithExecutor(s.ctx, chromedp.FromContext(s.ctx).Target)

	if string(e.FrameID) == string(s.top) && e.Request != nil {
		s.mu.Lock()
		skip := s.prepared == e.Request.URL
		s.prepared = ""
		s.mu.Unlock()

		if !skip {
			if err := s.install(ctx, e.Request.URL); err != nil {
				slog.WarnContext(ctx, "renewing script failed", "url", e.Request.URL, "error", err)
			}
		}
	}

	if err := fetch.ContinueRequest(e.RequestID).Do(ctx); err != nil {
		slog.DebugContext(ctx, "continuing request failed", "error", err)
	}
}

// adopt hooks an out-of-process frame with its top target's storage.
func (s *Session) adopt(info *target.Info) {
	_, script, err := s.engine.Prepare(info.TargetID, info.URL, s.top)
	switch {
	case errors.Is(err, ErrAlreadyHooked), errors.Is(err, ErrDisabled):
		return
	case err != nil:
		slog.Debug("frame not hooked", "target", info.TargetID, "url", info.URL, "error", err)
		return
	}

	childCtx, cancel := chromedp.NewContext(s.ctx, chromedp.WithTargetID(info.TargetID))
	chromedp.ListenTarget(childCtx, s.listen)

	s.mu.Lock()
	s.children[info.TargetID] = cancel
	s.mu.Unlock()

	steps := []chromedp.Action{
		runtime.Enable(),
		runtime.AddBinding(s.engine.cfg.Engine.Binding),
		target.SetAutoAttach(true, false).WithFlatten(true),
	}
	if script != "" {
		steps = append(steps,
			chromedp.ActionFunc(func(ctx context.Context) error {
				_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
				return err
			}),
			// The frame may already be running; the realm marker makes a
			// second boot a no-op.
			chromedp.ActionFunc(func(ctx context.Context) error {
				_, _, err := runtime.Evaluate(script).Do(ctx)
				return err
			}),
		)
	}

	if err := chromedp.Run(childCtx, steps...); err != nil {
		slog.Debug("hooking frame failed", "target", info.TargetID, "error", err)
		s.release(info.TargetID)
		return
	}
	slog.Debug("frame hooked", "target", info.TargetID, "url", info.URL)
}

func (s *Session) release(id target.ID) {
	s.mu.Lock()
	cancel, ok := s.children[id]
	delete(s.children, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}
	s.engine.Forget(id)
}

// Close flushes pending reports and shuts the browser down.
func (s *Session) Close() {
	s.agg.Close(context.Background())

	s.mu.Lock()
	children := s.children
	s.children = make(map[target.ID]context.CancelFunc)
	s.mu.Unlock()
	for id, cancel := range children {
		cancel()
		s.engine.Forget(id)
	}

	if s.top != "" {
		s.engine.Forget(s.top)
	}
	s.cancel()
	s.allocCancel()
}

// Top returns the handler of the top-level document.
func (s *Session) Top() (*hook.Handler, bool) {
	return s.engine.Handler(s.top)
}
