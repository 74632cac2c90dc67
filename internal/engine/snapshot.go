package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/stupside/mirage/internal/hook"
)

// capture identifies the fingerprint a page was rendered under.
type capture struct {
	Handler string    `json:"handler"`
	Storage string    `json:"storage"`
	Host    string    `json:"host"`
	URL     string    `json:"url"`
	Tasks   []string  `json:"tasks"`
	Hooked  []string  `json:"hooked"`
	Taken   time.Time `json:"taken"`
}

func newCapture(h *hook.Handler, rawURL string, now time.Time) capture {
	c := capture{URL: rawURL, Taken: now.UTC()}
	if h == nil {
		c.Handler = "untouched"
		return c
	}
	c.Handler = h.ID()
	c.Storage = h.Storage().ID
	c.Host = h.Storage().Host
	c.Hooked = h.Storage().Hooked()
	for _, t := range h.Active() {
		c.Tasks = append(c.Tasks, t.Name)
	}
	return c
}

// prefix is the path shared by the files of one capture: one directory per
// navigated URL, one file stem per handler and instant.
func (c capture) prefix(root string) string {
	return filepath.Join(root, sanitize(c.URL), fmt.Sprintf("%s_%d", c.Handler, c.Taken.UnixMilli()))
}

// snapshot writes a screenshot, the document HTML and the capture metadata
// under root. It only runs when debug logging is enabled.
func snapshot(ctx context.Context, root string, h *hook.Handler, rawURL string) {
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return
	}

	c := newCapture(h, rawURL, time.Now())
	prefix := c.prefix(root)
	if err := os.MkdirAll(filepath.Dir(prefix), 0o755); err != nil {
		slog.DebugContext(ctx, "snapshot: mkdir failed", "error", err)
		return
	}

	meta, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		slog.DebugContext(ctx, "snapshot: encode metadata failed", "handler", c.Handler, "error", err)
	} else if err := os.WriteFile(prefix+".json", meta, 0o644); err != nil {
		slog.DebugContext(ctx, "snapshot: write metadata failed", "error", err)
	}

	var buf []byte
	if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		slog.DebugContext(ctx, "snapshot: screenshot failed", "handler", c.Handler, "error", err)
	} else if err := os.WriteFile(prefix+".png", buf, 0o644); err != nil {
		slog.DebugContext(ctx, "snapshot: write png failed", "error", err)
	}

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html)); err != nil {
		slog.DebugContext(ctx, "snapshot: html failed", "handler", c.Handler, "error", err)
	} else if err := os.WriteFile(prefix+".html", []byte(html), 0o644); err != nil {
		slog.DebugContext(ctx, "snapshot: write html failed", "error", err)
	}

	slog.DebugContext(ctx, "snapshot: saved", "handler", c.Handler, "host", c.Host, "path", prefix)
}

// sanitize turns a URL into a safe directory name.
func sanitize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	s := u.Host + strings.TrimSuffix(u.Path, "/")
	s = strings.NewReplacer("/", "_", ":", "_", "?", "_").Replace(s)
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}
