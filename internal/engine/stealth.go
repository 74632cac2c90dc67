package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/stupside/mirage/internal/app"
	"github.com/stupside/mirage/internal/fingerprint"
	"github.com/stupside/mirage/internal/hook"
)

const (
	defaultWidth  = 1920
	defaultHeight = 1080
)

// allocatorOpts returns exec-allocator options that avoid the usual
// headless tells. Fixed navigator and screen values are applied at launch.
func allocatorOpts(cfg app.BrowserConfig, fp fingerprint.Config) []chromedp.ExecAllocatorOption {
	var headlessVal string
	if cfg.Headless {
		headlessVal = "new"
	}

	width, height := defaultWidth, defaultHeight
	if fp.Screen.Size.Kind() == fingerprint.KindValue {
		width, height = fp.Screen.Size.Value.Width, fp.Screen.Size.Value.Height
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,

		chromedp.Flag("headless", headlessVal),
		chromedp.Flag("no-sandbox", cfg.NoSandbox),

		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),

		chromedp.WindowSize(width, height),
	}
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}
	if fp.Navigator.Equipment.Kind() == fingerprint.KindValue {
		opts = append(opts, chromedp.UserAgent(fp.Navigator.Equipment.Value))
	}
	if fp.Other.WebRTC.Kind() == fingerprint.KindDisabled {
		opts = append(opts, chromedp.Flag("webrtc-ip-handling-policy", "disable_non_proxied_udp"))
	}
	return opts
}

// overrides mirrors the handler's resolved values into the browser so
// network headers, workers and Intl agree with the in-page overrides.
// Surfaces left at default are not touched.
func overrides(h *hook.Handler) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		tz, hasTZ, err := h.Timezone()
		if err != nil {
			return fmt.Errorf("resolving timezone: %w", err)
		}
		langs, hasLangs := h.Languages()

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return emulation.SetAutomationOverride(false).Do(ctx)
		})

		if n, ok := h.HardwareConcurrency(); ok {
			g.Go(func() error {
				return emulation.SetHardwareConcurrencyOverride(int64(n)).Do(ctx)
			})
		}

		if hasTZ {
			g.Go(func() error {
				// Chrome refuses a second override until the first is cleared.
				if err := emulation.SetTimezoneOverride("").Do(ctx); err != nil {
					return err
				}
				if err := emulation.SetTimezoneOverride(tz.Zone).Do(ctx); err != nil {
					return err
				}
				locale := tz.Locale
				if hasLangs && len(langs) > 0 {
					locale = langs[0]
				}
				if err := emulation.SetLocaleOverride().Do(ctx); err != nil {
					return err
				}
				return emulation.SetLocaleOverride().WithLocale(locale).Do(ctx)
			})
		}

		if eq, ok := h.Equipment(); ok {
			g.Go(func() error {
				ua := userAgentOverride(eq)
				if hasLangs {
					ua.AcceptLanguage = AcceptLanguage(langs)
				}
				return ua.Do(ctx)
			})
		}

		return g.Wait()
	}
}

func userAgentOverride(eq fingerprint.Equipment) *emulation.SetUserAgentOverrideParams {
	ua := emulation.SetUserAgentOverride(eq.UserAgent)
	ua.Platform = eq.Platform
	if len(eq.Brands) == 0 {
		return ua
	}
	ua.UserAgentMetadata = &emulation.UserAgentMetadata{
		Brands:          brandVersions(eq.Brands),
		FullVersionList: brandVersions(eq.FullVersionList),
		Platform:        eq.CHPlatform,
		PlatformVersion: eq.PlatformVersion,
		Architecture:    eq.Architecture,
		Model:           eq.Model,
		Mobile:          eq.Mobile,
		Bitness:         eq.Bitness,
	}
	return ua
}

func brandVersions(brands []fingerprint.Brand) []*emulation.UserAgentBrandVersion {
	out := make([]*emulation.UserAgentBrandVersion, len(brands))
	for i, b := range brands {
		out[i] = &emulation.UserAgentBrandVersion{Brand: b.Brand, Version: b.Version}
	}
	return out
}

// AcceptLanguage renders an Accept-Language header the way Chrome does:
// each tag followed by its base language, with decreasing q-values.
func AcceptLanguage(langs []string) string {
	seen := make(map[string]bool)
	var parts []string
	add := func(tag string) {
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		if len(parts) == 0 {
			parts = append(parts, tag)
			return
		}
		q := 10 - len(parts)
		if q < 1 {
			q = 1
		}
		parts = append(parts, fmt.Sprintf("%s;q=0.%d", tag, q))
	}
	for _, l := range langs {
		t, err := language.Parse(l)
		if err != nil {
			continue
		}
		add(t.String())
		base, conf := t.Base()
		if conf != language.No {
			add(base.String())
		}
	}
	return strings.Join(parts, ",")
}
