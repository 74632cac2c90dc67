package engine

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/stupside/mirage/internal/fingerprint"
)

//go:embed js/probe.js
var probeJS string

// Observation is what a page script sees after the overrides are applied.
type Observation struct {
	URL                 string              `json:"url" yaml:"url"`
	UserAgent           string              `json:"userAgent" yaml:"user_agent"`
	Platform            string              `json:"platform" yaml:"platform"`
	Languages           []string            `json:"languages" yaml:"languages"`
	HardwareConcurrency int                 `json:"hardwareConcurrency" yaml:"hardware_concurrency"`
	DeviceMemory        float64             `json:"deviceMemory" yaml:"device_memory"`
	Screen              ObservedScreen      `json:"screen" yaml:"screen"`
	Timezone            string              `json:"timezone" yaml:"timezone"`
	TimezoneOffset      int                 `json:"timezoneOffset" yaml:"timezone_offset"`
	Brands              []fingerprint.Brand `json:"brands" yaml:"brands,omitempty"`
	Canvas              string              `json:"canvas" yaml:"canvas"`
	WebGLVendor         string              `json:"webglVendor" yaml:"webgl_vendor"`
	WebGLRenderer       string              `json:"webglRenderer" yaml:"webgl_renderer"`
	Rect                *ObservedRect       `json:"rect" yaml:"rect,omitempty"`
	WebRTC              bool                `json:"webrtc" yaml:"webrtc"`
}

type ObservedScreen struct {
	Width       int `json:"width" yaml:"width"`
	Height      int `json:"height" yaml:"height"`
	AvailWidth  int `json:"availWidth" yaml:"avail_width"`
	AvailHeight int `json:"availHeight" yaml:"avail_height"`
	ColorDepth  int `json:"colorDepth" yaml:"color_depth"`
}

type ObservedRect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Probe navigates to rawURL and reads the fingerprint surfaces back from
// the page.
func (s *Session) Probe(rawURL string) (*Observation, error) {
	if err := s.Navigate(rawURL); err != nil {
		return nil, err
	}

	var obs Observation
	err := chromedp.Run(s.ctx, chromedp.Evaluate(probeJS, &obs, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", rawURL, err)
	}
	obs.URL = rawURL
	return &obs, nil
}

// Probe runs a probe in a dedicated browser session.
func (e *Engine) Probe(ctx context.Context, rawURL string) (*Observation, error) {
	s, err := e.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Probe(rawURL)
}
