package hook

import (
	"github.com/stupside/mirage/internal/fingerprint"
)

// Task is one interception strategy: a guard over the configuration, the
// parameters it hands to its in-page body, and the body itself.
type Task struct {
	Name      string
	Condition func(*fingerprint.Config) bool
	// Params returns nil to skip the task for this context.
	Params func(*Handler) (any, error)
	Body   string

	structural bool
}

func surfaceTasks() []Task {
	return []Task{
		{Name: "navigator", Condition: (*fingerprint.Config).AnyNavigator, Params: navigatorParams, Body: navigatorJS},
		{Name: "clientHints", Condition: func(c *fingerprint.Config) bool { return !c.Navigator.Equipment.IsDefault() }, Params: clientHintsParams, Body: clientHintsJS},
		{Name: "screen", Condition: (*fingerprint.Config).AnyScreen, Params: screenParams, Body: screenJS},
		{Name: "timezone", Condition: func(c *fingerprint.Config) bool { return !c.Other.Timezone.IsDefault() }, Params: timezoneParams, Body: timezoneJS},
		{Name: "canvas", Condition: func(c *fingerprint.Config) bool { return !c.Other.Canvas.IsDefault() }, Params: noiseParams(canvasMode, fingerprint.SurfaceCanvas), Body: canvasJS},
		{Name: "webgl", Condition: func(c *fingerprint.Config) bool { return !c.Other.WebGL.IsDefault() || !c.Normal.GPU.IsDefault() }, Params: webglParams, Body: webglJS},
		{Name: "audio", Condition: func(c *fingerprint.Config) bool { return !c.Other.Audio.IsDefault() }, Params: audioParams, Body: audioJS},
		{Name: "font", Condition: func(c *fingerprint.Config) bool { return !c.Other.Font.IsDefault() }, Params: noiseParams(fontMode, fingerprint.SurfaceFont), Body: fontJS},
		{Name: "webgpu", Condition: func(c *fingerprint.Config) bool { return !c.Other.WebGPU.IsDefault() }, Params: noiseParams(webgpuMode, fingerprint.SurfaceWebGPU), Body: webgpuJS},
		{Name: "domRect", Condition: func(c *fingerprint.Config) bool { return !c.Other.DOMRect.IsDefault() }, Params: noiseParams(domRectMode, fingerprint.SurfaceDOMRect), Body: domRectJS},
		{Name: "webrtc", Condition: func(c *fingerprint.Config) bool { return c.Other.WebRTC.Kind() == fingerprint.KindDisabled }, Params: emptyParams, Body: webrtcJS},
	}
}

// Tasks returns the registry in activation order. Frame propagation and the
// own-properties filter run after every surface task and only when at least
// one surface is hooked.
func Tasks() []Task {
	return append(surfaceTasks(),
		Task{Name: "propagate", Condition: anySurface, Params: emptyParams, Body: propagateJS, structural: true},
		Task{Name: "ownProps", Condition: anySurface, Params: emptyParams, Body: ownPropsJS, structural: true},
	)
}

func anySurface(c *fingerprint.Config) bool {
	for _, t := range surfaceTasks() {
		if t.Condition(c) {
			return true
		}
	}
	return false
}

func emptyParams(*Handler) (any, error) {
	return map[string]any{}, nil
}

func navigatorParams(h *Handler) (any, error) {
	p := map[string]any{}
	if eq, ok := h.Equipment(); ok {
		p["userAgent"] = eq.UserAgent
		p["appVersion"] = eq.AppVersion
		p["platform"] = eq.Platform
		p["vendor"] = eq.Vendor
	}
	if langs, ok := h.Languages(); ok && len(langs) > 0 {
		p["languages"] = langs
	}
	if n, ok := h.HardwareConcurrency(); ok {
		p["hardwareConcurrency"] = n
	}
	if n, ok := h.DeviceMemory(); ok {
		p["deviceMemory"] = n
	}
	return p, nil
}

type clientHints struct {
	Brands          []fingerprint.Brand `json:"brands"`
	FullVersionList []fingerprint.Brand `json:"fullVersionList"`
	Platform        string              `json:"platform"`
	PlatformVersion string              `json:"platformVersion"`
	Architecture    string              `json:"architecture"`
	Bitness         string              `json:"bitness"`
	Model           string              `json:"model"`
	Mobile          bool                `json:"mobile"`
}

func clientHintsParams(h *Handler) (any, error) {
	eq, ok := h.Equipment()
	if !ok || len(eq.Brands) == 0 {
		return nil, nil
	}
	return clientHints{
		Brands:          eq.Brands,
		FullVersionList: eq.FullVersionList,
		Platform:        eq.CHPlatform,
		PlatformVersion: eq.PlatformVersion,
		Architecture:    eq.Architecture,
		Bitness:         eq.Bitness,
		Model:           eq.Model,
		Mobile:          eq.Mobile,
	}, nil
}

func screenParams(h *Handler) (any, error) {
	p := map[string]any{}
	if size, seeded, ok := h.ScreenSize(); ok {
		p["width"] = size.Width
		p["height"] = size.Height
		p["seeded"] = seeded
	}
	if d, ok := h.Depth(); ok {
		p["depth"] = d
	}
	return p, nil
}

type timezoneParamsJSON struct {
	Zone   string `json:"zone"`
	Locale string `json:"locale"`
	Offset int    `json:"offset"`
}

func timezoneParams(h *Handler) (any, error) {
	tz, ok, err := h.Timezone()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return timezoneParamsJSON{Zone: tz.Zone, Locale: tz.Locale, Offset: *tz.Offset}, nil
}

func canvasMode(c *fingerprint.Config) fingerprint.HookMode[uint64]  { return c.Other.Canvas }
func fontMode(c *fingerprint.Config) fingerprint.HookMode[uint64]    { return c.Other.Font }
func webgpuMode(c *fingerprint.Config) fingerprint.HookMode[uint64]  { return c.Other.WebGPU }
func domRectMode(c *fingerprint.Config) fingerprint.HookMode[uint64] { return c.Other.DOMRect }

func noiseParams(mode func(*fingerprint.Config) fingerprint.HookMode[uint64], surface string) func(*Handler) (any, error) {
	return func(h *Handler) (any, error) {
		s, ok := h.Noise(mode(h.Config()), surface)
		if !ok {
			return nil, nil
		}
		return map[string]any{"seed": s}, nil
	}
}

func webglParams(h *Handler) (any, error) {
	p := map[string]any{}
	if s, ok := h.Noise(h.Config().Other.WebGL, fingerprint.SurfaceWebGL); ok {
		p["seed"] = s
		p["extension"] = fingerprint.DeriveExtension(s)
	}
	if gpu, ok := h.GPU(); ok {
		p["vendor"] = gpu.Vendor
		p["renderer"] = gpu.Renderer
	}
	return p, nil
}

func audioParams(h *Handler) (any, error) {
	s, ok := h.Noise(h.Config().Other.Audio, fingerprint.SurfaceAudio)
	if !ok {
		return nil, nil
	}
	return map[string]any{"seed": s, "reduction": fingerprint.DeriveReduction(s)}, nil
}
