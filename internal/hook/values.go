package hook

import (
	"github.com/stupside/mirage/internal/fingerprint"
	"github.com/stupside/mirage/internal/seed"
)

func resolve[V any](h *Handler, key string, m fingerprint.HookMode[V], derive func(uint64) V) (V, bool) {
	var zero V
	switch m.Kind() {
	case fingerprint.KindDefault, fingerprint.KindDisabled:
		return zero, false
	case fingerprint.KindValue:
		return m.Value, true
	}
	s, ok := h.Seed(m)
	if !ok {
		return zero, false
	}
	return Value(h, key, func() V { return derive(s) }), true
}

// Equipment resolves the navigator identity.
func (h *Handler) Equipment() (fingerprint.Equipment, bool) {
	m := h.opts.Config.Navigator.Equipment
	if m.Kind() == fingerprint.KindValue {
		return Value(h, "equipment", func() fingerprint.Equipment {
			return fingerprint.EquipmentFromUserAgent(m.Value)
		}), true
	}
	return resolve(h, "equipment", fingerprint.HookMode[fingerprint.Equipment]{Type: m.Type}, fingerprint.DeriveEquipment)
}

func (h *Handler) Languages() ([]string, bool) {
	return resolve(h, "languages", h.opts.Config.Navigator.Language, fingerprint.DeriveLanguages)
}

func (h *Handler) HardwareConcurrency() (int, bool) {
	return resolve(h, "hardwareConcurrency", h.opts.Config.Navigator.HardwareConcurrency, fingerprint.DeriveHardwareConcurrency)
}

func (h *Handler) DeviceMemory() (int, bool) {
	return resolve(h, "deviceMemory", h.opts.Config.Navigator.DeviceMemory, fingerprint.DeriveDeviceMemory)
}

// ScreenSize resolves the screen size. seeded reports whether the in-page
// code should keep the real aspect ratio.
func (h *Handler) ScreenSize() (size fingerprint.ScreenSize, seeded, ok bool) {
	m := h.opts.Config.Screen.Size
	size, ok = resolve(h, "screenSize", m, fingerprint.DeriveScreenSize)
	return size, m.IsSeeded(), ok
}

func (h *Handler) Depth() (int, bool) {
	return resolve(h, "depth", h.opts.Config.Screen.Depth, fingerprint.DeriveDepth)
}

// GPU resolves the WebGL renderer, kept plausible for the resolved platform.
func (h *Handler) GPU() (fingerprint.GPU, bool) {
	return resolve(h, "gpu", h.opts.Config.Normal.GPU, func(s uint64) fingerprint.GPU {
		platform := ""
		if eq, ok := h.Equipment(); ok {
			platform = eq.CHPlatform
		}
		return fingerprint.DeriveGPU(s, platform)
	})
}

type timezoneResult struct {
	tz  fingerprint.Timezone
	err error
}

// Timezone resolves the zone and its offset at handler creation time.
func (h *Handler) Timezone() (fingerprint.Timezone, bool, error) {
	base, ok := resolve(h, "timezone.base", h.opts.Config.Other.Timezone, fingerprint.DeriveTimezone)
	if !ok {
		return fingerprint.Timezone{}, false, nil
	}
	r := Value(h, "timezone", func() timezoneResult {
		tz, err := fingerprint.ResolveTimezone(base, h.opts.Now())
		return timezoneResult{tz, err}
	})
	return r.tz, true, r.err
}

// Noise resolves the noise seed of a rendering surface. Literal seeds are
// used as given.
func (h *Handler) Noise(m fingerprint.HookMode[uint64], surface string) (uint64, bool) {
	switch m.Kind() {
	case fingerprint.KindDefault, fingerprint.KindDisabled:
		return 0, false
	case fingerprint.KindValue:
		return m.Value & seed.Mask, true
	}
	s, ok := h.Seed(m)
	if !ok {
		return 0, false
	}
	return fingerprint.NoiseSeed(s, surface), true
}
