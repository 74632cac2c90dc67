package fingerprint

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// Config is the full fingerprint tree. Every known surface has an entry and
// the zero value keeps every surface native.
type Config struct {
	Navigator NavigatorConfig `koanf:"navigator" yaml:"navigator"`
	Screen    ScreenConfig    `koanf:"screen" yaml:"screen"`
	Normal    NormalConfig    `koanf:"normal" yaml:"normal"`
	Other     OtherConfig     `koanf:"other" yaml:"other"`
}

// NavigatorConfig groups the navigator identity fields.
type NavigatorConfig struct {
	Equipment           HookMode[string]   `koanf:"equipment" yaml:"equipment"`
	Language            HookMode[[]string] `koanf:"language" yaml:"language"`
	HardwareConcurrency HookMode[int]      `koanf:"hardware_concurrency" yaml:"hardware_concurrency"`
	DeviceMemory        HookMode[int]      `koanf:"device_memory" yaml:"device_memory"`
}

// ScreenConfig groups screen geometry.
type ScreenConfig struct {
	Size  HookMode[ScreenSize] `koanf:"size" yaml:"size"`
	Depth HookMode[int]        `koanf:"depth" yaml:"depth"`
}

// NormalConfig groups GPU identity.
type NormalConfig struct {
	GPU HookMode[GPU] `koanf:"gpu" yaml:"gpu"`
}

// OtherConfig groups the rendering and environment surfaces. Noise surfaces
// take a literal noise seed in value mode.
type OtherConfig struct {
	Timezone HookMode[Timezone] `koanf:"timezone" yaml:"timezone"`
	Canvas   HookMode[uint64]   `koanf:"canvas" yaml:"canvas"`
	Audio    HookMode[uint64]   `koanf:"audio" yaml:"audio"`
	WebGL    HookMode[uint64]   `koanf:"webgl" yaml:"webgl"`
	WebRTC   HookMode[struct{}] `koanf:"webrtc" yaml:"webrtc"`
	Font     HookMode[uint64]   `koanf:"font" yaml:"font"`
	WebGPU   HookMode[uint64]   `koanf:"webgpu" yaml:"webgpu"`
	DOMRect  HookMode[uint64]   `koanf:"dom_rect" yaml:"dom_rect"`
}

// ScreenSize is a screen resolution in CSS pixels.
type ScreenSize struct {
	Width  int `koanf:"width" yaml:"width" json:"width"`
	Height int `koanf:"height" yaml:"height" json:"height"`
}

// GPU is the unmasked WebGL vendor/renderer pair.
type GPU struct {
	Vendor   string `koanf:"vendor" yaml:"vendor" json:"vendor"`
	Renderer string `koanf:"renderer" yaml:"renderer" json:"renderer"`
}

// Timezone is a spoofed zone. Offset follows getTimezoneOffset and is
// resolved from Zone when unset.
type Timezone struct {
	Zone   string `koanf:"zone" yaml:"zone" json:"zone"`
	Locale string `koanf:"locale" yaml:"locale" json:"locale"`
	Offset *int   `koanf:"offset" yaml:"offset,omitempty" json:"offset,omitempty"`
}

// Navigator surface keys, also used as notification keys.
const (
	SurfaceUserAgent           = "navigator.userAgent"
	SurfaceAppVersion          = "navigator.appVersion"
	SurfacePlatform            = "navigator.platform"
	SurfaceVendor              = "navigator.vendor"
	SurfaceLanguage            = "navigator.language"
	SurfaceLanguages           = "navigator.languages"
	SurfaceHardwareConcurrency = "navigator.hardwareConcurrency"
	SurfaceDeviceMemory        = "navigator.deviceMemory"
	SurfaceUserAgentData       = "navigator.userAgentData"
	SurfaceScreenWidth         = "screen.width"
	SurfaceScreenHeight        = "screen.height"
	SurfaceScreenDepth         = "screen.colorDepth"
	SurfaceGPU                 = "webgl.renderer"
	SurfaceTimezone            = "timezone"
	SurfaceCanvas              = "canvas"
	SurfaceAudio               = "audio"
	SurfaceWebGL               = "webgl"
	SurfaceWebRTC              = "webrtc"
	SurfaceFont                = "font"
	SurfaceWebGPU              = "webgpu"
	SurfaceDOMRect             = "domRect"
)

// Surfaces lists every notification key in a stable order.
func Surfaces() []string {
	return []string{
		SurfaceUserAgent, SurfaceAppVersion, SurfacePlatform, SurfaceVendor,
		SurfaceLanguage, SurfaceLanguages,
		SurfaceHardwareConcurrency, SurfaceDeviceMemory, SurfaceUserAgentData,
		SurfaceScreenWidth, SurfaceScreenHeight, SurfaceScreenDepth,
		SurfaceGPU, SurfaceTimezone, SurfaceCanvas, SurfaceAudio, SurfaceWebGL,
		SurfaceWebRTC, SurfaceFont, SurfaceWebGPU, SurfaceDOMRect,
	}
}

// AnyNavigator reports whether at least one navigator field is hooked.
func (c *Config) AnyNavigator() bool {
	n := c.Navigator
	return !n.Equipment.IsDefault() || !n.Language.IsDefault() ||
		!n.HardwareConcurrency.IsDefault() || !n.DeviceMemory.IsDefault()
}

// AnyScreen reports whether screen geometry is hooked.
func (c *Config) AnyScreen() bool {
	return !c.Screen.Size.IsDefault() || !c.Screen.Depth.IsDefault()
}

// Validate checks mode tags and literal values across the tree.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	n := c.Navigator
	add(n.Equipment.validate("navigator.equipment"))
	if n.Equipment.Kind() == KindValue && n.Equipment.Value == "" {
		add(errors.New("navigator.equipment: empty user agent"))
	}
	add(n.Language.validate("navigator.language"))
	if n.Language.Kind() == KindValue {
		if len(n.Language.Value) == 0 {
			add(errors.New("navigator.language: empty language list"))
		}
		for _, tag := range n.Language.Value {
			if _, err := language.Parse(tag); err != nil {
				add(fmt.Errorf("navigator.language: %q: %w", tag, err))
			}
		}
	}
	add(n.HardwareConcurrency.validate("navigator.hardware_concurrency"))
	if n.HardwareConcurrency.Kind() == KindValue && n.HardwareConcurrency.Value <= 0 {
		add(errors.New("navigator.hardware_concurrency: must be positive"))
	}
	add(n.DeviceMemory.validate("navigator.device_memory"))
	if n.DeviceMemory.Kind() == KindValue && n.DeviceMemory.Value <= 0 {
		add(errors.New("navigator.device_memory: must be positive"))
	}

	add(c.Screen.Size.validate("screen.size"))
	if s := c.Screen.Size; s.Kind() == KindValue && (s.Value.Width <= 0 || s.Value.Height <= 0) {
		add(errors.New("screen.size: width and height must be positive"))
	}
	add(c.Screen.Depth.validate("screen.depth"))
	if d := c.Screen.Depth; d.Kind() == KindValue && d.Value <= 0 {
		add(errors.New("screen.depth: must be positive"))
	}

	add(c.Normal.GPU.validate("normal.gpu"))
	if g := c.Normal.GPU; g.Kind() == KindValue && (g.Value.Vendor == "" || g.Value.Renderer == "") {
		add(errors.New("normal.gpu: vendor and renderer are required"))
	}

	o := c.Other
	add(o.Timezone.validate("other.timezone"))
	if tz := o.Timezone; tz.Kind() == KindValue {
		if _, err := time.LoadLocation(tz.Value.Zone); err != nil || tz.Value.Zone == "" {
			add(fmt.Errorf("other.timezone: unknown zone %q", tz.Value.Zone))
		}
		if tz.Value.Locale != "" {
			if _, err := language.Parse(tz.Value.Locale); err != nil {
				add(fmt.Errorf("other.timezone: locale %q: %w", tz.Value.Locale, err))
			}
		}
	}
	add(o.Canvas.validate("other.canvas"))
	add(o.Audio.validate("other.audio"))
	add(o.WebGL.validate("other.webgl"))
	add(o.WebRTC.validate("other.webrtc", KindDefault, KindDisabled))
	add(o.Font.validate("other.font"))
	add(o.WebGPU.validate("other.webgpu"))
	add(o.DOMRect.validate("other.dom_rect"))

	return errors.Join(errs...)
}
