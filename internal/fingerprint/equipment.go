package fingerprint

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/stupside/mirage/internal/seed"
)

// Brand is one client-hints brand entry.
type Brand struct {
	Brand   string `json:"brand"`
	Version string `json:"version"`
}

// Equipment is a coherent navigator identity: the user agent string and the
// client-hints values that have to agree with it.
type Equipment struct {
	UserAgent       string  `json:"userAgent"`
	AppVersion      string  `json:"appVersion"`
	Platform        string  `json:"platform"`
	Vendor          string  `json:"vendor"`
	Brands          []Brand `json:"brands"`
	FullVersionList []Brand `json:"fullVersionList"`
	CHPlatform      string  `json:"chPlatform"`
	PlatformVersion string  `json:"platformVersion"`
	Architecture    string  `json:"architecture"`
	Bitness         string  `json:"bitness"`
	Model           string  `json:"model"`
	Mobile          bool    `json:"mobile"`
}

type platformPreset struct {
	uaOS              string
	navigatorPlatform string
	chPlatform        string
	chPlatformVersion string
	architecture      string
	bitness           string
	gpus              []GPU
}

var platformPresets = []platformPreset{
	{
		uaOS:              "Windows NT 10.0; Win64; x64",
		navigatorPlatform: "Win32",
		chPlatform:        "Windows",
		chPlatformVersion: "10.0.0",
		architecture:      "x86",
		bitness:           "64",
		gpus: []GPU{
			{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) UHD Graphics 770 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce GTX 1650 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (AMD)", "ANGLE (AMD, AMD Radeon RX 580 Series Direct3D11 vs_5_0 ps_5_0, D3D11)"},
		},
	},
	{
		uaOS:              "Windows NT 10.0; Win64; x64",
		navigatorPlatform: "Win32",
		chPlatform:        "Windows",
		chPlatformVersion: "15.0.0",
		architecture:      "x86",
		bitness:           "64",
		gpus: []GPU{
			{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) Iris(R) Xe Graphics Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce RTX 4070 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (AMD)", "ANGLE (AMD, AMD Radeon RX 6600 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
		},
	},
	{
		uaOS:              "Macintosh; Intel Mac OS X 10_15_7",
		navigatorPlatform: "MacIntel",
		chPlatform:        "macOS",
		chPlatformVersion: "14.5.0",
		architecture:      "arm",
		bitness:           "64",
		gpus: []GPU{
			{"Google Inc. (Apple)", "ANGLE (Apple, ANGLE Metal Renderer: Apple M1, Unspecified Version)"},
			{"Google Inc. (Apple)", "ANGLE (Apple, ANGLE Metal Renderer: Apple M2, Unspecified Version)"},
			{"Google Inc. (Intel Inc.)", "ANGLE (Intel Inc., Intel Iris Plus Graphics, OpenGL 4.1)"},
		},
	},
	{
		uaOS:              "X11; Linux x86_64",
		navigatorPlatform: "Linux x86_64",
		chPlatform:        "Linux",
		chPlatformVersion: "6.5.0",
		architecture:      "x86",
		bitness:           "64",
		gpus: []GPU{
			{"Google Inc. (Intel)", "ANGLE (Intel, Mesa Intel(R) UHD Graphics 620 (KBL GT2), OpenGL 4.6)"},
			{"Google Inc. (AMD)", "ANGLE (AMD, AMD Radeon Graphics (radeonsi, renoir, LLVM 15.0.7), OpenGL 4.6)"},
		},
	},
}

type chromeVersion struct {
	major string
	full  string
}

var chromeVersions = []chromeVersion{
	{"131", "131.0.6778.139"},
	{"132", "132.0.6834.110"},
	{"133", "133.0.6943.98"},
	{"134", "134.0.6998.88"},
}

var greaseBrands = []string{`Not A(Brand`, `Not/A)Brand`, `Not_A Brand`}

var languagePresets = [][]string{
	{"en-US", "en"},
	{"en-GB", "en", "en-US"},
	{"de-DE", "de", "en-US", "en"},
	{"fr-FR", "fr", "en-US", "en"},
	{"es-ES", "es"},
	{"it-IT", "it", "en"},
	{"nl-NL", "nl", "en"},
	{"pt-BR", "pt", "en-US", "en"},
}

type timezonePreset struct {
	zone   string
	locale string
}

var timezonePresets = []timezonePreset{
	{"America/New_York", "en-US"},
	{"America/Chicago", "en-US"},
	{"America/Denver", "en-US"},
	{"America/Los_Angeles", "en-US"},
	{"Europe/London", "en-GB"},
	{"Europe/Berlin", "de-DE"},
	{"Europe/Paris", "fr-FR"},
	{"Europe/Madrid", "es-ES"},
	{"Asia/Tokyo", "ja-JP"},
	{"Australia/Sydney", "en-AU"},
}

var (
	screenPresets         = []ScreenSize{{1920, 1080}, {2560, 1440}, {1366, 768}, {1536, 864}, {1680, 1050}, {1440, 900}, {3840, 2160}}
	hardwareConcurrencies = []int{2, 4, 6, 8, 12, 16}
	deviceMemories        = []int{2, 4, 8}
	colorDepths           = []int{24, 24, 24, 30}
	extensionSuffixes     = []string{"texture_float_blend", "shader_precision", "color_buffer_half", "depth_clamp", "multi_draw", "clip_control"}
	extensionVendors      = []string{"EXT", "WEBGL", "OES", "KHR"}
)

func rng(s uint64, label string) *seed.Rand {
	return seed.NewRand(seed.Mix(s, label))
}

// DeriveEquipment picks a platform and a Chrome version family and builds
// the matching identity.
func DeriveEquipment(s uint64) Equipment {
	r := rng(s, "equipment")
	plat := seed.Pick(r, platformPresets)
	ver := seed.Pick(r, chromeVersions)
	grease := seed.Pick(r, greaseBrands)

	ua := fmt.Sprintf(
		"Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s.0.0.0 Safari/537.36",
		plat.uaOS, ver.major,
	)
	return Equipment{
		UserAgent:       ua,
		AppVersion:      strings.TrimPrefix(ua, "Mozilla/"),
		Platform:        plat.navigatorPlatform,
		Vendor:          "Google Inc.",
		Brands:          brands(grease, "8", ver.major),
		FullVersionList: brands(grease, "8.0.0.0", ver.full),
		CHPlatform:      plat.chPlatform,
		PlatformVersion: plat.chPlatformVersion,
		Architecture:    plat.architecture,
		Bitness:         plat.bitness,
	}
}

func brands(grease, greaseVersion, version string) []Brand {
	return []Brand{
		{grease, greaseVersion},
		{"Chromium", version},
		{"Google Chrome", version},
	}
}

var (
	chromeRe  = regexp.MustCompile(`(?:Chrome|CriOS)/(\d+)((?:\.\d+){0,3})`)
	androidRe = regexp.MustCompile(`Android ([\d.]+)`)
	macRe     = regexp.MustCompile(`Mac OS X (\d+)[_.](\d+)`)
)

// EquipmentFromUserAgent builds an identity around an operator-supplied
// user agent. Client-hints values are inferred from the string so that
// userAgentData never contradicts userAgent.
func EquipmentFromUserAgent(ua string) Equipment {
	e := Equipment{
		UserAgent:  ua,
		AppVersion: strings.TrimPrefix(ua, "Mozilla/"),
		Vendor:     "Google Inc.",
		Bitness:    "64",
	}

	switch {
	case strings.Contains(ua, "Android"):
		e.Platform, e.CHPlatform, e.Architecture, e.Mobile = "Linux armv81", "Android", "arm", true
		if m := androidRe.FindStringSubmatch(ua); m != nil {
			e.PlatformVersion = m[1]
		}
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"):
		e.Platform, e.CHPlatform, e.Architecture, e.Mobile = "iPhone", "iOS", "arm", true
		e.Vendor = "Apple Computer, Inc."
	case strings.Contains(ua, "Windows"):
		e.Platform, e.CHPlatform, e.PlatformVersion, e.Architecture = "Win32", "Windows", "10.0.0", "x86"
	case strings.Contains(ua, "Mac OS X"), strings.Contains(ua, "Macintosh"):
		e.Platform, e.CHPlatform, e.Architecture = "MacIntel", "macOS", "arm"
		if m := macRe.FindStringSubmatch(ua); m != nil {
			e.PlatformVersion = m[1] + "." + m[2] + ".0"
		}
	case strings.Contains(ua, "CrOS"):
		e.Platform, e.CHPlatform, e.Architecture = "Linux x86_64", "Chrome OS", "x86"
	case strings.Contains(ua, "Linux"):
		e.Platform, e.CHPlatform, e.Architecture = "Linux x86_64", "Linux", "x86"
	}

	if m := chromeRe.FindStringSubmatch(ua); m != nil {
		major, full := m[1], m[1]+m[2]
		if m[2] == "" {
			full = major + ".0.0.0"
		}
		e.Brands = brands(greaseBrands[0], "8", major)
		e.FullVersionList = brands(greaseBrands[0], "8.0.0.0", full)
	}
	return e
}

// DeriveLanguages returns a navigator.languages list; the first entry is
// navigator.language.
func DeriveLanguages(s uint64) []string {
	l := seed.Pick(rng(s, "language"), languagePresets)
	return append([]string(nil), l...)
}

func DeriveHardwareConcurrency(s uint64) int {
	return seed.Pick(rng(s, "hardwareConcurrency"), hardwareConcurrencies)
}

func DeriveDeviceMemory(s uint64) int {
	return seed.Pick(rng(s, "deviceMemory"), deviceMemories)
}

// DeriveScreenSize returns a common desktop resolution. The realm keeps the
// real aspect ratio and only borrows the width when the size is seeded.
func DeriveScreenSize(s uint64) ScreenSize {
	return seed.Pick(rng(s, "screen"), screenPresets)
}

func DeriveDepth(s uint64) int {
	return seed.Pick(rng(s, "depth"), colorDepths)
}

// DeriveGPU picks a renderer plausible for the given client-hints platform.
// An unknown platform draws from every preset.
func DeriveGPU(s uint64, platform string) GPU {
	var pool []GPU
	for _, p := range platformPresets {
		if platform == "" || strings.EqualFold(p.chPlatform, platform) {
			pool = append(pool, p.gpus...)
		}
	}
	if len(pool) == 0 {
		for _, p := range platformPresets {
			pool = append(pool, p.gpus...)
		}
	}
	return seed.Pick(rng(s, "gpu"), pool)
}

// DeriveTimezone picks a zone together with a locale that fits it. The
// offset is left to ResolveTimezone.
func DeriveTimezone(s uint64) Timezone {
	p := seed.Pick(rng(s, "timezone"), timezonePresets)
	return Timezone{Zone: p.zone, Locale: p.locale}
}

// NoiseSeed gives each noise surface its own stream under one scope seed.
func NoiseSeed(s uint64, surface string) uint64 {
	return seed.Mix(s, surface)
}

// DeriveExtension returns the synthetic WebGL extension name appended to
// getSupportedExtensions.
func DeriveExtension(s uint64) string {
	r := rng(s, "extension")
	return seed.Pick(r, extensionVendors) + "_" + seed.Pick(r, extensionSuffixes)
}

// DeriveReduction returns the fixed offset added to
// DynamicsCompressorNode.reduction, in (-0.01, 0].
func DeriveReduction(s uint64) float64 {
	return -rng(s, "reduction").Float64() / 100
}
