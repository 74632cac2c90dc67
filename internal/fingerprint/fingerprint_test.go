package fingerprint

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupside/mirage/internal/seed"
)

func TestHookModeKind(t *testing.T) {
	var m HookMode[int]
	assert.Equal(t, KindDefault, m.Kind())
	assert.True(t, m.IsDefault())
	assert.False(t, m.IsSeeded())

	s := Seeded[int](seed.ScopeDomain)
	scope, ok := s.Scope()
	require.True(t, ok)
	assert.Equal(t, seed.ScopeDomain, scope)

	_, ok = Literal(4).Scope()
	assert.False(t, ok)
}

func TestValidateZeroConfig(t *testing.T) {
	var c Config
	require.NoError(t, c.Validate())
	assert.False(t, c.AnyNavigator())
	assert.False(t, c.AnyScreen())
}

func TestValidateRejects(t *testing.T) {
	c := Config{}
	c.Navigator.HardwareConcurrency = HookMode[int]{Type: "sometimes"}
	c.Navigator.Language = Literal([]string{"en-US", "not a tag!"})
	c.Screen.Size = Literal(ScreenSize{Width: 0, Height: 100})
	c.Other.Canvas = Disabled[uint64]()
	c.Other.WebRTC = Seeded[struct{}](seed.ScopePage)
	c.Other.Timezone = Literal(Timezone{Zone: "Mars/Olympus"})

	err := c.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, field := range []string{
		"navigator.hardware_concurrency",
		"navigator.language",
		"screen.size",
		"other.canvas",
		"other.webrtc",
		"other.timezone",
	} {
		assert.Contains(t, msg, field)
	}
}

func TestValidateAccepts(t *testing.T) {
	c := Config{}
	c.Navigator.Equipment = Seeded[string](seed.ScopeBrowser)
	c.Navigator.Language = Literal([]string{"fr-FR", "fr"})
	c.Other.WebRTC = Disabled[struct{}]()
	c.Other.Timezone = Literal(Timezone{Zone: "Europe/Paris", Locale: "fr-FR"})
	c.Normal.GPU = Literal(GPU{Vendor: "v", Renderer: "r"})
	require.NoError(t, c.Validate())
	assert.True(t, c.AnyNavigator())
}

func TestSurfacesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range Surfaces() {
		require.False(t, seen[s], s)
		seen[s] = true
	}
}

func TestDeriveEquipmentCoherent(t *testing.T) {
	for s := range uint64(50) {
		e := DeriveEquipment(s)
		require.Equal(t, e, DeriveEquipment(s))
		require.Len(t, e.Brands, 3)

		major := e.Brands[1].Version
		assert.Contains(t, e.UserAgent, "Chrome/"+major+".")
		assert.True(t, strings.HasPrefix(e.FullVersionList[1].Version, major+"."))
		assert.Equal(t, strings.TrimPrefix(e.UserAgent, "Mozilla/"), e.AppVersion)

		switch e.CHPlatform {
		case "Windows":
			assert.Equal(t, "Win32", e.Platform)
		case "macOS":
			assert.Equal(t, "MacIntel", e.Platform)
		}
	}
}

func TestEquipmentFromUserAgent(t *testing.T) {
	ua := "Mozilla/5.0 (Macintosh; Intel Mac OS X 13_4) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.71 Safari/537.36"
	e := EquipmentFromUserAgent(ua)
	assert.Equal(t, "MacIntel", e.Platform)
	assert.Equal(t, "macOS", e.CHPlatform)
	assert.Equal(t, "13.4.0", e.PlatformVersion)
	require.Len(t, e.Brands, 3)
	assert.Equal(t, "120", e.Brands[2].Version)
	assert.Equal(t, "120.0.6099.71", e.FullVersionList[2].Version)

	android := EquipmentFromUserAgent("Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Mobile Safari/537.36")
	assert.True(t, android.Mobile)
	assert.Equal(t, "Android", android.CHPlatform)
	assert.Equal(t, "14", android.PlatformVersion)

	firefox := EquipmentFromUserAgent("Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0")
	assert.Empty(t, firefox.Brands)
	assert.Equal(t, "Linux", firefox.CHPlatform)
}

func TestDerivationsDeterministic(t *testing.T) {
	const s = 42
	assert.Equal(t, DeriveLanguages(s), DeriveLanguages(s))
	assert.Equal(t, DeriveHardwareConcurrency(s), DeriveHardwareConcurrency(s))
	assert.Equal(t, DeriveScreenSize(s), DeriveScreenSize(s))
	assert.Equal(t, DeriveTimezone(s), DeriveTimezone(s))
	assert.Equal(t, DeriveExtension(s), DeriveExtension(s))
	assert.NotEqual(t, NoiseSeed(s, SurfaceCanvas), NoiseSeed(s, SurfaceAudio))

	langs := DeriveLanguages(s)
	langs[0] = "xx"
	assert.NotEqual(t, "xx", DeriveLanguages(s)[0])
}

func TestDerivationsSpread(t *testing.T) {
	values := map[int]bool{}
	for s := range uint64(200) {
		values[DeriveHardwareConcurrency(s)] = true
	}
	assert.Greater(t, len(values), 2)
}

func TestDeriveGPUPlatform(t *testing.T) {
	for s := range uint64(30) {
		g := DeriveGPU(s, "macOS")
		assert.True(t, strings.Contains(g.Renderer, "Apple") || strings.Contains(g.Renderer, "Intel"), g.Renderer)
	}
	g := DeriveGPU(1, "Plan9")
	assert.NotEmpty(t, g.Renderer)
}

func TestDeriveReductionRange(t *testing.T) {
	for s := range uint64(100) {
		r := DeriveReduction(s)
		require.LessOrEqual(t, r, 0.0)
		require.Greater(t, r, -0.01)
	}
}

func TestResolveTimezone(t *testing.T) {
	winter := time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)
	summer := time.Date(2024, time.July, 15, 12, 0, 0, 0, time.UTC)

	tz, err := ResolveTimezone(Timezone{Zone: "America/New_York"}, winter)
	require.NoError(t, err)
	require.NotNil(t, tz.Offset)
	assert.Equal(t, 300, *tz.Offset)
	assert.Equal(t, "en-US", tz.Locale)

	tz, err = ResolveTimezone(Timezone{Zone: "America/New_York"}, summer)
	require.NoError(t, err)
	assert.Equal(t, 240, *tz.Offset)

	tz, err = ResolveTimezone(Timezone{Zone: "Asia/Tokyo", Locale: "ja-JP"}, winter)
	require.NoError(t, err)
	assert.Equal(t, -540, *tz.Offset)

	fixed := 15
	tz, err = ResolveTimezone(Timezone{Zone: "UTC", Offset: &fixed}, winter)
	require.NoError(t, err)
	assert.Equal(t, 15, *tz.Offset)

	_, err = ResolveTimezone(Timezone{Zone: "Nowhere/Special"}, winter)
	require.Error(t, err)
}
