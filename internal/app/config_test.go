package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupside/mirage/internal/fingerprint"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Engine.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.NotifyDebounce)
	assert.Equal(t, "__mirage_notify", cfg.Engine.Binding)
	assert.Equal(t, 30*time.Second, cfg.Browser.Timeout)
	assert.True(t, filepath.IsAbs(cfg.Store.Path))
	assert.True(t, cfg.Fingerprint.Navigator.Equipment.IsDefault())
}

func TestLoadFingerprintTree(t *testing.T) {
	path := writeConfig(t, `
engine:
  whitelist: [bank.example]
  notify_debounce: 1s
fingerprint:
  navigator:
    equipment: {type: browser}
    language: {type: value, value: [de-DE, de]}
    hardware_concurrency: {type: value, value: 8}
  screen:
    size: {type: value, value: {width: 1600, height: 900}}
  other:
    timezone: {type: value, value: {zone: Europe/Berlin, locale: de-DE}}
    canvas: {type: page}
    dom_rect: {type: value, value: 77}
    webrtc: {type: disabled}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	fp := cfg.Fingerprint
	assert.Equal(t, fingerprint.KindBrowser, fp.Navigator.Equipment.Kind())
	assert.Equal(t, []string{"de-DE", "de"}, fp.Navigator.Language.Value)
	assert.Equal(t, 8, fp.Navigator.HardwareConcurrency.Value)
	assert.Equal(t, fingerprint.ScreenSize{Width: 1600, Height: 900}, fp.Screen.Size.Value)
	assert.Equal(t, "Europe/Berlin", fp.Other.Timezone.Value.Zone)
	assert.Equal(t, fingerprint.KindPage, fp.Other.Canvas.Kind())
	assert.Equal(t, uint64(77), fp.Other.DOMRect.Value)
	assert.Equal(t, fingerprint.KindDisabled, fp.Other.WebRTC.Kind())
	assert.Equal(t, []string{"bank.example"}, cfg.Engine.Whitelist)
	assert.Equal(t, time.Second, cfg.Engine.NotifyDebounce)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, `
fingerprint:
  other:
    canvas: {type: disabled}
`))
	require.ErrorContains(t, err, "other.canvas")

	_, err = Load(writeConfig(t, `
engine:
  concurrency: 0
`))
	require.ErrorContains(t, err, "Concurrency")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
