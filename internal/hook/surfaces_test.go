package hook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupside/mirage/internal/fingerprint"
)

func ints(t *testing.T, r *realm, src string) []int64 {
	t.Helper()
	var out []int64
	require.NoError(t, r.vm.ExportTo(r.run(src), &out))
	return out
}

func TestCanvasExportIsStable(t *testing.T) {
	cfg := &fingerprint.Config{}
	cfg.Other.Canvas = fingerprint.Literal[uint64](4242)

	r := newRealm(t)
	r.run(`var c = document.createElement('canvas');
		c.width = 50;
		c.height = 50;
		var ctx = c.getContext('2d');
		ctx.fillText('hi', 1, 2);`)
	before := r.run("c.toDataURL()").String()

	r.run(script(t, newHandler(t, cfg, nil)))

	first := r.run("c.toDataURL()").String()
	assert.NotEqual(t, before, first)
	assert.True(t, strings.HasPrefix(first, strings.TrimSuffix(before, "]")))
	assert.Equal(t, first, r.run("c.toDataURL()").String())
	assert.Equal(t, first, r.run("var blob; c.toBlob(function (b) { blob = b; }); blob").String())
	assert.Equal(t, int64(1), r.run("c.__ops.length").ToInteger())
}

func TestCanvasReadbackNoise(t *testing.T) {
	cfg := &fingerprint.Config{}
	cfg.Other.Canvas = fingerprint.Literal[uint64](4242)

	r := newRealm(t)
	r.run(script(t, newHandler(t, cfg, nil)))
	r.run(`var c = document.createElement('canvas');
		var ctx = c.getContext('2d');`)

	got := ints(t, r, `(function () {
		var a = ctx.getImageData(0, 0, 50, 50).data;
		var b = ctx.getImageData(0, 0, 50, 50).data;
		var base = [10, 20, 30, 255];
		var changed = 0, far = 0, alpha = 0, same = 1;
		for (var i = 0; i < a.length; i++) {
			var d = Math.abs(a[i] - base[i % 4]);
			if (d) {
				changed++;
			}
			if (d > 1) {
				far++;
			}
			if (i % 4 === 3 && d) {
				alpha++;
			}
			if (a[i] !== b[i]) {
				same = 0;
			}
		}
		return [changed, far, alpha, same];
	})()`)
	assert.Positive(t, got[0])
	assert.Equal(t, []int64{0, 0, 1}, got[1:])

	assert.True(t, r.run("c.__opts.willReadFrequently").ToBoolean())
	assert.True(t, r.run(`c.getContext('2d', { alpha: false });
		c.__opts.willReadFrequently === true && c.__opts.alpha === false`).ToBoolean())
}

func TestAudioNoiseCachedPerBuffer(t *testing.T) {
	cfg := &fingerprint.Config{}
	cfg.Other.Audio = fingerprint.Literal[uint64](99)
	h := newHandler(t, cfg, nil)

	r := newRealm(t)
	r.run(script(t, h))
	r.run(`var buf = new AudioBuffer(1000, 1);
		var data = buf.getChannelData(0);
		var first = Array.prototype.join.call(data, ',');`)

	assert.True(t, r.run("Array.prototype.some.call(data, function (v) { return v !== 0; })").ToBoolean())
	assert.True(t, r.run("Array.prototype.every.call(data, function (v) { return Math.abs(v) <= 1.1e-7; })").ToBoolean())
	assert.True(t, r.run("buf.getChannelData(0) === data").ToBoolean())
	assert.Equal(t, r.run("first").String(), r.run("Array.prototype.join.call(buf.getChannelData(0), ',')").String())
	assert.Equal(t, r.run("first").String(), r.run(`var dest = new Float32Array(1000);
		buf.copyFromChannel(dest, 0, 0);
		Array.prototype.join.call(dest, ',')`).String())

	// A write resets the channel; the next read perturbs it the same way.
	r.run("buf.copyToChannel(new Float32Array(1000), 0, 0)")
	assert.True(t, r.run("Array.prototype.every.call(buf.__ch[0], function (v) { return v === 0; })").ToBoolean())
	assert.Equal(t, r.run("first").String(), r.run("Array.prototype.join.call(buf.getChannelData(0), ',')").String())

	s, ok := h.Noise(cfg.Other.Audio, fingerprint.SurfaceAudio)
	require.True(t, ok)
	assert.InDelta(t, -3+fingerprint.DeriveReduction(s), r.run("new DynamicsCompressorNode().reduction").ToFloat(), 1e-12)
}

func TestWebGLReadRestoresPageState(t *testing.T) {
	cfg := &fingerprint.Config{}
	cfg.Other.WebGL = fingerprint.Literal[uint64](77)
	cfg.Normal.GPU = fingerprint.Literal(fingerprint.GPU{Vendor: "Acme", Renderer: "Acme GPU"})
	h := newHandler(t, cfg, nil)

	r := newRealm(t)
	r.run(script(t, h))
	r.run(`var gl = new WebGLRenderingContext();
		var before = JSON.stringify(gl.attribs[0]);
		gl.readPixels(0, 0, 1, 1, 0, 0, null);`)

	assert.Equal(t, r.run("before").String(), r.run("JSON.stringify(gl.attribs[0])").String())
	assert.Equal(t, "pageProg", r.run("gl.program").String())
	assert.Equal(t, "pageArray", r.run("gl.arrayBuffer").String())
	assert.True(t, r.run("gl.calls.indexOf('drawArrays') !== -1 && gl.calls.indexOf('drawArrays') < gl.calls.indexOf('readPixels')").ToBoolean())

	r.run(`var gl2 = new WebGLRenderingContext();
		gl2.attribs[0].enabled = true;
		gl2.readPixels(0, 0, 1, 1, 0, 0, null);`)
	assert.True(t, r.run("gl2.attribs[0].enabled && gl2.attribs[0].buffer === 'pageBuf'").ToBoolean())

	assert.Equal(t, "Acme", r.run("gl.getParameter(37445)").String())
	assert.Equal(t, "Acme GPU", r.run("gl.getParameter(37446)").String())
	assert.Equal(t, "pageProg", r.run("gl.getParameter(gl.CURRENT_PROGRAM)").String())

	s, ok := h.Noise(cfg.Other.WebGL, fingerprint.SurfaceWebGL)
	require.True(t, ok)
	ext := r.run("gl.getSupportedExtensions().join(',')").String()
	assert.Contains(t, ext, "OES_texture_float")
	assert.Contains(t, ext, fingerprint.DeriveExtension(s))
}

func TestFontMetricsNoise(t *testing.T) {
	cfg := &fingerprint.Config{}
	cfg.Other.Font = fingerprint.Literal[uint64](31)

	r := newRealm(t)
	r.run(script(t, newHandler(t, cfg, nil)))

	got := ints(t, r, `(function () {
		var changed = 0, far = 0, unstable = 0;
		for (var i = 0; i < 64; i++) {
			var el = new HTMLElement('Font' + i);
			var w = el.offsetWidth;
			if (w !== el.offsetWidth) {
				unstable++;
			}
			if (w !== 100) {
				changed++;
			}
			if (w !== 100 && w !== 99 && w !== 101) {
				far++;
			}
		}
		return [changed, far, unstable];
	})()`)
	assert.Positive(t, got[0])
	assert.Equal(t, []int64{0, 0}, got[1:])
	assert.Equal(t, int64(100), r.run("new HTMLElement('').offsetWidth").ToInteger())

	got = ints(t, r, `(function () {
		var renamed = 0, bad = 0;
		for (var i = 0; i < 200; i++) {
			var src = 'local(Font' + i + ')';
			var f = new FontFace('F', src);
			if (f.source !== src) {
				renamed++;
				if (!/^local\(Font\d+ [0-9a-z]{1,4}\)$/.test(f.source)) {
					bad++;
				}
			}
		}
		return [renamed, bad];
	})()`)
	assert.Positive(t, got[0])
	assert.Zero(t, got[1])
	assert.Equal(t, "url(a.woff)", r.run("new FontFace('F', 'url(a.woff)').source").String())
	assert.True(t, r.run("new FontFace('F', 'url(a.woff)') instanceof FontFace").ToBoolean())
}

func TestWebGPUNoise(t *testing.T) {
	cfg := &fingerprint.Config{}
	cfg.Other.WebGPU = fingerprint.Literal[uint64](5)

	r := newRealm(t)
	r.run(script(t, newHandler(t, cfg, nil)))

	limit := r.run("new GPUSupportedLimits().maxBufferSize").ToInteger()
	assert.LessOrEqual(t, limit, int64(268435456))
	assert.Greater(t, limit, int64(268435456-256))
	assert.Zero(t, limit%4)
	assert.Equal(t, limit, r.run("new GPUSupportedLimits().maxBufferSize").ToInteger())

	r.run(`var enc = new GPUCommandEncoder();
		var desc = { colorAttachments: [{ view: 'v', clearValue: { r: 0.5, g: 0.5, b: 0.5, a: 1 } }] };
		enc.beginRenderPass(desc);`)
	assert.InDelta(t, 0.5, r.run("enc.last.colorAttachments[0].clearValue.r").ToFloat(), 1e-4)
	assert.Equal(t, 1.0, r.run("enc.last.colorAttachments[0].clearValue.a").ToFloat())
	assert.Equal(t, "v", r.run("enc.last.colorAttachments[0].view").String())
	assert.Equal(t, 0.5, r.run("desc.colorAttachments[0].clearValue.r").ToFloat())

	r.run(`var q = new GPUQueue();
		var data = new Float32Array(1000).fill(1);
		q.writeBuffer(null, 0, data);`)
	assert.True(t, r.run("q.last !== data && q.last.length === 1000").ToBoolean())
	assert.True(t, r.run("Array.prototype.every.call(data, function (v) { return v === 1; })").ToBoolean())
	assert.True(t, r.run("Array.prototype.some.call(q.last, function (v) { return v !== 1; })").ToBoolean())
	assert.True(t, r.run("Array.prototype.every.call(q.last, function (v) { return Math.abs(v - 1) < 1e-4; })").ToBoolean())
}

func TestWebRTCRemoved(t *testing.T) {
	cfg := &fingerprint.Config{}
	cfg.Other.WebRTC = fingerprint.Disabled[struct{}]()

	r := newRealm(t)
	require.Equal(t, "function", r.run("typeof RTCPeerConnection").String())
	require.True(t, r.run("'mediaDevices' in navigator").ToBoolean())

	r.run(script(t, newHandler(t, cfg, nil)))

	assert.Equal(t, "undefined", r.run("typeof RTCPeerConnection").String())
	assert.Equal(t, "undefined", r.run("typeof webkitRTCPeerConnection").String())
	assert.Equal(t, "undefined", r.run("typeof RTCDataChannel").String())
	assert.False(t, r.run("'mediaDevices' in navigator").ToBoolean())
	assert.False(t, r.run("'getUserMedia' in navigator").ToBoolean())
	assert.Zero(t, r.run("Object.getOwnPropertyNames(globalThis).filter(function (n) { return /RTC/.test(n); }).length").ToInteger())
}

func TestTimezoneRendering(t *testing.T) {
	cfg := &fingerprint.Config{}
	cfg.Other.Timezone = fingerprint.Literal(fingerprint.Timezone{Zone: "Asia/Tokyo"})

	r := newRealm(t)
	r.run(script(t, newHandler(t, cfg, nil)))
	r.run("var d = new Date(Date.UTC(2024, 0, 15, 12))")

	assert.Equal(t, int64(-540), r.run("d.getTimezoneOffset()").ToInteger())
	assert.Equal(t, "Mon Jan 15 2024 21:00:00 GMT+0900 (Japan Standard Time)", r.run("d.toString()").String())
	assert.Equal(t, "Mon Jan 15 2024", r.run("d.toDateString()").String())
	assert.Equal(t, "21:00:00 GMT+0900 (Japan Standard Time)", r.run("d.toTimeString()").String())

	assert.Equal(t, "Asia/Tokyo", r.run("Intl.DateTimeFormat().resolvedOptions().timeZone").String())
	assert.Equal(t, "en-US", r.run("new Intl.DateTimeFormat().resolvedOptions().locale").String())
	assert.Equal(t, "UTC", r.run("new Intl.DateTimeFormat('de-DE', { timeZone: 'UTC' }).resolvedOptions().timeZone").String())
	assert.True(t, r.run("new Intl.DateTimeFormat() instanceof Intl.DateTimeFormat").ToBoolean())
}
