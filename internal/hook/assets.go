package hook

import _ "embed"

//go:embed js/rand.js
var randJS string

//go:embed js/prelude.js
var preludeJS string

//go:embed js/tasks/navigator.js
var navigatorJS string

//go:embed js/tasks/clientHints.js
var clientHintsJS string

//go:embed js/tasks/screen.js
var screenJS string

//go:embed js/tasks/timezone.js
var timezoneJS string

//go:embed js/tasks/canvas.js
var canvasJS string

//go:embed js/tasks/webgl.js
var webglJS string

//go:embed js/tasks/audio.js
var audioJS string

//go:embed js/tasks/font.js
var fontJS string

//go:embed js/tasks/webgpu.js
var webgpuJS string

//go:embed js/tasks/domRect.js
var domRectJS string

//go:embed js/tasks/webrtc.js
var webrtcJS string

//go:embed js/tasks/propagate.js
var propagateJS string

//go:embed js/tasks/ownProps.js
var ownPropsJS string
