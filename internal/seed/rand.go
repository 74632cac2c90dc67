package seed

// LCG parameters shared with the in-page copy in internal/hook/js/rand.js.
const (
	lcgMul = 9301
	lcgInc = 49297
	lcgMod = 233280
)

// Rand is the seeded linear congruential generator behind every derived
// value. It is deterministic for a given seed and not safe for concurrent use.
type Rand struct {
	state uint64
}

// NewRand returns a generator positioned at seed.
func NewRand(seed uint64) *Rand {
	return &Rand{state: seed % lcgMod}
}

// Next advances the generator and returns the raw state.
func (r *Rand) Next() uint64 {
	r.state = (r.state*lcgMul + lcgInc) % lcgMod
	return r.state
}

// Float64 returns a value in [0, 1).
func (r *Rand) Float64() float64 {
	return float64(r.Next()) / lcgMod
}

// Intn returns a value in [0, n). It returns 0 when n <= 0.
func (r *Rand) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Float64() * float64(n))
}

// Between returns a value in [lo, hi].
func (r *Rand) Between(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + r.Intn(hi-lo+1)
}

// Pick returns one element of items.
func Pick[T any](r *Rand, items []T) T {
	return items[r.Intn(len(items))]
}

// Mix folds a label into a seed so several surfaces can share one scope
// without sharing their random streams.
func Mix(s uint64, label string) uint64 {
	return HashHost(s, label)
}
