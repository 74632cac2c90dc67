// Package seed derives the four seeds that drive every fabricated value:
// one per page load, one per hostname, one per browser install and one per
// installation.
package seed

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Mask keeps seeds inside the range a JavaScript number represents exactly.
const Mask = 1<<53 - 1

// Scope selects which seed a seeded surface reads.
type Scope string

const (
	ScopePage    Scope = "page"
	ScopeDomain  Scope = "domain"
	ScopeBrowser Scope = "browser"
	ScopeGlobal  Scope = "global"
)

// Info is the seed set of a single context.
type Info struct {
	Page    uint64 `json:"page"`
	Domain  uint64 `json:"domain"`
	Browser uint64 `json:"browser"`
	Global  uint64 `json:"global"`
}

// Derive builds the seed set for a context. A zero browser or global seed
// means the persisted value is absent and a random one is drawn instead.
func Derive(page uint64, host string, browser, global uint64) Info {
	if browser == 0 {
		browser = Random()
	}
	if global == 0 {
		global = Random()
	}
	return Info{
		Page:    page & Mask,
		Domain:  HashHost(global, host),
		Browser: browser & Mask,
		Global:  global & Mask,
	}
}

// Lookup returns the seed for scope.
func (i Info) Lookup(s Scope) (uint64, error) {
	switch s {
	case ScopePage:
		return i.Page, nil
	case ScopeDomain:
		return i.Domain, nil
	case ScopeBrowser:
		return i.Browser, nil
	case ScopeGlobal:
		return i.Global, nil
	default:
		return 0, fmt.Errorf("unknown seed scope %q", s)
	}
}

// HashHost hashes a hostname under an installation salt. The same host
// always maps to the same seed for one salt.
func HashHost(salt uint64, host string) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], salt)

	d := xxhash.New()
	_, _ = d.Write(b[:])
	_, _ = d.WriteString(strings.ToLower(strings.TrimSuffix(host, ".")))
	return d.Sum64() & Mask
}

// Random draws a non-zero 53-bit seed from the system CSPRNG.
func Random() uint64 {
	var b [8]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			panic(fmt.Sprintf("seed: reading random bytes: %v", err))
		}
		if v := binary.LittleEndian.Uint64(b[:]) & Mask; v != 0 {
			return v
		}
	}
}
