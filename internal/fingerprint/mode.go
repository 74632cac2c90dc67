package fingerprint

import (
	"fmt"

	"github.com/stupside/mirage/internal/seed"
)

// Kind tags a HookMode.
type Kind string

const (
	KindDefault  Kind = "default"
	KindValue    Kind = "value"
	KindPage     Kind = "page"
	KindDomain   Kind = "domain"
	KindBrowser  Kind = "browser"
	KindGlobal   Kind = "global"
	KindDisabled Kind = "disabled"
)

// HookMode selects how one surface is fabricated: the real value, an
// operator literal, a value derived from one of the seeds, or suppression.
// The zero value is Default.
type HookMode[V any] struct {
	Type  Kind `koanf:"type" yaml:"type"`
	Value V    `koanf:"value" yaml:"value,omitempty"`
}

// Default returns a mode that keeps the native value.
func Default[V any]() HookMode[V] { return HookMode[V]{Type: KindDefault} }

// Literal returns a mode carrying an operator-supplied value.
func Literal[V any](v V) HookMode[V] { return HookMode[V]{Type: KindValue, Value: v} }

// Seeded returns a mode derived from the seed of the given scope.
func Seeded[V any](s seed.Scope) HookMode[V] { return HookMode[V]{Type: Kind(s)} }

// Disabled returns a mode that suppresses the surface.
func Disabled[V any]() HookMode[V] { return HookMode[V]{Type: KindDisabled} }

// Kind returns the normalized tag.
func (m HookMode[V]) Kind() Kind {
	if m.Type == "" {
		return KindDefault
	}
	return m.Type
}

// IsDefault reports whether the surface keeps its native behavior.
func (m HookMode[V]) IsDefault() bool { return m.Kind() == KindDefault }

// IsSeeded reports whether the value comes from a seed.
func (m HookMode[V]) IsSeeded() bool {
	_, ok := m.Scope()
	return ok
}

// Scope maps a seeded kind to its seed scope.
func (m HookMode[V]) Scope() (seed.Scope, bool) {
	switch m.Kind() {
	case KindPage:
		return seed.ScopePage, true
	case KindDomain:
		return seed.ScopeDomain, true
	case KindBrowser:
		return seed.ScopeBrowser, true
	case KindGlobal:
		return seed.ScopeGlobal, true
	default:
		return "", false
	}
}

func (m HookMode[V]) validate(field string, allowed ...Kind) error {
	k := m.Kind()
	switch k {
	case KindDefault, KindValue, KindPage, KindDomain, KindBrowser, KindGlobal, KindDisabled:
	default:
		return fmt.Errorf("%s: unknown mode %q", field, k)
	}
	if len(allowed) == 0 {
		if k == KindDisabled {
			return fmt.Errorf("%s: mode %q is not supported", field, k)
		}
		return nil
	}
	for _, a := range allowed {
		if a == k {
			return nil
		}
	}
	return fmt.Errorf("%s: mode %q is not supported", field, k)
}
