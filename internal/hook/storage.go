package hook

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stupside/mirage/internal/seed"
)

// WindowStorage is the state of one top-level navigation. Child frames of
// the navigation share it so every realm of a tab reports one identity.
type WindowStorage struct {
	ID        string
	URL       string
	Host      string
	Seed      uint64
	CreatedAt time.Time

	mu     sync.Mutex
	hooked []string
}

// NewWindowStorage draws a fresh page seed for a navigation to rawURL.
func NewWindowStorage(rawURL string) (*WindowStorage, error) {
	host, err := Host(rawURL)
	if err != nil {
		return nil, err
	}
	return &WindowStorage{
		ID:        uuid.NewString(),
		URL:       rawURL,
		Host:      host,
		Seed:      seed.Random(),
		CreatedAt: time.Now(),
	}, nil
}

// MarkHooked records a context hooked with this storage. It reports false
// when id was already recorded.
func (s *WindowStorage) MarkHooked(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.hooked, id) {
		return false
	}
	s.hooked = append(s.hooked, id)
	return true
}

// Hooked lists the contexts hooked with this storage, top first.
func (s *WindowStorage) Hooked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.hooked)
}

// Host extracts the lower-cased hostname of rawURL. Opaque documents such as
// about:blank have an empty host.
func Host(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", rawURL, err)
	}
	return strings.ToLower(u.Hostname()), nil
}
