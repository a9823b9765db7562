package database

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/config"
)

// OpenFunc opens a Store for a database URL.
type OpenFunc func(ctx context.Context, cfg *config.DatabaseConfig) (Store, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]OpenFunc{}
)

// RegisterBackend registers a Store constructor for one or more URL schemes.
// This is called by the backend packages to avoid import cycles.
func RegisterBackend(open OpenFunc, schemes ...string) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	for _, s := range schemes {
		backends[s] = open
	}
}

// Open selects the backend registered for the scheme of cfg.URL.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	backendsMu.RLock()
	open, ok := backends[u.Scheme]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no store backend registered for scheme %q (registered: %v)", u.Scheme, registeredSchemes())
	}
	return open(ctx, cfg)
}

func registeredSchemes() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	out := make([]string, 0, len(backends))
	for s := range backends {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
