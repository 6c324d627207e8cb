package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrUnknownProvider = errors.New("unknown ai provider")

// Kind decides which timeout a backend gets.
type Kind int

const (
	KindRemote Kind = iota
	KindLocal
)

func (k Kind) String() string {
	if k == KindLocal {
		return "local"
	}
	return "remote"
}

type ProviderFactory func(ctx context.Context, model string) (Provider, error)

type registration struct {
	kind    Kind
	factory ProviderFactory
}

// Registry maps backend names to factories. Names are case-insensitive.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Register(name string, kind Kind, f ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[normalizeName(name)] = registration{kind: kind, factory: f}
}

// Get builds the named backend. An empty model means the configured default.
func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, Kind, error) {
	name = normalizeName(name)
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, KindRemote, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	p, err := e.factory(ctx, model)
	if err != nil {
		return nil, e.kind, err
	}
	return p, e.kind, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
