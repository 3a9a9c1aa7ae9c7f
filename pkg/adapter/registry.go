package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Factory creates an unconnected adapter. A nil logger discards output.
type Factory func(logger *slog.Logger) Adapter

type registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	aliases   map[string]string
}

var adapters = &registry{
	factories: make(map[string]Factory),
	aliases:   make(map[string]string),
}

func (r *registry) resolve(name string) (string, Factory, bool) {
	name = strings.ToLower(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	f, ok := r.factories[name]
	return name, f, ok
}

// Register adds an adapter factory under name and any aliases. Names are
// case insensitive. Adapter packages call it from init.
func Register(name string, factory Factory, aliases ...string) {
	name = strings.ToLower(name)
	adapters.mu.Lock()
	defer adapters.mu.Unlock()
	adapters.factories[name] = factory
	for _, alias := range aliases {
		adapters.aliases[strings.ToLower(alias)] = name
	}
}

// Get returns the factory registered under name or one of its aliases.
func Get(name string) (Factory, bool) {
	_, f, ok := adapters.resolve(name)
	return f, ok
}

// IsRegistered reports whether name resolves to an adapter.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// ListAdapters returns the registered adapter names, sorted. Aliases are
// not listed.
func ListAdapters() []string {
	adapters.mu.RLock()
	defer adapters.mu.RUnlock()
	return slices.Sorted(maps.Keys(adapters.factories))
}

// NewAdapter creates an adapter for cfg.Type without connecting it.
func NewAdapter(cfg Config, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, errors.New("adapter type not specified")
	}
	name, factory, ok := adapters.resolve(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return factory(logger.With("adapter", name)), nil
}

// UnknownAdapterError is returned for a source type no adapter is
// registered under.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q (available: %s); check source.type in semql.yaml",
		e.Type, strings.Join(e.Available, ", "))
}
