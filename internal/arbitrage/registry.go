package arbitrage

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// SourceRegistry holds market data sources keyed by exchange identifier.
type SourceRegistry struct {
	sources map[string]domain.MarketDataSource
	mu      sync.RWMutex
}

// NewSourceRegistry returns an empty registry. Call Register to add sources.
func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{sources: make(map[string]domain.MarketDataSource)}
}

// Register adds a source under its Name. A later registration with the same
// name replaces the earlier one.
func (r *SourceRegistry) Register(src domain.MarketDataSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[normalizeExchange(src.Name())] = src
}

// Get returns the source for the exchange. The lookup is case-insensitive.
func (r *SourceRegistry) Get(exchange string) (domain.MarketDataSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[normalizeExchange(exchange)]
	if !ok {
		return nil, fmt.Errorf("exchange %q: %w", exchange, domain.ErrUnknownExchange)
	}
	return s, nil
}

// List returns all registered exchange identifiers, sorted.
func (r *SourceRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func normalizeExchange(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
