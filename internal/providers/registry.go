package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Descriptor descrive lo stato di un provider registrato
type Descriptor struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Priority  int    `json:"priority"`
	Uses      int64  `json:"uses"`
	Successes int64  `json:"successes"`
	Failures  int64  `json:"failures"`
}

type usage struct {
	uses      int64
	successes int64
	failures  int64
}

// Registry mantiene i provider registrati e i contatori di utilizzo
// per provider. La disponibilità di un provider è decisa alla
// registrazione e resta immutata per tutta la vita del processo.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	usage     map[string]*usage
}

// NewRegistry crea un nuovo registry vuoto
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		usage:     make(map[string]*usage),
	}
}

// Register aggiunge un provider al registry
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider already registered: %s", name)
	}

	r.providers[name] = p

	log.Info().
		Str("provider", name).
		Bool("available", p.Available()).
		Int("priority", p.Priority()).
		Msg("Provider registered")

	return nil
}

// Get restituisce un provider per nome
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	return p, nil
}

// ByPriority restituisce i provider disponibili in ordine di priorità
func (r *Registry) ByPriority() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if p.Available() {
			result = append(result, p)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority() != result[j].Priority() {
			return result[i].Priority() < result[j].Priority()
		}
		return result[i].Name() < result[j].Name()
	})

	return result
}

// RecordOutcome registra l'esito di una chiamata verso un provider
func (r *Registry) RecordOutcome(name string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, exists := r.usage[name]
	if !exists {
		u = &usage{}
		r.usage[name] = u
	}

	u.uses++
	if success {
		u.successes++
	} else {
		u.failures++
	}
}

// Uses restituisce il conteggio degli utilizzi di un provider
func (r *Registry) Uses(name string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if u, exists := r.usage[name]; exists {
		return u.uses
	}
	return 0
}

// Descriptors restituisce lo stato di tutti i provider registrati
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Descriptor, 0, len(r.providers))
	for name, p := range r.providers {
		d := Descriptor{
			Name:      name,
			Available: p.Available(),
			Priority:  p.Priority(),
		}
		if u, exists := r.usage[name]; exists {
			d.Uses = u.uses
			d.Successes = u.successes
			d.Failures = u.failures
		}
		result = append(result, d)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Priority < result[j].Priority
	})

	return result
}

// Count restituisce il numero di provider registrati
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
