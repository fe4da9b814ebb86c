package catalog

import (
	"errors"
	"fmt"
	"sync"

	"promptforge/internal/config"
	"promptforge/internal/models"
)

// ErrUnknownModel indicates the requested model is not configured.
var ErrUnknownModel = errors.New("unknown model")

// ErrNoDefaultForTier indicates the account tier has no default model.
var ErrNoDefaultForTier = errors.New("no default model for tier")

// Store exposes the model configuration consumed by the pipeline. The
// administrative side that writes this configuration lives elsewhere; the
// pipeline only ever reads value snapshots.
type Store interface {
	LookupModel(modelID string) (models.ModelDescriptor, bool)
	DefaultModelForTier(tier string) (string, bool)
}

// Registry is an in-memory Store built from static configuration.
type Registry struct {
	mu           sync.RWMutex
	descriptors  map[string]models.ModelDescriptor
	tierDefaults map[string]string
}

// NewRegistry constructs a registry from validated configuration.
func NewRegistry(cfg config.Config) *Registry {
	descriptors := make(map[string]models.ModelDescriptor, len(cfg.Models))
	for _, m := range cfg.Models {
		descriptors[m.ID] = models.ModelDescriptor{
			ID:                  m.ID,
			Provider:            models.ProviderKind(m.Provider),
			CreditCost:          m.CreditCost,
			SupportsSuggestions: m.SupportsSuggestions,
		}
	}

	tierDefaults := make(map[string]string, len(cfg.Tiers))
	for _, t := range cfg.Tiers {
		tierDefaults[t.Name] = t.DefaultModel
	}

	return &Registry{
		descriptors:  descriptors,
		tierDefaults: tierDefaults,
	}
}

// LookupModel returns the descriptor for a model ID.
func (r *Registry) LookupModel(modelID string) (models.ModelDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descriptor, ok := r.descriptors[modelID]
	return descriptor, ok
}

// DefaultModelForTier returns the tier's configured default model ID.
func (r *Registry) DefaultModelForTier(tier string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	modelID, ok := r.tierDefaults[tier]
	return modelID, ok
}

// ReplaceModel swaps a model descriptor in place. Administrative updates go
// through here so a cached view in front of the registry eventually observes
// the change.
func (r *Registry) ReplaceModel(descriptor models.ModelDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[descriptor.ID] = descriptor
}

// Resolver answers "which model, at what cost" for a request.
type Resolver struct {
	store Store
}

// NewResolver constructs a resolver over the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve maps a requested model ID (or the tier default when empty) to its
// descriptor. Pure lookup; safe to call concurrently and repeatedly.
func (r *Resolver) Resolve(modelID, tier string) (models.ModelDescriptor, error) {
	if modelID == "" {
		defaultID, ok := r.store.DefaultModelForTier(tier)
		if !ok {
			return models.ModelDescriptor{}, fmt.Errorf("%w: %q", ErrNoDefaultForTier, tier)
		}
		modelID = defaultID
	}

	descriptor, ok := r.store.LookupModel(modelID)
	if !ok {
		return models.ModelDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}
	return descriptor, nil
}
