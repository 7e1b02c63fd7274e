package statehandlers

import (
	"fmt"

	"go.uber.org/zap"
)

// DefaultFactories returns the built-in strategies in resolution order.
func DefaultFactories() []Factory {
	return []Factory{NSEWConnectedMetadata{}, Metadata{}}
}

// FactoryByName looks up a built-in strategy.
func FactoryByName(name string) (Factory, bool) {
	for _, f := range DefaultFactories() {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// Registry tries its factories in order and keeps the first handler built.
// It holds no mutable state and may be shared between goroutines.
type Registry struct {
	factories []Factory
	log       *zap.Logger
}

func NewRegistry(logger *zap.Logger, factories ...Factory) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(factories) == 0 {
		factories = DefaultFactories()
	}
	return &Registry{
		factories: append([]Factory(nil), factories...),
		log:       logger,
	}
}

// NewRegistryByName builds a registry from strategy names, keeping their order.
func NewRegistryByName(logger *zap.Logger, names []string) (*Registry, error) {
	fs := make([]Factory, 0, len(names))
	for _, n := range names {
		f, ok := FactoryByName(n)
		if !ok {
			return nil, fmt.Errorf("unknown state handler %q", n)
		}
		fs = append(fs, f)
	}
	return NewRegistry(logger, fs...), nil
}

func (r *Registry) Factories() []Factory { return append([]Factory(nil), r.factories...) }

// Resolve returns the first handler any factory can build for c.
func (r *Registry) Resolve(block string, c *StateContainer) (Handler, bool) {
	h, err := r.ResolveErr(block, c)
	return h, err == nil
}

// ResolveErr is Resolve with the last rejection reason kept for callers that
// record why a block could not be handled.
func (r *Registry) ResolveErr(block string, c *StateContainer) (Handler, error) {
	if c == nil {
		return nil, fmt.Errorf("%s: %w: nil container", block, ErrSchemaMismatch)
	}
	var last error
	for _, f := range r.factories {
		h, err := f.Build(c)
		if err == nil && h != nil {
			r.log.Debug("state handler selected", zap.String("block", block), zap.String("handler", f.Name()))
			return h, nil
		}
		if err == nil {
			err = fmt.Errorf("%w: no handler built", ErrSchemaMismatch)
		}
		r.log.Debug("state handler rejected block",
			zap.String("block", block),
			zap.String("handler", f.Name()),
			zap.Error(err))
		last = fmt.Errorf("%s: %w", f.Name(), err)
	}
	if last == nil {
		last = fmt.Errorf("%w: no handlers registered", ErrSchemaMismatch)
	}
	return nil, fmt.Errorf("%s: %w", block, last)
}
