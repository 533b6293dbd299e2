package provider

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Router manages the configured providers and routes requests to one of
// them. There are no fallbacks: a failing provider fails the call.
type Router struct {
	providers map[string]Provider
	defaults  string
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates a new provider router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		logger:    logger,
	}
}

// Register adds a provider to the router. The first registered provider
// becomes the default.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	if r.defaults == "" {
		r.defaults = p.ID()
	}
	r.logger.Info("registered provider", zap.String("id", p.ID()), zap.String("name", p.Name()))
}

// SetDefault sets the default provider. Unknown ids are rejected.
func (r *Router) SetDefault(providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[providerID]; !ok {
		return fmt.Errorf("unknown provider %q", providerID)
	}
	r.defaults = providerID
	return nil
}

// DefaultID returns the current default provider ID.
func (r *Router) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults
}

// Route sends a chat request through providerID, or the default provider
// when providerID is empty.
func (r *Router) Route(ctx context.Context, providerID string, req *ChatRequest) (*ChatResponse, error) {
	p, err := r.pick(providerID)
	if err != nil {
		return nil, err
	}
	resp, err := p.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", p.ID(), err)
	}
	return resp, nil
}

// RouteStream sends a streaming chat request.
func (r *Router) RouteStream(ctx context.Context, providerID string, req *ChatRequest) (<-chan *StreamChunk, error) {
	p, err := r.pick(providerID)
	if err != nil {
		return nil, err
	}
	ch, err := p.ChatStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", p.ID(), err)
	}
	return ch, nil
}

func (r *Router) pick(providerID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id := providerID
	if id == "" {
		id = r.defaults
	}
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("no provider available: %q", id)
	}
	return p, nil
}

// GetProvider returns a provider by ID.
func (r *Router) GetProvider(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}
