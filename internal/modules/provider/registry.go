package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/geolens/engine/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultCallTimeout   = 60 * time.Second
	defaultRatePerMinute = 60
)

type entry struct {
	adapter Adapter
	limiter *rate.Limiter
	timeout time.Duration
}

// Registry holds one adapter per configured provider together with its
// rate limiter and per-call timeout.
type Registry struct {
	mu         sync.RWMutex
	entries    map[ID]*entry
	burst      int
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithHTTPClient routes SDK traffic through client.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Registry) { r.httpClient = client }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l.Named("ProviderRegistry")
		}
	}
}

// NewRegistry creates an empty registry. burst bounds how many calls per
// provider may start at once before the rate limiter paces them.
func NewRegistry(burst int, opts ...Option) *Registry {
	if burst < 1 {
		burst = 1
	}
	r := &Registry{
		entries: make(map[ID]*entry),
		burst:   burst,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRegistryFromConfig registers an adapter for every provider with a credential.
func NewRegistryFromConfig(cfg config.ProvidersConfig, burst int, opts ...Option) *Registry {
	r := NewRegistry(burst, opts...)
	for _, id := range All() {
		pc, _ := cfg.Get(string(id))
		if pc.Key() == "" {
			r.logger.Info("provider disabled, no api key", zap.String("provider", string(id)))
			continue
		}
		var adapter Adapter
		switch id {
		case ChatGPT:
			adapter = newChatGPTAdapter(pc, r.httpClient)
		case Claude:
			adapter = newClaudeAdapter(pc, r.httpClient)
		case Grok:
			adapter = newGrokAdapter(pc, r.httpClient)
		}
		r.Register(id, adapter, pc.Timeout, pc.RatePerMinute)
	}
	return r
}

// Register installs adapter for id, replacing any previous one.
func (r *Registry) Register(id ID, adapter Adapter, timeout time.Duration, ratePerMinute int) {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	if ratePerMinute <= 0 {
		ratePerMinute = defaultRatePerMinute
	}
	limiter := rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60), r.burst)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = &entry{adapter: adapter, limiter: limiter, timeout: timeout}
}

// Configured reports whether id can be dispatched to.
func (r *Registry) Configured(id ID) error {
	if _, ok := aliases[string(id)]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotConfigured, id)
	}
	return nil
}

// IDs returns the configured providers in display order.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]ID, 0, len(r.entries))
	for _, id := range All() {
		if _, ok := r.entries[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Run dispatches prompt to provider id. Every failure is a *Error.
func (r *Registry) Run(ctx context.Context, id ID, prompt string) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, &Error{Provider: id, Kind: KindInvalidInput, Err: errors.New("prompt text is empty")}
	}
	if err := r.Configured(id); err != nil {
		return nil, &Error{Provider: id, Kind: KindMissingCredentials, Err: err}
	}

	r.mu.RLock()
	e := r.entries[id]
	r.mu.RUnlock()

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, &Error{Provider: id, Kind: KindTimeout, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.adapter.Run(callCtx, prompt)
	if err != nil {
		perr := classify(id, err)
		r.logger.Debug("provider call failed", zap.String("provider", string(id)), zap.Error(perr))
		return nil, perr
	}
	return res, nil
}
