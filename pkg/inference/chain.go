package inference

import (
	"context"
	"errors"
	"log/slog"
)

// Chain tries providers in order and returns the first completion.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain chains providers, first preferred.
func NewChain(providers ...Provider) (*Chain, error) {
	return NewChainWithLogger(slog.Default(), providers...)
}

// NewChainWithLogger is NewChain with a logger for fallback events.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	return &Chain{providers: providers, logger: logger.With("component", "inference.chain")}, nil
}

// Complete stops at the first success or when ctx is done.
func (c *Chain) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	var errs []error
	for i, p := range c.providers {
		resp, err := p.Complete(ctx, req)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback provider answered", "index", i)
			}
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("provider failed", "index", i, "error", err)
		errs = append(errs, err)
	}
	return nil, &ChainError{Errors: errs}
}

// Health succeeds when any provider is healthy.
func (c *Chain) Health(ctx context.Context) error {
	var errs []error
	for _, p := range c.providers {
		err := p.Health(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return &ChainError{Errors: errs}
}

// Close closes every provider.
func (c *Chain) Close() error {
	var errs []error
	for _, p := range c.providers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// Len returns the number of chained providers.
func (c *Chain) Len() int { return len(c.providers) }

var _ Provider = (*Chain)(nil)
