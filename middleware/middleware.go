// Package middleware composes cross-cutting request handling around the
// consultation dispatcher: validation, enrichment, rate limiting, logging,
// and error translation, each as a small interceptor in an ordered chain.
package middleware

import (
	"context"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
)

// Consulter is the dispatch surface a chain terminates in; the router
// satisfies it. The runner wraps the chained Consulter in turn.
type Consulter interface {
	Consult(ctx context.Context, req *consult.ConsultationRequest) (*consult.Outcome, error)
}

// Handler passes control to the remainder of the chain.
type Handler func(ctx context.Context, req *consult.ConsultationRequest) (*consult.Outcome, error)

// Middleware intercepts a consultation before or after it executes.
// Returning an error without calling next stops the chain.
type Middleware interface {
	// Name identifies the middleware in logs.
	Name() string

	// Execute runs the interceptor and, usually, the rest of the chain.
	Execute(ctx context.Context, req *consult.ConsultationRequest, next Handler) (*consult.Outcome, error)
}

// Chain is an ordered middleware sequence.
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a chain from the given middlewares, outermost first.
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: middlewares}
}

// Add appends a middleware to the chain.
func (c *Chain) Add(m Middleware) *Chain {
	c.middlewares = append(c.middlewares, m)
	return c
}

// Wrap returns a Consulter that runs the chain around next.
func (c *Chain) Wrap(next Consulter) Consulter {
	return &chained{chain: c, next: next}
}

type chained struct {
	chain *Chain
	next  Consulter
}

func (w *chained) Consult(ctx context.Context, req *consult.ConsultationRequest) (*consult.Outcome, error) {
	return w.chain.execute(ctx, req, 0, w.next.Consult)
}

func (c *Chain) execute(ctx context.Context, req *consult.ConsultationRequest, index int, final Handler) (*consult.Outcome, error) {
	if index >= len(c.middlewares) {
		return final(ctx, req)
	}
	return c.middlewares[index].Execute(ctx, req, func(ctx context.Context, req *consult.ConsultationRequest) (*consult.Outcome, error) {
		return c.execute(ctx, req, index+1, final)
	})
}
