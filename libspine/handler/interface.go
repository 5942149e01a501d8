// Package handler turns transport connections into RESP command sessions.
package handler

import (
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"spinekv/libspine/common/logger"
	"spinekv/libspine/transport"
)

var log = logger.Get("handler")

// Handler serves one connection
type Handler = transport.Handler

// HandlerFunc adapts a function to Handler
type HandlerFunc = transport.HandlerFunc

// Middleware wraps a handler
type Middleware interface {
	Process(next Handler) Handler
}

// MiddlewareFunc adapts a function to Middleware
type MiddlewareFunc func(next Handler) Handler

// Process implements Middleware
func (f MiddlewareFunc) Process(next Handler) Handler {
	return f(next)
}

// Chain applies middlewares in order, the first one outermost
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a chain of middlewares
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: middlewares}
}

// Then wraps handler with the chain
func (c *Chain) Then(handler Handler) Handler {
	result := handler
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		result = c.middlewares[i].Process(result)
	}
	return result
}

// LoggerMiddleware logs when connections open and close
type LoggerMiddleware struct{}

// NewLoggerMiddleware creates a LoggerMiddleware
func NewLoggerMiddleware() *LoggerMiddleware {
	return &LoggerMiddleware{}
}

// Process implements Middleware
func (m *LoggerMiddleware) Process(next Handler) Handler {
	return HandlerFunc(func(ctx *transport.Context, r io.Reader, w io.Writer) error {
		id, proto, remote := connLabel(ctx)
		log.Debugf("%s connection %s opened from %s", proto, id, remote)
		start := time.Now()

		err := next.Handle(ctx, r, w)

		log.Debugf("%s connection %s closed after %s", proto, id, time.Since(start).Round(time.Millisecond))
		return err
	})
}

// RecoveryMiddleware turns a panic in a handler into an error, so one bad
// connection does not take the server down.
type RecoveryMiddleware struct{}

// NewRecoveryMiddleware creates a RecoveryMiddleware
func NewRecoveryMiddleware() *RecoveryMiddleware {
	return &RecoveryMiddleware{}
}

// Process implements Middleware
func (m *RecoveryMiddleware) Process(next Handler) Handler {
	return HandlerFunc(func(ctx *transport.Context, r io.Reader, w io.Writer) (err error) {
		defer func() {
			if p := recover(); p != nil {
				id, _, _ := connLabel(ctx)
				log.Errorf("panic serving connection %s: %v\n%s", id, p, debug.Stack())
				err = fmt.Errorf("handler panic: %v", p)
			}
		}()
		return next.Handle(ctx, r, w)
	})
}

func connLabel(ctx *transport.Context) (id, proto, remote string) {
	if ctx == nil || ctx.ConnInfo == nil {
		return "-", "-", "-"
	}
	info := ctx.ConnInfo
	remote = "-"
	if info.Remote != nil {
		remote = info.Remote.String()
	}
	return info.ID, info.Protocol, remote
}
