// Package transport accepts client connections and hands each one to a
// Handler as a byte stream.
package transport

import (
	"context"
	"io"
	"net"
	"sync"
	"time"
)

// ServerInfo describes the server a connection belongs to
type ServerInfo struct {
	Name    string
	Version string
	Started time.Time
}

// ConnInfo describes one client connection
type ConnInfo struct {
	ID       string
	Remote   net.Addr
	Protocol string // "tcp", "unix" or "websocket"
	Opened   time.Time

	closer io.Closer
}

// Close closes the underlying connection
func (c *ConnInfo) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// Context is what a Handler gets for one connection. The embedded context is
// cancelled when the transport stops.
type Context struct {
	context.Context
	ServerInfo  *ServerInfo
	ConnInfo    *ConnInfo
	Connections *ConnectionManager
}

// Handler serves a single connection until it returns
type Handler interface {
	Handle(ctx *Context, r io.Reader, w io.Writer) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx *Context, r io.Reader, w io.Writer) error

// Handle calls f
func (f HandlerFunc) Handle(ctx *Context, r io.Reader, w io.Writer) error {
	return f(ctx, r, w)
}

// Transport is a listener feeding connections to the server handler
type Transport interface {
	Start(serverCtx *ServerContext) error
	Stop() error
	Addr() net.Addr
}

// ServerContext is the state shared by every transport of a server
type ServerContext struct {
	ServerInfo  *ServerInfo
	Connections *ConnectionManager

	mu      sync.RWMutex
	handler Handler
}

// NewServerContext creates a server context with no handler set
func NewServerContext(serverInfo *ServerInfo) *ServerContext {
	return &ServerContext{
		ServerInfo:  serverInfo,
		Connections: NewConnectionManager(),
	}
}

// SetHandler sets the handler new connections are served by
func (sc *ServerContext) SetHandler(handler Handler) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.handler = handler
}

// GetHandler returns the current handler
func (sc *ServerContext) GetHandler() Handler {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.handler
}

// GetStats reports connection counts per protocol
func (sc *ServerContext) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"server":      sc.ServerInfo.Name,
		"uptime":      time.Since(sc.ServerInfo.Started).Round(time.Second).String(),
		"connections": sc.Connections.GetStats(),
	}
}
