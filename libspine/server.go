// Package libspine assembles the engine, its commands and the transports into
// a runnable server.
package libspine

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"spinekv/libspine/common/logger"
	"spinekv/libspine/engine"
	"spinekv/libspine/engine/commands"
	"spinekv/libspine/handler"
	"spinekv/libspine/transport"
)

var log = logger.Get("server")

// ListenConfig is one address the server listens on
type ListenConfig struct {
	Schema string // "tcp", "unix" or "ws"
	Host   string
	Port   string
	Path   string // socket path, unix only
}

// Address returns the dial address of the listener
func (c ListenConfig) Address() string {
	if c.Schema == "unix" {
		return c.Path
	}
	return net.JoinHostPort(c.Host, c.Port)
}

// String renders the listener as schema://address
func (c ListenConfig) String() string {
	return c.Schema + "://" + c.Address()
}

// Config holds server settings
type Config struct {
	ListenConfigs []ListenConfig
	Databases     int // zero means engine.DefaultDatabases
	MaxClients    int // per listener, zero means unlimited
}

// Server runs one engine behind any number of transports
type Server struct {
	config     *Config
	engine     *engine.Engine
	serverCtx  *transport.ServerContext
	mu         sync.RWMutex
	transports []transport.Transport
	startTime  time.Time
}

// NewServer creates a server with every built-in command registered
func NewServer(config *Config) (*Server, error) {
	e := engine.NewEngine(engine.Config{Databases: config.Databases})
	if err := commands.RegisterAllCommands(e.Registry()); err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}

	now := time.Now()
	serverCtx := transport.NewServerContext(&transport.ServerInfo{
		Name:    commands.ServerName,
		Version: commands.ServerVersion,
		Started: now,
	})
	serverCtx.SetHandler(handler.NewChain(
		handler.NewRecoveryMiddleware(),
		handler.NewLoggerMiddleware(),
	).Then(handler.NewRedisHandler(e)))

	return &Server{
		config:    config,
		engine:    e,
		serverCtx: serverCtx,
		startTime: now,
	}, nil
}

// Start opens every configured listener. Either all of them serve or, on the
// first failure, the ones already open are stopped again.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.config.ListenConfigs) == 0 {
		return errors.New("no listen address configured")
	}
	for _, lc := range s.config.ListenConfigs {
		t, err := s.newTransport(lc)
		if err == nil {
			err = t.Start(s.serverCtx)
		}
		if err != nil {
			for _, started := range s.transports {
				started.Stop()
			}
			s.transports = nil
			return fmt.Errorf("listen %s: %w", lc, err)
		}
		s.transports = append(s.transports, t)
	}
	log.Infof("%s %s serving %d databases", commands.ServerName, commands.ServerVersion, s.engine.NumDatabases())
	return nil
}

func (s *Server) newTransport(lc ListenConfig) (transport.Transport, error) {
	switch lc.Schema {
	case "tcp":
		return transport.NewTCPTransport(lc.Address(), s.config.MaxClients)
	case "unix":
		return transport.NewUnixSocketTransport(lc.Address(), s.config.MaxClients)
	case "ws":
		return transport.NewWebSocketTransport(lc.Address(), s.config.MaxClients)
	}
	return nil, fmt.Errorf("unsupported schema: %s", lc.Schema)
}

// Stop stops every transport and closes the connections left over
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, t := range s.transports {
		if err := t.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", t.Addr(), err))
		}
	}
	s.transports = nil
	if err := s.serverCtx.Connections.CloseAllConnections(); err != nil {
		errs = append(errs, err)
	}
	log.Infof("server stopped")
	return errors.Join(errs...)
}

// Addrs returns the addresses of the running transports in configuration
// order.
func (s *Server) Addrs() []net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addrs := make([]net.Addr, len(s.transports))
	for i, t := range s.transports {
		addrs[i] = t.Addr()
	}
	return addrs
}

// Engine returns the engine commands run on
func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// GetServerContext returns the context shared by the transports
func (s *Server) GetServerContext() *transport.ServerContext {
	return s.serverCtx
}

// GetUptime returns how long the server has existed
func (s *Server) GetUptime() time.Duration {
	return time.Since(s.startTime)
}

// GetStats returns the connection statistics
func (s *Server) GetStats() map[string]interface{} {
	return s.serverCtx.GetStats()
}

// GetConnections returns the open connections
func (s *Server) GetConnections() []*transport.ConnInfo {
	return s.serverCtx.Connections.GetAllConnections()
}

// ParseListenAddress parses schema://host:port, or unix:///path/to.sock
func ParseListenAddress(addr string) (ListenConfig, error) {
	schema, rest, ok := strings.Cut(addr, "://")
	if !ok || schema == "" {
		return ListenConfig{}, fmt.Errorf("invalid listen address %q (expected schema://host:port)", addr)
	}
	switch schema {
	case "unix":
		if rest == "" {
			return ListenConfig{}, fmt.Errorf("invalid listen address %q: empty socket path", addr)
		}
		return ListenConfig{Schema: schema, Path: rest}, nil
	case "tcp", "ws":
		host, port, err := net.SplitHostPort(rest)
		if err != nil {
			return ListenConfig{}, fmt.Errorf("invalid listen address %q: %w", addr, err)
		}
		return ListenConfig{Schema: schema, Host: host, Port: port}, nil
	}
	return ListenConfig{}, fmt.Errorf("invalid listen address %q: unsupported schema %q", addr, schema)
}
