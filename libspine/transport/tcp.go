package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/netutil"

	"spinekv/libspine/common/logger"
)

var log = logger.Get("transport")

// streamTransport serves a stream listener, one goroutine per connection
type streamTransport struct {
	protocol string
	listener net.Listener

	mu        sync.Mutex
	running   bool
	serverCtx *ServerContext
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func newStreamTransport(protocol string, ln net.Listener, maxConns int) *streamTransport {
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}
	return &streamTransport{protocol: protocol, listener: ln}
}

// Addr returns the address the transport listens on
func (t *streamTransport) Addr() net.Addr {
	return t.listener.Addr()
}

// Start begins accepting connections in the background
func (t *streamTransport) Start(serverCtx *ServerContext) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ctx != nil {
		return fmt.Errorf("%s transport was already started", t.protocol)
	}
	t.serverCtx = serverCtx
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.running = true

	t.wg.Add(1)
	go t.acceptConnections()

	log.Infof("%s transport started on %s", t.protocol, t.listener.Addr())
	return nil
}

// Stop closes the listener and every connection it accepted, then waits for
// their handlers to return. A stopped transport cannot be restarted.
func (t *streamTransport) Stop() error {
	t.mu.Lock()
	wasRunning := t.running
	t.running = false
	if t.cancel != nil {
		t.cancel()
	}
	err := t.listener.Close()
	t.mu.Unlock()

	t.wg.Wait()
	if wasRunning {
		log.Infof("%s transport stopped", t.protocol)
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (t *streamTransport) acceptConnections() {
	defer t.wg.Done()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if t.ctx.Err() == nil {
				log.Errorf("%s accept error: %v", t.protocol, err)
			}
			return
		}
		t.wg.Add(1)
		go t.handleConnection(conn)
	}
}

func (t *streamTransport) handleConnection(conn net.Conn) {
	defer t.wg.Done()
	defer conn.Close()

	// closing the socket is what unblocks a handler stuck in Read
	stop := context.AfterFunc(t.ctx, func() { conn.Close() })
	defer stop()

	info := newConnInfo(t.protocol, conn.RemoteAddr(), conn)
	connections := t.serverCtx.Connections
	connections.AddConnection(info)
	defer connections.RemoveConnection(info.ID)

	handler := t.serverCtx.GetHandler()
	if handler == nil {
		log.Warningf("%s connection %s dropped: no handler", t.protocol, info.ID)
		return
	}

	ctx := &Context{
		Context:     t.ctx,
		ServerInfo:  t.serverCtx.ServerInfo,
		ConnInfo:    info,
		Connections: connections,
	}
	if err := handler.Handle(ctx, conn, conn); err != nil && !isConnectionClosedError(err) && t.ctx.Err() == nil {
		log.Warningf("%s connection %s: %v", t.protocol, info.ID, err)
	}
}

// TCPTransport serves RESP over TCP
type TCPTransport struct {
	*streamTransport
}

// NewTCPTransport listens on addr. maxConns caps concurrent connections; zero
// means unlimited.
func NewTCPTransport(addr string, maxConns int) (*TCPTransport, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TCPTransport{newStreamTransport("tcp", ln, maxConns)}, nil
}
