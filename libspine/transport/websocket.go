package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/net/netutil"
)

const shutdownTimeout = 5 * time.Second

// WebSocketTransport carries RESP inside websocket messages on /ws and
// serves /health and /metrics next to it.
type WebSocketTransport struct {
	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader
	router   *gin.Engine

	mu        sync.Mutex
	running   bool
	serverCtx *ServerContext
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWebSocketTransport listens on addr. maxConns caps concurrent HTTP
// connections; zero means unlimited.
func NewWebSocketTransport(addr string, maxConns int) (*WebSocketTransport, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	return &WebSocketTransport{
		listener: ln,
		server:   &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		router: router,
	}, nil
}

// Addr returns the address the transport listens on
func (w *WebSocketTransport) Addr() net.Addr {
	return w.listener.Addr()
}

// Start registers the routes and serves HTTP in the background
func (w *WebSocketTransport) Start(serverCtx *ServerContext) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctx != nil {
		return fmt.Errorf("websocket transport was already started")
	}
	w.serverCtx = serverCtx
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.running = true

	w.router.GET("/ws", w.handleWebSocket)
	w.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "stats": serverCtx.GetStats()})
	})
	w.router.GET("/metrics", func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		metrics.WritePrometheus(c.Writer, true)
	})

	go func() {
		if err := w.server.Serve(w.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("websocket server error: %v", err)
		}
	}()

	log.Infof("websocket transport started on %s", w.listener.Addr())
	return nil
}

// Stop shuts the HTTP server down and closes every websocket it upgraded
func (w *WebSocketTransport) Stop() error {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	var err error
	if wasRunning {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = w.server.Shutdown(ctx)
	} else {
		err = w.listener.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	}

	// Shutdown does not track hijacked connections
	w.wg.Wait()
	if wasRunning {
		log.Infof("websocket transport stopped")
	}
	return err
}

func (w *WebSocketTransport) handleWebSocket(c *gin.Context) {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		c.Status(http.StatusServiceUnavailable)
		return
	}
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	conn, err := w.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already replied with an HTTP error
		log.Debugf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	stop := context.AfterFunc(w.ctx, func() { conn.Close() })
	defer stop()

	info := newConnInfo("websocket", conn.RemoteAddr(), conn)
	connections := w.serverCtx.Connections
	connections.AddConnection(info)
	defer connections.RemoveConnection(info.ID)

	handler := w.serverCtx.GetHandler()
	if handler == nil {
		log.Warningf("websocket connection %s dropped: no handler", info.ID)
		return
	}

	ctx := &Context{
		Context:     w.ctx,
		ServerInfo:  w.serverCtx.ServerInfo,
		ConnInfo:    info,
		Connections: connections,
	}
	stream := &wsStream{conn: conn}
	err = handler.Handle(ctx, stream, stream)
	if err != nil && !isWebSocketClosed(err) && w.ctx.Err() == nil {
		log.Warningf("websocket connection %s: %v", info.ID, err)
	}
	if err == nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
}

func isWebSocketClosed(err error) bool {
	return isConnectionClosedError(err) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}

// wsStream joins the payloads of incoming messages into one byte stream and
// sends every write as a binary message.
type wsStream struct {
	conn   *websocket.Conn
	reader io.Reader
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.reader == nil {
			mt, r, err := s.conn.NextReader()
			if err != nil {
				return 0, err
			}
			if mt != websocket.BinaryMessage && mt != websocket.TextMessage {
				continue
			}
			s.reader = r
		}
		n, err := s.reader.Read(p)
		if errors.Is(err, io.EOF) {
			s.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
