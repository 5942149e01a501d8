package transport

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	connectionsOpened = metrics.GetOrCreateCounter("spine_connections_opened_total")
	connectionsClosed = metrics.GetOrCreateCounter("spine_connections_closed_total")
)

// ConnectionManager tracks the open connections of every transport
type ConnectionManager struct {
	connections *xsync.MapOf[string, *ConnInfo]
}

// NewConnectionManager creates an empty connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{connections: xsync.NewMapOf[string, *ConnInfo]()}
}

// newConnInfo describes a freshly accepted connection with a random ID
func newConnInfo(protocol string, remote net.Addr, closer io.Closer) *ConnInfo {
	return &ConnInfo{
		ID:       uuid.NewString(),
		Remote:   remote,
		Protocol: protocol,
		Opened:   time.Now(),
		closer:   closer,
	}
}

// AddConnection registers conn
func (cm *ConnectionManager) AddConnection(conn *ConnInfo) {
	cm.connections.Store(conn.ID, conn)
	connectionsOpened.Inc()
}

// RemoveConnection forgets the connection with id connID
func (cm *ConnectionManager) RemoveConnection(connID string) {
	if _, loaded := cm.connections.LoadAndDelete(connID); loaded {
		connectionsClosed.Inc()
	}
}

// GetConnection looks up a connection by id
func (cm *ConnectionManager) GetConnection(connID string) (*ConnInfo, bool) {
	return cm.connections.Load(connID)
}

// GetAllConnections returns a snapshot of the open connections
func (cm *ConnectionManager) GetAllConnections() []*ConnInfo {
	conns := make([]*ConnInfo, 0, cm.connections.Size())
	cm.connections.Range(func(_ string, conn *ConnInfo) bool {
		conns = append(conns, conn)
		return true
	})
	return conns
}

// Count returns the number of open connections
func (cm *ConnectionManager) Count() int {
	return cm.connections.Size()
}

// GetStats counts the open connections, in total and per protocol
func (cm *ConnectionManager) GetStats() map[string]interface{} {
	stats := map[string]interface{}{"total": cm.connections.Size()}
	cm.connections.Range(func(_ string, conn *ConnInfo) bool {
		n, _ := stats[conn.Protocol].(int)
		stats[conn.Protocol] = n + 1
		return true
	})
	return stats
}

// CloseAllConnections closes every connection still registered
func (cm *ConnectionManager) CloseAllConnections() error {
	var errs []error
	cm.connections.Range(func(id string, conn *ConnInfo) bool {
		if err := conn.Close(); err != nil && !isConnectionClosedError(err) {
			errs = append(errs, err)
		}
		cm.RemoveConnection(id)
		return true
	})
	return errors.Join(errs...)
}

// isConnectionClosedError reports errors that only mean the peer or the
// server already went away.
func isConnectionClosedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset")
}
