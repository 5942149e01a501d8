package transport

import (
	"errors"
	"io/fs"
	"net"
	"os"
)

// UnixSocketTransport serves RESP over a unix domain socket
type UnixSocketTransport struct {
	*streamTransport
	path string
}

// NewUnixSocketTransport listens on the socket at path, replacing a stale
// socket file left by a previous run.
func NewUnixSocketTransport(path string, maxConns int) (*UnixSocketTransport, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	// the socket file is removed in Stop
	ln.(*net.UnixListener).SetUnlinkOnClose(false)
	return &UnixSocketTransport{streamTransport: newStreamTransport("unix", ln, maxConns), path: path}, nil
}

// Stop stops the transport and removes the socket file
func (u *UnixSocketTransport) Stop() error {
	err := u.streamTransport.Stop()
	if rmErr := os.Remove(u.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}
