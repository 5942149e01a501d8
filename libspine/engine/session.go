package engine

// Session is the per-connection state commands read and change
type Session struct {
	ID       string
	DB       int // selected database
	Protocol int // 2 or 3
	Name     string

	closing bool
}

// NewSession creates a RESP2 session on database 0
func NewSession(id string) *Session {
	return &Session{ID: id, Protocol: 2}
}

// Close marks the session to be closed once the current reply is flushed
func (s *Session) Close() {
	s.closing = true
}

// Closing reports whether Close was called
func (s *Session) Closing() bool {
	return s.closing
}
