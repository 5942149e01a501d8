package resp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	maxBulkLen  = 512 << 20
	maxArrayLen = 1 << 20
)

// ProtocolError is a malformed request; the connection cannot be resynced
// after one.
type ProtocolError struct {
	msg string
}

func (e *ProtocolError) Error() string {
	return "ERR Protocol error: " + e.msg
}

func protocolErrorf(format string, args ...interface{}) error {
	return &ProtocolError{msg: fmt.Sprintf(format, args...)}
}

// ReqReader parses client requests: RESP arrays of bulk strings, or inline
// commands separated by whitespace.
type ReqReader struct {
	reader *bufio.Reader
}

// NewReqReader creates a new request reader
func NewReqReader(r io.Reader) *ReqReader {
	return &ReqReader{reader: bufio.NewReader(r)}
}

// Buffered returns the number of bytes already read from the connection but
// not yet parsed. Zero means the client is waiting for replies.
func (r *ReqReader) Buffered() int {
	return r.reader.Buffered()
}

// ReadCommand reads the next request and returns its arguments, the command
// name first. Empty inline lines are skipped.
func (r *ReqReader) ReadCommand() ([]string, error) {
	for {
		line, err := r.readLine()
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			continue
		}
		if line[0] != '*' {
			if args := strings.Fields(line); len(args) > 0 {
				return args, nil
			}
			continue
		}

		n, err := strconv.Atoi(line[1:])
		if err != nil || n > maxArrayLen {
			return nil, protocolErrorf("invalid multibulk length")
		}
		if n <= 0 {
			continue
		}
		args := make([]string, n)
		for i := range args {
			if args[i], err = r.readBulk(); err != nil {
				return nil, err
			}
		}
		return args, nil
	}
}

func (r *ReqReader) readBulk() (string, error) {
	line, err := r.readLine()
	if err != nil {
		return "", err
	}
	if len(line) == 0 || line[0] != '$' {
		if len(line) == 0 {
			return "", protocolErrorf("expected '$', got end of line")
		}
		return "", protocolErrorf("expected '$', got '%c'", line[0])
	}
	size, err := strconv.Atoi(line[1:])
	if err != nil || size < 0 || size > maxBulkLen {
		return "", protocolErrorf("invalid bulk length")
	}

	buf := make([]byte, size+2)
	if _, err := io.ReadFull(r.reader, buf); err != nil {
		return "", err
	}
	if buf[size] != '\r' || buf[size+1] != '\n' {
		return "", protocolErrorf("bulk string not terminated by CRLF")
	}
	return string(buf[:size]), nil
}

// readLine reads a line ending with \r\n or \n
func (r *ReqReader) readLine() (string, error) {
	line, err := r.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, nil
}
