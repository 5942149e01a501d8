package resp

import (
	"bufio"
	"io"
	"math"
	"strconv"
)

// Writer encodes replies. Output is buffered until Flush.
//
// The protocol version only changes how nulls, doubles and maps are encoded;
// RESP2 clients get bulk strings and flat arrays instead.
type Writer struct {
	w       *bufio.Writer
	proto   int
	scratch []byte
}

// NewWriter creates a RESP2 writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w), proto: 2, scratch: make([]byte, 0, 32)}
}

// SetProtocol switches between RESP2 and RESP3
func (w *Writer) SetProtocol(version int) {
	w.proto = version
}

// Protocol returns the negotiated protocol version
func (w *Writer) Protocol() int {
	return w.proto
}

func (w *Writer) line(prefix byte, body string) error {
	w.w.WriteByte(prefix)
	w.w.WriteString(body)
	_, err := w.w.WriteString("\r\n")
	return err
}

func (w *Writer) header(prefix byte, n int64) error {
	w.scratch = append(w.scratch[:0], prefix)
	w.scratch = strconv.AppendInt(w.scratch, n, 10)
	w.scratch = append(w.scratch, '\r', '\n')
	_, err := w.w.Write(w.scratch)
	return err
}

// WriteSimpleString writes a status reply (+OK\r\n)
func (w *Writer) WriteSimpleString(s string) error {
	return w.line('+', s)
}

// WriteError writes an error reply (-ERR message\r\n)
func (w *Writer) WriteError(msg string) error {
	return w.line('-', msg)
}

// WriteInteger writes an integer reply (:123\r\n)
func (w *Writer) WriteInteger(i int64) error {
	return w.header(':', i)
}

// WriteBulkString writes a bulk string ($5\r\nhello\r\n)
func (w *Writer) WriteBulkString(s string) error {
	w.header('$', int64(len(s)))
	w.w.WriteString(s)
	_, err := w.w.WriteString("\r\n")
	return err
}

// WriteNull writes a null bulk string ($-1 in RESP2, _ in RESP3)
func (w *Writer) WriteNull() error {
	if w.proto >= 3 {
		return w.line('_', "")
	}
	return w.line('$', "-1")
}

// WriteNullArray writes a null array (*-1 in RESP2, _ in RESP3)
func (w *Writer) WriteNullArray() error {
	if w.proto >= 3 {
		return w.line('_', "")
	}
	return w.line('*', "-1")
}

// WriteArrayHeader starts an array of n elements
func (w *Writer) WriteArrayHeader(n int) error {
	return w.header('*', int64(n))
}

// WriteMapHeader starts a map of n pairs; RESP2 gets a flat array of 2n
func (w *Writer) WriteMapHeader(n int) error {
	if w.proto >= 3 {
		return w.header('%', int64(n))
	}
	return w.header('*', int64(2*n))
}

// WriteStringArray writes an array of bulk strings
func (w *Writer) WriteStringArray(items []string) error {
	if err := w.WriteArrayHeader(len(items)); err != nil {
		return err
	}
	for _, s := range items {
		if err := w.WriteBulkString(s); err != nil {
			return err
		}
	}
	return nil
}

// WriteDouble writes a RESP3 double, or its bulk string form for RESP2
func (w *Writer) WriteDouble(d float64) error {
	s := FormatDouble(d)
	if w.proto >= 3 {
		return w.line(',', s)
	}
	return w.WriteBulkString(s)
}

// Flush writes buffered replies to the connection
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// FormatDouble renders d the way replies carry it
func FormatDouble(d float64) string {
	switch {
	case math.IsInf(d, 1):
		return "inf"
	case math.IsInf(d, -1):
		return "-inf"
	}
	return strconv.FormatFloat(d, 'g', -1, 64)
}
