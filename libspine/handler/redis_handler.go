package handler

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"

	"spinekv/libspine/engine"
	"spinekv/libspine/engine/resp"
	"spinekv/libspine/transport"
)

// RedisHandler speaks RESP on a connection and runs every request on the
// engine.
type RedisHandler struct {
	engine *engine.Engine
}

// NewRedisHandler creates a handler executing commands on e
func NewRedisHandler(e *engine.Engine) *RedisHandler {
	return &RedisHandler{engine: e}
}

// Handle reads requests until the peer disconnects, sends QUIT, or breaks
// the protocol. Replies are flushed once no further pipelined request is
// buffered.
func (h *RedisHandler) Handle(ctx *transport.Context, r io.Reader, w io.Writer) error {
	var base context.Context = context.Background()
	id := uuid.NewString()
	if ctx != nil {
		if ctx.Context != nil {
			base = ctx.Context
		}
		if ctx.ConnInfo != nil {
			id = ctx.ConnInfo.ID
		}
	}

	sess := engine.NewSession(id)
	reader := resp.NewReqReader(r)
	writer := resp.NewWriter(w)

	for {
		args, err := reader.ReadCommand()
		if err != nil {
			var protoErr *resp.ProtocolError
			if errors.As(err, &protoErr) {
				log.Debugf("connection %s: %v", id, err)
				writer.WriteError(protoErr.Error())
				return writer.Flush()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return writer.Flush()
			}
			return err
		}

		if err := h.engine.Exec(base, sess, args, writer); err != nil {
			writer.Flush()
			return err
		}
		if sess.Closing() {
			return writer.Flush()
		}
		if reader.Buffered() == 0 {
			if err := writer.Flush(); err != nil {
				return err
			}
		}
	}
}
