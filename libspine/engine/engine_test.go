package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spinekv/libspine/engine/resp"
	"spinekv/libspine/engine/storage"
	"spinekv/libspine/engine/storage/zset"
)

func testCommands() []*Command {
	return []*Command{
		{
			Info: CommandInfo{Name: "PING", Arity: -1, Categories: []CommandCategory{CategoryConnection}},
			Run: func(c *CommandContext) error {
				return c.Writer.WriteSimpleString("PONG")
			},
		},
		{
			Info: CommandInfo{Name: "ECHO", Arity: 2},
			Run: func(c *CommandContext) error {
				return c.Writer.WriteBulkString(c.Args[0])
			},
		},
		{
			Info: CommandInfo{Name: "WRONG", Arity: 1},
			Run: func(c *CommandContext) error {
				return fmt.Errorf("lookup: %w", storage.ErrWrongType)
			},
		},
		{
			Info: CommandInfo{Name: "NAN", Arity: 1},
			Run: func(c *CommandContext) error {
				return zset.ErrScoreNaN
			},
		},
		{
			Info: CommandInfo{Name: "BROKEN", Arity: 1},
			Run: func(c *CommandContext) error {
				return errors.New("disk on fire")
			},
		},
		{
			Info: CommandInfo{Name: "ZSETONLY", Arity: 1, Categories: []CommandCategory{CategoryZSet, CategoryRead}},
			Run: func(c *CommandContext) error {
				return c.Writer.WriteInteger(int64(c.DB().Index()))
			},
		},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(Config{Databases: 4})
	require.NoError(t, e.Registry().RegisterAll(testCommands()))
	return e
}

func exec(t *testing.T, e *Engine, sess *Session, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	w := resp.NewWriter(&buf)
	require.NoError(t, e.Exec(context.Background(), sess, args, w))
	require.NoError(t, w.Flush())
	return buf.String()
}

func TestEngine_Exec(t *testing.T) {
	e := newTestEngine(t)
	sess := NewSession("test")

	assert.Equal(t, "+PONG\r\n", exec(t, e, sess, "ping"))
	assert.Equal(t, "$2\r\nhi\r\n", exec(t, e, sess, "Echo", "hi"))
	assert.Equal(t, "-ERR wrong number of arguments for 'echo' command\r\n", exec(t, e, sess, "ECHO"))
	assert.Equal(t, "-ERR unknown command 'nope', with args beginning with: 'a' 'b' \r\n",
		exec(t, e, sess, "nope", "a", "b"))
	assert.Equal(t, "-"+storage.ErrWrongType.Error()+"\r\n", exec(t, e, sess, "WRONG"))
	assert.Equal(t, "-ERR resulting score is not a number (NaN)\r\n", exec(t, e, sess, "NAN"))
	assert.Equal(t, "", exec(t, e, sess))

	sess.DB = 3
	assert.Equal(t, ":3\r\n", exec(t, e, sess, "ZSETONLY"))
}

func TestEngine_InternalErrorPropagates(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	err := e.Exec(context.Background(), NewSession("x"), []string{"BROKEN"}, resp.NewWriter(&buf))
	assert.EqualError(t, err, "disk on fire")
}

func TestEngine_Databases(t *testing.T) {
	e := NewEngine(Config{})
	assert.Equal(t, DefaultDatabases, e.NumDatabases())
	assert.NotNil(t, e.DB(15))
	assert.Nil(t, e.DB(16))
	assert.Nil(t, e.DB(-1))
	assert.NotSame(t, e.DB(0), e.DB(1))
}

func TestCommandRegistry(t *testing.T) {
	r := NewCommandRegistry()
	require.NoError(t, r.RegisterAll(testCommands()))

	assert.Error(t, r.Register(&Command{Info: CommandInfo{Name: "ping"}}))
	assert.Error(t, r.Register(&Command{}))

	require.NoError(t, r.RegisterAlias("pong", "PING"))
	assert.Error(t, r.RegisterAlias("x", "MISSING"))
	assert.Error(t, r.RegisterAlias("echo", "PING"))

	h, ok := r.Get("Pong")
	require.True(t, ok)
	assert.Equal(t, "PING", h.GetInfo().Name)

	_, ok = r.Get("missing")
	assert.False(t, ok)

	names := make([]string, 0)
	for _, info := range r.List() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"PING", "ECHO", "WRONG", "NAN", "BROKEN", "ZSETONLY"}, names)
	assert.Equal(t, 6, r.Len())

	zsetCmds := r.ByCategory(CategoryZSet)
	require.Len(t, zsetCmds, 1)
	assert.Equal(t, "ZSETONLY", zsetCmds[0].Name)
}

func TestCommandInfo_CheckArity(t *testing.T) {
	exact := CommandInfo{Arity: 3}
	assert.True(t, exact.CheckArity(3))
	assert.False(t, exact.CheckArity(4))

	atLeast := CommandInfo{Arity: -2}
	assert.False(t, atLeast.CheckArity(1))
	assert.True(t, atLeast.CheckArity(2))
	assert.True(t, atLeast.CheckArity(10))
}

func TestNotifier(t *testing.T) {
	n := NewNotifier()
	ch, cancel := n.Subscribe(KeyEvent(0, "a"), KeyEvent(0, "b"))
	assert.Equal(t, 1, n.Waiting("0:a"))

	n.Notify(KeyEvent(1, "a"))
	select {
	case <-ch:
		t.Fatal("woken by another database")
	default:
	}

	n.Notify(KeyEvent(0, "b"))
	n.Notify(KeyEvent(0, "a"))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("subscriber not woken")
	}

	cancel()
	cancel()
	assert.Equal(t, 0, n.Waiting("0:a"))
	assert.Equal(t, 0, n.Waiting("0:b"))
}

func TestReplyError(t *testing.T) {
	msg, ok := ReplyError(fmt.Errorf("wrapped: %w", ErrSyntax))
	assert.True(t, ok)
	assert.Equal(t, "ERR syntax error", msg)

	msg, ok = ReplyError(fmt.Errorf("parse: %w", zset.ErrNotFloat))
	assert.True(t, ok)
	assert.Equal(t, "ERR value is not a valid float", msg)

	_, ok = ReplyError(errors.New("other"))
	assert.False(t, ok)
}

func TestSession(t *testing.T) {
	s := NewSession("id")
	assert.Equal(t, 2, s.Protocol)
	assert.False(t, s.Closing())
	s.Close()
	assert.True(t, s.Closing())
}
