// Package engine executes commands against a fixed set of databases.
//
// Commands are serialized by a single engine lock, so the storage layer
// underneath stays lock free. Blocking commands opt out of the lock and wait
// on the Notifier between attempts.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/VictoriaMetrics/metrics"

	"spinekv/libspine/common/logger"
	"spinekv/libspine/engine/resp"
	"spinekv/libspine/engine/storage"
)

// DefaultDatabases is the number of databases when Config leaves it unset
const DefaultDatabases = 16

var (
	log = logger.Get("engine")

	unknownCommands = metrics.GetOrCreateCounter("spine_unknown_commands_total")
	commandErrors   = metrics.GetOrCreateCounter("spine_command_errors_total")
)

// Config holds engine settings
type Config struct {
	Databases int
	Clock     storage.Clock // nil means storage.SystemClock
}

// Engine represents the main database engine
type Engine struct {
	mu       sync.Mutex
	dbs      []*storage.Database
	registry *CommandRegistry
	notifier *Notifier
	clock    storage.Clock
}

// NewEngine creates an engine with cfg.Databases empty databases and an empty
// command registry.
func NewEngine(cfg Config) *Engine {
	if cfg.Databases <= 0 {
		cfg.Databases = DefaultDatabases
	}
	if cfg.Clock == nil {
		cfg.Clock = storage.SystemClock
	}

	e := &Engine{
		dbs:      make([]*storage.Database, cfg.Databases),
		registry: NewCommandRegistry(),
		notifier: NewNotifier(),
		clock:    cfg.Clock,
	}
	for i := range e.dbs {
		e.dbs[i] = storage.NewDatabase(i, cfg.Clock)
	}
	log.Infof("engine created with %d databases", cfg.Databases)
	return e
}

// Registry returns the command registry
func (e *Engine) Registry() *CommandRegistry {
	return e.registry
}

// Notifier returns the notifier blocking commands wait on
func (e *Engine) Notifier() *Notifier {
	return e.notifier
}

// Now reads the engine clock
func (e *Engine) Now() int64 {
	return e.clock()
}

// NumDatabases returns the number of databases
func (e *Engine) NumDatabases() int {
	return len(e.dbs)
}

// DB returns database i, or nil when out of range
func (e *Engine) DB(i int) *storage.Database {
	if i < 0 || i >= len(e.dbs) {
		return nil
	}
	return e.dbs[i]
}

// Exec runs one request and writes its reply to w. Client errors become error
// replies; the returned error is reserved for write failures and internal
// faults, after which the connection should be dropped.
func (e *Engine) Exec(ctx context.Context, sess *Session, args []string, w *resp.Writer) error {
	if len(args) == 0 {
		return nil
	}

	handler, ok := e.registry.Get(args[0])
	if !ok {
		unknownCommands.Inc()
		return e.reply(w, unknownCommand(args[0], args[1:]))
	}
	info := handler.GetInfo()
	name := strings.ToLower(info.Name)
	if !info.CheckArity(len(args)) {
		return e.reply(w, wrongArity(name))
	}
	metrics.GetOrCreateCounter(`spine_commands_total{command="` + name + `"}`).Inc()

	cmdCtx := &CommandContext{
		Engine:  e,
		Context: ctx,
		Session: sess,
		Name:    info.Name,
		Args:    args[1:],
		Writer:  w,
	}

	var err error
	if info.Blocking {
		err = handler.Execute(cmdCtx)
	} else {
		err = cmdCtx.Locked(func() error { return handler.Execute(cmdCtx) })
	}
	return e.reply(w, err)
}

func (e *Engine) reply(w *resp.Writer, err error) error {
	if err == nil {
		return nil
	}
	if msg, ok := ReplyError(err); ok {
		commandErrors.Inc()
		return w.WriteError(msg)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	log.Errorf("command failed: %v", err)
	return err
}
