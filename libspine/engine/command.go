package engine

import (
	"context"
	"strings"

	"spinekv/libspine/engine/resp"
	"spinekv/libspine/engine/storage"
)

// CommandCategory represents command categories
type CommandCategory string

const (
	CategoryRead       CommandCategory = "READ"
	CategoryWrite      CommandCategory = "WRITE"
	CategoryList       CommandCategory = "LIST"
	CategorySet        CommandCategory = "SET"
	CategoryHash       CommandCategory = "HASH"
	CategoryString     CommandCategory = "STRING"
	CategoryZSet       CommandCategory = "ZSET"
	CategoryKeyspace   CommandCategory = "KEYSPACE"
	CategoryConnection CommandCategory = "CONNECTION"
	CategoryBlocking   CommandCategory = "BLOCKING"
)

// CommandInfo contains metadata about a command
type CommandInfo struct {
	Name       string            // Command name (uppercase)
	Summary    string            // Brief description
	Syntax     string            // Command syntax
	Categories []CommandCategory // Command categories
	// Arity counts the command name. A negative value is a minimum.
	Arity        int
	ModifiesData bool
	// Blocking commands run without the engine lock and take it themselves
	// through CommandContext.Locked.
	Blocking bool
}

// CheckArity reports whether n arguments, name included, are acceptable
func (i *CommandInfo) CheckArity(n int) bool {
	if i.Arity >= 0 {
		return n == i.Arity
	}
	return n >= -i.Arity
}

// HasCategory reports whether the command belongs to c
func (i *CommandInfo) HasCategory(c CommandCategory) bool {
	for _, cat := range i.Categories {
		if cat == c {
			return true
		}
	}
	return false
}

// CommandHandler defines the interface for command handlers
type CommandHandler interface {
	// Execute executes the command
	Execute(ctx *CommandContext) error

	// GetInfo returns command metadata
	GetInfo() *CommandInfo

	// ModifiesData returns true if this command modifies data
	ModifiesData() bool
}

// Command is a handler declared as data: its metadata and a run function
type Command struct {
	Info CommandInfo
	Run  func(ctx *CommandContext) error
}

func (c *Command) Execute(ctx *CommandContext) error { return c.Run(ctx) }
func (c *Command) GetInfo() *CommandInfo             { return &c.Info }
func (c *Command) ModifiesData() bool                { return c.Info.ModifiesData }

// CommandContext provides context for command execution
type CommandContext struct {
	Engine  *Engine
	Context context.Context
	Session *Session
	Name    string   // canonical command name
	Args    []string // arguments after the command name
	Writer  *resp.Writer
}

// DB returns the database selected by the session
func (c *CommandContext) DB() *storage.Database {
	return c.Engine.DB(c.Session.DB)
}

// Locked runs fn holding the engine lock. Only blocking commands need it;
// every other command already runs locked.
func (c *CommandContext) Locked(fn func() error) error {
	c.Engine.mu.Lock()
	defer c.Engine.mu.Unlock()
	return fn()
}

// Signal wakes blocking commands waiting on key in the selected database
func (c *CommandContext) Signal(key string) {
	c.SignalDB(c.Session.DB, key)
}

// SignalDB wakes blocking commands waiting on key in database db
func (c *CommandContext) SignalDB(db int, key string) {
	c.Engine.notifier.Notify(KeyEvent(db, key))
}

// Option returns the i-th argument upper-cased, for option matching
func (c *CommandContext) Option(i int) string {
	return strings.ToUpper(c.Args[i])
}
