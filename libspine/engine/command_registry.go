package engine

import (
	"fmt"
	"strings"
	"sync"

	"spinekv/libspine/common/orderedmap"
)

// CommandRegistry manages command registration and lookup. Commands are kept
// in registration order.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands *orderedmap.Map[CommandHandler] // command name -> handler
	aliases  *orderedmap.Map[string]         // alias -> canonical name
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: orderedmap.New[CommandHandler](),
		aliases:  orderedmap.New[string](),
	}
}

// Register registers a command handler under its upper-cased name
func (r *CommandRegistry) Register(handler CommandHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToUpper(handler.GetInfo().Name)
	if name == "" {
		return fmt.Errorf("command without a name")
	}
	if r.commands.Has(name) || r.aliases.Has(name) {
		return fmt.Errorf("command %s already registered", name)
	}
	r.commands.Set(name, handler)
	return nil
}

// RegisterAll registers every command, stopping at the first failure
func (r *CommandRegistry) RegisterAll(cmds []*Command) error {
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

// RegisterAlias makes alias resolve to the canonical command
func (r *CommandRegistry) RegisterAlias(alias, canonical string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	alias = strings.ToUpper(alias)
	canonical = strings.ToUpper(canonical)
	if !r.commands.Has(canonical) {
		return fmt.Errorf("alias %s: unknown command %s", alias, canonical)
	}
	if r.commands.Has(alias) {
		return fmt.Errorf("alias %s shadows a command", alias)
	}
	r.aliases.Set(alias, canonical)
	return nil
}

// Get retrieves a command handler by name or alias, case-insensitively
func (r *CommandRegistry) Get(name string) (CommandHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name = strings.ToUpper(name)
	if handler, ok := r.commands.Get(name); ok {
		return handler, true
	}
	if canonical, ok := r.aliases.Get(name); ok {
		return r.commands.Get(canonical)
	}
	return nil, false
}

// Len returns the number of registered commands, aliases excluded
func (r *CommandRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands.Len()
}

// List returns the metadata of every command in registration order
func (r *CommandRegistry) List() []*CommandInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*CommandInfo, 0, r.commands.Len())
	r.commands.Range(func(_ string, handler CommandHandler) bool {
		out = append(out, handler.GetInfo())
		return true
	})
	return out
}

// ByCategory returns commands in a specific category
func (r *CommandRegistry) ByCategory(category CommandCategory) []*CommandInfo {
	var result []*CommandInfo
	for _, info := range r.List() {
		if info.HasCategory(category) {
			result = append(result, info)
		}
	}
	return result
}
