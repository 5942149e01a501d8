// Package commands holds the built-in command tables.
package commands

import (
	"spinekv/libspine/engine"
)

// Tables returns every built-in command table in registration order
func Tables() [][]*engine.Command {
	return [][]*engine.Command{
		ConnectionCommands,
		KeyCommands,
		StringCommands,
		ListCommands,
		HashCommands,
		SetCommands,
		ZSetCommands,
	}
}

// RegisterAllCommands registers all built-in commands
func RegisterAllCommands(registry *engine.CommandRegistry) error {
	for _, table := range Tables() {
		if err := registry.RegisterAll(table); err != nil {
			return err
		}
	}
	return nil
}
