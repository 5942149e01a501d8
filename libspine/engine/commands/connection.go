package commands

import (
	"strconv"
	"strings"

	"spinekv/libspine/engine"
)

// ServerName and ServerVersion are reported by HELLO
const (
	ServerName    = "spinekv"
	ServerVersion = "1.0.0"
)

var connection = []engine.CommandCategory{engine.CategoryConnection}

// ConnectionCommands are the commands acting on the session itself
var ConnectionCommands = []*engine.Command{
	{
		Info: engine.CommandInfo{Name: "PING", Summary: "Ping the server", Syntax: "PING [message]",
			Categories: connection, Arity: -1},
		Run: ping,
	},
	{
		Info: engine.CommandInfo{Name: "ECHO", Summary: "Echo the given string", Syntax: "ECHO message",
			Categories: connection, Arity: 2},
		Run: func(c *engine.CommandContext) error { return c.Writer.WriteBulkString(c.Args[0]) },
	},
	{
		Info: engine.CommandInfo{Name: "SELECT", Summary: "Change the selected database", Syntax: "SELECT index",
			Categories: connection, Arity: 2},
		Run: selectDB,
	},
	{
		Info: engine.CommandInfo{Name: "QUIT", Summary: "Close the connection", Syntax: "QUIT",
			Categories: connection, Arity: -1},
		Run: func(c *engine.CommandContext) error {
			c.Session.Close()
			return c.Writer.WriteSimpleString("OK")
		},
	},
	{
		Info: engine.CommandInfo{Name: "HELLO", Summary: "Handshake and switch protocol version", Syntax: "HELLO [protover [SETNAME clientname]]",
			Categories: connection, Arity: -1},
		Run: hello,
	},
	{
		Info: engine.CommandInfo{Name: "CLIENT", Summary: "Inspect or name the current connection", Syntax: "CLIENT ID|GETNAME|SETNAME name",
			Categories: connection, Arity: -2},
		Run: client,
	},
	{
		Info: engine.CommandInfo{Name: "COMMAND", Summary: "Describe the registered commands", Syntax: "COMMAND [COUNT]",
			Categories: connection, Arity: -1},
		Run: command,
	},
}

func ping(c *engine.CommandContext) error {
	switch len(c.Args) {
	case 0:
		return c.Writer.WriteSimpleString("PONG")
	case 1:
		return c.Writer.WriteBulkString(c.Args[0])
	}
	return engine.Errorf("ERR wrong number of arguments for 'ping' command")
}

func selectDB(c *engine.CommandContext) error {
	idx, err := parseDB(c.Engine, c.Args[0])
	if err != nil {
		return err
	}
	c.Session.DB = idx
	return c.Writer.WriteSimpleString("OK")
}

func hello(c *engine.CommandContext) error {
	proto := c.Session.Protocol
	args := c.Args
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return engine.Errorf("ERR Protocol version is not an integer or out of range")
		}
		if v != 2 && v != 3 {
			return engine.Errorf("NOPROTO unsupported protocol version")
		}
		proto = v
		args = args[1:]
	}
	for len(args) > 0 {
		switch strings.ToUpper(args[0]) {
		case "SETNAME":
			if len(args) < 2 {
				return engine.ErrSyntax
			}
			c.Session.Name = args[1]
			args = args[2:]
		case "AUTH":
			// credentials are accepted and ignored
			if len(args) < 3 {
				return engine.ErrSyntax
			}
			args = args[3:]
		default:
			return engine.ErrSyntax
		}
	}

	c.Session.Protocol = proto
	c.Writer.SetProtocol(proto)

	w := c.Writer
	w.WriteMapHeader(7)
	w.WriteBulkString("server")
	w.WriteBulkString(ServerName)
	w.WriteBulkString("version")
	w.WriteBulkString(ServerVersion)
	w.WriteBulkString("proto")
	w.WriteInteger(int64(proto))
	w.WriteBulkString("id")
	w.WriteBulkString(c.Session.ID)
	w.WriteBulkString("mode")
	w.WriteBulkString("standalone")
	w.WriteBulkString("role")
	w.WriteBulkString("master")
	w.WriteBulkString("modules")
	return w.WriteArrayHeader(0)
}

func client(c *engine.CommandContext) error {
	switch c.Option(0) {
	case "ID":
		return c.Writer.WriteBulkString(c.Session.ID)
	case "GETNAME":
		if c.Session.Name == "" {
			return c.Writer.WriteNull()
		}
		return c.Writer.WriteBulkString(c.Session.Name)
	case "SETNAME":
		if len(c.Args) != 2 {
			return engine.ErrSyntax
		}
		if strings.ContainsAny(c.Args[1], " \n") {
			return engine.Errorf("ERR Client names cannot contain spaces, newlines or special characters.")
		}
		c.Session.Name = c.Args[1]
		return c.Writer.WriteSimpleString("OK")
	}
	return engine.Errorf("ERR unknown subcommand '%s'", c.Args[0])
}

// command replies with the registered commands as name, arity, flags and the
// first/last/step key positions.
func command(c *engine.CommandContext) error {
	registry := c.Engine.Registry()
	if len(c.Args) > 0 {
		if c.Option(0) == "COUNT" {
			return c.Writer.WriteInteger(int64(registry.Len()))
		}
		return engine.Errorf("ERR unknown subcommand '%s'", c.Args[0])
	}

	infos := registry.List()
	w := c.Writer
	w.WriteArrayHeader(len(infos))
	for _, info := range infos {
		flags := []string{"readonly"}
		if info.ModifiesData {
			flags = []string{"write"}
		}
		if info.Blocking {
			flags = append(flags, "blocking")
		}
		first := int64(1)
		if info.HasCategory(engine.CategoryConnection) {
			first = 0
		}

		w.WriteArrayHeader(6)
		w.WriteBulkString(strings.ToLower(info.Name))
		w.WriteInteger(int64(info.Arity))
		w.WriteStringArray(flags)
		w.WriteInteger(first)
		w.WriteInteger(first)
		w.WriteInteger(first)
	}
	return nil
}
