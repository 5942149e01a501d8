package commands

import (
	"spinekv/libspine/engine"
	"spinekv/libspine/engine/storage"
)

var (
	keyspaceRead  = []engine.CommandCategory{engine.CategoryKeyspace, engine.CategoryRead}
	keyspaceWrite = []engine.CommandCategory{engine.CategoryKeyspace, engine.CategoryWrite}
)

// KeyCommands are the generic keyspace commands
var KeyCommands = []*engine.Command{
	{
		Info: engine.CommandInfo{Name: "DEL", Summary: "Delete keys", Syntax: "DEL key [key ...]",
			Categories: keyspaceWrite, Arity: -2, ModifiesData: true},
		Run: del,
	},
	{
		Info: engine.CommandInfo{Name: "EXISTS", Summary: "Count the given keys that exist", Syntax: "EXISTS key [key ...]",
			Categories: keyspaceRead, Arity: -2},
		Run: exists,
	},
	{
		Info: engine.CommandInfo{Name: "TYPE", Summary: "Determine the type stored at key", Syntax: "TYPE key",
			Categories: keyspaceRead, Arity: 2},
		Run: typeCmd,
	},
	{
		Info: engine.CommandInfo{Name: "RENAME", Summary: "Rename a key", Syntax: "RENAME key newkey",
			Categories: keyspaceWrite, Arity: 3, ModifiesData: true},
		Run: func(c *engine.CommandContext) error { return rename(c, false) },
	},
	{
		Info: engine.CommandInfo{Name: "RENAMENX", Summary: "Rename a key, only if the new key does not exist", Syntax: "RENAMENX key newkey",
			Categories: keyspaceWrite, Arity: 3, ModifiesData: true},
		Run: func(c *engine.CommandContext) error { return rename(c, true) },
	},
	{
		Info: engine.CommandInfo{Name: "KEYS", Summary: "Find all keys matching the given pattern", Syntax: "KEYS pattern",
			Categories: keyspaceRead, Arity: 2},
		Run: keys,
	},
	{
		Info: engine.CommandInfo{Name: "DBSIZE", Summary: "Return the number of keys in the selected database", Syntax: "DBSIZE",
			Categories: keyspaceRead, Arity: 1},
		Run: func(c *engine.CommandContext) error { return c.Writer.WriteInteger(int64(c.DB().Len())) },
	},
	{
		Info: engine.CommandInfo{Name: "FLUSHDB", Summary: "Remove all keys from the selected database", Syntax: "FLUSHDB [ASYNC|SYNC]",
			Categories: keyspaceWrite, Arity: -1, ModifiesData: true},
		Run: func(c *engine.CommandContext) error { return flush(c, false) },
	},
	{
		Info: engine.CommandInfo{Name: "FLUSHALL", Summary: "Remove all keys from all databases", Syntax: "FLUSHALL [ASYNC|SYNC]",
			Categories: keyspaceWrite, Arity: -1, ModifiesData: true},
		Run: func(c *engine.CommandContext) error { return flush(c, true) },
	},
	{
		Info: engine.CommandInfo{Name: "EXPIRE", Summary: "Set a key's time to live in seconds", Syntax: "EXPIRE key seconds",
			Categories: keyspaceWrite, Arity: 3, ModifiesData: true},
		Run: func(c *engine.CommandContext) error { return expire(c, 1000, true) },
	},
	{
		Info: engine.CommandInfo{Name: "PEXPIRE", Summary: "Set a key's time to live in milliseconds", Syntax: "PEXPIRE key milliseconds",
			Categories: keyspaceWrite, Arity: 3, ModifiesData: true},
		Run: func(c *engine.CommandContext) error { return expire(c, 1, true) },
	},
	{
		Info: engine.CommandInfo{Name: "EXPIREAT", Summary: "Set the expiration for a key as a UNIX timestamp", Syntax: "EXPIREAT key unix-time-seconds",
			Categories: keyspaceWrite, Arity: 3, ModifiesData: true},
		Run: func(c *engine.CommandContext) error { return expire(c, 1000, false) },
	},
	{
		Info: engine.CommandInfo{Name: "PEXPIREAT", Summary: "Set the expiration for a key as a UNIX timestamp in milliseconds", Syntax: "PEXPIREAT key unix-time-milliseconds",
			Categories: keyspaceWrite, Arity: 3, ModifiesData: true},
		Run: func(c *engine.CommandContext) error { return expire(c, 1, false) },
	},
	{
		Info: engine.CommandInfo{Name: "PERSIST", Summary: "Remove the expiration from a key", Syntax: "PERSIST key",
			Categories: keyspaceWrite, Arity: 2, ModifiesData: true},
		Run: func(c *engine.CommandContext) error { return writeBool(c.Writer, c.DB().Persist(c.Args[0])) },
	},
	{
		Info: engine.CommandInfo{Name: "TTL", Summary: "Get the time to live for a key in seconds", Syntax: "TTL key",
			Categories: keyspaceRead, Arity: 2},
		Run: func(c *engine.CommandContext) error { return ttl(c, false) },
	},
	{
		Info: engine.CommandInfo{Name: "PTTL", Summary: "Get the time to live for a key in milliseconds", Syntax: "PTTL key",
			Categories: keyspaceRead, Arity: 2},
		Run: func(c *engine.CommandContext) error { return ttl(c, true) },
	},
	{
		Info: engine.CommandInfo{Name: "MOVE", Summary: "Move a key to another database", Syntax: "MOVE key db",
			Categories: keyspaceWrite, Arity: 3, ModifiesData: true},
		Run: move,
	},
}

func del(c *engine.CommandContext) error {
	db := c.DB()
	var n int64
	for _, key := range c.Args {
		if db.Remove(key) {
			n++
		}
	}
	return c.Writer.WriteInteger(n)
}

func exists(c *engine.CommandContext) error {
	db := c.DB()
	var n int64
	for _, key := range c.Args {
		if db.Exists(key) {
			n++
		}
	}
	return c.Writer.WriteInteger(n)
}

func typeCmd(c *engine.CommandContext) error {
	t, ok := c.DB().Type(c.Args[0])
	if !ok {
		return c.Writer.WriteSimpleString("none")
	}
	return c.Writer.WriteSimpleString(t.String())
}

func rename(c *engine.CommandContext, nx bool) error {
	db := c.DB()
	from, to := c.Args[0], c.Args[1]
	if !db.Exists(from) {
		return storage.ErrNoSuchKey
	}
	if nx {
		if from != to && db.Exists(to) {
			return c.Writer.WriteInteger(0)
		}
		db.Rename(from, to)
		c.Signal(to)
		return c.Writer.WriteInteger(1)
	}
	db.Rename(from, to)
	c.Signal(to)
	return c.Writer.WriteSimpleString("OK")
}

func keys(c *engine.CommandContext) error {
	pattern := c.Args[0]
	all := c.DB().Keys()
	matched := make([]string, 0, len(all))
	for _, key := range all {
		if pattern == "*" || matchGlob(pattern, key) {
			matched = append(matched, key)
		}
	}
	return c.Writer.WriteStringArray(matched)
}

func flush(c *engine.CommandContext, all bool) error {
	if len(c.Args) > 1 {
		return engine.ErrSyntax
	}
	if len(c.Args) == 1 {
		if opt := c.Option(0); opt != "ASYNC" && opt != "SYNC" {
			return engine.ErrSyntax
		}
	}
	if !all {
		c.DB().Flush()
		return c.Writer.WriteSimpleString("OK")
	}
	for i := 0; i < c.Engine.NumDatabases(); i++ {
		c.Engine.DB(i).Flush()
	}
	return c.Writer.WriteSimpleString("OK")
}

// expire sets an expiration of n units, relative to now when relative is set
func expire(c *engine.CommandContext, unit int64, relative bool) error {
	n, err := parseInt(c.Args[1])
	if err != nil {
		return err
	}
	var base int64
	if relative {
		base = c.Engine.Now()
	}
	at, err := expireTime(c.Name, n, unit, base)
	if err != nil {
		return err
	}
	return writeBool(c.Writer, c.DB().Expire(c.Args[0], at))
}

func ttl(c *engine.CommandContext, millis bool) error {
	v, ok := c.DB().Get(c.Args[0])
	if !ok {
		return c.Writer.WriteInteger(-2)
	}
	now := c.Engine.Now()
	if millis {
		return c.Writer.WriteInteger(v.TTLMillis(now))
	}
	return c.Writer.WriteInteger(v.TTLSeconds(now))
}

func move(c *engine.CommandContext) error {
	idx, err := parseDB(c.Engine, c.Args[1])
	if err != nil {
		return err
	}
	if idx == c.Session.DB {
		return engine.ErrSameObject
	}
	moved := c.DB().MoveTo(c.Engine.DB(idx), c.Args[0])
	if moved {
		c.SignalDB(idx, c.Args[0])
	}
	return writeBool(c.Writer, moved)
}
