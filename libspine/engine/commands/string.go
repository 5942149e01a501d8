package commands

import (
	"spinekv/libspine/engine"
	"spinekv/libspine/engine/storage"
)

// StringCommands are the plain string commands
var StringCommands = []*engine.Command{
	{
		Info: engine.CommandInfo{Name: "GET", Summary: "Get the value of a key", Syntax: "GET key",
			Categories: []engine.CommandCategory{engine.CategoryString, engine.CategoryRead}, Arity: 2},
		Run: get,
	},
	{
		Info: engine.CommandInfo{Name: "SET", Summary: "Set the string value of a key",
			Syntax:     "SET key value [NX|XX] [EX seconds|PX milliseconds|KEEPTTL]",
			Categories: []engine.CommandCategory{engine.CategoryString, engine.CategoryWrite}, Arity: -3, ModifiesData: true},
		Run: set,
	},
}

func get(c *engine.CommandContext) error {
	s, found, err := c.DB().GetString(c.Args[0])
	if err != nil {
		return err
	}
	if !found {
		return c.Writer.WriteNull()
	}
	return c.Writer.WriteBulkString(s)
}

func set(c *engine.CommandContext) error {
	key := c.Args[0]
	var nx, xx, keepTTL bool
	var expireAt int64
	hasExpire := false

	opts := c.Args[2:]
	for i := 0; i < len(opts); i++ {
		switch c.Option(i + 2) {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "KEEPTTL":
			keepTTL = true
		case "EX", "PX":
			if hasExpire || i+1 >= len(opts) {
				return engine.ErrSyntax
			}
			n, err := parseInt(opts[i+1])
			if err != nil {
				return err
			}
			if n <= 0 {
				return engine.Errorf("ERR invalid expire time in 'set' command")
			}
			unit := int64(1)
			if c.Option(i+2) == "EX" {
				unit = 1000
			}
			if expireAt, err = expireTime("set", n, unit, c.Engine.Now()); err != nil {
				return err
			}
			hasExpire = true
			i++
		default:
			return engine.ErrSyntax
		}
	}
	if (nx && xx) || (keepTTL && hasExpire) {
		return engine.ErrSyntax
	}

	db := c.DB()
	v := storage.NewString(c.Args[1])
	if hasExpire {
		v = v.WithExpirationAt(expireAt)
	}
	if keepTTL {
		if old, ok := db.Get(key); ok {
			if at, has := old.ExpiresAt(); has {
				v = v.WithExpirationAt(at)
			}
		}
	}

	switch {
	case nx:
		if db.PutIfAbsent(key, v) != v {
			return c.Writer.WriteNull()
		}
	case xx:
		if _, ok := db.PutIfPresent(key, v); !ok {
			return c.Writer.WriteNull()
		}
	default:
		db.Put(key, v)
	}
	return c.Writer.WriteSimpleString("OK")
}
