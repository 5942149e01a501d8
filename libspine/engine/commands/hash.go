package commands

import (
	"spinekv/libspine/common/orderedmap"
	"spinekv/libspine/engine"
)

var (
	hashRead  = []engine.CommandCategory{engine.CategoryHash, engine.CategoryRead}
	hashWrite = []engine.CommandCategory{engine.CategoryHash, engine.CategoryWrite}
)

// HashCommands are the hash commands
var HashCommands = []*engine.Command{
	{
		Info: engine.CommandInfo{Name: "HSET", Summary: "Set fields of a hash", Syntax: "HSET key field value [field value ...]",
			Categories: hashWrite, Arity: -4, ModifiesData: true},
		Run: hset,
	},
	{
		Info: engine.CommandInfo{Name: "HGET", Summary: "Get the value of a hash field", Syntax: "HGET key field",
			Categories: hashRead, Arity: 3},
		Run: hget,
	},
	{
		Info: engine.CommandInfo{Name: "HGETALL", Summary: "Get all fields and values of a hash", Syntax: "HGETALL key",
			Categories: hashRead, Arity: 2},
		Run: hgetall,
	},
	{
		Info: engine.CommandInfo{Name: "HDEL", Summary: "Delete hash fields", Syntax: "HDEL key field [field ...]",
			Categories: hashWrite, Arity: -3, ModifiesData: true},
		Run: hdel,
	},
	{
		Info: engine.CommandInfo{Name: "HLEN", Summary: "Get the number of fields in a hash", Syntax: "HLEN key",
			Categories: hashRead, Arity: 2},
		Run: hlen,
	},
}

func hset(c *engine.CommandContext) error {
	pairs := c.Args[1:]
	if len(pairs)%2 != 0 {
		return engine.Errorf("ERR wrong number of arguments for 'hset' command")
	}
	var added int64
	_, err := c.DB().UpdateHash(c.Args[0], true, func(h *orderedmap.Map[string]) error {
		for i := 0; i < len(pairs); i += 2 {
			if _, existed := h.Set(pairs[i], pairs[i+1]); !existed {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.Writer.WriteInteger(added)
}

func hget(c *engine.CommandContext) error {
	h, found, err := c.DB().GetHash(c.Args[0])
	if err != nil {
		return err
	}
	if !found {
		return c.Writer.WriteNull()
	}
	v, ok := h.Get(c.Args[1])
	if !ok {
		return c.Writer.WriteNull()
	}
	return c.Writer.WriteBulkString(v)
}

func hgetall(c *engine.CommandContext) error {
	h, found, err := c.DB().GetHash(c.Args[0])
	if err != nil {
		return err
	}
	if !found {
		return c.Writer.WriteMapHeader(0)
	}
	c.Writer.WriteMapHeader(h.Len())
	h.Range(func(field, value string) bool {
		c.Writer.WriteBulkString(field)
		c.Writer.WriteBulkString(value)
		return true
	})
	return nil
}

func hdel(c *engine.CommandContext) error {
	var removed int64
	_, err := c.DB().UpdateHash(c.Args[0], false, func(h *orderedmap.Map[string]) error {
		for _, field := range c.Args[1:] {
			if _, ok := h.Delete(field); ok {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.Writer.WriteInteger(removed)
}

func hlen(c *engine.CommandContext) error {
	h, found, err := c.DB().GetHash(c.Args[0])
	if err != nil {
		return err
	}
	if !found {
		return c.Writer.WriteInteger(0)
	}
	return c.Writer.WriteInteger(int64(h.Len()))
}
