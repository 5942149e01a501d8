package commands

import (
	"spinekv/libspine/common/orderedmap"
	"spinekv/libspine/engine"
)

var (
	setRead  = []engine.CommandCategory{engine.CategorySet, engine.CategoryRead}
	setWrite = []engine.CommandCategory{engine.CategorySet, engine.CategoryWrite}
)

// SetCommands are the unordered set commands
var SetCommands = []*engine.Command{
	{
		Info: engine.CommandInfo{Name: "SADD", Summary: "Add members to a set", Syntax: "SADD key member [member ...]",
			Categories: setWrite, Arity: -3, ModifiesData: true},
		Run: sadd,
	},
	{
		Info: engine.CommandInfo{Name: "SREM", Summary: "Remove members from a set", Syntax: "SREM key member [member ...]",
			Categories: setWrite, Arity: -3, ModifiesData: true},
		Run: srem,
	},
	{
		Info: engine.CommandInfo{Name: "SMEMBERS", Summary: "Get all members of a set", Syntax: "SMEMBERS key",
			Categories: setRead, Arity: 2},
		Run: smembers,
	},
	{
		Info: engine.CommandInfo{Name: "SISMEMBER", Summary: "Determine if a value is a member of a set", Syntax: "SISMEMBER key member",
			Categories: setRead, Arity: 3},
		Run: sismember,
	},
	{
		Info: engine.CommandInfo{Name: "SCARD", Summary: "Get the number of members in a set", Syntax: "SCARD key",
			Categories: setRead, Arity: 2},
		Run: scard,
	},
}

func sadd(c *engine.CommandContext) error {
	var added int64
	_, err := c.DB().UpdateSet(c.Args[0], true, func(s *orderedmap.Map[struct{}]) error {
		for _, m := range c.Args[1:] {
			if _, existed := s.Set(m, struct{}{}); !existed {
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

func srem(c *engine.CommandContext) error {
	var removed int64
	_, err := c.DB().UpdateSet(c.Args[0], false, func(s *orderedmap.Map[struct{}]) error {
		for _, m := range c.Args[1:] {
			if _, ok := s.Delete(m); ok {
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

func smembers(c *engine.CommandContext) error {
	s, found, err := c.DB().GetSet(c.Args[0])
	if err != nil {
		return err
	}
	if !found {
		return c.Writer.WriteArrayHeader(0)
	}
	return c.Writer.WriteStringArray(s.Keys())
}

func sismember(c *engine.CommandContext) error {
	s, found, err := c.DB().GetSet(c.Args[0])
	if err != nil {
		return err
	}
	return writeBool(c.Writer, found && s.Has(c.Args[1]))
}

func scard(c *engine.CommandContext) error {
	s, found, err := c.DB().GetSet(c.Args[0])
	if err != nil {
		return err
	}
	if !found {
		return c.Writer.WriteInteger(0)
	}
	return c.Writer.WriteInteger(int64(s.Len()))
}
