package commands

import (
	"spinekv/libspine/engine"
)

var (
	listRead  = []engine.CommandCategory{engine.CategoryList, engine.CategoryRead}
	listWrite = []engine.CommandCategory{engine.CategoryList, engine.CategoryWrite}
)

// ListCommands are the list commands
var ListCommands = []*engine.Command{
	{
		Info: engine.CommandInfo{Name: "LPUSH", Summary: "Prepend elements to a list", Syntax: "LPUSH key element [element ...]",
			Categories: listWrite, Arity: -3, ModifiesData: true},
		Run: func(c *engine.CommandContext) error { return push(c, true) },
	},
	{
		Info: engine.CommandInfo{Name: "RPUSH", Summary: "Append elements to a list", Syntax: "RPUSH key element [element ...]",
			Categories: listWrite, Arity: -3, ModifiesData: true},
		Run: func(c *engine.CommandContext) error { return push(c, false) },
	},
	{
		Info: engine.CommandInfo{Name: "LRANGE", Summary: "Get a range of elements from a list", Syntax: "LRANGE key start stop",
			Categories: listRead, Arity: 4},
		Run: lrange,
	},
	{
		Info: engine.CommandInfo{Name: "LLEN", Summary: "Get the length of a list", Syntax: "LLEN key",
			Categories: listRead, Arity: 2},
		Run: llen,
	},
}

func push(c *engine.CommandContext, head bool) error {
	var length int
	_, err := c.DB().UpdateList(c.Args[0], true, func(list []string) ([]string, error) {
		items := c.Args[1:]
		if head {
			prefix := make([]string, 0, len(items)+len(list))
			for i := len(items) - 1; i >= 0; i-- {
				prefix = append(prefix, items[i])
			}
			list = append(prefix, list...)
		} else {
			list = append(list, items...)
		}
		length = len(list)
		return list, nil
	})
	if err != nil {
		return err
	}
	return c.Writer.WriteInteger(int64(length))
}

func lrange(c *engine.CommandContext) error {
	start, err := parseInt(c.Args[1])
	if err != nil {
		return err
	}
	stop, err := parseInt(c.Args[2])
	if err != nil {
		return err
	}
	list, found, err := c.DB().GetList(c.Args[0])
	if err != nil {
		return err
	}
	if !found {
		return c.Writer.WriteArrayHeader(0)
	}

	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return c.Writer.WriteArrayHeader(0)
	}
	return c.Writer.WriteStringArray(list[start : stop+1])
}

func llen(c *engine.CommandContext) error {
	list, _, err := c.DB().GetList(c.Args[0])
	if err != nil {
		return err
	}
	return c.Writer.WriteInteger(int64(len(list)))
}
