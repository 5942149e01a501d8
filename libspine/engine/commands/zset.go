package commands

import (
	"math"
	"strconv"
	"strings"
	"time"

	"spinekv/libspine/engine"
	"spinekv/libspine/engine/storage"
	"spinekv/libspine/engine/storage/zset"
)

var (
	zsetRead  = []engine.CommandCategory{engine.CategoryZSet, engine.CategoryRead}
	zsetWrite = []engine.CommandCategory{engine.CategoryZSet, engine.CategoryWrite}
)

// ZSetCommands are the sorted set commands
var ZSetCommands = []*engine.Command{
	{
		Info: engine.CommandInfo{
			Name:         "ZADD",
			Summary:      "Add members to a sorted set, or update their scores",
			Syntax:       "ZADD key [NX|XX] [GT|LT] [CH] [INCR] score member [score member ...]",
			Categories:   zsetWrite,
			Arity:        -4,
			ModifiesData: true,
		},
		Run: zadd,
	},
	{
		Info: engine.CommandInfo{
			Name:         "ZREM",
			Summary:      "Remove members from a sorted set",
			Syntax:       "ZREM key member [member ...]",
			Categories:   zsetWrite,
			Arity:        -3,
			ModifiesData: true,
		},
		Run: zrem,
	},
	{
		Info: engine.CommandInfo{
			Name:       "ZSCORE",
			Summary:    "Get the score of a member",
			Syntax:     "ZSCORE key member",
			Categories: zsetRead,
			Arity:      3,
		},
		Run: zscore,
	},
	{
		Info: engine.CommandInfo{
			Name:       "ZMSCORE",
			Summary:    "Get the scores of several members",
			Syntax:     "ZMSCORE key member [member ...]",
			Categories: zsetRead,
			Arity:      -3,
		},
		Run: zmscore,
	},
	{
		Info: engine.CommandInfo{
			Name:         "ZINCRBY",
			Summary:      "Increment the score of a member",
			Syntax:       "ZINCRBY key increment member",
			Categories:   zsetWrite,
			Arity:        4,
			ModifiesData: true,
		},
		Run: zincrby,
	},
	{
		Info: engine.CommandInfo{
			Name:       "ZCARD",
			Summary:    "Get the number of members in a sorted set",
			Syntax:     "ZCARD key",
			Categories: zsetRead,
			Arity:      2,
		},
		Run: zcard,
	},
	{
		Info: engine.CommandInfo{
			Name:       "ZCOUNT",
			Summary:    "Count the members with scores within the given range",
			Syntax:     "ZCOUNT key min max",
			Categories: zsetRead,
			Arity:      4,
		},
		Run: zcount,
	},
	{
		Info: engine.CommandInfo{
			Name:       "ZRANK",
			Summary:    "Determine the index of a member, scores ordered from low to high",
			Syntax:     "ZRANK key member [WITHSCORE]",
			Categories: zsetRead,
			Arity:      -3,
		},
		Run: func(c *engine.CommandContext) error { return zrank(c, false) },
	},
	{
		Info: engine.CommandInfo{
			Name:       "ZREVRANK",
			Summary:    "Determine the index of a member, scores ordered from high to low",
			Syntax:     "ZREVRANK key member [WITHSCORE]",
			Categories: zsetRead,
			Arity:      -3,
		},
		Run: func(c *engine.CommandContext) error { return zrank(c, true) },
	},
	{
		Info: engine.CommandInfo{
			Name:       "ZRANGE",
			Summary:    "Return a range of members by index, or by score with BYSCORE",
			Syntax:     "ZRANGE key start stop [BYSCORE] [REV] [LIMIT offset count] [WITHSCORES]",
			Categories: zsetRead,
			Arity:      -4,
		},
		Run: func(c *engine.CommandContext) error { return zrange(c, rangeSpec{}, true) },
	},
	{
		Info: engine.CommandInfo{
			Name:       "ZREVRANGE",
			Summary:    "Return a range of members by index, scores ordered from high to low",
			Syntax:     "ZREVRANGE key start stop [WITHSCORES]",
			Categories: zsetRead,
			Arity:      -4,
		},
		Run: func(c *engine.CommandContext) error { return zrange(c, rangeSpec{rev: true}, false) },
	},
	{
		Info: engine.CommandInfo{
			Name:       "ZRANGEBYSCORE",
			Summary:    "Return members with scores within the given range",
			Syntax:     "ZRANGEBYSCORE key min max [WITHSCORES] [LIMIT offset count]",
			Categories: zsetRead,
			Arity:      -4,
		},
		Run: func(c *engine.CommandContext) error { return zrange(c, rangeSpec{byScore: true}, false) },
	},
	{
		Info: engine.CommandInfo{
			Name:       "ZREVRANGEBYSCORE",
			Summary:    "Return members with scores within the given range, from high to low",
			Syntax:     "ZREVRANGEBYSCORE key max min [WITHSCORES] [LIMIT offset count]",
			Categories: zsetRead,
			Arity:      -4,
		},
		Run: func(c *engine.CommandContext) error { return zrange(c, rangeSpec{byScore: true, rev: true}, false) },
	},
	{
		Info: engine.CommandInfo{
			Name:         "ZREMRANGEBYRANK",
			Summary:      "Remove members within the given indexes",
			Syntax:       "ZREMRANGEBYRANK key start stop",
			Categories:   zsetWrite,
			Arity:        4,
			ModifiesData: true,
		},
		Run: zremrangebyrank,
	},
	{
		Info: engine.CommandInfo{
			Name:         "ZREMRANGEBYSCORE",
			Summary:      "Remove members with scores within the given range",
			Syntax:       "ZREMRANGEBYSCORE key min max",
			Categories:   zsetWrite,
			Arity:        4,
			ModifiesData: true,
		},
		Run: zremrangebyscore,
	},
	{
		Info: engine.CommandInfo{
			Name:         "ZPOPMIN",
			Summary:      "Remove and return members with the lowest scores",
			Syntax:       "ZPOPMIN key [count]",
			Categories:   zsetWrite,
			Arity:        -2,
			ModifiesData: true,
		},
		Run: func(c *engine.CommandContext) error { return zpop(c, false) },
	},
	{
		Info: engine.CommandInfo{
			Name:         "ZPOPMAX",
			Summary:      "Remove and return members with the highest scores",
			Syntax:       "ZPOPMAX key [count]",
			Categories:   zsetWrite,
			Arity:        -2,
			ModifiesData: true,
		},
		Run: func(c *engine.CommandContext) error { return zpop(c, true) },
	},
	{
		Info: engine.CommandInfo{
			Name:         "BZPOPMIN",
			Summary:      "Remove and return the lowest member of the first non-empty sorted set, or block",
			Syntax:       "BZPOPMIN key [key ...] timeout",
			Categories:   []engine.CommandCategory{engine.CategoryZSet, engine.CategoryWrite, engine.CategoryBlocking},
			Arity:        -3,
			ModifiesData: true,
			Blocking:     true,
		},
		Run: func(c *engine.CommandContext) error { return bzpop(c, false) },
	},
	{
		Info: engine.CommandInfo{
			Name:         "BZPOPMAX",
			Summary:      "Remove and return the highest member of the first non-empty sorted set, or block",
			Syntax:       "BZPOPMAX key [key ...] timeout",
			Categories:   []engine.CommandCategory{engine.CategoryZSet, engine.CategoryWrite, engine.CategoryBlocking},
			Arity:        -3,
			ModifiesData: true,
			Blocking:     true,
		},
		Run: func(c *engine.CommandContext) error { return bzpop(c, true) },
	},
}

type zaddFlags struct {
	nx, xx, gt, lt, ch, incr bool
}

func zadd(c *engine.CommandContext) error {
	key := c.Args[0]

	var f zaddFlags
	i := 1
flags:
	for ; i < len(c.Args); i++ {
		switch c.Option(i) {
		case "NX":
			f.nx = true
		case "XX":
			f.xx = true
		case "GT":
			f.gt = true
		case "LT":
			f.lt = true
		case "CH":
			f.ch = true
		case "INCR":
			f.incr = true
		default:
			break flags
		}
	}

	pairs := c.Args[i:]
	if len(pairs) == 0 || len(pairs)%2 != 0 {
		return engine.ErrSyntax
	}
	if f.nx && f.xx {
		return engine.Errorf("ERR XX and NX options at the same time are not compatible")
	}
	if (f.gt && f.lt) || (f.nx && (f.gt || f.lt)) {
		return engine.Errorf("ERR GT, LT, and/or NX options at the same time are not compatible")
	}
	if f.incr && len(pairs) != 2 {
		return engine.Errorf("ERR INCR option supports a single increment-element pair")
	}

	entries := make([]zset.Entry, 0, len(pairs)/2)
	for j := 0; j < len(pairs); j += 2 {
		score, err := zset.ParseScore(pairs[j])
		if err != nil {
			return err
		}
		entries = append(entries, zset.Entry{Member: pairs[j+1], Score: score})
	}

	if f.incr {
		return zaddIncr(c, key, f, entries[0])
	}

	db := c.DB()
	if f.xx && !db.Exists(key) {
		return c.Writer.WriteInteger(0)
	}

	// later pairs win for repeated members
	batch := zset.New()
	for _, e := range entries {
		if _, _, err := batch.Add(e.Member, e.Score); err != nil {
			return err
		}
	}

	var added, changed int64
	merged := false
	_, err := db.Merge(key, storage.NewZSet(batch), func(existing, incoming *storage.Value) (*storage.Value, error) {
		dst, err := existing.ZSet()
		if err != nil {
			return nil, err
		}
		src, err := incoming.ZSet()
		if err != nil {
			return nil, err
		}
		merged = true
		for _, e := range src.Entries() {
			prev, exists := dst.Score(e.Member)
			switch {
			case exists && f.nx, !exists && f.xx:
				continue
			case exists && f.gt && e.Score <= prev, exists && f.lt && e.Score >= prev:
				continue
			}
			dst.Add(e.Member, e.Score)
			if !exists {
				added++
			} else if prev != e.Score {
				changed++
			}
		}
		return existing, nil
	})
	if err != nil {
		return err
	}
	if !merged {
		added = batch.Len()
	}

	c.Signal(key)
	if f.ch {
		return c.Writer.WriteInteger(added + changed)
	}
	return c.Writer.WriteInteger(added)
}

func zaddIncr(c *engine.CommandContext, key string, f zaddFlags, e zset.Entry) error {
	var result float64
	applied := false
	_, err := c.DB().UpdateZSet(key, !f.xx, func(z *zset.SkipList) error {
		prev, exists := z.Score(e.Member)
		if (exists && f.nx) || (!exists && f.xx) {
			return nil
		}
		score := prev + e.Score
		if math.IsNaN(score) {
			return zset.ErrScoreNaN
		}
		if exists && ((f.gt && score <= prev) || (f.lt && score >= prev)) {
			return nil
		}
		if _, _, err := z.Add(e.Member, score); err != nil {
			return err
		}
		result, applied = score, true
		return nil
	})
	if err != nil {
		return err
	}
	if !applied {
		return c.Writer.WriteNull()
	}
	c.Signal(key)
	return c.Writer.WriteDouble(result)
}

func zrem(c *engine.CommandContext) error {
	var removed int64
	_, err := c.DB().UpdateZSet(c.Args[0], false, func(z *zset.SkipList) error {
		for _, member := range c.Args[1:] {
			if _, ok := z.Remove(member); ok {
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

func zscore(c *engine.CommandContext) error {
	z, found, err := c.DB().GetZSet(c.Args[0])
	if err != nil {
		return err
	}
	if !found {
		return c.Writer.WriteNull()
	}
	score, ok := z.Score(c.Args[1])
	if !ok {
		return c.Writer.WriteNull()
	}
	return c.Writer.WriteDouble(score)
}

func zmscore(c *engine.CommandContext) error {
	z, found, err := c.DB().GetZSet(c.Args[0])
	if err != nil {
		return err
	}
	members := c.Args[1:]
	c.Writer.WriteArrayHeader(len(members))
	for _, member := range members {
		if !found {
			c.Writer.WriteNull()
			continue
		}
		if score, ok := z.Score(member); ok {
			c.Writer.WriteDouble(score)
		} else {
			c.Writer.WriteNull()
		}
	}
	return nil
}

func zincrby(c *engine.CommandContext) error {
	delta, err := zset.ParseScore(c.Args[1])
	if err != nil {
		return err
	}
	var score float64
	_, err = c.DB().UpdateZSet(c.Args[0], true, func(z *zset.SkipList) error {
		score, err = z.IncrBy(c.Args[2], delta)
		return err
	})
	if err != nil {
		return err
	}
	c.Signal(c.Args[0])
	return c.Writer.WriteDouble(score)
}

func zcard(c *engine.CommandContext) error {
	z, found, err := c.DB().GetZSet(c.Args[0])
	if err != nil {
		return err
	}
	if !found {
		return c.Writer.WriteInteger(0)
	}
	return c.Writer.WriteInteger(z.Len())
}

func zcount(c *engine.CommandContext) error {
	r, err := zset.ParseScoreRange(c.Args[1], c.Args[2])
	if err != nil {
		return err
	}
	z, found, err := c.DB().GetZSet(c.Args[0])
	if err != nil {
		return err
	}
	if !found {
		return c.Writer.WriteInteger(0)
	}
	return c.Writer.WriteInteger(z.CountByScore(r))
}

func zrank(c *engine.CommandContext, rev bool) error {
	withScore := false
	switch len(c.Args) {
	case 2:
	case 3:
		if c.Option(2) != "WITHSCORE" {
			return engine.ErrSyntax
		}
		withScore = true
	default:
		return engine.ErrSyntax
	}

	writeMissing := c.Writer.WriteNull
	if withScore {
		writeMissing = c.Writer.WriteNullArray
	}

	z, found, err := c.DB().GetZSet(c.Args[0])
	if err != nil {
		return err
	}
	if !found {
		return writeMissing()
	}

	member := c.Args[1]
	rank, ok := z.Rank(member)
	if rev {
		rank, ok = z.RevRank(member)
	}
	if !ok {
		return writeMissing()
	}
	if !withScore {
		return c.Writer.WriteInteger(rank)
	}
	score, _ := z.Score(member)
	c.Writer.WriteArrayHeader(2)
	c.Writer.WriteInteger(rank)
	return c.Writer.WriteDouble(score)
}

type rangeSpec struct {
	byScore    bool
	rev        bool
	withScores bool
	limit      bool
	offset     int64
	count      int64
}

// parseRangeOptions reads the options after "key start stop". BYSCORE and
// REV are only accepted by ZRANGE itself.
func parseRangeOptions(opts []string, spec *rangeSpec, full bool) error {
	for i := 0; i < len(opts); i++ {
		switch strings.ToUpper(opts[i]) {
		case "WITHSCORES":
			spec.withScores = true
		case "LIMIT":
			if i+2 >= len(opts) {
				return engine.ErrSyntax
			}
			offset, err := parseInt(opts[i+1])
			if err != nil {
				return err
			}
			count, err := parseInt(opts[i+2])
			if err != nil {
				return err
			}
			spec.limit, spec.offset, spec.count = true, offset, count
			i += 2
		case "BYSCORE":
			if !full {
				return engine.ErrSyntax
			}
			spec.byScore = true
		case "REV":
			if !full {
				return engine.ErrSyntax
			}
			spec.rev = true
		default:
			return engine.ErrSyntax
		}
	}
	if spec.limit && !spec.byScore {
		return engine.Errorf("ERR syntax error, LIMIT is only supported in combination with either BYSCORE or BYLEX")
	}
	return nil
}

func zrange(c *engine.CommandContext, spec rangeSpec, full bool) error {
	if err := parseRangeOptions(c.Args[3:], &spec, full); err != nil {
		return err
	}
	key, a, b := c.Args[0], c.Args[1], c.Args[2]

	var query func(z *zset.SkipList) []zset.Entry
	if spec.byScore {
		lo, hi := a, b
		if spec.rev {
			lo, hi = b, a
		}
		r, err := zset.ParseScoreRange(lo, hi)
		if err != nil {
			return err
		}
		offset, count := int64(0), int64(-1)
		if spec.limit {
			offset, count = spec.offset, spec.count
		}
		query = func(z *zset.SkipList) []zset.Entry {
			if spec.rev {
				return z.RevRangeByScore(r, offset, count)
			}
			return z.RangeByScore(r, offset, count)
		}
	} else {
		start, err := parseInt(a)
		if err != nil {
			return err
		}
		stop, err := parseInt(b)
		if err != nil {
			return err
		}
		query = func(z *zset.SkipList) []zset.Entry {
			if spec.rev {
				return z.RevRangeByRank(start, stop)
			}
			return z.RangeByRank(start, stop)
		}
	}

	z, found, err := c.DB().GetZSet(key)
	if err != nil {
		return err
	}
	if !found {
		return c.Writer.WriteArrayHeader(0)
	}
	return writeEntries(c.Writer, query(z), spec.withScores)
}

func zremrangebyrank(c *engine.CommandContext) error {
	start, err := parseInt(c.Args[1])
	if err != nil {
		return err
	}
	stop, err := parseInt(c.Args[2])
	if err != nil {
		return err
	}

	var removed int64
	_, err = c.DB().UpdateZSet(c.Args[0], false, func(z *zset.SkipList) error {
		n := z.Len()
		if start < 0 {
			start += n
		}
		if stop < 0 {
			stop += n
		}
		if start < 0 {
			start = 0
		}
		if start > stop || start >= n {
			return nil
		}
		if stop >= n {
			stop = n - 1
		}
		// the index takes an exclusive end
		removed = z.RemoveRangeByRank(start, stop+1)
		return nil
	})
	if err != nil {
		return err
	}
	return c.Writer.WriteInteger(removed)
}

func zremrangebyscore(c *engine.CommandContext) error {
	r, err := zset.ParseScoreRange(c.Args[1], c.Args[2])
	if err != nil {
		return err
	}
	var removed int64
	_, err = c.DB().UpdateZSet(c.Args[0], false, func(z *zset.SkipList) error {
		removed = z.RemoveRangeByScore(r)
		return nil
	})
	if err != nil {
		return err
	}
	return c.Writer.WriteInteger(removed)
}

func zpop(c *engine.CommandContext, highest bool) error {
	count := int64(1)
	switch len(c.Args) {
	case 1:
	case 2:
		n, err := parseInt(c.Args[1])
		if err != nil {
			return err
		}
		if n < 0 {
			return engine.Errorf("ERR value is out of range, must be positive")
		}
		count = n
	default:
		return engine.ErrSyntax
	}

	var popped []zset.Entry
	_, err := c.DB().UpdateZSet(c.Args[0], false, func(z *zset.SkipList) error {
		if highest {
			popped = z.PopMax(count)
		} else {
			popped = z.PopMin(count)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return writeEntries(c.Writer, popped, true)
}

func parseTimeout(s string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, engine.ErrTimeout
	}
	if secs < 0 {
		return 0, engine.ErrNegativeTime
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// bzpop pops from the first non-empty key, waiting for a ZADD on any of them
// until the timeout. A zero timeout waits forever.
func bzpop(c *engine.CommandContext, highest bool) error {
	keys := c.Args[:len(c.Args)-1]
	timeout, err := parseTimeout(c.Args[len(c.Args)-1])
	if err != nil {
		return err
	}

	events := make([]string, len(keys))
	for i, key := range keys {
		events[i] = engine.KeyEvent(c.Session.DB, key)
	}
	wake, cancel := c.Engine.Notifier().Subscribe(events...)
	defer cancel()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		served := false
		err := c.Locked(func() error {
			db := c.DB()
			for _, key := range keys {
				var popped []zset.Entry
				_, err := db.UpdateZSet(key, false, func(z *zset.SkipList) error {
					if highest {
						popped = z.PopMax(1)
					} else {
						popped = z.PopMin(1)
					}
					return nil
				})
				if err != nil {
					return err
				}
				if len(popped) > 0 {
					served = true
					c.Writer.WriteArrayHeader(3)
					c.Writer.WriteBulkString(key)
					c.Writer.WriteBulkString(popped[0].Member)
					return c.Writer.WriteDouble(popped[0].Score)
				}
			}
			return nil
		})
		if err != nil || served {
			return err
		}

		select {
		case <-wake:
		case <-expired:
			return c.Writer.WriteNullArray()
		case <-c.Context.Done():
			return c.Context.Err()
		}
	}
}
