package commands

import (
	"math"
	"strconv"
	"strings"

	"spinekv/libspine/engine"
	"spinekv/libspine/engine/resp"
	"spinekv/libspine/engine/storage/zset"
)

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, engine.ErrNotInteger
	}
	return n, nil
}

// expireTime converts n units past base (a non-negative millisecond
// timestamp) to an absolute timestamp, rejecting results that overflow.
func expireTime(name string, n, unit, base int64) (int64, error) {
	if n > math.MaxInt64/unit || n < math.MinInt64/unit || n*unit > math.MaxInt64-base {
		return 0, engine.Errorf("ERR invalid expire time in '%s' command", strings.ToLower(name))
	}
	return n*unit + base, nil
}

func parseDB(e *engine.Engine, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, engine.ErrNotInteger
	}
	if e.DB(n) == nil {
		return 0, engine.ErrDBIndex
	}
	return n, nil
}

func writeBool(w *resp.Writer, b bool) error {
	if b {
		return w.WriteInteger(1)
	}
	return w.WriteInteger(0)
}

// writeEntries replies with members, interleaved with their scores when
// withScores is set. RESP3 clients get [member, score] pairs instead of a
// flat array.
func writeEntries(w *resp.Writer, entries []zset.Entry, withScores bool) error {
	if !withScores {
		return w.WriteStringArray(zset.Members(entries))
	}
	if w.Protocol() >= 3 {
		w.WriteArrayHeader(len(entries))
		for _, e := range entries {
			w.WriteArrayHeader(2)
			w.WriteBulkString(e.Member)
			if err := w.WriteDouble(e.Score); err != nil {
				return err
			}
		}
		return nil
	}
	w.WriteArrayHeader(2 * len(entries))
	for _, e := range entries {
		w.WriteBulkString(e.Member)
		if err := w.WriteDouble(e.Score); err != nil {
			return err
		}
	}
	return nil
}
