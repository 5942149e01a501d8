package zset

import (
	"math"
	"strconv"
	"strings"
)

// ScoreRange is a score interval; each bound may be exclusive and may be infinite
type ScoreRange struct {
	Min          float64
	Max          float64
	MinExclusive bool
	MaxExclusive bool
}

// NewScoreRange builds a ScoreRange, rejecting NaN bounds
func NewScoreRange(min, max float64, minExclusive, maxExclusive bool) (ScoreRange, error) {
	if math.IsNaN(min) || math.IsNaN(max) {
		return ScoreRange{}, ErrInvalidRange
	}
	return ScoreRange{Min: min, Max: max, MinExclusive: minExclusive, MaxExclusive: maxExclusive}, nil
}

// ParseScoreRange parses bounds in the "(1.5" / "-inf" / "+inf" syntax
func ParseScoreRange(min, max string) (ScoreRange, error) {
	lo, loEx, err := parseBound(min)
	if err != nil {
		return ScoreRange{}, err
	}
	hi, hiEx, err := parseBound(max)
	if err != nil {
		return ScoreRange{}, err
	}
	return NewScoreRange(lo, hi, loEx, hiEx)
}

func parseBound(s string) (float64, bool, error) {
	exclusive := false
	if strings.HasPrefix(s, "(") {
		exclusive = true
		s = s[1:]
	}
	v, err := parseFloat(s)
	if err != nil {
		return 0, false, ErrInvalidRange
	}
	return v, exclusive, nil
}

// ParseScore parses a score argument; NaN is not a valid score
func ParseScore(s string) (float64, error) {
	v, err := parseFloat(s)
	if err != nil {
		return 0, ErrNotFloat
	}
	return v, nil
}

func parseFloat(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}

// FormatScore renders a score the way replies carry it
func FormatScore(score float64) string {
	switch {
	case math.IsInf(score, 1):
		return "inf"
	case math.IsInf(score, -1):
		return "-inf"
	}
	return strconv.FormatFloat(score, 'g', -1, 64)
}

func (r ScoreRange) gteMin(v float64) bool {
	if r.MinExclusive {
		return v > r.Min
	}
	return v >= r.Min
}

func (r ScoreRange) lteMax(v float64) bool {
	if r.MaxExclusive {
		return v < r.Max
	}
	return v <= r.Max
}

func (r ScoreRange) empty() bool {
	return r.Min > r.Max || (r.Min == r.Max && (r.MinExclusive || r.MaxExclusive)) ||
		math.IsNaN(r.Min) || math.IsNaN(r.Max)
}

// overlaps reports whether any entry could fall inside r
func (z *SkipList) overlaps(r ScoreRange) bool {
	if r.empty() || z.tail == nil || !r.gteMin(z.tail.score) {
		return false
	}
	first := z.header.levels[0].forward
	return first != nil && r.lteMax(first.score)
}

// firstInRange returns the lowest node inside r and its 1-based rank
func (z *SkipList) firstInRange(r ScoreRange) (*skipNode, int64) {
	if !z.overlaps(r) {
		return nil, 0
	}
	var traversed int64
	x := z.header
	for i := z.level - 1; i >= 0; i-- {
		for x.levels[i].forward != nil && !r.gteMin(x.levels[i].forward.score) {
			traversed += x.levels[i].span
			x = x.levels[i].forward
		}
	}
	x = x.levels[0].forward
	if x == nil || !r.lteMax(x.score) {
		return nil, 0
	}
	return x, traversed + 1
}

// lastInRange returns the highest node inside r and its 1-based rank
func (z *SkipList) lastInRange(r ScoreRange) (*skipNode, int64) {
	if !z.overlaps(r) {
		return nil, 0
	}
	var traversed int64
	x := z.header
	for i := z.level - 1; i >= 0; i-- {
		for x.levels[i].forward != nil && r.lteMax(x.levels[i].forward.score) {
			traversed += x.levels[i].span
			x = x.levels[i].forward
		}
	}
	if x == z.header || !r.gteMin(x.score) {
		return nil, 0
	}
	return x, traversed
}

// normalizeRankRange resolves negative indices and clamps stop. ok is false
// when the range selects nothing.
func normalizeRankRange(start, stop, length int64) (int64, int64, bool) {
	if start < 0 {
		start += length
	}
	if stop < 0 {
		stop += length
	}
	if start < 0 {
		start = 0
	}
	if start > stop || start >= length {
		return 0, 0, false
	}
	if stop >= length {
		stop = length - 1
	}
	return start, stop, true
}

// RangeByRank returns entries between start and stop inclusive, in ascending
// order. Negative indices count from the end, -1 being the last entry.
func (z *SkipList) RangeByRank(start, stop int64) []Entry {
	start, stop, ok := normalizeRankRange(start, stop, z.length)
	if !ok {
		return []Entry{}
	}
	out := make([]Entry, 0, stop-start+1)
	x := z.byRank(start + 1)
	for n := stop - start + 1; n > 0 && x != nil; n-- {
		out = append(out, Entry{Member: x.member, Score: x.score})
		x = x.levels[0].forward
	}
	return out
}

// RevRangeByRank is RangeByRank over descending order
func (z *SkipList) RevRangeByRank(start, stop int64) []Entry {
	start, stop, ok := normalizeRankRange(start, stop, z.length)
	if !ok {
		return []Entry{}
	}
	out := make([]Entry, 0, stop-start+1)
	x := z.byRank(z.length - start)
	for n := stop - start + 1; n > 0 && x != nil; n-- {
		out = append(out, Entry{Member: x.member, Score: x.score})
		x = x.backward
	}
	return out
}

// RangeByScore returns entries inside r in ascending order, skipping the
// first offset matches and returning at most count of them. A negative count
// returns everything after offset; a negative offset returns nothing.
func (z *SkipList) RangeByScore(r ScoreRange, offset, count int64) []Entry {
	out := []Entry{}
	if offset < 0 || count == 0 {
		return out
	}
	x, rank := z.firstInRange(r)
	if x == nil {
		return out
	}
	if offset > 0 {
		x = z.byRank(rank + offset)
	}
	for x != nil && count != 0 && r.lteMax(x.score) {
		out = append(out, Entry{Member: x.member, Score: x.score})
		x = x.levels[0].forward
		count--
	}
	return out
}

// RevRangeByScore is RangeByScore over descending order
func (z *SkipList) RevRangeByScore(r ScoreRange, offset, count int64) []Entry {
	out := []Entry{}
	if offset < 0 || count == 0 {
		return out
	}
	x, rank := z.lastInRange(r)
	if x == nil {
		return out
	}
	if offset > 0 {
		x = z.byRank(rank - offset)
	}
	for x != nil && count != 0 && r.gteMin(x.score) {
		out = append(out, Entry{Member: x.member, Score: x.score})
		x = x.backward
		count--
	}
	return out
}

// CountByScore returns the number of entries inside r without walking them
func (z *SkipList) CountByScore(r ScoreRange) int64 {
	first, firstRank := z.firstInRange(r)
	if first == nil {
		return 0
	}
	_, lastRank := z.lastInRange(r)
	return lastRank - firstRank + 1
}

// RemoveRangeByRank deletes entries with start <= rank < end and returns how
// many were removed. Negative indices count from the end.
func (z *SkipList) RemoveRangeByRank(start, end int64) int64 {
	if start < 0 {
		start += z.length
	}
	if end < 0 {
		end += z.length
	}
	if start < 0 {
		start = 0
	}
	if end > z.length {
		end = z.length
	}
	if start >= end {
		return 0
	}

	var update [maxLevel]*skipNode
	var traversed int64
	x := z.header
	for i := z.level - 1; i >= 0; i-- {
		for x.levels[i].forward != nil && traversed+x.levels[i].span <= start {
			traversed += x.levels[i].span
			x = x.levels[i].forward
		}
		update[i] = x
	}

	var removed int64
	x = x.levels[0].forward
	for x != nil && traversed < end {
		next := x.levels[0].forward
		z.unlink(x, &update)
		delete(z.dict, x.member)
		removed++
		traversed++
		x = next
	}
	return removed
}

// RemoveRangeByScore deletes entries inside r and returns how many were removed
func (z *SkipList) RemoveRangeByScore(r ScoreRange) int64 {
	if !z.overlaps(r) {
		return 0
	}

	var update [maxLevel]*skipNode
	x := z.header
	for i := z.level - 1; i >= 0; i-- {
		for x.levels[i].forward != nil && !r.gteMin(x.levels[i].forward.score) {
			x = x.levels[i].forward
		}
		update[i] = x
	}

	var removed int64
	x = x.levels[0].forward
	for x != nil && r.lteMax(x.score) {
		next := x.levels[0].forward
		z.unlink(x, &update)
		delete(z.dict, x.member)
		removed++
		x = next
	}
	return removed
}

// PopMin removes and returns up to count lowest entries
func (z *SkipList) PopMin(count int64) []Entry {
	if count <= 0 {
		return []Entry{}
	}
	out := z.RangeByRank(0, count-1)
	z.RemoveRangeByRank(0, int64(len(out)))
	return out
}

// PopMax removes and returns up to count highest entries, highest first
func (z *SkipList) PopMax(count int64) []Entry {
	if count <= 0 {
		return []Entry{}
	}
	out := z.RevRangeByRank(0, count-1)
	z.RemoveRangeByRank(z.length-int64(len(out)), z.length)
	return out
}
