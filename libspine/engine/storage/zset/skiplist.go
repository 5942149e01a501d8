// Package zset implements the ordered score index behind sorted-set values:
// a skip list whose forward links carry spans, paired with a member -> score
// dictionary.
//
// Entries are ordered by score ascending, then by member byte-wise. Spans on
// every level record how many level-0 nodes a link skips, so the rank of a
// node is the sum of spans walked to reach it. This gives expected O(log N)
// point operations, rank lookups and range seeks.
//
// A SkipList is not safe for concurrent use; callers serialize access.
package zset

import (
	"math"

	"github.com/zhangyunhao116/fastrand"
)

const (
	// maxLevel bounds node height; enough for 2^64 entries at p = 1/e.
	maxLevel = 32

	// levelProbability is the chance a node reaching level L also reaches L+1.
	levelProbability = 1 / math.E
)

// levelThreshold is levelProbability scaled to the fastrand.Uint32 range
var levelThreshold = scaleProbability(levelProbability)

func scaleProbability(p float64) uint32 {
	return uint32(p * math.MaxUint32)
}

// Entry is a member of a sorted set with its score
type Entry struct {
	Member string
	Score  float64
}

type skipLevel struct {
	forward *skipNode
	span    int64
}

type skipNode struct {
	member   string
	score    float64
	backward *skipNode
	levels   []skipLevel
}

// SkipList is an ordered score index
type SkipList struct {
	header *skipNode
	tail   *skipNode
	length int64
	level  int
	dict   map[string]float64
}

// New creates an empty index
func New() *SkipList {
	return &SkipList{
		header: &skipNode{levels: make([]skipLevel, maxLevel)},
		level:  1,
		dict:   make(map[string]float64),
	}
}

func randomLevel() int {
	lvl := 1
	for lvl < maxLevel && fastrand.Uint32() < levelThreshold {
		lvl++
	}
	return lvl
}

// before reports whether n sorts strictly before (score, member)
func (n *skipNode) before(score float64, member string) bool {
	return n.score < score || (n.score == score && n.member < member)
}

// Len returns the number of entries
func (z *SkipList) Len() int64 {
	return z.length
}

// Score returns the score stored for member
func (z *SkipList) Score(member string) (float64, bool) {
	score, ok := z.dict[member]
	return score, ok
}

// Has reports whether member is present
func (z *SkipList) Has(member string) bool {
	_, ok := z.dict[member]
	return ok
}

// Add inserts member with score, or moves an existing member to score.
// It returns the previous score when the member already existed. A NaN score
// is rejected with ErrNotFloat and leaves the index untouched.
func (z *SkipList) Add(member string, score float64) (float64, bool, error) {
	if math.IsNaN(score) {
		return 0, false, ErrNotFloat
	}

	prev, existed := z.dict[member]
	if !existed {
		z.insert(member, score)
		z.dict[member] = score
		return 0, false, nil
	}

	if prev != score {
		z.updateScore(member, prev, score)
		z.dict[member] = score
	}
	return prev, true, nil
}

// IncrBy adds delta to the score of member, treating an absent member as 0,
// and returns the new score.
func (z *SkipList) IncrBy(member string, delta float64) (float64, error) {
	if math.IsNaN(delta) {
		return 0, ErrNotFloat
	}
	score := z.dict[member] + delta
	if math.IsNaN(score) {
		return 0, ErrScoreNaN
	}
	if _, _, err := z.Add(member, score); err != nil {
		return 0, err
	}
	return score, nil
}

// Remove deletes member and returns the score it had
func (z *SkipList) Remove(member string) (float64, bool) {
	score, ok := z.dict[member]
	if !ok {
		return 0, false
	}
	z.delete(member, score)
	delete(z.dict, member)
	return score, true
}

// Rank returns the 0-based position of member in ascending order
func (z *SkipList) Rank(member string) (int64, bool) {
	score, ok := z.dict[member]
	if !ok {
		return 0, false
	}
	return z.rankOf(member, score) - 1, true
}

// RevRank returns the 0-based position of member in descending order
func (z *SkipList) RevRank(member string) (int64, bool) {
	score, ok := z.dict[member]
	if !ok {
		return 0, false
	}
	return z.length - z.rankOf(member, score), true
}

// Entries returns every entry in ascending order
func (z *SkipList) Entries() []Entry {
	out := make([]Entry, 0, z.length)
	for x := z.header.levels[0].forward; x != nil; x = x.levels[0].forward {
		out = append(out, Entry{Member: x.member, Score: x.score})
	}
	return out
}

// Members drops the scores from entries
func Members(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Member
	}
	return out
}

// insert links a new node; the member must not be present
func (z *SkipList) insert(member string, score float64) *skipNode {
	var update [maxLevel]*skipNode
	var rank [maxLevel]int64

	x := z.header
	for i := z.level - 1; i >= 0; i-- {
		if i < z.level-1 {
			rank[i] = rank[i+1]
		}
		for x.levels[i].forward != nil && x.levels[i].forward.before(score, member) {
			rank[i] += x.levels[i].span
			x = x.levels[i].forward
		}
		update[i] = x
	}

	lvl := randomLevel()
	if lvl > z.level {
		for i := z.level; i < lvl; i++ {
			rank[i] = 0
			update[i] = z.header
			update[i].levels[i].span = z.length
		}
		z.level = lvl
	}

	x = &skipNode{member: member, score: score, levels: make([]skipLevel, lvl)}
	for i := 0; i < lvl; i++ {
		x.levels[i].forward = update[i].levels[i].forward
		update[i].levels[i].forward = x
		x.levels[i].span = update[i].levels[i].span - (rank[0] - rank[i])
		update[i].levels[i].span = rank[0] - rank[i] + 1
	}
	// levels above the new node now skip one more entry
	for i := lvl; i < z.level; i++ {
		update[i].levels[i].span++
	}

	if update[0] != z.header {
		x.backward = update[0]
	}
	if x.levels[0].forward != nil {
		x.levels[0].forward.backward = x
	} else {
		z.tail = x
	}
	z.length++
	return x
}

// unlink removes x given the rightmost node before it on every level
func (z *SkipList) unlink(x *skipNode, update *[maxLevel]*skipNode) {
	for i := 0; i < z.level; i++ {
		if update[i].levels[i].forward == x {
			update[i].levels[i].span += x.levels[i].span - 1
			update[i].levels[i].forward = x.levels[i].forward
		} else {
			update[i].levels[i].span--
		}
	}
	if x.levels[0].forward != nil {
		x.levels[0].forward.backward = x.backward
	} else {
		z.tail = x.backward
	}
	for z.level > 1 && z.header.levels[z.level-1].forward == nil {
		z.level--
	}
	z.length--
}

// seek fills update with the rightmost node before (score, member) on each level
func (z *SkipList) seek(member string, score float64, update *[maxLevel]*skipNode) *skipNode {
	x := z.header
	for i := z.level - 1; i >= 0; i-- {
		for x.levels[i].forward != nil && x.levels[i].forward.before(score, member) {
			x = x.levels[i].forward
		}
		update[i] = x
	}
	return x.levels[0].forward
}

func (z *SkipList) delete(member string, score float64) bool {
	var update [maxLevel]*skipNode
	x := z.seek(member, score, &update)
	if x == nil || x.score != score || x.member != member {
		return false
	}
	z.unlink(x, &update)
	return true
}

// updateScore moves member from prev to score. The node is kept in place when
// its neighbours still bracket the new score.
func (z *SkipList) updateScore(member string, prev, score float64) {
	var update [maxLevel]*skipNode
	x := z.seek(member, prev, &update)
	if x == nil || x.member != member {
		return
	}

	if (x.backward == nil || x.backward.before(score, member)) &&
		(x.levels[0].forward == nil || !x.levels[0].forward.before(score, member)) {
		x.score = score
		return
	}

	z.unlink(x, &update)
	z.insert(member, score)
}

// rankOf returns the 1-based rank of (member, score), or 0 when absent
func (z *SkipList) rankOf(member string, score float64) int64 {
	var rank int64
	x := z.header
	for i := z.level - 1; i >= 0; i-- {
		for x.levels[i].forward != nil &&
			(x.levels[i].forward.before(score, member) || x.levels[i].forward.member == member) {
			rank += x.levels[i].span
			x = x.levels[i].forward
		}
		if x != z.header && x.member == member {
			return rank
		}
	}
	return 0
}

// byRank returns the node at 1-based rank
func (z *SkipList) byRank(rank int64) *skipNode {
	if rank < 1 || rank > z.length {
		return nil
	}
	var traversed int64
	x := z.header
	for i := z.level - 1; i >= 0; i-- {
		for x.levels[i].forward != nil && traversed+x.levels[i].span <= rank {
			traversed += x.levels[i].span
			x = x.levels[i].forward
		}
		if traversed == rank {
			return x
		}
	}
	return nil
}
