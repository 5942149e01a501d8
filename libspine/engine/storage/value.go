package storage

import (
	"spinekv/libspine/common/orderedmap"
	"spinekv/libspine/engine/storage/zset"
)

// ValueType represents the type of a stored value
type ValueType int

const (
	TypeString ValueType = iota
	TypeList
	TypeSet
	TypeHash
	TypeZSet
)

// String returns the name TYPE replies with
func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeSet:
		return "set"
	case TypeHash:
		return "hash"
	case TypeZSet:
		return "zset"
	}
	return "none"
}

// Value is a tagged union over the supported data types plus an optional
// expiration timestamp in epoch milliseconds.
type Value struct {
	kind ValueType

	str  string
	list []string
	set  *orderedmap.Map[struct{}]
	hash *orderedmap.Map[string]
	zset *zset.SkipList

	expiresAt int64
	hasExpire bool
}

func NewString(s string) *Value {
	return &Value{kind: TypeString, str: s}
}

func NewList(items ...string) *Value {
	return &Value{kind: TypeList, list: append([]string(nil), items...)}
}

func NewSet(members ...string) *Value {
	set := orderedmap.New[struct{}]()
	for _, m := range members {
		set.Set(m, struct{}{})
	}
	return &Value{kind: TypeSet, set: set}
}

func NewHash() *Value {
	return &Value{kind: TypeHash, hash: orderedmap.New[string]()}
}

// NewZSet wraps idx, or a fresh index when idx is nil
func NewZSet(idx *zset.SkipList) *Value {
	if idx == nil {
		idx = zset.New()
	}
	return &Value{kind: TypeZSet, zset: idx}
}

// Type returns the variant held by v
func (v *Value) Type() ValueType {
	return v.kind
}

func (v *Value) Str() (string, error) {
	if v.kind != TypeString {
		return "", ErrWrongType
	}
	return v.str, nil
}

func (v *Value) List() ([]string, error) {
	if v.kind != TypeList {
		return nil, ErrWrongType
	}
	return v.list, nil
}

func (v *Value) Set() (*orderedmap.Map[struct{}], error) {
	if v.kind != TypeSet {
		return nil, ErrWrongType
	}
	return v.set, nil
}

func (v *Value) Hash() (*orderedmap.Map[string], error) {
	if v.kind != TypeHash {
		return nil, ErrWrongType
	}
	return v.hash, nil
}

func (v *Value) ZSet() (*zset.SkipList, error) {
	if v.kind != TypeZSet {
		return nil, ErrWrongType
	}
	return v.zset, nil
}

// size returns the element count of collection values, or -1 for strings
func (v *Value) size() int {
	switch v.kind {
	case TypeList:
		return len(v.list)
	case TypeSet:
		return v.set.Len()
	case TypeHash:
		return v.hash.Len()
	case TypeZSet:
		return int(v.zset.Len())
	}
	return -1
}

// ExpiresAt returns the expiration timestamp, if one is set
func (v *Value) ExpiresAt() (int64, bool) {
	return v.expiresAt, v.hasExpire
}

// IsExpired reports whether now is past the expiration timestamp
func (v *Value) IsExpired(now int64) bool {
	return v.hasExpire && now > v.expiresAt
}

// TTLMillis returns the remaining lifetime in milliseconds, or -1 when the
// value never expires.
func (v *Value) TTLMillis(now int64) int64 {
	if !v.hasExpire {
		return -1
	}
	if d := v.expiresAt - now; d > 0 {
		return d
	}
	return 0
}

// TTLSeconds is TTLMillis floored to whole seconds
func (v *Value) TTLSeconds(now int64) int64 {
	ms := v.TTLMillis(now)
	if ms < 0 {
		return -1
	}
	return ms / 1000
}

// WithExpirationAt returns a copy of v expiring at ts. The copy shares the
// underlying collection with v.
func (v *Value) WithExpirationAt(ts int64) *Value {
	c := *v
	c.expiresAt = ts
	c.hasExpire = true
	return &c
}

// WithoutExpiration returns a copy of v that never expires
func (v *Value) WithoutExpiration() *Value {
	c := *v
	c.expiresAt = 0
	c.hasExpire = false
	return &c
}
