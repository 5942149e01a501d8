// Package storage holds the per-database keyspace: typed values with lazy
// expiration and the compound operations commands are built from.
//
// A Database does no locking of its own. The engine serializes every command
// that touches it.
package storage

import (
	"time"

	"github.com/VictoriaMetrics/metrics"

	"spinekv/libspine/common/orderedmap"
	"spinekv/libspine/engine/storage/zset"
)

var expiredKeys = metrics.GetOrCreateCounter("spine_expired_keys_total")

// Clock returns the current time in epoch milliseconds
type Clock func() int64

// SystemClock reads the wall clock
func SystemClock() int64 {
	return time.Now().UnixMilli()
}

// Database represents one logical keyspace
type Database struct {
	index int
	clock Clock
	data  *orderedmap.Map[*Value]
}

// NewDatabase creates an empty database. A nil clock means SystemClock.
func NewDatabase(index int, clock Clock) *Database {
	if clock == nil {
		clock = SystemClock
	}
	return &Database{
		index: index,
		clock: clock,
		data:  orderedmap.New[*Value](),
	}
}

// Index returns the database number
func (db *Database) Index() int {
	return db.index
}

// Now returns the database clock reading
func (db *Database) Now() int64 {
	return db.clock()
}

// Get returns the live value stored at key, evicting it first when expired
func (db *Database) Get(key string) (*Value, bool) {
	v, ok := db.data.Get(key)
	if !ok {
		return nil, false
	}
	if v.IsExpired(db.clock()) {
		db.data.Delete(key)
		expiredKeys.Inc()
		return nil, false
	}
	return v, true
}

// Put stores v at key unconditionally and returns it
func (db *Database) Put(key string, v *Value) *Value {
	db.data.Set(key, v)
	return v
}

// PutIfAbsent stores v only when key holds nothing and returns whichever value
// ends up stored.
func (db *Database) PutIfAbsent(key string, v *Value) *Value {
	if existing, ok := db.Get(key); ok {
		return existing
	}
	return db.Put(key, v)
}

// PutIfPresent replaces the value at key only when one exists
func (db *Database) PutIfPresent(key string, v *Value) (*Value, bool) {
	if _, ok := db.Get(key); !ok {
		return nil, false
	}
	return db.Put(key, v), true
}

// Merge stores v when key is absent, otherwise stores combine(existing, v).
// Nothing is written when combine fails.
func (db *Database) Merge(key string, v *Value, combine func(existing, incoming *Value) (*Value, error)) (*Value, error) {
	existing, ok := db.Get(key)
	if !ok {
		return db.Put(key, v), nil
	}
	merged, err := combine(existing, v)
	if err != nil {
		return nil, err
	}
	return db.Put(key, merged), nil
}

// Remove deletes key and reports whether a live value was removed
func (db *Database) Remove(key string) bool {
	if _, ok := db.Get(key); !ok {
		return false
	}
	db.data.Delete(key)
	return true
}

// Exists reports whether key holds a live value
func (db *Database) Exists(key string) bool {
	_, ok := db.Get(key)
	return ok
}

// Rename moves the value at from, expiration included, to to. Any value at to
// is overwritten. It returns false when from is absent.
func (db *Database) Rename(from, to string) bool {
	v, ok := db.Get(from)
	if !ok {
		return false
	}
	if from == to {
		return true
	}
	db.data.Delete(from)
	db.data.Delete(to)
	db.data.Set(to, v)
	return true
}

// Keys returns the live keys in insertion order. Expired entries found on
// the way are evicted.
func (db *Database) Keys() []string {
	now := db.clock()
	keys := make([]string, 0, db.data.Len())
	var expired []string
	db.data.Range(func(key string, v *Value) bool {
		if v.IsExpired(now) {
			expired = append(expired, key)
		} else {
			keys = append(keys, key)
		}
		return true
	})
	for _, key := range expired {
		db.data.Delete(key)
		expiredKeys.Inc()
	}
	return keys
}

// Len returns the number of live keys. Expired entries found on the way
// are evicted.
func (db *Database) Len() int {
	return len(db.Keys())
}

// Flush removes every key
func (db *Database) Flush() {
	db.data.Clear()
}

// Type returns the type of the value stored at key
func (db *Database) Type(key string) (ValueType, bool) {
	v, ok := db.Get(key)
	if !ok {
		return 0, false
	}
	return v.Type(), true
}

// Expire sets the expiration of key to at. A timestamp that is not in the
// future deletes the key right away.
func (db *Database) Expire(key string, at int64) bool {
	v, ok := db.Get(key)
	if !ok {
		return false
	}
	if at <= db.clock() {
		db.data.Delete(key)
		return true
	}
	db.data.Set(key, v.WithExpirationAt(at))
	return true
}

// Persist clears the expiration of key. It returns false when the key is
// absent or has no expiration.
func (db *Database) Persist(key string) bool {
	v, ok := db.Get(key)
	if !ok {
		return false
	}
	if _, has := v.ExpiresAt(); !has {
		return false
	}
	db.data.Set(key, v.WithoutExpiration())
	return true
}

// MoveTo transfers key to dst. It fails when key is absent here or already
// present in dst.
func (db *Database) MoveTo(dst *Database, key string) bool {
	if dst == db {
		return false
	}
	v, ok := db.Get(key)
	if !ok || dst.Exists(key) {
		return false
	}
	db.data.Delete(key)
	dst.data.Set(key, v)
	return true
}

// GetString returns the string at key
func (db *Database) GetString(key string) (string, bool, error) {
	v, ok := db.Get(key)
	if !ok {
		return "", false, nil
	}
	s, err := v.Str()
	return s, err == nil, err
}

// GetList returns the list at key
func (db *Database) GetList(key string) ([]string, bool, error) {
	v, ok := db.Get(key)
	if !ok {
		return nil, false, nil
	}
	l, err := v.List()
	return l, err == nil, err
}

// GetSet returns the set at key
func (db *Database) GetSet(key string) (*orderedmap.Map[struct{}], bool, error) {
	v, ok := db.Get(key)
	if !ok {
		return nil, false, nil
	}
	s, err := v.Set()
	return s, err == nil, err
}

// GetHash returns the hash at key
func (db *Database) GetHash(key string) (*orderedmap.Map[string], bool, error) {
	v, ok := db.Get(key)
	if !ok {
		return nil, false, nil
	}
	h, err := v.Hash()
	return h, err == nil, err
}

// GetZSet returns the sorted set index at key
func (db *Database) GetZSet(key string) (*zset.SkipList, bool, error) {
	v, ok := db.Get(key)
	if !ok {
		return nil, false, nil
	}
	z, err := v.ZSet()
	return z, err == nil, err
}

// update runs fn against the value at key, creating it with newValue first
// when absent and create is set. A collection left empty is removed. found is
// false when fn was not called.
func (db *Database) update(key string, create bool, newValue func() *Value, fn func(v *Value) error) (bool, error) {
	v, ok := db.Get(key)
	if !ok {
		if !create {
			return false, nil
		}
		v = db.Put(key, newValue())
	}
	err := fn(v)
	if v.size() == 0 {
		db.data.Delete(key)
	}
	return true, err
}

// UpdateZSet mutates the sorted set at key in place
func (db *Database) UpdateZSet(key string, create bool, fn func(z *zset.SkipList) error) (bool, error) {
	return db.update(key, create, func() *Value { return NewZSet(nil) }, func(v *Value) error {
		z, err := v.ZSet()
		if err != nil {
			return err
		}
		return fn(z)
	})
}

// UpdateHash mutates the hash at key in place
func (db *Database) UpdateHash(key string, create bool, fn func(h *orderedmap.Map[string]) error) (bool, error) {
	return db.update(key, create, NewHash, func(v *Value) error {
		h, err := v.Hash()
		if err != nil {
			return err
		}
		return fn(h)
	})
}

// UpdateSet mutates the set at key in place
func (db *Database) UpdateSet(key string, create bool, fn func(s *orderedmap.Map[struct{}]) error) (bool, error) {
	return db.update(key, create, func() *Value { return NewSet() }, func(v *Value) error {
		s, err := v.Set()
		if err != nil {
			return err
		}
		return fn(s)
	})
}

// UpdateList replaces the list at key with the slice fn returns
func (db *Database) UpdateList(key string, create bool, fn func(list []string) ([]string, error)) (bool, error) {
	return db.update(key, create, func() *Value { return NewList() }, func(v *Value) error {
		l, err := v.List()
		if err != nil {
			return err
		}
		out, err := fn(l)
		if err != nil {
			return err
		}
		v.list = out
		return nil
	})
}
