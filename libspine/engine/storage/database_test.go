package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spinekv/libspine/common/orderedmap"
	"spinekv/libspine/engine/storage/zset"
)

type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() int64 { return c.now }

func newTestDB() (*Database, *fakeClock) {
	clock := &fakeClock{now: 1_000_000}
	return NewDatabase(0, clock.Now), clock
}

func TestNewDatabase(t *testing.T) {
	db := NewDatabase(5, nil)
	assert.Equal(t, 5, db.Index())
	assert.Equal(t, 0, db.Len())
	assert.NotZero(t, db.Now())
}

func TestDatabase_ExpirationRoundTrip(t *testing.T) {
	db, clock := newTestDB()
	db.Put("k", NewString("v").WithExpirationAt(clock.now+1000))

	clock.now += 999
	v, ok := db.Get("k")
	require.True(t, ok)
	s, err := v.Str()
	require.NoError(t, err)
	assert.Equal(t, "v", s)

	// still alive at the exact instant
	clock.now++
	assert.True(t, db.Exists("k"))

	clock.now++
	_, ok = db.Get("k")
	assert.False(t, ok)
	assert.False(t, db.Exists("k"))
	assert.Equal(t, 0, db.data.Len(), "expired entry should be evicted on read")
}

func TestDatabase_RenameTransfersExpiration(t *testing.T) {
	db, clock := newTestDB()
	db.Put("k1", NewString("v").WithExpirationAt(clock.now+5000))
	clock.now += 1200

	require.True(t, db.Rename("k1", "k2"))
	assert.False(t, db.Exists("k1"))

	v, ok := db.Get("k2")
	require.True(t, ok)
	assert.Equal(t, int64(3800), v.TTLMillis(clock.now))
	assert.Equal(t, int64(3), v.TTLSeconds(clock.now))

	assert.False(t, db.Rename("missing", "k3"))
	assert.True(t, db.Rename("k2", "k2"))
	assert.True(t, db.Exists("k2"))
}

func TestDatabase_RenameOverwritesDestination(t *testing.T) {
	db, _ := newTestDB()
	db.Put("src", NewZSet(nil))
	db.Put("dst", NewString("old"))

	require.True(t, db.Rename("src", "dst"))
	typ, ok := db.Type("dst")
	require.True(t, ok)
	assert.Equal(t, TypeZSet, typ)
	assert.Equal(t, []string{"dst"}, db.Keys())
}

func TestDatabase_KeysFiltersExpired(t *testing.T) {
	db, clock := newTestDB()
	db.Put("a", NewString("1"))
	db.Put("b", NewString("2").WithExpirationAt(clock.now+10))
	db.Put("c", NewString("3"))

	assert.Equal(t, []string{"a", "b", "c"}, db.Keys())
	assert.Equal(t, 3, db.Len())

	clock.now += 11
	assert.Equal(t, []string{"a", "c"}, db.Keys())
	assert.Equal(t, 2, db.data.Len())
}

func TestDatabase_LenEvictsExpired(t *testing.T) {
	db, clock := newTestDB()
	db.Put("a", NewString("1"))
	db.Put("b", NewString("2").WithExpirationAt(clock.now+10))

	clock.now += 11
	assert.Equal(t, 1, db.Len())
	assert.Equal(t, 1, db.data.Len())
	assert.False(t, db.data.Has("b"))
}

func TestDatabase_PutVariants(t *testing.T) {
	db, _ := newTestDB()

	first := NewString("first")
	assert.Same(t, first, db.PutIfAbsent("k", first))
	assert.Same(t, first, db.PutIfAbsent("k", NewString("second")))

	_, ok := db.PutIfPresent("missing", NewString("x"))
	assert.False(t, ok)
	assert.False(t, db.Exists("missing"))

	third := NewString("third")
	got, ok := db.PutIfPresent("k", third)
	require.True(t, ok)
	assert.Same(t, third, got)

	s, found, err := db.GetString("k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "third", s)
}

func TestDatabase_Merge(t *testing.T) {
	db, _ := newTestDB()
	union := func(existing, incoming *Value) (*Value, error) {
		dst, err := existing.ZSet()
		if err != nil {
			return nil, err
		}
		src, err := incoming.ZSet()
		if err != nil {
			return nil, err
		}
		for _, e := range src.Entries() {
			dst.Add(e.Member, e.Score)
		}
		return existing, nil
	}
	batch := func(entries ...zset.Entry) *Value {
		idx := zset.New()
		for _, e := range entries {
			idx.Add(e.Member, e.Score)
		}
		return NewZSet(idx)
	}

	_, err := db.Merge("z", batch(zset.Entry{Member: "a", Score: 1}), union)
	require.NoError(t, err)
	_, err = db.Merge("z", batch(zset.Entry{Member: "b", Score: 2}, zset.Entry{Member: "a", Score: 3}), union)
	require.NoError(t, err)

	idx, found, err := db.GetZSet("z")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []zset.Entry{{Member: "b", Score: 2}, {Member: "a", Score: 3}}, idx.Entries())

	db.Put("s", NewString("x"))
	_, err = db.Merge("s", batch(zset.Entry{Member: "a", Score: 1}), union)
	assert.ErrorIs(t, err, ErrWrongType)
	s, _, _ := db.GetString("s")
	assert.Equal(t, "x", s)
}

func TestDatabase_TypeGuardedAccessors(t *testing.T) {
	db, _ := newTestDB()
	db.Put("str", NewString("x"))
	db.Put("z", NewZSet(nil))

	_, found, err := db.GetZSet("str")
	assert.ErrorIs(t, err, ErrWrongType)
	assert.False(t, found)

	_, _, err = db.GetString("z")
	assert.ErrorIs(t, err, ErrWrongType)
	_, _, err = db.GetList("z")
	assert.ErrorIs(t, err, ErrWrongType)
	_, _, err = db.GetSet("z")
	assert.ErrorIs(t, err, ErrWrongType)
	_, _, err = db.GetHash("z")
	assert.ErrorIs(t, err, ErrWrongType)

	_, found, err = db.GetZSet("missing")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestDatabase_ExpireAndPersist(t *testing.T) {
	db, clock := newTestDB()
	db.Put("k", NewString("v"))

	v, _ := db.Get("k")
	assert.Equal(t, int64(-1), v.TTLMillis(clock.now))
	assert.False(t, db.Persist("k"))

	require.True(t, db.Expire("k", clock.now+2500))
	v, _ = db.Get("k")
	assert.Equal(t, int64(2), v.TTLSeconds(clock.now))

	require.True(t, db.Persist("k"))
	v, _ = db.Get("k")
	_, has := v.ExpiresAt()
	assert.False(t, has)

	assert.True(t, db.Expire("k", clock.now-1))
	assert.False(t, db.Exists("k"))
	assert.False(t, db.Expire("k", clock.now+10))
}

func TestDatabase_WithExpirationAtLeavesOriginal(t *testing.T) {
	v := NewString("v")
	c := v.WithExpirationAt(42)

	_, has := v.ExpiresAt()
	assert.False(t, has)
	at, has := c.ExpiresAt()
	assert.True(t, has)
	assert.Equal(t, int64(42), at)
	assert.Equal(t, int64(0), c.TTLMillis(100))
}

func TestDatabase_MoveTo(t *testing.T) {
	src, _ := newTestDB()
	dst := NewDatabase(1, src.clock)

	src.Put("k", NewString("v"))
	require.True(t, src.MoveTo(dst, "k"))
	assert.False(t, src.Exists("k"))
	assert.True(t, dst.Exists("k"))

	src.Put("k", NewString("other"))
	assert.False(t, src.MoveTo(dst, "k"))
	assert.False(t, src.MoveTo(dst, "missing"))
	assert.False(t, src.MoveTo(src, "k"))
}

func TestDatabase_UpdateRemovesEmptyCollections(t *testing.T) {
	db, _ := newTestDB()

	found, err := db.UpdateZSet("z", false, func(z *zset.SkipList) error {
		t.Fatal("callback must not run for an absent key without create")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, found)

	found, err = db.UpdateZSet("z", true, func(z *zset.SkipList) error {
		_, _, err := z.Add("m", 1)
		return err
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, db.Exists("z"))

	_, err = db.UpdateZSet("z", false, func(z *zset.SkipList) error {
		z.Remove("m")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, db.Exists("z"))

	boom := errors.New("boom")
	_, err = db.UpdateHash("h", true, func(h *orderedmap.Map[string]) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, db.Exists("h"))
}

func TestDatabase_UpdateListAndSet(t *testing.T) {
	db, _ := newTestDB()

	_, err := db.UpdateList("l", true, func(list []string) ([]string, error) {
		return append(list, "a", "b"), nil
	})
	require.NoError(t, err)
	l, found, err := db.GetList("l")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"a", "b"}, l)

	_, err = db.UpdateSet("s", true, func(s *orderedmap.Map[struct{}]) error {
		s.Set("x", struct{}{})
		return nil
	})
	require.NoError(t, err)
	set, _, err := db.GetSet("s")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, set.Keys())

	_, err = db.UpdateSet("l", false, func(s *orderedmap.Map[struct{}]) error { return nil })
	assert.ErrorIs(t, err, ErrWrongType)
	assert.True(t, db.Exists("l"))
}

func TestDatabase_Flush(t *testing.T) {
	db, _ := newTestDB()
	db.Put("a", NewString("1"))
	db.Put("b", NewHash())
	db.Flush()
	assert.Empty(t, db.Keys())
}

func TestValueType_String(t *testing.T) {
	assert.Equal(t, "string", TypeString.String())
	assert.Equal(t, "list", TypeList.String())
	assert.Equal(t, "set", TypeSet.String())
	assert.Equal(t, "hash", TypeHash.String())
	assert.Equal(t, "zset", TypeZSet.String())
}
