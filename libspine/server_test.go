package libspine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spinekv/libspine/engine"
)

func startServer(t *testing.T, listen ...string) *Server {
	t.Helper()
	var configs []ListenConfig
	for _, addr := range listen {
		lc, err := ParseListenAddress(addr)
		require.NoError(t, err)
		configs = append(configs, lc)
	}
	s, err := NewServer(&Config{ListenConfigs: configs, Databases: 4})
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Stop() })
	return s
}

func newTestClient(t *testing.T, protocol, addr string) *redis.Client {
	t.Helper()
	client, err := NewClient(protocol, addr)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestParseListenAddress(t *testing.T) {
	tests := []struct {
		in   string
		want ListenConfig
		err  bool
	}{
		{in: "tcp://:6379", want: ListenConfig{Schema: "tcp", Port: "6379"}},
		{in: "tcp://127.0.0.1:0", want: ListenConfig{Schema: "tcp", Host: "127.0.0.1", Port: "0"}},
		{in: "ws://[::1]:8000", want: ListenConfig{Schema: "ws", Host: "::1", Port: "8000"}},
		{in: "unix:///tmp/spine.sock", want: ListenConfig{Schema: "unix", Path: "/tmp/spine.sock"}},
		{in: "localhost:6379", err: true},
		{in: "://:6379", err: true},
		{in: "udp://:53", err: true},
		{in: "tcp://nocolon", err: true},
		{in: "unix://", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseListenAddress(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "tcp://127.0.0.1:6379", ListenConfig{Schema: "tcp", Host: "127.0.0.1", Port: "6379"}.String())
	assert.Equal(t, "/tmp/s.sock", ListenConfig{Schema: "unix", Path: "/tmp/s.sock"}.Address())
}

func TestServer_StartFailure(t *testing.T) {
	s, err := NewServer(&Config{})
	require.NoError(t, err)
	assert.Error(t, s.Start(), "no listeners")

	s, err = NewServer(&Config{ListenConfigs: []ListenConfig{
		{Schema: "tcp", Host: "127.0.0.1", Port: "0"},
		{Schema: "carrier-pigeon"},
	}})
	require.NoError(t, err)
	assert.Error(t, s.Start())
	assert.Empty(t, s.Addrs(), "listeners opened before the failure are closed")
}

func TestServer_SortedSetsOverTCP(t *testing.T) {
	s := startServer(t, "tcp://127.0.0.1:0")
	rdb := newTestClient(t, "tcp", s.Addrs()[0].String())
	ctx := context.Background()

	require.NoError(t, rdb.Ping(ctx).Err())

	added, err := rdb.ZAdd(ctx, "movies",
		&redis.Z{Score: 7.7, Member: "Ex Machina"},
		&redis.Z{Score: 8.0, Member: "Terminator"},
		&redis.Z{Score: 8.0, Member: "District 9"},
		&redis.Z{Score: 9.0, Member: "Interstellar"},
	).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(4), added)

	members, err := rdb.ZRangeByScore(ctx, "movies", &redis.ZRangeBy{Min: "7", Max: "8"}).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"Ex Machina", "District 9", "Terminator"}, members)

	withScores, err := rdb.ZRevRangeWithScores(ctx, "movies", 0, 1).Result()
	require.NoError(t, err)
	assert.Equal(t, []redis.Z{{Score: 9, Member: "Interstellar"}, {Score: 8, Member: "Terminator"}}, withScores)

	rank, err := rdb.ZRank(ctx, "movies", "Terminator").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), rank)

	_, err = rdb.ZRank(ctx, "movies", "Alien").Result()
	assert.ErrorIs(t, err, redis.Nil)

	score, err := rdb.ZIncrBy(ctx, "movies", 2, "District 9").Result()
	require.NoError(t, err)
	assert.Equal(t, 10.0, score)

	n, err := rdb.ZRemRangeByRank(ctx, "movies", 0, 0).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	card, err := rdb.ZCard(ctx, "movies").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), card)

	require.NoError(t, rdb.Set(ctx, "plain", "v", 0).Err())
	err = rdb.ZAdd(ctx, "plain", &redis.Z{Score: 1, Member: "m"}).Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WRONGTYPE")
}

func TestServer_KeyspaceOverUnixSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spine.sock")
	s := startServer(t, "unix://"+path)
	rdb := newTestClient(t, "unix", path)
	ctx := context.Background()

	require.NoError(t, rdb.Set(ctx, "session:1", "alice", 10*time.Second).Err())
	ttl, err := rdb.TTL(ctx, "session:1").Result()
	require.NoError(t, err)
	assert.InDelta(t, 10*time.Second, ttl, float64(time.Second))

	require.NoError(t, rdb.Rename(ctx, "session:1", "session:2").Err())
	ttl, err = rdb.PTTL(ctx, "session:2").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 8*time.Second, "rename keeps the ttl")

	require.NoError(t, rdb.HSet(ctx, "user:1", "name", "alice", "lang", "go").Err())
	require.NoError(t, rdb.SAdd(ctx, "tags", "a", "b").Err())
	require.NoError(t, rdb.RPush(ctx, "queue", "x", "y").Err())

	keys, err := rdb.Keys(ctx, "*").Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"session:2", "user:1", "tags", "queue"}, keys)

	fields, err := rdb.HGetAll(ctx, "user:1").Result()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "alice", "lang": "go"}, fields)

	moved, err := rdb.Move(ctx, "tags", 2).Result()
	require.NoError(t, err)
	assert.True(t, moved)
	size, err := rdb.DBSize(ctx).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)

	_, err = rdb.Get(ctx, "missing").Result()
	assert.ErrorIs(t, err, redis.Nil)

	assert.GreaterOrEqual(t, s.GetServerContext().Connections.Count(), 1)
}

func TestServer_BlockingPopAcrossClients(t *testing.T) {
	s := startServer(t, "tcp://127.0.0.1:0")
	addr := s.Addrs()[0].String()
	consumer := newTestClient(t, "tcp", addr)
	producer := newTestClient(t, "tcp", addr)
	ctx := context.Background()

	got := make(chan *redis.ZWithKey, 1)
	go func() {
		res, err := consumer.BZPopMin(ctx, 5*time.Second, "jobs").Result()
		if err != nil {
			got <- nil
			return
		}
		got <- res
	}()

	require.Eventually(t, func() bool {
		return s.Engine().Notifier().Waiting(engine.KeyEvent(0, "jobs")) == 1
	}, 2*time.Second, time.Millisecond)
	require.NoError(t, producer.ZAdd(ctx, "jobs", &redis.Z{Score: 3, Member: "build"}).Err())

	select {
	case res := <-got:
		require.NotNil(t, res)
		assert.Equal(t, "jobs", res.Key)
		assert.Equal(t, "build", res.Member)
		assert.Equal(t, 3.0, res.Score)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer was not woken")
	}

	_, err := consumer.BZPopMin(ctx, 50*time.Millisecond, "jobs").Result()
	assert.ErrorIs(t, err, redis.Nil)
}

func TestServer_WebSocket(t *testing.T) {
	s := startServer(t, "ws://127.0.0.1:0")
	url := "ws://" + s.Addrs()[0].String() + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage,
		[]byte("*4\r\n$4\r\nZADD\r\n$1\r\nz\r\n$1\r\n1\r\n$1\r\na\r\nZSCORE z a\r\n")))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	want := ":1\r\n$1\r\n1\r\n"
	var got []byte
	for len(got) < len(want) {
		mt, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.BinaryMessage, mt)
		got = append(got, data...)
	}
	assert.Equal(t, want, string(got))
}
