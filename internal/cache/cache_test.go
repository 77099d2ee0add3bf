package cache

import (
	"context"
	"errors"
	"io"
	"testing"

	"portfolio-hub/internal/broadcast"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	sqlite, err := NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	mr := miniredis.RunT(t)
	rdb := NewRedisBackendWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	t.Cleanup(func() { rdb.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": sqlite,
		"redis":  rdb,
	}
}

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestBackends_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := b.Load(ctx, "projects")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.Store(ctx, "projects", `[{"id":"1"}]`))
			require.NoError(t, b.Store(ctx, "projects", `[{"id":"2"}]`))

			v, ok, err := b.Load(ctx, "projects")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.JSONEq(t, `[{"id":"2"}]`, v)

			require.NoError(t, b.Remove(ctx, "projects"))
			_, ok, err = b.Load(ctx, "projects")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCache_GetMissingLeavesDefault(t *testing.T) {
	c := New(NewMemoryBackend(), broadcast.NewBus(), quietLogger())

	items := []item{}
	ok := c.Get(context.Background(), KindKey("projects"), &items)
	assert.False(t, ok)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestCache_GetCorruptEntryFallsBack(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.Store(ctx, "skills", "{not json"))
	c := New(backend, broadcast.NewBus(), quietLogger())

	items := []item{}
	assert.False(t, c.Get(ctx, KindKey("skills"), &items))
	assert.Empty(t, items)
}

func TestCache_UpdatePublishesOnce(t *testing.T) {
	ctx := context.Background()
	bus := broadcast.NewBus()
	var events []broadcast.Event
	cancel := bus.Subscribe(func(ev broadcast.Event) { events = append(events, ev) }, broadcast.TopicStorage)
	defer cancel()

	c := New(NewMemoryBackend(), bus, quietLogger())
	err := c.Update(ctx, func(tx *Tx) error {
		if err := tx.Put(KindKey("projects"), []item{{ID: "1", Name: "Site"}}); err != nil {
			return err
		}
		return tx.Put(KindKey("activities"), []item{{ID: "a"}})
	})
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, []string{"projects", "activities"}, events[0].Keys)

	var got []item
	require.True(t, c.Get(ctx, KindKey("projects"), &got))
	assert.Equal(t, "Site", got[0].Name)
}

func TestCache_TxSeesStagedWrites(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryBackend(), broadcast.NewBus(), quietLogger())
	require.NoError(t, c.Set(ctx, KeyDrafts, map[string]string{"a": "1"}))

	err := c.Update(ctx, func(tx *Tx) error {
		if err := tx.Put(KeyDrafts, map[string]string{"b": "2"}); err != nil {
			return err
		}
		var staged map[string]string
		require.True(t, tx.Get(KeyDrafts, &staged))
		assert.Equal(t, map[string]string{"b": "2"}, staged)

		tx.Delete(KeyDrafts)
		var gone map[string]string
		assert.False(t, tx.Get(KeyDrafts, &gone))
		return nil
	})
	require.NoError(t, err)

	var after map[string]string
	assert.False(t, c.Get(ctx, KeyDrafts, &after))
}

func TestCache_FailedUpdateWritesNothing(t *testing.T) {
	ctx := context.Background()
	bus := broadcast.NewBus()
	count := 0
	cancel := bus.Subscribe(func(broadcast.Event) { count++ }, broadcast.TopicStorage)
	defer cancel()

	c := New(NewMemoryBackend(), bus, quietLogger())
	boom := errors.New("boom")
	err := c.Update(ctx, func(tx *Tx) error {
		require.NoError(t, tx.Put(KeyAdminToken, "tok"))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, count)
	var tok string
	assert.False(t, c.Get(ctx, KeyAdminToken, &tok))
}

func TestCache_RemovePublishesKey(t *testing.T) {
	ctx := context.Background()
	bus := broadcast.NewBus()
	ch, cancel := bus.Channel(2, broadcast.KeyTopic(string(KeyPortalEmail)))
	defer cancel()

	c := New(NewMemoryBackend(), bus, quietLogger())
	require.NoError(t, c.Set(ctx, KeyPortalEmail, "client@example.com"))
	require.NoError(t, c.Remove(ctx, KeyPortalEmail))

	assert.Len(t, ch, 2)
	var email string
	assert.False(t, c.Get(ctx, KeyPortalEmail, &email))
}
