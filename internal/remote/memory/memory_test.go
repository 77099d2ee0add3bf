package memory

import (
	"context"
	"errors"
	"testing"

	"portfolio-hub/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateway_CRUD(t *testing.T) {
	ctx := context.Background()
	g := New()

	rows, err := g.Insert(ctx, "projects", remote.Row{"name": "Store", "category": "web"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	id := rows[0]["id"]
	assert.NotEmpty(t, id)
	assert.NotEmpty(t, rows[0]["created_at"])

	updated, err := g.Update(ctx, "projects", remote.Row{"name": "Shop"}, remote.Eq("id", id))
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "Shop", updated[0]["name"])

	got, err := g.Select(ctx, "projects", remote.Query{Filters: []remote.Filter{remote.Eq("category", "web")}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Shop", got[0]["name"])

	require.NoError(t, g.Delete(ctx, "projects", remote.Eq("id", id)))
	assert.Empty(t, g.Rows("projects"))
}

func TestGateway_SelectOrderLimitColumns(t *testing.T) {
	ctx := context.Background()
	g := New()
	g.Seed("news",
		remote.Row{"id": "1", "title": "a", "created_at": "2024-01-01T00:00:00Z"},
		remote.Row{"id": "2", "title": "b", "created_at": "2024-03-01T00:00:00Z"},
		remote.Row{"id": "3", "title": "c", "created_at": "2024-02-01T00:00:00Z"},
	)

	rows, err := g.Select(ctx, "news", remote.Query{
		Columns: []string{"id"},
		Order:   []remote.Order{{Column: "created_at", Desc: true}},
		Limit:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, []remote.Row{{"id": "2"}, {"id": "3"}}, rows)
}

func TestGateway_UpsertByConflictKey(t *testing.T) {
	ctx := context.Background()
	g := New()

	_, err := g.Upsert(ctx, "leads", []remote.Row{{"email": "a@b.com", "name": "A"}}, "email")
	require.NoError(t, err)
	_, err = g.Upsert(ctx, "leads", []remote.Row{{"email": "a@b.com", "name": "A2"}}, "email")
	require.NoError(t, err)

	rows := g.Rows("leads")
	require.Len(t, rows, 1)
	assert.Equal(t, "A2", rows[0]["name"])
}

func TestGateway_FailureInjection(t *testing.T) {
	ctx := context.Background()
	g := New()
	g.SetFailure(errors.New("offline"))

	_, err := g.Select(ctx, "projects", remote.Query{})
	assert.ErrorIs(t, err, remote.ErrUnavailable)
	_, err = g.Insert(ctx, "projects", remote.Row{"name": "x"})
	assert.ErrorIs(t, err, remote.ErrUnavailable)

	g.SetFailure(nil)
	g.SetTableFailure("generated_projects", errors.New("boom"))
	_, err = g.Select(ctx, "generated_projects", remote.Query{})
	assert.Error(t, err)
	_, err = g.Select(ctx, "projects", remote.Query{})
	assert.NoError(t, err)
}

func TestGateway_SubscriptionsReceiveMatchingEvents(t *testing.T) {
	ctx := context.Background()
	g := New()

	var got []remote.ChangeEvent
	sub, err := g.Subscribe(ctx, "messages", []remote.EventType{remote.EventInsert}, func(ev remote.ChangeEvent) {
		got = append(got, ev)
	})
	require.NoError(t, err)
	assert.Equal(t, "messages", sub.Table())

	rows, err := g.Insert(ctx, "messages", remote.Row{"name": "v"})
	require.NoError(t, err)
	_, err = g.Update(ctx, "messages", remote.Row{"is_read": true}, remote.Eq("id", rows[0]["id"]))
	require.NoError(t, err)
	_, err = g.Insert(ctx, "projects", remote.Row{"name": "p"})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, remote.EventInsert, got[0].Type)
	assert.Equal(t, "v", got[0].New["name"])

	require.NoError(t, g.Unsubscribe(ctx, sub))
	assert.Equal(t, 0, g.Subscribers())
}

func TestGateway_Auth(t *testing.T) {
	ctx := context.Background()
	g := New()

	s, err := g.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = g.SignUp(ctx, "Client@Example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "client@example.com", s.User.Email)

	_, err = g.SignUp(ctx, "client@example.com", "other")
	assert.Error(t, err)

	require.NoError(t, g.SignOut(ctx))
	_, err = g.SignIn(ctx, "client@example.com", "wrong")
	assert.Error(t, err)

	s, err = g.SignIn(ctx, "client@example.com", "secret1")
	require.NoError(t, err)
	current, err := g.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, current.User.ID)
}

func TestGateway_Invoke(t *testing.T) {
	ctx := context.Background()
	g := New()

	_, err := g.Invoke(ctx, "check-domain", map[string]string{"domain": "x.com"})
	assert.ErrorIs(t, err, remote.ErrNotFound)

	g.RegisterFunction("check-domain", func(body []byte) (remote.Row, error) {
		return remote.Row{"echo": string(body)}, nil
	})
	res, err := g.Invoke(ctx, "check-domain", map[string]string{"domain": "x.com"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"domain":"x.com"}`, res["echo"].(string))
}
