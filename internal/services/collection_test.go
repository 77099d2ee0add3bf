package services

import (
	"context"
	"strconv"
	"testing"

	"portfolio-hub/internal/broadcast"
	"portfolio-hub/internal/models"
	"portfolio-hub/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjects_ServesDefaultsUntilFirstWrite(t *testing.T) {
	f := newFixture(t)

	projects := f.svc.GetProjects(context.Background())
	require.Len(t, projects, 2)
	assert.Equal(t, "1", projects[0].ID)
	assert.Equal(t, "Smart Perfume Store", projects[0].Name)
	assert.Len(t, f.svc.GetSkills(context.Background()), 3)
}

func TestFetchProjects_ReplacesCachedSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.Seed("projects",
		remote.Row{"id": "p1", "name": "Remote Store", "category": "web", "description": "Shop", "created_at": "2026-02-01T00:00:00Z"},
		remote.Row{"id": "p2", "name": "Older", "category": "mobile", "created_at": "2026-01-01T00:00:00Z"},
	)

	projects := f.svc.FetchProjects(ctx)
	require.Len(t, projects, 2)
	assert.Equal(t, "p1", projects[0].ID)
	assert.Equal(t, "Shop", projects[0].Description)

	cached := f.svc.GetProjects(ctx)
	assert.Len(t, cached, 2)
	for _, p := range cached {
		assert.NotEqual(t, "1", p.ID, "defaults should be replaced")
	}
}

func TestFetch_RemoteFailureServesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.SetFailure(errOffline)

	skills := f.svc.FetchSkills(ctx)
	assert.Len(t, skills, 3)
}

func TestAddNews_FallbackUsesTimestampID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.SetFailure(errOffline)

	res := f.svc.AddNews(ctx, models.NewsItem{Title: "Certified"})
	assert.True(t, res.Pending())
	assert.Error(t, res.Err)

	id, err := strconv.ParseInt(res.Value.ID, 10, 64)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.UnixMilli(), id)
	assert.Equal(t, "2026-03-01", res.Value.Date)

	second := f.svc.AddNews(ctx, models.NewsItem{Title: "Again"})
	assert.NotEqual(t, res.Value.ID, second.Value.ID)

	news := f.svc.GetNews(ctx)
	assert.Len(t, news, 3)

	queue := f.svc.PendingWrites(ctx)
	require.Len(t, queue, 2)
	assert.Equal(t, models.OpInsert, queue[0].Op)
	assert.Equal(t, res.Value.ID, queue[0].EntityID)
	assert.NotContains(t, queue[0].Payload, "id")
}

func TestAdd_SyncedLogsActivity(t *testing.T) {
	ctx := WithActor(context.Background(), "admin@example.com")
	f := newFixture(t)

	res := f.svc.AddProject(ctx, models.Project{Name: "Portal", Category: models.CategoryWeb})
	require.Equal(t, Synced, res.State)
	assert.NotEmpty(t, res.Value.ID)
	assert.Len(t, f.gw.Rows("projects"), 1)

	acts := f.svc.GetActivities(ctx)
	require.Len(t, acts, 1)
	assert.Equal(t, "Added project: Portal", acts[0].Message)
	assert.Equal(t, "admin@example.com", acts[0].ActorEmail)
	assert.Empty(t, f.svc.PendingWrites(ctx))
}

func TestAddUser_UniqueByEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.svc.AddUser(ctx, models.Lead{Name: "Sara", Email: "Sara@Example.com"})
	res := f.svc.AddUser(ctx, models.Lead{Name: "Sara K", Email: "sara@example.com"})
	require.Equal(t, Synced, res.State)

	assert.Len(t, f.gw.Rows("leads"), 1)
	users := f.svc.GetUsers(ctx)
	require.Len(t, users, 1)
	assert.Equal(t, "Sara K", users[0].Name)
}

func TestAddUser_UniqueByEmailOffline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.SetFailure(errOffline)

	first := f.svc.AddUser(ctx, models.Lead{Name: "Omar", Email: "omar@example.com", Phone: "050"})
	second := f.svc.AddUser(ctx, models.Lead{Name: "Omar A", Email: "OMAR@example.com"})
	assert.True(t, second.Pending())
	assert.Equal(t, first.Value.ID, second.Value.ID)
	assert.Equal(t, "050", second.Value.Phone, "blank fields keep cached values")

	require.Len(t, f.svc.GetUsers(ctx), 1)
	queue := f.svc.PendingWrites(ctx)
	require.Len(t, queue, 1)
	assert.Equal(t, models.OpUpsert, queue[0].Op)
	assert.Equal(t, "Omar A", queue[0].Payload["name"])

	f.gw.SetFailure(nil)
	report, err := f.svc.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Replayed)

	rows := f.gw.Rows("leads")
	require.Len(t, rows, 1)
	users := f.svc.GetUsers(ctx)
	require.Len(t, users, 1)
	assert.Equal(t, remote.Text(rows[0]["id"]), users[0].ID)
}

func TestAddUser_LeadsWithoutEmailStayDistinct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.svc.AddUser(ctx, models.Lead{Name: "Alice"})
	f.svc.AddUser(ctx, models.Lead{Name: "Bob"})
	assert.Len(t, f.gw.Rows("leads"), 2)
	assert.Len(t, f.svc.GetUsers(ctx), 2)

	users := f.svc.FetchUsers(ctx)
	assert.Len(t, users, 2)
	assert.Len(t, f.svc.GetUsers(ctx), 2)
}

func TestUpdate_OfflineQueuesAndRemoteWinsOnFetch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.Seed("projects", remote.Row{"id": "p1", "name": "Remote", "category": "web", "created_at": "2026-02-01T00:00:00Z"})
	f.svc.FetchProjects(ctx)

	f.gw.SetFailure(errOffline)
	res, err := f.svc.UpdateProject(ctx, "p1", map[string]any{"name": "Local"})
	require.NoError(t, err)
	assert.True(t, res.Pending())
	assert.Equal(t, "Local", res.Value.Name)
	added := f.svc.AddProject(ctx, models.Project{Name: "Draft"})
	require.True(t, added.Pending())

	f.gw.SetFailure(nil)
	projects := f.svc.FetchProjects(ctx)
	byID := map[string]models.Project{}
	for _, p := range projects {
		byID[p.ID] = p
	}
	require.Contains(t, byID, "p1")
	assert.Equal(t, "Remote", byID["p1"].Name)
	require.Contains(t, byID, added.Value.ID, "local-only records survive a fetch")
	assert.Equal(t, "Draft", byID[added.Value.ID].Name)
}

func TestUpdate_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.UpdateSkill(ctx, "nope", map[string]any{"level": 50})
	assert.ErrorIs(t, err, ErrNotFound)

	f.gw.SetFailure(errOffline)
	_, err = f.svc.UpdateSkill(ctx, "nope", map[string]any{"level": 50})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.svc.PendingWrites(ctx))
}

func TestUpdate_FoldsIntoQueuedInsert(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.SetFailure(errOffline)
	added := f.svc.AddSkill(ctx, models.Skill{Name: "Go", Category: "Backend", Level: 70})

	f.gw.SetFailure(nil)
	res, err := f.svc.UpdateSkill(ctx, added.Value.ID, map[string]any{"level": 95})
	require.NoError(t, err)
	assert.True(t, res.Pending())
	assert.Equal(t, 95, res.Value.Level)
	assert.Empty(t, f.gw.Rows("skills"), "a record the remote never saw is not updated remotely")

	queue := f.svc.PendingWrites(ctx)
	require.Len(t, queue, 1)
	assert.Equal(t, models.OpInsert, queue[0].Op)
	assert.EqualValues(t, 95, queue[0].Payload["level"])
}

func TestDelete_QueuedInsertIsDroppedLocally(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.SetFailure(errOffline)
	added := f.svc.AddSkill(ctx, models.Skill{Name: "Rust"})

	res, err := f.svc.DeleteSkill(ctx, added.Value.ID)
	require.NoError(t, err)
	assert.Equal(t, Synced, res.State)
	assert.Empty(t, f.svc.PendingWrites(ctx))
	for _, s := range f.svc.GetSkills(ctx) {
		assert.NotEqual(t, "Rust", s.Name)
	}
}

func TestDelete_SyncedAndOffline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.Seed("projects",
		remote.Row{"id": "p1", "name": "One"},
		remote.Row{"id": "p2", "name": "Two"},
	)
	f.svc.FetchProjects(ctx)

	res, err := f.svc.DeleteProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, Synced, res.State)
	assert.Len(t, f.gw.Rows("projects"), 1)
	assert.Equal(t, "Deleted project: One", f.svc.GetActivities(ctx)[0].Message)

	f.gw.SetFailure(errOffline)
	res, err = f.svc.DeleteProject(ctx, "p2")
	require.NoError(t, err)
	assert.True(t, res.Pending())
	assert.Empty(t, f.svc.GetProjects(ctx))
	queue := f.svc.PendingWrites(ctx)
	require.Len(t, queue, 1)
	assert.Equal(t, models.OpDelete, queue[0].Op)

	_, err = f.svc.DeleteProject(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMutation_BroadcastsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	events, stop := f.storageEvents()
	defer stop()

	f.svc.AddProject(ctx, models.Project{Name: "Synced"})
	require.Len(t, *events, 1)
	assert.ElementsMatch(t, []string{"projects", "activities"}, (*events)[0].Keys)

	f.gw.SetFailure(errOffline)
	f.svc.AddProject(ctx, models.Project{Name: "Pending"})
	require.Len(t, *events, 2)
	assert.ElementsMatch(t, []string{"projects", "sync_queue"}, (*events)[1].Keys)
}

func TestKeyTopic_FiresOnlyForThatCollection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var hits int
	cancel := f.bus.Subscribe(func(broadcast.Event) { hits++ }, broadcast.KeyTopic("skills"))
	defer cancel()

	f.svc.AddProject(ctx, models.Project{Name: "A"})
	assert.Equal(t, 0, hits)
	f.svc.AddSkill(ctx, models.Skill{Name: "B"})
	assert.Equal(t, 1, hits)
}

func TestActivities_CappedNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(o *Options) { o.ActivityLimit = 3 })

	for i := 1; i <= 5; i++ {
		f.svc.AddSkill(ctx, models.Skill{Name: "S" + strconv.Itoa(i)})
	}
	acts := f.svc.GetActivities(ctx)
	require.Len(t, acts, 3)
	assert.Equal(t, "Added skill: S5", acts[0].Message)
	assert.Equal(t, "Added skill: S3", acts[2].Message)
}

func TestActivities_NotLoggedWhenActivityWriteFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.SetTableFailure("activities", errOffline)

	res := f.svc.AddSkill(ctx, models.Skill{Name: "Vue"})
	assert.Equal(t, Synced, res.State)
	assert.Empty(t, f.svc.GetActivities(ctx))
	assert.Empty(t, f.svc.PendingWrites(ctx))
}

func TestResetToDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.AddProject(ctx, models.Project{Name: "Extra"})
	f.svc.UpdateSettings(ctx, map[string]any{"siteName": "Changed"})

	require.NoError(t, f.svc.ResetToDefaults(ctx))
	assert.Len(t, f.svc.GetProjects(ctx), 2)
	assert.Equal(t, "Portfolio", f.svc.GetSettings(ctx).SiteName)
}
