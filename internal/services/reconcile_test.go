package services

import (
	"context"
	"testing"

	"portfolio-hub/internal/cache"
	"portfolio-hub/internal/models"
	"portfolio-hub/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplay_ReplacesTemporaryID(t *testing.T) {
	ctx := WithActor(context.Background(), "admin@example.com")
	f := newFixture(t)
	f.gw.SetFailure(errOffline)
	added := f.svc.AddSkill(ctx, models.Skill{Name: "Go", Category: "Backend", Level: 80})
	require.True(t, added.Pending())
	assert.Empty(t, f.svc.GetActivities(ctx))

	f.gw.SetFailure(nil)
	report, err := f.svc.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReplayReport{Replayed: 1}, report)

	rows := f.gw.Rows("skills")
	require.Len(t, rows, 1)
	serverID := remote.Text(rows[0]["id"])
	assert.NotEqual(t, added.Value.ID, serverID)

	var found bool
	for _, s := range f.svc.GetSkills(ctx) {
		assert.NotEqual(t, added.Value.ID, s.ID)
		if s.ID == serverID {
			found = true
			assert.Equal(t, "Go", s.Name)
		}
	}
	assert.True(t, found)
	assert.Empty(t, f.svc.PendingWrites(ctx))

	acts := f.svc.GetActivities(ctx)
	require.Len(t, acts, 1)
	assert.Equal(t, "Added skill: Go", acts[0].Message)
	assert.Equal(t, "admin@example.com", acts[0].ActorEmail)
}

func TestReplay_FailureKeepsEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.SetFailure(errOffline)
	f.svc.AddSkill(ctx, models.Skill{Name: "A"})
	f.svc.AddSkill(ctx, models.Skill{Name: "B"})

	report, err := f.svc.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed, "an unavailable store ends the drain")
	assert.Equal(t, 2, report.Remaining)

	queue := f.svc.PendingWrites(ctx)
	require.Len(t, queue, 2)
	assert.Equal(t, 1, queue[0].Attempts)
	assert.NotEmpty(t, queue[0].LastError)
	assert.Equal(t, 0, queue[1].Attempts)
}

func TestReplay_KeepsOrderPerRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.SetFailure(errOffline)
	added := f.svc.AddProject(ctx, models.Project{Name: "First"})
	_, err := f.svc.UpdateProject(ctx, added.Value.ID, map[string]any{"name": "Renamed"})
	require.NoError(t, err)

	f.gw.SetFailure(nil)
	report, err := f.svc.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Replayed)

	rows := f.gw.Rows("projects")
	require.Len(t, rows, 1)
	assert.Equal(t, "Renamed", rows[0]["name"])
}

func TestReplay_DropsUpdateForDeletedRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.Seed("skills", remote.Row{"id": "s1", "name": "PHP", "level": 40})
	f.svc.FetchSkills(ctx)

	f.gw.SetTableFailure("skills", errOffline)
	res, err := f.svc.UpdateSkill(ctx, "s1", map[string]any{"level": 60})
	require.NoError(t, err)
	require.True(t, res.Pending())

	f.gw.SetTableFailure("skills", nil)
	require.NoError(t, f.gw.Delete(ctx, "skills", remote.Eq("id", "s1")))

	report, err := f.svc.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Dropped)
	assert.Empty(t, f.svc.PendingWrites(ctx))
}

func TestReplay_SettingsUpsert(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.SetFailure(errOffline)

	res := f.svc.UpdateSettings(ctx, map[string]any{"siteName": "Studio"})
	assert.True(t, res.Pending())
	assert.Equal(t, "Studio", f.svc.GetSettings(ctx).SiteName)
	queue := f.svc.PendingWrites(ctx)
	require.Len(t, queue, 1)
	assert.Equal(t, models.OpUpsert, queue[0].Op)
	assert.Equal(t, "id", queue[0].ConflictKey)

	f.gw.SetFailure(nil)
	report, err := f.svc.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Replayed)

	rows := f.gw.Rows("settings")
	require.Len(t, rows, 1)
	assert.Equal(t, "Studio", rows[0]["site_name"])
	assert.Equal(t, models.SettingsID, rows[0]["id"])
}

func TestReplay_RemapsIntentSubject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.SetFailure(errOffline)
	added := f.svc.AddContract(ctx, models.Contract{Title: "Offline", UserEmail: "c@example.com"})

	in := f.svc.beginIntent(ctx, intentContractSign, added.Value.ID, stepSignContract)
	require.Equal(t, added.Value.ID, in.SubjectID)

	f.gw.SetFailure(nil)
	_, err := f.svc.Replay(ctx)
	require.NoError(t, err)

	rows := f.gw.Rows("contracts")
	require.Len(t, rows, 1)
	intents := f.svc.Intents(ctx)
	require.Len(t, intents, 1)
	assert.Equal(t, remote.Text(rows[0]["id"]), intents[0].SubjectID)
}

func TestReplay_OfflineDeleteSurvivesFetch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.Seed("projects",
		remote.Row{"id": "p1", "name": "One"},
		remote.Row{"id": "p2", "name": "Two"},
	)
	f.svc.FetchProjects(ctx)

	f.gw.SetFailure(errOffline)
	res, err := f.svc.DeleteProject(ctx, "p1")
	require.NoError(t, err)
	require.True(t, res.Pending())

	f.gw.SetFailure(nil)
	projects := f.svc.FetchProjects(ctx)
	require.Len(t, projects, 1)
	assert.Equal(t, "p2", projects[0].ID)
	require.Len(t, f.svc.GetProjects(ctx), 1)

	report, err := f.svc.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Replayed)
	assert.Len(t, f.gw.Rows("projects"), 1)

	cached := f.svc.GetProjects(ctx)
	require.Len(t, cached, 1)
	assert.Equal(t, "p2", cached[0].ID)
}

func TestReplay_DeleteRemovesRecordFromCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.Seed("projects", remote.Row{"id": "p1", "name": "One"}, remote.Row{"id": "p2", "name": "Two"})
	f.svc.FetchProjects(ctx)

	f.gw.SetFailure(errOffline)
	_, err := f.svc.DeleteProject(ctx, "p1")
	require.NoError(t, err)

	// the record reappears locally while its delete is still queued
	require.NoError(t, f.svc.cache.Update(ctx, func(tx *cache.Tx) error {
		return tx.Put(cache.KindKey(models.KindProjects), []models.Project{{ID: "p1", Name: "One"}, {ID: "p2", Name: "Two"}})
	}))

	f.gw.SetFailure(nil)
	_, err = f.svc.Replay(ctx)
	require.NoError(t, err)

	cached := f.svc.GetProjects(ctx)
	require.Len(t, cached, 1)
	assert.Equal(t, "p2", cached[0].ID)
}
