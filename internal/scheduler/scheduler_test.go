package scheduler

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"portfolio-hub/internal/broadcast"
	"portfolio-hub/internal/cache"
	"portfolio-hub/internal/models"
	"portfolio-hub/internal/remote/memory"
	"portfolio-hub/internal/services"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type countingJobs struct {
	reconciles atomic.Int32
	sweeps     atomic.Int32
	err        error
}

func (j *countingJobs) Reconcile(context.Context) (services.ReplayReport, error) {
	j.reconciles.Add(1)
	return services.ReplayReport{Replayed: 1}, j.err
}

func (j *countingJobs) CheckDomainExpiry(context.Context) services.SweepReport {
	j.sweeps.Add(1)
	return services.SweepReport{Checked: 2}
}

func TestStart_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(&countingJobs{}, quietLogger())
	assert.Error(t, s.Start("not a cron spec", "0 3 * * *"))
	assert.Error(t, s.Start("*/1 * * * *", "61 * * * *"))
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(&countingJobs{}, quietLogger())
	require.NoError(t, s.Start("*/1 * * * *", "0 3 * * *"))
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()
}

func TestRunJobs(t *testing.T) {
	jobs := &countingJobs{}
	s := NewScheduler(jobs, quietLogger())

	assert.Equal(t, 1, s.RunReconcile(context.Background()).Replayed)
	assert.Equal(t, 2, s.RunDomainCheck(context.Background()).Checked)
	assert.EqualValues(t, 1, jobs.reconciles.Load())
	assert.EqualValues(t, 1, jobs.sweeps.Load())

	jobs.err = errors.New("cache closed")
	s.RunReconcile(context.Background())
	assert.EqualValues(t, 2, jobs.reconciles.Load())
}

func TestRunReconcile_DrainsDataServiceQueue(t *testing.T) {
	ctx := context.Background()
	gw := memory.New()
	svc := services.NewDataService(services.Options{
		Gateway: gw,
		Cache:   cache.New(cache.NewMemoryBackend(), broadcast.NewBus(), quietLogger()),
		Logger:  quietLogger(),
		Now:     func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	})

	gw.SetFailure(errors.New("offline"))
	svc.AddSkill(ctx, models.Skill{Name: "Go"})
	require.Len(t, svc.PendingWrites(ctx), 1)
	gw.SetFailure(nil)

	report := NewScheduler(svc, quietLogger()).RunReconcile(ctx)
	assert.Equal(t, 1, report.Replayed)
	assert.Empty(t, svc.PendingWrites(ctx))
	assert.Len(t, gw.Rows("skills"), 1)
}
