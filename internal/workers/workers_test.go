package workers

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusnotes/notes-admin/internal/database"
	"github.com/campusnotes/notes-admin/internal/models"
	"github.com/campusnotes/notes-admin/internal/tasks"
)

func TestHandleAuditRecord(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenMemory(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)
	defer database.Close(db)

	task, err := tasks.NewAuditTask(tasks.AuditPayload{
		Actor: "admin@uni.edu", Action: tasks.ActionCreate, Entity: "subject", EntityID: "s1",
	})
	require.NoError(t, err)
	require.NoError(t, HandleAuditRecord(ctx, task, db, zerolog.Nop()))

	var entries []models.AuditEntry
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, "admin@uni.edu", entries[0].Actor)
	assert.Equal(t, "subject", entries[0].Entity)
	assert.Equal(t, "s1", entries[0].EntityID)

	err = HandleAuditRecord(ctx, asynq.NewTask(tasks.TypeAuditRecord, []byte("not json")), db, zerolog.Nop())
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeRefresher struct {
	n   int
	err error
}

func (f *fakeRefresher) RefreshExpiring(context.Context, time.Duration) (int, error) {
	return f.n, f.err
}

type fakeSweeper struct{ idle time.Duration }

func (f *fakeSweeper) Sweep(idle time.Duration) int {
	f.idle = idle
	return 2
}

func TestMaintenanceJobs(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, RefreshSessions(&fakeRefresher{n: 3}, time.Minute, zerolog.Nop())(ctx))
	assert.Error(t, RefreshSessions(&fakeRefresher{err: errors.New("db down")}, time.Minute, zerolog.Nop())(ctx))

	sweeper := &fakeSweeper{}
	require.NoError(t, SweepGates(sweeper, 30*time.Minute, zerolog.Nop())(ctx))
	assert.Equal(t, 30*time.Minute, sweeper.idle)
}

func TestScheduler(t *testing.T) {
	s := NewScheduler(zerolog.Nop())

	assert.Error(t, s.Add("bad", "not a schedule", time.Second, func(context.Context) error { return nil }))

	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", time.Second, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		runs.Add(1)
		return nil
	}))
	require.NoError(t, s.Add("five-field", "*/5 * * * *", time.Second, func(context.Context) error { return nil }))

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
