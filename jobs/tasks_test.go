package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeRecalculator struct {
	accountID int64
	from      time.Time
	calls     int
	err       error
}

func (f *fakeRecalculator) Recalculate(ctx context.Context, accountID int64, from time.Time) (int, error) {
	f.calls++
	f.accountID = accountID
	f.from = from
	return 4, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecalculateJobHandlesPayload(t *testing.T) {
	fake := &fakeRecalculator{}
	job := NewRecalculateJob(fake, testLogger(), nil)

	task, err := NewRecalculateTask(RecalculatePayload{AccountID: 7, From: "2025-03-10"})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, fake.calls)
	require.Equal(t, int64(7), fake.accountID)
	require.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), fake.from)
}

func TestRecalculateJobEmptyFromMeansFullHistory(t *testing.T) {
	fake := &fakeRecalculator{}
	job := NewRecalculateJob(fake, testLogger(), nil)

	task, err := NewRecalculateTask(RecalculatePayload{AccountID: 3})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.True(t, fake.from.IsZero())
}

func TestRecalculateJobDropsMalformedPayload(t *testing.T) {
	fake := &fakeRecalculator{}
	job := NewRecalculateJob(fake, testLogger(), nil)

	for _, payload := range [][]byte{
		[]byte(`not json`),
		[]byte(`{"account_id":0}`),
		[]byte(`{"account_id":7,"from":"10-03-2025"}`),
	} {
		err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerRecalculate, payload))
		require.ErrorIs(t, err, asynq.SkipRetry)
	}
	require.Equal(t, 0, fake.calls)
}

func TestRecalculateJobPropagatesFailure(t *testing.T) {
	boom := errors.New("pool exhausted")
	fake := &fakeRecalculator{err: boom}
	job := NewRecalculateJob(fake, testLogger(), nil)

	task, err := NewRecalculateTask(RecalculatePayload{AccountID: 7})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), boom)
}

type fakeWarmer struct {
	calls int
	err   error
}

func (f *fakeWarmer) Warmup(ctx context.Context) error {
	f.calls++
	return f.err
}

func TestWarmupJobRunsWarmer(t *testing.T) {
	fake := &fakeWarmer{}
	job := NewWarmupJob(fake, testLogger(), nil)

	require.NoError(t, job.Handle(context.Background(), NewReportsWarmupTask()))
	require.Equal(t, 1, fake.calls)

	fake.err = errors.New("redis down")
	require.Error(t, job.Handle(context.Background(), NewReportsWarmupTask()))
}
