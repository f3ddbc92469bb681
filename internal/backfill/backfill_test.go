package backfill

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"inspectd/internal/domain"
	"inspectd/internal/store"
)

func openTestRepo(t *testing.T) store.Repository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, store.EnsureSchema(db))
	return store.NewSQLiteRepo(db)
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	require.NoError(t, err)
	return d
}

func seedDailyTask(t *testing.T, repo store.Repository) domain.Task {
	t.Helper()
	ctx := context.Background()
	id, err := repo.CreateTask(ctx, domain.Task{Name: "daily check", Cycle: "daily", Enabled: true})
	require.NoError(t, err)

	// records exist for the 2nd and the 4th only
	for _, d := range []string{"2024-01-02", "2024-01-04"} {
		_, err = repo.CreateRecord(ctx, domain.Record{
			TaskID:     id,
			Status:     domain.StatusCompleted,
			ExecutedAt: day(t, d).Add(9 * time.Hour),
		})
		require.NoError(t, err)
	}

	task, err := repo.GetTask(ctx, id)
	require.NoError(t, err)
	return task
}

func TestDryRunReportsGapsWithoutWriting(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	task := seedDailyTask(t, repo)
	ctx := context.Background()

	reports, err := NewFiller(repo).Run(ctx, Options{
		Start:  day(t, "2024-01-01"),
		End:    day(t, "2024-01-05"),
		DryRun: true,
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, []string{"2024-01-01", "2024-01-03", "2024-01-05"}, reports[0].Missing)
	assert.Equal(t, 0, reports[0].Inserted)

	recs, err := repo.ListRecordsByTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 2, "dry run must perform zero writes")
}

func TestFillInsertsSyntheticRecords(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	task := seedDailyTask(t, repo)
	ctx := context.Background()

	reports, err := NewFiller(repo).Run(ctx, Options{
		Start: day(t, "2024-01-01"),
		End:   day(t, "2024-01-05"),
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 3, reports[0].Inserted)

	recs, err := repo.ListRecordsByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, recs, 5)

	backfilled := 0
	for _, rec := range recs {
		if rec.Status == domain.StatusBackfilled {
			backfilled++
			assert.Equal(t, "generated by backfill", rec.Result)
		}
	}
	assert.Equal(t, 3, backfilled)

	// second run finds nothing left to fill
	reports, err = NewFiller(repo).Run(ctx, Options{
		Start: day(t, "2024-01-01"),
		End:   day(t, "2024-01-05"),
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Empty(t, reports[0].Missing)
}

func TestFillHonorsCustomStatus(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	task := seedDailyTask(t, repo)
	ctx := context.Background()

	_, err := NewFiller(repo).Run(ctx, Options{
		Start:  day(t, "2024-01-01"),
		End:    day(t, "2024-01-01"),
		Status: "manual",
		Result: "operator note",
	})
	require.NoError(t, err)

	recs, err := repo.ListRecordsByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	found := false
	for _, rec := range recs {
		if rec.Status == "manual" {
			found = true
			assert.Equal(t, "operator note", rec.Result)
		}
	}
	assert.True(t, found)
}

func TestFillFilters(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	ctx := context.Background()

	idA, err := repo.CreateTask(ctx, domain.Task{Name: "alpha", Cycle: "daily", Enabled: true})
	require.NoError(t, err)
	_, err = repo.CreateTask(ctx, domain.Task{Name: "beta", Cycle: "daily", Enabled: true})
	require.NoError(t, err)
	_, err = repo.CreateTask(ctx, domain.Task{Name: "gamma", Cycle: "daily", Enabled: false})
	require.NoError(t, err)

	reports, err := NewFiller(repo).Run(ctx, Options{
		Start:  day(t, "2024-01-01"),
		End:    day(t, "2024-01-02"),
		TaskID: idA,
		DryRun: true,
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, idA, reports[0].TaskID)

	reports, err = NewFiller(repo).Run(ctx, Options{
		Start:    day(t, "2024-01-01"),
		End:      day(t, "2024-01-02"),
		TaskName: "bet",
		DryRun:   true,
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "beta", reports[0].TaskName)

	// disabled tasks are never backfilled
	reports, err = NewFiller(repo).Run(ctx, Options{
		Start:    day(t, "2024-01-01"),
		End:      day(t, "2024-01-02"),
		TaskName: "gamma",
		DryRun:   true,
	})
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestFillWeeklyCycle(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	ctx := context.Background()

	id, err := repo.CreateTask(ctx, domain.Task{Name: "weekly check", Cycle: "weekly", Enabled: true})
	require.NoError(t, err)
	_, err = repo.CreateRecord(ctx, domain.Record{
		TaskID:     id,
		Status:     domain.StatusCompleted,
		ExecutedAt: day(t, "2024-01-07"),
	})
	require.NoError(t, err)

	reports, err := NewFiller(repo).Run(ctx, Options{
		Start:  day(t, "2024-01-01"),
		End:    day(t, "2024-01-21"),
		DryRun: true,
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, []string{"2024-01-14", "2024-01-21"}, reports[0].Missing)
}
