package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/timmy/dropcart/internal/config"
	"github.com/timmy/dropcart/internal/domain"
	"github.com/timmy/dropcart/internal/pricing"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newFinderJob() *domain.Job {
	return &domain.Job{
		ID:     uuid.NewString(),
		Kind:   domain.JobKindFinder,
		Status: domain.JobStatusPending,
		Params: domain.JobParams{
			Keywords:        []string{"hoodie", "cap"},
			PageSize:        20,
			MaxPagesPerUnit: 1,
			Cursor:          domain.NewCursor(domain.JobKindFinder),
		},
	}
}

func items(ids ...string) []domain.JobItem {
	out := make([]domain.JobItem, len(ids))
	for i, id := range ids {
		out[i] = domain.JobItem{
			SupplierID: id,
			Title:      "item " + id,
			Variants:   domain.VariantCandidates{{VariantID: id + "-v1", RetailLocal: 149}},
		}
	}
	return out
}

func TestJobRepository_CreateGet(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	job := newFinderJob()
	require.NoError(t, repo.Create(ctx, job))

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, got.Status)
	assert.Equal(t, []string{"hoodie", "cap"}, got.Params.Keywords)
	require.NotNil(t, got.Params.Cursor.Finder)
	assert.Equal(t, 1, got.Params.Cursor.Finder.PageNumber)

	_, err = repo.Get(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrJobNotFound))
}

func TestJobRepository_GetRejectsMismatchedCursor(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	job := newFinderJob()
	job.Params.Cursor = domain.NewCursor(domain.JobKindScanner)
	require.NoError(t, repo.Create(ctx, job))

	_, err := repo.Get(ctx, job.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidCursor))
}

func TestJobRepository_SaveStep(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	job := newFinderJob()
	require.NoError(t, repo.Create(ctx, job))
	ok, err := repo.MarkRunning(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, ok)

	params := job.Params
	params.Cursor = params.Cursor.NextUnit()
	saved, err := repo.SaveStep(ctx, StepWrite{
		JobID:           job.ID,
		ExpectedVersion: 0,
		Params:          params,
		Totals:          domain.JobTotals{Steps: 1},
		Items:           items("a", "b"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Inserted)
	assert.Equal(t, int64(1), saved.Version)
	assert.False(t, saved.Finished)
	assert.Equal(t, 2, saved.Totals.ItemsAdded)
	assert.Equal(t, 2, saved.Params.Cursor.Collected())

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, 1, got.Params.Cursor.Finder.KeywordIndex)
	assert.Equal(t, 2, got.Params.Cursor.Collected())
	assert.Equal(t, 2, got.Totals.ItemsAdded)
	assert.NotNil(t, got.StartedAt)

	// a stale version loses the whole step
	_, err = repo.SaveStep(ctx, StepWrite{JobID: job.ID, ExpectedVersion: 0, Params: params, Items: items("c")})
	assert.True(t, errors.Is(err, ErrVersionConflict))
	n, err := repo.CountItems(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// duplicates are skipped, only inserted items are counted, and the job finishes
	saved, err = repo.SaveStep(ctx, StepWrite{
		JobID:           job.ID,
		ExpectedVersion: 1,
		Params:          got.Params,
		Totals:          got.Totals,
		Items:           items("b", "c"),
		Finish:          true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Inserted)
	assert.True(t, saved.Finished)

	got, err = repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSuccess, got.Status)
	assert.NotNil(t, got.FinishedAt)
	assert.Equal(t, 3, got.Totals.ItemsAdded)
	assert.Equal(t, 3, got.Params.Cursor.Collected())

	stored, err := repo.ListItems(ctx, job.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "a", stored[0].SupplierID)
	assert.Equal(t, "c-v1", stored[2].Variants[0].VariantID)

	existing, err := repo.ExistingSupplierIDs(ctx, job.ID, []string{"a", "z", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true, "c": true}, existing)
}

func TestJobRepository_Transitions(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	job := newFinderJob()
	require.NoError(t, repo.Create(ctx, job))

	saved, err := repo.SaveStep(ctx, StepWrite{JobID: job.ID, ExpectedVersion: 0, Params: job.Params, Finish: true})
	require.NoError(t, err)
	assert.False(t, saved.Finished, "pending job cannot succeed without running")

	ok, err := repo.Cancel(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, fn := range []func(context.Context, string) (bool, error){repo.MarkRunning, repo.Cancel} {
		ok, err = fn(ctx, job.ID)
		require.NoError(t, err)
		assert.False(t, ok, "terminal job must not change")
	}
	ok, err = repo.MarkFailed(ctx, job.ID, "boom")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCanceled, got.Status)
	assert.Empty(t, got.Error)

	// a step in flight when the job was canceled still saves its work
	saved, err = repo.SaveStep(ctx, StepWrite{JobID: job.ID, ExpectedVersion: 1, Params: got.Params, Items: items("x"), Finish: true})
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Inserted)
	assert.False(t, saved.Finished)

	failing := newFinderJob()
	require.NoError(t, repo.Create(ctx, failing))
	ok, err = repo.MarkFailed(ctx, failing.ID, "storage down")
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = repo.Get(ctx, failing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusError, got.Status)
	assert.Equal(t, "storage down", got.Error)
}

func TestJobRepository_List(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		job := newFinderJob()
		if i == 2 {
			job.Kind = domain.JobKindScanner
			job.Params.Categories = []string{fmt.Sprintf("c%d", i)}
			job.Params.Cursor = domain.NewCursor(domain.JobKindScanner)
		}
		require.NoError(t, repo.Create(ctx, job))
	}

	jobs, total, err := repo.List(ctx, JobFilter{Kind: domain.JobKindFinder})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, jobs, 2)

	jobs, total, err = repo.List(ctx, JobFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, jobs, 1)
}

func TestPricingRuleRepository(t *testing.T) {
	repo := NewPricingRuleRepository(newTestDB(t))
	ctx := context.Background()

	rule, err := repo.GetDefaultRule(ctx)
	require.NoError(t, err)
	assert.Nil(t, rule)

	rs, err := repo.RuleSet(ctx)
	require.NoError(t, err)
	_, src := rs.Resolve("shoes")
	assert.Equal(t, pricing.SourceBuiltin, src)

	require.NoError(t, repo.Upsert(ctx, &domain.PricingRule{
		Scope: domain.RuleScopeDefault, MarginPercent: 30, MinProfit: 20,
		SmartRounding: true, RoundingTargets: domain.PriceLadder{49, 99},
	}))
	require.NoError(t, repo.Upsert(ctx, &domain.PricingRule{
		Scope: domain.RuleScopeCategory, Category: "shoes", MarginPercent: 60, MinProfit: 50,
	}))
	// second upsert replaces the first
	require.NoError(t, repo.Upsert(ctx, &domain.PricingRule{
		Scope: domain.RuleScopeCategory, Category: "shoes", MarginPercent: 55, MinProfit: 50,
	}))
	assert.Error(t, repo.Upsert(ctx, &domain.PricingRule{Scope: domain.RuleScopeCategory}))

	shoes, err := repo.GetRule(ctx, "shoes")
	require.NoError(t, err)
	require.NotNil(t, shoes)
	assert.Equal(t, 55.0, shoes.MarginPercent)

	rules, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, domain.RuleScopeDefault, rules[0].Scope)

	rs, err = repo.RuleSet(ctx)
	require.NoError(t, err)
	r, src := rs.Resolve("shoes")
	assert.Equal(t, pricing.SourceCategory, src)
	assert.Equal(t, 55.0, r.MarginPercent)
	r, src = rs.Resolve("bags")
	assert.Equal(t, pricing.SourceDefault, src)
	assert.Equal(t, []float64{49, 99}, r.RoundingTargets)
}
