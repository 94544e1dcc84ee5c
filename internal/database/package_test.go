package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkgdex/pkgdex/internal/domain"
	"github.com/pkgdex/pkgdex/internal/logger"
)

func newTestRepo(t *testing.T) domain.PackageRepo {
	t.Helper()

	log := logger.New()
	db, err := NewDB(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPackageRepo(log, db)
}

func TestSchemaIsIdempotent(t *testing.T) {
	log := logger.New()
	dir := t.TempDir()

	db, err := NewDB(dir, log)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening must not attempt to recreate anything.
	db, err = NewDB(dir, log)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	require.NoError(t, db.Close())
}

func TestMatchNamesPhraseAndPagination(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	names := []string{"flask-admin", "flask-caching", "flask-cors", "flask-login", "flask-migrate", "flask-restful", "unrelated"}
	require.NoError(t, repo.CommitShard(ctx, "f", "h1", names))

	first, err := repo.MatchNames(ctx, "flask", 5, 0)
	require.NoError(t, err)
	require.Len(t, first, 5)

	second, err := repo.MatchNames(ctx, "flask", 5, 5)
	require.NoError(t, err)
	require.Len(t, second, 1)

	for _, name := range append(first, second...) {
		require.NotEqual(t, "unrelated", name)
	}

	none, err := repo.MatchNames(ctx, "django", 5, 0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestMatchNamesQuotedPhrase(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CommitShard(ctx, "f", "h1", []string{"flask-login"}))

	// A quote inside the query must not break out of the fts string
	// literal; the quote acts as a token separator and the query still
	// matches as the phrase "flask login".
	names, err := repo.MatchNames(ctx, `flask"login`, 5, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"flask-login"}, names)
}

func TestContainsName(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CommitShard(ctx, "r", "h1", []string{"requests"}))

	exists, err := repo.ContainsName(ctx, "requests")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.ContainsName(ctx, "flask")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestGetMetadataBulk(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	records := []domain.PackageMetadata{
		{Name: "requests", Description: "HTTP for Humans", Stars: 48000, Version: "2.28.1", Updated: 100},
		{Name: "flask", Description: "Micro framework", Stars: 64000, Version: "2.0.0", Updated: 200},
	}
	require.NoError(t, repo.UpsertMetadata(ctx, records))

	got, err := repo.GetMetadata(ctx, []string{"requests", "flask", "absent"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "HTTP for Humans", got["requests"].Description)
	require.Equal(t, int64(200), got["flask"].Updated)

	empty, err := repo.GetMetadata(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestUpsertMetadataFallbackOnlyTouchesVolatileFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	original := domain.PackageMetadata{
		Name:        "requests",
		Description: "HTTP for Humans",
		HomePage:    "https://requests.readthedocs.io",
		PackageURL:  "https://pypi.org/project/requests/",
		Stars:       48000,
		Version:     "2.28.1",
		Updated:     100,
	}
	require.NoError(t, repo.UpsertMetadata(ctx, []domain.PackageMetadata{original}))

	refreshed := domain.PackageMetadata{
		Name:        "requests",
		Description: "changed description",
		HomePage:    "https://changed.example",
		PackageURL:  "https://changed.example/pkg",
		Stars:       50000,
		Version:     "2.31.0",
		Updated:     200,
	}
	require.NoError(t, repo.UpsertMetadata(ctx, []domain.PackageMetadata{refreshed}))

	got, err := repo.GetMetadata(ctx, []string{"requests"})
	require.NoError(t, err)

	m := got["requests"]
	require.Equal(t, 50000, m.Stars)
	require.Equal(t, "2.31.0", m.Version)
	require.Equal(t, int64(200), m.Updated)

	// The conflict path leaves the descriptive fields as they were.
	require.Equal(t, "HTTP for Humans", m.Description)
	require.Equal(t, "https://requests.readthedocs.io", m.HomePage)
	require.Equal(t, "https://pypi.org/project/requests/", m.PackageURL)
}

func TestUpsertMetadataMixedBatch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertMetadata(ctx, []domain.PackageMetadata{
		{Name: "existing", Description: "original", Stars: 1, Version: "1.0", Updated: 100},
	}))

	// One conflicting and one new record: the batch insert fails, the
	// fallback must still land both.
	require.NoError(t, repo.UpsertMetadata(ctx, []domain.PackageMetadata{
		{Name: "existing", Description: "ignored", Stars: 2, Version: "1.1", Updated: 200},
		{Name: "fresh", Description: "brand new", Stars: 3, Version: "0.1", Updated: 200},
	}))

	got, err := repo.GetMetadata(ctx, []string{"existing", "fresh"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 2, got["existing"].Stars)
	require.Equal(t, "original", got["existing"].Description)
	require.Equal(t, "brand new", got["fresh"].Description)
}

func TestShardState(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	st, err := repo.GetShardState(ctx, "a")
	require.NoError(t, err)
	require.Nil(t, st)

	require.NoError(t, repo.CommitShard(ctx, "a", "hash-1", []string{"aiohttp"}))

	st, err = repo.GetShardState(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, st)
	require.Equal(t, "hash-1", st.Hash)

	// A later pass updates the existing row instead of adding a second one.
	require.NoError(t, repo.CommitShard(ctx, "a", "hash-2", nil))

	states, err := repo.ShardStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	require.Equal(t, "hash-2", states[0].Hash)
}

func TestCommitShardLargeShard(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Well past SQLite's 32766 host parameter ceiling, the size a populous
	// first-letter shard reaches on a first-ever pass.
	names := make([]string, 40000)
	for i := range names {
		names[i] = fmt.Sprintf("pkg-%05d", i)
	}

	require.NoError(t, repo.CommitShard(ctx, "p", "hash-large", names))

	st, err := repo.GetShardState(ctx, "p")
	require.NoError(t, err)
	require.NotNil(t, st)
	require.Equal(t, "hash-large", st.Hash)

	for _, name := range []string{names[0], names[len(names)/2], names[len(names)-1]} {
		exists, err := repo.ContainsName(ctx, name)
		require.NoError(t, err)
		require.True(t, exists)
	}
}

func TestShardStatesOrdered(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CommitShard(ctx, "z", "hz", nil))
	require.NoError(t, repo.CommitShard(ctx, "a", "ha", nil))
	require.NoError(t, repo.CommitShard(ctx, "m", "hm", nil))

	states, err := repo.ShardStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 3)
	require.Equal(t, "a", states[0].Letter)
	require.Equal(t, "m", states[1].Letter)
	require.Equal(t, "z", states[2].Letter)
}
