package search

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/pkgdex/pkgdex/internal/domain"
	"github.com/pkgdex/pkgdex/internal/logger"
)

// stubRepo serves canned candidates and metadata and records upserts. The
// real store behavior is covered by the database package tests.
type stubRepo struct {
	candidates []string
	meta       map[string]domain.PackageMetadata
	upserted   []domain.PackageMetadata
}

func (r *stubRepo) MatchNames(_ context.Context, _ string, limit, _ int) ([]string, error) {
	if len(r.candidates) > limit {
		return r.candidates[:limit], nil
	}
	return r.candidates, nil
}

func (r *stubRepo) GetMetadata(_ context.Context, names []string) (map[string]domain.PackageMetadata, error) {
	result := make(map[string]domain.PackageMetadata)
	for _, name := range names {
		if m, ok := r.meta[name]; ok {
			result[name] = m
		}
	}
	return result, nil
}

func (r *stubRepo) UpsertMetadata(_ context.Context, records []domain.PackageMetadata) error {
	r.upserted = append(r.upserted, records...)
	return nil
}

func (r *stubRepo) ContainsName(_ context.Context, _ string) (bool, error) { return false, nil }
func (r *stubRepo) CommitShard(_ context.Context, _, _ string, _ []string) error {
	return nil
}
func (r *stubRepo) GetShardState(_ context.Context, _ string) (*domain.ShardState, error) {
	return nil, nil
}
func (r *stubRepo) ShardStates(_ context.Context) ([]domain.ShardState, error) { return nil, nil }

type fetcherFunc func(ctx context.Context, names []string) ([]domain.PackageMetadata, error)

func (f fetcherFunc) FetchMetadata(ctx context.Context, names []string) ([]domain.PackageMetadata, error) {
	return f(ctx, names)
}

func fresh(name string, stars int) domain.PackageMetadata {
	return domain.PackageMetadata{Name: name, Stars: stars, Updated: time.Now().Unix() - 1}
}

func stale(name string, stars int) domain.PackageMetadata {
	return domain.PackageMetadata{Name: name, Stars: stars, Updated: time.Now().Unix() - StaleWindow - 1}
}

func noFetch(t *testing.T) fetcherFunc {
	return func(_ context.Context, names []string) ([]domain.PackageMetadata, error) {
		t.Fatalf("unexpected fetch for %v", names)
		return nil, nil
	}
}

func TestSearchNoCandidates(t *testing.T) {
	repo := &stubRepo{}

	svc := NewService(logger.New(), repo, noFetch(t))

	result, err := svc.Search(context.Background(), "nothing", 0)
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestSearchAllFresh(t *testing.T) {
	repo := &stubRepo{
		candidates: []string{"requests", "requests-oauthlib", "requests-mock"},
		meta: map[string]domain.PackageMetadata{
			"requests":          fresh("requests", 48000),
			"requests-oauthlib": fresh("requests-oauthlib", 1600),
			"requests-mock":     fresh("requests-mock", 400),
		},
	}

	svc := NewService(logger.New(), repo, noFetch(t))

	result, err := svc.Search(context.Background(), "requests", 0)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.False(t, result.HasMore)
	require.Equal(t, 0, result.CurrentPage)
	require.Len(t, result.Packages, 3)
	require.Equal(t, "requests", result.Packages[0].Name)
	require.Equal(t, "requests-oauthlib", result.Packages[1].Name)
	require.Equal(t, "requests-mock", result.Packages[2].Name)
	require.Empty(t, repo.upserted)
}

func TestSearchHasMoreOnFullPage(t *testing.T) {
	repo := &stubRepo{
		candidates: []string{"p1", "p2", "p3", "p4", "p5"},
		meta: map[string]domain.PackageMetadata{
			"p1": fresh("p1", 5), "p2": fresh("p2", 4), "p3": fresh("p3", 3),
			"p4": fresh("p4", 2), "p5": fresh("p5", 1),
		},
	}

	svc := NewService(logger.New(), repo, noFetch(t))

	result, err := svc.Search(context.Background(), "p", 0)
	require.NoError(t, err)
	require.True(t, result.HasMore)
	require.Len(t, result.Packages, PageSize)
}

func TestSearchRefreshesMissing(t *testing.T) {
	var requested []string
	fetcher := fetcherFunc(func(_ context.Context, names []string) ([]domain.PackageMetadata, error) {
		requested = names
		return []domain.PackageMetadata{{Name: "flask", Stars: 64000, Updated: time.Now().Unix()}}, nil
	})

	repo := &stubRepo{
		candidates: []string{"flask", "flask-login"},
		meta: map[string]domain.PackageMetadata{
			"flask-login": fresh("flask-login", 3000),
		},
	}

	svc := NewService(logger.New(), repo, fetcher)

	result, err := svc.Search(context.Background(), "flask", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"flask"}, requested)
	require.Len(t, result.Packages, 2)
	require.Equal(t, "flask", result.Packages[0].Name)
	require.Len(t, repo.upserted, 1)
	require.Equal(t, "flask", repo.upserted[0].Name)
}

func TestSearchStopsAtFirstStale(t *testing.T) {
	var requested []string
	fetcher := fetcherFunc(func(_ context.Context, names []string) ([]domain.PackageMetadata, error) {
		requested = names
		refreshed := make([]domain.PackageMetadata, 0, len(names))
		for _, name := range names {
			refreshed = append(refreshed, domain.PackageMetadata{Name: name, Stars: 10, Updated: time.Now().Unix()})
		}
		return refreshed, nil
	})

	repo := &stubRepo{
		candidates: []string{"a", "b", "c", "d"},
		meta: map[string]domain.PackageMetadata{
			"a": fresh("a", 100),
			"b": stale("b", 50),
			"c": fresh("c", 25),
		},
	}

	svc := NewService(logger.New(), repo, fetcher)

	result, err := svc.Search(context.Background(), "x", 0)
	require.NoError(t, err)

	// "b" is the first stale hit; it and everything after it are refreshed
	// together, including the still-fresh "c".
	require.Equal(t, []string{"b", "c", "d"}, requested)
	require.Len(t, result.Packages, 4)
	require.Equal(t, "a", result.Packages[0].Name)
}

func TestSearchStaleBoundary(t *testing.T) {
	var requested []string
	fetcher := fetcherFunc(func(_ context.Context, names []string) ([]domain.PackageMetadata, error) {
		requested = names
		return nil, nil
	})

	repo := &stubRepo{
		candidates: []string{"old", "young"},
		meta: map[string]domain.PackageMetadata{
			"old":   stale("old", 1),
			"young": fresh("young", 2),
		},
	}

	svc := NewService(logger.New(), repo, fetcher)

	_, err := svc.Search(context.Background(), "x", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"old", "young"}, requested)
}

func TestSearchSurvivesFetchFailure(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, _ []string) ([]domain.PackageMetadata, error) {
		return nil, errors.New("registry unreachable")
	})

	repo := &stubRepo{
		candidates: []string{"cached", "missing"},
		meta: map[string]domain.PackageMetadata{
			"cached": fresh("cached", 7),
		},
	}

	svc := NewService(logger.New(), repo, fetcher)

	result, err := svc.Search(context.Background(), "x", 0)
	require.NoError(t, err)
	require.Len(t, result.Packages, 1)
	require.Equal(t, "cached", result.Packages[0].Name)
	require.Empty(t, repo.upserted)
}

func TestSearchNegativePage(t *testing.T) {
	repo := &stubRepo{
		candidates: []string{"p"},
		meta:       map[string]domain.PackageMetadata{"p": fresh("p", 1)},
	}

	svc := NewService(logger.New(), repo, noFetch(t))

	result, err := svc.Search(context.Background(), "p", -2)
	require.NoError(t, err)
	require.Equal(t, 2, result.CurrentPage)
}
