package search

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/pkgdex/pkgdex/internal/domain"
)

const (
	// PageSize is the fixed number of candidates per result page.
	PageSize = 5

	// StaleWindow is the age in seconds after which cached metadata is
	// treated as a miss (about one month).
	StaleWindow = 2629743
)

// Service answers ranked, paginated name queries backed by the metadata
// cache, refreshing missing or stale entries from the registry on the way.
type Service interface {
	// Search returns one page of results, or (nil, nil) when the query
	// matches no candidates at all. Only a failure on the name-match or
	// cache-read path is returned as an error; enrichment failures degrade
	// to cache-backed results.
	Search(ctx context.Context, query string, page int) (*domain.SearchResult, error)
}

type service struct {
	log     zerolog.Logger
	repo    domain.PackageRepo
	fetcher domain.MetadataFetcher
}

func NewService(log zerolog.Logger, repo domain.PackageRepo, fetcher domain.MetadataFetcher) Service {
	return &service{
		log:     log.With().Str("module", "search").Logger(),
		repo:    repo,
		fetcher: fetcher,
	}
}

func (s *service) Search(ctx context.Context, query string, page int) (*domain.SearchResult, error) {
	if page < 0 {
		page = -page
	}

	candidates, err := s.repo.MatchNames(ctx, query, PageSize, page*PageSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to match names")
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	cached, err := s.repo.GetMetadata(ctx, candidates)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load cached metadata")
	}

	now := time.Now().Unix()

	results := make([]domain.PackageMetadata, 0, len(candidates))
	var refresh []string

	// Fresh cached entries pass through. A missing entry joins the refresh
	// set. The first stale entry stops the scan: it and every candidate not
	// yet classified are refreshed together.
	for i, name := range candidates {
		meta, ok := cached[name]
		if !ok {
			refresh = append(refresh, name)
			continue
		}
		if now-meta.Updated > StaleWindow {
			refresh = append(refresh, candidates[i:]...)
			break
		}
		results = append(results, meta)
	}

	if len(refresh) > 0 {
		fetched, err := s.fetcher.FetchMetadata(ctx, refresh)
		if err != nil {
			s.log.Error().Err(err).Strs("packages", refresh).Msg("Error fetching metadata from registry")
		} else {
			if err := s.repo.UpsertMetadata(ctx, fetched); err != nil {
				s.log.Error().Err(err).Msg("Error persisting fetched metadata")
			}
			results = append(results, fetched...)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Stars > results[j].Stars
	})

	return &domain.SearchResult{
		CurrentPage: page,
		HasMore:     len(candidates) == PageSize,
		Packages:    results,
	}, nil
}
