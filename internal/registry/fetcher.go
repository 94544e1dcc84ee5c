package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkgdex/pkgdex/internal/domain"
)

// fetchBudget bounds one whole refresh batch, not one request.
const fetchBudget = 60 * time.Second

// Fetcher retrieves per-package metadata from the registry's JSON API and
// enriches it with scraped popularity. One call shares a single session with
// an aggregate deadline; requests run sequentially, one package at a time.
type Fetcher struct {
	log     zerolog.Logger
	baseURL string
	gazer   domain.StarGazer
	client  *http.Client
}

// NewFetcher creates a metadata fetcher against the registry at baseURL.
func NewFetcher(log zerolog.Logger, baseURL string, gazer domain.StarGazer) *Fetcher {
	return &Fetcher{
		log:     log.With().Str("module", "registry").Logger(),
		baseURL: baseURL,
		gazer:   gazer,
		client:  &http.Client{},
	}
}

type apiResponse struct {
	Info apiInfo `json:"info"`
}

type apiInfo struct {
	Summary    string `json:"summary"`
	HomePage   string `json:"home_page"`
	PackageURL string `json:"package_url"`
	Version    string `json:"version"`
}

// FetchMetadata fetches fresh metadata for each name. A name the registry
// does not answer for is skipped, not errored. When the aggregate deadline
// expires mid-batch, the records collected so far are returned.
func (f *Fetcher) FetchMetadata(ctx context.Context, names []string) ([]domain.PackageMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchBudget)
	defer cancel()

	now := time.Now().Unix()
	metadata := make([]domain.PackageMetadata, 0, len(names))

	for _, name := range names {
		body, err := f.fetchOne(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				f.log.Warn().Err(ctx.Err()).Int("collected", len(metadata)).Msg("fetch budget exhausted, aborting remaining fetches")
				break
			}
			f.log.Debug().Err(err).Str("package", name).Msg("skipping package")
			continue
		}
		if body == nil {
			continue
		}

		resp := &apiResponse{}
		if err := json.Unmarshal(body, resp); err != nil {
			f.log.Debug().Err(err).Str("package", name).Msg("failed to unmarshal metadata, skipping package")
			continue
		}

		metadata = append(metadata, domain.PackageMetadata{
			Name:        name,
			Description: resp.Info.Summary,
			HomePage:    resp.Info.HomePage,
			PackageURL:  resp.Info.PackageURL,
			Version:     resp.Info.Version,
			Stars:       f.gazer.Stars(ctx, body),
			Updated:     now,
		})
	}

	return metadata, nil
}

// fetchOne returns (nil, nil) for a non-success response so the caller can
// skip the name without treating it as a failure.
func (f *Fetcher) fetchOne(ctx context.Context, name string) ([]byte, error) {
	url := fmt.Sprintf("%s/pypi/%s/json", f.baseURL, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode > 300 {
		f.log.Debug().Int("status", resp.StatusCode).Str("package", name).Msg("non-success response")
		return nil, nil
	}

	return io.ReadAll(resp.Body)
}

var _ domain.MetadataFetcher = (*Fetcher)(nil)
