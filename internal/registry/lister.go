package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/pkgdex/pkgdex/internal/domain"
)

// Lister enumerates the registry's full package namespace through the simple
// index API.
type Lister struct {
	log     zerolog.Logger
	baseURL string
	client  *http.Client
}

// NewLister creates a name-list client for the registry at baseURL.
func NewLister(log zerolog.Logger, baseURL string) *Lister {
	return &Lister{
		log:     log.With().Str("module", "registry").Logger(),
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type simpleIndex struct {
	Projects []struct {
		Name string `json:"name"`
	} `json:"projects"`
}

// ListNames fetches the complete remote name list, sorted. Any failure aborts
// the whole listing; nothing is partially returned.
func (l *Lister) ListNames(ctx context.Context) ([]string, error) {
	url := l.baseURL + "/simple/"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/vnd.pypi.simple.v1+json")

	l.log.Info().Str("url", url).Msg("Fetching full package name list..")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch package list")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	index := &simpleIndex{}
	if err := json.Unmarshal(body, index); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal package list")
	}

	names := make([]string, 0, len(index.Projects))
	for _, p := range index.Projects {
		names = append(names, p.Name)
	}
	sort.Strings(names)

	l.log.Info().Int("count", len(names)).Msg("Fetched package name list")

	return names, nil
}

var _ domain.NameLister = (*Lister)(nil)
