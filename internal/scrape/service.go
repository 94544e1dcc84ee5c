package scrape

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly"
	"github.com/rs/zerolog"

	"github.com/pkgdex/pkgdex/internal/domain"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/95.0.4638.54 Safari/537.36"

// starsMarker anchors the popularity counter inside the repository page.
const starsMarker = "social-count"

var repoURL = regexp.MustCompile(`https?://github\.com/([A-Za-z0-9_.\-]+)/([A-Za-z0-9_.\-]+)`)

// Service scrapes a popularity count from a package's source-hosting page.
// It is strictly best effort: every failure mode yields 0, never an error, so
// a broken scrape can never fail a metadata fetch.
type Service struct {
	log     zerolog.Logger
	baseURL string
	timeout time.Duration
}

// NewService creates a star scraper. baseURL replaces the repository host and
// is meant for tests; pass "" for the real one.
func NewService(log zerolog.Logger, baseURL string) *Service {
	if baseURL == "" {
		baseURL = "https://github.com"
	}

	return &Service{
		log:     log.With().Str("module", "scrape").Logger(),
		baseURL: baseURL,
		timeout: 20 * time.Second,
	}
}

// Stars extracts a repository URL from the raw registry metadata and scrapes
// the star count from that repository's page. Returns 0 when no repository
// URL is present, the page is unreachable, or the counter cannot be found.
func (s *Service) Stars(ctx context.Context, metadata []byte) int {
	m := repoURL.FindSubmatch(metadata)
	if m == nil {
		return 0
	}

	owner, project := string(m[1]), string(m[2])
	project = strings.TrimSuffix(project, ".git")

	body, err := s.fetchPage(ctx, fmt.Sprintf("%s/%s/%s", s.baseURL, owner, project))
	if err != nil {
		s.log.Debug().Err(err).Str("owner", owner).Str("project", project).Msg("failed to fetch repository page")
		return 0
	}

	return parseCounter(string(body))
}

// fetchPage requests the repository page with a browser-like signature.
func (s *Service) fetchPage(ctx context.Context, url string) ([]byte, error) {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
	)

	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	c.SetRequestTimeout(timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
		s.log.Debug().Str("url", r.URL.String()).Msg("visiting")
	})

	var body []byte
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	if err := c.Visit(url); err != nil {
		return nil, err
	}

	return body, nil
}

// parseCounter locates the popularity marker and scans the tag text that
// follows it, keeping only digits and a trailing 'k'. Commas and whitespace
// are discarded; so is a decimal point, which makes "1.2k" parse as 12000.
func parseCounter(html string) int {
	idx := strings.Index(html, starsMarker)
	if idx < 0 {
		return 0
	}

	for idx < len(html) && html[idx] != '>' {
		idx++
	}

	var counter strings.Builder
	for idx < len(html) && html[idx] != '<' {
		if html[idx] >= '0' && html[idx] <= '9' || html[idx] == 'k' {
			counter.WriteByte(html[idx])
		}
		idx++
	}

	text := counter.String()
	if text == "" {
		return 0
	}

	multiplier := 1
	if strings.HasSuffix(text, "k") {
		multiplier = 1000
		text = strings.TrimSuffix(text, "k")
	}

	var stars int
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return 0
		}
		stars = stars*10 + int(text[i]-'0')
	}

	return stars * multiplier
}

var _ domain.StarGazer = (*Service)(nil)
