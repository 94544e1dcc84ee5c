package domain

// PackageMetadata is one cached registry entry. All fields are overwritten on
// a full refresh; the conflict-fallback path only touches Version, Stars and
// Updated (see database.PackageRepo.UpsertMetadata).
type PackageMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	HomePage    string `json:"home_page"`
	PackageURL  string `json:"package_url"`
	Stars       int    `json:"stars"`
	Version     string `json:"version"`
	Updated     int64  `json:"updated"`
}

// ShardState records the content digest of one bootstrap shard, keyed by the
// first character of its member names. At most one row per letter.
type ShardState struct {
	Letter string `json:"letter" yaml:"letter"`
	Hash   string `json:"hash" yaml:"hash"`
}

// SearchResult is one page of ranked search results. Packages are sorted by
// stars descending. HasMore reflects the candidate page being full, not the
// final package count: enrichment failures can shrink Packages below the page
// size without clearing HasMore.
type SearchResult struct {
	CurrentPage int               `json:"current_page"`
	HasMore     bool              `json:"has_more"`
	Packages    []PackageMetadata `json:"packages"`
}
