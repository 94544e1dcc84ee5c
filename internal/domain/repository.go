package domain

import "context"

// PackageRepo is the storage surface for the name index, the metadata cache
// and the per-shard bootstrap state.
type PackageRepo interface {
	// MatchNames runs a ranked full-text phrase match over the name index.
	// It returns at most limit names, best match first.
	MatchNames(ctx context.Context, query string, limit, offset int) ([]string, error)

	// GetMetadata bulk-loads cached metadata. Names without a cached row are
	// absent from the returned map.
	GetMetadata(ctx context.Context, names []string) (map[string]PackageMetadata, error)

	// UpsertMetadata stores a batch of freshly fetched records. A batch
	// conflict falls back to per-record handling: insert, then update of the
	// volatile fields (version, stars, updated) keyed by name.
	UpsertMetadata(ctx context.Context, records []PackageMetadata) error

	// ContainsName reports whether a name is already present in the index.
	ContainsName(ctx context.Context, name string) (bool, error)

	// CommitShard durably applies one shard's bootstrap pass: the new names
	// are indexed and the shard's hash is written, in a single transaction.
	CommitShard(ctx context.Context, letter, hash string, names []string) error

	// GetShardState returns the stored state for a letter, or nil if the
	// shard has never been processed.
	GetShardState(ctx context.Context, letter string) (*ShardState, error)

	// ShardStates returns all shard states ordered by letter.
	ShardStates(ctx context.Context) ([]ShardState, error)
}

// NameLister enumerates the remote registry's full package namespace.
type NameLister interface {
	ListNames(ctx context.Context) ([]string, error)
}

// MetadataFetcher retrieves fresh metadata for a set of package names.
// Implementations are best-effort per name: an unreachable or unknown name
// contributes nothing to the result rather than failing the batch.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, names []string) ([]PackageMetadata, error)
}

// StarGazer extracts a popularity count for a package given the raw registry
// metadata body. It never fails: any miss, malformed page or network error
// yields 0.
type StarGazer interface {
	Stars(ctx context.Context, metadata []byte) int
}
