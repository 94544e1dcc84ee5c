package database

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/pkgdex/pkgdex/internal/domain"
)

// PackageRepo implements domain.PackageRepo on top of the embedded store.
type PackageRepo struct {
	log zerolog.Logger
	db  *DB
}

// NewPackageRepo creates a new package repository.
func NewPackageRepo(log zerolog.Logger, db *DB) domain.PackageRepo {
	return &PackageRepo{
		log: log.With().Str("repo", "package").Logger(),
		db:  db,
	}
}

// phrase turns a raw query into an fts5 phrase literal so the match is an
// exact quoted phrase, not a token disjunction. Embedded quotes are doubled
// per fts5 string syntax.
func phrase(query string) string {
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
}

// MatchNames returns names matching the query as a phrase, best rank first.
func (r *PackageRepo) MatchNames(ctx context.Context, query string, limit, offset int) ([]string, error) {
	queryBuilder := r.db.squirrel.
		Select("name").
		From("names").
		Where(sq.Expr("name MATCH ?", phrase(query))).
		OrderBy("rank").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	q, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", q).Interface("args", args).Msg("MatchNames")

	rows, err := r.db.handler.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return names, nil
}

// GetMetadata bulk-loads cached metadata for the given names. Names without a
// row are absent from the result.
func (r *PackageRepo) GetMetadata(ctx context.Context, names []string) (map[string]domain.PackageMetadata, error) {
	if len(names) == 0 {
		return map[string]domain.PackageMetadata{}, nil
	}

	queryBuilder := r.db.squirrel.
		Select("name", "description", "home_page", "package_url", "stars", "version", "updated").
		From("packages").
		Where(sq.Eq{"name": names})

	q, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", q).Interface("args", args).Msg("GetMetadata")

	rows, err := r.db.handler.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	result := make(map[string]domain.PackageMetadata)
	for rows.Next() {
		var m domain.PackageMetadata
		if err := rows.Scan(&m.Name, &m.Description, &m.HomePage, &m.PackageURL, &m.Stars, &m.Version, &m.Updated); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		result[m.Name] = m
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return result, nil
}

// UpsertMetadata stores a batch of fetched records. It first attempts one
// bulk insert; on conflict it falls back to per-record inserts, and for rows
// that already exist it refreshes only version, stars and updated. The insert
// path sets every field, the fallback update deliberately leaves description,
// home_page and package_url untouched.
func (r *PackageRepo) UpsertMetadata(ctx context.Context, records []domain.PackageMetadata) error {
	if len(records) == 0 {
		return nil
	}

	queryBuilder := r.db.squirrel.
		Insert("packages").
		Columns("name", "description", "home_page", "package_url", "version", "stars", "updated")

	for _, m := range records {
		queryBuilder = queryBuilder.Values(m.Name, m.Description, m.HomePage, m.PackageURL, m.Version, m.Stars, m.Updated)
	}

	q, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", q).Msg("UpsertMetadata batch")

	_, execErr := r.db.handler.ExecContext(ctx, q, args...)
	if execErr == nil {
		return nil
	}
	r.log.Debug().Err(execErr).Msg("metadata batch insert failed, falling back to per-record upsert")

	for _, m := range records {
		if err := r.insertOne(ctx, m); err == nil {
			continue
		}

		updateBuilder := r.db.squirrel.
			Update("packages").
			Set("version", m.Version).
			Set("stars", m.Stars).
			Set("updated", m.Updated).
			Where(sq.Eq{"name": m.Name})

		q, args, err := updateBuilder.ToSql()
		if err != nil {
			return errors.Wrap(err, "error building query")
		}

		if _, err := r.db.handler.ExecContext(ctx, q, args...); err != nil {
			return errors.Wrapf(err, "error updating metadata for %s", m.Name)
		}
	}

	return nil
}

func (r *PackageRepo) insertOne(ctx context.Context, m domain.PackageMetadata) error {
	queryBuilder := r.db.squirrel.
		Insert("packages").
		Columns("name", "description", "home_page", "package_url", "version", "stars", "updated").
		Values(m.Name, m.Description, m.HomePage, m.PackageURL, m.Version, m.Stars, m.Updated)

	q, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	_, err = r.db.handler.ExecContext(ctx, q, args...)
	return err
}

// ContainsName reports whether a name is already present in the full-text
// index.
func (r *PackageRepo) ContainsName(ctx context.Context, name string) (bool, error) {
	queryBuilder := r.db.squirrel.
		Select("count(*)").
		From("names").
		Where(sq.Eq{"name": name})

	q, args, err := queryBuilder.ToSql()
	if err != nil {
		return false, errors.Wrap(err, "error building query")
	}

	var count int
	if err := r.db.handler.QueryRowContext(ctx, q, args...).Scan(&count); err != nil {
		return false, errors.Wrap(err, "error executing query")
	}

	return count > 0, nil
}

// shardInsertBatch caps how many names one insert statement binds. SQLite
// allows at most 32766 host parameters per statement, and a first-ever pass
// over a populous shard carries far more names than that.
const shardInsertBatch = 500

// CommitShard applies one shard's bootstrap pass in a single transaction:
// name inserts first, then the hash write, so a crash can never record a hash
// without its names.
func (r *PackageRepo) CommitShard(ctx context.Context, letter, hash string, names []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for start := 0; start < len(names); start += shardInsertBatch {
		end := start + shardInsertBatch
		if end > len(names) {
			end = len(names)
		}

		queryBuilder := r.db.squirrel.Insert("names").Columns("name")
		for _, name := range names[start:end] {
			queryBuilder = queryBuilder.Values(name)
		}

		q, args, err := queryBuilder.ToSql()
		if err != nil {
			return errors.Wrap(err, "error building query")
		}

		r.log.Trace().Str("query", q).Int("names", end-start).Msg("CommitShard insert")

		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return errors.Wrapf(err, "error inserting names for shard %s", letter)
		}
	}

	updateBuilder := r.db.squirrel.
		Update("state").
		Set("hash", hash).
		Where(sq.Eq{"letter": letter})

	q, args, err := updateBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrapf(err, "error updating state for shard %s", letter)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "error reading affected rows")
	}

	if affected == 0 {
		insertBuilder := r.db.squirrel.
			Insert("state").
			Columns("letter", "hash").
			Values(letter, hash)

		q, args, err := insertBuilder.ToSql()
		if err != nil {
			return errors.Wrap(err, "error building query")
		}

		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return errors.Wrapf(err, "error inserting state for shard %s", letter)
		}
	}

	return tx.Commit()
}

// GetShardState returns the stored state for a letter, nil when the shard was
// never processed.
func (r *PackageRepo) GetShardState(ctx context.Context, letter string) (*domain.ShardState, error) {
	queryBuilder := r.db.squirrel.
		Select("letter", "hash").
		From("state").
		Where(sq.Eq{"letter": letter}).
		Limit(1)

	q, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", q).Interface("args", args).Msg("GetShardState")

	st := &domain.ShardState{}
	err = r.db.handler.QueryRowContext(ctx, q, args...).Scan(&st.Letter, &st.Hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "error executing query")
	}

	return st, nil
}

// ShardStates returns all shard states ordered by letter.
func (r *PackageRepo) ShardStates(ctx context.Context) ([]domain.ShardState, error) {
	queryBuilder := r.db.squirrel.
		Select("letter", "hash").
		From("state").
		OrderBy("letter")

	q, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	rows, err := r.db.handler.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	var states []domain.ShardState
	for rows.Next() {
		var st domain.ShardState
		if err := rows.Scan(&st.Letter, &st.Hash); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		states = append(states, st)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return states, nil
}
