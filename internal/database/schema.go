package database

const schema = `
-- Metadata cache, one row per package name
CREATE TABLE packages (
	name TEXT,
	description TEXT,
	home_page TEXT,
	package_url TEXT,
	stars NUMBER,
	version TEXT,
	updated NUMBER
);

CREATE INDEX idx_stars ON packages(stars);
CREATE UNIQUE INDEX idx_package_name ON packages(name);

-- Ranked full-text index over package names
CREATE VIRTUAL TABLE names USING fts5(name);

-- Per-shard bootstrap state, at most one row per letter
CREATE TABLE state (
	letter TEXT,
	hash TEXT
);
`

// migrations contains incremental schema changes, applied in order based on
// the current user_version. migrations[0] is empty because version 0 uses the
// base schema.
var migrations = []string{
	"",
}
