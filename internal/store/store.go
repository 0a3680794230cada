package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations upgrade a database from user_version i to i+1. The schema in
// schema.sql is always applied first, so a migration only adds what a
// fresh schema would not need.
var migrations = []func(*sql.DB) error{
	// 1: latest-run lookups
	execMigration(`CREATE INDEX IF NOT EXISTS idx_runs_seq ON runs(seq)`),
	// 2: per-representation cache reads and forgets
	execMigration(`CREATE INDEX IF NOT EXISTS idx_compiled_content_rep ON compiled_content(rep)`),
}

var currentSchemaVersion = len(migrations)

// Store is the SQLite database holding what one compilation run leaves for
// the next.
type Store struct {
	db *sql.DB
}

// Open creates or opens the cache database at path and brings its schema
// up to date. The connection pool holds one connection: a run is the only
// writer, and WAL lets a concurrent "quire check" read meanwhile.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, setup := range []func(*sql.DB) error{pingDB, applyPragmas, applySchema} {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
	}
	return &Store{db: db}, nil
}

func pingDB(db *sql.DB) error {
	return db.Ping()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads the previous run's state into a session. Nothing read here
// changes until the session commits.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	checksums, err := s.loadChecksums(ctx)
	if err != nil {
		return nil, err
	}
	content, err := s.loadCompiledContent(ctx)
	if err != nil {
		return nil, err
	}
	plans, err := s.loadPlans(ctx)
	if err != nil {
		return nil, err
	}
	deps, err := s.loadDependencies(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{
		store:        s,
		Checksums:    &Checksums{old: checksums, next: make(map[string]string)},
		Content:      &ContentCache{old: content, next: make(map[string]Snapshots)},
		Plans:        &Plans{old: plans, next: make(map[string]storedPlan)},
		Dependencies: &Dependencies{old: deps},
	}, nil
}

// LatestRun returns the most recent successful run, if any.
func (s *Store) LatestRun(ctx context.Context) (Run, bool, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seq, engine_version, schema_version, compiled, cached
		FROM runs
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`).Scan(&r.ID, &r.Seq, &r.EngineVersion, &r.SchemaVersion, &r.Compiled, &r.Cached)
	if err == sql.ErrNoRows {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("query latest run: %w", err)
	}
	return r, true, nil
}

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	for v := version; v < currentSchemaVersion; v++ {
		if err := migrations[v](db); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func execMigration(stmt string) func(*sql.DB) error {
	return func(db *sql.DB) error {
		_, err := db.Exec(stmt)
		return err
	}
}

// verifyPragma checks a pragma value in tests.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
