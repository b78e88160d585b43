// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/wikimedia/similarusers/internal/config"
	"github.com/wikimedia/similarusers/internal/logging"
)

// Store is the DuckDB-backed snapshot store: the durable home of the
// bulk-exported similarity datasets.
//
// Datasets are generations: every ingest writes rows under a fresh
// dataset_id and flips the active flag only once the generation is complete,
// so a crashed ingest never leaves a half-loaded generation active.
type Store struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// Open opens (or creates) the snapshot database and initializes the schema.
// An empty path opens an in-memory database.
func Open(cfg *config.DatabaseConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		path, threads, maxMemory)
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database: %w", err)
	}

	s := &Store{conn: conn, cfg: cfg}
	if err := s.initSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initializing snapshot schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE SEQUENCE IF NOT EXISTS dataset_id_seq START 1`,
		`CREATE TABLE IF NOT EXISTS datasets (
			dataset_id BIGINT PRIMARY KEY,
			cutoff_ts  TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			active     BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS user_metadata (
			dataset_id    BIGINT NOT NULL,
			user_text     VARCHAR NOT NULL,
			is_anon       BOOLEAN NOT NULL,
			num_edits     INTEGER NOT NULL,
			num_pages     INTEGER NOT NULL,
			earliest_edit TIMESTAMP,
			latest_edit   TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS coedit (
			dataset_id BIGINT NOT NULL,
			user_text  VARCHAR NOT NULL,
			neighbour  VARCHAR NOT NULL,
			overlap    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS temporal (
			dataset_id  BIGINT NOT NULL,
			user_text   VARCHAR NOT NULL,
			day_of_week INTEGER NOT NULL,
			hour_of_day INTEGER NOT NULL,
			num_edits   INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS page_editors (
			dataset_id BIGINT NOT NULL,
			page_id    BIGINT NOT NULL,
			user_text  VARCHAR NOT NULL,
			last_edit  TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metadata_user ON user_metadata (dataset_id, user_text)`,
		`CREATE INDEX IF NOT EXISTS idx_coedit_user ON coedit (dataset_id, user_text)`,
	}
	for _, stmt := range stmts {
		if _, err := s.conn.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// ActiveDataset returns the id and cutoff of the active generation.
// Returns (0, zero time, nil) when no generation has been activated yet.
func (s *Store) ActiveDataset(ctx context.Context) (int64, time.Time, error) {
	var id int64
	var cutoff time.Time
	err := s.conn.QueryRowContext(ctx,
		`SELECT dataset_id, cutoff_ts FROM datasets WHERE active ORDER BY dataset_id DESC LIMIT 1`,
	).Scan(&id, &cutoff)
	if err == sql.ErrNoRows {
		return 0, time.Time{}, nil
	}
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("querying active dataset: %w", err)
	}
	return id, cutoff.UTC(), nil
}

// activate flips the active flag to the given generation and drops the rows
// of every older generation.
func (s *Store) activate(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `UPDATE datasets SET active = FALSE WHERE active`); err != nil {
		return fmt.Errorf("deactivating previous dataset: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE datasets SET active = TRUE WHERE dataset_id = ?`, id); err != nil {
		return fmt.Errorf("activating dataset %d: %w", id, err)
	}
	for _, table := range []string{"user_metadata", "coedit", "temporal", "page_editors"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE dataset_id <> ?`, table), id); err != nil {
			return fmt.Errorf("pruning %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE dataset_id <> ? AND NOT active`, id); err != nil {
		return fmt.Errorf("pruning datasets: %w", err)
	}
	logging.Info().Int64("dataset_id", id).Msg("Activated snapshot generation")
	return nil
}
