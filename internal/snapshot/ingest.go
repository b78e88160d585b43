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
	"strings"
	"time"

	"github.com/wikimedia/similarusers/internal/logging"
)

// tsvTimestampFormat is the timestamp layout of the exported TSV files.
const tsvTimestampFormat = "%Y-%m-%dT%H:%M:%SZ"

// IngestTSV loads an exported dataset directory into a fresh generation and
// activates it. The directory must contain metadata.tsv, coedit_counts.tsv
// and temporal.tsv; page_editors.tsv is optional (older exports lack it).
//
// The whole ingest runs in one transaction: a failure leaves the previously
// active generation untouched.
func (s *Store) IngestTSV(ctx context.Context, dir string) (int64, error) {
	start := time.Now()
	for _, name := range []string{"metadata.tsv", "coedit_counts.tsv", "temporal.tsv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return 0, fmt.Errorf("dataset file %s: %w", name, err)
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning ingest transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT nextval('dataset_id_seq')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("allocating dataset id: %w", err)
	}

	// DuckDB's CSV reader does the heavy lifting; the TSVs go straight into
	// the tables without row-by-row driver round trips.
	metadataPath := tsvPath(dir, "metadata.tsv")
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO user_metadata
		 SELECT %d, user_text, is_anon, num_edits, num_pages, oldest_edit, most_recent_edit
		 FROM read_csv(%s, delim='\t', header=true, timestampformat='%s')`,
		id, metadataPath, tsvTimestampFormat)); err != nil {
		return 0, fmt.Errorf("ingesting metadata.tsv: %w", err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO coedit
		 SELECT %d, user_text, user_neighbor, num_pages_overlapped
		 FROM read_csv(%s, delim='\t', header=true)`,
		id, tsvPath(dir, "coedit_counts.tsv"))); err != nil {
		return 0, fmt.Errorf("ingesting coedit_counts.tsv: %w", err)
	}

	// The export numbers days 1-7 (Sunday first); in-memory buckets are 0-6.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO temporal
		 SELECT %d, user_text, day_of_week - 1, hour_of_day, num_edits
		 FROM read_csv(%s, delim='\t', header=true)`,
		id, tsvPath(dir, "temporal.tsv"))); err != nil {
		return 0, fmt.Errorf("ingesting temporal.tsv: %w", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "page_editors.tsv")); err == nil {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO page_editors
			 SELECT %d, page_id, user_text, last_edit
			 FROM read_csv(%s, delim='\t', header=true, timestampformat='%s')`,
			id, tsvPath(dir, "page_editors.tsv"), tsvTimestampFormat)); err != nil {
			return 0, fmt.Errorf("ingesting page_editors.tsv: %w", err)
		}
	}

	// The snapshot is complete up to its newest recorded edit.
	var cutoff sql.NullTime
	if err := tx.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT max(latest_edit) FROM user_metadata WHERE dataset_id = %d`, id)).Scan(&cutoff); err != nil {
		return 0, fmt.Errorf("computing cutoff: %w", err)
	}
	if !cutoff.Valid {
		return 0, fmt.Errorf("dataset %s has no edit timestamps", dir)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (dataset_id, cutoff_ts, created_at, active) VALUES (?, ?, ?, FALSE)`,
		id, cutoff.Time.UTC(), time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("recording dataset: %w", err)
	}
	if err := s.activate(ctx, tx, id); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing ingest: %w", err)
	}

	logging.Info().
		Int64("dataset_id", id).
		Time("cutoff", cutoff.Time.UTC()).
		Dur("elapsed", time.Since(start)).
		Str("dir", dir).
		Msg("Ingested snapshot dataset")
	return id, nil
}

// tsvPath renders a directory entry as a quoted SQL string literal.
func tsvPath(dir, name string) string {
	p := filepath.Join(dir, name)
	return "'" + strings.ReplaceAll(p, "'", "''") + "'"
}
