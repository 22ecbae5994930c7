// Package postgres provides a PostgreSQL-backed implementation of
// store.RecordStore.
//
// All operations share a single [pgxpool.Pool]. The pgvector extension must
// be available in the target database; [Migrate] installs it automatically
// via CREATE EXTENSION IF NOT EXISTS and is run on every connect, so schema
// setup needs no separate tooling.
//
// Usage:
//
//	st, err := postgres.NewStore(ctx, dsn, 512)
//	if err != nil { … }
//	defer st.Close()
//
//	_ = st.InsertTranslation(ctx, rec)
//	hits, _ := st.Similar(ctx, embedding, 5)
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/pinkycollie/pinksync/pkg/signal"
	"github.com/pinkycollie/pinksync/pkg/store"
)

// Compile-time interface check.
var _ store.RecordStore = (*Store)(nil)

// Store is the PostgreSQL-backed record store. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, registers pgvector types on every connection, and runs
// [Migrate] to ensure all required tables and extensions exist.
//
// embeddingDimensions must match the output dimension of the sign→text
// model's embedding head (e.g., 512). Changing this value after the first
// migration requires a manual schema change.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("record store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("record store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("record store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("record store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks database reachability. Used by readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InsertTranslation implements [store.RecordStore].
func (s *Store) InsertTranslation(ctx context.Context, rec store.TranslationRecord) error {
	const q = `
		INSERT INTO translations
		    (caller_id, direction, source_language, target_language, text,
		     video_reference, confidence, latency_ns, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	var embedding any
	if len(rec.Embedding) > 0 {
		embedding = pgvector.NewVector(rec.Embedding)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, q,
		rec.CallerID,
		string(rec.Direction),
		rec.SourceLanguage,
		rec.TargetLanguage,
		rec.Text,
		rec.VideoReference,
		rec.Confidence,
		rec.Latency.Nanoseconds(),
		embedding,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("record store: insert translation: %w", err)
	}
	return nil
}

// InsertSynthesisJob implements [store.RecordStore]. The keyframe sequence is
// stored as JSONB so the external renderer can consume it without another
// round trip.
func (s *Store) InsertSynthesisJob(ctx context.Context, job store.SynthesisJob) error {
	const q = `
		INSERT INTO synthesis_jobs (reference, caller_id, sequence, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	createdAt := job.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, q,
		job.Reference,
		job.CallerID,
		sequenceJSON(job.Sequence),
		string(job.Status),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("record store: insert synthesis job: %w", err)
	}
	return nil
}

// UpdateSynthesisStatus implements [store.RecordStore].
func (s *Store) UpdateSynthesisStatus(ctx context.Context, reference string, status store.JobStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("record store: invalid job status %q", status)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE synthesis_jobs SET status = $2, updated_at = now() WHERE reference = $1`,
		reference, string(status),
	)
	if err != nil {
		return fmt.Errorf("record store: update synthesis status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record store: %w: %q", store.ErrJobNotFound, reference)
	}
	return nil
}

// RecentTranslations implements [store.RecordStore].
func (s *Store) RecentTranslations(ctx context.Context, callerID string, limit int) ([]store.TranslationRecord, error) {
	const q = `
		SELECT caller_id, direction, source_language, target_language, text,
		       video_reference, confidence, latency_ns, created_at
		FROM   translations
		WHERE  caller_id = $1
		ORDER  BY created_at DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, callerID, limit)
	if err != nil {
		return nil, fmt.Errorf("record store: recent translations: %w", err)
	}
	return collectRecords(rows)
}

// Similar implements [store.RecordStore] using pgvector cosine distance over
// the embedding column. Records stored without embeddings never match.
func (s *Store) Similar(ctx context.Context, embedding signal.Embedding, k int) ([]store.SimilarTranslation, error) {
	const q = `
		SELECT caller_id, direction, source_language, target_language, text,
		       video_reference, confidence, latency_ns, created_at,
		       embedding <=> $1 AS distance
		FROM   translations
		WHERE  embedding IS NOT NULL
		ORDER  BY embedding <=> $1
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("record store: similar: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.SimilarTranslation, error) {
		var (
			hit       store.SimilarTranslation
			direction string
			latencyNS int64
		)
		if err := row.Scan(
			&hit.Record.CallerID,
			&direction,
			&hit.Record.SourceLanguage,
			&hit.Record.TargetLanguage,
			&hit.Record.Text,
			&hit.Record.VideoReference,
			&hit.Record.Confidence,
			&latencyNS,
			&hit.Record.CreatedAt,
			&hit.Distance,
		); err != nil {
			return store.SimilarTranslation{}, err
		}
		hit.Record.Direction = store.Direction(direction)
		hit.Record.Latency = time.Duration(latencyNS)
		return hit, nil
	})
}

// collectRecords scans pgx rows into a slice of TranslationRecord values.
func collectRecords(rows pgx.Rows) ([]store.TranslationRecord, error) {
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.TranslationRecord, error) {
		var (
			rec       store.TranslationRecord
			direction string
			latencyNS int64
		)
		if err := row.Scan(
			&rec.CallerID,
			&direction,
			&rec.SourceLanguage,
			&rec.TargetLanguage,
			&rec.Text,
			&rec.VideoReference,
			&rec.Confidence,
			&latencyNS,
			&rec.CreatedAt,
		); err != nil {
			return store.TranslationRecord{}, err
		}
		rec.Direction = store.Direction(direction)
		rec.Latency = time.Duration(latencyNS)
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("record store: scan rows: %w", err)
	}
	return records, nil
}
