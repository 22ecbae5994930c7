package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pinkycollie/pinksync/pkg/signal"
)

// ─────────────────────────────────────────────────────────────────────────────
// DDL — translations (with pgvector translation-memory column)
// ─────────────────────────────────────────────────────────────────────────────

const ddlTranslations = `
CREATE TABLE IF NOT EXISTS translations (
    id               BIGSERIAL    PRIMARY KEY,
    caller_id        TEXT         NOT NULL,
    direction        TEXT         NOT NULL,
    source_language  TEXT         NOT NULL DEFAULT '',
    target_language  TEXT         NOT NULL DEFAULT '',
    text             TEXT         NOT NULL,
    video_reference  TEXT         NOT NULL DEFAULT '',
    confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
    latency_ns       BIGINT       NOT NULL DEFAULT 0,
    embedding        vector(%d),
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_translations_caller_created
    ON translations (caller_id, created_at DESC);
`

// The ivfflat index accelerates nearest-neighbour scans once the table has
// enough rows for list training; before that, Postgres falls back to a
// sequential scan, which is fine at small volumes.
const ddlTranslationsVectorIndex = `
CREATE INDEX IF NOT EXISTS idx_translations_embedding
    ON translations USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`

// ─────────────────────────────────────────────────────────────────────────────
// DDL — synthesis jobs
// ─────────────────────────────────────────────────────────────────────────────

const ddlSynthesisJobs = `
CREATE TABLE IF NOT EXISTS synthesis_jobs (
    reference   TEXT         PRIMARY KEY,
    caller_id   TEXT         NOT NULL,
    sequence    JSONB        NOT NULL DEFAULT '[]',
    status      TEXT         NOT NULL DEFAULT 'PENDING',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_synthesis_jobs_status
    ON synthesis_jobs (status, created_at);

CREATE INDEX IF NOT EXISTS idx_synthesis_jobs_caller
    ON synthesis_jobs (caller_id);
`

// Migrate installs the pgvector extension and creates all required tables and
// indexes. It is idempotent and safe to run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if embeddingDimensions <= 0 {
		return fmt.Errorf("migrate: embeddingDimensions must be positive, got %d", embeddingDimensions)
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(ddlTranslations, embeddingDimensions),
		ddlTranslationsVectorIndex,
		ddlSynthesisJobs,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// jsonKeyframe is the JSONB layout of one gesture keyframe.
type jsonKeyframe struct {
	GestureID string `json:"gesture_id"`
	OffsetMs  int64  `json:"offset_ms"`
	HoldMs    int64  `json:"hold_ms"`
}

// sequenceJSON serialises a sign sequence's keyframes for the JSONB column.
// Marshalling a slice of plain string/int fields cannot fail, so the error
// path collapses to an empty array.
func sequenceJSON(seq signal.SignSequence) []byte {
	frames := make([]jsonKeyframe, 0, len(seq.Keyframes))
	for _, kf := range seq.Keyframes {
		frames = append(frames, jsonKeyframe{
			GestureID: kf.GestureID,
			OffsetMs:  kf.Offset.Milliseconds(),
			HoldMs:    kf.Hold.Milliseconds(),
		})
	}
	data, err := json.Marshal(frames)
	if err != nil {
		return []byte("[]")
	}
	return data
}
