// Package pgvector provides a PostgreSQL vector driver using the pgvector
// extension over a pgx connection pool.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/papercomputeco/hrdesk/pkg/roles"
	"github.com/papercomputeco/hrdesk/pkg/vector"
)

// DefaultTable is the default chunk table name.
const DefaultTable = "hr_chunks"

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Config holds configuration for the pgvector driver.
type Config struct {
	// DSN is a PostgreSQL connection string.
	DSN string

	// Table defaults to DefaultTable.
	Table string

	// Dimensions is the embedding length of the vector column.
	Dimensions uint
}

// Driver implements vector.Driver using PostgreSQL and pgvector.
type Driver struct {
	pool       *pgxpool.Pool
	table      string
	dimensions uint
	logger     *slog.Logger
}

// NewDriver connects, enables the vector extension and creates the chunk
// table and its indexes when missing.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("pgvector embedding dimensions cannot be 0, must be configured")
	}
	table := c.Table
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	cfg, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, vector.Unavailable("pgvector", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, vector.Unavailable("pgvector", err)
	}

	d := &Driver{
		pool:       pool,
		table:      table,
		dimensions: c.Dimensions,
		logger:     logger,
	}
	if err := d.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("pgvector vector driver initialized",
		"table", table,
		"dimensions", c.Dimensions,
	)
	return d, nil
}

func (d *Driver) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			sequence    INTEGER NOT NULL,
			content     TEXT NOT NULL,
			filename    TEXT NOT NULL DEFAULT '',
			visible_to  TEXT[] NOT NULL,
			embedding   vector(%d) NOT NULL
		)`, d.table, d.dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_document_idx ON %[1]s (document_id, sequence)`, d.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_visible_idx ON %[1]s USING GIN (visible_to)`, d.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_embedding_idx ON %[1]s USING hnsw (embedding vector_cosine_ops)`, d.table),
	}
	for _, stmt := range stmts {
		if _, err := d.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrating pgvector schema: %w", err)
		}
	}
	return nil
}

// Upsert writes the batch in one transaction.
func (d *Driver) Upsert(ctx context.Context, entries []vector.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := vector.CheckEntries(d.dimensions, entries); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, document_id, sequence, content, filename, visible_to, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	document_id = EXCLUDED.document_id,
	sequence = EXCLUDED.sequence,
	content = EXCLUDED.content,
	filename = EXCLUDED.filename,
	visible_to = EXCLUDED.visible_to,
	embedding = EXCLUDED.embedding`, d.table)

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(query,
			e.ID,
			e.DocumentID,
			e.Sequence,
			e.Text,
			e.Metadata.Filename,
			slugs(e.Metadata.VisibleTo),
			pgvector.NewVector(e.Embedding),
		)
	}

	err := pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return classify(fmt.Errorf("upserting chunks: %w", err))
	}

	d.logger.Debug("upserted chunks to pgvector", "count", len(entries))
	return nil
}

// Search orders by cosine distance with the role constraint in the WHERE
// clause.
func (d *Driver) Search(ctx context.Context, vec []float32, topK int, filter vector.Filter) ([]vector.Result, error) {
	if err := vector.CheckDimensions(d.dimensions, vec); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	args := []any{pgvector.NewVector(vec), topK}
	var where []string
	if filter.Role != nil {
		args = append(args, filter.Role.Slug())
		where = append(where, fmt.Sprintf("$%d = ANY(visible_to)", len(args)))
	}
	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		where = append(where, fmt.Sprintf("document_id = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	rows, err := d.pool.Query(ctx, fmt.Sprintf(`
SELECT id, document_id, sequence, content, filename, visible_to, 1 - (embedding <=> $1) AS score
FROM %s
%s
ORDER BY embedding <=> $1
LIMIT $2`, d.table, clause), args...)
	if err != nil {
		return nil, classify(fmt.Errorf("querying pgvector: %w", err))
	}
	defer rows.Close()

	var results []vector.Result
	for rows.Next() {
		var (
			r         vector.Result
			visibleTo []string
			score     float64
		)
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Sequence, &r.Text, &r.Metadata.Filename, &visibleTo, &score); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		if r.Metadata.VisibleTo, err = parseSlugs(visibleTo); err != nil {
			return nil, err
		}
		r.Score = float32(score)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterating results: %w", err))
	}

	d.logger.Debug("queried pgvector", "results", len(results))
	return results, nil
}

// ListDocument returns a document's chunks ordered by sequence.
func (d *Driver) ListDocument(ctx context.Context, documentID string) ([]vector.Entry, error) {
	rows, err := d.pool.Query(ctx, fmt.Sprintf(`
SELECT id, sequence, content, filename, visible_to, embedding
FROM %s
WHERE document_id = $1
ORDER BY sequence`, d.table), documentID)
	if err != nil {
		return nil, classify(fmt.Errorf("listing chunks of %s: %w", documentID, err))
	}
	defer rows.Close()

	var entries []vector.Entry
	for rows.Next() {
		var (
			e         = vector.Entry{DocumentID: documentID}
			visibleTo []string
			embedding pgvector.Vector
		)
		if err := rows.Scan(&e.ID, &e.Sequence, &e.Text, &e.Metadata.Filename, &visibleTo, &embedding); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if e.Metadata.VisibleTo, err = parseSlugs(visibleTo); err != nil {
			return nil, err
		}
		e.Embedding = embedding.Slice()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterating chunks: %w", err))
	}
	return entries, nil
}

// DeleteByDocument removes every chunk of documentID in a single statement.
func (d *Driver) DeleteByDocument(ctx context.Context, documentID string) error {
	tag, err := d.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, d.table), documentID)
	if err != nil {
		return classify(fmt.Errorf("deleting chunks of %s: %w", documentID, err))
	}
	d.logger.Debug("deleted document from pgvector", "document_id", documentID, "count", tag.RowsAffected())
	return nil
}

// Delete removes chunks by ID.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := d.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, d.table), ids); err != nil {
		return classify(fmt.Errorf("deleting chunks: %w", err))
	}
	return nil
}

// Dimensions is the vector column's size.
func (d *Driver) Dimensions() uint {
	return d.dimensions
}

// Close releases the pool.
func (d *Driver) Close() error {
	d.pool.Close()
	return nil
}

// classify marks connection level failures as retryable. Server errors with
// a SQLSTATE are left as they are.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return vector.Unavailable("pgvector", err)
}

func slugs(rs []roles.Role) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Slug()
	}
	return out
}

func parseSlugs(ss []string) ([]roles.Role, error) {
	out := make([]roles.Role, 0, len(ss))
	for _, s := range ss {
		r, err := roles.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

var _ vector.Driver = (*Driver)(nil)
