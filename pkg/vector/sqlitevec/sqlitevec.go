// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/hrdesk/pkg/roles"
	"github.com/papercomputeco/hrdesk/pkg/vector"
)

// SQLiteVecDriver implements vector.Driver using SQLite with sqlite-vec.
//
// Role visibility is stored twice: as a slug list in the chunk mapping table
// for reads, and as one boolean metadata column per role on the vec0 table so
// the KNN query itself can constrain it.
type SQLiteVecDriver struct {
	db         *sql.DB
	dimensions uint
	logger     *slog.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// roleColumn is the vec0 metadata column recording visibility to r.
func roleColumn(r roles.Role) string {
	return "vis_" + r.Slug()
}

// NewSQLiteVecDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewSQLiteVecDriver(c Config, logger *slog.Logger) (*SQLiteVecDriver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dimensions := c.Dimensions
	if dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// vec0 virtual tables use integer rowids, so chunk IDs and their payload
	// live in a mapping table keyed by the same rowid.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_id TEXT NOT NULL UNIQUE,
			document_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			content TEXT NOT NULL,
			filename TEXT NOT NULL DEFAULT '',
			visible_to TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chunks table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS vec_chunks_document ON vec_chunks(document_id, sequence)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chunks index: %w", err)
	}

	cols := []string{
		fmt.Sprintf("embedding float[%d] distance_metric=cosine", dimensions),
		"document_id text",
	}
	for _, r := range roles.All() {
		cols = append(cols, roleColumn(r)+" boolean")
	}
	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunk_embeddings USING vec0(%s)`,
		strings.Join(cols, ", "),
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		"db_path", c.DBPath,
		"dimensions", dimensions,
		"vec_version", vecVersion,
	)

	return &SQLiteVecDriver{
		db:         db,
		dimensions: dimensions,
		logger:     logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// insertVec writes the vec0 row for rowID.
func insertVec(ctx context.Context, tx *sql.Tx, rowID int64, e *vector.Entry) error {
	all := roles.All()
	cols := make([]string, 0, len(all)+3)
	args := make([]any, 0, len(all)+3)
	cols = append(cols, "rowid", "embedding", "document_id")
	args = append(args, rowID, serializeFloat32(e.Embedding), e.DocumentID)
	for _, r := range all {
		cols = append(cols, roleColumn(r))
		args = append(args, visible(e.Metadata.VisibleTo, r))
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	_, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO vec_chunk_embeddings(%s) VALUES (%s)`, strings.Join(cols, ", "), placeholders),
		args...,
	)
	return err
}

func visible(rs []roles.Role, r roles.Role) int {
	for _, v := range rs {
		if v == r {
			return 1
		}
	}
	return 0
}

// Upsert stores entries. If an entry with the same ID already exists, it is
// replaced. The batch is written in one transaction.
func (d *SQLiteVecDriver) Upsert(ctx context.Context, entries []vector.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := vector.CheckEntries(d.dimensions, entries); err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range entries {
		e := &entries[i]
		visibleTo := roles.JoinSlugs(e.Metadata.VisibleTo)

		// Check if entry already exists
		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_chunks WHERE chunk_id = ?`, e.ID,
		).Scan(&existingRowID)

		switch err {
		case nil:
			if _, err := tx.ExecContext(ctx, `
				UPDATE vec_chunks
				SET document_id = ?, sequence = ?, content = ?, filename = ?, visible_to = ?
				WHERE rowid = ?`,
				e.DocumentID, e.Sequence, e.Text, e.Metadata.Filename, visibleTo, existingRowID,
			); err != nil {
				return fmt.Errorf("updating chunk %s: %w", e.ID, err)
			}

			// vec0 does not support UPDATE
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vec_chunk_embeddings WHERE rowid = ?`, existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for chunk %s: %w", e.ID, err)
			}

			if err := insertVec(ctx, tx, existingRowID, e); err != nil {
				return fmt.Errorf("re-inserting embedding for chunk %s: %w", e.ID, err)
			}
		case sql.ErrNoRows:
			// New entry: insert into mapping table first to get the rowid
			result, err := tx.ExecContext(ctx, `
				INSERT INTO vec_chunks(chunk_id, document_id, sequence, content, filename, visible_to)
				VALUES (?, ?, ?, ?, ?, ?)`,
				e.ID, e.DocumentID, e.Sequence, e.Text, e.Metadata.Filename, visibleTo,
			)
			if err != nil {
				return fmt.Errorf("inserting chunk %s: %w", e.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for chunk %s: %w", e.ID, err)
			}

			if err := insertVec(ctx, tx, rowID, e); err != nil {
				return fmt.Errorf("inserting embedding for chunk %s: %w", e.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing chunk %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("upserted chunks to sqlite-vec", "count", len(entries))
	return nil
}

// Search runs a KNN query with the role and document constraints on the vec0
// metadata columns, so hidden chunks never compete for the topK slots.
func (d *SQLiteVecDriver) Search(ctx context.Context, vec []float32, topK int, filter vector.Filter) ([]vector.Result, error) {
	if err := vector.CheckDimensions(d.dimensions, vec); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	where := []string{"ve.embedding MATCH ?", "ve.k = ?"}
	args := []any{serializeFloat32(vec), topK}
	if filter.Role != nil {
		if !filter.Role.Valid() {
			return nil, nil
		}
		where = append(where, "ve."+roleColumn(*filter.Role)+" = 1")
	}
	if filter.DocumentID != "" {
		where = append(where, "ve.document_id = ?")
		args = append(args, filter.DocumentID)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT
			c.chunk_id,
			c.document_id,
			c.sequence,
			c.content,
			c.filename,
			c.visible_to,
			ve.distance
		FROM vec_chunk_embeddings ve
		INNER JOIN vec_chunks c ON c.rowid = ve.rowid
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY ve.distance
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.Result
	for rows.Next() {
		var (
			e         vector.Entry
			visibleTo string
			distance  float64
		)
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Sequence, &e.Text, &e.Metadata.Filename, &visibleTo, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		if e.Metadata.VisibleTo, err = decodeVisibleTo(visibleTo); err != nil {
			return nil, err
		}

		results = append(results, vector.Result{
			Entry: e,
			// cosine distance is 1 - similarity
			Score: float32(1.0 - distance),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec", "results", len(results))
	return results, nil
}

// ListDocument returns a document's entries ordered by sequence.
func (d *SQLiteVecDriver) ListDocument(ctx context.Context, documentID string) ([]vector.Entry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT c.rowid, c.chunk_id, c.sequence, c.content, c.filename, c.visible_to
		FROM vec_chunks c
		WHERE c.document_id = ?
		ORDER BY c.sequence
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	// Collect results first so we can close the rows cursor before
	// issuing additional queries (SQLite uses a single connection).
	var (
		entries []vector.Entry
		rowIDs  []int64
	)
	for rows.Next() {
		var (
			rowID     int64
			visibleTo string
		)
		e := vector.Entry{DocumentID: documentID}
		if err := rows.Scan(&rowID, &e.ID, &e.Sequence, &e.Text, &e.Metadata.Filename, &visibleTo); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if e.Metadata.VisibleTo, err = decodeVisibleTo(visibleTo); err != nil {
			return nil, err
		}
		entries = append(entries, e)
		rowIDs = append(rowIDs, rowID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	rows.Close()

	for i, rowID := range rowIDs {
		var embBlob []byte
		err := d.db.QueryRowContext(ctx,
			`SELECT embedding FROM vec_chunk_embeddings WHERE rowid = ?`, rowID,
		).Scan(&embBlob)
		if err != nil {
			return nil, fmt.Errorf("loading embedding for chunk %s: %w", entries[i].ID, err)
		}
		if entries[i].Embedding, err = deserializeFloat32(embBlob); err != nil {
			return nil, err
		}
	}

	return entries, nil
}

// DeleteByDocument removes every chunk of documentID in one transaction.
func (d *SQLiteVecDriver) DeleteByDocument(ctx context.Context, documentID string) error {
	return d.deleteWhere(ctx, "document_id = ?", documentID)
}

// Delete removes chunks by their IDs.
func (d *SQLiteVecDriver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	// Build placeholders for IN clause
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return d.deleteWhere(ctx, fmt.Sprintf("chunk_id IN (%s)", strings.Join(placeholders, ",")), args...)
}

func (d *SQLiteVecDriver) deleteWhere(ctx context.Context, cond string, args ...any) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// First, get the rowids for the chunks to delete from vec0
	rows, err := tx.QueryContext(ctx, `SELECT rowid FROM vec_chunks WHERE `+cond, args...)
	if err != nil {
		return fmt.Errorf("querying rowids for deletion: %w", err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rowids: %w", err)
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vec_chunk_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_chunks WHERE `+cond, args...); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted chunks from sqlite-vec", "count", len(rowIDs))
	return nil
}

// Dimensions is the embedding length of the vec0 table.
func (d *SQLiteVecDriver) Dimensions() uint {
	return d.dimensions
}

// Close releases resources held by the driver.
func (d *SQLiteVecDriver) Close() error {
	return d.db.Close()
}

func decodeVisibleTo(s string) ([]roles.Role, error) {
	rs, err := roles.SplitSlugs(s)
	if err != nil {
		return nil, fmt.Errorf("decoding visibility %q: %w", s, err)
	}
	return rs, nil
}

var _ vector.Driver = (*SQLiteVecDriver)(nil)
