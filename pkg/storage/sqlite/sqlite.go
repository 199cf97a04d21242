// Package sqlite provides a SQLite-backed storage driver for document records.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/hrdesk/pkg/document"
	"github.com/papercomputeco/hrdesk/pkg/roles"
	"github.com/papercomputeco/hrdesk/pkg/storage"
)

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	filename      TEXT NOT NULL,
	source_format TEXT NOT NULL DEFAULT '',
	uploaded_by   TEXT NOT NULL,
	uploader_id   TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	visibility    TEXT NOT NULL DEFAULT '',
	chunk_count   INTEGER NOT NULL DEFAULT 0,
	stage         TEXT NOT NULL,
	failed_stage  TEXT NOT NULL DEFAULT '',
	failure_cause TEXT NOT NULL DEFAULT ''
)`

// SQLiteDriver implements storage.Driver using SQLite.
type SQLiteDriver struct {
	db *sql.DB
}

// NewSQLiteDriver creates a new SQLite-backed driver.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDriver(dbPath string) (*SQLiteDriver, error) {
	if dbPath == "" {
		return nil, errors.New("database path is required")
	}

	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteDriver{db: db}, nil
}

// Put inserts or replaces a document record.
func (d *SQLiteDriver) Put(ctx context.Context, doc *document.Document) error {
	if doc == nil || doc.ID == "" {
		return errors.New("cannot store document without an ID")
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO documents (
			id, filename, source_format, uploaded_by, uploader_id, created_at,
			visibility, chunk_count, stage, failed_stage, failure_cause
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			source_format = excluded.source_format,
			uploaded_by = excluded.uploaded_by,
			uploader_id = excluded.uploader_id,
			created_at = excluded.created_at,
			visibility = excluded.visibility,
			chunk_count = excluded.chunk_count,
			stage = excluded.stage,
			failed_stage = excluded.failed_stage,
			failure_cause = excluded.failure_cause
	`,
		doc.ID,
		doc.Filename,
		doc.SourceFormat,
		doc.UploadedBy.Slug(),
		doc.UploaderID,
		doc.CreatedAt.UTC().Format(timeLayout),
		storage.EncodeVisibility(doc.Visibility),
		doc.ChunkCount,
		string(doc.Stage),
		string(doc.FailedStage),
		doc.FailureCause,
	)
	if err != nil {
		return fmt.Errorf("storing document %s: %w", doc.ID, err)
	}
	return nil
}

const selectColumns = `id, filename, source_format, uploaded_by, uploader_id, created_at,
	visibility, chunk_count, stage, failed_stage, failure_cause`

// Get retrieves a document record by ID.
func (d *SQLiteDriver) Get(ctx context.Context, id string) (*document.Document, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", id, err)
	}
	return doc, nil
}

// List returns every document record, oldest first.
func (d *SQLiteDriver) List(ctx context.Context) ([]*document.Document, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM documents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var out []*document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return out, nil
}

// Delete removes a document record.
func (d *SQLiteDriver) Delete(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if n == 0 {
		return storage.NotFoundError{ID: id}
	}
	return nil
}

// Close closes the underlying database.
func (d *SQLiteDriver) Close() error {
	return d.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*document.Document, error) {
	var (
		doc                              document.Document
		uploadedBy, createdAt, visibility string
		stage, failedStage               string
	)
	if err := s.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.SourceFormat,
		&uploadedBy,
		&doc.UploaderID,
		&createdAt,
		&visibility,
		&doc.ChunkCount,
		&stage,
		&failedStage,
		&doc.FailureCause,
	); err != nil {
		return nil, err
	}

	role, err := roles.Parse(uploadedBy)
	if err != nil {
		return nil, err
	}
	doc.UploadedBy = role

	doc.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	doc.Visibility, err = storage.DecodeVisibility(visibility)
	if err != nil {
		return nil, err
	}

	doc.Stage = document.Stage(stage)
	doc.FailedStage = document.Stage(failedStage)
	return &doc, nil
}

var _ storage.Driver = (*SQLiteDriver)(nil)
