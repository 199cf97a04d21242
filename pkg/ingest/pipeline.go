// Package ingest turns uploaded document text into role-tagged, embedded chunks
// in the vector index.
//
// Each document runs through received → loaded → chunked → embedded → indexed
// under a per-document lock. A failure at any stage marks the record failed and
// removes whatever chunks were already written, so the index never holds a
// partial document.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/hrdesk/pkg/chunker"
	"github.com/papercomputeco/hrdesk/pkg/document"
	"github.com/papercomputeco/hrdesk/pkg/embeddings"
	"github.com/papercomputeco/hrdesk/pkg/errdefs"
	"github.com/papercomputeco/hrdesk/pkg/eventstream"
	"github.com/papercomputeco/hrdesk/pkg/eventstream/nop"
	"github.com/papercomputeco/hrdesk/pkg/keylock"
	"github.com/papercomputeco/hrdesk/pkg/retry"
	"github.com/papercomputeco/hrdesk/pkg/roles"
	"github.com/papercomputeco/hrdesk/pkg/storage"
	"github.com/papercomputeco/hrdesk/pkg/vector"
)

const (
	// DefaultEmbedBatchSize is how many chunks are sent per embedding call.
	DefaultEmbedBatchSize = 64

	// DefaultUpsertBatchSize is how many entries are written per index call.
	DefaultUpsertBatchSize = 100
)

// Upload is already-extracted document text plus what the uploader declared
// about it.
type Upload struct {
	// DocumentID re-ingests an existing document when set. A new ID is
	// generated otherwise.
	DocumentID string

	Filename     string
	SourceFormat string
	Text         string
	Visibility   roles.Policy
}

// Config wires the pipeline to its collaborators.
type Config struct {
	Store    storage.Driver
	Vectors  vector.Driver
	Embedder embeddings.Embedder

	// Publisher receives indexed/failed events. Defaults to a no-op.
	Publisher eventstream.Publisher

	// Locks serializes work per document ID. Share it with the lifecycle
	// manager so deletes never interleave with ingestion.
	Locks *keylock.Locker

	ChunkSize       int
	ChunkOverlap    int
	EmbedBatchSize  int
	UpsertBatchSize int

	// Retry governs vector index writes.
	Retry retry.Policy

	Logger *slog.Logger
}

// Pipeline ingests documents.
type Pipeline struct {
	store     storage.Driver
	vectors   vector.Driver
	embedder  embeddings.Embedder
	publisher eventstream.Publisher
	locks     *keylock.Locker

	chunkSize   int
	overlap     int
	embedBatch  int
	upsertBatch int
	retry       retry.Policy

	logger *slog.Logger
	now    func() time.Time
}

// New validates c and builds a Pipeline.
func New(c *Config) (*Pipeline, error) {
	if c.Store == nil || c.Vectors == nil || c.Embedder == nil {
		return nil, errors.New("ingest pipeline requires a store, a vector driver and an embedder")
	}

	p := &Pipeline{
		store:       c.Store,
		vectors:     c.Vectors,
		embedder:    c.Embedder,
		publisher:   c.Publisher,
		locks:       c.Locks,
		chunkSize:   c.ChunkSize,
		overlap:     c.ChunkOverlap,
		embedBatch:  c.EmbedBatchSize,
		upsertBatch: c.UpsertBatchSize,
		retry:       c.Retry,
		logger:      c.Logger,
		now:         time.Now,
	}
	if p.publisher == nil {
		p.publisher = nop.NewPublisher()
	}
	if p.locks == nil {
		p.locks = keylock.New()
	}
	if p.chunkSize == 0 {
		p.chunkSize = chunker.DefaultChunkSize
	}
	if p.overlap == 0 {
		p.overlap = chunker.DefaultOverlap
	}
	if p.embedBatch <= 0 {
		p.embedBatch = DefaultEmbedBatchSize
	}
	if p.upsertBatch <= 0 {
		p.upsertBatch = DefaultUpsertBatchSize
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}

	if _, err := chunker.Split("x", p.chunkSize, p.overlap); err != nil {
		return nil, fmt.Errorf("chunking configuration: %w", err)
	}

	return p, nil
}

// run carries one ingestion through its stages.
type run struct {
	actor   roles.Principal
	doc     *document.Document
	text    string
	chunks  []string
	vectors [][]float32

	// wrote is set once any index write was attempted.
	wrote bool

	// prior is the indexed record this run replaces, if any. Its chunks stay
	// searchable until the first index write.
	prior *document.Document
}

// Ingest runs up through every stage on behalf of actor. The permission check
// happens before any side effect. A failing stage yields *errdefs.StageError
// wrapping the cause, and the document record is left in the failed stage,
// unless the run replaced an indexed document and failed before touching the
// index, in which case the previous record is kept.
func (p *Pipeline) Ingest(ctx context.Context, actor roles.Principal, up Upload) (*document.Document, error) {
	if !roles.CanUpload(actor.Role) {
		return nil, errdefs.PermissionDenied(actor.Role.String(), "upload documents")
	}
	if strings.TrimSpace(up.Filename) == "" {
		return nil, fmt.Errorf("%w: upload has no filename", errdefs.ErrInvalidInput)
	}
	if err := up.Visibility.Validate(); err != nil {
		return nil, err
	}

	id := up.DocumentID
	if id == "" {
		id = uuid.NewString()
	}

	unlock, err := p.locks.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("waiting for document %s: %w", id, err)
	}
	defer unlock()

	r := &run{
		actor: actor,
		text:  up.Text,
		doc: &document.Document{
			ID:           id,
			Filename:     up.Filename,
			SourceFormat: up.SourceFormat,
			UploadedBy:   actor.Role,
			UploaderID:   actor.UserID,
			CreatedAt:    p.now().UTC(),
			Visibility:   up.Visibility,
			Stage:        document.StageReceived,
		},
	}

	prior, err := p.store.Get(ctx, id)
	switch {
	case err == nil && prior.Stage == document.StageIndexed:
		r.prior = prior
	case err != nil && !errors.Is(err, errdefs.ErrNotFound):
		return nil, fmt.Errorf("reading document %s: %w", id, err)
	}

	log := p.logger.With("document_id", id, "filename", up.Filename)
	log.Info("ingesting document",
		"source_format", up.SourceFormat,
		"uploader", actor.UserID,
		"visible_to", roles.JoinSlugs(up.Visibility.Resolve()),
	)

	if err := p.store.Put(ctx, r.doc); err != nil {
		return nil, fmt.Errorf("recording document %s: %w", id, err)
	}

	steps := []struct {
		stage document.Stage
		fn    func(context.Context, *run) error
	}{
		{document.StageLoaded, p.load},
		{document.StageChunked, p.chunk},
		{document.StageEmbedded, p.embed},
		{document.StageIndexed, p.index},
	}

	for _, step := range steps {
		start := time.Now()
		if err := step.fn(ctx, r); err != nil {
			return nil, p.fail(ctx, log, r, step.stage, err)
		}
		r.doc.Advance()
		if err := p.store.Put(ctx, r.doc); err != nil {
			return nil, p.fail(ctx, log, r, step.stage, fmt.Errorf("recording stage: %w", err))
		}
		log.Debug("stage complete", "stage", step.stage, "duration", time.Since(start))
	}

	log.Info("document indexed", "chunks", r.doc.ChunkCount)
	p.publish(ctx, eventstream.EventTypeDocumentIndexed, actor, r.doc)

	return r.doc, nil
}

func (p *Pipeline) load(_ context.Context, r *run) error {
	if strings.TrimSpace(r.text) == "" {
		return fmt.Errorf("%w: %s contains no extractable text", errdefs.ErrEmptyInput, r.doc.Filename)
	}
	return nil
}

func (p *Pipeline) chunk(_ context.Context, r *run) error {
	seq, err := chunker.Split(r.text, p.chunkSize, p.overlap)
	if err != nil {
		return err
	}
	r.chunks = chunker.Collect(seq)
	r.doc.ChunkCount = len(r.chunks)
	return nil
}

func (p *Pipeline) embed(ctx context.Context, r *run) error {
	dims := p.vectors.Dimensions()
	r.vectors = make([][]float32, 0, len(r.chunks))

	for start := 0; start < len(r.chunks); start += p.embedBatch {
		batch := r.chunks[start:min(start+p.embedBatch, len(r.chunks))]

		vecs, err := p.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("embedding chunks %d-%d: %w", start, start+len(batch)-1, err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("%w: embedder returned %d vectors for %d chunks",
				errdefs.ErrTransient, len(vecs), len(batch))
		}
		for i, v := range vecs {
			if err := vector.CheckDimensions(dims, v); err != nil {
				return fmt.Errorf("chunk %d: %w", start+i, err)
			}
		}
		r.vectors = append(r.vectors, vecs...)
	}
	return nil
}

func (p *Pipeline) index(ctx context.Context, r *run) error {
	meta := vector.Metadata{
		Filename:  r.doc.Filename,
		VisibleTo: r.doc.Visibility.Resolve(),
	}

	entries := make([]vector.Entry, len(r.chunks))
	for i, text := range r.chunks {
		entries[i] = vector.Entry{
			ID:         vector.ChunkID(r.doc.ID, i),
			DocumentID: r.doc.ID,
			Sequence:   i,
			Text:       text,
			Embedding:  r.vectors[i],
			Metadata:   meta,
		}
	}

	for start := 0; start < len(entries); start += p.upsertBatch {
		batch := entries[start:min(start+p.upsertBatch, len(entries))]
		r.wrote = true
		err := retry.Do(ctx, p.retry, "upsert chunks", p.logger, func(ctx context.Context) error {
			return p.vectors.Upsert(ctx, batch)
		})
		if err != nil {
			return fmt.Errorf("upserting chunks %d-%d: %w", start, start+len(batch)-1, err)
		}
	}

	return p.pruneStale(ctx, r.doc.ID, len(entries))
}

// pruneStale removes chunks left over from a previous, longer version of the
// document.
func (p *Pipeline) pruneStale(ctx context.Context, documentID string, count int) error {
	existing, err := retry.Value(ctx, p.retry, "list document chunks", p.logger, func(ctx context.Context) ([]vector.Entry, error) {
		return p.vectors.ListDocument(ctx, documentID)
	})
	if err != nil {
		return fmt.Errorf("listing chunks for pruning: %w", err)
	}

	var stale []string
	for _, e := range existing {
		if e.Sequence >= count {
			stale = append(stale, e.ID)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	p.logger.Debug("pruning stale chunks", "document_id", documentID, "count", len(stale))
	return retry.Do(ctx, p.retry, "prune stale chunks", p.logger, func(ctx context.Context) error {
		return p.vectors.Delete(ctx, stale)
	})
}

// fail records the failure, removes partial index state and builds the
// returned StageError.
func (p *Pipeline) fail(ctx context.Context, log *slog.Logger, r *run, stage document.Stage, cause error) error {
	// Cleanup must happen even when the caller gave up.
	cleanupCtx := context.WithoutCancel(ctx)

	if r.wrote {
		err := retry.Do(cleanupCtx, p.retry, "compensating delete", p.logger, func(ctx context.Context) error {
			return p.vectors.DeleteByDocument(ctx, r.doc.ID)
		})
		if err != nil {
			log.Error("compensating delete failed, document chunks may remain", "error", err)
			cause = errors.Join(cause, fmt.Errorf("compensating delete: %w", err))
		}
	}

	r.doc.Fail(stage, cause)
	record := r.doc
	if r.prior != nil && !r.wrote {
		log.Warn("keeping previously indexed version", "stage", stage)
		record = r.prior
	}
	if err := p.store.Put(cleanupCtx, record); err != nil {
		log.Error("recording failed stage", "error", err)
	}

	log.Error("ingestion failed", "stage", stage, "error", cause)
	p.publish(cleanupCtx, eventstream.EventTypeDocumentFailed, r.actor, r.doc)

	return &errdefs.StageError{DocumentID: r.doc.ID, Stage: string(stage), Err: cause}
}

func (p *Pipeline) publish(ctx context.Context, eventType string, actor roles.Principal, doc *document.Document) {
	ev := eventstream.NewDocumentEvent(eventType, actor.UserID, actor.Role.Slug(), doc)
	if err := p.publisher.Publish(ctx, ev); err != nil {
		p.logger.Warn("publishing document event", "event_type", eventType, "document_id", doc.ID, "error", err)
	}
}
