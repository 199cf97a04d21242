// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/papercomputeco/hrdesk/pkg/errdefs"
	"github.com/papercomputeco/hrdesk/pkg/retry"
	"github.com/papercomputeco/hrdesk/pkg/roles"
	"github.com/papercomputeco/hrdesk/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection name for storing HR chunks.
	DefaultCollectionName = "hrdesk"

	// DefaultMaxRetries is how many times connecting is attempted while Chroma
	// is still starting up.
	DefaultMaxRetries = 5

	// DefaultRetryDelay is the first wait between connection attempts.
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay caps the wait between connection attempts.
	DefaultMaxRetryDelay = 5 * time.Second

	basePath = "/api/v2/tenants/default_tenant/databases/default_database/collections"
)

// Metadata keys stored with every record.
const (
	metaDocumentID = "document_id"
	metaSequence   = "sequence"
	metaFilename   = "filename"
)

// roleKey is the boolean metadata key recording visibility to r.
func roleKey(r roles.Role) string {
	return "vis_" + r.Slug()
}

// Driver implements vector.Driver using Chroma's REST API.
type Driver struct {
	baseURL        string
	collectionName string
	collectionID   string
	dimensions     uint
	httpClient     *http.Client
	logger         *slog.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string

	// Dimensions is the embedding length. Chroma itself fixes it on first
	// insert; the driver checks it client side.
	Dimensions uint

	// MaxRetries bounds connection attempts. Defaults to DefaultMaxRetries.
	MaxRetries int

	// RetryDelay is the initial backoff. Defaults to DefaultRetryDelay.
	RetryDelay time.Duration

	// MaxRetryDelay caps the backoff. Defaults to DefaultMaxRetryDelay.
	MaxRetryDelay time.Duration
}

// NewDriver creates a new Chroma vector driver, retrying while the server is
// unreachable.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	policy := retry.Policy{
		MaxAttempts:  c.MaxRetries,
		InitialDelay: c.RetryDelay,
		MaxDelay:     c.MaxRetryDelay,
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxRetries
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = DefaultRetryDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = DefaultMaxRetryDelay
	}

	d := &Driver{
		baseURL:        c.URL,
		collectionName: collectionName,
		dimensions:     c.Dimensions,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}

	collectionID, err := retry.Value(context.Background(), policy, "connect to chroma", logger,
		d.getOrCreateCollection)
	if err != nil {
		return nil, fmt.Errorf("getting or creating collection %q: %w", collectionName, err)
	}
	d.collectionID = collectionID

	logger.Info("connected to Chroma",
		"url", c.URL,
		"collection", collectionName,
		"collection_id", collectionID,
	)

	return d, nil
}

// getOrCreateCollection gets an existing collection or creates a new one in
// cosine space.
func (d *Driver) getOrCreateCollection(ctx context.Context) (string, error) {
	var collection chromaCollection
	err := d.post(ctx, d.baseURL+basePath, chromaCreateRequest{
		Name:        d.collectionName,
		Metadata:    map[string]any{"hnsw:space": "cosine"},
		GetOrCreate: true,
	}, &collection)
	if err != nil {
		return "", err
	}
	return collection.ID, nil
}

func (d *Driver) collectionURL(op string) string {
	return fmt.Sprintf("%s%s/%s/%s", d.baseURL, basePath, d.collectionID, op)
}

// post sends body as JSON and decodes the response into out when non-nil.
func (d *Driver) post(ctx context.Context, url string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return errdefs.FromTransport("chroma", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return errdefs.FromHTTPStatus("chroma", resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Upsert stores entries, replacing records with the same ID.
func (d *Driver) Upsert(ctx context.Context, entries []vector.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := vector.CheckEntries(d.dimensions, entries); err != nil {
		return err
	}

	req := chromaUpsertRequest{
		IDs:        make([]string, len(entries)),
		Embeddings: make([][]float32, len(entries)),
		Metadatas:  make([]map[string]any, len(entries)),
		Documents:  make([]string, len(entries)),
	}
	for i, e := range entries {
		req.IDs[i] = e.ID
		req.Embeddings[i] = e.Embedding
		req.Documents[i] = e.Text
		req.Metadatas[i] = encodeMetadata(&e)
	}

	if err := d.post(ctx, d.collectionURL("upsert"), req, nil); err != nil {
		return fmt.Errorf("upserting chunks: %w", err)
	}

	d.logger.Debug("upserted chunks to chroma", "count", len(entries))
	return nil
}

// Search queries the collection with the filter as a where clause.
func (d *Driver) Search(ctx context.Context, vec []float32, topK int, filter vector.Filter) ([]vector.Result, error) {
	if err := vector.CheckDimensions(d.dimensions, vec); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	var resp chromaQueryResponse
	err := d.post(ctx, d.collectionURL("query"), chromaQueryRequest{
		QueryEmbeddings: [][]float32{vec},
		NResults:        topK,
		Where:           whereClause(filter),
		Include:         []string{"metadatas", "documents", "distances"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("querying chroma: %w", err)
	}

	// Only one query embedding is sent, so only the first group matters.
	if len(resp.IDs) == 0 || len(resp.IDs[0]) == 0 {
		return nil, nil
	}

	ids := resp.IDs[0]
	results := make([]vector.Result, 0, len(ids))
	for i, id := range ids {
		r := vector.Result{Entry: vector.Entry{ID: id}}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			decodeMetadata(resp.Metadatas[0][i], &r.Entry)
		}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			r.Text = resp.Documents[0][i]
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			// cosine space distance is 1 - similarity
			r.Score = 1 - resp.Distances[0][i]
		}
		results = append(results, r)
	}

	d.logger.Debug("queried chroma", "results", len(results))
	return results, nil
}

// ListDocument returns a document's records ordered by sequence.
func (d *Driver) ListDocument(ctx context.Context, documentID string) ([]vector.Entry, error) {
	var resp chromaGetResponse
	err := d.post(ctx, d.collectionURL("get"), chromaGetRequest{
		Where:   map[string]any{metaDocumentID: documentID},
		Include: []string{"metadatas", "documents", "embeddings"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("getting chunks of %s: %w", documentID, err)
	}

	entries := make([]vector.Entry, len(resp.IDs))
	for i, id := range resp.IDs {
		entries[i].ID = id
		if i < len(resp.Metadatas) {
			decodeMetadata(resp.Metadatas[i], &entries[i])
		}
		if i < len(resp.Documents) {
			entries[i].Text = resp.Documents[i]
		}
		if i < len(resp.Embeddings) {
			entries[i].Embedding = resp.Embeddings[i]
		}
	}
	vector.SortBySequence(entries)
	return entries, nil
}

// DeleteByDocument removes every record whose document_id matches.
func (d *Driver) DeleteByDocument(ctx context.Context, documentID string) error {
	err := d.post(ctx, d.collectionURL("delete"), chromaDeleteRequest{
		Where: map[string]any{metaDocumentID: documentID},
	}, nil)
	if err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", documentID, err)
	}

	d.logger.Debug("deleted document from chroma", "document_id", documentID)
	return nil
}

// Delete removes records by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := d.post(ctx, d.collectionURL("delete"), chromaDeleteRequest{IDs: ids}, nil); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	d.logger.Debug("deleted chunks from chroma", "count", len(ids))
	return nil
}

// Dimensions is the configured embedding length.
func (d *Driver) Dimensions() uint {
	return d.dimensions
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

var _ vector.Driver = (*Driver)(nil)
