// Package qdrant provides a Qdrant vector driver over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/papercomputeco/hrdesk/pkg/roles"
	"github.com/papercomputeco/hrdesk/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection for HR chunks.
	DefaultCollectionName = "hrdesk"

	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	scrollPage = 256
)

// Payload keys.
const (
	payloadChunkID    = "chunk_id"
	payloadDocumentID = "document_id"
	payloadSequence   = "sequence"
	payloadText       = "text"
	payloadFilename   = "filename"
	payloadVisibleTo  = "visible_to"
)

// pointNamespace seeds the UUIDs derived from chunk IDs. Qdrant point IDs
// must be integers or UUIDs.
var pointNamespace = uuid.MustParse("6f1c0d2e-6b8a-4c55-9d1e-3a7c2b9e4f10")

// Config holds configuration for the Qdrant driver.
type Config struct {
	Host           string
	Port           int
	APIKey         string
	UseTLS         bool
	CollectionName string
	Dimensions     uint
}

// Driver implements vector.Driver using Qdrant.
type Driver struct {
	client     *qdrant.Client
	collection string
	dimensions uint
	logger     *slog.Logger
}

// NewDriver connects to Qdrant and creates the collection and payload indexes
// when missing.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	collection := c.CollectionName
	if collection == "" {
		collection = DefaultCollectionName
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   c.Host,
		Port:                   port,
		APIKey:                 c.APIKey,
		UseTLS:                 c.UseTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, vector.Unavailable("qdrant", err)
	}

	d := &Driver{
		client:     client,
		collection: collection,
		dimensions: c.Dimensions,
		logger:     logger,
	}
	if err := d.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("connected to Qdrant",
		"host", c.Host,
		"port", port,
		"collection", collection,
		"dimensions", c.Dimensions,
	)
	return d, nil
}

func (d *Driver) ensureCollection(ctx context.Context) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return classify(err)
	}
	if exists {
		return nil
	}

	err = d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(d.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", d.collection, err)
	}

	for _, field := range []string{payloadVisibleTo, payloadDocumentID} {
		_, err := d.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: d.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("indexing payload field %s: %w", field, err)
		}
	}
	return nil
}

// classify marks gRPC failures that are worth retrying as transient.
func classify(err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return vector.Unavailable("qdrant", err)
	default:
		return fmt.Errorf("qdrant: %w", err)
	}
}

// pointID derives the stable point UUID for a chunk ID.
func pointID(chunkID string) *qdrant.PointId {
	return qdrant.NewID(uuid.NewSHA1(pointNamespace, []byte(chunkID)).String())
}

func payloadOf(e *vector.Entry) map[string]*qdrant.Value {
	visible := make([]any, len(e.Metadata.VisibleTo))
	for i, r := range e.Metadata.VisibleTo {
		visible[i] = r.Slug()
	}
	return qdrant.NewValueMap(map[string]any{
		payloadChunkID:    e.ID,
		payloadDocumentID: e.DocumentID,
		payloadSequence:   int64(e.Sequence),
		payloadText:       e.Text,
		payloadFilename:   e.Metadata.Filename,
		payloadVisibleTo:  visible,
	})
}

func entryOf(payload map[string]*qdrant.Value) vector.Entry {
	e := vector.Entry{
		ID:         payload[payloadChunkID].GetStringValue(),
		DocumentID: payload[payloadDocumentID].GetStringValue(),
		Sequence:   int(payload[payloadSequence].GetIntegerValue()),
		Text:       payload[payloadText].GetStringValue(),
	}
	e.Metadata.Filename = payload[payloadFilename].GetStringValue()
	for _, v := range payload[payloadVisibleTo].GetListValue().GetValues() {
		if r, err := roles.Parse(v.GetStringValue()); err == nil {
			e.Metadata.VisibleTo = append(e.Metadata.VisibleTo, r)
		}
	}
	return e
}

// filterOf turns a vector.Filter into Qdrant Must conditions.
func filterOf(f vector.Filter) *qdrant.Filter {
	var must []*qdrant.Condition
	if f.Role != nil {
		must = append(must, qdrant.NewMatch(payloadVisibleTo, f.Role.Slug()))
	}
	if f.DocumentID != "" {
		must = append(must, qdrant.NewMatch(payloadDocumentID, f.DocumentID))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// Upsert writes points and waits for them to be applied.
func (d *Driver) Upsert(ctx context.Context, entries []vector.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := vector.CheckEntries(d.dimensions, entries); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(entries))
	for i := range entries {
		e := &entries[i]
		points[i] = &qdrant.PointStruct{
			Id:      pointID(e.ID),
			Vectors: qdrant.NewVectors(e.Embedding...),
			Payload: payloadOf(e),
		}
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return classify(err)
	}

	d.logger.Debug("upserted chunks to qdrant", "count", len(entries))
	return nil
}

// Search runs a filtered nearest-neighbour query.
func (d *Driver) Search(ctx context.Context, vec []float32, topK int, filter vector.Filter) ([]vector.Result, error) {
	if err := vector.CheckDimensions(d.dimensions, vec); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(vec...),
		Filter:         filterOf(filter),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, classify(err)
	}

	results := make([]vector.Result, 0, len(points))
	for _, p := range points {
		results = append(results, vector.Result{
			Entry: entryOf(p.GetPayload()),
			Score: p.GetScore(),
		})
	}

	d.logger.Debug("queried qdrant", "results", len(results))
	return results, nil
}

// ListDocument scrolls through a document's points.
func (d *Driver) ListDocument(ctx context.Context, documentID string) ([]vector.Entry, error) {
	var (
		entries []vector.Entry
		offset  *qdrant.PointId
	)
	for {
		resp, err := d.client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: d.collection,
			Filter:         filterOf(vector.Filter{DocumentID: documentID}),
			Limit:          qdrant.PtrOf(uint32(scrollPage)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, classify(err)
		}

		for _, p := range resp.GetResult() {
			e := entryOf(p.GetPayload())
			e.Embedding = p.GetVectors().GetVector().GetData()
			entries = append(entries, e)
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}

	vector.SortBySequence(entries)
	return entries, nil
}

// DeleteByDocument removes every point whose document_id matches.
func (d *Driver) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(filterOf(vector.Filter{DocumentID: documentID})),
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// Delete removes points by chunk ID.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = pointID(id)
	}
	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// Dimensions is the collection's vector size.
func (d *Driver) Dimensions() uint {
	return d.dimensions
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

var _ vector.Driver = (*Driver)(nil)
