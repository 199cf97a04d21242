package chroma_test

import (
	"cmp"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/papercomputeco/hrdesk/pkg/vector"
)

// fakeChroma serves the subset of Chroma's v2 REST API the driver uses,
// including where-clause evaluation, backed by a map.
type fakeChroma struct {
	mu       sync.Mutex
	records  map[string]fakeRecord
	creates  int
	lastBody map[string]any
}

type fakeRecord struct {
	embedding []float32
	metadata  map[string]any
	document  string
}

func newFakeChroma() *fakeChroma {
	return &fakeChroma{records: make(map[string]fakeRecord)}
}

const collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"

func (f *fakeChroma) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body map[string]any
	raw := json.NewDecoder(r.Body)
	raw.UseNumber()
	if err := raw.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	body = normalize(body).(map[string]any)
	f.lastBody = body

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == collectionsPath:
		f.creates++
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "c1", "name": body["name"], "metadata": body["metadata"]})
	case strings.HasSuffix(r.URL.Path, "/upsert"):
		f.upsert(body)
		_ = json.NewEncoder(w).Encode(map[string]any{})
	case strings.HasSuffix(r.URL.Path, "/query"):
		_ = json.NewEncoder(w).Encode(f.query(body))
	case strings.HasSuffix(r.URL.Path, "/get"):
		_ = json.NewEncoder(w).Encode(f.get(body))
	case strings.HasSuffix(r.URL.Path, "/delete"):
		f.delete(body)
		_ = json.NewEncoder(w).Encode(map[string]any{})
	default:
		http.NotFound(w, r)
	}
}

// normalize turns json.Number into float64 so comparisons match what the
// driver decodes.
func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, x := range t {
			t[k] = normalize(x)
		}
		return t
	case []any:
		for i, x := range t {
			t[i] = normalize(x)
		}
		return t
	default:
		return v
	}
}

func floats(v any) []float32 {
	list, _ := v.([]any)
	out := make([]float32, len(list))
	for i, x := range list {
		out[i] = float32(x.(float64))
	}
	return out
}

func (f *fakeChroma) upsert(body map[string]any) {
	ids := body["ids"].([]any)
	embs := body["embeddings"].([]any)
	metas := body["metadatas"].([]any)
	docs := body["documents"].([]any)
	for i, id := range ids {
		f.records[id.(string)] = fakeRecord{
			embedding: floats(embs[i]),
			metadata:  metas[i].(map[string]any),
			document:  docs[i].(string),
		}
	}
}

func matches(where map[string]any, meta map[string]any) bool {
	for k, v := range where {
		if k == "$and" {
			for _, c := range v.([]any) {
				if !matches(c.(map[string]any), meta) {
					return false
				}
			}
			continue
		}
		want := v
		if op, ok := v.(map[string]any); ok {
			want = op["$eq"]
		}
		if meta[k] != want {
			return false
		}
	}
	return true
}

func (f *fakeChroma) selected(body map[string]any) []string {
	where, _ := body["where"].(map[string]any)
	var ids []string
	if list, ok := body["ids"].([]any); ok {
		for _, id := range list {
			if _, exists := f.records[id.(string)]; exists {
				ids = append(ids, id.(string))
			}
		}
	} else {
		for id := range f.records {
			ids = append(ids, id)
		}
	}
	out := ids[:0]
	for _, id := range ids {
		if where == nil || matches(where, f.records[id].metadata) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func (f *fakeChroma) query(body map[string]any) map[string]any {
	q := floats(body["query_embeddings"].([]any)[0])
	n := int(body["n_results"].(float64))

	type hit struct {
		id   string
		dist float32
	}
	var hits []hit
	for _, id := range f.selected(body) {
		hits = append(hits, hit{id: id, dist: 1 - vector.Cosine(q, f.records[id].embedding)})
	}
	slices.SortFunc(hits, func(a, b hit) int { return cmp.Compare(a.dist, b.dist) })
	if len(hits) > n {
		hits = hits[:n]
	}

	ids := []string{}
	dists := []float32{}
	metas := []map[string]any{}
	docs := []string{}
	for _, h := range hits {
		ids = append(ids, h.id)
		dists = append(dists, h.dist)
		metas = append(metas, f.records[h.id].metadata)
		docs = append(docs, f.records[h.id].document)
	}
	return map[string]any{
		"ids":       [][]string{ids},
		"distances": [][]float32{dists},
		"metadatas": [][]map[string]any{metas},
		"documents": [][]string{docs},
	}
}

func (f *fakeChroma) get(body map[string]any) map[string]any {
	ids := f.selected(body)
	metas := []map[string]any{}
	docs := []string{}
	embs := [][]float32{}
	for _, id := range ids {
		metas = append(metas, f.records[id].metadata)
		docs = append(docs, f.records[id].document)
		embs = append(embs, f.records[id].embedding)
	}
	if ids == nil {
		ids = []string{}
	}
	return map[string]any{"ids": ids, "metadatas": metas, "documents": docs, "embeddings": embs}
}

func (f *fakeChroma) delete(body map[string]any) {
	for _, id := range f.selected(body) {
		delete(f.records, id)
	}
}
