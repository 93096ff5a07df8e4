package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/osick/knowledge-mcp/internal/model"
	appErr "github.com/osick/knowledge-mcp/internal/pkg/errors"
	"github.com/osick/knowledge-mcp/internal/vectorstore"
)

const scrollPageSize = 256

type storageConfig struct {
	URL            string `json:"url"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Storage talks to Qdrant over its REST API. Collections use cosine
// distance; point ids are expected to be UUIDs.
type Storage struct {
	url    string
	apiKey string
	client *http.Client
}

func init() {
	vectorstore.Register("qdrant", createStorage)
}

func createStorage(args interface{}) (vectorstore.Store, error) {
	cfg := &storageConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("qdrant config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func (s *Storage) EnsureCollection(ctx context.Context, name string, dim int) error {
	if name == "" || dim <= 0 {
		return appErr.VectorStore(nil, "invalid collection %q with dimension %d", name, dim)
	}
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodGet, "/collections/"+name, nil, &info)
	if err != nil {
		return appErr.VectorStore(err, "inspect collection %q", name)
	}
	if status == http.StatusOK {
		if got := info.Result.Config.Params.Vectors.Size; got != dim {
			return appErr.VectorStore(nil, "collection %q has dimension %d, want %d", name, got, dim)
		}
		return nil
	}
	if status != http.StatusNotFound {
		return appErr.VectorStore(nil, "inspect collection %q: unexpected status %d", name, status)
	}
	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	status, err = s.do(ctx, http.MethodPut, "/collections/"+name, body, nil)
	if err != nil {
		return appErr.VectorStore(err, "create collection %q", name)
	}
	if status >= 300 {
		return appErr.VectorStore(nil, "create collection %q: unexpected status %d", name, status)
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, collection string, points []model.Point) ([]string, error) {
	if len(points) == 0 {
		return nil, appErr.VectorStore(nil, "no points to upsert")
	}
	reqPoints := make([]map[string]interface{}, 0, len(points))
	ids := make([]string, 0, len(points))
	for _, p := range points {
		reqPoints = append(reqPoints, map[string]interface{}{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload.Flatten(),
		})
		ids = append(ids, p.ID)
	}
	body := map[string]interface{}{"points": reqPoints}
	status, err := s.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body, nil)
	if err != nil {
		return nil, appErr.VectorStore(err, "upsert %d points into %q", len(points), collection)
	}
	if status >= 300 {
		return nil, appErr.VectorStore(nil, "upsert %d points into %q: unexpected status %d", len(points), collection, status)
	}
	return ids, nil
}

func (s *Storage) Search(ctx context.Context, collection string, vector []float32, opts vectorstore.SearchOptions) ([]model.SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = vectorstore.DefaultSearchLimit
	}
	body := map[string]interface{}{
		"vector":          vector,
		"limit":           limit,
		"with_payload":    true,
		"score_threshold": opts.ScoreThreshold,
	}
	if f := buildFilter(opts.Filter); f != nil {
		body["filter"] = f
	}
	var resp struct {
		Result []struct {
			ID      interface{}            `json:"id"`
			Score   float64                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body, &resp)
	if err != nil {
		return nil, appErr.VectorStore(err, "search in %q", collection)
	}
	if status == http.StatusNotFound {
		// collection never created: a valid empty result
		return nil, nil
	}
	if status >= 300 {
		return nil, appErr.VectorStore(nil, "search in %q: unexpected status %d", collection, status)
	}
	results := make([]model.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		payload := model.PayloadFromMap(r.Payload)
		results = append(results, model.SearchResult{
			ID:       fmt.Sprintf("%v", r.ID),
			Score:    r.Score,
			Text:     payload.Text,
			Metadata: metadataOf(payload),
		})
	}
	return results, nil
}

func (s *Storage) GetByID(ctx context.Context, collection, id string) (*model.Point, error) {
	var resp struct {
		Result struct {
			ID      interface{}            `json:"id"`
			Vector  []float32              `json:"vector"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodGet, "/collections/"+collection+"/points/"+id, nil, &resp)
	if err != nil {
		return nil, appErr.VectorStore(err, "get point %q from %q", id, collection)
	}
	if status == http.StatusNotFound {
		return nil, appErr.ErrNotFound
	}
	if status >= 300 {
		return nil, appErr.VectorStore(nil, "get point %q from %q: unexpected status %d", id, collection, status)
	}
	return &model.Point{
		ID:      fmt.Sprintf("%v", resp.Result.ID),
		Vector:  resp.Result.Vector,
		Payload: model.PayloadFromMap(resp.Result.Payload),
	}, nil
}

func (s *Storage) ListByDoc(ctx context.Context, collection, docID string) ([]model.Point, error) {
	var out []model.Point
	var offset interface{}
	for {
		body := map[string]interface{}{
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  false,
			"filter": map[string]interface{}{
				"must": []map[string]interface{}{
					{"key": model.PayloadKeyDocID, "match": map[string]interface{}{"value": docID}},
				},
			},
		}
		if offset != nil {
			body["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []struct {
					ID      interface{}            `json:"id"`
					Payload map[string]interface{} `json:"payload"`
				} `json:"points"`
				NextPageOffset interface{} `json:"next_page_offset"`
			} `json:"result"`
		}
		status, err := s.do(ctx, http.MethodPost, "/collections/"+collection+"/points/scroll", body, &resp)
		if err != nil {
			return nil, appErr.VectorStore(err, "scroll document %q in %q", docID, collection)
		}
		if status == http.StatusNotFound {
			return nil, nil
		}
		if status >= 300 {
			return nil, appErr.VectorStore(nil, "scroll document %q in %q: unexpected status %d", docID, collection, status)
		}
		for _, p := range resp.Result.Points {
			out = append(out, model.Point{
				ID:      fmt.Sprintf("%v", p.ID),
				Payload: model.PayloadFromMap(p.Payload),
			})
		}
		if resp.Result.NextPageOffset == nil {
			return out, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

func (s *Storage) ListCollections(ctx context.Context) ([]string, error) {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodGet, "/collections", nil, &resp)
	if err != nil {
		return nil, appErr.VectorStore(err, "list collections")
	}
	if status >= 300 {
		return nil, appErr.VectorStore(nil, "list collections: unexpected status %d", status)
	}
	names := make([]string, 0, len(resp.Result.Collections))
	for _, col := range resp.Result.Collections {
		names = append(names, col.Name)
	}
	return names, nil
}

func buildFilter(filter map[string]interface{}) map[string]interface{} {
	if len(filter) == 0 {
		return nil
	}
	must := make([]map[string]interface{}, 0, len(filter))
	for key, value := range filter {
		must = append(must, map[string]interface{}{
			"key":   key,
			"match": map[string]interface{}{"value": value},
		})
	}
	return map[string]interface{}{"must": must}
}

func metadataOf(p model.Payload) map[string]interface{} {
	meta := make(map[string]interface{}, len(p.Metadata)+2)
	for k, v := range p.Metadata {
		meta[k] = v
	}
	meta[model.PayloadKeyDocID] = p.DocID
	meta[model.PayloadKeyChunkIndex] = p.ChunkIndex
	return meta
}

// do sends one JSON request and decodes the body into out when given.
// A 404 is reported through the status code, not as an error, so the
// caller can treat missing collections as empty results.
func (s *Storage) do(ctx context.Context, method, path string, body interface{}, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.url+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
