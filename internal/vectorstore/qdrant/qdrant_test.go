package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osick/knowledge-mcp/internal/model"
	appErr "github.com/osick/knowledge-mcp/internal/pkg/errors"
	"github.com/osick/knowledge-mcp/internal/vectorstore"
)

func newStorage(t *testing.T, handler http.Handler) (*Storage, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	st, err := createStorage(map[string]interface{}{
		"url":     srv.URL,
		"api_key": "secret",
	})
	require.NoError(t, err)
	return st.(*Storage), srv
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestEnsureCollectionCreatesWhenMissing(t *testing.T) {
	var created map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections/docs", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret", r.Header.Get("api-key"))
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("PUT /collections/docs", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		writeJSON(w, http.StatusOK, map[string]interface{}{"result": true})
	})
	st, _ := newStorage(t, mux)

	require.NoError(t, st.EnsureCollection(context.Background(), "docs", 4))
	vectors, ok := created["vectors"].(map[string]interface{})
	require.True(t, ok)
	require.EqualValues(t, 4, vectors["size"])
	require.Equal(t, "Cosine", vectors["distance"])
}

func TestEnsureCollectionDimensionMismatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections/docs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"result": map[string]interface{}{
				"config": map[string]interface{}{
					"params": map[string]interface{}{
						"vectors": map[string]interface{}{"size": 8},
					},
				},
			},
		})
	})
	st, _ := newStorage(t, mux)

	err := st.EnsureCollection(context.Background(), "docs", 4)
	require.Error(t, err)
	require.True(t, appErr.IsVectorStore(err))
}

func TestUpsertSendsFlattenedPayload(t *testing.T) {
	var req struct {
		Points []struct {
			ID      string                 `json:"id"`
			Vector  []float32              `json:"vector"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"points"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /collections/docs/points", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "true", r.URL.Query().Get("wait"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusOK, map[string]interface{}{"result": map[string]interface{}{"status": "acknowledged"}})
	})
	st, _ := newStorage(t, mux)

	ids, err := st.Upsert(context.Background(), "docs", []model.Point{
		{
			ID:     "p1",
			Vector: []float32{1, 0},
			Payload: model.Payload{
				DocID:      "doc-a",
				ChunkIndex: 2,
				Text:       "hello",
				Metadata:   map[string]interface{}{"source": "notes.md"},
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"p1"}, ids)
	require.Len(t, req.Points, 1)
	require.Equal(t, "doc-a", req.Points[0].Payload[model.PayloadKeyDocID])
	require.EqualValues(t, 2, req.Points[0].Payload[model.PayloadKeyChunkIndex])
	require.Equal(t, "hello", req.Points[0].Payload[model.PayloadKeyText])
	require.Equal(t, "notes.md", req.Points[0].Payload["source"])
}

func TestSearchDecodesResultsAndFilter(t *testing.T) {
	var req map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /collections/docs/points/search", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"result": []map[string]interface{}{
				{
					"id":    "p1",
					"score": 0.93,
					"payload": map[string]interface{}{
						model.PayloadKeyDocID:      "doc-a",
						model.PayloadKeyChunkIndex: 0,
						model.PayloadKeyText:       "hello",
						"source":                   "notes.md",
					},
				},
			},
		})
	})
	st, _ := newStorage(t, mux)

	res, err := st.Search(context.Background(), "docs", []float32{1, 0}, vectorstore.SearchOptions{
		Limit:          3,
		ScoreThreshold: 0.5,
		Filter:         map[string]interface{}{model.PayloadKeyDocID: "doc-a"},
	})
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, "p1", res[0].ID)
	require.InDelta(t, 0.93, res[0].Score, 1e-9)
	require.Equal(t, "hello", res[0].Text)
	require.Equal(t, "doc-a", res[0].Metadata[model.PayloadKeyDocID])
	require.Equal(t, "notes.md", res[0].Metadata["source"])

	require.EqualValues(t, 3, req["limit"])
	require.EqualValues(t, 0.5, req["score_threshold"])
	filter, ok := req["filter"].(map[string]interface{})
	require.True(t, ok)
	must, ok := filter["must"].([]interface{})
	require.True(t, ok)
	require.Len(t, must, 1)
}

func TestSearchMissingCollectionIsEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /collections/ghost/points/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	st, _ := newStorage(t, mux)

	res, err := st.Search(context.Background(), "ghost", []float32{1}, vectorstore.SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestSearchServerErrorSurfaces(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /collections/docs/points/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	st, _ := newStorage(t, mux)

	_, err := st.Search(context.Background(), "docs", []float32{1}, vectorstore.SearchOptions{Limit: 5})
	require.Error(t, err)
	require.True(t, appErr.IsVectorStore(err))
}

func TestGetByIDNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections/docs/points/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	st, _ := newStorage(t, mux)

	_, err := st.GetByID(context.Background(), "docs", "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestListByDocScrollsAllPages(t *testing.T) {
	page := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /collections/docs/points/scroll", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		page++
		switch page {
		case 1:
			require.Nil(t, req["offset"])
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"result": map[string]interface{}{
					"points": []map[string]interface{}{
						{"id": "p1", "payload": map[string]interface{}{model.PayloadKeyDocID: "doc-a", model.PayloadKeyChunkIndex: 0, model.PayloadKeyText: "a"}},
					},
					"next_page_offset": "p1",
				},
			})
		case 2:
			require.Equal(t, "p1", req["offset"])
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"result": map[string]interface{}{
					"points": []map[string]interface{}{
						{"id": "p2", "payload": map[string]interface{}{model.PayloadKeyDocID: "doc-a", model.PayloadKeyChunkIndex: 1, model.PayloadKeyText: "b"}},
					},
					"next_page_offset": nil,
				},
			})
		default:
			t.Fatalf("unexpected page %d", page)
		}
	})
	st, _ := newStorage(t, mux)

	pts, err := st.ListByDoc(context.Background(), "docs", "doc-a")
	require.NoError(t, err)
	require.Len(t, pts, 2)
	require.Equal(t, "p1", pts[0].ID)
	require.Equal(t, 0, pts[0].Payload.ChunkIndex)
	require.Equal(t, "p2", pts[1].ID)
	require.Equal(t, 1, pts[1].Payload.ChunkIndex)
	require.Equal(t, 2, page)
}

func TestListCollections(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"result": map[string]interface{}{
				"collections": []map[string]interface{}{{"name": "docs"}, {"name": "wiki"}},
			},
		})
	})
	st, _ := newStorage(t, mux)

	names, err := st.ListCollections(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"docs", "wiki"}, names)
}

func TestCreateStorageRequiresURL(t *testing.T) {
	_, err := createStorage(map[string]interface{}{})
	require.Error(t, err)
	_, err = createStorage(nil)
	require.Error(t, err)
	st, err := createStorage(map[string]interface{}{"url": "http://localhost:6333/"})
	require.NoError(t, err)
	require.Equal(t, "http://localhost:6333", st.(*Storage).url)
}
