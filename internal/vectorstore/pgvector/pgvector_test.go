package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osick/knowledge-mcp/internal/model"
	appErr "github.com/osick/knowledge-mcp/internal/pkg/errors"
	"github.com/osick/knowledge-mcp/internal/vectorstore"
	"github.com/osick/knowledge-mcp/test/testutil"
)

func setup(t *testing.T) (*Storage, string) {
	t.Helper()
	conn, closeFn := testutil.OpenTestDB(t)
	t.Cleanup(closeFn)
	t.Cleanup(func() { cleanDB(t, conn) })
	name := fmt.Sprintf("test_%d", time.Now().UnixNano())
	return NewStorage(conn), name
}

func cleanDB(t *testing.T, conn *sql.DB) {
	t.Helper()
	_, _ = conn.Exec(`DELETE FROM points`)
	_, _ = conn.Exec(`DELETE FROM collections`)
}

func testPoint(id, docID string, idx int, text string, vec []float32) model.Point {
	return model.Point{
		ID:     id,
		Vector: vec,
		Payload: model.Payload{
			DocID:      docID,
			ChunkIndex: idx,
			Text:       text,
			Metadata:   map[string]interface{}{"source": "test"},
		},
	}
}

func TestEnsureCollectionIdempotent(t *testing.T) {
	st, name := setup(t)
	ctx := context.Background()
	require.NoError(t, st.EnsureCollection(ctx, name, 3))
	require.NoError(t, st.EnsureCollection(ctx, name, 3))
	err := st.EnsureCollection(ctx, name, 4)
	require.Error(t, err)
	require.True(t, appErr.IsVectorStore(err))
}

func TestUpsertSearchRoundtrip(t *testing.T) {
	st, name := setup(t)
	ctx := context.Background()
	require.NoError(t, st.EnsureCollection(ctx, name, 3))

	ids, err := st.Upsert(ctx, name, []model.Point{
		testPoint("00000000-0000-0000-0000-000000000001", "doc-a", 0, "alpha", []float32{1, 0, 0}),
		testPoint("00000000-0000-0000-0000-000000000002", "doc-a", 1, "beta", []float32{0, 1, 0}),
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	res, err := st.Search(ctx, name, []float32{1, 0, 0}, vectorstore.SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, res)
	require.Equal(t, "00000000-0000-0000-0000-000000000001", res[0].ID)
	require.InDelta(t, 1.0, res[0].Score, 1e-6)
	require.Equal(t, "alpha", res[0].Text)
	require.Equal(t, "doc-a", res[0].Metadata[model.PayloadKeyDocID])
}

func TestUpsertReplacesExistingPoint(t *testing.T) {
	st, name := setup(t)
	ctx := context.Background()
	require.NoError(t, st.EnsureCollection(ctx, name, 2))

	id := "00000000-0000-0000-0000-000000000001"
	_, err := st.Upsert(ctx, name, []model.Point{testPoint(id, "doc-a", 0, "v1", []float32{1, 0})})
	require.NoError(t, err)
	_, err = st.Upsert(ctx, name, []model.Point{testPoint(id, "doc-a", 0, "v2", []float32{0, 1})})
	require.NoError(t, err)

	got, err := st.GetByID(ctx, name, id)
	require.NoError(t, err)
	require.Equal(t, "v2", got.Payload.Text)
}

func TestSearchFilterAndThreshold(t *testing.T) {
	st, name := setup(t)
	ctx := context.Background()
	require.NoError(t, st.EnsureCollection(ctx, name, 2))

	_, err := st.Upsert(ctx, name, []model.Point{
		testPoint("00000000-0000-0000-0000-000000000001", "doc-a", 0, "alpha", []float32{1, 0}),
		testPoint("00000000-0000-0000-0000-000000000002", "doc-b", 0, "beta", []float32{0.9, 0.1}),
	})
	require.NoError(t, err)

	res, err := st.Search(ctx, name, []float32{1, 0}, vectorstore.SearchOptions{
		Limit:  5,
		Filter: map[string]interface{}{model.PayloadKeyDocID: "doc-b"},
	})
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, "beta", res[0].Text)

	res, err = st.Search(ctx, name, []float32{0, 1}, vectorstore.SearchOptions{Limit: 5, ScoreThreshold: 0.9})
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestSearchMissingCollectionIsEmpty(t *testing.T) {
	st, _ := setup(t)
	res, err := st.Search(context.Background(), "never_created", []float32{1, 0}, vectorstore.SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestGetByIDNotFound(t *testing.T) {
	st, name := setup(t)
	ctx := context.Background()
	require.NoError(t, st.EnsureCollection(ctx, name, 2))
	_, err := st.GetByID(ctx, name, "00000000-0000-0000-0000-00000000dead")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestListByDocOrdersByChunkIndex(t *testing.T) {
	st, name := setup(t)
	ctx := context.Background()
	require.NoError(t, st.EnsureCollection(ctx, name, 2))

	_, err := st.Upsert(ctx, name, []model.Point{
		testPoint("00000000-0000-0000-0000-000000000002", "doc-a", 1, "second", []float32{0, 1}),
		testPoint("00000000-0000-0000-0000-000000000001", "doc-a", 0, "first", []float32{1, 0}),
	})
	require.NoError(t, err)

	pts, err := st.ListByDoc(ctx, name, "doc-a")
	require.NoError(t, err)
	require.Len(t, pts, 2)
	require.Equal(t, 0, pts[0].Payload.ChunkIndex)
	require.Equal(t, 1, pts[1].Payload.ChunkIndex)
}

func TestListCollections(t *testing.T) {
	st, name := setup(t)
	ctx := context.Background()
	require.NoError(t, st.EnsureCollection(ctx, name, 2))
	names, err := st.ListCollections(ctx)
	require.NoError(t, err)
	require.Contains(t, names, name)
}
