package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/osick/knowledge-mcp/internal/db"
	"github.com/osick/knowledge-mcp/internal/model"
	"github.com/osick/knowledge-mcp/internal/pkg/dbutil"
	appErr "github.com/osick/knowledge-mcp/internal/pkg/errors"
	"github.com/osick/knowledge-mcp/internal/vectorstore"
)

// Storage keeps points in a single Postgres table with a pgvector
// column; collections are rows in a side table that pin the dimension.
// Cosine distance is computed with the <=> operator.
type Storage struct {
	conn *sql.DB
}

func init() {
	vectorstore.Register("pgvector", createStorage)
}

func createStorage(args interface{}) (vectorstore.Store, error) {
	cfg := db.Config{}
	if err := decodeConfig(args, &cfg); err != nil {
		return nil, err
	}
	conn, err := db.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.ApplyMigrations(conn); err != nil {
		return nil, err
	}
	return NewStorage(conn), nil
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return appErr.VectorStore(nil, "pgvector config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func NewStorage(conn *sql.DB) *Storage {
	return &Storage{conn: conn}
}

func (s *Storage) EnsureCollection(ctx context.Context, name string, dim int) error {
	if name == "" || dim <= 0 {
		return appErr.VectorStore(nil, "invalid collection %q with dimension %d", name, dim)
	}
	data := map[string]interface{}{
		"name":  name,
		"dim":   dim,
		"ctime": time.Now().UnixMilli(),
	}
	sqlStr, args, err := builder.BuildInsert("collections", []map[string]interface{}{data})
	if err != nil {
		return appErr.VectorStore(err, "build collection insert")
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	sqlStr += " ON CONFLICT (name) DO NOTHING"
	if _, err := s.conn.ExecContext(ctx, sqlStr, args...); err != nil {
		return appErr.VectorStore(err, "create collection %q", name)
	}
	var got int
	row := s.conn.QueryRowContext(ctx, `SELECT dim FROM collections WHERE name = $1`, name)
	if err := row.Scan(&got); err != nil {
		return appErr.VectorStore(err, "inspect collection %q", name)
	}
	if got != dim {
		return appErr.VectorStore(nil, "collection %q has dimension %d, want %d", name, got, dim)
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, collection string, points []model.Point) ([]string, error) {
	if len(points) == 0 {
		return nil, appErr.VectorStore(nil, "no points to upsert")
	}
	dim, ok, err := s.collectionDim(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErr.VectorStore(nil, "collection %q does not exist", collection)
	}
	for _, p := range points {
		if len(p.Vector) != dim {
			return nil, appErr.VectorStore(nil, "vector dimension %d does not match collection %q dimension %d", len(p.Vector), collection, dim)
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, appErr.VectorStore(err, "begin upsert into %q", collection)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO points (id, collection, doc_id, chunk_index, embedding, payload, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			payload = EXCLUDED.payload,
			ctime = EXCLUDED.ctime
	`
	now := time.Now().UnixMilli()
	ids := make([]string, 0, len(points))
	for _, p := range points {
		payload, err := json.Marshal(p.Payload.Flatten())
		if err != nil {
			return nil, appErr.VectorStore(err, "encode payload for point %q", p.ID)
		}
		if _, err := tx.ExecContext(ctx, query,
			p.ID,
			collection,
			p.Payload.DocID,
			p.Payload.ChunkIndex,
			pgvector.NewVector(p.Vector),
			payload,
			now,
		); err != nil {
			return nil, appErr.VectorStore(err, "upsert point %q into %q", p.ID, collection)
		}
		ids = append(ids, p.ID)
	}
	if err := tx.Commit(); err != nil {
		return nil, appErr.VectorStore(err, "commit upsert of %d points into %q", len(points), collection)
	}
	return ids, nil
}

func (s *Storage) Search(ctx context.Context, collection string, vector []float32, opts vectorstore.SearchOptions) ([]model.SearchResult, error) {
	_, ok, err := s.collectionDim(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = vectorstore.DefaultSearchLimit
	}
	query := `
		SELECT id, payload, 1 - (embedding <=> $1) AS score
		FROM points
		WHERE collection = $2 AND 1 - (embedding <=> $1) >= $3
	`
	args := []interface{}{pgvector.NewVector(vector), collection, opts.ScoreThreshold}
	if len(opts.Filter) > 0 {
		filterJSON, err := json.Marshal(opts.Filter)
		if err != nil {
			return nil, appErr.VectorStore(err, "encode search filter")
		}
		query += ` AND payload @> $4`
		args = append(args, filterJSON)
	}
	query += ` ORDER BY embedding <=> $1 LIMIT ` + strconv.Itoa(limit)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, appErr.VectorStore(err, "search in %q", collection)
	}
	defer rows.Close()

	var results []model.SearchResult
	for rows.Next() {
		var id string
		var payloadRaw []byte
		var score float64
		if err := rows.Scan(&id, &payloadRaw, &score); err != nil {
			return nil, appErr.VectorStore(err, "scan search row")
		}
		var flat map[string]interface{}
		if err := json.Unmarshal(payloadRaw, &flat); err != nil {
			return nil, appErr.VectorStore(err, "decode payload of point %q", id)
		}
		payload := model.PayloadFromMap(flat)
		results = append(results, model.SearchResult{
			ID:       id,
			Score:    score,
			Text:     payload.Text,
			Metadata: metadataOf(payload),
		})
	}
	return results, rows.Err()
}

func (s *Storage) GetByID(ctx context.Context, collection, id string) (*model.Point, error) {
	const query = `SELECT id, embedding, payload FROM points WHERE collection = $1 AND id = $2`
	row := s.conn.QueryRowContext(ctx, query, collection, id)
	var pointID string
	var embedding pgvector.Vector
	var payloadRaw []byte
	if err := row.Scan(&pointID, &embedding, &payloadRaw); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, appErr.VectorStore(err, "get point %q from %q", id, collection)
	}
	var flat map[string]interface{}
	if err := json.Unmarshal(payloadRaw, &flat); err != nil {
		return nil, appErr.VectorStore(err, "decode payload of point %q", id)
	}
	return &model.Point{
		ID:      pointID,
		Vector:  embedding.Slice(),
		Payload: model.PayloadFromMap(flat),
	}, nil
}

func (s *Storage) ListByDoc(ctx context.Context, collection, docID string) ([]model.Point, error) {
	const query = `
		SELECT id, payload
		FROM points
		WHERE collection = $1 AND doc_id = $2
		ORDER BY chunk_index
	`
	rows, err := s.conn.QueryContext(ctx, query, collection, docID)
	if err != nil {
		return nil, appErr.VectorStore(err, "list document %q in %q", docID, collection)
	}
	defer rows.Close()
	var out []model.Point
	for rows.Next() {
		var id string
		var payloadRaw []byte
		if err := rows.Scan(&id, &payloadRaw); err != nil {
			return nil, appErr.VectorStore(err, "scan document row")
		}
		var flat map[string]interface{}
		if err := json.Unmarshal(payloadRaw, &flat); err != nil {
			return nil, appErr.VectorStore(err, "decode payload of point %q", id)
		}
		out = append(out, model.Point{ID: id, Payload: model.PayloadFromMap(flat)})
	}
	return out, rows.Err()
}

func (s *Storage) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT name FROM collections ORDER BY name`)
	if err != nil {
		return nil, appErr.VectorStore(err, "list collections")
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, appErr.VectorStore(err, "scan collection name")
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Storage) collectionDim(ctx context.Context, name string) (int, bool, error) {
	var dim int
	row := s.conn.QueryRowContext(ctx, `SELECT dim FROM collections WHERE name = $1`, name)
	if err := row.Scan(&dim); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, appErr.VectorStore(err, "inspect collection %q", name)
	}
	return dim, true, nil
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
