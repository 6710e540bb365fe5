package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ragpipe-go/internal/rag"
)

// payload keys reserved by the store. Everything else in a record's metadata
// is passed through as additional payload fields.
const (
	payloadChunkID    = "chunk_id"
	payloadDocumentID = "document_id"
	payloadChunkIndex = "chunk_index"
	payloadContent    = "content"
	payloadUserID     = "user_id"
)

// chunkIDNamespace maps human-readable chunk IDs onto the UUID point IDs
// Qdrant requires. The namespace is fixed so the mapping is deterministic.
var chunkIDNamespace = uuid.MustParse("8a9e6f24-40cf-4be1-9c4c-3e3a67e9f1d2")

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements rag.VectorStore backed by a Qdrant instance.
// Qdrant performs approximate nearest-neighbour search: ordering and filter
// correctness are guaranteed, exhaustive recall is not.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use store.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		return nil, rag.NewConfigError("vectorstore", "qdrant requires a collection name")
	}
	if cfg.VectorSize == 0 {
		return nil, rag.NewConfigError("vectorstore", "qdrant requires a vector size")
	}

	clientCfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}

	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// pointID maps a chunk ID onto its deterministic Qdrant UUID point ID.
func pointID(chunkID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(chunkIDNamespace, []byte(chunkID)).String())
}

// Upsert stores or replaces records by ID (Qdrant upserts points in place).
func (s *QdrantStore) Upsert(ctx context.Context, records []rag.VectorRecord) error {
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		if uint64(len(r.Embedding)) != s.cfg.VectorSize {
			return fmt.Errorf("qdrant: record %s has dimension %d, collection expects %d", r.ID, len(r.Embedding), s.cfg.VectorSize)
		}
		payload := map[string]interface{}{
			payloadChunkID:    r.ID,
			payloadDocumentID: r.DocumentID,
			payloadChunkIndex: int64(r.ChunkIndex),
			payloadContent:    r.Content,
		}
		for k, v := range r.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      pointID(r.ID),
			Vectors: qdrant.NewVectors(r.Embedding...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// buildFilter translates a rag.Filter into Qdrant match conditions.
func buildFilter(filter rag.Filter) *qdrant.Filter {
	var must []*qdrant.Condition
	if filter.UserID != "" {
		must = append(must, qdrant.NewMatch(payloadUserID, filter.UserID))
	}
	if len(filter.DocumentIDs) > 0 {
		must = append(must, qdrant.NewMatchKeywords(payloadDocumentID, filter.DocumentIDs...))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// Search performs a cosine similarity search and returns the top-k results
// matching the filter, best first.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int, filter rag.Filter) ([]rag.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	out := make([]rag.SearchResult, 0, len(results))
	for _, r := range results {
		record := rag.VectorRecord{Metadata: make(map[string]string)}
		if p := r.Payload; p != nil {
			for k, v := range p {
				switch k {
				case payloadChunkID:
					record.ID = v.GetStringValue()
				case payloadDocumentID:
					record.DocumentID = v.GetStringValue()
				case payloadChunkIndex:
					record.ChunkIndex = int(v.GetIntegerValue())
				case payloadContent:
					record.Content = v.GetStringValue()
				default:
					record.Metadata[k] = v.GetStringValue()
				}
			}
		}
		out = append(out, rag.SearchResult{Record: record, Score: r.Score})
	}

	return out, nil
}

// Delete removes every record owned by the document using a filter
// selector, so the operation covers arbitrarily many chunks in one call.
func (s *QdrantStore) Delete(ctx context.Context, documentID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadDocumentID, documentID)},
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete document %s failed: %w", documentID, err)
	}
	return nil
}

// DeleteChunk removes a single record by its chunk ID.
func (s *QdrantStore) DeleteChunk(ctx context.Context, chunkID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointID(chunkID)),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete chunk %s failed: %w", chunkID, err)
	}
	return nil
}

// Stats reports the exact point count and configured dimension.
func (s *QdrantStore) Stats(ctx context.Context) (rag.StoreStats, error) {
	exact := true
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          &exact,
	})
	if err != nil {
		return rag.StoreStats{}, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return rag.StoreStats{TotalVectors: int(count), Dimension: int(s.cfg.VectorSize)}, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
