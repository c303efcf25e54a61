package rag

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rathore/earnings-agent/docs"
)

// IndexerConfig holds configuration for the indexer
type IndexerConfig struct {
	ChunkSize int // Max chunk size for text
	BatchSize int // Chunks per embedding request
	MinChunk  int // Shorter chunks are skipped
}

// DefaultConfig returns default indexer configuration
func DefaultConfig() IndexerConfig {
	return IndexerConfig{
		ChunkSize: 500,
		BatchSize: 10,
		MinChunk:  20,
	}
}

// Indexer embeds report chunks into a vector store
type Indexer struct {
	config   IndexerConfig
	embedder Embedder
	store    *VectorStore
	loader   *docs.Loader
	log      zerolog.Logger

	mu      sync.Mutex
	indexed bool
}

// NewIndexer creates a new indexer
func NewIndexer(config IndexerConfig, loader *docs.Loader, embedder Embedder, log zerolog.Logger) *Indexer {
	def := DefaultConfig()
	if config.ChunkSize <= 0 {
		config.ChunkSize = def.ChunkSize
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.MinChunk <= 0 {
		config.MinChunk = def.MinChunk
	}
	return &Indexer{
		config:   config,
		embedder: embedder,
		store:    NewVectorStore(),
		loader:   loader,
		log:      log,
	}
}

// Index performs full re-indexing of the report directory
func (idx *Indexer) Index(ctx context.Context) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.index(ctx)
}

// EnsureIndexed indexes once; a failed attempt is retried on the next call
func (idx *Indexer) EnsureIndexed(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.indexed {
		return nil
	}
	_, err := idx.index(ctx)
	return err
}

func (idx *Indexer) index(ctx context.Context) (int, error) {
	reports, err := idx.loader.LoadAll()
	if err != nil {
		return 0, fmt.Errorf("failed to load reports: %w", err)
	}
	idx.log.Info().Int("reports", len(reports)).Msg("indexing reports")

	var allDocs []Document
	for _, report := range reports {
		for _, block := range report.Blocks {
			for _, text := range docs.ChunkText(block.Content, idx.config.ChunkSize) {
				if len(text) < idx.config.MinChunk {
					continue
				}
				allDocs = append(allDocs, Document{
					ID:      generateDocID(report.Path, text),
					Content: text,
					Metadata: map[string]string{
						"title":      report.Title,
						"file_path":  report.Path,
						"chunk_type": block.Type,
					},
				})
			}
		}
	}

	for i := 0; i < len(allDocs); i += idx.config.BatchSize {
		end := min(i+idx.config.BatchSize, len(allDocs))
		batch := allDocs[i:end]
		texts := make([]string, len(batch))
		for j, doc := range batch {
			texts[j] = doc.Content
		}

		vectors, err := idx.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("failed to embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return 0, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
		}
		for j := range batch {
			allDocs[i+j].Vector = vectors[j]
		}
		idx.log.Debug().Msgf("Embedded %d/%d chunks", end, len(allDocs))
	}

	idx.store.Reset()
	idx.store.Upsert(allDocs)
	idx.indexed = true
	idx.log.Info().Int("chunks", idx.store.Count()).Msg("indexing complete")
	return idx.store.Count(), nil
}

// Search indexes on first use and returns the chunks closest to query
func (idx *Indexer) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	if err := idx.EnsureIndexed(ctx); err != nil {
		return nil, err
	}
	vec, err := idx.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return idx.store.Search(vec, limit), nil
}

// Store returns the vector store for querying
func (idx *Indexer) Store() *VectorStore {
	return idx.store
}

// generateDocID creates a stable ID for a chunk (UUID v5)
func generateDocID(path, content string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(path+content)).String()
}
