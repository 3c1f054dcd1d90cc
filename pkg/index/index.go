package index

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/xhad/de5chat/internal/models"
	"github.com/xhad/de5chat/internal/types"
	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize = 32
	DefaultTopK      = 4
)

type BuildOptions struct {
	BatchSize int
	// EmbedRate limits embedding requests per second. Zero means unpaced.
	EmbedRate float64
	// Strict aborts the build on the first chunk that cannot be embedded.
	Strict bool
	// OnProgress is called after each batch with the number of chunks done.
	OnProgress func(done, total int)
}

// Searcher ranks stored records itself, as a database with vector support can.
type Searcher interface {
	Nearest(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error)
}

// Index is an immutable set of embedded chunks. It is safe for concurrent use.
type Index struct {
	provider types.EmbeddingProvider
	meta     models.IndexMeta
	records  []models.EmbeddingRecord
	norms    []float64
	searcher Searcher
}

// Build embeds the chunks, persists them through the store and returns the
// resulting index. A previous index in the store is replaced.
func Build(ctx context.Context, provider types.EmbeddingProvider, store types.IndexStore, chunks []models.Chunk, opts BuildOptions) (*Index, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if len(chunks) == 0 {
		return nil, &IndexBuildError{Message: "no chunks to index"}
	}

	var limiter *rate.Limiter
	if opts.EmbedRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.EmbedRate), 1)
	}

	records := make([]models.EmbeddingRecord, 0, len(chunks))
	skipped := 0

	for start := 0; start < len(chunks); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(chunks))
		batch := chunks[start:end]

		vectors, err := embedBatch(ctx, provider, limiter, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &IndexBuildError{Message: "build cancelled", Cause: ctx.Err()}
			}
			log.Printf("embedding batch %d-%d failed, retrying per chunk: %v", start, end, err)
			vectors = make([][]float32, len(batch))
			for i, chunk := range batch {
				single, err := embedBatch(ctx, provider, limiter, batch[i:i+1])
				if err != nil {
					if opts.Strict {
						return nil, &IndexBuildError{
							Message: fmt.Sprintf("failed to embed chunk %d of %s", chunk.Index, chunk.SourceURL),
							Cause:   err,
						}
					}
					log.Printf("skipping chunk %d of %s: %v", chunk.Index, chunk.SourceURL, err)
					skipped++
					continue
				}
				vectors[i] = single[0]
			}
		}

		for i, chunk := range batch {
			if vectors[i] == nil {
				continue
			}
			records = append(records, models.EmbeddingRecord{
				ChunkID:    len(records),
				ChunkIndex: chunk.Index,
				Vector:     vectors[i],
				Text:       chunk.Text,
				SourceURL:  chunk.SourceURL,
			})
		}

		if opts.OnProgress != nil {
			opts.OnProgress(end, len(chunks))
		}
	}

	if len(records) == 0 {
		return nil, &IndexBuildError{Message: fmt.Sprintf("none of %d chunks could be embedded", len(chunks))}
	}
	if skipped > 0 {
		log.Printf("indexed %d chunks, skipped %d", len(records), skipped)
	}

	dimension := len(records[0].Vector)
	for _, r := range records {
		if len(r.Vector) != dimension {
			return nil, &IndexBuildError{
				Message: fmt.Sprintf("chunk %d has dimension %d, expected %d", r.ChunkID, len(r.Vector), dimension),
			}
		}
	}

	meta := models.IndexMeta{
		Provider:  provider.ProviderID(),
		Dimension: dimension,
		Count:     len(records),
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Save(ctx, meta, records); err != nil {
		return nil, &IndexBuildError{Message: "failed to persist index", Cause: err}
	}

	return newIndex(provider, meta, records), nil
}

func embedBatch(ctx context.Context, provider types.EmbeddingProvider, limiter *rate.Limiter, batch []models.Chunk) ([][]float32, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	vectors, err := provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(batch))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("provider returned an empty vector for text %d", i)
		}
	}
	return vectors, nil
}

// Open loads a previously built index from the store.
func Open(ctx context.Context, provider types.EmbeddingProvider, store types.IndexStore) (*Index, error) {
	meta, records, err := store.Load(ctx)
	if err != nil {
		return nil, &IndexNotFoundError{Location: store.Location(), Cause: err}
	}
	if len(records) == 0 {
		return nil, &IndexNotFoundError{Location: store.Location(), Cause: errors.New("index is empty")}
	}
	for _, r := range records {
		if len(r.Vector) != meta.Dimension {
			return nil, &IndexNotFoundError{
				Location: store.Location(),
				Cause: fmt.Errorf("%w: record %d has dimension %d, expected %d",
					ErrDimensionMismatch, r.ChunkID, len(r.Vector), meta.Dimension),
			}
		}
	}
	if meta.Provider != provider.ProviderID() {
		return nil, fmt.Errorf("%w: index built with %s, configured %s",
			ErrProviderMismatch, meta.Provider, provider.ProviderID())
	}
	return newIndex(provider, meta, records), nil
}

func newIndex(provider types.EmbeddingProvider, meta models.IndexMeta, records []models.EmbeddingRecord) *Index {
	norms := make([]float64, len(records))
	for i, r := range records {
		norms[i] = norm(r.Vector)
	}
	return &Index{
		provider: provider,
		meta:     meta,
		records:  records,
		norms:    norms,
	}
}

// WithSearcher returns a copy of the index that delegates ranking to s.
func (idx *Index) WithSearcher(s Searcher) *Index {
	clone := *idx
	clone.searcher = s
	return &clone
}

func (idx *Index) Meta() models.IndexMeta {
	return idx.meta
}

func (idx *Index) Len() int {
	return len(idx.records)
}

// Query embeds text and returns the k most similar chunks, highest cosine
// similarity first. Equal scores keep indexing order.
func (idx *Index) Query(ctx context.Context, text string, k int) ([]models.ScoredChunk, error) {
	vector, err := idx.provider.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if idx.searcher != nil {
		if err := idx.checkDimension(vector); err != nil {
			return nil, err
		}
		if k <= 0 {
			k = DefaultTopK
		}
		return idx.searcher.Nearest(ctx, vector, k)
	}
	return idx.QueryVector(vector, k)
}

func (idx *Index) checkDimension(vector []float32) error {
	if len(vector) != idx.meta.Dimension {
		return fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vector), idx.meta.Dimension)
	}
	return nil
}

// QueryVector ranks the index against an already embedded query.
func (idx *Index) QueryVector(vector []float32, k int) ([]models.ScoredChunk, error) {
	if err := idx.checkDimension(vector); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = DefaultTopK
	}

	queryNorm := norm(vector)
	results := make([]models.ScoredChunk, len(idx.records))
	for i, r := range idx.records {
		results[i] = models.ScoredChunk{
			Chunk: r.Chunk(),
			Score: cosine(vector, queryNorm, r.Vector, idx.norms[i]),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, normA float64, b []float32, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
