package index_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/de5chat/internal/models"
	"github.com/xhad/de5chat/pkg/index"
	"github.com/xhad/de5chat/pkg/store"
)

// letterEmbedder maps text to letter frequencies. Texts listed in fail cannot
// be embedded and batches containing them fail as a whole.
type letterEmbedder struct {
	id    string
	fail  map[string]bool
	mu    sync.Mutex
	calls int
}

func (e *letterEmbedder) ProviderID() string {
	if e.id == "" {
		return "fake:letters"
	}
	return e.id
}

func (e *letterEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if e.fail[text] {
			return nil, errors.New("provider rejected input")
		}
		vectors[i] = letters(text)
	}
	return vectors, nil
}

func (e *letterEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return letters(text), nil
}

func letters(text string) []float32 {
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}

// memoryStore keeps the saved index in memory.
type memoryStore struct {
	meta    models.IndexMeta
	records []models.EmbeddingRecord
	saves   int
	saveErr error
}

func (s *memoryStore) Save(_ context.Context, meta models.IndexMeta, records []models.EmbeddingRecord) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.meta = meta
	s.records = append([]models.EmbeddingRecord(nil), records...)
	return nil
}

func (s *memoryStore) Load(context.Context) (models.IndexMeta, []models.EmbeddingRecord, error) {
	if s.saves == 0 {
		return models.IndexMeta{}, nil, store.ErrNotFound
	}
	return s.meta, s.records, nil
}

func (s *memoryStore) Location() string { return "memory" }
func (s *memoryStore) Close() error     { return nil }

var testChunks = []models.Chunk{
	{Text: "tokenization of real world assets", SourceURL: "https://de5.tech/"},
	{Text: "liquidity for small businesses", SourceURL: "https://de5.tech/about"},
	{Text: "zebra quiz jukebox", SourceURL: "https://de5.tech/misc"},
	{Text: "contact the team by email", SourceURL: "https://de5.tech/contact"},
}

func TestBuildAndQuerySelfSimilarity(t *testing.T) {
	ctx := context.Background()
	idx, err := index.Build(ctx, &letterEmbedder{}, &memoryStore{}, testChunks, index.BuildOptions{BatchSize: 3})
	require.NoError(t, err)
	assert.Equal(t, len(testChunks), idx.Len())
	assert.Equal(t, 26, idx.Meta().Dimension)
	assert.Equal(t, "fake:letters", idx.Meta().Provider)

	for _, chunk := range testChunks {
		results, err := idx.Query(ctx, chunk.Text, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, chunk.Text, results[0].Text)
		assert.Equal(t, chunk.SourceURL, results[0].SourceURL)
		assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	}
}

func TestQueryTopK(t *testing.T) {
	ctx := context.Background()
	idx, err := index.Build(ctx, &letterEmbedder{}, &memoryStore{}, testChunks, index.BuildOptions{})
	require.NoError(t, err)

	results, err := idx.Query(ctx, "tokenization", 0)
	require.NoError(t, err)
	assert.Len(t, results, index.DefaultTopK)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	results, err = idx.Query(ctx, "tokenization", 100)
	require.NoError(t, err)
	assert.Len(t, results, len(testChunks))
}

func TestQueryTiesKeepInsertionOrder(t *testing.T) {
	chunks := []models.Chunk{
		{Text: "abc", SourceURL: "first"},
		{Text: "xyz", SourceURL: "other"},
		{Text: "cab", SourceURL: "second"},
		{Text: "bca", SourceURL: "third"},
	}
	idx, err := index.Build(context.Background(), &letterEmbedder{}, &memoryStore{}, chunks, index.BuildOptions{})
	require.NoError(t, err)

	results, err := idx.Query(context.Background(), "abc", 3)
	require.NoError(t, err)
	assert.Equal(t, "first", results[0].SourceURL)
	assert.Equal(t, "second", results[1].SourceURL)
	assert.Equal(t, "third", results[2].SourceURL)
}

func TestQueryDimensionMismatch(t *testing.T) {
	idx, err := index.Build(context.Background(), &letterEmbedder{}, &memoryStore{}, testChunks, index.BuildOptions{})
	require.NoError(t, err)

	_, err = idx.QueryVector([]float32{1, 2, 3}, 1)
	assert.ErrorIs(t, err, index.ErrDimensionMismatch)
}

func TestBuildSkipsFailedChunks(t *testing.T) {
	embedder := &letterEmbedder{fail: map[string]bool{testChunks[1].Text: true}}
	ms := &memoryStore{}

	var progress [][2]int
	idx, err := index.Build(context.Background(), embedder, ms, testChunks, index.BuildOptions{
		BatchSize: 2,
		OnProgress: func(done, total int) {
			progress = append(progress, [2]int{done, total})
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, [][2]int{{2, 4}, {4, 4}}, progress)

	for i, r := range ms.records {
		assert.Equal(t, i, r.ChunkID)
		assert.NotEqual(t, testChunks[1].Text, r.Text)
	}
}

func TestBuildStrictAborts(t *testing.T) {
	embedder := &letterEmbedder{fail: map[string]bool{testChunks[2].Text: true}}
	ms := &memoryStore{}

	_, err := index.Build(context.Background(), embedder, ms, testChunks, index.BuildOptions{Strict: true})
	var buildErr *index.IndexBuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, 0, ms.saves)
}

func TestBuildErrors(t *testing.T) {
	_, err := index.Build(context.Background(), &letterEmbedder{}, &memoryStore{}, nil, index.BuildOptions{})
	var buildErr *index.IndexBuildError
	assert.ErrorAs(t, err, &buildErr)

	all := map[string]bool{}
	for _, c := range testChunks {
		all[c.Text] = true
	}
	_, err = index.Build(context.Background(), &letterEmbedder{fail: all}, &memoryStore{}, testChunks, index.BuildOptions{})
	assert.ErrorAs(t, err, &buildErr)

	saveErr := errors.New("disk full")
	_, err = index.Build(context.Background(), &letterEmbedder{}, &memoryStore{saveErr: saveErr}, testChunks, index.BuildOptions{})
	assert.ErrorAs(t, err, &buildErr)
	assert.ErrorIs(t, err, saveErr)
}

func TestBuildWithEmbedRate(t *testing.T) {
	embedder := &letterEmbedder{}
	_, err := index.Build(context.Background(), embedder, &memoryStore{}, testChunks, index.BuildOptions{
		BatchSize: 1,
		EmbedRate: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, len(testChunks), embedder.calls)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	_, err := index.Open(ctx, &letterEmbedder{}, &memoryStore{})
	var notFound *index.IndexNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.ErrorIs(t, err, store.ErrNotFound)

	ms := &memoryStore{}
	_, err = index.Build(ctx, &letterEmbedder{}, ms, testChunks, index.BuildOptions{})
	require.NoError(t, err)

	_, err = index.Open(ctx, &letterEmbedder{id: "other:model"}, ms)
	assert.ErrorIs(t, err, index.ErrProviderMismatch)
}

func TestOpenRejectsMixedDimensions(t *testing.T) {
	ms := &memoryStore{
		meta: models.IndexMeta{Provider: "fake:letters", Dimension: 3, Count: 2},
		records: []models.EmbeddingRecord{
			{ChunkID: 0, Vector: []float32{1, 0, 0}, Text: "a"},
			{ChunkID: 1, Vector: []float32{1}, Text: "b"},
		},
		saves: 1,
	}

	_, err := index.Open(context.Background(), &letterEmbedder{}, ms)
	var notFound *index.IndexNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.ErrorIs(t, err, index.ErrDimensionMismatch)
}

func TestOpenAfterBuildSQLite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	embedder := &letterEmbedder{}

	s := store.NewSQLiteStore(store.SQLiteConfig{Dir: dir})
	built, err := index.Build(ctx, embedder, s, testChunks, index.BuildOptions{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// rebuilding over the same location is idempotent
	s = store.NewSQLiteStore(store.SQLiteConfig{Dir: dir})
	_, err = index.Build(ctx, embedder, s, testChunks, index.BuildOptions{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = store.NewSQLiteStore(store.SQLiteConfig{Dir: dir})
	defer s.Close()
	opened, err := index.Open(ctx, embedder, s)
	require.NoError(t, err)
	assert.Equal(t, built.Len(), opened.Len())

	for _, query := range []string{"assets", "email the team", "jukebox"} {
		want, err := built.Query(ctx, query, 4)
		require.NoError(t, err)
		got, err := opened.Query(ctx, query, 4)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestQueryReportsChunkIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	chunks := []models.Chunk{
		{Text: "tokenization of real world assets", SourceURL: "https://de5.tech/", Index: 0},
		{Text: "zebra quiz jukebox", SourceURL: "https://de5.tech/", Index: 1},
	}

	s := store.NewSQLiteStore(store.SQLiteConfig{Dir: dir})
	defer s.Close()
	_, err := index.Build(ctx, &letterEmbedder{}, s, chunks, index.BuildOptions{})
	require.NoError(t, err)

	opened, err := index.Open(ctx, &letterEmbedder{}, s)
	require.NoError(t, err)
	results, err := opened.Query(ctx, "zebra quiz jukebox", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, chunks[1], results[0].Chunk)
}

type fakeSearcher struct {
	gotK int
}

func (s *fakeSearcher) Nearest(_ context.Context, _ []float32, k int) ([]models.ScoredChunk, error) {
	s.gotK = k
	return []models.ScoredChunk{{Chunk: models.Chunk{Text: "from database"}, Score: 0.5}}, nil
}

func TestQueryWithSearcher(t *testing.T) {
	idx, err := index.Build(context.Background(), &letterEmbedder{}, &memoryStore{}, testChunks, index.BuildOptions{})
	require.NoError(t, err)

	searcher := &fakeSearcher{}
	delegated := idx.WithSearcher(searcher)

	results, err := delegated.Query(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Equal(t, index.DefaultTopK, searcher.gotK)
	require.Len(t, results, 1)
	assert.Equal(t, "from database", results[0].Text)

	// the original index still ranks in memory
	results, err = idx.Query(context.Background(), testChunks[0].Text, 1)
	require.NoError(t, err)
	assert.Equal(t, testChunks[0].Text, results[0].Text)
}
