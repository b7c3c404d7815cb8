package rag

import (
	"context"
	"database/sql"
	"hash/fnv"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/roofdocs/nexus/internal/config"
)

func TestVectorRoundTrip(t *testing.T) {
	v := []float32{0.25, -1.5, 3.75, 0}
	decoded, err := DecodeVector(EncodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, decoded)

	_, err = DecodeVector([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	assert.InDelta(t, 1.0, CosineSimilarity(a, []float32{2, 0, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity(a, []float32{0, 1, 0}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity(a, []float32{-1, 0, 0}), 1e-9)

	// Mismatched lengths and zero vectors are 0, not NaN.
	assert.Equal(t, 0.0, CosineSimilarity(a, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0, 0}, a))
}

func TestChunkTextShort(t *testing.T) {
	assert.Nil(t, ChunkText("   "))
	chunks := ChunkText("A short paragraph.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "A short paragraph.", chunks[0])
}

func TestChunkTextLong(t *testing.T) {
	sentence := "The ridge cap shingles must be installed per manufacturer instructions. "
	text := strings.Repeat(sentence, 60) // ~4300 chars

	chunks := ChunkText(text)
	require.Greater(t, len(chunks), 2)

	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), chunkSize)
		assert.NotEmpty(t, c)
	}

	// Breaks land on sentence boundaries when one is available.
	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(c, "."), "chunk should end at a sentence: %q", c[len(c)-20:])
	}
}

func TestKnowledgeText(t *testing.T) {
	assert.Equal(t, "Title: Drip Edge\n\nContent: Required by IRC R905.2.8.5.",
		KnowledgeText("Drip Edge", "Required by IRC R905.2.8.5."))
}

func TestTruncateInput(t *testing.T) {
	long := strings.Repeat("x", maxInputChars+100)
	assert.Len(t, truncateInput(long), maxInputChars)
	assert.Equal(t, "short", truncateInput("short"))
}

// fakeEmbedder maps each text to a deterministic unit-ish vector so related
// strings produce identical embeddings.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, txt := range texts {
		v := make([]float32, 64)
		for _, word := range strings.Fields(strings.ToLower(txt)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(word))
			v[h.Sum32()%64] += 1
		}
		out[i] = v
	}
	return out, nil
}

func newTestSystem(t *testing.T) *System {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Features.EnableRAG = true

	database, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	_, err = database.Exec(`CREATE TABLE knowledge_entries (
		id TEXT PRIMARY KEY, title TEXT NOT NULL, content TEXT NOT NULL,
		category TEXT NOT NULL, source TEXT, tags TEXT NOT NULL DEFAULT '[]',
		embedding BLOB, created_at TIMESTAMP NOT NULL)`)
	require.NoError(t, err)

	s := NewSystem(cfg, database)
	s.embedder = fakeEmbedder{}
	return s
}

func TestSystemAddAndSearch(t *testing.T) {
	s := newTestSystem(t)
	ctx := context.Background()

	_, err := s.AddEntry(ctx, "Hail damage assessment", "hail bruising granule loss inspection",
		"damage", "NEXUS field guide", []string{"hail"})
	require.NoError(t, err)
	_, err = s.AddEntry(ctx, "Flashing requirements", "step flashing counter flashing chimney",
		"codes", "", nil)
	require.NoError(t, err)

	results, err := s.Search(ctx, "hail bruising granule loss inspection", 5, 0.6)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Hail damage assessment", results[0].Title)
	assert.Greater(t, results[0].Similarity, 0.6)
	assert.Equal(t, []string{"hail"}, results[0].Tags)
	assert.Equal(t, "NEXUS field guide", results[0].Source)
}

func TestSystemSearchThreshold(t *testing.T) {
	s := newTestSystem(t)
	ctx := context.Background()

	_, err := s.AddEntry(ctx, "Unrelated entry", "completely different topic entirely", "misc", "", nil)
	require.NoError(t, err)

	results, err := s.Search(ctx, "hail bruising granule loss", 5, 0.99)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestContextBlock(t *testing.T) {
	assert.Empty(t, ContextBlock(nil))

	block := ContextBlock([]*SearchResult{
		{Title: "Drip Edge", Content: "IRC R905.2.8.5", Category: "codes", Source: "IRC", Similarity: 0.91},
	})
	assert.Contains(t, block, "RELEVANT KNOWLEDGE BASE")
	assert.Contains(t, block, "**Source 1:** Drip Edge (Similarity: 0.91)")
	assert.Contains(t, block, "Reference: IRC")
	assert.Contains(t, block, "Total sources: 1")
}
