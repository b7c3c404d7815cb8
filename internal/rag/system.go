package rag

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/roofdocs/nexus/internal/config"
	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/pkg/logger"
)

// SearchResult is a KB entry ranked against a query.
type SearchResult struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Category   string   `json:"category"`
	Source     string   `json:"source,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Similarity float64  `json:"similarity"`
}

// System embeds and searches the knowledge base. The catalog is small, so
// ranking is an exact cosine scan over all stored vectors.
type System struct {
	cfg      *config.Config
	db       *sql.DB
	embedder Embedder
}

func NewSystem(cfg *config.Config, database *sql.DB) *System {
	return &System{
		cfg:      cfg,
		db:       database,
		embedder: newOpenAIEmbedder(cfg.AI.OpenAIAPIKey, &http.Client{Timeout: cfg.AITimeout()}),
	}
}

// Enabled reports whether RAG can run (flag on and embedding key present).
func (s *System) Enabled() bool {
	return s.cfg.Features.EnableRAG && s.cfg.AI.OpenAIAPIKey != ""
}

// AddEntry embeds and stores a knowledge base entry.
func (s *System) AddEntry(ctx context.Context, title, content, category, source string, tags []string) (*db.KnowledgeEntry, error) {
	if !s.cfg.Features.EnableRAG {
		return nil, fmt.Errorf("RAG is disabled")
	}

	vectors, err := s.embedder.Embed(ctx, []string{KnowledgeText(title, content)})
	if err != nil {
		return nil, fmt.Errorf("failed to embed knowledge entry: %w", err)
	}

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}

	entry, err := queries.CreateKnowledgeEntry(s.db, title, content, category, source,
		string(tagsJSON), EncodeVector(vectors[0]))
	if err != nil {
		return nil, fmt.Errorf("failed to store knowledge entry: %w", err)
	}

	logger.Info("Knowledge entry added", "id", entry.ID, "title", title, "category", category)
	return entry, nil
}

// Search ranks KB entries against the query. topK and minSimilarity fall
// back to the configured defaults when zero.
func (s *System) Search(ctx context.Context, query string, topK int, minSimilarity float64) ([]*SearchResult, error) {
	if topK <= 0 {
		topK = s.cfg.RAG.TopK
	}
	if minSimilarity <= 0 {
		minSimilarity = s.cfg.RAG.SimilarityThreshold
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	queryVec := vectors[0]

	entries, err := queries.ListKnowledgeEntries(s.db)
	if err != nil {
		return nil, err
	}

	var results []*SearchResult
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		vec, err := DecodeVector(e.Embedding)
		if err != nil {
			logger.Warn("Skipping knowledge entry with bad embedding", "id", e.ID, "error", err)
			continue
		}
		sim := CosineSimilarity(queryVec, vec)
		if sim < minSimilarity {
			continue
		}

		var tags []string
		_ = json.Unmarshal([]byte(e.Tags), &tags)
		r := &SearchResult{
			ID:         e.ID,
			Title:      e.Title,
			Content:    e.Content,
			Category:   e.Category,
			Tags:       tags,
			Similarity: sim,
		}
		if e.Source.Valid {
			r.Source = e.Source.String
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// ContextBlock formats search results into a prompt section with citations.
func ContextBlock(results []*SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("=== RELEVANT KNOWLEDGE BASE ===\n\n")
	b.WriteString("## Knowledge Base Entries:\n")
	for i, r := range results {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&b, "\n**Source %d:** %s (Similarity: %.2f)\n", i+1, r.Title, r.Similarity)
		fmt.Fprintf(&b, "Category: %s\n", r.Category)
		content := r.Content
		if len(content) > 500 {
			content = content[:500] + "..."
		}
		fmt.Fprintf(&b, "Content: %s\n", content)
		if r.Source != "" {
			fmt.Fprintf(&b, "Reference: %s\n", r.Source)
		}
	}
	b.WriteString("\n=== END KNOWLEDGE BASE ===\n")
	fmt.Fprintf(&b, "\nTotal sources: %d\n", len(results))
	b.WriteString("Use this information to answer the user's question accurately. Always cite sources.")
	return b.String()
}
