package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	embeddingModel = "text-embedding-3-small"
	// text-embedding-3-small accepts 8191 tokens; roughly 4 chars per token.
	maxInputChars = 8191 * 4
	maxBatchSize  = 100

	chunkSize    = 1000
	chunkOverlap = 200
)

var ErrNoAPIKey = errors.New("OPENAI_API_KEY is not configured")

// Embedder produces embedding vectors for texts. The OpenAI client is the
// production implementation; tests swap in a deterministic one.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type openAIEmbedder struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newOpenAIEmbedder(apiKey string, client *http.Client) *openAIEmbedder {
	return &openAIEmbedder{
		apiKey:     apiKey,
		baseURL:    "https://api.openai.com/v1",
		httpClient: client,
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed returns one vector per input text, batching at most 100 inputs per
// API call and truncating oversized inputs.
func (e *openAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := make([]string, end-start)
		for i, t := range texts[start:end] {
			batch[i] = truncateInput(t)
		}

		vectors, err := e.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *openAIEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: embeddingModel, Input: batch})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, detail)
	}

	var er embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(er.Data) != len(batch) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(er.Data))
	}

	vectors := make([][]float32, len(batch))
	for _, d := range er.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func truncateInput(s string) string {
	if len(s) <= maxInputChars {
		return s
	}
	return s[:maxInputChars]
}

// ChunkText splits text into ~chunkSize character chunks with overlap,
// preferring to break at a sentence boundary when one sits past the middle
// of the chunk.
func ChunkText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + chunkSize
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}

		window := text[start:end]
		if cut := lastSentenceEnd(window); cut > chunkSize/2 {
			end = start + cut
		}

		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end - chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// lastSentenceEnd returns the index just past the final sentence terminator
// in s, or -1 when there is none.
func lastSentenceEnd(s string) int {
	best := -1
	for _, sep := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
		if i := strings.LastIndex(s, sep); i >= 0 && i+len(sep) > best {
			best = i + len(sep)
		}
	}
	return best
}

// KnowledgeText combines a KB entry's fields into the text that gets embedded.
func KnowledgeText(title, content string) string {
	return fmt.Sprintf("Title: %s\n\nContent: %s", title, content)
}
