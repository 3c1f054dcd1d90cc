package processor

import (
	"fmt"
	"iter"

	"github.com/xhad/de5chat/internal/models"
)

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) (Processor, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return Processor{}, fmt.Errorf("chunk overlap %d must be non-negative and less than chunk size %d",
			config.ChunkOverlap, config.ChunkSize)
	}

	return Processor{
		config: config,
	}, nil
}

func (p Processor) Config() ProcessorConfig {
	return p.config
}

// Process splits every document and returns the chunks in document order.
func (p Processor) Process(docs []models.Document) []models.Chunk {
	var chunks []models.Chunk
	for _, doc := range docs {
		for chunk := range p.Split(doc) {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// Split lazily yields the chunks of one document. Each chunk is at most
// ChunkSize runes, consecutive chunks share exactly ChunkOverlap runes and
// together they cover the whole text.
func (p Processor) Split(doc models.Document) iter.Seq[models.Chunk] {
	return func(yield func(models.Chunk) bool) {
		text := []rune(doc.Content)
		size, overlap := p.config.ChunkSize, p.config.ChunkOverlap

		for start, i := 0, 0; start < len(text); i++ {
			end := len(text)
			if end-start > size {
				end = p.breakPoint(text, start)
			}

			chunk := models.Chunk{
				Text:      string(text[start:end]),
				SourceURL: doc.URL,
				Index:     i,
			}
			if !yield(chunk) || end == len(text) {
				return
			}
			start = end - overlap
		}
	}
}

// breakPoint picks where the chunk starting at start ends. It prefers the
// latest paragraph break, then sentence end, then whitespace, and only cuts
// mid-word when none fits in the window.
func (p Processor) breakPoint(text []rune, start int) int {
	size, overlap := p.config.ChunkSize, p.config.ChunkOverlap
	limit := start + size

	// the next chunk must start after this one did
	lowest := start + max(overlap+1, size/2)
	if lowest > limit {
		lowest = limit
	}

	for _, isBoundary := range []func([]rune, int) bool{paragraphEnd, sentenceEnd, wordEnd} {
		for end := limit; end >= lowest; end-- {
			if isBoundary(text, end) {
				return end
			}
		}
	}
	return limit
}

func paragraphEnd(text []rune, end int) bool {
	return end >= 2 && text[end-1] == '\n' && text[end-2] == '\n'
}

func sentenceEnd(text []rune, end int) bool {
	if end < 1 {
		return false
	}
	if text[end-1] == '\n' {
		return true
	}
	if end < 2 || text[end-1] != ' ' {
		return false
	}
	switch text[end-2] {
	case '.', '!', '?':
		return true
	}
	return false
}

func wordEnd(text []rune, end int) bool {
	if end < 1 {
		return false
	}
	switch text[end-1] {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
