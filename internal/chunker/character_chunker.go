package chunker

import (
	"strings"

	"medreport/internal/domain"
)

// CharacterChunker splits page text into fixed-size windows with overlap.
// Boundaries depend only on the input and the configuration, so splitting
// the same document twice yields identical chunks.
type CharacterChunker struct {
	size    int
	overlap int
}

func NewCharacterChunker(size, overlap int) *CharacterChunker {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &CharacterChunker{size: size, overlap: overlap}
}

// Split produces ordered chunks covering every page in full. Pages shorter
// than the window yield one chunk; empty pages yield none.
func (c *CharacterChunker) Split(pages []domain.Page) []domain.SplitChunk {
	var chunks []domain.SplitChunk
	for _, p := range pages {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		runes := []rune(text)
		i := 0
		for {
			end := i + c.size
			if end > len(runes) {
				end = len(runes)
			}
			chunks = append(chunks, domain.SplitChunk{
				Text: string(runes[i:end]),
				Page: p.Number,
			})
			if end == len(runes) {
				break
			}
			i = end - c.overlap
		}
	}
	return chunks
}
