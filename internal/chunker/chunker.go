// Package chunker splits raw text into overlapping passages for embedding.
package chunker

// Defaults for chunk window and overlap, in characters.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Chunker splits text into character-window chunks. A chunk is cut early at a
// sentence or newline boundary when one falls inside the last half of the
// window, so passages tend to end on natural breaks. Consecutive chunks
// overlap to preserve context across the cut.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given window and overlap in
// characters. Non-positive values fall back to the defaults.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Chunk splits text into chunks of at most the configured window size.
// Input shorter than one window yields exactly one chunk; empty input yields
// nil.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		if cut := boundaryCut(runes[start:end]); cut > c.chunkSize/2 {
			end = start + cut
		}
		chunks = append(chunks, string(runes[start:end]))
		next := end - c.chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// boundaryCut returns the index just past the last sentence or newline
// boundary in window, or 0 when there is none.
func boundaryCut(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}
	return 0
}
