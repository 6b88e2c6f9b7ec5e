package chunker

import (
	"strings"
	"testing"
)

func TestChunker_ShortInput(t *testing.T) {
	c := NewChunker(500, 50)
	chunks := c.Chunk("a short document")
	if len(chunks) != 1 || chunks[0] != "a short document" {
		t.Fatalf("short input: got %v, want single unchanged chunk", chunks)
	}
}

func TestChunker_EmptyInput(t *testing.T) {
	c := NewChunker(500, 50)
	if chunks := c.Chunk(""); chunks != nil {
		t.Fatalf("empty input: got %v, want nil", chunks)
	}
}

func TestChunker_ThreeChunksAt1200(t *testing.T) {
	// 1200 chars with size 500 and overlap 50 must produce 3 chunks.
	text := strings.Repeat("x", 1200)
	c := NewChunker(500, 50)
	chunks := c.Chunk(text)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for i, ch := range chunks {
		if len([]rune(ch)) > 500 {
			t.Errorf("chunk %d exceeds window: %d chars", i, len([]rune(ch)))
		}
	}
}

func TestChunker_Overlap(t *testing.T) {
	text := strings.Repeat("y", 1000)
	c := NewChunker(500, 50)
	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	// Consecutive chunks share the configured overlap.
	tail := chunks[0][len(chunks[0])-50:]
	if !strings.HasPrefix(chunks[1], tail) {
		t.Error("second chunk does not start with the first chunk's tail")
	}
}

func TestChunker_SentenceBoundary(t *testing.T) {
	// The boundary sits in the last half of the window, so the first chunk
	// should end at the period rather than the hard window edge.
	sentence := strings.Repeat("a", 80) + "."
	text := sentence + " " + strings.Repeat("b", 200)
	c := NewChunker(100, 10)
	chunks := c.Chunk(text)
	if len(chunks) == 0 {
		t.Fatal("no chunks")
	}
	if !strings.HasSuffix(chunks[0], ".") {
		t.Errorf("first chunk does not end at sentence boundary: %q", chunks[0][len(chunks[0])-10:])
	}
}

func TestChunker_Coverage(t *testing.T) {
	// Stitching chunks back together (dropping each overlap) must
	// reconstruct the full source text.
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	c := NewChunker(200, 30)
	chunks := c.Chunk(text)

	// Each chunk after the first starts with exactly the overlap already
	// emitted, so dropping it reconstructs the source text.
	var rebuilt strings.Builder
	for i, ch := range chunks {
		r := []rune(ch)
		if i > 0 {
			r = r[30:]
		}
		rebuilt.WriteString(string(r))
	}
	if rebuilt.String() != text {
		t.Fatalf("reconstruction differs: %d of %d chars", rebuilt.Len(), len(text))
	}
}

func TestChunker_BadConfigFallsBack(t *testing.T) {
	c := NewChunker(0, -1)
	if c.chunkSize != DefaultChunkSize || c.chunkOverlap != DefaultChunkOverlap {
		t.Errorf("defaults not applied: size=%d overlap=%d", c.chunkSize, c.chunkOverlap)
	}
	// Overlap >= size would loop forever; it must be rejected.
	c = NewChunker(100, 100)
	if c.chunkOverlap >= c.chunkSize {
		t.Error("overlap >= size accepted")
	}
}
