package keyword

import (
	"context"
	"testing"
)

func newMemIndex(t *testing.T) *Index {
	t.Helper()
	x, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = x.Close() })
	return x
}

func TestIndex_SearchRanksMatches(t *testing.T) {
	x := newMemIndex(t)
	ctx := context.Background()

	docs := map[string]string{
		"a": "the quick brown fox jumps over the lazy dog",
		"b": "vector databases store embeddings for similarity search",
		"c": "grocery list apples bananas oranges",
	}
	for id, text := range docs {
		if err := x.Add(ctx, id, text, "general", "test"); err != nil {
			t.Fatal(err)
		}
	}

	hits, err := x.Search(ctx, "similarity search embeddings", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Fatal("no hits")
	}
	if hits[0].ID != "b" {
		t.Errorf("top hit = %s, want b", hits[0].ID)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("hits not sorted by score at %d", i)
		}
	}
}

func TestIndex_SearchEmpty(t *testing.T) {
	x := newMemIndex(t)
	hits, err := x.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("got %d hits from empty index", len(hits))
	}
}

func TestIndex_Delete(t *testing.T) {
	x := newMemIndex(t)
	ctx := context.Background()

	_ = x.Add(ctx, "a", "persistent storage engine", "general", "test")
	if err := x.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	hits, err := x.Search(ctx, "storage", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("deleted doc still matches: %v", hits)
	}

	n, err := x.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("DocCount=%d, want 0", n)
	}
}

func TestIndex_Reset(t *testing.T) {
	x := newMemIndex(t)
	ctx := context.Background()
	_ = x.Add(ctx, "a", "soon to be gone", "general", "test")
	if err := x.Reset(); err != nil {
		t.Fatal(err)
	}
	n, err := x.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("DocCount=%d after reset, want 0", n)
	}
	// The reset index accepts new documents.
	if err := x.Add(ctx, "b", "fresh start", "general", "test"); err != nil {
		t.Fatal(err)
	}
}

func TestIndex_PersistsOnDisk(t *testing.T) {
	path := t.TempDir() + "/lexical.bleve"
	ctx := context.Background()

	x, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = x.Add(ctx, "a", "reopened index keeps its documents", "general", "test")
	_ = x.Close()

	x2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer x2.Close()
	hits, err := x2.Search(ctx, "reopened", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Errorf("hits=%v after reopen", hits)
	}
}
