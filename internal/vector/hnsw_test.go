package vector

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"
)

func randomUnitVectors(t *testing.T, n, dim int, seed int64) [][]float32 {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dim)
		var sum float64
		for j := range v {
			v[j] = float32(rng.NormFloat64())
			sum += float64(v[j]) * float64(v[j])
		}
		norm := float32(1.0 / math.Sqrt(sum))
		for j := range v {
			v[j] *= norm
		}
		vecs[i] = v
	}
	return vecs
}

func TestGraph_EmptySearch(t *testing.T) {
	g, err := NewGraph(4, WithSeed(1))
	if err != nil {
		t.Fatal(err)
	}
	results, err := g.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if results != nil {
		t.Errorf("empty index should return nil, got %v", results)
	}
}

func TestGraph_SelfFindability(t *testing.T) {
	const (
		n   = 200
		dim = 384
	)
	g, err := NewGraph(dim, WithSeed(42))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	vecs := randomUnitVectors(t, n, dim, 7)
	for i, v := range vecs {
		if err := g.Insert(ctx, fmt.Sprintf("doc-%d", i), v); err != nil {
			t.Fatal(err)
		}
	}
	if g.Size() != n {
		t.Fatalf("Size=%d, want %d", g.Size(), n)
	}

	// Querying with an exact stored vector must return it first with
	// similarity >= 0.999.
	for _, i := range []int{0, 17, 99, 150, 199} {
		results, err := g.Search(ctx, vecs[i], 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) == 0 {
			t.Fatalf("no results for stored vector %d", i)
		}
		want := fmt.Sprintf("doc-%d", i)
		if results[0].ID != want {
			t.Errorf("query %d: top hit %s, want %s", i, results[0].ID, want)
		}
		if results[0].Similarity < 0.999 {
			t.Errorf("query %d: similarity %v, want >= 0.999", i, results[0].Similarity)
		}
	}
}

func TestGraph_SearchReturnsK(t *testing.T) {
	g, _ := NewGraph(8, WithSeed(3))
	ctx := context.Background()
	vecs := randomUnitVectors(t, 50, 8, 11)
	for i, v := range vecs {
		if err := g.Insert(ctx, fmt.Sprintf("v%d", i), v); err != nil {
			t.Fatal(err)
		}
	}
	results, err := g.Search(ctx, vecs[0], 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 10 {
		t.Fatalf("got %d results, want 10", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("results not sorted by descending similarity at %d", i)
		}
	}
}

func TestGraph_DimensionMismatch(t *testing.T) {
	g, _ := NewGraph(4, WithSeed(1))
	ctx := context.Background()
	if err := g.Insert(ctx, "a", []float32{1, 0}); err == nil {
		t.Error("expected error inserting wrong dimension")
	}
	if _, err := g.Search(ctx, []float32{1, 0}, 1); err == nil {
		t.Error("expected error searching wrong dimension")
	}
}

func TestGraph_Remove(t *testing.T) {
	g, _ := NewGraph(8, WithSeed(5))
	ctx := context.Background()
	vecs := randomUnitVectors(t, 30, 8, 13)
	for i, v := range vecs {
		_ = g.Insert(ctx, fmt.Sprintf("v%d", i), v)
	}

	victim, ok := g.byID["v12"]
	if !ok {
		t.Fatal("v12 not indexed")
	}
	if err := g.Remove(ctx, "v12"); err != nil {
		t.Fatal(err)
	}
	if g.Size() != 29 {
		t.Errorf("Size=%d after remove, want 29", g.Size())
	}
	if g.Contains("v12") {
		t.Error("removed id still reported as indexed")
	}

	// No surviving node may still reference the removed arena slot.
	for i := range g.nodes {
		n := &g.nodes[i]
		if n.deleted {
			continue
		}
		for l, nbrs := range n.neighbors {
			for _, nb := range nbrs {
				if nb == victim {
					t.Fatalf("node %s level %d still references removed node", n.id, l)
				}
			}
		}
	}

	results, err := g.Search(ctx, vecs[12], 30)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.ID == "v12" {
			t.Error("search returned removed id")
		}
	}

	// Removing an unknown id is a no-op.
	if err := g.Remove(ctx, "nope"); err != nil {
		t.Errorf("remove unknown id: %v", err)
	}
}

func TestGraph_RemoveEntryPoint(t *testing.T) {
	g, _ := NewGraph(8, WithSeed(9))
	ctx := context.Background()
	vecs := randomUnitVectors(t, 20, 8, 17)
	for i, v := range vecs {
		_ = g.Insert(ctx, fmt.Sprintf("v%d", i), v)
	}
	entryID := g.nodes[g.entry].id
	if err := g.Remove(ctx, entryID); err != nil {
		t.Fatal(err)
	}
	if g.entry < 0 {
		t.Fatal("entry point not replaced")
	}
	if g.nodes[g.entry].deleted {
		t.Fatal("entry point is a deleted node")
	}
	if _, err := g.Search(ctx, vecs[0], 5); err != nil {
		t.Fatalf("search after entry removal: %v", err)
	}
}

func TestGraph_RemoveAll(t *testing.T) {
	g, _ := NewGraph(4, WithSeed(2))
	ctx := context.Background()
	vecs := randomUnitVectors(t, 5, 4, 23)
	for i, v := range vecs {
		_ = g.Insert(ctx, fmt.Sprintf("v%d", i), v)
	}
	for i := 0; i < 5; i++ {
		_ = g.Remove(ctx, fmt.Sprintf("v%d", i))
	}
	if g.Size() != 0 {
		t.Errorf("Size=%d, want 0", g.Size())
	}
	results, err := g.Search(ctx, vecs[0], 3)
	if err != nil {
		t.Fatal(err)
	}
	if results != nil {
		t.Errorf("search on emptied index: got %v, want nil", results)
	}
	// Freed slots are reused by later insertions.
	if err := g.Insert(ctx, "again", vecs[0]); err != nil {
		t.Fatal(err)
	}
	if g.Size() != 1 {
		t.Errorf("Size=%d after re-insert, want 1", g.Size())
	}
}

func TestGraph_NeighborCap(t *testing.T) {
	const m = 4
	g, _ := NewGraph(8, WithSeed(21), WithM(m), WithEfConstruction(32))
	ctx := context.Background()
	vecs := randomUnitVectors(t, 120, 8, 29)
	for i, v := range vecs {
		if err := g.Insert(ctx, fmt.Sprintf("v%d", i), v); err != nil {
			t.Fatal(err)
		}
	}
	for i := range g.nodes {
		n := &g.nodes[i]
		if n.deleted {
			continue
		}
		for l, nbrs := range n.neighbors {
			if len(nbrs) > m {
				t.Fatalf("node %s level %d has %d neighbors, cap is %d", n.id, l, len(nbrs), m)
			}
		}
	}
}

func TestGraph_InsertReplaces(t *testing.T) {
	g, _ := NewGraph(2, WithSeed(4))
	ctx := context.Background()
	_ = g.Insert(ctx, "x", []float32{1, 0})
	_ = g.Insert(ctx, "x", []float32{0, 1})
	if g.Size() != 1 {
		t.Fatalf("Size=%d after replace, want 1", g.Size())
	}
	results, err := g.Search(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "x" || results[0].Similarity < 0.999 {
		t.Errorf("replaced vector not found: %+v", results)
	}
}

func TestGraph_LevelDraw(t *testing.T) {
	g, _ := NewGraph(2, WithSeed(6), WithMaxLevel(3))
	for i := 0; i < 1000; i++ {
		if l := g.drawLevel(); l < 0 || l > 3 {
			t.Fatalf("level %d out of [0, 3]", l)
		}
	}
}

func TestGraph_AdjacencySymmetryAfterInsert(t *testing.T) {
	// With a generous M and no pruning pressure, adjacency must be symmetric
	// right after construction.
	g, _ := NewGraph(8, WithSeed(31), WithM(64))
	ctx := context.Background()
	vecs := randomUnitVectors(t, 20, 8, 37)
	for i, v := range vecs {
		_ = g.Insert(ctx, fmt.Sprintf("v%d", i), v)
	}
	for i := range g.nodes {
		n := &g.nodes[i]
		for l, nbrs := range n.neighbors {
			for _, nb := range nbrs {
				back := false
				for _, r := range g.nodes[nb].neighbors[l] {
					if r == int32(i) {
						back = true
						break
					}
				}
				if !back {
					t.Fatalf("edge %s -> %s at level %d has no back-edge", n.id, g.nodes[nb].id, l)
				}
			}
		}
	}
}
