package database

import (
	"context"
	"testing"

	"github.com/officeflow/attendance/internal/attendance"
)

func indexIdentity(id string, embedding []float32) attendance.Identity {
	return attendance.Identity{ID: id, Email: id + "@example.com", Embedding: embedding}
}

func TestCandidateIndex_BuildAndSearch(t *testing.T) {
	index := NewCandidateIndex()

	ids := []attendance.Identity{
		indexIdentity("a", []float32{1, 0, 0}),
		indexIdentity("b", []float32{0, 1, 0}),
		indexIdentity("c", []float32{0, 0, 1}),
		indexIdentity("no-embedding", nil),
	}
	n, err := index.Build(context.Background(), attendance.SlicePopulation(ids))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 indexed, got %d", n)
	}
	if index.Len() != 3 {
		t.Errorf("expected len 3, got %d", index.Len())
	}

	population := index.Candidates([]float32{0.9, 0.1, 0}, 1)
	got, err := population.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != "a" {
		t.Errorf("expected nearest candidate 'a', got %+v", got)
	}
}

func TestCandidateIndex_AddReplaces(t *testing.T) {
	index := NewCandidateIndex()
	index.Add(indexIdentity("a", []float32{1, 0, 0}))
	index.Add(indexIdentity("a", []float32{0, 1, 0}))

	if index.Len() != 1 {
		t.Fatalf("re-adding the same identity must replace, len %d", index.Len())
	}

	population := index.Candidates([]float32{0, 1, 0}, 1)
	got, err := population.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Embedding[1] != 1 {
		t.Errorf("expected replaced embedding, got %+v", got)
	}
}

func TestCandidateIndex_Empty(t *testing.T) {
	index := NewCandidateIndex()

	population := index.Candidates([]float32{1, 0, 0}, 5)
	got, err := population.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("empty index should yield an empty stream, got %+v", got)
	}
}

func TestCandidateIndex_SkipsEmptyEmbeddings(t *testing.T) {
	index := NewCandidateIndex()
	index.Add(indexIdentity("empty", nil))
	if index.Len() != 0 {
		t.Errorf("identity without embedding must not be indexed, len %d", index.Len())
	}
}
