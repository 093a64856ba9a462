package database

import (
	"context"
	"sync"

	"github.com/coder/hnsw"

	"github.com/officeflow/attendance/internal/attendance"
)

// hnswMaxNeighbors is the M parameter of the HNSW graph.
const hnswMaxNeighbors = 16

// CandidateIndex is an in-memory HNSW index over enrolled embeddings. It
// bounds 1:N identification to a top-K candidate set instead of scanning
// the whole directory; exact cosine distances are always recomputed by
// the resolver, so the index only affects recall, never the threshold or
// margin decisions.
type CandidateIndex struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[string]
	identity map[string]*attendance.Identity
}

// NewCandidateIndex creates an empty index.
func NewCandidateIndex() *CandidateIndex {
	return &CandidateIndex{identity: make(map[string]*attendance.Identity)}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index contents from a population stream. Returns the
// number of indexed identities.
func (c *CandidateIndex) Build(ctx context.Context, population attendance.Population) (int, error) {
	g := newGraph()
	identities := make(map[string]*attendance.Identity)

	for {
		id, err := population.Next(ctx)
		if err != nil {
			return 0, err
		}
		if id == nil {
			break
		}
		if len(id.Embedding) == 0 {
			continue
		}
		cp := *id
		g.Add(hnsw.MakeNode(cp.ID, cp.Embedding))
		identities[cp.ID] = &cp
	}

	c.mu.Lock()
	c.graph = g
	c.identity = identities
	c.mu.Unlock()
	return len(identities), nil
}

// Add inserts or replaces a single identity in the index.
func (c *CandidateIndex) Add(id attendance.Identity) {
	if len(id.Embedding) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.graph == nil {
		c.graph = newGraph()
	}
	c.graph.Add(hnsw.MakeNode(id.ID, id.Embedding))
	c.identity[id.ID] = &id
}

// Len returns the number of indexed identities.
func (c *CandidateIndex) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.identity)
}

// Candidates returns up to k identities nearest to the query as a
// population stream for the resolver. An empty index yields an empty
// stream.
func (c *CandidateIndex) Candidates(query []float32, k int) attendance.Population {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.graph == nil || len(c.identity) == 0 {
		return attendance.SlicePopulation(nil)
	}

	neighbors := c.graph.Search(query, k)
	ids := make([]attendance.Identity, 0, len(neighbors))
	for _, n := range neighbors {
		if id, ok := c.identity[n.Key]; ok {
			ids = append(ids, *id)
		}
	}
	return attendance.SlicePopulation(ids)
}
