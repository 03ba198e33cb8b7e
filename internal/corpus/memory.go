package corpus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/seanblong/orgsearch/pkg/models"
)

// Memory is an in-process Backend over an HNSW graph keyed by document
// position and scored by cosine similarity.
type Memory struct {
	mu    sync.RWMutex
	docs  []models.Document
	graph *hnsw.Graph[int]
	dims  int
}

func NewMemory() *Memory { return &Memory{} }

// Replace swaps in a freshly built graph. Every vector must share one dimension.
func (m *Memory) Replace(ctx context.Context, docs []models.Document, vecs [][]float32) error {
	if len(docs) != len(vecs) {
		return fmt.Errorf("%d documents but %d vectors", len(docs), len(vecs))
	}
	dims := 0
	if len(vecs) > 0 {
		dims = len(vecs[0])
	}
	g := hnsw.NewGraph[int]()
	g.Distance = cosineDistance
	for i, v := range vecs {
		if len(v) != dims {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dims)
		}
		g.Add(hnsw.MakeNode(i, append([]float32(nil), v...)))
	}
	d := append([]models.Document(nil), docs...)

	m.mu.Lock()
	m.docs, m.graph, m.dims = d, g, dims
	m.mu.Unlock()
	return nil
}

// Search returns the k nearest documents, best first; equal scores keep
// insertion order. A negative k returns every document.
func (m *Memory) Search(ctx context.Context, vec []float32, k int) ([]models.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.docs)
	if k < 0 || k > n {
		k = n
	}
	if k == 0 {
		return []models.SearchResult{}, nil
	}
	if len(vec) != m.dims {
		return nil, fmt.Errorf("query has dimension %d, index has %d", len(vec), m.dims)
	}

	neighbors := m.graph.Search(vec, k)
	out := make([]models.SearchResult, 0, len(neighbors))
	keys := make([]int, 0, len(neighbors))
	for _, nb := range neighbors {
		out = append(out, models.SearchResult{
			Document: m.docs[nb.Key],
			Score:    float64(1 - cosineDistance(vec, nb.Value)),
		})
		keys = append(keys, nb.Key)
	}
	sort.Sort(byScore{out, keys})
	return out, nil
}

// cosineDistance treats a zero vector as orthogonal to everything.
func cosineDistance(a, b []float32) float32 {
	if isZero(a) || isZero(b) {
		return 1
	}
	return hnsw.CosineDistance(a, b)
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

type byScore struct {
	res  []models.SearchResult
	keys []int
}

func (b byScore) Len() int { return len(b.res) }
func (b byScore) Less(i, j int) bool {
	if b.res[i].Score != b.res[j].Score {
		return b.res[i].Score > b.res[j].Score
	}
	return b.keys[i] < b.keys[j]
}
func (b byScore) Swap(i, j int) {
	b.res[i], b.res[j] = b.res[j], b.res[i]
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
}
