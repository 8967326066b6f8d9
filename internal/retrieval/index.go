package retrieval

import (
	"fmt"
	"sort"

	"github.com/coder/hnsw"

	"github.com/umeshdangat/workout-ai/internal/apperr"
	"github.com/umeshdangat/workout-ai/internal/corpus"
)

// exactScanLimit is the corpus size up to which search scans every vector
// and no graph is built.
const exactScanLimit = 50_000

const (
	// graphM is the neighbor count per node.
	graphM = 32
	// efSearch is the candidate queue size, used while building and querying.
	efSearch = 256
	// minGraphCandidates is the least number of graph hits re-ranked per query.
	minGraphCandidates = 512
	// overfetch multiplies topK when pulling graph candidates for re-ranking.
	overfetch = 8
)

// Index is an immutable snapshot of the corpus and, for corpora above the
// exact scan limit, its vector graph.
type Index struct {
	graph    *hnsw.Graph[int]
	workouts []corpus.Workout
	dim      int
}

type neighbor struct {
	pos      int
	distance float32
}

// NewIndex builds an index over workouts. Every workout must carry an
// embedding of the same dimension; insertion order is kept for tie-breaks.
func NewIndex(workouts []corpus.Workout) (*Index, error) {
	return newIndex(workouts, exactScanLimit)
}

func newIndex(workouts []corpus.Workout, scanLimit int) (*Index, error) {
	ix := &Index{workouts: make([]corpus.Workout, len(workouts))}
	copy(ix.workouts, workouts)

	nodes := make([]hnsw.Node[int], 0, len(workouts))
	for i, w := range ix.workouts {
		if len(w.Embedding) == 0 {
			return nil, fmt.Errorf("workout %q has no embedding", w.ID)
		}
		if ix.dim == 0 {
			ix.dim = len(w.Embedding)
		}
		if len(w.Embedding) != ix.dim {
			return nil, apperr.New(apperr.EmbeddingDimensionMismatch,
				"workout %q has dimension %d, index has %d", w.ID, len(w.Embedding), ix.dim)
		}
		nodes = append(nodes, hnsw.MakeNode(i, w.Embedding))
	}
	if len(nodes) > scanLimit {
		g := hnsw.NewGraph[int]()
		g.Distance = hnsw.EuclideanDistance
		g.M = graphM
		g.EfSearch = efSearch
		g.Add(nodes...)
		ix.graph = g
	}
	return ix, nil
}

func (ix *Index) Len() int {
	return len(ix.workouts)
}

// Dim is the embedding dimension, or 0 for an empty index.
func (ix *Index) Dim() int {
	return ix.dim
}

func (ix *Index) Workout(pos int) corpus.Workout {
	return ix.workouts[pos]
}

// nearest returns up to k neighbors of vec ordered by distance, then by
// corpus position.
func (ix *Index) nearest(vec []float32, k int) []neighbor {
	n := len(ix.workouts)
	if n == 0 || k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}

	var cands []neighbor
	if ix.graph == nil {
		cands = make([]neighbor, n)
		for i, w := range ix.workouts {
			cands[i] = neighbor{pos: i, distance: hnsw.EuclideanDistance(vec, w.Embedding)}
		}
	} else {
		want := min(max(k*overfetch, minGraphCandidates), n)
		for _, node := range ix.graph.Search(vec, want) {
			cands = append(cands, neighbor{pos: node.Key, distance: hnsw.EuclideanDistance(vec, node.Value)})
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].distance != cands[j].distance {
			return cands[i].distance < cands[j].distance
		}
		return cands[i].pos < cands[j].pos
	})
	if len(cands) > k {
		cands = cands[:k]
	}
	return cands
}
