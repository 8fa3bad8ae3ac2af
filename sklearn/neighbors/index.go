package neighbors

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// neighbor is a training row and its Euclidean distance to the query.
type neighbor struct {
	idx  int
	dist float64
}

// searcher finds the k nearest training rows, closest first.
type searcher interface {
	search(q []float64, k int) []neighbor
}

// sortNeighbors orders by distance, ties broken by training row order.
func sortNeighbors(ns []neighbor) {
	sort.Slice(ns, func(a, b int) bool {
		if ns[a].dist != ns[b].dist {
			return ns[a].dist < ns[b].dist
		}
		return ns[a].idx < ns[b].idx
	})
}

// bruteIndex compares the query against every training row.
type bruteIndex struct {
	rows [][]float64
}

func (b *bruteIndex) search(q []float64, k int) []neighbor {
	ns := make([]neighbor, len(b.rows))
	for i, r := range b.rows {
		ns[i] = neighbor{idx: i, dist: floats.Distance(q, r, 2)}
	}
	sortNeighbors(ns)
	return ns[:k]
}

// kdPoint is a training row that remembers its position.
type kdPoint struct {
	coords []float64
	idx    int
}

// Compare returns the signed distance of p from c along d.
func (p kdPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coords[d] - c.(kdPoint).coords[d]
}

// Dims returns the number of dimensions.
func (p kdPoint) Dims() int { return len(p.coords) }

// Distance returns the squared Euclidean distance, as kdtree expects.
func (p kdPoint) Distance(c kdtree.Comparable) float64 {
	d := floats.Distance(p.coords, c.(kdPoint).coords, 2)
	return d * d
}

type kdPoints []kdPoint

func (p kdPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p kdPoints) Len() int                      { return len(p) }
func (p kdPoints) Pivot(d kdtree.Dim) int        { return kdPlane{Dim: d, kdPoints: p}.Pivot() }
func (p kdPoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

// kdPlane sorts kdPoints along one dimension for median partitioning.
type kdPlane struct {
	kdtree.Dim
	kdPoints
}

func (p kdPlane) Less(i, j int) bool {
	return p.kdPoints[i].coords[p.Dim] < p.kdPoints[j].coords[p.Dim]
}
func (p kdPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.kdPoints = p.kdPoints[start:end]
	return p
}
func (p kdPlane) Swap(i, j int) {
	p.kdPoints[i], p.kdPoints[j] = p.kdPoints[j], p.kdPoints[i]
}

// kdIndex wraps a gonum k-d tree.
type kdIndex struct {
	tree *kdtree.Tree
}

func newKDIndex(rows [][]float64) *kdIndex {
	pts := make(kdPoints, len(rows))
	for i, r := range rows {
		pts[i] = kdPoint{coords: r, idx: i}
	}
	return &kdIndex{tree: kdtree.New(pts, false)}
}

func (t *kdIndex) search(q []float64, k int) []neighbor {
	keep := kdtree.NewNKeeper(k)
	t.tree.NearestSet(keep, kdPoint{coords: q, idx: -1})
	ns := make([]neighbor, 0, k)
	for _, c := range keep.Heap {
		// NKeeper は空きスロットに nil の番兵を置く
		if c.Comparable == nil {
			continue
		}
		ns = append(ns, neighbor{idx: c.Comparable.(kdPoint).idx, dist: math.Sqrt(c.Dist)})
	}
	sortNeighbors(ns)
	return ns
}

// ballNode is a node of a ball tree: every row in idx lies within radius of
// centroid. Internal nodes have two children; leaves hold at most leafSize rows.
type ballNode struct {
	centroid    []float64
	radius      float64
	idx         []int
	left, right *ballNode
}

// ballIndex is a ball tree split on the dimension of largest spread.
type ballIndex struct {
	rows     [][]float64
	root     *ballNode
	leafSize int
}

func newBallIndex(rows [][]float64, leafSize int) *ballIndex {
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	b := &ballIndex{rows: rows, leafSize: max(1, leafSize)}
	b.root = b.build(idx)
	return b
}

func (b *ballIndex) build(idx []int) *ballNode {
	dims := len(b.rows[idx[0]])
	n := &ballNode{centroid: make([]float64, dims), idx: idx}
	for _, i := range idx {
		floats.Add(n.centroid, b.rows[i])
	}
	floats.Scale(1/float64(len(idx)), n.centroid)
	for _, i := range idx {
		n.radius = math.Max(n.radius, floats.Distance(n.centroid, b.rows[i], 2))
	}
	if len(idx) <= b.leafSize {
		return n
	}

	spreadDim, spread := 0, -1.0
	for d := 0; d < dims; d++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			lo = math.Min(lo, b.rows[i][d])
			hi = math.Max(hi, b.rows[i][d])
		}
		if hi-lo > spread {
			spreadDim, spread = d, hi-lo
		}
	}
	if spread == 0 {
		return n
	}
	sorted := append([]int(nil), idx...)
	sort.SliceStable(sorted, func(a, c int) bool {
		return b.rows[sorted[a]][spreadDim] < b.rows[sorted[c]][spreadDim]
	})
	mid := len(sorted) / 2
	n.left = b.build(sorted[:mid])
	n.right = b.build(sorted[mid:])
	n.idx = nil
	return n
}

func (b *ballIndex) search(q []float64, k int) []neighbor {
	best := make([]neighbor, 0, k+1)
	b.visit(b.root, q, k, &best)
	return best
}

// visit descends the tree, pruning balls that cannot hold a closer row than
// the current k-th neighbor.
func (b *ballIndex) visit(n *ballNode, q []float64, k int, best *[]neighbor) {
	if n == nil {
		return
	}
	if len(*best) == k && floats.Distance(q, n.centroid, 2)-n.radius > (*best)[k-1].dist {
		return
	}
	if n.left == nil {
		for _, i := range n.idx {
			insertNeighbor(best, neighbor{idx: i, dist: floats.Distance(q, b.rows[i], 2)}, k)
		}
		return
	}
	first, second := n.left, n.right
	if floats.Distance(q, n.right.centroid, 2) < floats.Distance(q, n.left.centroid, 2) {
		first, second = second, first
	}
	b.visit(first, q, k, best)
	b.visit(second, q, k, best)
}

// insertNeighbor keeps best sorted and at most k long.
func insertNeighbor(best *[]neighbor, nb neighbor, k int) {
	ns := *best
	pos := sort.Search(len(ns), func(i int) bool {
		if ns[i].dist != nb.dist {
			return ns[i].dist > nb.dist
		}
		return ns[i].idx > nb.idx
	})
	if pos >= k {
		return
	}
	ns = append(ns, neighbor{})
	copy(ns[pos+1:], ns[pos:])
	ns[pos] = nb
	if len(ns) > k {
		ns = ns[:k]
	}
	*best = ns
}
