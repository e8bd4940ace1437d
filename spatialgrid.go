package bedrock

import (
	"math"
	"sort"
	"sync"

	"github.com/akmonengine/bedrock/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// CellKey locates a cell in the infinite 3D grid
type CellKey struct {
	X, Y, Z int
}

// Cell holds the indices of the colliders overlapping it
type Cell struct {
	colliderIndices []int
}

// Pair is a candidate collider pair from the broad phase, normalized so
// that A.ID < B.ID
type Pair struct {
	A *actor.Collider
	B *actor.Collider
}

// SpatialGrid is a uniform hashed grid for the broad phase. Colliders
// are inserted into every cell their (expanded, swept) AABB touches;
// candidate pairs come from shared cells.
type SpatialGrid struct {
	cellSize float64
	cells    []Cell
	cellMask int
}

// NewSpatialGrid creates a grid of numCells buckets (rounded up to a
// power of two) of cellSize meters per side
func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]Cell, numCells)
	for i := range cells {
		cells[i].colliderIndices = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
	}
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

// Insert registers a collider in every cell its AABB overlaps. Plane
// colliders are skipped: their AABB is unbounded and they are paired
// against everything separately.
func (sg *SpatialGrid) Insert(colliderIndex int, collider *actor.Collider) {
	if _, isPlane := collider.Shape.(*actor.Plane); isPlane {
		return
	}

	aabb := collider.AABB()
	minCell := sg.worldToCell(aabb.Min)
	maxCell := sg.worldToCell(aabb.Max)

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := sg.hashCell(CellKey{x, y, z})

				sg.cells[cellIdx].colliderIndices = append(
					sg.cells[cellIdx].colliderIndices,
					colliderIndex,
				)
			}
		}
	}
}

func (sg *SpatialGrid) Clear() {
	for i := range sg.cells {
		sg.cells[i].colliderIndices = sg.cells[i].colliderIndices[:0]
	}
}

// SortCells orders each cell's indices so pair discovery walks them in
// a reproducible order regardless of insertion interleaving
func (sg *SpatialGrid) SortCells() {
	for i := range sg.cells {
		if len(sg.cells[i].colliderIndices) > 1 {
			sort.Ints(sg.cells[i].colliderIndices)
		}
	}
}

// pairFilter reports whether a candidate pair should be dropped before
// the narrow phase
type pairFilter func(a, b *actor.Collider) bool

// FindPairs returns the candidate pairs in ascending (A.ID, B.ID)
// order. Workers split the collider range; results are merged and
// sorted afterwards so the output does not depend on scheduling.
func (sg *SpatialGrid) FindPairs(colliders []*actor.Collider, planes []*actor.Collider, numWorkers int, filter pairFilter) []Pair {
	var mu sync.Mutex
	pairs := make([]Pair, 0, len(colliders))

	perWorker := (len(colliders) + numWorkers - 1) / numWorkers
	if perWorker == 0 {
		perWorker = 1
	}

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		start := w * perWorker
		end := min(start+perWorker, len(colliders))
		if start >= end {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()

			local := make([]Pair, 0, end-start)
			seen := make([]bool, len(colliders))
			clearSeen := make([]bool, len(colliders))

			for idx := start; idx < end; idx++ {
				a := colliders[idx]
				copy(seen, clearSeen)

				if _, isPlane := a.Shape.(*actor.Plane); isPlane {
					continue
				}

				// Planes pair with every non-plane collider; their AABB
				// is unbounded so the grid cannot cull them
				for _, plane := range planes {
					if filter != nil && filter(a, plane) {
						continue
					}
					local = append(local, makePair(a, plane))
				}

				aabb := a.AABB()
				minCell := sg.worldToCell(aabb.Min)
				maxCell := sg.worldToCell(aabb.Max)

				for x := minCell.X; x <= maxCell.X; x++ {
					for y := minCell.Y; y <= maxCell.Y; y++ {
						for z := minCell.Z; z <= maxCell.Z; z++ {
							cellIdx := sg.hashCell(CellKey{x, y, z})

							for _, otherIdx := range sg.cells[cellIdx].colliderIndices {
								// Each unordered pair is examined once,
								// by its lower index
								if otherIdx <= idx || seen[otherIdx] {
									continue
								}
								seen[otherIdx] = true

								b := colliders[otherIdx]
								if filter != nil && filter(a, b) {
									continue
								}

								if aabb.Overlaps(b.AABB()) {
									local = append(local, makePair(a, b))
								}
							}
						}
					}
				}
			}

			mu.Lock()
			pairs = append(pairs, local...)
			mu.Unlock()
		}(start, end)
	}
	wg.Wait()

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A.ID != pairs[j].A.ID {
			return pairs[i].A.ID < pairs[j].A.ID
		}
		return pairs[i].B.ID < pairs[j].B.ID
	})

	return pairs
}

func makePair(a, b *actor.Collider) Pair {
	if b.ID < a.ID {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}
