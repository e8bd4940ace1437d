package bedrock

import (
	"testing"

	"github.com/akmonengine/bedrock/actor"
	"github.com/go-gl/mathgl/mgl64"
)

func gridCollider(id uint64, position mgl64.Vec3, shape actor.ShapeInterface) *actor.Collider {
	body := actor.NewRigidBody(actor.NewTransformAt(position), actor.BodyTypeDynamic)
	body.ID = id
	collider := body.AttachCollider(shape, actor.NewTransform(), actor.DefaultMaterial())
	collider.ID = id
	collider.UpdateAABB(mgl64.Vec3{}, 0.05)
	return collider
}

func gridBox(id uint64, position mgl64.Vec3) *actor.Collider {
	return gridCollider(id, position, &actor.Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}})
}

// buildGrid inserts the colliders and returns the grid ready for
// FindPairs, mirroring what Step does each frame
func buildGrid(colliders []*actor.Collider) *SpatialGrid {
	grid := NewSpatialGrid(2.0, 64)
	for i, collider := range colliders {
		grid.Insert(i, collider)
	}
	grid.SortCells()
	return grid
}

func TestFindPairs(t *testing.T) {
	t.Run("overlapping boxes form one pair", func(t *testing.T) {
		colliders := []*actor.Collider{
			gridBox(1, mgl64.Vec3{0, 0, 0}),
			gridBox(2, mgl64.Vec3{0.8, 0, 0}),
		}
		grid := buildGrid(colliders)

		pairs := grid.FindPairs(colliders, nil, 1, nil)

		if len(pairs) != 1 {
			t.Fatalf("Expected 1 pair, got %d", len(pairs))
		}
		if pairs[0].A.ID != 1 || pairs[0].B.ID != 2 {
			t.Errorf("Pair not normalized by ID: (%d, %d)", pairs[0].A.ID, pairs[0].B.ID)
		}
	})

	t.Run("distant boxes produce nothing", func(t *testing.T) {
		colliders := []*actor.Collider{
			gridBox(1, mgl64.Vec3{0, 0, 0}),
			gridBox(2, mgl64.Vec3{50, 0, 0}),
		}
		grid := buildGrid(colliders)

		if pairs := grid.FindPairs(colliders, nil, 1, nil); len(pairs) != 0 {
			t.Errorf("Expected no pairs, got %d", len(pairs))
		}
	})

	t.Run("filter drops pairs", func(t *testing.T) {
		colliders := []*actor.Collider{
			gridBox(1, mgl64.Vec3{0, 0, 0}),
			gridBox(2, mgl64.Vec3{0.8, 0, 0}),
		}
		grid := buildGrid(colliders)

		dropAll := func(a, b *actor.Collider) bool { return true }
		if pairs := grid.FindPairs(colliders, nil, 1, dropAll); len(pairs) != 0 {
			t.Errorf("Filter ignored, got %d pairs", len(pairs))
		}
	})

	t.Run("planes pair with every non-plane collider", func(t *testing.T) {
		plane := gridCollider(10, mgl64.Vec3{}, &actor.Plane{Normal: mgl64.Vec3{0, 1, 0}})
		colliders := []*actor.Collider{
			gridBox(1, mgl64.Vec3{0, 0, 0}),
			gridBox(2, mgl64.Vec3{40, 0, 0}),
			plane,
		}
		grid := buildGrid(colliders)

		pairs := grid.FindPairs(colliders, []*actor.Collider{plane}, 1, nil)

		planePairs := 0
		for _, pair := range pairs {
			if pair.A == plane || pair.B == plane {
				planePairs++
			}
		}
		if planePairs != 2 {
			t.Errorf("Expected 2 plane pairs, got %d", planePairs)
		}
	})

	t.Run("large collider spanning many cells is not duplicated", func(t *testing.T) {
		colliders := []*actor.Collider{
			gridCollider(1, mgl64.Vec3{0, 0, 0}, &actor.Box{HalfExtents: mgl64.Vec3{5, 5, 5}}),
			gridBox(2, mgl64.Vec3{1, 0, 0}),
		}
		grid := buildGrid(colliders)

		pairs := grid.FindPairs(colliders, nil, 1, nil)
		if len(pairs) != 1 {
			t.Errorf("Expected 1 deduplicated pair, got %d", len(pairs))
		}
	})

	t.Run("output is sorted and worker independent", func(t *testing.T) {
		var colliders []*actor.Collider
		for i := 0; i < 12; i++ {
			colliders = append(colliders, gridBox(uint64(i+1), mgl64.Vec3{
				0.7 * float64(i%4),
				0.7 * float64(i/4),
				0,
			}))
		}
		grid := buildGrid(colliders)

		serial := grid.FindPairs(colliders, nil, 1, nil)
		parallel := grid.FindPairs(colliders, nil, 4, nil)

		if len(serial) == 0 {
			t.Fatal("Cluster should produce pairs")
		}
		if len(serial) != len(parallel) {
			t.Fatalf("Pair counts differ: %d vs %d", len(serial), len(parallel))
		}
		for i := range serial {
			if serial[i] != parallel[i] {
				t.Fatalf("Pair %d differs between worker counts", i)
			}
		}
		for i := 1; i < len(serial); i++ {
			prev, cur := serial[i-1], serial[i]
			if cur.A.ID < prev.A.ID || (cur.A.ID == prev.A.ID && cur.B.ID <= prev.B.ID) {
				t.Error("Pairs not in ascending (A.ID, B.ID) order")
			}
		}
	})
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 2: 2, 3: 4, 1000: 1024, 1024: 1024}
	for in, want := range cases {
		if got := nextPowerOfTwo(in); got != want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", in, got, want)
		}
	}
}
