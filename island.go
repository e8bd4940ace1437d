package bedrock

import (
	"github.com/akmonengine/bedrock/actor"
	"github.com/akmonengine/bedrock/constraint"
)

// Island is a set of dynamic bodies transitively connected by
// constraints, together with those constraints in solve order. Islands
// never share a dynamic body, so they are solved in parallel without
// locks, and they sleep as a unit: one restless body keeps the whole
// island awake.
type Island struct {
	Bodies      []*actor.RigidBody
	Constraints []*constraint.Constraint
}

// unionFind is a plain disjoint-set over body slice indices
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]] // Path halving
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	rootA, rootB := u.find(a), u.find(b)
	if rootA == rootB {
		return
	}
	// Lower index wins so island grouping follows body order
	if rootB < rootA {
		rootA, rootB = rootB, rootA
	}
	u.parent[rootB] = rootA
}

// buildIslands partitions the awake dynamic bodies by constraint
// connectivity. Static and kinematic bodies anchor constraints but do
// not propagate connectivity: two stacks on the same ground remain
// separate islands. Constraint-less awake bodies get singleton islands
// so they still integrate and sleep.
func buildIslands(bodies []*actor.RigidBody, constraints []*constraint.Constraint) []*Island {
	indexByID := make(map[uint64]int, len(bodies))
	for i, body := range bodies {
		indexByID[body.ID] = i
	}

	uf := newUnionFind(len(bodies))

	participates := func(body *actor.RigidBody) bool {
		return body.BodyType == actor.BodyTypeDynamic && !body.IsSleeping
	}

	for _, c := range constraints {
		if participates(c.BodyA) && participates(c.BodyB) {
			uf.union(indexByID[c.BodyA.ID], indexByID[c.BodyB.ID])
		}
	}

	islandByRoot := make(map[int]*Island)
	var islands []*Island

	// Walk bodies in order so islands and their members come out in a
	// reproducible order
	for i, body := range bodies {
		if !participates(body) {
			continue
		}

		root := uf.find(i)
		island, ok := islandByRoot[root]
		if !ok {
			island = &Island{}
			islandByRoot[root] = island
			islands = append(islands, island)
		}
		island.Bodies = append(island.Bodies, body)
	}

	// Constraints join the island of their first awake dynamic body;
	// solve order within an island follows the input order
	for _, c := range constraints {
		var owner *actor.RigidBody
		if participates(c.BodyA) {
			owner = c.BodyA
		} else if participates(c.BodyB) {
			owner = c.BodyB
		} else {
			continue
		}

		root := uf.find(indexByID[owner.ID])
		if island, ok := islandByRoot[root]; ok {
			island.Constraints = append(island.Constraints, c)
		}
	}

	return islands
}

// trySleep advances the island's sleep timers by one frame. The island
// falls asleep only once every body has stayed below both velocity
// thresholds for the configured time; any restless body resets the
// whole island.
func (island *Island) trySleep(dt float64, cfg *Config) bool {
	allCalm := true
	for _, body := range island.Bodies {
		if body.Velocity.Len() > cfg.SleepLinearThreshold ||
			body.AngularVelocity.Len() > cfg.SleepAngularThreshold {
			allCalm = false
			break
		}
	}

	if !allCalm {
		for _, body := range island.Bodies {
			body.SleepTimer = 0
		}
		return false
	}

	ready := true
	for _, body := range island.Bodies {
		body.SleepTimer += dt
		if body.SleepTimer < cfg.SleepTimeThreshold {
			ready = false
		}
	}

	if !ready {
		return false
	}

	for _, body := range island.Bodies {
		body.Sleep()
	}
	return true
}
