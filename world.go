// Package bedrock is a real-time rigid-body physics engine built on
// substepped XPBD: each frame is divided into substeps that integrate,
// project position constraints, derive velocities from the position
// deltas, and finish with a velocity pass for restitution and friction.
//
// Collision detection runs once per frame with speculative margins, so
// fast bodies generate anticipated contacts instead of tunneling.
// Simulation is deterministic for a fixed world and timestep, for any
// worker count.
package bedrock

import (
	"fmt"
	"math"
	"sort"

	"github.com/akmonengine/bedrock/actor"
	"github.com/akmonengine/bedrock/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// World owns the bodies, the joints and the collision structures, and
// advances them with Step.
type World struct {
	Bodies []*actor.RigidBody

	Config      Config
	SpatialGrid *SpatialGrid

	Events Events

	// Joints and custom constraints, kept sorted by ID
	joints []*constraint.Constraint

	// Contacts of the current frame, rebuilt by every Step
	contacts []*constraint.Constraint

	warmStart *WarmStartCache

	// Flat collider views rebuilt each step, in body order
	colliders []*actor.Collider
	planes    []*actor.Collider

	// Body ID pairs whose contacts are suppressed, with a count so
	// several joints may disable the same pair
	disabledPairs map[PairKey]int

	nextBodyID     uint64
	nextColliderID uint64
	nextJointID    uint64
}

// NewWorld creates an empty world with the given configuration
func NewWorld(cfg Config) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &World{
		Config:         cfg,
		SpatialGrid:    NewSpatialGrid(cfg.CellSize, cfg.GridCells),
		Events:         NewEvents(),
		warmStart:      NewWarmStartCache(),
		disabledPairs:  make(map[PairKey]int),
		nextBodyID:     1,
		nextColliderID: 1,
		nextJointID:    1,
	}, nil
}

// AddBody registers a rigid body and assigns its stable ID. Colliders
// attached later receive their IDs at the next Step.
func (w *World) AddBody(body *actor.RigidBody) {
	if body.ID == 0 {
		body.ID = w.nextBodyID
		w.nextBodyID++
	}
	w.Bodies = append(w.Bodies, body)
}

// RemoveBody removes a rigid body, its tracked events, and every joint
// attached to it
func (w *World) RemoveBody(body *actor.RigidBody) {
	k := -1
	for i, b := range w.Bodies {
		if b == body {
			k = i
			break
		}
	}
	if k == -1 {
		return
	}
	w.Bodies = append(w.Bodies[:k], w.Bodies[k+1:]...)

	kept := w.joints[:0]
	for _, joint := range w.joints {
		if joint.BodyA == body || joint.BodyB == body {
			w.releaseDisabledPair(joint)
			continue
		}
		kept = append(kept, joint)
	}
	w.joints = kept

	w.Events.forget(body)
}

// AddConstraint registers a joint or custom constraint. A zero ID gets
// the next free one; explicit IDs are kept, letting callers control the
// solve order.
func (w *World) AddConstraint(c *constraint.Constraint) *constraint.Constraint {
	if c.ID == 0 {
		c.ID = w.nextJointID
		w.nextJointID++
	} else if c.ID >= w.nextJointID {
		w.nextJointID = c.ID + 1
	}

	w.joints = append(w.joints, c)
	sort.Slice(w.joints, func(i, j int) bool {
		return w.joints[i].ID < w.joints[j].ID
	})

	if c.DisableCollision {
		w.disabledPairs[MakePairKey(c.BodyA.ID, c.BodyB.ID)]++
	}

	return c
}

// RemoveConstraint unregisters a joint
func (w *World) RemoveConstraint(c *constraint.Constraint) {
	for i, joint := range w.joints {
		if joint == c {
			w.joints = append(w.joints[:i], w.joints[i+1:]...)
			w.releaseDisabledPair(c)
			return
		}
	}
}

func (w *World) releaseDisabledPair(c *constraint.Constraint) {
	if !c.DisableCollision {
		return
	}
	key := MakePairKey(c.BodyA.ID, c.BodyB.ID)
	w.disabledPairs[key]--
	if w.disabledPairs[key] <= 0 {
		delete(w.disabledPairs, key)
	}
}

// Contacts exposes the contact constraints produced by the last Step
func (w *World) Contacts() []*constraint.Constraint {
	return w.contacts
}

// Step advances the simulation by dt seconds.
//
// Collision detection runs once per frame; the manifolds then live
// through all substeps, their penetrations recomputed from anchors as
// bodies move. Returns an error, without stepping, when the
// configuration or a body is invalid.
func (w *World) Step(dt float64) error {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return fmt.Errorf("invalid timestep %v", dt)
	}
	cfg := &w.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, body := range w.Bodies {
		if err := body.Validate(); err != nil {
			return err
		}
		body.Frozen = false
	}

	w.refreshColliders(dt)

	// Broad phase
	w.SpatialGrid.Clear()
	for i, collider := range w.colliders {
		w.SpatialGrid.Insert(i, collider)
	}
	w.SpatialGrid.SortCells()
	pairs := w.SpatialGrid.FindPairs(w.colliders, w.planes, cfg.Workers, w.pairFilter)

	// Narrow phase
	w.contacts = NarrowPhase(pairs, dt, cfg, cfg.Workers)

	activePairs := make(map[PairKey]bool, len(w.contacts))
	for _, contact := range w.contacts {
		key := MakePairKey(contact.ColliderA.ID, contact.ColliderB.ID)
		activePairs[key] = true

		if cfg.WarmStartCoefficient > 0 {
			w.warmStart.Match(key, contact)
		}

		wakeConnectedBodies(contact)
	}

	// Joints behave like persistent contacts for activation: an awake
	// movable endpoint drags its sleeping partner back awake, so a
	// solved joint never has a sleeping endpoint
	for _, joint := range w.joints {
		wakeConnectedBodies(joint)
	}

	w.Events.recordContacts(w.contacts)

	// Joints solve before contacts; both sets in ID order
	solveList := make([]*constraint.Constraint, 0, len(w.joints)+len(w.contacts))
	solveList = append(solveList, w.joints...)
	for _, contact := range w.contacts {
		if !contact.Sensor {
			solveList = append(solveList, contact)
		}
	}

	islands := buildIslands(w.Bodies, solveList)

	// Substep loop
	h := dt / float64(cfg.Substeps)
	gravity := cfg.GravityVec()

	for s := 0; s < cfg.Substeps; s++ {
		firstSubstep := s == 0

		task(cfg.Workers, w.Bodies, func(body *actor.RigidBody) {
			body.Integrate(h, gravity)
		})

		// One position iteration per substep; substeps replace solver
		// iterations in XPBD
		task(cfg.Workers, islands, func(island *Island) {
			for _, c := range island.Constraints {
				c.PrepareSubstep(cfg.WarmStartCoefficient, firstSubstep)
			}
			for _, c := range island.Constraints {
				c.SolvePosition(h)
			}
		})

		task(cfg.Workers, w.Bodies, func(body *actor.RigidBody) {
			body.Update(h)
		})

		task(cfg.Workers, islands, func(island *Island) {
			for _, c := range island.Constraints {
				c.SolveVelocity(h)
			}
		})

		w.freezeDiverged()
	}

	for _, island := range islands {
		island.trySleep(dt, cfg)
	}

	// Persist converged contact state for next frame's warm start
	for _, contact := range w.contacts {
		w.warmStart.Store(MakePairKey(contact.ColliderA.ID, contact.ColliderB.ID), contact)
	}
	w.warmStart.Prune(activePairs)

	for _, body := range w.Bodies {
		body.ClearForces()
	}

	w.Events.processSleepEvents(w.Bodies)
	w.Events.flush()

	return nil
}

// refreshColliders rebuilds the flat collider views in body order,
// assigns IDs to new colliders and refreshes the swept AABBs
func (w *World) refreshColliders(dt float64) {
	w.colliders = w.colliders[:0]
	w.planes = w.planes[:0]

	margin := w.Config.SpeculativeMargin + w.Config.ContactTolerance

	for _, body := range w.Bodies {
		displacement := body.Velocity.Mul(dt)

		for _, collider := range body.Colliders {
			if collider.ID == 0 {
				collider.ID = w.nextColliderID
				w.nextColliderID++
			}

			collider.UpdateAABB(displacement, margin)
			w.colliders = append(w.colliders, collider)

			if _, isPlane := collider.Shape.(*actor.Plane); isPlane {
				w.planes = append(w.planes, collider)
			}
		}
	}
}

// pairFilter drops candidate pairs that can never produce useful work
func (w *World) pairFilter(a, b *actor.Collider) bool {
	if a.Body == b.Body {
		return true
	}

	if !a.IsSensor && !b.IsSensor {
		// A pair needs a dynamic body to be solvable, and an awake
		// movable body to produce any motion or wake anybody. A box
		// asleep on static ground fails this and skips the narrow
		// phase entirely; a kinematic body ramming a sleeper passes.
		hasDynamic := a.Body.BodyType == actor.BodyTypeDynamic ||
			b.Body.BodyType == actor.BodyTypeDynamic
		if !hasDynamic || (!awakeMovable(a.Body) && !awakeMovable(b.Body)) {
			return true
		}
	}

	return w.disabledPairs[MakePairKey(a.Body.ID, b.Body.ID)] > 0
}

func awakeMovable(body *actor.RigidBody) bool {
	return body.BodyType != actor.BodyTypeStatic && !body.IsSleeping
}

// wakeConnectedBodies wakes a sleeping body connected to an awake,
// movable one, whether by a contact or a joint
func wakeConnectedBodies(c *constraint.Constraint) {
	bodyA, bodyB := c.BodyA, c.BodyB

	if bodyA.IsSleeping && bodyA.BodyType == actor.BodyTypeDynamic && awakeMovable(bodyB) {
		bodyA.Awake()
	}
	if bodyB.IsSleeping && bodyB.BodyType == actor.BodyTypeDynamic && awakeMovable(bodyA) {
		bodyB.Awake()
	}
}

// freezeDiverged restores the last valid transform of bodies whose
// state picked up NaN or Inf, and freezes them for the rest of the
// step. The diagnostic event is delivered at flush.
func (w *World) freezeDiverged() {
	for _, body := range w.Bodies {
		if body.Frozen || !body.HasDiverged() {
			continue
		}

		body.Transform = body.PreviousTransform
		body.Velocity = mgl64.Vec3{}
		body.AngularVelocity = mgl64.Vec3{}
		body.Frozen = true

		w.Events.emitDivergence(body)
	}
}

// StateHash folds the body states, in ID order, into a single value
// with a splitmix-style mixer. Two runs of the same scenario must agree
// on it at every step; the configured seed separates runs on purpose.
func (w *World) StateHash() uint64 {
	hash := w.Config.Seed

	mix := func(v uint64) {
		hash += v + 0x9e3779b97f4a7c15
		hash = (hash ^ (hash >> 30)) * 0xbf58476d1ce4e5b9
		hash = (hash ^ (hash >> 27)) * 0x94d049bb133111eb
		hash ^= hash >> 31
	}

	sorted := make([]*actor.RigidBody, len(w.Bodies))
	copy(sorted, w.Bodies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, body := range sorted {
		mix(body.ID)
		for i := 0; i < 3; i++ {
			mix(math.Float64bits(body.Transform.Position[i]))
			mix(math.Float64bits(body.Velocity[i]))
			mix(math.Float64bits(body.AngularVelocity[i]))
			mix(math.Float64bits(body.Transform.Rotation.V[i]))
		}
		mix(math.Float64bits(body.Transform.Rotation.W))
		if body.IsSleeping {
			mix(1)
		}
	}

	return hash
}
