package bedrock

import (
	"math"
	"sort"
	"sync"

	"github.com/akmonengine/bedrock/actor"
	"github.com/akmonengine/bedrock/constraint"
	"github.com/akmonengine/bedrock/epa"
	"github.com/akmonengine/bedrock/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

// CollisionPair is a pair that passed GJK and awaits EPA
type CollisionPair struct {
	A       *actor.Collider
	B       *actor.Collider
	margin  float64
	simplex *gjk.Simplex
}

// pairContact couples a produced manifold with its collider pair so the
// merged result can be ordered by pair
type pairContact struct {
	a, b     *actor.Collider
	manifold *constraint.Manifold
}

// NarrowPhase runs exact collision detection on the broad-phase
// candidates and returns one contact constraint per touching pair,
// ordered by (A.ID, B.ID). Pairs holding a plane take the analytic
// path; the rest go through GJK and EPA. Both paths run on worker
// pools; the merged output is sorted, so the result is independent of
// scheduling.
//
// The speculative margin is adapted per pair: a slow pair does not need
// the full margin, which keeps distant ghost contacts rare.
func NarrowPhase(pairs []Pair, dt float64, cfg *Config, workersCount int) []*constraint.Constraint {
	pairChan := make(chan Pair, workersCount)
	planePairs := make(chan Pair, workersCount)
	gjkPairs := make(chan Pair, workersCount)

	go func() {
		defer close(pairChan)
		for _, pair := range pairs {
			pairChan <- pair
		}
	}()

	// Dispatcher: separate pairs with planes from convex-convex pairs
	go func() {
		defer close(planePairs)
		defer close(gjkPairs)

		for pair := range pairChan {
			_, aIsPlane := pair.A.Shape.(*actor.Plane)
			_, bIsPlane := pair.B.Shape.(*actor.Plane)

			if aIsPlane || bIsPlane {
				planePairs <- pair
			} else {
				gjkPairs <- pair
			}
		}
	}()

	allContacts := make(chan pairContact, workersCount*2)
	var wg sync.WaitGroup

	// Path 1: GJK/EPA for convex pairs
	wg.Add(1)
	go func() {
		defer wg.Done()
		collisionPairs := runGJK(gjkPairs, dt, cfg, workersCount)
		for contact := range runEPA(collisionPairs, workersCount) {
			allContacts <- contact
		}
	}()

	// Path 2: analytic collisions with planes
	wg.Add(1)
	go func() {
		defer wg.Done()
		for contact := range collidePlane(planePairs, dt, cfg, workersCount) {
			allContacts <- contact
		}
	}()

	go func() {
		wg.Wait()
		close(allContacts)
	}()

	// Collect then sort: worker interleaving must not leak into the
	// constraint order the solver sees
	collected := make([]pairContact, 0, len(pairs))
	for c := range allContacts {
		collected = append(collected, c)
	}

	sort.Slice(collected, func(i, j int) bool {
		if collected[i].a.ID != collected[j].a.ID {
			return collected[i].a.ID < collected[j].a.ID
		}
		return collected[i].b.ID < collected[j].b.ID
	})

	contacts := make([]*constraint.Constraint, len(collected))
	for i, c := range collected {
		contact := constraint.NewContact(uint64(i), c.a, c.b, c.manifold)
		contact.MaxCorrection = cfg.MaxCorrection
		contacts[i] = contact
	}

	return contacts
}

// speculativeMargin bounds the detection margin by the distance the
// pair can close this step
func speculativeMargin(a, b *actor.Collider, dt float64, cfg *Config) float64 {
	relVel := b.Body.Velocity.Sub(a.Body.Velocity).Len()
	margin := math.Min(cfg.SpeculativeMargin, relVel*dt)
	return margin + cfg.ContactTolerance
}

func runGJK(pairChan <-chan Pair, dt float64, cfg *Config, workersCount int) <-chan CollisionPair {
	collisionChan := make(chan CollisionPair, workersCount)

	go func() {
		var wg sync.WaitGroup
		defer close(collisionChan)

		for i := 0; i < workersCount; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				for p := range pairChan {
					margin := speculativeMargin(p.A, p.B, dt, cfg)

					simplex := gjk.SimplexPool.Get().(*gjk.Simplex)
					simplex.Reset()

					if collision := gjk.GJK(p.A, p.B, simplex, margin); collision {
						collisionChan <- CollisionPair{
							A:       p.A,
							B:       p.B,
							margin:  margin,
							simplex: simplex,
						}
					} else {
						gjk.SimplexPool.Put(simplex)
					}
				}
			}()
		}
		wg.Wait()
	}()

	return collisionChan
}

func runEPA(p <-chan CollisionPair, workersCount int) <-chan pairContact {
	ch := make(chan pairContact, workersCount)

	go func() {
		var wg sync.WaitGroup
		defer close(ch)

		for i := 0; i < workersCount; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for pair := range p {
					result, err := epa.EPA(pair.A, pair.B, pair.simplex, pair.margin)
					gjk.SimplexPool.Put(pair.simplex)
					if err != nil || len(result.Points) == 0 {
						continue
					}

					manifold := buildManifold(pair.A, pair.B, result.Normal, result.Points)
					if manifold == nil {
						continue
					}
					ch <- pairContact{a: pair.A, b: pair.B, manifold: manifold}
				}
			}()
		}

		wg.Wait()
	}()

	return ch
}

func collidePlane(pairs <-chan Pair, dt float64, cfg *Config, workersCount int) <-chan pairContact {
	ch := make(chan pairContact, workersCount)

	go func() {
		var wg sync.WaitGroup
		defer close(ch)

		for i := 0; i < workersCount; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for pair := range pairs {
					// Identify which collider is the plane. The contact
					// normal always points from A toward B, so with the
					// plane as A it is the plane normal itself.
					var plane *actor.Plane
					planeCollider, objectCollider := pair.A, pair.B

					if p, ok := pair.A.Shape.(*actor.Plane); ok {
						plane = p
					} else if p, ok := pair.B.Shape.(*actor.Plane); ok {
						plane = p
						planeCollider, objectCollider = pair.B, pair.A
					} else {
						continue
					}

					// Plane-plane pairs produce nothing
					if _, ok := objectCollider.Shape.(*actor.Plane); ok {
						continue
					}

					margin := speculativeMargin(planeCollider, objectCollider, dt, cfg)
					collision, result := objectCollider.Shape.CollideWithPlane(
						plane.Normal, plane.Distance, objectCollider.WorldTransform(), margin)
					if !collision {
						continue
					}

					points := make([]epa.Point, len(result))
					for i, point := range result {
						points[i] = epa.Point{Position: point.Position, Penetration: point.Penetration}
					}

					manifold := planeManifold(planeCollider, objectCollider, plane.Normal, points)
					if manifold == nil {
						continue
					}

					a, b := planeCollider, objectCollider
					if b.ID < a.ID {
						// Keep pair ordering by ID; the manifold normal
						// already points plane → object, so flip it
						a, b = b, a
						flipManifold(manifold)
					}

					ch <- pairContact{a: a, b: b, manifold: manifold}
				}
			}()
		}

		wg.Wait()
	}()

	return ch
}

// buildManifold converts EPA world-space points into anchor pairs
// stored in each body's local frame. The world point sits on body A's
// surface; the matching point on B lies one penetration depth along the
// normal, so that (worldA - worldB)·n recovers the penetration at any
// later transform.
func buildManifold(a, b *actor.Collider, normal mgl64.Vec3, points []epa.Point) *constraint.Manifold {
	manifold := &constraint.Manifold{
		Normal: normal,
		Points: make([]constraint.ContactPoint, 0, len(points)),
	}

	for _, point := range points {
		worldA := point.Position
		worldB := point.Position.Sub(normal.Mul(point.Penetration))

		manifold.Points = append(manifold.Points, constraint.ContactPoint{
			LocalAnchorA: a.Body.Transform.ApplyInverse(worldA),
			LocalAnchorB: b.Body.Transform.ApplyInverse(worldB),
			Penetration:  point.Penetration,
		})
	}

	return manifold
}

// planeManifold anchors plane contacts the other way around: the
// reported position lies on the object's surface, the plane anchor is
// the projection onto the plane.
func planeManifold(planeCollider, objectCollider *actor.Collider, normal mgl64.Vec3, points []epa.Point) *constraint.Manifold {
	manifold := &constraint.Manifold{
		Normal: normal,
		Points: make([]constraint.ContactPoint, 0, len(points)),
	}

	for _, point := range points {
		worldB := point.Position
		worldA := point.Position.Add(normal.Mul(point.Penetration))

		manifold.Points = append(manifold.Points, constraint.ContactPoint{
			LocalAnchorA: planeCollider.Body.Transform.ApplyInverse(worldA),
			LocalAnchorB: objectCollider.Body.Transform.ApplyInverse(worldB),
			Penetration:  point.Penetration,
		})
	}

	return manifold
}

// flipManifold reverses a manifold built for (B, A) into the (A, B)
// orientation
func flipManifold(m *constraint.Manifold) {
	m.Normal = m.Normal.Mul(-1)
	for i := range m.Points {
		m.Points[i].LocalAnchorA, m.Points[i].LocalAnchorB = m.Points[i].LocalAnchorB, m.Points[i].LocalAnchorA
	}
}
