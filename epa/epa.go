// Package epa implements the Expanding Polytope Algorithm for computing
// penetration depth, contact normal and contact points once GJK has
// detected an overlap.
//
// The polytope (seeded with GJK's final simplex) is expanded toward the
// boundary of the Minkowski difference; the face closest to the origin
// yields the Minimum Translation Vector separating the shapes.
//
// References:
//   - Van den Bergen: "Proximity Queries and Penetration Depth Computation
//     on 3D Game Objects" (2001)
package epa

import (
	"fmt"
	"math"

	"github.com/akmonengine/bedrock/actor"
	"github.com/akmonengine/bedrock/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// EPAMaxIterations limits polytope expansion. Typical convergence
	// is 5-15 iterations for simple shapes.
	EPAMaxIterations = 32

	// EPAConvergenceTolerance defines when EPA has converged: the
	// support in the closest face's direction no longer improves the
	// distance by more than this.
	EPAConvergenceTolerance = 0.001

	// EPAMinFaceDistance is the minimum face distance before a face is
	// treated as degenerate and skipped.
	EPAMinFaceDistance = 0.0001

	// NormalSnapThreshold clamps nearly-zero normal components to zero
	NormalSnapThreshold = 1e-8

	// DegeneratePenetrationEstimate is the fallback depth when the
	// simplex has too few points to compute an accurate one
	DegeneratePenetrationEstimate = 0.01

	polytopeInitialCapacity = 4
)

// Point is a single contact location in world space with its penetration
// depth. Negative penetration marks a speculative point: the shapes are
// separated but within the speculative margin.
type Point struct {
	Position    mgl64.Vec3
	Penetration float64
}

// Result is the contact information for one collider pair. The normal
// points from collider A toward collider B.
type Result struct {
	Normal mgl64.Vec3
	Points []Point
}

// EPA computes penetration depth and contact information for a pair that
// GJK reported as overlapping. The margin must match the one given to
// GJK; reported penetrations have it subtracted, so points produced
// purely by the margin inflation come out negative (speculative).
func EPA(a, b *actor.Collider, simplex *gjk.Simplex, margin float64) (Result, error) {
	// Too few points to build a polytope: estimate a minimal contact
	if simplex.Count < 4 {
		return handleDegenerateSimplex(a, b, simplex, margin), nil
	}

	builder := polytopeBuilderPool.Get().(*PolytopeBuilder)
	defer polytopeBuilderPool.Put(builder)
	builder.Reset()

	if err := builder.BuildInitialFaces(simplex); err != nil {
		return Result{}, err
	}

	for i := 0; i < EPAMaxIterations; i++ {
		if len(builder.faces) == 0 {
			break
		}

		closestFaceIndex := builder.FindClosestFaceIndex()
		closestFace := &builder.faces[closestFaceIndex]

		// Faces too close to or behind the origin are degenerate
		if closestFace.Distance < EPAMinFaceDistance {
			builder.faces = append(builder.faces[:closestFaceIndex], builder.faces[closestFaceIndex+1:]...)
			continue
		}

		support := gjk.MinkowskiSupport(a, b, closestFace.Normal, margin)
		distance := support.Dot(closestFace.Normal)

		// Converged: the support no longer improves the distance, so
		// this face of the Minkowski difference is the closest one
		if distance-closestFace.Distance < EPAConvergenceTolerance {
			return buildResult(a, b, closestFace.Normal, closestFace.Distance, margin), nil
		}

		if err := builder.AddPointAndRebuildFaces(support, closestFaceIndex); err != nil {
			// Return the current best estimate instead of failing
			return buildResult(a, b, closestFace.Normal, closestFace.Distance, margin), nil
		}
	}

	return Result{}, fmt.Errorf("EPA failed to converge after %d iterations", EPAMaxIterations)
}

func buildResult(a, b *actor.Collider, normal mgl64.Vec3, depth, margin float64) Result {
	return Result{
		Normal: normal,
		Points: GenerateManifold(a, b, normal, depth-margin),
	}
}

// handleDegenerateSimplex estimates a contact when GJK returned an
// incomplete simplex (shapes touching at a point or edge).
func handleDegenerateSimplex(a, b *actor.Collider, simplex *gjk.Simplex, margin float64) Result {
	if simplex.Count >= 2 {
		// Use the simplex point closest to the origin as the estimate
		p0 := simplex.Points[0]
		p1 := simplex.Points[1]

		dist0 := math.Sqrt(p0.Dot(p0))
		dist1 := math.Sqrt(p1.Dot(p1))

		var penetration float64
		var normal mgl64.Vec3

		if dist0 < dist1 {
			penetration = dist0
			normal = p0.Normalize()
		} else {
			penetration = dist1
			normal = p1.Normalize()
		}

		return buildResult(a, b, normal, penetration, margin)
	}

	// Single point simplex: estimate the normal from the collider centers
	normal := b.WorldTransform().Position.Sub(a.WorldTransform().Position)
	normalLen := normal.Len()

	if normalLen < NormalSnapThreshold {
		// Centers coincide, fall back to a vertical normal
		normal = mgl64.Vec3{0, 1, 0}
	} else {
		normal = normal.Mul(1.0 / normalLen)
	}

	return buildResult(a, b, normal, DegeneratePenetrationEstimate, margin)
}
