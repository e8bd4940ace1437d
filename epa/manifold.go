package epa

import (
	"math"

	"github.com/akmonengine/bedrock/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// GenerateManifold creates contact points for a collision using
// Sutherland-Hodgman clipping.
//
// A contact manifold is a set of 1-4 points that represent where two
// shapes touch. Multiple points provide stability (preventing rotation
// jitter) and distribute forces realistically.
//
// Algorithm:
//  1. Get contact features from each shape (point, edge, or face)
//  2. Transform features to world space
//  3. Determine incident (fewer points) and reference (more points) features
//  4. Clip incident feature against reference feature's side planes
//  5. Keep points behind the reference plane
//  6. Reduce to max 4 points
//
// The normal points from A toward B. The given depth is assigned to
// every surviving point; the solver recomputes each point's penetration
// from its anchors every substep anyway.
func GenerateManifold(a, b *actor.Collider, normal mgl64.Vec3, depth float64) []Point {
	transformA := a.WorldTransform()
	transformB := b.WorldTransform()

	// Features are queried in each collider's local frame
	localNormalA := transformA.InverseRotation.Rotate(normal)
	localNormalB := transformB.InverseRotation.Rotate(normal.Mul(-1))

	featureA := a.Shape.GetContactFeature(localNormalA)
	featureB := b.Shape.GetContactFeature(localNormalB)

	worldFeatureA := transformFeature(featureA, transformA, a.Shape)
	worldFeatureB := transformFeature(featureB, transformB, b.Shape)

	// The smaller feature is clipped against the larger one
	var incident, reference []mgl64.Vec3

	if len(worldFeatureB) <= len(worldFeatureA) {
		incident = worldFeatureB
		reference = worldFeatureA
	} else {
		incident = worldFeatureA
		reference = worldFeatureB
	}

	if len(incident) == 1 {
		return []Point{{
			Position:    incident[0],
			Penetration: depth,
		}}
	}

	clipped := clipIncidentAgainstReference(incident, reference, normal)

	var contactPoints []Point

	if len(clipped) > 0 && len(reference) >= 3 {
		// Reference face normal from its geometry; should be close to
		// the contact normal but is computed independently
		edge1 := reference[1].Sub(reference[0])
		edge2 := reference[2].Sub(reference[0])
		refNormal := edge1.Cross(edge2).Normalize()

		if refNormal.Dot(normal) < 0 {
			refNormal = refNormal.Mul(-1)
		}

		offset := reference[0].Dot(refNormal)

		for _, point := range clipped {
			// Keep points behind or on the reference plane
			distance := point.Dot(refNormal) - offset
			if distance <= 0.0 {
				contactPoints = append(contactPoints, Point{
					Position:    point,
					Penetration: depth,
				})
			}
		}
	} else if len(clipped) > 0 {
		// Edge reference: no plane to clip against, keep everything
		for _, point := range clipped {
			contactPoints = append(contactPoints, Point{
				Position:    point,
				Penetration: depth,
			})
		}
	}

	// Fallback if clipping rejected everything
	if len(contactPoints) == 0 {
		deepest := b.SupportWorld(normal.Mul(-1))
		contactPoints = append(contactPoints, Point{
			Position:    deepest,
			Penetration: depth,
		})
	}

	if len(contactPoints) > 4 {
		contactPoints = reduceTo4Points(contactPoints, normal)
	}

	return contactPoints
}

// clipIncidentAgainstReference performs Sutherland-Hodgman polygon
// clipping of the incident feature against the side planes of the
// reference feature. Each reference edge defines a clipping plane
// containing the contact normal; points outside any plane are replaced
// by the edge intersections.
//
// Plane reference features get no lateral clipping (infinite extent),
// and point or edge references carry too little geometry to clip with.
func clipIncidentAgainstReference(incident, reference []mgl64.Vec3, normal mgl64.Vec3) []mgl64.Vec3 {
	if isLargePlane(reference) {
		return incident
	}

	if len(reference) < 2 {
		return incident
	}

	output := incident
	center := computeCenter(reference)

	for i := 0; i < len(reference); i++ {
		if len(output) == 0 {
			break
		}

		v1 := reference[i]
		v2 := reference[(i+1)%len(reference)]

		// Clipping plane normal: perpendicular to the edge, pointing
		// toward the center of the reference feature
		edge := v2.Sub(v1)
		clipNormal := edge.Cross(normal)
		if clipNormal.LenSqr() < 1e-12 {
			continue
		}
		clipNormal = clipNormal.Normalize()

		if center.Sub(v1).Dot(clipNormal) < 0 {
			clipNormal = clipNormal.Mul(-1)
		}

		output = clipPolygonAgainstPlane(output, v1, clipNormal)
	}

	return output
}

// clipPolygonAgainstPlane implements Sutherland-Hodgman for a single plane
func clipPolygonAgainstPlane(polygon []mgl64.Vec3, planePoint, planeNormal mgl64.Vec3) []mgl64.Vec3 {
	if len(polygon) == 0 {
		return polygon
	}

	var output []mgl64.Vec3
	for i := 0; i < len(polygon); i++ {
		current := polygon[i]
		next := polygon[(i+1)%len(polygon)]

		currentDist := current.Sub(planePoint).Dot(planeNormal)
		nextDist := next.Sub(planePoint).Dot(planeNormal)

		const tolerance = 1e-6

		if currentDist >= -tolerance {
			output = append(output, current)

			// Edge crosses the plane going out
			if nextDist < -tolerance {
				output = append(output, lineIntersectPlane(current, next, planePoint, planeNormal))
			}
		} else if nextDist >= -tolerance {
			// Edge crosses the plane coming in
			output = append(output, lineIntersectPlane(current, next, planePoint, planeNormal))
		}
	}

	return output
}

// lineIntersectPlane calculates the intersection between a line segment
// and a plane
func lineIntersectPlane(p1, p2, planePoint, planeNormal mgl64.Vec3) mgl64.Vec3 {
	dir := p2.Sub(p1)
	dist := p1.Sub(planePoint).Dot(planeNormal)
	denom := dir.Dot(planeNormal)

	if math.Abs(denom) < 1e-10 {
		return p1 // Segment parallel to plane
	}

	t := -dist / denom
	t = math.Max(0, math.Min(1, t)) // Clamp to segment

	return p1.Add(dir.Mul(t))
}

// computeCenter calculates the centroid of a set of points
func computeCenter(points []mgl64.Vec3) mgl64.Vec3 {
	if len(points) == 0 {
		return mgl64.Vec3{0, 0, 0}
	}

	sum := mgl64.Vec3{0, 0, 0}
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1.0 / float64(len(points)))
}

// isLargePlane detects whether a feature stands in for an infinite plane
func isLargePlane(feature []mgl64.Vec3) bool {
	if len(feature) != 4 {
		return false
	}

	for i := 0; i < len(feature); i++ {
		for j := i + 1; j < len(feature); j++ {
			if feature[i].Sub(feature[j]).Len() > 100 {
				return true
			}
		}
	}
	return false
}

func transformFeature(feature []mgl64.Vec3, transform actor.Transform, shape actor.ShapeInterface) []mgl64.Vec3 {
	// Plane features are already expressed in world space
	if _, ok := shape.(*actor.Plane); ok {
		return feature
	}

	result := make([]mgl64.Vec3, len(feature))
	for i, point := range feature {
		result[i] = transform.Apply(point)
	}
	return result
}

func tangentBasis(normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	tangent1 := mgl64.Vec3{1, 0, 0}
	if math.Abs(normal.X()) > 0.9 {
		tangent1 = mgl64.Vec3{0, 1, 0}
	}

	tangent1 = tangent1.Sub(normal.Mul(tangent1.Dot(normal))).Normalize()
	tangent2 := normal.Cross(tangent1).Normalize()

	return tangent1, tangent2
}

// reduceTo4Points keeps the extreme points along the two tangent axes of
// the contact plane. Selected indices are deduplicated in ascending
// order so the reduced manifold does not depend on map iteration.
func reduceTo4Points(points []Point, normal mgl64.Vec3) []Point {
	tangent1, tangent2 := tangentBasis(normal)

	minX, maxX, minY, maxY := 0, 0, 0, 0
	minXval, maxXval := math.Inf(1), math.Inf(-1)
	minYval, maxYval := math.Inf(1), math.Inf(-1)

	for i, p := range points {
		x := p.Position.Dot(tangent1)
		y := p.Position.Dot(tangent2)

		if x < minXval {
			minXval, minX = x, i
		}
		if x > maxXval {
			maxXval, maxX = x, i
		}
		if y < minYval {
			minYval, minY = y, i
		}
		if y > maxYval {
			maxYval, maxY = y, i
		}
	}

	selected := []int{minX, maxX, minY, maxY}
	for i := 0; i < len(selected)-1; i++ {
		for j := i + 1; j < len(selected); j++ {
			if selected[i] > selected[j] {
				selected[i], selected[j] = selected[j], selected[i]
			}
		}
	}

	result := make([]Point, 0, 4)
	for i, idx := range selected {
		if i > 0 && idx == selected[i-1] {
			continue
		}
		result = append(result, points[idx])
	}

	return result
}
