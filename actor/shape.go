package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// PlaneContact is a single point produced by the analytic shape-plane test
type PlaneContact struct {
	Position    mgl64.Vec3
	Penetration float64
}

// ShapeInterface is the interface that all collision shapes must implement
type ShapeInterface interface {
	// ComputeAABB calculates the axis-aligned bounding box for the shape
	// at the given transform
	ComputeAABB(transform Transform) AABB
	// ComputeMass calculates mass data for the shape given a density
	ComputeMass(density float64) float64
	ComputeInertia(mass float64) mgl64.Mat3
	// Support returns the furthest local-space point in the given direction
	Support(direction mgl64.Vec3) mgl64.Vec3
	// GetContactFeature returns the local face/edge/point most aligned with
	// the given direction, used for manifold clipping
	GetContactFeature(direction mgl64.Vec3) []mgl64.Vec3
	// CollideWithPlane tests the shape against the plane n·x + d = 0.
	// Points within margin of the surface are reported with negative
	// penetration so speculative contacts can be formed.
	CollideWithPlane(normal mgl64.Vec3, distance float64, transform Transform, margin float64) (bool, []PlaneContact)
}

// Box represents an oriented box collision shape
// The box is defined by its half-extents (half-width, half-height, half-depth)
type Box struct {
	HalfExtents mgl64.Vec3
}

func (b *Box) corners() [8]mgl64.Vec3 {
	hx, hy, hz := b.HalfExtents.X(), b.HalfExtents.Y(), b.HalfExtents.Z()
	return [8]mgl64.Vec3{
		{-hx, -hy, -hz},
		{+hx, -hy, -hz},
		{-hx, +hy, -hz},
		{+hx, +hy, -hz},
		{-hx, -hy, +hz},
		{+hx, -hy, +hz},
		{-hx, +hy, +hz},
		{+hx, +hy, +hz},
	}
}

func (b *Box) ComputeAABB(transform Transform) AABB {
	corners := b.corners()

	worldCorner := transform.Apply(corners[0])
	min := worldCorner
	max := worldCorner

	for i := 1; i < 8; i++ {
		worldCorner = transform.Apply(corners[i])
		for axis := 0; axis < 3; axis++ {
			min[axis] = math.Min(min[axis], worldCorner[axis])
			max[axis] = math.Max(max[axis], worldCorner[axis])
		}
	}

	return AABB{Min: min, Max: max}
}

// ComputeMass calculates mass data for the box
func (b *Box) ComputeMass(density float64) float64 {
	// Volume = 8 * hx * hy * hz (full dimensions are 2*halfExtents)
	volume := 8.0 * b.HalfExtents.X() * b.HalfExtents.Y() * b.HalfExtents.Z()

	return density * volume
}

func (b *Box) ComputeInertia(mass float64) mgl64.Mat3 {
	x := b.HalfExtents.X() * 2
	y := b.HalfExtents.Y() * 2
	z := b.HalfExtents.Z() * 2

	// I = (m/12) * (dimension1² + dimension2²)
	factor := mass / 12.0
	ix := factor * (y*y + z*z)
	iy := factor * (x*x + z*z)
	iz := factor * (x*x + y*y)

	return mgl64.Mat3{
		ix, 0, 0,
		0, iy, 0,
		0, 0, iz,
	}
}

func (b *Box) Support(direction mgl64.Vec3) mgl64.Vec3 {
	hx, hy, hz := b.HalfExtents.X(), b.HalfExtents.Y(), b.HalfExtents.Z()

	if direction.X() < 0 {
		hx = -hx
	}
	if direction.Y() < 0 {
		hy = -hy
	}
	if direction.Z() < 0 {
		hz = -hz
	}

	return mgl64.Vec3{hx, hy, hz}
}

func (b *Box) GetContactFeature(direction mgl64.Vec3) []mgl64.Vec3 {
	dir := direction.Normalize()

	// Find the face whose normal points the most in the direction
	bestDot := -math.MaxFloat64
	var bestFace []mgl64.Vec3

	hx := b.HalfExtents.X()
	hy := b.HalfExtents.Y()
	hz := b.HalfExtents.Z()

	// The 6 faces with their vertices (CCW seen from outside)
	faces := []struct {
		normal   mgl64.Vec3
		vertices []mgl64.Vec3
	}{
		{
			normal: mgl64.Vec3{1, 0, 0},
			vertices: []mgl64.Vec3{
				{hx, -hy, -hz},
				{hx, -hy, hz},
				{hx, hy, hz},
				{hx, hy, -hz},
			},
		},
		{
			normal: mgl64.Vec3{-1, 0, 0},
			vertices: []mgl64.Vec3{
				{-hx, -hy, hz},
				{-hx, -hy, -hz},
				{-hx, hy, -hz},
				{-hx, hy, hz},
			},
		},
		{
			normal: mgl64.Vec3{0, 1, 0},
			vertices: []mgl64.Vec3{
				{-hx, hy, -hz},
				{-hx, hy, hz},
				{hx, hy, hz},
				{hx, hy, -hz},
			},
		},
		{
			normal: mgl64.Vec3{0, -1, 0},
			vertices: []mgl64.Vec3{
				{-hx, -hy, hz},
				{hx, -hy, hz},
				{hx, -hy, -hz},
				{-hx, -hy, -hz},
			},
		},
		{
			normal: mgl64.Vec3{0, 0, 1},
			vertices: []mgl64.Vec3{
				{-hx, -hy, hz},
				{-hx, hy, hz},
				{hx, hy, hz},
				{hx, -hy, hz},
			},
		},
		{
			normal: mgl64.Vec3{0, 0, -1},
			vertices: []mgl64.Vec3{
				{hx, -hy, -hz},
				{hx, hy, -hz},
				{-hx, hy, -hz},
				{-hx, -hy, -hz},
			},
		},
	}

	for _, face := range faces {
		dot := dir.Dot(face.normal)
		if dot > bestDot {
			bestDot = dot
			bestFace = face.vertices
		}
	}

	return bestFace
}

func (b *Box) CollideWithPlane(normal mgl64.Vec3, distance float64, transform Transform, margin float64) (bool, []PlaneContact) {
	var contacts []PlaneContact

	for _, corner := range b.corners() {
		world := transform.Apply(corner)
		penetration := -(normal.Dot(world) + distance)
		if penetration > -margin {
			contacts = append(contacts, PlaneContact{Position: world, Penetration: penetration})
		}
	}

	if len(contacts) == 0 {
		return false, nil
	}

	// Keep the 4 deepest points; stable selection keeps the point
	// ordering reproducible for warm-start matching.
	if len(contacts) > 4 {
		for i := 0; i < 4; i++ {
			deepest := i
			for j := i + 1; j < len(contacts); j++ {
				if contacts[j].Penetration > contacts[deepest].Penetration {
					deepest = j
				}
			}
			contacts[i], contacts[deepest] = contacts[deepest], contacts[i]
		}
		contacts = contacts[:4]
	}

	return true, contacts
}

// Sphere represents a spherical collision shape
type Sphere struct {
	Radius float64
}

// ComputeAABB calculates the axis-aligned bounding box for the sphere
func (s *Sphere) ComputeAABB(transform Transform) AABB {
	// Sphere AABB is not affected by rotation, only by position
	radiusVec := mgl64.Vec3{s.Radius, s.Radius, s.Radius}

	return AABB{
		Min: transform.Position.Sub(radiusVec),
		Max: transform.Position.Add(radiusVec),
	}
}

// ComputeMass calculates mass data for the sphere
func (s *Sphere) ComputeMass(density float64) float64 {
	// Volume of sphere = (4/3) * π * r³
	volume := (4.0 / 3.0) * math.Pi * math.Pow(s.Radius, 3)

	return density * volume
}

func (s *Sphere) ComputeInertia(mass float64) mgl64.Mat3 {
	// I = (2/5) * m * r², identical on all axes
	i := (2.0 / 5.0) * mass * s.Radius * s.Radius

	return mgl64.Mat3{
		i, 0, 0,
		0, i, 0,
		0, 0, i,
	}
}

func (s *Sphere) Support(direction mgl64.Vec3) mgl64.Vec3 {
	if direction.LenSqr() < 1e-16 {
		return mgl64.Vec3{s.Radius, 0, 0}
	}
	return direction.Normalize().Mul(s.Radius)
}

func (s *Sphere) GetContactFeature(direction mgl64.Vec3) []mgl64.Vec3 {
	return []mgl64.Vec3{s.Support(direction)}
}

func (s *Sphere) CollideWithPlane(normal mgl64.Vec3, distance float64, transform Transform, margin float64) (bool, []PlaneContact) {
	signedDist := normal.Dot(transform.Position) + distance
	penetration := s.Radius - signedDist
	if penetration <= -margin {
		return false, nil
	}

	return true, []PlaneContact{{
		Position:    transform.Position.Sub(normal.Mul(s.Radius)),
		Penetration: penetration,
	}}
}

// Capsule represents a capsule along the local Y axis: a segment of
// half-length HalfHeight with spherical caps of the given radius.
type Capsule struct {
	Radius     float64
	HalfHeight float64
}

func (c *Capsule) endpoints() (mgl64.Vec3, mgl64.Vec3) {
	return mgl64.Vec3{0, c.HalfHeight, 0}, mgl64.Vec3{0, -c.HalfHeight, 0}
}

func (c *Capsule) ComputeAABB(transform Transform) AABB {
	top, bottom := c.endpoints()
	radiusVec := mgl64.Vec3{c.Radius, c.Radius, c.Radius}

	worldTop := transform.Apply(top)
	worldBottom := transform.Apply(bottom)

	a := AABB{Min: worldTop.Sub(radiusVec), Max: worldTop.Add(radiusVec)}
	b := AABB{Min: worldBottom.Sub(radiusVec), Max: worldBottom.Add(radiusVec)}

	return a.Union(b)
}

func (c *Capsule) ComputeMass(density float64) float64 {
	cylinderVolume := math.Pi * c.Radius * c.Radius * (2 * c.HalfHeight)
	sphereVolume := (4.0 / 3.0) * math.Pi * math.Pow(c.Radius, 3)

	return density * (cylinderVolume + sphereVolume)
}

func (c *Capsule) ComputeInertia(mass float64) mgl64.Mat3 {
	r := c.Radius
	h := 2 * c.HalfHeight

	cylinderVolume := math.Pi * r * r * h
	sphereVolume := (4.0 / 3.0) * math.Pi * r * r * r
	totalVolume := cylinderVolume + sphereVolume

	cylinderMass := mass * cylinderVolume / totalVolume
	sphereMass := mass * sphereVolume / totalVolume

	// Axis of the capsule is Y; caps treated as a sphere split in two,
	// shifted to the cylinder ends (parallel axis theorem).
	iy := cylinderMass*r*r/2 + sphereMass*2*r*r/5
	ix := cylinderMass*(h*h/12+r*r/4) +
		sphereMass*(2*r*r/5+h*h/4+3*h*r/8)

	return mgl64.Mat3{
		ix, 0, 0,
		0, iy, 0,
		0, 0, ix,
	}
}

func (c *Capsule) Support(direction mgl64.Vec3) mgl64.Vec3 {
	if direction.LenSqr() < 1e-16 {
		return mgl64.Vec3{0, c.HalfHeight + c.Radius, 0}
	}

	end := mgl64.Vec3{0, -c.HalfHeight, 0}
	if direction.Y() >= 0 {
		end = mgl64.Vec3{0, c.HalfHeight, 0}
	}

	return end.Add(direction.Normalize().Mul(c.Radius))
}

func (c *Capsule) GetContactFeature(direction mgl64.Vec3) []mgl64.Vec3 {
	dir := direction.Normalize()

	// Near-perpendicular directions see the side of the capsule: the
	// contact feature is the full segment pushed out by the radius.
	if math.Abs(dir.Y()) < 0.7 {
		top, bottom := c.endpoints()
		offset := dir.Mul(c.Radius)
		return []mgl64.Vec3{top.Add(offset), bottom.Add(offset)}
	}

	return []mgl64.Vec3{c.Support(dir)}
}

func (c *Capsule) CollideWithPlane(normal mgl64.Vec3, distance float64, transform Transform, margin float64) (bool, []PlaneContact) {
	top, bottom := c.endpoints()
	var contacts []PlaneContact

	for _, end := range []mgl64.Vec3{top, bottom} {
		center := transform.Apply(end)
		signedDist := normal.Dot(center) + distance
		penetration := c.Radius - signedDist
		if penetration > -margin {
			contacts = append(contacts, PlaneContact{
				Position:    center.Sub(normal.Mul(c.Radius)),
				Penetration: penetration,
			})
		}
	}

	if len(contacts) == 0 {
		return false, nil
	}
	return true, contacts
}

// Plane represents an infinite plane collision shape
// The plane is defined by the equation: Normal · p + Distance = 0
// where Normal is the plane's normal vector (must be normalized)
// and Distance is the signed distance from the origin along the normal
type Plane struct {
	Normal   mgl64.Vec3 // Plane normal (must be normalized)
	Distance float64    // Plane constant (signed distance from origin)
}

func (p *Plane) ComputeAABB(transform Transform) AABB {
	const thickness = 1.0 // detection thickness below the surface
	const infinity = 1e10

	// Point on the plane closest to the origin
	planePoint := p.Normal.Mul(-p.Distance)

	min := planePoint.Sub(p.Normal.Mul(thickness)).Add(transform.Position)
	max := planePoint.Add(transform.Position)

	// Extend to infinity in directions perpendicular to the normal
	absNormal := mgl64.Vec3{
		math.Abs(p.Normal.X()),
		math.Abs(p.Normal.Y()),
		math.Abs(p.Normal.Z()),
	}

	for axis := 0; axis < 3; axis++ {
		if absNormal[axis] < 1.0 {
			min[axis] = -infinity
			max[axis] = infinity
		}
	}

	return AABB{Min: min, Max: max}
}

// ComputeMass calculates mass data for the plane
// Planes are always static with infinite mass
func (p *Plane) ComputeMass(density float64) float64 {
	return math.Inf(1)
}

func (p *Plane) ComputeInertia(mass float64) mgl64.Mat3 {
	return mgl64.Mat3{}
}

// The support of an infinite plane is approximated by a large flat box
func (p *Plane) Support(direction mgl64.Vec3) mgl64.Vec3 {
	const halfWidth = 1000.0
	const halfThickness = 0.5

	tangent1, tangent2 := getTangentBasis(p.Normal)
	center := p.Normal.Mul(-p.Distance)

	support := center
	if direction.Dot(tangent1) < 0 {
		support = support.Sub(tangent1.Mul(halfWidth))
	} else {
		support = support.Add(tangent1.Mul(halfWidth))
	}
	if direction.Dot(tangent2) < 0 {
		support = support.Sub(tangent2.Mul(halfWidth))
	} else {
		support = support.Add(tangent2.Mul(halfWidth))
	}
	if direction.Dot(p.Normal) < 0 {
		support = support.Sub(p.Normal.Mul(halfThickness))
	}

	return support
}

func (p *Plane) GetContactFeature(direction mgl64.Vec3) []mgl64.Vec3 {
	// A plane's feature is a large quad around its origin point
	tangent1, tangent2 := getTangentBasis(p.Normal)
	center := p.Normal.Mul(-p.Distance)

	const size = 1000.0

	return []mgl64.Vec3{
		center.Add(tangent1.Mul(-size)).Add(tangent2.Mul(-size)),
		center.Add(tangent1.Mul(-size)).Add(tangent2.Mul(size)),
		center.Add(tangent1.Mul(size)).Add(tangent2.Mul(size)),
		center.Add(tangent1.Mul(size)).Add(tangent2.Mul(-size)),
	}
}

func (p *Plane) CollideWithPlane(normal mgl64.Vec3, distance float64, transform Transform, margin float64) (bool, []PlaneContact) {
	// Plane-plane pairs never produce contacts
	return false, nil
}

// getTangentBasis generates two unit vectors perpendicular to the normal
func getTangentBasis(normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	tangent1 := mgl64.Vec3{1, 0, 0}
	if math.Abs(normal.X()) > 0.9 {
		tangent1 = mgl64.Vec3{0, 1, 0}
	}

	tangent1 = tangent1.Sub(normal.Mul(tangent1.Dot(normal))).Normalize()
	tangent2 := normal.Cross(tangent1).Normalize()

	return tangent1, tangent2
}
