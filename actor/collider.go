package actor

import "github.com/go-gl/mathgl/mgl64"

// Collider attaches a collision shape to a rigid body. A body may carry
// several colliders (compound shapes); each collider belongs to exactly
// one body.
type Collider struct {
	// Stable identity assigned by the world, used for pair keys and
	// warm-start caches
	ID uint64

	Body  *RigidBody
	Shape ShapeInterface

	// Transform of the shape relative to the body origin
	Local Transform

	Material Material

	// Sensors report overlaps through events but never generate
	// contact constraints
	IsSensor bool

	aabb AABB
}

// WorldTransform composes the body transform with the collider's local one
func (c *Collider) WorldTransform() Transform {
	return c.Body.Transform.Mul(c.Local)
}

// SupportWorld returns the furthest world-space point of the collider in
// the given world-space direction
func (c *Collider) SupportWorld(direction mgl64.Vec3) mgl64.Vec3 {
	world := c.WorldTransform()

	localDirection := world.InverseRotation.Rotate(direction)
	localSupport := c.Shape.Support(localDirection)

	return world.Apply(localSupport)
}

// UpdateAABB refreshes the cached bounding volume, extended along the
// body's expected displacement so speculative candidates are not missed
func (c *Collider) UpdateAABB(displacement mgl64.Vec3, margin float64) {
	aabb := c.Shape.ComputeAABB(c.WorldTransform())
	c.aabb = aabb.Expanded(margin).Swept(displacement)
}

// AABB returns the cached bounding volume
func (c *Collider) AABB() AABB {
	return c.aabb
}
