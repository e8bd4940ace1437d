package constraint

import (
	"math"

	"github.com/akmonengine/bedrock/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// NewDistanceJoint keeps the two anchors at restLength. With limits the
// distance may float between min and max instead.
func NewDistanceJoint(id uint64, bodyA, bodyB *actor.RigidBody, localAnchorA, localAnchorB mgl64.Vec3, restLength, compliance float64) *Constraint {
	return &Constraint{
		ID:           id,
		Kind:         KindDistance,
		BodyA:        bodyA,
		BodyB:        bodyB,
		Compliance:   compliance,
		LocalAnchorA: localAnchorA,
		LocalAnchorB: localAnchorB,
		RestLength:   restLength,
	}
}

// NewRevoluteJoint pins the two anchors together and aligns the two
// local axes, leaving rotation about that axis free (a hinge).
func NewRevoluteJoint(id uint64, bodyA, bodyB *actor.RigidBody, localAnchorA, localAnchorB, localAxisA, localAxisB mgl64.Vec3, compliance float64) *Constraint {
	return &Constraint{
		ID:           id,
		Kind:         KindRevolute,
		BodyA:        bodyA,
		BodyB:        bodyB,
		Compliance:   compliance,
		LocalAnchorA: localAnchorA,
		LocalAnchorB: localAnchorB,
		LocalAxisA:   localAxisA.Normalize(),
		LocalAxisB:   localAxisB.Normalize(),
	}
}

// NewPrismaticJoint locks relative rotation and allows translation only
// along the axis (local to body A), optionally bounded by [min, max].
func NewPrismaticJoint(id uint64, bodyA, bodyB *actor.RigidBody, localAnchorA, localAnchorB, localAxisA mgl64.Vec3, minLimit, maxLimit float64, hasLimits bool, compliance float64) *Constraint {
	return &Constraint{
		ID:                id,
		Kind:              KindPrismatic,
		BodyA:             bodyA,
		BodyB:             bodyB,
		Compliance:        compliance,
		LocalAnchorA:      localAnchorA,
		LocalAnchorB:      localAnchorB,
		LocalAxisA:        localAxisA.Normalize(),
		MinLimit:          minLimit,
		MaxLimit:          maxLimit,
		HasLimits:         hasLimits,
		ReferenceRotation: relativeRotation(bodyA, bodyB),
	}
}

// NewFixedJoint welds the two bodies: coincident anchors and the
// relative rotation they had at creation time.
func NewFixedJoint(id uint64, bodyA, bodyB *actor.RigidBody, localAnchorA, localAnchorB mgl64.Vec3, compliance float64) *Constraint {
	return &Constraint{
		ID:                id,
		Kind:              KindFixed,
		BodyA:             bodyA,
		BodyB:             bodyB,
		Compliance:        compliance,
		LocalAnchorA:      localAnchorA,
		LocalAnchorB:      localAnchorB,
		ReferenceRotation: relativeRotation(bodyA, bodyB),
	}
}

// NewCustomConstraint registers a user-provided solver under a stable ID
func NewCustomConstraint(id uint64, bodyA, bodyB *actor.RigidBody, solver CustomSolver) *Constraint {
	return &Constraint{
		ID:     id,
		Kind:   KindCustom,
		BodyA:  bodyA,
		BodyB:  bodyB,
		Custom: solver,
	}
}

// relativeRotation captures qA⁻¹ ⊗ qB, the rotation from A's frame to
// B's frame
func relativeRotation(bodyA, bodyB *actor.RigidBody) mgl64.Quat {
	return bodyA.Transform.Rotation.Conjugate().Mul(bodyB.Transform.Rotation).Normalize()
}

func (c *Constraint) anchorsWorld() (worldA, worldB, rA, rB mgl64.Vec3) {
	worldA = c.BodyA.Transform.Apply(c.LocalAnchorA)
	worldB = c.BodyB.Transform.Apply(c.LocalAnchorB)
	rA = worldA.Sub(c.BodyA.Transform.Position)
	rB = worldB.Sub(c.BodyB.Transform.Position)
	return
}

func (c *Constraint) solveDistancePosition(h float64) {
	worldA, worldB, rA, rB := c.anchorsWorld()

	d := worldB.Sub(worldA)
	dist := d.Len()
	if dist < 1e-9 {
		return
	}
	n := d.Mul(1.0 / dist)

	var errC float64
	if c.HasLimits {
		switch {
		case dist > c.MaxLimit:
			errC = dist - c.MaxLimit
		case dist < c.MinLimit:
			errC = dist - c.MinLimit
		default:
			return
		}
	} else {
		errC = dist - c.RestLength
	}

	// Gradient of |worldB - worldA| with respect to body A is -n
	c.solveScalarConstraint(errC, n.Mul(-1), rA, rB, c.Compliance, h, &c.Lambda)
}

// solvePointConstraint pins the two anchors together; shared by the
// revolute and fixed joints
func (c *Constraint) solvePointConstraint(h float64) {
	worldA, worldB, rA, rB := c.anchorsWorld()

	delta := worldA.Sub(worldB)
	dist := delta.Len()
	if dist < 1e-9 {
		return
	}
	n := delta.Mul(1.0 / dist)

	c.solveScalarConstraint(dist, n, rA, rB, c.Compliance, h, &c.Lambda)
}

// solveAxisAlignment rotates the bodies so their world axes coincide
func (c *Constraint) solveAxisAlignment(h float64) {
	axisA := c.BodyA.Transform.Rotation.Rotate(c.LocalAxisA)
	axisB := c.BodyB.Transform.Rotation.Rotate(c.LocalAxisB)

	cross := axisA.Cross(axisB)
	sinAngle := cross.Len()
	if sinAngle < 1e-9 {
		return
	}

	// Rotating A about cross moves axisA toward axisB
	axis := cross.Mul(1.0 / sinAngle)
	angle := math.Asin(math.Min(1, sinAngle))
	if axisA.Dot(axisB) < 0 {
		angle = math.Pi - angle
	}

	c.solveAngularConstraint(angle, axis, c.Compliance, h, &c.AngularLambda)
}

// solveRotationLock drives the relative rotation back to the reference,
// removing all three angular degrees of freedom
func (c *Constraint) solveRotationLock(h float64) {
	// Where B should be if the joint were rigid
	target := c.BodyA.Transform.Rotation.Mul(c.ReferenceRotation)
	errQuat := c.BodyB.Transform.Rotation.Mul(target.Conjugate()).Normalize()
	if errQuat.W < 0 {
		errQuat = errQuat.Scale(-1)
	}

	// Small-angle rotation vector of the error
	errVec := errQuat.V.Mul(2.0)
	angle := errVec.Len()
	if angle < 1e-9 {
		return
	}

	c.solveAngularConstraint(angle, errVec.Mul(1.0/angle), c.Compliance, h, &c.AngularLambda)
}

func (c *Constraint) solveRevolutePosition(h float64) {
	c.solveAxisAlignment(h)
	c.solvePointConstraint(h)
}

func (c *Constraint) solveFixedPosition(h float64) {
	c.solveRotationLock(h)
	c.solvePointConstraint(h)
}

func (c *Constraint) solvePrismaticPosition(h float64) {
	c.solveRotationLock(h)

	worldA, worldB, rA, rB := c.anchorsWorld()
	axis := c.BodyA.Transform.Rotation.Rotate(c.LocalAxisA)

	d := worldB.Sub(worldA)

	// Lock the two directions perpendicular to the slide axis
	perp := d.Sub(axis.Mul(d.Dot(axis)))
	perpLen := perp.Len()
	if perpLen > 1e-9 {
		dir := perp.Mul(1.0 / perpLen)
		c.solveScalarConstraint(perpLen, dir.Mul(-1), rA, rB, c.Compliance, h, &c.Lambda)
	}

	if !c.HasLimits {
		return
	}

	// Travel limits along the axis
	worldA, worldB, rA, rB = c.anchorsWorld()
	axis = c.BodyA.Transform.Rotation.Rotate(c.LocalAxisA)
	travel := worldB.Sub(worldA).Dot(axis)

	var errC float64
	switch {
	case travel > c.MaxLimit:
		errC = travel - c.MaxLimit
	case travel < c.MinLimit:
		errC = travel - c.MinLimit
	default:
		return
	}

	c.solveScalarConstraint(errC, axis.Mul(-1), rA, rB, c.Compliance, h, &c.Lambda)
}

// solveJointDamping removes a fraction of the relative velocity between
// the joined bodies, both linear and angular
func (c *Constraint) solveJointDamping(h float64) {
	if c.Damping <= 0 {
		return
	}

	factor := math.Min(c.Damping*h, 1.0)

	_, _, rA, rB := c.anchorsWorld()

	vA := c.BodyA.Velocity.Add(c.BodyA.AngularVelocity.Cross(rA))
	vB := c.BodyB.Velocity.Add(c.BodyB.AngularVelocity.Cross(rB))
	deltaV := vB.Sub(vA).Mul(factor)

	wA := c.BodyA.InverseMass()
	wB := c.BodyB.InverseMass()
	w := wA + wB
	if w > 1e-12 {
		impulse := deltaV.Mul(1.0 / w)
		applyVelocityImpulse(c.BodyA, impulse, rA)
		applyVelocityImpulse(c.BodyB, impulse.Mul(-1), rB)
	}

	deltaOmega := c.BodyB.AngularVelocity.Sub(c.BodyA.AngularVelocity).Mul(factor)
	wOmegaA := angularInverseMass(c.BodyA, safeNormalize(deltaOmega))
	wOmegaB := angularInverseMass(c.BodyB, safeNormalize(deltaOmega))
	wOmega := wOmegaA + wOmegaB
	if wOmega > 1e-12 {
		p := deltaOmega.Mul(1.0 / wOmega)
		if wOmegaA > 0 {
			c.BodyA.AngularVelocity = c.BodyA.AngularVelocity.Add(c.BodyA.GetInverseInertiaWorld().Mul3x1(p))
		}
		if wOmegaB > 0 {
			c.BodyB.AngularVelocity = c.BodyB.AngularVelocity.Sub(c.BodyB.GetInverseInertiaWorld().Mul3x1(p))
		}
	}
}

func safeNormalize(v mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < 1e-12 {
		return mgl64.Vec3{0, 1, 0}
	}
	return v.Mul(1.0 / l)
}
