// Package constraint implements the XPBD constraints solved each
// substep: contact manifolds and the joint family (distance, revolute,
// prismatic, fixed, custom).
//
// All constraints share the same compliance-based position projection:
//
//	Δλ = (-C - α̃λ) / (w₁ + w₂ + α̃)   with α̃ = compliance / h²
//
// where C is the constraint error, w the generalized inverse masses and
// h the substep duration. Zero compliance gives a rigid constraint.
package constraint

import (
	"math"

	"github.com/akmonengine/bedrock/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Compliance presets in m/N, from measured material stiffness.
// Lower is stiffer.
const (
	ConcreteCompliance = 0.04e-9
	WoodCompliance     = 0.16e-9
	LeatherCompliance  = 14e-8
	TendonCompliance   = 0.2e-7
	RubberCompliance   = 1e-6
	MuscleCompliance   = 0.2e-3
	FatCompliance      = 1e-3

	// DefaultCompliance controls contact stiffness. Lower values mean
	// stiffer contacts (less penetration, potential jitter), higher
	// values softer contacts (more penetration, smoother).
	DefaultCompliance = 1e-7
)

// Kind discriminates the constraint variants sharing the Constraint
// struct. A tagged struct instead of an interface keeps the registry a
// flat slice the solver can iterate in ID order without indirection.
type Kind int

const (
	KindContact Kind = iota
	KindDistance
	KindRevolute
	KindPrismatic
	KindFixed
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindContact:
		return "contact"
	case KindDistance:
		return "distance"
	case KindRevolute:
		return "revolute"
	case KindPrismatic:
		return "prismatic"
	case KindFixed:
		return "fixed"
	case KindCustom:
		return "custom"
	}
	return "unknown"
}

// CustomSolver lets callers plug domain-specific constraints into the
// registry; the solver calls it in ID order like any built-in kind.
type CustomSolver interface {
	SolvePosition(c *Constraint, h float64)
	SolveVelocity(c *Constraint, h float64)
}

// Constraint is one entry of the constraint registry. Which payload
// fields are meaningful depends on Kind.
type Constraint struct {
	// Stable identity; the solver iterates constraints in ID order
	ID   uint64
	Kind Kind

	BodyA *actor.RigidBody
	BodyB *actor.RigidBody

	Compliance float64
	// Damping applies velocity-level damping on the joint each substep,
	// as a rate in 1/s. Zero disables it.
	Damping float64

	// DisableCollision suppresses contact generation between the two
	// bodies of a joint
	DisableCollision bool

	// Accumulated multipliers for the current substep
	Lambda        float64
	AngularLambda float64

	// MaxCorrection caps the position change applied to either body by
	// a single solve, guarding against explosive corrections from deep
	// penetrations. Zero means uncapped.
	MaxCorrection float64

	// Contact payload
	ColliderA       *actor.Collider
	ColliderB       *actor.Collider
	Manifold        *Manifold
	Restitution     float64
	StaticFriction  float64
	DynamicFriction float64
	Sensor          bool

	// Joint payload
	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3
	LocalAxisA   mgl64.Vec3
	LocalAxisB   mgl64.Vec3
	RestLength   float64
	MinLimit     float64
	MaxLimit     float64
	HasLimits    bool
	// ReferenceRotation is the initial relative rotation qA⁻¹ ⊗ qB,
	// the target for fixed and prismatic joints
	ReferenceRotation mgl64.Quat

	Custom CustomSolver
}

// PrepareSubstep resets the accumulated multipliers. Contact points
// seed theirs from the previous frame's converged value, scaled by the
// warm-start coefficient, on the first substep only.
func (c *Constraint) PrepareSubstep(warmStartCoefficient float64, firstSubstep bool) {
	c.Lambda = 0
	c.AngularLambda = 0

	if c.Kind != KindContact || c.Manifold == nil {
		return
	}
	for i := range c.Manifold.Points {
		point := &c.Manifold.Points[i]
		point.NormalLambda = 0
		point.TangentLambda = 0
		if firstSubstep && warmStartCoefficient > 0 {
			point.NormalLambda = point.WarmStartNormal * warmStartCoefficient
		}
	}
}

// SolvePosition projects the constraint at position level for one
// substep of duration h
func (c *Constraint) SolvePosition(h float64) {
	if c.skip() {
		return
	}

	switch c.Kind {
	case KindContact:
		c.solveContactPosition(h)
	case KindDistance:
		c.solveDistancePosition(h)
	case KindRevolute:
		c.solveRevolutePosition(h)
	case KindPrismatic:
		c.solvePrismaticPosition(h)
	case KindFixed:
		c.solveFixedPosition(h)
	case KindCustom:
		if c.Custom != nil {
			c.Custom.SolvePosition(c, h)
		}
	}
}

// SolveVelocity runs after velocities have been derived from the
// position deltas: restitution and dynamic friction for contacts,
// damping for joints.
func (c *Constraint) SolveVelocity(h float64) {
	if c.skip() {
		return
	}

	switch c.Kind {
	case KindContact:
		c.solveContactVelocity(h)
	case KindDistance, KindRevolute, KindPrismatic, KindFixed:
		c.solveJointDamping(h)
	case KindCustom:
		if c.Custom != nil {
			c.Custom.SolveVelocity(c, h)
		}
	}
}

func (c *Constraint) skip() bool {
	if c.Sensor {
		return true
	}
	if c.BodyA.IsSleeping && c.BodyB.IsSleeping {
		return true
	}
	return c.BodyA.InverseMass() == 0 && c.BodyB.InverseMass() == 0 &&
		c.BodyA.GetInverseInertiaWorld() == (mgl64.Mat3{}) &&
		c.BodyB.GetInverseInertiaWorld() == (mgl64.Mat3{})
}

// generalizedInverseMass is the effective inverse mass of a body for a
// unit impulse along n applied at offset r from its center.
func generalizedInverseMass(body *actor.RigidBody, r, n mgl64.Vec3) float64 {
	rxn := r.Cross(n)
	return body.InverseMass() + body.GetInverseInertiaWorld().Mul3x1(rxn).Dot(rxn)
}

// angularInverseMass is the effective inverse mass for a pure rotation
// about axis n
func angularInverseMass(body *actor.RigidBody, n mgl64.Vec3) float64 {
	return body.GetInverseInertiaWorld().Mul3x1(n).Dot(n)
}

// applyCorrection moves a body by the positional impulse p applied at
// offset r, translating and rotating it accordingly
func applyCorrection(body *actor.RigidBody, p, r mgl64.Vec3) {
	invMass := body.InverseMass()
	if invMass > 0 {
		body.Transform.Position = body.Transform.Position.Add(p.Mul(invMass))
	}
	applyAngularCorrection(body, body.GetInverseInertiaWorld().Mul3x1(r.Cross(p)))
}

// applyAngularCorrection rotates a body by the small rotation vector
// deltaRot. For a small angle δθ the rotation quaternion is [1, δθ/2].
func applyAngularCorrection(body *actor.RigidBody, deltaRot mgl64.Vec3) {
	if deltaRot.LenSqr() < 1e-20 {
		return
	}
	qDelta := mgl64.Quat{W: 1.0, V: deltaRot.Mul(0.5)}.Normalize()
	body.Transform.SetRotation(qDelta.Mul(body.Transform.Rotation))
}

// solveScalarConstraint performs one XPBD projection of a scalar
// constraint with error c, gradient gradA (unit) at anchor offset rA of
// body A and -gradA at rB of body B. The accumulated multiplier is
// updated in place and the applied delta returned.
func (c *Constraint) solveScalarConstraint(errC float64, gradA, rA, rB mgl64.Vec3, compliance, h float64, lambda *float64) float64 {
	wA := generalizedInverseMass(c.BodyA, rA, gradA)
	wB := generalizedInverseMass(c.BodyB, rB, gradA)
	w := wA + wB
	if w < 1e-12 {
		return 0
	}

	alphaTilde := compliance / (h * h)
	deltaLambda := (-errC - alphaTilde**lambda) / (w + alphaTilde)

	if c.MaxCorrection > 0 {
		maxW := math.Max(wA, wB)
		if maxW > 0 {
			limit := c.MaxCorrection / maxW
			deltaLambda = math.Max(-limit, math.Min(limit, deltaLambda))
		}
	}

	*lambda += deltaLambda

	p := gradA.Mul(deltaLambda)
	applyCorrection(c.BodyA, p, rA)
	applyCorrection(c.BodyB, p.Mul(-1), rB)

	return deltaLambda
}

// solveAngularConstraint performs one XPBD projection of an angular
// constraint: rotate the bodies about axis (unit) to remove the angular
// error angle. Body A rotates by +axis, body B by -axis.
func (c *Constraint) solveAngularConstraint(angle float64, axis mgl64.Vec3, compliance, h float64, lambda *float64) {
	wA := angularInverseMass(c.BodyA, axis)
	wB := angularInverseMass(c.BodyB, axis)
	w := wA + wB
	if w < 1e-12 {
		return
	}

	alphaTilde := compliance / (h * h)
	deltaLambda := (-angle - alphaTilde**lambda) / (w + alphaTilde)
	*lambda += deltaLambda

	p := axis.Mul(deltaLambda)
	applyAngularCorrection(c.BodyA, c.BodyA.GetInverseInertiaWorld().Mul3x1(p).Mul(-1))
	applyAngularCorrection(c.BodyB, c.BodyB.GetInverseInertiaWorld().Mul3x1(p))
}

// clampSmallVelocities only writes movable bodies; a shared static
// anchor may be clamped from several islands at once
func clampSmallVelocities(rb *actor.RigidBody) {
	const velocityThreshold = 1e-5

	if rb.BodyType != actor.BodyTypeDynamic || rb.Frozen {
		return
	}

	if rb.Velocity.Len() < velocityThreshold {
		rb.Velocity = mgl64.Vec3{0, 0, 0}
	}
	if rb.AngularVelocity.Len() < velocityThreshold {
		rb.AngularVelocity = mgl64.Vec3{0, 0, 0}
	}
}
