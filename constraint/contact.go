package constraint

import (
	"math"

	"github.com/akmonengine/bedrock/actor"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// restitutionVelocityThreshold suppresses restitution for slow
	// impacts, which would otherwise jitter under gravity
	restitutionVelocityThreshold = 0.5

	// minPenetrationForSolve filters numerically-zero penetrations
	minPenetrationForSolve = 1e-9
)

// ContactPoint is one point of a contact manifold. The anchors are
// stored in each body's local frame so the penetration can be
// recomputed from the current transforms every substep, which is what
// lets a single narrow-phase manifold survive several substeps.
type ContactPoint struct {
	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3

	// Penetration measured at detection time; negative for speculative
	// points that are close but not yet touching
	Penetration float64

	// Accumulated multipliers for the current substep
	NormalLambda  float64
	TangentLambda float64

	// Converged normal multiplier of the previous frame, used to seed
	// the solver when the point persists
	WarmStartNormal float64
}

// Manifold is the set of up to 4 contact points shared by one collider
// pair, with a single normal pointing from body A toward body B.
type Manifold struct {
	Normal mgl64.Vec3
	Points []ContactPoint
}

// NewContact builds a contact constraint between the owning bodies of
// two colliders. Material properties are combined here once, not per
// substep.
func NewContact(id uint64, a, b *actor.Collider, manifold *Manifold) *Constraint {
	return &Constraint{
		ID:              id,
		Kind:            KindContact,
		BodyA:           a.Body,
		BodyB:           b.Body,
		ColliderA:       a,
		ColliderB:       b,
		Compliance:      DefaultCompliance,
		Manifold:        manifold,
		Restitution:     actor.CombineRestitution(a.Material, b.Material),
		StaticFriction:  actor.CombineStaticFriction(a.Material, b.Material),
		DynamicFriction: actor.CombineDynamicFriction(a.Material, b.Material),
		Sensor:          a.IsSensor || b.IsSensor,
	}
}

// solveContactPosition resolves penetration point by point (Gauss-Seidel).
//
// The penetration is recomputed from the stored anchors at the current
// transforms: C = (worldA - worldB) · n. Points with C <= 0 are
// speculative and contribute nothing this substep. Static friction is
// handled at position level by cancelling the tangential drift of the
// anchors since the previous substep, as long as the tangential
// multiplier stays inside the static friction cone.
func (c *Constraint) solveContactPosition(h float64) {
	m := c.Manifold
	if m == nil || len(m.Points) == 0 {
		return
	}

	bodyA := c.BodyA
	bodyB := c.BodyB
	normal := m.Normal

	for i := range m.Points {
		point := &m.Points[i]

		worldA := bodyA.Transform.Apply(point.LocalAnchorA)
		worldB := bodyB.Transform.Apply(point.LocalAnchorB)

		penetration := worldA.Sub(worldB).Dot(normal)
		if penetration <= minPenetrationForSolve {
			continue
		}

		rA := worldA.Sub(bodyA.Transform.Position)
		rB := worldB.Sub(bodyB.Transform.Position)

		c.solveScalarConstraint(penetration, normal, rA, rB, c.Compliance, h, &point.NormalLambda)

		// Static friction: cancel the tangential motion of the contact
		// since the previous substep, while inside the friction cone
		prevA := bodyA.PreviousTransform.Apply(point.LocalAnchorA)
		prevB := bodyB.PreviousTransform.Apply(point.LocalAnchorB)

		worldA = bodyA.Transform.Apply(point.LocalAnchorA)
		worldB = bodyB.Transform.Apply(point.LocalAnchorB)

		drift := worldA.Sub(prevA).Sub(worldB.Sub(prevB))
		tangentDrift := drift.Sub(normal.Mul(drift.Dot(normal)))
		driftLen := tangentDrift.Len()
		if driftLen < 1e-9 {
			continue
		}

		tangent := tangentDrift.Mul(1.0 / driftLen)
		rA = worldA.Sub(bodyA.Transform.Position)
		rB = worldB.Sub(bodyB.Transform.Position)

		wA := generalizedInverseMass(bodyA, rA, tangent)
		wB := generalizedInverseMass(bodyB, rB, tangent)
		w := wA + wB
		if w < 1e-12 {
			continue
		}

		deltaLambda := -driftLen / w

		// Coulomb cone at position level
		if math.Abs(point.TangentLambda+deltaLambda) >= c.StaticFriction*math.Abs(point.NormalLambda) {
			continue
		}
		point.TangentLambda += deltaLambda

		p := tangent.Mul(deltaLambda)
		applyCorrection(bodyA, p, rA)
		applyCorrection(bodyB, p.Mul(-1), rB)
	}
}

// solveContactVelocity applies restitution and dynamic friction after
// the velocity update. Restitution targets the pre-solve approach
// velocity; dynamic friction is bounded by the normal force the
// position solver produced this substep (μ·|λn|/h).
func (c *Constraint) solveContactVelocity(h float64) {
	m := c.Manifold
	if m == nil || len(m.Points) == 0 {
		return
	}

	bodyA := c.BodyA
	bodyB := c.BodyB
	normal := m.Normal

	for i := range m.Points {
		point := &m.Points[i]

		// Only points the position solver actually pushed on carry a
		// normal force to bounce or rub against
		if point.NormalLambda == 0 {
			continue
		}

		worldA := bodyA.Transform.Apply(point.LocalAnchorA)
		worldB := bodyB.Transform.Apply(point.LocalAnchorB)
		rA := worldA.Sub(bodyA.Transform.Position)
		rB := worldB.Sub(bodyB.Transform.Position)

		vA := bodyA.Velocity.Add(bodyA.AngularVelocity.Cross(rA))
		vB := bodyB.Velocity.Add(bodyB.AngularVelocity.Cross(rB))
		relativeVel := vB.Sub(vA)
		normalVel := relativeVel.Dot(normal)

		vAPrev := bodyA.PresolveVelocity.Add(bodyA.PresolveAngularVelocity.Cross(rA))
		vBPrev := bodyB.PresolveVelocity.Add(bodyB.PresolveAngularVelocity.Cross(rB))
		normalVelPrev := vBPrev.Sub(vAPrev).Dot(normal)

		wA := generalizedInverseMass(bodyA, rA, normal)
		wB := generalizedInverseMass(bodyB, rB, normal)
		w := wA + wB
		if w < 1e-12 {
			continue
		}

		// Restitution, suppressed for slow impacts
		restitution := c.Restitution
		if math.Abs(normalVelPrev) < restitutionVelocityThreshold {
			restitution = 0
		}

		targetVel := math.Max(0, -restitution*normalVelPrev)
		lambdaNormal := (targetVel - normalVel) / w

		// Never pull the bodies together
		if lambdaNormal > 0 {
			impulse := normal.Mul(lambdaNormal)
			applyVelocityImpulse(bodyA, impulse.Mul(-1), rA)
			applyVelocityImpulse(bodyB, impulse, rB)
		}

		// Dynamic friction
		relativeVel = bodyB.Velocity.Add(bodyB.AngularVelocity.Cross(rB)).
			Sub(bodyA.Velocity.Add(bodyA.AngularVelocity.Cross(rA)))
		tangentVel := relativeVel.Sub(normal.Mul(relativeVel.Dot(normal)))
		tangentSpeed := tangentVel.Len()
		if tangentSpeed < 1e-6 {
			continue
		}

		tangent := tangentVel.Mul(1.0 / tangentSpeed)
		wAt := generalizedInverseMass(bodyA, rA, tangent)
		wBt := generalizedInverseMass(bodyB, rB, tangent)
		wt := wAt + wBt
		if wt < 1e-12 {
			continue
		}

		// The friction impulse cannot remove more tangential velocity
		// than Coulomb's law allows for this substep's normal force
		maxDeltaV := c.DynamicFriction * math.Abs(point.NormalLambda) / h
		deltaV := math.Min(tangentSpeed, maxDeltaV)

		frictionImpulse := tangent.Mul(-deltaV / wt)
		applyVelocityImpulse(bodyA, frictionImpulse.Mul(-1), rA)
		applyVelocityImpulse(bodyB, frictionImpulse, rB)
	}

	clampSmallVelocities(bodyA)
	clampSmallVelocities(bodyB)
}

// applyVelocityImpulse never touches an immovable body: islands sharing
// a static anchor solve in parallel, so even a zero-effect write to it
// would race
func applyVelocityImpulse(body *actor.RigidBody, impulse, r mgl64.Vec3) {
	invMass := body.InverseMass()
	if invMass == 0 {
		return
	}
	body.Velocity = body.Velocity.Add(impulse.Mul(invMass))
	body.AngularVelocity = body.AngularVelocity.Add(body.GetInverseInertiaWorld().Mul3x1(r.Cross(impulse)))
}
