package constraint

import (
	"math"
	"testing"

	"github.com/akmonengine/bedrock/actor"
	"github.com/go-gl/mathgl/mgl64"
)

func newBody(position mgl64.Vec3, bodyType actor.BodyType) (*actor.RigidBody, *actor.Collider) {
	body := actor.NewRigidBody(actor.NewTransformAt(position), bodyType)
	collider := body.AttachCollider(
		&actor.Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}},
		actor.NewTransform(),
		actor.DefaultMaterial(),
	)
	return body, collider
}

// restingContact builds a dynamic box sunk 0.05 into a static ground
// box, with one centered contact point
func restingContact() (*Constraint, *actor.RigidBody) {
	ground, groundCol := newBody(mgl64.Vec3{0, -0.5, 0}, actor.BodyTypeStatic)
	box, boxCol := newBody(mgl64.Vec3{0, 0.45, 0}, actor.BodyTypeDynamic)

	// Contact at the origin: the ground anchor sits on its surface, the
	// box anchor one penetration below
	normal := mgl64.Vec3{0, 1, 0}
	manifold := &Manifold{
		Normal: normal,
		Points: []ContactPoint{{
			LocalAnchorA: ground.Transform.ApplyInverse(mgl64.Vec3{0, 0, 0}),
			LocalAnchorB: box.Transform.ApplyInverse(mgl64.Vec3{0, -0.05, 0}),
			Penetration:  0.05,
		}},
	}

	contact := NewContact(1, groundCol, boxCol, manifold)
	box.PreviousTransform = box.Transform
	ground.PreviousTransform = ground.Transform

	return contact, box
}

func currentPenetration(c *Constraint) float64 {
	point := c.Manifold.Points[0]
	worldA := c.BodyA.Transform.Apply(point.LocalAnchorA)
	worldB := c.BodyB.Transform.Apply(point.LocalAnchorB)
	return worldA.Sub(worldB).Dot(c.Manifold.Normal)
}

func TestContactSolvePositionReducesPenetration(t *testing.T) {
	contact, box := restingContact()
	h := 1.0 / 480.0

	before := currentPenetration(contact)
	if math.Abs(before-0.05) > 1e-9 {
		t.Fatalf("Setup error: expected initial penetration 0.05, got %v", before)
	}

	contact.PrepareSubstep(0, true)
	contact.SolvePosition(h)

	after := currentPenetration(contact)
	if after >= before {
		t.Errorf("Penetration did not decrease: %v -> %v", before, after)
	}
	if box.Transform.Position.Y() <= 0.45 {
		t.Error("Dynamic body should have been pushed up")
	}
	if contact.BodyA.Transform.Position != (mgl64.Vec3{0, -0.5, 0}) {
		t.Error("Static body must never move")
	}
	if contact.Manifold.Points[0].NormalLambda >= 0 {
		t.Errorf("Penetration solve must accumulate a negative multiplier, got %v",
			contact.Manifold.Points[0].NormalLambda)
	}
}

func TestContactSolveSkipsSeparatedPoints(t *testing.T) {
	contact, box := restingContact()

	// Lift the box clear of the contact
	box.Transform.Position = mgl64.Vec3{0, 1.0, 0}
	box.PreviousTransform = box.Transform

	contact.PrepareSubstep(0, true)
	contact.SolvePosition(1.0 / 480.0)

	if box.Transform.Position != (mgl64.Vec3{0, 1.0, 0}) {
		t.Error("Speculative (separated) contact must not move the body")
	}
	if contact.Manifold.Points[0].NormalLambda != 0 {
		t.Error("No multiplier should accumulate on a separated point")
	}
}

func TestContactMaxCorrectionCapsDisplacement(t *testing.T) {
	contact, box := restingContact()

	// Exaggerate the penetration and cap corrections
	contact.Manifold.Points[0].LocalAnchorB = box.Transform.ApplyInverse(mgl64.Vec3{0, -1.0, 0})
	contact.MaxCorrection = 0.01

	before := box.Transform.Position.Y()
	contact.PrepareSubstep(0, true)
	contact.SolvePosition(1.0 / 480.0)

	moved := box.Transform.Position.Y() - before
	if moved > 0.011 {
		t.Errorf("Correction %v exceeded the cap", moved)
	}
	if moved <= 0 {
		t.Error("Capped correction should still push the body")
	}
}

func TestContactRestitution(t *testing.T) {
	contact, box := restingContact()
	contact.Restitution = 1.0

	// Approaching at 2 m/s, fast enough for restitution to apply
	box.Velocity = mgl64.Vec3{0, -2, 0}
	box.PresolveVelocity = box.Velocity
	contact.Manifold.Points[0].NormalLambda = -1 // position solve pushed this substep

	contact.SolveVelocity(1.0 / 480.0)

	if box.Velocity.Y() < 1.9 {
		t.Errorf("Expected bounce velocity near +2, got %v", box.Velocity.Y())
	}
}

func TestContactRestitutionSuppressedForSlowImpact(t *testing.T) {
	contact, box := restingContact()
	contact.Restitution = 1.0

	box.Velocity = mgl64.Vec3{0, -0.1, 0}
	box.PresolveVelocity = box.Velocity
	contact.Manifold.Points[0].NormalLambda = -1

	contact.SolveVelocity(1.0 / 480.0)

	if box.Velocity.Y() > 0.1 {
		t.Errorf("Slow impact must not bounce, got velocity %v", box.Velocity.Y())
	}
	if box.Velocity.Y() < -1e-6 {
		t.Errorf("Residual approach velocity should be cancelled, got %v", box.Velocity.Y())
	}
}

func TestContactDynamicFrictionSlowsSliding(t *testing.T) {
	contact, box := restingContact()

	box.Velocity = mgl64.Vec3{1, 0, 0}
	box.PresolveVelocity = box.Velocity
	contact.Manifold.Points[0].NormalLambda = -0.5

	contact.SolveVelocity(1.0 / 480.0)

	if box.Velocity.X() >= 1 {
		t.Error("Friction did not slow the slide")
	}
	if box.Velocity.X() < 0 {
		t.Errorf("Friction reversed the motion: %v", box.Velocity.X())
	}
}

func TestSensorContactIsNeverSolved(t *testing.T) {
	contact, box := restingContact()
	contact.Sensor = true

	contact.PrepareSubstep(0, true)
	contact.SolvePosition(1.0 / 480.0)

	if box.Transform.Position != (mgl64.Vec3{0, 0.45, 0}) {
		t.Error("Sensor contact moved a body")
	}
}

func TestVelocitySolveNeverWritesImmovableBodies(t *testing.T) {
	// Islands sharing a static anchor solve in parallel; the solver must
	// not even issue no-op writes to it
	check := func(t *testing.T, contact *Constraint, box *actor.RigidBody) {
		t.Helper()

		ground := contact.BodyA
		ground.Velocity = mgl64.Vec3{0, 1e-6, 0}
		ground.AngularVelocity = mgl64.Vec3{1e-6, 0, 0}

		box.Velocity = mgl64.Vec3{1, -2, 0}
		box.PresolveVelocity = box.Velocity
		contact.Manifold.Points[0].NormalLambda = -1

		contact.SolveVelocity(1.0 / 480.0)

		if ground.Velocity != (mgl64.Vec3{0, 1e-6, 0}) {
			t.Errorf("Immovable body velocity written: %v", ground.Velocity)
		}
		if ground.AngularVelocity != (mgl64.Vec3{1e-6, 0, 0}) {
			t.Errorf("Immovable body angular velocity written: %v", ground.AngularVelocity)
		}
	}

	t.Run("static body", func(t *testing.T) {
		contact, box := restingContact()
		check(t, contact, box)
	})

	t.Run("frozen body", func(t *testing.T) {
		contact, box := restingContact()
		contact.BodyA.BodyType = actor.BodyTypeDynamic
		contact.BodyA.Frozen = true
		check(t, contact, box)
	})
}

func TestPrepareSubstepWarmStart(t *testing.T) {
	contact, _ := restingContact()
	contact.Manifold.Points[0].WarmStartNormal = -0.4

	contact.PrepareSubstep(0.5, true)
	if contact.Manifold.Points[0].NormalLambda != -0.2 {
		t.Errorf("Expected seeded multiplier -0.2, got %v", contact.Manifold.Points[0].NormalLambda)
	}

	contact.PrepareSubstep(0.5, false)
	if contact.Manifold.Points[0].NormalLambda != 0 {
		t.Errorf("Later substeps must reset the multiplier, got %v", contact.Manifold.Points[0].NormalLambda)
	}
}
