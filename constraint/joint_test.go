package constraint

import (
	"math"
	"testing"

	"github.com/akmonengine/bedrock/actor"
	"github.com/go-gl/mathgl/mgl64"
)

const jointSubstep = 1.0 / 480.0

func anchorDistance(c *Constraint) float64 {
	worldA := c.BodyA.Transform.Apply(c.LocalAnchorA)
	worldB := c.BodyB.Transform.Apply(c.LocalAnchorB)
	return worldB.Sub(worldA).Len()
}

func solveTimes(c *Constraint, n int) {
	for i := 0; i < n; i++ {
		c.PrepareSubstep(0, false)
		c.SolvePosition(jointSubstep)
	}
}

func TestDistanceJoint(t *testing.T) {
	t.Run("rigid joint restores rest length", func(t *testing.T) {
		anchor, _ := newBody(mgl64.Vec3{0, 0, 0}, actor.BodyTypeStatic)
		bob, _ := newBody(mgl64.Vec3{3, 0, 0}, actor.BodyTypeDynamic)

		joint := NewDistanceJoint(1, anchor, bob, mgl64.Vec3{}, mgl64.Vec3{}, 2.0, 0)
		solveTimes(joint, 1)

		if math.Abs(anchorDistance(joint)-2.0) > 1e-6 {
			t.Errorf("Expected distance 2, got %v", anchorDistance(joint))
		}
		if anchor.Transform.Position != (mgl64.Vec3{}) {
			t.Error("Static anchor moved")
		}
	})

	t.Run("compliant joint converges gradually", func(t *testing.T) {
		anchor, _ := newBody(mgl64.Vec3{0, 0, 0}, actor.BodyTypeStatic)
		bob, _ := newBody(mgl64.Vec3{3, 0, 0}, actor.BodyTypeDynamic)

		joint := NewDistanceJoint(1, anchor, bob, mgl64.Vec3{}, mgl64.Vec3{}, 2.0, RubberCompliance)
		joint.PrepareSubstep(0, false)
		joint.SolvePosition(jointSubstep)

		after := anchorDistance(joint)
		if after >= 3.0 {
			t.Error("Compliant joint did not pull at all")
		}
		if after <= 2.0 {
			t.Errorf("Compliant joint overshot in one iteration: %v", after)
		}
	})

	t.Run("limits leave the slack range alone", func(t *testing.T) {
		anchor, _ := newBody(mgl64.Vec3{0, 0, 0}, actor.BodyTypeStatic)
		bob, _ := newBody(mgl64.Vec3{1.5, 0, 0}, actor.BodyTypeDynamic)

		joint := NewDistanceJoint(1, anchor, bob, mgl64.Vec3{}, mgl64.Vec3{}, 0, 0)
		joint.MinLimit = 1.0
		joint.MaxLimit = 2.0
		joint.HasLimits = true

		solveTimes(joint, 1)
		if bob.Transform.Position != (mgl64.Vec3{1.5, 0, 0}) {
			t.Error("Body inside the limits must not move")
		}

		bob.Transform.Position = mgl64.Vec3{2.5, 0, 0}
		solveTimes(joint, 1)
		if math.Abs(anchorDistance(joint)-2.0) > 1e-6 {
			t.Errorf("Expected clamp to max limit 2, got %v", anchorDistance(joint))
		}
	})

	t.Run("max correction caps the pull", func(t *testing.T) {
		anchor, _ := newBody(mgl64.Vec3{0, 0, 0}, actor.BodyTypeStatic)
		bob, _ := newBody(mgl64.Vec3{3, 0, 0}, actor.BodyTypeDynamic)

		joint := NewDistanceJoint(1, anchor, bob, mgl64.Vec3{}, mgl64.Vec3{}, 2.0, 0)
		joint.MaxCorrection = 0.05

		solveTimes(joint, 1)
		moved := 3.0 - bob.Transform.Position.X()
		if moved > 0.051 {
			t.Errorf("Correction %v exceeded the cap", moved)
		}
		if moved <= 0 {
			t.Error("Capped joint should still pull")
		}
	})
}

func TestFixedJoint(t *testing.T) {
	t.Run("pins separated anchors back together", func(t *testing.T) {
		a, _ := newBody(mgl64.Vec3{0, 0, 0}, actor.BodyTypeStatic)
		b, _ := newBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)

		// Anchors coincide at (0.5, 0, 0) when the joint is created
		joint := NewFixedJoint(1, a, b, mgl64.Vec3{0.5, 0, 0}, mgl64.Vec3{-0.5, 0, 0}, 0)

		b.Transform.Position = mgl64.Vec3{1.2, 0.1, 0}
		before := anchorDistance(joint)

		solveTimes(joint, 10)
		if anchorDistance(joint) > before*0.1 {
			t.Errorf("Anchor error barely improved: %v -> %v", before, anchorDistance(joint))
		}
	})

	t.Run("locks relative rotation", func(t *testing.T) {
		a, _ := newBody(mgl64.Vec3{0, 0, 0}, actor.BodyTypeStatic)
		b, _ := newBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)

		joint := NewFixedJoint(1, a, b, mgl64.Vec3{0.5, 0, 0}, mgl64.Vec3{-0.5, 0, 0}, 0)

		b.Transform.SetRotation(mgl64.QuatRotate(0.3, mgl64.Vec3{0, 0, 1}))
		solveTimes(joint, 10)

		rel := relativeRotation(a, b)
		angle := 2 * math.Acos(math.Min(1, math.Abs(rel.W)))
		if angle > 0.03 {
			t.Errorf("Rotation error %v not driven down", angle)
		}
	})
}

func TestRevoluteJoint(t *testing.T) {
	a, _ := newBody(mgl64.Vec3{0, 0, 0}, actor.BodyTypeStatic)
	b, _ := newBody(mgl64.Vec3{1, 0, 0}, actor.BodyTypeDynamic)

	axis := mgl64.Vec3{0, 1, 0}
	joint := NewRevoluteJoint(1, a, b,
		mgl64.Vec3{0.5, 0, 0}, mgl64.Vec3{-0.5, 0, 0}, axis, axis, 0)

	// Tilt B so its hinge axis diverges from A's
	b.Transform.SetRotation(mgl64.QuatRotate(0.3, mgl64.Vec3{1, 0, 0}))
	solveTimes(joint, 10)

	worldAxisA := a.Transform.Rotation.Rotate(axis)
	worldAxisB := b.Transform.Rotation.Rotate(axis)
	if worldAxisA.Dot(worldAxisB) < 0.999 {
		t.Errorf("Hinge axes not realigned, dot = %v", worldAxisA.Dot(worldAxisB))
	}
	if anchorDistance(joint) > 0.05 {
		t.Errorf("Hinge anchors drifted apart by %v", anchorDistance(joint))
	}
}

func TestPrismaticJoint(t *testing.T) {
	t.Run("removes perpendicular offset, keeps travel", func(t *testing.T) {
		a, _ := newBody(mgl64.Vec3{0, 0, 0}, actor.BodyTypeStatic)
		b, _ := newBody(mgl64.Vec3{1.5, 0, 0}, actor.BodyTypeDynamic)

		joint := NewPrismaticJoint(1, a, b,
			mgl64.Vec3{}, mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 0, 0, false, 0)

		b.Transform.Position = mgl64.Vec3{1.5, 0.3, 0}
		solveTimes(joint, 10)

		if math.Abs(b.Transform.Position.Y()) > 0.01 {
			t.Errorf("Perpendicular offset %v not removed", b.Transform.Position.Y())
		}
		if b.Transform.Position.X() < 1.0 {
			t.Errorf("Slide travel should be free, X collapsed to %v", b.Transform.Position.X())
		}
	})

	t.Run("travel limits clamp the slide", func(t *testing.T) {
		a, _ := newBody(mgl64.Vec3{0, 0, 0}, actor.BodyTypeStatic)
		b, _ := newBody(mgl64.Vec3{3, 0, 0}, actor.BodyTypeDynamic)

		joint := NewPrismaticJoint(1, a, b,
			mgl64.Vec3{}, mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 0, 2.0, true, 0)

		solveTimes(joint, 5)
		if b.Transform.Position.X() > 2.01 {
			t.Errorf("Travel %v beyond the max limit", b.Transform.Position.X())
		}
	})
}

func TestJointDamping(t *testing.T) {
	a, _ := newBody(mgl64.Vec3{0, 0, 0}, actor.BodyTypeDynamic)
	b, _ := newBody(mgl64.Vec3{2, 0, 0}, actor.BodyTypeDynamic)

	joint := NewDistanceJoint(1, a, b, mgl64.Vec3{}, mgl64.Vec3{}, 2.0, 0)
	joint.Damping = 100

	b.Velocity = mgl64.Vec3{0, 5, 0}
	joint.SolveVelocity(jointSubstep)

	relative := b.Velocity.Sub(a.Velocity).Len()
	if relative >= 5 {
		t.Error("Damping did not reduce relative velocity")
	}
	if a.Velocity.Y() <= 0 {
		t.Error("Damping should drag the other body along")
	}
}

type recordingSolver struct {
	positionCalls int
	velocityCalls int
}

func (s *recordingSolver) SolvePosition(c *Constraint, h float64) { s.positionCalls++ }
func (s *recordingSolver) SolveVelocity(c *Constraint, h float64) { s.velocityCalls++ }

func TestCustomConstraintDispatch(t *testing.T) {
	a, _ := newBody(mgl64.Vec3{0, 0, 0}, actor.BodyTypeDynamic)
	b, _ := newBody(mgl64.Vec3{2, 0, 0}, actor.BodyTypeDynamic)

	solver := &recordingSolver{}
	custom := NewCustomConstraint(1, a, b, solver)

	custom.SolvePosition(jointSubstep)
	custom.SolveVelocity(jointSubstep)

	if solver.positionCalls != 1 || solver.velocityCalls != 1 {
		t.Errorf("Expected one call each, got %d position and %d velocity",
			solver.positionCalls, solver.velocityCalls)
	}
}

func TestSkipBothSleeping(t *testing.T) {
	a, _ := newBody(mgl64.Vec3{0, 0, 0}, actor.BodyTypeDynamic)
	b, _ := newBody(mgl64.Vec3{3, 0, 0}, actor.BodyTypeDynamic)
	a.Sleep()
	b.Sleep()

	joint := NewDistanceJoint(1, a, b, mgl64.Vec3{}, mgl64.Vec3{}, 2.0, 0)
	solveTimes(joint, 1)

	if b.Transform.Position != (mgl64.Vec3{3, 0, 0}) {
		t.Error("Constraint between sleeping bodies must not move them")
	}
}
