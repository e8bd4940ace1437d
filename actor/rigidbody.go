package actor

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, gravity, and collisions
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	// They are not affected by forces or gravity (e.g., ground, walls)
	BodyTypeStatic

	// BodyTypeKinematic bodies move along their set velocity but have
	// infinite mass for the solver: they push, they are never pushed
	BodyTypeKinematic
)

// RigidBody represents a rigid body in the physics simulation
type RigidBody struct {
	// Stable identity assigned by the world; iteration and pair keys are
	// ordered by ID so results do not depend on allocation addresses
	ID uint64

	// Spatial properties
	PreviousTransform Transform
	Transform         Transform

	// Linear motion
	PresolveVelocity mgl64.Vec3
	Velocity         mgl64.Vec3 // Linear velocity (m/s)

	// Angular motion
	PresolveAngularVelocity mgl64.Vec3
	AngularVelocity         mgl64.Vec3 // rad/s

	// Inertia tensor in local space
	InertiaLocal        mgl64.Mat3
	InverseInertiaLocal mgl64.Mat3

	LinearDamping  float64 // 0.0 - 1.0, typical: 0.01
	AngularDamping float64 // 0.0 - 1.0, typical: 0.05

	accumulatedForce  mgl64.Vec3
	accumulatedTorque mgl64.Vec3

	IsSleeping bool
	SleepTimer float64

	// Frozen marks a body that diverged numerically this step; it is
	// held at its presolve transform until the step completes
	Frozen bool

	BodyType BodyType

	// Collision shapes; several colliders form a compound body
	Colliders []*Collider

	mass    float64
	invMass float64
}

// NewRigidBody creates a new rigid body with the given transform and type.
// Colliders are attached separately with AttachCollider.
func NewRigidBody(transform Transform, bodyType BodyType) *RigidBody {
	rb := &RigidBody{
		PreviousTransform: transform,
		Transform:         transform,
		BodyType:          bodyType,
	}
	rb.computeMassProperties()

	return rb
}

// AttachCollider adds a collision shape to the body and recomputes the
// combined mass properties
func (rb *RigidBody) AttachCollider(shape ShapeInterface, local Transform, material Material) *Collider {
	collider := &Collider{
		Body:     rb,
		Shape:    shape,
		Local:    local,
		Material: material,
	}
	rb.Colliders = append(rb.Colliders, collider)
	rb.computeMassProperties()

	return collider
}

// computeMassProperties combines the colliders' masses and inertia
// tensors about the body origin (parallel axis theorem)
func (rb *RigidBody) computeMassProperties() {
	if rb.BodyType != BodyTypeDynamic {
		rb.mass = math.Inf(1)
		rb.invMass = 0
		rb.InertiaLocal = mgl64.Mat3{}
		rb.InverseInertiaLocal = mgl64.Mat3{}
		return
	}

	rb.mass = 0
	inertia := mgl64.Mat3{}

	for _, collider := range rb.Colliders {
		m := collider.Shape.ComputeMass(collider.Material.Density)
		rb.mass += m

		localInertia := collider.Shape.ComputeInertia(m)
		r := collider.Local.Rotation.Mat4().Mat3()
		rotated := r.Mul3(localInertia).Mul3(r.Transpose())

		// Parallel axis: I += m * (|d|²E - d⊗d)
		d := collider.Local.Position
		dSqr := d.Dot(d)
		shift := mgl64.Mat3{
			m * (dSqr - d.X()*d.X()), -m * d.X() * d.Y(), -m * d.X() * d.Z(),
			-m * d.Y() * d.X(), m * (dSqr - d.Y()*d.Y()), -m * d.Y() * d.Z(),
			-m * d.Z() * d.X(), -m * d.Z() * d.Y(), m * (dSqr - d.Z()*d.Z()),
		}

		inertia = inertia.Add(rotated).Add(shift)
	}

	rb.InertiaLocal = inertia

	if rb.mass > 0 && !math.IsInf(rb.mass, 1) {
		rb.invMass = 1.0 / rb.mass
		rb.InverseInertiaLocal = inertia.Inv()
	} else {
		rb.invMass = 0
		rb.InverseInertiaLocal = mgl64.Mat3{}
	}
}

// Validate rejects bodies whose mass properties cannot be solved (§ setup
// errors): a dynamic body must have positive, finite mass and inertia.
func (rb *RigidBody) Validate() error {
	if rb.BodyType != BodyTypeDynamic {
		return nil
	}
	if len(rb.Colliders) == 0 {
		return fmt.Errorf("dynamic body %d has no collider", rb.ID)
	}
	if rb.mass <= 0 || math.IsInf(rb.mass, 1) || math.IsNaN(rb.mass) {
		return fmt.Errorf("dynamic body %d has invalid mass %v", rb.ID, rb.mass)
	}
	return nil
}

// Mass returns the combined mass of the body's colliders
func (rb *RigidBody) Mass() float64 {
	return rb.mass
}

// InverseMass is zero for static, kinematic and frozen bodies regardless
// of stored mass, so the solver never perturbs them
func (rb *RigidBody) InverseMass() float64 {
	if rb.BodyType != BodyTypeDynamic || rb.Frozen {
		return 0
	}
	return rb.invMass
}

// Sleep zeroes the body's motion and marks it asleep
func (rb *RigidBody) Sleep() {
	rb.IsSleeping = true
	rb.SleepTimer = 0.0

	rb.ClearForces()
	rb.Velocity = mgl64.Vec3{}
	rb.AngularVelocity = mgl64.Vec3{}
}

func (rb *RigidBody) Awake() {
	rb.IsSleeping = false
	rb.SleepTimer = 0.0
}

// Integrate advances the body by one substep under gravity and
// accumulated forces (semi-implicit Euler)
func (rb *RigidBody) Integrate(dt float64, gravity mgl64.Vec3) {
	if rb.BodyType == BodyTypeStatic || rb.IsSleeping || rb.Frozen {
		return
	}

	rb.PreviousTransform = rb.Transform

	if rb.BodyType == BodyTypeKinematic {
		// Kinematic bodies follow their velocity, nothing else
		rb.Transform.Position = rb.Transform.Position.Add(rb.Velocity.Mul(dt))
		rb.integrateRotation(dt)
		rb.PresolveVelocity = rb.Velocity
		rb.PresolveAngularVelocity = rb.AngularVelocity
		return
	}

	// Linear integration
	acceleration := gravity.Add(rb.accumulatedForce.Mul(rb.invMass))
	rb.Velocity = rb.Velocity.Add(acceleration.Mul(dt))
	rb.Velocity = rb.Velocity.Mul(math.Exp(-rb.LinearDamping * dt))
	rb.Transform.Position = rb.Transform.Position.Add(rb.Velocity.Mul(dt))

	// Angular integration
	angularAccel := rb.GetInverseInertiaWorld().Mul3x1(rb.accumulatedTorque)
	rb.AngularVelocity = rb.AngularVelocity.Add(angularAccel.Mul(dt))
	rb.AngularVelocity = rb.AngularVelocity.Mul(math.Exp(-rb.AngularDamping * dt))
	rb.integrateRotation(dt)

	rb.PresolveVelocity = rb.Velocity
	rb.PresolveAngularVelocity = rb.AngularVelocity
}

func (rb *RigidBody) integrateRotation(dt float64) {
	omegaQuat := mgl64.Quat{V: rb.AngularVelocity, W: 0}
	qDot := omegaQuat.Mul(rb.Transform.Rotation).Scale(0.5)
	rb.Transform.SetRotation(rb.Transform.Rotation.Add(qDot.Scale(dt)))
}

// Update derives the body's velocities from the transform delta produced
// by the position solver. This is the defining XPBD step: velocities
// follow positions, not the other way around.
func (rb *RigidBody) Update(dt float64) {
	if rb.BodyType != BodyTypeDynamic || rb.IsSleeping || rb.Frozen {
		return
	}

	rb.Velocity = rb.Transform.Position.Sub(rb.PreviousTransform.Position).Mul(1.0 / dt)

	qDelta := rb.Transform.Rotation.Mul(rb.PreviousTransform.Rotation.Conjugate()).Normalize()
	if qDelta.W >= 0.0 {
		rb.AngularVelocity = qDelta.V.Mul(2.0 / dt)
	} else {
		rb.AngularVelocity = qDelta.V.Mul(-2.0 / dt)
	}
}

// AddForce accumulates a force (N) applied at the center of mass for the
// duration of the next step
func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	if rb.BodyType == BodyTypeDynamic {
		rb.Awake()
		rb.accumulatedForce = rb.accumulatedForce.Add(force)
	}
}

// AddTorque accumulates a torque (N⋅m) for the duration of the next step
func (rb *RigidBody) AddTorque(torque mgl64.Vec3) {
	if rb.BodyType == BodyTypeDynamic {
		rb.Awake()
		rb.accumulatedTorque = rb.accumulatedTorque.Add(torque)
	}
}

// AddImpulse applies an instantaneous velocity change (kg⋅m/s)
func (rb *RigidBody) AddImpulse(impulse mgl64.Vec3) {
	if rb.BodyType == BodyTypeDynamic {
		rb.Awake()
		rb.Velocity = rb.Velocity.Add(impulse.Mul(rb.invMass))
	}
}

func (rb *RigidBody) ClearForces() {
	rb.accumulatedForce = mgl64.Vec3{}
	rb.accumulatedTorque = mgl64.Vec3{}
}

// GetInertiaWorld returns the inertia tensor in world space
func (rb *RigidBody) GetInertiaWorld() mgl64.Mat3 {
	// I_world = R * I_local * R^T
	r := rb.Transform.Rotation.Mat4().Mat3()
	return r.Mul3(rb.InertiaLocal).Mul3(r.Transpose())
}

// GetInverseInertiaWorld returns the inverse inertia tensor in world
// space; zero for anything the solver must not rotate
func (rb *RigidBody) GetInverseInertiaWorld() mgl64.Mat3 {
	if rb.BodyType != BodyTypeDynamic || rb.Frozen {
		return mgl64.Mat3{}
	}

	r := rb.Transform.Rotation.Mat4().Mat3()
	return r.Mul3(rb.InverseInertiaLocal).Mul3(r.Transpose())
}

// HasDiverged reports whether the transform picked up NaN or Inf values
func (rb *RigidBody) HasDiverged() bool {
	for i := 0; i < 3; i++ {
		if math.IsNaN(rb.Transform.Position[i]) || math.IsInf(rb.Transform.Position[i], 0) {
			return true
		}
	}
	q := rb.Transform.Rotation
	for _, v := range []float64{q.W, q.V[0], q.V[1], q.V[2]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
