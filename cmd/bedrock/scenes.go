package main

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/akmonengine/bedrock"
	"github.com/akmonengine/bedrock/actor"
	"github.com/akmonengine/bedrock/constraint"
)

type scene struct {
	description string
	build       func(w *bedrock.World)
}

var scenes = map[string]scene{
	"stack":    {"tower of boxes settling on the ground", buildStack},
	"pile":     {"mixed shapes dropped over the ground", buildPile},
	"pendulum": {"sphere swinging from a fixed anchor", buildPendulum},
}

func addGround(w *bedrock.World) {
	ground := actor.NewRigidBody(actor.NewTransform(), actor.BodyTypeStatic)
	ground.AttachCollider(
		&actor.Plane{Normal: mgl64.Vec3{0, 1, 0}, Distance: 0},
		actor.NewTransform(),
		actor.DefaultMaterial(),
	)
	w.AddBody(ground)
}

func buildStack(w *bedrock.World) {
	addGround(w)

	const height = 6
	for i := 0; i < height; i++ {
		box := actor.NewRigidBody(
			actor.NewTransformAt(mgl64.Vec3{0, 0.5 + float64(i)*1.01, 0}),
			actor.BodyTypeDynamic,
		)
		box.AttachCollider(
			&actor.Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}},
			actor.NewTransform(),
			actor.DefaultMaterial(),
		)
		w.AddBody(box)
	}
}

func buildPile(w *bedrock.World) {
	addGround(w)

	shapes := []actor.ShapeInterface{
		&actor.Box{HalfExtents: mgl64.Vec3{0.4, 0.4, 0.4}},
		&actor.Sphere{Radius: 0.45},
		&actor.Capsule{Radius: 0.3, HalfHeight: 0.4},
	}

	// Staggered grid so bodies collide while falling
	for i := 0; i < 12; i++ {
		x := float64(i%3)*1.2 - 1.2
		z := float64((i/3)%2)*1.2 - 0.6
		y := 2.0 + float64(i/3)*1.5

		body := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{x, y, z}), actor.BodyTypeDynamic)
		body.AttachCollider(shapes[i%len(shapes)], actor.NewTransform(), actor.DefaultMaterial())
		w.AddBody(body)
	}
}

func buildPendulum(w *bedrock.World) {
	anchor := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0, 5, 0}), actor.BodyTypeStatic)
	anchor.AttachCollider(
		&actor.Box{HalfExtents: mgl64.Vec3{0.1, 0.1, 0.1}},
		actor.NewTransform(),
		actor.DefaultMaterial(),
	)
	w.AddBody(anchor)

	bob := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{2, 5, 0}), actor.BodyTypeDynamic)
	bob.AttachCollider(
		&actor.Sphere{Radius: 0.3},
		actor.NewTransform(),
		actor.DefaultMaterial(),
	)
	w.AddBody(bob)

	joint := constraint.NewDistanceJoint(0, anchor, bob,
		mgl64.Vec3{}, mgl64.Vec3{}, 2.0, 0)
	joint.DisableCollision = true
	w.AddConstraint(joint)
}
