package entity

import "github.com/hearthcode/netplay/vecmath"

// Object is the narrow capability interface the collision engine and
// the replication layer operate against. StaticEntity and
// DynamicEntity both satisfy it; a StaticEntity reports infinite mass
// and ignores impulses.
type Object interface {
	ObjectID() uint32
	IsStatic() bool

	Position() vecmath.Vec3
	SetPosition(vecmath.Vec3)
	Rotation() vecmath.Vec3

	Velocity() vecmath.Vec3
	SetVelocity(vecmath.Vec3)
	AngularVelocity() vecmath.Vec3
	SetAngularVelocity(vecmath.Vec3)

	ColliderShape() Collider
	InverseMass() float32
	InverseInertiaWorld() vecmath.Mat3
	Elasticity() float32
	Friction() float32

	// ApplyImpulse applies a linear impulse F at world-space offset r
	// from the center of mass, updating velocity and, unless rotation
	// is locked or the body has no shape, angular velocity.
	ApplyImpulse(f, r vecmath.Vec3)

	// HandleCollision invokes the entity's collision hook, if any, with
	// the other body in the pair and the world-space contact point and
	// normal (pointing from this entity toward other).
	HandleCollision(other Object, contact, normal vecmath.Vec3)
}
