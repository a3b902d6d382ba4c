package collision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthcode/netplay/entity"
	"github.com/hearthcode/netplay/vecmath"
)

func TestSphereSphereDetect(t *testing.T) {
	a := entity.NewDynamicEntity(1, 0, entity.PhysicsState{Position: vecmath.Vec3{}}, entity.Sphere{Radius: 1}, 1, 0, 0, 0, 0, false)
	b := entity.NewDynamicEntity(2, 0, entity.PhysicsState{Position: vecmath.Vec3{X: 1.5}}, entity.Sphere{Radius: 1}, 1, 0, 0, 0, 0, false)

	c, ok := Detect(a, b)
	require.True(t, ok)
	assert.InDelta(t, 0.5, c.Penetration, 1e-4)
	assert.InDelta(t, 1.0, c.Normal.X, 1e-4)
}

func TestSphereSphereNoContactWhenApart(t *testing.T) {
	a := entity.NewDynamicEntity(1, 0, entity.PhysicsState{Position: vecmath.Vec3{}}, entity.Sphere{Radius: 1}, 1, 0, 0, 0, 0, false)
	b := entity.NewDynamicEntity(2, 0, entity.PhysicsState{Position: vecmath.Vec3{X: 5}}, entity.Sphere{Radius: 1}, 1, 0, 0, 0, 0, false)

	_, ok := Detect(a, b)
	assert.False(t, ok)
}

func TestSphereRestingOnStaticBoxResolvesToZeroNormalVelocity(t *testing.T) {
	// Scenario 2: inelastic sphere resting on a static box floor.
	floor := entity.NewStaticEntity(0, entity.OrientedBox{HalfExtents: vecmath.Vec3{X: 10, Y: 1, Z: 10}}, vecmath.Vec3{}, vecmath.Vec3{}, 0, 0)
	sphere := entity.NewDynamicEntity(1, 0, entity.PhysicsState{Position: vecmath.Vec3{Y: 1.9}, Velocity: vecmath.Vec3{Y: -2}}, entity.Sphere{Radius: 1}, 1, 0, 0, 0, 0, false)

	c, ok := Detect(sphere, floor)
	require.True(t, ok)
	Resolve(sphere, floor, c, true)

	assert.InDelta(t, 0.0, sphere.Velocity().Y, 1e-3)
}

func TestBoxBoxDetectsOverlapAlongSmallestAxis(t *testing.T) {
	a := entity.NewDynamicEntity(1, 0, entity.PhysicsState{Position: vecmath.Vec3{}}, entity.OrientedBox{HalfExtents: vecmath.Vec3{X: 1, Y: 1, Z: 1}}, 1, 0, 0, 0, 0, false)
	b := entity.NewDynamicEntity(2, 0, entity.PhysicsState{Position: vecmath.Vec3{X: 1.5}}, entity.OrientedBox{HalfExtents: vecmath.Vec3{X: 1, Y: 1, Z: 1}}, 1, 0, 0, 0, 0, false)

	c, ok := Detect(a, b)
	require.True(t, ok)
	assert.InDelta(t, 0.5, c.Penetration, 1e-3)
}

func TestElasticEqualMassHeadOnCollisionSwapsVelocities(t *testing.T) {
	// Spec scenario 1: two equal-mass, perfectly elastic spheres
	// colliding head-on exchange velocities.
	a := entity.NewDynamicEntity(1, 0, entity.PhysicsState{Position: vecmath.Vec3{}, Velocity: vecmath.Vec3{X: 3}}, entity.Sphere{Radius: 1}, 1, 1, 0, 0, 0, false)
	b := entity.NewDynamicEntity(2, 0, entity.PhysicsState{Position: vecmath.Vec3{X: 1.9}}, entity.Sphere{Radius: 1}, 1, 1, 0, 0, 0, false)

	c, ok := Detect(a, b)
	require.True(t, ok)
	Resolve(a, b, c, true)

	assert.InDelta(t, 0.0, a.Velocity().X, 1e-3)
	assert.InDelta(t, 3.0, b.Velocity().X, 1e-3)
}

func TestFrictionOpposesSlidingWithoutReversingIt(t *testing.T) {
	// A sphere falling onto a static floor while sliding sideways:
	// friction must slow the sideways slide, never amplify or reverse
	// it (the inverted-clamp bug did both).
	floor := entity.NewStaticEntity(0, entity.OrientedBox{HalfExtents: vecmath.Vec3{X: 10, Y: 1, Z: 10}}, vecmath.Vec3{}, vecmath.Vec3{}, 0, 0.5)
	sphere := entity.NewDynamicEntity(1, 0, entity.PhysicsState{Position: vecmath.Vec3{Y: 1.9}, Velocity: vecmath.Vec3{X: 5, Y: -2}}, entity.Sphere{Radius: 1}, 1, 0, 0.5, 0, 0, false)

	c, ok := Detect(sphere, floor)
	require.True(t, ok)
	Resolve(sphere, floor, c, true)

	assert.InDelta(t, 0.0, sphere.Velocity().Y, 1e-3)
	assert.Less(t, sphere.Velocity().X, float32(5.0), "friction must slow the slide")
	assert.GreaterOrEqual(t, sphere.Velocity().X, float32(0.0), "friction must not reverse the slide direction")
}

func TestHighFrictionArrestsSlideWithoutOvershoot(t *testing.T) {
	floor := entity.NewStaticEntity(0, entity.OrientedBox{HalfExtents: vecmath.Vec3{X: 10, Y: 1, Z: 10}}, vecmath.Vec3{}, vecmath.Vec3{}, 0, 50)
	sphere := entity.NewDynamicEntity(1, 0, entity.PhysicsState{Position: vecmath.Vec3{Y: 1.9}, Velocity: vecmath.Vec3{X: 5, Y: -2}}, entity.Sphere{Radius: 1}, 1, 0, 50, 0, 0, false)

	c, ok := Detect(sphere, floor)
	require.True(t, ok)
	rA := c.Point.Sub(sphere.Position())
	Resolve(sphere, floor, c, true)

	// The slide is the contact point's tangential velocity: linear
	// velocity plus the spin the friction impulse induces.
	slip := sphere.Velocity().Add(sphere.AngularVelocity().Cross(rA))
	assert.InDelta(t, 0.0, slip.X, 1e-3, "friction far in excess of what's needed to stop sliding must clamp at zero, not overshoot negative")
}

func TestResolveWorldRunsEachPairAtMostOnce(t *testing.T) {
	count := 0
	hook := func(other entity.Object, contact, normal vecmath.Vec3) { count++ }

	a := entity.NewDynamicEntity(1, 0, entity.PhysicsState{Position: vecmath.Vec3{}}, entity.Sphere{Radius: 1}, 1, 0, 0, 0, 0, false)
	b := entity.NewDynamicEntity(2, 0, entity.PhysicsState{Position: vecmath.Vec3{X: 1.5}}, entity.Sphere{Radius: 1}, 1, 0, 0, 0, 0, false)
	a.OnCollision = hook
	b.OnCollision = hook

	ResolveWorld(nil, []entity.Object{a, b}, nil)
	assert.Equal(t, 2, count, "both sides of the single pair should fire their hook exactly once")
}
