package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthcode/netplay/vecmath"
	"github.com/hearthcode/netplay/wire"
)

func TestSphereInertiaTensor(t *testing.T) {
	s := Sphere{Radius: 2}
	i := s.InertiaTensor(5)
	want := float32(0.4 * 5 * 4)
	assert.InDelta(t, want, i[0][0], 1e-5)
	assert.InDelta(t, want, i[1][1], 1e-5)
	assert.InDelta(t, want, i[2][2], 1e-5)
}

func TestOrientedBoxInertiaTensor(t *testing.T) {
	b := OrientedBox{HalfExtents: vecmath.Vec3{X: 1, Y: 2, Z: 3}}
	i := b.InertiaTensor(12)
	// full extents are 2,4,6
	assert.InDelta(t, float32(12.0/12*(16+36)), i[0][0], 1e-4)
	assert.InDelta(t, float32(12.0/12*(4+36)), i[1][1], 1e-4)
	assert.InDelta(t, float32(12.0/12*(4+16)), i[2][2], 1e-4)
}

func TestDynamicEntityPhysicsStepIntegratesPosition(t *testing.T) {
	d := NewDynamicEntity(1, 0, PhysicsState{Velocity: vecmath.Vec3{X: 2}}, nil, 1, 0, 0, 0, 0, false)
	d.PhysicsStep(0.5)
	assert.InDelta(t, 1.0, d.Position().X, 1e-5)
}

func TestDynamicEntityLinearDragDampens(t *testing.T) {
	d := NewDynamicEntity(1, 0, PhysicsState{Velocity: vecmath.Vec3{X: 10}}, nil, 1, 0, 0, 1, 0, false)
	d.PhysicsStep(0.1)
	assert.Less(t, d.Velocity().X, float32(10))
}

func TestLockRotationZeroesAngularVelocity(t *testing.T) {
	d := NewDynamicEntity(1, 0, PhysicsState{AngularVelocity: vecmath.Vec3{X: 1, Y: 1, Z: 1}}, nil, 1, 0, 0, 0, 0, true)
	d.PhysicsStep(0.1)
	assert.Equal(t, vecmath.Vec3{}, d.AngularVelocity())
}

func TestApplyImpulseChangesLinearVelocity(t *testing.T) {
	d := NewDynamicEntity(1, 0, PhysicsState{}, Sphere{Radius: 1}, 2, 0, 0, 0, 0, false)
	d.ApplyImpulse(vecmath.Vec3{X: 4}, vecmath.Vec3{})
	assert.InDelta(t, 2.0, d.Velocity().X, 1e-5)
}

func TestApplyImpulseOffCenterInducesSpin(t *testing.T) {
	d := NewDynamicEntity(1, 0, PhysicsState{}, Sphere{Radius: 1}, 1, 0, 0, 0, 0, false)
	d.ApplyImpulse(vecmath.Vec3{X: 0, Y: 1, Z: 0}, vecmath.Vec3{X: 1})
	assert.False(t, d.AngularVelocity().IsZero())
}

func TestApplyImpulseOnLockedRotationBodyLeavesAngularVelocityUnchanged(t *testing.T) {
	d := NewDynamicEntity(1, 0, PhysicsState{}, Sphere{Radius: 1}, 1, 0, 0, 0, 0, true)
	d.ApplyImpulse(vecmath.Vec3{Y: 1}, vecmath.Vec3{X: 1})
	assert.Equal(t, vecmath.Vec3{}, d.AngularVelocity())
}

func TestUpdateStateDropsStaleUpdate(t *testing.T) {
	d := NewDynamicEntity(1, 0, PhysicsState{}, nil, 1, 0, 0, 0, 0, false)
	d.UpdateState(PhysicsState{Position: vecmath.Vec3{X: 5}}, 1000, 1000, false)
	require.Equal(t, int64(1000), d.LastAcceptedTime())

	d.UpdateState(PhysicsState{Position: vecmath.Vec3{X: 99}}, 500, 1000, false)
	assert.InDelta(t, 5.0, d.Position().X, 1e-5)
}

func TestUpdateStateNoSmoothSnapsDirectly(t *testing.T) {
	d := NewDynamicEntity(1, 0, PhysicsState{}, nil, 1, 0, 0, 0, 0, false)
	d.UpdateState(PhysicsState{Position: vecmath.Vec3{X: 100}}, 1000, 1000, false)
	assert.InDelta(t, 100.0, d.Position().X, 1e-5)
}

func TestUpdateStateSmoothBelowThresholdHoldsCurrent(t *testing.T) {
	d := NewDynamicEntity(1, 0, PhysicsState{Position: vecmath.Vec3{X: 0}}, nil, 1, 0, 0, 0, 0, false)
	d.UpdateState(PhysicsState{Position: vecmath.Vec3{X: 0.1}}, 1000, 1000, true)
	assert.InDelta(t, 0.0, d.Position().X, 1e-5)
}

func TestApplyStateDiffCombinesAndExtrapolates(t *testing.T) {
	d := NewDynamicEntity(1, 0, PhysicsState{Position: vecmath.Vec3{X: 1}, Velocity: vecmath.Vec3{X: 1}}, nil, 1, 0, 0, 0, 0, false)
	diff := PhysicsState{Position: vecmath.Vec3{X: 1}}
	d.ApplyStateDiff(diff, 1000, 1500, false, true)
	// 1 + 1 from the diff, plus velocity 1 extrapolated over 0.5 s.
	assert.InDelta(t, 2.5, d.Position().X, 1e-5)
	assert.Equal(t, int64(1000), d.LastAcceptedTime())
}

func TestApplyStateDiffSkipsAcceptedTimeWhenRequested(t *testing.T) {
	d := NewDynamicEntity(1, 0, PhysicsState{}, nil, 1, 0, 0, 0, 0, false)
	d.ApplyStateDiff(PhysicsState{}, 1000, 1000, false, false)
	assert.Equal(t, int64(0), d.LastAcceptedTime())
}

func TestStaticEntitySerializeRoundTrip(t *testing.T) {
	s := NewStaticEntity(7, Sphere{Radius: 3}, vecmath.Vec3{X: 1, Y: 2, Z: 3}, vecmath.Vec3{}, 0.5, 0.2)
	w := wire.NewWriter()
	s.Serialize(w)

	r := wire.NewReader(w.Bytes())
	decoded, err := DecodeStaticEntity(r, 0.5, 0.2)
	require.NoError(t, err)
	assert.Equal(t, int32(7), decoded.TypeID())
	assert.Equal(t, Sphere{Radius: 3}, decoded.ColliderShape())
	assert.Equal(t, vecmath.Vec3{X: 1, Y: 2, Z: 3}, decoded.Position())
}

func TestDynamicEntitySerializeRoundTrip(t *testing.T) {
	state := PhysicsState{Position: vecmath.Vec3{X: 1}, Velocity: vecmath.Vec3{Y: 2}}
	d := NewDynamicEntity(42, 3, state, OrientedBox{HalfExtents: vecmath.Vec3{X: 1, Y: 1, Z: 1}}, 5, 0.4, 0.1, 0, 0, false)

	w := wire.NewWriter()
	d.Serialize(w, []byte{0xAB, 0xCD})

	r := wire.NewReader(w.Bytes())
	decoded, extra, err := DecodeDynamicEntity(r)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), decoded.ObjectID())
	assert.Equal(t, int32(3), decoded.TypeID())
	assert.InDelta(t, 1.0, decoded.Position().X, 1e-5)
	assert.InDelta(t, 2.0, decoded.Velocity().Y, 1e-5)
	assert.InDelta(t, 5.0, decoded.Mass(), 1e-5)
	assert.Equal(t, []byte{0xAB, 0xCD}, extra)
}

type doubleForwardBehavior struct{ actionsFired int }

func (b *doubleForwardBehavior) ProcessInputMovement(p *PlayerEntity, in Input, dt float32) PhysicsState {
	return PhysicsState{Position: in.Movement.Scale(2 * dt)}
}

func (b *doubleForwardBehavior) ProcessInputAction(p *PlayerEntity, in Input) {
	if in.Jump {
		b.actionsFired++
	}
}

func TestPlayerEntityProcessInputMovementDoesNotMutate(t *testing.T) {
	d := NewDynamicEntity(1, 0, PhysicsState{}, nil, 1, 0, 0, 0, 0, false)
	behavior := &doubleForwardBehavior{}
	p := NewPlayerEntity(d, 9, behavior)

	diff := p.ProcessInputMovement(Input{Movement: vecmath.Vec3{X: 1}}, 0.5)
	assert.InDelta(t, 1.0, diff.Position.X, 1e-5)
	assert.Equal(t, vecmath.Vec3{}, p.Position(), "computing a movement diff must not mutate the entity")
}

func TestPlayerEntityProcessInputActionFiresOnJump(t *testing.T) {
	d := NewDynamicEntity(1, 0, PhysicsState{}, nil, 1, 0, 0, 0, 0, false)
	behavior := &doubleForwardBehavior{}
	p := NewPlayerEntity(d, 9, behavior)

	p.ProcessInputAction(Input{Jump: true})
	assert.Equal(t, 1, behavior.actionsFired)
}
