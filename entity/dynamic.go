package entity

import (
	"fmt"

	"github.com/hearthcode/netplay/vecmath"
	"github.com/hearthcode/netplay/wire"
)

// DynamicEntity is a simulated rigid body: it integrates velocity and
// angular velocity every tick, responds to impulses, and is
// replicated to every client on every snapshot.
type DynamicEntity struct {
	objectID uint32
	typeID   int32
	collider Collider

	position vecmath.Vec3
	rotation vecmath.Vec3

	velocity        vecmath.Vec3
	angularVelocity vecmath.Vec3

	mass        float32
	elasticity  float32
	friction    float32
	linearDrag  float32
	angularDrag float32

	lockRotation bool

	inertiaBodyInv vecmath.Mat3

	// lastAcceptedTime is the timestamp (ms) of the most recent state
	// update or diff this entity has accepted. Earlier updates are
	// dropped to prevent out-of-order network delivery from rewinding
	// the simulation.
	lastAcceptedTime int64

	// FixedUpdate, if set, is invoked at the end of every PhysicsStep
	// with the tick's dt, giving app code a hook to run gameplay logic
	// (AI, timers) alongside the physics integration.
	FixedUpdate func(dt float32)

	// OnCollision, if set, is invoked whenever the collision engine
	// resolves a contact involving this entity.
	OnCollision func(other Object, contact, normal vecmath.Vec3)
}

// NewDynamicEntity constructs a simulated rigid body and precomputes
// its body-space inverse inertia tensor from its collider and mass.
// A nil collider yields a body with no angular response to impulses
// (it still translates); a non-positive mass yields a body that does
// not respond to impulses at all.
func NewDynamicEntity(objectID uint32, typeID int32, state PhysicsState, collider Collider, mass, elasticity, friction, linearDrag, angularDrag float32, lockRotation bool) *DynamicEntity {
	d := &DynamicEntity{
		objectID:        objectID,
		typeID:          typeID,
		collider:        collider,
		position:        state.Position,
		rotation:        state.Rotation,
		velocity:        state.Velocity,
		angularVelocity: state.AngularVelocity,
		mass:            mass,
		elasticity:      elasticity,
		friction:        friction,
		linearDrag:      linearDrag,
		angularDrag:     angularDrag,
		lockRotation:    lockRotation,
	}
	d.recomputeInertia()
	return d
}

func (d *DynamicEntity) recomputeInertia() {
	if d.collider == nil || d.mass <= 0 {
		d.inertiaBodyInv = vecmath.Mat3{}
		return
	}
	d.inertiaBodyInv = d.collider.InertiaTensor(d.mass).Inverse3x3()
}

func (d *DynamicEntity) ObjectID() uint32 { return d.objectID }
func (d *DynamicEntity) TypeID() int32    { return d.typeID }
func (d *DynamicEntity) IsStatic() bool   { return false }

func (d *DynamicEntity) Position() vecmath.Vec3     { return d.position }
func (d *DynamicEntity) SetPosition(v vecmath.Vec3) { d.position = v }
func (d *DynamicEntity) Rotation() vecmath.Vec3     { return d.rotation }
func (d *DynamicEntity) SetRotation(v vecmath.Vec3) { d.rotation = v }

func (d *DynamicEntity) Velocity() vecmath.Vec3             { return d.velocity }
func (d *DynamicEntity) SetVelocity(v vecmath.Vec3)         { d.velocity = v }
func (d *DynamicEntity) AngularVelocity() vecmath.Vec3      { return d.angularVelocity }
func (d *DynamicEntity) SetAngularVelocity(v vecmath.Vec3)  { d.angularVelocity = v }

func (d *DynamicEntity) ColliderShape() Collider { return d.collider }
func (d *DynamicEntity) Mass() float32           { return d.mass }
func (d *DynamicEntity) InverseMass() float32 {
	if d.mass <= 0 {
		return 0
	}
	return 1 / d.mass
}
func (d *DynamicEntity) Elasticity() float32 { return d.elasticity }
func (d *DynamicEntity) Friction() float32   { return d.friction }
func (d *DynamicEntity) LockRotation() bool  { return d.lockRotation }

// InverseInertiaWorld returns I^-1 expressed in world space:
// R * Ibody^-1 * R^T, where R is the rotation matrix for the entity's
// current orientation.
func (d *DynamicEntity) InverseInertiaWorld() vecmath.Mat3 {
	r := vecmath.RotationXYZ(d.rotation)
	return r.Mul(d.inertiaBodyInv).Mul(r.Transpose())
}

// ApplyImpulse applies a linear impulse f at world-space offset r from
// the center of mass.
func (d *DynamicEntity) ApplyImpulse(f, r vecmath.Vec3) {
	d.velocity = d.velocity.Add(f.Scale(d.InverseMass()))

	if d.lockRotation || d.collider == nil {
		return
	}
	rot := vecmath.RotationXYZ(d.rotation)
	torqueBody := rot.Transpose().MulVec3(r.Cross(f))
	deltaBody := d.inertiaBodyInv.MulVec3(torqueBody)
	d.angularVelocity = d.angularVelocity.Add(rot.MulVec3(deltaBody))
}

func (d *DynamicEntity) HandleCollision(other Object, contact, normal vecmath.Vec3) {
	if d.OnCollision != nil {
		d.OnCollision(other, contact, normal)
	}
}

// PhysicsStep integrates this body forward by dt: position by
// velocity, rotation by angular velocity, then applies linear and
// angular drag. Locked-rotation bodies never accumulate angular
// velocity.
func (d *DynamicEntity) PhysicsStep(dt float32) {
	d.position = d.position.Add(d.velocity.Scale(dt))

	if d.lockRotation {
		d.angularVelocity = vecmath.Vec3{}
	} else {
		d.rotation = d.rotation.Add(d.angularVelocity.Scale(dt))
		d.angularVelocity = d.angularVelocity.Sub(d.angularVelocity.Scale(d.angularDrag * dt))
	}
	d.velocity = d.velocity.Sub(d.velocity.Scale(d.linearDrag * dt))

	if d.FixedUpdate != nil {
		d.FixedUpdate(dt)
	}
}

// State returns the entity's current replicated state.
func (d *DynamicEntity) State() PhysicsState {
	return PhysicsState{
		Position:        d.position,
		Rotation:        d.rotation,
		Velocity:        d.velocity,
		AngularVelocity: d.angularVelocity,
	}
}

// LastAcceptedTime returns the timestamp of the most recently accepted
// state update, or 0 if none has been accepted yet.
func (d *DynamicEntity) LastAcceptedTime() int64 { return d.lastAcceptedTime }

// UpdateState applies an authoritative state wholesale, extrapolating
// by the elapsed time between when it was sent (stateTime) and now
// (nowTime), and smoothing the resulting position change. Updates
// older than the last accepted one are dropped. Used for entities the
// receiver does not own (dead reckoning of remote mirrors).
func (d *DynamicEntity) UpdateState(state PhysicsState, stateTime, nowTime int64, smooth bool) {
	if stateTime < d.lastAcceptedTime {
		return
	}
	dt := float32(nowTime-stateTime) / 1000.0

	target := state.Position.Add(state.Velocity.Scale(dt))
	d.rotation = state.Rotation.Add(state.AngularVelocity.Scale(dt))
	d.velocity = state.Velocity
	d.angularVelocity = state.AngularVelocity
	d.position = smoothPosition(d.position, target, smooth)

	d.lastAcceptedTime = stateTime
}

// ApplyStateDiff applies a state diff, such as the movement diff the
// server computes for a playout-buffered input: diff is added to the
// current state, the result is extrapolated by the elapsed time since
// stateTime, and the position change is smoothed. Diffs older than the
// last accepted update are dropped. updateAcceptedTime controls
// whether this diff advances LastAcceptedTime.
func (d *DynamicEntity) ApplyStateDiff(diff PhysicsState, stateTime, nowTime int64, smooth, updateAcceptedTime bool) {
	if stateTime < d.lastAcceptedTime {
		return
	}
	dt := float32(nowTime-stateTime) / 1000.0

	newVelocity := d.velocity.Add(diff.Velocity)
	newAngular := d.angularVelocity.Add(diff.AngularVelocity)
	target := d.position.Add(diff.Position).Add(newVelocity.Scale(dt))
	newRotation := d.rotation.Add(diff.Rotation).Add(newAngular.Scale(dt))

	d.rotation = newRotation
	d.velocity = newVelocity
	d.angularVelocity = newAngular
	d.position = smoothPosition(d.position, target, smooth)

	if updateAcceptedTime {
		d.lastAcceptedTime = stateTime
	}
}

// ApplyDiff adds diff to this entity's state directly, with no
// extrapolation or smoothing. Used by client-side prediction, which
// applies its own processInputMovement diff to the locally owned
// player the instant it is computed.
func (d *DynamicEntity) ApplyDiff(diff PhysicsState) {
	d.position = d.position.Add(diff.Position)
	d.rotation = d.rotation.Add(diff.Rotation)
	d.velocity = d.velocity.Add(diff.Velocity)
	d.angularVelocity = d.angularVelocity.Add(diff.AngularVelocity)
}

// Serialize writes the CREATE_GAME_OBJECT record for this entity:
// {objectId, typeId, collider, position, rotation, velocity,
// angularVelocity, mass, elasticity, friction, linearDrag,
// angularDrag, lockRotation}. extra, if non-nil, is appended verbatim
// as app-defined trailing fields.
func (d *DynamicEntity) Serialize(w *wire.Writer, extra []byte) {
	w.U32(d.objectID)
	w.I32(d.typeID)
	WriteCollider(w, d.collider)
	w.Vec3(d.position)
	w.Vec3(d.rotation)
	w.Vec3(d.velocity)
	w.Vec3(d.angularVelocity)
	w.F32(d.mass)
	w.F32(d.elasticity)
	w.F32(d.friction)
	w.F32(d.linearDrag)
	w.F32(d.angularDrag)
	w.Bool(d.lockRotation)
	if extra != nil {
		w.Raw(extra)
	}
}

// SerializeUpdate writes the UPDATE_GAME_OBJECT payload for this
// entity: {objectId, position, rotation, velocity, angularVelocity}.
// The TIMESTAMP prefix, if any, is written by the caller.
func (d *DynamicEntity) SerializeUpdate(w *wire.Writer) {
	w.U32(d.objectID)
	w.Vec3(d.position)
	w.Vec3(d.rotation)
	w.Vec3(d.velocity)
	w.Vec3(d.angularVelocity)
}

// DecodeDynamicEntity reads a CREATE_GAME_OBJECT record. Any bytes
// remaining in r after the fixed fields are returned as extra,
// unparsed, for a factory to interpret.
func DecodeDynamicEntity(r *wire.Reader) (d *DynamicEntity, extra []byte, err error) {
	objectID, err := r.U32()
	if err != nil {
		return nil, nil, fmt.Errorf("entity: reading object id: %w", err)
	}
	return DecodeDynamicEntityBody(r, objectID)
}

// DecodeDynamicEntityBody reads the fields common to CREATE_GAME_OBJECT
// and CREATE_CLIENT_OBJECT starting after the leading id (objectId or
// clientId respectively, supplied by the caller since the two records
// disagree on its name but agree on everything after it).
func DecodeDynamicEntityBody(r *wire.Reader, objectID uint32) (d *DynamicEntity, extra []byte, err error) {
	typeID, err := r.I32()
	if err != nil {
		return nil, nil, fmt.Errorf("entity: reading type id: %w", err)
	}
	collider, err := ReadCollider(r)
	if err != nil {
		return nil, nil, err
	}
	position, err := r.Vec3()
	if err != nil {
		return nil, nil, fmt.Errorf("entity: reading position: %w", err)
	}
	rotation, err := r.Vec3()
	if err != nil {
		return nil, nil, fmt.Errorf("entity: reading rotation: %w", err)
	}
	velocity, err := r.Vec3()
	if err != nil {
		return nil, nil, fmt.Errorf("entity: reading velocity: %w", err)
	}
	angularVelocity, err := r.Vec3()
	if err != nil {
		return nil, nil, fmt.Errorf("entity: reading angular velocity: %w", err)
	}
	mass, err := r.F32()
	if err != nil {
		return nil, nil, fmt.Errorf("entity: reading mass: %w", err)
	}
	elasticity, err := r.F32()
	if err != nil {
		return nil, nil, fmt.Errorf("entity: reading elasticity: %w", err)
	}
	friction, err := r.F32()
	if err != nil {
		return nil, nil, fmt.Errorf("entity: reading friction: %w", err)
	}
	linearDrag, err := r.F32()
	if err != nil {
		return nil, nil, fmt.Errorf("entity: reading linear drag: %w", err)
	}
	angularDrag, err := r.F32()
	if err != nil {
		return nil, nil, fmt.Errorf("entity: reading angular drag: %w", err)
	}
	lockRotation, err := r.Bool()
	if err != nil {
		return nil, nil, fmt.Errorf("entity: reading lock rotation: %w", err)
	}

	state := PhysicsState{Position: position, Rotation: rotation, Velocity: velocity, AngularVelocity: angularVelocity}
	entity := NewDynamicEntity(objectID, typeID, state, collider, mass, elasticity, friction, linearDrag, angularDrag, lockRotation)

	if r.Remaining() > 0 {
		extra = make([]byte, r.Remaining())
		// Reader has no bulk-read accessor beyond Raw fields; pull the
		// remainder out byte by byte via U8 since it's already bounds-checked.
		for i := range extra {
			b, err := r.U8()
			if err != nil {
				return nil, nil, fmt.Errorf("entity: reading trailing fields: %w", err)
			}
			extra[i] = b
		}
	}

	return entity, extra, nil
}

// DecodeUpdate reads an UPDATE_GAME_OBJECT payload (objectId plus
// state), returning the target object id and the decoded state
// separately so the caller can look up the right entity before
// applying it.
func DecodeUpdate(r *wire.Reader) (objectID uint32, state PhysicsState, err error) {
	objectID, err = r.U32()
	if err != nil {
		return 0, PhysicsState{}, fmt.Errorf("entity: reading update object id: %w", err)
	}
	state.Position, err = r.Vec3()
	if err != nil {
		return 0, PhysicsState{}, err
	}
	state.Rotation, err = r.Vec3()
	if err != nil {
		return 0, PhysicsState{}, err
	}
	state.Velocity, err = r.Vec3()
	if err != nil {
		return 0, PhysicsState{}, err
	}
	state.AngularVelocity, err = r.Vec3()
	if err != nil {
		return 0, PhysicsState{}, err
	}
	return objectID, state, nil
}
