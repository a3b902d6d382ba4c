package entity

import (
	"github.com/hearthcode/netplay/vecmath"
	"github.com/hearthcode/netplay/wire"
)

// Input is a single client input sample: a fixed set of fields common
// to most games (movement, look, jump, fire) plus small generic slots
// an app can repurpose without changing the wire format.
type Input struct {
	Sequence   uint32
	Movement   vecmath.Vec3
	MouseDelta vecmath.Vec3
	MousePos   vecmath.Vec3
	Jump       bool
	Fire       bool

	// Generic slots for app-specific extension, sent after the fixed
	// fields on the wire.
	Bools  [2]bool
	Floats [2]float32
	Vecs   [1]vecmath.Vec3
}

// Encode writes in to w in wire order: the fixed fields followed by
// the generic extension slots.
func (in Input) Encode(w *wire.Writer) {
	w.U32(in.Sequence)
	w.Vec3(in.Movement)
	w.Vec3(in.MouseDelta)
	w.Vec3(in.MousePos)
	w.Bool(in.Jump)
	w.Bool(in.Fire)
	for _, b := range in.Bools {
		w.Bool(b)
	}
	for _, f := range in.Floats {
		w.F32(f)
	}
	for _, v := range in.Vecs {
		w.Vec3(v)
	}
}

// DecodeInput reads an Input written by Input.Encode.
func DecodeInput(r *wire.Reader) (Input, error) {
	var in Input
	var err error

	if in.Sequence, err = r.U32(); err != nil {
		return in, err
	}
	if in.Movement, err = r.Vec3(); err != nil {
		return in, err
	}
	if in.MouseDelta, err = r.Vec3(); err != nil {
		return in, err
	}
	if in.MousePos, err = r.Vec3(); err != nil {
		return in, err
	}
	if in.Jump, err = r.Bool(); err != nil {
		return in, err
	}
	if in.Fire, err = r.Bool(); err != nil {
		return in, err
	}
	for i := range in.Bools {
		if in.Bools[i], err = r.Bool(); err != nil {
			return in, err
		}
	}
	for i := range in.Floats {
		if in.Floats[i], err = r.F32(); err != nil {
			return in, err
		}
	}
	for i := range in.Vecs {
		if in.Vecs[i], err = r.Vec3(); err != nil {
			return in, err
		}
	}
	return in, nil
}

// Behavior lets app code drive a PlayerEntity's response to input
// without PlayerEntity itself knowing anything about game rules. It is
// the only extension point client prediction and server authority call
// through, so both sides run the exact same logic and can only diverge
// due to differing world state.
type Behavior interface {
	// ProcessInputMovement computes the continuous, per-tick response
	// to in (movement, look) as a PhysicsState diff. It must not mutate
	// p; the caller decides how the diff is applied (directly, for
	// client prediction, or through ApplyStateDiff, for server
	// reconciliation-aware playout).
	ProcessInputMovement(p *PlayerEntity, in Input, dt float32) PhysicsState

	// ProcessInputAction applies discrete, edge-triggered input (jump,
	// fire) directly to p. Fire-and-forget: it has no diff
	// representation and runs at most once per input sample.
	ProcessInputAction(p *PlayerEntity, in Input)
}

// PlayerEntity is a DynamicEntity whose state additionally advances in
// response to client input rather than collision and drag alone.
type PlayerEntity struct {
	*DynamicEntity

	ClientID uint32
	Behavior Behavior
}

// NewPlayerEntity wraps a DynamicEntity with the input-driven behavior
// for the client that owns it.
func NewPlayerEntity(d *DynamicEntity, clientID uint32, behavior Behavior) *PlayerEntity {
	return &PlayerEntity{DynamicEntity: d, ClientID: clientID, Behavior: behavior}
}

// ProcessInputMovement computes the movement diff for in via the
// entity's behavior, or the zero diff if no behavior is attached.
func (p *PlayerEntity) ProcessInputMovement(in Input, dt float32) PhysicsState {
	if p.Behavior == nil {
		return PhysicsState{}
	}
	return p.Behavior.ProcessInputMovement(p, in, dt)
}

// ProcessInputAction applies in's discrete actions via the entity's
// behavior, a no-op if no behavior is attached.
func (p *PlayerEntity) ProcessInputAction(in Input) {
	if p.Behavior != nil {
		p.Behavior.ProcessInputAction(p, in)
	}
}
