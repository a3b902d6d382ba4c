// Package democommon is the small, shared game-rules layer the demo
// server and demo client both link against, so input is interpreted
// identically on both sides — the one invariant client prediction and
// server reconciliation both depend on.
package democommon

import (
	"github.com/hearthcode/netplay/entity"
	"github.com/hearthcode/netplay/vecmath"
)

const (
	moveSpeed  = 6.0
	jumpSpeed  = 5.0
	groundY    = 1.0
	gravity    = 9.8
)

// WalkBehavior drives a grounded player: horizontal movement follows
// the input's movement vector directly (an arcade-style walk rather
// than an accelerated one), gravity pulls it down continuously, and
// jump is a discrete upward velocity kick while grounded.
type WalkBehavior struct{}

// ProcessInputMovement returns the velocity/position diff for one
// tick's worth of input: horizontal velocity snaps to the requested
// direction scaled by moveSpeed, and gravity integrates into vertical
// velocity, both expressed as the delta from the player's current
// state so the caller (direct apply on the client, ApplyStateDiff on
// the server) can layer it onto its own state resolution-neutrally.
func (WalkBehavior) ProcessInputMovement(p *entity.PlayerEntity, in entity.Input, dt float32) entity.PhysicsState {
	current := p.Velocity()
	wantHorizontal := vecmath.NewVec3(in.Movement.X, 0, in.Movement.Z).Scale(moveSpeed)

	newVelocity := vecmath.NewVec3(wantHorizontal.X, current.Y-gravity*dt, wantHorizontal.Z)

	return entity.PhysicsState{
		Velocity: newVelocity.Sub(current),
	}
}

// ProcessInputAction applies jump: a discrete upward velocity kick,
// only while resting on the ground plane.
func (WalkBehavior) ProcessInputAction(p *entity.PlayerEntity, in entity.Input) {
	if !in.Jump {
		return
	}
	if p.Position().Y > groundY+0.01 {
		return
	}
	v := p.Velocity()
	v.Y = jumpSpeed
	p.SetVelocity(v)
}
