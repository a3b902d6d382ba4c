package entity

import "github.com/hearthcode/netplay/vecmath"

// PhysicsState is the subset of a dynamic entity's state that travels
// over the wire: position, orientation, and both velocities. A
// received snapshot is applied wholesale (UpdateState) both to mirrors
// and, before input replay, to the client's own player; a movement
// diff is applied as a delta (ApplyStateDiff on the server, ApplyDiff
// in client prediction).
type PhysicsState struct {
	Position        vecmath.Vec3
	Rotation        vecmath.Vec3
	Velocity        vecmath.Vec3
	AngularVelocity vecmath.Vec3
}

// Sub returns the component-wise difference s - o.
func (s PhysicsState) Sub(o PhysicsState) PhysicsState {
	return PhysicsState{
		Position:        s.Position.Sub(o.Position),
		Rotation:        s.Rotation.Sub(o.Rotation),
		Velocity:        s.Velocity.Sub(o.Velocity),
		AngularVelocity: s.AngularVelocity.Sub(o.AngularVelocity),
	}
}

// Add returns the component-wise sum s + o.
func (s PhysicsState) Add(o PhysicsState) PhysicsState {
	return PhysicsState{
		Position:        s.Position.Add(o.Position),
		Rotation:        s.Rotation.Add(o.Rotation),
		Velocity:        s.Velocity.Add(o.Velocity),
		AngularVelocity: s.AngularVelocity.Add(o.AngularVelocity),
	}
}

// Smoothing constants for position correction when applying a remote
// state update to an entity the receiver does not control. Held fixed
// across the whole replicated world rather than tuned per entity.
const (
	// SmoothSnap is the distance beyond which a position update snaps
	// instead of easing, since the entity evidently teleported.
	SmoothSnap float32 = 10.0
	// SmoothThreshold is the distance below which a position update is
	// ignored entirely, to avoid visible jitter from sub-pixel corrections.
	SmoothThreshold float32 = 0.75
	// SmoothMoveFraction is the fraction of the remaining distance closed
	// per update when easing toward a target position.
	SmoothMoveFraction float32 = 0.1
)

// SmoothPosition blends current toward target according to the fixed
// smoothing policy, exported for callers (client reconciliation) that
// apply it outside an entity method.
func SmoothPosition(current, target vecmath.Vec3, smooth bool) vecmath.Vec3 {
	return smoothPosition(current, target, smooth)
}

// smoothPosition blends current toward target according to the fixed
// smoothing policy, or returns target unmodified if smooth is false.
func smoothPosition(current, target vecmath.Vec3, smooth bool) vecmath.Vec3 {
	if !smooth {
		return target
	}
	dist := current.Distance(target)
	switch {
	case dist > SmoothSnap:
		return target
	case dist > SmoothThreshold:
		return current.Add(target.Sub(current).Scale(SmoothMoveFraction))
	default:
		return current
	}
}
