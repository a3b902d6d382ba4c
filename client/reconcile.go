package client

import (
	"github.com/hearthcode/netplay/collision"
	"github.com/hearthcode/netplay/entity"
)

// applyServerUpdate handles one decoded UPDATE_GAME_OBJECT: wholesale
// dead-reckoned application for a mirror, full reconciliation for the
// owned player, or silent drop for an id with no known create yet.
func (c *Client) applyServerUpdate(objectID uint32, state entity.PhysicsState, stateTime int64) {
	if c.hasClientID && objectID == c.clientID && c.player != nil {
		c.reconcile(state, stateTime)
		return
	}
	if m, ok := c.mirrors[objectID]; ok {
		m.UpdateState(state, stateTime, stateTime, true)
		return
	}
	// Create for this id hasn't arrived yet; drop silently per §7.
}

// reconcile replays the owned player's predicted state against the
// server's authoritative snapshot: it overwrites the player with the
// authoritative state, then replays every buffered input sent at or
// after the instant the server actually processed, short-circuiting
// if the prediction already agreed with the server.
func (c *Client) reconcile(state entity.PhysicsState, stateTime int64) {
	preReconcileState := c.player.State()

	halfPingMs := c.transport.AveragePing(c.serverAddr).Milliseconds() / 2
	targetTime := stateTime - halfPingMs - c.playoutDelayMs

	c.player.UpdateState(state, targetTime, targetTime, false)

	replayFrom := -1
	for i := 0; i < c.inputBuffer.Size(); i++ {
		if c.inputBuffer.At(i).sentAtMs >= targetTime {
			replayFrom = i
			break
		}
	}
	if replayFrom == -1 {
		return
	}

	first := c.inputBuffer.At(replayFrom)
	if statesAgree(c.player.State(), first.preState) {
		c.player.SetPosition(preReconcileState.Position)
		c.player.SetRotation(preReconcileState.Rotation)
		c.player.SetVelocity(preReconcileState.Velocity)
		c.player.SetAngularVelocity(preReconcileState.AngularVelocity)
		return
	}

	if c.metrics != nil {
		c.metrics.ReconciliationCorrections.Inc()
	}

	prevTime := targetTime
	for i := replayFrom; i < c.inputBuffer.Size(); i++ {
		s := c.inputBuffer.At(i)
		dt := float32(s.sentAtMs-prevTime) / 1000.0
		if dt < 0 {
			dt = 0
		}

		c.resolvePlayerCollisions()
		c.player.PhysicsStep(dt)

		diff := c.player.ProcessInputMovement(s.input, dt)
		c.player.ApplyDiff(diff)

		prevTime = s.sentAtMs
	}

	c.player.SetPosition(entity.SmoothPosition(preReconcileState.Position, c.player.Position(), true))
}

// resolvePlayerCollisions runs the collision pass between the owned
// player and the local world during replay, affecting only the
// player: mirrors and statics are not authoritative here and must not
// be perturbed by a reconciliation that only the owning client sees.
func (c *Client) resolvePlayerCollisions() {
	player := entity.Object(c.player)
	for _, s := range c.statics {
		if contact, ok := collision.Detect(player, s); ok {
			collision.Resolve(player, s, contact, false)
		}
	}
	for _, m := range c.mirrors {
		if contact, ok := collision.Detect(player, m); ok {
			collision.Resolve(player, m, contact, false)
		}
	}
}

// statesAgree reports whether every component of reconstructed is
// within SmoothThreshold of preState, meaning the prediction already
// matched what the server computed and no visible correction is needed.
func statesAgree(reconstructed, preState entity.PhysicsState) bool {
	return reconstructed.Position.Distance(preState.Position) <= entity.SmoothThreshold &&
		reconstructed.Rotation.Distance(preState.Rotation) <= entity.SmoothThreshold &&
		reconstructed.Velocity.Distance(preState.Velocity) <= entity.SmoothThreshold &&
		reconstructed.AngularVelocity.Distance(preState.AngularVelocity) <= entity.SmoothThreshold
}
