// Package client implements the client-side prediction core (C5): a
// local mirror of the replicated world, input gathering and ring
// buffering, immediate local prediction of the owned player, and
// reconciliation against authoritative snapshots.
package client

import (
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/hearthcode/netplay/collision"
	"github.com/hearthcode/netplay/entity"
	"github.com/hearthcode/netplay/metrics"
	"github.com/hearthcode/netplay/ringbuffer"
	"github.com/hearthcode/netplay/transport"
)

// inputBufferCapacity bounds how far back in time reconciliation can
// replay; entries older than this are silently lost to overwrite.
const inputBufferCapacity = 256

// maxInputsPerMessage caps how many still-unacked inputs one
// CLIENT_INPUT message carries, favoring the most recent ones.
const maxInputsPerMessage = 32

// inputSample is one entry of the input ring buffer: the state the
// player predicted from, the input that produced it, and the send/ack
// bookkeeping used to decide which samples still need (re)sending.
type inputSample struct {
	sentAtMs        int64
	preState        entity.PhysicsState
	input           entity.Input
	receiptAssigned bool
	receipt         transport.ReceiptID
}

// MirrorFactory lets app code customize a freshly decoded remote
// entity (e.g. attach OnCollision hooks) before it is inserted as a
// mirror. base's ObjectID must be preserved by the factory.
type MirrorFactory func(base *entity.DynamicEntity, extra []byte) (*entity.DynamicEntity, error)

// LocalPlayerFactory customizes the locally owned player entity
// decoded from CREATE_CLIENT_OBJECT. base's ObjectID (the client's own
// clientId) must be preserved.
type LocalPlayerFactory func(base *entity.DynamicEntity, behavior entity.Behavior, extra []byte) *entity.PlayerEntity

// InputSource polls whatever external collaborator (keyboard, gamepad)
// supplies this frame's input. The core treats its result as opaque.
type InputSource func() entity.Input

// Client mirrors the replicated world from the owning application's
// point of view: it predicts its own player locally and reconciles
// against the server's periodic snapshots, while dead-reckoning every
// entity it does not own.
type Client struct {
	transport  transport.Transport
	serverAddr net.Addr
	logger     *zap.Logger
	metrics    *metrics.Server

	mirrorFactory MirrorFactory
	playerFactory LocalPlayerFactory
	gatherInput   InputSource
	behavior      entity.Behavior

	statics []*entity.StaticEntity
	mirrors map[uint32]*entity.DynamicEntity
	player  *entity.PlayerEntity

	clientID       uint32
	hasClientID    bool
	playoutDelayMs int64

	inputBuffer      *ringbuffer.Buffer[*inputSample]
	lastAckedReceipt transport.ReceiptID
	hasAckedReceipt  bool

	pendingDestroyIDs map[uint32]bool

	inputInterval time.Duration
	lastInputSent int64
}

// New constructs a Client. behavior drives the owned player's
// prediction the same way it drives the server's authoritative
// simulation, so both sides compute identical diffs from identical
// input.
func New(t transport.Transport, serverAddr net.Addr, logger *zap.Logger, m *metrics.Server, inputInterval time.Duration, behavior entity.Behavior, mirrorFactory MirrorFactory, playerFactory LocalPlayerFactory, gatherInput InputSource) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		transport:         t,
		serverAddr:        serverAddr,
		logger:            logger,
		metrics:           m,
		mirrorFactory:     mirrorFactory,
		playerFactory:     playerFactory,
		gatherInput:       gatherInput,
		behavior:          behavior,
		mirrors:           make(map[uint32]*entity.DynamicEntity),
		pendingDestroyIDs: make(map[uint32]bool),
		inputBuffer:       ringbuffer.New[*inputSample](inputBufferCapacity),
		inputInterval:     inputInterval,
	}
}

// Advance drives one render-frame iteration of the client core.
func (c *Client) Advance(dt time.Duration) {
	c.drainInbox()
	c.predictCollisions()

	now := time.Now().UnixMilli()
	step := float32(dt.Seconds())

	if c.player != nil {
		c.player.PhysicsStep(step)

		in := c.gatherInput()
		sample := &inputSample{sentAtMs: now, preState: c.player.State(), input: in}
		c.inputBuffer.Push(sample)

		diff := c.player.ProcessInputMovement(in, step)
		c.player.ApplyDiff(diff)
		c.player.ProcessInputAction(in)
	}

	for _, m := range c.mirrors {
		m.PhysicsStep(step)
	}

	if now-c.lastInputSent >= c.inputInterval.Milliseconds() {
		c.sendInput(now)
	}
}

// predictCollisions resolves contacts among the local mirrors and the
// owned player purely for a stable local display; the server's
// authoritative pass is the one that actually governs the simulation.
func (c *Client) predictCollisions() {
	players := c.playerObjects()
	if len(c.mirrors) == 0 && len(players) == 0 {
		return
	}
	collision.ResolveWorld(c.staticObjects(), c.dynamicObjects(), players)
}

func (c *Client) staticObjects() []entity.Object {
	out := make([]entity.Object, len(c.statics))
	for i, s := range c.statics {
		out[i] = s
	}
	return out
}

func (c *Client) dynamicObjects() []entity.Object {
	out := make([]entity.Object, 0, len(c.mirrors))
	for _, m := range c.mirrors {
		out = append(out, m)
	}
	return out
}

func (c *Client) playerObjects() []entity.Object {
	if c.player == nil {
		return nil
	}
	return []entity.Object{c.player}
}

// sendInput builds and transmits the batched, unreliable-with-receipt
// CLIENT_INPUT message per §4.5, assigning this send's receipt to any
// buffered sample that hasn't been sent yet and including every sample
// whose receipt is not the last acked one, oldest first, capped at the
// newest maxInputsPerMessage.
func (c *Client) sendInput(now int64) {
	receipt := c.transport.NextReceipt()

	var candidates []*inputSample
	for i := 0; i < c.inputBuffer.Size(); i++ {
		s := c.inputBuffer.At(i)
		if !s.receiptAssigned {
			s.receiptAssigned = true
			s.receipt = receipt
		}
		if !c.hasAckedReceipt || s.receipt != c.lastAckedReceipt {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) > maxInputsPerMessage {
		candidates = candidates[len(candidates)-maxInputsPerMessage:]
	}
	headerTime := now
	if len(candidates) > 0 {
		headerTime = candidates[len(candidates)-1].sentAtMs
	}

	w := newClientInputWriter(headerTime)
	for _, s := range candidates {
		writeInputEntry(w, headerTime, s)
	}

	if _, err := c.transport.Send(w.Bytes(), transport.PriorityHigh, transport.UnreliableWithReceipt, 0, transport.Target{Addr: c.serverAddr}); err != nil {
		c.logger.Warn("sending client input failed", zap.Error(err))
	}
	c.lastInputSent = now
}
