// Package server implements the authoritative tick loop: client
// lifecycle, playout-buffered input scheduling, fixed-step simulation,
// collision resolution, and snapshot broadcast (C4).
package server

import (
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/hearthcode/netplay/collision"
	"github.com/hearthcode/netplay/entity"
	"github.com/hearthcode/netplay/metrics"
	"github.com/hearthcode/netplay/playout"
	"github.com/hearthcode/netplay/transport"
	"github.com/hearthcode/netplay/wire"
)

// firstObjectID is the first id handed out for non-player dynamic
// objects; ids below it are reserved for clients so a single integer
// comparison tells client-owned ids from world-object ids.
const firstObjectID = 101

// GameObjectFactory constructs an app-defined dynamic entity given its
// type, assigned id, pre-integrated initial state, and app-specific
// trailing parameters. It must return an entity whose ObjectID equals
// objectID.
type GameObjectFactory func(typeID int32, objectID uint32, state entity.PhysicsState, params []byte) (*entity.DynamicEntity, error)

// ClientObjectFactory constructs the player entity for a newly
// connected client. The returned entity's ObjectID is interpreted as
// that client's clientId.
type ClientObjectFactory func(clientID uint32) (*entity.PlayerEntity, error)

type clientState struct {
	addr    net.Addr
	playout *playout.Buffer
}

// Server runs the authoritative simulation for every connected client.
type Server struct {
	transport transport.Transport
	logger    *zap.Logger
	metrics   *metrics.Server

	gameObjectFactory   GameObjectFactory
	clientObjectFactory ClientObjectFactory

	statics  []*entity.StaticEntity
	dynamics map[uint32]*entity.DynamicEntity
	players  map[uint32]*entity.PlayerEntity // keyed by clientId

	// dynamicOrder and playerOrder hold the same ids as the dynamics
	// and players maps, in insertion order. The collision pass and
	// tick loop iterate these instead of ranging the maps directly,
	// since Go's map iteration order is randomized and the spec
	// requires reproducible evaluation order.
	dynamicOrder []uint32
	playerOrder  []uint32

	clients      map[uint32]*clientState
	addrToClient map[string]uint32

	nextClientID uint32
	nextObjectID uint32
	deadObjects  []uint32

	tickStep        float32
	accumulatedTime float32
	tickTime        int64 // ms, server's simulation clock
	playoutDelayMs  int64
}

// New constructs a Server. tickRate is the fixed simulation rate in Hz
// (e.g. 60); playoutDelay is how far behind real time the server
// processes buffered client input, trading input latency for jitter
// tolerance.
func New(t transport.Transport, logger *zap.Logger, m *metrics.Server, tickRate int, playoutDelay time.Duration, gameFactory GameObjectFactory, clientFactory ClientObjectFactory) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		transport:           t,
		logger:              logger,
		metrics:             m,
		gameObjectFactory:   gameFactory,
		clientObjectFactory: clientFactory,
		dynamics:            make(map[uint32]*entity.DynamicEntity),
		players:             make(map[uint32]*entity.PlayerEntity),
		clients:             make(map[uint32]*clientState),
		addrToClient:        make(map[string]uint32),
		nextClientID:        1,
		nextObjectID:        firstObjectID,
		tickStep:            1.0 / float32(tickRate),
		playoutDelayMs:      playoutDelay.Milliseconds(),
	}
}

// AddStatic registers a piece of immovable world geometry. Only valid
// before any client has connected; static geometry is replicated once,
// at connect time.
func (s *Server) AddStatic(e *entity.StaticEntity) {
	s.statics = append(s.statics, e)
}

// Advance drives one outer-loop iteration: drains the transport inbox,
// runs as many fixed simulation steps as dt has accumulated, and
// broadcasts a snapshot. The caller is responsible for invoking this
// at wall rate at least as fast as the tick rate.
func (s *Server) Advance(dt time.Duration) {
	s.drainInbox()

	s.accumulatedTime += float32(dt.Seconds())
	for s.accumulatedTime >= s.tickStep {
		s.runTick()
		s.accumulatedTime -= s.tickStep
		s.tickTime += int64(s.tickStep * 1000)
		if s.metrics != nil {
			s.metrics.TicksRun.Inc()
		}
	}

	s.broadcastSnapshots()
}

func (s *Server) runTick() {
	target := s.tickTime - s.playoutDelayMs
	for _, cid := range s.playerOrder {
		s.updatePlayerAgainstPlayout(cid, s.players[cid], target)
	}

	for _, id := range s.dynamicOrder {
		s.dynamics[id].PhysicsStep(s.tickStep)
	}
	for _, cid := range s.playerOrder {
		s.players[cid].PhysicsStep(s.tickStep)
	}

	resolved := collision.ResolveWorld(s.staticObjects(), s.dynamicObjects(), s.playerObjects())
	if s.metrics != nil {
		s.metrics.CollisionsResolved.Add(float64(resolved))
	}

	s.drainDeadObjects()

	if s.metrics != nil {
		depth := 0
		for _, c := range s.clients {
			depth += c.playout.Depth()
		}
		s.metrics.PlayoutDepth.Set(float64(depth))
	}
}

func (s *Server) updatePlayerAgainstPlayout(cid uint32, player *entity.PlayerEntity, target int64) {
	cs, ok := s.clients[cid]
	if !ok {
		return
	}
	e, ok := cs.playout.Current(target)
	if !ok {
		return
	}

	diff := player.ProcessInputMovement(e.Input, s.tickStep)
	player.ApplyStateDiff(diff, e.Key, e.Key, false, true)

	if !e.ActionConsumed {
		player.ProcessInputAction(e.Input)
		e.ActionConsumed = true
	}
}

func (s *Server) drainDeadObjects() {
	if len(s.deadObjects) == 0 {
		return
	}
	for _, id := range s.deadObjects {
		if _, stillPresent := s.dynamics[id]; !stillPresent {
			continue
		}
		w := wire.NewWriter()
		w.Tag(wire.TagDestroyGameObject)
		w.U32(id)
		s.broadcast(w.Bytes(), transport.PriorityHigh, transport.Reliable, 0, nil, false)
		delete(s.dynamics, id)
		s.dynamicOrder = removeID(s.dynamicOrder, id)
	}
	s.deadObjects = s.deadObjects[:0]
}

func (s *Server) broadcastSnapshots() {
	now := time.Now().UnixMilli()
	for _, id := range s.dynamicOrder {
		d := s.dynamics[id]
		s.sendUpdate(d.ObjectID(), d, now)
	}
	for _, cid := range s.playerOrder {
		p := s.players[cid]
		s.sendUpdate(p.ObjectID(), p.DynamicEntity, now)
	}
}

// removeID returns order with id removed, preserving the relative
// order of the remaining ids.
func removeID(order []uint32, id uint32) []uint32 {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

func (s *Server) sendUpdate(id uint32, d *entity.DynamicEntity, nowMs int64) {
	w := wire.NewWriter()
	w.Tag(wire.TagTimestamp)
	w.U64(uint64(nowMs))
	w.Tag(wire.TagUpdateGameObject)
	d.SerializeUpdate(w)
	s.broadcast(w.Bytes(), transport.PriorityLow, transport.Unreliable, 1, nil, false)
	if s.metrics != nil {
		s.metrics.SnapshotsSent.Inc()
	}
}

func (s *Server) broadcast(payload []byte, priority transport.Priority, reliability transport.Reliability, channel uint8, exclude net.Addr, excludeSet bool) {
	target := transport.Target{Broadcast: true}
	if excludeSet {
		target.Addr = exclude
		target.Exclude = true
	}
	if _, err := s.transport.Send(payload, priority, reliability, channel, target); err != nil {
		s.logger.Warn("broadcast send failed", zap.Error(err))
	}
}

func (s *Server) staticObjects() []entity.Object {
	out := make([]entity.Object, len(s.statics))
	for i, e := range s.statics {
		out[i] = e
	}
	return out
}

// dynamicObjects and playerObjects build the slices fed into
// collision.ResolveWorld. They iterate dynamicOrder/playerOrder rather
// than the dynamics/players maps so that the evaluation order of the
// collision pass is reproducible from tick to tick.
func (s *Server) dynamicObjects() []entity.Object {
	out := make([]entity.Object, 0, len(s.dynamicOrder))
	for _, id := range s.dynamicOrder {
		out = append(out, s.dynamics[id])
	}
	return out
}

func (s *Server) playerObjects() []entity.Object {
	out := make([]entity.Object, 0, len(s.playerOrder))
	for _, cid := range s.playerOrder {
		out = append(out, s.players[cid])
	}
	return out
}

// CreateObject constructs and replicates a new server-owned dynamic
// entity. creationTime is the wall-clock time (ms) the caller decided
// to create it; the entity's initial state is pre-integrated by the
// elapsed time since then, so an entity created "in the past" (e.g. in
// response to a delayed input) appears where it would be by now.
func (s *Server) CreateObject(typeID int32, state entity.PhysicsState, creationTime int64, params []byte) (*entity.DynamicEntity, error) {
	now := time.Now().UnixMilli()
	dt := float32(now-creationTime) / 1000
	state.Position = state.Position.Add(state.Velocity.Scale(dt))
	state.Rotation = state.Rotation.Add(state.AngularVelocity.Scale(dt))

	id := s.nextObjectID
	obj, err := s.gameObjectFactory(typeID, id, state, params)
	if err != nil {
		return nil, fmt.Errorf("server: game object factory failed for type %d: %w", typeID, err)
	}
	if obj.ObjectID() != id {
		return nil, fmt.Errorf("server: game object factory returned id %d, expected %d", obj.ObjectID(), id)
	}

	w := wire.NewWriter()
	w.Tag(wire.TagCreateGameObject)
	obj.Serialize(w, params)
	s.broadcast(w.Bytes(), transport.PriorityHigh, transport.Reliable, 0, nil, false)

	s.dynamics[id] = obj
	s.dynamicOrder = append(s.dynamicOrder, id)
	s.nextObjectID++
	return obj, nil
}

// DestroyObject schedules id for destruction. The actual broadcast and
// map deletion happen during the next tick's dead-object drain, to
// keep object lifecycle synchronized with the simulation step rather
// than firing mid-tick.
func (s *Server) DestroyObject(id uint32) error {
	if id < firstObjectID {
		return fmt.Errorf("server: refusing to destroy id %d: reserved for client ids", id)
	}
	s.deadObjects = append(s.deadObjects, id)
	return nil
}
