package client

import (
	"go.uber.org/zap"

	"github.com/hearthcode/netplay/entity"
	"github.com/hearthcode/netplay/transport"
	"github.com/hearthcode/netplay/wire"
)

func newClientInputWriter(headerTimeMs int64) *wire.Writer {
	w := wire.NewWriter()
	w.Tag(wire.TagTimestamp)
	w.U64(uint64(headerTimeMs))
	w.Tag(wire.TagClientInput)
	return w
}

func writeInputEntry(w *wire.Writer, headerTimeMs int64, s *inputSample) {
	w.U64(uint64(headerTimeMs - s.sentAtMs))
	s.input.Encode(w)
}

func (c *Client) drainInbox() {
	for {
		pkt, ok := c.transport.Receive()
		if !ok {
			return
		}
		switch pkt.Kind {
		case transport.PacketReceipt:
			c.handleAckReceipt(pkt.Receipt)
		case transport.PacketConnectionLost:
			c.handleConnectionLost()
		case transport.PacketData:
			c.handleData(pkt)
		}
	}
}

// handleConnectionLost discards every mirrored entity and the owned
// player; there is no retry inside the core.
func (c *Client) handleConnectionLost() {
	c.mirrors = make(map[uint32]*entity.DynamicEntity)
	c.statics = nil
	c.player = nil
	c.hasClientID = false
	c.pendingDestroyIDs = make(map[uint32]bool)
	c.logger.Warn("connection to server lost; local world cleared")
}

func (c *Client) handleData(pkt transport.Packet) {
	r := wire.NewReader(pkt.Payload)
	tag, err := r.Tag()
	if err != nil {
		c.logger.Debug("dropping malformed packet: empty payload")
		return
	}

	var stateTime int64
	hasStateTime := false
	if tag == wire.TagTimestamp {
		ms, err := r.U64()
		if err != nil {
			c.logger.Debug("dropping malformed packet: truncated timestamp")
			return
		}
		stateTime, hasStateTime = int64(ms), true
		tag, err = r.Tag()
		if err != nil {
			c.logger.Debug("dropping malformed packet: timestamp with no following tag")
			return
		}
	}

	switch tag {
	case wire.TagCreateStaticObjects:
		c.handleCreateStaticObjects(r)
	case wire.TagCreateGameObject:
		c.handleCreateGameObject(r)
	case wire.TagCreateClientObject:
		c.handleCreateClientObject(r)
	case wire.TagDestroyGameObject:
		c.handleDestroyGameObject(r)
	case wire.TagUpdateGameObject:
		if !hasStateTime {
			c.logger.Debug("dropping UPDATE_GAME_OBJECT with no timestamp prefix")
			return
		}
		c.handleUpdateGameObject(r, stateTime)
	default:
		c.logger.Debug("dropping packet with unexpected tag for client", zap.Uint8("tag", uint8(tag)))
	}
}

// handleCreateStaticObjects decodes every record in the payload; the
// server may have split these across several packets, each carrying
// the same tag, so records simply accumulate across calls.
func (c *Client) handleCreateStaticObjects(r *wire.Reader) {
	for r.Remaining() > 0 {
		s, err := entity.DecodeStaticEntity(r, 0, 0)
		if err != nil {
			c.logger.Debug("dropping malformed static entity record", zap.Error(err))
			return
		}
		c.statics = append(c.statics, s)
	}
}

func (c *Client) handleCreateGameObject(r *wire.Reader) {
	base, extra, err := entity.DecodeDynamicEntity(r)
	if err != nil {
		c.logger.Debug("dropping malformed CREATE_GAME_OBJECT", zap.Error(err))
		return
	}
	if c.pendingDestroyIDs[base.ObjectID()] {
		delete(c.pendingDestroyIDs, base.ObjectID())
		return
	}

	d := base
	if c.mirrorFactory != nil {
		d, err = c.mirrorFactory(base, extra)
		if err != nil {
			c.logger.Error("mirror factory failed", zap.Uint32("objectId", base.ObjectID()), zap.Error(err))
			return
		}
		if d.ObjectID() != base.ObjectID() {
			c.logger.Error("mirror factory returned mismatched id", zap.Uint32("want", base.ObjectID()), zap.Uint32("got", d.ObjectID()))
			return
		}
	}
	c.mirrors[d.ObjectID()] = d
}

func (c *Client) handleCreateClientObject(r *wire.Reader) {
	playoutDelayMs, err := r.U64()
	if err != nil {
		c.logger.Debug("dropping malformed CREATE_CLIENT_OBJECT: no playout delay")
		return
	}
	clientID, err := r.U32()
	if err != nil {
		c.logger.Debug("dropping malformed CREATE_CLIENT_OBJECT: no client id")
		return
	}
	base, extra, err := entity.DecodeDynamicEntityBody(r, clientID)
	if err != nil {
		c.logger.Debug("dropping malformed CREATE_CLIENT_OBJECT body", zap.Error(err))
		return
	}

	c.clientID = clientID
	c.hasClientID = true
	c.playoutDelayMs = int64(playoutDelayMs)

	if c.playerFactory != nil {
		c.player = c.playerFactory(base, c.behavior, extra)
	} else {
		c.player = entity.NewPlayerEntity(base, clientID, c.behavior)
	}
}

func (c *Client) handleDestroyGameObject(r *wire.Reader) {
	id, err := r.U32()
	if err != nil {
		c.logger.Debug("dropping malformed DESTROY_GAME_OBJECT")
		return
	}
	if _, ok := c.mirrors[id]; ok {
		delete(c.mirrors, id)
		return
	}
	c.pendingDestroyIDs[id] = true
}

func (c *Client) handleUpdateGameObject(r *wire.Reader, stateTime int64) {
	objectID, state, err := entity.DecodeUpdate(r)
	if err != nil {
		c.logger.Debug("dropping malformed UPDATE_GAME_OBJECT", zap.Error(err))
		return
	}
	c.applyServerUpdate(objectID, state, stateTime)
}

func (c *Client) handleAckReceipt(id transport.ReceiptID) {
	newIdx, foundNew := -1, false
	oldIdx, foundOld := -1, false

	for i := 0; i < c.inputBuffer.Size(); i++ {
		s := c.inputBuffer.At(i)
		if s.receiptAssigned && s.receipt == id {
			newIdx, foundNew = i, true
		}
		if c.hasAckedReceipt && s.receiptAssigned && s.receipt == c.lastAckedReceipt {
			oldIdx, foundOld = i, true
		}
	}
	if !foundNew {
		return
	}
	if !c.hasAckedReceipt || !foundOld || newIdx > oldIdx {
		c.lastAckedReceipt = id
		c.hasAckedReceipt = true
	}
}
