package server

import (
	"net"

	"go.uber.org/zap"

	"github.com/hearthcode/netplay/entity"
	"github.com/hearthcode/netplay/playout"
	"github.com/hearthcode/netplay/transport"
	"github.com/hearthcode/netplay/wire"
)

// approxMTU is a conservative Ethernet-over-UDP payload budget; static
// object bootstrap packets flush once they would exceed 95% of it,
// leaving headroom for the transport's own framing.
const approxMTU = 1472

const staticFlushThreshold = int(float64(approxMTU) * 0.95)

func (s *Server) drainInbox() {
	for {
		pkt, ok := s.transport.Receive()
		if !ok {
			return
		}
		switch pkt.Kind {
		case transport.PacketNewConnection:
			s.handleConnect(pkt.Sender)
		case transport.PacketConnectionLost:
			s.handleDisconnect(pkt.Sender)
		case transport.PacketData:
			s.handleData(pkt)
		}
	}
}

func (s *Server) handleData(pkt transport.Packet) {
	r := wire.NewReader(pkt.Payload)
	tag, err := r.Tag()
	if err != nil {
		s.logger.Debug("dropping malformed packet: empty payload")
		return
	}

	var headerTime int64
	if tag == wire.TagTimestamp {
		ms, err := r.U64()
		if err != nil {
			s.logger.Debug("dropping malformed packet: truncated timestamp")
			return
		}
		headerTime = int64(ms)
		tag, err = r.Tag()
		if err != nil {
			s.logger.Debug("dropping malformed packet: timestamp with no following tag")
			return
		}
	}

	switch tag {
	case wire.TagClientInput:
		s.handleClientInput(pkt.Sender, headerTime, r)
	default:
		s.logger.Debug("dropping packet with unexpected tag for server", zap.Uint8("tag", uint8(tag)))
	}
}

func (s *Server) handleClientInput(addr net.Addr, headerTime int64, r *wire.Reader) {
	cid, ok := s.addrToClient[addr.String()]
	if !ok {
		s.logger.Debug("dropping input for unknown client", zap.String("addr", addr.String()))
		return
	}
	cs, ok := s.clients[cid]
	if !ok {
		return
	}

	halfRTTMs := s.transport.AveragePing(addr).Milliseconds() / 2
	for r.Remaining() > 0 {
		offset, err := r.U64()
		if err != nil {
			return
		}
		in, err := entity.DecodeInput(r)
		if err != nil {
			s.logger.Debug("dropping malformed input entry", zap.Error(err))
			return
		}
		cs.playout.Enqueue(headerTime-int64(offset)+halfRTTMs, in)
	}
}

func (s *Server) handleConnect(addr net.Addr) {
	cid := s.nextClientID
	s.nextClientID++

	s.addrToClient[addr.String()] = cid
	s.clients[cid] = &clientState{addr: addr, playout: playout.New()}

	s.sendStaticBootstrap(addr)

	for _, id := range s.dynamicOrder {
		s.sendCreateGameObject(addr, s.dynamics[id])
	}
	for _, cid := range s.playerOrder {
		s.sendCreateGameObject(addr, s.players[cid].DynamicEntity)
	}

	player, err := s.clientObjectFactory(cid)
	if err != nil {
		s.logger.Error("client object factory failed", zap.Uint32("clientId", cid), zap.Error(err))
		return
	}
	if player.ObjectID() != cid {
		s.logger.Error("client object factory returned mismatched id", zap.Uint32("want", cid), zap.Uint32("got", player.ObjectID()))
		return
	}
	s.players[cid] = player
	s.playerOrder = append(s.playerOrder, cid)

	w := wire.NewWriter()
	w.Tag(wire.TagCreateClientObject)
	w.U64(uint64(s.playoutDelayMs))
	player.Serialize(w, nil)
	if _, err := s.transport.Send(w.Bytes(), transport.PriorityHigh, transport.Reliable, 0, transport.Target{Addr: addr}); err != nil {
		s.logger.Warn("sending create-client-object failed", zap.Error(err))
	}

	broadcastW := wire.NewWriter()
	broadcastW.Tag(wire.TagCreateGameObject)
	player.Serialize(broadcastW, nil)
	s.broadcast(broadcastW.Bytes(), transport.PriorityHigh, transport.Reliable, 0, addr, true)

	if s.metrics != nil {
		s.metrics.ConnectedClients.Set(float64(len(s.clients)))
	}
}

func (s *Server) handleDisconnect(addr net.Addr) {
	cid, ok := s.addrToClient[addr.String()]
	if !ok {
		return
	}

	w := wire.NewWriter()
	w.Tag(wire.TagDestroyGameObject)
	w.U32(cid)
	s.broadcast(w.Bytes(), transport.PriorityHigh, transport.Reliable, 0, nil, false)

	delete(s.players, cid)
	s.playerOrder = removeID(s.playerOrder, cid)
	delete(s.clients, cid)
	delete(s.addrToClient, addr.String())

	if s.metrics != nil {
		s.metrics.ConnectedClients.Set(float64(len(s.clients)))
	}
}

func (s *Server) sendCreateGameObject(addr net.Addr, d *entity.DynamicEntity) {
	w := wire.NewWriter()
	w.Tag(wire.TagCreateGameObject)
	d.Serialize(w, nil)
	if _, err := s.transport.Send(w.Bytes(), transport.PriorityHigh, transport.Reliable, 0, transport.Target{Addr: addr}); err != nil {
		s.logger.Warn("sending create-game-object failed", zap.Error(err))
	}
}

// sendStaticBootstrap sends every static entity to addr, splitting into
// multiple CREATE_STATIC_OBJECTS packets once the next record would
// push a packet over staticFlushThreshold bytes. Every packet carries
// the same tag; the client concatenates their records.
func (s *Server) sendStaticBootstrap(addr net.Addr) {
	w := wire.NewWriter()
	w.Tag(wire.TagCreateStaticObjects)

	flush := func() {
		if _, err := s.transport.Send(w.Bytes(), transport.PriorityHigh, transport.Reliable, 0, transport.Target{Addr: addr}); err != nil {
			s.logger.Warn("sending static bootstrap failed", zap.Error(err))
		}
	}

	for _, static := range s.statics {
		record := wire.NewWriter()
		static.Serialize(record)
		recordBytes := record.Bytes()

		if len(w.Bytes())+len(recordBytes) > staticFlushThreshold {
			flush()
			w = wire.NewWriter()
			w.Tag(wire.TagCreateStaticObjects)
		}
		w.Raw(recordBytes)
	}
	flush()
}
