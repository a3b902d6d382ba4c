package transport

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hearthcode/netplay/wire"
)

// frame kinds prefix every UDP datagram this transport sends, ahead of
// the application payload, so the receiver's read loop can separate
// its own bookkeeping (pings, acks, reliable retransmits) from bytes
// meant for the core.
type frameKind uint8

const (
	frameData        frameKind = iota // ordinary payload, reliability encoded alongside
	frameReliableAck                  // internal ack driving Reliable retransmission
	frameReceiptAck                   // ack surfaced to the app as an ACK_RECEIPT event
	framePing
	framePong
)

const (
	resendInterval = 150 * time.Millisecond
	resendAttempts = 8
	pingInterval   = 2 * time.Second
)

// peerState tracks per-peer bookkeeping: RTT/clock-offset estimate and
// outstanding reliable sends awaiting acknowledgment.
type peerState struct {
	mu sync.Mutex

	avgPing     time.Duration
	lastPing    time.Duration
	clockOffset time.Duration
	lastSeen    time.Time

	pendingReliable map[uint32]*pendingSend
	nextReliableSeq uint32
}

// connectionTimeout is how long a peer may go without sending anything
// before the transport declares it lost.
const connectionTimeout = 10 * time.Second

type pendingSend struct {
	frame    []byte
	addr     net.Addr
	attempts int
	timer    *time.Timer
}

// UDPTransport is a concrete Transport over a single *net.UDPConn. It
// supports both server mode (bound to a listen address, many peers)
// and client mode (connected to one remote address).
type UDPTransport struct {
	conn   *net.UDPConn
	logger *zap.Logger

	mu       sync.Mutex
	peers    map[string]*peerState
	inbound  chan Packet
	closed   chan struct{}
	nextRcpt uint32

	pingEnabled bool
}

// NewUDPServer binds a UDP socket at listenAddr (e.g. ":7777") and
// begins servicing it in background goroutines.
func NewUDPServer(listenAddr string, logger *zap.Logger) (*UDPTransport, error) {
	addr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolving listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: binding udp socket: %w", err)
	}
	return newUDPTransport(conn, logger), nil
}

// NewUDPClient connects a UDP socket to remoteAddr (e.g. "host:7777").
func NewUDPClient(remoteAddr string, logger *zap.Logger) (*UDPTransport, error) {
	addr, err := net.ResolveUDPAddr("udp", remoteAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolving remote address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dialing udp socket: %w", err)
	}
	return newUDPTransport(conn, logger), nil
}

func newUDPTransport(conn *net.UDPConn, logger *zap.Logger) *UDPTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &UDPTransport{
		conn:    conn,
		logger:  logger,
		peers:   make(map[string]*peerState),
		inbound: make(chan Packet, 1024),
		closed:  make(chan struct{}),
	}
	go t.readLoop()
	go t.pingLoop()
	return t
}

func (t *UDPTransport) peer(addr net.Addr) *peerState {
	p, _ := t.peerIsNew(addr)
	return p
}

// peerIsNew returns the peerState for addr, creating it if absent, and
// reports whether it was just created (first contact from this peer).
func (t *UDPTransport) peerIsNew(addr net.Addr) (*peerState, bool) {
	key := addr.String()
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[key]
	if !ok {
		p = &peerState{pendingReliable: make(map[uint32]*pendingSend)}
		t.peers[key] = p
		return p, true
	}
	return p, false
}

func (t *UDPTransport) NextReceipt() ReceiptID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ReceiptID(t.nextRcpt)
}

// Send encodes a transport frame and writes it to the socket. Reliable
// sends are retried until acked or resendAttempts is exhausted, with
// retransmission logged at debug level on each attempt beyond the first.
func (t *UDPTransport) Send(payload []byte, priority Priority, reliability Reliability, channel uint8, target Target) (ReceiptID, error) {
	var receipt ReceiptID
	if reliability == UnreliableWithReceipt {
		t.mu.Lock()
		receipt = ReceiptID(t.nextRcpt)
		t.nextRcpt++
		t.mu.Unlock()
	}

	addrs, err := t.resolveTargets(target)
	if err != nil {
		return 0, err
	}

	for _, addr := range addrs {
		if reliability == Reliable {
			if err := t.sendReliable(payload, channel, addr); err != nil {
				return receipt, err
			}
			continue
		}
		frame := encodeFrame(frameData, channel, uint32(receipt), reliability, payload)
		if err := t.write(frame, addr); err != nil {
			return receipt, err
		}
	}
	return receipt, nil
}

func (t *UDPTransport) resolveTargets(target Target) ([]net.Addr, error) {
	if !target.Broadcast {
		if target.Addr == nil {
			return nil, fmt.Errorf("transport: send target has no address and is not a broadcast")
		}
		return []net.Addr{target.Addr}, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var addrs []net.Addr
	for key := range t.peers {
		if target.Exclude && target.Addr != nil && key == target.Addr.String() {
			continue
		}
		addr, err := net.ResolveUDPAddr("udp", key)
		if err != nil {
			continue
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func (t *UDPTransport) sendReliable(payload []byte, channel uint8, addr net.Addr) error {
	p := t.peer(addr)
	p.mu.Lock()
	seq := p.nextReliableSeq
	p.nextReliableSeq++
	frame := encodeFrame(frameData, channel, seq, Reliable, payload)

	ps := &pendingSend{frame: frame, addr: addr}
	p.pendingReliable[seq] = ps
	p.mu.Unlock()

	if err := t.write(frame, addr); err != nil {
		return err
	}
	t.scheduleResend(p, seq)
	return nil
}

func (t *UDPTransport) scheduleResend(p *peerState, seq uint32) {
	p.mu.Lock()
	ps, ok := p.pendingReliable[seq]
	if !ok {
		p.mu.Unlock()
		return
	}
	ps.timer = time.AfterFunc(resendInterval, func() {
		p.mu.Lock()
		ps, stillPending := p.pendingReliable[seq]
		if !stillPending {
			p.mu.Unlock()
			return
		}
		ps.attempts++
		if ps.attempts >= resendAttempts {
			delete(p.pendingReliable, seq)
			p.mu.Unlock()
			t.logger.Warn("giving up on reliable send", zap.Uint32("seq", seq), zap.Int("attempts", ps.attempts))
			return
		}
		addr, frame := ps.addr, ps.frame
		p.mu.Unlock()

		t.logger.Debug("retransmitting reliable frame", zap.Uint32("seq", seq), zap.Int("attempt", ps.attempts))
		_ = t.write(frame, addr)
		t.scheduleResend(p, seq)
	})
	p.mu.Unlock()
}

func (t *UDPTransport) write(frame []byte, addr net.Addr) error {
	udpAddr, ok := addr.(*net.UDPAddr)
	var err error
	if ok && t.conn.RemoteAddr() == nil {
		_, err = t.conn.WriteToUDP(frame, udpAddr)
	} else {
		_, err = t.conn.Write(frame)
	}
	if err != nil {
		return fmt.Errorf("transport: writing udp frame: %w", err)
	}
	return nil
}

func (t *UDPTransport) readLoop() {
	buf := make([]byte, 2048)
	for {
		select {
		case <-t.closed:
			return
		default:
		}

		t.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, addr, err := readFrom(t.conn, buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-t.closed:
				return
			default:
				t.logger.Debug("udp read error", zap.Error(err))
				continue
			}
		}
		t.handleFrame(buf[:n], addr)
	}
}

func readFrom(conn *net.UDPConn, buf []byte) (int, net.Addr, error) {
	if conn.RemoteAddr() != nil {
		n, err := conn.Read(buf)
		return n, conn.RemoteAddr(), err
	}
	return conn.ReadFromUDP(buf)
}

func (t *UDPTransport) handleFrame(data []byte, addr net.Addr) {
	kind, channel, seq, reliability, payload, ok := decodeFrame(data)
	if !ok {
		return
	}

	p, isNew := t.peerIsNew(addr)
	p.mu.Lock()
	p.lastSeen = time.Now()
	p.mu.Unlock()
	if isNew && kind == frameData {
		select {
		case t.inbound <- Packet{Kind: PacketNewConnection, Sender: addr}:
		default:
			t.logger.Warn("dropping new-connection event: queue full")
		}
	}

	switch kind {
	case framePing:
		// Echo the sender's timestamp and append this side's clock, the
		// 16-byte layout handlePong reads.
		pong := make([]byte, 16)
		copy(pong[0:8], payload)
		binary.LittleEndian.PutUint64(pong[8:16], uint64(time.Now().UnixMilli()))
		t.write(encodeFrame(framePong, 0, seq, Unreliable, pong), addr)
		return
	case framePong:
		t.handlePong(addr, payload)
		return
	case frameReliableAck:
		p := t.peer(addr)
		p.mu.Lock()
		if ps, ok := p.pendingReliable[seq]; ok {
			if ps.timer != nil {
				ps.timer.Stop()
			}
			delete(p.pendingReliable, seq)
		}
		p.mu.Unlock()
		return
	case frameReceiptAck:
		select {
		case t.inbound <- Packet{Kind: PacketReceipt, Sender: addr, Receipt: ReceiptID(seq)}:
		default:
			t.logger.Warn("dropping ack-receipt event: queue full")
		}
		return
	}

	if reliability == Reliable {
		t.write(encodeFrame(frameReliableAck, channel, seq, Unreliable, nil), addr)
	} else if reliability == UnreliableWithReceipt {
		t.write(encodeFrame(frameReceiptAck, channel, seq, Unreliable, nil), addr)
	}

	translated := t.translateTimestamp(addr, payload)

	pkt := Packet{Kind: PacketData, Sender: addr, Channel: channel, Payload: translated}
	select {
	case t.inbound <- pkt:
	default:
		t.logger.Warn("dropping inbound packet: queue full")
	}
}

// translateTimestamp rewrites a TIMESTAMP-prefixed payload's embedded
// sender-clock value into this transport's local clock, using the
// peer's measured clock offset. Payloads without the prefix pass
// through unmodified.
func (t *UDPTransport) translateTimestamp(addr net.Addr, payload []byte) []byte {
	r := wire.NewReader(payload)
	tag, ok := r.PeekTag()
	if !ok || tag != wire.TagTimestamp {
		return payload
	}
	if _, err := r.Tag(); err != nil {
		return payload
	}
	senderMs, err := r.U64()
	if err != nil {
		return payload
	}

	p := t.peer(addr)
	p.mu.Lock()
	offset := p.clockOffset
	p.mu.Unlock()

	localMs := uint64(time.Duration(senderMs)*time.Millisecond-offset) / uint64(time.Millisecond)

	w := wire.NewWriter()
	w.Tag(wire.TagTimestamp)
	w.U64(localMs)
	w.Raw(payload[len(payload)-r.Remaining():])
	return w.Bytes()
}

func (t *UDPTransport) handlePong(addr net.Addr, payload []byte) {
	if len(payload) < 16 {
		return
	}
	originalSendMs := binary.LittleEndian.Uint64(payload[0:8])
	peerNowMs := binary.LittleEndian.Uint64(payload[8:16])

	now := time.Now()
	sentAt := time.UnixMilli(int64(originalSendMs))
	rtt := now.Sub(sentAt)
	midpoint := sentAt.Add(rtt / 2)
	peerNow := time.UnixMilli(int64(peerNowMs))
	offset := peerNow.Sub(midpoint)

	p := t.peer(addr)
	p.mu.Lock()
	p.lastPing = rtt
	if p.avgPing == 0 {
		p.avgPing = rtt
	} else {
		p.avgPing = p.avgPing + (rtt-p.avgPing)/8
	}
	p.clockOffset = offset
	p.mu.Unlock()
}

func (t *UDPTransport) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
			t.sweepStalePeers()

			if !t.pingEnabled {
				continue
			}
			t.mu.Lock()
			keys := make([]string, 0, len(t.peers))
			for k := range t.peers {
				keys = append(keys, k)
			}
			t.mu.Unlock()

			var payload [8]byte
			binary.LittleEndian.PutUint64(payload[:], uint64(time.Now().UnixMilli()))
			for _, k := range keys {
				addr, err := net.ResolveUDPAddr("udp", k)
				if err != nil {
					continue
				}
				t.write(encodeFrame(framePing, 0, 0, Unreliable, payload[:]), addr)
			}
		}
	}
}

// sweepStalePeers declares any peer that has gone quiet longer than
// connectionTimeout lost, removing its state and emitting a
// PacketConnectionLost event for the core to react to.
func (t *UDPTransport) sweepStalePeers() {
	now := time.Now()
	t.mu.Lock()
	var lost []net.Addr
	for key, p := range t.peers {
		p.mu.Lock()
		quiet := !p.lastSeen.IsZero() && now.Sub(p.lastSeen) > connectionTimeout
		p.mu.Unlock()
		if quiet {
			addr, err := net.ResolveUDPAddr("udp", key)
			if err == nil {
				lost = append(lost, addr)
			}
			delete(t.peers, key)
		}
	}
	t.mu.Unlock()

	for _, addr := range lost {
		select {
		case t.inbound <- Packet{Kind: PacketConnectionLost, Sender: addr}:
		default:
			t.logger.Warn("dropping connection-lost event: queue full")
		}
	}
}

func (t *UDPTransport) SetOccasionalPing(enabled bool) { t.pingEnabled = enabled }

func (t *UDPTransport) AveragePing(addr net.Addr) time.Duration {
	p := t.peer(addr)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.avgPing
}

func (t *UDPTransport) LastPing(addr net.Addr) time.Duration {
	p := t.peer(addr)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPing
}

func (t *UDPTransport) Receive() (Packet, bool) {
	select {
	case pkt := <-t.inbound:
		return pkt, true
	default:
		return Packet{}, false
	}
}

func (t *UDPTransport) Close() error {
	close(t.closed)
	return t.conn.Close()
}

// encodeFrame builds {kind, channel, reliability, seq, payload...}.
func encodeFrame(kind frameKind, channel uint8, seq uint32, reliability Reliability, payload []byte) []byte {
	buf := make([]byte, 0, 7+len(payload))
	buf = append(buf, byte(kind), channel, byte(reliability))
	var seqBuf [4]byte
	binary.LittleEndian.PutUint32(seqBuf[:], seq)
	buf = append(buf, seqBuf[:]...)
	return append(buf, payload...)
}

func decodeFrame(data []byte) (kind frameKind, channel uint8, seq uint32, reliability Reliability, payload []byte, ok bool) {
	if len(data) < 7 {
		return 0, 0, 0, 0, nil, false
	}
	kind = frameKind(data[0])
	channel = data[1]
	reliability = Reliability(data[2])
	seq = binary.LittleEndian.Uint32(data[3:7])
	payload = data[7:]
	return kind, channel, seq, reliability, payload, true
}
