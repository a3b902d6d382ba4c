package server

import (
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthcode/netplay/entity"
	"github.com/hearthcode/netplay/metrics"
	"github.com/hearthcode/netplay/transport"
	"github.com/hearthcode/netplay/wire"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

type sentCall struct {
	payload []byte
	target  transport.Target
}

type fakeTransport struct {
	sent []sentCall
}

func (f *fakeTransport) Send(payload []byte, _ transport.Priority, _ transport.Reliability, _ uint8, target transport.Target) (transport.ReceiptID, error) {
	f.sent = append(f.sent, sentCall{payload: payload, target: target})
	return 0, nil
}
func (f *fakeTransport) NextReceipt() transport.ReceiptID             { return 0 }
func (f *fakeTransport) Receive() (transport.Packet, bool)            { return transport.Packet{}, false }
func (f *fakeTransport) SetOccasionalPing(bool)                       {}
func (f *fakeTransport) AveragePing(net.Addr) time.Duration           { return 0 }
func (f *fakeTransport) LastPing(net.Addr) time.Duration              { return 0 }
func (f *fakeTransport) Close() error                                 { return nil }

func newTestServer(ft *fakeTransport, m *metrics.Server) *Server {
	gameFactory := func(typeID int32, objectID uint32, state entity.PhysicsState, params []byte) (*entity.DynamicEntity, error) {
		return entity.NewDynamicEntity(objectID, typeID, state, nil, 1, 0, 0, 0, 0, false), nil
	}
	clientFactory := func(clientID uint32) (*entity.PlayerEntity, error) {
		d := entity.NewDynamicEntity(clientID, 100, entity.PhysicsState{}, nil, 1, 0, 0, 0, 0, false)
		return entity.NewPlayerEntity(d, clientID, nil), nil
	}
	return New(ft, nil, m, 60, 100*time.Millisecond, gameFactory, clientFactory)
}

func TestHandleConnectSendsClientObjectAndBroadcastsExcludingIt(t *testing.T) {
	ft := &fakeTransport{}
	m := metrics.NewServer(prometheus.NewRegistry())
	s := newTestServer(ft, m)

	s.handleConnect(fakeAddr("alice:1"))

	// The static bootstrap packet is always sent first, even with no statics.
	require.Len(t, ft.sent, 3)

	createClient := ft.sent[1]
	assert.Equal(t, fakeAddr("alice:1"), createClient.target.Addr)
	assert.False(t, createClient.target.Broadcast)
	r := wire.NewReader(createClient.payload)
	tag, err := r.Tag()
	require.NoError(t, err)
	assert.Equal(t, wire.TagCreateClientObject, tag)

	broadcast := ft.sent[2]
	assert.True(t, broadcast.target.Broadcast)
	assert.True(t, broadcast.target.Exclude)
	assert.Equal(t, fakeAddr("alice:1"), broadcast.target.Addr)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConnectedClients))
	assert.Len(t, s.players, 1)
}

func TestHandleConnectAssignsDistinctClientIDs(t *testing.T) {
	ft := &fakeTransport{}
	m := metrics.NewServer(prometheus.NewRegistry())
	s := newTestServer(ft, m)

	s.handleConnect(fakeAddr("alice:1"))
	s.handleConnect(fakeAddr("bob:1"))

	assert.Len(t, s.players, 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ConnectedClients))

	aliceID := s.addrToClient["alice:1"]
	bobID := s.addrToClient["bob:1"]
	assert.NotEqual(t, aliceID, bobID)
}

func TestHandleDisconnectBroadcastsDestroyAndClearsState(t *testing.T) {
	ft := &fakeTransport{}
	m := metrics.NewServer(prometheus.NewRegistry())
	s := newTestServer(ft, m)

	s.handleConnect(fakeAddr("alice:1"))
	cid := s.addrToClient["alice:1"]
	ft.sent = nil

	s.handleDisconnect(fakeAddr("alice:1"))

	require.Len(t, ft.sent, 1)
	r := wire.NewReader(ft.sent[0].payload)
	tag, err := r.Tag()
	require.NoError(t, err)
	require.Equal(t, wire.TagDestroyGameObject, tag)
	destroyedID, err := r.U32()
	require.NoError(t, err)
	assert.Equal(t, cid, destroyedID)

	_, stillPresent := s.players[cid]
	assert.False(t, stillPresent)
	_, addrKnown := s.addrToClient["alice:1"]
	assert.False(t, addrKnown)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ConnectedClients))
}

func TestHandleClientInputEnqueuesKeyedByHeaderMinusOffset(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestServer(ft, nil)
	s.handleConnect(fakeAddr("alice:1"))
	cid := s.addrToClient["alice:1"]

	w := wire.NewWriter()
	w.U64(20) // offset
	entity.Input{Sequence: 7}.Encode(w)

	s.handleClientInput(fakeAddr("alice:1"), 1000, wire.NewReader(w.Bytes()))

	entry, ok := s.clients[cid].playout.Current(980)
	require.True(t, ok)
	assert.Equal(t, int64(980), entry.Key)
	assert.Equal(t, uint32(7), entry.Input.Sequence)
}

func TestHandleClientInputFromUnknownAddrIsDropped(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestServer(ft, nil)

	w := wire.NewWriter()
	w.U64(0)
	entity.Input{}.Encode(w)

	assert.NotPanics(t, func() {
		s.handleClientInput(fakeAddr("ghost:1"), 1000, wire.NewReader(w.Bytes()))
	})
}

func TestSendStaticBootstrapSplitsAcrossMTU(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestServer(ft, nil)

	big := entity.OrientedBox{}
	for i := 0; i < 200; i++ {
		s.AddStatic(entity.NewStaticEntity(0, big, entity.PhysicsState{}.Position, entity.PhysicsState{}.Rotation, 0, 0))
	}

	s.sendStaticBootstrap(fakeAddr("alice:1"))

	assert.Greater(t, len(ft.sent), 1, "enough statics must split into more than one packet")
	for _, call := range ft.sent {
		assert.LessOrEqual(t, len(call.payload), staticFlushThreshold+64)
	}
}

func TestDestroyObjectRejectsClientIDRange(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestServer(ft, nil)

	err := s.DestroyObject(firstObjectID - 1)
	assert.Error(t, err)

	err = s.DestroyObject(firstObjectID)
	assert.NoError(t, err)
}
