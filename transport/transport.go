// Package transport defines the narrow send/receive contract the
// server and client cores are built against (C1), plus a concrete UDP
// implementation. Message ordering, retransmission of RELIABLE sends,
// and RTT measurement are transport concerns the core never touches
// directly — it only calls Send, Receive, and the ping accessors.
package transport

import (
	"net"
	"time"
)

// Priority hints the transport's internal send scheduling; it does
// not change delivery guarantees.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// Reliability selects how a send is delivered.
type Reliability uint8

const (
	// Reliable sends are guaranteed delivery and ordering within a channel.
	Reliable Reliability = iota
	// Unreliable sends may be dropped or reordered.
	Unreliable
	// UnreliableWithReceipt is unreliable, but generates an ACK_RECEIPT
	// event on the sender when the network layer confirms delivery.
	UnreliableWithReceipt
)

// ReceiptID identifies an UnreliableWithReceipt send for later
// ack-receipt correlation. Values are assigned by Send (NextReceipt
// previews the next one) and are monotonic only within a single
// connection's lifetime.
type ReceiptID uint32

// PacketKind distinguishes an ordinary data delivery from the
// transport-level events the core also needs to react to: a new peer
// making first contact, an ack-receipt arriving, or a peer going quiet
// long enough to be declared lost.
type PacketKind uint8

const (
	PacketData PacketKind = iota
	PacketReceipt
	PacketNewConnection
	PacketConnectionLost
)

// Packet is one event delivered from the transport: an application
// payload, an ack-receipt, or a connection lifecycle event. Only the
// fields relevant to Kind are populated.
type Packet struct {
	Kind    PacketKind
	Sender  net.Addr
	Channel uint8
	Payload []byte

	// Receipt is set when Kind is PacketReceipt.
	Receipt ReceiptID
}

// Target selects which connected peer(s) a Send reaches.
type Target struct {
	Addr      net.Addr
	Broadcast bool
	// Exclude, when Broadcast is true, omits Addr from the broadcast set
	// (used to send to "everyone but the sender").
	Exclude bool
}

// Transport is the contract the server and client cores are written
// against. All methods are safe to call from a single goroutine driving
// the owning core's outer loop; Transport implementations may run their
// own internal goroutines for socket I/O.
type Transport interface {
	// Send transmits payload to target per the given priority and
	// reliability. For UnreliableWithReceipt it returns the ReceiptID
	// that a later ACK_RECEIPT Packet will reference.
	Send(payload []byte, priority Priority, reliability Reliability, channel uint8, target Target) (ReceiptID, error)

	// NextReceipt previews the ReceiptID the next UnreliableWithReceipt
	// send will be assigned, without consuming it.
	NextReceipt() ReceiptID

	// Receive returns the next queued inbound packet, or ok=false if
	// none is pending. Never blocks.
	Receive() (Packet, bool)

	// SetOccasionalPing enables or disables periodic RTT probing.
	SetOccasionalPing(enabled bool)
	AveragePing(addr net.Addr) time.Duration
	LastPing(addr net.Addr) time.Duration

	Close() error
}
