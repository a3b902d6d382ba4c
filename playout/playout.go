// Package playout implements the per-client jitter buffer the server
// uses to smooth out network arrival jitter before applying a client's
// input to its player entity. This implementation uses the time-keyed
// scheme: entries are keyed by the server-local time the input was
// sent (sender timestamp plus half the client's measured RTT), rather
// than a client-reported frame number.
package playout

import (
	"sort"

	"github.com/hearthcode/netplay/entity"
)

// Entry is one buffered input, keyed by server-local send time in
// milliseconds.
type Entry struct {
	Key            int64
	Input          entity.Input
	ActionConsumed bool
}

// Buffer holds one client's pending inputs in time order.
type Buffer struct {
	entries         []*Entry
	lastBufferedKey int64
	hasBuffered     bool
}

func New() *Buffer { return &Buffer{} }

// Enqueue inserts an input keyed by its adjusted send time. It returns
// false, discarding the input, if key is not strictly greater than the
// most recently accepted key (monotonic acceptance) or if an entry
// with the same key is already queued (duplicate tolerance).
func (b *Buffer) Enqueue(key int64, in entity.Input) bool {
	if b.hasBuffered && key <= b.lastBufferedKey {
		return false
	}

	idx := sort.Search(len(b.entries), func(i int) bool { return b.entries[i].Key >= key })
	if idx < len(b.entries) && b.entries[idx].Key == key {
		return false
	}

	e := &Entry{Key: key, Input: in}
	b.entries = append(b.entries, nil)
	copy(b.entries[idx+1:], b.entries[idx:])
	b.entries[idx] = e

	b.lastBufferedKey = key
	b.hasBuffered = true
	return true
}

// Current returns the entry that should drive player simulation at
// tick-time target. It first advances past any entry superseded by a
// later entry that is also due, then returns whichever entry remains
// at the front, without removing it — so repeated calls at the same
// target keep returning the same entry, letting the caller apply its
// movement every tick while gating discrete actions on
// Entry.ActionConsumed. Returns false if no entry is due yet.
func (b *Buffer) Current(target int64) (*Entry, bool) {
	for len(b.entries) > 1 && b.entries[1].Key <= target {
		b.entries = b.entries[1:]
	}
	if len(b.entries) == 0 || b.entries[0].Key > target {
		return nil, false
	}
	return b.entries[0], true
}

// Depth reports how many inputs are currently queued, for metrics.
func (b *Buffer) Depth() int { return len(b.entries) }
