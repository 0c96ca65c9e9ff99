// Package reassembly reconstructs split logical messages from the
// fragments carried across multiple EncapsulatedPackets.
package reassembly

import (
	"time"

	"raknetd/internal/raknet"
)

const (
	// MaxConcurrentSplits bounds how many reassemblies may be in flight
	// for a single session at once.
	MaxConcurrentSplits = 64
	// MaxSplitParts bounds the fragment count any single reassembly may
	// declare, rejecting implausibly large split_count values outright.
	MaxSplitParts = 128
	// Timeout is how long an incomplete reassembly is kept before it is
	// discarded and its slot freed.
	Timeout = 30 * time.Second
)

type entry struct {
	count     uint32
	slots     [][]byte
	filled    int
	totalSize int
	firstSeen time.Time
	// template carries the first fragment's reliability/ordering
	// metadata; the reconstructed message inherits it.
	template *raknet.EncapsulatedPacket
}

// Handler buffers split-packet fragments keyed by split id and emits the
// reconstructed message once every fragment has arrived.
type Handler struct {
	splits map[uint16]*entry
}

func NewHandler() *Handler {
	return &Handler{splits: make(map[uint16]*entry)}
}

// Handle ingests one fragment. It returns a reconstructed
// EncapsulatedPacket when ep completes its split group, or nil if the
// group is still incomplete. A non-nil error means the fragment (or the
// group it identifies) is malformed or the session exceeded its
// concurrency budget; the caller should drop just that fragment.
func (h *Handler) Handle(ep *raknet.EncapsulatedPacket) (*raknet.EncapsulatedPacket, error) {
	if ep.SplitCount == 0 || ep.SplitCount > MaxSplitParts {
		return nil, &raknet.InvalidSplitPacketError{Reason: "split count out of range"}
	}
	if ep.SplitIndex >= ep.SplitCount {
		return nil, &raknet.InvalidSplitPacketError{Reason: "split index out of range"}
	}

	e, exists := h.splits[ep.SplitID]
	if !exists {
		if len(h.splits) >= MaxConcurrentSplits {
			return nil, raknet.ErrTooManySplitPackets
		}
		e = &entry{
			count:     ep.SplitCount,
			slots:     make([][]byte, ep.SplitCount),
			firstSeen: time.Now(),
			template:  ep,
		}
		h.splits[ep.SplitID] = e
	}

	if e.count != ep.SplitCount {
		return nil, &raknet.InvalidSplitPacketError{Reason: "split count changed mid-reassembly"}
	}
	if e.slots[ep.SplitIndex] != nil {
		return nil, nil // duplicate fragment, silently dropped
	}

	e.slots[ep.SplitIndex] = ep.Payload
	e.filled++
	e.totalSize += len(ep.Payload)

	if e.filled < int(e.count) {
		return nil, nil
	}

	payload := make([]byte, 0, e.totalSize)
	for _, frag := range e.slots {
		payload = append(payload, frag...)
	}
	delete(h.splits, ep.SplitID)

	out := *e.template
	out.IsSplit = false
	out.Payload = payload
	return &out, nil
}

// CleanupTimeouts discards reassemblies whose first fragment arrived
// more than Timeout ago, returning the count of slots freed. It should be
// invoked on every tick.
func (h *Handler) CleanupTimeouts(now time.Time) int {
	freed := 0
	for id, e := range h.splits {
		if now.Sub(e.firstSeen) > Timeout {
			delete(h.splits, id)
			freed++
		}
	}
	return freed
}

// Pending reports how many reassemblies are currently in flight.
func (h *Handler) Pending() int {
	return len(h.splits)
}
