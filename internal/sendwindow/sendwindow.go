// Package sendwindow assigns outgoing sequence/message/order indices,
// builds MTU-bounded datagrams from a payload queue, retains them for
// retransmission, and runs RTT/RTO estimation and CWND/SSTHRESH
// congestion control.
package sendwindow

import (
	"math"
	"sort"
	"time"

	"raknetd/internal/raknet"
)

const (
	minRTO     = 100 * time.Millisecond
	maxRTO     = 5 * time.Second
	initialRTO = 500 * time.Millisecond

	rttAlpha = 0.125
	rttBeta  = 0.25

	// datagramHeaderSize is the flag byte plus the 24-bit triad sequence
	// number every Datagram carries ahead of its encapsulated packets.
	datagramHeaderSize = 4
)

type unackedDatagram struct {
	datagram      *raknet.Datagram
	firstSendTime time.Time
}

// Window is the per-session send-side reliability and congestion state.
type Window struct {
	mtu uint16

	nextSeq           uint32
	nextMessageIndex  uint32
	nextOrderIndex    map[uint8]uint32
	nextSequenceIndex map[uint8]uint32
	nextSplitID       uint16

	queue   []*raknet.EncapsulatedPacket
	unacked map[uint32]*unackedDatagram
	resend  map[uint32]bool

	rttInitialized bool
	srtt           time.Duration
	rttvar         time.Duration
	rto            time.Duration

	cwnd          float64
	ssthresh      float64
	bytesInFlight int
}

func New(mtu uint16) *Window {
	return &Window{
		mtu:               mtu,
		nextOrderIndex:    make(map[uint8]uint32),
		nextSequenceIndex: make(map[uint8]uint32),
		unacked:           make(map[uint32]*unackedDatagram),
		resend:            make(map[uint32]bool),
		rto:               initialRTO,
		cwnd:              math.Max(2*float64(mtu), 1400),
		ssthresh:          math.MaxFloat64,
	}
}

func (w *Window) fragmentBudget(reliability raknet.Reliability) int {
	template := &raknet.EncapsulatedPacket{Reliability: reliability, IsSplit: true}
	budget := int(w.mtu) - datagramHeaderSize - template.HeaderSize()
	if budget < 1 {
		budget = 1
	}
	return budget
}

// Queue assigns reliability metadata to payload and enqueues it (split
// across multiple fragments if it would not fit a single datagram),
// per spec §4.5.
func (w *Window) Queue(payload []byte, reliability raknet.Reliability, channel uint8) {
	var messageIndex, sequenceIndex, orderIndex uint32
	if reliability.IsReliable() {
		messageIndex = w.nextMessageIndex
		w.nextMessageIndex++
	}
	if reliability.IsSequenced() {
		sequenceIndex = w.nextSequenceIndex[channel]
		w.nextSequenceIndex[channel]++
	}
	if reliability.IsOrderedOrSequenced() {
		orderIndex = w.nextOrderIndex[channel]
		w.nextOrderIndex[channel]++
	}

	base := &raknet.EncapsulatedPacket{
		Reliability:   reliability,
		MessageIndex:  messageIndex,
		SequenceIndex: sequenceIndex,
		OrderIndex:    orderIndex,
		OrderChannel:  channel,
	}

	whole := *base
	whole.Payload = payload
	singleBudget := int(w.mtu) - datagramHeaderSize - whole.HeaderSize()
	if len(payload) <= singleBudget {
		w.queue = append(w.queue, &whole)
		return
	}

	chunkSize := w.fragmentBudget(reliability)
	splitCount := (len(payload) + chunkSize - 1) / chunkSize
	splitID := w.nextSplitID
	w.nextSplitID++

	for i := 0; i < splitCount; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		frag := *base
		frag.IsSplit = true
		frag.SplitCount = uint32(splitCount)
		frag.SplitID = splitID
		frag.SplitIndex = uint32(i)
		frag.Payload = payload[start:end]
		w.queue = append(w.queue, &frag)
	}
}

// BuildNextDatagram produces the next datagram to send: a pending
// retransmission if CWND allows one, otherwise as many queued packets as
// fit the MTU and remaining CWND budget. It returns nil when there is
// nothing eligible to send right now. The second return value reports
// whether the datagram is a retransmission rather than new traffic.
func (w *Window) BuildNextDatagram() (*raknet.Datagram, bool) {
	if seq, ok := w.nextRetransmission(); ok {
		u := w.unacked[seq]
		if w.bytesInFlight+u.datagram.Size() <= int(w.cwnd) {
			delete(w.resend, seq)
			u.firstSendTime = time.Now()
			return u.datagram, true
		}
		return nil, false
	}

	if len(w.queue) == 0 {
		return nil, false
	}

	dg := &raknet.Datagram{SequenceNumber: w.nextSeq}
	size := datagramHeaderSize
	for len(w.queue) > 0 {
		next := w.queue[0]
		addedSize := next.Size()
		if len(dg.Packets) > 0 && size+addedSize > int(w.mtu) {
			break
		}
		if w.bytesInFlight+size+addedSize > int(w.cwnd) {
			break
		}
		dg.Packets = append(dg.Packets, next)
		size += addedSize
		w.queue = w.queue[1:]
	}

	if len(dg.Packets) == 0 {
		return nil, false
	}

	w.nextSeq++
	w.unacked[dg.SequenceNumber] = &unackedDatagram{datagram: dg, firstSendTime: time.Now()}
	w.bytesInFlight += dg.Size()
	return dg, false
}

func (w *Window) nextRetransmission() (uint32, bool) {
	if len(w.resend) == 0 {
		return 0, false
	}
	seqs := make([]uint32, 0, len(w.resend))
	for s := range w.resend {
		if _, ok := w.unacked[s]; !ok {
			delete(w.resend, s)
			continue
		}
		seqs = append(seqs, s)
	}
	if len(seqs) == 0 {
		return 0, false
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs[0], true
}

// HandleAck removes each acknowledged sequence from the unacked set,
// samples RTT for it, and grows CWND per spec §4.5.
func (w *Window) HandleAck(seqs []uint32) {
	for _, seq := range seqs {
		u, ok := w.unacked[seq]
		if !ok {
			continue
		}
		delete(w.unacked, seq)
		delete(w.resend, seq)
		w.bytesInFlight -= u.datagram.Size()
		if w.bytesInFlight < 0 {
			w.bytesInFlight = 0
		}

		w.sampleRTT(time.Since(u.firstSendTime))

		if w.cwnd < w.ssthresh {
			w.cwnd += math.Max(float64(u.datagram.Size()), float64(w.mtu))
		} else {
			w.cwnd += (float64(w.mtu) * float64(w.mtu)) / w.cwnd
		}
	}
}

// HandleNack marks each named sequence for immediate retransmission and,
// if any were still outstanding, performs fast-retransmit/recovery.
func (w *Window) HandleNack(seqs []uint32) {
	marked := false
	for _, seq := range seqs {
		if _, ok := w.unacked[seq]; ok {
			w.resend[seq] = true
			marked = true
		}
	}
	if marked {
		w.ssthresh = math.Max(w.cwnd/2, float64(w.mtu))
		w.cwnd = w.ssthresh
	}
}

// Tick marks any unacked reliable datagram whose age exceeds RTO for
// retransmission, doubling RTO and aggressively cutting CWND for each.
func (w *Window) Tick() {
	now := time.Now()
	for seq, u := range w.unacked {
		if now.Sub(u.firstSendTime) <= w.rto {
			continue
		}
		reliable := false
		for _, p := range u.datagram.Packets {
			if p.Reliability.IsReliable() {
				reliable = true
				break
			}
		}
		if !reliable {
			continue
		}
		w.resend[seq] = true
		w.rto = clampRTO(w.rto * 2)
		w.ssthresh = math.Max(w.cwnd/2, float64(w.mtu))
		w.cwnd = float64(w.mtu)
	}
}

func (w *Window) sampleRTT(sample time.Duration) {
	if !w.rttInitialized {
		w.srtt = sample
		w.rttvar = sample / 2
		w.rttInitialized = true
	} else {
		diff := sample - w.srtt
		if diff < 0 {
			diff = -diff
		}
		w.rttvar = time.Duration((1-rttBeta)*float64(w.rttvar) + rttBeta*float64(diff))
		w.srtt = time.Duration((1-rttAlpha)*float64(w.srtt) + rttAlpha*float64(sample))
	}
	w.rto = clampRTO(w.srtt + 4*w.rttvar)
}

func clampRTO(d time.Duration) time.Duration {
	if d < minRTO {
		return minRTO
	}
	if d > maxRTO {
		return maxRTO
	}
	return d
}

// RTO reports the current retransmission timeout estimate.
func (w *Window) RTO() time.Duration {
	return w.rto
}

// CWND reports the current congestion window in bytes.
func (w *Window) CWND() float64 {
	return w.cwnd
}

// BytesInFlight reports the current unacknowledged byte count.
func (w *Window) BytesInFlight() int {
	return w.bytesInFlight
}

// Idle reports whether there is nothing queued or outstanding.
func (w *Window) Idle() bool {
	return len(w.queue) == 0 && len(w.unacked) == 0
}
