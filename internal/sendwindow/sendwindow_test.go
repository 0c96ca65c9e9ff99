package sendwindow

import (
	"testing"
	"time"

	"raknetd/internal/raknet"
)

func TestQueueAndBuildSingleDatagram(t *testing.T) {
	w := New(1400)
	w.Queue([]byte("hello"), raknet.Reliable, 0)
	dg, _ := w.BuildNextDatagram()
	if dg == nil {
		t.Fatal("expected a datagram")
	}
	if len(dg.Packets) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(dg.Packets))
	}
	if dg.SequenceNumber != 0 {
		t.Errorf("expected first sequence number 0, got %d", dg.SequenceNumber)
	}
}

func TestQueueSplitsOversizedPayload(t *testing.T) {
	w := New(200)
	payload := make([]byte, 2000)
	for i := range payload {
		payload[i] = byte(i)
	}
	w.Queue(payload, raknet.ReliableOrdered, 0)

	var fragments []*raknet.EncapsulatedPacket
	for {
		dg, _ := w.BuildNextDatagram()
		if dg == nil {
			break
		}
		fragments = append(fragments, dg.Packets...)
	}
	if len(fragments) < 2 {
		t.Fatalf("expected multiple fragments, got %d", len(fragments))
	}
	for i, f := range fragments {
		if f.SplitIndex != uint32(i) {
			t.Errorf("fragment %d has split index %d", i, f.SplitIndex)
		}
		if f.SplitID != fragments[0].SplitID {
			t.Errorf("fragment %d has mismatched split id", i)
		}
	}
}

func TestRetransmissionReusesSequenceNumber(t *testing.T) {
	w := New(1400)
	w.Queue([]byte("payload"), raknet.Reliable, 0)
	dg, _ := w.BuildNextDatagram()
	if dg == nil {
		t.Fatal("expected a datagram")
	}
	seq := dg.SequenceNumber

	w.HandleNack([]uint32{seq})
	retransmit, isRetransmit := w.BuildNextDatagram()
	if retransmit == nil {
		t.Fatal("expected a retransmission")
	}
	if !isRetransmit {
		t.Error("expected BuildNextDatagram to report a retransmission")
	}
	if retransmit.SequenceNumber != seq {
		t.Errorf("retransmission changed sequence number: got %d want %d", retransmit.SequenceNumber, seq)
	}
}

func TestAckClearsUnackedAndGrowsCwnd(t *testing.T) {
	w := New(1400)
	before := w.CWND()
	w.Queue([]byte("payload"), raknet.Reliable, 0)
	dg, _ := w.BuildNextDatagram()
	w.HandleAck([]uint32{dg.SequenceNumber})
	after := w.CWND()
	if after <= before {
		t.Errorf("expected cwnd to grow in slow start: before=%v after=%v", before, after)
	}
	if w.BytesInFlight() != 0 {
		t.Errorf("expected bytes in flight to return to 0, got %d", w.BytesInFlight())
	}
}

func TestCongestionAvoidanceGrowsLessThanSlowStart(t *testing.T) {
	w := New(1400)
	w.Queue([]byte("payload"), raknet.Reliable, 0)
	dg, _ := w.BuildNextDatagram()
	slowStartGrowth := func() float64 {
		before := w.CWND()
		w.HandleAck([]uint32{dg.SequenceNumber})
		return w.CWND() - before
	}
	ssGrowth := slowStartGrowth()

	w.ssthresh = w.cwnd // force congestion avoidance
	w.Queue([]byte("payload2"), raknet.Reliable, 0)
	dg2, _ := w.BuildNextDatagram()
	before := w.CWND()
	w.HandleAck([]uint32{dg2.SequenceNumber})
	avoidanceGrowth := w.CWND() - before

	if avoidanceGrowth <= 0 {
		t.Errorf("expected positive growth in avoidance, got %v", avoidanceGrowth)
	}
	if avoidanceGrowth >= ssGrowth {
		t.Errorf("expected avoidance growth (%v) to be smaller than slow-start growth (%v)", avoidanceGrowth, ssGrowth)
	}
}

func TestRTOClampBounds(t *testing.T) {
	w := New(1400)
	w.sampleRTT(0)
	if w.RTO() < minRTO {
		t.Errorf("rto below minimum: %v", w.RTO())
	}
	w.sampleRTT(10 * time.Minute)
	if w.RTO() > maxRTO {
		t.Errorf("rto above maximum: %v", w.RTO())
	}
}

func TestTickMarksRetransmissionAfterRTO(t *testing.T) {
	w := New(1400)
	w.rto = time.Millisecond
	w.Queue([]byte("payload"), raknet.Reliable, 0)
	dg, _ := w.BuildNextDatagram()
	w.unacked[dg.SequenceNumber].firstSendTime = time.Now().Add(-time.Second)

	w.Tick()
	if !w.resend[dg.SequenceNumber] {
		t.Errorf("expected seq %d marked for retransmission after tick", dg.SequenceNumber)
	}
}
