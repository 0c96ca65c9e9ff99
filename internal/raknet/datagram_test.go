package raknet

import (
	"bytes"
	"testing"

	"raknetd/internal/wire"
)

func TestEncapsulatedPacketRoundTripUnreliable(t *testing.T) {
	ep := &EncapsulatedPacket{Reliability: Unreliable, Payload: []byte("hello")}
	w := wire.NewWriter()
	ep.Encode(w)
	got, err := DecodeEncapsulatedPacket(wire.NewReader(w.Bytes()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got.Payload, ep.Payload) {
		t.Errorf("payload mismatch: got %q", got.Payload)
	}
}

func TestEncapsulatedPacketRoundTripReliableOrdered(t *testing.T) {
	ep := &EncapsulatedPacket{
		Reliability:  ReliableOrdered,
		MessageIndex: 42,
		OrderIndex:   7,
		OrderChannel: 3,
		Payload:      []byte("ordered payload"),
	}
	w := wire.NewWriter()
	ep.Encode(w)
	got, err := DecodeEncapsulatedPacket(wire.NewReader(w.Bytes()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.MessageIndex != 42 || got.OrderIndex != 7 || got.OrderChannel != 3 {
		t.Errorf("field mismatch: %+v", got)
	}
	if !bytes.Equal(got.Payload, ep.Payload) {
		t.Errorf("payload mismatch: got %q", got.Payload)
	}
}

func TestEncapsulatedPacketRoundTripSplit(t *testing.T) {
	ep := &EncapsulatedPacket{
		Reliability: Reliable,
		IsSplit:     true,
		MessageIndex: 5,
		SplitCount:  3,
		SplitID:     9,
		SplitIndex:  1,
		Payload:     []byte("fragment"),
	}
	w := wire.NewWriter()
	ep.Encode(w)
	got, err := DecodeEncapsulatedPacket(wire.NewReader(w.Bytes()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SplitCount != 3 || got.SplitID != 9 || got.SplitIndex != 1 {
		t.Errorf("split field mismatch: %+v", got)
	}
}

func TestDatagramRoundTrip(t *testing.T) {
	d := &Datagram{
		SequenceNumber: 0x010203,
		Packets: []*EncapsulatedPacket{
			{Reliability: Unreliable, Payload: []byte("a")},
			{Reliability: ReliableOrdered, MessageIndex: 1, OrderIndex: 0, OrderChannel: 0, Payload: []byte("b")},
		},
	}
	data := d.Encode()
	got, err := DecodeDatagram(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SequenceNumber != d.SequenceNumber {
		t.Errorf("sequence mismatch: got %d", got.SequenceNumber)
	}
	if len(got.Packets) != 2 {
		t.Fatalf("expected 2 packets, got %d", len(got.Packets))
	}
}

func TestCoalesceSequences(t *testing.T) {
	seqs := []uint32{1, 2, 3, 5, 7, 8, 9}
	records := CoalesceSequences(seqs)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(records), records)
	}
	extracted := ExtractSequences(records)
	if len(extracted) != len(seqs) {
		t.Fatalf("extracted length mismatch: got %d", len(extracted))
	}
	for i, s := range seqs {
		if extracted[i] != s {
			t.Errorf("mismatch at %d: got %d want %d", i, extracted[i], s)
		}
	}
}

func TestAckNackRoundTrip(t *testing.T) {
	a := &AckNack{Records: CoalesceSequences([]uint32{1, 2, 3, 10})}
	data := a.Encode()
	got, err := DecodeAckNack(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Records) != len(a.Records) {
		t.Fatalf("record count mismatch: got %d want %d", len(got.Records), len(a.Records))
	}
}
