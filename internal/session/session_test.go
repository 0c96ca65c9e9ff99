package session

import (
	"net"
	"testing"
	"time"

	"raknetd/internal/raknet"
	"raknetd/internal/wire"

	"github.com/sirupsen/logrus"
)

// The encoders below mirror the client's wire format for packets this
// server only ever decodes in production; tests need to produce them.

func encodeConnectionRequest(r *raknet.ConnectionRequest) []byte {
	w := wire.NewWriter()
	w.WriteUint8(raknet.IDConnectionRequest)
	w.WriteUint64(r.ClientGUID)
	w.WriteInt64(r.ClientTime)
	w.WriteBool(r.UseSecurity)
	return w.Bytes()
}

func encodeNewIncomingConnection(n *raknet.NewIncomingConnection) []byte {
	w := wire.NewWriter()
	w.WriteUint8(raknet.IDNewIncomingConnection)
	w.WriteAddress(n.ServerAddress)
	padding := &net.UDPAddr{IP: net.IPv4(255, 255, 255, 255).To4(), Port: 19132}
	for i := 0; i < raknet.SystemAddressCount; i++ {
		w.WriteAddress(padding)
	}
	w.WriteInt64(n.RequestTime)
	w.WriteInt64(n.AcceptedTime)
	return w.Bytes()
}

func encodeConnectedPing(p *raknet.ConnectedPing) []byte {
	w := wire.NewWriter()
	w.WriteUint8(raknet.IDConnectedPing)
	w.WriteInt64(p.ClientTime)
	return w.Bytes()
}

type recordingHandler struct {
	connected    bool
	disconnected bool
	messages     [][]byte
}

func (h *recordingHandler) OnConnect(*Session)           { h.connected = true }
func (h *recordingHandler) OnDisconnect(*Session)        { h.disconnected = true }
func (h *recordingHandler) OnMessage(_ *Session, p []byte) { h.messages = append(h.messages, p) }

func newTestSession(t *testing.T, handler Handler) (*Session, *net.UDPAddr) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("failed to open test socket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	remote := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 54000}
	log := logrus.New()
	log.SetOutput(new(nullWriter))
	s := New(conn, remote, 1400, 0xC0FFEE, 11, handler, logrus.NewEntry(log), nil)
	return s, remote
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

func datagramBytes(t *testing.T, seq uint32, packets ...*raknet.EncapsulatedPacket) []byte {
	t.Helper()
	dg := &raknet.Datagram{SequenceNumber: seq, Packets: packets}
	return dg.Encode()
}

func TestHandshakeReachesConnectedOnNewIncomingConnection(t *testing.T) {
	h := &recordingHandler{}
	s, remote := newTestSession(t, h)

	req := &raknet.ConnectionRequest{ClientGUID: 42, ClientTime: 1000}
	ep := &raknet.EncapsulatedPacket{Reliability: raknet.ReliableOrdered, Payload: encodeConnectionRequest(req)}
	if err := s.HandleDatagram(datagramBytes(t, 0, ep)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != Handshaking {
		t.Fatalf("expected Handshaking after ConnectionRequest, got %s", s.State())
	}
	if s.ClientGUID() != 42 {
		t.Errorf("expected client guid 42, got %d", s.ClientGUID())
	}

	nic := &raknet.NewIncomingConnection{ServerAddress: remote, RequestTime: 1000, AcceptedTime: 1001}
	ep2 := &raknet.EncapsulatedPacket{Reliability: raknet.ReliableOrdered, OrderIndex: 1, Payload: encodeNewIncomingConnection(nic)}
	if err := s.HandleDatagram(datagramBytes(t, 1, ep2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != Connected {
		t.Fatalf("expected Connected after NewIncomingConnection, got %s", s.State())
	}
	if !h.connected {
		t.Error("expected OnConnect to fire")
	}
}

func TestConnectedPingProducesPong(t *testing.T) {
	s, _ := connectedSession(t)
	s.Tick() // flush the handshake reply so only the pong is left to send
	before := s.send.BytesInFlight()

	ping := &raknet.ConnectedPing{ClientTime: 555}
	ep := &raknet.EncapsulatedPacket{Reliability: raknet.Unreliable, Payload: encodeConnectedPing(ping)}
	if err := s.HandleDatagram(datagramBytes(t, 2, ep)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.Tick()
	if s.send.BytesInFlight() <= before {
		t.Error("expected a pong sent to the client")
	}
}

func TestApplicationPayloadForwardedOnceConnected(t *testing.T) {
	h := &recordingHandler{}
	s := connectedSessionWithHandler(t, h)

	ep := &raknet.EncapsulatedPacket{Reliability: raknet.Reliable, MessageIndex: 0, Payload: []byte{0x99, 0x01, 0x02}}
	if err := s.HandleDatagram(datagramBytes(t, 2, ep)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.messages) != 1 {
		t.Fatalf("expected 1 forwarded message, got %d", len(h.messages))
	}
}

func TestDisconnectNotificationMarksSessionDisconnected(t *testing.T) {
	h := &recordingHandler{}
	s := connectedSessionWithHandler(t, h)

	ep := &raknet.EncapsulatedPacket{Reliability: raknet.Reliable, Payload: []byte{raknet.IDDisconnectNotification}}
	if err := s.HandleDatagram(datagramBytes(t, 2, ep)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != Disconnected {
		t.Fatalf("expected Disconnected, got %s", s.State())
	}
	if !h.disconnected {
		t.Error("expected OnDisconnect to fire")
	}
}

func TestSendRejectedBeforeConnected(t *testing.T) {
	s, _ := newTestSession(t, nil)
	if err := s.Send([]byte("hi"), raknet.Reliable, 0); err == nil {
		t.Error("expected Send to fail before handshake completes")
	}
}

func TestDuplicateDatagramIgnoredByHandleDatagram(t *testing.T) {
	h := &recordingHandler{}
	s := connectedSessionWithHandler(t, h)
	ep := &raknet.EncapsulatedPacket{Reliability: raknet.Reliable, MessageIndex: 0, Payload: []byte{0x01}}
	data := datagramBytes(t, 2, ep)
	if err := s.HandleDatagram(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.HandleDatagram(data); err != nil {
		t.Fatalf("unexpected error on duplicate: %v", err)
	}
	if len(h.messages) != 1 {
		t.Errorf("expected the duplicate to be ignored, got %d forwarded messages", len(h.messages))
	}
}

func TestIsTimedOut(t *testing.T) {
	s, _ := newTestSession(t, nil)
	if s.IsTimedOut(time.Now(), 30*time.Second) {
		t.Error("freshly created session should not be timed out")
	}
	if !s.IsTimedOut(time.Now().Add(time.Hour), 30*time.Second) {
		t.Error("expected session to be timed out an hour later")
	}
}

// connectedSession drives a session through the full handshake and
// returns it in the Connected state.
func connectedSession(t *testing.T) (*Session, *net.UDPAddr) {
	t.Helper()
	return connectedSessionWithHandler(t, nil), nil
}

func connectedSessionWithHandler(t *testing.T, h Handler) *Session {
	t.Helper()
	s, remote := newTestSession(t, h)

	req := &raknet.ConnectionRequest{ClientGUID: 1, ClientTime: 0}
	ep := &raknet.EncapsulatedPacket{Reliability: raknet.ReliableOrdered, Payload: encodeConnectionRequest(req)}
	if err := s.HandleDatagram(datagramBytes(t, 0, ep)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	nic := &raknet.NewIncomingConnection{ServerAddress: remote, RequestTime: 0, AcceptedTime: 0}
	ep2 := &raknet.EncapsulatedPacket{Reliability: raknet.ReliableOrdered, OrderIndex: 1, Payload: encodeNewIncomingConnection(nic)}
	if err := s.HandleDatagram(datagramBytes(t, 1, ep2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != Connected {
		t.Fatalf("setup failed to reach Connected, got %s", s.State())
	}
	return s
}
