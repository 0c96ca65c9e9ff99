// Package session implements the per-remote RakNet state machine that
// wires a send window, receive window, and split reassembler together,
// and carries a peer through the offline-to-connected handshake.
package session

import (
	"net"
	"sync"
	"time"

	"raknetd/internal/metrics"
	"raknetd/internal/raknet"
	"raknetd/internal/reassembly"
	"raknetd/internal/recvwindow"
	"raknetd/internal/sendwindow"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// State is one stage of the session lifecycle described in spec §4.6.
type State int

const (
	Connecting State = iota
	Handshaking
	Connected
	Disconnecting
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Handshaking:
		return "handshaking"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Handler receives session lifecycle and payload events from the
// listener's upstream consumer. A nil Handler is treated as a no-op.
type Handler interface {
	OnConnect(*Session)
	OnMessage(*Session, []byte)
	OnDisconnect(*Session)
}

// Session is the per-remote-address reliability and handshake state.
// All exported methods are safe for concurrent use; exactly one of the
// listener's dispatcher or tick loop mutates a given session at a time,
// per spec §5.
type Session struct {
	mu sync.Mutex

	conn *net.UDPConn
	addr *net.UDPAddr

	// id correlates this session's log lines and metrics across a
	// reconnect from the same remote address.
	id uuid.UUID

	serverGUID      uint64
	protocolVersion uint8
	clientGUID      uint64

	mtu   uint16
	state State

	lastActivity time.Time

	recv  *recvwindow.Window
	send  *sendwindow.Window
	split *reassembly.Handler

	handler Handler
	log     *logrus.Entry
	metrics *metrics.Metrics
}

// New constructs a session in the Connecting state, as created by the
// listener on a successful OpenConnectionRequest2 exchange. m may be nil.
func New(conn *net.UDPConn, addr *net.UDPAddr, mtu uint16, serverGUID uint64, protocolVersion uint8, handler Handler, log *logrus.Entry, m *metrics.Metrics) *Session {
	id := uuid.New()
	return &Session{
		conn:            conn,
		addr:            addr,
		id:              id,
		serverGUID:      serverGUID,
		protocolVersion: protocolVersion,
		mtu:             mtu,
		state:           Connecting,
		lastActivity:    time.Now(),
		recv:            recvwindow.New(),
		send:            sendwindow.New(mtu),
		split:           reassembly.NewHandler(),
		handler:         handler,
		log:             log.WithField("remote", addr.String()).WithField("session_id", id.String()),
		metrics:         m,
	}
}

func (s *Session) Addr() *net.UDPAddr { return s.addr }

// ID returns the session's correlation identifier, stable for its
// lifetime and unique even across reconnects from the same address.
func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) ClientGUID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientGUID
}

// IsTimedOut reports whether the session has been silent for longer than
// timeout, as of now.
func (s *Session) IsTimedOut(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity) > timeout
}

// IsDisconnected reports whether the session has reached its terminal
// state and is eligible for removal from the listener's registry.
func (s *Session) IsDisconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Disconnected
}

// Send queues an application payload for delivery. It is only accepted
// once the handshake has completed.
func (s *Session) Send(payload []byte, reliability raknet.Reliability, channel uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Connected {
		return errors.Wrapf(raknet.ErrDisconnected, "session not connected (state=%s)", s.state)
	}
	s.send.Queue(payload, reliability, channel)
	return nil
}

// Close begins a local-initiated graceful disconnect: a reliable
// DisconnectNotification is flushed before the session finally moves to
// Disconnected on a later tick.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Disconnected || s.state == Disconnecting {
		return
	}
	s.send.Queue(raknet.EncodeDisconnectNotification(), raknet.Reliable, 0)
	s.state = Disconnecting
}

// HandleDatagram processes one inbound data datagram: receive-window
// dedup/gap tracking, split reassembly, per-channel ordering, and
// dispatch of the resulting messages to either handshake control logic
// or the upstream Handler.
func (s *Session) HandleDatagram(data []byte) error {
	dg, err := raknet.DecodeDatagram(data)
	if err != nil {
		return errors.Wrap(err, "decode datagram")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActivity = time.Now()
	s.metrics.IncDatagramsReceived()
	if !s.recv.AcceptDatagram(dg.SequenceNumber) {
		return nil // duplicate or DoS-guarded; already logged upstream if desired
	}

	for _, ep := range dg.Packets {
		resolved := ep
		if ep.IsSplit {
			completed, err := s.split.Handle(ep)
			if err != nil {
				s.metrics.ObserveSplitDrop("invalid")
				s.log.WithError(err).Warn("dropping malformed split fragment")
				continue
			}
			if completed == nil {
				continue
			}
			resolved = completed
		}

		for _, deliverable := range s.recv.Deliver(resolved) {
			s.dispatch(deliverable.Payload)
		}
	}
	return nil
}

// dispatch routes one fully-reassembled, in-order payload either to the
// handshake state machine or to the upstream consumer. Caller holds mu.
func (s *Session) dispatch(payload []byte) {
	if len(payload) == 0 {
		return
	}
	id := payload[0]

	switch s.state {
	case Connecting:
		if id != raknet.IDConnectionRequest {
			s.log.Warn((&raknet.UnexpectedPacketError{State: s.state.String(), ID: id}).Error())
			return
		}
		req, err := raknet.DecodeConnectionRequest(payload)
		if err != nil {
			s.log.WithError(err).Warn("malformed connection request")
			return
		}
		s.clientGUID = req.ClientGUID
		accepted := &raknet.ConnectionRequestAccepted{
			ClientAddress: s.addr,
			SystemIndex:   0,
			RequestTime:   req.ClientTime,
			AcceptedTime:  time.Now().UnixMilli(),
		}
		s.send.Queue(accepted.Encode(), raknet.ReliableOrdered, 0)
		s.state = Handshaking

	case Handshaking:
		if id != raknet.IDNewIncomingConnection {
			s.log.Warn((&raknet.UnexpectedPacketError{State: s.state.String(), ID: id}).Error())
			return
		}
		if _, err := raknet.DecodeNewIncomingConnection(payload); err != nil {
			s.log.WithError(err).Warn("malformed new incoming connection")
			return
		}
		s.state = Connected
		if s.handler != nil {
			s.handler.OnConnect(s)
		}

	case Connected:
		switch id {
		case raknet.IDConnectedPing:
			ping, err := raknet.DecodeConnectedPing(payload)
			if err != nil {
				s.log.WithError(err).Warn("malformed connected ping")
				return
			}
			pong := &raknet.ConnectedPong{ClientTime: ping.ClientTime, ServerTime: time.Now().UnixMilli()}
			s.send.Queue(pong.Encode(), raknet.Unreliable, 0)
		case raknet.IDDisconnectNotification:
			s.state = Disconnected
			if s.handler != nil {
				s.handler.OnDisconnect(s)
			}
		default:
			if s.handler != nil {
				s.handler.OnMessage(s, payload)
			}
		}

	case Disconnecting, Disconnected:
		// Out-of-state traffic from a closing peer is simply dropped.
	}
}

// HandleACK processes an inbound ACK frame against the send window.
func (s *Session) HandleACK(data []byte) error {
	ack, err := raknet.DecodeAckNack(data)
	if err != nil {
		return errors.Wrap(err, "decode ack")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
	s.metrics.IncAcksProcessed()
	s.send.HandleAck(raknet.ExtractSequences(ack.Records))
	return nil
}

// HandleNACK processes an inbound NACK frame against the send window.
func (s *Session) HandleNACK(data []byte) error {
	nack, err := raknet.DecodeAckNack(data)
	if err != nil {
		return errors.Wrap(err, "decode nack")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
	s.metrics.IncNacksProcessed()
	s.send.HandleNack(raknet.ExtractSequences(nack.Records))
	return nil
}

// Tick drains pending ACK/NACK frames and outgoing datagrams to the
// socket, advances congestion/retransmission state, and reaps expired
// split reassemblies. It should be called roughly every 10 ms.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ack := s.recv.BuildAck(); ack != nil {
		s.writeLocked(ack.Encode())
	}
	if nack := s.recv.BuildNack(); nack != nil {
		s.writeLocked(nack.Encode())
	}

	s.send.Tick()
	for {
		dg, isRetransmit := s.send.BuildNextDatagram()
		if dg == nil {
			break
		}
		if isRetransmit {
			s.metrics.IncRetransmissions()
		}
		s.writeLocked(dg.Encode())
	}
	s.metrics.SetCongestionWindow(s.addr.String(), s.send.CWND())

	s.split.CleanupTimeouts(time.Now())

	if s.state == Disconnecting && s.send.Idle() {
		s.state = Disconnected
		if s.handler != nil {
			s.handler.OnDisconnect(s)
		}
	}
}

func (s *Session) writeLocked(data []byte) {
	if _, err := s.conn.WriteToUDP(data, s.addr); err != nil {
		s.log.WithError(err).Warn("udp write failed")
		return
	}
	s.metrics.IncDatagramsSent()
}
