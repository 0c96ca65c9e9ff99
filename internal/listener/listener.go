// Package listener owns the shared UDP socket, the offline handshake,
// and the per-remote session registry: the dispatcher spec §4.7
// describes.
package listener

import (
	"net"
	"sync"
	"time"

	"raknetd/internal/config"
	"raknetd/internal/metrics"
	"raknetd/internal/raknet"
	"raknetd/internal/session"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Listener binds one UDP socket and dispatches every datagram it
// receives either to the offline handshake or to an existing session,
// per the remote address it arrived from.
type Listener struct {
	conn *net.UDPConn
	cfg  config.Config
	log  *logrus.Entry
	met  *metrics.Metrics

	handler session.Handler

	mu       sync.Mutex
	sessions map[string]*session.Session

	closing chan struct{}
	wg      sync.WaitGroup
}

// New binds cfg.BindAddress and prepares the listener; the socket is not
// read from until Run is called.
func New(cfg config.Config, handler session.Handler, log *logrus.Entry, met *metrics.Metrics) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", cfg.BindAddress)
	if err != nil {
		return nil, errors.Wrap(err, "resolve bind address")
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, errors.Wrap(err, "bind udp socket")
	}
	if cfg.ServerGUID == 0 {
		cfg.ServerGUID = uint64(time.Now().UnixNano())
	}

	return &Listener{
		conn:     conn,
		cfg:      cfg,
		log:      log,
		met:      met,
		handler:  handler,
		sessions: make(map[string]*session.Session),
		closing:  make(chan struct{}),
	}, nil
}

// Addr reports the socket's bound local address.
func (l *Listener) Addr() net.Addr { return l.conn.LocalAddr() }

// Run starts the read loop, the tick loop, and the timeout sweep, and
// blocks until Close is called. Other read errors are logged and the read
// loop continues.
func (l *Listener) Run() error {
	l.wg.Add(2)
	go l.tickLoop()
	go l.timeoutSweepLoop()

	buf := make([]byte, 1<<16)
	for {
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-l.closing:
				l.wg.Wait()
				return nil
			default:
				l.log.WithError(err).Warn("udp read failed")
				continue
			}
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		l.handlePacket(data, addr)
	}
}

// Close stops all loops and releases the socket.
func (l *Listener) Close() error {
	close(l.closing)
	return l.conn.Close()
}

func (l *Listener) tickLoop() {
	defer l.wg.Done()
	interval := l.cfg.TickInterval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.closing:
			return
		case <-ticker.C:
			for _, s := range l.snapshotSessions() {
				s.Tick()
			}
		}
	}
}

func (l *Listener) timeoutSweepLoop() {
	defer l.wg.Done()
	interval := l.cfg.TimeoutSweep
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.closing:
			return
		case <-ticker.C:
			l.reapSessions()
		}
	}
}

func (l *Listener) snapshotSessions() []*session.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*session.Session, 0, len(l.sessions))
	for _, s := range l.sessions {
		out = append(out, s)
	}
	return out
}

func (l *Listener) reapSessions() {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, s := range l.sessions {
		if s.IsTimedOut(now, l.cfg.SessionTimeout) {
			l.log.WithField("remote", key).Debug(errors.Wrap(raknet.ErrSessionTimeout, "reaping session").Error())
			delete(l.sessions, key)
			continue
		}
		if s.IsDisconnected() {
			delete(l.sessions, key)
		}
	}
	l.met.SetSessionsActive(len(l.sessions))
}

func (l *Listener) handlePacket(data []byte, addr *net.UDPAddr) {
	if len(data) == 0 {
		return
	}

	l.mu.Lock()
	s, ok := l.sessions[addr.String()]
	l.mu.Unlock()

	if ok {
		l.dispatchToSession(s, data)
		return
	}

	if err := l.handleOffline(data, addr); err != nil {
		l.log.WithError(err).WithField("remote", addr.String()).Debug("dropped offline packet")
	}
}

func (l *Listener) dispatchToSession(s *session.Session, data []byte) {
	flags := data[0]
	var err error
	switch {
	case raknet.IsACK(flags):
		err = s.HandleACK(data)
	case raknet.IsNACK(flags):
		err = s.HandleNACK(data)
	case flags&raknet.FlagValid != 0:
		err = s.HandleDatagram(data)
	default:
		return
	}
	if err != nil {
		l.log.WithError(err).WithField("remote", s.Addr().String()).Debug("failed to process datagram")
	}
}

// handleOffline processes every packet type exchanged before a session
// exists: pings, and the two-step MTU/GUID handshake.
func (l *Listener) handleOffline(data []byte, addr *net.UDPAddr) error {
	if len(data) < 1 {
		return raknet.ErrShortOfflinePacket
	}

	switch data[0] {
	case raknet.IDUnconnectedPing:
		return l.handleUnconnectedPing(data, addr)
	case raknet.IDOpenConnectionRequest1:
		return l.handleOpenConnectionRequest1(data, addr)
	case raknet.IDOpenConnectionRequest2:
		return l.handleOpenConnectionRequest2(data, addr)
	default:
		return nil
	}
}

func (l *Listener) handleUnconnectedPing(data []byte, addr *net.UDPAddr) error {
	ping, err := raknet.DecodeUnconnectedPing(data)
	if err != nil {
		return errors.Wrap(err, "decode unconnected ping")
	}
	pong := &raknet.UnconnectedPong{
		ClientTime:    ping.ClientTime,
		ServerGUID:    l.cfg.ServerGUID,
		Advertisement: l.cfg.BuildAdvertisement(l.sessionCount()),
	}
	encoded, err := pong.Encode()
	if err != nil {
		return errors.Wrap(err, "encode unconnected pong")
	}
	_, err = l.conn.WriteToUDP(encoded, addr)
	return err
}

func (l *Listener) handleOpenConnectionRequest1(data []byte, addr *net.UDPAddr) error {
	req, err := raknet.DecodeOpenConnectionRequest1(data)
	if err != nil {
		return errors.Wrap(err, "decode open connection request 1")
	}
	if req.ProtocolVersion != l.cfg.ProtocolVersion {
		mismatch := &raknet.IncompatibleProtocolVersionError{Client: req.ProtocolVersion, Server: l.cfg.ProtocolVersion}
		l.log.WithField("remote", addr.String()).Debug(mismatch.Error())
		reply := &raknet.IncompatibleProtocolVersion{
			ServerProtocolVersion: l.cfg.ProtocolVersion,
			ServerGUID:            l.cfg.ServerGUID,
		}
		_, err := l.conn.WriteToUDP(reply.Encode(), addr)
		return err
	}

	ipOverhead := 20
	if addr.IP.To4() == nil {
		ipOverhead = 40
	}
	mtu := raknet.NegotiateMTU(req.ProposedMTU, l.cfg.MTU, ipOverhead)
	reply := &raknet.OpenConnectionReply1{ServerGUID: l.cfg.ServerGUID, MTU: mtu}
	_, err = l.conn.WriteToUDP(reply.Encode(), addr)
	return err
}

func (l *Listener) handleOpenConnectionRequest2(data []byte, addr *net.UDPAddr) error {
	req, err := raknet.DecodeOpenConnectionRequest2(data)
	if err != nil {
		return errors.Wrap(err, "decode open connection request 2")
	}

	l.mu.Lock()
	if _, exists := l.sessions[addr.String()]; exists {
		l.mu.Unlock()
		return nil
	}
	if l.cfg.MaxConnections > 0 && len(l.sessions) >= l.cfg.MaxConnections {
		l.mu.Unlock()
		return errors.New("server full")
	}
	l.mu.Unlock()

	mtu, err := raknet.ClampMTU(req.MTU, l.cfg.MTU)
	if err != nil {
		return errors.Wrap(err, "negotiate mtu")
	}

	reply := &raknet.OpenConnectionReply2{
		ServerGUID:    l.cfg.ServerGUID,
		ClientAddress: addr,
		MTU:           mtu,
	}
	if _, err := l.conn.WriteToUDP(reply.Encode(), addr); err != nil {
		return errors.Wrap(err, "write open connection reply 2")
	}

	s := session.New(l.conn, addr, mtu, l.cfg.ServerGUID, l.cfg.ProtocolVersion, l.handler, l.log, l.met)

	l.mu.Lock()
	l.sessions[addr.String()] = s
	l.met.SetSessionsActive(len(l.sessions))
	l.mu.Unlock()
	return nil
}

func (l *Listener) sessionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}
