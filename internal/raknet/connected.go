package raknet

import (
	"net"

	"raknetd/internal/wire"
)

// ConnectionRequest is the client's first reliable payload once a session
// exists, carrying its GUID and local clock.
type ConnectionRequest struct {
	ClientGUID  uint64
	ClientTime  int64
	UseSecurity bool
}

func DecodeConnectionRequest(data []byte) (*ConnectionRequest, error) {
	r := wire.NewReader(data)
	if _, err := r.ReadUint8(); err != nil {
		return nil, err
	}
	guid, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	t, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	sec, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	return &ConnectionRequest{ClientGUID: guid, ClientTime: t, UseSecurity: sec}, nil
}

// ConnectionRequestAccepted answers ConnectionRequest with the peer's
// perceived address and SystemAddressCount padding slots, matching the
// Bedrock client's expectations.
type ConnectionRequestAccepted struct {
	ClientAddress *net.UDPAddr
	SystemIndex   uint16
	RequestTime   int64
	AcceptedTime  int64
}

func (p *ConnectionRequestAccepted) Encode() []byte {
	w := wire.NewWriter()
	w.WriteUint8(IDConnectionRequestAccepted)
	w.WriteAddress(p.ClientAddress)
	w.WriteUint16(p.SystemIndex)
	writePaddingAddresses(w)
	w.WriteInt64(p.RequestTime)
	w.WriteInt64(p.AcceptedTime)
	return w.Bytes()
}

// NewIncomingConnection is the client's acknowledgment of the accepted
// handshake; its receipt is this implementation's signal to move a
// session from Handshaking to Connected.
type NewIncomingConnection struct {
	ServerAddress *net.UDPAddr
	RequestTime   int64
	AcceptedTime  int64
}

func DecodeNewIncomingConnection(data []byte) (*NewIncomingConnection, error) {
	r := wire.NewReader(data)
	if _, err := r.ReadUint8(); err != nil {
		return nil, err
	}
	addr, err := r.ReadAddress()
	if err != nil {
		return nil, err
	}
	if err := skipPaddingAddresses(r); err != nil {
		return nil, err
	}
	reqTime, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	accTime, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	return &NewIncomingConnection{ServerAddress: addr, RequestTime: reqTime, AcceptedTime: accTime}, nil
}

// ConnectedPing / ConnectedPong are the in-session keepalive exchange.
type ConnectedPing struct {
	ClientTime int64
}

func DecodeConnectedPing(data []byte) (*ConnectedPing, error) {
	r := wire.NewReader(data)
	if _, err := r.ReadUint8(); err != nil {
		return nil, err
	}
	t, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	return &ConnectedPing{ClientTime: t}, nil
}

type ConnectedPong struct {
	ClientTime int64
	ServerTime int64
}

func (p *ConnectedPong) Encode() []byte {
	w := wire.NewWriter()
	w.WriteUint8(IDConnectedPong)
	w.WriteInt64(p.ClientTime)
	w.WriteInt64(p.ServerTime)
	return w.Bytes()
}

// DisconnectNotification carries no payload; its packet ID alone signals
// a graceful close.
func EncodeDisconnectNotification() []byte {
	return []byte{IDDisconnectNotification}
}

func writePaddingAddresses(w *wire.Writer) {
	padding := &net.UDPAddr{IP: net.IPv4(255, 255, 255, 255).To4(), Port: 19132}
	for i := 0; i < SystemAddressCount; i++ {
		w.WriteAddress(padding)
	}
}

func skipPaddingAddresses(r *wire.Reader) error {
	for i := 0; i < SystemAddressCount; i++ {
		if _, err := r.ReadAddress(); err != nil {
			return err
		}
	}
	return nil
}
