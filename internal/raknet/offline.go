package raknet

import (
	"net"

	"raknetd/internal/wire"

	"github.com/pkg/errors"
)

// UnconnectedPing is sent by a client probing for servers before any
// session exists.
type UnconnectedPing struct {
	ClientTime int64
	ClientGUID uint64
}

func (p *UnconnectedPing) Encode() []byte {
	w := wire.NewWriter()
	w.WriteUint8(IDUnconnectedPing)
	w.WriteInt64(p.ClientTime)
	w.WriteMagic()
	w.WriteUint64(p.ClientGUID)
	return w.Bytes()
}

func DecodeUnconnectedPing(data []byte) (*UnconnectedPing, error) {
	r := wire.NewReader(data)
	if _, err := r.ReadUint8(); err != nil {
		return nil, err
	}
	t, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	if err := r.ReadMagic(); err != nil {
		return nil, err
	}
	guid, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	return &UnconnectedPing{ClientTime: t, ClientGUID: guid}, nil
}

// UnconnectedPong answers an UnconnectedPing with the server's identity
// and advertisement string.
type UnconnectedPong struct {
	ClientTime    int64
	ServerGUID    uint64
	Advertisement string
}

func (p *UnconnectedPong) Encode() ([]byte, error) {
	if len(p.Advertisement) > 0xFFFF {
		return nil, ErrAdvertisementTooLong
	}
	w := wire.NewWriter()
	w.WriteUint8(IDUnconnectedPong)
	w.WriteInt64(p.ClientTime)
	w.WriteUint64(p.ServerGUID)
	w.WriteMagic()
	w.WriteString(p.Advertisement)
	return w.Bytes(), nil
}

// OpenConnectionRequest1 proposes a protocol version and, via its total
// length, a candidate MTU.
type OpenConnectionRequest1 struct {
	ProtocolVersion uint8
	ProposedMTU     int
}

func DecodeOpenConnectionRequest1(data []byte) (*OpenConnectionRequest1, error) {
	r := wire.NewReader(data)
	if _, err := r.ReadUint8(); err != nil {
		return nil, err
	}
	if err := r.ReadMagic(); err != nil {
		return nil, err
	}
	proto, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	return &OpenConnectionRequest1{ProtocolVersion: proto, ProposedMTU: len(data)}, nil
}

// OpenConnectionReply1 answers OCR1 with the server's identity and the
// negotiated MTU.
type OpenConnectionReply1 struct {
	ServerGUID uint64
	MTU        uint16
}

func (p *OpenConnectionReply1) Encode() []byte {
	w := wire.NewWriter()
	w.WriteUint8(IDOpenConnectionReply1)
	w.WriteMagic()
	w.WriteUint64(p.ServerGUID)
	w.WriteBool(false) // use_security
	w.WriteUint16(p.MTU)
	return w.Bytes()
}

// OpenConnectionRequest2 finalizes MTU negotiation and supplies the
// client's GUID ahead of session creation.
type OpenConnectionRequest2 struct {
	ServerAddress *net.UDPAddr
	MTU           uint16
	ClientGUID    uint64
}

func DecodeOpenConnectionRequest2(data []byte) (*OpenConnectionRequest2, error) {
	r := wire.NewReader(data)
	if _, err := r.ReadUint8(); err != nil {
		return nil, err
	}
	if err := r.ReadMagic(); err != nil {
		return nil, err
	}
	addr, err := r.ReadAddress()
	if err != nil {
		return nil, err
	}
	mtu, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	guid, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	return &OpenConnectionRequest2{ServerAddress: addr, MTU: mtu, ClientGUID: guid}, nil
}

// OpenConnectionReply2 confirms the negotiated MTU and echoes back the
// client's perceived address; the session is created alongside this
// reply by the listener.
type OpenConnectionReply2 struct {
	ServerGUID    uint64
	ClientAddress *net.UDPAddr
	MTU           uint16
}

func (p *OpenConnectionReply2) Encode() []byte {
	w := wire.NewWriter()
	w.WriteUint8(IDOpenConnectionReply2)
	w.WriteMagic()
	w.WriteUint64(p.ServerGUID)
	w.WriteAddress(p.ClientAddress)
	w.WriteUint16(p.MTU)
	w.WriteBool(false) // use_encryption
	return w.Bytes()
}

// IncompatibleProtocolVersion rejects a handshake whose protocol byte the
// server does not support.
type IncompatibleProtocolVersion struct {
	ServerProtocolVersion uint8
	ServerGUID            uint64
}

func (p *IncompatibleProtocolVersion) Encode() []byte {
	w := wire.NewWriter()
	w.WriteUint8(IDIncompatibleProtocolVersion)
	w.WriteUint8(p.ServerProtocolVersion)
	w.WriteMagic()
	w.WriteUint64(p.ServerGUID)
	return w.Bytes()
}

// NegotiateMTU derives the final MTU from a client's proposed size and
// the server's configured bound, clamped to MinMTUSize.
func NegotiateMTU(proposed int, serverMTU uint16, ipOverhead int) uint16 {
	total := proposed + ipOverhead + 8 // + UDP header
	final := total
	if final > int(serverMTU) {
		final = int(serverMTU)
	}
	if final < MinMTUSize {
		final = MinMTUSize
	}
	return uint16(final)
}

// ClampMTU validates a client-declared MTU (as echoed back in
// OpenConnectionRequest2) against the server's configured bound and the
// protocol minimum, per §4.8. serverMTU below MinMTUSize is a
// misconfiguration the caller cannot fix by clamping, so it is reported
// as ErrInvalidMTU rather than silently accepted.
func ClampMTU(mtu uint16, serverMTU uint16) (uint16, error) {
	if serverMTU < MinMTUSize {
		return 0, errors.Wrapf(ErrInvalidMTU, "server mtu %d below minimum %d", serverMTU, MinMTUSize)
	}
	if mtu < MinMTUSize {
		mtu = MinMTUSize
	}
	if mtu > serverMTU {
		mtu = serverMTU
	}
	return mtu, nil
}

// ErrShortOfflinePacket is returned by offline decoders given a buffer too
// short to even contain a packet ID byte.
var ErrShortOfflinePacket = errors.New("raknet: offline packet too short")
