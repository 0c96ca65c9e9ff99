package wire

import (
	"encoding/binary"
	"net"

	"github.com/pkg/errors"
)

const (
	addressFamilyIPv4 = 4
	addressFamilyIPv6 = 6

	// afINet6 is the little-endian family tag RakNet embeds ahead of an
	// IPv6 address, matching the platform AF_INET6 value Bedrock expects.
	afINet6 = 23
)

// ReadAddress decodes a RakNet-framed socket address: IPv4 carries its
// octets bitwise-complemented with a big-endian port; IPv6 carries a
// little-endian family tag, big-endian port, big-endian flow info, the
// raw 16-byte address, and a big-endian scope id.
func (r *Reader) ReadAddress() (*net.UDPAddr, error) {
	version, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}

	switch version {
	case addressFamilyIPv4:
		raw, err := r.ReadBytes(4)
		if err != nil {
			return nil, err
		}
		ip := make(net.IP, 4)
		for i := range raw {
			ip[i] = ^raw[i]
		}
		port, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		return &net.UDPAddr{IP: ip, Port: int(port)}, nil

	case addressFamilyIPv6:
		family, err := r.ReadBytes(2)
		if err != nil {
			return nil, err
		}
		if binary.LittleEndian.Uint16(family) != afINet6 {
			return nil, errors.Wrap(ErrUnsupportedFamily, "ipv6 family tag")
		}
		port, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		if _, err := r.ReadUint32(); err != nil { // flow info, discarded
			return nil, err
		}
		raw, err := r.ReadBytes(16)
		if err != nil {
			return nil, err
		}
		scope, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		ip := make(net.IP, 16)
		copy(ip, raw)
		return &net.UDPAddr{IP: ip, Port: int(port), Zone: scopeZone(scope)}, nil

	default:
		return nil, errors.Wrapf(ErrUnsupportedFamily, "address version %d", version)
	}
}

// WriteAddress encodes addr in RakNet's wire framing, choosing IPv4 or
// IPv6 based on whether addr.IP has a 4-byte representation.
func (w *Writer) WriteAddress(addr *net.UDPAddr) {
	if v4 := addr.IP.To4(); v4 != nil {
		w.WriteUint8(addressFamilyIPv4)
		for _, b := range v4 {
			w.WriteUint8(^b)
		}
		w.WriteUint16(uint16(addr.Port))
		return
	}

	w.WriteUint8(addressFamilyIPv6)
	var family [2]byte
	binary.LittleEndian.PutUint16(family[:], afINet6)
	w.WriteBytes(family[:])
	w.WriteUint16(uint16(addr.Port))
	w.WriteUint32(0) // flow info
	v6 := addr.IP.To16()
	if v6 == nil {
		v6 = make(net.IP, 16)
	}
	w.WriteBytes(v6)
	w.WriteUint32(scopeID(addr.Zone))
}

func scopeZone(scope uint32) string {
	if scope == 0 {
		return ""
	}
	iface, err := net.InterfaceByIndex(int(scope))
	if err != nil {
		return ""
	}
	return iface.Name
}

func scopeID(zone string) uint32 {
	if zone == "" {
		return 0
	}
	iface, err := net.InterfaceByName(zone)
	if err != nil {
		return 0
	}
	return uint32(iface.Index)
}
