package raknet

import (
	"raknetd/internal/wire"

	"github.com/pkg/errors"
)

// EncapsulatedPacket is one logical message carried inside a Datagram,
// framed with just enough metadata to support its reliability class.
type EncapsulatedPacket struct {
	Reliability   Reliability
	IsSplit       bool
	MessageIndex  uint32 // reliable variants only
	SequenceIndex uint32 // sequenced variants only
	OrderIndex    uint32 // ordered or sequenced variants
	OrderChannel  uint8  // ordered or sequenced variants
	SplitCount    uint32
	SplitID       uint16
	SplitIndex    uint32
	Payload       []byte
}

// HeaderSize returns the number of bytes this packet contributes to a
// Datagram excluding its payload, used to budget fragments against MTU.
func (ep *EncapsulatedPacket) HeaderSize() int {
	size := 1 + 2 // flags + bit-length
	if ep.Reliability.IsReliable() {
		size += 3
	}
	if ep.Reliability.IsSequenced() {
		size += 3
	}
	if ep.Reliability.IsOrderedOrSequenced() {
		size += 4
	}
	if ep.IsSplit {
		size += 10
	}
	return size
}

func (ep *EncapsulatedPacket) Size() int {
	return ep.HeaderSize() + len(ep.Payload)
}

func (ep *EncapsulatedPacket) Encode(w *wire.Writer) {
	flags := byte(ep.Reliability) << 5
	if ep.IsSplit {
		flags |= EncapsulatedSplit
	}
	w.WriteUint8(flags)
	w.WriteUint16(uint16(len(ep.Payload)) * 8)

	if ep.Reliability.IsReliable() {
		w.WriteTriad(ep.MessageIndex)
	}
	if ep.Reliability.IsSequenced() {
		w.WriteTriad(ep.SequenceIndex)
	}
	if ep.Reliability.IsOrderedOrSequenced() {
		w.WriteTriad(ep.OrderIndex)
		w.WriteUint8(ep.OrderChannel)
	}
	if ep.IsSplit {
		w.WriteUint32(ep.SplitCount)
		w.WriteUint16(ep.SplitID)
		w.WriteUint32(ep.SplitIndex)
	}
	w.WriteBytes(ep.Payload)
}

func DecodeEncapsulatedPacket(r *wire.Reader) (*EncapsulatedPacket, error) {
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	ep := &EncapsulatedPacket{
		Reliability: Reliability((flags >> 5) & 0x07),
		IsSplit:     flags&EncapsulatedSplit != 0,
	}
	if !ep.Reliability.Valid() {
		return nil, errors.Wrapf(ErrInvalidPacketID, "reliability %d", ep.Reliability)
	}

	lengthBits, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	lengthBytes := int((lengthBits + 7) / 8)

	if ep.Reliability.IsReliable() {
		if ep.MessageIndex, err = r.ReadTriad(); err != nil {
			return nil, err
		}
	}
	if ep.Reliability.IsSequenced() {
		if ep.SequenceIndex, err = r.ReadTriad(); err != nil {
			return nil, err
		}
	}
	if ep.Reliability.IsOrderedOrSequenced() {
		if ep.OrderIndex, err = r.ReadTriad(); err != nil {
			return nil, err
		}
		if ep.OrderChannel, err = r.ReadUint8(); err != nil {
			return nil, err
		}
	}
	if ep.IsSplit {
		if ep.SplitCount, err = r.ReadUint32(); err != nil {
			return nil, err
		}
		if ep.SplitID, err = r.ReadUint16(); err != nil {
			return nil, err
		}
		if ep.SplitIndex, err = r.ReadUint32(); err != nil {
			return nil, err
		}
	}

	ep.Payload, err = r.ReadBytes(lengthBytes)
	if err != nil {
		return nil, err
	}
	return ep, nil
}

// Datagram is the top-level framing for one or more EncapsulatedPackets
// sent as a single UDP payload.
type Datagram struct {
	SequenceNumber uint32
	Packets        []*EncapsulatedPacket
}

func (d *Datagram) Encode() []byte {
	w := wire.NewWriter()
	w.WriteUint8(FlagValid)
	w.WriteTriad(d.SequenceNumber)
	for _, p := range d.Packets {
		p.Encode(w)
	}
	return w.Bytes()
}

// Size returns the on-wire byte length of the datagram, used to budget
// against MTU while building it.
func (d *Datagram) Size() int {
	size := 4 // flags + triad sequence
	for _, p := range d.Packets {
		size += p.Size()
	}
	return size
}

func DecodeDatagram(data []byte) (*Datagram, error) {
	r := wire.NewReader(data)
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if flags&FlagValid == 0 {
		return nil, errors.Wrap(ErrInvalidPacketID, "datagram missing valid flag")
	}
	seq, err := r.ReadTriad()
	if err != nil {
		return nil, err
	}
	d := &Datagram{SequenceNumber: seq}
	for r.Remaining() > 0 {
		p, err := DecodeEncapsulatedPacket(r)
		if err != nil {
			return nil, err
		}
		d.Packets = append(d.Packets, p)
	}
	return d, nil
}

// IsACK reports whether the leading flag byte of a raw datagram marks it
// as an acknowledgment frame rather than a data datagram.
func IsACK(flags byte) bool {
	return flags&FlagValid != 0 && flags&FlagACK != 0
}

// IsNACK reports the negative-acknowledgment counterpart of IsACK.
func IsNACK(flags byte) bool {
	return flags&FlagValid != 0 && flags&FlagNACK != 0
}
