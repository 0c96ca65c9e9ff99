package wire

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Reader is a forward-only cursor over a byte slice with RakNet's mixed
// endianness conventions: most fields are big-endian, triads and the
// IPv6 address family are little-endian.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining reports how many unread bytes are left in the cursor.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) require(n int) error {
	if r.Remaining() < n {
		return ErrUnexpectedEOF
	}
	return nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadUint8()
	if err != nil {
		return false, err
	}
	if b > 1 {
		return false, errors.Wrapf(ErrInvalidData, "bool byte %d", b)
	}
	return b == 1, nil
}

func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrInvalidData
	}
	if err := r.require(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.data[r.off:r.off+n])
	r.off += n
	return out, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.require(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v, nil
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadTriad reads a 24-bit unsigned integer, little-endian on the wire
// (datagram sequence numbers, message/order/sequence indices).
func (r *Reader) ReadTriad() (uint32, error) {
	b, err := r.ReadBytes(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16, nil
}

// ReadString reads a u16-BE length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// ReadVarUint32 reads a zig-zag-free unsigned LEB128 varint, erroring if
// it runs past 5 continuation bytes (32-bit canonical bound) or encodes
// bits beyond the target width.
func (r *Reader) ReadVarUint32() (uint32, error) {
	var result uint32
	for i := 0; i < 5; i++ {
		b, err := r.ReadUint8()
		if err != nil {
			return 0, err
		}
		if i == 4 && b&0x80 != 0 {
			return 0, ErrVarIntTooLong
		}
		if i == 4 && b > 0x0F {
			return 0, ErrVarIntOutOfRange
		}
		result |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return result, nil
		}
	}
	return 0, ErrVarIntTooLong
}

// ReadVarInt32 reads a zig-zag encoded signed varint.
func (r *Reader) ReadVarInt32() (int32, error) {
	u, err := r.ReadVarUint32()
	if err != nil {
		return 0, err
	}
	return int32(u>>1) ^ -int32(u&1), nil
}

func (r *Reader) ReadVarUint64() (uint64, error) {
	var result uint64
	for i := 0; i < 10; i++ {
		b, err := r.ReadUint8()
		if err != nil {
			return 0, err
		}
		if i == 9 && b&0x80 != 0 {
			return 0, ErrVarIntTooLong
		}
		if i == 9 && b > 0x01 {
			return 0, ErrVarIntOutOfRange
		}
		result |= uint64(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return result, nil
		}
	}
	return 0, ErrVarIntTooLong
}

func (r *Reader) ReadVarInt64() (int64, error) {
	u, err := r.ReadVarUint64()
	if err != nil {
		return 0, err
	}
	return int64(u>>1) ^ -int64(u&1), nil
}

// ReadMagic reads and validates the fixed 16-byte offline-message sentinel.
func (r *Reader) ReadMagic() error {
	b, err := r.ReadBytes(len(Magic))
	if err != nil {
		return err
	}
	for i := range Magic {
		if b[i] != Magic[i] {
			return errors.Wrap(ErrInvalidData, "magic mismatch")
		}
	}
	return nil
}
