package wire

// Magic is the fixed 16-byte sentinel prefixing every offline (pre-session)
// RakNet packet. Lifted verbatim from the RakNet reference implementation.
var Magic = []byte{
	0x00, 0xFF, 0xFF, 0x00, 0xFE, 0xFE, 0xFE, 0xFE,
	0xFD, 0xFD, 0xFD, 0xFD, 0x12, 0x34, 0x56, 0x78,
}
