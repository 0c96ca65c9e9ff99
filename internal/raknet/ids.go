package raknet

// Packet IDs, per the Bedrock-flavoured RakNet wire protocol.
const (
	IDConnectedPing               byte = 0x00
	IDUnconnectedPing             byte = 0x01
	IDConnectedPong               byte = 0x03
	IDOpenConnectionRequest1      byte = 0x05
	IDOpenConnectionReply1        byte = 0x06
	IDOpenConnectionRequest2      byte = 0x07
	IDOpenConnectionReply2        byte = 0x08
	IDConnectionRequest           byte = 0x09
	IDConnectionRequestAccepted   byte = 0x10
	IDNewIncomingConnection       byte = 0x13
	IDDisconnectNotification      byte = 0x15
	IDIncompatibleProtocolVersion byte = 0x19
	IDUnconnectedPong             byte = 0x1C
)

// Datagram header flag bits (the flag byte doubles as the leading "packet
// ID" byte for the 0x80-0xFF range).
const (
	FlagValid         byte = 0x80
	FlagACK           byte = 0x40
	FlagNACK          byte = 0x20
	FlagNeedsBAndAS   byte = 0x04
	EncapsulatedSplit byte = 0x10
)

// SystemAddressCount is the number of padding address slots carried in
// ConnectionRequestAccepted and NewIncomingConnection. The RakNet
// reference implementation uses 10; Minecraft Bedrock clients expect 20.
const SystemAddressCount = 20

// MinMTUSize is the minimum negotiable MTU (bytes, RakNet-framed payload,
// excluding IP/UDP overhead).
const MinMTUSize = 400
