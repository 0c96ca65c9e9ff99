package raknet

import "github.com/pkg/errors"

// Protocol-level sentinel and typed errors, mirrored from the reliability
// layer's error taxonomy. Wrapped with pkg/errors at propagation
// boundaries so warn-level logs keep full context.
var (
	ErrInvalidPacketID      = errors.New("raknet: invalid packet id")
	ErrInvalidMTU           = errors.New("raknet: invalid mtu")
	ErrTooManySplitPackets  = errors.New("raknet: too many concurrent split packets")
	ErrSessionNotFound      = errors.New("raknet: session not found")
	ErrSessionTimeout       = errors.New("raknet: session timed out")
	ErrDisconnected         = errors.New("raknet: peer disconnected")
	ErrAdvertisementTooLong = errors.New("raknet: advertisement exceeds 65535 bytes")
)

// UnexpectedPacketError reports a control packet arriving while the
// session is in a state that does not expect it.
type UnexpectedPacketError struct {
	State string
	ID    byte
}

func (e *UnexpectedPacketError) Error() string {
	return errors.Errorf("raknet: unexpected packet 0x%02X in state %s", e.ID, e.State).Error()
}

// IncompatibleProtocolVersionError reports a client/server RakNet
// protocol version mismatch.
type IncompatibleProtocolVersionError struct {
	Client uint8
	Server uint8
}

func (e *IncompatibleProtocolVersionError) Error() string {
	return errors.Errorf("raknet: incompatible protocol version: client=%d server=%d", e.Client, e.Server).Error()
}

// InvalidSplitPacketError reports a malformed split-packet fragment.
type InvalidSplitPacketError struct {
	Reason string
}

func (e *InvalidSplitPacketError) Error() string {
	return errors.Errorf("raknet: invalid split packet: %s", e.Reason).Error()
}
