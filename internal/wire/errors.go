package wire

import "github.com/pkg/errors"

// Codec-level sentinel errors. Callers recover these with errors.Cause
// after a pkg/errors.Wrap at each propagation boundary.
var (
	ErrUnexpectedEOF     = errors.New("wire: unexpected end of buffer")
	ErrInvalidData       = errors.New("wire: invalid data")
	ErrInvalidUTF8       = errors.New("wire: invalid utf-8 string")
	ErrVarIntTooLong     = errors.New("wire: variable-length integer too long")
	ErrVarIntOutOfRange  = errors.New("wire: variable-length integer out of range")
	ErrUnsupportedFamily = errors.New("wire: unsupported address family")
)
