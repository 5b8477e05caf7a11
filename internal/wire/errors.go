package wire

import "errors"

var (
	ErrInvalidInput    = errors.New("wire: invalid input")
	ErrMalformedHeader = errors.New("wire: malformed header")
	ErrLengthMismatch  = errors.New("wire: length mismatch")
)
