package fab

import "errors"

var (
	// ErrInvalidArgument marks a call a correct caller never makes: a
	// negative norm exponent, a sub-box outside the domain, a component
	// range outside [0, NComp) or an empty domain.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrResourceExhausted is returned when a buffer can't be allocated
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrOverflow is returned when a reduction doesn't fit its accumulator
	ErrOverflow = errors.New("accumulator overflow")
	// ErrChecksum is returned when a stored chunk doesn't match its digest
	ErrChecksum = errors.New("checksum mismatch")
)
