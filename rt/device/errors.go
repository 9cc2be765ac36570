package device

import "errors"

var (
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrStrideAlignment       = errors.New("vertex stride must be a multiple of 4")
	ErrAllocation            = errors.New("allocation failed")
	ErrReleased              = errors.New("resource already released")
	ErrInvalidCommand        = errors.New("invalid command")
)
