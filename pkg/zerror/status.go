package zerror

// Status is the transport-agnostic class of a ZError.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusBadRequest
	StatusValidationFailed
	StatusPayloadTooLarge
	StatusInternalServerError
	StatusServiceUnavailable
)
