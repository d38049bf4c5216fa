package apperr

import "github.com/tuanvumaihuynh/ledger/pkg/zerror"

const (
	ValidationErrorCode     = "VALIDATION_FAILED"
	BodyTooLargeErrorCode   = "BODY_TOO_LARGE"
	InvalidJSONErrorCode    = "INVALID_JSON"
	InvalidFormErrorCode    = "INVALID_FORM"
	DatabaseUnavailableCode = "DATABASE_UNAVAILABLE"
)

var (
	ValidationErr          = zerror.NewValidationFailed(ValidationErrorCode, "validation error")
	BodyTooLargeErr        = zerror.NewPayloadTooLarge(BodyTooLargeErrorCode, "request body too large")
	InvalidJSONErr         = zerror.NewBadRequest(InvalidJSONErrorCode, "request body is not valid JSON")
	InvalidFormErr         = zerror.NewBadRequest(InvalidFormErrorCode, "request body is not a valid form")
	DatabaseUnavailableErr = zerror.NewServiceUnavailable(DatabaseUnavailableCode, "database unavailable")
)
