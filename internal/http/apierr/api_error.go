package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tuanvumaihuynh/ledger/pkg/zerror"
)

// ErrorResponse is the error response for the API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// StatusCode is the status code for the error response.
	StatusCode int `json:"-"`
}

func New(err error) ErrorResponse {
	return errorToErrorResponse(err)
}

var InternalServerErr = ErrorResponse{
	Code:       "internalServerError",
	Message:    "an unknown error occurred",
	StatusCode: http.StatusInternalServerError,
}

// Write encodes the response for err as JSON with the matching status code.
func Write(w http.ResponseWriter, err error) error {
	res := New(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.StatusCode)

	return json.NewEncoder(w).Encode(res)
}

func errorToErrorResponse(err error) ErrorResponse {
	var zErr zerror.ZError
	if errors.As(err, &zErr) {
		return ErrorResponse{
			Code:       zErr.Code(),
			Message:    zErr.Msg(),
			StatusCode: ZErrorStatusToHTTPStatus(zErr.Status()),
		}
	}

	return InternalServerErr
}

func ZErrorStatusToHTTPStatus(status zerror.Status) int {
	switch status {
	case zerror.StatusBadRequest, zerror.StatusValidationFailed:
		return http.StatusBadRequest
	case zerror.StatusPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case zerror.StatusServiceUnavailable:
		return http.StatusServiceUnavailable
	case zerror.StatusUnknown, zerror.StatusInternalServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
