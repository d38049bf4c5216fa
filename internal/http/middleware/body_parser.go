package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/tuanvumaihuynh/ledger/internal/apperr"
	"github.com/tuanvumaihuynh/ledger/internal/http/apierr"
	"github.com/tuanvumaihuynh/ledger/pkg/zerror"
)

type jsonBodyKey struct{}

// JSONBody returns the JSON request body read by BodyParser.
func JSONBody(ctx context.Context) (json.RawMessage, bool) {
	body, ok := ctx.Value(jsonBodyKey{}).(json.RawMessage)
	return body, ok
}

// BodyParser reads JSON and URL-encoded request bodies up to limit bytes.
// A JSON body is validated and kept in the request context (see JSONBody),
// and r.Body is rewound so handlers can decode it again. A URL-encoded body
// is parsed into r.PostForm. Other content types pass through untouched.
func BodyParser(limit int64, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			kind := bodyKind(r)
			if kind == kindOther {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				writeBodyError(w, r, log, apperr.BodyTooLargeErr.WrapParent(
					fmt.Errorf("content length %d exceeds %d bytes", r.ContentLength, limit)))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)

			switch kind {
			case kindJSON:
				body, err := io.ReadAll(r.Body)
				if err != nil {
					writeBodyError(w, r, log, readBodyErr(err, apperr.InvalidJSONErr))
					return
				}
				if len(bytes.TrimSpace(body)) > 0 && !json.Valid(body) {
					writeBodyError(w, r, log, apperr.InvalidJSONErr)
					return
				}

				r.Body = io.NopCloser(bytes.NewReader(body))
				r = r.WithContext(context.WithValue(r.Context(), jsonBodyKey{}, json.RawMessage(body)))
			case kindForm:
				if err := r.ParseForm(); err != nil {
					writeBodyError(w, r, log, readBodyErr(err, apperr.InvalidFormErr))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

type contentKind int

const (
	kindOther contentKind = iota
	kindJSON
	kindForm
)

func bodyKind(r *http.Request) contentKind {
	if r.Body == nil || r.Body == http.NoBody {
		return kindOther
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return kindOther
	}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return kindJSON
	case mediaType == "application/x-www-form-urlencoded":
		return kindForm
	default:
		return kindOther
	}
}

func readBodyErr(err error, fallback zerror.ZError) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperr.BodyTooLargeErr.WrapParent(err)
	}
	return fallback.WrapParent(err)
}

func writeBodyError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	log.WarnContext(r.Context(), "error parsing request body", slog.Any("error", err))

	if err := apierr.Write(w, err); err != nil {
		log.ErrorContext(r.Context(), "error encoding error response", slog.Any("error", err))
	}
}
