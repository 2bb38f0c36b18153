// Package apperr classifies the small, fixed taxonomy of error kinds this
// service can surface, so HTTP handlers map them to status codes without
// string-matching scattered across the codebase.
package apperr

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"

	"github.com/newgpp/parksuite-core/internal/biz"
	"github.com/newgpp/parksuite-core/internal/knowledge"
)

// Kind is one bucket of the error taxonomy.
type Kind string

const (
	KindClarification Kind = "clarification" // 200, terminal
	KindToolError     Kind = "tool_error"    // 200, terminal
	KindValidation    Kind = "validation"    // 400
	KindNotFound      Kind = "not_found"     // 404
	KindUnavailable   Kind = "unavailable"   // 503
	KindInternal      Kind = "internal"      // 500
)

// Classify inspects err for the typed errors this service actually
// produces and returns the bucket an HTTP handler should map to a status
// code. Clarification and tool-layer outcomes never reach this function —
// they are represented as structured fields on a 200 response, never as Go
// errors — so Classify only ever sees validation/not-found/unavailable/
// internal failures.
func Classify(err error) Kind {
	if err == nil {
		return KindInternal
	}

	var embedMismatch *knowledge.ErrEmbeddingDimMismatch
	if errors.As(err, &embedMismatch) {
		return KindValidation
	}

	var sourceNotFound *knowledge.ErrSourceNotFound
	if errors.As(err, &sourceNotFound) {
		return KindNotFound
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return KindNotFound
	}

	var httpErr *biz.HTTPStatusError
	if errors.As(err, &httpErr) && httpErr.StatusCode == 404 {
		return KindNotFound
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindUnavailable
	}

	return KindInternal
}

// StatusCode maps a Kind to the HTTP status code the handler layer writes.
func StatusCode(k Kind) int {
	switch k {
	case KindValidation:
		return 400
	case KindNotFound:
		return 404
	case KindUnavailable:
		return 503
	default:
		return 500
	}
}
