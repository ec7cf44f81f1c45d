package httpadapter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrDiagramNotFound), domain.IsKind(err, domain.ErrAssetNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrMalformedModelOutput),
		domain.IsKind(err, domain.ErrSchemaValidation),
		domain.IsKind(err, domain.ErrUnknown):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	kind := domain.KindName(err)
	if status == http.StatusRequestEntityTooLarge {
		kind = "InvalidInput"
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"kind", kind,
			"error", err.Error(),
		)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message, Kind: "InvalidInput"})
}
