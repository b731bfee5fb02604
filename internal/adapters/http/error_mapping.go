package httpadapter

import (
	"errors"
	"net/http"

	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
)

// statusForError maps domain error kinds onto HTTP status codes. Unknown
// errors are treated as internal.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrShipmentNotFound),
		errors.Is(err, domain.ErrDocumentNotFound),
		errors.Is(err, domain.ErrPartyNotFound),
		errors.Is(err, domain.ErrVersionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnsupportedDocumentKey),
		errors.Is(err, domain.ErrMissingRequiredParty),
		errors.Is(err, domain.ErrProductNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNoVersionToApprove),
		errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRenderFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	body := map[string]string{"error": err.Error()}
	if status == http.StatusInternalServerError {
		body["error"] = "internal error"
	}
	writeJSON(w, status, body)
}
