package transporthttp

import (
	"encoding/json"
	"errors"
	"net/http"

	appErrors "github.com/flmlnk/flmlnk-backend/internal/errors"
)

type Problem struct {
	Title  string `json:"title,omitempty"`
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func WriteProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// WriteJSON writes v as a JSON response body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps service errors onto problem responses.
func WriteError(w http.ResponseWriter, err error) {
	var notFound *appErrors.ErrCampaignNotFound
	var profileNotFound *appErrors.ErrProfileNotFound
	var badTransition *appErrors.ErrInvalidTransition
	var invalid *appErrors.ValidationError

	switch {
	case errors.As(err, &invalid):
		WriteProblem(w, http.StatusBadRequest, "invalid input", err.Error())
	case errors.As(err, &notFound), errors.As(err, &profileNotFound):
		WriteProblem(w, http.StatusNotFound, "not found", err.Error())
	case errors.As(err, &badTransition):
		WriteProblem(w, http.StatusConflict, "invalid state", err.Error())
	case errors.Is(err, appErrors.ErrCampaignImmutable):
		WriteProblem(w, http.StatusConflict, "campaign immutable", err.Error())
	case errors.Is(err, appErrors.ErrInvalidToken):
		WriteProblem(w, http.StatusNotFound, "invalid token", err.Error())
	case errors.Is(err, appErrors.ErrEmptyAudience):
		WriteProblem(w, http.StatusUnprocessableEntity, "empty audience", err.Error())
	default:
		WriteProblem(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}
