package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Fi44er/wallet_ledger/internal/gateway"
	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/Fi44er/wallet_ledger/internal/service"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	Current   string `json:"current,omitempty"`
	Attempted string `json:"attempted,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var errorTable = []struct {
	target error
	status int
	code   string
}{
	{models.ErrValidation, http.StatusBadRequest, "VALIDATION"},
	{models.ErrInsufficientBalance, http.StatusPaymentRequired, "INSUFFICIENT_BALANCE"},
	{models.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{models.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{models.ErrInvalidStateTransition, http.StatusConflict, "INVALID_STATE"},
	{models.ErrTooManyPending, http.StatusConflict, "TOO_MANY_PENDING"},
	{models.ErrPinNotSet, http.StatusUnprocessableEntity, "PIN_NOT_SET"},
	{models.ErrPinMismatch, http.StatusUnprocessableEntity, "PIN_MISMATCH"},
	{models.ErrTwoFARequired, http.StatusUnprocessableEntity, "TWO_FA_REQUIRED"},
	{models.ErrTwoFAMismatch, http.StatusUnprocessableEntity, "TWO_FA_MISMATCH"},
	{gateway.ErrBadSignature, http.StatusUnauthorized, "BAD_SIGNATURE"},
	{service.ErrGatewayUnavailable, http.StatusServiceUnavailable, "GATEWAY_UNAVAILABLE"},
}

// writeError maps domain errors to a status and a reason the client can act
// on. Anything unrecognised is logged and reported without details.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorTable {
		if !errors.Is(err, e.target) {
			continue
		}
		body := errorBody{Error: err.Error(), Code: e.code}
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			body.Field = vErr.Field
		}
		var tErr *models.TransitionError
		if errors.As(err, &tErr) {
			body.Current, body.Attempted = tErr.Current, tErr.Attempted
		}
		writeJSON(w, e.status, body)
		return
	}

	s.logger.Errorf("%s %s failed: %v", r.Method, r.URL.Path, err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "INTERNAL"})
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return models.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return nil
}
