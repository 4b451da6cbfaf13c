package httpserver

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/Fi44er/wallet_ledger/internal/gateway"
	"github.com/Fi44er/wallet_ledger/internal/models"
)

// paymentWebhook receives the gateway's success notifications. The body is
// authenticated before it is parsed.
func (s *Server) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookSecret == "" {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "payment webhook is not configured", Code: "GATEWAY_UNAVAILABLE"})
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, models.NewValidationError("body", "unreadable"))
		return
	}
	if err := gateway.VerifySignature(s.webhookSecret, body, r.Header.Get(gateway.SignatureHeader)); err != nil {
		s.logger.Warnf("Rejected payment webhook from %s: %v", r.RemoteAddr, err)
		s.writeError(w, r, err)
		return
	}

	var n gateway.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		s.writeError(w, r, models.NewValidationError("body", "invalid JSON"))
		return
	}
	res, err := s.Payments.HandleNotification(r.Context(), n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := map[string]any{"status": "ignored"}
	if res != nil {
		out["status"] = "applied"
		out["duplicate"] = res.Duplicate
	}
	writeJSON(w, http.StatusOK, out)
}
