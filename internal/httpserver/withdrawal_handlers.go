package httpserver

import (
	"net/http"
	"time"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/Fi44er/wallet_ledger/internal/service"
)

func (s *Server) createWithdrawal(w http.ResponseWriter, r *http.Request) {
	var in service.CreateWithdrawalInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	in.UserID = identity(r).UserID
	in.IP = r.RemoteAddr
	in.UserAgent = r.UserAgent()

	request, err := s.Withdrawals.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

func (s *Server) listWithdrawals(w http.ResponseWriter, r *http.Request) {
	page, err := s.Withdrawals.ListForUser(r.Context(), identity(r).UserID, pageFromQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	request, err := s.Withdrawals.Get(r.Context(), id, identity(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) cancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req reasonRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	request, err := s.Withdrawals.Cancel(r.Context(), id, identity(r).UserID, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (s *Server) reviewQueue(w http.ResponseWriter, r *http.Request) {
	status := models.WithdrawalStatus(r.URL.Query().Get("status"))
	page, err := s.Withdrawals.ListForReview(r.Context(), status, pageFromQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) reviewWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	request, err := s.Withdrawals.GetForReview(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (s *Server) approveWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	request, err := s.Withdrawals.Approve(r.Context(), id, identity(r).UserID, req.Notes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (s *Server) rejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req reasonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	request, err := s.Withdrawals.Reject(r.Context(), id, identity(r).UserID, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (s *Server) attachBankTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		BankTransactionID string `json:"bankTransactionId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	request, err := s.Withdrawals.AttachBankTransaction(r.Context(), id, identity(r).UserID, req.BankTransactionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (s *Server) sweepExpired(w http.ResponseWriter, r *http.Request) {
	count, err := s.Withdrawals.SweepExpired(r.Context(), time.Time{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired": count})
}
