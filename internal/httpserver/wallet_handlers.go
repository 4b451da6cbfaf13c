package httpserver

import (
	"net/http"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/Fi44er/wallet_ledger/internal/repository"
	"github.com/Fi44er/wallet_ledger/internal/service"
	"github.com/shopspring/decimal"
)

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	balance, err := s.Wallets.Balance(r.Context(), identity(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

type pinRequest struct {
	Pin string `json:"pin"`
}

func (s *Server) setPin(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Wallets.SetPIN(r.Context(), identity(r).UserID, req.Pin); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) verifyPin(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Wallets.VerifyPIN(r.Context(), identity(r).UserID, req.Pin); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (s *Server) updateBank(w http.ResponseWriter, r *http.Request) {
	var req service.BankAccount
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	wallet, err := s.Wallets.UpdateBankAccount(r.Context(), identity(r).UserID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) setupTwoFA(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountName string `json:"accountName"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	setup, err := s.Wallets.SetupTwoFA(r.Context(), identity(r).UserID, req.AccountName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, setup)
}

type codeRequest struct {
	Code string `json:"code"`
}

func (s *Server) enableTwoFA(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Wallets.EnableTwoFA(r.Context(), identity(r).UserID, req.Code); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) disableTwoFA(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Wallets.DisableTwoFA(r.Context(), identity(r).UserID, req.Code); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.EntryFilter{
		Currency: models.CurrencyType(q.Get("currency")),
		Type:     models.TransactionType(q.Get("type")),
	}
	history, err := s.Wallets.History(r.Context(), identity(r).UserID, filter, pageFromQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entry, err := s.Wallets.GetEntry(r.Context(), identity(r).UserID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) walletStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Wallets.Statistics(r.Context(), identity(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type checkoutURLs struct {
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

func (s *Server) createTopUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		checkoutURLs
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	checkout, err := s.Payments.CreateTopUp(r.Context(), identity(r).UserID, req.Amount, req.SuccessURL, req.CancelURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkout)
}
