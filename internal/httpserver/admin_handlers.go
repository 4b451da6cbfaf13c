package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/Fi44er/wallet_ledger/internal/service"
	"github.com/shopspring/decimal"
)

func (s *Server) globalStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Wallets.GlobalStatistics(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) setWalletStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := intParam(r, "userID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Status models.WalletStatus `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	wallet, err := s.Wallets.SetStatus(r.Context(), userID, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Infof("Reviewer %d set wallet of user %d to %s", identity(r).UserID, userID, req.Status)
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) reconcileWallet(w http.ResponseWriter, r *http.Request) {
	userID, err := intParam(r, "userID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.Wallets.Reconcile(r.Context(), userID)
	if err != nil && !errors.Is(err, service.ErrUnbalanced) {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*service.Reconciliation
		Balanced bool `json:"balanced"`
	}{rec, rec.Balanced()})
}

// Types a reviewer may post directly. Deposits, withdrawals and coin
// purchases only enter the ledger through their own flows.
var (
	adjustableCoinTypes = map[models.TransactionType]bool{
		models.TxEarnCoins:         true,
		models.TxSpendCoins:        true,
		models.TxBonusCoins:        true,
		models.TxRewardAchievement: true,
		models.TxDailyLoginBonus:   true,
		models.TxAdminAdjustment:   true,
	}
	adjustableCashTypes = map[models.TransactionType]bool{
		models.TxRefundCash:      true,
		models.TxMentorPayout:    true,
		models.TxCoursePurchase:  true,
		models.TxAdminAdjustment: true,
	}
)

type adjustment struct {
	Type          models.TransactionType `json:"type"`
	Description   string                 `json:"description"`
	ReferenceType string                 `json:"referenceType"`
	ReferenceID   string                 `json:"referenceId"`
}

func (a *adjustment) resolve(allowed map[models.TransactionType]bool, reviewerID int64) error {
	if a.Type == "" {
		a.Type = models.TxAdminAdjustment
	}
	if !allowed[a.Type] {
		return models.NewValidationError("type", "cannot be posted directly: "+string(a.Type))
	}
	if a.Description == "" {
		a.Description = fmt.Sprintf("Adjustment by reviewer %d", reviewerID)
	}
	return nil
}

type coinAdjustment struct {
	adjustment
	Amount int64 `json:"amount"`
}

type cashAdjustment struct {
	adjustment
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) adjustCoins(credit bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := intParam(r, "userID")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req coinAdjustment
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		reviewerID := identity(r).UserID
		if err := req.resolve(adjustableCoinTypes, reviewerID); err != nil {
			s.writeError(w, r, err)
			return
		}
		op := service.CoinOp{
			UserID:        userID,
			Amount:        req.Amount,
			Type:          req.Type,
			Description:   req.Description,
			ReferenceType: req.ReferenceType,
			ReferenceID:   req.ReferenceID,
		}
		apply := s.Wallets.DeductCoins
		if credit {
			apply = s.Wallets.AddCoins
		}
		entry, err := apply(r.Context(), op)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.logger.Infof("Reviewer %d posted %s of %d coins for user %d", reviewerID, entry.Direction, req.Amount, userID)
		writeJSON(w, http.StatusCreated, entry)
	}
}

func (s *Server) adjustCash(credit bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := intParam(r, "userID")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req cashAdjustment
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		reviewerID := identity(r).UserID
		if err := req.resolve(adjustableCashTypes, reviewerID); err != nil {
			s.writeError(w, r, err)
			return
		}
		op := service.CashOp{
			UserID:        userID,
			Amount:        req.Amount,
			Type:          req.Type,
			Description:   req.Description,
			ReferenceType: req.ReferenceType,
			ReferenceID:   req.ReferenceID,
		}
		apply := s.Wallets.DeductCash
		if credit {
			apply = s.Wallets.CreditCash
		}
		entry, err := apply(r.Context(), op)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.logger.Infof("Reviewer %d posted %s of %s cash for user %d", reviewerID, entry.Direction, req.Amount, userID)
		writeJSON(w, http.StatusCreated, entry)
	}
}

func (s *Server) refundCoins(w http.ResponseWriter, r *http.Request) {
	userID, err := intParam(r, "userID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Amount        int64  `json:"amount"`
		Reason        string `json:"reason"`
		ReferenceType string `json:"referenceType"`
		ReferenceID   string `json:"referenceId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	entry, err := s.Coins.RefundCoins(r.Context(), userID, req.Amount, req.Reason, req.ReferenceType, req.ReferenceID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type holdRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) holdCash(freeze bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := intParam(r, "userID")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req holdRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		apply, verb := s.Wallets.UnfreezeCash, "released"
		if freeze {
			apply, verb = s.Wallets.FreezeCash, "froze"
		}
		balance, err := apply(r.Context(), userID, req.Amount)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.logger.Infof("Reviewer %d %s %s cash of user %d", identity(r).UserID, verb, req.Amount, userID)
		writeJSON(w, http.StatusOK, balance)
	}
}

type settlementRequest struct {
	BuyerID     int64           `json:"buyerId"`
	AuthorID    int64           `json:"authorId"`
	CourseID    string          `json:"courseId"`
	CourseTitle string          `json:"courseTitle"`
	Price       decimal.Decimal `json:"price"`
	AuthorShare decimal.Decimal `json:"authorShare"`
}

// settleCoursePurchase is called by the course service once a sale is
// confirmed. When the payout fails after the charge, the 500 response
// carries the charge.
func (s *Server) settleCoursePurchase(w http.ResponseWriter, r *http.Request) {
	var req settlementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.BuyerID <= 0 || req.AuthorID <= 0 {
		s.writeError(w, r, models.NewValidationError("buyerId", "buyer and author are required"))
		return
	}
	if req.CourseID == "" {
		s.writeError(w, r, models.NewValidationError("courseId", "is required"))
		return
	}
	settlement, err := s.Wallets.SettleCoursePurchase(r.Context(), service.CoursePurchase(req))
	if err != nil {
		if settlement != nil {
			s.logger.Errorf("Course %s settlement incomplete: %v", req.CourseID, err)
			writeJSON(w, http.StatusInternalServerError, struct {
				errorBody
				Settlement *service.CourseSettlement `json:"settlement"`
			}{errorBody{Error: err.Error(), Code: "PAYOUT_FAILED"}, settlement})
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, settlement)
}
