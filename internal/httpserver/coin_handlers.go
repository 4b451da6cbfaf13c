package httpserver

import (
	"net/http"
	"strconv"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/shopspring/decimal"
)

type packageView struct {
	models.CoinPackage
	TotalCoins   int64           `json:"totalCoins"`
	PricePerCoin decimal.Decimal `json:"pricePerCoin"`
}

func (s *Server) coinPackages(w http.ResponseWriter, r *http.Request) {
	pkgs := s.Coins.Packages()
	out := make([]packageView, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, packageView{CoinPackage: p, TotalCoins: p.TotalCoins(), PricePerCoin: p.PricePerCoin()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) coinQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var coins int64
	if raw := q.Get("coins"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, r, models.NewValidationError("coins", "must be an integer"))
			return
		}
		coins = v
	}
	quote, err := s.Coins.Quote(coins, q.Get("package"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type purchaseRequest struct {
	CoinAmount int64  `json:"coinAmount"`
	PackageID  string `json:"packageId"`
	checkoutURLs
}

func (s *Server) purchaseWithWallet(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Coins.PurchaseWithWallet(r.Context(), identity(r).UserID, req.CoinAmount, req.PackageID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) purchaseWithGateway(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Coins.PurchaseWithGateway(r.Context(), identity(r).UserID, req.CoinAmount, req.PackageID, req.SuccessURL, req.CancelURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
