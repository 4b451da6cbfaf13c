// Package httpserver is the REST boundary of the wallet service. Identity
// comes from the upstream gateway; every business rule lives in service.
package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/Fi44er/wallet_ledger/internal/service"
	"github.com/Fi44er/wallet_ledger/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Services struct {
	Wallets     *service.WalletService
	Withdrawals *service.WithdrawalService
	Coins       *service.CoinService
	Payments    *service.PaymentService
}

type Server struct {
	Services
	webhookSecret string
	logger        *utils.Logger
}

func NewServer(services Services, webhookSecret string, logger *utils.Logger) *Server {
	return &Server{Services: services, webhookSecret: webhookSecret, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", UserIDHeader, UserRoleHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/payments/webhook", s.paymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.Authenticate)

			r.Route("/wallet", func(r chi.Router) {
				r.Get("/", s.getWallet)
				r.Post("/pin", s.setPin)
				r.Post("/pin/verify", s.verifyPin)
				r.Put("/bank", s.updateBank)
				r.Post("/2fa/setup", s.setupTwoFA)
				r.Post("/2fa/enable", s.enableTwoFA)
				r.Post("/2fa/disable", s.disableTwoFA)
				r.Get("/transactions", s.listTransactions)
				r.Get("/transactions/{id}", s.getTransaction)
				r.Get("/statistics", s.walletStatistics)
				r.Post("/topup", s.createTopUp)
			})

			r.Route("/withdrawals", func(r chi.Router) {
				r.Post("/", s.createWithdrawal)
				r.Get("/", s.listWithdrawals)
				r.Get("/{id}", s.getWithdrawal)
				r.Post("/{id}/cancel", s.cancelWithdrawal)
			})

			r.Route("/coins", func(r chi.Router) {
				r.Get("/packages", s.coinPackages)
				r.Get("/quote", s.coinQuote)
				r.Post("/purchase/wallet", s.purchaseWithWallet)
				r.Post("/purchase/gateway", s.purchaseWithGateway)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.RequireAdmin)
				r.Get("/withdrawals", s.reviewQueue)
				r.Post("/withdrawals/sweep", s.sweepExpired)
				r.Get("/withdrawals/{id}", s.reviewWithdrawal)
				r.Post("/withdrawals/{id}/approve", s.approveWithdrawal)
				r.Post("/withdrawals/{id}/reject", s.rejectWithdrawal)
				r.Post("/withdrawals/{id}/bank-transaction", s.attachBankTransaction)
				r.Get("/wallets/statistics", s.globalStatistics)
				r.Put("/wallets/{userID}/status", s.setWalletStatus)
				r.Get("/wallets/{userID}/reconcile", s.reconcileWallet)
				r.Post("/wallets/{userID}/coins/add", s.adjustCoins(true))
				r.Post("/wallets/{userID}/coins/deduct", s.adjustCoins(false))
				r.Post("/wallets/{userID}/coins/refund", s.refundCoins)
				r.Post("/wallets/{userID}/cash/credit", s.adjustCash(true))
				r.Post("/wallets/{userID}/cash/deduct", s.adjustCash(false))
				r.Post("/wallets/{userID}/freeze", s.holdCash(true))
				r.Post("/wallets/{userID}/unfreeze", s.holdCash(false))
				r.Post("/course-settlements", s.settleCoursePurchase)
			})
		})
	})
	return r
}

func pageFromQuery(r *http.Request) models.Page {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return models.Page{Number: number, Size: size}.Normalize()
}

func uintParam(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || v == 0 {
		return 0, models.NewValidationError(name, "must be a positive integer")
	}
	return v, nil
}

func intParam(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, models.NewValidationError(name, "must be a positive integer")
	}
	return v, nil
}
