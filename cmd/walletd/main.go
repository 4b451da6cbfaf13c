package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fi44er/wallet_ledger/config"
	"github.com/Fi44er/wallet_ledger/db"
	"github.com/Fi44er/wallet_ledger/internal/bot"
	"github.com/Fi44er/wallet_ledger/internal/events"
	"github.com/Fi44er/wallet_ledger/internal/gateway"
	"github.com/Fi44er/wallet_ledger/internal/httpserver"
	"github.com/Fi44er/wallet_ledger/internal/locker"
	"github.com/Fi44er/wallet_ledger/internal/repository"
	"github.com/Fi44er/wallet_ledger/internal/service"
	"github.com/Fi44er/wallet_ledger/internal/worker"
	"github.com/Fi44er/wallet_ledger/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		utils.InitLogger("info").Fatal("Failed to load config: ", err)
	}
	logger := utils.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.ConnectDb(cfg.DB_URL, logger)
	if err != nil {
		logger.Fatal(err)
	}
	if err := db.Migrate(database, true, logger); err != nil {
		logger.Fatal(err)
	}

	var rdb *redis.Client
	if cfg.LockBackend == "redis" || cfg.EventsBackend == "redis" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to redis: ", err)
		}
		defer rdb.Close()
		logger.Info("Connected to Redis")
	}

	deps := service.Deps{
		Repo:   repository.NewRepository(database, logger),
		Logger: logger,
	}

	switch cfg.LockBackend {
	case "redis":
		deps.Locker = locker.NewRedis(rdb, cfg.LockTTL, logger)
	case "memory", "":
		deps.Locker = locker.NewMemory()
	default:
		logger.Fatalf("Unknown LOCK_BACKEND %q", cfg.LockBackend)
	}

	switch cfg.EventsBackend {
	case "kafka":
		kafka := events.NewKafkaPublisher(cfg.KafkaBrokerList(), cfg.KafkaTopic, logger)
		defer kafka.Close()
		deps.Publisher = kafka
	case "redis":
		deps.Publisher = events.NewRedisPublisher(rdb, cfg.RedisChannel)
	case "none", "":
	default:
		logger.Fatalf("Unknown EVENTS_BACKEND %q", cfg.EventsBackend)
	}

	var telegram *tgbotapi.BotAPI
	if cfg.TelegramBotToken != "" {
		telegram, err = tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			logger.Fatal("Failed to create bot API: ", err)
		}
		deps.Notifier = bot.NewNotifier(telegram, cfg.AdminChatID, logger)
	}

	var gw gateway.Gateway
	if cfg.PaymentGatewayURL != "" {
		gw = gateway.NewClient(cfg.PaymentGatewayURL, cfg.PaymentGatewayKey)
	} else {
		logger.Warn("PAYMENT_GATEWAY_URL is not set, gateway checkouts are disabled")
	}

	policy, err := withdrawalPolicy(cfg)
	if err != nil {
		logger.Fatal(err)
	}
	wallets := service.NewWalletService(deps, service.WalletPolicy{PinHashCost: cfg.PinHashCost, TOTPIssuer: cfg.TOTPIssuer})
	withdrawals := service.NewWithdrawalService(wallets, policy)
	coins := service.NewCoinService(wallets, service.DefaultCatalog(), gw, coinPolicy(cfg))
	payments := service.NewPaymentService(wallets, coins, gw, cfg.PaymentCurrency)

	sweeper, err := worker.NewExpirySweeper(withdrawals, cfg.WithdrawalSweepSchedule, logger)
	if err != nil {
		logger.Fatal(err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	if telegram != nil {
		reviewBot := bot.NewBot(telegram, withdrawals, cfg.AdminChatID, logger)
		go reviewBot.Start(ctx)
	}

	srv := httpserver.NewServer(httpserver.Services{
		Wallets:     wallets,
		Withdrawals: withdrawals,
		Coins:       coins,
		Payments:    payments,
	}, cfg.PaymentWebhookSecret, logger)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("HTTP server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown: %v", err)
	}
}

func withdrawalPolicy(cfg config.Config) (service.WithdrawalPolicy, error) {
	rate, err := decimal.NewFromString(cfg.WithdrawalFeeRate)
	if err != nil || rate.IsNegative() {
		return service.WithdrawalPolicy{}, fmt.Errorf("invalid WITHDRAWAL_FEE_RATE %q", cfg.WithdrawalFeeRate)
	}
	p := service.DefaultWithdrawalPolicy()
	p.MinAmount = decimal.NewFromInt(cfg.WithdrawalMin)
	p.MaxAmount = decimal.NewFromInt(cfg.WithdrawalMax)
	p.FeeRate = rate
	p.MinFee = decimal.NewFromInt(cfg.WithdrawalFeeMin)
	p.MaxFee = decimal.NewFromInt(cfg.WithdrawalFeeMax)
	p.MaxPending = cfg.WithdrawalMaxPending
	p.TTL = cfg.WithdrawalTTL
	return p, nil
}

func coinPolicy(cfg config.Config) service.CoinPolicy {
	return service.CoinPolicy{
		PricePerCoin: decimal.NewFromInt(cfg.CoinPrice),
		MinCoins:     cfg.CoinMinPurchase,
		MaxCoins:     cfg.CoinMaxPurchase,
		Currency:     cfg.PaymentCurrency,
	}
}
