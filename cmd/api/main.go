package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"settlement/internal/config"
	"settlement/internal/handler"
	"settlement/internal/infra/cache"
	"settlement/internal/infra/db"
	"settlement/internal/infra/events"
	"settlement/internal/infra/gateway"
	infraRepo "settlement/internal/infra/repository"
	"settlement/internal/logger"
	"settlement/internal/server"
	"settlement/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type publisher interface {
	usecase.EventPublisher
	Close() error
}

// config読み込み前に使うログ（LOG_LEVEL等はまだ無い）
func bootLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Str("component", "boot").Logger()
}

func main() {
	//.envは無くてもよい（環境変数を直接使う）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := bootLogger(os.Stderr)
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(cfg.LogLevel, cfg.GoEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//スキーマ
	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	//DB接続
	gormDB, err := db.Connect(ctx, db.Options{
		DSN:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		Debug:    cfg.IsDev() && cfg.LogLevel == "debug",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect db")
	}
	defer func() { _ = db.Close(gormDB) }()

	//注文イベント（ブローカー無しならログだけ）
	var pub publisher
	if len(cfg.KafkaBrokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.KafkaBrokers, log)
	} else {
		pub = events.NewLogPublisher(log)
	}
	defer func() { _ = pub.Close() }()

	//注文履歴キャッシュ（REDIS_ADDR 無しなら使わない）
	var historyCache usecase.HistoryCache
	if cfg.RedisAddr != "" {
		rdb := cache.NewRedisClient(cfg.RedisAddr)
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, history cache disabled")
		} else {
			historyCache = cache.NewHistoryCache(rdb, cfg.HistoryCacheTTL)
		}
	}

	gw := gateway.NewClient(gateway.Options{
		BaseURL:   cfg.GatewayBaseURL,
		KeyID:     cfg.GatewayKeyID,
		KeySecret: cfg.GatewayKeySecret,
		Timeout:   cfg.GatewayTimeout,
	}, log)

	//Repository（GORM実装）
	txm := infraRepo.NewTxManagerGorm(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)

	//Usecase
	payCfg := usecase.PaymentConfig{
		Currency:         cfg.Currency,
		SignatureSecret:  []byte(cfg.SignatureSecret),
		OperationTimeout: cfg.OperationTimeout,
	}
	ledger := usecase.NewOrderLedger(txm, log)
	paymentUC := usecase.NewPaymentUsecase(ledger, gw, pub, historyCache, payCfg, log)
	checkoutUC := usecase.NewCheckoutUsecase(ledger, cartRepo, pub, historyCache, payCfg, log)
	historyUC := usecase.NewOrderHistoryUsecase(ledger, historyCache, log)
	cartUC := usecase.NewCartUsecase(cartRepo, orderItemRepo, productRepo, log)
	productUC := usecase.NewProductUsecase(productRepo, log)

	//Handler / Server
	e := server.New(cfg, log, server.Handlers{
		Orders:   handler.NewOrderHandler(paymentUC, checkoutUC, historyUC),
		Cart:     handler.NewCartHandler(cartUC),
		Products: handler.NewProductHandler(productUC),
		Ping: func(c echo.Context) error {
			sqlDB, err := gormDB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(c.Request().Context())
		},
	})

	if err := server.Start(ctx, e, ":"+cfg.Port, log); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	log.Info().Msg("closed completed")
}
