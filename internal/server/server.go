package server

import (
	"context"
	"net/http"
	"time"

	"wallet-service/internal/config"
	"wallet-service/internal/gateway"
	"wallet-service/internal/gateway/vnpay"
	"wallet-service/internal/handler"
	"wallet-service/internal/metrics"
	"wallet-service/internal/middleware"
	"wallet-service/internal/repository"
	"wallet-service/internal/router"
	"wallet-service/internal/usecase/paymentmethod"
	"wallet-service/internal/usecase/settlement"
	"wallet-service/internal/usecase/wallet"
	"wallet-service/pkg/cache"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Server wires the full dependency graph and owns the HTTP listener.
type Server struct {
	httpSrv *http.Server
	pool    *pgxpool.Pool
	logger  *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	pool, err := config.ConnectDB(ctx, cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	c := cache.NewCache(cfg.RedisAddrs, cfg.RedisPassword, cfg.RedisCluster)

	store := repository.NewStore(pool)
	wallets := repository.NewWalletRepository(pool)
	txns := repository.NewTransactionRepository(pool)
	methods := repository.NewPaymentMethodRepository(pool)
	secrets := repository.NewSecretKeyRepository(c)
	limiter := repository.NewRateLimiter(c)

	gateways := gateway.NewRegistry(vnpay.New(vnpay.Config{
		PayURL:     cfg.VNPayPayURL,
		PayoutURL:  cfg.VNPayPayoutURL,
		TmnCode:    cfg.VNPayTmnCode,
		HashSecret: cfg.VNPayHashSecret,
	}))

	m := metrics.New()

	engine := settlement.NewEngine(settlement.Config{
		BaseURL:          cfg.BaseURL,
		PaymentReturnURL: cfg.PaymentReturnURL,
	}, store, wallets, txns, methods, secrets, limiter, gateways, m, logger)

	walletSvc := wallet.NewService(wallets, txns, secrets, logger)
	methodSvc := paymentmethod.NewService(wallets, methods, logger)

	h := router.New(router.Deps{
		Auth:           middleware.NewAuth(cfg.JWTSecret),
		CallbackIPs:    cfg.CallbackIPs,
		Payments:       handler.NewPaymentHandler(engine, gateways, logger),
		Transactions:   handler.NewTransactionHandler(engine, walletSvc),
		Wallets:        handler.NewWalletHandler(walletSvc),
		PaymentMethods: handler.NewPaymentMethodHandler(methodSvc),
	})

	return &Server{
		httpSrv: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		pool:   pool,
		logger: logger,
	}, nil
}

func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpSrv.Addr))
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)
	s.pool.Close()
	return err
}
