package router

import (
	"net/http"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/internal/handler"
	"wallet-service/internal/middleware"
	"wallet-service/pkg/response"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Auth           *middleware.Auth
	CallbackIPs    []string
	Payments       *handler.PaymentHandler
	Transactions   *handler.TransactionHandler
	Wallets        *handler.WalletHandler
	PaymentMethods *handler.PaymentMethodHandler
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Provider notifications: unauthenticated, optionally IP-restricted.
	// Signature checks happen inside the gateway adapters.
	r.Group(func(r chi.Router) {
		r.Use(middleware.IPAllowList(d.CallbackIPs))
		r.HandleFunc("/api/v1/payments/ipn/{provider}", d.Payments.DepositIPN)
		r.HandleFunc("/api/v1/payments/ipn/withdraw/{provider}", d.Payments.WithdrawIPN)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(d.Auth.Require)

		r.Route("/payments", func(r chi.Router) {
			r.Use(middleware.RequirePermission(domain.PermFinanceTransact))
			r.Post("/deposit/{provider}", d.Payments.Deposit)
			r.Post("/withdraw/{provider}", d.Payments.Withdraw)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", d.Transactions.List)
			r.Post("/transfer", d.Transactions.Transfer)
			r.Post("/transfer/secret-key", d.Transactions.IssueSecretKey)
		})

		r.Route("/wallets", func(r chi.Router) {
			r.Get("/me", d.Wallets.Me)
			r.Put("/me/pin", d.Wallets.SetPIN)
		})

		r.Route("/payment-methods", func(r chi.Router) {
			r.Get("/", d.PaymentMethods.List)
			r.Post("/", d.PaymentMethods.Link)
			r.Delete("/{id}", d.PaymentMethods.Unlink)
		})
	})

	return r
}
