package handler

import (
	"encoding/json"
	"net/http"

	"wallet-service/internal/gateway"
	"wallet-service/internal/middleware"
	"wallet-service/internal/usecase/settlement"
	"wallet-service/pkg/response"
	"wallet-service/pkg/xerrors"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentHandler exposes deposit/withdrawal initiation and the gateway IPN
// endpoints.
type PaymentHandler struct {
	engine   *settlement.Engine
	gateways *gateway.Registry
	logger   *zap.Logger
}

func NewPaymentHandler(engine *settlement.Engine, gateways *gateway.Registry, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{engine: engine, gateways: gateways, logger: logger}
}

type depositRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (h *PaymentHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.FromContext(r.Context())
	if !ok {
		response.Err(w, xerrors.New(xerrors.ErrUnauthorized, "missing bearer token"))
		return
	}
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, xerrors.New(xerrors.ErrBadRequest, "invalid request body"))
		return
	}

	res, err := h.engine.InitiateDeposit(r.Context(), actor, settlement.DepositRequest{
		Provider:    chi.URLParam(r, "provider"),
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		response.Err(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, map[string]any{
		"transaction_id": res.Transaction.ID,
		"status":         res.Transaction.Status,
		"payment_url":    res.PaymentURL,
	})
}

type withdrawRequest struct {
	PaymentMethodID uuid.UUID       `json:"payment_method_id"`
	Amount          decimal.Decimal `json:"amount"`
	Fee             decimal.Decimal `json:"fee"`
	Description     string          `json:"description"`
}

func (h *PaymentHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.FromContext(r.Context())
	if !ok {
		response.Err(w, xerrors.New(xerrors.ErrUnauthorized, "missing bearer token"))
		return
	}
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, xerrors.New(xerrors.ErrBadRequest, "invalid request body"))
		return
	}

	txn, err := h.engine.InitiateWithdrawal(r.Context(), actor, settlement.WithdrawRequest{
		Provider:        chi.URLParam(r, "provider"),
		PaymentMethodID: req.PaymentMethodID,
		Amount:          req.Amount,
		Fee:             req.Fee,
		Description:     req.Description,
	})
	if err != nil {
		response.Err(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, txn)
}

// DepositIPN receives the provider's server-to-server deposit notification.
// The body/query is provider-specific; verification happens in the adapter.
func (h *PaymentHandler) DepositIPN(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, err := h.gateways.Get(name)
	if err != nil {
		response.Err(w, err)
		return
	}
	res, err := provider.ProcessCallback(r)
	if err != nil {
		h.logger.Warn("rejected deposit ipn", zap.String("provider", name), zap.Error(err))
		response.Err(w, err)
		return
	}
	if err := h.engine.HandleDepositCallback(r.Context(), provider.Name(), res); err != nil {
		response.Err(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"RspCode": "00", "Message": "Confirm Success"})
}

func (h *PaymentHandler) WithdrawIPN(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, err := h.gateways.Get(name)
	if err != nil {
		response.Err(w, err)
		return
	}
	res, err := provider.ProcessCallback(r)
	if err != nil {
		h.logger.Warn("rejected withdrawal ipn", zap.String("provider", name), zap.Error(err))
		response.Err(w, err)
		return
	}
	if err := h.engine.HandleWithdrawalCallback(r.Context(), provider.Name(), res); err != nil {
		response.Err(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"RspCode": "00", "Message": "Confirm Success"})
}
