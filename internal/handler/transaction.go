package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"wallet-service/internal/domain"
	"wallet-service/internal/middleware"
	"wallet-service/internal/repository"
	"wallet-service/internal/usecase/settlement"
	"wallet-service/internal/usecase/wallet"
	"wallet-service/pkg/response"
	"wallet-service/pkg/xerrors"

	"github.com/shopspring/decimal"
)

type TransactionHandler struct {
	engine  *settlement.Engine
	wallets *wallet.Service
}

func NewTransactionHandler(engine *settlement.Engine, wallets *wallet.Service) *TransactionHandler {
	return &TransactionHandler{engine: engine, wallets: wallets}
}

type transferRequest struct {
	ToWalletNumber string          `json:"to_wallet_number"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	PIN            string          `json:"pin"`
	SecretKey      string          `json:"secret_key"`
}

func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.FromContext(r.Context())
	if !ok {
		response.Err(w, xerrors.New(xerrors.ErrUnauthorized, "missing bearer token"))
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, xerrors.New(xerrors.ErrBadRequest, "invalid request body"))
		return
	}

	res, err := h.engine.Transfer(r.Context(), actor, settlement.TransferRequest{
		ToWalletNumber: req.ToWalletNumber,
		Amount:         req.Amount,
		Description:    req.Description,
		PIN:            req.PIN,
		SecretKey:      req.SecretKey,
	})
	if err != nil {
		response.Err(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, map[string]any{
		"outgoing": res.Outgoing,
		"incoming": res.Incoming,
	})
}

type secretKeyRequest struct {
	PIN string `json:"pin"`
}

func (h *TransactionHandler) IssueSecretKey(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.FromContext(r.Context())
	if !ok {
		response.Err(w, xerrors.New(xerrors.ErrUnauthorized, "missing bearer token"))
		return
	}
	var req secretKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, xerrors.New(xerrors.ErrBadRequest, "invalid request body"))
		return
	}

	key, ttl, err := h.engine.IssueTransferSecretKey(r.Context(), actor, req.PIN)
	if err != nil {
		response.Err(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"secret_key": key,
		"expires_in": int(ttl.Seconds()),
	})
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.FromContext(r.Context())
	if !ok {
		response.Err(w, xerrors.New(xerrors.ErrUnauthorized, "missing bearer token"))
		return
	}

	f := repository.TransactionFilter{Limit: 20}
	q := r.URL.Query()
	if v := q.Get("type"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.Err(w, xerrors.New(xerrors.ErrBadRequest, "invalid type filter"))
			return
		}
		f.Type = domain.TransactionType(n)
	}
	if v := q.Get("status"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.Err(w, xerrors.New(xerrors.ErrBadRequest, "invalid status filter"))
			return
		}
		st := domain.TransactionStatus(n)
		f.Status = &st
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			f.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			f.Offset = n
		}
	}

	txns, err := h.wallets.ListTransactions(r.Context(), actor.UserID, f)
	if err != nil {
		response.Err(w, err)
		return
	}
	response.JSON(w, http.StatusOK, txns)
}
