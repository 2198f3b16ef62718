package handler

import (
	"encoding/json"
	"net/http"

	"wallet-service/internal/middleware"
	"wallet-service/internal/usecase/wallet"
	"wallet-service/pkg/response"
	"wallet-service/pkg/xerrors"
)

type WalletHandler struct {
	wallets *wallet.Service
}

func NewWalletHandler(wallets *wallet.Service) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

func (h *WalletHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.FromContext(r.Context())
	if !ok {
		response.Err(w, xerrors.New(xerrors.ErrUnauthorized, "missing bearer token"))
		return
	}
	detail, err := h.wallets.GetDetail(r.Context(), actor.UserID)
	if err != nil {
		response.Err(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"wallet":              detail.Wallet,
		"recent_transactions": detail.Transactions,
	})
}

type setPINRequest struct {
	PIN string `json:"pin"`
}

func (h *WalletHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.FromContext(r.Context())
	if !ok {
		response.Err(w, xerrors.New(xerrors.ErrUnauthorized, "missing bearer token"))
		return
	}
	var req setPINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, xerrors.New(xerrors.ErrBadRequest, "invalid request body"))
		return
	}
	if err := h.wallets.SetPIN(r.Context(), actor.UserID, req.PIN); err != nil {
		response.Err(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"message": "PIN updated"})
}
