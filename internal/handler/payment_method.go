package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/internal/middleware"
	"wallet-service/internal/usecase/paymentmethod"
	"wallet-service/pkg/response"
	"wallet-service/pkg/xerrors"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type PaymentMethodHandler struct {
	methods *paymentmethod.Service
}

func NewPaymentMethodHandler(methods *paymentmethod.Service) *PaymentMethodHandler {
	return &PaymentMethodHandler{methods: methods}
}

type linkMethodRequest struct {
	Type          domain.PaymentMethodType `json:"type"`
	Provider      string                   `json:"provider"`
	AccountName   string                   `json:"account_name"`
	AccountNumber string                   `json:"account_number"`
	ExpiredAt     *time.Time               `json:"expired_at"`
	IsDefault     bool                     `json:"is_default"`
}

func (h *PaymentMethodHandler) Link(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.FromContext(r.Context())
	if !ok {
		response.Err(w, xerrors.New(xerrors.ErrUnauthorized, "missing bearer token"))
		return
	}
	var req linkMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, xerrors.New(xerrors.ErrBadRequest, "invalid request body"))
		return
	}

	m, err := h.methods.Link(r.Context(), actor.UserID, paymentmethod.LinkRequest{
		Type:          req.Type,
		Provider:      req.Provider,
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		ExpiredAt:     req.ExpiredAt,
		IsDefault:     req.IsDefault,
	})
	if err != nil {
		response.Err(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, m)
}

func (h *PaymentMethodHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.FromContext(r.Context())
	if !ok {
		response.Err(w, xerrors.New(xerrors.ErrUnauthorized, "missing bearer token"))
		return
	}
	methodID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, xerrors.New(xerrors.ErrBadRequest, "invalid payment method id"))
		return
	}
	if err := h.methods.Unlink(r.Context(), actor.UserID, methodID); err != nil {
		response.Err(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"message": "payment method removed"})
}

func (h *PaymentMethodHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.FromContext(r.Context())
	if !ok {
		response.Err(w, xerrors.New(xerrors.ErrUnauthorized, "missing bearer token"))
		return
	}
	methods, err := h.methods.List(r.Context(), actor.UserID)
	if err != nil {
		response.Err(w, err)
		return
	}
	response.JSON(w, http.StatusOK, methods)
}
