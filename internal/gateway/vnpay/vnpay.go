package vnpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/internal/gateway"
	"wallet-service/pkg/xerrors"

	"github.com/shopspring/decimal"
)

const (
	dateFormat  = "20060102150405"
	successCode = "00"
)

// VNPay timestamps are expressed in Indochina time regardless of server TZ.
var vnLocation = time.FixedZone("ICT", 7*60*60)

type Config struct {
	PayURL     string
	PayoutURL  string
	TmnCode    string
	HashSecret string
	Version    string
}

type Gateway struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

func New(cfg Config) *Gateway {
	if cfg.Version == "" {
		cfg.Version = "2.1.0"
	}
	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

func (g *Gateway) Name() string { return "vnpay" }

// CreatePayment builds the signed redirect URL for the hosted payment page.
// VNPay expects the amount in minor units.
func (g *Gateway) CreatePayment(_ context.Context, req gateway.PaymentRequest) (string, error) {
	now := g.now().In(vnLocation)
	params := map[string]string{
		"vnp_Version":    g.cfg.Version,
		"vnp_Command":    "pay",
		"vnp_TmnCode":    g.cfg.TmnCode,
		"vnp_Amount":     req.Amount.Shift(2).StringFixed(0),
		"vnp_CurrCode":   domain.DefaultCurrency,
		"vnp_TxnRef":     req.TxnID,
		"vnp_OrderInfo":  req.OrderInfo,
		"vnp_OrderType":  "other",
		"vnp_Locale":     "vn",
		"vnp_ReturnUrl":  req.ReturnURL,
		"vnp_IpnUrl":     req.CallbackURL,
		"vnp_IpAddr":     req.ClientIP,
		"vnp_CreateDate": now.Format(dateFormat),
		"vnp_ExpireDate": now.Add(15 * time.Minute).Format(dateFormat),
	}
	query := canonicalQuery(params)
	sig := hmacSHA512(g.cfg.HashSecret, query)
	return g.cfg.PayURL + "?" + query + "&vnp_SecureHash=" + sig, nil
}

type payoutRequest struct {
	Version     string `json:"vnp_Version"`
	Command     string `json:"vnp_Command"`
	TmnCode     string `json:"vnp_TmnCode"`
	TxnRef      string `json:"vnp_TxnRef"`
	Amount      string `json:"vnp_Amount"`
	OrderInfo   string `json:"vnp_OrderInfo"`
	BankCode    string `json:"vnp_BankCode"`
	AccountNo   string `json:"vnp_AccountNo"`
	AccountName string `json:"vnp_AccountName"`
	CreateDate  string `json:"vnp_CreateDate"`
	SecureHash  string `json:"vnp_SecureHash"`
}

type payoutResponse struct {
	ResponseCode  string `json:"vnp_ResponseCode"`
	Message       string `json:"vnp_Message"`
	TransactionNo string `json:"vnp_TransactionNo"`
}

// InitiatePayout posts a signed disbursement request. A non-"00" response
// code is a BadRequest carrying the provider's message.
func (g *Gateway) InitiatePayout(ctx context.Context, txn *domain.Transaction, method *domain.PaymentMethod) (string, string, error) {
	req := payoutRequest{
		Version:     g.cfg.Version,
		Command:     "payout",
		TmnCode:     g.cfg.TmnCode,
		TxnRef:      txn.ID.String(),
		Amount:      txn.NetAmount.Shift(2).StringFixed(0),
		OrderInfo:   txn.Description,
		BankCode:    method.Provider,
		AccountNo:   method.AccountNumber,
		AccountName: method.AccountName,
		CreateDate:  g.now().In(vnLocation).Format(dateFormat),
	}
	req.SecureHash = signParams(map[string]string{
		"vnp_Version":     req.Version,
		"vnp_Command":     req.Command,
		"vnp_TmnCode":     req.TmnCode,
		"vnp_TxnRef":      req.TxnRef,
		"vnp_Amount":      req.Amount,
		"vnp_OrderInfo":   req.OrderInfo,
		"vnp_BankCode":    req.BankCode,
		"vnp_AccountNo":   req.AccountNo,
		"vnp_AccountName": req.AccountName,
		"vnp_CreateDate":  req.CreateDate,
	}, g.cfg.HashSecret)

	body, err := json.Marshal(req)
	if err != nil {
		return "", "", fmt.Errorf("marshal payout request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.PayoutURL, bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("build payout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Transport failures (refused, reset, timeout) surface as BadRequest so
	// callers never see a raw transport error.
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", "", xerrors.Newf(xerrors.ErrBadRequest, "withdrawal initiation failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", xerrors.Newf(xerrors.ErrBadRequest, "withdrawal initiation failed: %v", err)
	}

	var out payoutResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", string(raw), xerrors.New(xerrors.ErrBadRequest, "withdrawal initiation failed: malformed gateway response")
	}
	if out.ResponseCode != successCode {
		return "", string(raw), xerrors.Newf(xerrors.ErrBadRequest,
			"payout rejected by vnpay: %s (%s)", out.Message, out.ResponseCode)
	}
	return out.TransactionNo, string(raw), nil
}

// ProcessCallback verifies the notification signature and normalizes the
// payload. Deposit IPNs arrive as query parameters, withdrawal IPNs as form
// fields; both share the vnp_* naming.
func (g *Gateway) ProcessCallback(r *http.Request) (*gateway.CallbackResult, error) {
	if err := r.ParseForm(); err != nil {
		return nil, xerrors.New(xerrors.ErrBadRequest, "malformed callback payload")
	}
	params := make(map[string]string, len(r.Form))
	for k := range r.Form {
		params[k] = r.Form.Get(k)
	}

	sig := params["vnp_SecureHash"]
	if sig == "" || !validSignature(params, g.cfg.HashSecret, sig) {
		return nil, xerrors.New(xerrors.ErrUnauthorized, "invalid callback signature")
	}

	txnRef := params["vnp_TxnRef"]
	if txnRef == "" {
		return nil, xerrors.New(xerrors.ErrBadRequest, "missing transaction reference")
	}

	amount := decimal.Zero
	if raw := params["vnp_Amount"]; raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, xerrors.New(xerrors.ErrBadRequest, "malformed amount")
		}
		amount = parsed.Shift(-2)
	}

	code := params["vnp_ResponseCode"]
	return &gateway.CallbackResult{
		TxnID:         txnRef,
		Amount:        amount,
		Success:       code == successCode,
		ProviderTxnID: params["vnp_TransactionNo"],
		ResponseCode:  code,
		Message:       params["vnp_Message"],
		RawResponse:   url.Values(r.Form).Encode(),
	}, nil
}
