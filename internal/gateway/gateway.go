package gateway

import (
	"context"
	"net/http"
	"strings"

	"wallet-service/internal/domain"
	"wallet-service/pkg/xerrors"

	"github.com/shopspring/decimal"
)

// PaymentRequest carries everything a provider needs to build a hosted
// payment page for a pending deposit. CallbackURL is this service's IPN
// endpoint for the provider; ReturnURL is where the user's browser lands.
type PaymentRequest struct {
	TxnID       string
	Amount      decimal.Decimal
	OrderInfo   string
	ClientIP    string
	ReturnURL   string
	CallbackURL string
}

// CallbackResult is the provider-neutral outcome of a verified callback.
type CallbackResult struct {
	TxnID         string
	Amount        decimal.Decimal
	Success       bool
	ProviderTxnID string
	ResponseCode  string
	Message       string
	RawResponse   string
}

// Provider is one external payment gateway. Implementations own signing,
// wire formats and callback verification for their provider.
type Provider interface {
	Name() string

	// CreatePayment returns the URL the user is redirected to.
	CreatePayment(ctx context.Context, req PaymentRequest) (string, error)

	// InitiatePayout asks the provider to disburse a withdrawal synchronously.
	InitiatePayout(ctx context.Context, txn *domain.Transaction, method *domain.PaymentMethod) (providerTxnID string, raw string, err error)

	// ProcessCallback verifies the signature of an incoming notification and
	// extracts its outcome. A bad signature is an error, a declined payment
	// is a result with Success=false.
	ProcessCallback(r *http.Request) (*CallbackResult, error)
}

// Registry resolves providers by case-insensitive name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[strings.ToLower(p.Name())] = p
	}
	return &Registry{providers: m}
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, xerrors.Newf(xerrors.ErrBadRequest, "payment gateway %q is not supported", name)
	}
	return p, nil
}
