package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType int

const (
	TypeDeposit     TransactionType = 1
	TypeWithdrawal  TransactionType = 2
	TypeTransferOut TransactionType = 3
	TypeTransferIn  TransactionType = 4
	TypePayment     TransactionType = 5
)

type TransactionStatus int

const (
	StatusFailed    TransactionStatus = -1
	StatusCancelled TransactionStatus = -2
	StatusPending   TransactionStatus = 0
	StatusCompleted TransactionStatus = 1
	StatusReviewing TransactionStatus = 2
)

// Terminal reports whether no further transition is permitted.
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type Transaction struct {
	ID               uuid.UUID
	WalletID         uuid.UUID
	PaymentMethodID  *uuid.UUID
	RelatedID        *uuid.UUID // links TRANSFER_IN back to its TRANSFER_OUT leg
	Amount           decimal.Decimal
	Fee              decimal.Decimal
	NetAmount        decimal.Decimal
	BalanceBefore    decimal.Decimal
	BalanceAfter     decimal.NullDecimal // unset until the row settles
	Type             TransactionType
	Status           TransactionStatus
	Description      string
	ProviderTxnID    *string
	ProviderResponse *string
	IPAddress        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Recalc keeps the net amount consistent with amount and fee. Repositories
// call it on every write.
func (t *Transaction) Recalc() {
	t.NetAmount = t.Amount.Sub(t.Fee)
}

// SignedEffect is the delta the transaction applied to its wallet's balance
// once COMPLETED: credits are positive, debits negative.
func (t *Transaction) SignedEffect() decimal.Decimal {
	switch t.Type {
	case TypeWithdrawal, TypeTransferOut, TypePayment:
		return t.Amount.Neg()
	default:
		return t.Amount
	}
}
