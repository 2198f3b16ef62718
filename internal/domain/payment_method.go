package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentMethodType int

const (
	MethodBankAccount PaymentMethodType = 1
	MethodCreditCard  PaymentMethodType = 2
	MethodEWallet     PaymentMethodType = 3
)

type PaymentMethod struct {
	ID            uuid.UUID
	WalletID      uuid.UUID
	Type          PaymentMethodType
	Provider      string
	AccountName   string
	AccountNumber string
	ExpiredAt     *time.Time
	IsDefault     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Deleted       *time.Time
}
