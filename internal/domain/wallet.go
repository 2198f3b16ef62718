package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletStatus int

const (
	WalletSuspended WalletStatus = -1
	WalletClosed    WalletStatus = -2
	WalletInactive  WalletStatus = 0
	WalletActive    WalletStatus = 1
)

const DefaultCurrency = "VND"

// Wallet is the single-currency balance holder for one user. The balance is
// only ever mutated through the settlement engine while the row is locked.
type Wallet struct {
	ID        uuid.UUID
	UserID    int64
	Number    string
	Balance   decimal.Decimal
	Currency  string
	Status    WalletStatus
	PIN       *string // bcrypt hash, nil until the user sets one
	CreatedAt time.Time
	UpdatedAt time.Time
	Deleted   *time.Time
}

func (w *Wallet) Active() bool {
	return w.Status == WalletActive
}
