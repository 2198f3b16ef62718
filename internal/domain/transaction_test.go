package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRecalc(t *testing.T) {
	txn := &Transaction{
		Amount: decimal.RequireFromString("100"),
		Fee:    decimal.RequireFromString("2.5"),
	}
	txn.Recalc()
	if !txn.NetAmount.Equal(decimal.RequireFromString("97.5")) {
		t.Fatalf("NetAmount = %s, want 97.5", txn.NetAmount)
	}
}

func TestTerminalStatuses(t *testing.T) {
	cases := []struct {
		status TransactionStatus
		want   bool
	}{
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
		{StatusPending, false},
		{StatusReviewing, false},
	}
	for _, c := range cases {
		if got := c.status.Terminal(); got != c.want {
			t.Errorf("Terminal(%d) = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestSignedEffect(t *testing.T) {
	amount := decimal.RequireFromString("100")
	cases := []struct {
		typ  TransactionType
		want string
	}{
		{TypeDeposit, "100"},
		{TypeTransferIn, "100"},
		{TypeWithdrawal, "-100"},
		{TypeTransferOut, "-100"},
		{TypePayment, "-100"},
	}
	for _, c := range cases {
		txn := &Transaction{Type: c.typ, Amount: amount}
		if got := txn.SignedEffect(); !got.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("SignedEffect(type %d) = %s, want %s", c.typ, got, c.want)
		}
	}
}

func TestWalletActive(t *testing.T) {
	for _, c := range []struct {
		status WalletStatus
		want   bool
	}{
		{WalletActive, true},
		{WalletInactive, false},
		{WalletSuspended, false},
		{WalletClosed, false},
	} {
		w := &Wallet{Status: c.status}
		if got := w.Active(); got != c.want {
			t.Errorf("Active(status %d) = %v, want %v", c.status, got, c.want)
		}
	}
}
