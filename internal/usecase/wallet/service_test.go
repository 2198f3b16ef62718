package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/internal/repository"
	"wallet-service/pkg/xerrors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type stubWalletRepo struct {
	byUser map[int64]*domain.Wallet
	pins   map[uuid.UUID]string
}

func newStubWalletRepo() *stubWalletRepo {
	return &stubWalletRepo{
		byUser: make(map[int64]*domain.Wallet),
		pins:   make(map[uuid.UUID]string),
	}
}

func (r *stubWalletRepo) Create(_ context.Context, w *domain.Wallet) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	r.byUser[w.UserID] = w
	return nil
}

func (r *stubWalletRepo) FindByUserID(_ context.Context, userID int64) (*domain.Wallet, error) {
	if w, ok := r.byUser[userID]; ok {
		return w, nil
	}
	return nil, xerrors.New(xerrors.ErrNotFound, "wallet not found")
}

func (r *stubWalletRepo) FindByNumber(_ context.Context, number string) (*domain.Wallet, error) {
	for _, w := range r.byUser {
		if w.Number == number {
			return w, nil
		}
	}
	return nil, xerrors.New(xerrors.ErrNotFound, "wallet not found")
}

func (r *stubWalletRepo) LockByUserID(context.Context, pgx.Tx, int64) (*domain.Wallet, error) {
	return nil, xerrors.New(xerrors.ErrInternal, "not used")
}

func (r *stubWalletRepo) LockByNumber(context.Context, pgx.Tx, string) (*domain.Wallet, error) {
	return nil, xerrors.New(xerrors.ErrInternal, "not used")
}

func (r *stubWalletRepo) LockByID(context.Context, pgx.Tx, uuid.UUID) (*domain.Wallet, error) {
	return nil, xerrors.New(xerrors.ErrInternal, "not used")
}

func (r *stubWalletRepo) AdjustBalance(context.Context, pgx.Tx, *domain.Wallet, decimal.Decimal) error {
	return xerrors.New(xerrors.ErrInternal, "not used")
}

func (r *stubWalletRepo) SetPIN(_ context.Context, id uuid.UUID, pinHash string) error {
	r.pins[id] = pinHash
	return nil
}

type stubTxnRepo struct {
	byWallet map[uuid.UUID][]*domain.Transaction
	lastF    repository.TransactionFilter
}

func newStubTxnRepo() *stubTxnRepo {
	return &stubTxnRepo{byWallet: make(map[uuid.UUID][]*domain.Transaction)}
}

func (r *stubTxnRepo) Create(context.Context, pgx.Tx, *domain.Transaction) error { return nil }
func (r *stubTxnRepo) Update(context.Context, pgx.Tx, *domain.Transaction) error { return nil }

func (r *stubTxnRepo) FindByID(context.Context, uuid.UUID) (*domain.Transaction, error) {
	return nil, xerrors.New(xerrors.ErrNotFound, "transaction not found")
}

func (r *stubTxnRepo) LockByID(context.Context, pgx.Tx, uuid.UUID) (*domain.Transaction, error) {
	return nil, xerrors.New(xerrors.ErrInternal, "not used")
}

func (r *stubTxnRepo) ListByWallet(_ context.Context, walletID uuid.UUID, f repository.TransactionFilter) ([]*domain.Transaction, error) {
	r.lastF = f
	txns := r.byWallet[walletID]
	if f.Limit > 0 && len(txns) > f.Limit {
		txns = txns[:f.Limit]
	}
	return txns, nil
}

type stubSecretRepo struct {
	keys map[int64]string
}

func newStubSecretRepo() *stubSecretRepo {
	return &stubSecretRepo{keys: make(map[int64]string)}
}

func (r *stubSecretRepo) Save(_ context.Context, userID int64, key string, _ time.Duration) error {
	r.keys[userID] = key
	return nil
}

func (r *stubSecretRepo) Consume(_ context.Context, userID int64) (string, error) {
	key := r.keys[userID]
	delete(r.keys, userID)
	return key, nil
}

func (r *stubSecretRepo) Revoke(_ context.Context, userID int64) error {
	delete(r.keys, userID)
	return nil
}

func newTestService() (*Service, *stubWalletRepo, *stubTxnRepo, *stubSecretRepo) {
	wallets := newStubWalletRepo()
	txns := newStubTxnRepo()
	secrets := newStubSecretRepo()
	return NewService(wallets, txns, secrets, zap.NewNop()), wallets, txns, secrets
}

func TestGetOrCreateProvisionsActiveWallet(t *testing.T) {
	svc, repo, _, _ := newTestService()

	w, err := svc.GetOrCreate(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if w.Status != domain.WalletActive {
		t.Fatalf("status = %d, want ACTIVE", w.Status)
	}
	if !w.Balance.IsZero() {
		t.Fatalf("new wallet balance = %s, want 0", w.Balance)
	}
	if w.Currency != domain.DefaultCurrency {
		t.Fatalf("currency = %q", w.Currency)
	}
	if w.Number == "" {
		t.Fatal("wallet number not assigned")
	}

	again, err := svc.GetOrCreate(context.Background(), 42)
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if again.ID != w.ID {
		t.Fatal("second call created a new wallet")
	}
	if len(repo.byUser) != 1 {
		t.Fatalf("wallet count = %d, want 1", len(repo.byUser))
	}
}

func TestGetDetailLimitsRecentTransactions(t *testing.T) {
	svc, _, txns, _ := newTestService()

	w, err := svc.GetOrCreate(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	for i := 0; i < 15; i++ {
		txns.byWallet[w.ID] = append(txns.byWallet[w.ID], &domain.Transaction{ID: uuid.New(), WalletID: w.ID})
	}

	detail, err := svc.GetDetail(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetDetail: %v", err)
	}
	if len(detail.Transactions) != recentTransactions {
		t.Fatalf("transactions = %d, want %d", len(detail.Transactions), recentTransactions)
	}
}

func TestSetPINStoresBcryptHash(t *testing.T) {
	svc, repo, _, _ := newTestService()

	if err := svc.SetPIN(context.Background(), 1, "123456"); err != nil {
		t.Fatalf("SetPIN: %v", err)
	}
	w := repo.byUser[1]
	hash, ok := repo.pins[w.ID]
	if !ok {
		t.Fatal("PIN not stored")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("123456")); err != nil {
		t.Fatalf("stored hash does not match PIN: %v", err)
	}
}

func TestSetPINValidation(t *testing.T) {
	svc, _, _, _ := newTestService()

	for _, pin := range []string{"", "12345", "1234567", "12345a", "abcdef"} {
		err := svc.SetPIN(context.Background(), 1, pin)
		if !errors.Is(err, xerrors.ErrBadRequest) {
			t.Errorf("SetPIN(%q) err = %v, want bad request", pin, err)
		}
	}
}

func TestSetPINRevokesOutstandingSecretKey(t *testing.T) {
	svc, _, _, secrets := newTestService()

	if err := svc.SetPIN(context.Background(), 7, "111111"); err != nil {
		t.Fatalf("SetPIN: %v", err)
	}
	secrets.keys[7] = "old-key"

	if err := svc.SetPIN(context.Background(), 7, "222222"); err != nil {
		t.Fatalf("second SetPIN: %v", err)
	}
	if _, ok := secrets.keys[7]; ok {
		t.Fatal("secret key survived a PIN change")
	}
}
