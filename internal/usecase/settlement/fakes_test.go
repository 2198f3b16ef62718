package settlement

import (
	"context"
	"net/http"
	"sync"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/internal/gateway"
	"wallet-service/internal/repository"
	"wallet-service/pkg/xerrors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// memDB is an in-memory stand-in for the database. Row locks are real
// mutexes held for the duration of a memTx, so lock-ordering behavior is
// exercised for real in the concurrency tests.
type memDB struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*domain.Wallet
	txns    map[uuid.UUID]*domain.Transaction
	txnSeq  []uuid.UUID
	methods map[uuid.UUID]*domain.PaymentMethod

	walletLocks map[uuid.UUID]*sync.Mutex
	txnLocks    map[uuid.UUID]*sync.Mutex
}

func newMemDB() *memDB {
	return &memDB{
		wallets:     make(map[uuid.UUID]*domain.Wallet),
		txns:        make(map[uuid.UUID]*domain.Transaction),
		methods:     make(map[uuid.UUID]*domain.PaymentMethod),
		walletLocks: make(map[uuid.UUID]*sync.Mutex),
		txnLocks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

func (db *memDB) walletLock(id uuid.UUID) *sync.Mutex {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.walletLocks[id]; !ok {
		db.walletLocks[id] = &sync.Mutex{}
	}
	return db.walletLocks[id]
}

func (db *memDB) txnLock(id uuid.UUID) *sync.Mutex {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.txnLocks[id]; !ok {
		db.txnLocks[id] = &sync.Mutex{}
	}
	return db.txnLocks[id]
}

func (db *memDB) addWallet(w *domain.Wallet) {
	db.mu.Lock()
	defer db.mu.Unlock()
	cp := *w
	db.wallets[w.ID] = &cp
}

func (db *memDB) walletByID(id uuid.UUID) *domain.Wallet {
	db.mu.Lock()
	defer db.mu.Unlock()
	if w, ok := db.wallets[id]; ok {
		cp := *w
		return &cp
	}
	return nil
}

func (db *memDB) txnByID(id uuid.UUID) *domain.Transaction {
	db.mu.Lock()
	defer db.mu.Unlock()
	if t, ok := db.txns[id]; ok {
		cp := *t
		return &cp
	}
	return nil
}

// memTx embeds the pgx.Tx interface so it satisfies the repository
// signatures; the engine only ever passes it back to the fakes.
type memTx struct {
	pgx.Tx
	db   *memDB
	held []*sync.Mutex
}

type memStore struct {
	db *memDB
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx := &memTx{db: s.db}
	err := fn(ctx, tx)
	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.held[i].Unlock()
	}
	return err
}

type memWalletRepo struct {
	db *memDB
}

func (r *memWalletRepo) Create(_ context.Context, w *domain.Wallet) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.CreatedAt = time.Now()
	w.UpdatedAt = w.CreatedAt
	r.db.addWallet(w)
	return nil
}

func (r *memWalletRepo) findLocked(pred func(*domain.Wallet) bool) (*domain.Wallet, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, w := range r.db.wallets {
		if pred(w) {
			cp := *w
			return &cp, nil
		}
	}
	return nil, xerrors.New(xerrors.ErrNotFound, "wallet not found")
}

func (r *memWalletRepo) FindByUserID(_ context.Context, userID int64) (*domain.Wallet, error) {
	return r.findLocked(func(w *domain.Wallet) bool { return w.UserID == userID })
}

func (r *memWalletRepo) FindByNumber(_ context.Context, number string) (*domain.Wallet, error) {
	return r.findLocked(func(w *domain.Wallet) bool { return w.Number == number })
}

func (r *memWalletRepo) lock(tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	mtx := r.db.walletLock(id)
	mtx.Lock()
	tx.(*memTx).held = append(tx.(*memTx).held, mtx)
	w := r.db.walletByID(id)
	if w == nil {
		return nil, xerrors.New(xerrors.ErrNotFound, "wallet not found")
	}
	return w, nil
}

func (r *memWalletRepo) LockByUserID(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Wallet, error) {
	w, err := r.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.lock(tx, w.ID)
}

func (r *memWalletRepo) LockByNumber(ctx context.Context, tx pgx.Tx, number string) (*domain.Wallet, error) {
	w, err := r.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return r.lock(tx, w.ID)
}

func (r *memWalletRepo) LockByID(_ context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	return r.lock(tx, id)
}

func (r *memWalletRepo) AdjustBalance(_ context.Context, _ pgx.Tx, w *domain.Wallet, delta decimal.Decimal) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.wallets[w.ID]
	if !ok {
		return xerrors.New(xerrors.ErrNotFound, "wallet not found")
	}
	next := stored.Balance.Add(delta)
	if next.IsNegative() {
		return xerrors.New(xerrors.ErrBadRequest, "insufficient balance")
	}
	stored.Balance = next
	w.Balance = next
	return nil
}

func (r *memWalletRepo) SetPIN(_ context.Context, id uuid.UUID, pinHash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.wallets[id]
	if !ok {
		return xerrors.New(xerrors.ErrNotFound, "wallet not found")
	}
	stored.PIN = &pinHash
	return nil
}

type memTxnRepo struct {
	db *memDB
}

func (r *memTxnRepo) Create(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	txn.Recalc()
	txn.CreatedAt = time.Now()
	txn.UpdatedAt = txn.CreatedAt
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *txn
	r.db.txns[txn.ID] = &cp
	r.db.txnSeq = append(r.db.txnSeq, txn.ID)
	return nil
}

func (r *memTxnRepo) Update(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
	txn.Recalc()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.txns[txn.ID]; !ok {
		return xerrors.New(xerrors.ErrNotFound, "transaction not found")
	}
	cp := *txn
	cp.UpdatedAt = time.Now()
	r.db.txns[txn.ID] = &cp
	return nil
}

func (r *memTxnRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	if t := r.db.txnByID(id); t != nil {
		return t, nil
	}
	return nil, xerrors.New(xerrors.ErrNotFound, "transaction not found")
}

func (r *memTxnRepo) LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	mtx := r.db.txnLock(id)
	mtx.Lock()
	tx.(*memTx).held = append(tx.(*memTx).held, mtx)
	return r.FindByID(ctx, id)
}

func (r *memTxnRepo) ListByWallet(_ context.Context, walletID uuid.UUID, f repository.TransactionFilter) ([]*domain.Transaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*domain.Transaction
	for i := len(r.db.txnSeq) - 1; i >= 0; i-- {
		t := r.db.txns[r.db.txnSeq[i]]
		if t.WalletID != walletID {
			continue
		}
		if f.Type != 0 && t.Type != f.Type {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		cp := *t
		out = append(out, &cp)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

type memMethodRepo struct {
	db *memDB
}

func (r *memMethodRepo) Create(_ context.Context, m *domain.PaymentMethod) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *m
	r.db.methods[m.ID] = &cp
	return nil
}

func (r *memMethodRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.PaymentMethod, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if m, ok := r.db.methods[id]; ok && m.Deleted == nil {
		cp := *m
		return &cp, nil
	}
	return nil, xerrors.New(xerrors.ErrNotFound, "payment method not found")
}

func (r *memMethodRepo) FindActiveOwner(_ context.Context, provider, accountNumber string) (*domain.PaymentMethod, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, m := range r.db.methods {
		if m.Deleted == nil && m.Provider == provider && m.AccountNumber == accountNumber {
			cp := *m
			return &cp, nil
		}
	}
	return nil, xerrors.New(xerrors.ErrNotFound, "payment method not found")
}

func (r *memMethodRepo) FindSoftDeleted(_ context.Context, walletID uuid.UUID, provider, accountNumber string) (*domain.PaymentMethod, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, m := range r.db.methods {
		if m.Deleted != nil && m.WalletID == walletID && m.Provider == provider && m.AccountNumber == accountNumber {
			cp := *m
			return &cp, nil
		}
	}
	return nil, xerrors.New(xerrors.ErrNotFound, "payment method not found")
}

func (r *memMethodRepo) Restore(_ context.Context, m *domain.PaymentMethod) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.methods[m.ID]; !ok {
		return xerrors.New(xerrors.ErrNotFound, "payment method not found")
	}
	cp := *m
	cp.Deleted = nil
	r.db.methods[m.ID] = &cp
	m.Deleted = nil
	return nil
}

func (r *memMethodRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.methods[id]
	if !ok || stored.Deleted != nil {
		return xerrors.New(xerrors.ErrNotFound, "payment method not found")
	}
	now := time.Now()
	stored.Deleted = &now
	return nil
}

func (r *memMethodRepo) ListByWallet(_ context.Context, walletID uuid.UUID) ([]*domain.PaymentMethod, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*domain.PaymentMethod
	for _, m := range r.db.methods {
		if m.Deleted == nil && m.WalletID == walletID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memSecretRepo struct {
	mu   sync.Mutex
	keys map[int64]string
}

func newMemSecretRepo() *memSecretRepo {
	return &memSecretRepo{keys: make(map[int64]string)}
}

func (r *memSecretRepo) Save(_ context.Context, userID int64, key string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[userID] = key
	return nil
}

func (r *memSecretRepo) Consume(_ context.Context, userID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.keys[userID]
	delete(r.keys, userID)
	return key, nil
}

func (r *memSecretRepo) Revoke(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, userID)
	return nil
}

type memLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemLimiter() *memLimiter {
	return &memLimiter{counts: make(map[string]int64)}
}

func (r *memLimiter) Allow(_ context.Context, key string, limit int64, _ time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[key]++
	return r.counts[key] <= limit, nil
}

// fakeProvider scripts gateway responses without any network I/O.
type fakeProvider struct {
	name        string
	payURL      string
	payoutID    string
	payoutErr   error
	payoutCalls int
	lastPayment gateway.PaymentRequest
}

func (p *fakeProvider) Name() string {
	if p.name == "" {
		return "fakepay"
	}
	return p.name
}

func (p *fakeProvider) CreatePayment(_ context.Context, req gateway.PaymentRequest) (string, error) {
	p.lastPayment = req
	return p.payURL + "?ref=" + req.TxnID, nil
}

func (p *fakeProvider) InitiatePayout(_ context.Context, _ *domain.Transaction, _ *domain.PaymentMethod) (string, string, error) {
	p.payoutCalls++
	if p.payoutErr != nil {
		return "", `{"vnp_ResponseCode":"99"}`, p.payoutErr
	}
	return p.payoutID, `{"vnp_ResponseCode":"00"}`, nil
}

func (p *fakeProvider) ProcessCallback(_ *http.Request) (*gateway.CallbackResult, error) {
	return nil, xerrors.New(xerrors.ErrInternal, "not used in tests")
}
