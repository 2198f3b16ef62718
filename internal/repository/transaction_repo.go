package repository

import (
	"context"
	"errors"
	"fmt"

	"wallet-service/internal/domain"
	"wallet-service/pkg/xerrors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionFilter narrows ListByWallet. Zero values mean "any".
type TransactionFilter struct {
	Type   domain.TransactionType
	Status *domain.TransactionStatus
	Limit  int
	Offset int
}

type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error
	Update(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)

	// LockByID acquires a row-level exclusive lock scoped to tx.
	LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error)

	ListByWallet(ctx context.Context, walletID uuid.UUID, f TransactionFilter) ([]*domain.Transaction, error)
}

type transactionRepo struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) TransactionRepository {
	return &transactionRepo{db: db}
}

const txnColumns = `id, wallet_id, payment_method_id, related_id, amount, fee, net_amount,
	balance_before, balance_after, type, status, description,
	provider_txn_id, provider_response, ip_address, created_at, updated_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.ID, &t.WalletID, &t.PaymentMethodID, &t.RelatedID,
		&t.Amount, &t.Fee, &t.NetAmount, &t.BalanceBefore, &t.BalanceAfter,
		&t.Type, &t.Status, &t.Description,
		&t.ProviderTxnID, &t.ProviderResponse, &t.IPAddress, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.New(xerrors.ErrNotFound, "transaction not found")
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return &t, nil
}

func (r *transactionRepo) Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	txn.Recalc()
	query := `INSERT INTO transactions
			  (id, wallet_id, payment_method_id, related_id, amount, fee, net_amount,
			   balance_before, balance_after, type, status, description,
			   provider_txn_id, provider_response, ip_address)
			  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			  RETURNING created_at, updated_at`
	err := tx.QueryRow(ctx, query,
		txn.ID, txn.WalletID, txn.PaymentMethodID, txn.RelatedID,
		txn.Amount, txn.Fee, txn.NetAmount, txn.BalanceBefore, txn.BalanceAfter,
		txn.Type, txn.Status, txn.Description,
		txn.ProviderTxnID, txn.ProviderResponse, txn.IPAddress,
	).Scan(&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *transactionRepo) Update(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	txn.Recalc()
	query := `UPDATE transactions
			  SET amount = $1, fee = $2, net_amount = $3,
				  balance_before = $4, balance_after = $5, status = $6,
				  description = $7, provider_txn_id = $8, provider_response = $9,
				  updated_at = NOW()
			  WHERE id = $10`
	ct, err := tx.Exec(ctx, query,
		txn.Amount, txn.Fee, txn.NetAmount,
		txn.BalanceBefore, txn.BalanceAfter, txn.Status,
		txn.Description, txn.ProviderTxnID, txn.ProviderResponse, txn.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return xerrors.New(xerrors.ErrNotFound, "transaction not found")
	}
	return nil
}

func (r *transactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + txnColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.db.QueryRow(ctx, query, id))
}

func (r *transactionRepo) LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + txnColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return scanTransaction(tx.QueryRow(ctx, query, id))
}

func (r *transactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, f TransactionFilter) ([]*domain.Transaction, error) {
	query := `SELECT ` + txnColumns + ` FROM transactions WHERE wallet_id = $1`
	args := []any{walletID}
	if f.Type != 0 {
		args = append(args, f.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
