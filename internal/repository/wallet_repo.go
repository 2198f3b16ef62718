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
	"github.com/shopspring/decimal"
)

type WalletRepository interface {
	Create(ctx context.Context, w *domain.Wallet) error
	FindByUserID(ctx context.Context, userID int64) (*domain.Wallet, error)
	FindByNumber(ctx context.Context, number string) (*domain.Wallet, error)

	// Lock variants acquire a row-level exclusive lock scoped to tx.
	LockByUserID(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Wallet, error)
	LockByNumber(ctx context.Context, tx pgx.Tx, number string) (*domain.Wallet, error)
	LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)

	// AdjustBalance applies balance += delta to an already-locked wallet and
	// rejects any delta that would make the balance negative.
	AdjustBalance(ctx context.Context, tx pgx.Tx, w *domain.Wallet, delta decimal.Decimal) error

	SetPIN(ctx context.Context, id uuid.UUID, pinHash string) error
}

type walletRepo struct {
	db *pgxpool.Pool
}

func NewWalletRepository(db *pgxpool.Pool) WalletRepository {
	return &walletRepo{db: db}
}

const walletColumns = `id, user_id, number, balance, currency, status, pin, created_at, updated_at, deleted_at`

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Number, &w.Balance, &w.Currency, &w.Status,
		&w.PIN, &w.CreatedAt, &w.UpdatedAt, &w.Deleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.New(xerrors.ErrNotFound, "wallet not found")
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return &w, nil
}

func (r *walletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, user_id, number, balance, currency, status, pin)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING created_at, updated_at`
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, query,
		w.ID, w.UserID, w.Number, w.Balance, w.Currency, w.Status, w.PIN,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if xerrors.ParsePGErrorCode(err) == "23505" {
			return xerrors.New(xerrors.ErrConflict, "wallet already exists for user")
		}
		return fmt.Errorf("create wallet: %w", err)
	}
	return nil
}

func (r *walletRepo) FindByUserID(ctx context.Context, userID int64) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND deleted_at IS NULL`
	return scanWallet(r.db.QueryRow(ctx, query, userID))
}

func (r *walletRepo) FindByNumber(ctx context.Context, number string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE number = $1 AND deleted_at IS NULL`
	return scanWallet(r.db.QueryRow(ctx, query, number))
}

func (r *walletRepo) LockByUserID(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND deleted_at IS NULL FOR UPDATE`
	return scanWallet(tx.QueryRow(ctx, query, userID))
}

func (r *walletRepo) LockByNumber(ctx context.Context, tx pgx.Tx, number string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE number = $1 AND deleted_at IS NULL FOR UPDATE`
	return scanWallet(tx.QueryRow(ctx, query, number))
}

func (r *walletRepo) LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	return scanWallet(tx.QueryRow(ctx, query, id))
}

func (r *walletRepo) AdjustBalance(ctx context.Context, tx pgx.Tx, w *domain.Wallet, delta decimal.Decimal) error {
	next := w.Balance.Add(delta)
	if next.IsNegative() {
		return xerrors.New(xerrors.ErrBadRequest, "insufficient balance")
	}
	query := `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`
	ct, err := tx.Exec(ctx, query, next, w.ID)
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return xerrors.New(xerrors.ErrNotFound, "wallet not found")
	}
	w.Balance = next
	return nil
}

func (r *walletRepo) SetPIN(ctx context.Context, id uuid.UUID, pinHash string) error {
	query := `UPDATE wallets SET pin = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`
	ct, err := r.db.Exec(ctx, query, pinHash, id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return xerrors.New(xerrors.ErrNotFound, "wallet not found")
	}
	return nil
}
