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

type PaymentMethodRepository interface {
	Create(ctx context.Context, m *domain.PaymentMethod) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error)

	// FindActiveOwner returns the live method holding (provider, accountNumber)
	// regardless of which wallet owns it.
	FindActiveOwner(ctx context.Context, provider, accountNumber string) (*domain.PaymentMethod, error)

	// FindSoftDeleted returns a previously unlinked method for the same wallet
	// and account so linking again restores it instead of inserting a twin.
	FindSoftDeleted(ctx context.Context, walletID uuid.UUID, provider, accountNumber string) (*domain.PaymentMethod, error)

	Restore(ctx context.Context, m *domain.PaymentMethod) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]*domain.PaymentMethod, error)
}

type paymentMethodRepo struct {
	db *pgxpool.Pool
}

func NewPaymentMethodRepository(db *pgxpool.Pool) PaymentMethodRepository {
	return &paymentMethodRepo{db: db}
}

const methodColumns = `id, wallet_id, type, provider, account_name, account_number,
	expired_at, is_default, created_at, updated_at, deleted_at`

func scanMethod(row pgx.Row) (*domain.PaymentMethod, error) {
	var m domain.PaymentMethod
	err := row.Scan(&m.ID, &m.WalletID, &m.Type, &m.Provider, &m.AccountName,
		&m.AccountNumber, &m.ExpiredAt, &m.IsDefault, &m.CreatedAt, &m.UpdatedAt, &m.Deleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.New(xerrors.ErrNotFound, "payment method not found")
		}
		return nil, fmt.Errorf("scan payment method: %w", err)
	}
	return &m, nil
}

func (r *paymentMethodRepo) Create(ctx context.Context, m *domain.PaymentMethod) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	query := `INSERT INTO payment_methods
			  (id, wallet_id, type, provider, account_name, account_number, expired_at, is_default)
			  VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			  RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		m.ID, m.WalletID, m.Type, m.Provider, m.AccountName, m.AccountNumber,
		m.ExpiredAt, m.IsDefault,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		// Unique (provider, account_number) race with a concurrent link.
		if xerrors.ParsePGErrorCode(err) == "23505" {
			return xerrors.New(xerrors.ErrConflict, "account is already linked to another wallet")
		}
		return fmt.Errorf("create payment method: %w", err)
	}
	return nil
}

func (r *paymentMethodRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error) {
	query := `SELECT ` + methodColumns + ` FROM payment_methods WHERE id = $1 AND deleted_at IS NULL`
	return scanMethod(r.db.QueryRow(ctx, query, id))
}

func (r *paymentMethodRepo) FindActiveOwner(ctx context.Context, provider, accountNumber string) (*domain.PaymentMethod, error) {
	query := `SELECT ` + methodColumns + ` FROM payment_methods
			  WHERE provider = $1 AND account_number = $2 AND deleted_at IS NULL`
	return scanMethod(r.db.QueryRow(ctx, query, provider, accountNumber))
}

func (r *paymentMethodRepo) FindSoftDeleted(ctx context.Context, walletID uuid.UUID, provider, accountNumber string) (*domain.PaymentMethod, error) {
	query := `SELECT ` + methodColumns + ` FROM payment_methods
			  WHERE wallet_id = $1 AND provider = $2 AND account_number = $3 AND deleted_at IS NOT NULL
			  ORDER BY updated_at DESC LIMIT 1`
	return scanMethod(r.db.QueryRow(ctx, query, walletID, provider, accountNumber))
}

func (r *paymentMethodRepo) Restore(ctx context.Context, m *domain.PaymentMethod) error {
	query := `UPDATE payment_methods
			  SET type = $1, account_name = $2, expired_at = $3, is_default = $4,
				  deleted_at = NULL, updated_at = NOW()
			  WHERE id = $5`
	ct, err := r.db.Exec(ctx, query, m.Type, m.AccountName, m.ExpiredAt, m.IsDefault, m.ID)
	if err != nil {
		return fmt.Errorf("restore payment method: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return xerrors.New(xerrors.ErrNotFound, "payment method not found")
	}
	m.Deleted = nil
	return nil
}

func (r *paymentMethodRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE payment_methods SET deleted_at = NOW(), updated_at = NOW()
			  WHERE id = $1 AND deleted_at IS NULL`
	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("soft delete payment method: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return xerrors.New(xerrors.ErrNotFound, "payment method not found")
	}
	return nil
}

func (r *paymentMethodRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]*domain.PaymentMethod, error) {
	query := `SELECT ` + methodColumns + ` FROM payment_methods
			  WHERE wallet_id = $1 AND deleted_at IS NULL
			  ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	var out []*domain.PaymentMethod
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
