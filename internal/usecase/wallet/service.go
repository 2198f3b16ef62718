package wallet

import (
	"context"
	"errors"

	"wallet-service/internal/domain"
	"wallet-service/internal/repository"
	"wallet-service/pkg/id"
	"wallet-service/pkg/xerrors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const recentTransactions = 10

type Service struct {
	wallets repository.WalletRepository
	txns    repository.TransactionRepository
	secrets repository.SecretKeyRepository
	logger  *zap.Logger
}

func NewService(wallets repository.WalletRepository, txns repository.TransactionRepository, secrets repository.SecretKeyRepository, logger *zap.Logger) *Service {
	return &Service{wallets: wallets, txns: txns, secrets: secrets, logger: logger}
}

// Detail is the wallet plus its most recent transactions, the shape the
// "my wallet" endpoint returns.
type Detail struct {
	Wallet       *domain.Wallet
	Transactions []*domain.Transaction
}

// GetOrCreate returns the user's wallet, provisioning an active empty one on
// first touch.
func (s *Service) GetOrCreate(ctx context.Context, userID int64) (*domain.Wallet, error) {
	w, err := s.wallets.FindByUserID(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	w = &domain.Wallet{
		UserID:   userID,
		Number:   id.New(),
		Balance:  decimal.Zero,
		Currency: domain.DefaultCurrency,
		Status:   domain.WalletActive,
	}
	if err := s.wallets.Create(ctx, w); err != nil {
		return nil, err
	}
	s.logger.Info("wallet created",
		zap.Int64("user_id", userID),
		zap.String("wallet_number", w.Number))
	return w, nil
}

func (s *Service) GetDetail(ctx context.Context, userID int64) (*Detail, error) {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	txns, err := s.txns.ListByWallet(ctx, w.ID, repository.TransactionFilter{Limit: recentTransactions})
	if err != nil {
		return nil, err
	}
	return &Detail{Wallet: w, Transactions: txns}, nil
}

func (s *Service) ListTransactions(ctx context.Context, userID int64, f repository.TransactionFilter) ([]*domain.Transaction, error) {
	w, err := s.wallets.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.txns.ListByWallet(ctx, w.ID, f)
}

// SetPIN hashes and stores the 6-digit transaction PIN.
func (s *Service) SetPIN(ctx context.Context, userID int64, pin string) error {
	if !validPIN(pin) {
		return xerrors.New(xerrors.ErrBadRequest, "PIN must be exactly 6 digits")
	}
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.wallets.SetPIN(ctx, w.ID, string(hash)); err != nil {
		return err
	}
	// A PIN change invalidates any transfer key issued under the old PIN.
	if err := s.secrets.Revoke(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke transfer secret key", zap.Int64("user_id", userID), zap.Error(err))
	}
	s.logger.Info("wallet PIN updated", zap.Int64("user_id", userID))
	return nil
}

func validPIN(pin string) bool {
	if len(pin) != 6 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
