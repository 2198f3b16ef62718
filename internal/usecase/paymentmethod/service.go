package paymentmethod

import (
	"context"
	"errors"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/internal/repository"
	"wallet-service/pkg/xerrors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	wallets repository.WalletRepository
	methods repository.PaymentMethodRepository
	logger  *zap.Logger
}

func NewService(wallets repository.WalletRepository, methods repository.PaymentMethodRepository, logger *zap.Logger) *Service {
	return &Service{wallets: wallets, methods: methods, logger: logger}
}

type LinkRequest struct {
	Type          domain.PaymentMethodType
	Provider      string
	AccountName   string
	AccountNumber string
	ExpiredAt     *time.Time
	IsDefault     bool
}

// Link attaches an external account to the user's wallet. The same
// (provider, account) pair can only be live on one wallet at a time; a pair
// the user previously unlinked is restored rather than duplicated.
func (s *Service) Link(ctx context.Context, userID int64, req LinkRequest) (*domain.PaymentMethod, error) {
	if req.Provider == "" || req.AccountNumber == "" {
		return nil, xerrors.New(xerrors.ErrBadRequest, "provider and account number are required")
	}

	wallet, err := s.wallets.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	owner, err := s.methods.FindActiveOwner(ctx, req.Provider, req.AccountNumber)
	switch {
	case err == nil:
		if owner.WalletID != wallet.ID {
			return nil, xerrors.New(xerrors.ErrConflict, "account is already linked to another wallet")
		}
		// Re-linking one's own live method just refreshes its details.
		owner.Type = req.Type
		owner.AccountName = req.AccountName
		owner.ExpiredAt = req.ExpiredAt
		owner.IsDefault = req.IsDefault
		if err := s.methods.Restore(ctx, owner); err != nil {
			return nil, err
		}
		return owner, nil
	case !errors.Is(err, xerrors.ErrNotFound):
		return nil, err
	}

	// Reclaim a soft-deleted method before inserting a twin row.
	prior, err := s.methods.FindSoftDeleted(ctx, wallet.ID, req.Provider, req.AccountNumber)
	if err == nil {
		prior.Type = req.Type
		prior.AccountName = req.AccountName
		prior.ExpiredAt = req.ExpiredAt
		prior.IsDefault = req.IsDefault
		if err := s.methods.Restore(ctx, prior); err != nil {
			return nil, err
		}
		s.logger.Info("payment method restored",
			zap.Int64("user_id", userID),
			zap.String("method_id", prior.ID.String()))
		return prior, nil
	}
	if !errors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	m := &domain.PaymentMethod{
		WalletID:      wallet.ID,
		Type:          req.Type,
		Provider:      req.Provider,
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		ExpiredAt:     req.ExpiredAt,
		IsDefault:     req.IsDefault,
	}
	if err := s.methods.Create(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("payment method linked",
		zap.Int64("user_id", userID),
		zap.String("method_id", m.ID.String()),
		zap.String("provider", req.Provider))
	return m, nil
}

// Unlink soft deletes the method so its transaction history stays intact.
func (s *Service) Unlink(ctx context.Context, userID int64, methodID uuid.UUID) error {
	wallet, err := s.wallets.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}
	m, err := s.methods.FindByID(ctx, methodID)
	if err != nil {
		return err
	}
	if m.WalletID != wallet.ID {
		return xerrors.New(xerrors.ErrForbidden, "payment method belongs to another wallet")
	}
	if err := s.methods.SoftDelete(ctx, methodID); err != nil {
		return err
	}
	s.logger.Info("payment method unlinked",
		zap.Int64("user_id", userID),
		zap.String("method_id", methodID.String()))
	return nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]*domain.PaymentMethod, error) {
	wallet, err := s.wallets.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.methods.ListByWallet(ctx, wallet.ID)
}
