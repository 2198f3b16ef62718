package settlement

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"wallet-service/internal/domain"
	"wallet-service/internal/gateway"
	"wallet-service/internal/metrics"
	"wallet-service/internal/repository"
	"wallet-service/pkg/xerrors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

type Config struct {
	BaseURL          string
	PaymentReturnURL string
}

// Engine owns every balance mutation. All money movement goes through it so
// the locking discipline lives in exactly one place.
type Engine struct {
	cfg      Config
	store    TxRunner
	wallets  repository.WalletRepository
	txns     repository.TransactionRepository
	methods  repository.PaymentMethodRepository
	secrets  repository.SecretKeyRepository
	limiter  repository.RateLimiter
	gateways *gateway.Registry
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewEngine(
	cfg Config,
	store TxRunner,
	wallets repository.WalletRepository,
	txns repository.TransactionRepository,
	methods repository.PaymentMethodRepository,
	secrets repository.SecretKeyRepository,
	limiter repository.RateLimiter,
	gateways *gateway.Registry,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    store,
		wallets:  wallets,
		txns:     txns,
		methods:  methods,
		secrets:  secrets,
		limiter:  limiter,
		gateways: gateways,
		metrics:  m,
		logger:   logger,
	}
}

type DepositRequest struct {
	Provider    string
	Amount      decimal.Decimal
	Description string
}

type DepositResult struct {
	Transaction *domain.Transaction
	PaymentURL  string
}

// InitiateDeposit records a PENDING transaction and hands the user a hosted
// payment URL. The balance does not move until the provider confirms.
func (e *Engine) InitiateDeposit(ctx context.Context, actor domain.Actor, req DepositRequest) (*DepositResult, error) {
	if !actor.Can(domain.PermFinanceTransact) {
		return nil, xerrors.New(xerrors.ErrForbidden, "missing finance:transact permission")
	}
	if !req.Amount.IsPositive() {
		return nil, xerrors.New(xerrors.ErrBadRequest, "amount must be positive")
	}
	provider, err := e.gateways.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	wallet, err := e.wallets.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !wallet.Active() {
		return nil, xerrors.New(xerrors.ErrForbidden, "wallet is not active")
	}

	txn := &domain.Transaction{
		ID:            uuid.New(),
		WalletID:      wallet.ID,
		Amount:        req.Amount,
		Fee:           decimal.Zero,
		BalanceBefore: wallet.Balance,
		Type:          domain.TypeDeposit,
		Status:        domain.StatusPending,
		Description:   req.Description,
		IPAddress:     actor.ClientIP,
	}
	if err := e.store.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return e.txns.Create(ctx, tx, txn)
	}); err != nil {
		return nil, err
	}

	payURL, err := provider.CreatePayment(ctx, gateway.PaymentRequest{
		TxnID:       txn.ID.String(),
		Amount:      req.Amount,
		OrderInfo:   req.Description,
		ClientIP:    actor.ClientIP,
		ReturnURL:   e.cfg.PaymentReturnURL,
		CallbackURL: e.callbackURL(provider.Name()),
	})
	if err != nil {
		return nil, err
	}

	e.metrics.TransactionCreated("deposit", provider.Name())
	e.logger.Info("deposit initiated",
		zap.String("txn_id", txn.ID.String()),
		zap.Int64("user_id", actor.UserID),
		zap.String("provider", provider.Name()),
		zap.String("amount", req.Amount.String()))

	return &DepositResult{Transaction: txn, PaymentURL: payURL}, nil
}

type WithdrawRequest struct {
	Provider        string
	PaymentMethodID uuid.UUID
	Amount          decimal.Decimal
	Fee             decimal.Decimal
	Description     string
}

// InitiateWithdrawal creates a REVIEWING transaction, calls the provider's
// payout synchronously and, on success, debits the wallet while keeping the
// row in REVIEWING until the provider's final callback. A rejected payout
// leaves the row committed as FAILED for audit.
func (e *Engine) InitiateWithdrawal(ctx context.Context, actor domain.Actor, req WithdrawRequest) (*domain.Transaction, error) {
	if !actor.Can(domain.PermFinanceTransact) {
		return nil, xerrors.New(xerrors.ErrForbidden, "missing finance:transact permission")
	}
	if !req.Amount.IsPositive() {
		return nil, xerrors.New(xerrors.ErrBadRequest, "amount must be positive")
	}
	if req.Fee.IsNegative() {
		return nil, xerrors.New(xerrors.ErrBadRequest, "fee must not be negative")
	}
	provider, err := e.gateways.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	method, err := e.methods.FindByID(ctx, req.PaymentMethodID)
	if err != nil {
		return nil, err
	}

	var (
		txn       *domain.Transaction
		payoutErr error
	)
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		wallet, err := e.wallets.LockByUserID(ctx, tx, actor.UserID)
		if err != nil {
			return err
		}
		if !wallet.Active() {
			return xerrors.New(xerrors.ErrForbidden, "wallet is not active")
		}
		if method.WalletID != wallet.ID {
			return xerrors.New(xerrors.ErrForbidden, "payment method belongs to another wallet")
		}
		if wallet.Balance.LessThan(req.Amount) {
			return xerrors.New(xerrors.ErrBadRequest, "insufficient balance")
		}

		txn = &domain.Transaction{
			ID:              uuid.New(),
			WalletID:        wallet.ID,
			PaymentMethodID: &method.ID,
			Amount:          req.Amount,
			Fee:             req.Fee,
			BalanceBefore:   wallet.Balance,
			Type:            domain.TypeWithdrawal,
			Status:          domain.StatusReviewing,
			Description:     req.Description,
			IPAddress:       actor.ClientIP,
		}
		if err := e.txns.Create(ctx, tx, txn); err != nil {
			return err
		}

		providerTxnID, raw, err := provider.InitiatePayout(ctx, txn, method)
		if err != nil {
			// Commit the FAILED row so the attempt stays on the books.
			txn.Status = domain.StatusFailed
			if raw != "" {
				txn.ProviderResponse = &raw
			}
			if uerr := e.txns.Update(ctx, tx, txn); uerr != nil {
				return uerr
			}
			payoutErr = err
			return nil
		}

		if err := e.wallets.AdjustBalance(ctx, tx, wallet, req.Amount.Neg()); err != nil {
			return err
		}
		txn.ProviderTxnID = &providerTxnID
		if raw != "" {
			txn.ProviderResponse = &raw
		}
		txn.BalanceAfter = decimal.NewNullDecimal(wallet.Balance)
		return e.txns.Update(ctx, tx, txn)
	})
	if err != nil {
		return nil, err
	}
	if payoutErr != nil {
		e.metrics.TransactionFailed("withdrawal", provider.Name())
		e.logger.Warn("payout rejected",
			zap.String("txn_id", txn.ID.String()),
			zap.Int64("user_id", actor.UserID),
			zap.Error(payoutErr))
		return nil, payoutErr
	}

	e.metrics.TransactionCreated("withdrawal", provider.Name())
	e.logger.Info("withdrawal initiated",
		zap.String("txn_id", txn.ID.String()),
		zap.Int64("user_id", actor.UserID),
		zap.String("amount", req.Amount.String()))
	return txn, nil
}

type TransferRequest struct {
	ToWalletNumber string
	Amount         decimal.Decimal
	Description    string
	PIN            string
	SecretKey      string
}

type TransferResult struct {
	Outgoing *domain.Transaction
	Incoming *domain.Transaction
}

// Transfer moves funds between two wallets atomically: one TRANSFER_OUT and
// one TRANSFER_IN row, both COMPLETED, linked through RelatedID.
func (e *Engine) Transfer(ctx context.Context, actor domain.Actor, req TransferRequest) (*TransferResult, error) {
	if !req.Amount.IsPositive() {
		return nil, xerrors.New(xerrors.ErrBadRequest, "amount must be positive")
	}

	source, err := e.wallets.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if source.Number == req.ToWalletNumber {
		return nil, xerrors.New(xerrors.ErrBadRequest, "cannot transfer to own wallet")
	}

	if err := e.verifyPINAndSecretKey(ctx, actor.UserID, source, req.PIN, req.SecretKey); err != nil {
		return nil, err
	}

	dest, err := e.wallets.FindByNumber(ctx, req.ToWalletNumber)
	if err != nil {
		return nil, err
	}

	var result TransferResult
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		src, dst, err := e.lockPair(ctx, tx, source.ID, dest.ID)
		if err != nil {
			return err
		}
		if !src.Active() {
			return xerrors.New(xerrors.ErrForbidden, "wallet is not active")
		}
		if !dst.Active() {
			return xerrors.New(xerrors.ErrBadRequest, "destination wallet is not active")
		}
		if src.Balance.LessThan(req.Amount) {
			return xerrors.New(xerrors.ErrBadRequest, "insufficient balance")
		}

		out := &domain.Transaction{
			ID:            uuid.New(),
			WalletID:      src.ID,
			Amount:        req.Amount,
			BalanceBefore: src.Balance,
			Type:          domain.TypeTransferOut,
			Status:        domain.StatusCompleted,
			Description:   req.Description,
			IPAddress:     actor.ClientIP,
		}
		if err := e.wallets.AdjustBalance(ctx, tx, src, req.Amount.Neg()); err != nil {
			return err
		}
		out.BalanceAfter = decimal.NewNullDecimal(src.Balance)
		if err := e.txns.Create(ctx, tx, out); err != nil {
			return err
		}

		in := &domain.Transaction{
			ID:            uuid.New(),
			WalletID:      dst.ID,
			RelatedID:     &out.ID,
			Amount:        req.Amount,
			BalanceBefore: dst.Balance,
			Type:          domain.TypeTransferIn,
			Status:        domain.StatusCompleted,
			Description:   req.Description,
			IPAddress:     actor.ClientIP,
		}
		if err := e.wallets.AdjustBalance(ctx, tx, dst, req.Amount); err != nil {
			return err
		}
		in.BalanceAfter = decimal.NewNullDecimal(dst.Balance)
		if err := e.txns.Create(ctx, tx, in); err != nil {
			return err
		}

		result = TransferResult{Outgoing: out, Incoming: in}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.TransactionCreated("transfer", "internal")
	e.logger.Info("transfer completed",
		zap.String("out_txn_id", result.Outgoing.ID.String()),
		zap.String("in_txn_id", result.Incoming.ID.String()),
		zap.Int64("user_id", actor.UserID),
		zap.String("amount", req.Amount.String()))
	return &result, nil
}

// callbackURL is the IPN endpoint the provider notifies for deposits.
func (e *Engine) callbackURL(providerName string) string {
	return fmt.Sprintf("%s/api/v1/payments/ipn/%s", strings.TrimRight(e.cfg.BaseURL, "/"), providerName)
}

// lockPair locks both wallets in ascending id order so two opposing
// transfers can never deadlock on each other.
func (e *Engine) lockPair(ctx context.Context, tx pgx.Tx, a, b uuid.UUID) (first, second *domain.Wallet, err error) {
	lockA, lockB := a, b
	swapped := false
	if bytes.Compare(lockA[:], lockB[:]) > 0 {
		lockA, lockB = lockB, lockA
		swapped = true
	}
	wa, err := e.wallets.LockByID(ctx, tx, lockA)
	if err != nil {
		return nil, nil, err
	}
	wb, err := e.wallets.LockByID(ctx, tx, lockB)
	if err != nil {
		return nil, nil, err
	}
	if swapped {
		return wb, wa, nil
	}
	return wa, wb, nil
}

// verifyPINAndSecretKey performs the step-up check guarding transfers. The
// stored secret key is consumed on lookup, so even a failed attempt burns it.
func (e *Engine) verifyPINAndSecretKey(ctx context.Context, userID int64, wallet *domain.Wallet, pin, secretKey string) error {
	if wallet.PIN == nil {
		return xerrors.New(xerrors.ErrForbidden, "wallet PIN is not set")
	}
	if bcrypt.CompareHashAndPassword([]byte(*wallet.PIN), []byte(pin)) != nil {
		return xerrors.New(xerrors.ErrUnauthorized, "invalid PIN")
	}

	stored, err := e.secrets.Consume(ctx, userID)
	if err != nil {
		return fmt.Errorf("consume secret key: %w", err)
	}
	if stored == "" || stored != secretKey {
		return xerrors.New(xerrors.ErrUnauthorized, "invalid or expired secret key")
	}
	return nil
}
