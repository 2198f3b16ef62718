package settlement

import (
	"context"

	"wallet-service/internal/domain"
	"wallet-service/internal/gateway"
	"wallet-service/pkg/xerrors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// HandleDepositCallback applies a verified deposit notification. Replays and
// out-of-order deliveries are absorbed: a transaction that already left
// PENDING is acknowledged without touching the balance.
func (e *Engine) HandleDepositCallback(ctx context.Context, providerName string, res *gateway.CallbackResult) error {
	txnID, err := uuid.Parse(res.TxnID)
	if err != nil {
		return xerrors.New(xerrors.ErrBadRequest, "malformed transaction reference")
	}

	// Cheap unlocked read first so the common replay skips the locks.
	existing, err := e.txns.FindByID(ctx, txnID)
	if err != nil {
		return err
	}
	if existing.Type != domain.TypeDeposit {
		return xerrors.New(xerrors.ErrBadRequest, "transaction is not a deposit")
	}
	if existing.Status.Terminal() {
		e.metrics.CallbackDuplicate(providerName)
		e.logger.Info("duplicate deposit callback ignored",
			zap.String("txn_id", res.TxnID),
			zap.Int("status", int(existing.Status)))
		return nil
	}
	if existing.Status != domain.StatusPending {
		return xerrors.New(xerrors.ErrBadRequest, "transaction is not awaiting payment")
	}
	if !res.Amount.Equal(existing.Amount) {
		return xerrors.New(xerrors.ErrBadRequest, "callback amount mismatch")
	}

	err = e.store.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		wallet, err := e.wallets.LockByID(ctx, tx, existing.WalletID)
		if err != nil {
			return err
		}
		txn, err := e.txns.LockByID(ctx, tx, txnID)
		if err != nil {
			return err
		}
		// Re-check under the lock: a racing delivery may have settled it.
		if txn.Status != domain.StatusPending {
			e.metrics.CallbackDuplicate(providerName)
			return nil
		}

		if res.Success {
			if err := e.wallets.AdjustBalance(ctx, tx, wallet, txn.Amount); err != nil {
				return err
			}
			txn.Status = domain.StatusCompleted
			txn.BalanceAfter = decimal.NewNullDecimal(wallet.Balance)
		} else {
			txn.Status = domain.StatusFailed
			txn.Description = annotateFailure(txn.Description, res)
		}
		if res.ProviderTxnID != "" {
			txn.ProviderTxnID = &res.ProviderTxnID
		}
		if res.RawResponse != "" {
			txn.ProviderResponse = &res.RawResponse
		}
		return e.txns.Update(ctx, tx, txn)
	})
	if err != nil {
		return err
	}

	outcome := "failed"
	if res.Success {
		outcome = "completed"
	}
	e.metrics.CallbackProcessed(providerName, outcome)
	e.logger.Info("deposit callback applied",
		zap.String("txn_id", res.TxnID),
		zap.String("outcome", outcome),
		zap.String("response_code", res.ResponseCode))
	return nil
}

// HandleWithdrawalCallback finalizes a REVIEWING withdrawal. Success marks
// the row COMPLETED; failure re-credits the already-debited amount and marks
// it FAILED. Anything past REVIEWING is a replay and is acknowledged.
func (e *Engine) HandleWithdrawalCallback(ctx context.Context, providerName string, res *gateway.CallbackResult) error {
	txnID, err := uuid.Parse(res.TxnID)
	if err != nil {
		return xerrors.New(xerrors.ErrBadRequest, "malformed transaction reference")
	}

	existing, err := e.txns.FindByID(ctx, txnID)
	if err != nil {
		return err
	}
	if existing.Type != domain.TypeWithdrawal {
		return xerrors.New(xerrors.ErrBadRequest, "transaction is not a withdrawal")
	}
	if existing.Status.Terminal() {
		e.metrics.CallbackDuplicate(providerName)
		e.logger.Info("duplicate withdrawal callback ignored",
			zap.String("txn_id", res.TxnID),
			zap.Int("status", int(existing.Status)))
		return nil
	}
	if existing.Status != domain.StatusReviewing {
		return xerrors.New(xerrors.ErrBadRequest, "transaction is not awaiting settlement")
	}

	err = e.store.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		wallet, err := e.wallets.LockByID(ctx, tx, existing.WalletID)
		if err != nil {
			return err
		}
		txn, err := e.txns.LockByID(ctx, tx, txnID)
		if err != nil {
			return err
		}
		if txn.Status != domain.StatusReviewing {
			e.metrics.CallbackDuplicate(providerName)
			return nil
		}

		if res.Success {
			txn.Status = domain.StatusCompleted
		} else {
			// The payout was debited at initiation; give it back.
			if err := e.wallets.AdjustBalance(ctx, tx, wallet, txn.Amount); err != nil {
				return err
			}
			txn.Status = domain.StatusFailed
			txn.Description = annotateFailure(txn.Description, res)
			txn.BalanceAfter = decimal.NewNullDecimal(wallet.Balance)
		}
		if res.ProviderTxnID != "" {
			txn.ProviderTxnID = &res.ProviderTxnID
		}
		if res.RawResponse != "" {
			txn.ProviderResponse = &res.RawResponse
		}
		return e.txns.Update(ctx, tx, txn)
	})
	if err != nil {
		return err
	}

	outcome := "failed"
	if res.Success {
		outcome = "completed"
	}
	e.metrics.CallbackProcessed(providerName, outcome)
	e.logger.Info("withdrawal callback applied",
		zap.String("txn_id", res.TxnID),
		zap.String("outcome", outcome),
		zap.String("response_code", res.ResponseCode))
	return nil
}

// annotateFailure appends the provider's stated reason to the row's
// description so the failure is readable without decoding provider_response.
func annotateFailure(desc string, res *gateway.CallbackResult) string {
	reason := res.Message
	if reason == "" {
		reason = "provider response code " + res.ResponseCode
	}
	if desc == "" {
		return reason
	}
	return desc + " - " + reason
}
