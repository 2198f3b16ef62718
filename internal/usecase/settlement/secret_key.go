package settlement

import (
	"context"
	"fmt"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/pkg/id"
	"wallet-service/pkg/xerrors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	secretKeyTTL        = 5 * time.Minute
	secretKeyRateLimit  = 5
	secretKeyRateWindow = time.Minute
)

// IssueTransferSecretKey hands out the single-use key a transfer must present
// alongside the PIN. Requests are rate limited per user.
func (e *Engine) IssueTransferSecretKey(ctx context.Context, actor domain.Actor, pin string) (string, time.Duration, error) {
	ok, err := e.limiter.Allow(ctx, fmt.Sprintf("secret_key_req:%d:%s", actor.UserID, actor.ClientIP), secretKeyRateLimit, secretKeyRateWindow)
	if err != nil {
		return "", 0, fmt.Errorf("rate limit check: %w", err)
	}
	if !ok {
		return "", 0, xerrors.New(xerrors.ErrRateLimited, "too many secret key requests")
	}

	wallet, err := e.wallets.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return "", 0, err
	}
	if !wallet.Active() {
		return "", 0, xerrors.New(xerrors.ErrForbidden, "wallet is not active")
	}
	if wallet.PIN == nil {
		return "", 0, xerrors.New(xerrors.ErrForbidden, "wallet PIN is not set")
	}
	if bcrypt.CompareHashAndPassword([]byte(*wallet.PIN), []byte(pin)) != nil {
		return "", 0, xerrors.New(xerrors.ErrUnauthorized, "invalid PIN")
	}

	key := id.New()
	if err := e.secrets.Save(ctx, actor.UserID, key, secretKeyTTL); err != nil {
		return "", 0, fmt.Errorf("save secret key: %w", err)
	}

	e.logger.Info("transfer secret key issued", zap.Int64("user_id", actor.UserID))
	return key, secretKeyTTL, nil
}
