package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/samiecode/babylon/internal/savings/codec"
	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/pkg/logger"
	"github.com/samiecode/babylon/pkg/xerr"
)

type ConfigService struct {
	store          domain.Store
	vault          domain.VaultGateway
	watch          Invalidator
	confirmTimeout time.Duration
	now            Clock
}

func NewConfigService(store domain.Store, vault domain.VaultGateway, watch Invalidator, confirmTimeout time.Duration) *ConfigService {
	if watch == nil {
		watch = nopInvalidator{}
	}
	return &ConfigService{store: store, vault: vault, watch: watch, confirmTimeout: confirmTimeout, now: time.Now}
}

type SaverConfig struct {
	WalletAddress          string
	SavingPercentBps       int
	WithdrawalDelaySeconds int64
}

func (c SaverConfig) Validate() error {
	if !codec.IsAddress(c.WalletAddress) {
		return xerr.Validation("walletAddress", "invalid wallet address %q", c.WalletAddress)
	}
	if c.SavingPercentBps < 0 || c.SavingPercentBps > domain.MaxSavingPercentBps {
		return xerr.Validation("savingPercentBps", "savingPercentBps must be between 0 and %d", domain.MaxSavingPercentBps)
	}
	if c.WithdrawalDelaySeconds < domain.MinWithdrawalDelay || c.WithdrawalDelaySeconds > domain.MaxWithdrawalDelay {
		return xerr.Validation("withdrawalDelaySeconds", "withdrawalDelaySeconds must be between %d and %d",
			domain.MinWithdrawalDelay, domain.MaxWithdrawalDelay)
	}
	return nil
}

type ConfigResult struct {
	User        *domain.User   `json:"user"`
	Wallet      *domain.Wallet `json:"wallet"`
	VaultTxHash string         `json:"vaultTxHash,omitempty"`
}

// Configure stores the saver settings locally as PENDING_SYNC, then pushes
// them to the vault. The local write is kept when the push fails; the user is
// marked FAILED and Resync retries.
func (s *ConfigService) Configure(ctx context.Context, c SaverConfig) (*ConfigResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	w, err := s.store.FindWalletByAddress(ctx, c.WalletAddress)
	if err != nil {
		return nil, err
	}

	err = s.store.Transaction(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateUserConfig(ctx, w.UserID, c.SavingPercentBps, c.WithdrawalDelaySeconds); err != nil {
			return err
		}
		return s.store.ActivateWallet(ctx, w.ID)
	})
	if err != nil {
		return nil, err
	}
	s.watch.Invalidate()

	return s.push(ctx, w, c.SavingPercentBps, c.WithdrawalDelaySeconds)
}

// Resync re-pushes the stored settings of a user whose last push did not land.
func (s *ConfigService) Resync(ctx context.Context, address string) (*ConfigResult, error) {
	addr, err := codec.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	w, err := s.store.FindWalletByAddress(ctx, addr)
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, w.UserID)
	if err != nil {
		return nil, err
	}
	if u.ConfigSyncStatus == domain.SyncSynced {
		return &ConfigResult{User: u, Wallet: w}, nil
	}
	return s.push(ctx, w, u.SavingPercentBps, u.WithdrawalDelaySeconds)
}

func (s *ConfigService) push(ctx context.Context, w *domain.Wallet, bps int, delay int64) (*ConfigResult, error) {
	cctx, cancel := withConfirmTimeout(ctx, s.confirmTimeout)
	rcpt, err := s.vault.ConfigureFor(cctx, w.Address, uint16(bps), uint64(delay))
	cancel()

	bg := detached(ctx)
	var hash string
	switch {
	case err == nil:
		hash = rcpt.TxHash
		now := s.now()
		if serr := s.store.SetUserSyncStatus(bg, w.UserID, domain.SyncSynced, &now); serr != nil {
			return nil, serr
		}
	case isUnconfirmed(err):
		logger.Warn(ctx, "saver config push unconfirmed", zap.String("wallet", w.Address), zap.Error(err))
		return nil, err
	default:
		logger.Error(ctx, "saver config push failed", zap.String("wallet", w.Address), zap.Error(err))
		if serr := s.store.SetUserSyncStatus(bg, w.UserID, domain.SyncFailed, nil); serr != nil {
			logger.Error(ctx, "mark config sync failed", zap.String("user_id", w.UserID), zap.Error(serr))
		}
		return nil, xerr.Gateway("configureFor", err)
	}

	u, err := s.store.GetUser(bg, w.UserID)
	if err != nil {
		return nil, err
	}
	w.IsActive = true
	return &ConfigResult{User: u, Wallet: w, VaultTxHash: hash}, nil
}

func isUnconfirmed(err error) bool {
	var ue *xerr.UnconfirmedError
	return errors.As(err, &ue)
}
