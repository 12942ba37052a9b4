package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/internal/savings/notify"
	"github.com/samiecode/babylon/pkg/logger"
	"github.com/samiecode/babylon/pkg/xerr"
)

const (
	defaultRejectionReason = "User declined auto-save"
	defaultRejectionNote   = "Auto-savings rejected before funding transaction"
	fundedNote             = "Auto-savings funded on-chain"

	machineAuthorization = "authorization"
)

type AuthorizationService struct {
	store          domain.Store
	vault          domain.VaultGateway
	events         *notify.Emitter
	confirmTimeout time.Duration
	now            Clock
}

func NewAuthorizationService(store domain.Store, vault domain.VaultGateway, events *notify.Emitter, confirmTimeout time.Duration) *AuthorizationService {
	return &AuthorizationService{store: store, vault: vault, events: events, confirmTimeout: confirmTimeout, now: time.Now}
}

// AuthorizationResult is the transaction after a decision. AlreadyProcessed
// marks a retry of a transition that had already happened.
type AuthorizationResult struct {
	Transaction      *domain.IncomingTransaction `json:"transaction"`
	AlreadyProcessed bool                        `json:"alreadyProcessed"`
	VaultTxHash      string                      `json:"vaultTxHash,omitempty"`
}

// Reject moves PENDING to REJECTED and records DEPOSIT_FAILED. No chain call.
func (s *AuthorizationService) Reject(ctx context.Context, txID, reason string) (*AuthorizationResult, error) {
	t, err := s.store.GetIncoming(ctx, txID, false)
	if err != nil {
		return nil, err
	}
	if t.Status == domain.TxRejected {
		return &AuthorizationResult{Transaction: t, AlreadyProcessed: true}, nil
	}
	if t.Status != domain.TxPending {
		return nil, notPending(t)
	}

	reason = strings.TrimSpace(reason)
	metaReason, note := reason, reason
	if reason == "" {
		metaReason, note = defaultRejectionReason, defaultRejectionNote
	}

	now := s.now()
	err = s.store.Transaction(ctx, func(ctx context.Context) error {
		err := s.store.TransitionIncoming(ctx, t.ID, domain.TxPending, map[string]any{
			"status":      domain.TxRejected,
			"rejected_at": now,
			"metadata":    t.Metadata.With(domain.MetaRejectionReason, metaReason),
		})
		if err != nil {
			return err
		}
		return s.store.UpsertDepositOutcome(ctx, &domain.SavingsLedger{
			UserID:        t.Wallet.UserID,
			WalletID:      t.WalletID,
			TransactionID: &t.ID,
			Action:        domain.DepositFailed,
			AmountWei:     t.SaveAmountWei,
			Notes:         note,
		})
	})
	if errors.Is(err, domain.ErrStatusChanged) {
		return s.lostRace(ctx, t.ID, domain.TxRejected)
	}
	if err != nil {
		return nil, err
	}

	countTransition(machineAuthorization, string(domain.TxRejected))
	s.events.Emit(ctx, notify.SubjectDepositRejected, notify.DepositSettled{
		TransactionID: t.ID,
		WalletID:      t.WalletID,
		AmountWei:     t.SaveAmountWei.String(),
		Reason:        metaReason,
	})

	updated, err := s.store.GetIncoming(ctx, t.ID, false)
	if err != nil {
		return nil, err
	}
	return &AuthorizationResult{Transaction: updated}, nil
}

// Approve claims the transaction (PENDING -> AUTHORIZED), deposits on-chain
// and settles it as FUNDED. A failed deposit releases the claim; an
// unconfirmed one keeps it with the submitted hash for Reconcile.
func (s *AuthorizationService) Approve(ctx context.Context, txID string, overrideAmount *big.Int) (*AuthorizationResult, error) {
	t, err := s.store.GetIncoming(ctx, txID, false)
	if err != nil {
		return nil, err
	}
	if t.Status == domain.TxFunded {
		return &AuthorizationResult{Transaction: t, AlreadyProcessed: true, VaultTxHash: t.VaultTxHash}, nil
	}
	if t.Status != domain.TxPending {
		return nil, notPending(t)
	}

	amount := domain.BigFromWei(t.SaveAmountWei)
	if overrideAmount != nil && overrideAmount.Sign() > 0 {
		amount = new(big.Int).Set(overrideAmount)
	}
	if amount.Sign() <= 0 {
		return nil, xerr.Validation("amountWei", "amountWei must be greater than zero")
	}

	err = s.store.TransitionIncoming(ctx, t.ID, domain.TxPending, map[string]any{
		"status":        domain.TxAuthorized,
		"authorized_at": s.now(),
	})
	if errors.Is(err, domain.ErrStatusChanged) {
		return s.lostRace(ctx, t.ID, domain.TxFunded)
	}
	if err != nil {
		return nil, err
	}
	countTransition(machineAuthorization, string(domain.TxAuthorized))

	cctx, cancel := withConfirmTimeout(ctx, s.confirmTimeout)
	rcpt, err := s.vault.DepositFor(cctx, t.Wallet.Address, amount)
	cancel()

	bg := detached(ctx)
	if err != nil {
		var ue *xerr.UnconfirmedError
		if errors.As(err, &ue) {
			s.recordSubmitted(bg, t, ue.TxHash, amount)
			return nil, err
		}
		s.releaseClaim(bg, t)
		return nil, xerr.Gateway("depositFor", err)
	}

	updated, err := s.markFunded(bg, t, amount, rcpt.TxHash)
	if err != nil {
		return nil, err
	}
	return &AuthorizationResult{Transaction: updated, VaultTxHash: rcpt.TxHash}, nil
}

// Reconcile settles an AUTHORIZED transaction whose deposit went unconfirmed.
func (s *AuthorizationService) Reconcile(ctx context.Context, txID string) (*AuthorizationResult, error) {
	t, err := s.store.GetIncoming(ctx, txID, false)
	if err != nil {
		return nil, err
	}
	if t.Status == domain.TxFunded {
		return &AuthorizationResult{Transaction: t, AlreadyProcessed: true, VaultTxHash: t.VaultTxHash}, nil
	}
	if t.Status != domain.TxAuthorized {
		return nil, xerr.Conflict(string(t.Status), "transaction %s has no deposit in flight", t.ID)
	}
	hash := t.Metadata.String(domain.MetaSubmittedTxHash)
	if hash == "" {
		return nil, xerr.Conflict(string(t.Status), "transaction %s has no submitted deposit hash", t.ID)
	}

	rcpt, err := s.vault.LookupReceipt(ctx, hash)
	if err != nil {
		return nil, xerr.Gateway("lookupReceipt", err)
	}
	if rcpt == nil {
		return nil, &xerr.UnconfirmedError{Op: "depositFor", TxHash: hash}
	}

	if rcpt.Reverted {
		meta := t.Metadata.With(domain.MetaRevertedTxHash, hash)
		delete(meta, domain.MetaSubmittedTxHash)
		delete(meta, domain.MetaSubmittedAmount)
		err := s.store.TransitionIncoming(ctx, t.ID, domain.TxAuthorized, map[string]any{
			"status":        domain.TxPending,
			"authorized_at": nil,
			"metadata":      meta,
		})
		if errors.Is(err, domain.ErrStatusChanged) {
			return s.lostRace(ctx, t.ID, domain.TxFunded)
		}
		if err != nil {
			return nil, err
		}
		countTransition(machineAuthorization, string(domain.TxPending))
		logger.Warn(ctx, "submitted deposit reverted, transaction reopened",
			zap.String("transaction_id", t.ID), zap.String("hash", hash))
		updated, err := s.store.GetIncoming(ctx, t.ID, false)
		if err != nil {
			return nil, err
		}
		return &AuthorizationResult{Transaction: updated}, nil
	}

	amount := domain.BigFromWei(t.SaveAmountWei)
	if v := t.Metadata.String(domain.MetaSubmittedAmount); v != "" {
		if parsed, ok := new(big.Int).SetString(v, 10); ok {
			amount = parsed
		}
	}
	updated, err := s.markFunded(ctx, t, amount, rcpt.TxHash)
	if err != nil {
		return nil, err
	}
	return &AuthorizationResult{Transaction: updated, VaultTxHash: rcpt.TxHash}, nil
}

func (s *AuthorizationService) markFunded(ctx context.Context, t *domain.IncomingTransaction, amount *big.Int, hash string) (*domain.IncomingTransaction, error) {
	amountDec := domain.WeiFromBig(amount)
	now := s.now()

	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		err := s.store.TransitionIncoming(ctx, t.ID, domain.TxAuthorized, map[string]any{
			"status":          domain.TxFunded,
			"funded_at":       now,
			"vault_tx_hash":   hash,
			"save_amount_wei": amountDec,
		})
		if err != nil {
			return err
		}
		return s.store.UpsertDepositOutcome(ctx, &domain.SavingsLedger{
			UserID:        t.Wallet.UserID,
			WalletID:      t.WalletID,
			TransactionID: &t.ID,
			Action:        domain.DepositConfirmed,
			AmountWei:     amountDec,
			TxHash:        hash,
			Notes:         fundedNote,
		})
	})
	if err != nil {
		// the deposit landed; the row stays AUTHORIZED until reconciled
		logger.Error(ctx, "record funded deposit failed",
			zap.String("transaction_id", t.ID), zap.String("hash", hash), zap.Error(err))
		s.recordSubmitted(ctx, t, hash, amount)
		return nil, fmt.Errorf("record funded deposit %s: %w", hash, err)
	}

	countTransition(machineAuthorization, string(domain.TxFunded))
	s.events.Emit(ctx, notify.SubjectDepositFunded, notify.DepositSettled{
		TransactionID: t.ID,
		WalletID:      t.WalletID,
		AmountWei:     amount.String(),
		VaultTxHash:   hash,
	})
	logger.Info(ctx, "deposit funded",
		zap.String("transaction_id", t.ID), zap.String("amount_wei", amount.String()), zap.String("hash", hash))

	return s.store.GetIncoming(ctx, t.ID, false)
}

func (s *AuthorizationService) recordSubmitted(ctx context.Context, t *domain.IncomingTransaction, hash string, amount *big.Int) {
	meta := t.Metadata.With(domain.MetaSubmittedTxHash, hash).With(domain.MetaSubmittedAmount, amount.String())
	if err := s.store.TransitionIncoming(ctx, t.ID, domain.TxAuthorized, map[string]any{"metadata": meta}); err != nil {
		logger.Error(ctx, "record submitted deposit failed",
			zap.String("transaction_id", t.ID), zap.String("hash", hash), zap.Error(err))
	}
}

func (s *AuthorizationService) releaseClaim(ctx context.Context, t *domain.IncomingTransaction) {
	err := s.store.TransitionIncoming(ctx, t.ID, domain.TxAuthorized, map[string]any{
		"status":        domain.TxPending,
		"authorized_at": nil,
	})
	if err != nil {
		logger.Error(ctx, "release authorization claim failed", zap.String("transaction_id", t.ID), zap.Error(err))
		return
	}
	countTransition(machineAuthorization, string(domain.TxPending))
}

// lostRace resolves a guarded update that matched no row: a concurrent call
// already performing the same transition counts as done, anything else is a
// conflict.
func (s *AuthorizationService) lostRace(ctx context.Context, id string, target domain.TxStatus) (*AuthorizationResult, error) {
	cur, err := s.store.GetIncoming(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if cur.Status == target {
		return &AuthorizationResult{Transaction: cur, AlreadyProcessed: true, VaultTxHash: cur.VaultTxHash}, nil
	}
	return nil, notPending(cur)
}

func notPending(t *domain.IncomingTransaction) error {
	return xerr.Conflict(string(t.Status), "transaction %s already processed", t.ID)
}
