package service

import (
	"context"
	"errors"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/samiecode/babylon/internal/savings/codec"
	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/internal/savings/notify"
	"github.com/samiecode/babylon/pkg/logger"
	"github.com/samiecode/babylon/pkg/xerr"
)

const (
	withdrawRequestedNote = "Withdrawal request submitted on-chain"
	withdrawCancelledNote = "Withdrawal request cancelled"
	withdrawCompletedNote = "Withdrawal executed on-chain"

	machineWithdrawal = "withdrawal"

	opRequestWithdrawal = "requestWithdrawalFor"
	opCancelWithdrawal  = "cancelWithdrawalFor"
	opExecuteWithdrawal = "executeWithdrawalFor"
)

type WithdrawalService struct {
	store          domain.Store
	vault          domain.VaultGateway
	locks          Locker
	events         *notify.Emitter
	confirmTimeout time.Duration
	now            Clock
}

func NewWithdrawalService(store domain.Store, vault domain.VaultGateway, locks Locker, events *notify.Emitter, confirmTimeout time.Duration) *WithdrawalService {
	if locks == nil {
		locks = NewMemLocker()
	}
	return &WithdrawalService{store: store, vault: vault, locks: locks, events: events, confirmTimeout: confirmTimeout, now: time.Now}
}

// WithdrawalView is a request with its derived status.
type WithdrawalView struct {
	domain.WithdrawalRequest
	Status domain.WithdrawalStatus `json:"status"`
}

func (s *WithdrawalService) view(r *domain.WithdrawalRequest) *WithdrawalView {
	return &WithdrawalView{WithdrawalRequest: *r, Status: domain.DeriveStatus(r, s.now())}
}

// resolve loads the wallet and checks ownership.
func (s *WithdrawalService) resolve(ctx context.Context, userID, address string) (*domain.Wallet, error) {
	if userID == "" {
		return nil, xerr.Validation("userId", "userId is required")
	}
	addr, err := codec.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	w, err := s.store.FindWalletByAddress(ctx, addr)
	if err != nil {
		return nil, err
	}
	if w.UserID != userID {
		return nil, xerr.NotFound("wallet", addr)
	}
	return w, nil
}

func (s *WithdrawalService) Request(ctx context.Context, userID, address string, amount *big.Int) (*WithdrawalView, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, xerr.Validation("amountWei", "amountWei must be greater than zero")
	}
	w, err := s.resolve(ctx, userID, address)
	if err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	active, err := s.store.FindActiveWithdrawal(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, xerr.Conflict(string(domain.DeriveStatus(active, s.now())), "wallet %s already has an active withdrawal request", w.Address)
	}

	delay := domain.DefaultWithdrawalDelay
	if w.User != nil {
		delay = w.User.WithdrawalDelaySeconds
	}

	cctx, cancel := withConfirmTimeout(ctx, s.confirmTimeout)
	rcpt, err := s.vault.RequestWithdrawalFor(cctx, w.Address, amount)
	cancel()
	var ue *xerr.UnconfirmedError
	if err != nil && !errors.As(err, &ue) {
		return nil, xerr.Gateway(opRequestWithdrawal, err)
	}
	var hash string
	if ue != nil {
		hash = ue.TxHash
	} else {
		hash = rcpt.TxHash
	}

	now := s.now()
	req := &domain.WithdrawalRequest{
		UserID:        w.UserID,
		WalletID:      w.ID,
		AmountWei:     domain.WeiFromBig(amount),
		Status:        domain.WithdrawalPending,
		AvailableAt:   now.Add(time.Duration(delay) * time.Second),
		RequestTxHash: hash,
	}
	if ue != nil {
		// occupies the slot until Reconcile sees the receipt
		req.Metadata = domain.Metadata{domain.MetaSubmittedTxHash: hash, domain.MetaSubmittedOp: opRequestWithdrawal}
	}
	err = s.store.Transaction(detached(ctx), func(ctx context.Context) error {
		if err := s.store.LockWallet(ctx, w.ID); err != nil {
			return err
		}
		existing, err := s.store.FindActiveWithdrawal(ctx, w.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return xerr.Conflict(string(existing.Status), "wallet %s already has an active withdrawal request", w.Address)
		}
		if err := s.store.CreateWithdrawal(ctx, req); err != nil {
			return err
		}
		if ue != nil {
			return nil
		}
		return s.store.AppendLedger(ctx, requestedEntry(req))
	})
	if err != nil {
		logger.Error(ctx, "record withdrawal request failed",
			zap.String("wallet", w.Address), zap.String("hash", hash), zap.Error(err))
		return nil, err
	}

	countTransition(machineWithdrawal, string(domain.WithdrawalPending))
	if ue != nil {
		logger.Warn(ctx, "withdrawal request unconfirmed",
			zap.String("request_id", req.ID), zap.String("hash", hash))
		return nil, ue
	}
	s.emit(ctx, notify.SubjectWithdrawalRequested, req, hash)
	return s.view(req), nil
}

func (s *WithdrawalService) Cancel(ctx context.Context, userID, address string) (*WithdrawalView, error) {
	w, err := s.resolve(ctx, userID, address)
	if err != nil {
		return nil, err
	}
	release, err := s.locks.Acquire(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	active, err := s.settledRequest(ctx, w)
	if err != nil {
		return nil, err
	}

	cctx, cancel := withConfirmTimeout(ctx, s.confirmTimeout)
	rcpt, err := s.vault.CancelWithdrawalFor(cctx, w.Address)
	cancel()
	if err != nil {
		return nil, s.submitFailed(detached(ctx), active, opCancelWithdrawal, err)
	}
	return s.cancelled(detached(ctx), active, rcpt.TxHash)
}

func (s *WithdrawalService) cancelled(ctx context.Context, r *domain.WithdrawalRequest, hash string) (*WithdrawalView, error) {
	now := s.now()
	err := s.finish(ctx, r, map[string]any{
		"status":       domain.WithdrawalCancelled,
		"cancelled_at": now,
		"metadata":     r.Metadata.Settled(""),
	}, domain.WithdrawCancelled, hash, withdrawCancelledNote)
	if err != nil {
		return nil, err
	}
	r.Status = domain.WithdrawalCancelled
	r.CancelledAt = &now
	r.Metadata = r.Metadata.Settled("")

	countTransition(machineWithdrawal, string(domain.WithdrawalCancelled))
	s.emit(ctx, notify.SubjectWithdrawalCancelled, r, hash)
	return s.view(r), nil
}

func (s *WithdrawalService) Execute(ctx context.Context, userID, address string) (*WithdrawalView, error) {
	w, err := s.resolve(ctx, userID, address)
	if err != nil {
		return nil, err
	}
	release, err := s.locks.Acquire(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	active, err := s.settledRequest(ctx, w)
	if err != nil {
		return nil, err
	}
	if s.now().Before(active.AvailableAt) {
		return nil, s.cooldown(ctx, w, active)
	}

	cctx, cancel := withConfirmTimeout(ctx, s.confirmTimeout)
	rcpt, err := s.vault.ExecuteWithdrawalFor(cctx, w.Address)
	cancel()
	if err != nil {
		return nil, s.submitFailed(detached(ctx), active, opExecuteWithdrawal, err)
	}
	return s.completed(detached(ctx), active, rcpt.TxHash)
}

func (s *WithdrawalService) completed(ctx context.Context, r *domain.WithdrawalRequest, hash string) (*WithdrawalView, error) {
	now := s.now()
	err := s.finish(ctx, r, map[string]any{
		"status":          domain.WithdrawalCompleted,
		"execute_tx_hash": hash,
		"completed_at":    now,
		"metadata":        r.Metadata.Settled(""),
	}, domain.WithdrawCompleted, hash, withdrawCompletedNote)
	if err != nil {
		return nil, err
	}
	r.Status = domain.WithdrawalCompleted
	r.ExecuteTxHash = hash
	r.CompletedAt = &now
	r.Metadata = r.Metadata.Settled("")

	countTransition(machineWithdrawal, string(domain.WithdrawalCompleted))
	s.emit(ctx, notify.SubjectWithdrawalCompleted, r, hash)
	return s.view(r), nil
}

// Reconcile settles the wallet's active request whose last vault call went
// unconfirmed. A confirmed receipt completes the transition the call was
// making; a reverted one drops the marker, and a reverted request call
// cancels the request.
func (s *WithdrawalService) Reconcile(ctx context.Context, userID, address string) (*WithdrawalView, error) {
	w, err := s.resolve(ctx, userID, address)
	if err != nil {
		return nil, err
	}
	release, err := s.locks.Acquire(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	active, err := s.activeRequest(ctx, w)
	if err != nil {
		return nil, err
	}
	op, hash := active.InFlight()
	if hash == "" {
		return nil, xerr.Conflict(string(domain.DeriveStatus(active, s.now())), "withdrawal request %s has no submitted vault transaction", active.ID)
	}

	rcpt, err := s.vault.LookupReceipt(ctx, hash)
	if err != nil {
		return nil, xerr.Gateway("lookupReceipt", err)
	}
	if rcpt == nil {
		return nil, &xerr.UnconfirmedError{Op: op, TxHash: hash}
	}

	bg := detached(ctx)
	if rcpt.Reverted {
		return s.reverted(bg, active, op, hash)
	}
	switch op {
	case opCancelWithdrawal:
		return s.cancelled(bg, active, hash)
	case opExecuteWithdrawal:
		return s.completed(bg, active, hash)
	default:
		meta := active.Metadata.Settled("")
		err := s.store.Transaction(bg, func(ctx context.Context) error {
			if err := s.store.TransitionWithdrawal(ctx, active.ID, map[string]any{"metadata": meta}); err != nil {
				return err
			}
			return s.store.AppendLedger(ctx, requestedEntry(active))
		})
		if errors.Is(err, domain.ErrStatusChanged) {
			return nil, xerr.Conflict("", "withdrawal request %s is no longer active", active.ID)
		}
		if err != nil {
			return nil, err
		}
		active.Metadata = meta
		s.emit(bg, notify.SubjectWithdrawalRequested, active, hash)
		return s.view(active), nil
	}
}

func (s *WithdrawalService) reverted(ctx context.Context, r *domain.WithdrawalRequest, op, hash string) (*WithdrawalView, error) {
	meta := r.Metadata.Settled(hash)
	updates := map[string]any{"metadata": meta}
	if op == opRequestWithdrawal {
		now := s.now()
		updates["status"] = domain.WithdrawalCancelled
		updates["cancelled_at"] = now
		r.Status = domain.WithdrawalCancelled
		r.CancelledAt = &now
	}
	err := s.store.TransitionWithdrawal(ctx, r.ID, updates)
	if errors.Is(err, domain.ErrStatusChanged) {
		return nil, xerr.Conflict("", "withdrawal request %s is no longer active", r.ID)
	}
	if err != nil {
		return nil, err
	}
	r.Metadata = meta
	if op == opRequestWithdrawal {
		countTransition(machineWithdrawal, string(domain.WithdrawalCancelled))
	}
	logger.Warn(ctx, "submitted withdrawal call reverted",
		zap.String("request_id", r.ID), zap.String("op", op), zap.String("hash", hash))
	return s.view(r), nil
}

// List returns the wallet's requests, newest first.
func (s *WithdrawalService) List(ctx context.Context, userID, address string) ([]*WithdrawalView, error) {
	w, err := s.resolve(ctx, userID, address)
	if err != nil {
		return nil, err
	}
	rs, err := s.store.ListWithdrawals(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	out := make([]*WithdrawalView, 0, len(rs))
	for i := range rs {
		out = append(out, s.view(&rs[i]))
	}
	return out, nil
}

func (s *WithdrawalService) activeRequest(ctx context.Context, w *domain.Wallet) (*domain.WithdrawalRequest, error) {
	active, err := s.store.FindActiveWithdrawal(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, xerr.NotFound("active withdrawal request", w.Address)
	}
	return active, nil
}

// settledRequest returns the active request, refusing while an earlier vault
// call for it is still unconfirmed.
func (s *WithdrawalService) settledRequest(ctx context.Context, w *domain.Wallet) (*domain.WithdrawalRequest, error) {
	active, err := s.activeRequest(ctx, w)
	if err != nil {
		return nil, err
	}
	if op, hash := active.InFlight(); hash != "" {
		return nil, xerr.Conflict(string(domain.DeriveStatus(active, s.now())),
			"withdrawal request %s awaits confirmation of %s %s", active.ID, op, hash)
	}
	return active, nil
}

// submitFailed maps a failed cancel/execute call. An unconfirmed broadcast is
// stored on the request so it cannot be sent twice.
func (s *WithdrawalService) submitFailed(ctx context.Context, r *domain.WithdrawalRequest, op string, err error) error {
	var ue *xerr.UnconfirmedError
	if !errors.As(err, &ue) {
		return xerr.Gateway(op, err)
	}
	meta := r.Metadata.With(domain.MetaSubmittedTxHash, ue.TxHash).With(domain.MetaSubmittedOp, op)
	if terr := s.store.TransitionWithdrawal(ctx, r.ID, map[string]any{"metadata": meta}); terr != nil {
		logger.Error(ctx, "record submitted withdrawal call failed",
			zap.String("request_id", r.ID), zap.String("op", op), zap.String("hash", ue.TxHash), zap.Error(terr))
	}
	return ue
}

func requestedEntry(r *domain.WithdrawalRequest) *domain.SavingsLedger {
	return &domain.SavingsLedger{
		UserID:    r.UserID,
		WalletID:  r.WalletID,
		Action:    domain.WithdrawRequested,
		AmountWei: r.AmountWei,
		TxHash:    r.RequestTxHash,
		Notes:     withdrawRequestedNote,
	}
}

func (s *WithdrawalService) finish(ctx context.Context, r *domain.WithdrawalRequest, updates map[string]any, action domain.LedgerAction, hash, note string) error {
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		if err := s.store.TransitionWithdrawal(ctx, r.ID, updates); err != nil {
			return err
		}
		return s.store.AppendLedger(ctx, &domain.SavingsLedger{
			UserID:    r.UserID,
			WalletID:  r.WalletID,
			Action:    action,
			AmountWei: r.AmountWei,
			TxHash:    hash,
			Notes:     note,
		})
	})
	if errors.Is(err, domain.ErrStatusChanged) {
		return xerr.Conflict("", "withdrawal request %s is no longer active", r.ID)
	}
	if err != nil {
		logger.Error(ctx, "record withdrawal outcome failed",
			zap.String("request_id", r.ID), zap.String("action", string(action)), zap.String("hash", hash), zap.Error(err))
	}
	return err
}

// cooldown builds the refusal with the vault's view of the pending request.
func (s *WithdrawalService) cooldown(ctx context.Context, w *domain.Wallet, r *domain.WithdrawalRequest) error {
	cerr := &xerr.CooldownActiveError{
		AmountWei:   r.AmountWei.String(),
		AvailableAt: r.AvailableAt.Unix(),
	}
	acct, err := s.vault.GetAccount(ctx, w.Address)
	if err != nil {
		logger.Warn(ctx, "read vault account for cooldown", zap.String("wallet", w.Address), zap.Error(err))
		return cerr
	}
	if acct.PendingAmount != nil {
		cerr.OnChainPendingAmount = acct.PendingAmount.String()
	}
	cerr.OnChainAvailableAt = int64(acct.PendingAvailableAt)
	return cerr
}

func (s *WithdrawalService) emit(ctx context.Context, subject string, r *domain.WithdrawalRequest, hash string) {
	s.events.Emit(ctx, subject, notify.WithdrawalChanged{
		RequestID: r.ID,
		WalletID:  r.WalletID,
		AmountWei: r.AmountWei.String(),
		Status:    string(r.Status),
		TxHash:    hash,
	})
}
