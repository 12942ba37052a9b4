package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/pkg/xerr"
)

var onTransaction = []clause.Column{{Name: "transaction_id"}}

func (r *Repo) UpsertPendingDeposit(ctx context.Context, e *domain.SavingsLedger) error {
	e.Action = domain.DepositPending
	err := r.getDb(ctx).Clauses(clause.OnConflict{
		Columns: onTransaction,
		DoUpdates: clause.Assignments(map[string]any{
			"amount_wei": gorm.Expr("CASE WHEN action = ? THEN ? ELSE amount_wei END", domain.DepositPending, e.AmountWei),
			"updated_at": time.Now(),
		}),
	}).Create(e).Error
	if err != nil {
		return dbErr("upsert pending ledger", err)
	}
	return nil
}

func (r *Repo) UpsertDepositOutcome(ctx context.Context, e *domain.SavingsLedger) error {
	err := r.getDb(ctx).Clauses(clause.OnConflict{
		Columns: onTransaction,
		DoUpdates: clause.Assignments(map[string]any{
			"action":     e.Action,
			"amount_wei": e.AmountWei,
			"tx_hash":    e.TxHash,
			"notes":      e.Notes,
			"updated_at": time.Now(),
		}),
	}).Create(e).Error
	if err != nil {
		return dbErr("upsert deposit ledger", err)
	}
	return nil
}

func (r *Repo) AppendLedger(ctx context.Context, e *domain.SavingsLedger) error {
	if err := r.getDb(ctx).Create(e).Error; err != nil {
		return dbErr("append ledger", err)
	}
	return nil
}

func (r *Repo) ListLedger(ctx context.Context, userID string, limit int) ([]domain.SavingsLedger, error) {
	var es []domain.SavingsLedger
	if err := r.getDb(ctx).Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&es).Error; err != nil {
		return nil, dbErr("list ledger", err)
	}
	return es, nil
}

func (r *Repo) LedgerForTransaction(ctx context.Context, transactionID string) (*domain.SavingsLedger, error) {
	var e domain.SavingsLedger
	if err := r.getDb(ctx).Where("transaction_id = ?", transactionID).First(&e).Error; err != nil {
		if isNotFound(err) {
			return nil, xerr.NotFound("ledger entry", transactionID)
		}
		return nil, dbErr("get ledger", err)
	}
	return &e, nil
}
