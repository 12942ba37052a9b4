package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/pkg/xerr"
)

// UpsertIncoming inserts t as PENDING or refreshes the existing row with the
// same natural key. Status is never rewritten; the save amount and metadata
// only move while the row is still PENDING.
func (r *Repo) UpsertIncoming(ctx context.Context, t *domain.IncomingTransaction) (*domain.IncomingTransaction, error) {
	db := r.getDb(ctx)
	t.Status = domain.TxPending

	err := db.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tx_hash"}, {Name: "wallet_id"}, {Name: "token_address"}},
		DoUpdates: clause.Assignments(map[string]any{
			"amount_raw":   t.AmountRaw,
			"from_address": t.FromAddress,
			"to_address":   t.ToAddress,
			"block_number": t.BlockNumber,
			"detected_at":  t.DetectedAt,
			"metadata": gorm.Expr("CASE WHEN status = ? THEN ? ELSE metadata END",
				domain.TxPending, t.Metadata),
			"updated_at": time.Now(),
			"save_amount_wei": gorm.Expr("CASE WHEN status = ? THEN ? ELSE save_amount_wei END",
				domain.TxPending, t.SaveAmountWei),
		}),
	}).Create(t).Error
	if err != nil {
		return nil, dbErr("upsert incoming transaction", err)
	}

	var stored domain.IncomingTransaction
	err = db.Where("tx_hash = ? AND wallet_id = ? AND token_address = ?", t.TxHash, t.WalletID, t.TokenAddress).
		First(&stored).Error
	if err != nil {
		return nil, dbErr("reload incoming transaction", err)
	}
	return &stored, nil
}

// GetIncoming loads a transaction with its wallet. forUpdate row-locks the
// transaction where the engine supports it.
func (r *Repo) GetIncoming(ctx context.Context, id string, forUpdate bool) (*domain.IncomingTransaction, error) {
	db := r.getDb(ctx)
	q := db.Where("id = ?", id)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var t domain.IncomingTransaction
	if err := q.First(&t).Error; err != nil {
		if isNotFound(err) {
			return nil, xerr.NotFound("transaction", id)
		}
		return nil, dbErr("get incoming transaction", err)
	}

	var w domain.Wallet
	if err := db.Where("id = ?", t.WalletID).First(&w).Error; err != nil {
		return nil, dbErr("load transaction wallet", err)
	}
	t.Wallet = &w
	return &t, nil
}

func (r *Repo) TransitionIncoming(ctx context.Context, id string, from domain.TxStatus, updates map[string]any) error {
	res := r.getDb(ctx).Model(&domain.IncomingTransaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return dbErr("transition incoming transaction", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrStatusChanged
	}
	return nil
}

var openTxStatuses = []domain.TxStatus{domain.TxPending, domain.TxAuthorized}

func (r *Repo) ListOpenIncoming(ctx context.Context, walletIDs []string, limit int) ([]domain.IncomingTransaction, error) {
	if len(walletIDs) == 0 {
		return nil, nil
	}
	var ts []domain.IncomingTransaction
	err := r.getDb(ctx).
		Where("wallet_id IN ? AND status IN ?", walletIDs, openTxStatuses).
		Order("detected_at DESC").Limit(limit).
		Find(&ts).Error
	if err != nil {
		return nil, dbErr("list open transactions", err)
	}
	return ts, nil
}

func (r *Repo) CountPendingIncoming(ctx context.Context, walletIDs []string) (int64, error) {
	if len(walletIDs) == 0 {
		return 0, nil
	}
	var n int64
	err := r.getDb(ctx).Model(&domain.IncomingTransaction{}).
		Where("wallet_id IN ? AND status = ?", walletIDs, domain.TxPending).
		Count(&n).Error
	if err != nil {
		return 0, dbErr("count pending transactions", err)
	}
	return n, nil
}
