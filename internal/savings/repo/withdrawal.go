package repo

import (
	"context"

	"github.com/samiecode/babylon/internal/savings/domain"
)

func (r *Repo) FindActiveWithdrawal(ctx context.Context, walletID string) (*domain.WithdrawalRequest, error) {
	var rs []domain.WithdrawalRequest
	err := r.getDb(ctx).
		Where("wallet_id = ? AND status IN ?", walletID, domain.ActiveWithdrawalStatuses).
		Order("created_at DESC").Limit(1).
		Find(&rs).Error
	if err != nil {
		return nil, dbErr("find active withdrawal", err)
	}
	if len(rs) == 0 {
		return nil, nil
	}
	return &rs[0], nil
}

func (r *Repo) CreateWithdrawal(ctx context.Context, req *domain.WithdrawalRequest) error {
	if err := r.getDb(ctx).Create(req).Error; err != nil {
		return dbErr("create withdrawal", err)
	}
	return nil
}

func (r *Repo) TransitionWithdrawal(ctx context.Context, id string, updates map[string]any) error {
	res := r.getDb(ctx).Model(&domain.WithdrawalRequest{}).
		Where("id = ? AND status IN ?", id, domain.ActiveWithdrawalStatuses).
		Updates(updates)
	if res.Error != nil {
		return dbErr("transition withdrawal", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrStatusChanged
	}
	return nil
}

func (r *Repo) ListWithdrawals(ctx context.Context, walletID string) ([]domain.WithdrawalRequest, error) {
	var rs []domain.WithdrawalRequest
	if err := r.getDb(ctx).Where("wallet_id = ?", walletID).Order("created_at DESC").Find(&rs).Error; err != nil {
		return nil, dbErr("list withdrawals", err)
	}
	return rs, nil
}

func (r *Repo) ListActiveWithdrawals(ctx context.Context, walletIDs []string) ([]domain.WithdrawalRequest, error) {
	if len(walletIDs) == 0 {
		return nil, nil
	}
	var rs []domain.WithdrawalRequest
	err := r.getDb(ctx).
		Where("wallet_id IN ? AND status IN ?", walletIDs, domain.ActiveWithdrawalStatuses).
		Order("created_at DESC").
		Find(&rs).Error
	if err != nil {
		return nil, dbErr("list active withdrawals", err)
	}
	return rs, nil
}
