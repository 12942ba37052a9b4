package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/pkg/orm"
	"github.com/samiecode/babylon/pkg/xerr"
)

func (r *Repo) ListWatched(ctx context.Context) ([]domain.WatchedWallet, error) {
	var rows []domain.WatchedWallet
	err := r.getDb(ctx).Table("wallets").
		Select("wallets.id AS wallet_id, wallets.address, wallets.user_id, wallets.chain_id, "+
			"users.saving_percent_bps, users.withdrawal_delay_seconds").
		Joins("JOIN users ON users.id = wallets.user_id").
		Where("wallets.is_active = ?", true).
		Scan(&rows).Error
	if err != nil {
		return nil, dbErr("list watched wallets", err)
	}
	return rows, nil
}

func (r *Repo) ListWallets(ctx context.Context, page, limit int) ([]domain.Wallet, error) {
	var ws []domain.Wallet
	q := r.getDb(ctx).Preload("User").Order("created_at DESC").Scopes(orm.Paginate(page, limit))
	if err := q.Find(&ws).Error; err != nil {
		return nil, dbErr("list wallets", err)
	}
	return ws, nil
}

func (r *Repo) ListUserWallets(ctx context.Context, userID string) ([]domain.Wallet, error) {
	var ws []domain.Wallet
	if err := r.getDb(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&ws).Error; err != nil {
		return nil, dbErr("list user wallets", err)
	}
	return ws, nil
}

// FindWalletByAddress loads the wallet with its owner.
func (r *Repo) FindWalletByAddress(ctx context.Context, address string) (*domain.Wallet, error) {
	addr := strings.ToLower(strings.TrimSpace(address))
	var w domain.Wallet
	if err := r.getDb(ctx).Preload("User").Where("address = ?", addr).First(&w).Error; err != nil {
		if isNotFound(err) {
			return nil, xerr.NotFound("wallet", addr)
		}
		return nil, dbErr("find wallet", err)
	}
	return &w, nil
}

func (r *Repo) CreateWallet(ctx context.Context, w *domain.Wallet) error {
	if err := r.getDb(ctx).Omit(clause.Associations).Create(w).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return xerr.Conflict("", "wallet %s already registered", w.Address)
		}
		return dbErr("create wallet", err)
	}
	return nil
}

func (r *Repo) ActivateWallet(ctx context.Context, walletID string) error {
	if err := r.getDb(ctx).Model(&domain.Wallet{}).Where("id = ?", walletID).Update("is_active", true).Error; err != nil {
		return dbErr("activate wallet", err)
	}
	return nil
}

func (r *Repo) TouchWallet(ctx context.Context, walletID string, at time.Time) error {
	if err := r.getDb(ctx).Model(&domain.Wallet{}).Where("id = ?", walletID).Update("last_detected_at", at).Error; err != nil {
		return dbErr("touch wallet", err)
	}
	return nil
}

// LockWallet issues SELECT ... FOR UPDATE on the wallet row. SQLite ignores
// the locking clause and serializes writers instead.
func (r *Repo) LockWallet(ctx context.Context, walletID string) error {
	var w domain.Wallet
	err := r.getDb(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").Where("id = ?", walletID).First(&w).Error
	if err != nil {
		if isNotFound(err) {
			return xerr.NotFound("wallet", walletID)
		}
		return dbErr("lock wallet", err)
	}
	return nil
}
