package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/pkg/xerr"
)

func (r *Repo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if err := r.getDb(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if isNotFound(err) {
			return nil, xerr.NotFound("user", id)
		}
		return nil, dbErr("get user", err)
	}
	return &u, nil
}

func (r *Repo) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	if err := r.getDb(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if isNotFound(err) {
			return nil, xerr.NotFound("user", email)
		}
		return nil, dbErr("find user", err)
	}
	return &u, nil
}

func (r *Repo) CreateUser(ctx context.Context, u *domain.User) error {
	if err := r.getDb(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return xerr.Conflict("", "user %s already exists", u.Email)
		}
		return dbErr("create user", err)
	}
	return nil
}

func (r *Repo) UpdateUserConfig(ctx context.Context, userID string, bps int, delaySeconds int64) error {
	res := r.getDb(ctx).Model(&domain.User{}).Where("id = ?", userID).Updates(map[string]any{
		"saving_percent_bps":       bps,
		"withdrawal_delay_seconds": delaySeconds,
		"config_sync_status":       domain.SyncPending,
	})
	if res.Error != nil {
		return dbErr("update user config", res.Error)
	}
	if res.RowsAffected == 0 {
		return xerr.NotFound("user", userID)
	}
	return nil
}

func (r *Repo) SetUserSyncStatus(ctx context.Context, userID string, status domain.SyncStatus, syncedAt *time.Time) error {
	updates := map[string]any{"config_sync_status": status}
	if syncedAt != nil {
		updates["config_synced_at"] = *syncedAt
	}
	if err := r.getDb(ctx).Model(&domain.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return dbErr("set sync status", err)
	}
	return nil
}
