package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/pkg/xerr"
)

type Repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

var _ domain.Store = (*Repo)(nil)

type txKey struct{}

// Transaction runs fn in one transaction; the tx travels in ctx so every repo
// call made with that ctx joins it.
func (r *Repo) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// getDb returns the ctx transaction if there is one, else the pool.
func (r *Repo) getDb(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// AutoMigrate creates or updates the savings tables.
func (r *Repo) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&domain.User{},
		&domain.Wallet{},
		&domain.IncomingTransaction{},
		&domain.SavingsLedger{},
		&domain.WithdrawalRequest{},
	)
}

func dbErr(op string, err error) error {
	return xerr.New(xerr.DbError, fmt.Sprintf("%s: %v", op, err))
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
