package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/pkg/xerr"
)

func TestAutoRegister(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	inv := &countingInvalidator{}
	svc := NewWalletService(store, inv)
	svc.now = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }

	res, err := svc.AutoRegister(ctx, "0xABC0000000000000000000000000000000000001", "", 0)
	require.NoError(t, err)
	assert.False(t, res.AlreadyExists)
	assert.Equal(t, saverAddr, res.Wallet.Address)
	assert.Equal(t, "Auto-registered 2026-03-04", res.Wallet.Label)
	assert.Equal(t, DefaultChainID, res.Wallet.ChainID)
	assert.True(t, res.Wallet.IsActive)
	assert.Equal(t, 1, inv.n)

	u, err := store.GetUser(ctx, res.Wallet.UserID)
	require.NoError(t, err)
	assert.Equal(t, saverAddr+"@wallet.babylon", u.Email)
	assert.Equal(t, "User 0xabc0", u.Name)
	assert.Equal(t, 0, u.SavingPercentBps)
	assert.Equal(t, domain.DefaultWithdrawalDelay, u.WithdrawalDelaySeconds)

	again, err := svc.AutoRegister(ctx, saverAddr, "other", 1)
	require.NoError(t, err)
	assert.True(t, again.AlreadyExists)
	assert.Equal(t, res.Wallet.ID, again.Wallet.ID)

	_, err = svc.AutoRegister(ctx, "not-an-address", "", 0)
	assert.True(t, xerr.IsValidation(err))
}

func TestWalletCreateAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := NewWalletService(store, nil)

	inactive := false
	w, err := svc.Create(ctx, CreateWalletInput{Address: saverAddr, Label: "main", IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, w.IsActive)

	_, err = svc.Create(ctx, CreateWalletInput{Address: "0xABC0000000000000000000000000000000000001"})
	assert.True(t, xerr.IsConflict(err))

	second, err := svc.Create(ctx, CreateWalletInput{Address: "0xdef0000000000000000000000000000000000002", UserID: w.UserID})
	require.NoError(t, err)
	assert.True(t, second.IsActive)

	_, err = svc.Create(ctx, CreateWalletInput{Address: "0x9990000000000000000000000000000000000009", UserID: "nobody"})
	assert.True(t, xerr.IsNotFound(err))

	list, err := svc.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	first, err := svc.List(ctx, 1, 1)
	require.NoError(t, err)
	paged, err := svc.List(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Len(t, paged, 1)
	assert.NotEqual(t, first[0].ID, paged[0].ID)
	for _, lw := range list {
		require.NotNil(t, lw.User)
		assert.Equal(t, w.UserID, lw.User.ID)
	}
}
