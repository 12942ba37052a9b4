package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/pkg/orm"
	"github.com/samiecode/babylon/pkg/xerr"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := orm.New(&orm.Config{Driver: "sqlite", DSN: ":memory:", MaxOpen: 1, LogLevel: "silent"})
	require.NoError(t, err)
	r := New(db)
	require.NoError(t, r.AutoMigrate(context.Background()))
	return r
}

func seedWallet(t *testing.T, r *Repo, addr string, bps int, active bool) (*domain.User, *domain.Wallet) {
	t.Helper()
	ctx := context.Background()
	u := &domain.User{Email: addr + "@wallet.babylon", Name: "u", SavingPercentBps: bps, WithdrawalDelaySeconds: domain.DefaultWithdrawalDelay}
	require.NoError(t, r.CreateUser(ctx, u))
	w := &domain.Wallet{Address: addr, IsActive: active, ChainID: 44787, UserID: u.ID}
	require.NoError(t, r.CreateWallet(ctx, w))
	return u, w
}

func incoming(w *domain.Wallet, amount, save int64) *domain.IncomingTransaction {
	return &domain.IncomingTransaction{
		TxHash:        "0xhash",
		WalletID:      w.ID,
		TokenAddress:  "0xtoken",
		FromAddress:   "0xfrom",
		ToAddress:     w.Address,
		AmountRaw:     decimal.NewFromInt(amount),
		SaveAmountWei: decimal.NewFromInt(save),
		BlockNumber:   10,
		DetectedAt:    time.Now(),
		Metadata:      domain.Metadata{domain.MetaLogIndex: 1},
	}
}

func TestWallet_CreateNormalizesAndRejectsDuplicate(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	_, w := seedWallet(t, r, "0xABCDEF0000000000000000000000000000000001", 100, true)
	assert.Equal(t, "0xabcdef0000000000000000000000000000000001", w.Address)

	got, err := r.FindWalletByAddress(ctx, "0xAbCdEf0000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)
	require.NotNil(t, got.User)
	assert.Equal(t, 100, got.User.SavingPercentBps)

	dup := &domain.Wallet{Address: "0xabcdef0000000000000000000000000000000001", UserID: w.UserID}
	err = r.CreateWallet(ctx, dup)
	assert.True(t, xerr.IsConflict(err), "got %v", err)

	_, err = r.FindWalletByAddress(ctx, "0x0000000000000000000000000000000000000009")
	assert.True(t, xerr.IsNotFound(err))
}

func TestListWatched_OnlyActive(t *testing.T) {
	r := newTestRepo(t)
	_, active := seedWallet(t, r, "0xa000000000000000000000000000000000000001", 1500, true)
	seedWallet(t, r, "0xb000000000000000000000000000000000000002", 200, false)

	rows, err := r.ListWatched(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, active.ID, rows[0].WalletID)
	assert.Equal(t, active.Address, rows[0].Address)
	assert.Equal(t, 1500, rows[0].SavingPercentBps)
	assert.Equal(t, domain.DefaultWithdrawalDelay, rows[0].WithdrawalDelaySeconds)
	assert.Equal(t, int64(44787), rows[0].ChainID)
}

func TestUpsertIncoming_Idempotent(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	_, w := seedWallet(t, r, "0xa000000000000000000000000000000000000001", 1500, true)

	first, err := r.UpsertIncoming(ctx, incoming(w, 1000, 150))
	require.NoError(t, err)
	assert.Equal(t, domain.TxPending, first.Status)

	second, err := r.UpsertIncoming(ctx, incoming(w, 2000, 300))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "300", second.SaveAmountWei.String())
	assert.Equal(t, "2000", second.AmountRaw.String())

	var n int64
	require.NoError(t, r.db.Model(&domain.IncomingTransaction{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	// a settled row keeps its status and save amount on redelivery
	require.NoError(t, r.TransitionIncoming(ctx, first.ID, domain.TxPending, map[string]any{"status": domain.TxFunded}))
	third, err := r.UpsertIncoming(ctx, incoming(w, 5000, 750))
	require.NoError(t, err)
	assert.Equal(t, domain.TxFunded, third.Status)
	assert.Equal(t, "300", third.SaveAmountWei.String())
	assert.Equal(t, "5000", third.AmountRaw.String())
}

func TestTransitionIncoming_Guarded(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	_, w := seedWallet(t, r, "0xa000000000000000000000000000000000000001", 1500, true)
	tx, err := r.UpsertIncoming(ctx, incoming(w, 1000, 150))
	require.NoError(t, err)

	require.NoError(t, r.TransitionIncoming(ctx, tx.ID, domain.TxPending, map[string]any{"status": domain.TxRejected}))
	err = r.TransitionIncoming(ctx, tx.ID, domain.TxPending, map[string]any{"status": domain.TxAuthorized})
	assert.ErrorIs(t, err, domain.ErrStatusChanged)

	got, err := r.GetIncoming(ctx, tx.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.TxRejected, got.Status)
	require.NotNil(t, got.Wallet)
	assert.Equal(t, w.Address, got.Wallet.Address)

	_, err = r.GetIncoming(ctx, "missing", false)
	assert.True(t, xerr.IsNotFound(err))
}

func TestLedger_PendingUpsertKeepsOutcome(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u, w := seedWallet(t, r, "0xa000000000000000000000000000000000000001", 1500, true)
	tx, err := r.UpsertIncoming(ctx, incoming(w, 1000, 150))
	require.NoError(t, err)

	entry := func(amount int64) *domain.SavingsLedger {
		return &domain.SavingsLedger{UserID: u.ID, WalletID: w.ID, TransactionID: &tx.ID, AmountWei: decimal.NewFromInt(amount)}
	}

	require.NoError(t, r.UpsertPendingDeposit(ctx, entry(150)))
	require.NoError(t, r.UpsertPendingDeposit(ctx, entry(300)))
	got, err := r.LedgerForTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositPending, got.Action)
	assert.Equal(t, "300", got.AmountWei.String())

	outcome := entry(300)
	outcome.Action = domain.DepositConfirmed
	outcome.TxHash = "0xvault"
	outcome.Notes = "funded"
	require.NoError(t, r.UpsertDepositOutcome(ctx, outcome))

	require.NoError(t, r.UpsertPendingDeposit(ctx, entry(999)))
	got, err = r.LedgerForTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositConfirmed, got.Action)
	assert.Equal(t, "300", got.AmountWei.String())
	assert.Equal(t, "0xvault", got.TxHash)

	list, err := r.ListLedger(ctx, u.ID, 50)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestTransaction_RollsBack(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	_, w := seedWallet(t, r, "0xa000000000000000000000000000000000000001", 1500, true)

	boom := errors.New("boom")
	err := r.Transaction(ctx, func(ctx context.Context) error {
		if _, err := r.UpsertIncoming(ctx, incoming(w, 1000, 150)); err != nil {
			return err
		}
		// nested calls join the outer transaction
		return r.Transaction(ctx, func(ctx context.Context) error {
			require.NoError(t, r.TouchWallet(ctx, w.ID, time.Now()))
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)

	var n int64
	require.NoError(t, r.db.Model(&domain.IncomingTransaction{}).Count(&n).Error)
	assert.Zero(t, n)
	got, err := r.FindWalletByAddress(ctx, w.Address)
	require.NoError(t, err)
	assert.Nil(t, got.LastDetectedAt)
}

func TestWithdrawals(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u, w := seedWallet(t, r, "0xa000000000000000000000000000000000000001", 1500, true)

	none, err := r.FindActiveWithdrawal(ctx, w.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	req := &domain.WithdrawalRequest{UserID: u.ID, WalletID: w.ID, AmountWei: decimal.NewFromInt(5), AvailableAt: time.Now().Add(time.Hour)}
	require.NoError(t, r.Transaction(ctx, func(ctx context.Context) error {
		if err := r.LockWallet(ctx, w.ID); err != nil {
			return err
		}
		return r.CreateWithdrawal(ctx, req)
	}))
	assert.Equal(t, domain.WithdrawalPending, req.Status)

	active, err := r.FindActiveWithdrawal(ctx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, req.ID, active.ID)

	list, err := r.ListActiveWithdrawals(ctx, []string{w.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, r.TransitionWithdrawal(ctx, req.ID, map[string]any{"status": domain.WithdrawalCancelled}))
	assert.ErrorIs(t, r.TransitionWithdrawal(ctx, req.ID, map[string]any{"status": domain.WithdrawalCompleted}), domain.ErrStatusChanged)

	active, err = r.FindActiveWithdrawal(ctx, w.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	all, err := r.ListWithdrawals(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.WithdrawalCancelled, all[0].Status)
}

func TestUserConfig(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u, _ := seedWallet(t, r, "0xa000000000000000000000000000000000000001", 0, true)
	assert.Equal(t, domain.SyncSynced, u.ConfigSyncStatus)

	require.NoError(t, r.UpdateUserConfig(ctx, u.ID, 25, 7200))
	got, err := r.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.SavingPercentBps)
	assert.Equal(t, int64(7200), got.WithdrawalDelaySeconds)
	assert.Equal(t, domain.SyncPending, got.ConfigSyncStatus)

	now := time.Now()
	require.NoError(t, r.SetUserSyncStatus(ctx, u.ID, domain.SyncSynced, &now))
	got, err = r.FindUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncSynced, got.ConfigSyncStatus)
	assert.NotNil(t, got.ConfigSyncedAt)

	assert.True(t, xerr.IsNotFound(r.UpdateUserConfig(ctx, "missing", 1, 3600)))
}
