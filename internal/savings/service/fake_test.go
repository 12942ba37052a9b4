package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/internal/savings/repo"
	"github.com/samiecode/babylon/pkg/orm"
)

type vaultCall struct {
	Method string
	Saver  string
	Amount *big.Int
	Rate   uint16
	Delay  uint64
}

// fakeVault records calls. errs keyed by method are returned instead of a
// receipt.
type fakeVault struct {
	mu       sync.Mutex
	calls    []vaultCall
	errs     map[string]error
	account  *domain.VaultAccount
	receipts map[string]*domain.VaultReceipt
	seq      int
}

func newFakeVault() *fakeVault {
	return &fakeVault{errs: map[string]error{}, receipts: map[string]*domain.VaultReceipt{}}
}

func (f *fakeVault) record(c vaultCall) (*domain.VaultReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if err := f.errs[c.Method]; err != nil {
		return nil, err
	}
	f.seq++
	return &domain.VaultReceipt{TxHash: fmt.Sprintf("0x%064x", f.seq), BlockNumber: uint64(100 + f.seq)}, nil
}

func (f *fakeVault) setErr(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = err
}

func (f *fakeVault) callsTo(method string) []vaultCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []vaultCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeVault) DepositFor(_ context.Context, saver string, amount *big.Int) (*domain.VaultReceipt, error) {
	return f.record(vaultCall{Method: "depositFor", Saver: saver, Amount: new(big.Int).Set(amount)})
}

func (f *fakeVault) ConfigureFor(_ context.Context, saver string, rate uint16, delay uint64) (*domain.VaultReceipt, error) {
	return f.record(vaultCall{Method: "configureFor", Saver: saver, Rate: rate, Delay: delay})
}

func (f *fakeVault) RequestWithdrawalFor(_ context.Context, saver string, amount *big.Int) (*domain.VaultReceipt, error) {
	return f.record(vaultCall{Method: "requestWithdrawalFor", Saver: saver, Amount: new(big.Int).Set(amount)})
}

func (f *fakeVault) CancelWithdrawalFor(_ context.Context, saver string) (*domain.VaultReceipt, error) {
	return f.record(vaultCall{Method: "cancelWithdrawalFor", Saver: saver})
}

func (f *fakeVault) ExecuteWithdrawalFor(_ context.Context, saver string) (*domain.VaultReceipt, error) {
	return f.record(vaultCall{Method: "executeWithdrawalFor", Saver: saver})
}

func (f *fakeVault) GetAccount(_ context.Context, saver string) (*domain.VaultAccount, error) {
	if _, err := f.record(vaultCall{Method: "getAccount", Saver: saver}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.account == nil {
		return &domain.VaultAccount{Balance: big.NewInt(0), PendingAmount: big.NewInt(0)}, nil
	}
	return f.account, nil
}

func (f *fakeVault) LookupReceipt(_ context.Context, hash string) (*domain.VaultReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["lookupReceipt"]; err != nil {
		return nil, err
	}
	return f.receipts[hash], nil
}

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) *repo.Repo {
	t.Helper()
	db, err := orm.New(&orm.Config{Driver: "sqlite", DSN: ":memory:", MaxOpen: 1, LogLevel: "silent"})
	require.NoError(t, err)
	r := repo.New(db)
	require.NoError(t, r.AutoMigrate(context.Background()))
	return r
}

func seedSaver(t *testing.T, s domain.Store, addr string, bps int, delay int64) (*domain.User, *domain.Wallet) {
	t.Helper()
	ctx := context.Background()
	u := &domain.User{Email: addr + "@wallet.babylon", Name: "saver", SavingPercentBps: bps, WithdrawalDelaySeconds: delay}
	require.NoError(t, s.CreateUser(ctx, u))
	w := &domain.Wallet{Address: addr, IsActive: true, ChainID: DefaultChainID, UserID: u.ID}
	require.NoError(t, s.CreateWallet(ctx, w))
	return u, w
}

func wei(s string) *big.Int {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad wei " + s)
	}
	return b
}
