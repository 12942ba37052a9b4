package domain

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// ErrStatusChanged is returned by guarded transitions when the row is no
// longer in the expected status.
var ErrStatusChanged = errors.New("status changed concurrently")

// Transactor runs fn in one database transaction carried by ctx.
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserRepo interface {
	GetUser(ctx context.Context, id string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	// UpdateUserConfig stores the saving config and marks it PENDING_SYNC.
	UpdateUserConfig(ctx context.Context, userID string, bps int, delaySeconds int64) error
	SetUserSyncStatus(ctx context.Context, userID string, status SyncStatus, syncedAt *time.Time) error
}

type WalletRepo interface {
	// ListWatched returns active wallets joined with owner config.
	ListWatched(ctx context.Context) ([]WatchedWallet, error)
	// ListWallets pages newest first; page or limit <= 0 returns everything.
	ListWallets(ctx context.Context, page, limit int) ([]Wallet, error)
	ListUserWallets(ctx context.Context, userID string) ([]Wallet, error)
	FindWalletByAddress(ctx context.Context, address string) (*Wallet, error)
	CreateWallet(ctx context.Context, w *Wallet) error
	ActivateWallet(ctx context.Context, walletID string) error
	TouchWallet(ctx context.Context, walletID string, at time.Time) error
	// LockWallet takes a row lock on the wallet where the engine supports it.
	LockWallet(ctx context.Context, walletID string) error
}

type TransactionRepo interface {
	// UpsertIncoming inserts or refreshes by (tx_hash, wallet_id, token_address)
	// and returns the stored row.
	UpsertIncoming(ctx context.Context, t *IncomingTransaction) (*IncomingTransaction, error)
	GetIncoming(ctx context.Context, id string, forUpdate bool) (*IncomingTransaction, error)
	// TransitionIncoming applies updates only while status == from.
	TransitionIncoming(ctx context.Context, id string, from TxStatus, updates map[string]any) error
	ListOpenIncoming(ctx context.Context, walletIDs []string, limit int) ([]IncomingTransaction, error)
	CountPendingIncoming(ctx context.Context, walletIDs []string) (int64, error)
}

type LedgerRepo interface {
	// UpsertPendingDeposit writes DEPOSIT_PENDING keyed by transaction id; a
	// row that already moved past pending keeps its action and amount.
	UpsertPendingDeposit(ctx context.Context, e *SavingsLedger) error
	// UpsertDepositOutcome overwrites the transaction's ledger row.
	UpsertDepositOutcome(ctx context.Context, e *SavingsLedger) error
	AppendLedger(ctx context.Context, e *SavingsLedger) error
	ListLedger(ctx context.Context, userID string, limit int) ([]SavingsLedger, error)
	LedgerForTransaction(ctx context.Context, transactionID string) (*SavingsLedger, error)
}

type WithdrawalRepo interface {
	// FindActiveWithdrawal returns the newest PENDING/READY request, or nil.
	FindActiveWithdrawal(ctx context.Context, walletID string) (*WithdrawalRequest, error)
	CreateWithdrawal(ctx context.Context, r *WithdrawalRequest) error
	// TransitionWithdrawal applies updates only while the request is active.
	TransitionWithdrawal(ctx context.Context, id string, updates map[string]any) error
	ListWithdrawals(ctx context.Context, walletID string) ([]WithdrawalRequest, error)
	ListActiveWithdrawals(ctx context.Context, walletIDs []string) ([]WithdrawalRequest, error)
}

// Store is everything the services need from persistence.
type Store interface {
	Transactor
	UserRepo
	WalletRepo
	TransactionRepo
	LedgerRepo
	WithdrawalRepo
}

// WeiFromBig converts a chain amount to a decimal column value.
func WeiFromBig(b *big.Int) decimal.Decimal {
	if b == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(b, 0)
}

// BigFromWei converts a stored wei column back to an integer.
func BigFromWei(d decimal.Decimal) *big.Int {
	return d.BigInt()
}
