package domain

import (
	"context"
	"math/big"
)

// VaultAccount mirrors the vault's getAccount tuple.
type VaultAccount struct {
	RateBps            uint16
	WithdrawalDelay    uint64
	Balance            *big.Int
	TotalDeposited     *big.Int
	TotalWithdrawn     *big.Int
	PendingAmount      *big.Int
	PendingAvailableAt uint64
}

type VaultReceipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	Reverted    bool
}

// VaultGateway drives the on-chain savings vault through the relayer. Writes
// block until the receipt is confirmed or ctx expires; on expiry they return
// *xerr.UnconfirmedError carrying the broadcast hash.
type VaultGateway interface {
	DepositFor(ctx context.Context, saver string, amountWei *big.Int) (*VaultReceipt, error)
	ConfigureFor(ctx context.Context, saver string, rateBps uint16, delaySeconds uint64) (*VaultReceipt, error)
	RequestWithdrawalFor(ctx context.Context, saver string, amountWei *big.Int) (*VaultReceipt, error)
	CancelWithdrawalFor(ctx context.Context, saver string) (*VaultReceipt, error)
	ExecuteWithdrawalFor(ctx context.Context, saver string) (*VaultReceipt, error)
	GetAccount(ctx context.Context, saver string) (*VaultAccount, error)
	// LookupReceipt returns (nil, nil) while txHash is not mined.
	LookupReceipt(ctx context.Context, txHash string) (*VaultReceipt, error)
}
