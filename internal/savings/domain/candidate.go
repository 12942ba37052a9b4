package domain

import "math/big"

// WatchedWallet is the watch-list view of an active wallet and its owner's
// saving configuration.
type WatchedWallet struct {
	WalletID               string
	Address                string
	UserID                 string
	ChainID                int64
	SavingPercentBps       int
	WithdrawalDelaySeconds int64
}

// Candidate is one matched inbound transfer on its way to persistence.
type Candidate struct {
	Wallet           WatchedWallet
	From             string
	To               string
	Token            string
	AmountRaw        *big.Int
	SaveAmountWei    *big.Int
	TxHash           string
	BlockNumber      int64
	LogIndex         *int64
	TransactionIndex *int64
}
