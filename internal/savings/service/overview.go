package service

import (
	"context"
	"strings"
	"time"

	"github.com/samiecode/babylon/internal/savings/codec"
	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/pkg/xerr"
)

const overviewLimit = 50

type OverviewService struct {
	store domain.Store
	now   Clock
}

func NewOverviewService(store domain.Store) *OverviewService {
	return &OverviewService{store: store, now: time.Now}
}

type OverviewStats struct {
	TotalWallets        int   `json:"totalWallets"`
	PendingTransactions int64 `json:"pendingTransactions"`
	PendingWithdrawals  int   `json:"pendingWithdrawals"`
}

type Overview struct {
	User         *domain.User                 `json:"user"`
	Wallets      []domain.Wallet              `json:"wallets"`
	Transactions []domain.IncomingTransaction `json:"pendingTransactions"`
	Ledger       []domain.SavingsLedger       `json:"ledgerEntries"`
	Withdrawals  []*WithdrawalView            `json:"withdrawalRequests"`
	Stats        OverviewStats                `json:"stats"`
}

func (s *OverviewService) Get(ctx context.Context, address string) (*Overview, error) {
	if strings.TrimSpace(address) == "" {
		return nil, xerr.Validation("address", "address is required")
	}
	addr, err := codec.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	w, err := s.store.FindWalletByAddress(ctx, addr)
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, w.UserID)
	if err != nil {
		return nil, err
	}
	wallets, err := s.store.ListUserWallets(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(wallets))
	for _, uw := range wallets {
		ids = append(ids, uw.ID)
	}

	txs, err := s.store.ListOpenIncoming(ctx, ids, overviewLimit)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.CountPendingIncoming(ctx, ids)
	if err != nil {
		return nil, err
	}
	ledger, err := s.store.ListLedger(ctx, u.ID, overviewLimit)
	if err != nil {
		return nil, err
	}
	active, err := s.store.ListActiveWithdrawals(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]*WithdrawalView, 0, len(active))
	for i := range active {
		views = append(views, &WithdrawalView{WithdrawalRequest: active[i], Status: domain.DeriveStatus(&active[i], now)})
	}

	return &Overview{
		User:         u,
		Wallets:      wallets,
		Transactions: txs,
		Ledger:       ledger,
		Withdrawals:  views,
		Stats: OverviewStats{
			TotalWallets:        len(wallets),
			PendingTransactions: pending,
			PendingWithdrawals:  len(views),
		},
	}, nil
}
