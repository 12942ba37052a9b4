package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/samiecode/babylon/internal/savings/codec"
	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/pkg/logger"
	"github.com/samiecode/babylon/pkg/xerr"
)

const (
	DefaultChainID     int64 = 44787
	autoUserEmailHost        = "wallet.babylon"
	autoLabelDateStamp       = "2006-01-02"
)

type WalletService struct {
	store domain.Store
	watch Invalidator
	now   Clock
}

func NewWalletService(store domain.Store, watch Invalidator) *WalletService {
	if watch == nil {
		watch = nopInvalidator{}
	}
	return &WalletService{store: store, watch: watch, now: time.Now}
}

func (s *WalletService) List(ctx context.Context, page, limit int) ([]domain.Wallet, error) {
	return s.store.ListWallets(ctx, page, limit)
}

type CreateWalletInput struct {
	Address  string
	Label    string
	IsActive *bool
	UserID   string
	ChainID  int64
}

// Create registers a wallet. Without a user id the wallet gets its own
// placeholder user keyed by address.
func (s *WalletService) Create(ctx context.Context, in CreateWalletInput) (*domain.Wallet, error) {
	addr, err := codec.NormalizeAddress(in.Address)
	if err != nil {
		return nil, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	chainID := in.ChainID
	if chainID == 0 {
		chainID = DefaultChainID
	}

	w := &domain.Wallet{Address: addr, Label: in.Label, IsActive: active, ChainID: chainID, UserID: in.UserID}
	err = s.store.Transaction(ctx, func(ctx context.Context) error {
		if w.UserID == "" {
			u, err := s.ensureUser(ctx, addr)
			if err != nil {
				return err
			}
			w.UserID = u.ID
		} else if _, err := s.store.GetUser(ctx, w.UserID); err != nil {
			return err
		}
		return s.store.CreateWallet(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	s.watch.Invalidate()
	return w, nil
}

type AutoRegisterResult struct {
	Wallet        *domain.Wallet `json:"wallet"`
	AlreadyExists bool           `json:"alreadyExists"`
}

// AutoRegister is the idempotent first-connect registration.
func (s *WalletService) AutoRegister(ctx context.Context, address, label string, chainID int64) (*AutoRegisterResult, error) {
	addr, err := codec.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.FindWalletByAddress(ctx, addr)
	if err == nil {
		return &AutoRegisterResult{Wallet: existing, AlreadyExists: true}, nil
	}
	if !xerr.IsNotFound(err) {
		return nil, err
	}

	if strings.TrimSpace(label) == "" {
		label = "Auto-registered " + s.now().Format(autoLabelDateStamp)
	}
	if chainID == 0 {
		chainID = DefaultChainID
	}
	w, err := s.Create(ctx, CreateWalletInput{Address: addr, Label: label, ChainID: chainID})
	if xerr.IsConflict(err) {
		// lost a registration race
		if existing, ferr := s.store.FindWalletByAddress(ctx, addr); ferr == nil {
			return &AutoRegisterResult{Wallet: existing, AlreadyExists: true}, nil
		}
	}
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "wallet auto-registered", zap.String("wallet", addr), zap.String("user_id", w.UserID))
	return &AutoRegisterResult{Wallet: w}, nil
}

func (s *WalletService) ensureUser(ctx context.Context, addr string) (*domain.User, error) {
	email := fmt.Sprintf("%s@%s", addr, autoUserEmailHost)
	u, err := s.store.FindUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	var nf *xerr.NotFoundError
	if !errors.As(err, &nf) {
		return nil, err
	}
	u = &domain.User{
		Email:                  email,
		Name:                   "User " + addr[:6],
		SavingPercentBps:       0,
		WithdrawalDelaySeconds: domain.DefaultWithdrawalDelay,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
