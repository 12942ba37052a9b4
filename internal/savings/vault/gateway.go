// Package vault submits relayer transactions to the savings vault contract
// and waits for their receipts.
package vault

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/pkg/logger"
	"github.com/samiecode/babylon/pkg/metrics"
	"github.com/samiecode/babylon/pkg/ratelimit"
	"github.com/samiecode/babylon/pkg/xerr"
)

// Backend is the slice of the JSON-RPC client the gateway uses.
// *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type Config struct {
	RPCURL            string        `mapstructure:"rpc_url"`
	ChainID           int64         `mapstructure:"chain_id"`
	VaultAddress      string        `mapstructure:"vault_address"`
	RelayerPrivateKey string        `mapstructure:"relayer_private_key"`
	RelayerMnemonic   string        `mapstructure:"relayer_mnemonic"`
	RelayerIndex      uint32        `mapstructure:"relayer_index"`
	Confirmations     uint64        `mapstructure:"confirmations"`
	ConfirmTimeout    time.Duration `mapstructure:"confirm_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	GasBufferPercent  uint64        `mapstructure:"gas_buffer_percent"`
}

func (c *Config) validate() error {
	var missing []string
	if c.RPCURL == "" {
		missing = append(missing, "rpc_url")
	}
	if c.ChainID <= 0 {
		missing = append(missing, "chain_id")
	}
	if !common.IsHexAddress(c.VaultAddress) {
		missing = append(missing, "vault_address")
	}
	if len(missing) > 0 {
		return fmt.Errorf("vault: missing or invalid config: %s", strings.Join(missing, ", "))
	}
	return nil
}

const breakerName = "vault-rpc"

// Gateway is the go-ethereum VaultGateway. The RPC connection is opened on
// first use; a failed dial is retried on the next call.
type Gateway struct {
	cfg      Config
	breakers *ratelimit.Manager
	dial     func(ctx context.Context, url string) (Backend, error)

	dialMu  sync.Mutex
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	vault   common.Address
	chainID *big.Int
	signer  types.Signer

	// nonceMu serializes take-nonce/sign/send for the relayer account.
	nonceMu   sync.Mutex
	nextNonce uint64
	haveNonce bool
}

var _ domain.VaultGateway = (*Gateway)(nil)

func New(cfg Config, breakers *ratelimit.Manager) *Gateway {
	g := &Gateway{cfg: withDefaults(cfg), breakers: orDefault(breakers)}
	g.dial = func(ctx context.Context, url string) (Backend, error) {
		return ethclient.DialContext(ctx, url)
	}
	return g
}

// NewWithBackend builds a connected gateway over b.
func NewWithBackend(cfg Config, b Backend, breakers *ratelimit.Manager) (*Gateway, error) {
	g := &Gateway{cfg: withDefaults(cfg), breakers: orDefault(breakers)}
	if err := g.init(); err != nil {
		return nil, err
	}
	g.backend = b
	return g, nil
}

func orDefault(m *ratelimit.Manager) *ratelimit.Manager {
	if m != nil {
		return m
	}
	m = ratelimit.NewManager(ratelimit.Rule{}, nil)
	m.IsSuccessful = BreakerHealthy
	return m
}

func withDefaults(cfg Config) Config {
	if cfg.Confirmations == 0 {
		cfg.Confirmations = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.GasBufferPercent == 0 {
		cfg.GasBufferPercent = 20
	}
	return cfg
}

func (g *Gateway) init() error {
	if err := g.cfg.validate(); err != nil {
		return err
	}
	key, err := LoadRelayerKey(g.cfg.RelayerPrivateKey, g.cfg.RelayerMnemonic, g.cfg.RelayerIndex)
	if err != nil {
		return err
	}
	g.key = key
	g.from = crypto.PubkeyToAddress(key.PublicKey)
	g.vault = common.HexToAddress(g.cfg.VaultAddress)
	g.chainID = big.NewInt(g.cfg.ChainID)
	g.signer = types.LatestSignerForChainID(g.chainID)
	return nil
}

// Relayer returns the signing account, connecting if needed.
func (g *Gateway) Relayer(ctx context.Context) (common.Address, error) {
	if _, err := g.client(ctx); err != nil {
		return common.Address{}, err
	}
	return g.from, nil
}

func (g *Gateway) client(ctx context.Context) (Backend, error) {
	g.dialMu.Lock()
	defer g.dialMu.Unlock()
	if g.backend != nil {
		return g.backend, nil
	}
	if g.key == nil {
		if err := g.init(); err != nil {
			return nil, err
		}
	}
	b, err := g.dial(ctx, g.cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("vault: dial rpc: %w", err)
	}
	remote, err := b.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("vault: read chain id: %w", err)
	}
	if remote.Cmp(g.chainID) != 0 {
		return nil, fmt.Errorf("vault: rpc chain id %s, configured %s", remote, g.chainID)
	}
	g.backend = b
	logger.Info(ctx, "vault gateway connected",
		zap.String("vault", g.vault.Hex()),
		zap.String("relayer", g.from.Hex()),
		zap.Int64("chain_id", g.cfg.ChainID))
	return b, nil
}

// Close drops the RPC connection; the next call redials.
func (g *Gateway) Close() {
	g.dialMu.Lock()
	defer g.dialMu.Unlock()
	if c, ok := g.backend.(interface{ Close() }); ok {
		c.Close()
	}
	g.backend = nil
}

func (g *Gateway) DepositFor(ctx context.Context, saver string, amountWei *big.Int) (*domain.VaultReceipt, error) {
	if amountWei == nil || amountWei.Sign() <= 0 {
		return nil, xerr.Validation("amountWei", "must be positive")
	}
	return g.transact(ctx, MethodDepositFor, amountWei, common.HexToAddress(saver))
}

func (g *Gateway) ConfigureFor(ctx context.Context, saver string, rateBps uint16, delaySeconds uint64) (*domain.VaultReceipt, error) {
	return g.transact(ctx, MethodConfigureFor, nil, common.HexToAddress(saver), rateBps, delaySeconds)
}

func (g *Gateway) RequestWithdrawalFor(ctx context.Context, saver string, amountWei *big.Int) (*domain.VaultReceipt, error) {
	return g.transact(ctx, MethodRequestWithdrawalFor, nil, common.HexToAddress(saver), amountWei)
}

func (g *Gateway) CancelWithdrawalFor(ctx context.Context, saver string) (*domain.VaultReceipt, error) {
	return g.transact(ctx, MethodCancelWithdrawalFor, nil, common.HexToAddress(saver))
}

func (g *Gateway) ExecuteWithdrawalFor(ctx context.Context, saver string) (*domain.VaultReceipt, error) {
	return g.transact(ctx, MethodExecuteWithdrawalFor, nil, common.HexToAddress(saver))
}

func (g *Gateway) GetAccount(ctx context.Context, saver string) (acc *domain.VaultAccount, err error) {
	defer observe(MethodGetAccount, time.Now(), &err)

	b, err := g.client(ctx)
	if err != nil {
		return nil, xerr.Gateway(MethodGetAccount, err)
	}
	data, err := vaultABI.Pack(MethodGetAccount, common.HexToAddress(saver))
	if err != nil {
		return nil, xerr.Gateway(MethodGetAccount, err)
	}
	var raw []byte
	err = g.breakers.Do(breakerName, func() error {
		var callErr error
		raw, callErr = b.CallContract(ctx, ethereum.CallMsg{From: g.from, To: &g.vault, Data: data}, nil)
		return callErr
	})
	if err != nil {
		return nil, xerr.Gateway(MethodGetAccount, err)
	}
	acc, err = decodeAccount(raw)
	if err != nil {
		return nil, xerr.Gateway(MethodGetAccount, err)
	}
	return acc, nil
}

func decodeAccount(raw []byte) (*domain.VaultAccount, error) {
	out, err := vaultABI.Unpack(MethodGetAccount, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack account: %w", err)
	}
	if len(out) != 7 {
		return nil, fmt.Errorf("unpack account: want 7 values, got %d", len(out))
	}
	acc := &domain.VaultAccount{}
	var ok [7]bool
	acc.RateBps, ok[0] = out[0].(uint16)
	acc.WithdrawalDelay, ok[1] = out[1].(uint64)
	acc.Balance, ok[2] = out[2].(*big.Int)
	acc.TotalDeposited, ok[3] = out[3].(*big.Int)
	acc.TotalWithdrawn, ok[4] = out[4].(*big.Int)
	acc.PendingAmount, ok[5] = out[5].(*big.Int)
	acc.PendingAvailableAt, ok[6] = out[6].(uint64)
	for i, v := range ok {
		if !v {
			return nil, fmt.Errorf("unpack account: field %d has type %T", i, out[i])
		}
	}
	return acc, nil
}

func (g *Gateway) LookupReceipt(ctx context.Context, txHash string) (*domain.VaultReceipt, error) {
	b, err := g.client(ctx)
	if err != nil {
		return nil, xerr.Gateway("lookupReceipt", err)
	}
	r, err := b.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, xerr.Gateway("lookupReceipt", err)
	}
	return toReceipt(r), nil
}

func (g *Gateway) transact(ctx context.Context, method string, value *big.Int, args ...any) (rcpt *domain.VaultReceipt, err error) {
	defer observe(method, time.Now(), &err)

	b, err := g.client(ctx)
	if err != nil {
		return nil, xerr.Gateway(method, err)
	}
	data, err := vaultABI.Pack(method, args...)
	if err != nil {
		return nil, xerr.Gateway(method, fmt.Errorf("pack: %w", err))
	}

	var tx *types.Transaction
	err = g.breakers.Do(breakerName, func() error {
		var sendErr error
		tx, sendErr = g.send(ctx, b, data, value)
		return sendErr
	})
	var be *broadcastError
	if errors.As(err, &be) {
		logger.Warn(ctx, "vault broadcast outcome unknown",
			zap.String("method", method), zap.String("hash", be.hash), zap.Error(be.err))
		return nil, &xerr.UnconfirmedError{Op: method, TxHash: be.hash}
	}
	if err != nil {
		logger.Error(ctx, "vault transaction not sent", zap.String("method", method), zap.Error(err))
		return nil, xerr.Gateway(method, err)
	}

	logger.Info(ctx, "vault transaction broadcast",
		zap.String("method", method),
		zap.Uint64("nonce", tx.Nonce()),
		zap.String("hash", tx.Hash().Hex()))

	return g.waitMined(ctx, b, method, tx.Hash())
}

// send takes the next nonce, prices, signs and broadcasts one transaction.
func (g *Gateway) send(ctx context.Context, b Backend, data []byte, value *big.Int) (*types.Transaction, error) {
	g.nonceMu.Lock()
	defer g.nonceMu.Unlock()

	if !g.haveNonce {
		n, err := b.PendingNonceAt(ctx, g.from)
		if err != nil {
			return nil, fmt.Errorf("get nonce: %w", err)
		}
		g.nextNonce, g.haveNonce = n, true
	}
	nonce := g.nextNonce

	tip, err := b.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("get gas tip: %w", err)
	}
	head, err := b.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("get header: %w", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)

	if value == nil {
		value = new(big.Int)
	}
	gas, err := b.EstimateGas(ctx, ethereum.CallMsg{
		From:      g.from,
		To:        &g.vault,
		GasFeeCap: feeCap,
		GasTipCap: tip,
		Value:     value,
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * g.cfg.GasBufferPercent / 100

	signed, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   g.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &g.vault,
		Value:     value,
		Data:      data,
	}), g.signer, g.key)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	if err := b.SendTransaction(ctx, signed); err != nil {
		// resync from the node on the next send
		g.haveNonce = false
		if ambiguous(err) {
			return nil, &broadcastError{hash: signed.Hash().Hex(), err: err}
		}
		return nil, fmt.Errorf("broadcast: %w", err)
	}
	g.nextNonce = nonce + 1
	return signed, nil
}

// waitMined polls for the receipt until it has the configured confirmations.
// ctx expiry after broadcast is reported as UnconfirmedError.
func (g *Gateway) waitMined(ctx context.Context, b Backend, method string, hash common.Hash) (*domain.VaultReceipt, error) {
	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()

	for {
		r, err := b.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && r.Status != types.ReceiptStatusSuccessful:
			return nil, xerr.Gateway(method, fmt.Errorf("transaction %s reverted", hash.Hex()))
		case err == nil:
			ok, headErr := g.confirmed(ctx, b, r)
			if headErr == nil && ok {
				return toReceipt(r), nil
			}
		case !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil:
			logger.Warn(ctx, "receipt poll failed", zap.String("hash", hash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			logger.Warn(ctx, "vault transaction unconfirmed",
				zap.String("method", method), zap.String("hash", hash.Hex()))
			return nil, &xerr.UnconfirmedError{Op: method, TxHash: hash.Hex()}
		case <-ticker.C:
		}
	}
}

func (g *Gateway) confirmed(ctx context.Context, b Backend, r *types.Receipt) (bool, error) {
	if g.cfg.Confirmations <= 1 || r.BlockNumber == nil {
		return true, nil
	}
	head, err := b.BlockNumber(ctx)
	if err != nil {
		return false, err
	}
	mined := r.BlockNumber.Uint64()
	return head >= mined && head-mined+1 >= g.cfg.Confirmations, nil
}

func toReceipt(r *types.Receipt) *domain.VaultReceipt {
	out := &domain.VaultReceipt{
		TxHash:   r.TxHash.Hex(),
		GasUsed:  r.GasUsed,
		Reverted: r.Status != types.ReceiptStatusSuccessful,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	return out
}

func observe(method string, start time.Time, errp *error) {
	result := "ok"
	var ue *xerr.UnconfirmedError
	switch {
	case *errp == nil:
	case errors.As(*errp, &ue):
		result = "unconfirmed"
	default:
		result = "error"
	}
	metrics.VaultCallsTotal.WithLabelValues(method, result).Inc()
	metrics.VaultCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
