// Package notify publishes savings lifecycle events.
package notify

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"github.com/samiecode/babylon/pkg/logger"
)

const (
	SubjectTransferDetected    = "savings.transfer.detected"
	SubjectDepositFunded       = "savings.deposit.funded"
	SubjectDepositRejected     = "savings.deposit.rejected"
	SubjectWithdrawalRequested = "savings.withdrawal.requested"
	SubjectWithdrawalCancelled = "savings.withdrawal.cancelled"
	SubjectWithdrawalCompleted = "savings.withdrawal.completed"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	Close()
}

type NatsPublisher struct {
	nc *nats.Conn
}

func NewNatsPublisher(url string, opts ...nats.Option) (*NatsPublisher, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NatsPublisher{nc: nc}, nil
}

func (p *NatsPublisher) Publish(_ context.Context, subject string, payload []byte) error {
	return p.nc.Publish(subject, payload)
}

func (p *NatsPublisher) Close() {
	_ = p.nc.Flush()
	p.nc.Close()
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, []byte) error { return nil }
func (Nop) Close()                                        {}

// Emitter encodes events as JSON and publishes them best-effort.
type Emitter struct {
	pub Publisher
}

func NewEmitter(pub Publisher) *Emitter {
	if pub == nil {
		pub = Nop{}
	}
	return &Emitter{pub: pub}
}

// Emit never fails the caller; errors are logged.
func (e *Emitter) Emit(ctx context.Context, subject string, event any) {
	if e == nil {
		return
	}
	b, err := json.Marshal(event)
	if err != nil {
		logger.Warn(ctx, "encode event failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := e.pub.Publish(ctx, subject, b); err != nil {
		logger.Warn(ctx, "publish event failed", zap.String("subject", subject), zap.Error(err))
	}
}

func (e *Emitter) Close() {
	if e != nil {
		e.pub.Close()
	}
}

type TransferDetected struct {
	TransactionID string `json:"transactionId"`
	WalletID      string `json:"walletId"`
	UserID        string `json:"userId"`
	TxHash        string `json:"txHash"`
	Token         string `json:"token"`
	AmountRaw     string `json:"amountRaw"`
	SaveAmountWei string `json:"saveAmountWei"`
	BlockNumber   int64  `json:"blockNumber"`
}

type DepositSettled struct {
	TransactionID string `json:"transactionId"`
	WalletID      string `json:"walletId"`
	AmountWei     string `json:"amountWei"`
	VaultTxHash   string `json:"vaultTxHash,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type WithdrawalChanged struct {
	RequestID string `json:"requestId"`
	WalletID  string `json:"walletId"`
	AmountWei string `json:"amountWei"`
	Status    string `json:"status"`
	TxHash    string `json:"txHash,omitempty"`
}
