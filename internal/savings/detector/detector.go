package detector

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/samiecode/babylon/internal/savings/codec"
	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/pkg/logger"
	"github.com/samiecode/babylon/pkg/metrics"
	"github.com/samiecode/babylon/pkg/xerr"
)

// WatchList resolves a destination address to a watched wallet.
type WatchList interface {
	Lookup(ctx context.Context, address string) (domain.WatchedWallet, bool, error)
}

// Detector filters webhook receipts down to transfers into watched wallets.
type Detector struct {
	watch WatchList
	topic string
}

// New builds a detector matching topic0 against signature; an empty
// signature falls back to the ERC-20 Transfer topic.
func New(watch WatchList, signature string) *Detector {
	sig := strings.ToLower(strings.TrimSpace(signature))
	if sig == "" {
		sig = codec.TransferTopic
	}
	return &Detector{watch: watch, topic: sig}
}

func (d *Detector) Topic() string { return d.topic }

// Detect returns candidates in receipt/log order. Only a watch-list failure
// aborts the batch; undecodable logs are logged and skipped.
func (d *Detector) Detect(ctx context.Context, receipts []codec.Receipt) ([]domain.Candidate, error) {
	var out []domain.Candidate
	for _, rec := range receipts {
		if len(rec.Logs) == 0 {
			continue
		}
		for _, l := range rec.Logs {
			if len(l.Topics) == 0 || strings.ToLower(l.Topics[0]) != d.topic {
				metrics.WebhookLogsTotal.WithLabelValues("ignored").Inc()
				continue
			}

			c, err := d.decode(rec.BlockNumber, l)
			if err != nil {
				metrics.WebhookLogsTotal.WithLabelValues("parse_error").Inc()
				logger.Warn(ctx, "skip undecodable transfer log",
					zap.String("tx_hash", l.TransactionHash), zap.Error(err))
				continue
			}

			w, ok, err := d.watch.Lookup(ctx, c.To)
			if err != nil {
				return nil, fmt.Errorf("watch-list lookup: %w", err)
			}
			if !ok {
				metrics.WebhookLogsTotal.WithLabelValues("ignored").Inc()
				continue
			}

			c.Wallet = w
			c.SaveAmountWei = codec.SaveAmount(c.AmountRaw, w.SavingPercentBps)
			metrics.WebhookLogsTotal.WithLabelValues("matched").Inc()
			out = append(out, c)
		}
	}
	return out, nil
}

func (d *Detector) decode(block int64, l codec.Log) (domain.Candidate, error) {
	if len(l.Topics) < 3 {
		return domain.Candidate{}, xerr.Parse("topics", fmt.Errorf("want 3 topics, got %d", len(l.Topics)))
	}
	amount, err := codec.HexToBigInt(l.Data)
	if err != nil {
		return domain.Candidate{}, err
	}
	return domain.Candidate{
		From:             codec.DecodeAddress(l.Topics[1]),
		To:               codec.DecodeAddress(l.Topics[2]),
		Token:            strings.ToLower(l.Address),
		AmountRaw:        amount,
		TxHash:           l.TransactionHash,
		BlockNumber:      block,
		LogIndex:         l.LogIndex,
		TransactionIndex: l.TransactionIndex,
	}, nil
}
