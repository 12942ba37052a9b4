package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/samiecode/babylon/internal/savings/codec"
	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/internal/savings/notify"
	"github.com/samiecode/babylon/pkg/logger"
	"github.com/samiecode/babylon/pkg/metrics"
	"github.com/samiecode/babylon/pkg/safe"
)

const pendingDepositNote = "Auto-savings detected, awaiting authorization"

// Detector turns decoded receipts into candidates.
type Detector interface {
	Detect(ctx context.Context, receipts []codec.Receipt) ([]domain.Candidate, error)
}

type IngestService struct {
	store       domain.Store
	detector    Detector
	events      *notify.Emitter
	parallelism int
	now         Clock
}

func NewIngestService(store domain.Store, det Detector, events *notify.Emitter, parallelism int) *IngestService {
	if parallelism <= 0 {
		parallelism = 8
	}
	return &IngestService{store: store, detector: det, events: events, parallelism: parallelism, now: time.Now}
}

// IngestResult summarizes one webhook delivery.
type IngestResult struct {
	Detected  int
	Persisted int
	Skipped   int
}

// HandleWebhook decodes, detects and persists one delivery. Detected counts
// matched transfers whether or not they persisted; persistence errors are
// logged per candidate and the first one is returned.
func (s *IngestService) HandleWebhook(ctx context.Context, body []byte) (IngestResult, error) {
	var res IngestResult

	decoded, err := codec.DecodeWebhook(body)
	if err != nil {
		metrics.WebhookLogsTotal.WithLabelValues("parse_error").Inc()
		logger.Warn(ctx, "unparseable webhook body", zap.Int("bytes", len(body)), zap.Error(err))
		return res, nil
	}
	res.Skipped = len(decoded.Skipped)
	for _, perr := range decoded.Skipped {
		metrics.WebhookLogsTotal.WithLabelValues("parse_error").Inc()
		logger.Warn(ctx, "skip malformed webhook entry", zap.Error(perr))
	}

	candidates, err := s.detector.Detect(ctx, decoded.Receipts)
	if err != nil {
		return res, fmt.Errorf("detect transfers: %w", err)
	}
	res.Detected = len(candidates)
	if len(candidates) == 0 {
		logger.Debug(ctx, "no watched transfers", zap.Int("logs", decoded.LogCount()))
		return res, nil
	}

	var persisted atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for _, c := range candidates {
		g.Go(func() error {
			err := safe.Run(ctx, func() error {
				_, err := s.PersistCandidate(ctx, c)
				return err
			})
			if err != nil {
				metrics.CandidatesTotal.WithLabelValues("failed").Inc()
				logger.Error(ctx, "persist candidate failed", append(candidateFields(c), zap.Error(err))...)
				return err
			}
			metrics.CandidatesTotal.WithLabelValues("persisted").Inc()
			persisted.Add(1)
			return nil
		})
	}
	err = g.Wait()
	res.Persisted = int(persisted.Load())

	logger.Info(ctx, "webhook processed",
		zap.Int("detected", res.Detected),
		zap.Int("persisted", res.Persisted),
		zap.Int("skipped", res.Skipped))
	return res, err
}

// PersistCandidate upserts the transfer, touches the wallet and records the
// pending deposit in one transaction.
func (s *IngestService) PersistCandidate(ctx context.Context, c domain.Candidate) (*domain.IncomingTransaction, error) {
	now := s.now()
	meta := domain.Metadata{}
	if c.LogIndex != nil {
		meta[domain.MetaLogIndex] = *c.LogIndex
	}
	if c.TransactionIndex != nil {
		meta[domain.MetaTransactionIndex] = *c.TransactionIndex
	}

	var stored *domain.IncomingTransaction
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		var err error
		stored, err = s.store.UpsertIncoming(ctx, &domain.IncomingTransaction{
			TxHash:        c.TxHash,
			WalletID:      c.Wallet.WalletID,
			TokenAddress:  c.Token,
			FromAddress:   c.From,
			ToAddress:     c.To,
			AmountRaw:     domain.WeiFromBig(c.AmountRaw),
			SaveAmountWei: domain.WeiFromBig(c.SaveAmountWei),
			BlockNumber:   c.BlockNumber,
			DetectedAt:    now,
			Metadata:      meta,
		})
		if err != nil {
			return err
		}
		if err := s.store.TouchWallet(ctx, c.Wallet.WalletID, now); err != nil {
			return err
		}
		if !stored.SaveAmountWei.IsPositive() {
			return nil
		}
		return s.store.UpsertPendingDeposit(ctx, &domain.SavingsLedger{
			UserID:        c.Wallet.UserID,
			WalletID:      c.Wallet.WalletID,
			TransactionID: &stored.ID,
			AmountWei:     stored.SaveAmountWei,
			Notes:         pendingDepositNote,
		})
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, notify.SubjectTransferDetected, notify.TransferDetected{
		TransactionID: stored.ID,
		WalletID:      stored.WalletID,
		UserID:        c.Wallet.UserID,
		TxHash:        stored.TxHash,
		Token:         stored.TokenAddress,
		AmountRaw:     stored.AmountRaw.String(),
		SaveAmountWei: stored.SaveAmountWei.String(),
		BlockNumber:   stored.BlockNumber,
	})
	return stored, nil
}

func candidateFields(c domain.Candidate) []zap.Field {
	fields := []zap.Field{
		zap.String("tx_hash", c.TxHash),
		zap.String("wallet_id", c.Wallet.WalletID),
		zap.String("to", c.To),
		zap.String("from", c.From),
		zap.String("token", c.Token),
		zap.Int64("block", c.BlockNumber),
	}
	if c.AmountRaw != nil {
		fields = append(fields, zap.String("amount_raw", c.AmountRaw.String()))
	}
	if c.SaveAmountWei != nil {
		fields = append(fields, zap.String("save_amount_wei", c.SaveAmountWei.String()))
	}
	return fields
}
