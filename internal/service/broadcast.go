package service

import (
	"context"
	"fmt"

	"sheetvend-api/internal/errs"
	"sheetvend-api/internal/model"
	"sheetvend-api/internal/notify"

	"go.uber.org/zap"
)

// Broadcaster sends one message to every account in the ledger.
type Broadcaster struct {
	ledger *CreditLedger
	sender notify.Sender
	log    *zap.Logger
}

// NewBroadcaster creates a broadcaster. sender may be nil when no chat
// transport is configured.
func NewBroadcaster(ledger *CreditLedger, sender notify.Sender, log *zap.Logger) *Broadcaster {
	return &Broadcaster{ledger: ledger, sender: sender, log: log}
}

// Broadcast sends text to each known user. A failed recipient is counted and
// skipped; it never stops the loop.
func (b *Broadcaster) Broadcast(ctx context.Context, text string) (model.BroadcastReport, error) {
	if b.sender == nil {
		return model.BroadcastReport{}, fmt.Errorf("%w: no chat sender", errs.ErrNotifierUnavailable)
	}

	accounts := b.ledger.Accounts()
	report := model.BroadcastReport{Total: len(accounts)}

	for _, acc := range accounts {
		if err := ctx.Err(); err != nil {
			report.Failed += report.Total - report.Sent - report.Failed
			return report, err
		}
		if err := b.sender.Send(ctx, acc.ID, text); err != nil {
			report.Failed++
			b.log.Debug("broadcast recipient failed", zap.Int64("user_id", acc.ID), zap.Error(err))
			continue
		}
		report.Sent++
	}

	b.log.Info("broadcast finished",
		zap.Int("total", report.Total),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed))
	return report, nil
}
