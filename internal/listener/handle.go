package listener

import (
	"context"
	"encoding/json"

	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"go.uber.org/zap"
)

type action int

const (
	actionAck action = iota
	actionReject
	actionRequeue
)

// handle decodes and processes one delivery body. Events that can never
// succeed are dropped; transient failures are retried once.
func (l *ReturnListener) handle(ctx context.Context, body []byte, redelivered bool) action {
	var msg models.ReturnEventMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		zap.L().Warn("Dropping malformed return event", zap.Error(err))
		return actionReject
	}
	ev := msg.Event()

	result, err := l.processor.ProcessReturn(ctx, ev)
	if err == nil {
		zap.L().Info("Return event processed",
			zap.String("power_bank", ev.PowerBankSerial),
			zap.Bool("rental_completed", result.RentalCompleted))
		return actionAck
	}

	switch store.KindOf(err) {
	case store.KindValidation, store.KindNotFound, store.KindInvalidState, store.KindInsufficientFunds:
		zap.L().Warn("Dropping return event",
			zap.String("power_bank", ev.PowerBankSerial),
			zap.String("station", ev.StationSerial),
			zap.Error(err))
		return actionReject
	}

	if redelivered {
		zap.L().Error("Return event failed after retry, dropping",
			zap.String("power_bank", ev.PowerBankSerial),
			zap.Error(err))
		return actionReject
	}
	zap.L().Warn("Return event failed, requeueing", zap.String("power_bank", ev.PowerBankSerial), zap.Error(err))
	return actionRequeue
}
