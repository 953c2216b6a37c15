package listener

import (
	"context"
	"errors"
	"testing"

	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/stretchr/testify/assert"
)

type stubProcessor struct {
	err  error
	seen []models.ReturnEvent
}

func (p *stubProcessor) ProcessReturn(_ context.Context, ev models.ReturnEvent) (*models.ReturnResult, error) {
	p.seen = append(p.seen, ev)
	if p.err != nil {
		return nil, p.err
	}
	return &models.ReturnResult{RentalCompleted: true}, nil
}

const body = `{"device":{"serial_number":"ST-001"},"return_event":{"power_bank_serial":"PB-001","slot_number":2,"battery_level":64}}`

func TestHandle(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		err         error
		redelivered bool
		want        action
	}{
		{name: "processed", body: body, want: actionAck},
		{name: "malformed", body: `{"device":`, want: actionReject},
		{name: "unknown unit", body: body, err: store.NotFound("power bank PB-001 not found"), want: actionReject},
		{name: "invalid payload", body: body, err: store.Invalid("battery level out of range"), want: actionReject},
		{name: "busy database", body: body, err: errors.New("database is locked"), want: actionRequeue},
		{name: "lost race", body: body, err: store.Conflict("rental is no longer ACTIVE"), want: actionRequeue},
		{name: "second failure", body: body, err: errors.New("database is locked"), redelivered: true, want: actionReject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &stubProcessor{err: tt.err}
			l := NewReturnListener(ReturnListenerConfig{Queue: "hardware.returns", Processor: proc})

			got := l.handle(context.Background(), []byte(tt.body), tt.redelivered)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandle_DecodesEvent(t *testing.T) {
	proc := &stubProcessor{}
	l := NewReturnListener(ReturnListenerConfig{Processor: proc})

	l.handle(context.Background(), []byte(body), false)
	assert.Equal(t, []models.ReturnEvent{{
		StationSerial:   "ST-001",
		PowerBankSerial: "PB-001",
		SlotNumber:      2,
		BatteryLevel:    64,
	}}, proc.seen)
}
