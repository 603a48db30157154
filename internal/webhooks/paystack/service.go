package paystackwebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/farmgatehq/farmgate-backend/internal/payments"
	"github.com/farmgatehq/farmgate-backend/pkg/enums"
	pkgerrors "github.com/farmgatehq/farmgate-backend/pkg/errors"
	"github.com/farmgatehq/farmgate-backend/pkg/logger"
)

type paymentsApplier interface {
	ApplyWebhookEvent(ctx context.Context, input payments.WebhookEventInput) error
}

// Event is the gateway's webhook envelope.
type Event struct {
	Type string    `json:"event"`
	Data EventData `json:"data"`
}

type EventData struct {
	Reference string  `json:"reference"`
	Status    string  `json:"status"`
	Channel   *string `json:"channel"`
	Amount    int64   `json:"amount"`
	// The gateway sends paid_at as an RFC3339 string, sometimes empty.
	PaidAt *string `json:"paid_at"`
}

type Service struct {
	payments paymentsApplier
	logger   *logger.Logger
}

func NewService(paymentsSvc paymentsApplier, logg *logger.Logger) (*Service, error) {
	if paymentsSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{payments: paymentsSvc, logger: logg}, nil
}

// ParseEvent decodes a raw webhook payload. The payload itself travels on to
// the settlement ledger untouched for auditing.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode gateway event")
	}
	return &event, nil
}

// HandleEvent routes a verified gateway event to the settlement ledger.
// Unrecognized event types are acknowledged so the gateway stops retrying.
func (s *Service) HandleEvent(ctx context.Context, payload json.RawMessage, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway event required")
	}

	eventType := enums.GatewayEventType(strings.ToLower(strings.TrimSpace(event.Type)))
	if !eventType.IsRecognized() {
		s.logger.Info(ctx, fmt.Sprintf("ignoring unrecognized gateway event %q", event.Type))
		return nil
	}
	// Anything short of a bad signature is acknowledged; a 4xx here would
	// only make the gateway redeliver the same broken payload forever.
	if strings.TrimSpace(event.Data.Reference) == "" {
		s.logger.Warn(ctx, fmt.Sprintf("gateway event %s without a reference acknowledged", eventType))
		return nil
	}

	lctx := s.logger.WithReference(ctx, event.Data.Reference)
	s.logger.Info(lctx, fmt.Sprintf("gateway event %s received", eventType))

	return s.payments.ApplyWebhookEvent(ctx, payments.WebhookEventInput{
		EventType: eventType.String(),
		Reference: event.Data.Reference,
		Status:    event.Data.Status,
		Channel:   event.Data.Channel,
		PaidAt:    parsePaidAt(event.Data.PaidAt),
		Payload:   payload,
	})
}

func parsePaidAt(raw *string) *time.Time {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil
	}
	return &parsed
}
