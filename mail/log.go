package mail

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heyjack/giftpool/engine"
)

// LogSender writes emails to the log instead of sending them.
type LogSender struct {
	logger *zap.Logger
}

var _ engine.Sender = (*LogSender)(nil)

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, email engine.Email) (engine.DeliveryReceipt, error) {
	if err := ctx.Err(); err != nil {
		return engine.DeliveryReceipt{}, err
	}
	id := uuid.NewString()
	s.logger.Info("email (log provider)",
		zap.String("message_id", id),
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("body", email.Body))
	return engine.DeliveryReceipt{MessageID: id, AcceptedAt: time.Now().UTC()}, nil
}
