package usecase

import (
	"context"

	"SignalDeck/internal/domain/models"
	"SignalDeck/internal/engine"
	"SignalDeck/pkg/kafka"
	"SignalDeck/pkg/logger"
)

// ParseFunc turns one raw bus payload into a normalized SignalEvent.
// Implementations must not retain b.
type ParseFunc func(b []byte) (*models.SignalEvent, error)

// SignalHandler binds one source topic to its lifecycle engine.
type SignalHandler struct {
	topic string
	parse ParseFunc
	eng   *engine.Engine
	log   *logger.Logger
}

func NewSignalHandler(topic string, parse ParseFunc, eng *engine.Engine, log *logger.Logger) *SignalHandler {
	return &SignalHandler{topic: topic, parse: parse, eng: eng, log: log}
}

func (h *SignalHandler) Topic() string { return h.topic }

// Handle parses and processes one message. A payload that cannot parse is
// dropped with a warning rather than returned as an error: redelivery or DLQ
// routing cannot fix a malformed message, it would just loop.
func (h *SignalHandler) Handle(ctx context.Context, b []byte) error {
	ev, err := h.parse(b)
	if err != nil {
		h.log.Warn("dropping unparseable signal payload",
			logger.String("source", h.eng.Source()),
			logger.String("topic", h.topic),
			logger.Error(err))
		return nil
	}
	h.eng.Process(ctx, ev)
	return nil
}

var _ kafka.MessageHandler = (*SignalHandler)(nil)
