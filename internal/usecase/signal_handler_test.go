package usecase

import (
	"context"
	"testing"

	"SignalDeck/internal/engine"
	"SignalDeck/pkg/logger"
	"SignalDeck/pkg/metrics"
)

func TestSignalHandlerAcceptsValidPayload(t *testing.T) {
	eng := engine.New(engine.Config{Source: "fudkii"}, logger.Nop(), metrics.Nop(), nil, nil)
	defer eng.Close()
	h := NewSignalHandler("signals.fudkii", ParseFudkii, eng, logger.Nop())

	b := []byte(`{"stock":"500325","triggered":true,"direction":"LONG","triggerTime":1748850000000,"price":2900}`)
	if err := h.Handle(context.Background(), b); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if _, ok := eng.Active("500325"); !ok {
		t.Fatalf("expected active trigger after handle")
	}
}

func TestSignalHandlerDropsUnparseable(t *testing.T) {
	eng := engine.New(engine.Config{Source: "fudkii"}, logger.Nop(), metrics.Nop(), nil, nil)
	defer eng.Close()
	h := NewSignalHandler("signals.fudkii", ParseFudkii, eng, logger.Nop())

	// Returning nil keeps the consumer from retrying a payload that can
	// never parse.
	if err := h.Handle(context.Background(), []byte("not json")); err != nil {
		t.Fatalf("unparseable payload must not error, got %v", err)
	}
	if len(eng.History()) != 0 {
		t.Fatalf("unparseable payload must not touch caches")
	}
}

func TestSignalHandlerTopic(t *testing.T) {
	h := NewSignalHandler("signals.fudkii", ParseFudkii, nil, logger.Nop())
	if h.Topic() != "signals.fudkii" {
		t.Fatalf("unexpected topic %q", h.Topic())
	}
}
