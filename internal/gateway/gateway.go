// Package gateway holds the outbound payment-provider boundary. The
// provider's internals (card processing, wallet capture) live behind it;
// this service only ever asks for refunds and receives callbacks.
package gateway

import (
	"context"

	"go.uber.org/zap"
)

type PaymentGateway interface {
	// Refund asks the provider to return the captured amount for a
	// reference. Completion is tracked on the provider side; callers treat
	// the request as fire-and-forget.
	Refund(ctx context.Context, reference string, amount float64) error

	// Name returns the gateway name
	Name() string
}

// logGateway is the default gateway used when no real provider is
// configured. It records refund requests so operators can replay them.
type logGateway struct {
	log *zap.Logger
}

func NewLogGateway(log *zap.Logger) PaymentGateway {
	return &logGateway{log: log.With(zap.String("gateway", "log"))}
}

func (g *logGateway) Refund(ctx context.Context, reference string, amount float64) error {
	g.log.Info("Refund requested",
		zap.String("reference", reference),
		zap.Float64("amount", amount),
	)
	return nil
}

func (g *logGateway) Name() string { return "log" }
