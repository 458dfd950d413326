package delivery

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/scancap/internal/logging"
	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
	"go.uber.org/zap"
)

// Store persists artifact bytes.
type Store interface {
	Deliver(ctx context.Context, req orchestrator.DeliveryRequest) (orchestrator.DeliveryReceipt, error)
}

// ArtifactNotifier announces a stored artifact.
type ArtifactNotifier interface {
	Notify(ctx context.Context, req orchestrator.DeliveryRequest, receipt orchestrator.DeliveryReceipt) error
}

// Chain stores an artifact, then notifies.
type Chain struct {
	store    Store
	notifier ArtifactNotifier
	strict   bool
	logger   *logging.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithNotifier adds a notifier step.
func WithNotifier(n ArtifactNotifier) ChainOption {
	return func(c *Chain) { c.notifier = n }
}

// WithStrictNotify makes a failed notification fail the delivery. By
// default the artifact is considered delivered once stored.
func WithStrictNotify(strict bool) ChainOption {
	return func(c *Chain) { c.strict = strict }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) ChainOption {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewChain creates a Chain around store.
func NewChain(store Store, opts ...ChainOption) *Chain {
	c := &Chain{store: store, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deliver implements orchestrator.Delivery.
func (c *Chain) Deliver(ctx context.Context, req orchestrator.DeliveryRequest) (orchestrator.DeliveryReceipt, error) {
	receipt, err := c.store.Deliver(ctx, req)
	if err != nil {
		return orchestrator.DeliveryReceipt{}, fmt.Errorf("store: %w", err)
	}
	c.logger.Info(ctx, "artifact stored",
		zap.String("key", receipt.Key),
		zap.Int64("size", receipt.Size),
	)

	if c.notifier == nil {
		return receipt, nil
	}
	if err := c.notifier.Notify(ctx, req, receipt); err != nil {
		if c.strict {
			return receipt, fmt.Errorf("notify: %w", err)
		}
		c.logger.Warn(ctx, "artifact notification failed", zap.String("key", receipt.Key), zap.Error(err))
		return receipt, nil
	}
	receipt.Notified = true
	return receipt, nil
}

var (
	_ orchestrator.Delivery = (*Chain)(nil)
	_ orchestrator.Delivery = (*FileStore)(nil)
)
