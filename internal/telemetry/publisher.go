package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Publisher is the fire-and-forget surface the orchestrator uses. Every call
// is best-effort: failures are logged at debug and never propagate, and a nil
// Publisher or nil Client is a no-op, so publishing can never abort a cycle.
type Publisher struct {
	Client *Client
	Logger *zap.Logger
	// Timeout bounds each publish call independently of the caller's context.
	Timeout time.Duration
}

func (p *Publisher) Stats(ctx context.Context, agent string, stats any) {
	if p == nil || p.Client == nil {
		return
	}
	ctx, cancel := p.scoped(ctx)
	defer cancel()
	if err := p.Client.PublishStats(ctx, agent, stats); err != nil && p.Logger != nil {
		p.Logger.Debug("publish stats failed", zap.String("agent", agent), zap.Error(err))
	}
}

func (p *Publisher) Event(ctx context.Context, agent, eventType string, payload map[string]any) {
	if p == nil || p.Client == nil {
		return
	}
	ctx, cancel := p.scoped(ctx)
	defer cancel()
	if err := p.Client.PublishEvent(ctx, agent, eventType, payload); err != nil && p.Logger != nil {
		p.Logger.Debug("publish event failed",
			zap.String("agent", agent),
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}

func (p *Publisher) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
