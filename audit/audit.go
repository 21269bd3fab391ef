// Package audit records commit, sync and rejection events off the trading
// path. Every sink is best-effort by contract: Append has no return value,
// failures are logged and must never block or fail the caller.
package audit

import (
	"go.uber.org/zap"
)

// Event types emitted by the execution core.
const (
	EventCommit   = "commit"
	EventSync     = "sync"
	EventRejected = "rejected"
)

// Sink receives audit events. Implementations swallow their own errors.
type Sink interface {
	Append(eventType string, payload any)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Append(string, any) {}

// ZapSink writes events to the structured log.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) ZapSink {
	return ZapSink{logger: logger}
}

func (s ZapSink) Append(eventType string, payload any) {
	s.logger.Info("audit event",
		zap.String("event_type", eventType),
		zap.Any("payload", payload),
	)
}
