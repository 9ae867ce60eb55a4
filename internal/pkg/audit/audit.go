// internal/pkg/audit/audit.go
package audit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Event carries the structured payload of one audit record
type Event struct {
	UserID    uint                   `json:"user_id,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	ProductID uint                   `json:"product_id,omitempty"`
	Provider  string                 `json:"provider,omitempty"`
	Reason    string                 `json:"reason"`
	Expected  float64                `json:"expected,omitempty"`
	Submitted float64                `json:"submitted,omitempty"`
	State     string                 `json:"state,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Sink receives security and reconciliation events. Implementations must be
// safe for concurrent use.
type Sink interface {
	TamperDetected(ctx context.Context, event Event)
	AmountMismatch(ctx context.Context, event Event)
	ReconciliationOutcome(ctx context.Context, event Event)
}

// LogSink writes audit events as structured log entries
type LogSink struct {
	logger *logrus.Logger
}

// NewLogSink creates a logrus-backed audit sink
func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) TamperDetected(ctx context.Context, event Event) {
	s.entry(event).Warn("Price tampering detected")
}

func (s *LogSink) AmountMismatch(ctx context.Context, event Event) {
	s.entry(event).Error("Payment amount mismatch")
}

func (s *LogSink) ReconciliationOutcome(ctx context.Context, event Event) {
	entry := s.entry(event)
	if event.State == "ORDER_CREATED" {
		entry.Info("Payment reconciled")
		return
	}
	entry.Error("Payment reconciliation failed")
}

func (s *LogSink) entry(event Event) *logrus.Entry {
	fields := logrus.Fields{
		"audit":  true,
		"reason": event.Reason,
	}
	if event.UserID != 0 {
		fields["user_id"] = event.UserID
	}
	if event.SessionID != "" {
		fields["session_id"] = event.SessionID
	}
	if event.ProductID != 0 {
		fields["product_id"] = event.ProductID
	}
	if event.Provider != "" {
		fields["provider"] = event.Provider
	}
	if event.State != "" {
		fields["state"] = event.State
	}
	if event.Expected != 0 || event.Submitted != 0 {
		fields["expected"] = event.Expected
		fields["submitted"] = event.Submitted
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}
	return s.logger.WithFields(fields)
}
