// Package bridge hands extracted transactions to a host embedding the
// redaction surface. Delivery is gated on an origin handshake; running
// without a host is a supported configuration, not a failure.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/inkveil/inkveil/internal/extract"
)

var (
	// ErrNoHost means no host embedding is attached. Callers treat
	// this as "keep the results local", never as a pipeline failure.
	ErrNoHost = errors.New("no host embedding attached")

	// ErrOriginRefused means the host presented an origin outside the
	// allowlist. No payload is delivered to such a host.
	ErrOriginRefused = errors.New("host origin refused")

	// ErrNotNegotiated means Deliver was called before a successful
	// handshake.
	ErrNotNegotiated = errors.New("host origin not negotiated")
)

// Message is the envelope posted to the host.
type Message struct {
	Type         string           `json:"type"`
	Transactions []extract.Record `json:"transactions,omitempty"`
}

const (
	messageTypeHandshake    = "handshake"
	messageTypeTransactions = "transactions"
)

// Poster delivers a serialized message to the host at the given
// origin. Implementations wrap whatever embedding channel is in use.
type Poster interface {
	Post(ctx context.Context, origin string, payload []byte) error
}

// Bridge negotiates with a host and delivers transaction results to
// it. A nil poster models the standalone, hostless deployment.
type Bridge struct {
	poster         Poster
	allowedOrigins map[string]struct{}
	origin         string
	logger         *zap.Logger
}

// NewBridge creates a bridge restricted to the given host origins.
func NewBridge(poster Poster, allowedOrigins []string, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &Bridge{
		poster:         poster,
		allowedOrigins: allowed,
		logger:         logger,
	}
}

// Attached reports whether a host embedding channel exists.
func (b *Bridge) Attached() bool { return b.poster != nil }

// Handshake validates the origin the host presented and acknowledges
// it. Until a handshake succeeds no transactions leave the bridge.
func (b *Bridge) Handshake(ctx context.Context, origin string) error {
	if b.poster == nil {
		return ErrNoHost
	}
	if _, ok := b.allowedOrigins[origin]; !ok {
		b.logger.Warn("refusing host origin", zap.String("origin", origin))
		return fmt.Errorf("%w: %s", ErrOriginRefused, origin)
	}

	payload, err := json.Marshal(Message{Type: messageTypeHandshake})
	if err != nil {
		return fmt.Errorf("failed to encode handshake: %w", err)
	}
	if err := b.poster.Post(ctx, origin, payload); err != nil {
		return fmt.Errorf("handshake delivery failed: %w", err)
	}

	b.origin = origin
	b.logger.Info("host origin negotiated", zap.String("origin", origin))
	return nil
}

// Deliver posts the transaction rows to the negotiated host.
func (b *Bridge) Deliver(ctx context.Context, records []extract.Record) error {
	if b.poster == nil {
		return ErrNoHost
	}
	if b.origin == "" {
		return ErrNotNegotiated
	}

	payload, err := json.Marshal(Message{
		Type:         messageTypeTransactions,
		Transactions: records,
	})
	if err != nil {
		return fmt.Errorf("failed to encode transactions: %w", err)
	}
	if err := b.poster.Post(ctx, b.origin, payload); err != nil {
		return fmt.Errorf("transaction delivery failed: %w", err)
	}

	b.logger.Info("transactions delivered to host",
		zap.String("origin", b.origin),
		zap.Int("count", len(records)))
	return nil
}
