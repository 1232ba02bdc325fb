package domain

import (
	"context"
	"time"
)

// DeliveryRecord is one handled update in the delivery log. Only metadata is
// recorded; message content is never persisted.
type DeliveryRecord struct {
	ChatID    int64
	Action    string
	Outcome   string // delivered | ignored | failed
	LatencyMs int64
	CreatedAt time.Time
}

// DeliveryLog persists delivery records for diagnostics. Writes are best
// effort: a log failure must never affect the reply.
type DeliveryLog interface {
	RecordDelivery(ctx context.Context, rec DeliveryRecord) error
	RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error)
	Close() error
}
