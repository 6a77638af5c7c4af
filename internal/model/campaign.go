// internal/model/campaign.go
package model

import "time"

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

func (c Channel) Valid() bool {
	return c == ChannelSMS || c == ChannelEmail
}

// Stat names one of the stored delivery counters.
type Stat string

const (
	StatSent      Stat = "sent"
	StatDelivered Stat = "delivered"
	StatFailed    Stat = "failed"
)

// DeliveryStats are the stored counters. They only ever grow, except when
// rebuilt from the logs by a repair.
type DeliveryStats struct {
	Sent      int `db:"stats_sent" json:"sent"`
	Delivered int `db:"stats_delivered" json:"delivered"`
	Failed    int `db:"stats_failed" json:"failed"`
}

type Campaign struct {
	ID           string        `db:"id" json:"id"`
	TenantID     string        `db:"tenant_id" json:"tenantId"`
	SegmentID    string        `db:"segment_id" json:"segmentId"`
	Name         string        `db:"name" json:"name"`
	Channel      Channel       `db:"channel" json:"channel"`
	Message      string        `db:"message" json:"message"`
	AudienceSize int           `db:"audience_size" json:"audienceSize"`
	Stats        DeliveryStats `json:"deliveryStats"`
	LaunchedAt   time.Time     `db:"launched_at" json:"launchedAt"`
	CreatedAt    time.Time     `db:"created_at" json:"createdAt"`
}
