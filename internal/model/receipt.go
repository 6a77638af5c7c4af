package model

import (
	"encoding/json"
	"time"
)

// Receipt is a queued vendor delivery report awaiting reconciliation.
type Receipt struct {
	LogID           string          `json:"logId,omitempty"`
	Status          DeliveryStatus  `json:"status"`
	VendorMessageID string          `json:"vendorMessageId,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	RawPayload      json.RawMessage `json:"rawPayload,omitempty"`
	ReceivedAt      time.Time       `json:"receivedAt"`
	Simulated       bool            `json:"simulated,omitempty"`
	Deferrals       int             `json:"deferrals,omitempty"`
}
