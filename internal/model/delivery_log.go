// internal/model/delivery_log.go
package model

import (
	"encoding/json"
	"time"
)

type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
	StatusBounced   DeliveryStatus = "bounced"
)

var transitions = map[DeliveryStatus][]DeliveryStatus{
	StatusPending: {StatusSent, StatusFailed},
	StatusSent:    {StatusDelivered, StatusFailed, StatusBounced},
}

// IsTerminal reports whether no further transition is allowed.
func (s DeliveryStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusFailed || s == StatusBounced
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to DeliveryStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type DeliveryLog struct {
	ID              string          `db:"id" json:"id"`
	CampaignID      string          `db:"campaign_id" json:"campaignId"`
	CustomerID      string          `db:"customer_id" json:"customerId"`
	Recipient       string          `db:"recipient" json:"recipient"`
	Message         string          `db:"message" json:"message"`
	Status          DeliveryStatus  `db:"status" json:"status"`
	VendorMessageID *string         `db:"vendor_message_id" json:"vendorMessageId,omitempty"`
	VendorResponse  json.RawMessage `db:"vendor_response" json:"vendorResponse,omitempty"`
	FailureReason   *string         `db:"failure_reason" json:"failureReason,omitempty"`
	SentAt          *time.Time      `db:"sent_at" json:"sentAt,omitempty"`
	DeliveredAt     *time.Time      `db:"delivered_at" json:"deliveredAt,omitempty"`
	FailedAt        *time.Time      `db:"failed_at" json:"failedAt,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

// DeliveryLogView is a log with the customer snapshot attached.
type DeliveryLogView struct {
	DeliveryLog
	Customer CustomerSnapshot `json:"customer"`
}
