package service

import (
	"fmt"

	"github.com/unclebandit/crm-campaign-service/internal/model"
)

// CampaignStats is the user-facing view of a campaign's counters.
type CampaignStats struct {
	AudienceSize int    `json:"audienceSize"`
	Sent         int    `json:"sent"`
	Delivered    int    `json:"delivered"`
	Failed       int    `json:"failed"`
	Attempted    int    `json:"attempted"`
	Pending      int    `json:"pending"`
	SuccessRate  string `json:"successRate"`
}

// DeriveStats computes attempted and successRate from the stored counters.
// pending is the number of logs still in the pending state; logs the vendor
// rejected at send time are failed, not pending.
func DeriveStats(audienceSize int, s model.DeliveryStats, pending int) CampaignStats {
	attempted := s.Delivered + s.Failed
	if pending < 0 {
		pending = 0
	}
	return CampaignStats{
		AudienceSize: audienceSize,
		Sent:         s.Sent,
		Delivered:    s.Delivered,
		Failed:       s.Failed,
		Attempted:    attempted,
		Pending:      pending,
		SuccessRate:  SuccessRate(s.Delivered, attempted),
	}
}

// CountPending counts the logs still waiting on the vendor.
func CountPending(logs []model.DeliveryLogView) int {
	n := 0
	for _, l := range logs {
		if l.Status == model.StatusPending {
			n++
		}
	}
	return n
}

// SuccessRate formats delivered/attempted as a one-decimal percentage.
func SuccessRate(delivered, attempted int) string {
	if attempted <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(delivered)/float64(attempted)*100)
}
