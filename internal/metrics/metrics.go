package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CampaignsLaunched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_campaigns_launched_total",
			Help: "Campaigns launched, by channel",
		},
		[]string{"channel"},
	)

	AudienceSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crm_audience_size",
			Help:    "Resolved audience size per launch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	VendorSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_vendor_sends_total",
			Help: "Vendor send attempts, by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	VendorSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_vendor_send_duration_seconds",
			Help:    "Vendor send latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	DispatchInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crm_dispatch_in_flight",
			Help: "Vendor sends currently running",
		},
	)

	Receipts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_receipts_total",
			Help: "Delivery receipts, by outcome (enqueued, applied, duplicate, deferred, dropped)",
		},
		[]string{"outcome"},
	)

	ReceiptQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crm_receipt_queue_depth",
			Help: "Receipts waiting for reconciliation",
		},
	)
)

const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"

	ReceiptEnqueued  = "enqueued"
	ReceiptApplied   = "applied"
	ReceiptDuplicate = "duplicate"
	ReceiptDeferred  = "deferred"
	ReceiptDropped   = "dropped"
)
