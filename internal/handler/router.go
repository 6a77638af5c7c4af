package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unclebandit/crm-campaign-service/internal/controller"
	"github.com/unclebandit/crm-campaign-service/internal/logger"
	"github.com/unclebandit/crm-campaign-service/internal/middleware"
)

type RouterDeps struct {
	Logger        logger.Logger
	Auth          *middleware.TenantAuth
	Campaigns     *controller.CampaignController
	Segments      *controller.SegmentController
	Receipts      *ReceiptHandler
	WebhookSecret string
	// EnableSimulation mounts the simulate-callback endpoint.
	EnableSimulation bool
	// Ready backs /healthz; nil means always healthy.
	Ready func(ctx context.Context) error
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if d.Ready != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ready(ctx); err != nil {
				controller.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		controller.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Vendor-facing.
	r.With(middleware.VendorSignature(d.WebhookSecret)).
		Post("/campaigns/delivery-receipt", d.Receipts.DeliveryReceipt)
	if d.EnableSimulation {
		r.Post("/campaigns/simulate-callback/{logId}", d.Receipts.SimulateCallback)
	}

	r.Group(func(r chi.Router) {
		r.Use(d.Auth.Middleware)

		r.Post("/campaigns", d.Campaigns.CreateCampaign)
		r.Get("/campaigns", d.Campaigns.ListCampaigns)
		r.Get("/campaigns/{id}", d.Campaigns.GetCampaignDetails)
		r.Delete("/campaigns/{id}", d.Campaigns.DeleteCampaign)
		r.Post("/campaigns/{id}/personalized-preview", d.Campaigns.PersonalizedPreview)
		r.Post("/campaigns/{id}/repair-stats", d.Campaigns.RepairStats)

		r.Post("/segments", d.Segments.CreateSegment)
		r.Post("/segments/preview", d.Segments.PreviewSegment)
		r.Get("/segments", d.Segments.ListSegments)
		r.Get("/segments/{id}", d.Segments.GetSegment)
		r.Delete("/segments/{id}", d.Segments.DeleteSegment)
	})

	return r
}
