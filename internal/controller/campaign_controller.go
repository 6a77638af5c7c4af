// internal/controller/campaign_controller.go
package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/unclebandit/crm-campaign-service/internal/logger"
	"github.com/unclebandit/crm-campaign-service/internal/middleware"
	"github.com/unclebandit/crm-campaign-service/internal/model"
	"github.com/unclebandit/crm-campaign-service/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Validator       *validator.Validate
	Logger          logger.Logger
}

func NewCampaignController(svc *service.CampaignService, log logger.Logger) *CampaignController {
	return &CampaignController{CampaignService: svc, Validator: newValidator(), Logger: log}
}

type CreateCampaignRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	SegmentID string `json:"segmentId" validate:"required,uuid"`
	Message   string `json:"message" validate:"max=1600"`
	Channel   string `json:"channel" validate:"omitempty,oneof=sms email"`
}

type PreviewRequest struct {
	CustomerID       string  `json:"customer_id" validate:"required,uuid"`
	OverrideTemplate *string `json:"override_template"`
}

// CreateCampaign launches a campaign and answers before any send completes.
func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body CreateCampaignRequest
	if !DecodeAndValidate(w, r, c.Validator, &body) {
		return
	}

	result, err := c.CampaignService.Launch(r.Context(), service.LaunchInput{
		TenantID:  middleware.TenantFromContext(r.Context()),
		Name:      body.Name,
		SegmentID: body.SegmentID,
		Message:   body.Message,
		Channel:   model.Channel(body.Channel),
	})
	if err != nil {
		WriteError(w, c.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, result)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), middleware.TenantFromContext(r.Context()), page, pageSize)
	if err != nil {
		WriteError(w, c.Logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	details, err := c.CampaignService.GetCampaignDetailsWithStats(r.Context(), middleware.TenantFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, c.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, details)
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := c.CampaignService.DeleteCampaign(r.Context(), middleware.TenantFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		WriteError(w, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	var body PreviewRequest
	if !DecodeAndValidate(w, r, c.Validator, &body) {
		return
	}

	rendered, err := c.CampaignService.RenderPreview(r.Context(), middleware.TenantFromContext(r.Context()), chi.URLParam(r, "id"), body.CustomerID, body.OverrideTemplate)
	if err != nil {
		WriteError(w, c.Logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"rendered_message": rendered,
		"used_template":    body.OverrideTemplate,
		"customer_id":      body.CustomerID,
	})
}

// RepairStats recomputes the campaign's counters from its delivery logs.
func (c *CampaignController) RepairStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.CampaignService.RepairStats(r.Context(), middleware.TenantFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, c.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
