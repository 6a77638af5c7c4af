package controller

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/unclebandit/crm-campaign-service/internal/logger"
	"github.com/unclebandit/crm-campaign-service/internal/middleware"
	"github.com/unclebandit/crm-campaign-service/internal/model"
	"github.com/unclebandit/crm-campaign-service/internal/service"
)

type SegmentController struct {
	SegmentService *service.SegmentService
	Validator      *validator.Validate
	Logger         logger.Logger
}

func NewSegmentController(svc *service.SegmentService, log logger.Logger) *SegmentController {
	return &SegmentController{SegmentService: svc, Validator: newValidator(), Logger: log}
}

type CreateSegmentRequest struct {
	Name       string          `json:"name" validate:"required,max=200"`
	Conditions json.RawMessage `json:"conditions" validate:"required"`
	LogicType  string          `json:"logicType" validate:"omitempty,oneof=AND OR and or"`
}

type PreviewSegmentRequest struct {
	Conditions json.RawMessage `json:"conditions" validate:"required"`
	LogicType  string          `json:"logicType" validate:"omitempty,oneof=AND OR and or"`
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func (c *SegmentController) CreateSegment(w http.ResponseWriter, r *http.Request) {
	var body CreateSegmentRequest
	if !DecodeAndValidate(w, r, c.Validator, &body) {
		return
	}
	seg, err := c.SegmentService.Create(r.Context(), service.SegmentInput{
		TenantID:   middleware.TenantFromContext(r.Context()),
		Name:       body.Name,
		Conditions: body.Conditions,
		LogicType:  model.LogicType(body.LogicType),
	})
	if err != nil {
		WriteError(w, c.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, seg)
}

func (c *SegmentController) ListSegments(w http.ResponseWriter, r *http.Request) {
	segs, err := c.SegmentService.List(r.Context(), middleware.TenantFromContext(r.Context()))
	if err != nil {
		WriteError(w, c.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"data": segs})
}

func (c *SegmentController) GetSegment(w http.ResponseWriter, r *http.Request) {
	seg, err := c.SegmentService.Get(r.Context(), middleware.TenantFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, c.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, seg)
}

// DeleteSegment answers 409 with the number of blocking campaigns while the
// segment is still referenced.
func (c *SegmentController) DeleteSegment(w http.ResponseWriter, r *http.Request) {
	if err := c.SegmentService.Delete(r.Context(), middleware.TenantFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		WriteError(w, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *SegmentController) PreviewSegment(w http.ResponseWriter, r *http.Request) {
	var body PreviewSegmentRequest
	if !DecodeAndValidate(w, r, c.Validator, &body) {
		return
	}
	preview, err := c.SegmentService.Preview(r.Context(), middleware.TenantFromContext(r.Context()), body.Conditions, model.LogicType(body.LogicType))
	if err != nil {
		WriteError(w, c.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, preview)
}
