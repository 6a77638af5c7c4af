package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/unclebandit/crm-campaign-service/internal/errors"
	"github.com/unclebandit/crm-campaign-service/internal/logger"
)

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps service errors onto HTTP statuses. Unknown errors are
// logged and reported as 500 without their text.
func WriteError(w http.ResponseWriter, log logger.Logger, err error) {
	var (
		inUse *appErrors.ErrSegmentInUse
		ve    *appErrors.ValidationError
	)
	switch {
	case errors.As(err, &ve):
		WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "validation failed", "details": []string{ve.Error()},
		})
	case appErrors.IsNotFound(err):
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &inUse):
		WriteJSON(w, http.StatusConflict, map[string]interface{}{
			"error":             err.Error(),
			"blockingCampaigns": inUse.Campaigns,
		})
	case errors.Is(err, appErrors.ErrMissingTenant):
		WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, appErrors.ErrInvalidReceipt):
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		if log != nil {
			log.Error("request failed", map[string]interface{}{"error": err})
		}
		WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// DecodeAndValidate reads a JSON body into dst and runs its validate tags.
// It writes the 400 response itself and returns false on failure.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return false
		}
		details := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, validationMessage(fe))
		}
		WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "validation failed", "details": details,
		})
		return false
	}
	return true
}

func validationMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "uuid":
		return field + " must be a valid identifier"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
