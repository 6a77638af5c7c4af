// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid delivery status transition")
	ErrInvalidReceipt    = errors.New("invalid delivery receipt")
	ErrMissingTenant     = errors.New("missing tenant context")
)

// notFound is implemented by every resource-level not-found error.
type notFound interface {
	NotFound() bool
}

// IsNotFound reports whether err (or anything it wraps) is a not-found error.
func IsNotFound(err error) bool {
	var nf notFound
	return errors.As(err, &nf) && nf.NotFound()
}

type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %s not found", e.CampaignID)
}

func (e *ErrCampaignNotFound) NotFound() bool { return true }

func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

type ErrSegmentNotFound struct {
	SegmentID string
}

func (e *ErrSegmentNotFound) Error() string {
	return fmt.Sprintf("segment with ID %s not found", e.SegmentID)
}

func (e *ErrSegmentNotFound) NotFound() bool { return true }

func NewSegmentNotFound(id string) error {
	return &ErrSegmentNotFound{SegmentID: id}
}

type ErrCustomerNotFound struct {
	CustomerID string
}

func (e *ErrCustomerNotFound) Error() string {
	return fmt.Sprintf("customer with ID %s not found", e.CustomerID)
}

func (e *ErrCustomerNotFound) NotFound() bool { return true }

func NewCustomerNotFound(id string) error {
	return &ErrCustomerNotFound{CustomerID: id}
}

type ErrDeliveryLogNotFound struct {
	LogID string
}

func (e *ErrDeliveryLogNotFound) Error() string {
	return fmt.Sprintf("delivery log %s not found", e.LogID)
}

func (e *ErrDeliveryLogNotFound) NotFound() bool { return true }

func NewDeliveryLogNotFound(id string) error {
	return &ErrDeliveryLogNotFound{LogID: id}
}

// ErrSegmentInUse blocks deletion of a segment that campaigns still reference.
type ErrSegmentInUse struct {
	SegmentID string
	Campaigns int
}

func (e *ErrSegmentInUse) Error() string {
	return fmt.Sprintf("segment %s is referenced by %d campaign(s)", e.SegmentID, e.Campaigns)
}

// ValidationError is a caller input problem; surfaced as 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
