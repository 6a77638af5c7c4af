// internal/model/customer.go
package model

import (
	"strings"
	"time"
)

type Customer struct {
	ID             string     `db:"id" json:"id"`
	TenantID       string     `db:"tenant_id" json:"tenantId"`
	FirstName      string     `db:"first_name" json:"firstName"`
	LastName       string     `db:"last_name" json:"lastName"`
	Email          string     `db:"email" json:"email"`
	Phone          string     `db:"phone" json:"phone"`
	TotalSpend     float64    `db:"total_spend" json:"totalSpend"`
	Visits         int        `db:"visits" json:"visits"`
	LastActiveDate *time.Time `db:"last_active_date" json:"lastActiveDate,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// DisplayName joins the non-empty name parts; empty when both are blank.
func (c Customer) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// RecipientFor returns the address used on the given channel.
func (c Customer) RecipientFor(ch Channel) string {
	if ch == ChannelEmail {
		return c.Email
	}
	return c.Phone
}

// CustomerSnapshot is the customer view embedded in campaign details.
type CustomerSnapshot struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	TotalSpend float64 `json:"totalSpend"`
}
