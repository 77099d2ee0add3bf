package models

import (
	"time"
)

// DomainStatus is the registration state of a domain
type DomainStatus string

const (
	DomainActive  DomainStatus = "active"
	DomainPending DomainStatus = "pending"
	DomainExpired DomainStatus = "expired"
)

// Domain represents a domain registered for a client
type Domain struct {
	ID         string       `json:"id"`
	Owner      string       `json:"owner"`      // Owner email
	Name       string       `json:"domainName"` // Label without extension
	Extension  string       `json:"extension"`  // e.g. ".com"
	Status     DomainStatus `json:"status"`
	ExpiryDate time.Time    `json:"expiryDate"`
	WebsiteID  string       `json:"websiteId"` // Linked project, may be empty
	AutoRenew  bool         `json:"autoRenew"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// FQDN returns the full domain name
func (d Domain) FQDN() string {
	return d.Name + d.Extension
}

// DaysRemaining returns whole days until expiry, negative once expired
func (d Domain) DaysRemaining(now time.Time) int {
	if d.ExpiryDate.IsZero() {
		return 0
	}
	return int(d.ExpiryDate.Sub(now).Hours() / 24)
}

// DomainPrice is the yearly price of an extension
type DomainPrice struct {
	Extension string  `json:"extension"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
}

// DomainAvailability is the result of a domain availability check
type DomainAvailability struct {
	Domain    string    `json:"domain"`
	Available bool      `json:"available"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	Premium   bool      `json:"premium"`
	Period    int       `json:"period"`
	CheckedAt time.Time `json:"checkedAt"`
	Estimated bool      `json:"estimated"`
}
