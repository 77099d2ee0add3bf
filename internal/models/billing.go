package models

import "time"

// ContractStatus is the signature state of a contract
type ContractStatus string

const (
	ContractPending ContractStatus = "pending"
	ContractSigned  ContractStatus = "signed"
)

// Contract is an agreement the admin issues and the client signs
type Contract struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"projectId"` // linked GeneratedProject, may be empty
	UserEmail string         `json:"userEmail"`
	Title     string         `json:"title"`
	Amount    float64        `json:"amount"`
	Status    ContractStatus `json:"status"`
	SignedAt  *time.Time     `json:"signedAt"`
	CreatedAt time.Time      `json:"createdAt"`
}

// InvoiceStatus is the payment state of an invoice
type InvoiceStatus string

const (
	InvoiceUnpaid InvoiceStatus = "unpaid"
	InvoicePaid   InvoiceStatus = "paid"
)

// Invoice is a bill issued to a client
type Invoice struct {
	ID        string        `json:"id"`
	ProjectID string        `json:"projectId"`
	UserEmail string        `json:"userEmail"`
	Title     string        `json:"title"`
	Amount    float64       `json:"amount"`
	Currency  string        `json:"currency"`
	Status    InvoiceStatus `json:"status"`
	DueDate   string        `json:"dueDate"`
	CreatedAt time.Time     `json:"createdAt"`
}

// PaymentStatus is the state of a domain purchase payment
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// DomainTransaction records a domain purchase or renewal payment
type DomainTransaction struct {
	ID            string        `json:"id"`
	Owner         string        `json:"owner"`
	Amount        float64       `json:"amount"`
	Years         int           `json:"years"`
	Type          string        `json:"transactionType"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Notes         string        `json:"notes"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// FinanceSummary aggregates domain transactions for the admin dashboard
type FinanceSummary struct {
	Total   float64 `json:"total"`
	Count   int     `json:"count"`
	Pending int     `json:"pending"`
}
