package models

import "time"

// CreateEnquiryRequest logs a new enquiry into the pipeline
type CreateEnquiryRequest struct {
	Direction    Direction `json:"direction" binding:"required"`
	ClientName   string    `json:"client_name" binding:"required"`
	ContactEmail string    `json:"contact_email"`
	Description  string    `json:"description" binding:"required"`
}

// AssignEstimatorRequest sets the quoter responsible for pricing
type AssignEstimatorRequest struct {
	AssignedQuoter string `json:"assigned_quoter" binding:"required"`
	QuoterEmail    string `json:"quoter_email"`
	Version        int    `json:"version"`
}

// RecordQuoteRequest records the prepared quote against the document
type RecordQuoteRequest struct {
	QuoteNumber string    `json:"quote_number" binding:"required"`
	QuoteDate   time.Time `json:"quote_date" binding:"required"`
	QuoteTotal  float64   `json:"quote_total"`
	Version     int       `json:"version"`
}

// RecordOrderRequest records the client purchase order. TypeCode selects the
// numbering scheme for the job number minted on receipt when the document has
// none yet: empty means the short YY-NNN series.
type RecordOrderRequest struct {
	OrderNumber string    `json:"order_number" binding:"required"`
	OrderDate   time.Time `json:"order_date" binding:"required"`
	TypeCode    string    `json:"type_code"`
	Version     int       `json:"version"`
}

// CreateJobRequest converts an ordered document into a job. TypeCode selects
// the numbering scheme: empty means the short YY-NNN series, otherwise a
// prefixed series such as RPR-2026-007.
type CreateJobRequest struct {
	TypeCode        string `json:"type_code"`
	EmergencyBypass bool   `json:"emergency_bypass"`
	Version         int    `json:"version"`
}

// EmergencyJobRequest opens a standalone emergency work order
type EmergencyJobRequest struct {
	ClientName   string `json:"client_name" binding:"required"`
	ContactPhone string `json:"contact_phone"`
	Description  string `json:"description" binding:"required"`
}

// ChildJobRequest opens a sub-unit of work under a parent job
type ChildJobRequest struct {
	Description string `json:"description" binding:"required"`
}

// UpdateStatusRequest moves the document to a new commercial status, used for
// the transitions no other operation implies (SENT, DECLINED).
type UpdateStatusRequest struct {
	Status  Status `json:"status" binding:"required"`
	Version int    `json:"version"`
}

// RecordInvoiceRequest records the invoice closing the pipeline
type RecordInvoiceRequest struct {
	InvoiceNumber string    `json:"invoice_number" binding:"required"`
	InvoiceDate   time.Time `json:"invoice_date" binding:"required"`
	Version       int       `json:"version"`
}

// IssueSignatureRequest asks for a signing link to be generated and emailed
type IssueSignatureRequest struct {
	Stage       SignatureStage `json:"stage" binding:"required"`
	SignerEmail string         `json:"signer_email" binding:"required"`
	SignerName  string         `json:"signer_name" binding:"required"`
}

// SignRequest is the state-changing call behind POST /sign/:token
type SignRequest struct {
	SignerName    string      `json:"signer_name" binding:"required"`
	SignerEmail   string      `json:"signer_email" binding:"required"`
	SignerTitle   string      `json:"signer_title"`
	SignerCompany string      `json:"signer_company"`
	ConsentType   ConsentType `json:"consent_type" binding:"required"`
	ConsentData   string      `json:"consent_data"`
	Pin           string      `json:"pin"`
}
