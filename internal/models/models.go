package models

import (
	"time"
)

// Direction distinguishes inbound client enquiries from outbound procurement requests
type Direction string

const (
	DirectionIncoming Direction = "INCOMING"
	DirectionOutgoing Direction = "OUTGOING"
)

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionIncoming || d == DirectionOutgoing
}

// Status represents the commercial status of a document. The lifecycle package
// owns the interpretation of these values; nothing else compares them against
// ad hoc sets.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusApproved  Status = "APPROVED"
	StatusSent      Status = "SENT"
	StatusAccepted  Status = "ACCEPTED"
	StatusWon       Status = "WON"
	StatusDeclined  Status = "DECLINED"
	StatusCancelled Status = "CANCELLED"
)

// IsValid checks if the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusApproved, StatusSent, StatusAccepted, StatusWon, StatusDeclined, StatusCancelled:
		return true
	default:
		return false
	}
}

// SignatureStage identifies which of the two approval stages a token or
// signature belongs to. Manager sign-off always precedes the client's.
type SignatureStage string

const (
	StageManager SignatureStage = "manager"
	StageClient  SignatureStage = "client"
)

// IsValid checks if the stage is valid
func (s SignatureStage) IsValid() bool {
	return s == StageManager || s == StageClient
}

// Document is the single evolving record representing one piece of work from
// enquiry through invoice. The reference numbers are optional until the
// corresponding lifecycle stage is reached.
type Document struct {
	ID            string    `json:"id" db:"id"`
	Direction     Direction `json:"direction" db:"direction"`
	EnquiryNumber string    `json:"enquiry_number" db:"enquiry_number"`
	ClientName    string    `json:"client_name" db:"client_name"`
	ContactEmail  string    `json:"contact_email,omitempty" db:"contact_email"`
	Description   string    `json:"description" db:"description"`
	Status        Status    `json:"status" db:"status"`

	AssignedQuoter *string    `json:"assigned_quoter,omitempty" db:"assigned_quoter"`
	QuoteNumber    *string    `json:"quote_number,omitempty" db:"quote_number"`
	QuoteDate      *time.Time `json:"quote_date,omitempty" db:"quote_date"`
	QuoteTotal     *float64   `json:"quote_total,omitempty" db:"quote_total"`
	OrderNumber    *string    `json:"order_number,omitempty" db:"order_number"`
	OrderDate      *time.Time `json:"order_date,omitempty" db:"order_date"`
	JobNumber      *string    `json:"job_number,omitempty" db:"job_number"`
	InvoiceNumber  *string    `json:"invoice_number,omitempty" db:"invoice_number"`
	InvoiceDate    *time.Time `json:"invoice_date,omitempty" db:"invoice_date"`

	IsEmergency bool    `json:"is_emergency" db:"is_emergency"`
	ParentID    *string `json:"parent_id,omitempty" db:"parent_id"`
	ChildSuffix *string `json:"child_suffix,omitempty" db:"child_suffix"`

	ManagerSignedAt *time.Time `json:"manager_signed_at,omitempty" db:"manager_signed_at"`
	ManagerSignedBy *string    `json:"manager_signed_by,omitempty" db:"manager_signed_by"`
	ClientSignedAt  *time.Time `json:"client_signed_at,omitempty" db:"client_signed_at"`
	ClientSignedBy  *string    `json:"client_signed_by,omitempty" db:"client_signed_by"`

	CreatedBy string    `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	Version   int       `json:"version" db:"version"`
}

// SignatureToken is the stored form of a single-use signing credential. Only
// the SHA-256 hash of the token is stored; the plain token exists only in the
// sign URL handed to the recipient.
type SignatureToken struct {
	ID          string         `json:"id" db:"id"`
	DocumentID  string         `json:"document_id" db:"document_id"`
	Stage       SignatureStage `json:"stage" db:"stage"`
	TokenHash   string         `json:"-" db:"token_hash"`
	SignerEmail string         `json:"signer_email" db:"signer_email"`
	SignerName  string         `json:"signer_name" db:"signer_name"`
	ExpiresAt   time.Time      `json:"expires_at" db:"expires_at"`
	UsedAt      *time.Time     `json:"used_at,omitempty" db:"used_at"`
	Invalidated bool           `json:"invalidated" db:"invalidated"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// ConsentType records how the signer expressed consent
type ConsentType string

const (
	ConsentClick ConsentType = "click"
	ConsentDrawn ConsentType = "drawn"
)

// Signature is the immutable audit record written once per successful token
// consumption. It is never updated after insert.
type Signature struct {
	ID            string         `json:"id" db:"id"`
	DocumentID    string         `json:"document_id" db:"document_id"`
	Stage         SignatureStage `json:"stage" db:"stage"`
	QuoteNumber   string         `json:"quote_number" db:"quote_number"`
	SignerName    string         `json:"signer_name" db:"signer_name"`
	SignerEmail   string         `json:"signer_email" db:"signer_email"`
	SignerTitle   string         `json:"signer_title,omitempty" db:"signer_title"`
	SignerCompany string         `json:"signer_company,omitempty" db:"signer_company"`
	ConsentType   ConsentType    `json:"consent_type" db:"consent_type"`
	ConsentData   string         `json:"consent_data,omitempty" db:"consent_data"`
	IPAddress     string         `json:"ip_address" db:"ip_address"`
	UserAgent     string         `json:"user_agent" db:"user_agent"`
	QuoteTotal    float64        `json:"quote_total" db:"quote_total"`
	Description   string         `json:"description" db:"description"`
	SignedAt      time.Time      `json:"signed_at" db:"signed_at"`
}

// SignedUpdate carries the document-side effect of a consumed token. The store
// applies it in the same transaction that marks the token used.
type SignedUpdate struct {
	DocumentID string
	Stage      SignatureStage
	SignedAt   time.Time
	SignedBy   string
	Status     Status
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
