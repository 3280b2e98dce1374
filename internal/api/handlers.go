package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/db"
	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/lifecycle"
	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/models"
	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/sequence"
	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/signature"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EmergencyAlerter pushes out-of-band alerts when emergency work orders open
type EmergencyAlerter interface {
	AlertEmergencyJob(ctx context.Context, jobNumber, clientName, description string) error
}

// DocumentStore is the persistence surface the handlers need. The versioned
// mutation methods must return db.ErrVersionConflict when the given version
// no longer matches the row.
type DocumentStore interface {
	Health(ctx context.Context) error
	CreateDocument(ctx context.Context, d *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, status models.Status) ([]models.Document, error)
	ListChildren(ctx context.Context, parentID string) ([]models.Document, error)
	AssignEstimator(ctx context.Context, id string, version int, quoter string) (*models.Document, error)
	RecordQuote(ctx context.Context, id string, version int, quoteNumber string, quoteDate time.Time, total float64) (*models.Document, error)
	RecordOrder(ctx context.Context, id string, version int, orderNumber string, orderDate time.Time) (*models.Document, error)
	SetJobNumber(ctx context.Context, id string, version int, jobNumber string) (*models.Document, error)
	RecordInvoice(ctx context.Context, id string, version int, invoiceNumber string, invoiceDate time.Time) (*models.Document, error)
	UpdateStatus(ctx context.Context, id string, version int, status models.Status) (*models.Document, error)
	CancelDocument(ctx context.Context, id string, version int) (*models.Document, error)
}

// Handler holds the database connection and provides HTTP handlers
type Handler struct {
	db          DocumentStore
	allocator   *sequence.Allocator
	coordinator *signature.Coordinator
	notifier    signature.Notifier
	alerter     EmergencyAlerter
	teamEmails  []string
	pinHash     string
	now         func() time.Time
}

// NewHandler creates a new handler instance. TEAM_EMAILS (comma separated)
// receives workflow event notifications; APPROVAL_PIN_HASH, when set, is the
// bcrypt hash gating manager-stage sign-off through the staff UI.
func NewHandler(database DocumentStore, allocator *sequence.Allocator, coordinator *signature.Coordinator, notifier signature.Notifier, alerter EmergencyAlerter) *Handler {
	var team []string
	for _, e := range strings.Split(os.Getenv("TEAM_EMAILS"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			team = append(team, e)
		}
	}
	return &Handler{
		db:          database,
		allocator:   allocator,
		coordinator: coordinator,
		notifier:    notifier,
		alerter:     alerter,
		teamEmails:  team,
		pinHash:     os.Getenv("APPROVAL_PIN_HASH"),
		now:         time.Now,
	}
}

// Health checks the health of the service
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "Database unavailable",
			Message: "Database was not initialized at startup",
		})
		return
	}
	if err := h.db.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "Database connection failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "workflow-service",
		"timestamp": time.Now().UTC(),
	})
}

// CreateEnquiry logs a new enquiry and issues its reference number
func (h *Handler) CreateEnquiry(c *gin.Context) {
	caller, ok := CallerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "Invalid user",
			Message: "Could not extract caller identity from token",
		})
		return
	}

	var req models.CreateEnquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}
	if !req.Direction.IsValid() {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid direction",
			Message: "Direction must be INCOMING or OUTGOING",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := h.now().UTC()
	enquiryNumber, err := h.allocator.EnquiryNumber(ctx, req.Direction, now.Year())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to allocate enquiry number",
			Message: err.Error(),
		})
		return
	}

	doc := &models.Document{
		ID:            uuid.New().String(),
		Direction:     req.Direction,
		EnquiryNumber: enquiryNumber,
		ClientName:    req.ClientName,
		ContactEmail:  req.ContactEmail,
		Description:   req.Description,
		Status:        models.StatusDraft,
		CreatedBy:     caller,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
	if err := h.db.CreateDocument(ctx, doc); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to create document",
			Message: err.Error(),
		})
		return
	}

	h.dispatch(ctx, h.teamEmails, "rfq_received", map[string]string{
		"enquiry_number": doc.EnquiryNumber,
		"client_name":    doc.ClientName,
		"description":    doc.Description,
	})

	c.JSON(http.StatusCreated, doc)
}

// GetDocument returns a single document
func (h *Handler) GetDocument(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc, err := h.db.GetDocument(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "Document not found",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// ListDocuments returns documents, optionally filtered by ?status=
func (h *Handler) ListDocuments(c *gin.Context) {
	status := models.Status(c.Query("status"))
	if status != "" && !status.IsValid() {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid status filter",
			Message: "Unknown status value",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	docs, err := h.db.ListDocuments(ctx, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to list documents",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

// GetProgress returns the document's place in the eight-stage pipeline
func (h *Handler) GetProgress(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc, err := h.db.GetDocument(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "Document not found",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, lifecycle.Classify(doc))
}

// AssignEstimator sets the quoter responsible for pricing
func (h *Handler) AssignEstimator(c *gin.Context) {
	var req models.AssignEstimatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := c.Param("id")
	doc, err := h.applyVersioned(ctx, id, req.Version, func(version int) (*models.Document, error) {
		return h.db.AssignEstimator(ctx, id, version, req.AssignedQuoter)
	})
	if h.writeUpdateError(c, err) {
		return
	}

	recipients := h.teamEmails
	if req.QuoterEmail != "" {
		recipients = []string{req.QuoterEmail}
	}
	h.dispatch(ctx, recipients, "estimator_assigned", map[string]string{
		"quoter_name":    req.AssignedQuoter,
		"enquiry_number": doc.EnquiryNumber,
		"client_name":    doc.ClientName,
		"description":    doc.Description,
	})

	c.JSON(http.StatusOK, doc)
}

// RecordQuote records the prepared quote against the document
func (h *Handler) RecordQuote(c *gin.Context) {
	var req models.RecordQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := c.Param("id")
	doc, err := h.applyVersioned(ctx, id, req.Version, func(version int) (*models.Document, error) {
		return h.db.RecordQuote(ctx, id, version, req.QuoteNumber, req.QuoteDate, req.QuoteTotal)
	})
	if h.writeUpdateError(c, err) {
		return
	}

	h.dispatch(ctx, h.teamEmails, "quote_ready", map[string]string{
		"quote_number": req.QuoteNumber,
		"client_name":  doc.ClientName,
	})

	c.JSON(http.StatusOK, doc)
}

// RecordOrder records the client purchase order, moving the document to WON
func (h *Handler) RecordOrder(c *gin.Context) {
	var req models.RecordOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := c.Param("id")
	current, err := h.db.GetDocument(ctx, id)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "Document not found",
			Message: err.Error(),
		})
		return
	}
	if !lifecycle.StageReached(current, lifecycle.StepQuoteCreated) {
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error:   "Quote required",
			Message: "An order cannot be recorded before a quote exists",
		})
		return
	}

	doc, err := h.applyVersioned(ctx, id, req.Version, func(version int) (*models.Document, error) {
		return h.db.RecordOrder(ctx, id, version, req.OrderNumber, req.OrderDate)
	})
	if h.writeUpdateError(c, err) {
		return
	}

	// Order receipt puts the work into production: a document with no job
	// number yet gets one minted here.
	if doc.JobNumber == nil {
		year := h.now().UTC().Year()
		var jobNumber string
		if req.TypeCode != "" {
			jobNumber, err = h.allocator.JobNumber(ctx, req.TypeCode, year)
		} else {
			jobNumber, err = h.allocator.ShortJobNumber(ctx, year)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "Failed to allocate job number",
				Message: err.Error(),
			})
			return
		}

		doc, err = h.applyVersioned(ctx, id, doc.Version, func(version int) (*models.Document, error) {
			return h.db.SetJobNumber(ctx, id, version, jobNumber)
		})
		if h.writeUpdateError(c, err) {
			return
		}

		h.dispatch(ctx, h.teamEmails, "job_created", map[string]string{
			"job_number":  jobNumber,
			"client_name": doc.ClientName,
			"description": doc.Description,
		})
	}

	c.JSON(http.StatusOK, doc)
}

// CreateJob converts an ordered document into a job by minting its job number
func (h *Handler) CreateJob(c *gin.Context) {
	var req models.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := c.Param("id")
	current, err := h.db.GetDocument(ctx, id)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "Document not found",
			Message: err.Error(),
		})
		return
	}
	if current.JobNumber != nil {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "Job already created",
			Message: "Document already carries job number " + *current.JobNumber,
		})
		return
	}
	if current.OrderNumber == nil && !req.EmergencyBypass {
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error:   "Order required",
			Message: "A job needs a client order unless the emergency bypass is set",
		})
		return
	}

	// The number is minted before the document update. If the update fails
	// the value stays consumed: the series keeps gaps, it never reuses a
	// number that may have been seen elsewhere.
	year := h.now().UTC().Year()
	var jobNumber string
	if req.TypeCode != "" {
		jobNumber, err = h.allocator.JobNumber(ctx, req.TypeCode, year)
	} else {
		jobNumber, err = h.allocator.ShortJobNumber(ctx, year)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to allocate job number",
			Message: err.Error(),
		})
		return
	}

	doc, err := h.applyVersioned(ctx, id, req.Version, func(version int) (*models.Document, error) {
		return h.db.SetJobNumber(ctx, id, version, jobNumber)
	})
	if h.writeUpdateError(c, err) {
		return
	}

	h.dispatch(ctx, h.teamEmails, "job_created", map[string]string{
		"job_number":  jobNumber,
		"client_name": doc.ClientName,
		"description": doc.Description,
	})

	c.JSON(http.StatusCreated, doc)
}

// CreateEmergencyJob opens a standalone emergency work order: EMG-numbered,
// no prior enquiry or order, SMS alert to the on-call line.
func (h *Handler) CreateEmergencyJob(c *gin.Context) {
	caller, ok := CallerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "Invalid user",
			Message: "Could not extract caller identity from token",
		})
		return
	}

	var req models.EmergencyJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := h.now().UTC()
	jobNumber, err := h.allocator.JobNumber(ctx, "EMG", now.Year())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to allocate job number",
			Message: err.Error(),
		})
		return
	}

	// Emergency work enters the pipeline at the job stage: the job number
	// doubles as the document reference.
	doc := &models.Document{
		ID:            uuid.New().String(),
		Direction:     models.DirectionIncoming,
		EnquiryNumber: jobNumber,
		ClientName:    req.ClientName,
		Description:   req.Description,
		Status:        models.StatusDraft,
		JobNumber:     &jobNumber,
		IsEmergency:   true,
		CreatedBy:     caller,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
	if err := h.db.CreateDocument(ctx, doc); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to create document",
			Message: err.Error(),
		})
		return
	}

	h.dispatch(ctx, h.teamEmails, "job_created", map[string]string{
		"job_number":  jobNumber,
		"client_name": doc.ClientName,
		"description": doc.Description,
	})
	if h.alerter != nil {
		if err := h.alerter.AlertEmergencyJob(ctx, jobNumber, req.ClientName, req.Description); err != nil {
			log.Printf("[API] Emergency SMS alert failed for %s: %v", jobNumber, err)
		}
	}

	c.JSON(http.StatusCreated, doc)
}

// CreateChildJob opens a lettered sub-unit of work under a parent job
func (h *Handler) CreateChildJob(c *gin.Context) {
	caller, ok := CallerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "Invalid user",
			Message: "Could not extract caller identity from token",
		})
		return
	}

	var req models.ChildJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	parent, err := h.db.GetDocument(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "Document not found",
			Message: err.Error(),
		})
		return
	}
	if parent.JobNumber == nil {
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error:   "Parent has no job number",
			Message: "Child work orders hang off an existing job",
		})
		return
	}

	suffix, err := h.allocator.ChildSuffix(ctx, *parent.JobNumber)
	if err != nil {
		switch {
		case errors.Is(err, sequence.ErrSuffixSpaceExhausted):
			c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
				Error:   "Suffix space exhausted",
				Message: "Parent " + *parent.JobNumber + " has used every suffix up to ZZ",
			})
		case errors.Is(err, sequence.ErrConflict):
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Error:   "Suffix allocation conflict",
				Message: "Concurrent child creation, please retry",
			})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "Failed to allocate child suffix",
				Message: err.Error(),
			})
		}
		return
	}

	now := h.now().UTC()
	childNumber := sequence.ChildNumber(*parent.JobNumber, suffix)
	child := &models.Document{
		ID:            uuid.New().String(),
		Direction:     parent.Direction,
		EnquiryNumber: parent.EnquiryNumber,
		ClientName:    parent.ClientName,
		ContactEmail:  parent.ContactEmail,
		Description:   req.Description,
		Status:        models.StatusDraft,
		JobNumber:     &childNumber,
		IsEmergency:   parent.IsEmergency,
		ParentID:      &parent.ID,
		ChildSuffix:   &suffix,
		CreatedBy:     caller,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
	if err := h.db.CreateDocument(ctx, child); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to create document",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, child)
}

// ListChildJobs returns the child work orders of a parent job
func (h *Handler) ListChildJobs(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	children, err := h.db.ListChildren(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to list child jobs",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"children": children, "count": len(children)})
}

// UpdateStatus applies a direct status transition. Signature and order flows
// set their own statuses; this covers marking a quote SENT or DECLINED.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}
	if !req.Status.IsValid() {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid status",
			Message: "Unknown status value",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := c.Param("id")
	doc, err := h.applyVersioned(ctx, id, req.Version, func(version int) (*models.Document, error) {
		return h.db.UpdateStatus(ctx, id, version, req.Status)
	})
	if h.writeUpdateError(c, err) {
		return
	}
	c.JSON(http.StatusOK, doc)
}

// RecordInvoice records the invoice that closes the pipeline
func (h *Handler) RecordInvoice(c *gin.Context) {
	var req models.RecordInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := c.Param("id")
	doc, err := h.applyVersioned(ctx, id, req.Version, func(version int) (*models.Document, error) {
		return h.db.RecordInvoice(ctx, id, version, req.InvoiceNumber, req.InvoiceDate)
	})
	if h.writeUpdateError(c, err) {
		return
	}

	jobNumber := ""
	if doc.JobNumber != nil {
		jobNumber = *doc.JobNumber
	}
	h.dispatch(ctx, h.teamEmails, "invoice_created", map[string]string{
		"invoice_number": req.InvoiceNumber,
		"job_number":     jobNumber,
		"client_name":    doc.ClientName,
	})

	c.JSON(http.StatusOK, doc)
}

// CancelDocument soft-deletes: the row is kept (jobs and invoices reference
// it) and the status moves to CANCELLED.
func (h *Handler) CancelDocument(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := c.Param("id")
	doc, err := h.applyVersioned(ctx, id, 0, func(version int) (*models.Document, error) {
		return h.db.CancelDocument(ctx, id, version)
	})
	if h.writeUpdateError(c, err) {
		return
	}
	c.JSON(http.StatusOK, doc)
}

// applyVersioned runs an optimistic-concurrency update. Version 0 means "the
// latest"; a genuine conflict is retried once against the fresh version before
// surfacing.
func (h *Handler) applyVersioned(ctx context.Context, id string, version int, apply func(version int) (*models.Document, error)) (*models.Document, error) {
	if version == 0 {
		current, err := h.db.GetDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		version = current.Version
	}

	doc, err := apply(version)
	if errors.Is(err, db.ErrVersionConflict) {
		fresh, gerr := h.db.GetDocument(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return apply(fresh.Version)
	}
	return doc, err
}

// writeUpdateError maps update failures to responses; returns true if handled
func (h *Handler) writeUpdateError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, db.ErrVersionConflict):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "Version conflict",
			Message: "The document changed underneath this update, reload and retry",
		})
	case strings.Contains(err.Error(), "not found"):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "Document not found",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to update document",
			Message: err.Error(),
		})
	}
	return true
}

// dispatch sends a workflow notification, logging failures instead of failing
// the request that produced the event.
func (h *Handler) dispatch(ctx context.Context, to []string, template string, data map[string]string) {
	if h.notifier == nil || len(to) == 0 {
		return
	}
	if err := h.notifier.Notify(ctx, to, template, data); err != nil {
		log.Printf("[API] Notification %s failed: %v", template, err)
	}
}
