// Package lifecycle derives a document's position in the eight-stage pipeline
// from its recorded fields. Classification is advisory: it never mutates the
// document, and callers use it to decide which actions are currently valid.
package lifecycle

import (
	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/models"
)

// StageCount is the fixed number of pipeline stages
const StageCount = 8

// Step numbers for the fixed stage table. The order never changes; each stage
// is defined purely by a predicate over document fields.
const (
	StepReceived = iota + 1
	StepEstimatorAssigned
	StepQuoteCreated
	StepQuoteApproved
	StepSentToClient
	StepOrderReceived
	StepJobCreated
	StepInvoiced
)

// Stage is one checkpoint in the pipeline
type Stage struct {
	Step        int    `json:"step"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	Current     bool   `json:"current"`
}

// Progress is the classifier output: one entry per stage, in order, with
// exactly one stage flagged current unless all eight are complete.
type Progress struct {
	Steps      []Stage `json:"steps"`
	Percentage int     `json:"percentage"`
}

// statusAtLeastApproved reports whether internal sign-off has been recorded
func statusAtLeastApproved(s models.Status) bool {
	return s == models.StatusApproved || s == models.StatusSent ||
		s == models.StatusAccepted || s == models.StatusWon
}

// statusAtLeastSent reports whether the quote has been delivered to the client
func statusAtLeastSent(s models.Status) bool {
	return s == models.StatusSent || s == models.StatusAccepted || s == models.StatusWon
}

// Classify evaluates the fixed predicate table against a document snapshot.
// The percentage counts completed predicates only, so it is non-decreasing as
// fields are filled in over the document's life.
func Classify(doc *models.Document) Progress {
	steps := []Stage{
		{
			Step:        StepReceived,
			Name:        "Received",
			Description: "Enquiry logged",
			Completed:   !doc.CreatedAt.IsZero(),
		},
		{
			Step:        StepEstimatorAssigned,
			Name:        "Estimator Assigned",
			Description: "Quoter allocated",
			Completed:   doc.AssignedQuoter != nil && *doc.AssignedQuoter != "",
		},
		{
			Step:        StepQuoteCreated,
			Name:        "Quote Created",
			Description: "Pricing prepared",
			Completed:   doc.QuoteNumber != nil && doc.QuoteDate != nil,
		},
		{
			Step:        StepQuoteApproved,
			Name:        "Quote Approved",
			Description: "Internal sign-off",
			Completed:   statusAtLeastApproved(doc.Status),
		},
		{
			Step:        StepSentToClient,
			Name:        "Sent to Client",
			Description: "Quote delivered",
			Completed:   statusAtLeastSent(doc.Status),
		},
		{
			Step:        StepOrderReceived,
			Name:        "Order Received",
			Description: "Client PO confirmed",
			Completed:   doc.OrderNumber != nil && doc.OrderDate != nil,
		},
		{
			Step:        StepJobCreated,
			Name:        "Job Created",
			Description: "Work order generated",
			Completed:   doc.JobNumber != nil && *doc.JobNumber != "",
		},
		{
			Step:        StepInvoiced,
			Name:        "Invoiced",
			Description: "Payment requested",
			Completed:   doc.InvoiceNumber != nil && doc.InvoiceDate != nil,
		},
	}

	completed := 0
	for i := range steps {
		if steps[i].Completed {
			completed++
		}
	}

	// First incomplete stage is current; none when fully complete
	for i := range steps {
		if !steps[i].Completed {
			steps[i].Current = true
			break
		}
	}

	return Progress{
		Steps:      steps,
		Percentage: (completed*100 + StageCount/2) / StageCount,
	}
}

// CurrentStep returns the step number of the current stage, or 0 when all
// stages are complete.
func CurrentStep(doc *models.Document) int {
	p := Classify(doc)
	for _, s := range p.Steps {
		if s.Current {
			return s.Step
		}
	}
	return 0
}

// StageReached reports whether the stage identified by step is complete
func StageReached(doc *models.Document, step int) bool {
	p := Classify(doc)
	for _, s := range p.Steps {
		if s.Step == step {
			return s.Completed
		}
	}
	return false
}
