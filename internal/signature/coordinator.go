// Package signature drives the two-party approval exchange: issuing single-use
// signing tokens, validating them, and recording signatures. Manager sign-off
// always precedes the client's; a successful client signature moves the
// document to ACCEPTED.
package signature

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/models"
	"github.com/google/uuid"
)

// TokenTTL is the fixed lifetime of a signing link
const TokenTTL = 30 * 24 * time.Hour

// tokenHexLen is the length of a well-formed plain token: 32 random bytes,
// hex encoded. Anything else is rejected as malformed before any lookup;
// there is exactly one token encoding scheme.
const tokenHexLen = 64

var (
	// ErrTokenExpired means the link's 30 days are up. Terminal.
	ErrTokenExpired = errors.New("signature token expired")
	// ErrTokenUsed means the token was already consumed. Terminal.
	ErrTokenUsed = errors.New("signature token already used")
	// ErrTokenNotFound means no active token matches. Tokens replaced by a
	// re-issue are no longer recognized and report this reason.
	ErrTokenNotFound = errors.New("signature token not found")
	// ErrTokenMalformed means the credential is not in the token format at all
	ErrTokenMalformed = errors.New("signature token malformed")
	// ErrStageOrder means a client-stage action was attempted before the
	// manager-stage signature exists for the document.
	ErrStageOrder = errors.New("manager signature required first")
	// ErrQuoteMissing means sign-off was requested for a document that has no
	// quote recorded yet.
	ErrQuoteMissing = errors.New("document has no quote to sign")
)

// Reason maps a token error to the wire-level reason string so the boundary
// layer can tell "link expired" from "already signed" from "bad link".
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenUsed):
		return "used"
	case errors.Is(err, ErrTokenNotFound):
		return "not_found"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	default:
		return "error"
	}
}

// Store is the persistence contract for tokens, signatures and the documents
// they close. ConsumeToken must be a single commit: it marks the token used
// (conditionally, returning ErrTokenUsed when another caller won), inserts the
// signature record, and applies the document update, all or nothing.
type Store interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	CreateToken(ctx context.Context, t *models.SignatureToken) error
	InvalidateOutstanding(ctx context.Context, documentID string, stage models.SignatureStage) error
	GetTokenByHash(ctx context.Context, hash string) (*models.SignatureToken, error)
	ConsumeToken(ctx context.Context, hash string, sig *models.Signature, update models.SignedUpdate) error
}

// Notifier dispatches a named event with a flat payload. Delivery is
// fire-and-forget from the coordinator's perspective: failures are logged and
// surfaced, never retried here.
type Notifier interface {
	Notify(ctx context.Context, to []string, template string, data map[string]string) error
}

// Coordinator manages the signature token protocol for documents
type Coordinator struct {
	store      Store
	notifier   Notifier
	baseURL    string
	teamEmails []string
	now        func() time.Time
}

// NewCoordinator creates a coordinator. baseURL is the public origin the
// /sign/{token} links are built on; teamEmails receive the stage-transition
// events.
func NewCoordinator(store Store, notifier Notifier, baseURL string, teamEmails []string) *Coordinator {
	return &Coordinator{
		store:      store,
		notifier:   notifier,
		baseURL:    baseURL,
		teamEmails: teamEmails,
		now:        time.Now,
	}
}

// IssueResult is returned from IssueToken. Token is the plain credential; it
// is never stored and never appears again after this response.
type IssueResult struct {
	Token     string    `json:"token"`
	SignURL   string    `json:"sign_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenInfo is the read-only view a signing page needs
type TokenInfo struct {
	DocumentID  string                `json:"document_id"`
	Stage       models.SignatureStage `json:"stage"`
	SignerName  string                `json:"signer_name"`
	SignerEmail string                `json:"signer_email"`
	ExpiresAt   time.Time             `json:"expires_at"`
	QuoteNumber string                `json:"quote_number"`
	ClientName  string                `json:"client_name"`
	QuoteTotal  float64               `json:"quote_total"`
	Description string                `json:"description"`
}

// RecordResult reports which stage, if any, the exchange moves to next
type RecordResult struct {
	DocumentID string `json:"document_id"`
	NextStage  string `json:"next_stage"`
}

// IssueToken generates a fresh signing token bound to (document, stage),
// invalidating any outstanding token for that pair, and emits a
// signature_requested event to the recipient.
func (c *Coordinator) IssueToken(ctx context.Context, documentID string, stage models.SignatureStage, signerEmail, signerName string) (*IssueResult, error) {
	if !stage.IsValid() {
		return nil, fmt.Errorf("invalid signature stage %q", stage)
	}

	doc, err := c.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if doc.QuoteNumber == nil || doc.QuoteDate == nil {
		return nil, ErrQuoteMissing
	}
	if stage == models.StageClient && doc.ManagerSignedAt == nil {
		return nil, ErrStageOrder
	}

	// A re-issue replaces any unconsumed token for the same stage; old links
	// stop working the moment a new one exists.
	if err := c.store.InvalidateOutstanding(ctx, documentID, stage); err != nil {
		return nil, fmt.Errorf("failed to invalidate outstanding tokens: %w", err)
	}

	plain, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	issuedAt := c.now()
	rec := &models.SignatureToken{
		ID:          uuid.New().String(),
		DocumentID:  documentID,
		Stage:       stage,
		TokenHash:   HashToken(plain),
		SignerEmail: signerEmail,
		SignerName:  signerName,
		ExpiresAt:   issuedAt.Add(TokenTTL),
		CreatedAt:   issuedAt,
	}
	if err := c.store.CreateToken(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}

	signURL := c.baseURL + "/sign/" + plain
	log.Printf("[SIGN] Issued %s-stage token for document %s (expires %s)",
		stage, documentID, rec.ExpiresAt.Format("2006-01-02"))

	c.dispatch(ctx, []string{signerEmail}, "signature_requested", map[string]string{
		"stage":        string(stage),
		"signer_name":  signerName,
		"quote_number": *doc.QuoteNumber,
		"client_name":  doc.ClientName,
		"description":  doc.Description,
		"sign_url":     signURL,
	})

	return &IssueResult{Token: plain, SignURL: signURL, ExpiresAt: rec.ExpiresAt}, nil
}

// ValidateToken is a read-only check: it never mutates token state. Expiry is
// evaluated by wall-clock comparison right here, so an expired token is
// rejected the instant it is checked.
func (c *Coordinator) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	rec, err := c.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	doc, err := c.store.GetDocument(ctx, rec.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	info := &TokenInfo{
		DocumentID:  rec.DocumentID,
		Stage:       rec.Stage,
		SignerName:  rec.SignerName,
		SignerEmail: rec.SignerEmail,
		ExpiresAt:   rec.ExpiresAt,
		ClientName:  doc.ClientName,
		Description: doc.Description,
	}
	if doc.QuoteNumber != nil {
		info.QuoteNumber = *doc.QuoteNumber
	}
	if doc.QuoteTotal != nil {
		info.QuoteTotal = *doc.QuoteTotal
	}
	return info, nil
}

// RecordSignature re-validates the token, then in a single commit persists
// the immutable signature record, marks the token used, and applies the
// stage's document update. Two racing submissions of the same link produce
// exactly one success; the loser gets ErrTokenUsed.
func (c *Coordinator) RecordSignature(ctx context.Context, token string, req models.SignRequest, clientIP, userAgent string) (*RecordResult, error) {
	rec, err := c.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	doc, err := c.store.GetDocument(ctx, rec.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if rec.Stage == models.StageClient && doc.ManagerSignedAt == nil {
		return nil, ErrStageOrder
	}

	signedAt := c.now()
	sig := &models.Signature{
		ID:            uuid.New().String(),
		DocumentID:    rec.DocumentID,
		Stage:         rec.Stage,
		SignerName:    req.SignerName,
		SignerEmail:   req.SignerEmail,
		SignerTitle:   req.SignerTitle,
		SignerCompany: req.SignerCompany,
		ConsentType:   req.ConsentType,
		ConsentData:   req.ConsentData,
		IPAddress:     clientIP,
		UserAgent:     userAgent,
		Description:   doc.Description,
		SignedAt:      signedAt,
	}
	if doc.QuoteNumber != nil {
		sig.QuoteNumber = *doc.QuoteNumber
	}
	if doc.QuoteTotal != nil {
		sig.QuoteTotal = *doc.QuoteTotal
	}

	update := models.SignedUpdate{
		DocumentID: rec.DocumentID,
		Stage:      rec.Stage,
		SignedAt:   signedAt,
		SignedBy:   req.SignerName,
	}
	if rec.Stage == models.StageManager {
		// Internal approval: status moves to APPROVED and no further
		update.Status = models.StatusApproved
	} else {
		update.Status = models.StatusAccepted
	}

	if err := c.store.ConsumeToken(ctx, rec.TokenHash, sig, update); err != nil {
		return nil, err
	}

	result := &RecordResult{DocumentID: rec.DocumentID}
	switch rec.Stage {
	case models.StageManager:
		result.NextStage = "client"
		log.Printf("[SIGN] Manager signature recorded for document %s", rec.DocumentID)
		c.dispatch(ctx, c.teamEmails, "manager_signed", map[string]string{
			"quote_number": sig.QuoteNumber,
			"signer_name":  req.SignerName,
			"client_name":  doc.ClientName,
		})
	case models.StageClient:
		result.NextStage = "complete"
		log.Printf("[SIGN] Client signature recorded for document %s, order won", rec.DocumentID)
		company := req.SignerCompany
		if company == "" {
			company = req.SignerName
		}
		payload := map[string]string{
			"quote_number": sig.QuoteNumber,
			"client_name":  company,
			"total_value":  fmt.Sprintf("%.2f", sig.QuoteTotal),
			"description":  doc.Description,
		}
		c.dispatch(ctx, c.teamEmails, "order_won", payload)
		c.dispatch(ctx, c.teamEmails, "fully_signed", payload)
	}
	return result, nil
}

// lookup resolves a plain token to its stored record, enforcing the single
// accepted encoding and the validity rules shared by validate and record.
func (c *Coordinator) lookup(ctx context.Context, token string) (*models.SignatureToken, error) {
	if !wellFormed(token) {
		return nil, ErrTokenMalformed
	}

	rec, err := c.store.GetTokenByHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	// Expiry wins over every other state
	if c.now().After(rec.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	if rec.UsedAt != nil {
		return nil, ErrTokenUsed
	}
	if rec.Invalidated {
		return nil, ErrTokenNotFound
	}
	return rec, nil
}

// generateToken returns 32 bytes of crypto/rand entropy, hex encoded
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken computes the URL-safe base64 SHA-256 hash stored in place of the
// plain token.
func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// wellFormed accepts exactly the 64-char lowercase hex encoding
func wellFormed(token string) bool {
	if len(token) != tokenHexLen {
		return false
	}
	for i := 0; i < len(token); i++ {
		ch := token[i]
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return false
		}
	}
	return true
}

// dispatch sends a notification event, logging failures instead of failing
// the operation that produced the event.
func (c *Coordinator) dispatch(ctx context.Context, to []string, template string, data map[string]string) {
	if c.notifier == nil || len(to) == 0 {
		return
	}
	if err := c.notifier.Notify(ctx, to, template, data); err != nil {
		log.Printf("[SIGN] Notification %s failed: %v", template, err)
	}
}
