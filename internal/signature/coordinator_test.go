package signature

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/models"
)

// memStore implements Store with the same guarantees the database gives:
// ConsumeToken is a serialized check-unused-then-mark-used commit.
type memStore struct {
	mu     sync.Mutex
	docs   map[string]*models.Document
	tokens map[string]*models.SignatureToken
	sigs   []*models.Signature
}

func newMemStore() *memStore {
	return &memStore{
		docs:   make(map[string]*models.Document),
		tokens: make(map[string]*models.SignatureToken),
	}
}

func (m *memStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s not found", id)
	}
	cp := *doc
	return &cp, nil
}

func (m *memStore) CreateToken(ctx context.Context, t *models.SignatureToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tokens[t.TokenHash] = &cp
	return nil
}

func (m *memStore) InvalidateOutstanding(ctx context.Context, documentID string, stage models.SignatureStage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.DocumentID == documentID && t.Stage == stage && t.UsedAt == nil {
			t.Invalidated = true
		}
	}
	return nil
}

func (m *memStore) GetTokenByHash(ctx context.Context, hash string) (*models.SignatureToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok {
		return nil, ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) ConsumeToken(ctx context.Context, hash string, sig *models.Signature, update models.SignedUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok {
		return ErrTokenNotFound
	}
	if t.UsedAt != nil {
		return ErrTokenUsed
	}
	now := update.SignedAt
	t.UsedAt = &now
	m.sigs = append(m.sigs, sig)

	doc := m.docs[update.DocumentID]
	if update.Stage == models.StageManager {
		doc.ManagerSignedAt = &now
		doc.ManagerSignedBy = &update.SignedBy
	} else {
		doc.ClientSignedAt = &now
		doc.ClientSignedBy = &update.SignedBy
	}
	doc.Status = update.Status
	return nil
}

// recordingNotifier captures dispatched events
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(ctx context.Context, to []string, template string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, template)
	return nil
}

func quotedDoc() *models.Document {
	qn := "Q-26-101"
	qd := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	total := 152000.50
	return &models.Document{
		ID:          "doc-1",
		Direction:   models.DirectionIncoming,
		ClientName:  "Acme Steelworks",
		Description: "Conveyor frame repair",
		Status:      models.StatusDraft,
		QuoteNumber: &qn,
		QuoteDate:   &qd,
		QuoteTotal:  &total,
		CreatedAt:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

func newTestCoordinator() (*Coordinator, *memStore, *recordingNotifier) {
	store := newMemStore()
	store.docs["doc-1"] = quotedDoc()
	notifier := &recordingNotifier{}
	c := NewCoordinator(store, notifier, "https://ops.example.com", []string{"team@example.com"})
	return c, store, notifier
}

func signReq(name string) models.SignRequest {
	return models.SignRequest{
		SignerName:  name,
		SignerEmail: name + "@example.com",
		ConsentType: models.ConsentClick,
	}
}

func TestIssueAndValidateToken(t *testing.T) {
	ctx := context.Background()
	c, _, notifier := newTestCoordinator()

	res, err := c.IssueToken(ctx, "doc-1", models.StageManager, "mgr@example.com", "G. Venter")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if len(res.Token) != tokenHexLen {
		t.Errorf("expected %d-char token, got %d", tokenHexLen, len(res.Token))
	}
	if res.SignURL != "https://ops.example.com/sign/"+res.Token {
		t.Errorf("unexpected sign URL %s", res.SignURL)
	}

	info, err := c.ValidateToken(ctx, res.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if info.DocumentID != "doc-1" || info.Stage != models.StageManager {
		t.Errorf("unexpected token info: %+v", info)
	}
	if info.QuoteNumber != "Q-26-101" {
		t.Errorf("expected quote number hint, got %q", info.QuoteNumber)
	}

	if len(notifier.events) != 1 || notifier.events[0] != "signature_requested" {
		t.Errorf("expected signature_requested event, got %v", notifier.events)
	}
}

func TestIssueTokenRequiresQuote(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newTestCoordinator()
	store.docs["doc-2"] = &models.Document{ID: "doc-2", Status: models.StatusDraft, CreatedAt: time.Now()}

	if _, err := c.IssueToken(ctx, "doc-2", models.StageManager, "m@x.com", "M"); !errors.Is(err, ErrQuoteMissing) {
		t.Errorf("expected ErrQuoteMissing, got %v", err)
	}
}

func TestValidateRejectsWrongEncodings(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator()

	// The legacy base64 {documentId, issuedAtMillis} payload is one scheme
	// too many: it must be rejected as malformed, never parsed.
	legacy := base64.StdEncoding.EncodeToString([]byte(`{"documentId":"doc-1","issuedAtMillis":1767225600000}`))

	for _, token := range []string{"", "short", legacy, "ZZ" + string(make([]byte, 62))} {
		_, err := c.ValidateToken(ctx, token)
		if !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("token %q: expected ErrTokenMalformed, got %v", token, err)
		}
	}
}

func TestValidateUnknownToken(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator()

	unknown := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	if _, err := c.ValidateToken(ctx, unknown); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator()

	issued := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return issued }
	res, err := c.IssueToken(ctx, "doc-1", models.StageManager, "mgr@example.com", "G. Venter")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	// 1ms before expiry still validates
	c.now = func() time.Time { return issued.Add(TokenTTL).Add(-time.Millisecond) }
	if _, err := c.ValidateToken(ctx, res.Token); err != nil {
		t.Errorf("expected valid 1ms before expiry, got %v", err)
	}

	// 1ms after expiry is terminal
	c.now = func() time.Time { return issued.Add(TokenTTL).Add(time.Millisecond) }
	if _, err := c.ValidateToken(ctx, res.Token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired 1ms after expiry, got %v", err)
	}
}

func TestRecordSignatureExpiredLeavesDocumentUnsigned(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newTestCoordinator()

	issued := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return issued }
	res, err := c.IssueToken(ctx, "doc-1", models.StageManager, "mgr@example.com", "G. Venter")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	// Clock skips past 30 days
	c.now = func() time.Time { return issued.Add(TokenTTL + time.Hour) }
	_, err = c.RecordSignature(ctx, res.Token, signReq("G. Venter"), "10.0.0.1", "test-agent")
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if Reason(err) != "expired" {
		t.Errorf("expected reason expired, got %s", Reason(err))
	}

	doc := store.docs["doc-1"]
	if doc.ManagerSignedAt != nil || doc.ManagerSignedBy != nil {
		t.Error("manager-signed fields must remain unset after an expired attempt")
	}
	if len(store.sigs) != 0 {
		t.Error("no signature record may exist after an expired attempt")
	}
}

func TestRecordSignatureSingleUse(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newTestCoordinator()

	res, err := c.IssueToken(ctx, "doc-1", models.StageManager, "mgr@example.com", "G. Venter")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	first, err := c.RecordSignature(ctx, res.Token, signReq("G. Venter"), "10.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("first RecordSignature: %v", err)
	}
	if first.NextStage != "client" {
		t.Errorf("manager success must hand over to client stage, got %q", first.NextStage)
	}

	_, err = c.RecordSignature(ctx, res.Token, signReq("G. Venter"), "10.0.0.1", "test-agent")
	if !errors.Is(err, ErrTokenUsed) {
		t.Errorf("expected ErrTokenUsed on replay, got %v", err)
	}
	if len(store.sigs) != 1 {
		t.Errorf("expected exactly one signature record, got %d", len(store.sigs))
	}
}

// N racing submissions of the same link: exactly one success, the rest used.
func TestRecordSignatureConcurrentSingleUse(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newTestCoordinator()

	res, err := c.IssueToken(ctx, "doc-1", models.StageManager, "mgr@example.com", "G. Venter")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.RecordSignature(ctx, res.Token, signReq("G. Venter"), "10.0.0.1", "test-agent")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes, used := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrTokenUsed):
			used++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly 1 success, got %d", successes)
	}
	if used != n-1 {
		t.Errorf("expected %d used failures, got %d", n-1, used)
	}
	if len(store.sigs) != 1 {
		t.Errorf("expected exactly one signature record, got %d", len(store.sigs))
	}
}

func TestReissueInvalidatesOutstandingToken(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator()

	old, err := c.IssueToken(ctx, "doc-1", models.StageManager, "mgr@example.com", "G. Venter")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	replacement, err := c.IssueToken(ctx, "doc-1", models.StageManager, "mgr@example.com", "G. Venter")
	if err != nil {
		t.Fatalf("re-issue: %v", err)
	}

	if _, err := c.ValidateToken(ctx, old.Token); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("replaced token must stop validating, got %v", err)
	}
	if _, err := c.ValidateToken(ctx, replacement.Token); err != nil {
		t.Errorf("replacement token must validate, got %v", err)
	}
}

func TestStageGating(t *testing.T) {
	ctx := context.Background()
	c, store, notifier := newTestCoordinator()

	// Client-stage issuance is blocked until the manager has signed
	if _, err := c.IssueToken(ctx, "doc-1", models.StageClient, "client@acme.com", "P. Naidoo"); !errors.Is(err, ErrStageOrder) {
		t.Fatalf("expected ErrStageOrder, got %v", err)
	}

	mgrTok, err := c.IssueToken(ctx, "doc-1", models.StageManager, "mgr@example.com", "G. Venter")
	if err != nil {
		t.Fatalf("IssueToken manager: %v", err)
	}
	if _, err := c.RecordSignature(ctx, mgrTok.Token, signReq("G. Venter"), "10.0.0.1", "test-agent"); err != nil {
		t.Fatalf("manager RecordSignature: %v", err)
	}

	doc := store.docs["doc-1"]
	if doc.ManagerSignedAt == nil {
		t.Fatal("manager-signed fields must be set")
	}
	if doc.ClientSignedAt != nil {
		t.Fatal("a manager-stage token must never set client-signed fields")
	}
	if doc.Status != models.StatusApproved {
		t.Errorf("manager success must not advance status past APPROVED, got %s", doc.Status)
	}

	cliTok, err := c.IssueToken(ctx, "doc-1", models.StageClient, "client@acme.com", "P. Naidoo")
	if err != nil {
		t.Fatalf("IssueToken client: %v", err)
	}
	res, err := c.RecordSignature(ctx, cliTok.Token, models.SignRequest{
		SignerName:    "P. Naidoo",
		SignerEmail:   "client@acme.com",
		SignerCompany: "Acme Steelworks",
		ConsentType:   models.ConsentDrawn,
		ConsentData:   "data:image/png;base64,iVBORw0K",
	}, "41.0.0.9", "client-agent")
	if err != nil {
		t.Fatalf("client RecordSignature: %v", err)
	}
	if res.NextStage != "complete" {
		t.Errorf("client success must complete the exchange, got %q", res.NextStage)
	}

	doc = store.docs["doc-1"]
	if doc.ClientSignedAt == nil {
		t.Fatal("client-signed fields must be set")
	}
	if doc.Status != models.StatusAccepted {
		t.Errorf("client success must transition status to ACCEPTED, got %s", doc.Status)
	}

	want := map[string]bool{"manager_signed": false, "order_won": false, "fully_signed": false}
	for _, ev := range notifier.events {
		if _, ok := want[ev]; ok {
			want[ev] = true
		}
	}
	for ev, seen := range want {
		if !seen {
			t.Errorf("expected %s event to be dispatched", ev)
		}
	}
}

func TestReasonMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrTokenExpired, "expired"},
		{ErrTokenUsed, "used"},
		{ErrTokenNotFound, "not_found"},
		{ErrTokenMalformed, "malformed"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := Reason(tt.err); got != tt.want {
			t.Errorf("Reason(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
