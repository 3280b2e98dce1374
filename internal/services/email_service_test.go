package services

import (
	"context"
	"strings"
	"testing"
)

func TestEmailTemplatesRender(t *testing.T) {
	data := map[string]string{
		"enquiry_number": "26-007",
		"quote_number":   "Q-2026-040",
		"job_number":     "RPR-2026-003",
		"invoice_number": "INV-1181",
		"client_name":    "Karoo Mills",
		"quoter_name":    "Sipho",
		"signer_name":    "Piet Rossouw",
		"description":    "Replace conveyor guards",
		"total_value":    "18250.00",
		"sign_url":       "https://ops.example.com/sign/abc",
	}

	tests := []struct {
		template    string
		wantSubject string
		wantInBody  string
	}{
		{"rfq_received", "New enquiry 26-007 from Karoo Mills", "26-007"},
		{"estimator_assigned", "Enquiry 26-007 assigned to you", "Sipho"},
		{"quote_ready", "Quote Q-2026-040 ready for approval", "Q-2026-040"},
		{"signature_requested", "Signature requested: quote Q-2026-040", "https://ops.example.com/sign/abc"},
		{"manager_signed", "Quote Q-2026-040 approved internally", "Piet Rossouw"},
		{"order_won", "Order won: Q-2026-040 (Karoo Mills)", "18250.00"},
		{"fully_signed", "Quote Q-2026-040 fully signed", "signature register"},
		{"job_created", "Job RPR-2026-003 created", "RPR-2026-003"},
		{"invoice_created", "Invoice INV-1181 raised for job RPR-2026-003", "INV-1181"},
	}

	for _, tc := range tests {
		t.Run(tc.template, func(t *testing.T) {
			tpl, ok := emailTemplates[tc.template]
			if !ok {
				t.Fatalf("template %s not registered", tc.template)
			}
			if got := tpl.subject(data); got != tc.wantSubject {
				t.Fatalf("subject = %q, want %q", got, tc.wantSubject)
			}
			if body := tpl.body(data); !strings.Contains(body, tc.wantInBody) {
				t.Fatalf("body missing %q:\n%s", tc.wantInBody, body)
			}
		})
	}
}

func TestNotifyUnknownTemplate(t *testing.T) {
	e := &EmailService{}
	err := e.Notify(context.Background(), []string{"ops@example.com"}, "no_such_event", nil)
	if err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestNotifyNoRecipients(t *testing.T) {
	e := &EmailService{}
	if err := e.Notify(context.Background(), nil, "rfq_received", map[string]string{}); err != nil {
		t.Fatalf("no recipients should be a no-op, got %v", err)
	}
}
