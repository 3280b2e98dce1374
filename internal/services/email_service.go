package services

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// EmailService handles workflow notification email via AWS SES (SESv2 API)
type EmailService struct {
	sesClient *sesv2.Client
	fromEmail string
}

// NewEmailService creates a new email service instance using AWS SDK (role-based)
func NewEmailService(cfg aws.Config) *EmailService {
	region := cfg.Region
	if region == "" {
		region = os.Getenv("SES_AWS_REGION")
		if region == "" {
			if os.Getenv("AWS_DEFAULT_REGION") != "" {
				region = os.Getenv("AWS_DEFAULT_REGION")
			} else {
				region = "eu-central-1"
			}
		}
	}
	cfg.Region = region
	return &EmailService{
		sesClient: sesv2.NewFromConfig(cfg),
		fromEmail: os.Getenv("SES_FROM_EMAIL"),
	}
}

// emailTemplate pairs a subject line with the body paragraphs for one
// workflow event. Bodies receive the event payload.
type emailTemplate struct {
	subject func(data map[string]string) string
	body    func(data map[string]string) string
}

var emailTemplates = map[string]emailTemplate{
	"rfq_received": {
		subject: func(d map[string]string) string {
			return fmt.Sprintf("New enquiry %s from %s", d["enquiry_number"], d["client_name"])
		},
		body: func(d map[string]string) string {
			return fmt.Sprintf(`<p>A new request for quotation has been logged.</p>
        <div class="ref-box">%s</div>
        <p><strong>Client:</strong> %s<br>
        <strong>Scope:</strong> %s</p>
        <p>Assign an estimator from the workflow board to start pricing.</p>`,
				d["enquiry_number"], d["client_name"], d["description"])
		},
	},
	"estimator_assigned": {
		subject: func(d map[string]string) string {
			return fmt.Sprintf("Enquiry %s assigned to you", d["enquiry_number"])
		},
		body: func(d map[string]string) string {
			return fmt.Sprintf(`<p>Hello %s,</p>
        <p>Enquiry <strong>%s</strong> for <strong>%s</strong> has been assigned to you for pricing.</p>
        <p><strong>Scope:</strong> %s</p>`,
				d["quoter_name"], d["enquiry_number"], d["client_name"], d["description"])
		},
	},
	"quote_ready": {
		subject: func(d map[string]string) string {
			return fmt.Sprintf("Quote %s ready for approval", d["quote_number"])
		},
		body: func(d map[string]string) string {
			return fmt.Sprintf(`<p>Quote <strong>%s</strong> for <strong>%s</strong> has been prepared and is awaiting internal approval.</p>
        <div class="ref-box">%s</div>`,
				d["quote_number"], d["client_name"], d["quote_number"])
		},
	},
	"signature_requested": {
		subject: func(d map[string]string) string {
			return fmt.Sprintf("Signature requested: quote %s", d["quote_number"])
		},
		body: func(d map[string]string) string {
			return fmt.Sprintf(`<p>Hello %s,</p>
        <p>Your signature is requested on quote <strong>%s</strong> for <strong>%s</strong>.</p>
        <p><strong>Scope:</strong> %s</p>
        <p style="text-align:center"><a class="button" href="%s">Review &amp; Sign</a></p>
        <p>This signing link is personal, can be used once, and expires 30 days from today.</p>`,
				d["signer_name"], d["quote_number"], d["client_name"], d["description"], d["sign_url"])
		},
	},
	"manager_signed": {
		subject: func(d map[string]string) string {
			return fmt.Sprintf("Quote %s approved internally", d["quote_number"])
		},
		body: func(d map[string]string) string {
			return fmt.Sprintf(`<p>Quote <strong>%s</strong> for <strong>%s</strong> has been approved by %s.</p>
        <p>It is now ready to be sent to the client for counter-signature.</p>`,
				d["quote_number"], d["client_name"], d["signer_name"])
		},
	},
	"order_won": {
		subject: func(d map[string]string) string {
			return fmt.Sprintf("Order won: %s (%s)", d["quote_number"], d["client_name"])
		},
		body: func(d map[string]string) string {
			return fmt.Sprintf(`<p><strong>%s</strong> has accepted quote <strong>%s</strong>.</p>
        <div class="ref-box">%s</div>
        <p><strong>Value:</strong> %s<br>
        <strong>Scope:</strong> %s</p>
        <p>Create the job from the workflow board to put it into production.</p>`,
				d["client_name"], d["quote_number"], d["quote_number"], d["total_value"], d["description"])
		},
	},
	"fully_signed": {
		subject: func(d map[string]string) string {
			return fmt.Sprintf("Quote %s fully signed", d["quote_number"])
		},
		body: func(d map[string]string) string {
			return fmt.Sprintf(`<p>Both signatures are now on file for quote <strong>%s</strong> (%s).</p>
        <p>The signed record has been archived in the signature register.</p>`,
				d["quote_number"], d["client_name"])
		},
	},
	"job_created": {
		subject: func(d map[string]string) string {
			return fmt.Sprintf("Job %s created", d["job_number"])
		},
		body: func(d map[string]string) string {
			return fmt.Sprintf(`<p>A new job has been opened for <strong>%s</strong>.</p>
        <div class="ref-box">%s</div>
        <p><strong>Scope:</strong> %s</p>`,
				d["client_name"], d["job_number"], d["description"])
		},
	},
	"invoice_created": {
		subject: func(d map[string]string) string {
			return fmt.Sprintf("Invoice %s raised for job %s", d["invoice_number"], d["job_number"])
		},
		body: func(d map[string]string) string {
			return fmt.Sprintf(`<p>Invoice <strong>%s</strong> has been raised against job <strong>%s</strong> for <strong>%s</strong>.</p>
        <div class="ref-box">%s</div>`,
				d["invoice_number"], d["job_number"], d["client_name"], d["invoice_number"])
		},
	},
}

// Notify renders the named template and sends it to every recipient. Unknown
// template names are an error so a typo surfaces in logs instead of silence.
func (e *EmailService) Notify(ctx context.Context, to []string, template string, data map[string]string) error {
	tpl, ok := emailTemplates[template]
	if !ok {
		return fmt.Errorf("unknown email template %q", template)
	}

	subject := tpl.subject(data)
	body := e.wrapHTML(subject, tpl.body(data))

	for _, recipient := range to {
		if err := e.sendEmail(ctx, recipient, subject, body); err != nil {
			return err
		}
	}
	return nil
}

// sendEmail sends an email via AWS SESv2 using the instance role
func (e *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody string) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(e.fromEmail),
		Destination:      &sestypes.Destination{ToAddresses: []string{toEmail}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body:    &sestypes.Body{Html: &sestypes.Content{Data: aws.String(htmlBody)}},
			},
		},
	}
	if _, err := e.sesClient.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// wrapHTML wraps a body fragment in the shared workshop email chrome
func (e *EmailService) wrapHTML(title, body string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
            background-color: #f5f5f5;
        }
        .container {
            background-color: white;
            border-radius: 8px;
            padding: 40px;
            box-shadow: 0 2px 10px rgba(0,0,0,0.1);
        }
        .header {
            text-align: center;
            margin-bottom: 30px;
        }
        .logo {
            font-size: 28px;
            font-weight: bold;
            color: #1976d2;
            margin-bottom: 10px;
        }
        .subtitle {
            color: #666;
            font-size: 16px;
        }
        .ref-box {
            background-color: #f8f9fa;
            border: 2px dashed #1976d2;
            border-radius: 8px;
            padding: 20px;
            text-align: center;
            margin: 30px 0;
            font-size: 24px;
            font-weight: bold;
            color: #1976d2;
            letter-spacing: 2px;
            font-family: 'Courier New', monospace;
        }
        .button {
            display: inline-block;
            background: #1976d2;
            color: white;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 6px;
            font-weight: bold;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            padding-top: 20px;
            border-top: 1px solid #eee;
            color: #666;
            font-size: 14px;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <div class="logo">ERHA Workshop</div>
            <div class="subtitle">Fabrication Workflow</div>
        </div>

        %s

        <div class="footer">
            <p><strong>ERHA Workshop Operations</strong><br>
            This is an automated workflow message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>`, title, body)
}
