package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SmsService sends emergency work-order alerts via AWS SNS.
type SmsService struct {
	client   *sns.Client
	onCall   []string
	disabled bool
}

// NewSmsService creates a new SMS service client. ONCALL_PHONE_NUMBERS is a
// comma-separated list of E.164 numbers (e.g., +12065550100); when empty,
// emergency alerts are logged but not sent.
func NewSmsService(cfg aws.Config) *SmsService {
	var onCall []string
	for _, n := range strings.Split(os.Getenv("ONCALL_PHONE_NUMBERS"), ",") {
		if n = strings.TrimSpace(n); n != "" {
			onCall = append(onCall, n)
		}
	}
	return &SmsService{
		client:   sns.NewFromConfig(cfg),
		onCall:   onCall,
		disabled: len(onCall) == 0,
	}
}

// AlertEmergencyJob pushes an SMS to every on-call number when an emergency
// job is opened outside the normal intake path.
func (s *SmsService) AlertEmergencyJob(ctx context.Context, jobNumber, clientName, description string) error {
	message := fmt.Sprintf("EMERGENCY JOB %s opened for %s: %s", jobNumber, clientName, description)
	if s.disabled {
		log.Printf("[SMS] No on-call numbers configured, skipping alert for %s", jobNumber)
		return nil
	}

	// Alerts are transactional: they must not be throttled as promotional traffic.
	messageAttributes := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}

	var lastErr error
	for _, phoneNumber := range s.onCall {
		input := &sns.PublishInput{
			Message:           aws.String(message),
			PhoneNumber:       aws.String(phoneNumber),
			MessageAttributes: messageAttributes,
		}
		result, err := s.client.Publish(ctx, input)
		if err != nil {
			log.Printf("[SMS] Failed to send emergency alert to %s: %v", phoneNumber, err)
			lastErr = err
			continue
		}
		log.Printf("[SMS] Emergency alert sent for %s. Message ID: %s", jobNumber, *result.MessageId)
	}
	return lastErr
}
