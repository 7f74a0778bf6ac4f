// internal/notify/notifier.go
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"examflow-workers/internal/common/logger"
	"examflow-workers/internal/registry"
)

type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type SMSSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// Notifier tells candidates their score has been published. Both channels are
// best effort: a bounced email never unwinds a published result.
type Notifier struct {
	email        EmailSender
	sms          SMSSender
	fromEmail    string
	emailEnabled bool
	smsEnabled   bool
	logger       logger.Logger
}

func NewNotifier(email EmailSender, sms SMSSender, fromEmail string, emailEnabled, smsEnabled bool, log logger.Logger) *Notifier {
	return &Notifier{
		email:        email,
		sms:          sms,
		fromEmail:    fromEmail,
		emailEnabled: emailEnabled,
		smsEnabled:   smsEnabled,
		logger:       log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

// ResultPublished notifies the candidate on every enabled channel. Errors are
// logged per channel; the method itself never fails.
func (n *Notifier) ResultPublished(ctx context.Context, candidate *registry.CandidateRecord, result *registry.FinalResultRecord) {
	if n.emailEnabled && candidate.Email != "" {
		if err := n.sendEmail(ctx, candidate, result); err != nil {
			n.logger.Warn("result email failed", map[string]interface{}{
				"registrationNumber": candidate.RegistrationNumber,
				"error":              err.Error(),
			})
		}
	}
	if n.smsEnabled && candidate.Phone != "" {
		if err := n.sendSMS(ctx, candidate, result); err != nil {
			n.logger.Warn("result sms failed", map[string]interface{}{
				"registrationNumber": candidate.RegistrationNumber,
				"error":              err.Error(),
			})
		}
	}
}

func (n *Notifier) sendEmail(ctx context.Context, candidate *registry.CandidateRecord, result *registry.FinalResultRecord) error {
	subject := fmt.Sprintf("Exam result published for %s", candidate.RegistrationNumber)
	body := fmt.Sprintf(
		"Dear %s,\n\nYour exam result is now available.\n\nRegistration number: %s\nScore: %d/%d\nPercentage: %.2f%%\n",
		candidate.Name, candidate.RegistrationNumber, result.Score, result.TotalQuestions, result.Percentage,
	)

	_, err := n.email.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{candidate.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.fromEmail),
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, candidate *registry.CandidateRecord, result *registry.FinalResultRecord) error {
	message := fmt.Sprintf("Result published for %s: score %d/%d (%.2f%%)",
		candidate.RegistrationNumber, result.Score, result.TotalQuestions, result.Percentage)

	_, err := n.sms.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(candidate.Phone),
		Message:     aws.String(message),
	})
	return err
}
