package outreach

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/pranavmodi/salesbot-sub002/internal/config"
	"github.com/pranavmodi/salesbot-sub002/internal/crm"
	"github.com/pranavmodi/salesbot-sub002/internal/pkg/logger"
	"github.com/pranavmodi/salesbot-sub002/internal/tracking"
)

// SESAPI is the slice of the SES v2 client the sender uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Sender delivers outreach emails through AWS SES, injects open/click
// tracking, and records every attempt in email_history.
type Sender struct {
	cfg     config.EmailConfig
	client  SESAPI
	history *HistoryStore
}

// NewSender creates an SES-backed sender. Initializes the AWS SDK client
// if credentials are provided; otherwise sends fail until configured.
func NewSender(cfg config.EmailConfig, history *HistoryStore) *Sender {
	s := &Sender{cfg: cfg, history: history}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		)
		if err != nil {
			logger.Warn("SES config init failed", "error", err)
		} else {
			s.client = sesv2.NewFromConfig(awsCfg)
		}
	}
	return s
}

// NewSenderWithClient wires a custom SES client (used by tests).
func NewSenderWithClient(cfg config.EmailConfig, client SESAPI, history *HistoryStore) *Sender {
	return &Sender{cfg: cfg, client: client, history: history}
}

// SendRequest describes one outreach email.
type SendRequest struct {
	Contact    *crm.Contact
	CampaignID int64
	Subject    string
	HTMLBody   string
}

// Send records the attempt, injects tracking, and delivers via SES.
// The returned record always reflects the final status.
func (s *Sender) Send(ctx context.Context, req SendRequest) (*EmailRecord, error) {
	if req.Contact == nil {
		return nil, fmt.Errorf("outreach: contact is required")
	}

	// Record first so the send gets an email_history id the tracking
	// token can reference.
	rec := &EmailRecord{
		TenantID: req.Contact.TenantID,
		ToEmail:  req.Contact.Email,
		Subject:  req.Subject,
		Body:     req.HTMLBody,
		Status:   EmailSent,
	}
	if req.CampaignID > 0 {
		rec.CampaignID = &req.CampaignID
	}
	if req.Contact.ID > 0 {
		rec.ContactID = &req.Contact.ID
	}
	if err := s.history.Record(ctx, rec); err != nil {
		return nil, fmt.Errorf("record email history: %w", err)
	}

	if s.client == nil {
		reason := "SES client not initialized - check credentials"
		s.fail(ctx, rec, reason)
		return rec, fmt.Errorf("outreach: %s", reason)
	}

	body := req.HTMLBody
	if s.cfg.TrackingBaseURL != "" && s.cfg.TrackingSecret != "" {
		tok := tracking.Token{
			TenantID:   req.Contact.TenantID,
			CampaignID: req.CampaignID,
			ContactID:  req.Contact.ID,
			EmailID:    rec.ID,
		}
		body = tracking.InjectTracking(body, s.cfg.TrackingBaseURL, s.cfg.TrackingSecret, tok)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromAddress)),
		Destination:      &types.Destination{ToAddresses: []string{req.Contact.Email}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(req.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("tenant_id"), Value: aws.String(req.Contact.TenantID.String())},
			{Name: aws.String("campaign_id"), Value: aws.String(fmt.Sprintf("%d", req.CampaignID))},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.fail(ctx, rec, err.Error())
		logger.Error("send failed", "to_email", req.Contact.Email, "error", err)
		return rec, err
	}

	if result.MessageId != nil {
		rec.ProviderMessageID = *result.MessageId
		if err := s.history.SetProviderMessageID(ctx, rec.TenantID, rec.ID, rec.ProviderMessageID); err != nil {
			logger.Warn("store provider message id failed", "error", err)
		}
	}
	logger.Info("sent", "to_email", req.Contact.Email, "message_id", rec.ProviderMessageID)
	return rec, nil
}

func (s *Sender) fail(ctx context.Context, rec *EmailRecord, reason string) {
	rec.Status = EmailFailed
	rec.Error = reason
	if err := s.history.MarkFailed(ctx, rec.TenantID, rec.ID, reason); err != nil {
		logger.Error("mark email failed errored", "error", err)
	}
}
