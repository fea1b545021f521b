package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// Email is one outbound message.
type Email struct {
	To      []string
	CC      []string
	Subject string
	Body    string
}

// EmailSender delivers a single email. Implementations must not retry;
// the caller decides what a failure means.
type EmailSender interface {
	Send(ctx context.Context, email Email) error
}

// SESSender delivers email through Amazon SES.
type SESSender struct {
	client *sesv2.Client
	from   string
}

// NewSESSender loads the default AWS configuration and returns a
// sender using the given from address.
func NewSESSender(ctx context.Context, from string) (*SESSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &SESSender{client: sesv2.NewFromConfig(cfg), from: from}, nil
}

func (s *SESSender) Send(ctx context.Context, email Email) error {
	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &s.from,
		Destination: &types.Destination{
			ToAddresses: email.To,
			CcAddresses: email.CC,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &email.Subject},
				Body: &types.Body{
					Text: &types.Content{Data: &email.Body},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send email via SES: %w", err)
	}
	return nil
}

// SMTPConfig configures the SMTP sender.
type SMTPConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	FromAddress string `json:"from_address"`
}

// SMTPSender delivers email through a plain SMTP relay.
type SMTPSender struct {
	config SMTPConfig
}

func NewSMTPSender(config SMTPConfig) *SMTPSender {
	return &SMTPSender{config: config}
}

func (s *SMTPSender) Send(ctx context.Context, email Email) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", s.config.FromAddress))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(email.To, ", ")))
	if len(email.CC) > 0 {
		msg.WriteString(fmt.Sprintf("Cc: %s\r\n", strings.Join(email.CC, ", ")))
	}
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	msg.WriteString("\r\n")
	msg.WriteString(email.Body)

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}
	recipients := append(append([]string{}, email.To...), email.CC...)
	if err := smtp.SendMail(addr, auth, s.config.FromAddress, recipients, []byte(msg.String())); err != nil {
		return fmt.Errorf("send email via SMTP: %w", err)
	}
	return nil
}
