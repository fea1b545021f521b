package notifications

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"go.uber.org/zap"

	"rc-portal/allocation-portal-backend/internal/notifications/websocket"
)

// Strategy decides whether an email is sent immediately or enqueued for
// later delivery. The request life-cycle engine never talks to SMTP or
// SES directly; it hands messages to a strategy.
type Strategy interface {
	ProcessEmail(ctx context.Context, email Email) Outcome
}

// ImmediateStrategy sends through the wrapped sender right away.
type ImmediateStrategy struct {
	Sender EmailSender
}

func (s *ImmediateStrategy) ProcessEmail(ctx context.Context, email Email) Outcome {
	if err := s.Sender.Send(ctx, email); err != nil {
		return FailedOutcome(err)
	}
	return SentOutcome()
}

// QueueStrategy enqueues messages onto a buffered channel drained by a
// background worker. Enqueueing counts as sent; delivery failures are
// logged by the worker.
type QueueStrategy struct {
	Queue chan Email
}

func (s *QueueStrategy) ProcessEmail(ctx context.Context, email Email) Outcome {
	select {
	case s.Queue <- email:
		return SentOutcome()
	case <-ctx.Done():
		return FailedOutcome(ctx.Err())
	}
}

// RequestNotice carries the display fields of a request life-cycle
// event.
type RequestNotice struct {
	Kind            string // e.g. "Allowance Renewal Request"
	ProjectName     string
	PeriodName      string
	RequesterName   string
	PIName          string
	NumServiceUnits string
	Recipients      []string
}

// DenialNotice carries the reason shown in a denial email.
type DenialNotice struct {
	Category      string
	Justification string
}

// Config contains notification service configuration.
type Config struct {
	Enabled     bool     `json:"enabled"`
	AdminCCList []string `json:"admin_cc_list"`
	Signature   string   `json:"signature"`
}

// Service composes and dispatches request life-cycle notifications. It
// returns Outcomes instead of errors: a delivery fault must never block
// the transition that triggered it.
type Service struct {
	strategy Strategy
	ws       *websocket.Manager
	config   Config
	logger   *zap.Logger
}

func NewService(strategy Strategy, ws *websocket.Manager, config Config, logger *zap.Logger) *Service {
	return &Service{strategy: strategy, ws: ws, config: config, logger: logger}
}

var approvedTemplate = template.Must(template.New("approved").Parse(
	`Dear user,

Your {{.Kind}} for project {{.ProjectName}}{{if .PeriodName}} under {{.PeriodName}}{{end}} has been approved.
{{if .NumServiceUnits}}Upon processing, the project will receive {{.NumServiceUnits}} service units.{{end}}

{{.Signature}}
`))

var deniedTemplate = template.Must(template.New("denied").Parse(
	`Dear user,

Your {{.Kind}} for project {{.ProjectName}} has been denied.

Category: {{.Category}}
Justification: {{.Justification}}

{{.Signature}}
`))

var processedTemplate = template.Must(template.New("processed").Parse(
	`Dear user,

Your {{.Kind}} for project {{.ProjectName}} has been processed.
{{if .NumServiceUnits}}The project has received {{.NumServiceUnits}} service units.{{end}}

{{.Signature}}
`))

// SendRequestApproved notifies the requester and PI of an approval.
func (s *Service) SendRequestApproved(ctx context.Context, n RequestNotice) Outcome {
	subject := fmt.Sprintf("%s Approved", n.Kind)
	return s.send(ctx, n, subject, approvedTemplate, map[string]string{
		"Kind":            n.Kind,
		"ProjectName":     n.ProjectName,
		"PeriodName":      n.PeriodName,
		"NumServiceUnits": n.NumServiceUnits,
		"Signature":       s.config.Signature,
	})
}

// SendRequestDenied notifies the requester and PI of a denial.
func (s *Service) SendRequestDenied(ctx context.Context, n RequestNotice, reason DenialNotice) Outcome {
	subject := fmt.Sprintf("%s Denied", n.Kind)
	return s.send(ctx, n, subject, deniedTemplate, map[string]string{
		"Kind":          n.Kind,
		"ProjectName":   n.ProjectName,
		"Category":      reason.Category,
		"Justification": reason.Justification,
		"Signature":     s.config.Signature,
	})
}

// SendRequestProcessed notifies the requester and PI that processing
// has completed.
func (s *Service) SendRequestProcessed(ctx context.Context, n RequestNotice) Outcome {
	subject := fmt.Sprintf("%s Processed", n.Kind)
	return s.send(ctx, n, subject, processedTemplate, map[string]string{
		"Kind":            n.Kind,
		"ProjectName":     n.ProjectName,
		"NumServiceUnits": n.NumServiceUnits,
		"Signature":       s.config.Signature,
	})
}

func (s *Service) send(ctx context.Context, n RequestNotice, subject string, tmpl *template.Template, data map[string]string) Outcome {
	if s.ws != nil {
		s.ws.Broadcast(websocket.Event{
			Type:    "request_update",
			Subject: subject,
			Detail:  n.ProjectName,
		})
	}

	if !s.config.Enabled {
		return SkippedOutcome()
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return FailedOutcome(fmt.Errorf("render notification email: %w", err))
	}
	outcome := s.strategy.ProcessEmail(ctx, Email{
		To:      n.Recipients,
		CC:      s.config.AdminCCList,
		Subject: subject,
		Body:    body.String(),
	})
	if outcome.Err != nil {
		s.logger.Error("Failed to send notification email",
			zap.String("subject", subject),
			zap.Error(outcome.Err))
	}
	return outcome
}
