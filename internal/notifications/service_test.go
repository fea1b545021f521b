package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	sent []Email
	err  error
}

func (f *fakeSender) Send(ctx context.Context, email Email) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, email)
	return nil
}

func newTestService(sender *fakeSender, cfg Config) *Service {
	return NewService(&ImmediateStrategy{Sender: sender}, nil, cfg, zap.NewNop())
}

func notice() RequestNotice {
	return RequestNotice{
		Kind:            "Allowance Renewal Request",
		ProjectName:     "fc_smith",
		PeriodName:      "Allowance Year 2026 - 2027",
		RequesterName:   "Ana Smith",
		PIName:          "Ana Smith",
		NumServiceUnits: "25000",
		Recipients:      []string{"asmith@example.edu"},
	}
}

func TestSendRequestApproved(t *testing.T) {
	sender := &fakeSender{}
	svc := newTestService(sender, Config{
		Enabled:     true,
		AdminCCList: []string{"rc-admins@example.edu"},
		Signature:   "Research Computing",
	})

	outcome := svc.SendRequestApproved(context.Background(), notice())
	assert.True(t, outcome.Sent)
	assert.NoError(t, outcome.Err)

	require.Len(t, sender.sent, 1)
	email := sender.sent[0]
	assert.Equal(t, "Allowance Renewal Request Approved", email.Subject)
	assert.Equal(t, []string{"asmith@example.edu"}, email.To)
	assert.Equal(t, []string{"rc-admins@example.edu"}, email.CC)
	assert.Contains(t, email.Body, "fc_smith")
	assert.Contains(t, email.Body, "under Allowance Year 2026 - 2027")
	assert.Contains(t, email.Body, "25000 service units")
	assert.Contains(t, email.Body, "Research Computing")
}

func TestSendRequestDeniedIncludesReason(t *testing.T) {
	sender := &fakeSender{}
	svc := newTestService(sender, Config{Enabled: true})

	outcome := svc.SendRequestDenied(context.Background(), notice(), DenialNotice{
		Category:      "PI Ineligible",
		Justification: "not eligible this period",
	})
	assert.True(t, outcome.Sent)

	require.Len(t, sender.sent, 1)
	email := sender.sent[0]
	assert.Equal(t, "Allowance Renewal Request Denied", email.Subject)
	assert.Contains(t, email.Body, "Category: PI Ineligible")
	assert.Contains(t, email.Body, "Justification: not eligible this period")
}

func TestSendSkippedWhenDisabled(t *testing.T) {
	sender := &fakeSender{}
	svc := newTestService(sender, Config{Enabled: false})

	outcome := svc.SendRequestProcessed(context.Background(), notice())
	assert.False(t, outcome.Sent)
	assert.NoError(t, outcome.Err)
	assert.Empty(t, sender.sent)
}

func TestSendReportsDeliveryFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp unreachable")}
	svc := newTestService(sender, Config{Enabled: true})

	outcome := svc.SendRequestProcessed(context.Background(), notice())
	assert.False(t, outcome.Sent)
	assert.ErrorContains(t, outcome.Err, "smtp unreachable")
}

func TestQueueStrategyEnqueues(t *testing.T) {
	queue := make(chan Email, 1)
	strategy := &QueueStrategy{Queue: queue}

	outcome := strategy.ProcessEmail(context.Background(), Email{Subject: "queued"})
	assert.True(t, outcome.Sent)

	email := <-queue
	assert.Equal(t, "queued", email.Subject)
}
