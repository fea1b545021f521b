package requests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rc-portal/allocation-portal-backend/internal/projects"
)

func (f *fixture) addSecureDirRequest(t *testing.T, project *projects.Project) *SecureDirRequest {
	t.Helper()
	req, err := NewSecureDirRequest(f.requester.ID, project.ID,
		"pl1_smith", "Public Health", "De-identified patient records", testNow)
	require.NoError(t, err)
	require.NoError(t, f.store.SaveSecureDirRequest(context.Background(), req))
	return req
}

func TestSecureDirRequestLifecycle(t *testing.T) {
	f := newFixture(t)
	project := f.addProject("fc_smith", projects.StatusActive)
	req := f.addSecureDirRequest(t, project)

	approval, err := NewSecureDirApprovalRunner(f.deps, req)
	require.NoError(t, err)
	outcome, err := approval.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, req.Status)
	assert.True(t, outcome.Notification.Sent)
	require.Len(t, f.notifier.approved, 1)
	assert.Equal(t, KindSecureDir, f.notifier.approved[0].Kind)

	processing, err := NewSecureDirProcessingRunner(f.deps, req)
	require.NoError(t, err)
	outcome, err = processing.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, req.Status)
	require.NotNil(t, req.CompletionTime)
	assert.Contains(t, outcome.SuccessMessages[0], "pl1_smith")

	state, err := req.SecureDirState()
	require.NoError(t, err)
	assert.Equal(t, StepComplete, state.Setup.Status)
	require.Len(t, f.notifier.processed, 1)
}

func TestSecureDirDenialReportsReason(t *testing.T) {
	f := newFixture(t)
	project := f.addProject("fc_smith", projects.StatusActive)
	req := f.addSecureDirRequest(t, project)

	state, err := req.SecureDirState()
	require.NoError(t, err)
	state.MOU = ReviewStep{
		Status:        StepDenied,
		Justification: "unsigned agreement",
		Timestamp:     Timestamp(testNow),
	}
	require.NoError(t, req.SetSecureDirState(state))
	require.NoError(t, f.store.SaveSecureDirRequest(context.Background(), req))

	runner, err := NewSecureDirDenialRunner(f.deps, req)
	require.NoError(t, err)
	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusDenied, req.Status)
	require.Len(t, f.notifier.reasons, 1)
	assert.Equal(t, ReasonMOU, f.notifier.reasons[0].Category)
	assert.Equal(t, "unsigned agreement", f.notifier.reasons[0].Justification)
}

func TestCompletedSecureDirRejectsEveryRunner(t *testing.T) {
	f := newFixture(t)
	project := f.addProject("fc_smith", projects.StatusActive)
	req := f.addSecureDirRequest(t, project)
	req.Status = StatusComplete
	require.NoError(t, f.store.SaveSecureDirRequest(context.Background(), req))

	_, err := NewSecureDirApprovalRunner(f.deps, req)
	assert.True(t, IsPrecondition(err))

	_, err = NewSecureDirDenialRunner(f.deps, req)
	assert.True(t, IsPrecondition(err))

	_, err = NewSecureDirProcessingRunner(f.deps, req)
	assert.True(t, IsPrecondition(err))
}
