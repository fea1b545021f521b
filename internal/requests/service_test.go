package requests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rc-portal/allocation-portal-backend/internal/projects"
)

func TestSubmitRenewalCreatesLinkedNewProjectRequest(t *testing.T) {
	f := newFixture(t)
	service := NewService(f.deps)
	oldProject := f.addProject("fc_pooled", projects.StatusActive)

	req, err := service.SubmitRenewal(context.Background(), SubmitRenewalInput{
		RequesterID:        f.requester.ID,
		PIID:               f.pi.ID,
		AllowanceID:        f.allowance.ID,
		AllocationPeriodID: f.period.ID,
		PreProjectID:       &oldProject.ID,
		NewProjectName:     "fc_breakaway",
		NewProjectTitle:    "Breakaway Lab",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusUnderReview, req.Status)
	require.NotNil(t, req.NewProjectRequestID)

	npr, err := f.store.GetNewProjectRequest(context.Background(), *req.NewProjectRequestID)
	require.NoError(t, err)
	assert.Equal(t, req.PostProjectID, npr.ProjectID)

	project, err := f.store.GetProject(context.Background(), req.PostProjectID)
	require.NoError(t, err)
	assert.Equal(t, "fc_breakaway", project.Name)
	assert.Equal(t, projects.StatusNew, project.Status)

	state, err := npr.NewProjectState()
	require.NoError(t, err)
	assert.Equal(t, "fc_breakaway", state.Setup.NameChange.RequestedName)
}

func TestSubmitRenewalRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	service := NewService(f.deps)
	project := f.addProject("fc_smith", projects.StatusActive)
	f.addRenewal(t, &project.ID, project.ID)

	_, err := service.SubmitRenewal(context.Background(), SubmitRenewalInput{
		RequesterID:        f.requester.ID,
		PIID:               f.pi.ID,
		AllowanceID:        f.allowance.ID,
		AllocationPeriodID: f.period.ID,
		PreProjectID:       &project.ID,
		PostProjectID:      &project.ID,
	})
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
	assert.Contains(t, err.Error(), "already has a renewal request")
}

func TestSubmitRenewalRequiresSomeProject(t *testing.T) {
	f := newFixture(t)
	service := NewService(f.deps)

	_, err := service.SubmitRenewal(context.Background(), SubmitRenewalInput{
		RequesterID:        f.requester.ID,
		PIID:               f.pi.ID,
		AllowanceID:        f.allowance.ID,
		AllocationPeriodID: f.period.ID,
	})
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
}

func TestSubmitNewProjectRejectsExistingPI(t *testing.T) {
	f := newFixture(t)
	service := NewService(f.deps)
	project := f.addProject("fc_smith", projects.StatusActive)
	f.addPI(project, f.pi)

	_, err := service.SubmitNewProject(context.Background(), SubmitNewProjectInput{
		RequesterID:        f.requester.ID,
		PIID:               f.pi.ID,
		AllowanceID:        f.allowance.ID,
		AllocationPeriodID: f.period.ID,
		Name:               "fc_second",
		Title:              "Second Lab",
	})
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
	assert.Contains(t, err.Error(), "already a PI")
}

func TestUpdateRenewalStepDenialTriggersTransition(t *testing.T) {
	f := newFixture(t)
	service := NewService(f.deps)
	project := f.addProject("fc_smith", projects.StatusActive)
	req := f.addRenewal(t, &project.ID, project.ID)

	updated, err := service.UpdateRenewalStep(context.Background(), req.ID, StepUpdate{
		Step:          "eligibility",
		Status:        StepDenied,
		Justification: "no longer faculty",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusDenied, updated.Status)
	stored, err := f.store.GetRenewalRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDenied, stored.Status)
	require.Len(t, f.notifier.reasons, 1)
	assert.Equal(t, ReasonPIIneligible, f.notifier.reasons[0].Category)
	assert.Equal(t, "no longer faculty", f.notifier.reasons[0].Justification)
}

func TestUpdateRenewalStepApprovalKeepsStatus(t *testing.T) {
	f := newFixture(t)
	service := NewService(f.deps)
	project := f.addProject("fc_smith", projects.StatusActive)
	req := f.addRenewal(t, &project.ID, project.ID)

	updated, err := service.UpdateRenewalStep(context.Background(), req.ID, StepUpdate{
		Step:   "eligibility",
		Status: StepApproved,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusUnderReview, updated.Status)
	state, err := updated.RenewalState()
	require.NoError(t, err)
	assert.Equal(t, StepApproved, state.Eligibility.Status)
	assert.Equal(t, Timestamp(testNow), state.Eligibility.Timestamp)
	assert.Empty(t, f.notifier.denied)
}

func TestUpdateNewProjectStepRejectsAbsentMOUSteps(t *testing.T) {
	f := newFixture(t)
	service := NewService(f.deps)
	project := f.addProject("fc_newlab", projects.StatusNew)
	req := f.addNewProjectRequest(t, project)

	_, err := service.UpdateNewProjectStep(context.Background(), req.ID, StepUpdate{
		Step:   "memorandum_signed",
		Status: StepComplete,
	})
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
}

func TestUpdateNewProjectStepRecordsFinalName(t *testing.T) {
	f := newFixture(t)
	service := NewService(f.deps)
	project := f.addProject("fc_requested", projects.StatusNew)
	req := f.addNewProjectRequest(t, project)

	updated, err := service.UpdateNewProjectStep(context.Background(), req.ID, StepUpdate{
		Step:          "name_change",
		Justification: "fc_final",
	})
	require.NoError(t, err)

	state, err := updated.NewProjectState()
	require.NoError(t, err)
	assert.Equal(t, "fc_requested", state.Setup.NameChange.RequestedName)
	assert.Equal(t, "fc_final", state.Setup.NameChange.FinalName)
	assert.Equal(t, StatusUnderReview, updated.Status)
}

func TestUpdateSecureDirStepDenialTriggersTransition(t *testing.T) {
	f := newFixture(t)
	service := NewService(f.deps)
	project := f.addProject("fc_smith", projects.StatusActive)
	req := f.addSecureDirRequest(t, project)

	updated, err := service.UpdateSecureDirStep(context.Background(), req.ID, StepUpdate{
		Step:          "rdm_consultation",
		Status:        StepDenied,
		Justification: "consultation never scheduled",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusDenied, updated.Status)
	require.Len(t, f.notifier.reasons, 1)
	assert.Equal(t, ReasonRDM, f.notifier.reasons[0].Category)
}

func TestUpdateStepRejectsCompletedRequest(t *testing.T) {
	f := newFixture(t)
	service := NewService(f.deps)
	project := f.addProject("fc_smith", projects.StatusActive)
	req := f.addRenewal(t, &project.ID, project.ID)
	req.Status = StatusComplete
	require.NoError(t, f.store.SaveRenewalRequest(context.Background(), req))

	_, err := service.UpdateRenewalStep(context.Background(), req.ID, StepUpdate{
		Step:   "eligibility",
		Status: StepApproved,
	})
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
}

func TestUpdateStepRejectsUnknownStep(t *testing.T) {
	f := newFixture(t)
	service := NewService(f.deps)
	project := f.addProject("fc_smith", projects.StatusActive)
	req := f.addRenewal(t, &project.ID, project.ID)

	_, err := service.UpdateRenewalStep(context.Background(), req.ID, StepUpdate{
		Step:   "readiness",
		Status: StepApproved,
	})
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
	assert.Contains(t, err.Error(), `unknown renewal review step "readiness"`)
}
