package requests

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"rc-portal/allocation-portal-backend/internal/allowances"
)

// Eligibility is the outcome of an allowance eligibility check. Reason
// is set only when the user is ineligible.
type Eligibility struct {
	Eligible bool
	Reason   string
}

func ineligible(format string, args ...any) Eligibility {
	return Eligibility{Reason: fmt.Sprintf(format, args...)}
}

// IsUserEligibleForAllowance decides whether a user may request the
// given allowance under the given period. The employment restriction
// fails closed: a missing profile counts as ineligible. Renewal checks
// skip the already-a-PI rule, since renewing is how an existing PI
// continues under the next period.
func IsUserEligibleForAllowance(ctx context.Context, store Store,
	userID uuid.UUID, allowance *allowances.ComputingAllowance,
	periodID uuid.UUID, isRenewal bool) (Eligibility, error) {
	if allowance.RequiresInstitutionEmployee {
		profile, err := store.GetProfile(ctx, userID)
		if err != nil || profile == nil || !profile.IsInstitutionEmployee {
			return ineligible(
				"allowance %q is limited to institution employees",
				allowance.Name), nil
		}
	}

	if allowance.OnePerPI && allowance.Periodic {
		hasRenewal, err := store.HasNonDeniedRenewalRequest(
			ctx, userID, allowance.ID, periodID)
		if err != nil {
			return Eligibility{}, err
		}
		if hasRenewal {
			return ineligible(
				"user already has a renewal request for allowance %q under this period",
				allowance.Name), nil
		}
		hasNewProject, err := store.HasNonDeniedNewProjectRequest(
			ctx, userID, allowance.ID, periodID)
		if err != nil {
			return Eligibility{}, err
		}
		if hasNewProject {
			return ineligible(
				"user already has a new project request for allowance %q under this period",
				allowance.Name), nil
		}
		if !isRenewal {
			isPI, err := store.IsActivePIOfAllowanceProject(ctx, userID, allowance.ID)
			if err != nil {
				return Eligibility{}, err
			}
			if isPI {
				return ineligible(
					"user is already a PI of a project with allowance %q",
					allowance.Name), nil
			}
		}
	}

	return Eligibility{Eligible: true}, nil
}
