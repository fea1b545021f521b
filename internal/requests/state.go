package requests

// The per-request review state is persisted as a JSON document whose
// key names and nesting are consumed by display templates and export
// tooling. The types here serialize to exactly that layout; everything
// above the storage boundary works with the typed structs.

// Step statuses.
const (
	StepPending  = "Pending"
	StepApproved = "Approved"
	StepDenied   = "Denied"
	StepComplete = "Complete"
)

// Denial reason categories.
const (
	ReasonOther        = "Other"
	ReasonPIIneligible = "PI Ineligible"
	ReasonNotReady     = "Readiness Criteria Unsatisfied"
	ReasonRDM          = "RDM Consultation"
	ReasonMOU          = "Memorandum of Understanding"
	ReasonClusterSetup = "Cluster Setup"
)

// ReviewStep is one independently reviewed sub-step of a request.
type ReviewStep struct {
	Status        string `json:"status"`
	Justification string `json:"justification"`
	Timestamp     string `json:"timestamp"`
}

// OtherStep records a denial for a reason not covered by the named
// steps. A non-empty timestamp marks the request as denied regardless
// of the named steps.
type OtherStep struct {
	Justification string `json:"justification"`
	Timestamp     string `json:"timestamp"`
}

// AcknowledgeStep is a step with no justification, such as notifying
// the requester or recording a signed memorandum.
type AcknowledgeStep struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NameChange records the requested and final project names decided
// during setup.
type NameChange struct {
	RequestedName string `json:"requested_name"`
	FinalName     string `json:"final_name"`
	Justification string `json:"justification"`
}

// SetupStep is the project-setup step of a new-project request.
type SetupStep struct {
	Status     string     `json:"status"`
	NameChange NameChange `json:"name_change"`
	Timestamp  string     `json:"timestamp"`
}

func pendingReviewStep() ReviewStep {
	return ReviewStep{Status: StepPending}
}

// DenialReason is the single category explaining why a request was
// denied, with the justification and timestamp of the deciding step.
type DenialReason struct {
	Category      string `json:"category"`
	Justification string `json:"justification"`
	Timestamp     string `json:"timestamp"`
}

// Derived is the portion of the overall status that is computable from
// the review state alone. Approved and Complete are terminal facts set
// by runners, never derived.
type Derived int

const (
	// DerivedDenied means a step or a linked request was denied.
	DerivedDenied Derived = iota
	// DerivedUnderReview means at least one gating step is pending.
	DerivedUnderReview
	// DerivedReadyToAdvance means every gating step has been approved
	// or completed; the executing runner decides Approved vs Complete.
	DerivedReadyToAdvance
)

func (d Derived) String() string {
	switch d {
	case DerivedDenied:
		return "Denied"
	case DerivedUnderReview:
		return "Under Review"
	case DerivedReadyToAdvance:
		return "Ready to Advance"
	}
	return "Unknown"
}

// maxTimestamp relies on all timestamps sharing the RFC 3339 UTC
// format, for which lexicographic comparison matches chronological
// order.
func maxTimestamp(values ...string) string {
	max := ""
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return max
}

// RenewalState is the review state of an allowance renewal request.
type RenewalState struct {
	Eligibility ReviewStep `json:"eligibility"`
	Other       OtherStep  `json:"other"`
}

// NewRenewalState returns the schema with all steps pending.
func NewRenewalState() RenewalState {
	return RenewalState{Eligibility: pendingReviewStep()}
}

// Derive computes the derivable portion of the overall status.
// linkedDenied reports whether an associated new-project request
// exists and was denied.
func (s *RenewalState) Derive(linkedDenied bool) Derived {
	if s.Other.Timestamp != "" {
		return DerivedDenied
	}
	if linkedDenied {
		return DerivedDenied
	}
	if s.Eligibility.Status == StepDenied {
		return DerivedDenied
	}
	if s.Eligibility.Status == StepPending {
		return DerivedUnderReview
	}
	return DerivedReadyToAdvance
}

// DenialReason returns the reason the request was denied. When the
// denial came from an associated new-project request, the reason is
// inherited from it. The first matching category wins.
func (s *RenewalState) DenialReason(linked *DenialReason) (*DenialReason, error) {
	if s.Other.Timestamp != "" {
		return &DenialReason{
			Category:      ReasonOther,
			Justification: s.Other.Justification,
			Timestamp:     s.Other.Timestamp,
		}, nil
	}
	if s.Eligibility.Status == StepDenied {
		return &DenialReason{
			Category:      ReasonPIIneligible,
			Justification: s.Eligibility.Justification,
			Timestamp:     s.Eligibility.Timestamp,
		}, nil
	}
	if linked != nil {
		return linked, nil
	}
	return nil, &InvariantViolationError{
		Message: "renewal request state matches no denial pattern",
	}
}

// LatestUpdateTimestamp returns the maximum populated timestamp across
// all steps, or the empty string. Used for display ordering only.
func (s *RenewalState) LatestUpdateTimestamp() string {
	return maxTimestamp(s.Eligibility.Timestamp, s.Other.Timestamp)
}

// NewProjectState is the review state of a new-project allocation
// request. Notified and MemorandumSigned are present only for
// allowances that require a signed memorandum of understanding.
type NewProjectState struct {
	Eligibility      ReviewStep       `json:"eligibility"`
	Readiness        ReviewStep       `json:"readiness"`
	Setup            SetupStep        `json:"setup"`
	Other            OtherStep        `json:"other"`
	Notified         *AcknowledgeStep `json:"notified,omitempty"`
	MemorandumSigned *AcknowledgeStep `json:"memorandum_signed,omitempty"`
}

// NewNewProjectState returns the schema with all steps pending.
// requiresMOU adds the notified and memorandum_signed steps.
func NewNewProjectState(requiresMOU bool) NewProjectState {
	s := NewProjectState{
		Eligibility: pendingReviewStep(),
		Readiness:   pendingReviewStep(),
		Setup:       SetupStep{Status: StepPending},
	}
	if requiresMOU {
		s.Notified = &AcknowledgeStep{Status: StepPending}
		s.MemorandumSigned = &AcknowledgeStep{Status: StepPending}
	}
	return s
}

// Derive computes the derivable portion of the overall status. The
// setup step is excluded: it is only completed during processing, after
// the request has already advanced.
func (s *NewProjectState) Derive() Derived {
	if s.Other.Timestamp != "" {
		return DerivedDenied
	}
	if s.Eligibility.Status == StepDenied || s.Readiness.Status == StepDenied {
		return DerivedDenied
	}
	memorandumPending := s.MemorandumSigned != nil &&
		s.MemorandumSigned.Status == StepPending
	if s.Eligibility.Status == StepPending ||
		s.Readiness.Status == StepPending ||
		memorandumPending {
		return DerivedUnderReview
	}
	return DerivedReadyToAdvance
}

// DenialReason returns the reason the request was denied.
func (s *NewProjectState) DenialReason() (*DenialReason, error) {
	if s.Other.Timestamp != "" {
		return &DenialReason{
			Category:      ReasonOther,
			Justification: s.Other.Justification,
			Timestamp:     s.Other.Timestamp,
		}, nil
	}
	if s.Eligibility.Status == StepDenied {
		return &DenialReason{
			Category:      ReasonPIIneligible,
			Justification: s.Eligibility.Justification,
			Timestamp:     s.Eligibility.Timestamp,
		}, nil
	}
	if s.Readiness.Status == StepDenied {
		return &DenialReason{
			Category:      ReasonNotReady,
			Justification: s.Readiness.Justification,
			Timestamp:     s.Readiness.Timestamp,
		}, nil
	}
	return nil, &InvariantViolationError{
		Message: "new-project request state matches no denial pattern",
	}
}

// LatestUpdateTimestamp returns the maximum populated timestamp across
// all steps, or the empty string.
func (s *NewProjectState) LatestUpdateTimestamp() string {
	values := []string{
		s.Eligibility.Timestamp,
		s.Readiness.Timestamp,
		s.Setup.Timestamp,
		s.Other.Timestamp,
	}
	if s.Notified != nil {
		values = append(values, s.Notified.Timestamp)
	}
	if s.MemorandumSigned != nil {
		values = append(values, s.MemorandumSigned.Timestamp)
	}
	return maxTimestamp(values...)
}

// SecureDirState is the review state of a secure-directory request.
type SecureDirState struct {
	RDMConsultation ReviewStep      `json:"rdm_consultation"`
	Notified        AcknowledgeStep `json:"notified"`
	MOU             ReviewStep      `json:"mou"`
	Setup           ReviewStep      `json:"setup"`
	Other           OtherStep       `json:"other"`
}

// NewSecureDirState returns the schema with all steps pending.
func NewSecureDirState() SecureDirState {
	return SecureDirState{
		RDMConsultation: pendingReviewStep(),
		Notified:        AcknowledgeStep{Status: StepPending},
		MOU:             pendingReviewStep(),
		Setup:           ReviewStep{Status: StepPending},
	}
}

// Derive computes the derivable portion of the overall status. The
// setup step gates completion, not approval, so it is excluded from the
// pending check.
func (s *SecureDirState) Derive() Derived {
	if s.Other.Timestamp != "" {
		return DerivedDenied
	}
	if s.RDMConsultation.Status == StepDenied || s.MOU.Status == StepDenied {
		return DerivedDenied
	}
	if s.RDMConsultation.Status == StepPending || s.MOU.Status == StepPending {
		return DerivedUnderReview
	}
	return DerivedReadyToAdvance
}

// DenialReason returns the reason the request was denied. Unlike the
// renewal and new-project variants, the catch-all category is checked
// last here.
func (s *SecureDirState) DenialReason() (*DenialReason, error) {
	if s.RDMConsultation.Status == StepDenied {
		return &DenialReason{
			Category:      ReasonRDM,
			Justification: s.RDMConsultation.Justification,
			Timestamp:     s.RDMConsultation.Timestamp,
		}, nil
	}
	if s.MOU.Status == StepDenied {
		return &DenialReason{
			Category:      ReasonMOU,
			Justification: s.MOU.Justification,
			Timestamp:     s.MOU.Timestamp,
		}, nil
	}
	if s.Setup.Status == StepDenied {
		return &DenialReason{
			Category:      ReasonClusterSetup,
			Justification: s.Setup.Justification,
			Timestamp:     s.Setup.Timestamp,
		}, nil
	}
	if s.Other.Timestamp != "" {
		return &DenialReason{
			Category:      ReasonOther,
			Justification: s.Other.Justification,
			Timestamp:     s.Other.Timestamp,
		}, nil
	}
	return nil, &InvariantViolationError{
		Message: "secure-directory request state matches no denial pattern",
	}
}

// LatestUpdateTimestamp returns the maximum populated timestamp across
// all steps, or the empty string.
func (s *SecureDirState) LatestUpdateTimestamp() string {
	return maxTimestamp(
		s.RDMConsultation.Timestamp,
		s.Notified.Timestamp,
		s.MOU.Timestamp,
		s.Setup.Timestamp,
		s.Other.Timestamp,
	)
}
