package allowances

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ComputingAllowance is a named category of compute grant (e.g. a
// faculty allowance) with its own eligibility and renewal rules.
type ComputingAllowance struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Code        string    `gorm:"not null" json:"code"` // project name prefix, e.g. "fc_"
	OnePerPI    bool      `gorm:"default:false" json:"one_per_pi"`
	Periodic    bool      `gorm:"default:false" json:"periodic"`
	RequiresMOU bool      `gorm:"default:false" json:"requires_mou"`
	// RequiresInstitutionEmployee restricts the allowance to users
	// whose profile marks them as employees of the institution.
	RequiresInstitutionEmployee bool `gorm:"default:false" json:"requires_institution_employee"`
	// ServiceUnits is the quantity granted per period when no explicit
	// amount is supplied at processing time.
	ServiceUnits decimal.Decimal `gorm:"type:numeric(11,2)" json:"service_units"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// AllocationPeriod is an immutable time window (e.g. an allowance year)
// against which requests are filed and processed.
type AllocationPeriod struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null" json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
}

// AllowanceYearPrefix is the naming convention for periods representing
// allowance years, used by the current/next/previous period lookups.
const AllowanceYearPrefix = "Allowance Year"

// Started reports whether the period has started as of the given date.
func (p *AllocationPeriod) Started(date time.Time) bool {
	return !toDate(p.StartDate).After(toDate(date))
}

// Ended reports whether the period has ended as of the given date.
func (p *AllocationPeriod) Ended(date time.Time) bool {
	return toDate(p.EndDate).Before(toDate(date))
}

// AssertStarted returns an error if the period has not started as of
// the given date.
func (p *AllocationPeriod) AssertStarted(date time.Time) error {
	if !p.Started(date) {
		return fmt.Errorf(
			"allocation period %q does not start until %s",
			p.Name, p.StartDate.Format("2006-01-02"))
	}
	return nil
}

// AssertNotEnded returns an error if the period has already ended as of
// the given date.
func (p *AllocationPeriod) AssertNotEnded(date time.Time) error {
	if p.Ended(date) {
		return fmt.Errorf(
			"allocation period %q already ended on %s",
			p.Name, p.EndDate.Format("2006-01-02"))
	}
	return nil
}

func toDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateNumServiceUnits checks that a service-unit quantity lies
// within the configured bounds and has at most two decimal places.
func ValidateNumServiceUnits(value, min, max decimal.Decimal) error {
	if value.LessThan(min) || value.GreaterThan(max) {
		return fmt.Errorf(
			"service units %s outside bounds [%s, %s]", value, min, max)
	}
	if value.Exponent() < -2 {
		return fmt.Errorf("service units %s has more than two decimal places", value)
	}
	return nil
}
