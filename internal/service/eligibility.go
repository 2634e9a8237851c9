package service

import (
	"time"

	"github.com/noah-isme/lessonsync-api/internal/models"
)

// EligibilityChecker gates opening a change on the minimum lead time before the lesson.
type EligibilityChecker struct {
	minLead time.Duration
}

// NewEligibilityChecker constructs the checker; a non-positive lead defaults to two hours.
func NewEligibilityChecker(minLead time.Duration) EligibilityChecker {
	if minLead <= 0 {
		minLead = 2 * time.Hour
	}
	return EligibilityChecker{minLead: minLead}
}

// MinLead returns the configured lead time.
func (c EligibilityChecker) MinLead() time.Duration { return c.minLead }

// CanChange reports whether a lesson starting at startsAt may still be changed at now.
// A lesson that already started is reported as in the past before the lead time is considered.
func (c EligibilityChecker) CanChange(startsAt, now time.Time) models.Eligibility {
	result := models.Eligibility{StartsAt: startsAt}
	switch {
	case !startsAt.After(now):
		result.Reason = models.ReasonInPast
	case startsAt.Sub(now) < c.minLead:
		result.Reason = models.ReasonTooClose
	default:
		result.Eligible = true
	}
	return result
}
