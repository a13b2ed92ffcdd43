package credit

import (
	"time"

	"server/internal/domain"
)

// ResolveWindow computes the active accounting period for a plan at the given
// instant. Free-tier windows run midnight to midnight of now's calendar day;
// paid-tier windows run over now's calendar month. The returned reset instant
// is the exclusive upper bound of the window. Pure function of its inputs;
// boundaries are computed in now's location.
func ResolveWindow(plan domain.Plan, now time.Time) (periodStart, periodResetAt time.Time) {
	if plan.Period() == domain.PeriodDaily {
		periodStart = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return periodStart, periodStart.AddDate(0, 0, 1)
	}
	periodStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return periodStart, periodStart.AddDate(0, 1, 0)
}
