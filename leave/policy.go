/*
policy.go - Conflict policy for candidate dates

PURPOSE:
  Decides whether a single candidate date may become a new record.
  Pure function: no I/O, no clock reads. Callers pass "now".

CHECK ORDER (first failure wins):
  1. invalid_format      not YYYY-MM-DD or not a real calendar date
  2. weekend             Saturday or Sunday
  3. past_or_today       earlier than tomorrow in now's location
  4. duplicate_existing  same employee + date already has a non-rejected record

DUPLICATE SCOPE:
  Keyed on (employee, date) regardless of type. A rejected record frees
  the day for a new submission.

SEE ALSO:
  - service.go: SubmitBatch evaluates each date against snapshot + batch
*/
package leave

import (
	"strings"
	"time"
)

// Candidate is a date proposed for one employee.
type Candidate struct {
	EmployeeID string
	Date       string
	Type       Type
}

// Evaluate applies the conflict policy. It returns ("", true) when the
// candidate is admitted.
func Evaluate(existing []Request, c Candidate, now time.Time) (Reason, bool) {
	date := strings.TrimSpace(c.Date)

	day, ok := ParseDate(date, now.Location())
	if !ok {
		return ReasonInvalidFormat, false
	}
	if IsWeekend(day) {
		return ReasonWeekend, false
	}
	if day.Before(Tomorrow(now)) {
		return ReasonPastOrToday, false
	}
	if HasActive(existing, c.EmployeeID, date) {
		return ReasonDuplicateExisting, false
	}
	return "", true
}

// HasActive reports whether employeeID holds a non-rejected record on date.
func HasActive(records []Request, employeeID, date string) bool {
	for _, r := range records {
		if r.EmployeeID == employeeID && r.Date == date && r.Status != StatusRejected {
			return true
		}
	}
	return false
}
