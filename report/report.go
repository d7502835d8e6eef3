/*
Package report summarizes an employee's leave for a calendar year.

PURPOSE:
  Read-only view over the record collection for the UI and admins:
  how many days of each type are pending, approved or rejected, and
  what share of the year's working days the approved days represent.

PRECISION:
  Shares are decimal.Decimal rounded to 2 places so the JSON carries an
  exact value ("4.21") rather than a float.
*/
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-tracker/leave"
)

// TypeSummary counts days of one leave type by status.
type TypeSummary struct {
	Type     leave.Type `json:"type"`
	Pending  int        `json:"pending"`
	Approved int        `json:"approved"`
	Rejected int        `json:"rejected"`
}

// Summary is an employee's year at a glance.
type Summary struct {
	EmployeeID    string          `json:"employeeId"`
	Year          int             `json:"year"`
	ByType        []TypeSummary   `json:"byType"`
	TotalPending  int             `json:"totalPending"`
	TotalApproved int             `json:"totalApproved"`
	TotalRejected int             `json:"totalRejected"`
	WorkingDays   int             `json:"workingDays"`
	ApprovedShare decimal.Decimal `json:"approvedSharePercent"`
	Upcoming      []string        `json:"upcoming"`
}

// Summarize builds the summary of employeeID for year. Upcoming lists
// non-rejected dates on or after today, sorted.
func Summarize(records []leave.Request, employeeID string, year int, today time.Time) Summary {
	s := Summary{
		EmployeeID: employeeID,
		Year:       year,
		ByType:     []TypeSummary{},
		Upcoming:   []string{},
	}

	prefix := fmt.Sprintf("%04d-", year)
	todayKey := today.Format(leave.DateLayout)
	byType := map[leave.Type]*TypeSummary{}

	for _, r := range records {
		if !strings.EqualFold(r.EmployeeID, employeeID) || !strings.HasPrefix(r.Date, prefix) {
			continue
		}

		ts, ok := byType[r.Type]
		if !ok {
			ts = &TypeSummary{Type: r.Type}
			byType[r.Type] = ts
		}

		switch r.Status {
		case leave.StatusApproved:
			ts.Approved++
			s.TotalApproved++
		case leave.StatusRejected:
			ts.Rejected++
			s.TotalRejected++
		default:
			ts.Pending++
			s.TotalPending++
		}

		if r.Status != leave.StatusRejected && r.Date >= todayKey {
			s.Upcoming = append(s.Upcoming, r.Date)
		}
	}

	for _, ts := range byType {
		s.ByType = append(s.ByType, *ts)
	}
	sort.Slice(s.ByType, func(i, j int) bool { return s.ByType[i].Type < s.ByType[j].Type })
	sort.Strings(s.Upcoming)

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	s.WorkingDays = leave.WorkingDays(from, to)
	s.ApprovedShare = Share(s.TotalApproved, s.WorkingDays)

	return s
}

// Share returns part/whole as a percentage rounded to 2 places.
func Share(part, whole int) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(whole)), 2)
}
