package leave_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/leave-tracker/leave"
)

// Monday 2026-05-11, mid-morning.
var monday = time.Date(2026, time.May, 11, 10, 0, 0, 0, time.UTC)

func TestEvaluate_CheckOrder(t *testing.T) {
	existing := []leave.Request{
		{ID: "r1", EmployeeID: "alice", Date: "2026-05-18", Status: leave.StatusPending},
		{ID: "r2", EmployeeID: "alice", Date: "2026-05-19", Status: leave.StatusRejected},
		{ID: "r3", EmployeeID: "bob", Date: "2026-05-20", Status: leave.StatusApproved},
	}

	tests := []struct {
		name   string
		date   string
		reason leave.Reason
		ok     bool
	}{
		{"garbage", "next tuesday", leave.ReasonInvalidFormat, false},
		{"short year", "26-05-18", leave.ReasonInvalidFormat, false},
		{"impossible day", "2026-02-30", leave.ReasonInvalidFormat, false},
		{"saturday", "2026-05-16", leave.ReasonWeekend, false},
		{"sunday", "2026-05-17", leave.ReasonWeekend, false},
		{"past weekend reports weekend first", "2026-05-10", leave.ReasonWeekend, false},
		{"today", "2026-05-11", leave.ReasonPastOrToday, false},
		{"yesterday", "2026-05-08", leave.ReasonPastOrToday, false},
		{"tomorrow", "2026-05-12", "", true},
		{"pending duplicate", "2026-05-18", leave.ReasonDuplicateExisting, false},
		{"rejected frees the day", "2026-05-19", "", true},
		{"other employee's day", "2026-05-20", "", true},
		{"surrounding whitespace", " 2026-05-21 ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, ok := leave.Evaluate(existing, leave.Candidate{
				EmployeeID: "alice",
				Date:       tt.date,
				Type:       leave.TypeLeave,
			}, monday)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestEvaluate_DuplicateIgnoresType(t *testing.T) {
	// GIVEN: A pending Sick day
	existing := []leave.Request{
		{ID: "r1", EmployeeID: "alice", Date: "2026-05-18", Type: leave.TypeSick, Status: leave.StatusPending},
	}

	// WHEN: Submitting WFH for the same day
	reason, ok := leave.Evaluate(existing, leave.Candidate{EmployeeID: "alice", Date: "2026-05-18", Type: leave.TypeWFH}, monday)

	// THEN: Still a duplicate
	assert.False(t, ok)
	assert.Equal(t, leave.ReasonDuplicateExisting, reason)
}

func TestEvaluate_TomorrowUsesClockLocation(t *testing.T) {
	// GIVEN: 23:30 on Monday in Oslo is already Monday 21:30 UTC
	oslo, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		t.Skip("tzdata not available")
	}
	now := time.Date(2026, time.May, 11, 23, 30, 0, 0, oslo)

	// THEN: Tuesday is tomorrow and admitted, Monday is today
	_, ok := leave.Evaluate(nil, leave.Candidate{EmployeeID: "a", Date: "2026-05-12"}, now)
	assert.True(t, ok)

	reason, ok := leave.Evaluate(nil, leave.Candidate{EmployeeID: "a", Date: "2026-05-11"}, now)
	assert.False(t, ok)
	assert.Equal(t, leave.ReasonPastOrToday, reason)
}

func TestWorkingDays(t *testing.T) {
	from := time.Date(2026, time.May, 11, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.May, 24, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 10, leave.WorkingDays(from, to))
}
