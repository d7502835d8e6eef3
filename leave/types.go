/*
types.go - Core data model for leave requests

PURPOSE:
  Defines the per-day leave record and the small value types the rest of
  the package passes around (status, leave type, submitter, skip reasons,
  group summaries for notifications).

ONE RECORD PER DAY:
  A submission for N dates produces N records. Records created by one
  submission share GroupID and Token, and are decided together.

JSON SHAPE:
  Field names are camelCase so existing entries.json documents load
  without migration.

SEE ALSO:
  - policy.go: Which dates are admitted
  - lifecycle.go: Status transitions
  - service.go: Creation and mutation of records
*/
package leave

import (
	"sort"
	"time"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the approval state of a record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

// Type is the leave category chosen by the submitter.
type Type string

const (
	TypeLeave             Type = "Leave"
	TypeSick              Type = "Sick"
	TypeWFH               Type = "WFH"
	TypeWorkTravel        Type = "Work Travel"
	TypeWorkFromStavanger Type = "Work From Stavanger"
	TypeWorkFromOslo      Type = "Work From Oslo"
	TypePublicHoliday     Type = "Public Holiday"
)

// KnownTypes lists the categories offered by default.
var KnownTypes = []Type{
	TypeLeave,
	TypeSick,
	TypeWFH,
	TypeWorkTravel,
	TypeWorkFromStavanger,
	TypeWorkFromOslo,
	TypePublicHoliday,
}

// =============================================================================
// REQUEST RECORD
// =============================================================================

// Request is one employee-day of leave.
type Request struct {
	ID          string `json:"id"`
	GroupID     string `json:"groupId,omitempty"`
	Token       string `json:"token,omitempty"`
	EmployeeID  string `json:"employeeId"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Name        string `json:"name,omitempty"`
	Date        string `json:"date"`
	Type        Type   `json:"type"`
	Note        string `json:"note,omitempty"`
	Status      Status `json:"status"`

	CreatedAt       time.Time  `json:"createdAt"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy      string     `json:"approvedBy,omitempty"`
	RejectedAt      *time.Time `json:"rejectedAt,omitempty"`
	RejectedBy      string     `json:"rejectedBy,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
}

// Submitter is the identity snapshot copied onto every created record.
type Submitter struct {
	EmployeeID  string
	Email       string
	DisplayName string
}

// =============================================================================
// SKIPS AND RESULTS
// =============================================================================

// Reason explains why a date was not admitted.
type Reason string

const (
	ReasonInvalidFormat     Reason = "invalid_format"
	ReasonWeekend           Reason = "weekend"
	ReasonPastOrToday       Reason = "past_or_today"
	ReasonDuplicateExisting Reason = "duplicate_existing"
)

// Skipped is a date left out of a batch and why.
type Skipped struct {
	Date   string `json:"date"`
	Reason Reason `json:"reason"`
}

// BatchResult is the outcome of a successful SubmitBatch.
type BatchResult struct {
	Created []Request
	Skipped []Skipped
	GroupID string
	Token   string
}

// =============================================================================
// GROUP SUMMARY
// =============================================================================

// GroupSummary describes one submission group for notifications.
type GroupSummary struct {
	ID              string
	GroupID         string
	Token           string
	EmployeeID      string
	Email           string
	DisplayName     string
	Type            Type
	Note            string
	Dates           []string
	DecidedBy       string
	RejectionReason string
}

// StartDate returns the earliest date in the group.
func (g GroupSummary) StartDate() string {
	if len(g.Dates) == 0 {
		return ""
	}
	return g.Dates[0]
}

// EndDate returns the latest date in the group.
func (g GroupSummary) EndDate() string {
	if len(g.Dates) == 0 {
		return ""
	}
	return g.Dates[len(g.Dates)-1]
}

// TotalDays is the number of records in the group.
func (g GroupSummary) TotalDays() int {
	return len(g.Dates)
}

// Name returns the display name, falling back to email then employee id.
func (g GroupSummary) Name() string {
	switch {
	case g.DisplayName != "":
		return g.DisplayName
	case g.Email != "":
		return g.Email
	default:
		return g.EmployeeID
	}
}

// Summarize builds a GroupSummary from records of one group.
// The first record supplies the shared fields.
func Summarize(records []Request) GroupSummary {
	if len(records) == 0 {
		return GroupSummary{}
	}
	first := records[0]
	dates := make([]string, 0, len(records))
	for _, r := range records {
		dates = append(dates, r.Date)
	}
	sort.Strings(dates)

	return GroupSummary{
		ID:          first.ID,
		GroupID:     first.GroupID,
		Token:       first.Token,
		EmployeeID:  first.EmployeeID,
		Email:       first.Email,
		DisplayName: first.DisplayName,
		Type:        first.Type,
		Note:        first.Note,
		Dates:       dates,
	}
}
