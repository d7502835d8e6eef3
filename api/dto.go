/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Field names match
  what the existing browser UI sends and reads.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done by leave.Service, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/leave-tracker/directory"
	"github.com/warp/leave-tracker/leave"
)

// =============================================================================
// USER
// =============================================================================

// UserDTO is the signed-in user as the UI sees it.
type UserDTO struct {
	EmployeeID    string `json:"employeeId"`
	DisplayName   string `json:"displayName"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	IsAdmin       bool   `json:"isAdmin"`
	Authenticated bool   `json:"authenticated"`
}

func toUserDTO(u directory.User, authenticated bool) UserDTO {
	return UserDTO{
		EmployeeID:    u.EmployeeID,
		DisplayName:   u.DisplayName,
		Email:         u.Email,
		Role:          u.Role,
		IsAdmin:       u.IsAdmin(),
		Authenticated: authenticated,
	}
}

// UpsertUserRequest is the admin create/replace body.
type UpsertUserRequest struct {
	EmployeeID   string `json:"employeeId"`
	DisplayName  string `json:"displayName"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	ManagerEmail string `json:"managerEmail"`
}

// SetRoleRequest is the admin role change body.
type SetRoleRequest struct {
	Role string `json:"role"`
}

// =============================================================================
// BATCH SUBMISSION
// =============================================================================

// BatchRequest is the body of POST /api/entry/batch.
type BatchRequest struct {
	Dates []string `json:"dates"`
	Type  string   `json:"type"`
	Note  string   `json:"note"`
}

// CreatedDTO is one record created by a batch.
type CreatedDTO struct {
	ID     string       `json:"id"`
	Date   string       `json:"date"`
	Type   leave.Type   `json:"type"`
	Status leave.Status `json:"status"`
}

// EmailStatusDTO reports whether a notification was queued.
type EmailStatusDTO struct {
	Queued bool `json:"queued"`
}

// BatchResponse is returned by POST /api/entry/batch.
type BatchResponse struct {
	OK           bool            `json:"ok"`
	Message      string          `json:"message"`
	CreatedCount int             `json:"createdCount"`
	SkippedCount int             `json:"skippedCount"`
	Created      []CreatedDTO    `json:"created"`
	Skipped      []leave.Skipped `json:"skipped"`
	GroupID      string          `json:"groupId,omitempty"`
	Token        string          `json:"token,omitempty"`
	EmailStatus  *EmailStatusDTO `json:"emailStatus,omitempty"`
}

// =============================================================================
// RECORDS
// =============================================================================

// EntryDTO is a record as listed by GET /api/entries. The token is never
// exposed on list endpoints.
type EntryDTO struct {
	ID              string       `json:"id"`
	GroupID         string       `json:"groupId,omitempty"`
	EmployeeID      string       `json:"employeeId"`
	Email           string       `json:"email,omitempty"`
	DisplayName     string       `json:"displayName,omitempty"`
	Name            string       `json:"name,omitempty"`
	Date            string       `json:"date"`
	Type            leave.Type   `json:"type"`
	Note            string       `json:"note,omitempty"`
	Status          leave.Status `json:"status"`
	CreatedAt       time.Time    `json:"createdAt"`
	ApprovedAt      *time.Time   `json:"approvedAt,omitempty"`
	ApprovedBy      string       `json:"approvedBy,omitempty"`
	RejectedAt      *time.Time   `json:"rejectedAt,omitempty"`
	RejectedBy      string       `json:"rejectedBy,omitempty"`
	RejectionReason string       `json:"rejectionReason,omitempty"`
}

func toEntryDTO(r leave.Request) EntryDTO {
	return EntryDTO{
		ID:              r.ID,
		GroupID:         r.GroupID,
		EmployeeID:      r.EmployeeID,
		Email:           r.Email,
		DisplayName:     r.DisplayName,
		Name:            r.Name,
		Date:            r.Date,
		Type:            r.Type,
		Note:            r.Note,
		Status:          r.Status,
		CreatedAt:       r.CreatedAt,
		ApprovedAt:      r.ApprovedAt,
		ApprovedBy:      r.ApprovedBy,
		RejectedAt:      r.RejectedAt,
		RejectedBy:      r.RejectedBy,
		RejectionReason: r.RejectionReason,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NoDatesResponse is the 409 body when a batch admitted nothing.
type NoDatesResponse struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message"`
	Created []CreatedDTO    `json:"created"`
	Skipped []leave.Skipped `json:"skipped"`
}
