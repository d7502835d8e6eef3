/*
handlers.go - HTTP API handlers for the leave tracker

PURPOSE:
  Exposes leave.Service over HTTP. Handles request/response encoding and
  maps service errors to status codes. No business rules live here.

ENDPOINTS:
  User:
    GET    /api/user                       Signed-in user
    GET    /api/types                      Leave types offered

  Records:
    GET    /api/entries                    All records (tokens hidden)
    POST   /api/entry/batch                Submit a batch of dates
    GET    /api/employees/{id}/summary     Yearly usage report

  Approval links (HTML, rate limited):
    GET    /api/leave/approve?token=
    GET    /api/leave/reject?token=&reason=

  Admin (see admin.go):
    GET/POST /api/admin/users, PATCH/DELETE /api/admin/users/{employeeId}

  Debug:
    GET    /api/debug/headers              Identity diagnostics

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: No identity from the proxy
  - 403: Not allowed for this role
  - 409: Batch admitted no dates
  - 500: Store failures

SEE ALSO:
  - dto.go: Request/response data structures
  - pages.go: HTML pages for approval links
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/leave-tracker/directory"
	"github.com/warp/leave-tracker/leave"
	"github.com/warp/leave-tracker/report"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service   *leave.Service
	Directory *directory.Directory
	Types     []leave.Type

	// EmailEnabled reports whether submissions queue an email.
	EmailEnabled bool
	Now          func() time.Time

	logger *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(svc *leave.Service, dir *directory.Directory, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("api")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("api")
	}
	return &Handler{
		Service:   svc,
		Directory: dir,
		Types:     leave.KnownTypes,
		Now:       time.Now,
		logger:    l,
	}
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// GetUser returns the signed-in user.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r.Context())
	writeJSON(w, http.StatusOK, toUserDTO(user, ok))
}

// ListTypes returns the leave types offered to submitters.
func (h *Handler) ListTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Types)
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// ListEntries returns every record.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	records, err := h.Service.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	dtos := make([]EntryDTO, len(records))
	for i, rec := range records {
		dtos[i] = toEntryDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SubmitBatch creates pending records for the submitted dates.
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r.Context())
	if !ok || user.Email == "" {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	who := leave.Submitter{
		EmployeeID:  user.EmployeeID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}
	res, err := h.Service.SubmitBatch(r.Context(), who, leave.Type(strings.TrimSpace(req.Type)), strings.TrimSpace(req.Note), req.Dates)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	created := make([]CreatedDTO, len(res.Created))
	for i, rec := range res.Created {
		created[i] = CreatedDTO{ID: rec.ID, Date: rec.Date, Type: rec.Type, Status: rec.Status}
	}
	skipped := res.Skipped
	if skipped == nil {
		skipped = []leave.Skipped{}
	}

	writeJSON(w, http.StatusOK, BatchResponse{
		OK:           true,
		Message:      fmt.Sprintf("Saved %d date(s). Skipped %d.", len(created), len(skipped)),
		CreatedCount: len(created),
		SkippedCount: len(skipped),
		Created:      created,
		Skipped:      skipped,
		GroupID:      res.GroupID,
		Token:        res.Token,
		EmailStatus:  &EmailStatusDTO{Queued: h.EmailEnabled},
	})
}

// GetSummary returns the usage report of one employee. Users may only
// read their own unless they are admins.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, _ := CurrentUser(r.Context())
	if !user.IsAdmin() && !strings.EqualFold(user.EmployeeID, id) {
		writeError(w, http.StatusForbidden, "Not allowed", nil)
		return
	}

	now := h.Now()
	year := now.Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y < 1970 || y > 9999 {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}

	records, err := h.Service.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Summarize(records, id, year, now))
}

// =============================================================================
// APPROVAL LINK HANDLERS
// =============================================================================

// ApproveLeave approves the group behind ?token=.
func (h *Handler) ApproveLeave(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.ActionApprove)
}

// RejectLeave rejects the group behind ?token=, with an optional ?reason=.
func (h *Handler) RejectLeave(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.ActionReject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, action leave.Action) {
	q := r.URL.Query()
	token := strings.TrimSpace(q.Get("token"))
	if token == "" {
		writePage(w, http.StatusBadRequest, statusPage{
			Title:   "Missing Token",
			Color:   colorError,
			Message: "The link is incomplete. Open it again from the email.",
		})
		return
	}

	actor := ""
	if user, ok := CurrentUser(r.Context()); ok {
		actor = user.Email
	}

	var dec *leave.Decision
	var err error
	if action == leave.ActionApprove {
		dec, err = h.Service.Approve(r.Context(), token, actor)
	} else {
		dec, err = h.Service.Reject(r.Context(), token, actor, q.Get("reason"))
	}
	if err != nil {
		h.logger.Error("decision failed", zap.String("action", string(action)), zap.Error(err))
		writePage(w, http.StatusInternalServerError, statusPage{
			Title:   "Something Went Wrong",
			Color:   colorError,
			Message: "The request could not be processed. Please try again later.",
		})
		return
	}

	status, page := decisionPage(action, dec)
	writePage(w, status, page)
}

// =============================================================================
// DEBUG
// =============================================================================

// DebugHeaders shows which identity headers reached the service.
func (h *Handler) DebugHeaders(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r.Context())

	headers := map[string]string{}
	keys := append([]string{principalHeader}, identityHeaders...)
	for _, k := range keys {
		if v := r.Header.Get(k); v != "" {
			headers[k] = v
		}
	}
	names := make([]string, 0, len(r.Header))
	for k := range r.Header {
		names = append(names, k)
	}
	sort.Strings(names)

	writeJSON(w, http.StatusOK, map[string]any{
		"identityHeaders": headers,
		"headerNames":     names,
		"resolvedUser":    toUserDTO(user, ok),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var nd *leave.NoDatesAcceptedError
	var ve *leave.ValidationError

	switch {
	case errors.As(err, &nd):
		writeJSON(w, http.StatusConflict, NoDatesResponse{
			OK:      false,
			Message: fmt.Sprintf("No dates saved. Skipped %d.", len(nd.Skipped)),
			Created: []CreatedDTO{},
			Skipped: nd.Skipped,
		})
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message, nil)
	case errors.Is(err, leave.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{OK: false, Error: message, Message: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
