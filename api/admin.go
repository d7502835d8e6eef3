package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/leave-tracker/directory"
	"go.uber.org/zap"
)

// RequireAdmin lets only admin users through.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := CurrentUser(r.Context())
		if !ok || !user.IsAdmin() {
			writeError(w, http.StatusForbidden, "Admin only", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListUsers returns every directory user.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"users":       h.Directory.Users(),
		"defaultRole": h.Directory.DefaultRole(),
	})
}

// UpsertUser adds or replaces a directory user.
func (h *Handler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	var req UpsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	u, err := h.Directory.Upsert(directory.User{
		EmployeeID:   req.EmployeeID,
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		Role:         req.Role,
		ManagerEmail: req.ManagerEmail,
	})
	if err != nil {
		h.writeDirectoryError(w, err)
		return
	}

	admin, _ := CurrentUser(r.Context())
	h.logger.Info("user upserted", zap.String("employee_id", u.EmployeeID), zap.String("by", admin.Email))
	writeJSON(w, http.StatusOK, u)
}

// SetUserRole changes a user's role.
func (h *Handler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "employeeId")

	var req SetRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	u, err := h.Directory.SetRole(id, req.Role)
	if err != nil {
		h.writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// DeleteUser removes a user from the directory.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "employeeId")

	if err := h.Directory.Delete(id); err != nil {
		h.writeDirectoryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeDirectoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrInvalidUser):
		writeError(w, http.StatusBadRequest, "Invalid user", err)
	case errors.Is(err, directory.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found", nil)
	default:
		h.logger.Error("directory update failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to update users", nil)
	}
}
