/*
handlers_test.go - HTTP tests for the leave API

Tests for:
- Identity resolution from proxy headers
- Batch submission responses (200 / 400 / 401 / 409)
- Approval link pages and replays
- Admin authorization
- Approval link rate limiting
*/
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-tracker/directory"
	"github.com/warp/leave-tracker/leave"
	"github.com/warp/leave-tracker/store/memory"
	"go.uber.org/zap"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2026, 5, 11, 10, 0, 0, 0, time.UTC)

type countingNotifier struct {
	submitted, approved, rejected int
}

func (n *countingNotifier) NotifySubmitted(context.Context, leave.GroupSummary) error {
	n.submitted++
	return nil
}

func (n *countingNotifier) NotifyApproved(context.Context, leave.GroupSummary) error {
	n.approved++
	return nil
}

func (n *countingNotifier) NotifyRejected(context.Context, leave.GroupSummary, string) error {
	n.rejected++
	return nil
}

type inlineDispatcher struct{}

func (inlineDispatcher) Dispatch(_ string, job func(ctx context.Context) error) {
	job(context.Background())
}

type testServer struct {
	router   http.Handler
	store    *memory.Memory
	notifier *countingNotifier
	dir      *directory.Directory
}

func newTestServer(t *testing.T, opts ...func(*RouterOptions)) *testServer {
	t.Helper()

	store := memory.NewMemory()
	notifier := &countingNotifier{}
	svc := leave.NewService(store,
		leave.WithNotifier(notifier),
		leave.WithDispatcher(inlineDispatcher{}),
		leave.WithLogger(zap.NewNop()),
		leave.WithClock(func() time.Time { return testNow }),
		leave.WithAllowedTypes(leave.KnownTypes...),
	)

	dir := directory.New(directory.Options{})
	_, err := dir.Upsert(directory.User{EmployeeID: "admin", Email: "admin@example.com", Role: directory.RoleAdmin})
	require.NoError(t, err)

	h := NewHandler(svc, dir, zap.NewNop())
	h.Now = func() time.Time { return testNow }
	h.EmailEnabled = true

	ro := RouterOptions{
		Identity:      &IdentityResolver{Directory: dir},
		RatePerSecond: 100,
		RateBurst:     100,
		Debug:         true,
	}
	for _, o := range opts {
		o(&ro)
	}

	return &testServer{
		router:   NewRouter(h, ro),
		store:    store,
		notifier: notifier,
		dir:      dir,
	}
}

func (ts *testServer) do(t *testing.T, method, target, email string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if email != "" {
		req.Header.Set("X-User-Email", email)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) submit(t *testing.T, dates ...string) BatchResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/entry/batch", "alice@example.com",
		BatchRequest{Dates: dates, Type: "Leave", Note: "trip"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// =============================================================================
// IDENTITY
// =============================================================================

func TestGetUser_FromHeader(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/user", "alice@example.com", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var u UserDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, "alice", u.EmployeeID)
	assert.Equal(t, directory.RoleDeveloper, u.Role)
	assert.True(t, u.Authenticated)
}

func TestGetUser_Anonymous(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/user", "", nil)

	var u UserDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, UnknownEmployeeID, u.EmployeeID)
	assert.False(t, u.Authenticated)
}

func TestIdentity_ClientPrincipal(t *testing.T) {
	dir := directory.New(directory.Options{})
	ir := &IdentityResolver{Directory: dir}

	principal := `{"userDetails":"","claims":[{"typ":"name","val":"Bob B"},{"typ":"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress","val":"bob@example.com"}]}`
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-MS-Client-Principal", base64.StdEncoding.EncodeToString([]byte(principal)))

	u, ok := ir.Resolve(req)

	assert.True(t, ok)
	assert.Equal(t, "bob", u.EmployeeID)
	assert.Equal(t, "Bob B", u.DisplayName)
}

func TestIdentity_HeaderOrderAndTestFallback(t *testing.T) {
	dir := directory.New(directory.Options{})
	ir := &IdentityResolver{Directory: dir, TestUserEmail: "dev@example.com"}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-User", "carol@example.com")
	req.Header.Set("X-MS-Client-Principal-Name", "dave@example.com")
	u, _ := ir.Resolve(req)
	assert.Equal(t, "dave", u.EmployeeID)

	// Values without "@" are ignored.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Email", "not-an-email")
	u, ok := ir.Resolve(req)
	assert.True(t, ok)
	assert.Equal(t, "dev", u.EmployeeID)
}

// =============================================================================
// BATCH SUBMISSION
// =============================================================================

func TestSubmitBatch_Created(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.submit(t, "2026-05-18", "2026-05-16", "2026-05-19")

	assert.True(t, resp.OK)
	assert.Equal(t, "Saved 2 date(s). Skipped 1.", resp.Message)
	assert.Equal(t, 2, resp.CreatedCount)
	assert.Equal(t, 1, resp.SkippedCount)
	assert.Equal(t, leave.ReasonWeekend, resp.Skipped[0].Reason)
	assert.NotEmpty(t, resp.Token)
	require.NotNil(t, resp.EmailStatus)
	assert.True(t, resp.EmailStatus.Queued)
	assert.Equal(t, 1, ts.notifier.submitted)
}

func TestSubmitBatch_NothingAccepted(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/entry/batch", "alice@example.com",
		BatchRequest{Dates: []string{"2026-05-16", "2026-05-17"}, Type: "Leave"})

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp NoDatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Empty(t, resp.Created)
	assert.Len(t, resp.Skipped, 2)
	assert.Equal(t, 0, ts.store.Saves())
}

func TestSubmitBatch_Errors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/entry/batch", "", BatchRequest{Dates: []string{"2026-05-18"}, Type: "Leave"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/entry/batch", "alice@example.com", BatchRequest{Type: "Leave"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No dates provided")

	rec = ts.do(t, http.MethodPost, "/api/entry/batch", "alice@example.com", BatchRequest{Dates: []string{"2026-05-18"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing type")
}

func TestListEntries_HidesTokens(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.submit(t, "2026-05-18")

	rec := ts.do(t, http.MethodGet, "/api/entries", "alice@example.com", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), resp.Token)
	var entries []EntryDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 1)
}

// =============================================================================
// APPROVAL LINKS
// =============================================================================

func TestApproveLink_TwiceShowsAlreadyApproved(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.submit(t, "2026-05-18", "2026-05-19")

	rec := ts.do(t, http.MethodGet, "/api/leave/approve?token="+resp.Token, "boss@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Leave Approved")

	rec = ts.do(t, http.MethodGet, "/api/leave/approve?token="+resp.Token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Already Approved")
	assert.Contains(t, rec.Body.String(), "boss@example.com")

	assert.Equal(t, 1, ts.notifier.approved)
}

func TestRejectLink_AfterApprove(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.submit(t, "2026-05-18")
	ts.do(t, http.MethodGet, "/api/leave/approve?token="+resp.Token, "", nil)

	rec := ts.do(t, http.MethodGet, "/api/leave/reject?token="+resp.Token+"&reason=nope", "", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cannot Reject - Already Approved")
	assert.Equal(t, 0, ts.notifier.rejected)
}

func TestRejectLink_WithReason(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.submit(t, "2026-05-18")

	rec := ts.do(t, http.MethodGet, "/api/leave/reject?token="+resp.Token+"&reason=team+offsite", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Leave Rejected")
	assert.Contains(t, rec.Body.String(), "team offsite")

	records, err := ts.store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, records[0].Status)
	assert.Equal(t, leave.DefaultActor, records[0].RejectedBy)
}

func TestApproveLink_UnknownAndMissingToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/leave/approve?token=nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Entry Not Found")

	rec = ts.do(t, http.MethodGet, "/api/leave/approve", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApproveLink_RateLimited(t *testing.T) {
	ts := newTestServer(t, func(o *RouterOptions) {
		o.RatePerSecond = 0.001
		o.RateBurst = 2
	})

	codes := []int{}
	for i := 0; i < 3; i++ {
		rec := ts.do(t, http.MethodGet, "/api/leave/approve?token=nope", "", nil)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}, codes)
}

// =============================================================================
// ADMIN AND REPORTS
// =============================================================================

func TestAdmin_RequiresAdminRole(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/admin/users", "alice@example.com", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Admin only")

	rec = ts.do(t, http.MethodGet, "/api/admin/users", "admin@example.com", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdmin_UserLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/admin/users", "admin@example.com",
		UpsertUserRequest{EmployeeID: "alice", DisplayName: "Alice", Role: "developer"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPatch, "/api/admin/users/alice", "admin@example.com", SetRoleRequest{Role: "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	u, ok := ts.dir.Lookup("alice")
	require.True(t, ok)
	assert.True(t, u.IsAdmin())

	rec = ts.do(t, http.MethodDelete, "/api/admin/users/alice", "admin@example.com", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/admin/users/alice", "admin@example.com", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSummary_OwnOrAdmin(t *testing.T) {
	ts := newTestServer(t)
	ts.submit(t, "2026-05-18")

	rec := ts.do(t, http.MethodGet, "/api/employees/alice/summary?year=2026", "alice@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"totalPending":1`))

	rec = ts.do(t, http.MethodGet, "/api/employees/alice/summary", "bob@example.com", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/employees/alice/summary?year=abc", "admin@example.com", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
