package leave_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-tracker/leave"
	"github.com/warp/leave-tracker/store/memory"
	"go.uber.org/zap"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type recordingNotifier struct {
	mu        sync.Mutex
	submitted []leave.GroupSummary
	approved  []leave.GroupSummary
	rejected  []leave.GroupSummary
	reasons   []string
	fail      error
}

func (n *recordingNotifier) NotifySubmitted(_ context.Context, g leave.GroupSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submitted = append(n.submitted, g)
	return n.fail
}

func (n *recordingNotifier) NotifyApproved(_ context.Context, g leave.GroupSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approved = append(n.approved, g)
	return n.fail
}

func (n *recordingNotifier) NotifyRejected(_ context.Context, g leave.GroupSummary, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, g)
	n.reasons = append(n.reasons, reason)
	return n.fail
}

// inlineDispatcher runs jobs synchronously so tests can assert on them.
type inlineDispatcher struct {
	errs []error
}

func (d *inlineDispatcher) Dispatch(_ string, job func(ctx context.Context) error) {
	if err := job(context.Background()); err != nil {
		d.errs = append(d.errs, err)
	}
}

type fixture struct {
	svc      *leave.Service
	store    *memory.Memory
	notifier *recordingNotifier
	dispatch *inlineDispatcher
	clock    *time.Time
}

func newFixture(t *testing.T, seed ...leave.Request) *fixture {
	t.Helper()
	now := monday
	f := &fixture{
		store:    memory.NewMemory(seed...),
		notifier: &recordingNotifier{},
		dispatch: &inlineDispatcher{},
		clock:    &now,
	}
	f.svc = leave.NewService(f.store,
		leave.WithNotifier(f.notifier),
		leave.WithDispatcher(f.dispatch),
		leave.WithLogger(zap.NewNop()),
		leave.WithClock(func() time.Time { return *f.clock }),
		leave.WithAllowedTypes(leave.KnownTypes...),
	)
	return f
}

var alice = leave.Submitter{EmployeeID: "alice", Email: "alice@example.com", DisplayName: "Alice A"}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmitBatch_ThreeWeekdays(t *testing.T) {
	// GIVEN: An empty store
	f := newFixture(t)
	ctx := context.Background()

	// WHEN: Submitting three future weekdays
	res, err := f.svc.SubmitBatch(ctx, alice, leave.TypeLeave, "family trip",
		[]string{"2026-05-18", "2026-05-19", "2026-05-20"})

	// THEN: Three pending records sharing one group and token
	require.NoError(t, err)
	assert.Len(t, res.Created, 3)
	assert.Empty(t, res.Skipped)
	assert.NotEmpty(t, res.GroupID)
	assert.Len(t, res.Token, 64)

	ids := map[string]bool{}
	for _, r := range res.Created {
		assert.Equal(t, res.GroupID, r.GroupID)
		assert.Equal(t, res.Token, r.Token)
		assert.Equal(t, leave.StatusPending, r.Status)
		assert.Equal(t, "alice", r.EmployeeID)
		assert.Equal(t, "alice@example.com", r.Name)
		assert.Equal(t, "family trip", r.Note)
		assert.Equal(t, monday, r.CreatedAt)
		ids[r.ID] = true
	}
	assert.Len(t, ids, 3)

	stored, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	// AND: One submitted notification covering all dates
	require.Len(t, f.notifier.submitted, 1)
	assert.Equal(t, []string{"2026-05-18", "2026-05-19", "2026-05-20"}, f.notifier.submitted[0].Dates)
	assert.Equal(t, res.Token, f.notifier.submitted[0].Token)
}

func TestSubmitBatch_PartialAcceptance(t *testing.T) {
	f := newFixture(t)

	// WHEN: Today plus a valid future date
	res, err := f.svc.SubmitBatch(context.Background(), alice, leave.TypeWFH, "",
		[]string{"2026-05-11", "2026-05-18"})

	// THEN: Today skipped, the other created
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, "2026-05-18", res.Created[0].Date)
	assert.Equal(t, []leave.Skipped{{Date: "2026-05-11", Reason: leave.ReasonPastOrToday}}, res.Skipped)
}

func TestSubmitBatch_AllWeekend(t *testing.T) {
	f := newFixture(t)

	// WHEN: Only weekend dates
	res, err := f.svc.SubmitBatch(context.Background(), alice, leave.TypeLeave, "",
		[]string{"2026-05-16", "2026-05-17"})

	// THEN: NoDatesAccepted with reasons, nothing saved, nothing sent
	assert.Nil(t, res)
	require.ErrorIs(t, err, leave.ErrNoDatesAccepted)

	var nd *leave.NoDatesAcceptedError
	require.True(t, errors.As(err, &nd))
	assert.Equal(t, []leave.Skipped{
		{Date: "2026-05-16", Reason: leave.ReasonWeekend},
		{Date: "2026-05-17", Reason: leave.ReasonWeekend},
	}, nd.Skipped)

	assert.Equal(t, 0, f.store.Saves())
	assert.Empty(t, f.notifier.submitted)
}

func TestSubmitBatch_DuplicateWithinBatch(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.SubmitBatch(context.Background(), alice, leave.TypeLeave, "",
		[]string{"2026-05-18", "2026-05-18"})

	require.NoError(t, err)
	assert.Len(t, res.Created, 1)
	assert.Equal(t, []leave.Skipped{{Date: "2026-05-18", Reason: leave.ReasonDuplicateExisting}}, res.Skipped)
}

func TestSubmitBatch_DuplicateAgainstStore(t *testing.T) {
	// GIVEN: An approved day and a rejected day already on file
	f := newFixture(t,
		leave.Request{ID: "old-1", EmployeeID: "alice", Date: "2026-05-18", Status: leave.StatusApproved},
		leave.Request{ID: "old-2", EmployeeID: "alice", Date: "2026-05-19", Status: leave.StatusRejected},
	)

	// WHEN: Submitting both days again
	res, err := f.svc.SubmitBatch(context.Background(), alice, leave.TypeLeave, "",
		[]string{"2026-05-18", "2026-05-19"})

	// THEN: The approved day is blocked, the rejected day is free again
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, "2026-05-19", res.Created[0].Date)
	assert.Equal(t, leave.ReasonDuplicateExisting, res.Skipped[0].Reason)
}

func TestSubmitBatch_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dates := []string{"2026-05-18"}

	_, err := f.svc.SubmitBatch(ctx, leave.Submitter{}, leave.TypeLeave, "", dates)
	assert.ErrorIs(t, err, leave.ErrUnauthenticated)

	_, err = f.svc.SubmitBatch(ctx, alice, "", "", dates)
	assert.ErrorIs(t, err, leave.ErrValidation)

	_, err = f.svc.SubmitBatch(ctx, alice, "Sabbatical", "", dates)
	assert.ErrorIs(t, err, leave.ErrValidation)

	_, err = f.svc.SubmitBatch(ctx, alice, leave.TypeLeave, "", nil)
	var ve *leave.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "dates", ve.Field)

	assert.Equal(t, 0, f.store.Saves())
}

func TestSubmitBatch_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.FailSave = errors.New("disk full")

	_, err := f.svc.SubmitBatch(context.Background(), alice, leave.TypeLeave, "", []string{"2026-05-18"})

	assert.ErrorIs(t, err, leave.ErrStoreIO)
	assert.Empty(t, f.notifier.submitted)
}

func TestSubmitBatch_NotificationFailureDoesNotFailSubmit(t *testing.T) {
	f := newFixture(t)
	f.notifier.fail = errors.New("smtp down")

	res, err := f.svc.SubmitBatch(context.Background(), alice, leave.TypeLeave, "", []string{"2026-05-18"})

	require.NoError(t, err)
	assert.Len(t, res.Created, 1)
	assert.Len(t, f.dispatch.errs, 1)
}

func TestSubmitBatch_ConcurrentSameDay(t *testing.T) {
	// GIVEN: Many concurrent submits for the same employee-day
	f := newFixture(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.SubmitBatch(ctx, alice, leave.TypeLeave, "", []string{"2026-05-18"})
			if err == nil && len(res.Created) == 1 {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// THEN: Exactly one non-rejected record exists
	assert.Equal(t, 1, admitted)
	stored, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

// =============================================================================
// DECISIONS
// =============================================================================

func TestApprove_Twice(t *testing.T) {
	// GIVEN: A pending group of two days
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.SubmitBatch(ctx, alice, leave.TypeLeave, "", []string{"2026-05-19", "2026-05-18"})
	require.NoError(t, err)

	// WHEN: Approving
	first, err := f.svc.Approve(ctx, res.Token, "boss@example.com")

	// THEN: Both records approved with one timestamp
	require.NoError(t, err)
	assert.Equal(t, leave.OutcomeApplied, first.Outcome)
	assert.Equal(t, leave.StatusApproved, first.Status)
	require.Len(t, first.Records, 2)
	for _, r := range first.Records {
		assert.Equal(t, leave.StatusApproved, r.Status)
		assert.Equal(t, "boss@example.com", r.ApprovedBy)
		require.NotNil(t, r.ApprovedAt)
		assert.Equal(t, *first.DecidedAt, *r.ApprovedAt)
	}
	assert.Equal(t, []string{"2026-05-18", "2026-05-19"}, first.Summary.Dates)

	// WHEN: Approving again later
	*f.clock = monday.Add(time.Hour)
	second, err := f.svc.Approve(ctx, res.Token, "someone-else@example.com")

	// THEN: Already processed, original stamp kept, one notification total
	require.NoError(t, err)
	assert.Equal(t, leave.OutcomeAlreadyProcessed, second.Outcome)
	assert.Equal(t, *first.DecidedAt, *second.DecidedAt)
	assert.Equal(t, "boss@example.com", second.DecidedBy)
	assert.Len(t, f.notifier.approved, 1)
}

func TestReject_AfterApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.SubmitBatch(ctx, alice, leave.TypeLeave, "", []string{"2026-05-18"})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, res.Token, "")
	require.NoError(t, err)
	saves := f.store.Saves()

	dec, err := f.svc.Reject(ctx, res.Token, "", "changed my mind")

	require.NoError(t, err)
	assert.Equal(t, leave.OutcomeCannotRejectApproved, dec.Outcome)
	assert.Equal(t, leave.StatusApproved, dec.Status)
	assert.Equal(t, leave.DefaultActor, dec.DecidedBy)
	assert.Equal(t, saves, f.store.Saves())
	assert.Empty(t, f.notifier.rejected)

	stored, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, stored[0].Status)
}

func TestReject_StoresReasonAndNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.SubmitBatch(ctx, alice, leave.TypeSick, "", []string{"2026-05-18", "2026-05-19"})
	require.NoError(t, err)

	dec, err := f.svc.Reject(ctx, res.Token, "boss@example.com", "  team offsite  ")
	require.NoError(t, err)
	assert.Equal(t, leave.OutcomeApplied, dec.Outcome)
	for _, r := range dec.Records {
		assert.Equal(t, leave.StatusRejected, r.Status)
		assert.Equal(t, "team offsite", r.RejectionReason)
	}

	again, err := f.svc.Reject(ctx, res.Token, "boss@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, leave.OutcomeAlreadyProcessed, again.Outcome)
	assert.Equal(t, "team offsite", again.Reason)

	approveAfter, err := f.svc.Approve(ctx, res.Token, "")
	require.NoError(t, err)
	assert.Equal(t, leave.OutcomeAlreadyProcessed, approveAfter.Outcome)
	assert.Equal(t, leave.StatusRejected, approveAfter.Status)

	assert.Len(t, f.notifier.rejected, 1)
	assert.Equal(t, []string{"team offsite"}, f.notifier.reasons)
	assert.Empty(t, f.notifier.approved)
}

func TestDecision_UnknownAndMissingToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dec, err := f.svc.Approve(ctx, "deadbeef", "")
	require.NoError(t, err)
	assert.Equal(t, leave.OutcomeNotFound, dec.Outcome)

	_, err = f.svc.Reject(ctx, "   ", "", "")
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestResolveByToken_ScopedToFirstGroup(t *testing.T) {
	// GIVEN: A colliding token reused by a second group (corrupt data)
	f := newFixture(t,
		leave.Request{ID: "a1", GroupID: "g1", Token: "tok", EmployeeID: "alice", Date: "2026-05-18", Status: leave.StatusPending},
		leave.Request{ID: "b1", GroupID: "g2", Token: "tok", EmployeeID: "bob", Date: "2026-05-18", Status: leave.StatusPending},
		leave.Request{ID: "a2", GroupID: "g1", Token: "tok", EmployeeID: "alice", Date: "2026-05-19", Status: leave.StatusPending},
	)
	ctx := context.Background()

	got, err := f.svc.ResolveByToken(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, "a2", got[1].ID)

	// WHEN: Approving through the token
	_, err = f.svc.Approve(ctx, "tok", "")
	require.NoError(t, err)

	// THEN: Bob's record is untouched
	stored, err := f.svc.List(ctx)
	require.NoError(t, err)
	for _, r := range stored {
		if r.ID == "b1" {
			assert.Equal(t, leave.StatusPending, r.Status)
		} else {
			assert.Equal(t, leave.StatusApproved, r.Status)
		}
	}
}

func TestTokens_AreUniquePerBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		date := fmt.Sprintf("2026-05-%02d", 18+i)
		res, err := f.svc.SubmitBatch(ctx, alice, leave.TypeLeave, "", []string{date})
		require.NoError(t, err)
		assert.False(t, seen[res.Token])
		seen[res.Token] = true
	}
}
