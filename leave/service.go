/*
service.go - Batch submission and approval-token workflow

PURPOSE:
  Orchestrates the whole record lifecycle:
  1. SubmitBatch: turn a list of dates into per-day pending records
  2. Approve / Reject: decide a whole group through its token
  3. List / ResolveByToken: read paths

SUBMISSION FLOW:
  ┌──────────────────────────────────────────────────────────────────┐
  │                                                                  │
  │  validate   ──▶  load snapshot  ──▶  evaluate each date  ──▶     │
  │  input           (under lock)        vs snapshot + batch         │
  │                                                                  │
  │                                          │                       │
  │                        none admitted ◀───┴───▶ save, then        │
  │                        NoDatesAccepted        notify (async)     │
  │                                                                  │
  └──────────────────────────────────────────────────────────────────┘

CONCURRENCY:
  Every mutating operation runs load -> decide -> save under one mutex,
  so two submits for the same employee-day can never both be admitted.
  Reads go straight to the store; SaveAll is atomic so they only ever
  see committed collections.

NOTIFICATIONS:
  Sent through the Dispatcher after the save is committed. Delivery
  failures are logged by the dispatcher and never change the result.
  Terminal replays (already approved / already rejected) send nothing.

EXAMPLE:
  svc := leave.NewService(store, leave.WithNotifier(mailer))

  res, err := svc.SubmitBatch(ctx, who, leave.TypeLeave, "", []string{"2026-05-18"})
  dec, err := svc.Approve(ctx, res.Token, "boss@example.com")

SEE ALSO:
  - policy.go: Per-date admission
  - lifecycle.go: Transition table
  - token.go: Token generation and resolution
*/
package leave

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// MaxNoteLength caps the free-text note in characters.
const MaxNoteLength = 1000

// DefaultActor records decisions made through a link without a known user.
const DefaultActor = "Manager"

// Decision is the result of an approve or reject attempt.
type Decision struct {
	Outcome   Outcome
	Status    Status
	DecidedAt *time.Time
	DecidedBy string
	Reason    string
	Records   []Request
	Summary   GroupSummary
}

// Service owns all mutations of the record collection.
type Service struct {
	store      Store
	notifier   Notifier
	dispatcher Dispatcher
	logger     *zap.Logger
	now        func() time.Time
	types      map[Type]bool

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the notifier. Without one, no notifications are sent.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithDispatcher sets how notification jobs are run.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("leave.service")
		}
	}
}

// WithClock overrides the time source. The location of the returned time
// defines what "tomorrow" means.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAllowedTypes restricts the accepted leave types. An empty list
// accepts any non-empty type.
func WithAllowedTypes(types ...Type) Option {
	return func(s *Service) {
		if len(types) == 0 {
			s.types = nil
			return
		}
		s.types = make(map[Type]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
}

// NewService creates a service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: zap.L().Named("leave.service"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dispatcher == nil {
		s.dispatcher = NewGoDispatcher(s.logger)
	}
	return s
}

// =============================================================================
// READS
// =============================================================================

// List returns every record in store order.
func (s *Service) List(ctx context.Context) ([]Request, error) {
	return s.store.LoadAll(ctx)
}

// ResolveByToken returns the records controlled by token, in store order.
// An unknown token yields an empty slice.
func (s *Service) ResolveByToken(ctx context.Context, token string) ([]Request, error) {
	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	idx := groupIndexes(records, token)
	out := make([]Request, 0, len(idx))
	for _, i := range idx {
		out = append(out, records[i])
	}
	return out, nil
}

// =============================================================================
// SUBMISSION
// =============================================================================

// SubmitBatch creates one pending record per admitted date. All records
// share a new group id and token. When nothing is admitted it returns a
// *NoDatesAcceptedError and the store is left untouched.
func (s *Service) SubmitBatch(ctx context.Context, who Submitter, typ Type, note string, dates []string) (*BatchResult, error) {
	if err := s.validateSubmit(who, typ, note, dates); err != nil {
		return nil, err
	}

	token, err := NewToken()
	if err != nil {
		return nil, err
	}
	groupID := NewID()

	s.mu.Lock()
	result, err := s.submitLocked(ctx, who, typ, note, dates, groupID, token)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.logger.Info("batch submitted",
		zap.String("employee_id", who.EmployeeID),
		zap.String("group_id", groupID),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)),
	)

	summary := Summarize(result.Created)
	s.notify("submitted", func(ctx context.Context, n Notifier) error {
		return n.NotifySubmitted(ctx, summary)
	})

	return result, nil
}

func (s *Service) validateSubmit(who Submitter, typ Type, note string, dates []string) error {
	if strings.TrimSpace(who.Email) == "" || strings.TrimSpace(who.EmployeeID) == "" {
		return ErrUnauthenticated
	}
	if strings.TrimSpace(string(typ)) == "" {
		return &ValidationError{Field: "type", Message: "Missing type"}
	}
	if s.types != nil && !s.types[typ] {
		return &ValidationError{Field: "type", Message: "Unknown type " + string(typ)}
	}
	if len(dates) == 0 {
		return &ValidationError{Field: "dates", Message: "No dates provided"}
	}
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return &ValidationError{Field: "note", Message: "Note is too long"}
	}
	return nil
}

func (s *Service) submitLocked(ctx context.Context, who Submitter, typ Type, note string, dates []string, groupID, token string) (*BatchResult, error) {
	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	createdAt := now.UTC()
	result := &BatchResult{GroupID: groupID, Token: token}

	working := records
	for _, raw := range dates {
		date := strings.TrimSpace(raw)
		reason, ok := Evaluate(working, Candidate{EmployeeID: who.EmployeeID, Date: date, Type: typ}, now)
		if !ok {
			result.Skipped = append(result.Skipped, Skipped{Date: raw, Reason: reason})
			continue
		}

		rec := Request{
			ID:          NewID(),
			GroupID:     groupID,
			Token:       token,
			EmployeeID:  who.EmployeeID,
			Email:       who.Email,
			DisplayName: who.DisplayName,
			Name:        who.Email,
			Date:        date,
			Type:        typ,
			Note:        note,
			Status:      StatusPending,
			CreatedAt:   createdAt,
		}
		working = append(working, rec)
		result.Created = append(result.Created, rec)
	}

	if len(result.Created) == 0 {
		return nil, &NoDatesAcceptedError{Skipped: result.Skipped}
	}

	if err := s.store.SaveAll(ctx, working); err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// DECISIONS
// =============================================================================

// Approve approves every record of the group controlled by token.
func (s *Service) Approve(ctx context.Context, token, actor string) (*Decision, error) {
	return s.decide(ctx, token, ActionApprove, actor, "")
}

// Reject rejects every record of the group controlled by token.
func (s *Service) Reject(ctx context.Context, token, actor, reason string) (*Decision, error) {
	return s.decide(ctx, token, ActionReject, actor, strings.TrimSpace(reason))
}

func (s *Service) decide(ctx context.Context, token string, action Action, actor, reason string) (*Decision, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &ValidationError{Field: "token", Message: "Missing token"}
	}
	if strings.TrimSpace(actor) == "" {
		actor = DefaultActor
	}

	s.mu.Lock()
	dec, err := s.decideLocked(ctx, token, action, actor, reason)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if dec.Outcome != OutcomeApplied {
		s.logger.Info("decision not applied",
			zap.String("action", string(action)),
			zap.String("outcome", string(dec.Outcome)),
			zap.String("group_id", dec.Summary.GroupID),
		)
		return dec, nil
	}

	s.logger.Info("decision applied",
		zap.String("action", string(action)),
		zap.String("group_id", dec.Summary.GroupID),
		zap.String("actor", actor),
		zap.Int("records", len(dec.Records)),
	)

	summary := dec.Summary
	switch action {
	case ActionApprove:
		s.notify("approved", func(ctx context.Context, n Notifier) error {
			return n.NotifyApproved(ctx, summary)
		})
	case ActionReject:
		s.notify("rejected", func(ctx context.Context, n Notifier) error {
			return n.NotifyRejected(ctx, summary, reason)
		})
	}
	return dec, nil
}

func (s *Service) decideLocked(ctx context.Context, token string, action Action, actor, reason string) (*Decision, error) {
	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	idx := groupIndexes(records, token)
	if len(idx) == 0 {
		return &Decision{Outcome: OutcomeNotFound}, nil
	}

	rep := records[idx[0]]
	next, outcome := Transition(rep.Status, action)
	dec := &Decision{Outcome: outcome, Status: next}

	switch outcome {
	case OutcomeApplied:
		at := s.now().UTC()
		for _, i := range idx {
			stamp(&records[i], next, at, actor, reason)
		}
		if err := s.store.SaveAll(ctx, records); err != nil {
			return nil, err
		}
		dec.DecidedAt = &at
		dec.DecidedBy = actor
		dec.Reason = reason
	default:
		dec.DecidedAt, dec.DecidedBy, dec.Reason = decisionOf(rep)
	}

	dec.Records = make([]Request, 0, len(idx))
	for _, i := range idx {
		dec.Records = append(dec.Records, records[i])
	}
	dec.Summary = Summarize(dec.Records)
	dec.Summary.DecidedBy = dec.DecidedBy
	dec.Summary.RejectionReason = dec.Reason
	return dec, nil
}

// decisionOf reports who decided a terminal record and when.
func decisionOf(r Request) (*time.Time, string, string) {
	switch r.Status {
	case StatusApproved:
		return r.ApprovedAt, r.ApprovedBy, ""
	case StatusRejected:
		return r.RejectedAt, r.RejectedBy, r.RejectionReason
	}
	return nil, "", ""
}

func (s *Service) notify(kind string, send func(ctx context.Context, n Notifier) error) {
	if s.notifier == nil {
		return
	}
	n := s.notifier
	s.dispatcher.Dispatch(kind, func(ctx context.Context) error {
		return send(ctx, n)
	})
}
