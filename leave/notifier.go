package leave

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Notifier delivers lifecycle notifications for a submission group.
type Notifier interface {
	NotifySubmitted(ctx context.Context, g GroupSummary) error
	NotifyApproved(ctx context.Context, g GroupSummary) error
	NotifyRejected(ctx context.Context, g GroupSummary, reason string) error
}

// Dispatcher runs notification jobs off the request path. Failures are
// the dispatcher's to log; callers never see them.
type Dispatcher interface {
	Dispatch(kind string, job func(ctx context.Context) error)
}

// GoDispatcher runs every job on its own goroutine with a timeout.
type GoDispatcher struct {
	Timeout time.Duration
	logger  *zap.Logger
}

// NewGoDispatcher creates a dispatcher used when no queue is configured.
func NewGoDispatcher(logger ...*zap.Logger) *GoDispatcher {
	l := zap.L().Named("leave.dispatch")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.dispatch")
	}
	return &GoDispatcher{Timeout: 30 * time.Second, logger: l}
}

// Dispatch implements Dispatcher.
func (d *GoDispatcher) Dispatch(kind string, job func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
		defer cancel()
		if err := job(ctx); err != nil {
			d.logger.Error("notification failed", zap.String("kind", kind), zap.Error(err))
		}
	}()
}
