package notify

import (
	"context"

	"github.com/warp/leave-tracker/leave"
	"go.uber.org/zap"
)

// Log is the notifier used when email is disabled. It records what would
// have been sent.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger ...*zap.Logger) *Log {
	l := zap.L().Named("notify.log")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("notify.log")
	}
	return &Log{logger: l}
}

func (n *Log) NotifySubmitted(_ context.Context, g leave.GroupSummary) error {
	n.logger.Info("email disabled, skipping submitted notification", groupFields(g)...)
	return nil
}

func (n *Log) NotifyApproved(_ context.Context, g leave.GroupSummary) error {
	n.logger.Info("email disabled, skipping approved notification", groupFields(g)...)
	return nil
}

func (n *Log) NotifyRejected(_ context.Context, g leave.GroupSummary, reason string) error {
	n.logger.Info("email disabled, skipping rejected notification",
		append(groupFields(g), zap.String("reason", reason))...)
	return nil
}

func groupFields(g leave.GroupSummary) []zap.Field {
	return []zap.Field{
		zap.String("group_id", g.GroupID),
		zap.String("employee_id", g.EmployeeID),
		zap.String("start", g.StartDate()),
		zap.String("end", g.EndDate()),
		zap.Int("days", g.TotalDays()),
	}
}
