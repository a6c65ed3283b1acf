package ledger

import (
	"context"
	"fmt"

	"github.com/charity/backend/internal/domain/donation"
	"github.com/charity/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Notifier delivers a goal-reached notification to stakeholders
type Notifier interface {
	NotifyGoalReached(ctx context.Context, event *donation.ProjectGoalReachedEvent) error
}

// LogNotifier writes goal-reached notifications to the log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyGoalReached logs the notification
func (n *LogNotifier) NotifyGoalReached(_ context.Context, event *donation.ProjectGoalReachedEvent) error {
	n.logger.Info("Donation project reached its goal",
		zap.String("project_id", event.ProjectID.String()),
		zap.String("title", event.Title),
		zap.String("target_amount", event.TargetAmount.String()),
		zap.String("current_amount", event.CurrentAmount.String()),
		zap.Time("completed_at", event.CompletedAt),
	)
	return nil
}

// GoalReachedNotifier forwards ProjectGoalReached events to a Notifier.
// Wrap it in an idempotent handler keyed by GoalReachedKey so each crossing
// notifies once even when the event is delivered more than once.
type GoalReachedNotifier struct {
	notifier Notifier
	logger   *zap.Logger
}

// NewGoalReachedNotifier creates a GoalReachedNotifier
func NewGoalReachedNotifier(notifier Notifier, logger *zap.Logger) *GoalReachedNotifier {
	return &GoalReachedNotifier{notifier: notifier, logger: logger}
}

// EventTypes returns the handled event type
func (h *GoalReachedNotifier) EventTypes() []string {
	return []string{donation.EventTypeProjectGoalReached}
}

// Handle notifies about a reached goal
func (h *GoalReachedNotifier) Handle(ctx context.Context, event shared.DomainEvent) error {
	reached, ok := event.(*donation.ProjectGoalReachedEvent)
	if !ok {
		h.logger.Warn("Unexpected event type for goal-reached notifier",
			zap.String("event_type", event.EventType()),
		)
		return nil
	}
	if err := h.notifier.NotifyGoalReached(ctx, reached); err != nil {
		return fmt.Errorf("notify goal reached for project %s: %w", reached.ProjectID, err)
	}
	return nil
}

// GoalReachedKey identifies one completion crossing of a project. A project
// that is reopened and completed again gets a new key.
func GoalReachedKey(event shared.DomainEvent) string {
	if reached, ok := event.(*donation.ProjectGoalReachedEvent); ok {
		return fmt.Sprintf("goal-reached:%s:%d", reached.ProjectID, reached.CompletedAt.UnixNano())
	}
	return "event:" + event.EventID().String()
}

var _ shared.EventHandler = (*GoalReachedNotifier)(nil)
