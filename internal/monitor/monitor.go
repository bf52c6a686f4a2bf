// Package monitor records build task completions reported on the event bus.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/crater/internal/events"
	"github.com/alfredjeanlab/crater/internal/inflight"
	"github.com/alfredjeanlab/crater/internal/metrics"
	"github.com/alfredjeanlab/crater/internal/model"
	"github.com/alfredjeanlab/crater/internal/store"
)

// ErrIgnored is returned by HandleMessage for messages that carry no result.
var ErrIgnored = errors.New("message ignored")

// Handler turns task lifecycle events into stored build results.
type Handler struct {
	store     store.Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracker   *inflight.Tracker
}

// NewHandler creates a monitor backed by the given store. Recorded results
// are re-announced on pub; m may be nil.
func NewHandler(s store.Store, pub events.Publisher, m *metrics.Metrics, logger *slog.Logger) *Handler {
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	return &Handler{store: s, publisher: pub, metrics: m, logger: logger}
}

// TrackTasks makes the handler keep t current: scheduled tasks are tracked
// and finished tasks are released.
func (h *Handler) TrackTasks(t *inflight.Tracker) {
	h.tracker = t
}

// HandleMessage decodes one task event and records its outcome. Completed
// tasks become successes and failed tasks become failures. Exceptions mean
// the build never produced a verdict and are skipped, as are scheduling
// notices.
func (h *Handler) HandleMessage(ctx context.Context, msg events.Message) (*model.BuildResult, error) {
	var outcome model.Outcome
	switch msg.Topic {
	case events.TopicTaskScheduled:
		h.track(msg)
		return nil, ErrIgnored
	case events.TopicTaskCompleted:
		outcome = model.OutcomeSuccess
	case events.TopicTaskFailed:
		outcome = model.OutcomeFailure
	case events.TopicTaskException:
		var ev events.TaskFinished
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			h.metrics.PayloadRejected(msg.Topic)
			return nil, fmt.Errorf("decode %s payload: %w", msg.Topic, err)
		}
		// Lost tasks stay visible until the reaper evicts them.
		if ev.Reason != inflight.ReasonDeadlineExceeded {
			h.finish(ev.TaskID)
		}
		h.logger.Warn("monitor: task exception", "task_id", ev.TaskID, "reason", ev.Reason)
		return nil, ErrIgnored
	default:
		return nil, ErrIgnored
	}

	var ev events.TaskFinished
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		h.metrics.PayloadRejected(msg.Topic)
		return nil, fmt.Errorf("decode %s payload: %w", msg.Topic, err)
	}
	h.finish(ev.TaskID)

	result := &model.BuildResult{
		Toolchain: ev.Toolchain,
		CrateName: ev.CrateName,
		CrateVers: ev.CrateVers,
		Outcome:   outcome,
		TaskID:    ev.TaskID,
	}
	if err := model.ValidateBuildResult(result); err != nil {
		h.metrics.PayloadRejected(msg.Topic)
		return nil, err
	}

	if err := h.store.AddBuildResult(ctx, result); err != nil {
		return nil, fmt.Errorf("record result: %w", err)
	}
	h.metrics.ResultRecorded(string(outcome))

	if err := h.publisher.Publish(ctx, events.TopicResultRecorded, events.ResultRecorded{Result: result}); err != nil {
		h.logger.Warn("monitor: publish result", "task_id", result.TaskID, "err", err)
	}
	return result, nil
}

func (h *Handler) track(msg events.Message) {
	if h.tracker == nil {
		return
	}
	var ev events.TaskScheduled
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		h.metrics.PayloadRejected(msg.Topic)
		h.logger.Warn("monitor: bad scheduled task", "err", err)
		return
	}
	h.tracker.Track(ev.Task)
}

func (h *Handler) finish(taskID string) {
	if h.tracker != nil && taskID != "" {
		h.tracker.Finish(taskID)
	}
}

// StartSubscriber listens for task events on the bus and records their
// results. It blocks until ctx is cancelled.
func (h *Handler) StartSubscriber(ctx context.Context, sub events.Subscriber) error {
	ch, cancel, err := sub.Subscribe(events.TopicTaskAll)
	if err != nil {
		return fmt.Errorf("monitor: subscribe: %w", err)
	}
	defer cancel()

	h.logger.Info("monitor: subscriber started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("monitor: subscriber stopping")
			return nil
		case msg, ok := <-ch:
			if !ok {
				h.logger.Info("monitor: subscription channel closed")
				return nil
			}

			result, err := h.HandleMessage(ctx, msg)
			switch {
			case errors.Is(err, ErrIgnored):
			case err != nil:
				h.logger.Warn("monitor: bad task event", "topic", msg.Topic, "err", err)
			default:
				h.logger.Info("monitor: recorded result",
					"toolchain", result.Toolchain, "crate", result.CrateName,
					"vers", result.CrateVers, "outcome", result.Outcome)
			}
		}
	}
}
