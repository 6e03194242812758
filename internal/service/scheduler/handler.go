package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/alarm-scheduler/internal/domain/alarm"
	"github.com/oshokin/alarm-scheduler/internal/logger"
	"github.com/oshokin/alarm-scheduler/internal/metrics"
	"github.com/oshokin/alarm-scheduler/internal/notification"
	"github.com/oshokin/alarm-scheduler/internal/timer"
)

// FireHandler is invoked by the timer service when an alarm comes due.
type FireHandler struct {
	scheduler *Scheduler
	sink      notification.Sink
	metrics   *metrics.Metrics
}

// NewFireHandler creates a handler delivering to sink and re-arming through scheduler.
func NewFireHandler(scheduler *Scheduler, sink notification.Sink, m *metrics.Metrics) *FireHandler {
	return &FireHandler{
		scheduler: scheduler,
		sink:      sink,
		metrics:   m,
	}
}

// OnFire shows the notification and, for daily alarms, re-arms the next day.
// Delivery failures are logged and never prevent the re-arm.
func (h *FireHandler) OnFire(ctx context.Context, wake timer.Wake) {
	ctx = logger.WithKV(logger.WithName(ctx, "fire"), "alarm_id", wake.ID)

	req, err := DecodePayload(wake.Payload)
	if err != nil {
		logger.ErrorKV(ctx, "Dropping alarm with undecodable payload", "error", err)

		return
	}

	// The timer key is authoritative for replace-by-id semantics.
	req.Identifier = wake.ID

	h.metrics.Fired(modeLabel(req))

	if err = h.deliver(ctx, req); err != nil {
		h.metrics.DeliveryFailed()
		logger.ErrorKV(ctx, "Notification delivery failed", "error", alarm.NewError(alarm.DeliveryError, req.Identifier, err))
	} else {
		logger.InfoKV(ctx, "Notification delivered", "title", req.Title)
	}

	if !req.Mode.IsDaily() {
		return
	}

	ack, err := h.scheduler.Rearm(ctx, req, wake)
	if errors.Is(err, timer.ErrSuperseded) {
		logger.InfoKV(ctx, "Daily alarm changed while firing, keeping the newer state")

		return
	}

	if err != nil {
		h.metrics.RearmFailed()
		logger.ErrorKV(ctx, "Daily alarm not re-armed, recurrence stops", "error", err)

		return
	}

	logger.InfoKV(ctx, "Daily alarm re-armed", "next_trigger_ms", ack.TriggerAt.UnixMilli())
}

// deliver calls the sink, turning a panic into an error.
func (h *FireHandler) deliver(ctx context.Context, req *alarm.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()

	return h.sink.Show(ctx, req.Identifier, req.Title, req.Body)
}
