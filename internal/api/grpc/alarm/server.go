package alarm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	domain "github.com/oshokin/alarm-scheduler/internal/domain/alarm"
	"github.com/oshokin/alarm-scheduler/internal/logger"
	"github.com/oshokin/alarm-scheduler/internal/service/scheduler"
	"github.com/oshokin/alarm-scheduler/internal/timer"
)

// Machine-readable failure codes, carried as ErrorInfo.Reason.
const (
	ReasonAlarm      = "ALARM_ERROR"
	ReasonCancel     = "CANCEL_ERROR"
	ReasonDailyAlarm = "DAILY_ALARM_ERROR"

	errorDomain = "alarm.v1"
)

// Acknowledgements returned on success.
const (
	AckScheduled      = "Native alarm scheduled"
	AckCancelled      = "Native alarm cancelled"
	AckDailyScheduled = "Daily notification scheduled"
)

// Scheduler abstracts the operations the bridge depends on.
type Scheduler interface {
	Schedule(ctx context.Context, req *domain.Request) (*scheduler.Ack, error)
	ScheduleDaily(ctx context.Context, req *domain.Request) (*scheduler.Ack, error)
	Cancel(ctx context.Context, id int) (*scheduler.Ack, error)
	Pending(ctx context.Context) []scheduler.Pending
}

// Server implements BridgeServer on top of a Scheduler.
type Server struct {
	// scheduler performs the actual registrations.
	scheduler Scheduler
}

var _ BridgeServer = (*Server)(nil)

// NewServer wires the provided scheduler into a bridge handler.
func NewServer(s Scheduler) *Server {
	return &Server{
		scheduler: s,
	}
}

// ScheduleNativeAlarm registers a one-shot alarm.
func (s *Server) ScheduleNativeAlarm(ctx context.Context, args *structpb.Struct) (*wrapperspb.StringValue, error) {
	ctx = logger.WithName(ctx, "bridge")
	in := newArguments(args)

	req, err := oneShotRequest(in)
	if err != nil {
		return nil, failure(ReasonAlarm, "native alarm scheduling failed", err)
	}

	if _, err = s.scheduler.Schedule(ctx, req); err != nil {
		return nil, failure(ReasonAlarm, "native alarm scheduling failed", err)
	}

	return wrapperspb.String(AckScheduled), nil
}

// CancelNativeAlarm removes a pending alarm. Unknown identifiers succeed.
func (s *Server) CancelNativeAlarm(ctx context.Context, args *structpb.Struct) (*wrapperspb.StringValue, error) {
	ctx = logger.WithName(ctx, "bridge")

	id, err := newArguments(args).integer(argNotificationID, DefaultOneShotID)
	if err != nil {
		return nil, failure(ReasonCancel, "native alarm cancellation failed", err)
	}

	if _, err = s.scheduler.Cancel(ctx, id); err != nil {
		return nil, failure(ReasonCancel, "native alarm cancellation failed", err)
	}

	return wrapperspb.String(AckCancelled), nil
}

// ScheduleDailyNotification replaces whatever is pending under the identifier with a daily alarm.
func (s *Server) ScheduleDailyNotification(ctx context.Context, args *structpb.Struct) (*wrapperspb.StringValue, error) {
	ctx = logger.WithName(ctx, "bridge")

	req, err := dailyRequest(newArguments(args))
	if err != nil {
		return nil, failure(ReasonDailyAlarm, "daily notification scheduling failed", err)
	}

	if _, err = s.scheduler.ScheduleDaily(ctx, req); err != nil {
		return nil, failure(ReasonDailyAlarm, "daily notification scheduling failed", err)
	}

	return wrapperspb.String(AckDailyScheduled), nil
}

// ListPendingAlarms returns {"alarms": [...]} ordered by trigger instant.
func (s *Server) ListPendingAlarms(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	ctx = logger.WithName(ctx, "bridge")

	pending := s.scheduler.Pending(ctx)
	alarms := make([]any, 0, len(pending))

	for _, p := range pending {
		entry := map[string]any{
			argNotificationID: p.Request.Identifier,
			argTitle:          p.Request.Title,
			argBody:           p.Request.Body,
			"mode":            string(p.Request.Mode.Kind),
			"triggerAt":       p.TriggerAt.Format(time.RFC3339),
			"triggerMs":       float64(p.TriggerAt.UnixMilli()),
		}

		if p.Request.Mode.IsDaily() {
			entry[argHour] = p.Request.Mode.Hour
			entry[argMinute] = p.Request.Mode.Minute
		} else {
			entry[argDelaySeconds] = p.Request.Mode.DelaySeconds
		}

		alarms = append(alarms, entry)
	}

	result, err := structpb.NewStruct(map[string]any{"alarms": alarms})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode pending alarms: %v", err)
	}

	return result, nil
}

// oneShotRequest builds a one-shot request, applying defaults for absent arguments.
func oneShotRequest(in arguments) (*domain.Request, error) {
	title, err := in.str(argTitle, DefaultOneShotTitle)
	if err != nil {
		return nil, err
	}

	body, err := in.str(argBody, DefaultOneShotBody)
	if err != nil {
		return nil, err
	}

	delay, err := in.integer(argDelaySeconds, DefaultDelaySeconds)
	if err != nil {
		return nil, err
	}

	id, err := in.integer(argNotificationID, DefaultOneShotID)
	if err != nil {
		return nil, err
	}

	return &domain.Request{
		Identifier: id,
		Title:      title,
		Body:       body,
		Mode:       domain.OneShot(delay),
	}, nil
}

// dailyRequest builds a daily request, applying defaults for absent arguments.
func dailyRequest(in arguments) (*domain.Request, error) {
	title, err := in.str(argTitle, DefaultDailyTitle)
	if err != nil {
		return nil, err
	}

	body, err := in.str(argBody, DefaultDailyBody)
	if err != nil {
		return nil, err
	}

	hour, err := in.integer(argHour, DefaultHour)
	if err != nil {
		return nil, err
	}

	minute, err := in.integer(argMinute, DefaultMinute)
	if err != nil {
		return nil, err
	}

	id, err := in.integer(argNotificationID, DefaultDailyID)
	if err != nil {
		return nil, err
	}

	return &domain.Request{
		Identifier: id,
		Title:      title,
		Body:       body,
		Mode:       domain.Daily(hour, minute),
	}, nil
}

// failure converts err into a status carrying reason as ErrorInfo.
func failure(reason, message string, err error) error {
	st := status.New(codeOf(err), fmt.Sprintf("%s: %v", message, err))

	detailed, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: reason,
		Domain: errorDomain,
	})
	if detailErr != nil {
		return st.Err()
	}

	return detailed.Err()
}

// codeOf maps the cause to a gRPC code.
func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, errBadArgument), errors.Is(err, domain.ErrInvalidRequest):
		return codes.InvalidArgument
	case errors.Is(err, timer.ErrExactAlarmDenied):
		return codes.FailedPrecondition
	case errors.Is(err, timer.ErrStopped):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// ReasonOf extracts the ErrorInfo reason from a bridge error.
func ReasonOf(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}

	for _, detail := range st.Details() {
		if info, isInfo := detail.(*errdetails.ErrorInfo); isInfo {
			return info.GetReason()
		}
	}

	return ""
}
