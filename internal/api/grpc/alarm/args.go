package alarm

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"
)

// Argument names accepted by the bridge.
const (
	argTitle          = "title"
	argBody           = "body"
	argDelaySeconds   = "delaySeconds"
	argNotificationID = "notificationId"
	argHour           = "hour"
	argMinute         = "minute"
)

// Defaults applied when a caller omits an argument.
const (
	DefaultDelaySeconds     = 10
	DefaultHour             = 9
	DefaultMinute           = 0
	DefaultOneShotID        = 999
	DefaultDailyID          = 10000
	DefaultOneShotTitle     = "Native alarm"
	DefaultOneShotBody      = "This is a native notification"
	DefaultDailyTitle       = "Daily schedule reminder"
	DefaultDailyBody        = "Check today's schedule"
	maxIntegerArgumentValue = math.MaxInt32
)

var errBadArgument = errors.New("bad argument")

// arguments reads named values out of a Struct, falling back to defaults for absent or null fields.
type arguments struct {
	fields map[string]*structpb.Value
}

func newArguments(args *structpb.Struct) arguments {
	return arguments{fields: args.GetFields()}
}

// present reports whether name carries a non-null value.
func (a arguments) present(name string) (*structpb.Value, bool) {
	v, ok := a.fields[name]
	if !ok || v == nil {
		return nil, false
	}

	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false
	}

	return v, true
}

func (a arguments) str(name, fallback string) (string, error) {
	v, ok := a.present(name)
	if !ok {
		return fallback, nil
	}

	s, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		return "", fmt.Errorf("%w: %s must be a string", errBadArgument, name)
	}

	return s.StringValue, nil
}

func (a arguments) integer(name string, fallback int) (int, error) {
	v, ok := a.present(name)
	if !ok {
		return fallback, nil
	}

	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber {
		return 0, fmt.Errorf("%w: %s must be a number", errBadArgument, name)
	}

	if n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > maxIntegerArgumentValue {
		return 0, fmt.Errorf("%w: %s must be a 32-bit integer, got %v", errBadArgument, name, n.NumberValue)
	}

	return int(n.NumberValue), nil
}
