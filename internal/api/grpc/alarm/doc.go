// Package alarm implements the gRPC bridge callers use to schedule alarms.
//
// The service alarm.v1.NativeAlarmBridge is declared by hand: every method
// takes a google.protobuf.Struct of named arguments, so older callers that
// omit fields keep working with the documented defaults. Failures are gRPC
// statuses carrying an errdetails.ErrorInfo whose Reason is the
// machine-readable code (ALARM_ERROR, CANCEL_ERROR, DAILY_ALARM_ERROR).
package alarm
