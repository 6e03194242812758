// Package scheduler is the core of the alarm daemon.
//
// Scheduler turns requests into trigger instants and registers them with the
// timer service under the request identifier. FireHandler is what the timer
// service calls back: it shows the notification and, for daily alarms,
// registers the next day's occurrence before returning. The timer service has
// no notion of recurrence; daily repetition exists only because every fire
// re-arms itself.
//
// The request travels through the timer service as an opaque payload (see
// EncodePayload) and is decoded only by the handler.
package scheduler
