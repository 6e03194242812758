// Package alarm contains core domain types for the alarm scheduler.
//
// It defines Request (what to show and when), the Mode variants OneShot and
// Daily, the trigger-instant arithmetic used by the scheduler, and the Error
// type that classifies scheduling, cancellation and delivery failures.
package alarm
