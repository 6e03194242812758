package alarm

import "time"

// OneShotTrigger returns now shifted by delaySeconds.
// Zero and negative delays yield an instant at or before now.
func OneShotTrigger(now time.Time, delaySeconds int) time.Time {
	return now.Add(time.Duration(delaySeconds) * time.Second)
}

// NextDailyTrigger returns the next occurrence of hour:minute:00.000 in loc strictly after now.
//
// Advancing is done on the calendar (day+1), not by adding 24 hours, so the
// wall-clock time stays fixed across daylight-saving transitions.
func NextDailyTrigger(now time.Time, hour, minute int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}

	local := now.In(loc)
	year, month, day := local.Date()

	trigger := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if !trigger.After(now) {
		trigger = time.Date(year, month, day+1, hour, minute, 0, 0, loc)
	}

	return trigger
}

// FollowingDailyTrigger returns hour:minute on the calendar day after prev's local date.
func FollowingDailyTrigger(prev time.Time, hour, minute int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}

	year, month, day := prev.In(loc).Date()

	return time.Date(year, month, day+1, hour, minute, 0, 0, loc)
}

// TriggerAt computes the trigger instant for the request scheduled at now.
func (r *Request) TriggerAt(now time.Time, loc *time.Location) time.Time {
	if r.Mode.IsDaily() {
		return NextDailyTrigger(now, r.Mode.Hour, r.Mode.Minute, loc)
	}

	return OneShotTrigger(now, r.Mode.DelaySeconds)
}
