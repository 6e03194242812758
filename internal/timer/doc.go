// Package timer implements the exact-wake timer service the scheduler hands
// trigger instants to.
//
// Wake-ups are keyed by integer identifier: registering an identifier that is
// already pending replaces it in place, so at most one wake-up per identifier
// exists at any time. Pending wake-ups are written through to a wake.Repository
// and restored when Run starts, which lets them survive process restarts.
//
// The run loop sleeps until the earliest trigger instant, never longer than
// MaxSleep, so wall-clock steps, DST transitions and host suspend are noticed
// within a bounded delay. Each due wake-up is consumed (removed from memory and
// from the store) before its handler runs on a dedicated goroutine. Handlers may
// register new wake-ups, including for their own identifier.
package timer
