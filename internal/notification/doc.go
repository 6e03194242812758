// Package notification delivers user-visible notifications keyed by alarm
// identifier. Showing a notification with an identifier that is already
// displayed replaces it instead of adding a second one.
package notification
