// Package client implements the alarm-ctl commands.
//
// Each command connects to the alarm server, sends one bridge call and prints
// the acknowledgement. Arguments the user did not set are left out of the
// request so the server applies its defaults.
package client
