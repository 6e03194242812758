// Package version exposes build metadata for alarm-server and alarm-ctl.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. The daemon logs them at startup and both binaries print them
// through the `version` subcommand.
package version
