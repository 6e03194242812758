// Package common holds helpers shared by several services.
//
// It provides a lightweight gRPC client for the alarm bridge with timeouts and
// utilities to detect the current system actor (hostname/username), which the
// client forwards as request metadata so the daemon can log who asked.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
