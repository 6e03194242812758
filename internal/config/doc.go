// Package config defines the settings shared by alarm-server and alarm-ctl and
// provides helpers to load, validate and save them in YAML format, plus a
// file watcher that republishes the settings when the file changes.
package config
