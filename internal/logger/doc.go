// Package logger wraps zap to offer:
//   - a global sugared logger with a console or JSON encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - runtime level changes driven by the configuration watcher,
//   - leveled convenience functions (Infof, ErrorKV, etc.).
//
// Every component takes a context and extracts the logger from it, so names
// and fields attached upstream (alarm id, component) follow the call chain.
package logger
