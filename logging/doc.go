// Package logging provides the minimal logging interface used across ifai and
// adapters around it.
//
// Components accept a Logger through their options and fall back to
// NoOpLogger, so the engine, sessions and providers never require a logging
// backend. NewSlogLogger builds a structured logger writing text or JSON.
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "text", os.Stderr)
//	eng := engine.New(handler, func(o *engine.Options) { o.Logger = logger })
package logging
