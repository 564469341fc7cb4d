// Package logging provides structured logging using uber/zap.
//
// Two output modes are supported:
//   - Production: JSON lines for machine parsing
//   - Development: Colored console output for human readability
//
// Subsystems take a named child logger so entries can be filtered by
// component ("pty", "http", "ws", "tracing"). The level can be raised or
// lowered while the server runs.
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "debug", Development: true})
//	if err != nil {
//		return err
//	}
//	defer logger.Sync()
//	reg := pty.NewRegistry(pty.NativeSystem{}, cfg).WithLogger(logger.Component("pty"))
package logging
