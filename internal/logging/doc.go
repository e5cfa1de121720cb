// Package logging provides structured logging for the reader service and console.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used throughout the repository: Modbus register traffic, HTTP
// requests handled by the configuration service, websocket notification
// streams, and operator notifications.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (register hex dumps, websocket frames)
//   - Info: Normal operations (requests, register writes, notifications)
//   - Warn: Non-fatal issues (error notifications, dropped subscribers)
//   - Error: Fatal issues (startup failures)
//
// # Specialized Logging
//
// Register Logging:
//
//	logging.LogRegisterRead("holding", 0x0000, 8, data)
//	logging.LogRegisterWrite(0x0000, 8, data)
//
// HTTP Request Logging (gin):
//
//	router.Use(logging.GinMiddleware())
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given and MODBUSREADER_LOG_LEVEL is unset the logger is a
// no-op, so CLI output stays clean.
package logging
