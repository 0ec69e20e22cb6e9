// Package logger provides the structured logging interface used across the
// archiver.
//
// It wraps zerolog with a small interface so packages can accept a Logger
// and tests can swap in a TestLogger or a no-op logger:
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "info"})
//	log := logger.GetLogger().WithField("stage", "ratings")
//	log.InfoWithFields("Stage finished", map[string]interface{}{"ratings": 12})
//
// Console output is colorized and written to stderr. When a log file is
// configured, entries are written to both the console and the file.
// Setting Debug forces the debug level regardless of Level.
package logger
