// Package logging defines the Logger interface every tutormesh component
// accepts and the slog backed TutorLogger used by the CLI.
//
// Libraries default to NoOpLogger, so nothing is written unless a logger is
// injected:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	svc := tutor.New(func(o *tutor.Options) { o.Logger = logger })
//
// Components that report completions, routing decisions or collaborative
// turns wrap their logger with AsDomain. A TutorLogger writes dedicated
// records for those; any other Logger receives them as plain key/value
// entries.
package logging
