package specmatic

import "github.com/EmmanuelMendoza/specmatic/pattern"

// Options configures matching, generation and test execution for a Feature.
type Options struct {
	// MaxDepth bounds nested named types while generating or comparing
	// (default: pattern.DefaultMaxDepth).
	MaxDepth int

	// GenerativeTests turns on negative test generation (default: false).
	GenerativeTests bool

	// Logging configuration
	LogLevel    string // "error", "warn", "info", "debug" (default: "warn")
	Logger      Logger // overrides LogLevel when set
	LogMaxNames int    // max scenario names listed in one log line (default: 5)
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		MaxDepth:        pattern.DefaultMaxDepth,
		GenerativeTests: false,
		LogLevel:        "warn",
		LogMaxNames:     5,
	}
}

func (o Options) logger() Logger {
	if o.Logger != nil {
		return o.Logger
	}
	if o.LogLevel == "" {
		return newNoopLogger()
	}
	return NewLogger(ParseLogLevel(o.LogLevel), nil)
}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return pattern.DefaultMaxDepth
	}
	return o.MaxDepth
}
