package logger

import "sync"

type LoggerArg struct {
	Key   string
	Value string
}

type GlobalLoggerConfig struct {
	Args   []LoggerArg
	Config LoggerConfig
}

var (
	defaultLogger     *Logger
	onceLogger        sync.Once
	initializedLogger bool
)

func InitDefaultLogger(config GlobalLoggerConfig) {
	onceLogger.Do(func() {
		defaultLogger = NewFromConfig(config.Config)
		ctx := defaultLogger.zl.With()
		for _, arg := range config.Args {
			ctx = ctx.Str(arg.Key, arg.Value)
		}
		defaultLogger.zl = ctx.Logger()

		initializedLogger = true
	})
}

func Default() *Logger {
	if !initializedLogger {
		panic("Default logger not initialized: call InitDefaultLogger() first")
	}
	return defaultLogger
}

// DefaultOrNop returns the process logger when it exists, a discarding one otherwise.
func DefaultOrNop() *Logger {
	if !initializedLogger {
		return Nop()
	}
	return defaultLogger
}
