package logger

import (
	"fmt"

	"github.com/RIKUY-ORG/Rikuy/pkg/utilities/timeutil"

	"github.com/rs/zerolog"
)

type SinkFunc func(string, zerolog.Level, timeutil.TimeUTC)

func AddSinkToLoggerInstance(loggerInstance *Logger, sinkFunction SinkFunc) {
	loggerInstance.sink = sinkFunction
}

func (l *Logger) activateSinkFormatted(level zerolog.Level, format string, v ...interface{}) {
	if l.sink == nil {
		return
	}
	l.activateSink(level, fmt.Sprintf(format, v...))
}

func (l *Logger) activateSink(level zerolog.Level, msg string) {
	if l.sink != nil && level >= l.zl.GetLevel() {
		l.sink(msg, level, timeutil.NowUTC())
	}
}
