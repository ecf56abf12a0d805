package rabbitmq

import (
	"fmt"

	"github.com/RIKUY-ORG/Rikuy/pkg/logger"
	logger_message "github.com/RIKUY-ORG/Rikuy/pkg/utilities/logger"
	"github.com/RIKUY-ORG/Rikuy/pkg/utilities/timeutil"

	"github.com/rs/zerolog"
)

func CreateRabbitmqLoggerSink(service string, publisher IRabbitmqPublisher) logger.SinkFunc {
	return func(msg string, level zerolog.Level, timestamp timeutil.TimeUTC) {
		loggerMessage := logger_message.LoggerMessage{
			Service:   service,
			Level:     level.String(),
			Message:   msg,
			Timestamp: timestamp,
		}

		if err := publisher.Publish(loggerMessage); err != nil {
			// the logger itself would recurse here
			fmt.Printf("Failed to publish log message to RabbitMQ: %v\n", err)
		}
	}
}
