package rabbitmq

import (
	"fmt"
	"time"

	"github.com/RIKUY-ORG/Rikuy/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const maxConnectRetries = 7

func ConnectToRabbitmq(config RabbitmqConfig) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	waitTime := 1 * time.Second

	queueLogger := logger.DefaultOrNop()
	connectionString := fmt.Sprintf("amqp://%s:%s@%s:%d/", config.User, config.Password, config.Host, config.Port)

	for i := 0; i < maxConnectRetries; i++ {
		conn, err = amqp.Dial(connectionString)
		if err == nil {
			return conn, nil
		}
		queueLogger.Warnf("Attempt %d failed: %v. Retrying in %v...", i+1, err, waitTime)
		time.Sleep(waitTime)
		waitTime *= 2
	}
	return nil, err
}
