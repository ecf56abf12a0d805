package rabbitmq

import "github.com/RIKUY-ORG/Rikuy/pkg/utilities"

type RabbimqConfigJson struct {
	Enabled          bool                           `json:"enabled"`
	Host             string                         `json:"host"`
	Port             uint16                         `json:"port"`
	User             string                         `json:"user"`
	Password         string                         `json:"password"`
	PublishersConfig []RabbitmqPublishersConfigJson `json:"publishers"`
}

type RabbitmqConfig struct {
	Enabled          bool
	Host             string
	Port             uint16
	User             string
	Password         string
	PublishersConfig []RabbitmqPublishersConfig
}

func (rcj RabbimqConfigJson) ConvertToDomain() RabbitmqConfig {
	return RabbitmqConfig{
		Enabled:  rcj.Enabled,
		Host:     utilities.Ternary(rcj.Host == "", "rabbitmq", rcj.Host),
		Port:     utilities.Ternary(rcj.Port == 0, uint16(5672), rcj.Port),
		User:     utilities.EnvOr("RABBITMQ_USER", rcj.User),
		Password: utilities.EnvOr("RABBITMQ_PASSWORD", rcj.Password),
		PublishersConfig: utilities.ConvertJsonArrayToDomain[
			RabbitmqPublishersConfigJson,
			RabbitmqPublishersConfig,
		](rcj.PublishersConfig),
	}
}

type RabbitmqPublishersConfigJson struct {
	PublisherAlias string `json:"publisher_alias"`
	Exchange       string `json:"exchange"`
	ExchangeType   string `json:"exchange_type"`
	RoutingKey     string `json:"routing_key"`
}

type RabbitmqPublishersConfig struct {
	PublisherAlias PublisherAlias
	Exchange       string
	ExchangeType   string
	RoutingKey     string
}

func (rpcj RabbitmqPublishersConfigJson) ConvertToDomain() RabbitmqPublishersConfig {
	return RabbitmqPublishersConfig{
		PublisherAlias: PublisherAlias(rpcj.PublisherAlias),
		Exchange:       rpcj.Exchange,
		ExchangeType:   utilities.Ternary(rpcj.ExchangeType == "", "topic", rpcj.ExchangeType),
		RoutingKey:     rpcj.RoutingKey,
	}
}
