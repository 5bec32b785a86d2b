package config

import "github.com/diintechteam9/cab-tracker/pkg/broker"

// BrokerConfig selects the cross-instance relay.
type BrokerConfig = broker.Config

func loadBrokerConfig() *BrokerConfig {
	return &BrokerConfig{
		Driver:  getEnv("BROKER_DRIVER", "none"),
		NATSURL: getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		Prefix:  getEnv("BROKER_PREFIX", "cabtracker"),
	}
}
