package config

import (
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	IsDebug *bool `yaml:"is_debug" env:"IS_DEBUG" env-default:"false"`
	Station struct {
		ID          string `yaml:"id" env:"STATION_ID" env-default:"tux-evse-001"`
		Vendor      string `yaml:"vendor" env:"STATION_VENDOR" env-default:"tux-evse"`
		Model       string `yaml:"model" env:"STATION_MODEL" env-default:"Tux-Evse OCPP-1.6"`
		Firmware    string `yaml:"firmware" env:"STATION_FIRMWARE" env-default:"v1234"`
		ConnectorID int    `yaml:"connector_id" env:"STATION_CONNECTOR_ID" env-default:"1"`
	} `yaml:"station"`
	Backend struct {
		URL               string `yaml:"url" env:"BACKEND_URL" env-default:"ws://localhost:8887"`
		TLS               bool   `yaml:"tls_enabled" env:"TLS_ENABLED" env-default:"false"`
		CACertificate     string `yaml:"ca_certificate" env:"CA_CERTIFICATE_PATH" env-default:""`
		HeartbeatInterval int    `yaml:"heartbeat_interval" env:"HEARTBEAT_INTERVAL" env-default:"600"`
	} `yaml:"backend"`
	Bus struct {
		URL            string `yaml:"url" env:"NATS_URL" env-default:"nats://localhost:4222"`
		RequestTimeout int    `yaml:"request_timeout" env:"NATS_REQUEST_TIMEOUT" env-default:"30"`
	} `yaml:"bus"`
	MockMeter bool `yaml:"mock_meter" env:"MOCK_METER" env-default:"false"`
}

var instance *Config
var once sync.Once

func GetConfig() (*Config, error) {
	var err error
	once.Do(func() {
		log.Println("reading config")
		instance = &Config{}
		if err = cleanenv.ReadConfig("config.yml", instance); err != nil {
			// fall back to env-only configuration
			instance = &Config{}
			if envErr := cleanenv.ReadEnv(instance); envErr != nil {
				desc, _ := cleanenv.GetDescription(instance, nil)
				log.Println(desc)
				instance = nil
				err = envErr
				return
			}
			err = nil
		}
	})
	return instance, err
}
