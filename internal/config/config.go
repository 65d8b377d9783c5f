package config

import (
	"fmt"

	"github.com/wb-go/wbf/config"
)

type serverConfig struct {
	Addr       string
	UploadsDir string
}

type dbConfig struct {
	MasterDSN string
	Slaves    []string
}

type redisConfig struct {
	URL string
}

type rabbitMQConfig struct {
	URL     string
	Retries int
}

type smtpConfig struct {
	Host     string
	Port     int
	From     string
	Password string
}

type fcmConfig struct {
	CredentialsFile string
}

type schedulerConfig struct {
	Interval string
}

type paymentsConfig struct {
	CheckoutBaseURL string
}

type Config struct {
	Server    serverConfig
	DB        dbConfig
	Redis     redisConfig
	RabbitMQ  rabbitMQConfig
	SMTP      smtpConfig
	FCM       fcmConfig
	Scheduler schedulerConfig
	Payments  paymentsConfig
}

func NewAppConfig(path string) (*Config, error) {
	appConfig := &Config{}
	cfg := config.New()
	if err := cfg.Load(path, "", ""); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	appConfig.Server.Addr = cfg.GetString("server.addr")
	appConfig.Server.UploadsDir = cfg.GetString("server.uploadsDir")

	appConfig.DB.MasterDSN = cfg.GetString("db.masterDSN")
	appConfig.DB.Slaves = append(appConfig.DB.Slaves, appConfig.DB.MasterDSN)

	appConfig.Redis.URL = cfg.GetString("redis.url")

	appConfig.RabbitMQ.URL = cfg.GetString("rabbitMQ.url")
	appConfig.RabbitMQ.Retries = cfg.GetInt("rabbitMQ.retries")

	appConfig.SMTP.Host = cfg.GetString("smtp.host")
	appConfig.SMTP.Port = cfg.GetInt("smtp.port")
	appConfig.SMTP.From = cfg.GetString("smtp.from")
	appConfig.SMTP.Password = cfg.GetString("smtp.password")

	appConfig.FCM.CredentialsFile = cfg.GetString("fcm.credentialsFile")

	appConfig.Scheduler.Interval = cfg.GetString("scheduler.interval")
	if appConfig.Scheduler.Interval == "" {
		appConfig.Scheduler.Interval = "1h"
	}

	appConfig.Payments.CheckoutBaseURL = cfg.GetString("payments.checkoutBaseURL")

	return appConfig, nil
}
