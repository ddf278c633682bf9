package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Database struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

type RabbitMQ struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
}

type Kafka struct {
	Brokers     string `yaml:"brokers"` // comma-separated
	EventsTopic string `yaml:"events_topic"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Workflow struct {
	WaitSeconds        int `yaml:"wait_seconds"`
	MaxDecisionRetries int `yaml:"max_decision_retries"`
	IdempotencyTTLMin  int `yaml:"idempotency_ttl_minutes"`
}

func (w Workflow) Wait() time.Duration {
	return time.Duration(w.WaitSeconds) * time.Second
}

func (w Workflow) IdempotencyTTL() time.Duration {
	return time.Duration(w.IdempotencyTTLMin) * time.Minute
}

type Tracing struct {
	Enabled        bool   `yaml:"enabled"`
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
}

type Config struct {
	Database Database `yaml:"database"`
	RabbitMQ RabbitMQ `yaml:"rabbitmq"`
	Kafka    Kafka    `yaml:"kafka"`
	Redis    Redis    `yaml:"redis"`
	Workflow Workflow `yaml:"workflow"`
	Tracing  Tracing  `yaml:"tracing"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.RabbitMQ.Port == 0 {
		c.RabbitMQ.Port = 5672
	}
	if c.RabbitMQ.VHost == "" {
		c.RabbitMQ.VHost = "/"
	}
	if c.Kafka.EventsTopic == "" {
		c.Kafka.EventsTopic = "order-events"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Workflow.WaitSeconds == 0 {
		c.Workflow.WaitSeconds = 600
	}
	if c.Workflow.MaxDecisionRetries == 0 {
		c.Workflow.MaxDecisionRetries = 3
	}
	if c.Workflow.IdempotencyTTLMin == 0 {
		c.Workflow.IdempotencyTTLMin = 60
	}
	if c.Tracing.JaegerEndpoint == "" {
		c.Tracing.JaegerEndpoint = "http://localhost:14268/api/traces"
	}
}

func (c *Config) validate() error {
	if c.Database.Host == "" || c.Database.User == "" || c.Database.Database == "" {
		return fmt.Errorf("database config incomplete")
	}
	if c.RabbitMQ.Host == "" || c.RabbitMQ.User == "" {
		return fmt.Errorf("rabbitmq config incomplete")
	}
	if c.Kafka.Brokers == "" {
		return fmt.Errorf("kafka brokers are required")
	}
	return nil
}
