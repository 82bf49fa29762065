package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/omeyang/xtenancy/pkg/config/xconf"
	"github.com/omeyang/xtenancy/pkg/observability/xlog"
	"github.com/omeyang/xtenancy/pkg/tenancy/xallow"
	"github.com/omeyang/xtenancy/pkg/tenancy/xtenancy"
)

var errConfig = errors.New("invalid config")

type appConfig struct {
	HTTP    httpConfig       `koanf:"http"`
	GRPC    grpcConfig       `koanf:"grpc"`
	Log     logConfig        `koanf:"log"`
	Tenancy xtenancy.Config  `koanf:"tenancy"`
	Allow   allowConfig      `koanf:"allow"`
	Kafka   kafkaConfig      `koanf:"kafka"`
	Stop    shutdownSettings `koanf:"shutdown"`
}

type httpConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
}

type grpcConfig struct {
	Addr string `koanf:"addr"`
}

type logConfig struct {
	Level    string        `koanf:"level"`
	Format   string        `koanf:"format"`
	File     string        `koanf:"file"`
	Rotation xlog.Rotation `koanf:"rotation"`
}

// allowConfig 租户白名单：mode 为 static 时取 tenants 并随文件热更新，
// 为 redis 时读 Redis 集合。
type allowConfig struct {
	Mode    string      `koanf:"mode"`
	Tenants []string    `koanf:"tenants"`
	Redis   redisConfig `koanf:"redis"`
}

type redisConfig struct {
	Addrs    []string `koanf:"addrs"`
	Password string   `koanf:"password"`
	DB       int      `koanf:"db"`
	Key      string   `koanf:"key"`
}

type kafkaConfig struct {
	Brokers string   `koanf:"brokers"`
	GroupID string   `koanf:"group_id"`
	Topics  []string `koanf:"topics"`
}

type shutdownSettings struct {
	Timeout time.Duration `koanf:"timeout"`
}

const (
	allowNone   = ""
	allowStatic = "static"
	allowRedis  = "redis"
)

func defaultAppConfig() appConfig {
	return appConfig{
		HTTP: httpConfig{Addr: ":8080", ReadHeaderTimeout: 5 * time.Second},
		GRPC: grpcConfig{Addr: ":9090"},
		Log:  logConfig{Level: "info", Format: "text"},
		Tenancy: xtenancy.Config{
			Identifier:       "X-Tenant-Id",
			ProvisionTimeout: 30 * time.Second,
		},
		Allow: allowConfig{Redis: redisConfig{Key: xallow.DefaultRedisKey}},
		Stop:  shutdownSettings{Timeout: 15 * time.Second},
	}
}

func loadAppConfig(cfg xconf.Config) (appConfig, error) {
	app := defaultAppConfig()
	if err := cfg.Unmarshal("", &app); err != nil {
		return appConfig{}, fmt.Errorf("%w: %w", errConfig, err)
	}
	if err := app.validate(); err != nil {
		return appConfig{}, err
	}
	return app, nil
}

func (c appConfig) validate() error {
	if c.Tenancy.URI == "" {
		return fmt.Errorf("%w: tenancy.uri is required", errConfig)
	}
	switch c.Allow.Mode {
	case allowNone, allowStatic:
	case allowRedis:
		if len(c.Allow.Redis.Addrs) == 0 {
			return fmt.Errorf("%w: allow.redis.addrs is required", errConfig)
		}
	default:
		return fmt.Errorf("%w: unknown allow.mode %q", errConfig, c.Allow.Mode)
	}
	if c.Kafka.enabled() && (c.Kafka.Brokers == "" || c.Kafka.GroupID == "") {
		return fmt.Errorf("%w: kafka.brokers and kafka.group_id are required", errConfig)
	}
	return nil
}

func (k kafkaConfig) enabled() bool { return len(k.Topics) > 0 }

func (k kafkaConfig) configMap() *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers": k.Brokers,
		"group.id":          k.GroupID,
		"auto.offset.reset": "earliest",
	}
}

// staticTenants 读取当前文件中的白名单，用于热更新。
func staticTenants(cfg xconf.Config) []string {
	return cfg.Client().Strings("allow.tenants")
}
