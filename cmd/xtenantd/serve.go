package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/omeyang/xtenancy/pkg/config/xconf"
	"github.com/omeyang/xtenancy/pkg/lifecycle/xrun"
	"github.com/omeyang/xtenancy/pkg/mq/xkafka"
	"github.com/omeyang/xtenancy/pkg/observability/xlog"
	"github.com/omeyang/xtenancy/pkg/observability/xmetrics"
	"github.com/omeyang/xtenancy/pkg/storage/xmongo"
	"github.com/omeyang/xtenancy/pkg/tenancy/xallow"
	"github.com/omeyang/xtenancy/pkg/tenancy/xtenancy"
)

const serviceName = "xtenantd"

// healthMethods 健康检查不携带租户。
var healthMethods = []string{
	healthpb.Health_Check_FullMethodName,
	healthpb.Health_Watch_FullMethodName,
}

func checkAction(_ context.Context, cmd *cli.Command) error {
	cfg, err := xconf.New(cmd.String("config"), xconf.WithExpandEnv())
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	app, err := loadAppConfig(cfg)
	if err != nil {
		return err
	}
	w := cmd.Root().Writer
	_, err = fmt.Fprintf(w, "identifier=%s subdomain=%t uri=%s force_create=%t allow=%q kafka=%t\n",
		app.Tenancy.Identifier, app.Tenancy.Subdomain, app.Tenancy.URI,
		app.Tenancy.ForceCreateCollections, app.Allow.Mode, app.Kafka.enabled())
	return err
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := xconf.New(cmd.String("config"), xconf.WithExpandEnv())
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	app, err := loadAppConfig(cfg)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(app.Log)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	defer func() { _ = closeLog() }()

	obs, err := xmetrics.NewOTelObserver(xmetrics.WithInstrumentationName(serviceName))
	if err != nil {
		return err
	}

	d, err := newDaemon(cfg, app, logger, obs)
	if err != nil {
		return err
	}
	logger.Info(ctx, "xtenantd starting",
		slog.String("http", app.HTTP.Addr),
		slog.String("grpc", app.GRPC.Addr),
		slog.String("version", Version))
	return xrun.Run(ctx, []xrun.Option{xrun.WithLogger(logger), xrun.WithName(serviceName)}, d.services...)
}

func newLogger(c logConfig) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().SetLevelString(c.Level).SetFormat(c.Format)
	if c.File != "" {
		b = b.SetRotation(c.File, c.Rotation)
	}
	return b.Build()
}

// daemon 持有 serve 组装出的组件，services 交给 xrun 统一管理生命周期。
type daemon struct {
	tenancy  *xtenancy.Tenancy
	handler  http.Handler
	grpc     *grpc.Server
	services []xrun.Service
}

func newDaemon(cfg xconf.Config, app appConfig, logger xlog.Logger, obs xmetrics.Observer) (d *daemon, err error) {
	d = &daemon{}
	var cleanups []func() error
	defer func() {
		if err != nil {
			for _, fn := range cleanups {
				err = errors.Join(err, fn())
			}
		}
	}()

	validator, static, closeAllow, err := newValidator(app.Allow)
	if err != nil {
		return nil, err
	}
	if closeAllow != nil {
		cleanups = append(cleanups, closeAllow)
	}

	opts := append(app.Tenancy.Options(),
		xtenancy.WithLogger(logger),
		xtenancy.WithObserver(obs),
		xtenancy.WithDialer(xmongo.NewDialer(
			xmongo.WithObserver(obs),
			xmongo.WithAppName(serviceName),
		)),
	)
	if validator != nil {
		opts = append(opts, xtenancy.WithValidator(validator))
	}
	tn, err := xtenancy.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	cleanups = append(cleanups, func() error { return tn.Close(context.Background()) })
	if err := tn.Register(models()...); err != nil {
		return nil, err
	}
	d.tenancy = tn
	d.handler = newRouter(tn, logger)

	d.grpc = grpc.NewServer(
		grpc.ChainUnaryInterceptor(tn.UnaryServerInterceptor(xtenancy.WithSkipMethods(healthMethods...))),
		grpc.ChainStreamInterceptor(tn.StreamServerInterceptor(xtenancy.WithSkipMethods(healthMethods...))),
	)
	healthpb.RegisterHealthServer(d.grpc, health.NewServer())

	lis, err := net.Listen("tcp", app.GRPC.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen grpc %s: %w", app.GRPC.Addr, err)
	}
	cleanups = append(cleanups, lis.Close)

	timeout := app.Stop.Timeout
	httpSrv := &http.Server{
		Addr:              app.HTTP.Addr,
		Handler:           d.handler,
		ReadHeaderTimeout: app.HTTP.ReadHeaderTimeout,
	}
	d.services = []xrun.Service{
		{Name: "http", Run: xrun.HTTPServer(httpSrv, timeout)},
		{Name: "grpc", Run: xrun.GRPCServer(d.grpc, lis, timeout)},
	}
	if static != nil {
		d.services = append(d.services, watchAllowlist(cfg, static, tn, logger))
	}

	if app.Kafka.enabled() {
		c, err := xkafka.NewConsumer(app.Kafka.configMap(), app.Kafka.Topics,
			xkafka.WithLogger(logger), xkafka.WithObserver(obs))
		if err != nil {
			return nil, fmt.Errorf("create kafka consumer: %w", err)
		}
		cleanups = append(cleanups, c.Close)
		handler := xkafka.Middleware(tn, auditEvent, skipUnresolved(logger))
		d.services = append(d.services, xrun.Service{
			Name: "kafka",
			Run: func(ctx context.Context) error {
				defer func() { _ = c.Close() }()
				err := c.Run(ctx, handler)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			},
		})
	}

	// 连接池最后关闭：HTTP 与 gRPC 在同一次取消中排空请求。
	d.services = append(d.services, xrun.Service{
		Name: "tenancy",
		Run: xrun.Closer(func(ctx context.Context) error {
			if closeAllow != nil {
				defer func() { _ = closeAllow() }()
			}
			return tn.Close(ctx)
		}, timeout),
	})
	return d, nil
}

// newValidator 按 allow.mode 构造校验器。static 模式同时返回白名单，用于热更新。
func newValidator(c allowConfig) (xtenancy.Validator, *xallow.Static, func() error, error) {
	switch c.Mode {
	case allowStatic:
		allow := xallow.NewStatic(c.Tenants...)
		return allow, allow, nil, nil
	case allowRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    c.Redis.Addrs,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		allow, err := xallow.NewRedis(client, c.Redis.Key)
		if err != nil {
			return nil, nil, nil, errors.Join(err, client.Close())
		}
		return allow, nil, client.Close, nil
	default:
		return nil, nil, nil, nil
	}
}

// watchAllowlist 配置文件变化时重载静态白名单。
func watchAllowlist(cfg xconf.Config, allow *xallow.Static, tn *xtenancy.Tenancy, logger xlog.Logger) xrun.Service {
	return xrun.Service{
		Name: "allow-watch",
		Run: func(ctx context.Context) error {
			err := xconf.Watch(ctx, cfg, func(cfg xconf.Config, err error) {
				if err != nil {
					logger.Warn(ctx, "config reload failed", xlog.Err(err))
					return
				}
				n := reloadAllowlist(cfg, allow, tn)
				logger.Info(ctx, "tenant allowlist reloaded", xlog.Count(n))
			}, 0)
			if errors.Is(err, xconf.ErrNotReloadable) {
				return nil
			}
			return err
		},
	}
}

// reloadAllowlist 替换白名单并清空校验缓存，移出名单的租户立即被拒绝。
func reloadAllowlist(cfg xconf.Config, allow *xallow.Static, tn *xtenancy.Tenancy) int {
	allow.Replace(staticTenants(cfg))
	tn.ForgetValidations()
	return allow.Len()
}

// skipUnresolved 无法解析租户的消息记录后跳过，不阻塞分区。
func skipUnresolved(logger xlog.Logger) xkafka.ErrorFunc {
	return func(ctx context.Context, msg *kafka.Message, err error) error {
		logger.Warn(ctx, "drop message without tenant", xlog.Err(err),
			slog.String("key", string(msg.Key)))
		return nil
	}
}
