package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"orderflow/internal/app/decision"
	"orderflow/internal/app/order"
	"orderflow/internal/app/subscriber"
	"orderflow/internal/app/timeout"
	"orderflow/internal/bus"
	"orderflow/internal/config"
	"orderflow/internal/connections/database"
	"orderflow/internal/connections/kafkabus"
	"orderflow/internal/connections/rabbitmq"
	"orderflow/internal/connections/redisdb"
	"orderflow/internal/idempotency"
	"orderflow/internal/logger"
	"orderflow/internal/metrics"
	"orderflow/internal/notifier"
	"orderflow/internal/repository"
	"orderflow/internal/scheduler"
	"orderflow/internal/tracing"
	"orderflow/internal/workflow"
)

func main() {
	mode := flag.String("mode", "", "order-service | decision-service | timeout-worker | notification-subscriber")
	port := flag.Int("port", 0, "http port for services that expose HTTP")
	cfgPath := flag.String("config", "config.yml", "path to YAML config")
	flag.Parse()

	if *mode == "" {
		fmt.Fprintln(os.Stderr, "--mode is required: order-service | decision-service | timeout-worker | notification-subscriber")
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	lg := logger.New(*mode)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracerProvider(*mode, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			lg.Error().Err(err).Str("action", "tracing_init_failed").Send()
			os.Exit(1)
		}
		defer tp.Shutdown(context.Background())
	}

	if err := run(ctx, *mode, *port, cfg, lg); err != nil {
		lg.Error().Err(err).Str("action", "fatal").Send()
		os.Exit(1)
	}
}

func run(ctx context.Context, mode string, port int, cfg *config.Config, lg zerolog.Logger) error {
	switch mode {
	case "order-service":
		if port == 0 {
			port = 3000
		}
		eng, deps, err := buildEngine(ctx, cfg, lg)
		if err != nil {
			return err
		}
		defer deps.close()
		m := metrics.New("order_service")
		h := order.NewHandler(eng, deps.orders, deps.mq, m, lg)
		lg.Info().Str("action", "service_started").Int("port", port).Send()
		return order.Run(ctx, port, h)

	case "decision-service":
		if port == 0 {
			port = 3001
		}
		eng, deps, err := buildEngine(ctx, cfg, lg)
		if err != nil {
			return err
		}
		defer deps.close()
		m := metrics.New("decision_service")
		h := decision.NewHandler(eng, deps.mq, m, lg)
		lg.Info().Str("action", "service_started").Int("port", port).Send()
		return decision.Run(ctx, port, h)

	case "timeout-worker":
		eng, deps, err := buildEngine(ctx, cfg, lg)
		if err != nil {
			return err
		}
		defer deps.close()
		m := metrics.New("timeout_worker")
		lg.Info().Str("action", "service_started").Send()
		return timeout.NewWorker(deps.mq, eng, m, lg).Run(ctx)

	case "notification-subscriber":
		mq, err := rabbitmq.Dial(cfg.RabbitMQ)
		if err != nil {
			return fmt.Errorf("rabbitmq connect: %w", err)
		}
		defer mq.Close()
		if err := mq.DeclareTopology(); err != nil {
			return fmt.Errorf("rabbitmq topology: %w", err)
		}
		events := kafkabus.NewClient(cfg.Kafka.Brokers).NewReader(cfg.Kafka.EventsTopic, "notification-subscriber")
		lg.Info().Str("action", "service_started").Send()
		return subscriber.New(mq, events, lg).Run(ctx)

	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

type engineDeps struct {
	orders *repository.OrdersPG
	mq     *rabbitmq.Client
	events *bus.Kafka
	closes []func()
}

func (d *engineDeps) close() {
	for i := len(d.closes) - 1; i >= 0; i-- {
		d.closes[i]()
	}
}

func buildEngine(ctx context.Context, cfg *config.Config, lg zerolog.Logger) (*workflow.Engine, *engineDeps, error) {
	deps := &engineDeps{}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	deps.closes = append(deps.closes, pool.Close)

	mq, err := rabbitmq.Dial(cfg.RabbitMQ)
	if err != nil {
		deps.close()
		return nil, nil, fmt.Errorf("rabbitmq connect: %w", err)
	}
	deps.mq = mq
	deps.closes = append(deps.closes, mq.Close)
	if err := mq.DeclareTopology(); err != nil {
		deps.close()
		return nil, nil, fmt.Errorf("rabbitmq topology: %w", err)
	}

	rdb, err := redisdb.Connect(ctx, cfg.Redis)
	if err != nil {
		deps.close()
		return nil, nil, fmt.Errorf("redis connect: %w", err)
	}
	deps.closes = append(deps.closes, func() { _ = rdb.Close() })

	writer := kafkabus.NewClient(cfg.Kafka.Brokers).NewWriter(cfg.Kafka.EventsTopic)
	events := bus.NewKafka(writer, lg)
	deps.events = events
	deps.closes = append(deps.closes, func() { _ = events.Close() })

	orders := repository.NewOrdersPG(pool)
	instances := repository.NewInstancesPG(pool)
	deps.orders = orders

	notify := notifier.NewRabbit(mq, lg)
	guard := idempotency.NewRedisGuard(rdb, cfg.Workflow.IdempotencyTTL())
	step := workflow.NewNotificationStep(notify, events, guard, lg)
	resolver := workflow.NewResolver(orders, events, notify, lg)
	timer := scheduler.NewRabbit(mq, lg)

	eng := workflow.NewEngine(orders, instances, events, step, resolver, timer, workflow.EngineConfig{
		Wait:               cfg.Workflow.Wait(),
		MaxDecisionRetries: cfg.Workflow.MaxDecisionRetries,
	}, lg)
	return eng, deps, nil
}
