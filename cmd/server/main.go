package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vogiaan1904/vcping/config"
	"github.com/vogiaan1904/vcping/internal/debounce"
	"github.com/vogiaan1904/vcping/internal/delivery/discord"
	grpcSvc "github.com/vogiaan1904/vcping/internal/delivery/grpc"
	httpHandler "github.com/vogiaan1904/vcping/internal/delivery/http"
	"github.com/vogiaan1904/vcping/internal/delivery/kafka/consumer"
	"github.com/vogiaan1904/vcping/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/vcping/internal/dispatch"
	"github.com/vogiaan1904/vcping/internal/infra/store"
	"github.com/vogiaan1904/vcping/internal/notify"
	"github.com/vogiaan1904/vcping/internal/occupancy"
	"github.com/vogiaan1904/vcping/internal/subscription"
	"github.com/vogiaan1904/vcping/pkg/clock"
	pkgDiscord "github.com/vogiaan1904/vcping/pkg/discord"
	pkgGrpc "github.com/vogiaan1904/vcping/pkg/grpc"
	pkgKafka "github.com/vogiaan1904/vcping/pkg/kafka"
	pkgLog "github.com/vogiaan1904/vcping/pkg/logger"
)

const healthRefreshInterval = 5 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateGateway(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})
	defer l.Sync()

	subStore, closeStore, err := store.Open(ctx, cfg, l)
	if err != nil {
		l.Fatalf(ctx, "Failed to open subscription store: %v", err)
	}
	defer closeStore()

	subSvc := subscription.NewService(subStore, l)

	session, err := pkgDiscord.NewSession(pkgDiscord.ClientConfig{Token: cfg.Discord.Token})
	if err != nil {
		l.Fatalf(ctx, "Failed to create Discord session: %v", err)
	}
	provider := discord.NewProvider(session, l)

	// Kafka is optional: without it the gateway feeds the dispatcher directly
	// and transitions are not published.
	var (
		prod producer.Producer
		pub  dispatch.TransitionPublisher
	)
	if cfg.Kafka.Enabled {
		kafkaSyncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		prod = producer.NewProducer(kafkaSyncProd, l)
		pub = prod
		defer prod.Close()
	}

	clk := clock.Real()
	tracker := occupancy.NewTracker(provider, clk, l)
	guard := debounce.NewGuard(clk, cfg.Voice.ConfirmDelay, l)
	notifier := notify.NewNotifier(subSvc, provider, provider, provider, provider, notify.Config{
		Concurrency: cfg.Voice.NotifyConcurrency,
		Timeout:     cfg.Voice.NotifyTimeout,
	}, l)

	disp := dispatch.NewDispatcher(tracker, guard, notifier, pub, dispatch.Config{
		LaneBuffer: cfg.Voice.LaneBuffer,
	}, l)
	if err := disp.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start dispatcher: %v", err)
	}

	var sink discord.Sink = disp
	var cons *consumer.Consumer
	if cfg.Kafka.Enabled {
		kafkaConsGr, err := pkgKafka.NewConsumer(pkgKafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.ConsumerGroupID,
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka consumer: %v", err)
		}

		cons = consumer.NewConsumer(kafkaConsGr, disp, l)
		if err := cons.Start(ctx); err != nil {
			l.Fatalf(ctx, "Failed to start Kafka consumer: %v", err)
		}
		sink = discord.SinkFunc(prod.PublishVoiceState)
	}

	gw := discord.NewGateway(session, sink, subSvc, clk, discord.GatewayConfig{
		RegisterCommands: cfg.Discord.RegisterCommands,
	}, l)
	if err := gw.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start Discord gateway: %v", err)
	}

	// gRPC health server
	healthSvc := grpcSvc.NewHealthService(disp, l)
	lnr, err := pkgGrpc.Listen(cfg.Server.GRpcPort)
	if err != nil {
		l.Fatalf(ctx, "%v", err)
	}

	gRpcSrv := pkgGrpc.NewServer(l)
	healthSvc.Register(gRpcSrv)
	go healthSvc.Run(ctx, healthRefreshInterval)

	go func() {
		l.Infof(ctx, "gRPC server is listening on port: %d", cfg.Server.GRpcPort)
		if err := gRpcSrv.Serve(lnr); err != nil {
			l.Fatalf(ctx, "Failed to serve gRPC: %v", err)
		}
	}()

	// http server
	var httpSrv *http.Server
	if cfg.Server.HTTPPort > 0 {
		handler := httpHandler.NewHTTPHandler(disp, tracker, subSvc, l)
		httpSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
			Handler:           handler.Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			l.Infof(ctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Fatalf(ctx, "Failed to serve HTTP: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info(ctx, "Server shutting down...")

	if err := gw.Close(); err != nil {
		l.Errorf(ctx, "Failed to close Discord gateway: %v", err)
	}
	if cons != nil {
		if err := cons.Close(); err != nil {
			l.Errorf(ctx, "Failed to close Kafka consumer: %v", err)
		}
	}
	if err := disp.Stop(); err != nil {
		l.Errorf(ctx, "Failed to stop dispatcher: %v", err)
	}

	if httpSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			l.Errorf(ctx, "Failed to shut down HTTP server: %v", err)
		}
		shutdownCancel()
	}

	cancel()
	healthSvc.Shutdown()
	gRpcSrv.GracefulStop()

	l.Info(ctx, "Server exited")
}
