package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"foscam2mqtt/internal/config"
	"foscam2mqtt/internal/engine"
	"foscam2mqtt/internal/foscam"
	"foscam2mqtt/internal/hooks"
	"foscam2mqtt/internal/logger"
	"foscam2mqtt/internal/metrics"
	"foscam2mqtt/internal/mqtt"
	"foscam2mqtt/internal/publisher"
	"foscam2mqtt/internal/webhook"

	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("foscam2mqtt", pflag.ExitOnError)
	flags := config.BindFlags(fs)
	_ = fs.Parse(os.Args[1:])

	// 1. Load Configuration
	cfg, err := config.LoadConfig(flags.ConfigPath)
	if err != nil {
		logger.Fatalf("Error loading config: %v", err)
	}
	flags.Apply(cfg)

	logger.SetLevel(cfg.LogLevel)
	if cfg.Quiet {
		logger.SetLevel("error")
	}
	if err := config.Validate(cfg); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Hooks.Paranoid && !cfg.Hooks.Obfuscate {
		logger.Warn("Paranoid mode requires obfuscated hooks, ignoring --paranoid")
		cfg.Hooks.Paranoid = false
	}

	// 2. Initialize Clients
	collector := metrics.NewCollector()
	camera := foscam.NewClient(cfg.Foscam, foscam.WithRecorder(collector))
	router := hooks.NewRouter(cfg.Hooks.Obfuscate)
	collector.TrackTokens(router.Len)
	syncer := hooks.NewSynchronizer(camera, router, cfg.Listen.URL, collector)

	var eng *engine.Engine
	mqttClient := mqtt.NewClient(cfg.MQTT,
		mqtt.WithWill(mqtt.Will{
			Topic:   cfg.MQTT.Topic + "/" + publisher.StateTopic,
			Payload: "0",
			QoS:     publisher.Availability.QoS,
			Retain:  publisher.Availability.Retain,
		}),
		mqtt.WithOnConnect(func() {
			_ = eng.Dispatch(engine.Command{Kind: engine.CmdRepublish})
		}),
	)
	pub := publisher.New(mqttClient, cfg.MQTT.Topic, config.GoLayout(cfg.DateFormat), collector)

	// 3. Initialize Engine
	triggerPayload := publisher.NewTriggerPayload(cfg.Hooks.Obfuscate)
	opts := []engine.EngineOption{engine.WithResyncInterval(cfg.Hooks.ResyncInterval)}
	if cfg.HomeAssistant.Discovery {
		opts = append(opts, engine.WithDiscovery(cfg.HomeAssistant.DiscoveryTopic, publisher.DiscoveryParams{
			TopicRoot:      cfg.MQTT.Topic,
			DeviceName:     cfg.HomeAssistant.DeviceName,
			DateFormat:     cfg.DateFormat,
			TriggerPayload: triggerPayload,
		}))
	}
	eng = engine.NewEngine(camera, syncer, pub, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineDone := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(engineDone)
	}()

	// 4. Subscribe to command topics, then connect
	for _, suffix := range eng.CommandTopics() {
		topic := pub.Topic(suffix)
		if err := mqttClient.Subscribe(topic, func(_ string, payload []byte) {
			eng.HandleCommand(suffix, payload)
		}); err != nil {
			logger.Fatalf("Failed to subscribe to %s: %v", topic, err)
		}
	}
	if err := mqttClient.Connect(10 * time.Second); err != nil {
		logger.Fatalf("Failed to connect to MQTT: %v", err)
	}

	// 5. Serve webhooks
	serverOpts := []webhook.ServerOption{webhook.WithMetrics(collector.Handler(), collector)}
	if cfg.HomeAssistant.Discovery {
		serverOpts = append(serverOpts, webhook.WithTriggerPayload(triggerPayload))
	}
	if cfg.Hooks.Paranoid {
		serverOpts = append(serverOpts, webhook.WithParanoidRotation(eng))
	}
	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Listen.Address, strconv.Itoa(cfg.Listen.Port)),
		Handler:           webhook.NewServer(router, camera, pub, serverOpts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Noticef("Listening for camera webhooks on %s (advertised as %s)", srv.Addr, cfg.Listen.URL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Webhook server failed: %v", err)
		}
	}()

	// 6. Wait for Signal
	<-ctx.Done()
	logger.Notice("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("Webhook server shutdown: %v", err)
	}
	<-engineDone

	eng.Shutdown(cfg.HomeAssistant.Cleanup)
	mqttClient.Disconnect()
	logger.Notice("Stopped")
}
