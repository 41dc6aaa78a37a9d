package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/cdsensor/infra/logger"
)

func main() {
	cfg := parseFlags()
	log := logger.New("simulator")
	if err := (&cfg).Validate(); err != nil {
		log.Errorf("invalid config: %v", err)
		os.Exit(1)
	}
	if cfg.Verbose {
		_ = logger.Configure("debug", "")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli, err := newMQTTClient(cfg.Broker, "cdsensor-sim-"+uuid.NewString())
	if err != nil {
		log.Errorf("mqtt: %v", err)
		os.Exit(1)
	}
	defer cli.Disconnect(250)

	bridge := NewBridge(GenerateFleet(FleetConfig{Size: cfg.Count, Seed: cfg.Seed}), cfg, pahoSender(cli), log)
	if cfg.RequestTopic != "" && cfg.ResponsePrefix != "" {
		if token := cli.Subscribe(cfg.RequestTopic, 0, bridge.OnRequest); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe %s: %v", cfg.RequestTopic, token.Error())
			os.Exit(1)
		}
	}
	log.Infof("simulating %d vehicles every %s", cfg.Count, cfg.Interval)
	if err := bridge.Run(ctx); err != nil {
		log.Errorf("simulator: %v", err)
		os.Exit(1)
	}
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.IntVar(&cfg.Count, "count", 2, "number of vehicles")
	flag.DurationVar(&cfg.Interval, "interval", 30*time.Second, "snapshot publish interval")
	flag.StringVar(&cfg.StatePrefix, "state-prefix", "cdsensor/snapshot/state", "topic prefix of pushed snapshots, empty disables push")
	flag.StringVar(&cfg.RequestTopic, "request-topic", "cdsensor/snapshot/request", "topic of poll requests")
	flag.StringVar(&cfg.ResponsePrefix, "response-prefix", "cdsensor/snapshot/response", "topic prefix of poll responses")
	flag.Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "random seed")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "enable debug logging")
	flag.Parse()
	return cfg
}
