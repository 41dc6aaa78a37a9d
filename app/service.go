package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/cdsensor/api/sensors"
	"github.com/kilianp07/cdsensor/config"
	"github.com/kilianp07/cdsensor/core/account"
	"github.com/kilianp07/cdsensor/core/attribute"
	"github.com/kilianp07/cdsensor/core/history"
	coremetrics "github.com/kilianp07/cdsensor/core/metrics"
	coremon "github.com/kilianp07/cdsensor/core/monitoring"
	"github.com/kilianp07/cdsensor/core/platform"
	"github.com/kilianp07/cdsensor/core/sensor"
	"github.com/kilianp07/cdsensor/core/units"
	"github.com/kilianp07/cdsensor/core/vehicle"
	"github.com/kilianp07/cdsensor/infra/hass"
	"github.com/kilianp07/cdsensor/infra/logger"
	"github.com/kilianp07/cdsensor/infra/metrics"
	inframon "github.com/kilianp07/cdsensor/infra/monitoring"
	"github.com/kilianp07/cdsensor/infra/mqtt"
	"github.com/kilianp07/cdsensor/infra/snapshot"
	"github.com/kilianp07/cdsensor/infra/telemetry"
	"github.com/kilianp07/cdsensor/internal/eventbus"
)

// Service wires the snapshot source, the sensor platform and its consumers.
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	memory    *account.Memory
	source    account.Source
	telemetry *telemetry.Manager
	platform  *platform.Platform
	hass      *hass.Publisher
	store     history.Store
	sink      coremetrics.MetricsSink
	clients   []*mqtt.PahoClient
	updated   chan struct{}
}

// Options overrides the collaborators New would otherwise build from the
// configuration. Zero fields are built as usual.
type Options struct {
	Source    account.Source
	Publisher mqtt.Publisher
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions is New with injected collaborators.
func NewWithOptions(cfg *config.Config, opts Options) (*Service, error) {
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	s := &Service{
		cfg:     cfg,
		log:     logger.New("service"),
		memory:  account.NewMemory(),
		updated: make(chan struct{}, 1),
	}
	if err := s.memory.OnUpdate(s.notify); err != nil {
		return nil, fmt.Errorf("account updates: %w", err)
	}
	if err := s.buildSource(opts.Source); err != nil {
		s.Close()
		return nil, err
	}

	s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	if cfg.History.Enabled {
		s.store, err = history.Open(history.Options{
			Backend:    cfg.History.Backend,
			Path:       cfg.History.Path,
			MaxSizeMB:  cfg.History.MaxSizeMB,
			MaxBackups: cfg.History.MaxBackups,
			MaxAgeDays: cfg.History.MaxAgeDays,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("history store: %w", err)
		}
	}
	if cfg.Hass.Enabled {
		pub := opts.Publisher
		if pub == nil {
			cli, err := mqtt.NewPahoClient(cfg.MQTT, "hass")
			if err != nil {
				s.Close()
				return nil, fmt.Errorf("hass mqtt client: %w", err)
			}
			s.clients = append(s.clients, cli)
			pub = cli
		}
		s.hass = hass.New(pub, cfg.Hass, logger.New("hass"))
	}

	popts := []platform.Option{
		platform.WithBus(eventbus.NewTypedBuffered[platform.Snapshot](cfg.EventBuffer)),
		platform.WithMetrics(s.sink),
	}
	if s.source != nil {
		popts = append(popts, platform.WithPrepare(s.reload))
	}
	s.platform = platform.New(logger.New("platform"), popts...)
	return s, nil
}

func (s *Service) buildSource(src account.Source) error {
	if src != nil {
		s.source = src
		return nil
	}
	switch s.cfg.Source.Type {
	case config.SourceFile:
		s.source = snapshot.NewFileSource(s.cfg.Source.Path)
	case config.SourceMQTT:
		cli, err := mqtt.NewPahoClient(s.cfg.MQTT, "source")
		if err != nil {
			return fmt.Errorf("source mqtt client: %w", err)
		}
		s.clients = append(s.clients, cli)
		m, err := telemetry.NewManager(cli, s.cfg.Source.MQTT, s.memory, logger.New("telemetry"), nil)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		s.telemetry = m
		if s.cfg.Source.MQTT.Pulls() {
			s.source = pullSource{m: m, vins: s.cfg.VINs}
		}
	default:
		return fmt.Errorf("unknown source type %q", s.cfg.Source.Type)
	}
	return nil
}

// pullSource requests snapshots and returns once the configured vehicles
// answered.
type pullSource struct {
	m    *telemetry.Manager
	vins []string
}

func (p pullSource) Load(ctx context.Context) ([]*vehicle.Vehicle, error) {
	if len(p.vins) > 0 {
		return p.m.LoadVINs(ctx, p.vins)
	}
	return p.m.Load(ctx)
}

func (s *Service) notify(string) {
	select {
	case s.updated <- struct{}{}:
	default:
	}
}

func (s *Service) reload(ctx context.Context) error {
	return s.memory.Refresh(ctx, s.source)
}

// Platform returns the sensor host.
func (s *Service) Platform() *platform.Platform { return s.platform }

// Setup loads the first snapshots and registers the sensors of the selected
// vehicles. It returns the number of registered sensors.
func (s *Service) Setup(ctx context.Context) (int, error) {
	if s.telemetry != nil {
		if err := s.telemetry.Start(ctx); err != nil {
			return 0, fmt.Errorf("telemetry start: %w", err)
		}
	}
	if s.source != nil {
		if err := s.reload(ctx); err != nil {
			return 0, err
		}
	} else if err := s.waitForVehicles(ctx); err != nil {
		return 0, err
	}

	vehicles, err := account.Select(s.memory.Vehicles(), s.cfg.VINs)
	if err != nil {
		return 0, err
	}
	reg := attribute.For(units.FromName(s.cfg.Units))
	sensorList := sensor.NewSensors(s.memory, reg, vehicles)
	entities := make([]platform.Entity, len(sensorList))
	for i, e := range sensorList {
		entities[i] = e
	}
	if err := s.platform.Add(entities...); err != nil {
		return 0, err
	}
	s.log.Infof("hosting %d sensors for %d vehicles", len(entities), len(vehicles))
	return len(entities), nil
}

// waitForVehicles blocks until pushed snapshots cover the configured VINs,
// or any vehicle when none are configured, or the source timeout elapsed.
func (s *Service) waitForVehicles(ctx context.Context) error {
	timeout := time.NewTimer(time.Duration(s.cfg.Source.MQTT.Timeout()) * time.Second)
	defer timeout.Stop()
	for !s.covered() {
		select {
		case <-s.updated:
		case <-timeout.C:
			s.log.Warnf("no complete snapshot set received after %ds", s.cfg.Source.MQTT.Timeout())
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Service) covered() bool {
	if len(s.cfg.VINs) == 0 {
		return len(s.memory.Vehicles()) > 0
	}
	for _, vin := range s.cfg.VINs {
		if _, ok := s.memory.Vehicle(vin); !ok {
			return false
		}
	}
	return true
}

func (s *Service) promEnabled() bool {
	for _, c := range s.cfg.Metrics.Sinks {
		if strings.EqualFold(c.Type, "prometheus") {
			return true
		}
	}
	return false
}

// Run sets the platform up, starts the snapshot consumers and refreshes the
// sensors until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	defer coremon.Recover()

	if _, err := s.Setup(ctx); err != nil {
		return err
	}
	bus := s.platform.Bus()
	metrics.StartEventCollector(ctx, bus, s.sink)
	if s.store != nil {
		history.NewRecorder(s.store, logger.New("history")).Start(ctx, bus)
	}
	if s.hass != nil {
		if err := s.hass.AnnounceAll(s.platform.Snapshots()); err != nil {
			s.log.Errorf("hass discovery: %v", err)
		}
		s.hass.Start(ctx, bus)
	}
	s.serveHTTP(ctx)

	s.log.Infof("refreshing sensors every %s", s.cfg.PollInterval())
	return s.platform.Run(ctx, s.cfg.PollInterval())
}

func (s *Service) serveHTTP(ctx context.Context) {
	var promHandler http.Handler
	if s.promEnabled() {
		promHandler = metrics.Handler(prometheus.DefaultGatherer)
	}
	var addr string
	var mux *http.ServeMux
	switch {
	case s.cfg.HTTP.Enabled:
		addr = s.cfg.HTTP.Address
		mux = sensors.Mux(s.platform, s.store, s.cfg.HTTP.Token, promHandler)
	case promHandler != nil && s.cfg.Metrics.Address != "":
		addr = s.cfg.Metrics.Address
		mux = http.NewServeMux()
		mux.Handle("/metrics", promHandler)
	default:
		return
	}
	log := logger.New("http")
	go func() {
		log.Infof("serving on %s", addr)
		if err := sensors.Serve(ctx, addr, mux, log); err != nil {
			log.Errorf("http server: %v", err)
			coremon.CaptureException(err, map[string]string{"module": "http"})
		}
	}()
}

// Close releases resources held by the service.
func (s *Service) Close() {
	for _, c := range s.clients {
		c.Disconnect()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Errorf("close history: %v", err)
		}
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	coremon.Flush(2 * time.Second)
}
