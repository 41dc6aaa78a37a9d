package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremon "github.com/kilianp07/cdsensor/core/monitoring"
	coremqtt "github.com/kilianp07/cdsensor/core/mqtt"
	"github.com/kilianp07/cdsensor/infra/logger"
)

// TLSConfig enables TLS towards the broker. CAFile alone verifies the broker,
// CertFile and KeyFile add a client certificate.
type TLSConfig struct {
	Enabled            bool   `json:"enabled"`
	CAFile             string `json:"ca_file"`
	CertFile           string `json:"cert_file"`
	KeyFile            string `json:"key_file"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify"`
}

// Config defines the broker connection shared by the source and the Home
// Assistant publisher.
type Config struct {
	Broker   string    `json:"broker"`
	ClientID string    `json:"client_id"`
	Username string    `json:"username"`
	Password string    `json:"password"`
	TLS      TLSConfig `json:"tls"`
	// WillTopic receives WillPayload, retained, when the connection drops.
	WillTopic   string `json:"will_topic"`
	WillPayload string `json:"will_payload"`
	MaxRetries  int    `json:"max_retries"`
	BackoffMS   int    `json:"backoff_ms"`
}

// Publisher mirrors the core publisher interface.
type Publisher = coremqtt.Publisher

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

type subscription struct {
	qos     byte
	handler paho.MessageHandler
}

// PahoClient publishes with retries and keeps subscriptions across
// reconnects.
type PahoClient struct {
	cli        pahoClient
	id         string
	log        logger.Logger
	maxRetries int
	backoff    time.Duration

	mu   sync.Mutex
	subs map[string]subscription
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// ClientID derives the id of one connection. Every component of the bridge
// opens its own connection, so a configured id gets the role appended and an
// empty one is generated.
func ClientID(configured, role string) string {
	switch {
	case configured == "":
		return role + "-" + uuid.NewString()
	case role == "":
		return configured
	}
	return configured + "-" + role
}

// NewPahoClient connects to the broker for the given role.
func NewPahoClient(cfg Config, role string) (*PahoClient, error) {
	id := ClientID(cfg.ClientID, role)
	opts, err := NewClientOptions(cfg, id)
	if err != nil {
		return nil, err
	}
	pc := &PahoClient{
		id:         id,
		log:        logger.New("mqtt_" + role),
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		subs:       map[string]subscription{},
	}
	if pc.maxRetries <= 0 {
		pc.maxRetries = 3
	}
	if pc.backoff <= 0 {
		pc.backoff = 100 * time.Millisecond
	}
	opts.OnConnect = func(paho.Client) {
		pc.log.Infof("connected to %s as %s", cfg.Broker, id)
		pc.resubscribe()
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		pc.log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) {
		pc.log.Warnf("reconnecting to %s", cfg.Broker)
	}

	pc.cli = newMQTTClient(opts)
	if token := pc.cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, token.Error())
	}
	return pc, nil
}

// NewClientOptions translates cfg into paho options for client id.
func NewClientOptions(cfg Config, id string) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(id).
		SetAutoReconnect(true).
		SetConnectRetry(false)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.TLS.Enabled {
		tlsCfg, err := cfg.TLS.Load()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.WillTopic != "" {
		opts.SetWill(cfg.WillTopic, cfg.WillPayload, 1, true)
	}
	return opts, nil
}

// Load reads the configured certificate files.
func (c TLSConfig) Load() (*tls.Config, error) {
	out := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.InsecureSkipVerify}
	if c.CAFile != "" {
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("ca %s: no certificates found", c.CAFile)
		}
		out.RootCAs = pool
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return nil, errors.New("tls: cert_file and key_file must be set together")
	}
	if c.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		out.Certificates = []tls.Certificate{cert}
	}
	return out, nil
}

// ID returns the client id used on the broker.
func (p *PahoClient) ID() string { return p.id }

// Publish sends payload and retries with exponential back-off. Exhausted
// retries are reported to the monitor.
func (p *PahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	var last error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, retained, payload)
		token.Wait()
		if last = token.Error(); last == nil {
			p.log.Debugf("published %d bytes to %s", len(payload), topic)
			return nil
		}
		p.log.Warnf("publish to %s failed (attempt %d): %v", topic, attempt+1, last)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff << attempt)
		}
	}
	err := fmt.Errorf("%w: %s: %v", coremqtt.ErrPublishFailed, topic, last)
	coremon.CaptureException(err, map[string]string{"topic": topic, "module": "mqtt"})
	return err
}

// Subscribe registers handler for topic. The subscription is renewed after
// every reconnect.
func (p *PahoClient) Subscribe(topic string, qos byte, handler paho.MessageHandler) error {
	p.mu.Lock()
	p.subs[topic] = subscription{qos: qos, handler: handler}
	p.mu.Unlock()
	if token := p.cli.Subscribe(topic, qos, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

func (p *PahoClient) resubscribe() {
	p.mu.Lock()
	subs := make(map[string]subscription, len(p.subs))
	for k, v := range p.subs {
		subs[k] = v
	}
	p.mu.Unlock()
	for topic, s := range subs {
		if token := p.cli.Subscribe(topic, s.qos, s.handler); token.Wait() && token.Error() != nil {
			p.log.Errorf("resubscribe %s: %v", topic, token.Error())
		}
	}
}

// Disconnect closes the connection after in-flight work drained.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
