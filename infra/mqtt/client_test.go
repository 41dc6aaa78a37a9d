package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremon "github.com/kilianp07/cdsensor/core/monitoring"
	coremqtt "github.com/kilianp07/cdsensor/core/mqtt"
)

type token struct{ err error }

func (t token) Wait() bool                     { return true }
func (t token) WaitTimeout(time.Duration) bool { return true }
func (t token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t token) Error() error { return t.err }

type sent struct {
	topic    string
	qos      byte
	retained bool
}

// fakePaho records calls and replays publishErrs in order.
type fakePaho struct {
	mu          sync.Mutex
	opts        *paho.ClientOptions
	connectErr  error
	publishErrs []error
	published   []sent
	subscribed  []sent
	connected   bool
}

func (f *fakePaho) IsConnected() bool { return f.connected }

func (f *fakePaho) Connect() paho.Token {
	if f.connectErr != nil {
		return token{err: f.connectErr}
	}
	f.connected = true
	if f.opts.OnConnect != nil {
		f.opts.OnConnect(nil)
	}
	return token{}
}

func (f *fakePaho) Disconnect(uint) { f.connected = false }

func (f *fakePaho) Publish(topic string, qos byte, retained bool, _ interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, sent{topic, qos, retained})
	if len(f.publishErrs) > 0 {
		err := f.publishErrs[0]
		f.publishErrs = f.publishErrs[1:]
		return token{err: err}
	}
	return token{}
}

func (f *fakePaho) Subscribe(topic string, qos byte, _ paho.MessageHandler) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, sent{topic: topic, qos: qos})
	return token{}
}

func withFake(t *testing.T, f *fakePaho) {
	t.Helper()
	prev := newMQTTClient
	newMQTTClient = func(o *paho.ClientOptions) pahoClient {
		f.opts = o
		return f
	}
	t.Cleanup(func() { newMQTTClient = prev })
}

func writeCert(t *testing.T) (cert, key string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "broker"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	dir := t.TempDir()
	cert = filepath.Join(dir, "cert.pem")
	key = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(cert, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(key, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}), 0o600))
	return cert, key
}

func TestTLSLoad(t *testing.T) {
	cert, key := writeCert(t)

	c, err := TLSConfig{Enabled: true, CAFile: cert, CertFile: cert, KeyFile: key}.Load()
	require.NoError(t, err)
	assert.Len(t, c.Certificates, 1)
	assert.NotNil(t, c.RootCAs)

	c, err = TLSConfig{Enabled: true}.Load()
	require.NoError(t, err, "system roots are used without a CA file")
	assert.Nil(t, c.RootCAs)

	_, err = TLSConfig{Enabled: true, CertFile: cert}.Load()
	assert.Error(t, err)
	_, err = TLSConfig{Enabled: true, CAFile: key}.Load()
	assert.Error(t, err, "a key is not a CA bundle")
}

func TestClientID(t *testing.T) {
	assert.Equal(t, "cdsensor-hass", ClientID("cdsensor", "hass"))
	assert.Equal(t, "cdsensor", ClientID("cdsensor", ""))
	id := ClientID("", "source")
	assert.True(t, strings.HasPrefix(id, "source-"))
	assert.Greater(t, len(id), len("source-"))
}

func TestNewClientOptions(t *testing.T) {
	opts, err := NewClientOptions(Config{
		Broker:      "tcp://localhost:1883",
		Username:    "u",
		Password:    "p",
		WillTopic:   "cdsensor/status",
		WillPayload: "offline",
	}, "cdsensor-hass")
	require.NoError(t, err)
	assert.Equal(t, "cdsensor-hass", opts.ClientID)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.WillEnabled)
	assert.True(t, opts.WillRetained)
	assert.Equal(t, "cdsensor/status", opts.WillTopic)
	assert.Equal(t, "offline", string(opts.WillPayload))

	_, err = NewClientOptions(Config{Broker: "ssl://localhost:8883", TLS: TLSConfig{Enabled: true, CAFile: "missing.pem"}}, "x")
	assert.Error(t, err)
}

func TestConnectError(t *testing.T) {
	withFake(t, &fakePaho{connectErr: errors.New("refused")})
	_, err := NewPahoClient(Config{Broker: "tcp://localhost:1883"}, "hass")
	assert.ErrorContains(t, err, "refused")
}

func TestPublishRetries(t *testing.T) {
	f := &fakePaho{publishErrs: []error{errors.New("net fail"), nil}}
	withFake(t, f)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1}, "hass")
	require.NoError(t, err)
	assert.Equal(t, "id-hass", cli.ID())

	require.NoError(t, cli.Publish("homeassistant/sensor/cdsensor/x/config", 1, true, []byte("{}")))
	require.Len(t, f.published, 2)
	assert.Equal(t, sent{"homeassistant/sensor/cdsensor/x/config", 1, true}, f.published[1])

	cli.Disconnect()
	assert.False(t, f.connected)
}

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestPublishFailureCaptured(t *testing.T) {
	fail := errors.New("net fail")
	withFake(t, &fakePaho{publishErrs: []error{fail, fail}})
	mon := &recordMonitor{}
	coremon.Init(mon)
	t.Cleanup(func() { coremon.Init(coremon.NopMonitor{}) })

	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1}, "hass")
	require.NoError(t, err)
	err = cli.Publish("cdsensor/VIN1/mileage/state", 0, true, []byte("1"))
	assert.ErrorIs(t, err, coremqtt.ErrPublishFailed)
	require.Error(t, mon.err)
	assert.Equal(t, map[string]string{"topic": "cdsensor/VIN1/mileage/state", "module": "mqtt"}, mon.tags)
}

func TestSubscribeRenewedOnReconnect(t *testing.T) {
	f := &fakePaho{}
	withFake(t, f)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883"}, "source")
	require.NoError(t, err)
	require.NoError(t, cli.Subscribe("cdsensor/snapshot/state/+", 1, func(paho.Client, paho.Message) {}))
	require.Len(t, f.subscribed, 1)

	f.opts.OnConnect(nil)
	require.Len(t, f.subscribed, 2)
	assert.Equal(t, sent{topic: "cdsensor/snapshot/state/+", qos: 1}, f.subscribed[1])
}

func TestMockPublisher(t *testing.T) {
	m := NewMockPublisher()
	m.FailTopics["bad"] = true
	assert.Error(t, m.Publish("bad", 0, false, nil))

	require.NoError(t, m.Publish("a", 1, true, []byte("x")))
	require.NoError(t, m.Publish("a", 1, true, []byte("y")))
	assert.Len(t, m.Published("a"), 2)
	last, ok := m.Last("a")
	require.True(t, ok)
	assert.Equal(t, "y", string(last.Payload))
	assert.True(t, last.Retained)
	_, ok = m.Last("none")
	assert.False(t, ok)
}
