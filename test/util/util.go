// Package util holds helpers for the integration tests: a disposable
// Mosquitto broker, an MQTT topic collector and HTTP polling.
package util

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	MosquittoReadyTimeout = 5 * time.Second
	BodyTimeout           = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

// WaitForBody polls url until the provided substring is found in the
// response body or the context is done.
func WaitForBody(ctx context.Context, url, substr string) error {
	for {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			body, rerr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if rerr != nil {
				return fmt.Errorf("read body: %w", rerr)
			}
			if strings.Contains(string(body), substr) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%q not found at %s: %w", substr, url, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// FreeAddr returns a loopback address with a currently unused port.
func FreeAddr() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	addr := l.Addr().String()
	return addr, l.Close()
}

// Connect returns a connected paho client with a random client id.
func Connect(broker string) (paho.Client, error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("test-" + uuid.NewString())
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}

// Collector keeps the last payload received per topic.
type Collector struct {
	mu   sync.Mutex
	last map[string][]byte
}

// Collect subscribes cli to filter and records every message.
func Collect(cli paho.Client, filter string) (*Collector, error) {
	c := &Collector{last: map[string][]byte{}}
	token := cli.Subscribe(filter, 1, func(_ paho.Client, m paho.Message) {
		c.mu.Lock()
		c.last[m.Topic()] = append([]byte(nil), m.Payload()...)
		c.mu.Unlock()
	})
	if token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return c, nil
}

// Last returns the last payload received on topic.
func (c *Collector) Last(topic string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.last[topic]
	return string(p), ok
}

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
`

// StartMosquitto runs an eclipse-mosquitto container with anonymous access
// and returns its broker URL once a client can connect. stop terminates the
// container.
func StartMosquitto(ctx context.Context) (broker string, stop func(), err error) {
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "eclipse-mosquitto:2.0",
			ExposedPorts: []string{"1883/tcp"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
			Files: []tc.ContainerFile{{
				Reader:            strings.NewReader(mosquittoConf),
				ContainerFilePath: "/mosquitto/config/mosquitto.conf",
				FileMode:          0o644,
			}},
		},
		Started: true,
	})
	if err != nil {
		return "", nil, err
	}
	stop = func() { _ = cont.Terminate(context.Background()) }

	endpoint, err := cont.PortEndpoint(ctx, "1883/tcp", "tcp")
	if err != nil {
		stop()
		return "", nil, err
	}
	readyCtx, cancel := context.WithTimeout(ctx, MosquittoReadyTimeout)
	defer cancel()
	if err := waitForBroker(readyCtx, endpoint); err != nil {
		stop()
		return "", nil, fmt.Errorf("mosquitto at %s not ready: %w", endpoint, err)
	}
	return endpoint, stop, nil
}

func waitForBroker(ctx context.Context, broker string) error {
	for {
		cli, err := Connect(broker)
		if err == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
