// Package mqttsub subscribes to the telemetry broker and feeds every
// delivered message into the pipeline. Topic routing stays out of this
// layer: the collector subscribes to the configured filters and hands raw
// messages on, classification happens downstream.
package mqttsub

import (
	"crypto/tls"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/ports"
)

// Options configures the broker session.
type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	UseTLS    bool
	// Topics are MQTT subscription filters; wildcards allowed.
	Topics []string
	QoS    byte

	ConnectTimeout time.Duration
}

type Collector struct {
	opts   Options
	client mqtt.Client
	obs    ports.Observability
}

func New(opts Options, obs ports.Observability) *Collector {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	return &Collector{opts: opts, obs: obs}
}

// Start connects, subscribes, and pushes every delivered message onto out.
// The paho client redelivers through its own reconnect loop; subscriptions
// are re-established in the OnConnect hook so a broker restart heals itself.
func (c *Collector) Start(out chan<- domain.RawMessage) error {
	co := mqtt.NewClientOptions().
		AddBroker(c.opts.BrokerURL).
		SetClientID(c.opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(c.opts.ConnectTimeout).
		SetOrderMatters(true)

	if c.opts.Username != "" {
		co.SetUsername(c.opts.Username)
		co.SetPassword(c.opts.Password)
	}
	if c.opts.UseTLS {
		co.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	handler := func(_ mqtt.Client, m mqtt.Message) {
		out <- domain.RawMessage{
			Topic:       m.Topic(),
			Payload:     m.Payload(),
			ReceiptTime: time.Now().UTC(),
		}
	}

	co.OnConnect = func(cl mqtt.Client) {
		for _, topic := range c.opts.Topics {
			t := cl.Subscribe(topic, c.opts.QoS, handler)
			t.Wait()
			if err := t.Error(); err != nil {
				c.obs.LogError("mqtt subscribe failed", err, ports.Field{Key: "topic", Value: topic})
				continue
			}
			c.obs.LogInfo("subscribed", ports.Field{Key: "topic", Value: topic})
		}
	}
	co.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.obs.LogError("mqtt connection lost", err)
	}

	c.client = mqtt.NewClient(co)
	t := c.client.Connect()
	if !t.WaitTimeout(c.opts.ConnectTimeout) {
		return fmt.Errorf("mqtt connect to %s: timeout after %s", c.opts.BrokerURL, c.opts.ConnectTimeout)
	}
	if err := t.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", c.opts.BrokerURL, err)
	}
	return nil
}

// Stop disconnects after letting in-flight handlers finish.
func (c *Collector) Stop() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
	return nil
}

var _ ports.Collector = (*Collector)(nil)
