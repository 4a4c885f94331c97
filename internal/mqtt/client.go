package mqtt

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/errors"
	"github.com/qdlab/nanolume/internal/logger"
	"github.com/qdlab/nanolume/internal/observability/metrics"
)

// client implements the Client interface on top of paho.
type client struct {
	config          Config
	internalClient  paho.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	metrics         *metrics.MQTTMetrics
}

// NewClient creates a new MQTT client from settings. m may be nil.
func NewClient(settings *conf.Settings, m *metrics.MQTTMetrics) Client {
	cfg := DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	cfg.ClientID = settings.MQTT.ClientID
	if cfg.ClientID == "" {
		cfg.ClientID = settings.Main.Name
	}
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	cfg.QoS = byte(settings.MQTT.QoS)
	cfg.Retain = settings.MQTT.Retain
	cfg.InsecureSkipVerify = settings.MQTT.TLS.InsecureSkipVerify
	if settings.MQTT.ConnectTimeout > 0 {
		cfg.ConnectTimeout = settings.MQTT.ConnectTimeout
	}
	return NewClientWithConfig(cfg, m)
}

// NewClientWithConfig creates a client from an explicit Config.
func NewClientWithConfig(cfg Config, m *metrics.MQTTMetrics) Client {
	return &client{config: cfg, metrics: m}
}

// isTLSBroker reports whether the broker URL needs a TLS transport.
func isTLSBroker(u *url.URL) bool {
	switch u.Scheme {
	case "ssl", "tls", "mqtts", "wss":
		return true
	default:
		return false
	}
}

// Connect resolves the broker host and establishes the connection.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < c.config.ReconnectCooldown {
		return errors.Newf("connection attempt too recent, last attempt was %v ago", since.Round(time.Millisecond)).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Build()
	}
	c.lastConnAttempt = time.Now()

	u, err := url.Parse(c.config.Broker)
	if err != nil || u.Host == "" {
		return errors.Newf("invalid broker URL %q", c.config.Broker).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if host := u.Hostname(); net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			c.recordError()
			return errors.New(err).
				Component("mqtt").
				Category(errors.CategoryNetwork).
				Context("operation", "resolve_broker").
				Context("host", host).
				Build()
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	if isTLSBroker(u) {
		opts.SetTLSConfig(&tls.Config{
			ServerName:         u.Hostname(),
			InsecureSkipVerify: c.config.InsecureSkipVerify, //nolint:gosec // opt-in for self-signed lab brokers
			MinVersion:         tls.VersionTLS12,
		})
	}

	c.internalClient = paho.NewClient(opts)

	token := c.internalClient.Connect()
	if err := waitToken(ctx, token, c.config.ConnectTimeout); err != nil {
		c.recordError()
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("broker", u.Redacted()).
			Build()
	}

	GetLogger().Info("connected to MQTT broker", logger.String("broker", u.Redacted()))
	c.setConnected(true)
	return nil
}

// Publish sends payload to topic using the configured QoS and retain flag.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	start := time.Now()
	token := c.internalClient.Publish(topic, c.config.QoS, c.config.Retain, payload)
	if err := waitToken(ctx, token, c.config.PublishTimeout); err != nil {
		c.recordError()
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	if c.metrics != nil {
		c.metrics.ObservePublish(len(payload), time.Since(start))
	}
	GetLogger().Debug("published message",
		logger.String("topic", topic),
		logger.Int("bytes", len(payload)))
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		c.setConnected(false)
	}
}

func (c *client) onConnect(paho.Client) {
	GetLogger().Debug("MQTT connection established", logger.String("client_id", c.config.ClientID))
	c.setConnected(true)
}

// onConnectionLost is called by paho; auto-reconnect takes it from here.
func (c *client) onConnectionLost(_ paho.Client, err error) {
	GetLogger().Warn("connection to MQTT broker lost", logger.Error(err))
	c.setConnected(false)
	c.recordError()
}

func (c *client) setConnected(connected bool) {
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(connected)
	}
}

func (c *client) recordError() {
	if c.metrics != nil {
		c.metrics.IncrementErrors()
	}
}

// waitToken waits for a paho token, the timeout or ctx, whichever is first.
func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errors.NewStd("timed out waiting for broker")
	case <-ctx.Done():
		return ctx.Err()
	}
}
