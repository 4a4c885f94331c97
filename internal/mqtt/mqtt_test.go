package mqtt

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/datastore"
	"github.com/qdlab/nanolume/internal/errors"
	"github.com/qdlab/nanolume/internal/observability/metrics"
	"github.com/qdlab/nanolume/internal/simulation"
)

// fakeClient records published messages.
type fakeClient struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	publishErr error
	connects   int
	topics     []string
	payloads   [][]byte
}

func (f *fakeClient) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeClient) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func savedRun(t *testing.T) *datastore.SimulationRun {
	t.Helper()
	in := simulation.Inputs{RadiusNM: 3.5, ReactionTimeMin: 30, FWHMNM: 80}
	run, err := datastore.NewSimulationRun("baseline", in, simulation.RunDefault(in))
	require.NoError(t, err)
	run.CreatedAt = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	return run
}

func TestPublishRun(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	rec := metrics.NewTestRecorder()
	p := NewPublisher(fc, "lab/nanolume/", "bench-1", rec)
	assert.Equal(t, "lab/nanolume/runs", p.Topic())

	run := savedRun(t)
	require.NoError(t, p.PublishRun(context.Background(), run))

	require.Len(t, fc.payloads, 1)
	assert.Equal(t, "lab/nanolume/runs", fc.topics[0])
	assert.Equal(t, 1, fc.connects)

	var msg RunMessage
	require.NoError(t, json.Unmarshal(fc.payloads[0], &msg))
	assert.Equal(t, run.ID, msg.ID)
	assert.Equal(t, "bench-1", msg.Source)
	assert.InDelta(t, 3.5, msg.Inputs.RadiusNM, 0)
	assert.Equal(t, "rgb(255,108,0)", msg.DisplayColor)
	assert.Equal(t, 79, msg.CRI)
	assert.NotContains(t, string(fc.payloads[0]), "spectrum")

	assert.Equal(t, 1, rec.OperationCount(metrics.OpMQTTPublish, metrics.StatusSuccess))
	assert.Equal(t, 1, rec.OperationCount(metrics.OpMQTTConnect, metrics.StatusSuccess))

	// Already connected: no second connect.
	require.NoError(t, p.PublishRun(context.Background(), run))
	assert.Equal(t, 1, fc.connects)
}

func TestPublishRunConnectFailure(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{connectErr: errors.Newf("broker down").Category(errors.CategoryMQTTConnection).Build()}
	rec := metrics.NewTestRecorder()
	p := NewPublisher(fc, "nanolume", "x", rec)

	err := p.PublishRun(context.Background(), savedRun(t))
	require.Error(t, err)
	assert.Empty(t, fc.payloads)
	assert.Equal(t, 1, rec.OperationCount(metrics.OpMQTTConnect, metrics.StatusError))
	assert.Equal(t, 1, rec.ErrorCount(metrics.OpMQTTPublish, string(errors.CategoryMQTTConnection)))
}

func TestPublishRunPublishFailure(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{connected: true, publishErr: errors.NewStd("queue full")}
	rec := metrics.NewTestRecorder()
	p := NewPublisher(fc, "nanolume", "x", nil)
	p.metrics = rec

	require.Error(t, p.PublishRun(context.Background(), savedRun(t)))
	assert.Equal(t, 1, rec.OperationCount(metrics.OpMQTTPublish, metrics.StatusError))
	assert.Equal(t, 1, rec.ErrorCount(metrics.OpMQTTPublish, "unknown"))
}

func TestPublisherClose(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{connected: true}
	NewPublisher(fc, "nanolume", "x", nil).Close()
	assert.False(t, fc.IsConnected())
}

func TestNewClientFromSettings(t *testing.T) {
	t.Parallel()

	s := &conf.Settings{}
	s.Main.Name = "bench-1"
	s.MQTT = conf.MQTTSettings{
		Broker:         "ssl://broker.lab:8883",
		Username:       "u",
		Password:       "p",
		QoS:            2,
		Retain:         true,
		ConnectTimeout: 3 * time.Second,
	}
	s.MQTT.TLS.InsecureSkipVerify = true

	c, ok := NewClient(s, nil).(*client)
	require.True(t, ok)
	assert.Equal(t, "bench-1", c.config.ClientID)
	assert.Equal(t, byte(2), c.config.QoS)
	assert.True(t, c.config.Retain)
	assert.True(t, c.config.InsecureSkipVerify)
	assert.Equal(t, 3*time.Second, c.config.ConnectTimeout)
	assert.Equal(t, 10*time.Second, c.config.PublishTimeout)
}

func TestClientRejectsInvalidBroker(t *testing.T) {
	t.Parallel()

	c := NewClientWithConfig(Config{Broker: "not a url", ConnectTimeout: time.Second}, nil)
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.False(t, c.IsConnected())
}

func TestClientPublishWhileDisconnected(t *testing.T) {
	t.Parallel()

	c := NewClientWithConfig(DefaultConfig(), nil)
	err := c.Publish(context.Background(), "nanolume/runs", []byte("{}"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))
	c.Disconnect()
}

func TestClientConnectRefused(t *testing.T) {
	t.Parallel()

	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Broker = "tcp://127.0.0.1:1"
	cfg.ClientID = "nanolume-test"
	cfg.ConnectTimeout = 2 * time.Second
	c := NewClientWithConfig(cfg, m)

	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))
	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors), 0)

	// A second attempt inside the cooldown is refused without dialling.
	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too recent")
}

// TestLiveBroker publishes to a real broker named by NANOLUME_TEST_MQTT_BROKER.
func TestLiveBroker(t *testing.T) {
	broker := os.Getenv("NANOLUME_TEST_MQTT_BROKER")
	if broker == "" {
		t.Skip("NANOLUME_TEST_MQTT_BROKER not set")
	}

	cfg := DefaultConfig()
	cfg.Broker = broker
	cfg.ClientID = "nanolume-test"
	c := NewClientWithConfig(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p := NewPublisher(c, "nanolume/test", "test", nil)
	require.NoError(t, p.PublishRun(ctx, savedRun(t)))
	assert.True(t, c.IsConnected())
	p.Close()
	assert.False(t, c.IsConnected())
}
