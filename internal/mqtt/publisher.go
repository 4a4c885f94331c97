package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/qdlab/nanolume/internal/datastore"
	"github.com/qdlab/nanolume/internal/errors"
	"github.com/qdlab/nanolume/internal/logger"
	"github.com/qdlab/nanolume/internal/observability/metrics"
)

// RunsSubtopic is appended to the base topic for saved runs.
const RunsSubtopic = "runs"

// RunMessage is the JSON payload published for a saved run.
type RunMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"` // instance name
	CreatedAt time.Time `json:"createdAt"`

	Inputs struct {
		RadiusNM        float64 `json:"radius"`
		ReactionTimeMin float64 `json:"time"`
		FWHMNM          float64 `json:"fwhm"`
		ZrConcentration float64 `json:"zr"`
		CoreShell       bool    `json:"coreShell"`
	} `json:"inputs"`

	PeakWavelengthNM float64 `json:"peakWavelength"`
	EnergyEV         float64 `json:"energy"`
	DisplayColor     string  `json:"displayColor"`
	Hex              string  `json:"hex"`
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	CRI              int     `json:"cri"`
}

// NewRunMessage flattens a run into its published form. The spectrum is left
// out; subscribers fetch it from the API by ID.
func NewRunMessage(run *datastore.SimulationRun, source string) RunMessage {
	msg := RunMessage{
		ID:               run.ID,
		Name:             run.Name,
		Source:           source,
		CreatedAt:        run.CreatedAt,
		PeakWavelengthNM: run.PeakWavelengthNM,
		EnergyEV:         run.EnergyEV,
		DisplayColor:     run.DisplayColor,
		Hex:              run.Hex,
		X:                run.ChromaX,
		Y:                run.ChromaY,
		CRI:              run.CRI,
	}
	msg.Inputs.RadiusNM = run.RadiusNM
	msg.Inputs.ReactionTimeMin = run.ReactionTimeMin
	msg.Inputs.FWHMNM = run.FWHMNM
	msg.Inputs.ZrConcentration = run.ZrConcentration
	msg.Inputs.CoreShell = run.CoreShell
	return msg
}

// Publisher sends saved runs to <topic>/runs.
type Publisher struct {
	client  Client
	topic   string
	source  string
	metrics metrics.Recorder
}

// NewPublisher creates a publisher on baseTopic. A nil recorder discards metrics.
func NewPublisher(c Client, baseTopic, source string, r metrics.Recorder) *Publisher {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	return &Publisher{
		client:  c,
		topic:   strings.TrimSuffix(baseTopic, "/") + "/" + RunsSubtopic,
		source:  source,
		metrics: r,
	}
}

// Topic returns the topic runs are published to.
func (p *Publisher) Topic() string {
	return p.topic
}

// PublishRun publishes one run. It reconnects first when the client dropped.
func (p *Publisher) PublishRun(ctx context.Context, run *datastore.SimulationRun) error {
	start := time.Now()
	err := p.publish(ctx, run)
	p.metrics.RecordDuration(metrics.OpMQTTPublish, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordOperation(metrics.OpMQTTPublish, metrics.StatusError)
		p.metrics.RecordError(metrics.OpMQTTPublish, errorType(err))
		GetLogger().Warn("failed to publish run",
			logger.String("run_id", run.ID),
			logger.String("topic", p.topic),
			logger.Error(err))
		return err
	}
	p.metrics.RecordOperation(metrics.OpMQTTPublish, metrics.StatusSuccess)
	return nil
}

func (p *Publisher) publish(ctx context.Context, run *datastore.SimulationRun) error {
	payload, err := json.Marshal(NewRunMessage(run, p.source))
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("operation", "marshal_run").
			Build()
	}

	if !p.client.IsConnected() {
		err := p.client.Connect(ctx)
		p.recordConnect(err)
		if err != nil {
			return err
		}
	}

	return p.client.Publish(ctx, p.topic, payload)
}

func (p *Publisher) recordConnect(err error) {
	if err != nil {
		p.metrics.RecordOperation(metrics.OpMQTTConnect, metrics.StatusError)
		return
	}
	p.metrics.RecordOperation(metrics.OpMQTTConnect, metrics.StatusSuccess)
}

// Close disconnects the underlying client.
func (p *Publisher) Close() {
	p.client.Disconnect()
}

func errorType(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.GetCategory()
	}
	return "unknown"
}
