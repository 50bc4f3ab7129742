package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/energydash/pkg/display"
	"github.com/raterudder/energydash/pkg/log"
	"github.com/raterudder/energydash/pkg/transform"
	"github.com/raterudder/energydash/pkg/types"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Publisher is a display.Sink that mirrors the dashboard onto retained MQTT
// topics. A Publisher without a client does nothing.
type Publisher struct {
	client mqtt.Client
	prefix string
	ctx    context.Context
}

var _ display.Sink = (*Publisher)(nil)

// New returns a Publisher writing under prefix. client may be nil.
func New(client mqtt.Client, prefix string) *Publisher {
	return &Publisher{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		ctx:    context.Background(),
	}
}

// Configured sets up flags for the MQTT publisher and returns the instance.
// It uses lflag to register command-line flags for configuration.
func Configured() *Publisher {
	p := New(nil, "")
	broker := lflag.String("mqtt-broker", "", "MQTT broker address (host:port or URL), empty disables publishing")
	prefix := lflag.String("mqtt-topic-prefix", "energydash", "Prefix for all published MQTT topics")
	username := lflag.String("mqtt-username", "", "MQTT username")
	password := lflag.String("mqtt-password", "", "MQTT password")

	lflag.Do(func() {
		p.prefix = strings.TrimSuffix(*prefix, "/")
		if *broker == "" {
			return
		}
		if p.prefix == "" {
			panic("publisher validation failed: mqtt-topic-prefix is required")
		}
		p.client = mqtt.NewClient(clientOptions(*broker, *username, *password))
	})

	return p
}

func clientOptions(broker, username, password string) *mqtt.ClientOptions {
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("energydash-" + uuid.NewString())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	if username != "" {
		opts.SetUsername(username)
	}
	if password != "" {
		opts.SetPassword(password)
	}
	return opts
}

// Enabled reports whether a broker is configured.
func (p *Publisher) Enabled() bool {
	return p.client != nil
}

// Connect starts connecting to the broker. If the broker is not reachable
// within the connect timeout the client keeps retrying in the background and
// Connect returns nil.
func (p *Publisher) Connect(ctx context.Context) error {
	p.ctx = ctx
	if p.client == nil {
		return nil
	}
	token := p.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("connecting to MQTT broker: %w", err)
		}
		log.Ctx(ctx).InfoContext(ctx, "connected to MQTT broker")
	case <-time.After(connectTimeout):
		log.Ctx(ctx).WarnContext(ctx, "MQTT broker not reachable yet, retrying in background")
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Close disconnects from the broker. It also stops a client that is still
// retrying its first connection.
func (p *Publisher) Close() {
	if p.client != nil {
		p.client.Disconnect(250)
	}
}

func (p *Publisher) topic(parts ...string) string {
	return p.prefix + "/" + strings.Join(parts, "/")
}

// publish sends a retained message. Delivery is confirmed in the background so
// the caller is never blocked by the broker.
func (p *Publisher) publish(topic string, payload []byte) {
	if p.client == nil {
		return
	}
	ctx := p.ctx
	token := p.client.Publish(topic, 0, true, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			log.Ctx(ctx).WarnContext(ctx, "timed out publishing to MQTT", slog.String("topic", topic))
			return
		}
		if err := token.Error(); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to publish to MQTT", slog.String("topic", topic), slog.Any("error", err))
		}
	}()
}

func (p *Publisher) publishJSON(topic string, v any) {
	if p.client == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Ctx(p.ctx).ErrorContext(p.ctx, "failed to encode MQTT payload", slog.String("topic", topic), slog.Any("error", err))
		return
	}
	p.publish(topic, b)
}

func (p *Publisher) SetGaugeValue(v float64) {
	p.publish(p.topic("gauge"), []byte(strconv.FormatFloat(v, 'f', -1, 64)))
}

func (p *Publisher) AppendTrendPoint(pt types.TrendPoint) {
	p.publishJSON(p.topic("trend"), pt)
}

func (p *Publisher) SetBarSeries(chart types.ChartID, labels []string, values []float64) {
	p.publishJSON(p.topic("chart", string(chart)), transform.Series{Labels: labels, Values: values})
}

func (p *Publisher) SetText(field types.FieldID, text string) {
	p.publish(p.topic("text", string(field)), []byte(text))
}

func (p *Publisher) SetStatusLabel(isOn bool) {
	text, _ := transform.StatusLabel(isOn)
	p.publish(p.topic("status"), []byte(text))
}
