// Package mqttingest feeds readings published by field devices over MQTT
// into the ingest service. Devices publish the same JSON body accepted by
// POST /api/sensor-data on <prefix>/<userId>/readings.
package mqttingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sguter90/soilmaestro/pkg/ingest"
	"github.com/sguter90/soilmaestro/pkg/models"
)

// Ingester is the part of the ingest service the subscriber drives
type Ingester interface {
	Ingest(ctx context.Context, input models.ReadingInput) (ingest.Result, error)
}

// Config holds the broker settings
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

// Subscriber consumes reading messages from an MQTT broker
type Subscriber struct {
	cfg      Config
	ingester Ingester
	logger   *slog.Logger
	client   mqtt.Client
}

// New creates a subscriber; call Start to connect
func New(cfg Config, ingester Ingester, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "soilmaestro"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")

	return &Subscriber{cfg: cfg, ingester: ingester, logger: logger.With("component", "mqtt")}
}

// Topic returns the subscription filter
func (s *Subscriber) Topic() string {
	return s.cfg.TopicPrefix + "/+/readings"
}

// Start connects to the broker and subscribes. The subscription is renewed
// on every reconnect.
func (s *Subscriber) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOrderMatters(false)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if token := c.Subscribe(s.Topic(), s.cfg.QoS, s.handleMessage); token.Wait() && token.Error() != nil {
			s.logger.Error("Subscribe failed", "topic", s.Topic(), "error", token.Error())
			return
		}
		s.logger.Info("Listening for readings", "topic", s.Topic())
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn("MQTT connection lost", "error", err)
	})

	s.client = mqtt.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(s.cfg.Timeout) {
		s.logger.Warn("MQTT broker not reachable yet, retrying in background", "broker", s.cfg.Broker)
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

// Stop disconnects from the broker
func (s *Subscriber) Stop() {
	if s.client != nil {
		s.client.Disconnect(250)
	}
}

// UserFromTopic extracts the user id from <prefix>/<userId>/readings
func UserFromTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, strings.TrimSuffix(prefix, "/")+"/")
	if !ok {
		return "", false
	}
	user, ok := strings.CutSuffix(rest, "/readings")
	if !ok || user == "" || strings.Contains(user, "/") {
		return "", false
	}
	return user, true
}

func (s *Subscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	result, err := s.process(ctx, msg.Topic(), msg.Payload())
	if err != nil {
		if models.IsValidation(err) {
			s.logger.Warn("Dropping invalid reading", "topic", msg.Topic(), "error", err)
			return
		}
		s.logger.Error("Failed to ingest reading", "topic", msg.Topic(), "error", err)
		return
	}

	s.logger.Debug("Reading processed", "topic", msg.Topic(), "stored", result.Stored, "reason", result.Reason)
}

// process decodes one message and runs it through the ingest service. A
// missing userId in the payload is taken from the topic.
func (s *Subscriber) process(ctx context.Context, topic string, payload []byte) (ingest.Result, error) {
	var input models.ReadingInput
	if err := json.Unmarshal(payload, &input); err != nil {
		if models.IsValidation(err) {
			return ingest.Result{}, err
		}
		return ingest.Result{}, &models.ValidationError{Message: "invalid JSON payload: " + err.Error()}
	}

	if strings.TrimSpace(string(input.UserID)) == "" {
		if user, ok := UserFromTopic(s.cfg.TopicPrefix, topic); ok {
			input.UserID = models.UserKey(user)
		}
	}

	return s.ingester.Ingest(ctx, input)
}
