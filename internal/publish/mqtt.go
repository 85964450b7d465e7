// Package publish forwards completed topology graphs to an MQTT broker.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"meshscope/internal/domain"
	"meshscope/internal/logging"
	"meshscope/internal/service"
)

const publishTimeout = 10 * time.Second

// Config holds broker and topic settings
type Config struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Retain   bool
}

// publisher is the part of mqtt.Client the sink uses
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Message is the JSON body published for each graph
type Message struct {
	Type        string        `json:"type"`
	Version     int64         `json:"version"`
	PublishedAt time.Time     `json:"published_at"`
	Graph       *domain.Graph `json:"graph,omitempty"`
	Stats       interface{}   `json:"stats,omitempty"`
}

// Sink publishes graphs and run statistics
type Sink struct {
	client publisher
	config Config
	now    func() time.Time
}

// Connect dials the broker and returns a sink bound to it
func Connect(cfg Config) (*Sink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if ok := token.WaitTimeout(publishTimeout); !ok {
		return nil, fmt.Errorf("MQTT connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("MQTT connect to %s: %w", cfg.Broker, err)
	}

	logging.Info("Connected to MQTT broker", zap.String("broker", cfg.Broker), zap.String("topic", cfg.Topic))
	return NewSink(client, cfg), nil
}

// NewSink wraps an already connected client
func NewSink(client publisher, cfg Config) *Sink {
	return &Sink{client: client, config: cfg, now: time.Now}
}

// PublishGraph publishes graph to the configured topic
func (s *Sink) PublishGraph(graph *domain.Graph) error {
	return s.publish(s.config.Topic, Message{
		Type:        "devscan",
		Version:     graph.Version,
		PublishedAt: s.now(),
		Graph:       graph,
	})
}

// PublishStats publishes run statistics to the stats subtopic
func (s *Sink) PublishStats(stats interface{}) error {
	return s.publish(s.config.Topic+"/stats", Message{
		Type:        "devscan-complete",
		PublishedAt: s.now(),
		Stats:       stats,
	})
}

func (s *Sink) publish(topic string, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msg.Type, err)
	}

	token := s.client.Publish(topic, s.config.QoS, s.config.Retain, body)
	if ok := token.WaitTimeout(publishTimeout); !ok {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

// Run publishes every graph update and run summary from events until ctx ends
func (s *Sink) Run(ctx context.Context, events <-chan service.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			s.handle(e)
		}
	}
}

func (s *Sink) handle(e service.Event) {
	var err error
	switch e.Type {
	case service.EventGraphUpdated:
		graph, ok := e.Payload.(*domain.Graph)
		if !ok {
			return
		}
		err = s.PublishGraph(graph)
	case service.EventDevscanComplete:
		err = s.PublishStats(e.Payload)
	default:
		return
	}
	if err != nil {
		logging.Warn("MQTT publish failed", zap.String("event", string(e.Type)), zap.Error(err))
	}
}

// Close disconnects from the broker
func (s *Sink) Close() {
	s.client.Disconnect(250)
}
