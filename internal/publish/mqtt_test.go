package publish

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"meshscope/internal/devscan"
	"meshscope/internal/domain"
	"meshscope/internal/service"
)

// fakeToken is an already completed mqtt.Token
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	messages     []published
	err          error
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic, qos, retained, payload.([]byte)})
	return &fakeToken{err: c.err}
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.disconnected = true
}

func (c *fakeClient) sent() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.messages...)
}

func newTestSink(client *fakeClient) *Sink {
	sink := NewSink(client, Config{Topic: "meshscope/topology", QoS: 1, Retain: true})
	sink.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return sink
}

func TestPublishGraph(t *testing.T) {
	client := &fakeClient{}
	sink := newTestSink(client)

	coord := domain.MustNormalize("2222::3")
	graph := domain.NewGraph()
	graph.Version = 1234
	graph.AddNode(domain.NewNode(coord, domain.DeriveIdentifier(coord), domain.NodeTypeCoordinator))

	if err := sink.PublishGraph(graph); err != nil {
		t.Fatalf("PublishGraph failed: %v", err)
	}

	msgs := client.sent()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.topic != "meshscope/topology" || m.qos != 1 || !m.retained {
		t.Errorf("unexpected publish options %+v", m)
	}

	var msg Message
	if err := json.Unmarshal(m.payload, &msg); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if msg.Type != "devscan" || msg.Version != 1234 {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.Graph == nil || len(msg.Graph.Nodes) != 1 {
		t.Errorf("expected graph in payload, got %+v", msg.Graph)
	}
}

func TestPublishError(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	sink := newTestSink(client)

	if err := sink.PublishGraph(domain.NewGraph()); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestRunForwardsEvents(t *testing.T) {
	client := &fakeClient{}
	sink := newTestSink(client)

	events := make(chan service.Event, 4)
	events <- service.Event{Type: service.EventDevscanStarted, Payload: map[string]string{}}
	events <- service.Event{Type: service.EventDevscanComplete, Payload: devscan.RunStats{RunID: "r1", Dispatched: 3}}
	events <- service.Event{Type: service.EventGraphUpdated, Payload: domain.NewGraph()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sink.Run(ctx, events) }()

	deadline := time.After(2 * time.Second)
	for len(client.sent()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected 2 messages, got %d", len(client.sent()))
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	msgs := client.sent()
	if msgs[0].topic != "meshscope/topology/stats" {
		t.Errorf("first topic = %s", msgs[0].topic)
	}
	if msgs[1].topic != "meshscope/topology" {
		t.Errorf("second topic = %s", msgs[1].topic)
	}

	var stats struct {
		Stats devscan.RunStats `json:"stats"`
	}
	if err := json.Unmarshal(msgs[0].payload, &stats); err != nil {
		t.Fatalf("stats payload: %v", err)
	}
	if stats.Stats.RunID != "r1" || stats.Stats.Dispatched != 3 {
		t.Errorf("unexpected stats %+v", stats.Stats)
	}
}

func TestClose(t *testing.T) {
	client := &fakeClient{}
	newTestSink(client).Close()
	if !client.disconnected {
		t.Error("expected Disconnect")
	}
}
