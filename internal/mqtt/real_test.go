package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/fishing-bot/internal/logic"
)

// doneToken is a completed paho.Token.
type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// stubClient implements the parts of paho.Client the publisher uses.
type stubClient struct {
	paho.Client

	mu      sync.Mutex
	open    bool
	fail    error
	sent    []bufferedMsg
	stopped bool
}

func (c *stubClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *stubClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return doneToken{err: c.fail}
	}
	c.sent = append(c.sent, bufferedMsg{topic: topic, payload: payload.([]byte), qos: qos, retained: retained})
	return doneToken{}
}

func (c *stubClient) Disconnect(uint) { c.stopped = true }

func (c *stubClient) topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, m := range c.sent {
		out[i] = m.topic
	}
	return out
}

func TestRealPublisherSendsWhenConnected(t *testing.T) {
	c := &stubClient{open: true}
	p := newPublisher(c)

	if err := p.Publish(logic.Event{Type: logic.EventBite, Key: "e"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := p.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}

	if len(c.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(c.sent))
	}
	if c.sent[0].topic != Topic || c.sent[0].qos != 0 || c.sent[0].retained {
		t.Errorf("event message: %+v", c.sent[0])
	}
	if c.sent[1].topic != TopicSystem || c.sent[1].qos != 1 || !c.sent[1].retained {
		t.Errorf("system message: %+v", c.sent[1])
	}
	if p.Buffered() != 0 {
		t.Errorf("Buffered: got %d, want 0", p.Buffered())
	}
}

func TestRealPublisherBuffersWhileOffline(t *testing.T) {
	c := &stubClient{open: false}
	p := newPublisher(c)

	p.Publish(logic.Event{Type: logic.EventSessionStart, Session: 1})
	p.Publish(logic.Event{Type: logic.EventBite, Session: 1})
	if len(c.sent) != 0 {
		t.Fatalf("nothing should be sent while offline, got %d", len(c.sent))
	}
	if p.Buffered() != 2 {
		t.Fatalf("Buffered: got %d, want 2", p.Buffered())
	}

	// First connection: replay only.
	c.open = true
	p.onConnect(c)

	topics := c.topics()
	if len(topics) != 2 || topics[0] != Topic || topics[1] != Topic {
		t.Errorf("replayed topics: got %v", topics)
	}
	if p.Buffered() != 0 {
		t.Errorf("Buffered after replay: got %d, want 0", p.Buffered())
	}
}

func TestRealPublisherAnnouncesReconnect(t *testing.T) {
	c := &stubClient{open: true}
	p := newPublisher(c)
	p.onConnect(c)

	c.open = false
	p.Publish(logic.Event{Type: logic.EventKeyPress})

	c.open = true
	p.onConnect(c)

	topics := c.topics()
	if len(topics) != 2 || topics[0] != TopicSystem || topics[1] != Topic {
		t.Errorf("got %v, want [system events]", topics)
	}
}

func TestRealPublisherRebuffersOnFailure(t *testing.T) {
	c := &stubClient{open: true, fail: errors.New("not authorised")}
	p := newPublisher(c)

	if err := p.Publish(logic.Event{Type: logic.EventBite}); err == nil {
		t.Fatal("expected publish error")
	}
	if p.Buffered() != 1 {
		t.Errorf("failed message should be buffered, got %d", p.Buffered())
	}

	p.onConnect(c)
	if p.Buffered() != 1 {
		t.Errorf("failed replay should re-buffer, got %d", p.Buffered())
	}

	c.fail = nil
	p.onConnect(c)
	if p.Buffered() != 0 {
		t.Errorf("Buffered: got %d, want 0", p.Buffered())
	}
}

func TestRealPublisherClose(t *testing.T) {
	c := &stubClient{open: true}
	p := newPublisher(c)
	if !p.IsConnected() {
		t.Error("expected IsConnected")
	}
	p.Close()
	if !c.stopped {
		t.Error("Close should disconnect the client")
	}
}
