package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/steveyegge/weft/internal/types"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestTopic(t *testing.T) {
	if got := Topic(types.EventStateChanged); got != "weft.events.state_changed" {
		t.Errorf("Topic = %q", got)
	}
}

func TestNoopPublisher(t *testing.T) {
	var pub Publisher = &NoopPublisher{}
	if err := pub.Publish(context.Background(), TopicAll, Message{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicAll, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	msg := Message{
		Event: &types.Event{ID: "e1", IssueID: "wf-pub1", EventType: types.EventCreated, Actor: "alice"},
		Issue: &types.Issue{ID: "wf-pub1", Title: "Test"},
	}
	if err := pub.Publish(context.Background(), Topic(types.EventCreated), msg); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if err := pub.Flush(time.Second); err != nil {
		t.Fatal(err)
	}

	select {
	case m := <-ch:
		if m.Subject != "weft.events.created" {
			t.Errorf("subject = %q", m.Subject)
		}
		var got Message
		if err := json.Unmarshal(m.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Issue.ID != "wf-pub1" || got.Event.Actor != "alice" {
			t.Errorf("got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSSubscriber_ReceivesMessages(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatal(err)
	}

	ev := &types.Event{ID: "e2", IssueID: "wf-x", EventType: types.EventClaimed}
	if err := pub.Publish(context.Background(), Topic(ev.EventType), Message{Event: ev}); err != nil {
		t.Fatal(err)
	}
	_ = pub.Flush(time.Second)

	select {
	case m := <-ch:
		if m.Event.IssueID != "wf-x" || m.Event.EventType != types.EventClaimed {
			t.Errorf("got %+v", m.Event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	cancel() // idempotent
}

func TestNATSPublisher_ConnectFailure(t *testing.T) {
	if _, err := NewNATSPublisher("nats://127.0.0.1:1"); err == nil {
		t.Error("expected connection error")
	}
}
