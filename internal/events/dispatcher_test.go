package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

func TestDispatcher_PublishDeliversAndStampsEvent(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []Event
	d.Subscribe(EventTicketUpdated, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventTicketUpdated, TicketID: "7"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("delivered %d events, want 1", len(got))
	}
	if got[0].ID == "" || got[0].Timestamp.IsZero() {
		t.Errorf("event not stamped: %+v", got[0])
	}
}

func TestDispatcher_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")
	calls := 0
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error { calls++; return boom })
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error { calls++; return nil })

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	d := NewInMemoryDispatcher()
	calls := 0
	cancel := SubscribeAll(d, ChangeTypes, func(context.Context, Event) error { calls++; return nil })

	_ = d.Publish(context.Background(), Event{Type: EventTicketEscalated})
	cancel()
	_ = d.Publish(context.Background(), Event{Type: EventTicketEscalated})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestParseBrokers(t *testing.T) {
	got := ParseBrokers(" a:9092, ,b:9092 ")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("ParseBrokers = %v", got)
	}
	if ParseBrokers("") != nil {
		t.Error("empty input should yield nil")
	}
}

func TestKafkaProducer_DisabledIsNoop(t *testing.T) {
	p := NewKafkaProducer(nil, "", nil)
	if p.Enabled() {
		t.Fatal("producer without brokers should be disabled")
	}
	if err := p.Handle(context.Background(), Event{Type: EventTicketCreated}); err != nil {
		t.Errorf("Handle: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaProducer_KeysByTicket(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, logger: zap.NewNop()}
	d := NewInMemoryDispatcher()
	p.Register(d)

	_ = d.Publish(context.Background(), Event{Type: EventTicketEscalated, TicketID: "42"})

	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "42" {
		t.Errorf("key = %q, want 42", w.msgs[0].Key)
	}
	var decoded Event
	if err := json.Unmarshal(w.msgs[0].Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != EventTicketEscalated {
		t.Errorf("type = %q, want %q", decoded.Type, EventTicketEscalated)
	}
}

func TestKafkaProducer_WriteFailureIsSwallowed(t *testing.T) {
	p := &KafkaProducer{writer: &fakeWriter{err: errors.New("broker down")}, logger: zap.NewNop()}
	if err := p.Handle(context.Background(), Event{Type: EventTicketCreated, TicketID: "1"}); err != nil {
		t.Errorf("Handle = %v, want nil", err)
	}
}
