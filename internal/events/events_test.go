package events

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

func TestSubject(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Event{Kind: KindIngest, Status: "intruder_detected"}, "securenet.ingest.intruder_detected"},
		{Event{Kind: KindCallback, Status: "auth"}, "securenet.callback.auth"},
	}
	for _, tt := range tests {
		if got := Subject("securenet", tt.ev); got != tt.want {
			t.Errorf("Subject(%+v) = %q, want %q", tt.ev, got, tt.want)
		}
	}
}

func TestConnect_EmptyURLIsNoop(t *testing.T) {
	pub, err := Connect("", "securenet", zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := pub.(Noop); !ok {
		t.Fatalf("expected Noop publisher, got %T", pub)
	}
	if err := pub.Publish(context.Background(), Event{Kind: KindIngest, Status: "no_faces"}); err != nil {
		t.Errorf("noop publish failed: %v", err)
	}
	pub.Close()
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "securenet", zerolog.Nop(), nats.Timeout(200*time.Millisecond))
	if err == nil {
		t.Fatal("expected error connecting to a closed port")
	}
}

func TestBus_NilSafe(t *testing.T) {
	var b *Bus
	if err := b.Publish(context.Background(), Event{}); err == nil {
		t.Error("expected error from nil bus")
	}
	b.Close()
}
