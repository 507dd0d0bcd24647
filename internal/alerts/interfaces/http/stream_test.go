package http

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"child-monitoring/internal/alerts/application/events"
)

func sampleAlert(kind string) events.AlertRouted {
	return events.AlertRouted{
		Kind:       kind,
		ChildID:    "child-1",
		Recipients: []string{"chat-1"},
		Body:       "alert body",
		OccurredAt: time.Date(2025, 3, 10, 6, 30, 0, 0, time.UTC),
	}
}

func TestSSEBrokerFanout(t *testing.T) {
	broker := NewSSEBroker()
	first := broker.Subscribe()
	second := broker.Subscribe()

	if err := broker.Handle(context.Background(), sampleAlert("FALL")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	for _, ch := range []chan []byte{first, second} {
		select {
		case payload := <-ch:
			if !strings.Contains(string(payload), `"kind":"FALL"`) {
				t.Fatalf("expected routed alert payload, got %s", payload)
			}
		default:
			t.Fatal("expected payload on subscriber channel")
		}
	}

	broker.Unsubscribe(first)
	if _, ok := <-first; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}

	if err := broker.Handle(context.Background(), "not-an-alert"); err == nil {
		t.Fatal("expected error for wrong event type")
	}
}

func TestSSEBrokerSlowClientLosesMessages(t *testing.T) {
	broker := NewSSEBroker()
	ch := broker.Subscribe()

	for i := 0; i < cap(ch)+5; i++ {
		if err := broker.Handle(context.Background(), sampleAlert("near_school")); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if len(ch) != cap(ch) {
		t.Fatalf("expected full buffer, got %d of %d", len(ch), cap(ch))
	}
}

func TestStreamHandlerWritesEvents(t *testing.T) {
	broker := NewSSEBroker()
	server := httptest.NewServer(NewStreamHandler(broker))
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/alerts/stream")
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected event-stream content type, got %s", got)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read ready frame: %v", err)
	}
	if line != "event: ready\n" {
		t.Fatalf("expected ready frame first, got %q", line)
	}

	// The ready frame is written after Subscribe, so the client is
	// registered once it arrives.
	if err := broker.Handle(context.Background(), sampleAlert("pickup_prompt")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	var sawAlert, sawPayload bool
	for i := 0; i < 10 && !(sawAlert && sawPayload); i++ {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read alert frame: %v", err)
		}
		if strings.HasPrefix(line, "event: alert") {
			sawAlert = true
		}
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"kind":"pickup_prompt"`) {
			sawPayload = true
		}
	}
	if !sawAlert || !sawPayload {
		t.Fatal("expected alert event frame with routed payload")
	}
}

func TestStreamHandlerRejectsNonGet(t *testing.T) {
	handler := NewStreamHandler(NewSSEBroker())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alerts/stream", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
